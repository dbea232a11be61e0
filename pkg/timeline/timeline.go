// Package timeline holds the parsed symbolic event stream used as a local
// conditioning signal: an immutable, ordered list of events with relative
// tick deltas and a fixed resolution.
package timeline

import (
	"errors"
	"fmt"
)

// Kind tags the variant of an Event.
type Kind uint8

const (
	Other Kind = iota
	NoteOn
	NoteOff
	TempoChange
	EndOfTrack
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "note-on"
	case NoteOff:
		return "note-off"
	case TempoChange:
		return "tempo-change"
	case EndOfTrack:
		return "end-of-track"
	default:
		return "other"
	}
}

// DefaultTempo is 120 BPM in microseconds per beat.
const DefaultTempo uint32 = 500000

// ErrMalformed is the cause of every MalformedError.
var ErrMalformed = errors.New("malformed timeline")

// MalformedError reports a timeline that can not be upsampled. Index is -1
// when the problem is not tied to an event.
type MalformedError struct {
	Index  int
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s - %s", ErrMalformed, e.Reason)
	}
	return fmt.Sprintf("%s - event %d: %s", ErrMalformed, e.Index, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}

// Event is a single timeline entry. Note is set for NoteOn and NoteOff,
// Tempo (microseconds per beat) for TempoChange. Raw keeps the source
// status byte so skipped events can be reported.
type Event struct {
	Delta uint32
	Kind  Kind
	Note  uint8
	Tempo uint32
	Raw   uint8
}

type Timeline struct {
	resolution uint16
	events     []Event
}

// New validates and copies events. A zero resolution or a zero tempo value
// fails here instead of dividing by zero later.
func New(resolution uint16, events []Event) (*Timeline, error) {
	if resolution == 0 {
		return nil, &MalformedError{Index: -1, Reason: "resolution must be positive"}
	}

	for i, e := range events {
		if e.Kind == TempoChange && e.Tempo == 0 {
			return nil, &MalformedError{Index: i, Reason: "tempo must be positive"}
		}
	}

	cp := make([]Event, len(events))
	copy(cp, events)

	return &Timeline{resolution: resolution, events: cp}, nil
}

// Resolution returns ticks per beat.
func (t *Timeline) Resolution() uint16 {
	return t.resolution
}

func (t *Timeline) Len() int {
	return len(t.events)
}

// At returns the i-th event by value.
func (t *Timeline) At(i int) Event {
	return t.events[i]
}

// Ticks returns the total length of the timeline in ticks.
func (t *Timeline) Ticks() uint64 {
	var total uint64
	for _, e := range t.events {
		total += uint64(e.Delta)
	}
	return total
}

// Notes counts NoteOn events.
func (t *Timeline) Notes() int {
	n := 0
	for _, e := range t.events {
		if e.Kind == NoteOn {
			n++
		}
	}
	return n
}
