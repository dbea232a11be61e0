// Package upsample turns a timeline of irregular tick-spaced events into
// one note-state embedding per audio sample.
package upsample

import (
	"errors"
	"fmt"
	"math"

	"github.com/Garik-/lcreader/pkg/timeline"
	"go.uber.org/zap"
)

// Unbounded as an end sample runs the cursor to the end of the track.
const Unbounded int64 = math.MaxInt64

var ErrInvalidConfig = errors.New("invalid upsampler config")

type DriftKind int

const (
	// TimelineShort: the track ended before the requested audio range.
	TimelineShort DriftKind = iota + 1
	// TimelineLong: the track runs past the end of the audio.
	TimelineLong
)

func (k DriftKind) String() string {
	if k == TimelineLong {
		return "timeline longer than audio"
	}
	return "timeline shorter than audio"
}

// Drift describes a timeline/audio length mismatch beyond half a beat. Gap
// and Tolerance are in microseconds.
type Drift struct {
	Kind      DriftKind
	Gap       float64
	Tolerance float64
}

type Option func(*Upsampler)

func WithLogger(l *zap.Logger) Option {
	return func(u *Upsampler) {
		u.log = l
	}
}

// WithDriftHandler registers fn to receive drift reports next to the log.
func WithDriftHandler(fn func(Drift)) Option {
	return func(u *Upsampler) {
		u.onDrift = fn
	}
}

type Upsampler struct {
	sampleRate int
	channels   int
	log        *zap.Logger
	onDrift    func(Drift)
}

func New(sampleRate, channels int, opts ...Option) (*Upsampler, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w - sample rate %d", ErrInvalidConfig, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w - channels %d", ErrInvalidConfig, channels)
	}

	u := &Upsampler{sampleRate: sampleRate, channels: channels, log: zap.NewNop()}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

func (u *Upsampler) SampleRate() int {
	return u.sampleRate
}

func (u *Upsampler) Channels() int {
	return u.channels
}

// Upsample returns one embedding per sample in [start, end) and advances c.
// A negative start is served with zero embeddings that do not touch the
// timeline. An event whose delta crosses end is not consumed; the next call
// re-reads it, so consecutive ranges concatenate to one long range.
func (u *Upsampler) Upsample(c *Cursor, start, end int64) Sequence {
	bounded := end != Unbounded
	if bounded && end < start {
		end = start
	}

	capacity := 0
	if bounded {
		capacity = int(end - start)
	}
	out := NewSequence(u.channels, capacity)

	if start < 0 {
		padEnd := int64(0)
		if end < 0 {
			padEnd = end
		}
		out.AppendZeros(int(padEnd - start))
		start = 0
	}

	if bounded && start >= end {
		return out
	}

	pos := start
	for {
		if c.ended {
			u.tail(c, &out, pos, end)
			return out
		}

		if c.Exhausted() {
			// no end-of-track: hold whatever is still sounding
			if bounded {
				u.emit(c, &out, pos, end)
			}
			return out
		}

		ev := c.tl.At(c.index)
		evEnd := c.time + c.clock.TicksToTime(ev.Delta)
		evEndSample := TimeToSample(evEnd, u.sampleRate)

		if bounded && evEndSample > end {
			u.emit(c, &out, pos, end)
			return out
		}

		if evEndSample > pos {
			u.emit(c, &out, pos, evEndSample)
			pos = evEndSample
		}

		u.apply(c, ev)
		c.time = evEnd
		c.index++
	}
}

// emit appends the pre-event note state for samples [from, to).
func (u *Upsampler) emit(c *Cursor, out *Sequence, from, to int64) {
	n := int(to - from)
	if n <= 0 {
		return
	}
	if c.notes.Len() == 0 {
		out.AppendZeros(n)
		return
	}
	out.AppendRepeat(c.notes.Embedding(u.channels), n)
}

func (u *Upsampler) apply(c *Cursor, ev timeline.Event) {
	switch ev.Kind {
	case timeline.NoteOn:
		c.notes.Activate(ev.Note)
	case timeline.NoteOff:
		c.notes.Deactivate(ev.Note)
	case timeline.TempoChange:
		c.clock.Tempo = ev.Tempo
	case timeline.EndOfTrack:
		c.ended = true
	default:
		u.log.Debug("skip event",
			zap.Int("index", c.index),
			zap.Stringer("kind", ev.Kind),
			zap.Uint8("status", ev.Raw),
		)
	}
}

// tail fills [pos, end) after the end of the track. Within half a beat of
// the track end the final note state is held, past it the tail is silent.
func (u *Upsampler) tail(c *Cursor, out *Sequence, pos, end int64) {
	if end == Unbounded || pos >= end {
		return
	}

	gap := SampleToTime(end, u.sampleRate) - c.time
	tolerance := c.clock.HalfBeatGap()
	if gap > tolerance {
		u.report(c, Drift{Kind: TimelineShort, Gap: gap, Tolerance: tolerance})
		out.AppendZeros(int(end - pos))
		return
	}

	u.emit(c, out, pos, end)
}

// TrackEnd returns the time of the end of the track in microseconds,
// following the remaining tempo changes without moving c.
func (u *Upsampler) TrackEnd(c *Cursor) float64 {
	t := c.time
	if c.ended {
		return t
	}

	clock := c.clock
	for i := c.index; i < c.tl.Len(); i++ {
		ev := c.tl.At(i)
		t += clock.TicksToTime(ev.Delta)
		if ev.Kind == timeline.TempoChange {
			clock.Tempo = ev.Tempo
		}
		if ev.Kind == timeline.EndOfTrack {
			break
		}
	}
	return t
}

// CheckEnd reports a drift when the track runs more than half a beat past
// audioEnd, the number of real audio samples. It returns true if in sync.
func (u *Upsampler) CheckEnd(c *Cursor, audioEnd int64) bool {
	gap := u.TrackEnd(c) - SampleToTime(audioEnd, u.sampleRate)
	tolerance := c.clock.HalfBeatGap()
	if gap > tolerance {
		u.report(c, Drift{Kind: TimelineLong, Gap: gap, Tolerance: tolerance})
		return false
	}
	if c.ended && -gap > tolerance {
		return false
	}
	return true
}

func (u *Upsampler) report(c *Cursor, d Drift) {
	if c.drifted {
		return
	}
	c.drifted = true

	u.log.Warn(d.Kind.String(),
		zap.Float64("gap_us", d.Gap),
		zap.Float64("tolerance_us", d.Tolerance),
		zap.Int("event", c.index),
	)
	if u.onDrift != nil {
		u.onDrift(d)
	}
}
