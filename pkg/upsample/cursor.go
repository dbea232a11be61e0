package upsample

import "github.com/Garik-/lcreader/pkg/timeline"

// Cursor is a resumable position in a timeline. One cursor belongs to one
// (audio file, timeline) pair and must not be shared between goroutines.
type Cursor struct {
	tl    *timeline.Timeline
	index int
	// time is where the delta of the event at index starts, in microseconds.
	time  float64
	clock Clock
	notes NoteState

	ended   bool
	drifted bool
}

func NewCursor(tl *timeline.Timeline) *Cursor {
	return &Cursor{tl: tl, clock: NewClock(tl.Resolution())}
}

// Reset rewinds the cursor to the start of its timeline.
func (c *Cursor) Reset() {
	*c = Cursor{tl: c.tl, clock: NewClock(c.tl.Resolution())}
}

func (c *Cursor) Timeline() *timeline.Timeline {
	return c.tl
}

func (c *Cursor) Index() int {
	return c.index
}

// Time returns the elapsed time at Index in microseconds.
func (c *Cursor) Time() float64 {
	return c.time
}

func (c *Cursor) Tempo() uint32 {
	return c.clock.Tempo
}

func (c *Cursor) Notes() []int {
	return c.notes.Active()
}

// Ended reports whether the end-of-track event was consumed.
func (c *Cursor) Ended() bool {
	return c.ended
}

// Exhausted reports whether every event was consumed.
func (c *Cursor) Exhausted() bool {
	return c.index >= c.tl.Len()
}
