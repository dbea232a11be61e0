package upsample

import (
	"math"

	"github.com/Garik-/lcreader/pkg/timeline"
)

// Clock converts tick deltas to microseconds. Tempo is in microseconds per
// beat and only changes on a tempo-change event; Resolution never changes.
type Clock struct {
	Tempo      uint32
	Resolution uint16
}

func NewClock(resolution uint16) Clock {
	return Clock{Tempo: timeline.DefaultTempo, Resolution: resolution}
}

func (c Clock) TicksToTime(delta uint32) float64 {
	return TicksToTime(delta, c.Tempo, c.Resolution)
}

func (c Clock) HalfBeatGap() float64 {
	return HalfBeatGap(c.Tempo, c.Resolution)
}

// TicksToTime returns tempo * delta / resolution microseconds. The product
// is taken in float64, a uint32 product overflows on long tracks.
func TicksToTime(delta uint32, tempo uint32, resolution uint16) float64 {
	return float64(tempo) * float64(delta) / float64(resolution)
}

// SampleToTime returns the start of a sample in microseconds.
func SampleToTime(sample int64, sampleRate int) float64 {
	return 1e6 * float64(sample) / float64(sampleRate)
}

// TimeToSample returns the sample index nearest to t microseconds.
func TimeToSample(t float64, sampleRate int) int64 {
	return int64(math.Round(t * float64(sampleRate) / 1e6))
}

// HalfBeatGap is the tolerance for calling a timeline and its audio in sync.
func HalfBeatGap(tempo uint32, resolution uint16) float64 {
	return TicksToTime(uint32(resolution), tempo, resolution) / 2
}
