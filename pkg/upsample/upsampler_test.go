package upsample

import (
	"testing"

	"github.com/Garik-/lcreader/pkg/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testRate     = 16000
	testChannels = 128
)

func mustTimeline(t *testing.T, resolution uint16, events ...timeline.Event) *timeline.Timeline {
	t.Helper()
	tl, err := timeline.New(resolution, events)
	require.NoError(t, err)
	return tl
}

func mustUpsampler(t *testing.T, opts ...Option) *Upsampler {
	t.Helper()
	u, err := New(testRate, testChannels, opts...)
	require.NoError(t, err)
	return u
}

func active(seq Sequence, i int) []int {
	ids := []int{}
	for ch, v := range seq.At(i) {
		if v != 0 {
			ids = append(ids, ch)
		}
	}
	return ids
}

// run is a stretch of consecutive rows with the same active set.
type run struct {
	notes []int
	n     int
}

func runs(seq Sequence) []run {
	var out []run
	for i := 0; i < seq.Len(); i++ {
		ids := active(seq, i)
		if len(out) > 0 && assert.ObjectsAreEqual(out[len(out)-1].notes, ids) {
			out[len(out)-1].n++
			continue
		}
		out = append(out, run{notes: ids, n: 1})
	}
	return out
}

func noteOn(delta uint32, note uint8) timeline.Event {
	return timeline.Event{Kind: timeline.NoteOn, Delta: delta, Note: note}
}

func noteOff(delta uint32, note uint8) timeline.Event {
	return timeline.Event{Kind: timeline.NoteOff, Delta: delta, Note: note}
}

func tempo(delta uint32, usPerBeat uint32) timeline.Event {
	return timeline.Event{Kind: timeline.TempoChange, Delta: delta, Tempo: usPerBeat}
}

func endOfTrack(delta uint32) timeline.Event {
	return timeline.Event{Kind: timeline.EndOfTrack, Delta: delta}
}

func scenario(t *testing.T) *timeline.Timeline {
	return mustTimeline(t, 480, noteOn(0, 60), noteOn(240, 64), endOfTrack(0))
}

func TestClock(t *testing.T) {
	assert.Equal(t, 250000.0, TicksToTime(240, 500000, 480))
	assert.Equal(t, 250000.0, SampleToTime(4000, 16000))
	assert.Equal(t, int64(4000), TimeToSample(250000, 16000))
	assert.Equal(t, 250000.0, HalfBeatGap(500000, 480))

	// 2^31 ticks at a 24-bit tempo overflows 32 and 48 bit products
	assert.Equal(t, float64(1<<31)*float64(1<<23)/960, TicksToTime(1<<31, 1<<23, 960))

	c := NewClock(96)
	assert.Equal(t, timeline.DefaultTempo, c.Tempo)
	assert.Equal(t, 500000.0, c.TicksToTime(96))
}

func TestNoteState(t *testing.T) {
	var s NoteState
	s.Activate(60)
	s.Activate(60)
	s.Activate(200)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []int{60, 200}, s.Active())

	s.Deactivate(61)
	assert.Equal(t, 2, s.Len())

	e := s.Embedding(128)
	assert.Len(t, e, 128)
	assert.Equal(t, float32(1), e[60])

	var sum float32
	for _, v := range e {
		sum += v
	}
	assert.Equal(t, float32(1), sum, "id 200 is out of range and dropped")

	s.Deactivate(60)
	s.Deactivate(60)
	assert.Equal(t, []int{200}, s.Active())
	assert.False(t, s.IsActive(60))
}

func TestNewInvalid(t *testing.T) {
	_, err := New(0, 128)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(16000, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestScenario(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	u := mustUpsampler(t, WithLogger(zap.New(core)))

	seq := u.Upsample(NewCursor(scenario(t)), 0, 5000)

	require.Equal(t, 5000, seq.Len())
	assert.Equal(t, []run{
		{notes: []int{60}, n: 4000},
		{notes: []int{60, 64}, n: 1000},
	}, runs(seq))
	assert.Equal(t, 0, logs.Len())
}

func TestEndOfTrackDrift(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var drifts []Drift
	u := mustUpsampler(t, WithLogger(zap.New(core)), WithDriftHandler(func(d Drift) {
		drifts = append(drifts, d)
	}))

	seq := u.Upsample(NewCursor(scenario(t)), 0, 9000)

	require.Equal(t, 9000, seq.Len())
	assert.Equal(t, []run{
		{notes: []int{60}, n: 4000},
		{notes: []int{}, n: 5000},
	}, runs(seq))

	require.Len(t, drifts, 1)
	assert.Equal(t, TimelineShort, drifts[0].Kind)
	assert.Equal(t, 312500.0, drifts[0].Gap)
	assert.Equal(t, 250000.0, drifts[0].Tolerance)
	assert.Equal(t, 1, logs.FilterMessage("timeline shorter than audio").Len())
}

func TestLookBackPadding(t *testing.T) {
	u := mustUpsampler(t)
	tl := mustTimeline(t, 480, noteOn(0, 60), endOfTrack(480))

	c := NewCursor(tl)
	seq := u.Upsample(c, -3, 2)
	require.Equal(t, 5, seq.Len())
	assert.Equal(t, []run{{notes: []int{}, n: 3}, {notes: []int{60}, n: 2}}, runs(seq))

	c = NewCursor(tl)
	seq = u.Upsample(c, -5, -2)
	assert.Equal(t, 3, seq.Len())
	assert.Equal(t, 0, c.Index(), "padding never reads the timeline")
}

func TestZeroLengthRange(t *testing.T) {
	u := mustUpsampler(t)
	c := NewCursor(scenario(t))

	assert.Equal(t, 0, u.Upsample(c, 0, 0).Len())
	assert.Equal(t, 0, u.Upsample(c, 10, 10).Len())
	assert.Equal(t, 0, u.Upsample(c, -4, -4).Len())
	assert.Equal(t, 0, u.Upsample(c, 10, 3).Len())

	assert.Equal(t, 0, c.Index())
	assert.Empty(t, c.Notes())
}

func TestIdempotentToggling(t *testing.T) {
	u := mustUpsampler(t)
	clean := mustTimeline(t, 480,
		noteOn(0, 60),
		noteOff(480, 60),
		endOfTrack(0),
	)
	noisy := mustTimeline(t, 480,
		noteOff(0, 70),
		noteOn(0, 60),
		noteOn(240, 60),
		noteOff(0, 71),
		noteOff(240, 60),
		noteOff(0, 60),
		endOfTrack(0),
	)

	want := u.Upsample(NewCursor(clean), 0, 10000)
	got := u.Upsample(NewCursor(noisy), 0, 10000)
	assert.Equal(t, want, got)
	assert.Equal(t, []run{{notes: []int{60}, n: 8000}, {notes: []int{}, n: 2000}}, runs(got))
}

func TestTempoChangeScalesEmbeddings(t *testing.T) {
	u := mustUpsampler(t)
	c := NewCursor(mustTimeline(t, 480,
		noteOn(0, 60),
		tempo(480, 250000),
		noteOff(480, 60),
		endOfTrack(0),
	))

	slow := u.Upsample(c, 0, 8000)
	assert.Equal(t, uint32(250000), c.Tempo())

	fast := u.Upsample(c, 8000, 20000)

	assert.Equal(t, []run{{notes: []int{60}, n: 8000}}, runs(slow))
	assert.Equal(t, []run{{notes: []int{60}, n: 4000}, {notes: []int{}, n: 8000}}, runs(fast))
	assert.True(t, c.Ended())
}

func TestConsecutiveTempoChanges(t *testing.T) {
	u := mustUpsampler(t)
	c := NewCursor(mustTimeline(t, 480,
		tempo(0, 1000000),
		tempo(0, 250000),
		noteOn(480, 60),
		endOfTrack(0),
	))

	seq := u.Upsample(c, 0, Unbounded)
	assert.Equal(t, 4000, seq.Len())
	assert.Equal(t, []int{60}, c.Notes())
}

func TestExhaustedTimelineHoldsState(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	u := mustUpsampler(t, WithLogger(zap.New(core)))
	c := NewCursor(mustTimeline(t, 480, noteOn(0, 60), noteOn(240, 62)))

	seq := u.Upsample(c, 0, 6000)
	assert.Equal(t, []run{{notes: []int{60}, n: 4000}, {notes: []int{60, 62}, n: 2000}}, runs(seq))
	assert.True(t, c.Exhausted())
	assert.Equal(t, 0, logs.Len())

	seq = u.Upsample(c, 6000, 6100)
	assert.Equal(t, []run{{notes: []int{60, 62}, n: 100}}, runs(seq))

	assert.Equal(t, 0, u.Upsample(c, 6100, Unbounded).Len())
}

func TestEmptyTimeline(t *testing.T) {
	u := mustUpsampler(t)
	seq := u.Upsample(NewCursor(mustTimeline(t, 96)), -2, 50)
	assert.Equal(t, []run{{notes: []int{}, n: 52}}, runs(seq))
}

func TestUnknownEventsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	u := mustUpsampler(t, WithLogger(zap.New(core)))
	with := mustTimeline(t, 480,
		noteOn(0, 60),
		timeline.Event{Kind: timeline.Other, Delta: 240, Raw: 0xB0},
		noteOff(240, 60),
		endOfTrack(0),
	)
	without := mustTimeline(t, 480, noteOn(0, 60), noteOff(480, 60), endOfTrack(0))

	c := NewCursor(with)
	got := u.Upsample(c, 0, 3000)
	got.Append(u.Upsample(c, 3000, 9000))

	assert.Equal(t, u.Upsample(NewCursor(without), 0, 9000), got)
	assert.Equal(t, 1, logs.FilterMessage("skip event").Len())
}

func TestOutOfRangeNotesDropped(t *testing.T) {
	u, err := New(testRate, 64)
	require.NoError(t, err)

	seq := u.Upsample(NewCursor(mustTimeline(t, 480, noteOn(0, 100), noteOn(0, 3), endOfTrack(480))), 0, 10)
	assert.Equal(t, 64, seq.Channels)
	assert.Equal(t, []run{{notes: []int{3}, n: 10}}, runs(seq))
}

func TestOvershootIsReread(t *testing.T) {
	u := mustUpsampler(t)
	c := NewCursor(scenario(t))

	u.Upsample(c, 0, 1000)
	assert.Equal(t, 1, c.Index(), "note on 64 crosses the chunk and stays unread")
	assert.Equal(t, []int{60}, c.Notes())

	u.Upsample(c, 1000, 4000)
	assert.Equal(t, 3, c.Index(), "zero width events on the boundary are consumed")
	assert.True(t, c.Ended())
	assert.Equal(t, []int{60, 64}, c.Notes())
	assert.Equal(t, 250000.0, c.Time())
}

func resumeTimeline(t *testing.T) *timeline.Timeline {
	return mustTimeline(t, 96,
		tempo(0, 600000),
		noteOn(0, 48),
		noteOn(37, 52),
		timeline.Event{Kind: timeline.Other, Delta: 11, Raw: 0xC0},
		tempo(13, 431234),
		noteOff(50, 48),
		noteOn(1, 55),
		tempo(0, 250000),
		tempo(0, 333333),
		noteOff(77, 52),
		noteOff(96, 55),
		noteOn(3, 60),
		noteOff(190, 60),
		endOfTrack(5),
	)
}

func TestResumable(t *testing.T) {
	u := mustUpsampler(t)
	tl := resumeTimeline(t)

	const n = 40000
	whole := u.Upsample(NewCursor(tl), 0, n)
	require.Equal(t, n, whole.Len())

	for _, k := range []int64{0, 1, 977, 3750, 3751, 9999, 15000, 23456, 39999, n} {
		c := NewCursor(tl)
		got := u.Upsample(c, 0, k)
		got.Append(u.Upsample(c, k, n))
		assert.Equal(t, whole, got, "split at %d", k)
	}

	c := NewCursor(tl)
	got := NewSequence(testChannels, n)
	for start := int64(0); start < n; start += 1234 {
		end := start + 1234
		if end > n {
			end = n
		}
		got.Append(u.Upsample(c, start, end))
	}
	assert.Equal(t, whole, got)
}

func TestSeekForward(t *testing.T) {
	u := mustUpsampler(t)
	tl := resumeTimeline(t)

	whole := u.Upsample(NewCursor(tl), 0, 30000)
	got := u.Upsample(NewCursor(tl), 12000, 30000)
	assert.Equal(t, whole.Slice(12000, 30000).Clone(), got)
}

func TestUnboundedStopsAtEndOfTrack(t *testing.T) {
	u := mustUpsampler(t)
	c := NewCursor(scenario(t))

	seq := u.Upsample(c, 0, Unbounded)
	assert.Equal(t, 4000, seq.Len())
	assert.True(t, c.Ended())

	seq = u.Upsample(c, -10, Unbounded)
	assert.Equal(t, 10, seq.Len())
}

func TestSequencesDoNotAlias(t *testing.T) {
	u := mustUpsampler(t)
	tl := scenario(t)

	first := u.Upsample(NewCursor(tl), 0, 10)
	first.At(0)[60] = 7

	second := u.Upsample(NewCursor(tl), 0, 10)
	assert.Equal(t, float32(1), second.At(0)[60])
}

func TestCheckEnd(t *testing.T) {
	var drifts []Drift
	u := mustUpsampler(t, WithDriftHandler(func(d Drift) { drifts = append(drifts, d) }))
	tl := mustTimeline(t, 480, noteOn(0, 60), noteOff(960, 60), endOfTrack(0))

	c := NewCursor(tl)
	u.Upsample(c, 0, 8000)
	assert.Equal(t, 1e6, u.TrackEnd(c))
	assert.False(t, u.CheckEnd(c, 8000))
	require.Len(t, drifts, 1)
	assert.Equal(t, TimelineLong, drifts[0].Kind)
	assert.Equal(t, 500000.0, drifts[0].Gap)

	c = NewCursor(tl)
	u.Upsample(c, 0, 14000)
	assert.True(t, u.CheckEnd(c, 14000))
	assert.Len(t, drifts, 1)

	c.Reset()
	assert.Equal(t, 0, c.Index())
	assert.Equal(t, timeline.DefaultTempo, c.Tempo())
}
