// Package align keeps the conditioning stream index-aligned with the audio
// chunks it is enqueued with.
package align

import "github.com/Garik-/lcreader/pkg/upsample"

// Fit returns seq with exactly n rows: right-padded with zero embeddings,
// truncated, or unchanged. A padded result never shares memory with seq.
func Fit(seq upsample.Sequence, n int) upsample.Sequence {
	l := seq.Len()
	switch {
	case l < n:
		out := upsample.NewSequence(seq.Channels, n)
		out.Append(seq)
		out.AppendZeros(n - l)
		return out
	case l > n:
		return seq.Slice(0, n)
	default:
		return seq
	}
}

// Whole returns the conditioning for an unchunked file: receptiveField
// zero rows for the audio's leading pad followed by audioLen rows starting
// at sample offset of the timeline.
func Whole(up *upsample.Upsampler, c *upsample.Cursor, receptiveField int, offset int64, audioLen int) upsample.Sequence {
	seq := upsample.NewSequence(up.Channels(), receptiveField+audioLen)
	seq.AppendZeros(receptiveField)
	seq.Append(up.Upsample(c, offset, offset+int64(audioLen)))
	return Fit(seq, receptiveField+audioLen)
}

// Stream produces conditioning for overlapping audio chunks of one file.
// Relative to offset, chunk k covers samples
// [k*sampleSize-receptiveField, (k+1)*sampleSize). Only the new samples are
// read from the cursor, the look-back is carried over from the previous
// chunk and is zero for the first one, like the audio pad.
type Stream struct {
	up             *upsample.Upsampler
	cursor         *upsample.Cursor
	receptiveField int
	win            *window
	carry          upsample.Sequence
}

func NewStream(up *upsample.Upsampler, c *upsample.Cursor, receptiveField, sampleSize int, offset int64) *Stream {
	carry := upsample.NewSequence(up.Channels(), receptiveField)
	carry.AppendZeros(receptiveField)

	return &Stream{
		up:             up,
		cursor:         c,
		receptiveField: receptiveField,
		win:            newWindow(offset, offset+int64(sampleSize)),
		carry:          carry,
	}
}

// Next returns the conditioning for the next chunk fitted to n rows, the
// length of the matching audio piece.
func (s *Stream) Next(n int) upsample.Sequence {
	fresh := s.up.Upsample(s.cursor, s.win.lowerBound, s.win.upperBound)
	chunk := upsample.NewSequence(fresh.Channels, s.carry.Len()+fresh.Len())
	chunk.Append(s.carry)
	chunk.Append(fresh)

	l := chunk.Len()
	lo := l - s.receptiveField
	if lo < 0 {
		lo = 0
	}
	s.carry = chunk.Slice(lo, l).Clone()
	s.win.stepBy(1)

	return Fit(chunk, n)
}

// Chunks returns the number of chunks produced so far.
func (s *Stream) Chunks() int {
	return s.win.position()
}

// End returns the first sample not yet covered.
func (s *Stream) End() int64 {
	return s.win.lowerBound
}
