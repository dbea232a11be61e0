package reader

import "math"

const defaultFrameLength = 2048

// SilenceBounds returns the sample range [lo, hi) between the first and the
// last frame whose RMS energy exceeds threshold. Frames hop by a quarter of
// frameLength. lo == hi when the whole signal is silence.
func SilenceBounds(audio []float32, threshold float64, frameLength int) (int, int) {
	if len(audio) == 0 {
		return 0, 0
	}
	if len(audio) < frameLength {
		frameLength = len(audio)
	}

	hop := frameLength / 4
	if hop == 0 {
		hop = 1
	}

	first, last := -1, -1
	for start := 0; start+frameLength <= len(audio); start += hop {
		if rms(audio[start:start+frameLength]) > threshold {
			if first < 0 {
				first = start
			}
			last = start
		}
	}

	if first < 0 {
		return 0, 0
	}
	return first, last + frameLength
}

// TrimSilence cuts leading and trailing silence, see SilenceBounds.
func TrimSilence(audio []float32, threshold float64, frameLength int) []float32 {
	lo, hi := SilenceBounds(audio, threshold, frameLength)
	return audio[lo:hi]
}

func rms(frame []float32) float64 {
	var sum float64
	for _, v := range frame {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
