package align

// window is the half-open range [lowerBound, upperBound) of new samples
// in the current chunk. Stepping moves it by its own width.
type window struct {
	cnt int

	lowerBound int64
	upperBound int64
}

func newWindow(lowerBound int64, upperBound int64) *window {
	return &window{
		lowerBound: lowerBound,
		upperBound: upperBound,
	}
}

func (w *window) stepBy(n int) {
	w.cnt += n
	step := w.upperBound - w.lowerBound

	w.upperBound += step * int64(n)
	w.lowerBound += step * int64(n)
}

// position is the number of steps taken so far.
func (w *window) position() int {
	return w.cnt
}
