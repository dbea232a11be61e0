package main

import (
	"sort"

	"github.com/Garik-/lcreader/pkg/upsample"
)

// span is a run of samples [Start, End) during which Note is active.
type span struct {
	Note  int   `json:"note"`
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// activeSpans collapses seq into note runs ordered by start then note.
// first is the sample index of row 0.
func activeSpans(seq upsample.Sequence, first int64) []span {
	open := make([]int64, seq.Channels)
	for i := range open {
		open[i] = -1
	}

	var spans []span
	closeRun := func(note int, end int64) {
		spans = append(spans, span{Note: note, Start: open[note], End: end})
		open[note] = -1
	}

	for i := 0; i < seq.Len(); i++ {
		pos := first + int64(i)
		for note, v := range seq.At(i) {
			switch {
			case v != 0 && open[note] < 0:
				open[note] = pos
			case v == 0 && open[note] >= 0:
				closeRun(note, pos)
			}
		}
	}

	end := first + int64(seq.Len())
	for note := range open {
		if open[note] >= 0 {
			closeRun(note, end)
		}
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].Note < spans[j].Note
	})
	return spans
}
