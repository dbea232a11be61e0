package timeline

import "sort"

// Merge interleaves tracks into one event list by absolute tick. Events on
// the same tick keep their track order. Per-track end-of-track events are
// dropped and a single one is appended at the latest track end; events
// after a track's end are ignored.
func Merge(tracks ...[]Event) []Event {
	type placed struct {
		abs uint64
		e   Event
	}

	var (
		all    []placed
		end    uint64
		closed bool
	)

	for _, track := range tracks {
		var abs uint64
		for _, e := range track {
			abs += uint64(e.Delta)
			if e.Kind == EndOfTrack {
				closed = true
				if abs > end {
					end = abs
				}
				break
			}
			all = append(all, placed{abs: abs, e: e})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].abs < all[j].abs
	})

	out := make([]Event, 0, len(all)+1)
	var prev uint64
	for _, p := range all {
		e := p.e
		e.Delta = uint32(p.abs - prev)
		prev = p.abs
		out = append(out, e)
	}

	if closed {
		if end < prev {
			end = prev
		}
		out = append(out, Event{Kind: EndOfTrack, Delta: uint32(end - prev)})
	}

	return out
}

// closeTrack appends an end-of-track event when the track has none.
func closeTrack(events []Event) []Event {
	if n := len(events); n > 0 && events[n-1].Kind == EndOfTrack {
		return events
	}
	return append(events, Event{Kind: EndOfTrack})
}
