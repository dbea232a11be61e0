package upsample

// NoteState is the set of active note ids. Activating an active note and
// deactivating an absent one are no-ops. The zero value is empty.
type NoteState struct {
	on [256]bool
	n  int
}

func (s *NoteState) Activate(id uint8) {
	if !s.on[id] {
		s.on[id] = true
		s.n++
	}
}

func (s *NoteState) Deactivate(id uint8) {
	if s.on[id] {
		s.on[id] = false
		s.n--
	}
}

func (s *NoteState) IsActive(id uint8) bool {
	return s.on[id]
}

func (s *NoteState) Len() int {
	return s.n
}

// Active returns the active ids in ascending order.
func (s *NoteState) Active() []int {
	ids := make([]int, 0, s.n)
	for id, on := range s.on {
		if on {
			ids = append(ids, id)
		}
	}
	return ids
}

// Embedding returns a new vector with 1 at every active id. Ids that do
// not fit in channels are dropped.
func (s *NoteState) Embedding(channels int) Embedding {
	e := make(Embedding, channels)
	if s.n == 0 {
		return e
	}
	for id, on := range s.on {
		if on && id < channels {
			e[id] = 1
		}
	}
	return e
}
