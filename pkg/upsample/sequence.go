package upsample

// Embedding holds one value per conditioning channel.
type Embedding []float32

// Sequence is a row-major block of embeddings, Channels values per row.
type Sequence struct {
	Channels int
	Data     []float32
}

func NewSequence(channels, capacity int) Sequence {
	return Sequence{Channels: channels, Data: make([]float32, 0, channels*capacity)}
}

func (s Sequence) Len() int {
	if s.Channels == 0 {
		return 0
	}
	return len(s.Data) / s.Channels
}

// At returns row i. The row shares memory with s.
func (s Sequence) At(i int) Embedding {
	lo, hi := i*s.Channels, (i+1)*s.Channels
	return Embedding(s.Data[lo:hi:hi])
}

// Slice returns rows [i, j). The result shares memory with s.
func (s Sequence) Slice(i, j int) Sequence {
	return Sequence{Channels: s.Channels, Data: s.Data[i*s.Channels : j*s.Channels : j*s.Channels]}
}

func (s Sequence) Clone() Sequence {
	data := make([]float32, len(s.Data))
	copy(data, s.Data)
	return Sequence{Channels: s.Channels, Data: data}
}

// AppendRepeat appends e n times. e must be Channels long.
func (s *Sequence) AppendRepeat(e Embedding, n int) {
	for i := 0; i < n; i++ {
		s.Data = append(s.Data, e...)
	}
}

func (s *Sequence) AppendZeros(n int) {
	if n <= 0 {
		return
	}
	s.Data = append(s.Data, make([]float32, n*s.Channels)...)
}

func (s *Sequence) Append(o Sequence) {
	s.Data = append(s.Data, o.Data...)
}
