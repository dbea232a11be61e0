package reader

import (
	"os"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

var ErrSampleRate = errors.New("sample rate mismatch")

// LoadAudio decodes a PCM wav file to mono samples in [-1, 1]. Channels are
// averaged. The file must already be at sampleRate.
func LoadAudio(name string, sampleRate int) ([]float32, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open audio")
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, errors.Errorf("%s: not a valid wav file", name)
	}
	if int(d.SampleRate) != sampleRate {
		return nil, errors.Wrapf(ErrSampleRate, "%s: %d Hz, want %d", name, d.SampleRate, sampleRate)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, errors.Errorf("%s: no channels", name)
	}

	depth := int(d.BitDepth)
	if depth <= 0 || depth > 32 {
		return nil, errors.Errorf("%s: unsupported bit depth %d", name, depth)
	}

	// 8 bit PCM is unsigned
	var bias float32
	if depth == 8 {
		bias = 128
	}
	scale := float32(int64(1) << (depth - 1))

	mono := make([]float32, len(buf.Data)/channels)
	for i := range mono {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(buf.Data[i*channels+ch]) - bias
		}
		mono[i] = sum / float32(channels) / scale
	}

	return mono, nil
}
