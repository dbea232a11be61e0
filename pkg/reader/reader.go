// Package reader feeds training batches: audio chunks from wav files, each
// with the MIDI conditioning of the same samples.
package reader

import (
	"context"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/Garik-/lcreader/pkg/align"
	"github.com/Garik-/lcreader/pkg/timeline"
	"github.com/Garik-/lcreader/pkg/upsample"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Batch is one audio piece, zero-padded at file start by the receptive
// field, and its conditioning of identical length. Conditioning is empty
// when local conditioning is disabled.
type Batch struct {
	Name         string
	Chunk        int
	Audio        []float32
	Conditioning upsample.Sequence
}

type Reader struct {
	cfg     *Config
	log     *zap.Logger
	pairs   []Pair
	batches chan Batch
}

// New lists the data directory. It fails when there is nothing to read.
func New(cfg *Config, log *zap.Logger) (*Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	audio, err := FindFiles(cfg.DataDir, cfg.AudioPattern)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.Errorf("no audio files found in %s", cfg.DataDir)
	}

	var pairs []Pair
	if cfg.LCEnabled {
		midi, err := FindFiles(cfg.DataDir, cfg.MIDIPattern)
		if err != nil {
			return nil, err
		}
		if len(midi) == 0 {
			return nil, errors.Errorf("no midi files found in %s", cfg.DataDir)
		}
		pairs = MatchPairs(audio, midi, log)
		if len(pairs) == 0 {
			return nil, errors.Errorf("no audio file in %s has a midi match", cfg.DataDir)
		}
	} else {
		for _, name := range audio {
			pairs = append(pairs, Pair{Audio: name})
		}
	}

	log.Info("files", zap.Int("count", len(pairs)), zap.Bool("lc", cfg.LCEnabled))

	return &Reader{
		cfg:     cfg,
		log:     log,
		pairs:   pairs,
		batches: make(chan Batch, cfg.QueueSize),
	}, nil
}

// Batches is closed when Run returns.
func (r *Reader) Batches() <-chan Batch {
	return r.batches
}

func (r *Reader) Pairs() []Pair {
	return r.pairs
}

// Run feeds Batches until every epoch is done or ctx is cancelled. Up to
// Workers files are processed at once, each with its own cursor.
func (r *Reader) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := r.schedule(ctx)
	<-r.produce(ctx, jobs)

	close(r.batches)
	return ctx.Err()
}

// schedule emits the pairs in a new random order for every epoch.
func (r *Reader) schedule(ctx context.Context) <-chan Pair {
	out := make(chan Pair)

	seed := r.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))

	go func() {
		defer close(out)

		order := make([]Pair, len(r.pairs))
		for epoch := 0; r.cfg.Epochs == 0 || epoch < r.cfg.Epochs; epoch++ {
			copy(order, r.pairs)
			rnd.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})

			for _, p := range order {
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (r *Reader) produce(ctx context.Context, jobs <-chan Pair) <-chan struct{} {
	done := make(chan struct{}, 1)

	go func() {
		var wg sync.WaitGroup
		goroutines := make(chan struct{}, r.cfg.Workers)

	loop:
		for p := range jobs {
			select {
			case goroutines <- struct{}{}:
			case <-ctx.Done():
				r.log.Debug("produce context done")
				break loop
			}
			wg.Add(1)
			go func(p Pair) {
				defer wg.Done()

				if err := r.processFile(ctx, p); err != nil && ctx.Err() == nil {
					r.log.Warn("file skipped", zap.String("file", p.Audio), zap.Error(err))
				}
				<-goroutines
			}(p)
		}

		wg.Wait()
		close(goroutines)

		done <- struct{}{}
		close(done)
	}()

	return done
}

func (r *Reader) send(ctx context.Context, b Batch) error {
	select {
	case r.batches <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reader) processFile(ctx context.Context, p Pair) error {
	cfg := r.cfg
	name := filepath.Base(p.Audio)
	log := r.log.With(zap.String("file", name))

	audio, err := LoadAudio(p.Audio, cfg.SampleRate)
	if err != nil {
		return err
	}

	var offset int
	if cfg.SilenceThreshold > 0 {
		lo, hi := SilenceBounds(audio, cfg.SilenceThreshold, defaultFrameLength)
		if lo == hi {
			log.Warn("only silence, file ignored", zap.Float64("threshold", cfg.SilenceThreshold))
			return nil
		}
		audio, offset = audio[lo:hi], lo
	}

	var (
		up     *upsample.Upsampler
		cursor *upsample.Cursor
	)
	if cfg.LCEnabled {
		tl, err := timeline.ReadFile(p.MIDI, cfg.MIDIParser)
		if err != nil {
			return errors.Wrapf(err, "read %s", p.MIDI)
		}
		up, err = upsample.New(cfg.SampleRate, cfg.LCChannels, upsample.WithLogger(log.Named("upsample")))
		if err != nil {
			return err
		}
		cursor = upsample.NewCursor(tl)
	}

	rf := cfg.ReceptiveField
	padded := make([]float32, rf+len(audio))
	copy(padded[rf:], audio)

	if cfg.SampleSize == 0 {
		b := Batch{Name: name, Audio: padded}
		if up != nil {
			b.Conditioning = align.Whole(up, cursor, rf, int64(offset), len(audio))
			up.CheckEnd(cursor, int64(offset+len(audio)))
		}
		return r.send(ctx, b)
	}

	var stream *align.Stream
	if up != nil {
		stream = align.NewStream(up, cursor, rf, cfg.SampleSize, int64(offset))
	}

	chunk := 0
	for len(padded) > rf {
		n := rf + cfg.SampleSize
		if n > len(padded) {
			n = len(padded)
		}

		b := Batch{Name: name, Chunk: chunk, Audio: padded[:n:n]}
		if stream != nil {
			b.Conditioning = stream.Next(n)
		}
		if err := r.send(ctx, b); err != nil {
			return err
		}
		chunk++

		if len(padded) <= cfg.SampleSize {
			break
		}
		padded = padded[cfg.SampleSize:]
	}

	if up != nil {
		up.CheckEnd(cursor, int64(offset+len(audio)))
	}
	log.Debug("file done", zap.Int("chunks", chunk))

	return nil
}
