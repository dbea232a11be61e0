package reader

import (
	"os"

	"github.com/Garik-/lcreader/pkg/timeline"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

var ErrInvalidConfig = errors.New("invalid reader config")

type Config struct {
	DataDir      string `yaml:"data_dir"`
	AudioPattern string `yaml:"audio_pattern"`
	MIDIPattern  string `yaml:"midi_pattern"`
	SampleRate   int    `yaml:"sample_rate"`

	LCEnabled  bool            `yaml:"lc_enabled"`
	LCChannels int             `yaml:"lc_channels"`
	MIDIParser timeline.Parser `yaml:"midi_parser"`

	// ReceptiveField zero samples are prepended to every file.
	ReceptiveField int `yaml:"receptive_field"`
	// SampleSize is the number of new samples per chunk, 0 feeds whole files.
	SampleSize int `yaml:"sample_size"`
	// SilenceThreshold is the RMS level under which leading and trailing
	// audio is trimmed, 0 disables trimming.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	QueueSize int `yaml:"queue_size"`
	Workers   int `yaml:"workers"`
	// Epochs is the number of passes over the files, 0 runs until stopped.
	Epochs int   `yaml:"epochs"`
	Seed   int64 `yaml:"seed"`
}

func DefaultConfig() *Config {
	return &Config{
		AudioPattern: "*.wav",
		MIDIPattern:  "*.mid",
		SampleRate:   16000,
		LCChannels:   128,
		MIDIParser:   timeline.ParserBuiltin,
		QueueSize:    32,
		Workers:      1,
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(name string) (*Config, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", name)
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return errors.Wrap(ErrInvalidConfig, "data_dir is required")
	case c.SampleRate <= 0:
		return errors.Wrapf(ErrInvalidConfig, "sample_rate %d", c.SampleRate)
	case c.LCEnabled && c.LCChannels <= 0:
		return errors.Wrapf(ErrInvalidConfig, "lc_channels %d", c.LCChannels)
	case c.ReceptiveField < 0:
		return errors.Wrapf(ErrInvalidConfig, "receptive_field %d", c.ReceptiveField)
	case c.SampleSize < 0:
		return errors.Wrapf(ErrInvalidConfig, "sample_size %d", c.SampleSize)
	case c.SilenceThreshold < 0:
		return errors.Wrapf(ErrInvalidConfig, "silence_threshold %g", c.SilenceThreshold)
	case c.QueueSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "queue_size %d", c.QueueSize)
	case c.Workers <= 0:
		return errors.Wrapf(ErrInvalidConfig, "workers %d", c.Workers)
	case c.Epochs < 0:
		return errors.Wrapf(ErrInvalidConfig, "epochs %d", c.Epochs)
	}

	switch c.MIDIParser {
	case timeline.ParserBuiltin, timeline.ParserSMF:
	default:
		return errors.Wrapf(ErrInvalidConfig, "midi_parser %q", c.MIDIParser)
	}

	return nil
}
