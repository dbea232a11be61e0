package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Garik-/lcreader/pkg/reader"
	"github.com/Garik-/lcreader/pkg/timeline"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFlag string
	debugFlag  bool
	overrides  = reader.DefaultConfig()
	parserFlag string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lcreader",
	Short: "Feed audio chunks with MIDI local conditioning",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var (
			l   *zap.Logger
			err error
		)
		if debugFlag {
			l, err = zap.NewDevelopment()
		} else {
			l, err = zap.NewProduction()
		}
		if err != nil {
			return err
		}
		enableDebugLogging(l)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reader and drain its batches",
	Long: `Reads every wav file of the data directory, pairs it with the midi file
of the same name and produces receptive-field padded chunks with their
conditioning. Batches are counted and dropped.`,
	Args: cobra.NoArgs,
	RunE: runReader,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Development logging")

	f := runCmd.Flags()
	f.StringVarP(&configFlag, "config", "c", "", "YAML config file")
	f.StringVarP(&overrides.DataDir, "data", "d", "", "Directory with wav and mid files")
	f.IntVar(&overrides.SampleRate, "sample-rate", overrides.SampleRate, "Audio sample rate")
	f.BoolVar(&overrides.LCEnabled, "lc", false, "Enable local conditioning")
	f.IntVar(&overrides.LCChannels, "lc-channels", overrides.LCChannels, "Conditioning channels")
	f.StringVar(&parserFlag, "parser", string(overrides.MIDIParser), "MIDI parser, builtin or smf")
	f.IntVar(&overrides.ReceptiveField, "receptive-field", 0, "Zero samples prepended to every file")
	f.IntVar(&overrides.SampleSize, "sample-size", 0, "New samples per chunk, 0 for whole files")
	f.Float64Var(&overrides.SilenceThreshold, "silence", 0, "RMS silence threshold, 0 disables trimming")
	f.IntVarP(&overrides.Workers, "workers", "p", overrides.Workers, "Files processed in parallel")
	f.IntVar(&overrides.Epochs, "epochs", 1, "Passes over the files, 0 runs until interrupted")
	f.Int64Var(&overrides.Seed, "seed", 0, "Shuffle seed, 0 uses the clock")

	rootCmd.AddCommand(runCmd)
}

// loadConfig reads --config when given and applies the flags set on the
// command line over it.
func loadConfig(cmd *cobra.Command) (*reader.Config, error) {
	overrides.MIDIParser = timeline.Parser(parserFlag)
	if configFlag == "" {
		return overrides, overrides.Validate()
	}

	cfg, err := reader.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("data", func() { cfg.DataDir = overrides.DataDir })
	set("sample-rate", func() { cfg.SampleRate = overrides.SampleRate })
	set("lc", func() { cfg.LCEnabled = overrides.LCEnabled })
	set("lc-channels", func() { cfg.LCChannels = overrides.LCChannels })
	set("parser", func() { cfg.MIDIParser = overrides.MIDIParser })
	set("receptive-field", func() { cfg.ReceptiveField = overrides.ReceptiveField })
	set("sample-size", func() { cfg.SampleSize = overrides.SampleSize })
	set("silence", func() { cfg.SilenceThreshold = overrides.SilenceThreshold })
	set("workers", func() { cfg.Workers = overrides.Workers })
	set("epochs", func() { cfg.Epochs = overrides.Epochs })
	set("seed", func() { cfg.Seed = overrides.Seed })

	return cfg, cfg.Validate()
}

func runReader(cmd *cobra.Command, args []string) error {
	defer cmdLog.Sync() //nolint:errcheck

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	r, err := reader.New(cfg, readerLog)
	if err != nil {
		return errors.Wrap(err, "start reader")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	var (
		batches, samples int
		files            = make(map[string]int)
		started          = time.Now()
	)
	for b := range r.Batches() {
		batches++
		samples += len(b.Audio)
		files[b.Name]++
		cmdLog.Debug("batch",
			zap.String("file", b.Name),
			zap.Int("chunk", b.Chunk),
			zap.Int("samples", len(b.Audio)),
			zap.Int("conditioning", b.Conditioning.Len()),
		)
	}

	err = <-errc
	cmdLog.Info("done",
		zap.Int("files", len(files)),
		zap.Int("batches", batches),
		zap.Int("samples", samples),
		zap.Duration("elapsed", time.Since(started)),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
