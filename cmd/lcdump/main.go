package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Garik-/lcreader/pkg/timeline"
	"github.com/Garik-/lcreader/pkg/upsample"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	parserFlag     string
	sampleRateFlag int
	channelsFlag   int
	samplesFlag    int64
	startFlag      int64
	debugFlag      bool
)

type summary struct {
	File       string  `json:"file"`
	Resolution uint16  `json:"resolution"`
	Events     int     `json:"events"`
	Notes      int     `json:"notes"`
	Ticks      uint64  `json:"ticks"`
	DurationUS float64 `json:"duration_us"`
	Samples    int64   `json:"samples_at_rate"`

	Range *[2]int64 `json:"range,omitempty"`
	Spans []span    `json:"spans,omitempty"`
	Drift string    `json:"drift,omitempty"`
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lcdump <file.mid>",
	Short: "Print the timeline of a midi file and its upsampled note spans",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&parserFlag, "parser", string(timeline.ParserBuiltin), "MIDI parser, builtin or smf")
	f.IntVar(&sampleRateFlag, "sample-rate", 16000, "Audio sample rate")
	f.IntVar(&channelsFlag, "channels", 128, "Conditioning channels")
	f.Int64VarP(&samplesFlag, "samples", "n", 0, "Upsample this many samples and print active note spans")
	f.Int64Var(&startFlag, "start", 0, "First sample of the upsampled range, may be negative")
	f.BoolVar(&debugFlag, "debug", false, "Log skipped events")
}

func runDump(cmd *cobra.Command, args []string) error {
	log := zap.NewNop()
	if debugFlag {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		log = l
		defer log.Sync() //nolint:errcheck
	}

	tl, err := timeline.ReadFile(args[0], timeline.Parser(parserFlag))
	if err != nil {
		return err
	}

	var drift *upsample.Drift
	up, err := upsample.New(sampleRateFlag, channelsFlag,
		upsample.WithLogger(log.Named("upsample")),
		upsample.WithDriftHandler(func(d upsample.Drift) { drift = &d }),
	)
	if err != nil {
		return err
	}

	cursor := upsample.NewCursor(tl)
	duration := up.TrackEnd(cursor)

	out := summary{
		File:       args[0],
		Resolution: tl.Resolution(),
		Events:     tl.Len(),
		Notes:      tl.Notes(),
		Ticks:      tl.Ticks(),
		DurationUS: duration,
		Samples:    upsample.TimeToSample(duration, sampleRateFlag),
	}

	if samplesFlag > 0 {
		end := startFlag + samplesFlag
		seq := up.Upsample(cursor, startFlag, end)
		out.Range = &[2]int64{startFlag, end}
		out.Spans = activeSpans(seq, startFlag)
		if drift != nil {
			out.Drift = drift.Kind.String()
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
