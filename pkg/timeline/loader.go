package timeline

import (
	"fmt"
	"io"
	"os"

	"github.com/Garik-/lcreader/pkg/midi"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Parser selects the SMF reader used by ReadFile.
type Parser string

const (
	// ParserBuiltin uses the seeking decoder in pkg/midi.
	ParserBuiltin Parser = "builtin"
	// ParserSMF uses gitlab.com/gomidi/midi/v2/smf.
	ParserSMF Parser = "smf"
)

// ReadFile loads and merges every track of a standard MIDI file.
func ReadFile(name string, parser Parser) (*Timeline, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch parser {
	case ParserSMF:
		return ReadSMF(f)
	case ParserBuiltin, "":
		return Decode(f)
	default:
		return nil, fmt.Errorf("unknown midi parser %q", parser)
	}
}

// Decode reads a standard MIDI file with the builtin decoder.
func Decode(r io.ReadSeeker) (*Timeline, error) {
	decoder := midi.NewDecoder(r)
	if err := decoder.Decode(); err != nil {
		return nil, err
	}
	return FromDecoder(decoder)
}

// FromDecoder converts the tracks of a decoded file.
func FromDecoder(d *midi.Decoder) (*Timeline, error) {
	if d.TimeFormat != midi.MetricalTF {
		return nil, &MalformedError{Index: -1, Reason: "SMPTE time division is not supported"}
	}

	tracks := make([][]Event, 0, len(d.Tracks))
	for _, track := range d.Tracks {
		events := make([]Event, 0, len(track.Events)+1)
		for _, e := range track.Events {
			events = append(events, fromDecoderEvent(e))
		}
		tracks = append(tracks, closeTrack(events))
	}

	return New(d.TicksPerQuarterNote, Merge(tracks...))
}

func fromDecoderEvent(e *midi.Event) Event {
	out := Event{Delta: e.TimeDelta, Raw: e.Status}

	switch {
	case e.MsgType == midi.NoteOnMsg && e.Velocity > 0:
		out.Kind = NoteOn
		out.Note = e.Note
	case e.MsgType == midi.NoteOnMsg, e.MsgType == midi.NoteOffMsg:
		out.Kind = NoteOff
		out.Note = e.Note
	case e.IsMeta(midi.MetaSetTempo):
		out.Kind = TempoChange
		out.Tempo = e.Tempo
	case e.IsMeta(midi.MetaEndOfTrack):
		out.Kind = EndOfTrack
	default:
		out.Kind = Other
	}

	return out
}

// ReadSMF reads a standard MIDI file with gomidi.
func ReadSMF(r io.Reader) (*Timeline, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	return FromSMF(s)
}

// FromSMF converts the tracks of a gomidi SMF.
func FromSMF(s *smf.SMF) (*Timeline, error) {
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, &MalformedError{Index: -1, Reason: "SMPTE time division is not supported"}
	}

	tracks := make([][]Event, 0, len(s.Tracks))
	for _, track := range s.Tracks {
		events := make([]Event, 0, len(track)+1)
		for _, ev := range track {
			events = append(events, fromSMFMessage(ev.Delta, ev.Message))
		}
		tracks = append(tracks, closeTrack(events))
	}

	return New(ticks.Resolution(), Merge(tracks...))
}

func fromSMFMessage(delta uint32, msg smf.Message) Event {
	out := Event{Delta: delta}
	if len(msg) > 0 {
		out.Raw = msg[0]
	}

	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		out.Kind = NoteOn
		out.Note = key
	case msg.GetNoteEnd(&ch, &key):
		out.Kind = NoteOff
		out.Note = key
	case len(msg) >= 6 && msg[0] == 0xFF && msg[1] == midi.MetaSetTempo && msg[2] == 0x03:
		// FF 51 03 tt tt tt
		out.Kind = TempoChange
		out.Tempo = uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
	case len(msg) >= 2 && msg[0] == 0xFF && msg[1] == midi.MetaEndOfTrack:
		out.Kind = EndOfTrack
	default:
		out.Kind = Other
	}

	return out
}
