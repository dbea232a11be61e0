package midi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

type nextChunkType int

const (
	eventChunk nextChunkType = iota + 1
	trackChunk
)

type timeFormat int

const (
	MetricalTF timeFormat = iota + 1
	TimeCodeTF
)

// Message types, taken from the high nibble of the status byte.
const (
	NoteOffMsg uint8 = 0x8
	NoteOnMsg  uint8 = 0x9
	SystemMsg  uint8 = 0xF
)

// Meta event types the timeline cares about.
const (
	MetaSetTempo   uint8 = 0x51
	MetaEndOfTrack uint8 = 0x2F
)

var (
	headerChunkID = [4]byte{0x4D, 0x54, 0x68, 0x64}
	trackChunkID  = [4]byte{0x4D, 0x54, 0x72, 0x6B}

	// ErrFmtNotSupported is a generic error reporting an unknown format.
	ErrFmtNotSupported = errors.New("format not supported")
	// ErrUnexpectedData is a generic error reporting that the parser encountered unexpected data.
	ErrUnexpectedData = errors.New("unexpected data content")
)

// Event is a single track event. Every event is kept, including the ones
// the timeline ignores, so that the sum of deltas stays the track length.
type Event struct {
	TimeDelta uint32
	MsgType   uint8
	Status    uint8
	Note      uint8
	Velocity  uint8

	// MetaType and Tempo are set for meta events only. Tempo is in microseconds per beat.
	MetaType uint8
	Tempo    uint32
}

// IsMeta reports whether e is a meta event of the given type.
func (e *Event) IsMeta(metaType uint8) bool {
	return e.Status == 0xFF && e.MetaType == metaType
}

type Track struct {
	Events []*Event
}

type Decoder struct {
	r            io.ReadSeeker
	lastEvent    *Event
	currentTrack *Track
	offset       int64

	Format              uint16
	NumTracks           uint16
	TicksPerQuarterNote uint16
	TimeFormat          timeFormat
	Tracks              []*Track
}

func (d *Decoder) Decode() error {
	if _, err := d.r.Seek(0, io.SeekStart); err != nil {
		return err
	}

	var code [4]byte
	d.offset = 0
	d.Tracks = nil
	d.lastEvent = nil

	if err := binary.Read(d.r, binary.BigEndian, &code); err != nil {
		return err
	}

	if code != headerChunkID {
		return fmt.Errorf("%w - %v", ErrFmtNotSupported, code)
	}

	d.offset += 4 // [4]byte code

	var headerSize uint32
	if err := binary.Read(d.r, binary.BigEndian, &headerSize); err != nil {
		return err
	}

	if headerSize != 6 {
		return fmt.Errorf("%w - expected header size to be 6, was %d", ErrFmtNotSupported, headerSize)
	}

	d.offset += 4 // uint32 headerSize

	var header struct {
		Format    uint16
		NumTracks uint16
		Division  uint16
	}
	if err := binary.Read(d.r, binary.BigEndian, &header); err != nil {
		return err
	}
	d.offset += 2 + 2 + 2

	d.Format = header.Format
	d.NumTracks = header.NumTracks

	if (header.Division & 0x8000) == 0 {
		d.TicksPerQuarterNote = header.Division & 0x7FFF
		d.TimeFormat = MetricalTF
	} else {
		d.TicksPerQuarterNote = 0
		d.TimeFormat = TimeCodeTF
	}

	nextChunk, err := d.parseTrack()
	if err != nil && err != io.EOF {
		return err
	}

	for err != io.EOF {
		switch nextChunk {
		case eventChunk:
			nextChunk, err = d.parseEvent()
		case trackChunk:
			nextChunk, err = d.parseTrack()
		}

		if err != nil && err != io.EOF {
			return err
		}
	}

	_, err = d.r.Seek(0, io.SeekStart)
	return err
}

func (d *Decoder) parseTrack() (nextChunkType, error) {
	id, err := d.IDnSize()
	if err != nil {
		return trackChunk, err
	}
	if id != trackChunkID {
		return trackChunk, fmt.Errorf("%w - expected track chunk ID %v, got %v", ErrUnexpectedData, trackChunkID, id)
	}

	d.currentTrack = new(Track)
	d.Tracks = append(d.Tracks, d.currentTrack)
	d.lastEvent = nil // running status never crosses a chunk

	return eventChunk, nil
}

func (d *Decoder) parseEvent() (nextChunkType, error) {
	timeDelta, err := d.varLen()
	if err != nil {
		return eventChunk, err
	}

	// status byte give us the msg type and channel.
	statusByte, err := d.readByte()
	if err != nil {
		return eventChunk, err
	}

	e := &Event{TimeDelta: timeDelta, Status: statusByte}
	e.MsgType = (statusByte & 0xF0) >> 4

	if statusByte&0x80 == 0 {
		if d.lastEvent == nil || !isVoiceMsgType(d.lastEvent.MsgType) {
			return eventChunk, fmt.Errorf("%w - data byte %#x without running status at offset %d", ErrUnexpectedData, statusByte, d.offset-1)
		}

		e.MsgType = d.lastEvent.MsgType
		e.Status = d.lastEvent.Status

		d.offset -= 1
		if _, err := d.r.Seek(-1, io.SeekCurrent); err != nil {
			return eventChunk, err
		}
	}

	d.lastEvent = e

	// Extract values based on message type
	switch e.MsgType {

	case 0xC, 0xD:
		if err := d.skip(1); err != nil {
			return eventChunk, err
		}

	case 0xA, 0xB, 0xE:
		if err := d.skip(2); err != nil {
			return eventChunk, err
		}

	case NoteOffMsg, NoteOnMsg:
		if e.Note, err = d.uint7(); err != nil {
			return eventChunk, err
		}
		if e.Velocity, err = d.uint7(); err != nil {
			return eventChunk, err
		}

	case SystemMsg:
		return d.parseSystemMsg(e)
	}

	d.currentTrack.Events = append(d.currentTrack.Events, e)
	return eventChunk, nil
}

func (d *Decoder) parseSystemMsg(e *Event) (nextChunkType, error) {
	switch e.Status {
	case 0xFF:
		return d.parseMetaMsg(e)

	case 0xF0, 0xF7:
		if err := d.varLenTxt(); err != nil {
			return eventChunk, err
		}

	default:
		return eventChunk, fmt.Errorf("%w - status %#x is not allowed in a track chunk", ErrUnexpectedData, e.Status)
	}

	d.currentTrack.Events = append(d.currentTrack.Events, e)
	return eventChunk, nil
}

func (d *Decoder) parseMetaMsg(e *Event) (nextChunkType, error) {
	var err error
	if e.MetaType, err = d.readByte(); err != nil {
		return eventChunk, err
	}

	switch e.MetaType {
	case MetaSetTempo:
		var l uint32
		if l, err = d.varLen(); err != nil {
			return eventChunk, err
		}
		if l != 3 {
			return eventChunk, fmt.Errorf("%w - set tempo length %d, expected 3", ErrUnexpectedData, l)
		}
		var tt [3]byte
		if err = binary.Read(d.r, binary.BigEndian, &tt); err != nil {
			return eventChunk, err
		}
		d.offset += 3
		e.Tempo = uint32(tt[0])<<16 | uint32(tt[1])<<8 | uint32(tt[2])

	case MetaEndOfTrack:
		if err = d.varLenTxt(); err != nil {
			return eventChunk, err
		}
		d.currentTrack.Events = append(d.currentTrack.Events, e)
		return trackChunk, nil

	default:
		if err = d.varLenTxt(); err != nil {
			return eventChunk, err
		}
	}

	d.currentTrack.Events = append(d.currentTrack.Events, e)
	return eventChunk, nil
}

func NewDecoder(r io.ReadSeeker) *Decoder {
	return &Decoder{r: r, offset: 0}
}
