package midi

import (
	"encoding/binary"
	"io"
)

// add offset
func (d *Decoder) readByte() (byte, error) {
	var b byte
	err := binary.Read(d.r, binary.BigEndian, &b)
	if err == nil {
		d.offset += 1 // read byte
	}
	return b, err
}

func (d *Decoder) uint7() (uint8, error) {
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	return b & 0x7f, nil
}

// VarLen returns the variable length value at the exact parser location.
func (d *Decoder) varLen() (val uint32, err error) {
	buf := []byte{}
	var lastByte bool

	for !lastByte {
		b, err := d.readByte()
		if err != nil {
			return 0, err
		}
		buf = append(buf, b)
		lastByte = b>>7 == 0x0
	}

	val, _ = decodeVarint(buf)
	return val, nil
}

func (d *Decoder) skip(n int64) error {
	if n == 0 {
		return nil
	}
	if _, err := d.r.Seek(n, io.SeekCurrent); err != nil {
		return err
	}
	d.offset += n
	return nil
}

func (d *Decoder) varLenTxt() error {
	l, err := d.varLen()
	if err != nil {
		return err
	}
	return d.skip(int64(l))
}

func (d *Decoder) IDnSize() ([4]byte, error) {
	var ID [4]byte
	if err := binary.Read(d.r, binary.BigEndian, &ID); err != nil {
		return ID, err
	}
	d.offset += 4 // [4]byte ID

	if _, err := d.r.Seek(4, io.SeekCurrent); err != nil {
		return ID, err
	}
	d.offset += 4 // uint32 blockSize

	return ID, nil
}
