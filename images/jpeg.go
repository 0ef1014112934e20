package images

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// DensityUnits is JFIF density unit code.
type DensityUnits uint8

const (
	DensityNone DensityUnits = iota
	DensityPerInch
	DensityPerCm
)

var (
	app0Marker = []byte{0xFF, 0xE0}
	jfifIdent  = []byte{'J', 'F', 'I', 'F', 0x00, 0x01, 0x02}
)

// EnsureJFIFAPP0 inserts JFIF APP0 segment right after SOI unless an APP0
// segment is already there. Go JPEG encoder never writes one and some
// readers refuse such files. Second value reports if data was changed.
func EnsureJFIFAPP0(data []byte, units DensityUnits, xdensity, ydensity uint16) ([]byte, bool, error) {
	if len(data) < 4 {
		return nil, false, errors.New("jpeg data too short")
	}
	if data[0] != 0xFF || data[1] != 0xD8 {
		return nil, false, errors.New("no jpeg SOI marker")
	}
	if bytes.Equal(data[2:4], app0Marker) {
		return data, false, nil
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(data)+18))
	buf.Write(data[:2])
	buf.Write(app0Marker)
	_ = binary.Write(buf, binary.BigEndian, uint16(16))
	buf.Write(jfifIdent)
	buf.WriteByte(byte(units))
	_ = binary.Write(buf, binary.BigEndian, xdensity)
	_ = binary.Write(buf, binary.BigEndian, ydensity)
	buf.Write([]byte{0, 0}) // no thumbnail
	buf.Write(data[2:])
	return buf.Bytes(), true, nil
}
