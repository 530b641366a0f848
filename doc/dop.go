package doc

import "encoding/binary"

// Dop is the Document Properties record (spec §9's supplemented feature: the
// original exposes far more of Dop than text extraction strictly needs).
// ParseDop fills FFacingPages, Fpc and DefaultTabWidth from the fixed Word97
// prefix; Lid and Codepage are not read and stay zero.
type Dop struct {
	FFacingPages    bool
	Fpc             uint8
	DefaultTabWidth uint16
	Lid             uint16 // language id; ParseDop leaves it zero
	Codepage        uint16 // ParseDop leaves it zero
}

// ParseDop decodes the fixed-position fields of Dop this parser exposes.
// Dop's first two bytes are a bit-packed word (spec MS-DOC 2.7.2): bit 0 is
// fFacingPages, bits 5-6 are fpc, and DefaultTabWidth is the next u16.
func ParseDop(data []byte) (*Dop, error) {
	if len(data) < 4 {
		return &Dop{}, nil // too small to carry anything useful; not fatal
	}
	flags := binary.LittleEndian.Uint16(data[0:2])
	tabWidth := binary.LittleEndian.Uint16(data[2:4])

	d := &Dop{
		FFacingPages:    flags&0x0001 != 0,
		Fpc:             uint8((flags >> 5) & 0x3),
		DefaultTabWidth: tabWidth,
	}
	return d, nil
}
