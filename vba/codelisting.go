package vba

import (
	"encoding/binary"
	"fmt"
)

// codeListingMagic is the fixed 4-byte magic preceding the code listing
// (spec §4.9).
const codeListingMagic = 0x0001CAFE

// CodeLine is one 12-byte CodeLine record (spec §4.9): file offset and
// length of the line's code bytes within the shared code buffer.
type CodeLine struct {
	Offset uint32
	Len    uint32
	Flags  uint32 // remaining 4 bytes of the 12-byte record, version-specific
}

// nextOffset computes the expected offset of the following contiguous line,
// 8-byte aligned (spec §4.9: "non-contiguous" detection).
func (l CodeLine) nextOffset() uint32 {
	if l.Offset == 0xFFFFFFFF || l.Len == 0 {
		return l.Offset
	}
	end := l.Offset + l.Len
	pad := (8 - (end & 7)) & 7
	return end + pad
}

func (l CodeLine) empty() bool {
	return l.Offset == 0xFFFFFFFF || l.Len == 0
}

// parseCodeListing decodes the magic, line-count, CodeLine array, 10 filler
// bytes, and the trailing code buffer (spec §4.9).
func parseCodeListing(data []byte) ([]CodeLine, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("code listing shorter than its magic")
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != codeListingMagic {
		return nil, nil, fmt.Errorf("bad code listing magic 0x%08x, want 0x%08x", magic, codeListingMagic)
	}
	off := 4
	if off+2 > len(data) {
		return nil, nil, fmt.Errorf("truncated before nlines")
	}
	nlines := int(binary.LittleEndian.Uint16(data[off : off+2]))
	off += 2

	need := nlines * 12
	if off+need > len(data) {
		return nil, nil, fmt.Errorf("code line array of %d lines runs past end of data", nlines)
	}
	lines := make([]CodeLine, nlines)
	maxEnd := uint32(0)
	for i := 0; i < nlines; i++ {
		b := off + i*12
		l := CodeLine{
			Offset: binary.LittleEndian.Uint32(data[b : b+4]),
			Len:    binary.LittleEndian.Uint32(data[b+4 : b+8]),
			Flags:  binary.LittleEndian.Uint32(data[b+8 : b+12]),
		}
		lines[i] = l
		if !l.empty() {
			aligned := l.nextOffset()
			if aligned > maxEnd {
				maxEnd = aligned
			}
		}
	}
	off += need

	off += 10 // filler
	if off > len(data) {
		return nil, nil, fmt.Errorf("truncated before code buffer")
	}

	bufLen := int(maxEnd)
	if off+bufLen > len(data) {
		bufLen = len(data) - off
	}
	buf := data[off : off+bufLen]
	return lines, buf, nil
}

// codeViewFor returns the byte slice for line l within buf.
func codeViewFor(buf []byte, l CodeLine) ([]byte, error) {
	if l.empty() {
		return nil, nil
	}
	end := l.Offset + l.Len
	if uint64(end) > uint64(len(buf)) {
		return nil, fmt.Errorf("line at offset %d length %d exceeds code buffer length %d", l.Offset, l.Len, len(buf))
	}
	return buf[l.Offset:end], nil
}
