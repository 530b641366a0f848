package doc

import (
	"encoding/binary"
	"fmt"
)

// Sttb is a generic "string table" (spec §9's supplemented feature: the
// original has several STTB-shaped tables; SttbfAssoc is the one this
// parser wires in via Fib.SttbfAssocPosition).
type Sttb = []string

// ParseSttb decodes an STTB in either form. The extended form starts with a
// 0xFFFF marker, then a u16 count and a u16 giving each entry's fixed
// extra-data size (discarded here since SttbfAssoc carries none). Otherwise
// the first u16 is itself the count and the strings are single-byte
// length-prefixed.
func ParseSttb(data []byte) (Sttb, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("doc: STTB shorter than its marker field")
	}
	marker := binary.LittleEndian.Uint16(data[0:2])
	off := 2
	extended := marker == 0xFFFF

	var count uint16
	var extraSize uint16
	if extended {
		if len(data) < off+4 {
			return nil, fmt.Errorf("doc: extended STTB truncated before count/extraSize")
		}
		count = binary.LittleEndian.Uint16(data[off : off+2])
		extraSize = binary.LittleEndian.Uint16(data[off+2 : off+4])
		off += 4
	} else {
		count = marker
	}

	out := make([]string, 0, count)
	for i := uint16(0); i < count; i++ {
		if extended {
			if len(data) < off+2 {
				return nil, fmt.Errorf("doc: STTB entry %d: missing length prefix", i)
			}
			cch := binary.LittleEndian.Uint16(data[off : off+2])
			off += 2
			need := int(cch) * 2
			if len(data) < off+need {
				return nil, fmt.Errorf("doc: STTB entry %d: truncated UTF-16 payload (need %d bytes)", i, need)
			}
			u16 := make([]uint16, cch)
			for j := range u16 {
				u16[j] = binary.LittleEndian.Uint16(data[off+2*j:])
			}
			out = append(out, decodeUTF16(u16))
			off += need + int(extraSize)
		} else {
			if len(data) < off+1 {
				return nil, fmt.Errorf("doc: STTB entry %d: missing length byte", i)
			}
			cch := int(data[off])
			off++
			if len(data) < off+cch {
				return nil, fmt.Errorf("doc: STTB entry %d: truncated ANSI payload", i)
			}
			out = append(out, string(data[off:off+cch]))
			off += cch
		}
	}
	return out, nil
}

func decodeUTF16(u16 []uint16) string {
	runes := make([]rune, 0, len(u16))
	for i := 0; i < len(u16); i++ {
		c := u16[i]
		if c >= 0xD800 && c <= 0xDBFF && i+1 < len(u16) {
			lo := u16[i+1]
			if lo >= 0xDC00 && lo <= 0xDFFF {
				r := (rune(c-0xD800) << 10) | rune(lo-0xDC00)
				runes = append(runes, r+0x10000)
				i++
				continue
			}
		}
		runes = append(runes, rune(c))
	}
	return string(runes)
}
