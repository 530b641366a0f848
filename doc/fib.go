// Package doc implements the Word Binary File Format (.doc) text extraction
// engine: FIB parsing, the piece table, the character iterator, and the
// CHPX formatting-run cache (spec §C5-C8).
package doc

import (
	"encoding/binary"
	"fmt"

	"olecore/internal/xlog"
)

// FibBase is the fixed 32-byte header every FIB begins with.
type FibBase struct {
	WIdent    uint16
	NFib      uint16
	Unused    uint16
	Lid       uint16
	PnNext    uint16
	Flags     uint16
	NFibBack  uint16
	LKey      uint32
	Envr      uint8
	Flags2    uint8
	Reserved3 uint16
	Reserved4 uint16
	Reserved5 uint32
	Reserved6 uint32
}

// Obfuscation/encryption bits within FibBase.Flags (spec §4.5/§9).
const (
	fibFlagEncrypted     = 0x0100
	fibFlagWhichTblStm   = 0x0200
	fibFlagObfuscated    = 0x8000
)

func (b *FibBase) Encrypted() bool   { return b.Flags&fibFlagEncrypted != 0 }
func (b *FibBase) Obfuscated() bool  { return b.Flags&fibFlagObfuscated != 0 }
func (b *FibBase) UsesTable1() bool  { return b.Flags&fibFlagWhichTblStm != 0 }

// FibRgLw97 indices this parser cares about (spec §4.5: ccpText drives the
// piece table's character-position domain).
const (
	idxCbMac      = 0
	idxCcpText    = 3
	idxCcpFtn     = 4
	idxCcpHdd     = 5
	idxCcpAtn     = 7
	idxCcpEdn     = 8
	idxCcpTxbx    = 9
	idxCcpHdrTxbx = 10
)

// FibRgFcLcb97 u32 indices, fc at the even index and lcb at the odd one
// (spec §4.5/§4.6/§4.8's required fields). The
// array is positional and append-only across nFib versions, so indices
// valid for Word97 remain valid for every later layout this parser accepts.
const (
	idxFcDop, idxLcbDop                 = 62, 63
	idxFcSttbfAssoc, idxLcbSttbfAssoc   = 64, 65
	idxFcClx, idxLcbClx                 = 66, 67
	idxFcPlcfBteChpx, idxLcbPlcfBteChpx = 24, 25
)

// Valid FibRgFcLcb97 pair counts across nFib versions (spec §4.5).
var validFcLcbCounts = map[uint16]bool{
	0x005D: true, // Word97
	0x006C: true, // Word2000
	0x0088: true, // Word2002
	0x00A4: true, // Word2003
	0x00B7: true, // Word2007
}

// Fib is the parsed File Information Block: the positional fields this
// parser extracts. The raw fixed-size arrays are not retained.
type Fib struct {
	Base FibBase

	NFib uint16 // effective version: FibBase.NFib unless overridden below

	ccpText, ccpFtn, ccpHdd, ccpAtn, ccpEdn, ccpTxbx, ccpHdrTxbx uint32

	fcDop, lcbDop               uint32
	fcSttbfAssoc, lcbSttbfAssoc uint32
	fcClx, lcbClx               uint32
	fcPlcfBteChpx, lcbPlcfBteChpx uint32
}

// CcpText returns the main document's character count.
func (f *Fib) CcpText() uint32 { return f.ccpText }

// DocPart names one of the logical text ranges a .doc concatenates into a
// single CP space, in on-disk order (spec §4.7's "DocPart").
type DocPart int

const (
	PartMain DocPart = iota
	PartFootnote
	PartHeader
	PartAnnotation
	PartEndnote
	PartTextbox
	PartHeaderTextbox
)

// Range returns [start_cp, end_cp) for part, computed by summing the
// character counts of every part that precedes it on disk (spec §4.7
// "Setup": "compute start by checked-summing the preceding parts' character
// counts").
func (f *Fib) Range(part DocPart) (start, end uint32, err error) {
	counts := []uint32{f.ccpText, f.ccpFtn, f.ccpHdd, f.ccpAtn, f.ccpEdn, f.ccpTxbx, f.ccpHdrTxbx}
	if int(part) >= len(counts) {
		return 0, 0, fmt.Errorf("doc: unknown DocPart %d", part)
	}
	var sum uint64
	for i := 0; i < int(part); i++ {
		sum += uint64(counts[i])
		if sum > 0xFFFFFFFF {
			return 0, 0, fmt.Errorf("doc: DocPart offset overflow summing preceding parts")
		}
	}
	start = uint32(sum)
	sum += uint64(counts[part])
	if sum > 0xFFFFFFFF {
		return 0, 0, fmt.Errorf("doc: DocPart %d range overflow", part)
	}
	return start, uint32(sum), nil
}

// ClxPosition returns the Clx's offset and length within the table stream.
func (f *Fib) ClxPosition() (fc, lcb uint32) { return f.fcClx, f.lcbClx }

// DopPosition returns the Dop's offset and length within the table stream.
func (f *Fib) DopPosition() (fc, lcb uint32) { return f.fcDop, f.lcbDop }

// SttbfAssocPosition returns SttbfAssoc's offset and length within the table stream.
func (f *Fib) SttbfAssocPosition() (fc, lcb uint32) { return f.fcSttbfAssoc, f.lcbSttbfAssoc }

// PlcfBteChpxPosition returns PlcfBteChpx's offset and length within the table stream.
func (f *Fib) PlcfBteChpxPosition() (fc, lcb uint32) { return f.fcPlcfBteChpx, f.lcbPlcfBteChpx }

// ParseFib parses the fixed FIB prefix from the WordDocument stream's first
// bytes (spec §4.5: FibBase, then Csw/FibRgW97, Cslw/FibRgLw97, then the
// nFib-sized FibRgFcLcb array, then CswNew/FibRgCswNew).
func ParseFib(data []byte) (*Fib, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("doc: FIB shorter than FibBase (%d bytes)", len(data))
	}
	base := FibBase{
		WIdent:    binary.LittleEndian.Uint16(data[0:2]),
		NFib:      binary.LittleEndian.Uint16(data[2:4]),
		Unused:    binary.LittleEndian.Uint16(data[4:6]),
		Lid:       binary.LittleEndian.Uint16(data[6:8]),
		PnNext:    binary.LittleEndian.Uint16(data[8:10]),
		Flags:     binary.LittleEndian.Uint16(data[10:12]),
		NFibBack:  binary.LittleEndian.Uint16(data[12:14]),
		LKey:      binary.LittleEndian.Uint32(data[14:18]),
		Envr:      data[18],
		Flags2:    data[19],
		Reserved3: binary.LittleEndian.Uint16(data[20:22]),
		Reserved4: binary.LittleEndian.Uint16(data[22:24]),
		Reserved5: binary.LittleEndian.Uint32(data[24:28]),
		Reserved6: binary.LittleEndian.Uint32(data[28:32]),
	}
	if base.WIdent != 0xA5EC {
		return nil, fmt.Errorf("doc: bad FIB magic 0x%04x, want 0xA5EC", base.WIdent)
	}

	off := 32
	csw, err := readU16(data, &off)
	if err != nil {
		return nil, err
	}
	if csw != 0x000E {
		xlog.L.Printf("anomaly: csw %d differs from canonical 14", csw)
	}
	off += int(csw) * 2 // FibRgW97, unused by this extractor

	cslw, err := readU16(data, &off)
	if err != nil {
		return nil, err
	}
	if cslw < 11 {
		return nil, fmt.Errorf("doc: cslw %d below the minimum 11 fixed FibRgLw97 fields", cslw)
	}
	lwStart := off
	if lwStart+int(cslw)*4 > len(data) {
		return nil, fmt.Errorf("doc: FibRgLw97 truncated")
	}
	lw := func(idx int, name string) (uint32, error) {
		v := binary.LittleEndian.Uint32(data[lwStart+idx*4 : lwStart+idx*4+4])
		// Each ccp* field is validated independently and named in the
		// diagnostic, rather than lumping every failure onto one field name
		// (spec §9's "negative ccp* values" open question decision).
		if int32(v) < 0 {
			return 0, fmt.Errorf("doc: %s is negative (0x%08x)", name, v)
		}
		return v, nil
	}
	ccpText, err := lw(idxCcpText, "ccpText")
	if err != nil {
		return nil, err
	}
	ccpFtn, err := lw(idxCcpFtn, "ccpFtn")
	if err != nil {
		return nil, err
	}
	ccpHdd, err := lw(idxCcpHdd, "ccpHdd")
	if err != nil {
		return nil, err
	}
	ccpAtn, err := lw(idxCcpAtn, "ccpAtn")
	if err != nil {
		return nil, err
	}
	ccpEdn, err := lw(idxCcpEdn, "ccpEdn")
	if err != nil {
		return nil, err
	}
	ccpTxbx, err := lw(idxCcpTxbx, "ccpTxbx")
	if err != nil {
		return nil, err
	}
	ccpHdrTxbx, err := lw(idxCcpHdrTxbx, "ccpHdrTxbx")
	if err != nil {
		return nil, err
	}
	off += int(cslw) * 4

	cbRgFcLcb, err := readU16(data, &off)
	if err != nil {
		return nil, err
	}
	if !validFcLcbCounts[cbRgFcLcb] {
		xlog.L.Printf("anomaly: unrecognized FibRgFcLcb count 0x%04x, attempting best-effort parse", cbRgFcLcb)
	}
	fcLcbStart := off
	need := int(cbRgFcLcb) * 8
	if fcLcbStart+need > len(data) {
		return nil, fmt.Errorf("doc: FibRgFcLcb array truncated: need %d bytes from offset %d, have %d", need, fcLcbStart, len(data))
	}
	get := func(pairIdx int) uint32 {
		b := fcLcbStart + pairIdx*4
		return binary.LittleEndian.Uint32(data[b : b+4])
	}
	maxIdx := int(cbRgFcLcb) * 2
	requireIdx := func(idx int, name string) error {
		if idx >= maxIdx {
			return fmt.Errorf("doc: FibRgFcLcb array too short for %s (need index %d, have %d entries)", name, idx, maxIdx)
		}
		return nil
	}
	for idx, name := range map[int]string{
		idxFcClx: "FcClx", idxLcbClx: "LcbClx",
	} {
		if err := requireIdx(idx, name); err != nil {
			return nil, err
		}
	}
	f := &Fib{
		Base:       base,
		NFib:       base.NFib,
		ccpText:    ccpText,
		ccpFtn:     ccpFtn,
		ccpHdd:     ccpHdd,
		ccpAtn:     ccpAtn,
		ccpEdn:     ccpEdn,
		ccpTxbx:    ccpTxbx,
		ccpHdrTxbx: ccpHdrTxbx,
		fcClx:      get(idxFcClx),
		lcbClx:     get(idxLcbClx),
	}
	if maxIdx > idxLcbDop {
		f.fcDop, f.lcbDop = get(idxFcDop), get(idxLcbDop)
	}
	if maxIdx > idxLcbSttbfAssoc {
		f.fcSttbfAssoc, f.lcbSttbfAssoc = get(idxFcSttbfAssoc), get(idxLcbSttbfAssoc)
	}
	if maxIdx > idxLcbPlcfBteChpx {
		f.fcPlcfBteChpx, f.lcbPlcfBteChpx = get(idxFcPlcfBteChpx), get(idxLcbPlcfBteChpx)
	}
	off += need

	// FibRgCswNew overrides NFib when present (spec §4.5: cswNew != 0 means
	// the effective version comes from FibRgCswNew.nFibNew, not FibBase.NFib).
	cswNew, err := readU16(data, &off)
	if err == nil && cswNew != 0 {
		if off+2 <= len(data) {
			f.NFib = binary.LittleEndian.Uint16(data[off : off+2])
		}
	}

	xlog.D.Printf("fib: nFib=0x%04x ccpText=%d fcClx=0x%x lcbClx=%d", f.NFib, f.ccpText, f.fcClx, f.lcbClx)
	return f, nil
}

func readU16(data []byte, off *int) (uint16, error) {
	if *off+2 > len(data) {
		return 0, fmt.Errorf("doc: FIB truncated at offset %d", *off)
	}
	v := binary.LittleEndian.Uint16(data[*off : *off+2])
	*off += 2
	return v, nil
}
