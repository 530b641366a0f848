package vba

import (
	"encoding/binary"
	"fmt"

	"olecore/internal/xlog"
)

// VBAVersionDisabled means the module's performance cache was stripped;
// decompilation is impossible (spec §6).
const VBAVersionDisabled = 0xFFFF

// is5x reports whether vbaVersion selects the "5x" header shape rather than
// the 97+ shape (spec §4.9). The boundary was reconstructed from a small
// corpus (spec §9's open question): this parser treats anything below 0x60
// as "5x" and fails with a diagnostic rather than guessing further, per the
// Open Question decision to never silently misparse a 5x module.
func is5x(vbaVersion uint16) bool { return vbaVersion < 0x60 }

// offsets97 names the fixed preamble's pointer fields for the 97+ header
// shape (spec §4.9 "97+ path").
type offsets97 struct {
	typeTbl  uint32
	refs     uint32
	me       uint32
	funcTbl  uint32
	missing  uint32
	cafe     uint32
	last     uint32
	phantom  uint32
	hasPhant bool
}

// offsets5x names the fixed preamble's pointer fields for the "5x" header
// shape (spec §4.9 "5x path").
type offsets5x struct {
	typeTbl uint32
	me      uint32
	funcTbl uint32
	cafe    uint32
	last    uint32
}

// Module is a loaded P-code module: its sub-tables plus the raw code
// listing buffer the line decompiler reads from (spec §4.9).
type Module struct {
	VBAVersion uint16
	SysKind    int
	Imports    *ImportTable
	TypeNames  *TypeNameTable
	FuncTable  *FunctionTable
	Lines      []CodeLine
	codeBuf    []byte

	is5x bool

	// Attributes are Attribute X.Y = Z lines queued by procedure
	// declarations while decompiling (spec §4.10's Procedures family,
	// supplemented per SPEC_FULL so callers can inspect them outside the
	// rendered text).
	attributes []string
}

// Attributes returns every Attribute line queued so far by decompiled
// procedure declarations.
func (m *Module) Attributes() []string { return append([]string(nil), m.attributes...) }

func (m *Module) queueAttribute(a string) { m.attributes = append(m.attributes, a) }

// LoadModule parses a module's performance-cache blob (spec §4.9). sysKind is
// the project-wide PROJECTSYSKIND value (1 = Win16, 3 = Win32/64) that gates
// the P-code opcode remap table and the function table's variable/procedure
// record sizing; it lives in the VBA project's directory stream, outside
// this module blob, so callers thread it in the same way they already
// thread vbaVersion.
func LoadModule(data []byte, vbaVersion uint16, sysKind int) (*Module, error) {
	if vbaVersion == VBAVersionDisabled {
		return nil, fmt.Errorf("vba: performance cache disabled (vbaVersion 0xFFFF)")
	}

	m := &Module{VBAVersion: vbaVersion, SysKind: sysKind, is5x: is5x(vbaVersion)}

	if m.is5x {
		off, err := parse5xHeader(data)
		if err != nil {
			// Fail with a diagnostic and let the caller continue with the
			// next module (spec §9's VB5-coverage open question).
			return nil, fmt.Errorf("vba: \"5x\" module header: %w", err)
		}
		return loadModuleBody(m, data, off.typeTbl, 0, off.me, off.funcTbl, off.cafe, off.last, 0, false)
	}

	off, err := parse97Header(data)
	if err != nil {
		return nil, fmt.Errorf("vba: 97+ module header: %w", err)
	}
	return loadModuleBody(m, data, off.typeTbl, off.refs, off.me, off.funcTbl, off.cafe, off.last, off.phantom, off.hasPhant)
}

func parse97Header(data []byte) (offsets97, error) {
	// Fixed-size preamble with ordered dwords pointing to: typetbl, refs,
	// ME, functbl, "missing", 0xCAFE, last, and an optional phantom dword.
	const fixedLen = 7 * 4
	if len(data) < fixedLen {
		return offsets97{}, fmt.Errorf("header shorter than the 97+ fixed preamble (%d bytes)", len(data))
	}
	u32 := func(i int) uint32 { return binary.LittleEndian.Uint32(data[i*4 : i*4+4]) }
	off := offsets97{
		typeTbl: u32(0),
		refs:    u32(1),
		me:      u32(2),
		funcTbl: u32(3),
		missing: u32(4),
		cafe:    u32(5),
		last:    u32(6),
	}
	if len(data) >= fixedLen+4 {
		phantom := u32(7)
		// Presence is detected by phantom >= offset_to_last (spec §4.9).
		if phantom >= off.last {
			off.phantom = phantom
			off.hasPhant = true
		}
	}
	return off, nil
}

func parse5xHeader(data []byte) (offsets5x, error) {
	// Earlier binary layout: several scratch u16 fields, a 32-entry u16
	// table, a 16-bit count of 8-u16 records, four constant-checked u32
	// counters, a skip region whose length is stated inline, then offsets
	// to typetbl, ME, functbl, cafe, last.
	off := 0
	readU16 := func() (uint16, error) {
		if off+2 > len(data) {
			return 0, fmt.Errorf("truncated at offset %d reading u16", off)
		}
		v := binary.LittleEndian.Uint16(data[off : off+2])
		off += 2
		return v, nil
	}
	readU32 := func() (uint32, error) {
		if off+4 > len(data) {
			return 0, fmt.Errorf("truncated at offset %d reading u32", off)
		}
		v := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		return v, nil
	}

	// Three scratch u16 fields (reserved/version-specific, unused here).
	for i := 0; i < 3; i++ {
		if _, err := readU16(); err != nil {
			return offsets5x{}, err
		}
	}
	// A 32-entry u16 table.
	for i := 0; i < 32; i++ {
		if _, err := readU16(); err != nil {
			return offsets5x{}, err
		}
	}
	// 16-bit count of 8-u16 records.
	recCount, err := readU16()
	if err != nil {
		return offsets5x{}, err
	}
	for i := 0; i < int(recCount)*8; i++ {
		if _, err := readU16(); err != nil {
			return offsets5x{}, err
		}
	}
	// Four constant-checked u32 counters: this reconstruction does not know
	// the exact expected constants, so it only verifies they're readable
	// (documented best-effort per spec §9).
	for i := 0; i < 4; i++ {
		if _, err := readU32(); err != nil {
			return offsets5x{}, err
		}
	}
	// A skip region whose length is stated inline.
	skipLen, err := readU32()
	if err != nil {
		return offsets5x{}, err
	}
	off += int(skipLen)
	if off > len(data) {
		return offsets5x{}, fmt.Errorf("skip region of length %d runs past end of header", skipLen)
	}

	typeTbl, err := readU32()
	if err != nil {
		return offsets5x{}, err
	}
	me, err := readU32()
	if err != nil {
		return offsets5x{}, err
	}
	funcTbl, err := readU32()
	if err != nil {
		return offsets5x{}, err
	}
	cafe, err := readU32()
	if err != nil {
		return offsets5x{}, err
	}
	last, err := readU32()
	if err != nil {
		return offsets5x{}, err
	}
	return offsets5x{typeTbl: typeTbl, me: me, funcTbl: funcTbl, cafe: cafe, last: last}, nil
}

func loadModuleBody(m *Module, data []byte, typeTbl, refs, me, funcTbl, cafe, last, phantom uint32, hasPhantom bool) (*Module, error) {
	_ = me
	_ = phantom

	if refs != 0 && refs < me && me <= uint32(len(data)) {
		if imp, err := LoadImportTable(data[refs:], me-refs); err == nil {
			m.Imports = imp
		} else {
			xlog.L.Printf("anomaly: import table parse failed: %v", err)
		}
	}

	if int(typeTbl) < len(data) {
		tn, err := parseTypeNameTable(data[typeTbl:])
		if err != nil {
			xlog.L.Printf("anomaly: type-names table parse failed: %v", err)
		} else {
			m.TypeNames = tn
		}
	}

	if int(funcTbl) <= len(data) {
		m.FuncTable = &FunctionTable{data: data[funcTbl:], sysKind: m.SysKind, is5x: m.is5x, hasPhantoms: hasPhantom}
	}

	if int(cafe) < len(data) {
		lines, buf, err := parseCodeListing(data[cafe:])
		if err != nil {
			return nil, fmt.Errorf("code listing: %w", err)
		}
		m.Lines = lines
		m.codeBuf = buf
	} else {
		return nil, fmt.Errorf("cafe offset %d exceeds module length %d", cafe, len(data))
	}

	nonContig := 0
	var prevNext uint32
	for i, l := range m.Lines {
		if i > 0 && l.Offset != prevNext {
			nonContig++
		}
		prevNext = l.nextOffset()
	}
	xlog.D.Printf("module: %d lines, %d non-contiguous", len(m.Lines), nonContig)

	return m, nil
}

// NumLines returns (total, non_contiguous) per spec §4.9's exposed counts.
func (m *Module) NumLines() (total, nonContiguous int) {
	total = len(m.Lines)
	var prevNext uint32
	for i, l := range m.Lines {
		if i > 0 && l.Offset != prevNext {
			nonContiguous++
		}
		prevNext = l.nextOffset()
	}
	return total, nonContiguous
}
