package vba

import (
	"encoding/binary"
	"fmt"
)

// FunctionTable is the opaque byte blob backing variable/procedure records
// and the identifier strings they reference; all structured access is by
// caller-supplied offset (spec §4.9: "Opaque byte blob with a small untyped
// header; all structured access is by offset from the caller"). sysKind,
// is5x and hasPhantoms are the module-level attributes that gate the
// fixed-size record layouts below.
type FunctionTable struct {
	data []byte

	sysKind     int
	is5x        bool
	hasPhantoms bool
}

func (f *FunctionTable) GetU16(off uint32) (uint16, error) {
	if uint64(off)+2 > uint64(len(f.data)) {
		return 0, fmt.Errorf("vba: function-table u16 read at %d out of range", off)
	}
	return binary.LittleEndian.Uint16(f.data[off : off+2]), nil
}

func (f *FunctionTable) GetU32(off uint32) (uint32, error) {
	if uint64(off)+4 > uint64(len(f.data)) {
		return 0, fmt.Errorf("vba: function-table u32 read at %d out of range", off)
	}
	return binary.LittleEndian.Uint32(f.data[off : off+4]), nil
}

func (f *FunctionTable) GetSlice(off, length uint32) ([]byte, error) {
	if uint64(off)+uint64(length) > uint64(len(f.data)) {
		return nil, fmt.Errorf("vba: function-table slice [%d,%d) out of range", off, uint64(off)+uint64(length))
	}
	return f.data[off : off+length], nil
}

func (f *FunctionTable) GetTail(off uint32) ([]byte, error) {
	if uint64(off) > uint64(len(f.data)) {
		return nil, fmt.Errorf("vba: function-table tail offset %d out of range", off)
	}
	return f.data[off:], nil
}

// GetNameAt reads a NUL-terminated ASCII identifier at off, the same
// convention spec §4.9 already specifies for ImportTable's fun_offset
// field. The project string table that identifier ids and type-name map ids
// resolve through isn't present in the available ground truth, so this
// parser treats those ids uniformly as function-table byte offsets into
// this same NUL-terminated-name convention (documented open-question
// decision, see DESIGN.md).
func (f *FunctionTable) GetNameAt(off uint32) (string, error) {
	if uint64(off) >= uint64(len(f.data)) {
		return "", fmt.Errorf("vba: function-table name offset %d out of range", off)
	}
	end := off
	for end < uint32(len(f.data)) && f.data[end] != 0 {
		end++
	}
	return string(f.data[off:end]), nil
}

// meSentinel is the Var.id value meaning "Me" rather than a name offset.
const meSentinel = 0xfffe

// Var record flag bits (spec §3's syskind-tagged variable-layout records).
const (
	varFlagSuffix       = 1 << 4  // has_suffix
	varFlagImplicitType = 1 << 5  // has_implicit_type
	varFlagBuiltinType  = 1 << 6  // has_builtin_type
	varFlagExplicitType = 1 << 12 // has_explicit_type
	varFlagNew          = 1 << 13 // has_new
)

// vartypeNames maps a builtin VARENUM-style type id (vartype masks it with
// 0xbf, clearing bit 6) to its VBA type-name keyword.
var vartypeNames = map[uint32]string{
	2:  "Integer",
	3:  "Long",
	4:  "Single",
	5:  "Double",
	6:  "Currency",
	7:  "Date",
	8:  "String",
	9:  "Object",
	10: "Error",
	11: "Boolean",
	12: "Variant",
	14: "Decimal",
	17: "Byte",
	20: "LongLong",
	37: "LongPtr",
}

// varsuffix maps the same builtin type ids to the VBA declaration suffix
// character, for the subset of types that have one.
var varsuffixChars = map[uint32]string{
	2:  "%",
	3:  "&",
	4:  "!",
	5:  "#",
	6:  "@",
	8:  "$",
	20: "^",
}

func vartype(typeID uint32) string {
	if name, ok := vartypeNames[typeID&0xbf]; ok {
		return name
	}
	return fmt.Sprintf("UnkType%d", typeID)
}

func varsuffix(typeID uint32) string {
	return varsuffixChars[typeID&0xbf]
}

// VariableRecord is the decoded shape of a Dim/parameter entry: a fixed
// 28-byte (sysKind != 3) or 32-byte (sysKind == 3) record (spec §3: "28
// bytes for syskind=1, 32 bytes for syskind=3").
type VariableRecord struct {
	Flags         uint16
	ID            uint16
	BltinOrOffset uint32
	NextOffset    uint32
	ArgFlags      uint32
}

func (r *VariableRecord) HasSuffix() bool       { return r.Flags&varFlagSuffix != 0 }
func (r *VariableRecord) HasImplicitType() bool { return r.Flags&varFlagImplicitType != 0 }
func (r *VariableRecord) HasBuiltinType() bool  { return r.Flags&varFlagBuiltinType != 0 }
func (r *VariableRecord) HasExplicitType() bool { return r.Flags&varFlagExplicitType != 0 }
func (r *VariableRecord) HasNew() bool          { return r.Flags&varFlagNew != 0 }
func (r *VariableRecord) IsMe() bool            { return r.ID == meSentinel }

// RecordSize returns the on-disk size of a Var record for sysKind (spec §3).
func RecordSize(sysKind int) uint32 {
	if sysKind == 3 {
		return 32
	}
	return 28
}

// ReadVariableRecord decodes the fixed-size Var record at off. Reserved and
// const-related fields the renderer never inspects are skipped by position
// rather than modeled as named fields.
func (f *FunctionTable) ReadVariableRecord(off uint32) (*VariableRecord, error) {
	size := RecordSize(f.sysKind)
	buf, err := f.GetSlice(off, size)
	if err != nil {
		return nil, err
	}
	rec := &VariableRecord{
		Flags: binary.LittleEndian.Uint16(buf[0:2]),
		ID:    binary.LittleEndian.Uint16(buf[2:4]),
	}
	// Layout after flags/id: _unk1, _unk2 (u32 each), then _unk3 (u32, only
	// when sysKind == 3), then bltin_or_offset, _unk4, next_offset, arg_flags.
	p := 4 + 4 + 4
	if f.sysKind == 3 {
		p += 4
	}
	rec.BltinOrOffset = binary.LittleEndian.Uint32(buf[p : p+4])
	p += 4 + 4 // skip _unk4
	rec.NextOffset = binary.LittleEndian.Uint32(buf[p : p+4])
	p += 4
	rec.ArgFlags = binary.LittleEndian.Uint32(buf[p : p+4])
	return rec, nil
}

// ProcedureRecord is the decoded shape of a Sub/Function/Property/Event
// declaration (spec §4.10 "Procedures": "look up a Procedure record in the
// function table"). Reserved/attribute fields the renderer never inspects
// are skipped by position; their exact count is version/sysKind-dependent
// and reconstructed best-effort from a small corpus, matching the existing
// "5x header" open-question precedent.
type ProcedureRecord struct {
	Flags            uint16
	NameID           uint16
	FirstVarOffset   uint32
	RetBltinOrOffset uint32
	ImportOffset     uint16
	RetFlags         uint8
	ArgCount         uint8
	VarArg           uint8
	ExtraVisibility  uint8
}

func (r *ProcedureRecord) HasExplicitReturn() bool { return uint16(r.RetFlags)&varFlagExplicitType != 0 }
func (r *ProcedureRecord) HasBuiltinReturn() bool  { return r.RetFlags&varFlagBuiltinType != 0 }

// ProcedureRecordSize returns the on-disk size of a Procedure record for
// sysKind (spec §4.10: 0x40 bytes for sysKind != 3, 0x58 for sysKind == 3).
func ProcedureRecordSize(sysKind int) uint32 {
	if sysKind == 3 {
		return 0x58
	}
	return 0x40
}

// ReadProcedure decodes the Procedure record at off. Bounds on every
// interior field are checked against the record's nominal total size, but
// reads are sequential and stop gracefully (zero-valued remainder) if the
// declared size runs out before every filler field is accounted for.
// RetFlags, ArgCount, VarArg and ExtraVisibility are taken from the record's
// last four bytes, not from the sequential cursor.
func (f *FunctionTable) ReadProcedure(off uint32) (*ProcedureRecord, error) {
	size := ProcedureRecordSize(f.sysKind)
	buf, err := f.GetSlice(off, size)
	if err != nil {
		return nil, err
	}
	rec := &ProcedureRecord{}
	c := &cursor{buf: buf}
	rec.Flags = c.u16()
	rec.NameID = c.u16()
	c.skip(4)          // next_proc_offset
	c.skip(4 + 4 + 4)  // attr_memid, attr_helpid, attr_desc
	c.skip(4 + 4)      // attr_invoke, attr_flags
	if !f.is5x {
		c.skip(4) // unk02
	}
	if f.sysKind == 3 {
		c.skip(4 + 4) // unk03, unk04
	}
	c.skip(4) // unk05
	if f.sysKind == 1 {
		c.skip(2) // unk06 (i16)
		c.skip(2) // unk07 (u16)
	} else {
		c.skip(4) // unk06 (i32)
		c.skip(4) // unk07 (u32)
		c.skip(4) // unk08 (u32)
	}
	rec.FirstVarOffset = c.u32()
	rec.RetBltinOrOffset = c.u32()
	rec.ImportOffset = c.u16()
	c.skip(2) // unk09
	c.skip(4) // unk10
	c.skip(2) // unk11
	if f.sysKind == 3 && !f.hasPhantoms {
		c.skip(2 + 4) // unk12, unk13
	}
	tail := buf[len(buf)-minInt(4, len(buf)):]
	if len(tail) == 4 {
		rec.RetFlags = tail[0]
		rec.ArgCount = tail[1]
		rec.VarArg = tail[2]
		rec.ExtraVisibility = tail[3]
	}
	return rec, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// cursor is a small bounds-safe sequential reader used only by ReadProcedure,
// where a handful of filler fields are skipped by byte count rather than
// named (spec §9's "best-effort reconstruction" precedent).
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) u16() uint16 {
	if c.pos+2 > len(c.buf) {
		c.pos = len(c.buf)
		return 0
	}
	v := binary.LittleEndian.Uint16(c.buf[c.pos : c.pos+2])
	c.pos += 2
	return v
}

func (c *cursor) u32() uint32 {
	if c.pos+4 > len(c.buf) {
		c.pos = len(c.buf)
		return 0
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos : c.pos+4])
	c.pos += 4
	return v
}

func (c *cursor) skip(n int) {
	c.pos += n
	if c.pos > len(c.buf) {
		c.pos = len(c.buf)
	}
}
