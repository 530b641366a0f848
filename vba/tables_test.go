package vba

import (
	"encoding/binary"
	"testing"
)

func u16le(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func u32le(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }

func TestParseTypeNameTableMagicAndRecords(t *testing.T) {
	// Record 0's map_id (7) is a function-table name offset; Resolve shifts
	// the caller's id right by 2 (sysKind=1) to land back on record index 0.
	const nameOff = 7
	var data []byte
	data = append(data, u16le(typeNameHeaderMagic)...)
	for i := 1; i < 0x45; i++ {
		data = append(data, u16le(0)...) // pad header to 0x45 words
	}
	data = append(data, u16le(1)...) // one record
	data = append(data, u16le(0)...) // refCount
	data = append(data, u16le(0)...) // mapType (single-token)
	data = append(data, u16le(0)...) // reservedID
	data = append(data, u16le(nameOff)...)
	data = append(data, u16le(0)...) // pad within record (10 bytes total: 5 u16s)
	data = append(data, u16le(0)...) // trailer
	data = append(data, u16le(0)...) // trailer
	data = append(data, u32le(0)...) // empty multi-token payload

	tbl, err := parseTypeNameTable(data)
	if err != nil {
		t.Fatalf("parseTypeNameTable: %v", err)
	}
	ft := &FunctionTable{data: append(make([]byte, nameOff), append([]byte("Foo"), 0)...)}
	if got := tbl.Resolve(0<<2, 1, ft); got != "Foo" {
		t.Errorf("Resolve = %q, want Foo", got)
	}
}

func TestParseTypeNameTableBadMagic(t *testing.T) {
	data := make([]byte, 0x45*2+6)
	copy(data, u16le(0xDEAD))
	if _, err := parseTypeNameTable(data); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestImportTableLookupOrdinal(t *testing.T) {
	data := append(u16le(5), u16le(0)...) // by_ord=5 (nonzero -> ordinal form)
	it, err := LoadImportTable(data, uint32(len(data)))
	if err != nil {
		t.Fatalf("LoadImportTable: %v", err)
	}
	_, name, err := it.Lookup(0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if name != "#5" {
		t.Errorf("Lookup = %q, want #5", name)
	}
}

func TestImportTableLookupByName(t *testing.T) {
	var data []byte
	data = append(data, u16le(0)...)  // by_ord=0
	data = append(data, u16le(0)...)  // lib_id
	data = append(data, u16le(6)...)  // fun_offset (name starts right after this 6-byte header)
	data = append(data, []byte("CreateObject\x00")...)
	it, err := LoadImportTable(data, uint32(len(data)))
	if err != nil {
		t.Fatalf("LoadImportTable: %v", err)
	}
	_, name, err := it.Lookup(0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if name != "CreateObject" {
		t.Errorf("Lookup = %q, want CreateObject", name)
	}
}

func TestFunctionTableReadVariableRecord(t *testing.T) {
	data := buildVar28(varFlagSuffix, 28, 8, "bar")
	ft := &FunctionTable{data: data}
	rec, err := ft.ReadVariableRecord(0)
	if err != nil {
		t.Fatalf("ReadVariableRecord: %v", err)
	}
	if !rec.HasSuffix() || rec.BltinOrOffset != 8 {
		t.Fatalf("got %+v, want HasSuffix with BltinOrOffset=8", rec)
	}
	name, err := ft.GetNameAt(uint32(rec.ID))
	if err != nil || name != "bar" {
		t.Errorf("GetNameAt(id) = (%q,%v), want bar,nil", name, err)
	}
	if suffix := varsuffix(rec.BltinOrOffset); suffix != "$" {
		t.Errorf("varsuffix = %q, want $", suffix)
	}
}

func TestFunctionTableOutOfRange(t *testing.T) {
	ft := &FunctionTable{data: []byte{1, 2}}
	if _, err := ft.GetU32(0); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestParseCodeListingRoundTrip(t *testing.T) {
	var data []byte
	data = append(data, u32le(codeListingMagic)...)
	data = append(data, u16le(1)...) // one line
	data = append(data, u32le(0)...) // offset
	data = append(data, u32le(8)...) // len
	data = append(data, u32le(0)...) // flags
	data = append(data, make([]byte, 10)...) // filler
	data = append(data, make([]byte, 8)...)  // code buffer

	lines, buf, err := parseCodeListing(data)
	if err != nil {
		t.Fatalf("parseCodeListing: %v", err)
	}
	if len(lines) != 1 || lines[0].Len != 8 {
		t.Fatalf("unexpected lines: %+v", lines)
	}
	if len(buf) != 8 {
		t.Errorf("buf len = %d, want 8", len(buf))
	}
}

func TestParseCodeListingBadMagic(t *testing.T) {
	data := u32le(0x12345678)
	if _, _, err := parseCodeListing(data); err == nil {
		t.Fatal("expected bad magic error")
	}
}

func TestIs5xBoundary(t *testing.T) {
	if !is5x(0x5F) {
		t.Error("0x5F should be 5x")
	}
	if is5x(0x97) {
		t.Error("0x97 should not be 5x")
	}
}

func TestLoadModuleRejectsDisabledVersion(t *testing.T) {
	if _, err := LoadModule(nil, VBAVersionDisabled, 3); err == nil {
		t.Fatal("expected error for disabled performance cache")
	}
}
