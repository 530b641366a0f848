package vba

import "testing"

func newTestModule(codeBuf []byte, lines []CodeLine, funcTable []byte) *Module {
	m := &Module{VBAVersion: 0x97, codeBuf: codeBuf, Lines: lines}
	if funcTable != nil {
		m.FuncTable = &FunctionTable{data: funcTable}
	}
	return m
}

// buildVar28 assembles a 28-byte sysKind!=3 Var record whose flags select
// HasSuffix, followed immediately by its NUL-terminated name: the shape
// ReadVariableRecord/renderVariableRecord expect (spec §3).
func buildVar28(flags, id uint16, bltinOrOffset uint32, name string) []byte {
	rec := make([]byte, 28)
	le16Put(rec[0:2], flags)
	le16Put(rec[2:4], id)
	le32Put(rec[12:16], bltinOrOffset)
	return append(rec, append([]byte(name), 0)...)
}

func le16Put(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func le32Put(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func TestDecompileDimLine(t *testing.T) {
	// "Dim foo$": DimBegin, then DimItem pointing at a builtin-String
	// variable record in the function table.
	code := []byte{0x5D, 0x00, 0xF5, 0x04, 0x00, 0x00, 0x00, 0x00}
	lines := []CodeLine{{Offset: 0, Len: uint32(len(code))}}
	funcTable := buildVar28(varFlagSuffix, 28, 8, "foo")

	m := newTestModule(code, lines, funcTable)
	d := NewDecompiler(m)
	got, err := d.DecompileLine(0)
	if err != nil {
		t.Fatalf("DecompileLine: %v", err)
	}
	if want := "Dim foo$"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecompileIfElseEndIf(t *testing.T) {
	lineA := []byte{0x20, 0x00, 0x04, 0x00, 'c', 'o', 'n', 'd', 0x9C, 0x00}
	lineB := []byte{0x64, 0x00}
	lineC := []byte{0x6B, 0x00}

	var code []byte
	lines := make([]CodeLine, 0, 3)
	for _, raw := range [][]byte{lineA, lineB, lineC} {
		lines = append(lines, CodeLine{Offset: uint32(len(code)), Len: uint32(len(raw))})
		code = append(code, raw...)
	}

	m := newTestModule(code, lines, nil)
	d := NewDecompiler(m)

	want := []string{"If cond Then", "Else", "End If"}
	for i, w := range want {
		got, err := d.DecompileLine(i)
		if err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if got != w {
			t.Errorf("line %d: got %q, want %q", i, got, w)
		}
	}
}

func TestDecompilerUnknownOpcodeIsLineScoped(t *testing.T) {
	goodCode := []byte{0x5D, 0x00}
	badCode := []byte{0xFF, 0x03} // low10 = 0x3FF, not a known opcode
	var code []byte
	lines := []CodeLine{
		{Offset: 0, Len: uint32(len(goodCode))},
		{Offset: uint32(len(goodCode)), Len: uint32(len(badCode))},
	}
	code = append(code, goodCode...)
	code = append(code, badCode...)

	m := newTestModule(code, lines, nil)
	d := NewDecompiler(m)

	if _, err := d.DecompileLine(1); err == nil {
		t.Fatal("expected an error decompiling the unknown opcode line")
	}
	// The module keeps going: a later well-formed line still decompiles.
	if _, err := d.DecompileLine(0); err != nil {
		t.Fatalf("unrelated line should still decompile: %v", err)
	}
}

func TestNumLinesCountsNonContiguous(t *testing.T) {
	lines := []CodeLine{
		{Offset: 0, Len: 8},
		{Offset: 8, Len: 8},   // contiguous with line 0 (8-byte aligned)
		{Offset: 100, Len: 8}, // gap
	}
	m := &Module{Lines: lines}
	total, nonContig := m.NumLines()
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if nonContig != 1 {
		t.Errorf("nonContiguous = %d, want 1", nonContig)
	}
}
