package vba

import (
	"encoding/binary"
	"testing"
)

// build97Module assembles a minimal 97+ module blob: the 28-byte fixed
// preamble (typeTbl, refs, me, funcTbl, missing, cafe, last), a function
// table region holding the Var record for "foo", and a code listing holding
// a single "Dim foo$" line that points at that record.
func build97Module() []byte {
	funcTable := buildVar28(varFlagSuffix, 28, 8, "foo")
	code := []byte{0x5D, 0x00, 0xF5, 0x04, 0x00, 0x00, 0x00, 0x00}

	var listing []byte
	listing = append(listing, le32(codeListingMagic)...)
	listing = append(listing, le16(1)...) // nlines
	listing = append(listing, le32(0)...)
	listing = append(listing, le32(uint32(len(code)))...)
	listing = append(listing, le32(0)...) // flags
	listing = append(listing, make([]byte, 10)...)
	listing = append(listing, code...)

	const headerLen = 28
	funcTblOff := uint32(headerLen)
	cafeOff := funcTblOff + uint32(len(funcTable))

	header := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(header[0:4], 0)          // typeTbl: none
	binary.LittleEndian.PutUint32(header[4:8], 0)          // refs: none
	binary.LittleEndian.PutUint32(header[8:12], 0)         // me: unused
	binary.LittleEndian.PutUint32(header[12:16], funcTblOff)
	binary.LittleEndian.PutUint32(header[16:20], 0) // missing
	binary.LittleEndian.PutUint32(header[20:24], cafeOff)
	binary.LittleEndian.PutUint32(header[24:28], 0) // last

	var data []byte
	data = append(data, header...)
	data = append(data, funcTable...)
	data = append(data, listing...)
	return data
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func TestOpenModuleEndToEnd(t *testing.T) {
	md, err := OpenModule(build97Module(), 0x97, 1)
	if err != nil {
		t.Fatalf("OpenModule: %v", err)
	}

	total, nonContig := md.NumLines()
	if total != 1 || nonContig != 0 {
		t.Errorf("NumLines = (%d,%d), want (1,0)", total, nonContig)
	}

	text, err, ok := md.Next()
	if err != nil || !ok {
		t.Fatalf("Next: text=%q err=%v ok=%v", text, err, ok)
	}
	if text != "Dim foo$" {
		t.Errorf("got %q, want %q", text, "Dim foo$")
	}

	if _, _, ok := md.Next(); ok {
		t.Error("expected Next to report exhausted after the only line")
	}
}

func TestOpenModuleRejectsDisabledVersion(t *testing.T) {
	if _, err := OpenModule([]byte{1, 2, 3}, VBAVersionDisabled, 1); err == nil {
		t.Fatal("expected an error for a disabled performance cache")
	}
}

func TestModuleDecompilerLinesMatchesNext(t *testing.T) {
	md, err := OpenModule(build97Module(), 0x97, 1)
	if err != nil {
		t.Fatalf("OpenModule: %v", err)
	}
	lines := md.Lines()
	if len(lines) != 1 || lines[0].Err != nil || lines[0].Text != "Dim foo$" {
		t.Errorf("Lines() = %+v, want a single successful Dim foo$ line", lines)
	}
}

func TestProjectFind(t *testing.T) {
	p := &Project{Modules: []ModuleEntry{
		{Name: "Module1", StreamName: "Module1", VBAVersion: 0x97},
	}}
	if _, ok := p.Find("Module2"); ok {
		t.Error("Find should report false for an absent module")
	}
	entry, ok := p.Find("Module1")
	if !ok || entry.VBAVersion != 0x97 {
		t.Errorf("Find(Module1) = (%+v,%v), want VBAVersion 0x97, true", entry, ok)
	}
	if p.String() == "" {
		t.Error("String should describe the project")
	}
}
