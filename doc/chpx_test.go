package doc

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestParsePlcfBteChpxAndPageForFC(t *testing.T) {
	var data []byte
	for _, fc := range []uint32{0, 100, 200} {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, fc)
		data = append(data, b...)
	}
	for _, pn := range []uint32{5, 7} {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, pn)
		data = append(data, b...)
	}

	plc, err := ParsePlcfBteChpx(data)
	if err != nil {
		t.Fatalf("ParsePlcfBteChpx: %v", err)
	}
	if pn, ok := plc.pageForFC(50); !ok || pn != 5 {
		t.Errorf("pageForFC(50) = (%d,%v), want (5,true)", pn, ok)
	}
	if pn, ok := plc.pageForFC(150); !ok || pn != 7 {
		t.Errorf("pageForFC(150) = (%d,%v), want (7,true)", pn, ok)
	}
	if _, ok := plc.pageForFC(200); ok {
		t.Error("pageForFC(200) should be out of range (exclusive upper bound)")
	}
}

func buildFKPPage(grps [][]byte, runBoundaries []uint32) []byte {
	page := make([]byte, 512)
	crun := len(runBoundaries) - 1
	for i, fc := range runBoundaries {
		binary.LittleEndian.PutUint32(page[i*4:], fc)
	}
	byteOffBase := (crun + 1) * 4
	writePos := 500 // somewhere safely below the crun byte and offsets array
	for i, g := range grps {
		if len(g) == 0 {
			page[byteOffBase+i] = 0
			continue
		}
		bOff := writePos / 2
		page[writePos] = byte(len(g))
		copy(page[writePos+1:], g)
		page[byteOffBase+i] = byte(bOff)
		writePos += 1 + len(g)
	}
	page[511] = byte(crun)
	return page
}

func TestParseFKPPageDecodesGrpprl(t *testing.T) {
	// One sprm 0x0800 (spra=0 -> 1-byte operand) with operand 0x01.
	grp := []byte{0x00, 0x08, 0x01}
	page := buildFKPPage([][]byte{grp, nil}, []uint32{0, 10, 20})

	fkp, err := parseFKPPage(page)
	if err != nil {
		t.Fatalf("parseFKPPage: %v", err)
	}
	if len(fkp.prls) != 2 {
		t.Fatalf("got %d runs, want 2", len(fkp.prls))
	}
	if len(fkp.prls[0]) != 1 || fkp.prls[0][0].Sprm != 0x0800 {
		t.Fatalf("unexpected prls[0]: %+v", fkp.prls[0])
	}
	if op, ok := FindProperty(fkp.prls[0], 0x0800); !ok || op[0] != 0x01 {
		t.Errorf("FindProperty = (%v,%v), want ([1],true)", op, ok)
	}
	if fkp.prls[1] != nil {
		t.Errorf("prls[1] should be nil (zero byte offset)")
	}
}

func TestChpxCacheLookupCachesSinglePage(t *testing.T) {
	grp := []byte{0x00, 0x08, 0x42}
	page := buildFKPPage([][]byte{grp}, []uint32{0, 999})
	wd := make([]byte, 512*6)
	copy(wd[5*512:], page)

	var data []byte
	for _, fc := range []uint32{0, 100} {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, fc)
		data = append(data, b...)
	}
	pnBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(pnBuf, 5)
	data = append(data, pnBuf...)

	plc, err := ParsePlcfBteChpx(data)
	if err != nil {
		t.Fatalf("ParsePlcfBteChpx: %v", err)
	}
	cache := NewChpxCache(plc, bytes.NewReader(wd))
	prls, err := cache.Lookup(50)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if op, ok := FindProperty(prls, 0x0800); !ok || op[0] != 0x42 {
		t.Errorf("FindProperty = (%v,%v), want ([0x42],true)", op, ok)
	}
	if !cache.haveCur || cache.curPage != 5 {
		t.Errorf("cached page = (%d,%v), want (5,true)", cache.curPage, cache.haveCur)
	}
}
