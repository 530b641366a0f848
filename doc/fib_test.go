package doc

import (
	"encoding/binary"
	"testing"
)

// buildFib assembles a minimal well-formed FIB buffer: 32-byte FibBase,
// csw=14 FibRgW97 words, cslw=11 FibRgLw97 dwords (with ccpText set),
// cbRgFcLcb=0x005D FibRgFcLcb97 pairs (with fcClx/lcbClx set), cswNew=0.
func buildFib(ccpText, fcClx, lcbClx uint32) []byte {
	var b []byte
	base := make([]byte, 32)
	binary.LittleEndian.PutUint16(base[0:2], 0xA5EC) // wIdent
	binary.LittleEndian.PutUint16(base[2:4], 0x00C1)  // nFib
	binary.LittleEndian.PutUint16(base[8:10], 0x1234) // pnNext, must come from [8:10]
	b = append(b, base...)

	csw := make([]byte, 2)
	binary.LittleEndian.PutUint16(csw, 0x000E)
	b = append(b, csw...)
	b = append(b, make([]byte, 14*2)...) // FibRgW97

	cslw := make([]byte, 2)
	binary.LittleEndian.PutUint16(cslw, 11)
	b = append(b, cslw...)
	lw := make([]byte, 11*4)
	binary.LittleEndian.PutUint32(lw[idxCcpText*4:], ccpText)
	b = append(b, lw...)

	cbRgFcLcb := make([]byte, 2)
	binary.LittleEndian.PutUint16(cbRgFcLcb, 0x005D)
	b = append(b, cbRgFcLcb...)
	fcLcb := make([]byte, 0x005D*8)
	binary.LittleEndian.PutUint32(fcLcb[idxFcClx*4:], fcClx)
	binary.LittleEndian.PutUint32(fcLcb[idxLcbClx*4:], lcbClx)
	b = append(b, fcLcb...)

	cswNew := make([]byte, 2)
	b = append(b, cswNew...)
	return b
}

func TestParseFibBasics(t *testing.T) {
	data := buildFib(100, 0x2000, 64)
	fib, err := ParseFib(data)
	if err != nil {
		t.Fatalf("ParseFib: %v", err)
	}
	if fib.CcpText() != 100 {
		t.Errorf("ccpText = %d, want 100", fib.CcpText())
	}
	fc, lcb := fib.ClxPosition()
	if fc != 0x2000 || lcb != 64 {
		t.Errorf("ClxPosition = (0x%x, %d), want (0x2000, 64)", fc, lcb)
	}
	if fib.Base.PnNext != 0x1234 {
		t.Errorf("PnNext = 0x%x, want 0x1234 (must read bytes [8:10], not [6:8])", fib.Base.PnNext)
	}
}

func TestParseFibRejectsBadMagic(t *testing.T) {
	data := buildFib(10, 0, 0)
	binary.LittleEndian.PutUint16(data[0:2], 0xDEAD)
	if _, err := ParseFib(data); err == nil {
		t.Fatal("expected error for bad wIdent")
	}
}

func TestParseFibRejectsTruncated(t *testing.T) {
	if _, err := ParseFib(make([]byte, 10)); err == nil {
		t.Fatal("expected error for undersized FIB")
	}
}

func TestFibRangeSumsPrecedingParts(t *testing.T) {
	data := buildFib(100, 0, 0)
	fib, err := ParseFib(data)
	if err != nil {
		t.Fatalf("ParseFib: %v", err)
	}
	start, end, err := fib.Range(PartMain)
	if err != nil {
		t.Fatalf("Range(PartMain): %v", err)
	}
	if start != 0 || end != 100 {
		t.Errorf("PartMain range = [%d,%d), want [0,100)", start, end)
	}
	// ccpFtn etc. are all 0 in this fixture, so every later part starts
	// right where the main text ends.
	start, end, err = fib.Range(PartFootnote)
	if err != nil {
		t.Fatalf("Range(PartFootnote): %v", err)
	}
	if start != 100 || end != 100 {
		t.Errorf("PartFootnote range = [%d,%d), want [100,100)", start, end)
	}
}

func TestParseFibRejectsLowCslw(t *testing.T) {
	data := buildFib(10, 0, 0)
	// Overwrite cslw (right after FibBase + csw + FibRgW97) with something
	// below the 11-field minimum.
	off := 32 + 2 + 14*2
	binary.LittleEndian.PutUint16(data[off:off+2], 5)
	if _, err := ParseFib(data); err == nil {
		t.Fatal("expected error for cslw below 11")
	}
}
