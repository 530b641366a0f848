package doc

import (
	"encoding/binary"
	"testing"
)

func TestParseDopBitPackedFlags(t *testing.T) {
	flags := uint16(0x0001) | (0x2 << 5) // fFacingPages set, fpc=2
	data := make([]byte, 4)
	binary.LittleEndian.PutUint16(data[0:2], flags)
	binary.LittleEndian.PutUint16(data[2:4], 720)

	dop, err := ParseDop(data)
	if err != nil {
		t.Fatalf("ParseDop: %v", err)
	}
	if !dop.FFacingPages {
		t.Error("FFacingPages should be set")
	}
	if dop.Fpc != 2 {
		t.Errorf("Fpc = %d, want 2", dop.Fpc)
	}
	if dop.DefaultTabWidth != 720 {
		t.Errorf("DefaultTabWidth = %d, want 720", dop.DefaultTabWidth)
	}
}

func TestParseDopTooShortIsNotFatal(t *testing.T) {
	dop, err := ParseDop([]byte{1, 2})
	if err != nil {
		t.Fatalf("ParseDop should not error on short input: %v", err)
	}
	if dop.FFacingPages || dop.DefaultTabWidth != 0 {
		t.Errorf("expected zero-value Dop, got %+v", dop)
	}
}

func TestParseSttbSimpleForm(t *testing.T) {
	var data []byte
	count := uint16(2)
	data = append(data, byte(count), byte(count>>8))
	data = append(data, 3, 'f', 'o', 'o')
	data = append(data, 3, 'b', 'a', 'r')

	out, err := ParseSttb(data)
	if err != nil {
		t.Fatalf("ParseSttb: %v", err)
	}
	if len(out) != 2 || out[0] != "foo" || out[1] != "bar" {
		t.Errorf("got %v, want [foo bar]", out)
	}
}

func TestParseSttbExtendedForm(t *testing.T) {
	var data []byte
	marker := make([]byte, 2)
	binary.LittleEndian.PutUint16(marker, 0xFFFF)
	data = append(data, marker...)
	countBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(countBuf, 1)
	data = append(data, countBuf...)
	extraBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(extraBuf, 0)
	data = append(data, extraBuf...)

	name := "hi"
	cchBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(cchBuf, uint16(len(name)))
	data = append(data, cchBuf...)
	for _, r := range name {
		u := make([]byte, 2)
		binary.LittleEndian.PutUint16(u, uint16(r))
		data = append(data, u...)
	}

	out, err := ParseSttb(data)
	if err != nil {
		t.Fatalf("ParseSttb: %v", err)
	}
	if len(out) != 1 || out[0] != "hi" {
		t.Errorf("got %v, want [hi]", out)
	}
}

func TestDecodeUTF16SurrogatePair(t *testing.T) {
	// U+1F600 (grinning face) encoded as a surrogate pair.
	got := decodeUTF16([]uint16{0xD83D, 0xDE00})
	want := string(rune(0x1F600))
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
