package doc

import (
	"bytes"
	"testing"
)

func compressedPcdt(text string) *Pcdt {
	return &Pcdt{
		PlcPcd: PlcPcd{
			ACP:  []uint32{0, uint32(len(text))},
			APcd: []Pcd{{FcCompressed: 0 | 0x40000000}},
		},
	}
}

func TestCharIterPlainText(t *testing.T) {
	text := "hi"
	it, err := NewCharIter(0, uint32(len(text)), compressedPcdt(text), bytes.NewReader([]byte(text)), nil, nil, 1252)
	if err != nil {
		t.Fatalf("NewCharIter: %v", err)
	}
	var got []rune
	for {
		wc, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		if wc.Kind != KindChar {
			t.Fatalf("unexpected kind %v", wc.Kind)
		}
		got = append(got, wc.Char)
	}
	if string(got) != text {
		t.Errorf("got %q, want %q", string(got), text)
	}
}

func TestCharIterHyperlinkField(t *testing.T) {
	var text []byte
	text = append(text, 0x13)
	text = append(text, []byte(`HYPERLINK "http://example.com"`)...)
	text = append(text, 0x14)
	text = append(text, []byte("click here")...)
	text = append(text, 0x15)

	it, err := NewCharIter(0, uint32(len(text)), compressedPcdt(string(text)), bytes.NewReader(text), nil, nil, 1252)
	if err != nil {
		t.Fatalf("NewCharIter: %v", err)
	}

	wc, ok, err := it.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		t.Fatal("expected one emitted WordChar for the whole field")
	}
	if wc.Kind != KindHyperlink {
		t.Fatalf("got kind %v, want KindHyperlink", wc.Kind)
	}
	if wc.URI != "http://example.com" {
		t.Errorf("URI = %q, want http://example.com", wc.URI)
	}
	if wc.Value != "click here" {
		t.Errorf("Value = %q, want %q", wc.Value, "click here")
	}

	if _, ok, err := it.Next(); err != nil || ok {
		t.Errorf("expected end of stream after the field, got ok=%v err=%v", ok, err)
	}
}

func TestCompressedCharTableIdentityRanges(t *testing.T) {
	for _, b := range []byte{0x00, 0x41, 0x7F, 0xA0, 0xFF} {
		if compressedCharTable[b] != rune(b) {
			t.Errorf("byte 0x%02x should be identity, got %U", b, compressedCharTable[b])
		}
	}
	if compressedCharTable[0x93] == rune(0x93) {
		t.Error("0x93 should be remapped (CP1252 left double quote), not identity")
	}
}
