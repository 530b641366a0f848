package doc

import (
	"bytes"
	"fmt"
	"io"
	"testing"
)

type fakeStreamSource struct {
	streams map[string][]byte
}

func (f *fakeStreamSource) GetStream(path string) (io.ReadSeeker, error) {
	data, ok := f.streams[path]
	if !ok {
		return nil, fmt.Errorf("no such stream %q", path)
	}
	return bytes.NewReader(data), nil
}

func TestOpenPlainDocumentEndToEnd(t *testing.T) {
	text := "hello"
	fibBytes := buildFib(uint32(len(text)), 0, 0) // lcbClx patched in below
	textFc := uint32(len(fibBytes))

	plc := buildPlcPcd([]uint32{0, uint32(len(text))}, []Pcd{{FcCompressed: (textFc * 2) | 0x40000000}})
	clxBytes := buildPcdt(plc)

	fibBytes = buildFib(uint32(len(text)), 0, uint32(len(clxBytes)))
	// The WordDocument stream carries both the FIB prefix and the piece's
	// raw text bytes immediately after it, at the fc the Clx piece points
	// to (a simplification: real files may place text anywhere, but
	// ParseFib only reads the fixed prefix so this layout is harmless).
	wordDoc := append(fibBytes, []byte(text)...)

	src := &fakeStreamSource{streams: map[string][]byte{
		"WordDocument": wordDoc,
		"0Table":       clxBytes,
	}}

	d, err := Open(src, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.Encryption() != nil {
		t.Error("plain document should report no encryption")
	}
	if d.GetDop() == nil {
		t.Error("GetDop should never return nil")
	}

	it, err := d.CharIter(PartMain)
	if err != nil {
		t.Fatalf("CharIter: %v", err)
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
		got = append(got, wc.Char)
	}
	if string(got) != text {
		t.Errorf("got %q, want %q", string(got), text)
	}
}

func TestOpenMissingStreamIsError(t *testing.T) {
	src := &fakeStreamSource{streams: map[string][]byte{}}
	if _, err := Open(src, nil); err == nil {
		t.Fatal("expected error when WordDocument stream is missing")
	}
}

func TestCombinedReaderSeekAcrossPrefixBoundary(t *testing.T) {
	prefix := []byte("PREFIX")
	rest := []byte("REST-DATA")
	cr := newCombinedReader(prefix, bytes.NewReader(rest))

	buf := make([]byte, 3)
	if _, err := cr.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := io.ReadFull(cr, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(buf) != "PRE" {
		t.Errorf("got %q, want PRE", buf)
	}

	if _, err := cr.Seek(int64(len(prefix)), io.SeekStart); err != nil {
		t.Fatalf("Seek past prefix: %v", err)
	}
	if _, err := io.ReadFull(cr, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(buf) != "RES" {
		t.Errorf("got %q, want RES", buf)
	}

	n, err := cr.Seek(0, io.SeekEnd)
	if err != nil {
		t.Fatalf("Seek end: %v", err)
	}
	if want := int64(len(prefix) + len(rest)); n != want {
		t.Errorf("Seek end = %d, want %d", n, want)
	}
}
