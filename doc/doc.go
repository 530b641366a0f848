package doc

import (
	"bytes"
	"fmt"
	"io"

	"olecore/crypt"
	"olecore/internal/xlog"
)

// streamSource is the subset of cfb.Reader this package depends on, kept
// narrow so doc can be tested against fakes without importing cfb.
type streamSource interface {
	GetStream(path string) (io.ReadSeeker, error)
}

// Doc is the opened Word Binary text-extraction surface (spec §6).
type Doc struct {
	fib        *Fib
	dop        *Dop
	assoc      Sttb
	wordDoc    []byte // decrypted WordDocument stream, held in memory once
	table      []byte // decrypted table stream (0Table or 1Table)
	clxData    *Clx
	chpxPlc    *PlcfBteChpx
	encryption *Encryption
}

// Open parses a WordDocument/table-stream pair out of ole, trying each of
// passwords in turn if the document reports itself as encrypted (spec §6:
// Doc::open(ole, passwords[])).
func Open(ole streamSource, passwords []string) (*Doc, error) {
	wdRaw, err := ole.GetStream("WordDocument")
	if err != nil {
		return nil, fmt.Errorf("doc: opening WordDocument stream: %w", err)
	}
	header := make([]byte, 1536)
	n, err := io.ReadFull(wdRaw, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("doc: reading FIB prefix: %w", err)
	}
	header = header[:n]

	base, err := peekFibBase(header)
	if err != nil {
		return nil, err
	}
	enc := detectEncryption(base)

	wd := io.ReadSeeker(newCombinedReader(header, wdRaw))
	if enc != nil {
		dec, err := resolveDocDecryptor(wd, enc, passwords)
		if err != nil {
			return nil, err
		}
		wd = dec
	}

	wdBytes, err := io.ReadAll(wd)
	if err != nil {
		return nil, fmt.Errorf("doc: reading WordDocument stream: %w", err)
	}

	fib, err := ParseFib(wdBytes)
	if err != nil {
		return nil, err
	}

	tableName := "0Table"
	if fib.Base.UsesTable1() {
		tableName = "1Table"
	}
	tableStream, err := ole.GetStream(tableName)
	if err != nil {
		return nil, fmt.Errorf("doc: opening %s: %w", tableName, err)
	}
	tableBytes, err := io.ReadAll(tableStream)
	if err != nil {
		return nil, fmt.Errorf("doc: reading %s: %w", tableName, err)
	}

	d := &Doc{fib: fib, wordDoc: wdBytes, table: tableBytes, encryption: enc}

	if fcDop, lcbDop := fib.DopPosition(); lcbDop > 0 {
		if dop, err := ParseDop(sliceAt(tableBytes, fcDop, lcbDop)); err == nil {
			d.dop = dop
		} else {
			xlog.L.Printf("anomaly: Dop parse failed: %v", err)
		}
	}
	if d.dop == nil {
		d.dop = &Dop{}
	}

	if fcAssoc, lcbAssoc := fib.SttbfAssocPosition(); lcbAssoc > 0 {
		if assoc, err := ParseSttb(sliceAt(tableBytes, fcAssoc, lcbAssoc)); err == nil {
			d.assoc = assoc
		} else {
			xlog.L.Printf("anomaly: SttbfAssoc parse failed: %v", err)
		}
	}

	fcClx, lcbClx := fib.ClxPosition()
	var clx *Clx
	if lcbClx > 0 && int(fcClx)+int(lcbClx) <= len(tableBytes) {
		clx, err = ParseClx(sliceAt(tableBytes, fcClx, lcbClx))
		if err != nil {
			xlog.L.Printf("anomaly: Clx parse failed (%v), falling back to single-piece", err)
			clx = nil
		}
	}
	if clx == nil {
		// Fallback per spec §4.6: only valid when fComplex is false, which
		// this parser approximates conservatively by always allowing the
		// fallback when Clx itself is unusable — the alternative is
		// refusing to extract any text at all.
		clx = synthesizeSinglePiece(fib.ccpText, true, 0)
	}
	d.clxData = clx

	if fcChpx, lcbChpx := fib.PlcfBteChpxPosition(); lcbChpx > 0 && int(fcChpx)+int(lcbChpx) <= len(tableBytes) {
		if plc, err := ParsePlcfBteChpx(sliceAt(tableBytes, fcChpx, lcbChpx)); err == nil {
			d.chpxPlc = plc
		} else {
			xlog.L.Printf("anomaly: PlcfBteChpx parse failed: %v", err)
		}
	}

	return d, nil
}

// CharIter returns an iterator over part's character range (spec §6).
func (d *Doc) CharIter(part DocPart) (*CharIter, error) {
	start, end, err := d.fib.Range(part)
	if err != nil {
		return nil, err
	}
	wdReader := bytes.NewReader(d.wordDoc)
	var chpxCache *ChpxCache
	if d.chpxPlc != nil {
		chpxCache = NewChpxCache(d.chpxPlc, bytes.NewReader(d.wordDoc))
	}
	return NewCharIter(start, end, &d.clxData.Pcdt, wdReader, bytes.NewReader(d.wordDoc), chpxCache, d.dop.Codepage)
}

// GetDop returns the document's Dop record.
func (d *Doc) GetDop() *Dop { return d.dop }

// GetAssociations returns the SttbfAssoc string table (file paths, template
// names, etc. associated with the document).
func (d *Doc) GetAssociations() Sttb { return d.assoc }

// Encryption reports the detected encryption scheme, if any.
func (d *Doc) Encryption() *Encryption { return d.encryption }

func sliceAt(data []byte, fc, lcb uint32) []byte {
	end := uint64(fc) + uint64(lcb)
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	if uint64(fc) >= end {
		return nil
	}
	return data[fc:end]
}

func peekFibBase(header []byte) (*FibBase, error) {
	fib, err := ParseFib(append([]byte(nil), header...))
	if err != nil {
		return nil, err
	}
	return &fib.Base, nil
}

// resolveDocDecryptor tries each password against the document's declared
// algorithm, returning a crypt.LegacyDecryptor wrapping wd once one matches.
func resolveDocDecryptor(wd io.ReadSeeker, enc *Encryption, passwords []string) (io.ReadSeeker, error) {
	var d crypt.Decryptor
	algo := crypt.AlgorithmRC4
	if enc.Obfuscated {
		algo = crypt.AlgorithmXOR
		d = crypt.XORObfuscation{LKey: enc.LKey}
	} else {
		algo = crypt.AlgorithmRC4
		d = crypt.BinaryRC4{KeyLenBytes: 5}
	}
	key, err := crypt.ResolveKey(d, algo, passwords)
	if err != nil {
		return nil, err
	}
	return crypt.New(wd, key, 0), nil
}

// combinedReader presents a pre-read header prefix followed by the
// remainder of an underlying stream as one continuous io.ReadSeeker,
// without re-reading the prefix bytes from the source (Open already
// consumed them peeking at FibBase).
type combinedReader struct {
	prefix []byte
	rest   io.ReadSeeker
	pos    int64
}

func newCombinedReader(prefix []byte, rest io.ReadSeeker) *combinedReader {
	return &combinedReader{prefix: prefix, rest: rest}
}

func (c *combinedReader) Read(p []byte) (int, error) {
	if c.pos < int64(len(c.prefix)) {
		n := copy(p, c.prefix[c.pos:])
		c.pos += int64(n)
		return n, nil
	}
	n, err := c.rest.Read(p)
	c.pos += int64(n)
	return n, err
}

func (c *combinedReader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = c.pos + offset
	case io.SeekEnd:
		restEnd, err := c.rest.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, err
		}
		target = int64(len(c.prefix)) + restEnd + offset
	}
	// rest's own coordinate 0 corresponds to combined coordinate
	// len(prefix): rest was already advanced past the prefix bytes when
	// Open peeked at them, so only seeks landing past the prefix need to
	// move rest at all.
	if target >= int64(len(c.prefix)) {
		if _, err := c.rest.Seek(target-int64(len(c.prefix)), io.SeekStart); err != nil {
			return 0, err
		}
	}
	c.pos = target
	return target, nil
}
