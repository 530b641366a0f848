package doc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// compressedCharTable translates a single compressed-text byte into its
// Unicode code point (spec §4.7/§8): positions 0x00-0x7F and 0xA0-0xFF are
// identity; 0x80-0x9F carry the CP1252-style punctuation substitutions Word
// uses for 8-bit "compressed" runs.
var compressedCharTable = func() [256]rune {
	var t [256]rune
	for i := range t {
		t[i] = rune(i)
	}
	special := map[byte]rune{
		0x80: 0x20AC, 0x82: 0x201A, 0x83: 0x0192, 0x84: 0x201E, 0x85: 0x2026,
		0x86: 0x2020, 0x87: 0x2021, 0x88: 0x02C6, 0x89: 0x2030, 0x8A: 0x0160,
		0x8B: 0x2039, 0x8C: 0x0152, 0x8E: 0x017D, 0x91: 0x2018, 0x92: 0x2019,
		0x93: 0x201C, 0x94: 0x201D, 0x95: 0x2022, 0x96: 0x2013, 0x97: 0x2014,
		0x98: 0x02DC, 0x99: 0x2122, 0x9A: 0x0161, 0x9B: 0x203A, 0x9C: 0x0153,
		0x9E: 0x017E, 0x9F: 0x0178,
	}
	for b, r := range special {
		t[b] = r
	}
	return t
}()

// TextRange is one piece's [cp_range) together with its file offset and
// compression flag (spec §4.6's iterator output).
type TextRange struct {
	StartCP    uint32
	EndCP      uint32
	Compressed bool
	StartFc    uint32
}

// ranges converts a Pcdt's PlcPcd into ordered TextRange tuples.
func (pcdt *Pcdt) ranges() []TextRange {
	acp := pcdt.PlcPcd.ACP
	apcd := pcdt.PlcPcd.APcd
	out := make([]TextRange, 0, len(apcd))
	for i, pcd := range apcd {
		fc := pcd.Fc()
		if pcd.IsCompressed() {
			fc /= 2
		}
		out = append(out, TextRange{
			StartCP:    acp[i],
			EndCP:      acp[i+1],
			Compressed: pcd.IsCompressed(),
			StartFc:    fc,
		})
	}
	return out
}

// WordCharKind discriminates the CharIter element union (spec §6).
type WordCharKind int

const (
	KindChar WordCharKind = iota
	KindPicture
	KindComplexField
	KindHyperlink
	KindOther
)

// WordChar is one emitted element of the character iterator.
type WordChar struct {
	Kind WordCharKind

	Char rune // KindChar

	DataLocation string // KindPicture

	Key, Value string   // KindComplexField / KindHyperlink
	URI        string   // KindHyperlink
	Extra      []string // KindComplexField / KindHyperlink

	OtherTag string // KindOther
}

// Inline marker codes (spec §4.7).
const (
	markerImage       = 0x01
	markerFloatingPic = 0x08
	markerFieldBegin  = 0x13
	markerFieldSep    = 0x14
	markerFieldEnd    = 0x15
)

var otherTags = map[rune]string{
	0x02: "auto-numbered footnote",
	0x03: "short horizontal line",
	0x04: "long horizontal line",
	0x05: "annotation reference",
	0x28: "symbol",
	0x3C: "start bookmark tag",
	0x3E: "end bookmark tag",
}

// Sprm identifiers the inline-marker dispatch consults (spec §4.7).
const (
	sprmPicLocation = 0x6A03
	sprmPicBinary   = 0x0806
)

// fieldState tracks the §9 field FSM: outside-field, in-key, in-value.
// Nested 0x13 inside an open field is explicitly not supported — it is
// folded into the side accumulating, per spec §9's documented limitation.
type fieldState int

const (
	fieldOutside fieldState = iota
	fieldInKey
	fieldInValue
)

type fieldAccumulator struct {
	key, value string
	extra      []string
}

// CharIter walks one DocPart's character range, decoding pieces, inline
// markers, and fields (spec §4.7).
type CharIter struct {
	curCP, endCP   uint32
	ranges         []TextRange
	activeIdx      int
	wd             io.ReadSeeker   // primary cursor: character reads
	wdClone        fcReaderAt      // independent cursor: CHPX lookups
	lastChar       rune
	chpx           *ChpxCache
	codepage       uint16

	state fieldState
	field *fieldAccumulator
}

// NewCharIter sets up an iterator over [startCP, endCP) using ranges
// filtered to those intersecting the window, seeking wd to the first
// intersecting piece (spec §4.7 "Setup").
func NewCharIter(startCP, endCP uint32, pcdt *Pcdt, wd io.ReadSeeker, wdClone fcReaderAt, chpx *ChpxCache, codepage uint16) (*CharIter, error) {
	all := pcdt.ranges()
	var filtered []TextRange
	for _, r := range all {
		if r.EndCP <= startCP || r.StartCP >= endCP {
			continue // entirely outside the window: skipped per spec §4.6
		}
		filtered = append(filtered, r)
	}
	it := &CharIter{
		curCP:    startCP,
		endCP:    endCP,
		ranges:   filtered,
		wd:       wd,
		wdClone:  wdClone,
		chpx:     chpx,
		codepage: codepage,
	}
	if len(filtered) > 0 {
		if err := it.seekToRange(0); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func unitSize(r TextRange) int64 {
	if r.Compressed {
		return 1
	}
	return 2
}

func (it *CharIter) seekToRange(idx int) error {
	it.activeIdx = idx
	r := it.ranges[idx]
	cpOffset := int64(it.curCP) - int64(r.StartCP)
	if cpOffset < 0 {
		cpOffset = 0
	}
	fc := int64(r.StartFc) + cpOffset*unitSize(r)
	_, err := it.wd.Seek(fc, io.SeekStart)
	return err
}

// nextChar is the C7 primitive: returns the decoded rune and its file
// coordinate, or ok=false at end of window.
func (it *CharIter) nextChar() (c rune, fc uint32, ok bool, err error) {
	if it.curCP >= it.endCP {
		return 0, 0, false, nil
	}
	if it.activeIdx >= len(it.ranges) {
		return 0, 0, false, nil
	}
	r := it.ranges[it.activeIdx]
	if it.curCP >= r.EndCP {
		next := it.activeIdx + 1
		if next >= len(it.ranges) {
			return 0, 0, false, nil
		}
		if err := it.seekToRange(next); err != nil {
			return 0, 0, false, err
		}
		return it.nextChar()
	}

	cpOffset := int64(it.curCP) - int64(r.StartCP)
	curFc := uint32(int64(r.StartFc) + cpOffset*unitSize(r))

	if r.Compressed {
		var b [1]byte
		if _, err := io.ReadFull(it.wd, b[:]); err != nil {
			return 0, 0, false, fmt.Errorf("doc: reading compressed char at fc %d: %w", curFc, err)
		}
		it.curCP++
		return compressedCharTable[b[0]], curFc, true, nil
	}

	var b [2]byte
	if _, err := io.ReadFull(it.wd, b[:]); err != nil {
		return 0, 0, false, fmt.Errorf("doc: reading unicode char at fc %d: %w", curFc, err)
	}
	unit := binary.LittleEndian.Uint16(b[:])
	it.curCP++
	if unit >= 0xD800 && unit <= 0xDBFF {
		// High surrogate: try to read the low surrogate, but never cross
		// end_cp or the range boundary while doing so (spec §4.7).
		if it.curCP >= it.endCP || it.curCP >= r.EndCP {
			return 0xFFFD, curFc, true, nil
		}
		var lo [2]byte
		if _, err := io.ReadFull(it.wd, lo[:]); err != nil {
			return 0, 0, false, fmt.Errorf("doc: reading low surrogate at fc %d: %w", curFc, err)
		}
		loUnit := binary.LittleEndian.Uint16(lo[:])
		it.curCP++
		if loUnit < 0xDC00 || loUnit > 0xDFFF {
			return 0xFFFD, curFc, true, nil
		}
		r := (rune(unit-0xD800) << 10) | rune(loUnit-0xDC00)
		return r + 0x10000, curFc, true, nil
	}
	return rune(unit), curFc, true, nil
}

// Next advances the iterator, applying inline-marker dispatch and the field
// FSM, and returns the next emitted WordChar (spec §4.7). Returns ok=false
// at end of stream.
func (it *CharIter) Next() (WordChar, bool, error) {
	for {
		c, fc, ok, err := it.nextChar()
		if err != nil {
			return WordChar{}, false, err
		}
		if !ok {
			return WordChar{}, false, nil
		}
		wc, emit, err := it.dispatch(c, fc)
		if err != nil {
			return WordChar{}, false, err
		}
		it.lastChar = c
		if emit {
			return wc, true, nil
		}
		// Not emitted (consumed into a field, or suppressed): keep going.
	}
}

func (it *CharIter) dispatch(c rune, fc uint32) (WordChar, bool, error) {
	switch c {
	case markerImage:
		loc := it.pictureLocation(fc)
		w := WordChar{Kind: KindPicture, DataLocation: loc}
		if it.state != fieldOutside && it.field != nil {
			it.field.extra = append(it.field.extra, loc)
			return WordChar{}, false, nil
		}
		return w, true, nil

	case markerFloatingPic:
		w := WordChar{Kind: KindPicture, DataLocation: "opaque"}
		if it.state != fieldOutside && it.field != nil {
			it.field.extra = append(it.field.extra, "opaque")
			return WordChar{}, false, nil
		}
		return w, true, nil

	case markerFieldBegin:
		if it.state != fieldOutside {
			// Nested fields are not supported (spec §9): keep accumulating
			// into the current side rather than starting a new frame.
			return WordChar{}, false, nil
		}
		it.state = fieldInKey
		it.field = &fieldAccumulator{}
		return WordChar{}, false, nil

	case markerFieldSep:
		if it.state == fieldInKey {
			it.state = fieldInValue
			if loc, has := it.pictureLocationIfChpx(fc); has {
				it.field.extra = append(it.field.extra, loc)
			}
		}
		return WordChar{}, false, nil

	case markerFieldEnd:
		if it.state == fieldOutside || it.field == nil {
			return WordChar{}, false, nil
		}
		f := it.field
		it.field = nil
		it.state = fieldOutside
		if isHyperlinkField(f.key) {
			if uri, ok := extractQuotedURI(f.key); ok {
				return WordChar{Kind: KindHyperlink, Value: f.value, URI: uri, Extra: f.extra}, true, nil
			}
		}
		return WordChar{Kind: KindComplexField, Key: f.key, Value: f.value, Extra: f.extra}, true, nil

	case 0x2002, 0x2003:
		c = ' '
	case 0x0D:
		c = '\n'
	case 0x07:
		if it.lastChar == 0x07 {
			c = '\n'
		} else {
			c = '\t'
		}
	}

	if tag, isOther := otherTags[c]; isOther {
		if it.state != fieldOutside && it.field != nil {
			it.field.extra = append(it.field.extra, tag)
			return WordChar{}, false, nil
		}
		return WordChar{Kind: KindOther, OtherTag: tag}, true, nil
	}

	if it.state == fieldInKey {
		it.field.key += string(c)
		return WordChar{}, false, nil
	}
	if it.state == fieldInValue {
		it.field.value += string(c)
		return WordChar{}, false, nil
	}

	return WordChar{Kind: KindChar, Char: c}, true, nil
}

func (it *CharIter) pictureLocation(fc uint32) string {
	if loc, ok := it.pictureLocationIfChpx(fc); ok {
		return loc
	}
	return "unknown"
}

func (it *CharIter) pictureLocationIfChpx(fc uint32) (string, bool) {
	if it.chpx == nil {
		return "", false
	}
	prls, err := it.chpx.Lookup(fc)
	if err != nil || prls == nil {
		return "", false
	}
	if operand, ok := FindProperty(prls, sprmPicLocation); ok {
		if len(operand) >= 1 {
			kind := "binary-data"
			if bin, hasBin := FindProperty(prls, sprmPicBinary); hasBin && len(bin) >= 1 && bin[0] == 0 {
				kind = "picf-and-office-art-data"
			}
			return fmt.Sprintf("%s@%x", kind, operand), true
		}
	}
	return "", false
}

func isHyperlinkField(key string) bool {
	const prefix = "HYPERLINK "
	return len(key) >= len(prefix) && key[:len(prefix)] == prefix
}

func extractQuotedURI(key string) (string, bool) {
	start := -1
	for i, c := range key {
		if c == '"' {
			if start == -1 {
				start = i + 1
			} else {
				return key[start:i], true
			}
		}
	}
	return "", false
}
