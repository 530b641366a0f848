package doc

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// PlcfBteChpx indexes the FKP pages backing character-property runs
// (spec §4.8). aFC is the parallel array of file coordinates; aPnBteChpx[i]
// holds the FKP page number covering [aFC[i], aFC[i+1]).
type PlcfBteChpx struct {
	aFC         []uint32
	aPnBteChpx  []uint32
}

// ParsePlcfBteChpx decodes a PlcfBteChpx blob: n+1 u32 FCs followed by n u32
// page descriptors (each descriptor's full u32 is the page number, per
// MS-DOC 2.8.2's FC/PN convention this parser follows, unlike PAPX's
// 13-bit-shifted page number).
func ParsePlcfBteChpx(data []byte) (*PlcfBteChpx, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("doc: PlcfBteChpx shorter than one FC")
	}
	if (len(data)-4)%8 != 0 {
		return nil, fmt.Errorf("doc: PlcfBteChpx size %d does not fit the (n+1)*4+n*4 layout", len(data))
	}
	n := (len(data) - 4) / 8
	aFC := make([]uint32, n+1)
	for i := range aFC {
		aFC[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	aPn := make([]uint32, n)
	base := (n + 1) * 4
	for i := range aPn {
		aPn[i] = binary.LittleEndian.Uint32(data[base+i*4 : base+i*4+4])
	}
	return &PlcfBteChpx{aFC: aFC, aPnBteChpx: aPn}, nil
}

// pageForFC finds the FKP page covering file coordinate fc, per spec §4.8's
// "largest index i with aFC[i] <= fc" rule.
func (p *PlcfBteChpx) pageForFC(fc uint32) (pn uint32, ok bool) {
	if len(p.aFC) == 0 {
		return 0, false
	}
	i := sort.Search(len(p.aFC), func(j int) bool { return p.aFC[j] > fc }) - 1
	if i < 0 || i >= len(p.aPnBteChpx) {
		return 0, false
	}
	if fc < p.aFC[0] || fc >= p.aFC[len(p.aFC)-1] {
		return 0, false
	}
	return p.aPnBteChpx[i], true
}

// Prl is a single formatting property record: a 16-bit Sprm plus its operand.
type Prl struct {
	Sprm    uint16
	Operand []byte
}

// chpxFKP holds one parsed 512-byte FKP page: the file-coordinate boundaries
// of each run and each run's decoded Prl list.
type chpxFKP struct {
	fc   []uint32 // crun+1 entries
	prls [][]Prl  // crun entries
}

// parseFKPPage decodes a 512-byte Character FKP page (spec §4.8).
func parseFKPPage(page []byte) (*chpxFKP, error) {
	if len(page) != 512 {
		return nil, fmt.Errorf("doc: FKP page must be 512 bytes, got %d", len(page))
	}
	crun := int(page[511])
	fc := make([]uint32, crun+1)
	for i := 0; i <= crun; i++ {
		fc[i] = binary.LittleEndian.Uint32(page[i*4 : i*4+4])
	}
	byteOffBase := (crun + 1) * 4
	byteOffsets := make([]byte, crun)
	copy(byteOffsets, page[byteOffBase:byteOffBase+crun])

	parsed := make(map[byte][]Prl)
	prls := make([][]Prl, crun)
	for i, b := range byteOffsets {
		if b == 0 {
			prls[i] = nil
			continue
		}
		if cached, ok := parsed[b]; ok {
			prls[i] = cached
			continue
		}
		pos := int(b) * 2
		if pos >= len(page) {
			return nil, fmt.Errorf("doc: FKP chpx byte-offset %d out of range", b)
		}
		grpLen := int(page[pos])
		start := pos + 1
		end := start + grpLen
		if end > len(page) {
			return nil, fmt.Errorf("doc: FKP chpx grpprl at offset %d truncated", pos)
		}
		list, err := decodePrls(page[start:end])
		if err != nil {
			return nil, err
		}
		parsed[b] = list
		prls[i] = list
	}
	return &chpxFKP{fc: fc, prls: prls}, nil
}

// decodePrls decodes a grpprl byte region into its Prl records (spec §4.8:
// operand size is a function of sprm>>13, the "spra" field).
func decodePrls(data []byte) ([]Prl, error) {
	var out []Prl
	off := 0
	for off < len(data) {
		if off+2 > len(data) {
			return nil, fmt.Errorf("doc: grpprl truncated reading sprm at offset %d", off)
		}
		sprm := binary.LittleEndian.Uint16(data[off : off+2])
		off += 2
		spra := sprm >> 13
		var size int
		switch spra {
		case 0, 1:
			size = 1
		case 2, 4, 5:
			size = 2
		case 7:
			size = 3
		case 3:
			size = 4
		case 6:
			if off >= len(data) {
				return nil, fmt.Errorf("doc: grpprl truncated reading length-prefixed operand")
			}
			size = int(data[off]) + 1 // length byte plus its payload
		default:
			return nil, fmt.Errorf("doc: impossible spra value %d", spra)
		}
		if off+size > len(data) {
			return nil, fmt.Errorf("doc: grpprl operand for sprm 0x%04x truncated", sprm)
		}
		operand := make([]byte, size)
		copy(operand, data[off:off+size])
		out = append(out, Prl{Sprm: sprm, Operand: operand})
		off += size
	}
	return out, nil
}

// ChpxCache binary-searches PlcfBteChpx and caches exactly one decoded FKP
// page at a time (spec §4.8: "single-slot cache").
type ChpxCache struct {
	plc       *PlcfBteChpx
	wdReader  fcReaderAt
	curPage   uint32
	haveCur   bool
	decoded   *chpxFKP
}

// fcReaderAt is the minimal interface the cache needs to fetch 512-byte FKP
// pages by absolute file coordinate.
type fcReaderAt interface {
	ReadAt(p []byte, off int64) (int, error)
}

// NewChpxCache builds a cache over plc, reading FKP pages from r (the
// WordDocument stream).
func NewChpxCache(plc *PlcfBteChpx, r fcReaderAt) *ChpxCache {
	return &ChpxCache{plc: plc, wdReader: r}
}

// Lookup returns the Prl list in effect at file coordinate fc, or nil if fc
// falls outside the indexed range (spec §4.8).
func (c *ChpxCache) Lookup(fc uint32) ([]Prl, error) {
	pn, ok := c.plc.pageForFC(fc)
	if !ok {
		return nil, nil
	}
	if !c.haveCur || c.curPage != pn || c.decoded == nil {
		page := make([]byte, 512)
		if _, err := c.wdReader.ReadAt(page, int64(pn)*512); err != nil {
			return nil, fmt.Errorf("doc: reading FKP page %d: %w", pn, err)
		}
		fkp, err := parseFKPPage(page)
		if err != nil {
			return nil, fmt.Errorf("doc: FKP page %d: %w", pn, err)
		}
		c.decoded = fkp
		c.curPage = pn
		c.haveCur = true
	}
	i := sort.Search(len(c.decoded.fc), func(j int) bool { return c.decoded.fc[j] > fc }) - 1
	if i < 0 || i >= len(c.decoded.prls) {
		return nil, nil
	}
	return c.decoded.prls[i], nil
}

// FindProperty returns the operand of the first Prl matching sprm, if any.
func FindProperty(prls []Prl, sprm uint16) ([]byte, bool) {
	for _, p := range prls {
		if p.Sprm == sprm {
			return p.Operand, true
		}
	}
	return nil, false
}
