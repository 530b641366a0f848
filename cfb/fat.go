package cfb

import (
	"encoding/binary"
	"fmt"
	"io"

	"olecore/internal/xlog"
)

// fatTable is a flat sector-id -> next-sector-id index (FAT or MiniFAT).
type fatTable []uint32

// next returns the sector following id, or false at end-of-chain / out of range.
func (t fatTable) next(id uint32) (uint32, bool) {
	if int(id) >= len(t) {
		return 0, false
	}
	n := t[id]
	if n == SectorEndOfChain {
		return 0, false
	}
	return n, true
}

// chain walks the FAT starting at start, returning every sector id visited.
// A non-EndOfChain sentinel encountered mid-chain is fatal (spec §4.1).
func (t fatTable) chain(start uint32) ([]uint32, error) {
	var out []uint32
	seen := make(map[uint32]bool)
	cur := start
	for cur != SectorEndOfChain {
		if cur == SectorFree || cur == SectorFAT || cur == SectorDIFAT {
			return nil, fmt.Errorf("%w: sector 0x%08x", ErrBadChain, cur)
		}
		if !isRegularSector(cur) {
			return nil, fmt.Errorf("%w: sector 0x%08x", ErrBadChain, cur)
		}
		if seen[cur] {
			return nil, fmt.Errorf("cfb: cyclic FAT chain at sector %d", cur)
		}
		seen[cur] = true
		out = append(out, cur)
		n, ok := t.next(cur)
		if !ok {
			break
		}
		cur = n
	}
	return out, nil
}

// findNth walks n steps from start and returns the sector id reached,
// per spec §4.1's find_nth_in_chain.
func (t fatTable) findNth(start uint32, n int) (uint32, error) {
	cur := start
	for i := 0; i < n; i++ {
		next, ok := t.next(cur)
		if !ok {
			return 0, fmt.Errorf("cfb: chain ended before step %d", n)
		}
		cur = next
	}
	return cur, nil
}

// loadFAT reads every DIFAT-referenced sector as a FAT sector and
// concatenates their 32-bit entries (spec §4.1).
func loadFAT(r io.ReaderAt, difat []uint32, sectorSize int, fileSize int64) (fatTable, error) {
	entriesPerSector := sectorSize / 4
	// Guard against allocation-bomb inputs (spec §5): a declared FAT larger
	// than the host file could plausibly back is rejected outright.
	maxPlausibleEntries := (fileSize/int64(sectorSize) + 2) * int64(entriesPerSector)
	if int64(len(difat))*int64(entriesPerSector) > maxPlausibleEntries {
		return nil, ErrTooManySectors
	}

	fat := make(fatTable, 0, len(difat)*entriesPerSector)
	for _, sec := range difat {
		buf, err := readSectorAt(r, sec, sectorSize)
		if err != nil {
			return nil, err
		}
		for i := 0; i < entriesPerSector; i++ {
			fat = append(fat, binary.LittleEndian.Uint32(buf[i*4:i*4+4]))
		}
	}
	xlog.D.Printf("FAT materialized: %d entries", len(fat))
	return fat, nil
}

// loadMiniFAT reads the MiniFAT chain rooted at h.MiniFATStart, walking the
// regular FAT to find successive MiniFAT sectors.
func loadMiniFAT(r io.ReaderAt, fat fatTable, h *Header, sectorSize int) (fatTable, error) {
	if h.MiniFATSectorCount == 0 {
		return nil, nil
	}
	entriesPerSector := sectorSize / 4
	mini := make(fatTable, 0, int(h.MiniFATSectorCount)*entriesPerSector)
	cur := h.MiniFATStart
	for i := uint32(0); i < h.MiniFATSectorCount; i++ {
		if !isRegularSector(cur) {
			return nil, fmt.Errorf("%w: MiniFAT chain hit sentinel 0x%08x", ErrBadChain, cur)
		}
		buf, err := readSectorAt(r, cur, sectorSize)
		if err != nil {
			return nil, err
		}
		for j := 0; j < entriesPerSector; j++ {
			mini = append(mini, binary.LittleEndian.Uint32(buf[j*4:j*4+4]))
		}
		next, ok := fat.next(cur)
		if !ok {
			break
		}
		cur = next
	}
	xlog.D.Printf("MiniFAT materialized: %d entries", len(mini))
	return mini, nil
}
