package cfb

import (
	"fmt"
	"io"

	"olecore/internal/xlog"
)

// Reader is an opened CFB container: an immutable view over a host
// io.ReaderAt exposing directory lookup and stream access (spec §5: the
// container engine is effectively immutable after Open).
type Reader struct {
	host       io.ReaderAt
	header     *Header
	sectorSize int
	fat        fatTable
	mini       fatTable
	dir        *Directory
	rootStream *StreamReader

	anomalies []string
}

// Open parses a CFB container from r, materializing its header, DIFAT, FAT,
// MiniFAT and directory (spec §4.1's open operation).
func Open(r io.ReaderAt, fileSize int64) (*Reader, error) {
	hdrBuf := make([]byte, headerLen)
	if _, err := r.ReadAt(hdrBuf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	h, err := parseHeader(hdrBuf)
	if err != nil {
		return nil, err
	}

	cr := &Reader{host: r, header: h, sectorSize: 1 << h.SectorShift}
	cr.anomalies = append(cr.anomalies, h.anomalies()...)

	difat, difatAnom, err := readDIFAT(r, h, cr.sectorSize)
	if err != nil {
		return nil, err
	}
	cr.anomalies = append(cr.anomalies, difatAnom...)

	if uint32(len(difat)) != h.FATSectorCount {
		cr.anomalies = append(cr.anomalies, fmt.Sprintf(
			"declared FAT sector count %d differs from DIFAT-resolved count %d",
			h.FATSectorCount, len(difat)))
	}

	fat, err := loadFAT(r, difat, cr.sectorSize, fileSize)
	if err != nil {
		return nil, err
	}
	cr.fat = fat

	mini, err := loadMiniFAT(r, fat, h, cr.sectorSize)
	if err != nil {
		return nil, err
	}
	cr.mini = mini

	dir, err := loadDirectory(fat, mini, nil, r, h, cr.sectorSize)
	if err != nil {
		return nil, err
	}
	cr.dir = dir

	root, err := dir.Root()
	if err != nil {
		return nil, err
	}
	cr.rootStream = newStreamReader(r, root, cr.sectorSize, fat, mini, nil)

	xlog.L.Printf("cfb: opened container, sector size %d, %d directory entries, %d anomalies",
		cr.sectorSize, len(dir.entries), len(cr.anomalies))
	return cr, nil
}

// Anomalies returns the accumulated non-fatal deviations observed while
// parsing (spec §4.1/§7).
func (r *Reader) Anomalies() []string { return r.anomalies }

// SectorSize returns the container's regular sector size (512 or 4096).
func (r *Reader) SectorSize() int { return r.sectorSize }

// Directory exposes the parsed directory for callers that want to walk it
// directly (e.g. to enumerate storages).
func (r *Reader) Directory() *Directory { return r.dir }

// Lookup resolves a path to its directory entry (spec §4.2).
func (r *Reader) Lookup(path string) (*DirEntry, error) {
	return r.dir.Lookup(path)
}

// GetStream opens a seekable stream reader over the named entry
// (spec §6: the container hands out independent StreamReader views).
func (r *Reader) GetStream(path string) (*StreamReader, error) {
	entry, err := r.Lookup(path)
	if err != nil {
		return nil, err
	}
	return r.GetStreamFor(entry)
}

// GetStreamFor opens a stream reader over an already-resolved entry.
func (r *Reader) GetStreamFor(entry *DirEntry) (*StreamReader, error) {
	if entry.Type != ObjStream && entry.Type != ObjRoot {
		return nil, fmt.Errorf("cfb: entry %q is not a stream", entry.Name)
	}
	var miniBacking io.ReaderAt
	if entry.IsMini() {
		miniBacking = r.rootStream
	}
	return newStreamReader(r.host, entry, r.sectorSize, r.fat, r.mini, miniBacking), nil
}

// NextSector returns the sector following id in the regular FAT, or false at
// end-of-chain (spec §4.1's next_sector).
func (r *Reader) NextSector(id uint32) (uint32, bool) { return r.fat.next(id) }

// NextMiniSector returns the sector following id in the MiniFAT, or false at
// end-of-chain (spec §4.1's next_mini_sector).
func (r *Reader) NextMiniSector(id uint32) (uint32, bool) { return r.mini.next(id) }

// FindNthInChain walks n steps in the regular FAT from start
// (spec §4.1's find_nth_in_chain).
func (r *Reader) FindNthInChain(start uint32, n int) (uint32, error) {
	return r.fat.findNth(start, n)
}

// ReadSector returns the raw bytes of sector id (spec §4.1's read_sector).
func (r *Reader) ReadSector(id uint32) ([]byte, error) {
	return readSectorAt(r.host, id, r.sectorSize)
}

// Walk invokes fn for every allocated directory entry (a flat walk; spec §4.2
// does not mandate tree-order traversal for enumeration, only for lookup).
func (r *Reader) Walk(fn func(*DirEntry) error) error {
	for _, e := range r.dir.entries {
		if e.Type == ObjUnallocated {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}
