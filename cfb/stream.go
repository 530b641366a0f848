package cfb

import (
	"fmt"
	"io"
)

// StreamReader presents a directory entry's stream as a seekable byte
// stream, transparently switching between FAT-backed and MiniFAT-backed
// storage (spec §4.3). Each StreamReader owns an independent cursor; two
// readers over the same entry do not interfere with each other, but they do
// share the underlying host reader's physical read cursor is NOT assumed —
// all reads go through ReadAt, so concurrent readers are safe to construct,
// though spec §5 still asks that a single logical StreamReader not be driven
// from multiple goroutines at once.
type StreamReader struct {
	host       io.ReaderAt
	entry      *DirEntry
	isMini     bool
	size       int64
	sectorSize int
	fat        fatTable
	mini       fatTable
	miniStream io.ReaderAt // the root stream, itself a StreamReader, backing mini-sector reads

	pos          int64
	curSector    uint32
	sectorOffset int64 // byte offset of curSector's first byte in the logical stream
	buf          []byte
	bufValid     bool
}

func newStreamReader(host io.ReaderAt, entry *DirEntry, sectorSize int, fat, mini fatTable, miniStream io.ReaderAt) *StreamReader {
	s := &StreamReader{
		host:       host,
		entry:      entry,
		isMini:     entry.IsMini(),
		size:       int64(entry.Size),
		sectorSize: sectorSize,
		fat:        fat,
		mini:       mini,
		miniStream: miniStream,
		curSector:  entry.StartSector,
	}
	return s
}

// Size returns the stream's declared length in bytes.
func (s *StreamReader) Size() int64 { return s.size }

func (s *StreamReader) unitSize() int64 {
	if s.isMini {
		return miniSectorSize
	}
	return int64(s.sectorSize)
}

// rewind resets the cursor to the start of the chain (spec §4.3: backward
// seeks rewind and walk forward since chains are singly linked).
func (s *StreamReader) rewind() {
	s.pos = 0
	s.curSector = s.entry.StartSector
	s.sectorOffset = 0
	s.bufValid = false
}

// Seek implements io.Seeker. Seeking past size is permitted; reads beyond it
// yield zero bytes (spec §4.3).
func (s *StreamReader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		target = s.size + offset
	default:
		return 0, fmt.Errorf("cfb: invalid whence %d", whence)
	}
	if target < 0 {
		return 0, fmt.Errorf("cfb: negative seek position")
	}
	// Guard against overflow when combined with later unit arithmetic.
	if target > (1<<62) || offset > (1<<62) || offset < -(1<<62) {
		return 0, fmt.Errorf("cfb: seek position overflow")
	}

	if target < s.sectorOffset {
		s.rewind()
	}
	unit := s.unitSize()
	for s.sectorOffset+unit <= target {
		next, ok := s.nextSector(s.curSector)
		if !ok {
			// Chain ends before reaching target: park at the last good
			// position; reads from here return 0 bytes (EOF-like), matching
			// the "seek past size" allowance. A genuine out-of-FAT condition
			// surfaces on the next Read that tries to cross it.
			break
		}
		s.curSector = next
		s.sectorOffset += unit
		s.bufValid = false
	}
	s.pos = target
	return s.pos, nil
}

func (s *StreamReader) nextSector(id uint32) (uint32, bool) {
	if s.isMini {
		return s.mini.next(id)
	}
	return s.fat.next(id)
}

func (s *StreamReader) fillBuffer() error {
	if s.bufValid {
		return nil
	}
	unit := s.unitSize()
	remaining := s.size - s.sectorOffset
	if remaining <= 0 {
		s.buf = nil
		s.bufValid = true
		return nil
	}
	want := unit
	if remaining < want {
		want = remaining
	}
	var raw []byte
	var err error
	if s.isMini {
		raw, err = readMiniSector(s.miniStream, s.curSector)
	} else {
		raw, err = readSectorAt(s.host, s.curSector, s.sectorSize)
	}
	if err != nil {
		return err
	}
	s.buf = raw[:want]
	s.bufValid = true
	return nil
}

func readMiniSector(miniStream io.ReaderAt, id uint32) ([]byte, error) {
	buf := make([]byte, miniSectorSize)
	off := int64(id) * miniSectorSize
	n, err := miniStream.ReadAt(buf, off)
	if err != nil && !(err == io.EOF && n == miniSectorSize) {
		if n > 0 {
			return buf[:n], nil
		}
		return nil, err
	}
	return buf, nil
}

// Read implements io.Reader per spec §4.3's fill-copy-advance algorithm.
func (s *StreamReader) Read(p []byte) (int, error) {
	if s.pos >= s.size {
		return 0, io.EOF
	}
	total := 0
	unit := s.unitSize()
	for total < len(p) && s.pos < s.size {
		posInSector := s.pos - s.sectorOffset
		if posInSector >= unit || !s.bufValid {
			if posInSector >= unit {
				next, ok := s.nextSector(s.curSector)
				if !ok {
					return total, fmt.Errorf("%w: stream ended before declared size (pos %d of %d)", ErrOutOfFAT, s.pos, s.size)
				}
				s.curSector = next
				s.sectorOffset += unit
				posInSector = 0
			}
			s.bufValid = false
			if err := s.fillBuffer(); err != nil {
				return total, err
			}
		}
		if len(s.buf) == 0 {
			break
		}
		avail := int64(len(s.buf)) - posInSector
		if avail <= 0 {
			next, ok := s.nextSector(s.curSector)
			if !ok {
				break
			}
			s.curSector = next
			s.sectorOffset += unit
			s.bufValid = false
			continue
		}
		remainingStream := s.size - s.pos
		n := int64(len(p) - total)
		if n > avail {
			n = avail
		}
		if n > remainingStream {
			n = remainingStream
		}
		copy(p[total:], s.buf[posInSector:posInSector+n])
		total += int(n)
		s.pos += n
	}
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// ReadAt implements io.ReaderAt by seeking and reading on a private cursor,
// so it may be called concurrently with the receiver's own Read/Seek cursor.
// This is how the root entry's StreamReader is used to back mini-sector
// reads (spec §4.1: the mini-stream is the Root Entry's byte stream).
func (s *StreamReader) ReadAt(p []byte, off int64) (int, error) {
	clone := &StreamReader{
		host: s.host, entry: s.entry, isMini: s.isMini, size: s.size,
		sectorSize: s.sectorSize, fat: s.fat, mini: s.mini, miniStream: s.miniStream,
		curSector: s.entry.StartSector,
	}
	if _, err := clone.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	total := 0
	for total < len(p) {
		n, err := clone.Read(p[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				return total, io.EOF
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

var _ io.ReadSeeker = (*StreamReader)(nil)
var _ io.ReaderAt = (*StreamReader)(nil)
