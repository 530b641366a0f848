package cfb

import (
	"encoding/binary"
	"fmt"
	"io"

	"olecore/internal/xlog"
)

// Header is the fixed 512-byte CFB header (spec §3).
type Header struct {
	Signature            uint64
	CLSID                [16]byte
	MinorVersion         uint16
	MajorVersion         uint16
	ByteOrder            uint16
	SectorShift          uint16
	MiniSectorShift      uint16
	DirectorySectorCount uint32 // major version 3: must be 0
	FATSectorCount       uint32
	DirectoryStart       uint32
	TransactionSignature uint32
	MiniStreamCutoff     uint32
	MiniFATStart         uint32
	MiniFATSectorCount   uint32
	DIFATStart           uint32
	DIFATSectorCount     uint32
	InlineDIFAT          [109]uint32
}

func parseHeader(data []byte) (*Header, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("cfb: short header (%d bytes)", len(data))
	}
	h := &Header{
		Signature:            binary.LittleEndian.Uint64(data[0:8]),
		MinorVersion:         binary.LittleEndian.Uint16(data[24:26]),
		MajorVersion:         binary.LittleEndian.Uint16(data[26:28]),
		ByteOrder:            binary.LittleEndian.Uint16(data[28:30]),
		SectorShift:          binary.LittleEndian.Uint16(data[30:32]),
		MiniSectorShift:      binary.LittleEndian.Uint16(data[32:34]),
		DirectorySectorCount: binary.LittleEndian.Uint32(data[40:44]),
		FATSectorCount:       binary.LittleEndian.Uint32(data[44:48]),
		DirectoryStart:       binary.LittleEndian.Uint32(data[48:52]),
		TransactionSignature: binary.LittleEndian.Uint32(data[52:56]),
		MiniStreamCutoff:     binary.LittleEndian.Uint32(data[56:60]),
		MiniFATStart:         binary.LittleEndian.Uint32(data[60:64]),
		MiniFATSectorCount:   binary.LittleEndian.Uint32(data[64:68]),
		DIFATStart:           binary.LittleEndian.Uint32(data[68:72]),
		DIFATSectorCount:     binary.LittleEndian.Uint32(data[72:76]),
	}
	copy(h.CLSID[:], data[8:24])
	for i := 0; i < 109; i++ {
		h.InlineDIFAT[i] = binary.LittleEndian.Uint32(data[76+i*4 : 80+i*4])
	}
	if h.Signature != Signature {
		return nil, ErrBadMagic
	}
	if h.SectorShift != 9 && h.SectorShift != 12 {
		return nil, ErrBadSectorSize
	}
	return h, nil
}

// anomalies records non-fatal deviations from the canonical header shape,
// per spec §4.1's anomaly policy.
func (h *Header) anomalies() []string {
	var out []string
	for _, b := range h.CLSID {
		if b != 0 {
			out = append(out, "header CLSID is not null")
			break
		}
	}
	if h.MinorVersion != 0x003E {
		out = append(out, fmt.Sprintf("header minor version 0x%04x differs from canonical 0x003e", h.MinorVersion))
	}
	if h.MajorVersion != 3 && h.MajorVersion != 4 {
		out = append(out, fmt.Sprintf("header major version %d is neither 3 nor 4", h.MajorVersion))
	}
	if h.MiniSectorShift != 6 {
		out = append(out, fmt.Sprintf("mini sector shift %d differs from canonical 6", h.MiniSectorShift))
	}
	return out
}

// readDIFAT returns the full DIFAT (FAT-sector id list): the 109 inline
// entries followed by any continuation chain (spec §3/§4.1).
func readDIFAT(r io.ReaderAt, h *Header, sectorSize int) ([]uint32, []string, error) {
	var anomalies []string
	difat := make([]uint32, 0, 109)
	for _, id := range h.InlineDIFAT {
		if id != SectorFree {
			difat = append(difat, id)
		}
	}

	current := h.DIFATStart
	entriesPerSector := sectorSize/4 - 1
	seen := 0
	for current != SectorEndOfChain && current != SectorFree && seen < int(h.DIFATSectorCount)+1 {
		if !isRegularSector(current) {
			return nil, anomalies, fmt.Errorf("%w: DIFAT chain hit sentinel 0x%08x", ErrBadChain, current)
		}
		buf, err := readSectorAt(r, current, sectorSize)
		if err != nil {
			return nil, anomalies, err
		}
		for i := 0; i < entriesPerSector; i++ {
			id := binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
			if id != SectorFree {
				difat = append(difat, id)
			}
		}
		current = binary.LittleEndian.Uint32(buf[entriesPerSector*4:])
		seen++
	}
	if seen != int(h.DIFATSectorCount) {
		anomalies = append(anomalies, fmt.Sprintf(
			"DIFAT chain length %d differs from header-declared %d", seen, h.DIFATSectorCount))
	}
	xlog.D.Printf("DIFAT resolved to %d FAT sector ids", len(difat))
	return difat, anomalies, nil
}

func readSectorAt(r io.ReaderAt, id uint32, sectorSize int) ([]byte, error) {
	if !isRegularSector(id) {
		return nil, fmt.Errorf("cfb: cannot read sentinel sector 0x%08x", id)
	}
	off := int64(id+1) * int64(sectorSize)
	buf := make([]byte, sectorSize)
	n, err := r.ReadAt(buf, off)
	if err != nil && !(err == io.EOF && n == sectorSize) {
		return nil, err
	}
	return buf, nil
}
