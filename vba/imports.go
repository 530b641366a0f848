package vba

import (
	"encoding/binary"
	"fmt"
)

// ImportTable is the raw declared-length buffer backing DLL import lookups
// (spec §4.9: "raw buffer of declared length").
type ImportTable struct {
	data []byte
}

// LoadImportTable wraps a raw import-table buffer of the given length.
func LoadImportTable(data []byte, length uint32) (*ImportTable, error) {
	if uint64(length) > uint64(len(data)) {
		return nil, fmt.Errorf("vba: import table length %d exceeds available data %d", length, len(data))
	}
	return &ImportTable{data: data[:length]}, nil
}

// Lookup decodes the import descriptor at off (spec §4.9):
// by_ord (u16), lib_id (u16); if by_ord != 0, ordinal form "#N"; otherwise
// read fun_offset (u16), then a NUL-terminated ASCII name at that offset.
// libID identifies which referenced library the import belongs to; this
// parser doesn't model the project's reference table, so callers render it
// numerically when no friendlier name is available.
func (t *ImportTable) Lookup(off uint32) (libID uint16, name string, err error) {
	if uint64(off)+4 > uint64(len(t.data)) {
		return 0, "", fmt.Errorf("vba: import descriptor at %d truncated", off)
	}
	byOrd := binary.LittleEndian.Uint16(t.data[off : off+2])
	libID = binary.LittleEndian.Uint16(t.data[off+2 : off+4])
	if byOrd != 0 {
		return libID, fmt.Sprintf("#%d", byOrd), nil
	}
	if uint64(off)+6 > uint64(len(t.data)) {
		return libID, "", fmt.Errorf("vba: import descriptor at %d missing fun_offset", off)
	}
	funOffset := binary.LittleEndian.Uint16(t.data[off+4 : off+6])
	name, err = t.readCString(uint32(funOffset))
	return libID, name, err
}

func (t *ImportTable) readCString(off uint32) (string, error) {
	if uint64(off) >= uint64(len(t.data)) {
		return "", fmt.Errorf("vba: import name offset %d out of range", off)
	}
	end := off
	for end < uint32(len(t.data)) && t.data[end] != 0 {
		end++
	}
	return string(t.data[off:end]), nil
}
