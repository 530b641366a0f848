package vba

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// typeNameHeaderMagic is the required header[0] value (spec §4.9).
const typeNameHeaderMagic = 0x00DF

// typeNameRecord is one 5-u16 record: refcount, map_type, reserved_id,
// map_id, pad.
type typeNameRecord struct {
	refCount   uint16
	mapType    uint16
	reservedID uint16
	mapID      uint16
}

const (
	mapTypeReserved = 1 << 1 // reserved slots count but don't populate id->name
	mapTypeMulti    = 1 << 0 // multi-token slots resolve via the payload region
)

// TypeNameTable resolves type-reference ids to dotted names (spec §4.9).
// Entries are keyed by the record's position i, not by its map_id: map_id is
// only ever an argument to a name-resolution step (the original's
// get_string_from_table{,_or_builtin}), never a lookup key itself.
type TypeNameTable struct {
	names    map[uint16]string // record index i -> resolved name (single- or multi-token)
	offsets map[uint16]uint32 // record index i -> map_id (name offset, or multi-token payload offset)
	isMulti  map[uint16]bool
	payload  []byte
}

// parseTypeNameTable decodes the fixed 0x45-u16 header, the record array,
// the fixed trailer, and the multi-token payload region.
func parseTypeNameTable(data []byte) (*TypeNameTable, error) {
	const headerWords = 0x45
	headerLen := headerWords * 2
	if len(data) < headerLen {
		return nil, fmt.Errorf("type-names table shorter than its 0x45-word header")
	}
	magic := binary.LittleEndian.Uint16(data[0:2])
	if magic != typeNameHeaderMagic {
		return nil, fmt.Errorf("bad type-names table magic 0x%04x, want 0x%04x", magic, typeNameHeaderMagic)
	}

	off := headerLen
	if off+2 > len(data) {
		return nil, fmt.Errorf("truncated before record-array length")
	}
	recLen := int(binary.LittleEndian.Uint16(data[off : off+2]))
	off += 2

	if off+recLen*10 > len(data) {
		return nil, fmt.Errorf("record array of %d records runs past end of data", recLen)
	}
	records := make([]typeNameRecord, recLen)
	for i := 0; i < recLen; i++ {
		b := off + i*10
		records[i] = typeNameRecord{
			refCount:   binary.LittleEndian.Uint16(data[b : b+2]),
			mapType:    binary.LittleEndian.Uint16(data[b+2 : b+4]),
			reservedID: binary.LittleEndian.Uint16(data[b+4 : b+6]),
			mapID:      binary.LittleEndian.Uint16(data[b+6 : b+8]),
		}
	}
	off += recLen * 10

	// Fixed trailer: two u16s.
	if off+4 > len(data) {
		return nil, fmt.Errorf("truncated before fixed trailer")
	}
	off += 4

	if off+4 > len(data) {
		return nil, fmt.Errorf("truncated before multi-token payload length")
	}
	payloadLen := int(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	if off+payloadLen > len(data) {
		return nil, fmt.Errorf("multi-token payload of %d bytes runs past end of data", payloadLen)
	}
	payload := data[off : off+payloadLen]

	t := &TypeNameTable{
		names:    make(map[uint16]string),
		offsets: make(map[uint16]uint32),
		isMulti:  make(map[uint16]bool),
		payload:  payload,
	}
	for i, rec := range records {
		idx := uint16(i)
		if rec.mapType&mapTypeReserved != 0 {
			continue // reserved slots count but don't populate id->name
		}
		if rec.mapType&mapTypeMulti != 0 {
			// map_id is a byte offset into the multi-token payload region;
			// resolution is deferred to Resolve since it needs the function
			// table each sub-id's name lives in.
			t.isMulti[idx] = true
			t.offsets[idx] = uint32(rec.mapID)
			continue
		}
		// map_id is a function-table name offset for the single-token case.
		t.offsets[idx] = uint32(rec.mapID)
	}
	return t, nil
}

// Resolve looks up id, shifted per sysKind (3 or 1, spec §4.9), against the
// record at that index and resolves its name(s) through ft, the module's
// function table (spec §9's open-question decision: identifier and
// type-name map ids are function-table name offsets, the same convention
// already specified for ImportTable's fun_offset).
func (t *TypeNameTable) Resolve(id uint16, sysKind int, ft *FunctionTable) string {
	shift := uint(2)
	if sysKind == 3 {
		shift = 3
	}
	idx := id >> shift

	if name, ok := t.names[idx]; ok {
		return name
	}
	if t.isMulti[idx] {
		name := t.resolveMulti(t.offsets[idx], ft)
		t.names[idx] = name
		return name
	}
	off, ok := t.offsets[idx]
	if !ok || ft == nil {
		return "UnkType"
	}
	name, err := ft.GetNameAt(off)
	if err != nil || name == "" {
		return "UnkType"
	}
	t.names[idx] = name
	return name
}

// resolveMulti reads a u16 sub-id count followed by that many u16 sub-ids at
// off within the multi-token payload, resolves each sub-id's name through
// ft, and joins them with ".".
func (t *TypeNameTable) resolveMulti(off uint32, ft *FunctionTable) string {
	if ft == nil || uint64(off)+2 > uint64(len(t.payload)) {
		return "UnkType"
	}
	count := binary.LittleEndian.Uint16(t.payload[off : off+2])
	p := off + 2
	if uint64(p)+uint64(count)*2 > uint64(len(t.payload)) {
		return "UnkType"
	}
	tokens := make([]string, count)
	for i := 0; i < int(count); i++ {
		subOff := binary.LittleEndian.Uint16(t.payload[p:])
		name, err := ft.GetNameAt(uint32(subOff))
		if err != nil || name == "" {
			name = "UnkType"
		}
		tokens[i] = name
		p += 2
	}
	return strings.Join(tokens, ".")
}
