// Package cfb implements a read-only Compound File Binary (CFB / "OLE2")
// container engine: sector/FAT accounting, the directory red/black tree, and
// the two stream stores (FAT-backed and MiniFAT-backed) it exposes as
// seekable byte streams.
package cfb

import "errors"

const (
	// Signature is the fixed 8-byte CFB magic at the start of every container.
	Signature uint64 = 0xE11AB1A1E011CFD0

	headerLen = 512

	// miniSectorSize is fixed at 64 bytes regardless of the container's
	// regular sector size (spec §3: mini-sector-shift fixed at 6).
	miniSectorSize = 64

	// miniStreamCutoff is the size threshold below which a stream (other
	// than the root) is stored in mini-sectors instead of full sectors.
	miniStreamCutoff = 0x1000
)

// Sector id sentinels (spec §3).
const (
	SectorFree       uint32 = 0xFFFFFFFF
	SectorEndOfChain uint32 = 0xFFFFFFFE
	SectorFAT        uint32 = 0xFFFFFFFD
	SectorDIFAT      uint32 = 0xFFFFFFFC
	// maxRegularSector is the largest sector id that refers to a real sector.
	maxRegularSector uint32 = 0xFFFFFFFA
)

// Errors returned by the container engine. Fatal-structural per spec §7.
var (
	ErrBadMagic      = errors.New("cfb: bad header magic")
	ErrBadSectorSize = errors.New("cfb: unsupported sector shift")
	ErrBadChain      = errors.New("cfb: sentinel encountered mid-chain")
	ErrOutOfFAT      = errors.New("cfb: entry is out of FAT")
	ErrTooManySectors = errors.New("cfb: declared FAT size exceeds host file bound")
)

// ErrNotFound is returned by directory lookups for a missing path or id.
// Distinct from structural errors per spec §7's "lookup failures" kind.
var ErrNotFound = errors.New("cfb: entry not found")

func isRegularSector(id uint32) bool {
	return id <= maxRegularSector
}
