package crypt

import (
	"io"
)

// Decryptor is the external contract spec §6 names: anything that can
// produce a Key from a candidate password is a Decryptor. The container
// engine never constructs keys itself; the doc package picks XORObfuscation
// or BinaryRC4 from the FIB's flags and hands it to ResolveKey.
type Decryptor interface {
	// TryPassword attempts to derive a valid Key from password, reporting ok
	// = false when the password does not check out against the document's
	// stored verifier (lKey, salt/verifier hash, etc).
	TryPassword(password string) (Key, bool)
}

// BinaryRC4 implements Decryptor for the pre-CryptoAPI RC4 scheme.
type BinaryRC4 struct{ KeyLenBytes int }

func (b BinaryRC4) TryPassword(password string) (Key, bool) {
	return RC4GetKey(password, b.KeyLenBytes)
}

// CryptoAPIRC4 implements Decryptor for the "RC4 CryptoAPI" scheme.
type CryptoAPIRC4 struct {
	Salt        []byte
	KeyLenBytes int
}

func (c CryptoAPIRC4) TryPassword(password string) (Key, bool) {
	return RC4CryptoAPIGetKey(password, c.Salt, c.KeyLenBytes)
}

// XORObfuscation implements Decryptor for the legacy XOR scheme.
type XORObfuscation struct{ LKey uint32 }

func (x XORObfuscation) TryPassword(password string) (Key, bool) {
	return XORKeyMethod2(password, x.LKey)
}

// ResolveKey tries every candidate password against d in order, returning
// the first valid Key. It returns ErrNoValidPassword naming algo if none
// match (spec §7's password-failure error kind).
func ResolveKey(d Decryptor, algo Algorithm, candidates []string) (Key, error) {
	for _, pw := range candidates {
		if k, ok := d.TryPassword(pw); ok {
			return k, nil
		}
	}
	return Key{}, &ErrNoValidPassword{Algorithm: algo}
}

// LegacyDecryptor wraps an io.ReadSeeker, transforming bytes at or past
// UnencryptedPrefix with the block-keyed algorithm named by Key.Algorithm
// (spec §4.4). Bytes before UnencryptedPrefix (the WordDocument stream's
// unobfuscated header region, or the FIB's own lKey-sized prefix) pass
// through unchanged.
type LegacyDecryptor struct {
	inner            io.ReadSeeker
	key              Key
	unencryptedPrefix int64
	pos              int64
	noop             bool
}

// New wraps r with key, applying the transform to bytes at or past
// unencryptedPrefixLen.
func New(r io.ReadSeeker, key Key, unencryptedPrefixLen int64) *LegacyDecryptor {
	return &LegacyDecryptor{inner: r, key: key, unencryptedPrefix: unencryptedPrefixLen}
}

// NewNoOp returns a veneer that passes bytes through unchanged, so downstream
// code can treat encrypted and unencrypted documents uniformly (spec §4.4).
func NewNoOp(r io.ReadSeeker) *LegacyDecryptor {
	return &LegacyDecryptor{inner: r, noop: true}
}

func (v *LegacyDecryptor) Seek(offset int64, whence int) (int64, error) {
	n, err := v.inner.Seek(offset, whence)
	if err != nil {
		return n, err
	}
	v.pos = n
	return n, nil
}

func (v *LegacyDecryptor) Read(p []byte) (int, error) {
	start := v.pos
	n, err := v.inner.Read(p)
	if n > 0 {
		if !v.noop {
			v.transform(p[:n], start)
		}
		v.pos = start + int64(n)
	}
	return n, err
}

func (v *LegacyDecryptor) transform(p []byte, absStart int64) {
	switch v.key.Algorithm {
	case AlgorithmXOR:
		for i := range p {
			pos := absStart + int64(i)
			if pos < v.unencryptedPrefix {
				continue
			}
			p[i] = xorTransform(v.key, p[i], pos)
		}
	case AlgorithmRC4, AlgorithmRC4CryptoAPI:
		v.transformRC4(p, absStart)
	default:
		// AlgorithmNone: pass through, matching the no-op constructor's
		// contract for callers that built a zero-value Key by mistake.
	}
}

func (v *LegacyDecryptor) transformRC4(p []byte, absStart int64) {
	i := 0
	for i < len(p) {
		pos := absStart + int64(i)
		if pos < v.unencryptedPrefix {
			i++
			continue
		}
		blk := uint32(pos / rc4BlockSize)
		blockStart := int64(blk) * rc4BlockSize
		blockEnd := blockStart + rc4BlockSize
		segEnd := int64(len(p))
		if absStart+segEnd > blockEnd {
			segEnd = blockEnd - absStart
		}
		if segEnd > int64(len(p)) {
			segEnd = int64(len(p))
		}
		seg := p[i:segEnd]
		// Re-key from the start of the block even when our segment begins
		// mid-block, since RC4 keystream position depends on how many
		// bytes of this block have already been consumed.
		offsetInBlock := int(pos - blockStart)
		full := make([]byte, offsetInBlock+len(seg))
		copy(full[offsetInBlock:], seg)
		rc4KeystreamBlock(v.key.Bytes(), blk, full)
		copy(seg, full[offsetInBlock:])
		i = int(segEnd)
	}
}

var _ io.ReadSeeker = (*LegacyDecryptor)(nil)
