// Package crypt implements the decryption veneer spec.md §4.4/§6 describes:
// a block-keyed transform wrapped around any io.ReadSeeker, used to read
// legacy Office XOR-obfuscated or RC4-encrypted streams when the caller
// supplies the correct password. Password recovery itself is out of scope
// (spec §1) — callers supply a finite list of candidates.
package crypt

import "errors"

// Algorithm identifies which legacy scheme produced a Key.
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	AlgorithmXOR
	AlgorithmRC4
	AlgorithmRC4CryptoAPI
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmXOR:
		return "XOR"
	case AlgorithmRC4:
		return "RC4"
	case AlgorithmRC4CryptoAPI:
		return "RC4 CryptoAPI"
	default:
		return "none"
	}
}

// ErrNoValidPassword is returned when none of the caller-supplied candidate
// passwords yields a valid key for the detected algorithm (spec §7:
// "password failures" get a distinct error kind that names the algorithm).
type ErrNoValidPassword struct {
	Algorithm Algorithm
}

func (e *ErrNoValidPassword) Error() string {
	return "crypt: no supplied password is valid for " + e.Algorithm.String() + " decryption"
}

var errShortKey = errors.New("crypt: key material too short")

// Key is opaque key material produced by one of the candidate-testing
// functions below and consumed by a Decryptor implementation.
type Key struct {
	Algorithm Algorithm
	bytes     []byte
	blockSize int
}

func (k Key) Bytes() []byte { return k.bytes }
