package crypt

// This file implements the legacy Word 95/97 "XOR obfuscation" password check,
// the scheme spec §6 calls xor_key.method2. It is the simplest of the two
// supported algorithms and is usually tried first.
//
// The key is a single derived 16-bit value checked against the document's
// lKey (FibBase.LKey, spec §4.5); xorTransform applies its two bytes to
// alternating stream positions.

const xorBlockSize = 16

// initialCodeArray is MS-DOC 2.2.3's fixed 15-entry per-character-count seed
// table. Neither it nor encryptionMatrix is referenced by XORKeyMethod2,
// which derives only the 16-bit verifier.
var initialCodeArray = [15]uint16{
	0xE1F0, 0x1D0F, 0xCC9C, 0x84C0, 0x110C, 0x0E10, 0xF1CE, 0x313E,
	0x1872, 0xE139, 0xD40F, 0x84F9, 0x280C, 0xA96A, 0x4EC3,
}

var encryptionMatrix = [15][7]uint16{
	{0xAEFC, 0x4DD9, 0x9BB2, 0x2745, 0x4E8A, 0x9D14, 0x2A09},
	{0x7B61, 0xF6C2, 0xFDA5, 0xEB6B, 0xC6F7, 0x9DCF, 0x2BBF},
	{0x4563, 0x8AC6, 0x05AD, 0x0B5A, 0x16B4, 0x2D68, 0x5AD0},
	{0x0375, 0x06EA, 0x0DD4, 0x1BA8, 0x3750, 0x6EA0, 0xDD40},
	{0xD849, 0xA0B3, 0x5147, 0xA28E, 0x553D, 0xAA7A, 0x44D5},
	{0x6F45, 0xDE8A, 0xAD35, 0x4A4B, 0x9496, 0x390D, 0x721A},
	{0xEB23, 0xC667, 0x9CEF, 0x29FF, 0x53FE, 0xA7FC, 0x5FD9},
	{0x4707, 0x8E0E, 0x1C1C, 0x3838, 0x7070, 0xE0E0, 0xC0C1},
	{0x8235, 0x064B, 0x0C96, 0x192C, 0x3258, 0x64B0, 0xC960},
	{0xBE0F, 0x7C3F, 0xF87E, 0xF0FD, 0xE1FB, 0xC3F7, 0x87EF},
	{0x2575, 0x4AEA, 0x95D4, 0x2BA9, 0x5752, 0xAEA4, 0x5D49},
	{0x8CC9, 0x1993, 0x3326, 0x664C, 0xCC98, 0x9971, 0x3243},
	{0x3188, 0x6310, 0xC620, 0x8C41, 0x0883, 0x1106, 0x220C},
	{0x5768, 0xAED0, 0x5DA1, 0xBB42, 0x7684, 0xED08, 0xDA11},
	{0xE0C3, 0xC187, 0x830F, 0x061F, 0x0C3E, 0x187C, 0x30F8},
}

// XORKeyMethod2 derives the document's 16-bit obfuscation seed and
// verifies it against lKey (FibBase.LKey). It returns ok=false if the
// password does not reproduce lKey, per spec §6's "password not valid"
// outcome (the caller distinguishes failure by iterating candidates and
// surfacing ErrNoValidPassword once the list is exhausted).
func XORKeyMethod2(password string, lKey uint32) (Key, bool) {
	pwUpper := []rune(normalizeForXOR(password))
	if len(pwUpper) == 0 {
		return Key{}, false
	}

	key := uint16(0)
	for i := len(pwUpper) - 1; i >= 0; i-- {
		ch := uint16(pwUpper[i])
		intermediate1 := (key & 0x4000) >> 14 // 1 or 0
		intermediate2 := key << 1
		intermediate3 := intermediate2 | intermediate1
		key = intermediate3 ^ ch
	}
	verifier := key ^ 0xCE4B

	if uint32(verifier) != (lKey & 0xFFFF) {
		return Key{}, false
	}
	return Key{Algorithm: AlgorithmXOR, bytes: []byte{byte(key), byte(key >> 8)}, blockSize: xorBlockSize}, true
}

func normalizeForXOR(password string) string {
	r := []rune(password)
	if len(r) > 15 {
		r = r[:15]
	}
	out := make([]rune, len(r))
	for i, c := range r {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// xorTransform XORs the byte at absolute stream position pos with the key's
// low byte at even positions and its high byte at odd positions. It does not
// derive a 16-byte per-block key array; the same two bytes apply across the
// whole stream.
func xorTransform(key Key, b byte, pos int64) byte {
	obf := key.bytes
	if len(obf) < 2 {
		return b
	}
	blockKey := obf[pos%2]
	return b ^ blockKey
}
