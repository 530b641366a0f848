package crypt

import (
	"crypto/md5"
	"encoding/binary"
)

// rc4BlockSize is the granularity at which legacy Office RC4 re-keys: each
// 512-byte block of the stream is decrypted with a keystream derived afresh
// from the document key and the block's 0-based index (spec §4.4).
const rc4BlockSize = 512

// RC4GetKey derives the base RC4 key from a password and a key length in
// bytes, where a length outside 1..16 falls back to 5 (spec §6's
// rc4.get_key). This is the "binary RC4"
// variant (pre-CryptoAPI, Word 95/97): key = MD5(password UTF-16LE) truncated
// to keyLen bytes.
func RC4GetKey(password string, keyLenBytes int) (Key, bool) {
	if keyLenBytes <= 0 || keyLenBytes > md5.Size {
		keyLenBytes = 5
	}
	u16 := utf16le(password)
	sum := md5.Sum(u16)
	return Key{Algorithm: AlgorithmRC4, bytes: append([]byte(nil), sum[:keyLenBytes]...), blockSize: rc4BlockSize}, true
}

// RC4CryptoAPIGetKey derives the base key for the "RC4 CryptoAPI" scheme
// (Office 97+ "Office Binary Document RC4 CryptoAPI Encryption"), where the
// base key additionally folds in a document-specific salt before the
// per-block re-key step.
func RC4CryptoAPIGetKey(password string, salt []byte, keyLenBytes int) (Key, bool) {
	if keyLenBytes <= 0 || keyLenBytes > md5.Size {
		keyLenBytes = 16
	}
	h := md5.New()
	h.Write(utf16le(password))
	h.Write(salt)
	sum := h.Sum(nil)
	return Key{Algorithm: AlgorithmRC4CryptoAPI, bytes: append([]byte(nil), sum[:keyLenBytes]...), blockSize: rc4BlockSize}, true
}

func utf16le(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		if r > 0xFFFF {
			// Outside the BMP: encode as a surrogate pair, matching the
			// UTF-16LE password encoding the legacy formats expect.
			r -= 0x10000
			hi := 0xD800 + (r >> 10)
			lo := 0xDC00 + (r & 0x3FF)
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(hi))
			out = append(out, b[:]...)
			binary.LittleEndian.PutUint16(b[:], uint16(lo))
			out = append(out, b[:]...)
			continue
		}
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(r))
		out = append(out, b[:]...)
	}
	return out
}

// rc4KeystreamBlock derives the keystream for block index blk (re-keying
// per spec §4.4: "RC4 per 512-byte block with re-keyed state per block
// index") and XORs it into data in place.
func rc4KeystreamBlock(base []byte, blk uint32, data []byte) {
	keyed := make([]byte, len(base)+4)
	copy(keyed, base)
	binary.LittleEndian.PutUint32(keyed[len(base):], blk)
	sum := md5.Sum(keyed)

	s := rc4KeySchedule(sum[:])
	rc4Apply(s, data)
}

func rc4KeySchedule(key []byte) [256]byte {
	var s [256]byte
	for i := range s {
		s[i] = byte(i)
	}
	j := 0
	for i := 0; i < 256; i++ {
		j = (j + int(s[i]) + int(key[i%len(key)])) & 0xFF
		s[i], s[j] = s[j], s[i]
	}
	return s
}

func rc4Apply(s [256]byte, data []byte) {
	i, j := 0, 0
	for k := range data {
		i = (i + 1) & 0xFF
		j = (j + int(s[i])) & 0xFF
		s[i], s[j] = s[j], s[i]
		data[k] ^= s[(int(s[i])+int(s[j]))&0xFF]
	}
}
