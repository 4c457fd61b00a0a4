// Package streamcrypto implements the wire-payload decryption external
// collaborator from spec.md §6: AES-128-CBC over whole 16-byte blocks, with
// the trailing len%16 bytes copied verbatim and the IV reloaded from the
// session IV on every packet (RAOP deliberately reuses the same IV per
// packet rather than chaining across packets).
package streamcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// Decrypter holds the session AES key/IV and decrypts packet payloads.
type Decrypter struct {
	block cipher.Block
	iv    [aes.BlockSize]byte
}

// New constructs a Decrypter from a 16-byte AES-128 key and a 16-byte IV.
func New(key, iv []byte) (*Decrypter, error) {
	if len(key) != aes.BlockSize {
		return nil, fmt.Errorf("streamcrypto: key must be %d bytes, got %d", aes.BlockSize, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("streamcrypto: iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("streamcrypto: %w", err)
	}
	d := &Decrypter{block: block}
	copy(d.iv[:], iv)
	return d, nil
}

// Decrypt decrypts payload in place and returns it: the first len&^0xF
// bytes are run through CBC decryption (IV reloaded from the session IV,
// never chained from a prior packet); any trailing len%16 bytes are left
// untouched.
func (d *Decrypter) Decrypt(payload []byte) []byte {
	aeslen := len(payload) &^ 0xF
	if aeslen == 0 {
		return payload
	}
	mode := cipher.NewCBCDecrypter(d.block, d.iv[:])
	mode.CryptBlocks(payload[:aeslen], payload[:aeslen])
	return payload
}
