// Package cryptox implements the shared-secret primitives used by the drive
// client: AES-128-CBC with PKCS#7 padding and a fresh random IV per call, the
// two-tier key headers that protect file content, and the passphrase-derived
// key that seals the local session vault.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

const (
	// KeySize is the length of a shared secret and of a per-file AES key.
	KeySize = 16
	// IVSize is the CBC initialization vector length (one AES block).
	IVSize = aes.BlockSize
)

// Encrypt encrypts plaintext under key with AES-128-CBC and PKCS#7 padding.
//
// A new random 16-byte IV is generated for every call, so encrypting the same
// plaintext twice yields different ciphertexts. The IV is not secret and is
// returned separately so it can travel next to the ciphertext.
func Encrypt(plaintext, key []byte) (iv, ciphertext []byte, err error) {
	iv = GenerateRandByteArray(IVSize)
	ciphertext, err = EncryptWithIV(plaintext, key, iv)
	if err != nil {
		return nil, nil, err
	}
	return iv, ciphertext, nil
}

// EncryptWithIV is the deterministic form of Encrypt. Callers must never reuse
// an IV with the same key for different plaintexts.
func EncryptWithIV(plaintext, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv is %d bytes", ErrLengthMismatch, len(iv))
	}

	padded := Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	WipeByteArray(padded)

	return ciphertext, nil
}

// Decrypt reverses Encrypt. It fails with ErrLengthMismatch when the
// ciphertext is not a positive multiple of the block size and with
// ErrInvalidPadding when the PKCS#7 padding is malformed.
func Decrypt(iv, ciphertext, key []byte) ([]byte, error) {
	plaintext, err := DecryptBlocks(iv, ciphertext, key)
	if err != nil {
		return nil, err
	}
	return Unpad(plaintext, aes.BlockSize)
}

// DecryptBlocks runs CBC decryption without removing padding. It is used for
// block-aligned range reads where the final block may not be part of the input.
func DecryptBlocks(iv, ciphertext, key []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv is %d bytes", ErrLengthMismatch, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is %d bytes", ErrLengthMismatch, len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}

// Pad appends PKCS#7 padding. An already aligned input gets a full block.
func Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

// Unpad strips PKCS#7 padding.
func Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrLengthMismatch
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, ErrInvalidPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrInvalidPadding
		}
	}
	return b[:len(b)-n], nil
}

func newBlock(key []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(key))
	}
	return aes.NewCipher(key)
}
