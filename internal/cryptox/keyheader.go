package cryptox

import (
	"fmt"
	"log/slog"
)

const (
	// KeyHeaderVersion is the only EncryptedKeyHeader layout understood here.
	KeyHeaderVersion = 1
	// KeyHeaderTypeAes is the key-header type for AES-CBC wrapped keys.
	KeyHeaderTypeAes = 11
)

// KeyHeader is the per-file content key. Bulk content (metadata JSON and
// payloads) is encrypted with AesKey; the header itself is small and is what
// gets wrapped under a session shared secret.
type KeyHeader struct {
	IV     []byte
	AesKey []byte
}

// NewKeyHeader returns a fresh random content key.
func NewKeyHeader() *KeyHeader {
	return &KeyHeader{
		IV:     GenerateRandByteArray(IVSize),
		AesKey: GenerateRandByteArray(KeySize),
	}
}

// EncryptContent encrypts content with the header's key and IV.
func (k *KeyHeader) EncryptContent(content []byte) ([]byte, error) {
	return EncryptWithIV(content, k.AesKey, k.IV)
}

// EncryptContentWithIV encrypts content with the header's key and a caller-chosen IV
// (payloads carry their own IV).
func (k *KeyHeader) EncryptContentWithIV(content, iv []byte) ([]byte, error) {
	return EncryptWithIV(content, k.AesKey, iv)
}

// DecryptContent reverses EncryptContent.
func (k *KeyHeader) DecryptContent(ciphertext []byte) ([]byte, error) {
	return Decrypt(k.IV, ciphertext, k.AesKey)
}

// Wipe zeroizes the key material.
func (k *KeyHeader) Wipe() {
	if k == nil {
		return
	}
	WipeByteArray(k.IV)
	WipeByteArray(k.AesKey)
}

// Format keeps key material out of fmt output.
func (k *KeyHeader) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte("KeyHeader[REDACTED]"))
}

// LogValue keeps key material out of slog output.
func (k *KeyHeader) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// EncryptedKeyHeader is a KeyHeader sealed under a shared secret.
type EncryptedKeyHeader struct {
	EncryptionVersion int    `json:"encryptionVersion"`
	Type              int    `json:"type"`
	IV                []byte `json:"iv"`
	EncryptedAesKey   []byte `json:"encryptedAesKey"`
}

// WrapKeyHeader seals kh under secret. The sealed plaintext is kh.IV || kh.AesKey.
func WrapKeyHeader(kh *KeyHeader, secret []byte) (*EncryptedKeyHeader, error) {
	if kh == nil {
		return nil, ErrMissingKeyHeader
	}
	combined := make([]byte, 0, len(kh.IV)+len(kh.AesKey))
	combined = append(combined, kh.IV...)
	combined = append(combined, kh.AesKey...)
	defer WipeByteArray(combined)

	iv, ct, err := Encrypt(combined, secret)
	if err != nil {
		return nil, err
	}
	return &EncryptedKeyHeader{
		EncryptionVersion: KeyHeaderVersion,
		Type:              KeyHeaderTypeAes,
		IV:                iv,
		EncryptedAesKey:   ct,
	}, nil
}

// UnwrapKeyHeader opens an EncryptedKeyHeader with secret.
func UnwrapKeyHeader(ekh *EncryptedKeyHeader, secret []byte) (*KeyHeader, error) {
	if ekh == nil {
		return nil, ErrMissingKeyHeader
	}
	if ekh.EncryptionVersion != KeyHeaderVersion || ekh.Type != KeyHeaderTypeAes {
		return nil, fmt.Errorf("%w: version %d type %d", ErrUnsupportedKey, ekh.EncryptionVersion, ekh.Type)
	}

	combined, err := Decrypt(ekh.IV, ekh.EncryptedAesKey, secret)
	if err != nil {
		return nil, err
	}
	defer WipeByteArray(combined)

	if len(combined) != IVSize+KeySize {
		return nil, fmt.Errorf("%w: key header is %d bytes", ErrLengthMismatch, len(combined))
	}

	kh := &KeyHeader{
		IV:     make([]byte, IVSize),
		AesKey: make([]byte, KeySize),
	}
	copy(kh.IV, combined[:IVSize])
	copy(kh.AesKey, combined[IVSize:])
	return kh, nil
}

// RewrapKeyHeader moves a sealed key header from one secret to another. Only
// the 32-byte header is re-encrypted, never the content it protects; this is
// how a file is shared with another identity.
func RewrapKeyHeader(ekh *EncryptedKeyHeader, from, to []byte) (*EncryptedKeyHeader, error) {
	kh, err := UnwrapKeyHeader(ekh, from)
	if err != nil {
		return nil, err
	}
	defer kh.Wipe()
	return WrapKeyHeader(kh, to)
}
