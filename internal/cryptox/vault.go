package cryptox

import (
	"crypto/sha256"

	"golang.org/x/crypto/argon2"
)

// DeriveVaultKey derives the local session-vault key from a passphrase with
// argon2id. The result is KeySize bytes so it can be used directly with Encrypt.
func DeriveVaultKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier returns a value that can be stored next to the vault to check a
// passphrase without keeping the derived key.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}
