// Package models defines client-side data models used by the drive CLI.
package models

import "time"

// StoredSession is one provisioned session as kept in the local vault.
// Ciphertext holds the token and shared secret sealed under the vault key.
type StoredSession struct {
	Identity string
	Audience string

	// IV is the CBC IV of Ciphertext.
	IV         []byte
	Ciphertext []byte

	UpdatedAt time.Time
}
