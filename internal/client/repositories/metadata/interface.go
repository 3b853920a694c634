// Package metadata stores small key/value settings of the local vault: the
// passphrase salt and verifier, and the last used identity.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeySalt         = "vault_salt"
	KeyVerifier     = "vault_verifier"
	KeyLastIdentity = "last_identity"
)

// Repository is a key/value store. Get returns (nil, nil) for an absent key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
