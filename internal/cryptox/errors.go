package cryptox

import (
	"errors"
	"fmt"
)

// ErrCrypto is the root of every error produced by this package. Malformed
// ciphertext is fatal to a single operation and is never retried.
var ErrCrypto = errors.New("crypto error")

var (
	ErrInvalidPadding   = fmt.Errorf("%w: invalid padding", ErrCrypto)
	ErrLengthMismatch   = fmt.Errorf("%w: length mismatch", ErrCrypto)
	ErrInvalidKeyLength = fmt.Errorf("%w: invalid key length", ErrCrypto)
	ErrMissingKeyHeader = fmt.Errorf("%w: missing key header", ErrCrypto)
	ErrUnsupportedKey   = fmt.Errorf("%w: unsupported key header", ErrCrypto)
)
