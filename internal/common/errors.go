// Package common defines shared sentinel errors used across the drive client,
// the streaming engine and the reference host. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Configuration errors (missing identity, session or settings).
	ErrConfig = errors.New("configuration error")

	// Auth errors. Never retried silently; the caller re-authenticates.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Optimistic concurrency: the supplied version tag is stale.
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors.
	ErrInternal   = errors.New("internal error")
	ErrBadRequest = errors.New("bad request")
)

// AuthorizationHeaderName carries the session bearer token on outbound requests.
const AuthorizationHeaderName = "Authorization"
