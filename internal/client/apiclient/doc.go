// Package apiclient is the encrypted HTTP client used to talk to a drive host.
//
// A Client is built from a Session (identity, audience, shared secret, bearer
// token). Every request passes through an interceptor chain:
//
//	logging -> caller interceptors -> auth token -> shared-secret encryption -> transport
//
// so callers send and receive plaintext values while the wire only carries
// {iv, data} envelopes. A Client holds no mutable state after construction and
// is safe for concurrent use.
//
// Authentication failures are never retried: a 401/403 surfaces as
// common.ErrUnauthorized and the caller decides how to re-authenticate.
package apiclient
