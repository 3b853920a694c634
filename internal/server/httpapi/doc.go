// Package httpapi is the drive host's HTTP surface, routed with chi under
// /api/{audience}/v1.
//
// Authenticated routes carry a bearer session token. Their query string or
// body may be sealed in the shared-secret envelope; it is opened before the
// handler runs, and JSON responses are sealed with the same secret. Payload
// bytes are written raw and honor single byte-range requests.
package httpapi
