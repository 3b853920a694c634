// Package drive is the typed file model of an identity's drive and the
// operations that read and write it through an encrypted API client.
//
// A file is a FileHeader: server-assigned ids, a version tag for optimistic
// concurrency, application metadata (AppData), payload descriptors and an
// access control list. Encrypted files use two tiers of keys: a random
// per-file KeyHeader encrypts content and payloads, and the KeyHeader itself
// travels wrapped under the session shared secret. Sharing a file with another
// identity only re-wraps the 32-byte header.
package drive
