// Package hash provides helpers for hashing and verifying short secrets.
//
// Store only the hash, then verify caller input by comparing the plaintext
// against the stored representation. Implementations (salted SHA-256,
// argon2id, HMAC-SHA256) live in this package behind a small interface.
package hash
