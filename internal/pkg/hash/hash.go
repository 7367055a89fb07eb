package hash

// Hash abstracts one-way hashing of short secrets.
//
// Hash returns the stored representation (including any salt or parameters)
// and Verify compares a plaintext against that stored representation.
// Implementations must compare in constant time.
type Hash interface {
	// Hash returns the stored representation of the plaintext.
	Hash(str string) ([]byte, error)
	// Verify reports whether the plaintext matches the stored representation.
	Verify(hashed, str string) bool
}
