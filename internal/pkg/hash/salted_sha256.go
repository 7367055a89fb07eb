package hash

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const saltedSaltLength = 16

// SaltedSHA256 implements the Hash interface using SHA-256 over salt||plaintext.
//
// The stored representation is "salt:digest" (both hex). A fresh random salt
// is drawn on every Hash call, so the same plaintext never produces the same
// stored value twice.
type SaltedSHA256 struct{}

// NewSaltedSHA256 returns a salted SHA-256 hasher.
func NewSaltedSHA256() *SaltedSHA256 {
	return &SaltedSHA256{}
}

// Hash hashes the plaintext with a fresh random salt.
func (s *SaltedSHA256) Hash(str string) ([]byte, error) {
	salt := make([]byte, saltedSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	digest := s.digest(salt, str)

	out := make([]byte, 0, hex.EncodedLen(len(salt))+1+hex.EncodedLen(len(digest)))
	out = append(out, []byte(hex.EncodeToString(salt))...)
	out = append(out, ':')
	out = append(out, []byte(hex.EncodeToString(digest))...)

	return out, nil
}

// Verify recomputes the digest with the stored salt and compares in constant time.
//
// The digests are fixed-length SHA-256 sums, so subtle.ConstantTimeCompare
// never short-circuits on where the first mismatching byte occurs.
func (s *SaltedSHA256) Verify(hashed, str string) bool {
	saltHex, digestHex, ok := strings.Cut(hashed, ":")
	if !ok {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) != saltedSaltLength {
		return false
	}

	expected, err := hex.DecodeString(digestHex)
	if err != nil || len(expected) != sha256.Size {
		return false
	}

	computed := s.digest(salt, str)

	return subtle.ConstantTimeCompare(expected, computed) == 1
}

func (s *SaltedSHA256) digest(salt []byte, str string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(str))
	return h.Sum(nil)
}
