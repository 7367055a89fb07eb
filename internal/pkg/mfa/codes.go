package mfa

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// CodeGenerator defines an interface for generating numeric one-time codes.
type CodeGenerator interface {
	// Generate returns a zero-padded numeric code of the given length or an
	// error if the random source fails.
	Generate(length int) (string, error)
}

// BackupCodeGenerator defines an interface for generating recovery codes.
type BackupCodeGenerator interface {
	// Generate returns a slice of unique recovery codes or an error if the
	// random source fails.
	Generate() ([]string, error)
}

const (
	// minCodeLength and maxCodeLength bound the numeric code length so a
	// single 4-byte draw stays effectively uniform after the modulo.
	minCodeLength = 4
	maxCodeLength = 8
)

// ErrCodeLength indicates an unsupported numeric code length.
var ErrCodeLength = errors.New("mfa: code length must be between 4 and 8 digits")

// NumericCode generates cryptographically secure numeric one-time codes.
//
// Each code is derived from a fresh 4-byte draw from crypto/rand, reduced
// modulo 10^length with rejection sampling so no digit sequence is more
// likely than another, then left-padded with zeros.
type NumericCode struct{}

// NewNumericCode returns a new NumericCode generator.
func NewNumericCode() *NumericCode {
	return &NumericCode{}
}

// Generate produces one numeric code of exactly the given length.
func (nc *NumericCode) Generate(length int) (string, error) {
	if length < minCodeLength || length > maxCodeLength {
		return "", ErrCodeLength
	}

	space := uint64(1)
	for i := 0; i < length; i++ {
		space *= 10
	}

	// Largest multiple of the code space that fits in 32 bits. Draws at or
	// above it are rejected so the modulo does not bias low values.
	limit := (uint64(1) << 32) / space * space

	for {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", err
		}

		n := uint64(binary.BigEndian.Uint32(buf[:]))
		if n >= limit {
			continue
		}

		return fmt.Sprintf("%0*d", length, n%space), nil
	}
}

// backupCodeCount is the size of a freshly minted recovery set.
const backupCodeCount = 10

// backupCodeBytes is the raw entropy per code; rendered as 8 uppercase hex chars.
const backupCodeBytes = 4

// BackupCode generates cryptographically secure recovery codes.
//
// Each code is 8 uppercase hex characters, e.g. "3F09A1CC". Codes are
// compared case-insensitively at redemption time.
type BackupCode struct{}

// NewBackupCode returns a new BackupCode generator.
func NewBackupCode() *BackupCode {
	return &BackupCode{}
}

// Generate produces a set of unique recovery codes.
func (bc *BackupCode) Generate() ([]string, error) {
	out := make([]string, 0, backupCodeCount)
	seen := make(map[string]struct{}, backupCodeCount)

	for len(out) < backupCodeCount {
		code, err := bc.generate()
		if err != nil {
			return nil, err
		}

		// extremely unlikely, but prevents accidental duplicates
		if _, ok := seen[code]; ok {
			continue
		}

		seen[code] = struct{}{}
		out = append(out, code)
	}

	return out, nil
}

func (bc *BackupCode) generate() (string, error) {
	var raw [backupCodeBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}

	return strings.ToUpper(fmt.Sprintf("%x", raw[:])), nil
}
