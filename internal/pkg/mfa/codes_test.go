package mfa

import (
	"errors"
	"testing"
)

func TestNumericCodeGenerate(t *testing.T) {
	gen := NewNumericCode()

	for length := 4; length <= 8; length++ {
		code, err := gen.Generate(length)
		if err != nil {
			t.Fatalf("Generate(%d) returned error: %v", length, err)
		}
		if len(code) != length {
			t.Fatalf("Generate(%d) returned %q with length %d", length, code, len(code))
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("Generate(%d) returned non-digit code %q", length, code)
			}
		}
	}
}

func TestNumericCodeGenerateRejectsBadLength(t *testing.T) {
	gen := NewNumericCode()

	for _, length := range []int{0, 3, 9, -1} {
		if _, err := gen.Generate(length); !errors.Is(err, ErrCodeLength) {
			t.Errorf("Generate(%d) error = %v, want ErrCodeLength", length, err)
		}
	}
}

func TestNumericCodeGenerateVaries(t *testing.T) {
	gen := NewNumericCode()

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code, err := gen.Generate(6)
		if err != nil {
			t.Fatalf("Generate(6) returned error: %v", err)
		}
		seen[code] = struct{}{}
	}

	// 50 draws from a million-value space colliding down to one value would
	// mean the generator is broken.
	if len(seen) < 2 {
		t.Fatalf("expected varied codes, got %d distinct values", len(seen))
	}
}

func TestBackupCodeGenerate(t *testing.T) {
	gen := NewBackupCode()

	codes, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate() returned error: %v", err)
	}

	if len(codes) != backupCodeCount {
		t.Fatalf("Generate() returned %d codes, want %d", len(codes), backupCodeCount)
	}

	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if len(code) != 8 {
			t.Errorf("code %q has length %d, want 8", code, len(code))
		}
		for _, c := range code {
			if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
				t.Errorf("code %q contains non-uppercase-hex character", code)
			}
		}
		if _, ok := seen[code]; ok {
			t.Errorf("duplicate code %q in one set", code)
		}
		seen[code] = struct{}{}
	}
}
