package hash

import (
	"strings"
	"testing"
	"time"
)

func TestSaltedSHA256RoundTrip(t *testing.T) {
	h := NewSaltedSHA256()

	hashed, err := h.Hash("482913")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if !h.Verify(string(hashed), "482913") {
		t.Error("Verify rejected the original plaintext")
	}
	if h.Verify(string(hashed), "482914") {
		t.Error("Verify accepted a different plaintext")
	}
}

func TestSaltedSHA256FreshSaltPerHash(t *testing.T) {
	h := NewSaltedSHA256()

	first, err := h.Hash("123456")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	second, err := h.Hash("123456")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if string(first) == string(second) {
		t.Error("two hashes of the same plaintext are identical, salt is not fresh")
	}
}

func TestSaltedSHA256Format(t *testing.T) {
	h := NewSaltedSHA256()

	hashed, err := h.Hash("000000")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	salt, digest, ok := strings.Cut(string(hashed), ":")
	if !ok {
		t.Fatalf("stored value %q is not salt:digest", hashed)
	}
	if len(salt) != saltedSaltLength*2 {
		t.Errorf("salt hex length = %d, want %d", len(salt), saltedSaltLength*2)
	}
	if len(digest) != 64 {
		t.Errorf("digest hex length = %d, want 64", len(digest))
	}
}

// TestSaltedSHA256VerifyTimingSmoke checks that rejecting a digest that
// differs in its first byte takes about as long as rejecting one that
// differs in its last byte. A short-circuiting comparison would bail out
// early on the first case. The bound is deliberately loose; this is a smoke
// check against regressions to a non-constant-time compare, not a benchmark.
func TestSaltedSHA256VerifyTimingSmoke(t *testing.T) {
	h := NewSaltedSHA256()

	hashed, err := h.Hash("482913")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	stored := string(hashed)
	sep := strings.IndexByte(stored, ':')
	earlyMiss := flipHexAt(stored, sep+1)
	lateMiss := flipHexAt(stored, len(stored)-1)

	if h.Verify(earlyMiss, "482913") || h.Verify(lateMiss, "482913") {
		t.Fatal("Verify accepted a corrupted digest")
	}

	const rounds = 20000

	timeVerify := func(stored string) time.Duration {
		start := time.Now()
		for i := 0; i < rounds; i++ {
			h.Verify(stored, "482913")
		}
		return time.Since(start)
	}

	// warm up caches before measuring
	timeVerify(earlyMiss)

	early := timeVerify(earlyMiss)
	late := timeVerify(lateMiss)

	slow, fast := early, late
	if late > slow {
		slow, fast = late, early
	}
	if fast <= 0 {
		t.Skip("timer resolution too coarse for this check")
	}
	if ratio := float64(slow) / float64(fast); ratio > 5 {
		t.Errorf("mismatch position changes Verify time by %.1fx (early=%v late=%v)", ratio, early, late)
	}
}

func flipHexAt(stored string, i int) string {
	b := []byte(stored)
	if b[i] == '0' {
		b[i] = '1'
	} else {
		b[i] = '0'
	}
	return string(b)
}

func TestSaltedSHA256VerifyMalformed(t *testing.T) {
	h := NewSaltedSHA256()

	cases := []string{
		"",
		"no-separator",
		"zz:deadbeef",
		"abcd:zz",
		"abcd:deadbeef", // short salt
	}
	for _, stored := range cases {
		if h.Verify(stored, "123456") {
			t.Errorf("Verify accepted malformed value %q", stored)
		}
	}
}
