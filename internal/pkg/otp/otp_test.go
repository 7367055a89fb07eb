package otp

import (
	"bytes"
	"strings"
	"testing"
	"time"

	libOTP "github.com/pquerna/otp"
)

func TestTOTPGenerate(t *testing.T) {
	o := NewTOTP("OTPGate", 30, 1, libOTP.DigitsSix)

	secret, uri, qr, err := o.Generate("alice@example.com")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if secret == "" {
		t.Error("secret is empty")
	}
	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Errorf("uri = %q, want otpauth://totp/ prefix", uri)
	}
	if !strings.Contains(uri, "OTPGate") {
		t.Errorf("uri %q does not carry the issuer", uri)
	}
	if !bytes.HasPrefix(qr, []byte("\x89PNG")) {
		t.Error("qr payload is not a PNG")
	}
}

func TestTOTPValidateWithinSkew(t *testing.T) {
	o := NewTOTP("OTPGate", 30, 1, libOTP.DigitsSix)

	secret, _, _, err := o.Generate("alice@example.com")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	at := time.Date(2026, 8, 1, 10, 0, 15, 0, time.UTC)
	code, err := o.GenerateCode(secret, at)
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}

	for _, shift := range []time.Duration{0, -30 * time.Second, 30 * time.Second} {
		if !o.Validate(code, secret, at.Add(shift)) {
			t.Errorf("code rejected at shift %v, want accepted", shift)
		}
	}
}

func TestTOTPValidateOutsideSkew(t *testing.T) {
	o := NewTOTP("OTPGate", 30, 1, libOTP.DigitsSix)

	secret, _, _, err := o.Generate("alice@example.com")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	at := time.Date(2026, 8, 1, 10, 0, 15, 0, time.UTC)
	code, err := o.GenerateCode(secret, at)
	if err != nil {
		t.Fatalf("GenerateCode returned error: %v", err)
	}

	for _, shift := range []time.Duration{-90 * time.Second, 90 * time.Second} {
		if o.Validate(code, secret, at.Add(shift)) {
			t.Errorf("code accepted at shift %v, want rejected", shift)
		}
	}
}

func TestTOTPValidateWrongCode(t *testing.T) {
	o := NewTOTP("OTPGate", 30, 1, libOTP.DigitsSix)

	secret, _, _, err := o.Generate("alice@example.com")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if o.Validate("000000", secret, time.Date(2026, 8, 1, 10, 0, 15, 0, time.UTC)) {
		// one-in-a-million flake is acceptable here
		t.Error("static wrong code accepted")
	}
}
