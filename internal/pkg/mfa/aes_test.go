package mfa

import (
	"bytes"
	"testing"
)

func testEncryptor() *AESGCMEncryptor {
	key := bytes.Repeat([]byte{0x42}, 32)
	return NewAESGCMEncryptor(StaticKeyProvider{KeyBytes: key})
}

func TestAESGCMEncryptorRoundTrip(t *testing.T) {
	enc := testEncryptor()
	scope := Scope{Subject: "alice@example.com", Purpose: PurposeOTPSeed}

	ciphertext, err := enc.Encrypt([]byte("JBSWY3DPEHPK3PXP"), scope)
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	plaintext, err := enc.Decrypt(ciphertext, scope)
	if err != nil {
		t.Fatalf("Decrypt returned error: %v", err)
	}

	if string(plaintext) != "JBSWY3DPEHPK3PXP" {
		t.Errorf("Decrypt = %q, want original plaintext", plaintext)
	}
}

func TestAESGCMEncryptorScopeBinding(t *testing.T) {
	enc := testEncryptor()

	ciphertext, err := enc.Encrypt([]byte("JBSWY3DPEHPK3PXP"), Scope{Subject: "alice@example.com", Purpose: PurposeOTPSeed})
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	cases := []Scope{
		{Subject: "bob@example.com", Purpose: PurposeOTPSeed},
		{Subject: "alice@example.com", Purpose: PurposeRecoveryKey},
	}
	for _, scope := range cases {
		if _, err := enc.Decrypt(ciphertext, scope); err == nil {
			t.Errorf("Decrypt succeeded under foreign scope %+v", scope)
		}
	}
}

func TestAESGCMEncryptorFreshNonce(t *testing.T) {
	enc := testEncryptor()
	scope := Scope{Subject: "alice@example.com", Purpose: PurposeOTPSeed}

	first, err := enc.Encrypt([]byte("JBSWY3DPEHPK3PXP"), scope)
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	second, err := enc.Encrypt([]byte("JBSWY3DPEHPK3PXP"), scope)
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	if bytes.Equal(first, second) {
		t.Error("two encryptions of the same plaintext are identical")
	}
}
