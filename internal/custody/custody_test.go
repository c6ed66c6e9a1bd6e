package custody

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/giftlink/backend/internal/errs"
)

const testKeyHex = "6a09e667f3bcc908b2fb1366ea957d3e3adec17512775099da2f590b0667322a"

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := NewVault(testKeyHex)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	return v
}

func TestNewVaultRejectsBadKeys(t *testing.T) {
	if _, err := NewVault("not-hex"); !errs.IsCode(err, errs.CodeConfiguration) {
		t.Errorf("NewVault(not-hex) err = %v, want ConfigurationError", err)
	}
	if _, err := NewVault("abcd"); !errs.IsCode(err, errs.CodeConfiguration) {
		t.Errorf("NewVault(short key) err = %v, want ConfigurationError", err)
	}
}

func TestCreateAndDecryptRoundTrip(t *testing.T) {
	v := newTestVault(t)

	kp, err := v.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if kp.Address == "" {
		t.Error("Create returned empty address")
	}
	if !strings.Contains(kp.EncryptedSecret, ":") {
		t.Errorf("encrypted secret %q is not iv:ciphertext", kp.EncryptedSecret)
	}

	priv, err := v.Decrypt(kp.EncryptedSecret)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	pub, err := hex.DecodeString(kp.PublicKey)
	if err != nil {
		t.Fatalf("public key hex: %v", err)
	}
	got := priv.Public().(ed25519.PublicKey)
	if !got.Equal(ed25519.PublicKey(pub)) {
		t.Error("decrypted private key does not match stored public key")
	}
}

func TestCreateUsesFreshIVs(t *testing.T) {
	v := newTestVault(t)

	a, err := v.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := v.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ivA := strings.Split(a.EncryptedSecret, ":")[0]
	ivB := strings.Split(b.EncryptedSecret, ":")[0]
	if ivA == ivB {
		t.Error("two Create calls produced the same IV")
	}
}

func TestDecryptFailures(t *testing.T) {
	v := newTestVault(t)
	kp, err := v.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name   string
		record string
	}{
		{"no separator", "deadbeef"},
		{"bad iv hex", "zz:deadbeef"},
		{"bad ciphertext hex", "000000000000000000000000:zz"},
		{"wrong iv size", "dead:" + strings.Split(kp.EncryptedSecret, ":")[1]},
		{"truncated ciphertext", strings.Split(kp.EncryptedSecret, ":")[0] + ":deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Decrypt(tt.record)
			if !errs.IsCode(err, errs.CodeDecryption) {
				t.Errorf("Decrypt(%q) err = %v, want DecryptionError", tt.record, err)
			}
		})
	}
}

func TestDecryptWithWrongServerKeyFails(t *testing.T) {
	v := newTestVault(t)
	kp, err := v.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	other, err := NewVault("00000000000000000000000000000000000000000000000000000000000000ff")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	if _, err := other.Decrypt(kp.EncryptedSecret); !errs.IsCode(err, errs.CodeDecryption) {
		t.Errorf("Decrypt with wrong key err = %v, want DecryptionError", err)
	}
}
