package vault

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
)

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"short", []byte("secret wallet data")},
		{"empty", []byte{}},
		{"exact block", bytes.Repeat([]byte{'a'}, 16)},
		{"large", bytes.Repeat([]byte{0x5a}, 10000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := Encrypt(tt.plaintext, []byte("strong-password-123"))
			if err != nil {
				t.Fatalf("Encrypt() error: %v", err)
			}
			got, err := DecryptString(blob.String(), []byte("strong-password-123"))
			if err != nil {
				t.Fatalf("Decrypt() error: %v", err)
			}
			if !bytes.Equal(got, tt.plaintext) {
				t.Errorf("decrypted = %x, want %x", got, tt.plaintext)
			}
		})
	}
}

func TestEncrypt_FreshSaltAndIV(t *testing.T) {
	a, _ := Encrypt([]byte("same"), []byte("pw"))
	b, _ := Encrypt([]byte("same"), []byte("pw"))
	if bytes.Equal(a.IV, b.IV) || bytes.Equal(a.Salt, b.Salt) {
		t.Error("two encryptions reused salt or iv")
	}
	if a.String() == b.String() {
		t.Error("two encryptions produced the same blob")
	}
}

func TestDecrypt_WrongPassword(t *testing.T) {
	blob, err := Encrypt([]byte("secret"), []byte("correct"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	_, err = Decrypt(blob, []byte("wrong"))
	if !errors.Is(err, errs.ErrIntegrity) {
		t.Fatalf("Decrypt() wrong password error = %v, want IntegrityFailure", err)
	}
	if err.Error() != "invalid password" {
		t.Errorf("error message = %q, want %q", err.Error(), "invalid password")
	}
}

func TestDecrypt_TamperedBlob(t *testing.T) {
	password := []byte("pw")
	fields := []struct {
		name   string
		mutate func(b *EncryptedBlob)
	}{
		{"mac", func(b *EncryptedBlob) { b.MAC[0] ^= 0x01 }},
		{"ciphertext", func(b *EncryptedBlob) { b.Ciphertext[len(b.Ciphertext)-1] ^= 0x80 }},
		{"iv", func(b *EncryptedBlob) { b.IV[3] ^= 0xff }},
		{"salt", func(b *EncryptedBlob) { b.Salt[0] ^= 0x10 }},
	}
	for _, f := range fields {
		t.Run(f.name, func(t *testing.T) {
			blob, err := Encrypt([]byte("payload to protect"), password)
			if err != nil {
				t.Fatalf("Encrypt() error: %v", err)
			}
			f.mutate(blob)

			got, err := Decrypt(blob, password)
			if !errors.Is(err, errs.ErrIntegrity) {
				t.Fatalf("Decrypt() tampered %s error = %v, want IntegrityFailure", f.name, err)
			}
			if got != nil {
				t.Error("tampered blob released plaintext")
			}
		})
	}
}

func TestParseBlob_Malformed(t *testing.T) {
	for _, s := range []string{"", "not base64!!", "AAAA"} {
		if _, err := DecryptString(s, []byte("pw")); !errors.Is(err, errs.ErrIntegrity) {
			t.Errorf("DecryptString(%q) error = %v, want IntegrityFailure", s, err)
		}
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	a := DeriveKey([]byte("pw"), salt)
	b := DeriveKey([]byte("pw"), salt)
	if !bytes.Equal(a, b) {
		t.Error("DeriveKey is not deterministic")
	}
	if len(a) != KeySize {
		t.Errorf("len(DeriveKey) = %d, want %d", len(a), KeySize)
	}
	if bytes.Equal(a, DeriveKey([]byte("pw"), []byte("fedcba9876543210"))) {
		t.Error("different salts produced the same key")
	}
}

func TestVerifyPassword(t *testing.T) {
	passKey, salt, err := NewPassKey([]byte("hunter22"))
	if err != nil {
		t.Fatalf("NewPassKey() error: %v", err)
	}

	if !VerifyPassword([]byte("hunter22"), passKey, salt) {
		t.Error("VerifyPassword() = false for correct password")
	}
	if VerifyPassword([]byte("hunter23"), passKey, salt) {
		t.Error("VerifyPassword() = true after a single-character change")
	}
	if VerifyPassword([]byte("hunter22"), passKey[:len(passKey)-2], salt) {
		t.Error("VerifyPassword() = true for a truncated passKey")
	}
}

func TestSealOpenKeys(t *testing.T) {
	k := &Keys{
		Mnemonic:       "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
		DerivationPath: "m/44'/236'/0'/0/0",
		WalletWIF:      "L1aW4aubDFB7yfras2S1mN3bqg9nwySY8nkoLmJebSLD5BWv3ENZ",
	}
	sealed, err := SealKeys(k, []byte("pw"))
	if err != nil {
		t.Fatalf("SealKeys() error: %v", err)
	}

	got, err := OpenKeys(sealed, []byte("pw"))
	if err != nil {
		t.Fatalf("OpenKeys() error: %v", err)
	}
	if *got != *k {
		t.Errorf("OpenKeys() = %+v, want %+v", got, k)
	}

	if _, err := OpenKeys(sealed, []byte("nope")); !errors.Is(err, errs.ErrIntegrity) {
		t.Errorf("OpenKeys() wrong password error = %v", err)
	}
}

func TestSealKeys_NoMaterial(t *testing.T) {
	if _, err := SealKeys(&Keys{}, []byte("pw")); !errors.Is(err, errs.ErrNoKeyMaterial) {
		t.Errorf("SealKeys(empty) error = %v, want NoKeyMaterial", err)
	}
}
