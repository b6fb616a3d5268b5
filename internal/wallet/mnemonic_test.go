package wallet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
)

const abandonAbout = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestGenerateMnemonic(t *testing.T) {
	m1, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic: %v", err)
	}
	if n := len(strings.Fields(m1)); n != 12 {
		t.Errorf("word count = %d, want 12", n)
	}
	if !ValidateMnemonic(m1) {
		t.Error("generated mnemonic does not validate")
	}
	m2, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic: %v", err)
	}
	if m1 == m2 {
		t.Error("two generated mnemonics are identical")
	}
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		valid    bool
	}{
		{"12 words", abandonAbout, true},
		{"24 words", strings.Repeat("abandon ", 23) + "art", true},
		{"mixed case and spacing", "  Abandon abandon\tabandon abandon abandon abandon abandon abandon abandon abandon abandon ABOUT\n", true},
		{"empty", "", false},
		{"not wordlist words", "not a valid mnemonic phrase at all", false},
		{"bad checksum", strings.TrimSpace(strings.Repeat("abandon ", 12)), false},
		{"single word", "abandon", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateMnemonic(tt.mnemonic); got != tt.valid {
				t.Errorf("ValidateMnemonic = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestSeedFromMnemonic_KnownVector(t *testing.T) {
	seed, err := SeedFromMnemonic(abandonAbout, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic: %v", err)
	}
	want, _ := hex.DecodeString("c55257c360c07c72029aebc1b53c05ed0362ada38ead3e3e9efa3708e53495531f09a6987599d18264c1e1c92f2cf141630c7a3c4ab7c81b2f001698e7463b04")
	if !bytes.Equal(seed, want) {
		t.Errorf("seed = %x, want %x", seed, want)
	}
	if len(seed) != SeedSize {
		t.Errorf("seed length = %d", len(seed))
	}
}

func TestSeedFromMnemonic_Normalized(t *testing.T) {
	a, err := SeedFromMnemonic(abandonAbout, "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := SeedFromMnemonic("  "+strings.ToUpper(abandonAbout)+"\n", "")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("formatting changed the seed")
	}
	c, err := SeedFromMnemonic(abandonAbout, "passphrase")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, c) {
		t.Error("passphrase did not change the seed")
	}
}

func TestSeedFromMnemonic_Invalid(t *testing.T) {
	for _, m := range []string{"", "not valid words here"} {
		if _, err := SeedFromMnemonic(m, ""); !errors.Is(err, errs.ErrInvalidMnemonic) {
			t.Errorf("SeedFromMnemonic(%q) error = %v, want InvalidMnemonic", m, err)
		}
	}
}
