package wallet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tyler-smith/go-bip32"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// testSeed returns a deterministic seed for testing.
// Uses the BIP-39 test vector: "abandon" x11 + "about" with passphrase "TREZOR".
func testSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := SeedFromMnemonic(testMnemonic, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	return seed
}

func TestNewMasterKey(t *testing.T) {
	master, err := NewMasterKey(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}
	if len(master.PrivateKeyBytes()) != 32 {
		t.Errorf("private key length = %d, want 32", len(master.PrivateKeyBytes()))
	}
	priv, err := master.PrivateKey()
	if err != nil {
		t.Fatalf("PrivateKey() error: %v", err)
	}
	if len(priv.PubKey().SerializeCompressed()) != 33 {
		t.Error("compressed public key should be 33 bytes")
	}
}

func TestNewMasterKey_InvalidSeedLength(t *testing.T) {
	for _, n := range []int{0, 32, 128} {
		if _, err := NewMasterKey(make([]byte, n)); err == nil {
			t.Errorf("NewMasterKey(%d bytes) should fail", n)
		}
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		path    string
		want    []uint32
		wantErr bool
	}{
		{"m/44'/236'/0'/0/0", []uint32{PurposeBIP44, CoinTypeTBC, bip32.FirstHardenedChild, 0, 0}, false},
		{"m/44h/236h/1h/1/7", []uint32{PurposeBIP44, CoinTypeTBC, bip32.FirstHardenedChild + 1, 1, 7}, false},
		{"m", nil, false},
		{"44'/0", nil, true},
		{"m/abc", nil, true},
		{"m/2147483648", nil, true},
		{"m//0", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ParsePath(tt.path)
			if tt.wantErr {
				if !errors.Is(err, errs.ErrInvalidKey) {
					t.Fatalf("ParsePath() error = %v, want InvalidKey", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePath() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParsePath() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("index[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDerivePathString_MatchesIndices(t *testing.T) {
	master, _ := NewMasterKey(testSeed(t))

	byString, err := master.DerivePathString(AccountPath(0, ChangeExternal, 0))
	if err != nil {
		t.Fatalf("DerivePathString() error: %v", err)
	}
	byIndex, err := master.DerivePath(PurposeBIP44, CoinTypeTBC, bip32.FirstHardenedChild, ChangeExternal, 0)
	if err != nil {
		t.Fatalf("DerivePath() error: %v", err)
	}
	if !bytes.Equal(byString.PrivateKeyBytes(), byIndex.PrivateKeyBytes()) {
		t.Error("textual and index derivation disagree")
	}
}

func TestDeriveChild_Distinct(t *testing.T) {
	master, _ := NewMasterKey(testSeed(t))
	c0, _ := master.DeriveChild(0)
	c1, _ := master.DeriveChild(1)
	if bytes.Equal(c0.PrivateKeyBytes(), c1.PrivateKeyBytes()) {
		t.Error("different indices should produce different keys")
	}
}
