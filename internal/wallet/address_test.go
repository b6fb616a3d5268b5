package wallet

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

func keyOne(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	raw := make([]byte, 32)
	raw[31] = 1
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return priv
}

func TestDeriveAddresses_KnownKey(t *testing.T) {
	addrs, err := DeriveAddresses(keyOne(t), &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("DeriveAddresses() error: %v", err)
	}
	if addrs.TBC != "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH" {
		t.Errorf("TBC address = %s", addrs.TBC)
	}
	if addrs.Legacy != "1EHNa6Q4Jz2uvNExL497mE43ikXhwF6kZm" {
		t.Errorf("Legacy address = %s", addrs.Legacy)
	}
}

func TestDeriveAddresses_AllDistinct(t *testing.T) {
	master, _ := NewMasterKey(testSeed(t))
	child, _ := master.DerivePathString(DefaultPath)
	priv, _ := child.PrivateKey()

	addrs, err := DeriveAddresses(priv, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("DeriveAddresses() error: %v", err)
	}
	seen := map[string]bool{}
	for _, a := range []string{addrs.TBC, addrs.Taproot, addrs.TaprootLegacy, addrs.Legacy} {
		if !strings.HasPrefix(a, "1") {
			t.Errorf("address %s is not a mainnet p2pkh address", a)
		}
		if seen[a] {
			t.Errorf("address %s repeated across forms", a)
		}
		seen[a] = true
	}
}

func TestTaprootTweak_MatchesOutputKey(t *testing.T) {
	priv := keyOne(t)
	want := txscript.ComputeTaprootKeyNoScript(priv.PubKey())
	got := TaprootTweak(priv).PubKey()

	// BIP-341 output keys are x-only; compare the x coordinate.
	if !bytes.Equal(got.SerializeCompressed()[1:], want.SerializeCompressed()[1:]) {
		t.Errorf("tweaked x = %x, want %x", got.SerializeCompressed()[1:], want.SerializeCompressed()[1:])
	}
}

func TestTaprootLegacyTweak_Deterministic(t *testing.T) {
	a := TaprootLegacyTweak(keyOne(t))
	b := TaprootLegacyTweak(keyOne(t))
	if !bytes.Equal(a.Serialize(), b.Serialize()) {
		t.Error("legacy tweak is not deterministic")
	}
	if bytes.Equal(a.Serialize(), keyOne(t).Serialize()) {
		t.Error("legacy tweak returned the untweaked key")
	}
}

func TestP2PKHScript(t *testing.T) {
	script, err := P2PKHScript("1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("P2PKHScript() error: %v", err)
	}
	want := "76a914751e76e8199196d454941c45d1b3a323f1433bd688ac"
	if hex.EncodeToString(script) != want {
		t.Errorf("script = %x, want %s", script, want)
	}

	if _, err := P2PKHScript("not-an-address", &chaincfg.MainNetParams); err == nil {
		t.Error("P2PKHScript() should reject a malformed address")
	}
}

func TestAddressesFor(t *testing.T) {
	a := Addresses{TBC: "t", Taproot: "tr", TaprootLegacy: "trl", Legacy: "l"}
	tests := map[AccountType]string{
		AccountTBC:           "t",
		AccountTaproot:       "tr",
		AccountTaprootLegacy: "trl",
	}
	for typ, want := range tests {
		if got := a.For(typ); got != want {
			t.Errorf("For(%s) = %s, want %s", typ, got, want)
		}
	}
}

func TestParseAccountType(t *testing.T) {
	if _, err := ParseAccountType("TAPROOT"); err != nil {
		t.Errorf("ParseAccountType(TAPROOT) error: %v", err)
	}
	if _, err := ParseAccountType("segwit"); err == nil {
		t.Error("ParseAccountType(segwit) should fail")
	}
}
