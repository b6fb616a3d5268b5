package wallet

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/vault"
)

func testKeys(t *testing.T) *vault.Keys {
	t.Helper()
	k, err := KeysFromMnemonic(testMnemonic, "", &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("KeysFromMnemonic() error: %v", err)
	}
	return k
}

func TestKeysFromMnemonic(t *testing.T) {
	k := testKeys(t)
	if k.DerivationPath != DefaultPath {
		t.Errorf("DerivationPath = %q, want %q", k.DerivationPath, DefaultPath)
	}
	if k.Mnemonic != testMnemonic {
		t.Error("mnemonic not carried")
	}

	again := testKeys(t)
	if again.WalletWIF != k.WalletWIF {
		t.Error("KeysFromMnemonic is not deterministic")
	}

	other, err := KeysFromMnemonic(testMnemonic, AccountPath(0, ChangeExternal, 1), &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("KeysFromMnemonic() error: %v", err)
	}
	if other.WalletWIF == k.WalletWIF {
		t.Error("different paths produced the same key")
	}
}

func TestKeysFromMnemonic_Invalid(t *testing.T) {
	_, err := KeysFromMnemonic("abandon abandon", "", &chaincfg.MainNetParams)
	if !errors.Is(err, errs.ErrInvalidMnemonic) {
		t.Errorf("error = %v, want InvalidMnemonic", err)
	}
}

func TestKeysFromWIF(t *testing.T) {
	const wif = "KwDiBf89QgGbjEhKnhXJuH7LrciVrZi3qYjgd9M7rFU73sVHnoWn"
	k, err := KeysFromWIF(wif, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("KeysFromWIF() error: %v", err)
	}
	if k.Mnemonic != "" || k.WalletWIF != wif {
		t.Errorf("KeysFromWIF() = %+v", k)
	}

	if _, err := KeysFromWIF("garbage", &chaincfg.MainNetParams); !errors.Is(err, errs.ErrInvalidKey) {
		t.Errorf("garbage wif error = %v, want InvalidKey", err)
	}
	if _, err := KeysFromWIF(wif, &chaincfg.TestNet3Params); !errors.Is(err, errs.ErrInvalidKey) {
		t.Errorf("wrong-network wif error = %v, want InvalidKey", err)
	}
}

func TestResolveSigner(t *testing.T) {
	params := &chaincfg.MainNetParams
	k := testKeys(t)
	priv, _ := PrivateKeyFromKeys(k, params)
	addrs, _ := DeriveAddresses(priv, params)

	tests := []struct {
		typ      AccountType
		kind     SignerKind
		wantAddr string
	}{
		{AccountTBC, SignerPlain, addrs.TBC},
		{AccountTaproot, SignerTaprootTweaked, addrs.Taproot},
		{AccountTaprootLegacy, SignerTaprootLegacyTweaked, addrs.TaprootLegacy},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			s, err := ResolveSigner(tt.typ, k, params)
			if err != nil {
				t.Fatalf("ResolveSigner() error: %v", err)
			}
			defer s.Zero()
			if s.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", s.Kind(), tt.kind)
			}
			if s.Address() != tt.wantAddr {
				t.Errorf("Address() = %s, want %s", s.Address(), tt.wantAddr)
			}
		})
	}
}

func TestResolveSigner_NoKeyMaterial(t *testing.T) {
	_, err := ResolveSigner(AccountTBC, &vault.Keys{}, &chaincfg.MainNetParams)
	if !errors.Is(err, errs.ErrNoKeyMaterial) {
		t.Errorf("error = %v, want NoKeyMaterial", err)
	}
	_, err = ResolveSigner(AccountTBC, nil, &chaincfg.MainNetParams)
	if !errors.Is(err, errs.ErrNoKeyMaterial) {
		t.Errorf("nil keys error = %v, want NoKeyMaterial", err)
	}
}
