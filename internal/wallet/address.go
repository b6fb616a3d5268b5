package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// AccountType selects which of an account's addresses is used for spending.
type AccountType string

// Account types.
const (
	AccountTBC           AccountType = "TBC"
	AccountTaproot       AccountType = "TAPROOT"
	AccountTaprootLegacy AccountType = "TAPROOT_LEGACY"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTBC, AccountTaproot, AccountTaprootLegacy:
		return true
	}
	return false
}

// ParseAccountType parses an account type name.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown account type %q", s)
	}
	return t, nil
}

// Addresses holds every address form of one key.
type Addresses struct {
	TBC           string `json:"tbc"`
	Taproot       string `json:"taproot"`
	TaprootLegacy string `json:"taprootLegacy"`
	Legacy        string `json:"legacy"`
}

// For returns the spending address for an account type.
func (a Addresses) For(t AccountType) string {
	switch t {
	case AccountTaproot:
		return a.Taproot
	case AccountTaprootLegacy:
		return a.TaprootLegacy
	default:
		return a.TBC
	}
}

// DeriveAddresses computes all address forms of priv.
func DeriveAddresses(priv *btcec.PrivateKey, params *chaincfg.Params) (Addresses, error) {
	pub := priv.PubKey()

	tbc, err := P2PKHAddress(pub.SerializeCompressed(), params)
	if err != nil {
		return Addresses{}, err
	}
	legacy, err := P2PKHAddress(pub.SerializeUncompressed(), params)
	if err != nil {
		return Addresses{}, err
	}
	taproot, err := P2PKHAddress(TaprootTweak(priv).PubKey().SerializeCompressed(), params)
	if err != nil {
		return Addresses{}, err
	}
	taprootLegacy, err := P2PKHAddress(TaprootLegacyTweak(priv).PubKey().SerializeCompressed(), params)
	if err != nil {
		return Addresses{}, err
	}

	return Addresses{
		TBC:           tbc,
		Taproot:       taproot,
		TaprootLegacy: taprootLegacy,
		Legacy:        legacy,
	}, nil
}

// P2PKHAddress encodes the pay-to-pubkey-hash address of a serialized pubkey.
func P2PKHAddress(pubKey []byte, params *chaincfg.Params) (string, error) {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pubKey), params)
	if err != nil {
		return "", fmt.Errorf("p2pkh address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// P2PKHScript returns the locking script paying to address.
func P2PKHScript(address string, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", address, err)
	}
	return txscript.PayToAddrScript(addr)
}

// TaprootTweak returns the BIP-341 key-path tweak of priv with no script root.
func TaprootTweak(priv *btcec.PrivateKey) *btcec.PrivateKey {
	return txscript.TweakTaprootPrivKey(*priv, nil)
}

// TaprootLegacyTweak adds TaggedHash("TapTweak", compressed pubkey) to priv
// without normalizing the key to an even Y coordinate first. Older TBC
// wallets derived their taproot address this way.
func TaprootLegacyTweak(priv *btcec.PrivateKey) *btcec.PrivateKey {
	h := chainhash.TaggedHash(chainhash.TagTapTweak, priv.PubKey().SerializeCompressed())

	var tweak secp256k1.ModNScalar
	tweak.SetByteSlice(h[:])

	k := priv.Key
	k.Add(&tweak)
	return secp256k1.NewPrivateKey(&k)
}
