package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/vault"
)

// KeysFromMnemonic derives the account key at path and returns the secret
// record to be sealed. An empty path means DefaultPath.
func KeysFromMnemonic(mnemonic, path string, params *chaincfg.Params) (*vault.Keys, error) {
	if path == "" {
		path = DefaultPath
	}
	mnemonic = NormalizeMnemonic(mnemonic)
	seed, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, err
	}
	defer vault.Zero(seed)

	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, errs.Wrap(errs.KeyDerivationFailure, err, "master key")
	}
	child, err := master.DerivePathString(path)
	if err != nil {
		return nil, err
	}
	priv, err := child.PrivateKey()
	if err != nil {
		return nil, err
	}

	wif, err := btcutil.NewWIF(priv, params, true)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidKey, err, "encode wif")
	}
	return &vault.Keys{
		Mnemonic:       mnemonic,
		DerivationPath: path,
		WalletWIF:      wif.String(),
	}, nil
}

// KeysFromWIF validates an imported WIF and wraps it in a secret record.
func KeysFromWIF(wifStr string, params *chaincfg.Params) (*vault.Keys, error) {
	if _, err := DecodeWIF(wifStr, params); err != nil {
		return nil, err
	}
	return &vault.Keys{WalletWIF: wifStr}, nil
}

// DecodeWIF parses a WIF private key and checks its network.
func DecodeWIF(wifStr string, params *chaincfg.Params) (*btcec.PrivateKey, error) {
	wif, err := btcutil.DecodeWIF(wifStr)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidKey, err, "invalid wif")
	}
	if !wif.IsForNet(params) {
		return nil, errs.New(errs.InvalidKey, "wif is not for network %s", params.Name)
	}
	return wif.PrivKey, nil
}

// PrivateKeyFromKeys returns the signing key held in k.
func PrivateKeyFromKeys(k *vault.Keys, params *chaincfg.Params) (*btcec.PrivateKey, error) {
	if k == nil || k.WalletWIF == "" {
		return nil, errs.New(errs.NoKeyMaterial, "no key material")
	}
	return DecodeWIF(k.WalletWIF, params)
}
