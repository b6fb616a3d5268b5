// Package wallet derives and holds TBC account key material.
package wallet

import (
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
)

const (
	// MnemonicEntropyBits gives 12-word phrases.
	MnemonicEntropyBits = 128

	// SeedSize is the BIP-39 seed length in bytes.
	SeedSize = 64
)

// GenerateMnemonic returns a fresh 12-word phrase.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", errs.Wrap(errs.KeyDerivationFailure, err, "entropy")
	}
	defer clear(entropy)
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errs.Wrap(errs.KeyDerivationFailure, err, "encode mnemonic")
	}
	return mnemonic, nil
}

// NormalizeMnemonic lowercases a phrase and collapses its whitespace, so
// pasted phrases derive the same keys as typed ones.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// ValidateMnemonic reports whether the normalized phrase has a valid
// word count, wordlist words and checksum.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(mnemonic))
}

// SeedFromMnemonic derives the 64-byte seed of a phrase.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	mnemonic = NormalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errs.New(errs.InvalidMnemonic, "invalid mnemonic")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidMnemonic, err, "derive seed")
	}
	return seed, nil
}
