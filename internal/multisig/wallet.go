// Package multisig coordinates m-of-n threshold transactions between
// signers through the indexer's signature exchange.
package multisig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
)

// MaxSigners is the largest n a bare multisig script supports.
const MaxSigners = 16

// Wallet is an m-of-n multisig lock.
type Wallet struct {
	Address   string
	PubKeys   []string
	Threshold int
	Script    []byte
}

// NewWallet builds the m-of-n lock over pubkeys (hex), keeping the given
// order. Keys are stored in compressed form.
func NewWallet(pubkeys []string, m int, params *chaincfg.Params) (*Wallet, error) {
	n := len(pubkeys)
	if n == 0 || n > MaxSigners {
		return nil, fmt.Errorf("multisig needs 1 to %d pubkeys, got %d", MaxSigners, n)
	}
	if m < 1 || m > n {
		return nil, fmt.Errorf("threshold %d out of range for %d pubkeys", m, n)
	}

	keys := make([]*btcutil.AddressPubKey, n)
	normalized := make([]string, n)
	for i, pk := range pubkeys {
		raw, err := hex.DecodeString(pk)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidKey, err, "pubkey %d", i)
		}
		pub, err := btcec.ParsePubKey(raw)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidKey, err, "pubkey %d", i)
		}
		compressed := pub.SerializeCompressed()
		normalized[i] = hex.EncodeToString(compressed)
		if slices.Contains(normalized[:i], normalized[i]) {
			return nil, errs.New(errs.InvalidKey, "duplicate pubkey %s", pk)
		}
		keys[i], err = btcutil.NewAddressPubKey(compressed, params)
		if err != nil {
			return nil, fmt.Errorf("pubkey %d: %w", i, err)
		}
	}

	script, err := txscript.MultiSigScript(keys, m)
	if err != nil {
		return nil, fmt.Errorf("multisig script: %w", err)
	}
	addr, err := btcutil.NewAddressScriptHash(script, params)
	if err != nil {
		return nil, fmt.Errorf("multisig address: %w", err)
	}
	return &Wallet{
		Address:   addr.EncodeAddress(),
		PubKeys:   normalized,
		Threshold: m,
		Script:    script,
	}, nil
}

// ScriptHash identifies the lock script to the indexer: sha256 of the
// script, byte-reversed, in hex.
func (w *Wallet) ScriptHash() string {
	return ScriptHash(w.Script)
}

// ScriptHash returns the byte-reversed sha256 of script in hex.
func ScriptHash(script []byte) string {
	h := sha256.Sum256(script)
	slices.Reverse(h[:])
	return hex.EncodeToString(h[:])
}

// Has reports whether pubkey is one of the wallet's keys.
func (w *Wallet) Has(pubkey string) bool {
	return slices.Contains(w.PubKeys, pubkey)
}

// scriptPubKeys returns the pubkeys of a multisig script in script order.
func scriptPubKeys(script []byte, params *chaincfg.Params) ([]string, int, error) {
	class, addrs, m, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil {
		return nil, 0, fmt.Errorf("parse multisig script: %w", err)
	}
	if class != txscript.MultiSigTy {
		return nil, 0, fmt.Errorf("script is %s, not multisig", class)
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		pk, ok := a.(*btcutil.AddressPubKey)
		if !ok {
			return nil, 0, fmt.Errorf("multisig script key %d: unexpected %T", i, a)
		}
		out[i] = hex.EncodeToString(pk.ScriptAddress())
	}
	return out, m, nil
}
