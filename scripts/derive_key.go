// derive_key.go prints the pubkey and every address form for a key file
// holding either a hex private key or a WIF.
// Usage: go run scripts/derive_key.go [--testnet] <keyfile>
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/Klingon-tech/tbcwallet/internal/wallet"
)

func main() {
	args := os.Args[1:]
	network := "mainnet"
	if len(args) > 0 && args[0] == "--testnet" {
		network = "testnet"
		args = args[1:]
	}
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: derive_key [--testnet] <keyfile>")
		os.Exit(1)
	}
	params, err := wallet.NetParams(network)
	if err != nil {
		fail(err)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fail(err)
	}
	text := strings.TrimSpace(string(data))

	var priv *btcec.PrivateKey
	if keyBytes, herr := hex.DecodeString(text); herr == nil && len(keyBytes) == 32 {
		priv, _ = btcec.PrivKeyFromBytes(keyBytes)
	} else if priv, err = wallet.DecodeWIF(text, params); err != nil {
		fail(err)
	}

	addrs, err := wallet.DeriveAddresses(priv, params)
	if err != nil {
		fail(err)
	}
	fmt.Printf("pubkey=%s\n", hex.EncodeToString(priv.PubKey().SerializeCompressed()))
	fmt.Printf("address=%s\n", addrs.TBC)
	fmt.Printf("taproot=%s\n", addrs.Taproot)
	fmt.Printf("taproot_legacy=%s\n", addrs.TaprootLegacy)
	priv.Zero()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
