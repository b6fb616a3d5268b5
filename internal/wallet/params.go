package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network names.
const (
	Mainnet = "mainnet"
	Testnet = "testnet"
)

// NetParams returns the address and WIF parameters for a network.
// TBC keeps the Bitcoin base58 version bytes.
func NetParams(network string) (*chaincfg.Params, error) {
	switch network {
	case Mainnet, "":
		return &chaincfg.MainNetParams, nil
	case Testnet:
		return &chaincfg.TestNet3Params, nil
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}
