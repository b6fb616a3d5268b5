// Package utxo caches an account's unspent outputs and selects inputs for
// new transactions.
package utxo

import (
	"context"
	"fmt"
)

// Outpoint identifies a transaction output.
type Outpoint struct {
	TxID  string `json:"txid"`
	Index uint32 `json:"vout"`
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Index)
}

// UTXO is an unspent output owned by an account address.
type UTXO struct {
	TxID        string `json:"txid"`
	OutputIndex uint32 `json:"vout"`
	Satoshis    uint64 `json:"satoshis"`
	Height      uint64 `json:"height"` // 0 while unconfirmed
	Spent       bool   `json:"spent,omitempty"`
	Address     string `json:"address"`
	Script      string `json:"script,omitempty"` // hex locking script
}

// Outpoint returns the output's identity.
func (u *UTXO) Outpoint() Outpoint {
	return Outpoint{TxID: u.TxID, Index: u.OutputIndex}
}

// Confirmed reports whether the output is mined.
func (u *UTXO) Confirmed() bool {
	return u.Height > 0
}

// Balance is an address balance in satoshis.
type Balance struct {
	Confirmed   uint64 `json:"confirmed"`
	Unconfirmed uint64 `json:"unconfirmed"`
}

// Total returns confirmed plus unconfirmed.
func (b Balance) Total() uint64 {
	return b.Confirmed + b.Unconfirmed
}

// Set is the cached UTXO view the selector and builder work against.
type Set interface {
	UTXOs(address string) ([]*UTXO, error)
	ReplaceUTXOs(address string, utxos []*UTXO) error
	MarkSpent(outpoints []Outpoint) error
}

// Fetcher loads an address's current unspent set from the indexer.
type Fetcher interface {
	FetchUTXOs(ctx context.Context, address string) ([]*UTXO, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, address string) ([]*UTXO, error)

// FetchUTXOs calls f.
func (f FetchFunc) FetchUTXOs(ctx context.Context, address string) ([]*UTXO, error) {
	return f(ctx, address)
}

// Sum returns the total value of utxos.
func Sum(utxos []*UTXO) uint64 {
	var total uint64
	for _, u := range utxos {
		total += u.Satoshis
	}
	return total
}
