// Package builder assembles, signs and broadcasts account transactions:
// plain transfers, NFT collections, NFT mints and NFT transfers.
package builder

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/indexer"
	"github.com/Klingon-tech/tbcwallet/internal/log"
	"github.com/Klingon-tech/tbcwallet/internal/metrics"
	"github.com/Klingon-tech/tbcwallet/internal/utxo"
	"github.com/Klingon-tech/tbcwallet/internal/wallet"
	"github.com/Klingon-tech/tbcwallet/pkg/tx"
)

// Amounts in satoshis.
const (
	// TransferBuffer is selected on top of the payment to cover the fee.
	TransferBuffer = 1000

	// DustLimit is the smallest change output worth creating. Smaller
	// change is left to the fee.
	DustLimit = 546

	// FirstTransferReserve funds the first transfer of an NFT, which
	// carries the larger mint lineage.
	FirstTransferReserve = 3000

	// TransferReserve funds every later NFT transfer.
	TransferReserve = 2000

	// MintSlotValue is the value locked in each collection mint slot and
	// carried by the NFT minted from it.
	MintSlotValue = 100
)

const maxFundingAttempts = 3

// Chain is the remote collaborator used to resolve ancestors and broadcast.
type Chain interface {
	RawTx(ctx context.Context, txid string) (string, error)
	CollectionSlots(ctx context.Context, collectionID, owner string) ([]indexer.UTXO, error)
	NFTUtxo(ctx context.Context, nftID string) (*indexer.UTXO, error)
	Broadcast(ctx context.Context, rawHex string) (string, error)
}

// Signed is a finalized, signed transaction ready to broadcast.
type Signed struct {
	TxHex string
	TxID  string
	Fee   uint64
	Spent []*utxo.UTXO
}

// Builder builds transactions for accounts of one network.
type Builder struct {
	selector *utxo.Selector
	cache    *utxo.Store
	chain    Chain
	params   *chaincfg.Params
	metrics  *metrics.Metrics
}

// New creates a builder. m may be nil.
func New(selector *utxo.Selector, cache *utxo.Store, chain Chain, params *chaincfg.Params, m *metrics.Metrics) *Builder {
	return &Builder{selector: selector, cache: cache, chain: chain, params: params, metrics: m}
}

func checkKey(key wallet.SigningKey, from string) error {
	if key == nil || key.PrivKey() == nil {
		return errs.New(errs.NoKeyMaterial, "no signing key")
	}
	if key.Address() != from {
		return errs.New(errs.InvalidKey, "signing key controls %s, not %s", key.Address(), from)
	}
	return nil
}

// funded is a transaction with its fixed inputs and outputs in place,
// ready to receive funding inputs and change.
type funded struct {
	// fixedIn are inputs that must be spent regardless of funding.
	fixedIn []*utxo.UTXO
	// outputs are written in order before change.
	outputs []output
	// need is the value the funding inputs must cover beyond the fee.
	need uint64
	// reserve is the initial funding target.
	reserve uint64
}

type output struct {
	value  uint64
	script []byte
}

// fund selects funding inputs for plan, computes the fee from the worst-case
// signed size, adds change to from when above dust and signs every input.
func (b *Builder) fund(ctx context.Context, from string, plan funded, key wallet.SigningKey) (*Signed, error) {
	changeScript, err := wallet.P2PKHScript(from, b.params)
	if err != nil {
		return nil, err
	}
	exclude := make([]utxo.Outpoint, len(plan.fixedIn))
	var fixedValue uint64
	for i, u := range plan.fixedIn {
		exclude[i] = u.Outpoint()
		fixedValue += u.Satoshis
	}
	var outValue uint64
	for _, o := range plan.outputs {
		outValue += o.value
	}

	target := plan.reserve
	for attempt := 0; ; attempt++ {
		selected, err := b.selector.SelectSats(ctx, from, target, exclude...)
		if err != nil {
			return nil, err
		}

		inputs := append(append([]*utxo.UTXO(nil), plan.fixedIn...), selected...)
		txb, err := assemble(inputs, plan.outputs)
		if err != nil {
			return nil, err
		}
		// Size with change included bounds the size without it.
		txb.AddOutput(0, changeScript)
		fee := tx.Fee(txb.EstimateSignedSize(tx.P2PKHSigScriptSize))

		total := fixedValue + utxo.Sum(selected)
		if total < outValue+fee {
			if attempt >= maxFundingAttempts || plan.need+fee <= target {
				return nil, errs.New(errs.InsufficientBalance,
					"insufficient balance: have %d sat, need %d", total, outValue+fee)
			}
			target = plan.need + fee
			continue
		}

		change := total - outValue - fee
		if change < DustLimit {
			txb.RemoveOutput(txb.NumOutputs() - 1)
		} else {
			txb.SetOutputValue(txb.NumOutputs()-1, change)
		}

		if err := txb.SignP2PKH(key.PrivKey()); err != nil {
			return nil, err
		}
		rawHex, err := txb.Hex()
		if err != nil {
			return nil, err
		}
		msg := txb.Build()
		return &Signed{
			TxHex: rawHex,
			TxID:  msg.TxHash().String(),
			Fee:   total - txb.OutputValue(),
			Spent: inputs,
		}, nil
	}
}

func assemble(inputs []*utxo.UTXO, outputs []output) (*tx.Builder, error) {
	txb := tx.NewBuilder()
	for _, u := range inputs {
		script, err := hex.DecodeString(u.Script)
		if err != nil {
			return nil, fmt.Errorf("input %s script: %w", u.Outpoint().TxID, err)
		}
		if err := txb.AddInput(u.TxID, u.OutputIndex, script, u.Satoshis); err != nil {
			return nil, err
		}
	}
	for _, o := range outputs {
		txb.AddOutput(o.value, o.script)
	}
	return txb, nil
}

// BuildTransfer pays amountTBC from from to to, with change back to from.
func (b *Builder) BuildTransfer(ctx context.Context, from, to, amountTBC string, key wallet.SigningKey) (*Signed, error) {
	if err := checkKey(key, from); err != nil {
		return nil, err
	}
	amount, err := utxo.ParseTBC(amountTBC)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	payTo, err := wallet.P2PKHScript(to, b.params)
	if err != nil {
		return nil, err
	}

	signed, err := b.fund(ctx, from, funded{
		outputs: []output{{value: amount, script: payTo}},
		need:    amount,
		reserve: amount + TransferBuffer,
	}, key)
	if err != nil {
		return nil, err
	}

	log.Builder.Info().
		Str("from", from).
		Str("to", to).
		Uint64("amount", amount).
		Uint64("fee", signed.Fee).
		Int("inputs", len(signed.Spent)).
		Msg("Transfer built")
	return signed, nil
}

// Broadcast submits a signed transaction. On success its inputs are marked
// spent in the cache; on failure the cache is left as is so the call can
// be retried.
func (b *Builder) Broadcast(ctx context.Context, s *Signed) (string, error) {
	txid, err := b.chain.Broadcast(ctx, s.TxHex)
	if err != nil {
		b.metrics.Broadcast("single", "error")
		return "", errs.Wrap(errs.BroadcastFailure, err, "broadcast %s", s.TxID)
	}
	if txid == "" {
		b.metrics.Broadcast("single", "empty")
		return "", errs.New(errs.BroadcastFailure, "broadcast %s: empty response", s.TxID)
	}
	b.metrics.Broadcast("single", "ok")

	ops := make([]utxo.Outpoint, len(s.Spent))
	for i, u := range s.Spent {
		ops[i] = u.Outpoint()
	}
	if err := b.cache.MarkSpent(ops); err != nil {
		log.Builder.Warn().Err(err).Str("txid", txid).Msg("Failed to mark inputs spent")
	}

	log.Builder.Info().Str("txid", txid).Int("inputs", len(ops)).Msg("Transaction broadcast")
	return txid, nil
}
