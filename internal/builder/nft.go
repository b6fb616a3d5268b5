package builder

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/indexer"
	"github.com/Klingon-tech/tbcwallet/internal/log"
	"github.com/Klingon-tech/tbcwallet/internal/utxo"
	"github.com/Klingon-tech/tbcwallet/internal/wallet"
	"github.com/Klingon-tech/tbcwallet/pkg/tx"
)

// Tape markers. Holder outputs end in OP_RETURN <marker> so plain address
// UTXO queries never return them as spendable funds.
const (
	TapeTag = "tbcnft"

	MarkerSlot = "slot"
	MarkerNFT  = "nft"

	opCollection = "collection"
	opMint       = "mint"
	opTransfer   = "transfer"
)

// CollectionData describes a new NFT collection.
type CollectionData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Supply      int    `json:"supply"`
}

// NFTData describes a new NFT.
type NFTData struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// HolderScript is the locking script of a mint slot or NFT held by address.
func (b *Builder) HolderScript(address, marker string) ([]byte, error) {
	p2pkh, err := wallet.P2PKHScript(address, b.params)
	if err != nil {
		return nil, err
	}
	script, err := txscript.NewScriptBuilder().
		AddOps(p2pkh).
		AddOp(txscript.OP_RETURN).
		AddData([]byte(marker)).
		Script()
	if err != nil {
		return nil, fmt.Errorf("holder script: %w", err)
	}
	return script, nil
}

// lineage is the defining transaction of a token output and its parent.
type lineage struct {
	definingID string
	parentID   string
	input      *utxo.UTXO
}

func (b *Builder) fetchTx(ctx context.Context, txid string) (*wire.MsgTx, error) {
	rawHex, err := b.chain.RawTx(ctx, txid)
	if err != nil {
		return nil, fmt.Errorf("fetch tx %s: %w", txid, err)
	}
	msg, err := tx.DecodeHex(rawHex)
	if err != nil {
		return nil, fmt.Errorf("tx %s: %w", txid, err)
	}
	if got := msg.TxHash().String(); got != txid {
		return nil, fmt.Errorf("tx %s: indexer returned %s", txid, got)
	}
	return msg, nil
}

// resolveLineage checks that u's defining transaction really creates an
// output locked by want and that it spends the parent it names.
func (b *Builder) resolveLineage(ctx context.Context, u indexer.UTXO, want []byte) (*lineage, error) {
	defining, err := b.fetchTx(ctx, u.TxID)
	if err != nil {
		return nil, fmt.Errorf("lineage: %w", err)
	}
	if int(u.Vout) >= len(defining.TxOut) {
		return nil, fmt.Errorf("lineage: tx %s has no output %d", u.TxID, u.Vout)
	}
	out := defining.TxOut[u.Vout]
	if !bytes.Equal(out.PkScript, want) {
		return nil, fmt.Errorf("lineage: output %s:%d is not held by this account", u.TxID, u.Vout)
	}
	if uint64(out.Value) != u.Value {
		return nil, fmt.Errorf("lineage: output %s:%d value %d, indexer reports %d", u.TxID, u.Vout, out.Value, u.Value)
	}
	if len(defining.TxIn) == 0 {
		return nil, fmt.Errorf("lineage: tx %s has no inputs", u.TxID)
	}

	prev := defining.TxIn[0].PreviousOutPoint
	parent, err := b.fetchTx(ctx, prev.Hash.String())
	if err != nil {
		return nil, fmt.Errorf("lineage parent: %w", err)
	}
	if int(prev.Index) >= len(parent.TxOut) {
		return nil, fmt.Errorf("lineage: parent %s has no output %d", prev.Hash, prev.Index)
	}

	return &lineage{
		definingID: u.TxID,
		parentID:   prev.Hash.String(),
		input: &utxo.UTXO{
			TxID:        u.TxID,
			OutputIndex: u.Vout,
			Satoshis:    u.Value,
			Height:      u.Height,
			Script:      hex.EncodeToString(want),
		},
	}, nil
}

// CreateCollection creates a collection with one mint slot per unit of
// supply, all held by from. The collection id is the returned TxID.
func (b *Builder) CreateCollection(ctx context.Context, from string, data CollectionData, key wallet.SigningKey) (*Signed, error) {
	if err := checkKey(key, from); err != nil {
		return nil, err
	}
	if data.Supply <= 0 {
		return nil, fmt.Errorf("collection supply must be positive")
	}
	meta, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	tape, err := tx.DataScript([]byte(TapeTag), []byte(opCollection), meta)
	if err != nil {
		return nil, err
	}
	slot, err := b.HolderScript(from, MarkerSlot)
	if err != nil {
		return nil, err
	}

	outputs := []output{{value: 0, script: tape}}
	for range data.Supply {
		outputs = append(outputs, output{value: MintSlotValue, script: slot})
	}
	need := uint64(data.Supply) * MintSlotValue

	signed, err := b.fund(ctx, from, funded{outputs: outputs, need: need, reserve: need + TransferBuffer}, key)
	if err != nil {
		return nil, err
	}
	log.Builder.Info().
		Str("from", from).
		Str("collection", signed.TxID).
		Int("supply", data.Supply).
		Msg("Collection built")
	return signed, nil
}

// CreateNFT mints an NFT from a free slot of collectionID. The NFT id is
// the returned TxID.
func (b *Builder) CreateNFT(ctx context.Context, from, collectionID string, data NFTData, key wallet.SigningKey) (*Signed, error) {
	if err := checkKey(key, from); err != nil {
		return nil, err
	}
	slots, err := b.chain.CollectionSlots(ctx, collectionID, from)
	if err != nil {
		return nil, fmt.Errorf("collection slots: %w", err)
	}
	if len(slots) == 0 {
		return nil, errs.New(errs.NotFound, "collection %s has no free mint slot for %s", collectionID, from)
	}

	slotScript, err := b.HolderScript(from, MarkerSlot)
	if err != nil {
		return nil, err
	}
	lin, err := b.resolveLineage(ctx, slots[0], slotScript)
	if err != nil {
		return nil, err
	}

	holder, err := b.HolderScript(from, MarkerNFT)
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode nft: %w", err)
	}
	tape, err := tx.DataScript([]byte(TapeTag), []byte(opMint),
		[]byte(collectionID), []byte(lin.definingID), []byte(lin.parentID), meta)
	if err != nil {
		return nil, err
	}

	signed, err := b.fund(ctx, from, funded{
		fixedIn: []*utxo.UTXO{lin.input},
		outputs: []output{
			{value: lin.input.Satoshis, script: holder},
			{value: 0, script: tape},
		},
		reserve: TransferBuffer,
	}, key)
	if err != nil {
		return nil, err
	}
	log.Builder.Info().
		Str("from", from).
		Str("collection", collectionID).
		Str("nft", signed.TxID).
		Msg("NFT mint built")
	return signed, nil
}

// TransferNFT moves nftID from from to to. The first transfer out of the
// mint reserves FirstTransferReserve for fees, later ones TransferReserve.
func (b *Builder) TransferNFT(ctx context.Context, from, to, nftID string, key wallet.SigningKey) (*Signed, error) {
	if err := checkKey(key, from); err != nil {
		return nil, err
	}
	u, err := b.chain.NFTUtxo(ctx, nftID)
	if err != nil {
		return nil, fmt.Errorf("nft %s utxo: %w", nftID, err)
	}
	if u == nil {
		return nil, errs.New(errs.NotFound, "nft %s not found", nftID)
	}

	held, err := b.HolderScript(from, MarkerNFT)
	if err != nil {
		return nil, err
	}
	lin, err := b.resolveLineage(ctx, *u, held)
	if err != nil {
		return nil, err
	}
	recipient, err := b.HolderScript(to, MarkerNFT)
	if err != nil {
		return nil, err
	}
	tape, err := tx.DataScript([]byte(TapeTag), []byte(opTransfer),
		[]byte(nftID), []byte(lin.definingID), []byte(lin.parentID))
	if err != nil {
		return nil, err
	}

	reserve := uint64(TransferReserve)
	if u.TxID == nftID {
		reserve = FirstTransferReserve
	}
	signed, err := b.fund(ctx, from, funded{
		fixedIn: []*utxo.UTXO{lin.input},
		outputs: []output{
			{value: lin.input.Satoshis, script: recipient},
			{value: 0, script: tape},
		},
		reserve: reserve,
	}, key)
	if err != nil {
		return nil, err
	}
	log.Builder.Info().
		Str("from", from).
		Str("to", to).
		Str("nft", nftID).
		Uint64("reserve", reserve).
		Msg("NFT transfer built")
	return signed, nil
}
