package builder

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/indexer"
	"github.com/Klingon-tech/tbcwallet/internal/utxo"
	"github.com/Klingon-tech/tbcwallet/pkg/tx"
)

// fundingTx creates an on-chain looking transaction paying values to from
// and registers it with the chain.
func (f *fixture) fundingTx(t *testing.T, values ...uint64) string {
	t.Helper()
	msg := wire.NewMsgTx(tx.TxVersion)
	msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{0x01}, 0), []byte{0x51}, nil))
	script := p2pkh(t, f.from)
	for _, v := range values {
		msg.AddTxOut(wire.NewTxOut(int64(v), script))
	}
	raw, err := tx.EncodeHex(msg)
	if err != nil {
		t.Fatalf("EncodeHex: %v", err)
	}
	id := msg.TxHash().String()
	f.chain.raw[id] = raw
	return id
}

func (f *fixture) broadcast(t *testing.T, s *Signed) {
	t.Helper()
	if _, err := f.b.Broadcast(context.Background(), s); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
}

func hasPush(t *testing.T, msg *wire.MsgTx, want string) bool {
	t.Helper()
	for _, out := range msg.TxOut {
		if out.Value == 0 && bytes.Contains(out.PkScript, []byte(want)) {
			return true
		}
	}
	return false
}

func TestNFTLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fundID := f.fundingTx(t, 100_000)
	f.remote.utxos = []*utxo.UTXO{{TxID: fundID, OutputIndex: 0, Satoshis: 100_000, Height: 10}}

	// Collection with two mint slots.
	col, err := f.b.CreateCollection(ctx, f.from, CollectionData{Name: "Ships", Supply: 2}, f.key)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	colMsg := decode(t, col)
	slotScript, _ := f.b.HolderScript(f.from, MarkerSlot)
	if len(colMsg.TxOut) != 4 {
		t.Fatalf("collection outputs = %d, want 4", len(colMsg.TxOut))
	}
	if colMsg.TxOut[0].Value != 0 || !hasPush(t, colMsg, `"Ships"`) {
		t.Error("collection tape output missing")
	}
	for i := 1; i <= 2; i++ {
		out := colMsg.TxOut[i]
		if out.Value != MintSlotValue || !bytes.Equal(out.PkScript, slotScript) {
			t.Errorf("slot %d = %d %x", i, out.Value, out.PkScript)
		}
	}
	verifyInput(t, colMsg, 0, p2pkh(t, f.from), 100_000)
	f.broadcast(t, col)

	// Mint from the first slot.
	change := uint64(colMsg.TxOut[3].Value)
	f.remote.utxos = []*utxo.UTXO{{TxID: col.TxID, OutputIndex: 3, Satoshis: change, Height: 11}}
	f.chain.slots = []indexer.UTXO{{TxID: col.TxID, Vout: 1, Value: MintSlotValue, Height: 11}}

	mint, err := f.b.CreateNFT(ctx, f.from, col.TxID, NFTData{Name: "Nina"}, f.key)
	if err != nil {
		t.Fatalf("CreateNFT: %v", err)
	}
	mintMsg := decode(t, mint)
	if got := mintMsg.TxIn[0].PreviousOutPoint; got.Hash.String() != col.TxID || got.Index != 1 {
		t.Errorf("mint input 0 = %v, want slot %s:1", got, col.TxID)
	}
	nftScript, _ := f.b.HolderScript(f.from, MarkerNFT)
	if mintMsg.TxOut[0].Value != MintSlotValue || !bytes.Equal(mintMsg.TxOut[0].PkScript, nftScript) {
		t.Errorf("nft output = %d %x", mintMsg.TxOut[0].Value, mintMsg.TxOut[0].PkScript)
	}
	// Tape proves lineage: slot tx and its parent.
	if !hasPush(t, mintMsg, col.TxID) || !hasPush(t, mintMsg, fundID) {
		t.Error("mint tape does not reference collection lineage")
	}
	verifyInput(t, mintMsg, 1, p2pkh(t, f.from), int64(change))
	f.broadcast(t, mint)

	// First transfer out of the mint.
	mintChange := uint64(mintMsg.TxOut[2].Value)
	f.remote.utxos = []*utxo.UTXO{{TxID: mint.TxID, OutputIndex: 2, Satoshis: mintChange, Height: 12}}
	f.chain.nft = &indexer.UTXO{TxID: mint.TxID, Vout: 0, Value: MintSlotValue, Height: 12}

	xfer, err := f.b.TransferNFT(ctx, f.from, payee, mint.TxID, f.key)
	if err != nil {
		t.Fatalf("TransferNFT: %v", err)
	}
	xferMsg := decode(t, xfer)
	toScript, _ := f.b.HolderScript(payee, MarkerNFT)
	if !bytes.Equal(xferMsg.TxOut[0].PkScript, toScript) || xferMsg.TxOut[0].Value != MintSlotValue {
		t.Errorf("transfer output = %d %x", xferMsg.TxOut[0].Value, xferMsg.TxOut[0].PkScript)
	}
	if !hasPush(t, xferMsg, mint.TxID) || !hasPush(t, xferMsg, col.TxID) {
		t.Error("transfer tape does not reference mint lineage")
	}
	if need := tx.FeeForTx(xferMsg); xfer.Fee < need {
		t.Errorf("Fee %d below required %d", xfer.Fee, need)
	}
}

func TestTransferNFT_Reserve(t *testing.T) {
	tests := []struct {
		name  string
		first bool
		want  uint64
	}{
		{"first transfer", true, 5000},
		{"later transfer", false, 2500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			parentID := f.fundingTx(t, 1)
			// The NFT output lives in a tx spending parentID.
			holder, _ := f.b.HolderScript(f.from, MarkerNFT)
			parentHash, _ := chainhash.NewHashFromStr(parentID)
			msg := wire.NewMsgTx(tx.TxVersion)
			msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(parentHash, 0), []byte{0x51}, nil))
			msg.AddTxOut(wire.NewTxOut(MintSlotValue, holder))
			raw, _ := tx.EncodeHex(msg)
			defID := msg.TxHash().String()
			f.chain.raw[defID] = raw
			f.chain.nft = &indexer.UTXO{TxID: defID, Vout: 0, Value: MintSlotValue}

			nftID := defID
			if !tt.first {
				nftID = strings.Repeat("ab", 32)
			}
			f.remote.utxos = []*utxo.UTXO{fakeUTXO(1, 2500), fakeUTXO(2, 5000)}

			s, err := f.b.TransferNFT(ctx, f.from, f.from, nftID, f.key)
			if err != nil {
				t.Fatalf("TransferNFT: %v", err)
			}
			if len(s.Spent) != 2 {
				t.Fatalf("spent %d inputs, want 2", len(s.Spent))
			}
			if s.Spent[1].Satoshis != tt.want {
				t.Errorf("funding input = %d, want %d", s.Spent[1].Satoshis, tt.want)
			}
		})
	}
}

func TestTransferNFT_LineageChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.utxos = []*utxo.UTXO{fakeUTXO(1, 10_000)}

	// The defining tx pays the NFT to someone else.
	parentID := f.fundingTx(t, 1)
	other, _ := f.b.HolderScript(payee, MarkerNFT)
	parentHash, _ := chainhash.NewHashFromStr(parentID)
	msg := wire.NewMsgTx(tx.TxVersion)
	msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(parentHash, 0), []byte{0x51}, nil))
	msg.AddTxOut(wire.NewTxOut(MintSlotValue, other))
	raw, _ := tx.EncodeHex(msg)
	defID := msg.TxHash().String()
	f.chain.raw[defID] = raw

	f.chain.nft = &indexer.UTXO{TxID: defID, Vout: 0, Value: MintSlotValue}
	if _, err := f.b.TransferNFT(ctx, f.from, payee, defID, f.key); err == nil {
		t.Error("expected error for NFT held by another address")
	}

	f.chain.nft = &indexer.UTXO{TxID: defID, Vout: 3, Value: MintSlotValue}
	if _, err := f.b.TransferNFT(ctx, f.from, payee, defID, f.key); err == nil {
		t.Error("expected error for missing output")
	}

	// The indexer answers with a different tx than asked for.
	f.chain.raw[strings.Repeat("cd", 32)] = raw
	f.chain.nft = &indexer.UTXO{TxID: strings.Repeat("cd", 32), Vout: 0, Value: MintSlotValue}
	if _, err := f.b.TransferNFT(ctx, f.from, payee, defID, f.key); err == nil {
		t.Error("expected error for mismatched tx hash")
	}

	f.chain.nft = nil
	if _, err := f.b.TransferNFT(ctx, f.from, payee, defID, f.key); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("missing NFT: %v, want NotFound", err)
	}
}

func TestCreateNFT_NoSlot(t *testing.T) {
	f := newFixture(t)
	_, err := f.b.CreateNFT(context.Background(), f.from, strings.Repeat("ee", 32), NFTData{Name: "x"}, f.key)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("CreateNFT = %v, want NotFound", err)
	}
}

func TestCreateCollection_RejectsZeroSupply(t *testing.T) {
	f := newFixture(t)
	if _, err := f.b.CreateCollection(context.Background(), f.from, CollectionData{Name: "x"}, f.key); err == nil {
		t.Error("expected error for zero supply")
	}
}
