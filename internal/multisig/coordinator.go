package multisig

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/indexer"
	"github.com/Klingon-tech/tbcwallet/internal/log"
	"github.com/Klingon-tech/tbcwallet/internal/metrics"
	"github.com/Klingon-tech/tbcwallet/internal/storage"
	"github.com/Klingon-tech/tbcwallet/internal/utxo"
	"github.com/Klingon-tech/tbcwallet/internal/wallet"
	"github.com/Klingon-tech/tbcwallet/pkg/tx"
)

// Amounts in satoshis.
const (
	// FeeBuffer is selected on top of the payment to cover the fee.
	FeeBuffer = 1000

	// DustLimit is the smallest change output returned to the lock.
	DustLimit = 546
)

const recordPrefix = "ms/"

// Exchange is the remote side: the lock's funds, the signature exchange
// and broadcast.
type Exchange interface {
	ScriptUTXOs(ctx context.Context, scriptHash string) ([]indexer.UTXO, error)
	PublishMultiSig(ctx context.Context, m *indexer.MultiSigTx) error
	SubmitSignatures(ctx context.Context, unsignedTxID string, signer indexer.Signer) error
	FetchMultiSig(ctx context.Context, unsignedTxID string) (*indexer.MultiSigTx, error)
	PendingMultiSig(ctx context.Context, pubkey string) ([]indexer.MultiSigTx, error)
	CompleteMultiSig(ctx context.Context, unsignedTxID, txid string) error
	Broadcast(ctx context.Context, rawHex string) (string, error)
}

// Signer is one signer's signatures, one per input, in input order.
type Signer struct {
	PubKey     string   `json:"pubKey"`
	Signatures []string `json:"signatures"`
}

// Transaction is a multisig spend in progress.
type Transaction struct {
	UnsignedTxID    string   `json:"unsignedTxId"`
	TxID            string   `json:"txId,omitempty"`
	Status          Status   `json:"status"`
	RawTx           string   `json:"rawTx"`
	PrevScripts     []string `json:"prevScripts"`
	MultiSigAddress string   `json:"multiSigAddress"`
	FTContractID    string   `json:"ftContractId,omitempty"`
	Balance         uint64   `json:"balance"`
	IsSend          bool     `json:"isSend"`
	Signers         []Signer `json:"signers"`
	RequiredPubKeys []string `json:"requiredPubKeys"`
}

// Signed reports whether pubkey has contributed signatures.
func (t *Transaction) Signed(pubkey string) bool {
	return slices.ContainsFunc(t.Signers, func(s Signer) bool { return s.PubKey == pubkey })
}

// Missing returns the required pubkeys that have not signed yet.
func (t *Transaction) Missing() []string {
	var out []string
	for _, pk := range t.RequiredPubKeys {
		if !t.Signed(pk) {
			out = append(out, pk)
		}
	}
	return out
}

func (t *Transaction) addSigner(s Signer) {
	for i := range t.Signers {
		if t.Signers[i].PubKey == s.PubKey {
			t.Signers[i] = s
			return
		}
	}
	t.Signers = append(t.Signers, s)
}

// statusFor is the status t has from the point of view of pubkey.
func (t *Transaction) statusFor(pubkey string) Status {
	switch {
	case t.TxID != "":
		return Completed
	case len(t.Missing()) == 0:
		return WaitBroadcast
	case slices.Contains(t.RequiredPubKeys, pubkey) && !t.Signed(pubkey):
		return WaitSigned
	default:
		return WaitOtherSign
	}
}

// Coordinator drives multisig transactions for local signers and keeps
// their records in a store.
type Coordinator struct {
	db      storage.DB
	ex      Exchange
	params  *chaincfg.Params
	metrics *metrics.Metrics
}

// NewCoordinator creates a coordinator. m may be nil.
func NewCoordinator(db storage.DB, ex Exchange, params *chaincfg.Params, m *metrics.Metrics) *Coordinator {
	return &Coordinator{db: db, ex: ex, params: params, metrics: m}
}

// Get returns the local record of unsignedTxID.
func (c *Coordinator) Get(unsignedTxID string) (*Transaction, error) {
	data, err := c.db.Get([]byte(recordPrefix + unsignedTxID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errs.New(errs.NotFound, "multisig %s not found", unsignedTxID)
	}
	if err != nil {
		return nil, fmt.Errorf("multisig get: %w", err)
	}
	var t Transaction
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("multisig decode: %w", err)
	}
	return &t, nil
}

func (c *Coordinator) save(t *Transaction) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("multisig encode: %w", err)
	}
	if err := c.db.Put([]byte(recordPrefix+t.UnsignedTxID), data); err != nil {
		return fmt.Errorf("multisig put: %w", err)
	}
	return nil
}

func signerPubKey(key wallet.SigningKey) (string, error) {
	if key == nil || key.PrivKey() == nil {
		return "", errs.New(errs.NoKeyMaterial, "no signing key")
	}
	return hex.EncodeToString(key.PubKey().SerializeCompressed()), nil
}

// Create spends amountTBC from w to the P2PKH address to. required lists
// the pubkeys that will sign; when empty the initiator plus the next keys
// in script order up to the threshold are used. The initiator signs every
// input and publishes the transaction.
func (c *Coordinator) Create(ctx context.Context, w *Wallet, to, amountTBC string, required []string, key wallet.SigningKey) (*Transaction, error) {
	me, err := signerPubKey(key)
	if err != nil {
		return nil, err
	}
	if !w.Has(me) {
		return nil, errs.New(errs.InvalidKey, "key %s is not part of %s", me, w.Address)
	}
	required, err = requiredSigners(w, me, required)
	if err != nil {
		return nil, err
	}
	amount, err := utxo.ParseTBC(amountTBC)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	payTo, err := wallet.P2PKHScript(to, c.params)
	if err != nil {
		return nil, err
	}

	remote, err := c.ex.ScriptUTXOs(ctx, w.ScriptHash())
	if err != nil {
		return nil, fmt.Errorf("multisig utxos: %w", err)
	}
	scriptHex := hex.EncodeToString(w.Script)
	candidates := make([]*utxo.UTXO, len(remote))
	for i, r := range remote {
		candidates[i] = &utxo.UTXO{TxID: r.TxID, OutputIndex: r.Vout, Satoshis: r.Value, Height: r.Height, Script: scriptHex}
	}

	// Bare multisig unlock: OP_0 then m pushes of at most 73 bytes.
	sigScriptSize := 1 + w.Threshold*(1+73)
	target := amount + FeeBuffer
	var (
		txb *tx.Builder
		fee uint64
	)
	for attempt := 0; ; attempt++ {
		selected, ok := utxo.SelectFrom(candidates, target)
		if !ok {
			return nil, errs.New(errs.InsufficientBalance, "multisig %s: insufficient balance for %d sat", w.Address, target)
		}
		txb = tx.NewBuilder()
		for _, u := range selected {
			if err := txb.AddInput(u.TxID, u.OutputIndex, w.Script, u.Satoshis); err != nil {
				return nil, err
			}
		}
		txb.AddOutput(amount, payTo)
		txb.AddOutput(0, w.Script)
		fee = tx.Fee(txb.EstimateSignedSize(sigScriptSize))
		if txb.InputValue() >= amount+fee {
			break
		}
		if attempt >= 2 || amount+fee <= target {
			return nil, errs.New(errs.InsufficientBalance, "multisig %s: insufficient balance for %d sat", w.Address, amount+fee)
		}
		target = amount + fee
	}
	change := txb.InputValue() - amount - fee
	if change < DustLimit {
		txb.RemoveOutput(txb.NumOutputs() - 1)
	} else {
		txb.SetOutputValue(txb.NumOutputs()-1, change)
	}

	rawHex, err := txb.Hex()
	if err != nil {
		return nil, err
	}
	msg := txb.Build()
	prevScripts := make([]string, len(msg.TxIn))
	for i := range prevScripts {
		prevScripts[i] = scriptHex
	}
	t := &Transaction{
		UnsignedTxID:    msg.TxHash().String(),
		Status:          WaitSigned,
		RawTx:           rawHex,
		PrevScripts:     prevScripts,
		MultiSigAddress: w.Address,
		Balance:         amount,
		IsSend:          true,
		RequiredPubKeys: required,
	}

	sigs, err := signAll(t, key)
	if err != nil {
		return nil, err
	}
	t.addSigner(Signer{PubKey: me, Signatures: sigs})
	if err := t.advance(t.statusFor(me)); err != nil {
		return nil, err
	}

	if err := c.ex.PublishMultiSig(ctx, toWire(t)); err != nil {
		return nil, fmt.Errorf("publish multisig: %w", err)
	}
	if err := c.save(t); err != nil {
		return nil, err
	}

	log.MultiSig.Info().
		Str("unsigned", t.UnsignedTxID).
		Str("wallet", w.Address).
		Uint64("amount", amount).
		Int("inputs", len(msg.TxIn)).
		Stringer("status", t.Status).
		Msg("Multisig transaction created")
	return t, nil
}

func requiredSigners(w *Wallet, me string, required []string) ([]string, error) {
	if len(required) == 0 {
		required = []string{me}
		for _, pk := range w.PubKeys {
			if len(required) == w.Threshold {
				break
			}
			if pk != me {
				required = append(required, pk)
			}
		}
		return required, nil
	}
	if len(required) != w.Threshold {
		return nil, fmt.Errorf("need exactly %d signers, got %d", w.Threshold, len(required))
	}
	if !slices.Contains(required, me) {
		return nil, errs.New(errs.InvalidKey, "initiator must be a signer")
	}
	for i, pk := range required {
		if !w.Has(pk) {
			return nil, errs.New(errs.InvalidKey, "signer %s is not part of %s", pk, w.Address)
		}
		if slices.Index(required, pk) != i {
			return nil, errs.New(errs.InvalidKey, "duplicate signer %s", pk)
		}
	}
	return slices.Clone(required), nil
}

// signAll signs every input of t's raw transaction with key.
func signAll(t *Transaction, key wallet.SigningKey) ([]string, error) {
	txb, err := t.builder()
	if err != nil {
		return nil, err
	}
	sigs := make([]string, len(t.PrevScripts))
	for i := range sigs {
		sig, err := txb.RawSignature(i, key.PrivKey())
		if err != nil {
			return nil, err
		}
		sigs[i] = hex.EncodeToString(sig)
	}
	return sigs, nil
}

func (t *Transaction) builder() (*tx.Builder, error) {
	msg, err := tx.DecodeHex(t.RawTx)
	if err != nil {
		return nil, err
	}
	scripts := make([][]byte, len(t.PrevScripts))
	for i, s := range t.PrevScripts {
		if scripts[i], err = hex.DecodeString(s); err != nil {
			return nil, fmt.Errorf("prev script %d: %w", i, err)
		}
	}
	return tx.FromTx(msg, scripts)
}

// refresh merges the exchange's view of unsignedTxID into the local record.
// A record only known remotely is adopted.
func (c *Coordinator) refresh(ctx context.Context, unsignedTxID, viewer string) (*Transaction, error) {
	remote, err := c.ex.FetchMultiSig(ctx, unsignedTxID)
	if err != nil && !indexer.IsNotFound(err) {
		return nil, fmt.Errorf("fetch multisig: %w", err)
	}
	if remote != nil && remote.UnsignedTxID == "" {
		remote = nil
	}
	local, lerr := c.Get(unsignedTxID)
	if lerr != nil && !errors.Is(lerr, errs.ErrNotFound) {
		return nil, lerr
	}

	switch {
	case local == nil && remote == nil:
		return nil, errs.New(errs.NotFound, "multisig %s not found", unsignedTxID)
	case local == nil:
		local = fromWire(remote)
		local.Status = WaitSigned
	case remote != nil:
		for _, s := range remote.Signers {
			if !local.Signed(s.PubKey) {
				local.addSigner(Signer{PubKey: s.PubKey, Signatures: s.Signatures})
			}
		}
		if local.TxID == "" {
			local.TxID = remote.TxID
		}
	}

	if next := local.statusFor(viewer); next < local.Status {
		if err := local.advance(next); err != nil {
			return nil, err
		}
	}
	return local, nil
}

// CollectSignature signs unsignedTxID with key and submits the signatures.
func (c *Coordinator) CollectSignature(ctx context.Context, unsignedTxID string, key wallet.SigningKey) (*Transaction, error) {
	me, err := signerPubKey(key)
	if err != nil {
		return nil, err
	}
	t, err := c.refresh(ctx, unsignedTxID, me)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(t.RequiredPubKeys, me) {
		return nil, errs.New(errs.InvalidKey, "key %s is not a required signer of %s", me, unsignedTxID)
	}
	if t.Signed(me) {
		return t, c.save(t)
	}
	if err := c.checkSpend(t, unsignedTxID, me); err != nil {
		return nil, err
	}

	sigs, err := signAll(t, key)
	if err != nil {
		return nil, err
	}
	signer := Signer{PubKey: me, Signatures: sigs}
	if err := c.ex.SubmitSignatures(ctx, unsignedTxID, indexer.Signer{PubKey: me, Signatures: sigs}); err != nil {
		return nil, fmt.Errorf("submit signatures: %w", err)
	}
	t.addSigner(signer)
	if err := t.advance(t.statusFor(me)); err != nil {
		return nil, err
	}
	if err := c.save(t); err != nil {
		return nil, err
	}

	log.MultiSig.Info().
		Str("unsigned", unsignedTxID).
		Int("missing", len(t.Missing())).
		Stringer("status", t.Status).
		Msg("Multisig signature added")
	return t, nil
}

// checkSpend verifies that t's raw transaction hashes to unsignedTxID and
// that every input spends the canonical lock at t.MultiSigAddress. With me
// set, the lock must also hold me. Records come from the exchange, so
// nothing is signed or broadcast before this passes.
func (c *Coordinator) checkSpend(t *Transaction, unsignedTxID, me string) error {
	msg, err := tx.DecodeHex(t.RawTx)
	if err != nil {
		return errs.Wrap(errs.IntegrityFailure, err, "multisig %s: raw tx", unsignedTxID)
	}
	if got := msg.TxHash().String(); got != unsignedTxID || got != t.UnsignedTxID {
		return errs.New(errs.IntegrityFailure, "multisig %s: raw tx hashes to %s", unsignedTxID, got)
	}
	if len(msg.TxIn) == 0 || len(t.PrevScripts) != len(msg.TxIn) {
		return errs.New(errs.IntegrityFailure, "multisig %s: %d prev scripts for %d inputs",
			unsignedTxID, len(t.PrevScripts), len(msg.TxIn))
	}

	var lock *Wallet
	for i, s := range t.PrevScripts {
		script, err := hex.DecodeString(s)
		if err != nil {
			return errs.Wrap(errs.IntegrityFailure, err, "multisig %s: prev script %d", unsignedTxID, i)
		}
		if lock != nil {
			if !bytes.Equal(script, lock.Script) {
				return errs.New(errs.IntegrityFailure, "multisig %s: input %d does not spend %s", unsignedTxID, i, lock.Address)
			}
			continue
		}

		pubkeys, m, err := scriptPubKeys(script, c.params)
		if err != nil {
			return errs.Wrap(errs.IntegrityFailure, err, "multisig %s: input %d", unsignedTxID, i)
		}
		lock, err = NewWallet(pubkeys, m, c.params)
		if err != nil {
			return errs.Wrap(errs.IntegrityFailure, err, "multisig %s: input %d", unsignedTxID, i)
		}
		if !bytes.Equal(script, lock.Script) || lock.Address != t.MultiSigAddress {
			return errs.New(errs.IntegrityFailure, "multisig %s: input %d does not spend %s", unsignedTxID, i, t.MultiSigAddress)
		}
	}

	if me != "" && !lock.Has(me) {
		return errs.New(errs.InvalidKey, "key %s is not part of %s", me, lock.Address)
	}
	for _, pk := range t.RequiredPubKeys {
		if !lock.Has(pk) {
			return errs.New(errs.IntegrityFailure, "multisig %s: signer %s is not part of %s", unsignedTxID, pk, lock.Address)
		}
	}
	return nil
}

// Finish assembles the unlocking scripts once every required signer has
// signed and broadcasts. A short quorum or failed broadcast leaves the
// status unchanged.
func (c *Coordinator) Finish(ctx context.Context, unsignedTxID string) (*Transaction, error) {
	t, err := c.refresh(ctx, unsignedTxID, "")
	if err != nil {
		return nil, err
	}
	if t.Status == Completed {
		return t, nil
	}
	if missing := t.Missing(); len(missing) > 0 {
		if err := c.save(t); err != nil {
			return nil, err
		}
		return nil, errs.New(errs.MissingSignerQuorum, "multisig %s: %d of %d signers missing",
			unsignedTxID, len(missing), len(t.RequiredPubKeys))
	}
	if err := c.checkSpend(t, unsignedTxID, ""); err != nil {
		return nil, err
	}
	if err := t.advance(WaitBroadcast); err != nil {
		return nil, err
	}
	if err := c.save(t); err != nil {
		return nil, err
	}

	rawHex, err := c.assemble(t)
	if err != nil {
		return nil, err
	}

	txid, err := c.ex.Broadcast(ctx, rawHex)
	switch {
	case err != nil:
		c.metrics.Broadcast("multisig", "error")
		return nil, errs.Wrap(errs.BroadcastFailure, err, "broadcast multisig %s", unsignedTxID)
	case txid == "":
		c.metrics.Broadcast("multisig", "empty")
		return nil, errs.New(errs.BroadcastFailure, "broadcast multisig %s: empty response", unsignedTxID)
	}
	c.metrics.Broadcast("multisig", "ok")

	t.TxID = txid
	if err := t.advance(Completed); err != nil {
		return nil, err
	}
	if err := c.save(t); err != nil {
		return nil, err
	}
	if err := c.ex.CompleteMultiSig(ctx, unsignedTxID, txid); err != nil {
		log.MultiSig.Warn().Err(err).Str("unsigned", unsignedTxID).Msg("Exchange not told of completion")
	}

	log.MultiSig.Info().Str("unsigned", unsignedTxID).Str("txid", txid).Msg("Multisig transaction broadcast")
	return t, nil
}

// assemble writes OP_0 <sig...> into every input, signatures ordered by
// the lock script's pubkey order.
func (c *Coordinator) assemble(t *Transaction) (string, error) {
	txb, err := t.builder()
	if err != nil {
		return "", err
	}
	msg := txb.Build()
	for i := range msg.TxIn {
		script, err := hex.DecodeString(t.PrevScripts[i])
		if err != nil {
			return "", fmt.Errorf("prev script %d: %w", i, err)
		}
		order, m, err := scriptPubKeys(script, c.params)
		if err != nil {
			return "", err
		}

		sb := txscript.NewScriptBuilder().AddOp(txscript.OP_0)
		n := 0
		for _, pk := range order {
			if n == m {
				break
			}
			if !slices.Contains(t.RequiredPubKeys, pk) {
				continue
			}
			idx := slices.IndexFunc(t.Signers, func(s Signer) bool { return s.PubKey == pk })
			if idx < 0 || i >= len(t.Signers[idx].Signatures) {
				return "", errs.New(errs.MissingSignerQuorum, "input %d: no signature from %s", i, pk)
			}
			sig, err := hex.DecodeString(t.Signers[idx].Signatures[i])
			if err != nil {
				return "", fmt.Errorf("signature of %s: %w", pk, err)
			}
			sb.AddData(sig)
			n++
		}
		if n < m {
			return "", errs.New(errs.MissingSignerQuorum, "input %d: %d of %d signatures", i, n, m)
		}
		sigScript, err := sb.Script()
		if err != nil {
			return "", fmt.Errorf("input %d unlock script: %w", i, err)
		}
		txb.SetSignatureScript(i, sigScript)
	}
	return txb.Hex()
}

// Pending lists the transactions waiting on pubkey or on its co-signers,
// refreshed from the exchange and stored locally.
func (c *Coordinator) Pending(ctx context.Context, pubkey string) ([]*Transaction, error) {
	remote, err := c.ex.PendingMultiSig(ctx, pubkey)
	if err != nil {
		return nil, fmt.Errorf("pending multisig: %w", err)
	}
	out := make([]*Transaction, 0, len(remote))
	for i := range remote {
		r := &remote[i]
		t, err := c.Get(r.UnsignedTxID)
		if errors.Is(err, errs.ErrNotFound) {
			t = fromWire(r)
			t.Status = WaitSigned
		} else if err != nil {
			return nil, err
		}
		for _, s := range r.Signers {
			if !t.Signed(s.PubKey) {
				t.addSigner(Signer{PubKey: s.PubKey, Signatures: s.Signatures})
			}
		}
		if next := t.statusFor(pubkey); next < t.Status {
			t.Status = next
		}
		if t.Status == Completed {
			continue
		}
		if err := c.save(t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func toWire(t *Transaction) *indexer.MultiSigTx {
	w := &indexer.MultiSigTx{
		UnsignedTxID:    t.UnsignedTxID,
		TxID:            t.TxID,
		Status:          int(t.Status),
		RawTx:           t.RawTx,
		PrevScripts:     t.PrevScripts,
		MultiSigAddress: t.MultiSigAddress,
		FTContractID:    t.FTContractID,
		Balance:         t.Balance,
		IsSend:          t.IsSend,
		RequiredPubKeys: t.RequiredPubKeys,
	}
	for _, s := range t.Signers {
		w.Signers = append(w.Signers, indexer.Signer{PubKey: s.PubKey, Signatures: s.Signatures})
	}
	return w
}

func fromWire(w *indexer.MultiSigTx) *Transaction {
	t := &Transaction{
		UnsignedTxID:    w.UnsignedTxID,
		TxID:            w.TxID,
		Status:          Status(w.Status),
		RawTx:           w.RawTx,
		PrevScripts:     w.PrevScripts,
		MultiSigAddress: w.MultiSigAddress,
		FTContractID:    w.FTContractID,
		Balance:         w.Balance,
		IsSend:          w.IsSend,
		RequiredPubKeys: w.RequiredPubKeys,
	}
	for _, s := range w.Signers {
		t.Signers = append(t.Signers, Signer{PubKey: s.PubKey, Signatures: s.Signatures})
	}
	return t
}
