// Package tx builds, signs and serializes TBC transactions.
package tx

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Transaction constants.
const (
	TxVersion = 10

	// P2PKHSigScriptSize is the largest P2PKH unlocking script:
	// push(73-byte DER signature with hash type) + push(33-byte pubkey).
	P2PKHSigScriptSize = 1 + 73 + 1 + 33

	// SigHashType is the hash type used for every wallet signature.
	SigHashType = txscript.SigHashAll
)

// Builder constructs transactions incrementally.
type Builder struct {
	tx          *wire.MsgTx
	prevScripts [][]byte
	prevValues  []uint64
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{tx: wire.NewMsgTx(TxVersion)}
}

// FromTx wraps an existing transaction so its inputs can be signed.
// prevScripts must hold the locking script of each input's previous output.
func FromTx(msg *wire.MsgTx, prevScripts [][]byte) (*Builder, error) {
	if len(prevScripts) != len(msg.TxIn) {
		return nil, fmt.Errorf("have %d previous scripts for %d inputs", len(prevScripts), len(msg.TxIn))
	}
	return &Builder{
		tx:          msg,
		prevScripts: prevScripts,
		prevValues:  make([]uint64, len(prevScripts)),
	}, nil
}

// AddInput adds an input spending txid:index, locked by prevScript.
func (b *Builder) AddInput(txid string, index uint32, prevScript []byte, value uint64) error {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return fmt.Errorf("input txid %q: %w", txid, err)
	}
	b.tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, index), nil, nil))
	b.prevScripts = append(b.prevScripts, prevScript)
	b.prevValues = append(b.prevValues, value)
	return nil
}

// AddOutput adds an output with a value and locking script.
func (b *Builder) AddOutput(value uint64, script []byte) *Builder {
	b.tx.AddTxOut(wire.NewTxOut(int64(value), script))
	return b
}

// AddDataOutput adds a zero-value OP_FALSE OP_RETURN output carrying pushes.
func (b *Builder) AddDataOutput(pushes ...[]byte) error {
	script, err := DataScript(pushes...)
	if err != nil {
		return err
	}
	b.AddOutput(0, script)
	return nil
}

// DataScript builds an OP_FALSE OP_RETURN script with the given pushes.
func DataScript(pushes ...[]byte) ([]byte, error) {
	sb := txscript.NewScriptBuilder().AddOp(txscript.OP_FALSE).AddOp(txscript.OP_RETURN)
	for _, p := range pushes {
		sb.AddFullData(p)
	}
	script, err := sb.Script()
	if err != nil {
		return nil, fmt.Errorf("data script: %w", err)
	}
	return script, nil
}

// InputValue returns the sum of the previous output values.
func (b *Builder) InputValue() uint64 {
	var total uint64
	for _, v := range b.prevValues {
		total += v
	}
	return total
}

// OutputValue returns the sum of the output values.
func (b *Builder) OutputValue() uint64 {
	var total uint64
	for _, out := range b.tx.TxOut {
		total += uint64(out.Value)
	}
	return total
}

// SetOutputValue changes the value of output i.
func (b *Builder) SetOutputValue(i int, value uint64) {
	b.tx.TxOut[i].Value = int64(value)
}

// RemoveOutput drops output i.
func (b *Builder) RemoveOutput(i int) {
	b.tx.TxOut = append(b.tx.TxOut[:i], b.tx.TxOut[i+1:]...)
}

// NumOutputs returns the number of outputs.
func (b *Builder) NumOutputs() int {
	return len(b.tx.TxOut)
}

// EstimateSignedSize returns the serialized size once every unsigned input
// carries an unlocking script of sigScriptSize bytes.
func (b *Builder) EstimateSignedSize(sigScriptSize int) int {
	size := b.tx.SerializeSizeStripped()
	for _, in := range b.tx.TxIn {
		if len(in.SignatureScript) > 0 {
			continue
		}
		size += wire.VarIntSerializeSize(uint64(sigScriptSize)) + sigScriptSize - 1
	}
	return size
}

// SignP2PKH signs every input with key, assuming P2PKH previous outputs.
func (b *Builder) SignP2PKH(key *btcec.PrivateKey) error {
	for i := range b.tx.TxIn {
		sigScript, err := txscript.SignatureScript(b.tx, i, b.prevScripts[i], SigHashType, key, true)
		if err != nil {
			return fmt.Errorf("sign input %d: %w", i, err)
		}
		b.tx.TxIn[i].SignatureScript = sigScript
	}
	return nil
}

// RawSignature returns key's DER signature (with hash type byte) over input i.
func (b *Builder) RawSignature(i int, key *btcec.PrivateKey) ([]byte, error) {
	if i < 0 || i >= len(b.tx.TxIn) {
		return nil, fmt.Errorf("input %d out of range", i)
	}
	sig, err := txscript.RawTxInSignature(b.tx, i, b.prevScripts[i], SigHashType, key)
	if err != nil {
		return nil, fmt.Errorf("sign input %d: %w", i, err)
	}
	return sig, nil
}

// SetSignatureScript sets the unlocking script of input i.
func (b *Builder) SetSignatureScript(i int, script []byte) {
	b.tx.TxIn[i].SignatureScript = script
}

// Build returns the constructed transaction.
func (b *Builder) Build() *wire.MsgTx {
	return b.tx
}

// Hex serializes the transaction.
func (b *Builder) Hex() (string, error) {
	return EncodeHex(b.tx)
}

// EncodeHex serializes msg without witness data.
func EncodeHex(msg *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	buf.Grow(msg.SerializeSizeStripped())
	if err := msg.SerializeNoWitness(&buf); err != nil {
		return "", fmt.Errorf("serialize tx: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// DecodeHex parses a hex-encoded transaction.
func DecodeHex(rawHex string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("decode tx hex: %w", err)
	}
	msg := wire.NewMsgTx(TxVersion)
	if err := msg.DeserializeNoWitness(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("deserialize tx: %w", err)
	}
	return msg, nil
}
