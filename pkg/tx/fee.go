package tx

import "github.com/btcsuite/btcd/wire"

// Fee schedule: every started kilobyte costs FeePerKB, except that a
// trailing partial kilobyte costs PartialKBFee.
const (
	FeeUnit      = 1000
	FeePerKB     = 100
	PartialKBFee = 80
)

// Fee returns the fee for a serialized transaction of size bytes.
func Fee(size int) uint64 {
	if size <= 0 {
		return 0
	}
	fee := uint64(size/FeeUnit) * FeePerKB
	if size%FeeUnit > 0 {
		fee += PartialKBFee
	}
	return fee
}

// FeeForTx returns the fee for a transaction at its current size.
func FeeForTx(msg *wire.MsgTx) uint64 {
	return Fee(msg.SerializeSizeStripped())
}

// FeeForHex returns the fee for a hex-encoded transaction.
func FeeForHex(rawHex string) (uint64, error) {
	msg, err := DecodeHex(rawHex)
	if err != nil {
		return 0, err
	}
	return FeeForTx(msg), nil
}
