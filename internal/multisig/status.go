package multisig

import (
	"fmt"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
)

// Status is the progress of a multisig transaction. Values only ever
// decrease: WaitSigned -> WaitOtherSign -> WaitBroadcast -> Completed.
type Status int

// Transaction statuses. The values are shared with the indexer.
const (
	Completed     Status = 0
	WaitBroadcast Status = 1
	WaitOtherSign Status = 2
	WaitSigned    Status = 3
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case WaitBroadcast:
		return "wait-broadcast"
	case WaitOtherSign:
		return "wait-other-sign"
	case WaitSigned:
		return "wait-signed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s >= Completed && s <= WaitSigned
}

// CanMoveTo reports whether next is reachable from s.
func (s Status) CanMoveTo(next Status) bool {
	return next.Valid() && next <= s
}

// advance moves t to next, refusing backward moves.
func (t *Transaction) advance(next Status) error {
	if !t.Status.CanMoveTo(next) {
		return errs.New(errs.InvalidTransition, "multisig %s: %s -> %s", t.UnsignedTxID, t.Status, next)
	}
	t.Status = next
	return nil
}
