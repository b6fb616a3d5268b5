// Package errs defines the error kinds that cross component boundaries.
//
// Every failure returned by the vault, selector, builder, multi-sig
// coordinator and sync engine carries a Kind so callers can branch on it with
// errors.Is, regardless of how many times it was wrapped with fmt.Errorf.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-checkable failure category.
type Kind int

const (
	Unknown Kind = iota
	KeyDerivationFailure
	IntegrityFailure
	InsufficientBalance
	InvalidMnemonic
	InvalidKey
	NoKeyMaterial
	BroadcastFailure
	SyncDivergence
	MissingSignerQuorum
	InvalidTransition
	RemoteUnavailable
	NotFound
)

var kindNames = map[Kind]string{
	Unknown:              "unknown",
	KeyDerivationFailure: "key derivation failure",
	IntegrityFailure:     "integrity failure",
	InsufficientBalance:  "insufficient balance",
	InvalidMnemonic:      "invalid mnemonic",
	InvalidKey:           "invalid key",
	NoKeyMaterial:        "no key material",
	BroadcastFailure:     "broadcast failure",
	SyncDivergence:       "sync divergence",
	MissingSignerQuorum:  "missing signer quorum",
	InvalidTransition:    "invalid transition",
	RemoteUnavailable:    "remote unavailable",
	NotFound:             "not found",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a categorized failure with a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrKeyDerivation       = &Error{Kind: KeyDerivationFailure}
	ErrIntegrity           = &Error{Kind: IntegrityFailure}
	ErrInsufficientBalance = &Error{Kind: InsufficientBalance}
	ErrInvalidMnemonic     = &Error{Kind: InvalidMnemonic}
	ErrInvalidKey          = &Error{Kind: InvalidKey}
	ErrNoKeyMaterial       = &Error{Kind: NoKeyMaterial}
	ErrBroadcast           = &Error{Kind: BroadcastFailure}
	ErrSyncDivergence      = &Error{Kind: SyncDivergence}
	ErrMissingSignerQuorum = &Error{Kind: MissingSignerQuorum}
	ErrInvalidTransition   = &Error{Kind: InvalidTransition}
	ErrRemoteUnavailable   = &Error{Kind: RemoteUnavailable}
	ErrNotFound            = &Error{Kind: NotFound}
)

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
