package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/vault"
)

// SignerKind identifies how a signing key was derived from the account key.
type SignerKind int

// Signer kinds.
const (
	SignerPlain SignerKind = iota
	SignerTaprootTweaked
	SignerTaprootLegacyTweaked
)

func (k SignerKind) String() string {
	switch k {
	case SignerTaprootTweaked:
		return "taproot"
	case SignerTaprootLegacyTweaked:
		return "taproot-legacy"
	default:
		return "plain"
	}
}

// SigningKey is the key used to sign one operation. Obtain it with
// ResolveSigner and call Zero when done.
type SigningKey interface {
	Kind() SignerKind
	PrivKey() *btcec.PrivateKey
	PubKey() *btcec.PublicKey
	// Address is the P2PKH address the key spends from.
	Address() string
	Zero()
}

type signingKey struct {
	kind    SignerKind
	priv    *btcec.PrivateKey
	address string
}

func (s *signingKey) Kind() SignerKind           { return s.kind }
func (s *signingKey) PrivKey() *btcec.PrivateKey { return s.priv }
func (s *signingKey) PubKey() *btcec.PublicKey   { return s.priv.PubKey() }
func (s *signingKey) Address() string            { return s.address }

func (s *signingKey) Zero() {
	if s.priv != nil {
		s.priv.Zero()
	}
}

// ResolveSigner picks the signing variant for an account type and derives
// the matching key from keys.
func ResolveSigner(t AccountType, keys *vault.Keys, params *chaincfg.Params) (SigningKey, error) {
	base, err := PrivateKeyFromKeys(keys, params)
	if err != nil {
		return nil, err
	}

	var (
		kind SignerKind
		priv *btcec.PrivateKey
	)
	switch t {
	case AccountTBC, "":
		kind, priv = SignerPlain, base
	case AccountTaproot:
		kind, priv = SignerTaprootTweaked, TaprootTweak(base)
		base.Zero()
	case AccountTaprootLegacy:
		kind, priv = SignerTaprootLegacyTweaked, TaprootLegacyTweak(base)
		base.Zero()
	default:
		base.Zero()
		return nil, errs.New(errs.InvalidKey, "unknown account type %q", t)
	}

	addr, err := P2PKHAddress(priv.PubKey().SerializeCompressed(), params)
	if err != nil {
		return nil, err
	}
	return &signingKey{kind: kind, priv: priv, address: addr}, nil
}

// NewPlainSigner wraps a raw private key as a plain signing key.
func NewPlainSigner(priv *btcec.PrivateKey, params *chaincfg.Params) (SigningKey, error) {
	addr, err := P2PKHAddress(priv.PubKey().SerializeCompressed(), params)
	if err != nil {
		return nil, err
	}
	return &signingKey{kind: SignerPlain, priv: priv, address: addr}, nil
}
