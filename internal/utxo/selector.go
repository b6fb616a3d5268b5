package utxo

import (
	"context"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/log"
	"github.com/Klingon-tech/tbcwallet/internal/wallet"
)

// AgeThreshold is the number of blocks below the newest cached output a
// confirmed output must sit before it is preferred for spending.
const AgeThreshold = 300

// Selector picks spendable outputs for a target amount.
type Selector struct {
	cache  *Store
	remote Fetcher
	params *chaincfg.Params
}

// NewSelector creates a selector over a cache and a remote fetcher.
func NewSelector(cache *Store, remote Fetcher, params *chaincfg.Params) *Selector {
	return &Selector{cache: cache, remote: remote, params: params}
}

// Select parses a decimal TBC amount and selects outputs covering it.
func (s *Selector) Select(ctx context.Context, address, amountTBC string) ([]*UTXO, error) {
	target, err := ParseTBC(amountTBC)
	if err != nil {
		return nil, err
	}
	return s.SelectSats(ctx, address, target)
}

// SelectSats selects unspent outputs of address whose sum reaches target.
// The cache is refreshed from the indexer when empty or short; a shortfall
// after one refresh is InsufficientBalance. Outputs in exclude are never
// selected.
func (s *Selector) SelectSats(ctx context.Context, address string, target uint64, exclude ...Outpoint) ([]*UTXO, error) {
	if target == 0 {
		return nil, fmt.Errorf("target must be positive")
	}

	candidates, err := s.unspent(address)
	if err != nil {
		return nil, err
	}
	refreshed := false
	if len(candidates) == 0 {
		if candidates, err = s.Refresh(ctx, address); err != nil {
			return nil, err
		}
		refreshed = true
	}
	candidates = without(candidates, exclude)
	if Sum(candidates) < target && !refreshed {
		log.Selector.Debug().Str("address", address).Uint64("target", target).Msg("Cache short, refetching")
		if candidates, err = s.Refresh(ctx, address); err != nil {
			return nil, err
		}
		candidates = without(candidates, exclude)
	}
	if total := Sum(candidates); total < target {
		return nil, errs.New(errs.InsufficientBalance, "insufficient balance: have %d sat, need %d", total, target)
	}

	selected, ok := SelectFrom(candidates, target)
	if !ok {
		return nil, errs.New(errs.InsufficientBalance, "insufficient balance for %d sat", target)
	}

	script, err := wallet.P2PKHScript(address, s.params)
	if err != nil {
		return nil, err
	}
	scriptHex := hex.EncodeToString(script)
	out := make([]*UTXO, len(selected))
	for i, u := range selected {
		c := *u
		c.Script = scriptHex
		c.Address = address
		out[i] = &c
	}

	log.Selector.Debug().
		Str("address", address).
		Uint64("target", target).
		Int("inputs", len(out)).
		Uint64("total", Sum(out)).
		Msg("UTXOs selected")
	return out, nil
}

// Refresh fetches the address's unspent set and replaces the cache with it.
// It returns the unspent candidates after the refresh.
func (s *Selector) Refresh(ctx context.Context, address string) ([]*UTXO, error) {
	fresh, err := s.remote.FetchUTXOs(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("fetch utxos of %s: %w", address, err)
	}
	if err := s.cache.ReplaceUTXOs(address, fresh); err != nil {
		return nil, err
	}
	return s.unspent(address)
}

func without(utxos []*UTXO, exclude []Outpoint) []*UTXO {
	if len(exclude) == 0 {
		return utxos
	}
	out := make([]*UTXO, 0, len(utxos))
	for _, u := range utxos {
		if !slices.Contains(exclude, u.Outpoint()) {
			out = append(out, u)
		}
	}
	return out
}

func (s *Selector) unspent(address string) ([]*UTXO, error) {
	all, err := s.cache.UTXOs(address)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, u := range all {
		if !u.Spent && u.Satoshis > 0 {
			out = append(out, u)
		}
	}
	return out, nil
}

// SelectFrom applies the selection policy to candidates:
//  1. the smallest single output that covers target, alone;
//  2. otherwise aged outputs ascending, then the rest ascending, until
//     target is met.
//
// Aged means confirmed and more than AgeThreshold blocks below the highest
// candidate. Spent outputs are skipped.
func SelectFrom(candidates []*UTXO, target uint64) ([]*UTXO, bool) {
	sorted := make([]*UTXO, 0, len(candidates))
	var maxHeight uint64
	for _, u := range candidates {
		if u.Spent {
			continue
		}
		sorted = append(sorted, u)
		if u.Height > maxHeight {
			maxHeight = u.Height
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Satoshis < sorted[j].Satoshis
	})

	for _, u := range sorted {
		if u.Satoshis >= target {
			return []*UTXO{u}, true
		}
	}

	aged := func(u *UTXO) bool {
		return u.Confirmed() && maxHeight-u.Height > AgeThreshold
	}

	var (
		selected []*UTXO
		total    uint64
	)
	for _, pass := range []bool{true, false} {
		for _, u := range sorted {
			if aged(u) != pass {
				continue
			}
			selected = append(selected, u)
			total += u.Satoshis
			if total >= target {
				return selected, true
			}
		}
	}
	return selected, false
}
