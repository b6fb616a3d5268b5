package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/tbcwallet/internal/indexer"
	"github.com/Klingon-tech/tbcwallet/internal/ledger"
	"github.com/Klingon-tech/tbcwallet/internal/log"
	"github.com/Klingon-tech/tbcwallet/internal/metrics"
	"github.com/Klingon-tech/tbcwallet/internal/storage"
)

// Remote is the subset of the indexer API the sync engine reads.
type Remote interface {
	FTHoldings(ctx context.Context, address string, page, size int) (*indexer.Page[indexer.FTHolding], error)
	NFTs(ctx context.Context, address string, page, size int) (*indexer.Page[indexer.NFT], error)
	Collections(ctx context.Context, address string, page, size int) (*indexer.Page[indexer.Collection], error)
	MultiSigWallets(ctx context.Context, address string, page, size int) (*indexer.Page[indexer.MultiSigWallet], error)
	History(ctx context.Context, kind, address string, page, size int) (*indexer.Page[indexer.HistoryRecord], error)
}

// Options tunes every reconciler of a Service.
type Options struct {
	PageSize int
	MaxPages int
	Metrics  *metrics.Metrics
}

// Service runs one reconciler per entity kind against a shared store.
type Service struct {
	remote Remote

	FT          *Reconciler[ledger.FTHolding]
	FTMeta      *ledger.Store[ledger.FTMetadata]
	NFTs        *Reconciler[ledger.NFT]
	Collections *Reconciler[ledger.Collection]
	MultiSig    *Reconciler[ledger.MultiSigWallet]
	History     map[string]*Reconciler[ledger.HistoryRecord]
}

// HistoryKinds lists the history feeds in sync order.
var HistoryKinds = []string{indexer.HistoryTBC, indexer.HistoryFT, indexer.HistoryNFT}

var historyStoreKinds = map[string]string{
	indexer.HistoryTBC: ledger.KindHistoryTBC,
	indexer.HistoryFT:  ledger.KindHistoryFT,
	indexer.HistoryNFT: ledger.KindHistoryNFT,
}

// NewService wires reconcilers for every entity kind over db.
func NewService(db storage.DB, remote Remote, opts Options) *Service {
	s := &Service{
		remote:  remote,
		FTMeta:  ledger.NewGlobalStore[ledger.FTMetadata](db, ledger.KindFTMetadata),
		History: make(map[string]*Reconciler[ledger.HistoryRecord]),
	}

	s.FT = &Reconciler[ledger.FTHolding]{
		Name:     ledger.KindFTHolding,
		Store:    ledger.NewStore[ledger.FTHolding](db, ledger.KindFTHolding),
		Fetch:    s.fetchFT,
		Fresh:    ledger.FTHolding.Fresh,
		PageSize: opts.PageSize,
		MaxPages: opts.MaxPages,
		Metrics:  opts.Metrics,
	}
	s.NFTs = &Reconciler[ledger.NFT]{
		Name:     ledger.KindNFT,
		Store:    ledger.NewGlobalStore[ledger.NFT](db, ledger.KindNFT),
		Fetch:    s.fetchNFTs,
		Fresh:    ledger.NFT.Fresh,
		PageSize: opts.PageSize,
		MaxPages: opts.MaxPages,
		Metrics:  opts.Metrics,
	}
	// Collections and multisig wallets never change once listed, so equal
	// counts mean nothing new.
	s.Collections = &Reconciler[ledger.Collection]{
		Name:  ledger.KindCollection,
		Store: ledger.NewGlobalStore[ledger.Collection](db, ledger.KindCollection),
		Fetch: s.fetchCollections,
		Count: func(ctx context.Context, owner string) (int, error) {
			p, err := s.remote.Collections(ctx, owner, 0, 0)
			return total(p, err)
		},
		Fresh:    ledger.Collection.Fresh,
		PageSize: opts.PageSize,
		MaxPages: opts.MaxPages,
		Metrics:  opts.Metrics,
	}
	s.MultiSig = &Reconciler[ledger.MultiSigWallet]{
		Name:  ledger.KindMultiSigWallet,
		Store: ledger.NewStore[ledger.MultiSigWallet](db, ledger.KindMultiSigWallet),
		Fetch: s.fetchMultiSig,
		Count: func(ctx context.Context, owner string) (int, error) {
			p, err := s.remote.MultiSigWallets(ctx, owner, 0, 0)
			return total(p, err)
		},
		Fresh:    ledger.MultiSigWallet.Fresh,
		PageSize: opts.PageSize,
		MaxPages: opts.MaxPages,
		Metrics:  opts.Metrics,
	}
	for _, kind := range HistoryKinds {
		s.History[kind] = &Reconciler[ledger.HistoryRecord]{
			Name:     historyStoreKinds[kind],
			Store:    ledger.NewStore[ledger.HistoryRecord](db, historyStoreKinds[kind]),
			Fetch:    s.fetchHistory(kind),
			Count:    s.countHistory(kind),
			Fresh:    ledger.HistoryRecord.Fresh,
			PageSize: opts.PageSize,
			MaxPages: opts.MaxPages,
			Metrics:  opts.Metrics,
		}
	}
	return s
}

func total[T any](p *indexer.Page[T], err error) (int, error) {
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, nil
	}
	return p.TotalCount, nil
}

func records[T any](p *indexer.Page[T]) ([]T, int) {
	if p == nil {
		return nil, 0
	}
	return p.Records, p.TotalCount
}

func (s *Service) fetchFT(ctx context.Context, owner string, page, size int) ([]ledger.FTHolding, int, error) {
	p, err := s.remote.FTHoldings(ctx, owner, page, size)
	if err != nil {
		return nil, 0, err
	}
	remote, n := records(p)
	out := make([]ledger.FTHolding, 0, len(remote))
	for _, r := range remote {
		out = append(out, ledger.FTHolding{
			Meta:      ledger.Meta{ID: r.ContractID, State: ledger.Active},
			Name:      r.Name,
			Symbol:    r.Symbol,
			Decimals:  r.Decimals,
			Balance:   r.Balance,
			UpdatedAt: r.UpdatedAt,
		})
		meta := ledger.FTMetadata{
			Meta:     ledger.Meta{ID: r.ContractID, State: ledger.Active},
			Name:     r.Name,
			Symbol:   r.Symbol,
			Decimals: r.Decimals,
		}
		if _, err := s.FTMeta.Put(owner, meta); err != nil {
			log.Sync.Warn().Err(err).Str("contract", r.ContractID).Msg("Token metadata not stored")
		}
	}
	return out, n, nil
}

func (s *Service) fetchNFTs(ctx context.Context, owner string, page, size int) ([]ledger.NFT, int, error) {
	p, err := s.remote.NFTs(ctx, owner, page, size)
	if err != nil {
		return nil, 0, err
	}
	remote, n := records(p)
	out := make([]ledger.NFT, 0, len(remote))
	for _, r := range remote {
		out = append(out, ledger.NFT{
			Meta:            ledger.Meta{ID: r.ContractID, State: ledger.Active},
			CollectionID:    r.CollectionID,
			CollectionIndex: r.CollectionIndex,
			Name:            r.Name,
			Symbol:          r.Symbol,
			Description:     r.Description,
			Icon:            r.Icon,
			Holder:          r.Holder,
			TransferCount:   r.TransferCount,
			CreatedAt:       r.CreatedAt,
		})
	}
	return out, n, nil
}

func (s *Service) fetchCollections(ctx context.Context, owner string, page, size int) ([]ledger.Collection, int, error) {
	p, err := s.remote.Collections(ctx, owner, page, size)
	if err != nil {
		return nil, 0, err
	}
	remote, n := records(p)
	out := make([]ledger.Collection, 0, len(remote))
	for _, r := range remote {
		out = append(out, ledger.Collection{
			Meta:        ledger.Meta{ID: r.ID, State: ledger.Active},
			Name:        r.Name,
			Creator:     r.Creator,
			Description: r.Description,
			Icon:        r.Icon,
			Supply:      r.Supply,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, n, nil
}

func (s *Service) fetchMultiSig(ctx context.Context, owner string, page, size int) ([]ledger.MultiSigWallet, int, error) {
	p, err := s.remote.MultiSigWallets(ctx, owner, page, size)
	if err != nil {
		return nil, 0, err
	}
	remote, n := records(p)
	out := make([]ledger.MultiSigWallet, 0, len(remote))
	for _, r := range remote {
		out = append(out, ledger.MultiSigWallet{
			Meta:      ledger.Meta{ID: r.Address, State: ledger.Active},
			PubKeys:   r.PubKeys,
			Threshold: r.Threshold,
		})
	}
	return out, n, nil
}

func (s *Service) fetchHistory(kind string) FetchPage[ledger.HistoryRecord] {
	return func(ctx context.Context, owner string, page, size int) ([]ledger.HistoryRecord, int, error) {
		p, err := s.remote.History(ctx, kind, owner, page, size)
		if err != nil {
			return nil, 0, err
		}
		remote, n := records(p)
		out := make([]ledger.HistoryRecord, 0, len(remote))
		for _, r := range remote {
			out = append(out, ledger.HistoryRecord{
				Meta:          ledger.Meta{ID: ledger.HistoryID(r.TxID, r.ContractID), State: ledger.Active},
				TxID:          r.TxID,
				ContractID:    r.ContractID,
				From:          r.From,
				To:            r.To,
				Amount:        r.Amount,
				Fee:           r.Fee,
				Timestamp:     r.Timestamp,
				Confirmations: r.Confirmations,
			})
		}
		return out, n, nil
	}
}

func (s *Service) countHistory(kind string) CountProbe {
	return func(ctx context.Context, owner string) (int, error) {
		p, err := s.remote.History(ctx, kind, owner, 0, 0)
		return total(p, err)
	}
}

// SyncFT incrementally syncs the fungible token holdings of owner.
func (s *Service) SyncFT(ctx context.Context, owner string) (Result, error) {
	return s.FT.Sync(ctx, owner)
}

// ReconcileFT fully resyncs token holdings, dropping tokens no longer held.
func (s *Service) ReconcileFT(ctx context.Context, owner string) (Result, error) {
	return s.FT.Reconcile(ctx, owner)
}

// SyncNFTs incrementally syncs the NFTs held by owner.
func (s *Service) SyncNFTs(ctx context.Context, owner string) (Result, error) {
	return s.NFTs.Sync(ctx, owner)
}

// ReconcileNFTs fully resyncs NFTs, dropping those transferred away.
func (s *Service) ReconcileNFTs(ctx context.Context, owner string) (Result, error) {
	return s.NFTs.Reconcile(ctx, owner)
}

// SyncCollections incrementally syncs the collections created by owner.
func (s *Service) SyncCollections(ctx context.Context, owner string) (Result, error) {
	return s.Collections.Sync(ctx, owner)
}

// SyncMultiSigWallets incrementally syncs the multisig wallets of owner.
func (s *Service) SyncMultiSigWallets(ctx context.Context, owner string) (Result, error) {
	return s.MultiSig.Sync(ctx, owner)
}

// SyncHistory incrementally syncs one history feed of owner.
func (s *Service) SyncHistory(ctx context.Context, kind, owner string) (Result, error) {
	r, ok := s.History[kind]
	if !ok {
		return Result{}, fmt.Errorf("unknown history kind %q", kind)
	}
	return r.Sync(ctx, owner)
}

// InitAccount walks every remote listing of owner. Run once when an
// account is first activated.
func (s *Service) InitAccount(ctx context.Context, owner string) error {
	var errList []error
	collect := func(name string, _ Result, err error) {
		if err != nil {
			errList = append(errList, fmt.Errorf("init %s: %w", name, err))
		}
	}

	res, err := s.FT.Reconcile(ctx, owner)
	collect(s.FT.Name, res, err)
	res, err = s.NFTs.Reconcile(ctx, owner)
	collect(s.NFTs.Name, res, err)
	res, err = s.Collections.InitAll(ctx, owner)
	collect(s.Collections.Name, res, err)
	res, err = s.MultiSig.InitAll(ctx, owner)
	collect(s.MultiSig.Name, res, err)
	for _, kind := range HistoryKinds {
		r := s.History[kind]
		res, err = r.InitAll(ctx, owner)
		collect(r.Name, res, err)
	}
	return errors.Join(errList...)
}

// SyncAll runs an incremental sync of every entity kind. A failing kind
// does not stop the others; all failures are returned joined.
func (s *Service) SyncAll(ctx context.Context, owner string) error {
	defer log.Benchmark("sync all")()
	var errList []error
	run := func(name string, fn func(context.Context, string) (Result, error)) {
		if ctx.Err() != nil {
			return
		}
		if _, err := fn(ctx, owner); err != nil {
			errList = append(errList, fmt.Errorf("sync %s: %w", name, err))
		}
	}

	run(s.FT.Name, s.FT.Sync)
	run(s.NFTs.Name, s.NFTs.Sync)
	run(s.Collections.Name, s.Collections.Sync)
	run(s.MultiSig.Name, s.MultiSig.Sync)
	for _, kind := range HistoryKinds {
		r := s.History[kind]
		run(r.Name, r.Sync)
	}
	if err := ctx.Err(); err != nil {
		errList = append(errList, err)
	}
	return errors.Join(errList...)
}

// Purge drops everything synced for owner. Shared NFT, collection and
// token metadata records are kept for other accounts.
func (s *Service) Purge(owner string) error {
	errList := []error{
		s.FT.Store.Purge(owner),
		s.FTMeta.Purge(owner),
		s.NFTs.Store.Purge(owner),
		s.Collections.Store.Purge(owner),
		s.MultiSig.Store.Purge(owner),
	}
	for _, kind := range HistoryKinds {
		errList = append(errList, s.History[kind].Store.Purge(owner))
	}
	return errors.Join(errList...)
}
