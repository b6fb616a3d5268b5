// tbcwallet is a command-line wallet for TBC: keys, transfers, multisig
// spends and a local mirror of the account's tokens, NFTs and history.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/tbcwallet/config"
	"github.com/Klingon-tech/tbcwallet/internal/account"
	"github.com/Klingon-tech/tbcwallet/internal/builder"
	"github.com/Klingon-tech/tbcwallet/internal/indexer"
	"github.com/Klingon-tech/tbcwallet/internal/log"
	"github.com/Klingon-tech/tbcwallet/internal/metrics"
	"github.com/Klingon-tech/tbcwallet/internal/storage"
	"github.com/Klingon-tech/tbcwallet/internal/syncer"
	"github.com/Klingon-tech/tbcwallet/internal/utxo"
	"github.com/Klingon-tech/tbcwallet/internal/wallet"
)

const version = "0.3.0"

// app is everything a command needs, opened once per invocation.
type app struct {
	cfg     *config.Config
	client  *indexer.Client
	metrics *metrics.Metrics
	acct    *account.Context
	sync    *syncer.Service
}

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		config.PrintUsage(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		config.PrintUsage(os.Stderr)
		os.Exit(1)
	}
	if flags.Version {
		fmt.Printf("tbcwallet %s\n", version)
		return
	}
	if len(flags.Args) == 0 {
		config.PrintUsage(os.Stderr)
		os.Exit(1)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(cfg)
	if err != nil {
		fatal("%v", err)
	}

	cmd := flags.Args[0]
	cmdArgs := flags.Args[1:]
	runErr := a.dispatch(ctx, cmd, cmdArgs)

	if err := a.close(); err != nil {
		log.Warn().Err(err).Msg("Close failed")
	}
	if runErr != nil {
		fatal("%v", runErr)
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "create":
		return a.cmdCreate()
	case "restore":
		return a.cmdRestore(args)
	case "import":
		return a.cmdImport()
	case "accounts":
		return a.cmdAccounts(args)
	case "passwd":
		return a.cmdPasswd()
	case "balance":
		return a.cmdBalance(ctx)
	case "sync":
		return a.cmdSync(ctx, args)
	case "send":
		return a.cmdSend(ctx, args)
	case "multisig":
		return a.cmdMultiSig(ctx, args)
	case "nft":
		return a.cmdNFT(ctx, args)
	case "help":
		config.PrintUsage(os.Stdout)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		config.PrintUsage(os.Stderr)
		os.Exit(1)
	}
	return nil
}

func openApp(cfg *config.Config) (*app, error) {
	params, err := wallet.NetParams(string(cfg.Network))
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.Storage.Engine, cfg.DBDir())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	m := metrics.New()
	client := indexer.New(indexer.Config{
		BaseURL: cfg.Indexer.URL,
		Timeout: cfg.Indexer.Timeout,
		RPS:     cfg.Indexer.RPS,
		Burst:   cfg.Indexer.Burst,
		Retries: cfg.Indexer.Retries,
		Metrics: m,
	})

	acct, err := account.Open(account.Config{
		KeystoreDir: cfg.KeystoreDir(),
		DB:          db,
		Params:      params,
		Remote:      client,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := acct.Load(); err != nil {
		acct.Close()
		return nil, fmt.Errorf("load account: %w", err)
	}

	log.Info().
		Str("network", string(cfg.Network)).
		Str("storage", cfg.Storage.Engine).
		Str("indexer", cfg.Indexer.URL).
		Msg("Wallet opened")

	return &app{
		cfg:     cfg,
		client:  client,
		metrics: m,
		acct:    acct,
		sync: syncer.NewService(db, client, syncer.Options{
			PageSize: cfg.Sync.PageSize,
			MaxPages: cfg.Sync.MaxPages,
			Metrics:  m,
		}),
	}, nil
}

func (a *app) close() error {
	var errList []error
	if a.cfg.Metrics.File != "" {
		if err := a.metrics.WriteFile(a.cfg.Metrics.File); err != nil {
			errList = append(errList, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := a.acct.Close(); err != nil {
		errList = append(errList, err)
	}
	return errors.Join(errList...)
}

// active returns the active account or a usage hint when there is none.
func (a *app) active() (*wallet.AccountEntry, error) {
	entry, err := a.acct.Active()
	if err != nil {
		return nil, fmt.Errorf("no active account, run `tbcwallet create` or `tbcwallet restore` first")
	}
	return entry, nil
}

// unlock prompts for the password and opens the active account's key.
func (a *app) unlock() (wallet.SigningKey, error) {
	if _, err := a.active(); err != nil {
		return nil, err
	}
	password, err := readPassword("Enter password: ")
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	key, err := a.acct.Unlock(password)
	zero(password)
	if account.IsLocked(err) {
		return nil, fmt.Errorf("wrong password")
	}
	return key, err
}

func (a *app) newBuilder() *builder.Builder {
	params := a.acct.Params()
	selector := utxo.NewSelector(a.acct.Cache(), a.acct.Fetcher(), params)
	return builder.New(selector, a.acct.Cache(), a.client, params, a.metrics)
}
