package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/Klingon-tech/tbcwallet/internal/builder"
	"github.com/Klingon-tech/tbcwallet/internal/multisig"
	"github.com/Klingon-tech/tbcwallet/internal/syncer"
	"github.com/Klingon-tech/tbcwallet/internal/utxo"
)

// ── sync ────────────────────────────────────────────────────────────────

func (a *app) cmdSync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	full := fs.Bool("full", false, "Walk every remote listing instead of syncing incrementally")
	fs.Parse(args)

	entry, err := a.active()
	if err != nil {
		return err
	}
	owner := entry.SpendAddress()

	if *full {
		err = a.sync.InitAccount(ctx, owner)
	} else {
		err = a.sync.SyncAll(ctx, owner)
	}
	if err != nil {
		// Kinds that did sync are still worth showing.
		fmt.Printf("Sync finished with errors:\n  %v\n\n", err)
	}

	counts := []struct {
		name  string
		count func(string) (int, error)
	}{
		{"Tokens", a.sync.FT.Store.Count},
		{"NFTs", a.sync.NFTs.Store.Count},
		{"Collections", a.sync.Collections.Store.Count},
		{"Multisig", a.sync.MultiSig.Store.Count},
	}
	fmt.Printf("Account %s\n", owner)
	for _, c := range counts {
		n, cerr := c.count(owner)
		if cerr != nil {
			return cerr
		}
		fmt.Printf("  %-12s %d\n", c.name+":", n)
	}
	for _, kind := range syncer.HistoryKinds {
		n, cerr := a.sync.History[kind].Store.Count(owner)
		if cerr != nil {
			return cerr
		}
		fmt.Printf("  %-12s %d\n", "History "+kind+":", n)
	}
	return err
}

// ── send ────────────────────────────────────────────────────────────────

func (a *app) cmdSend(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Broadcast without asking")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: tbcwallet send [--yes] <address> <amount>")
	}
	to, amount := fs.Arg(0), fs.Arg(1)
	if _, err := utxo.ParseTBC(amount); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	entry, err := a.active()
	if err != nil {
		return err
	}
	key, err := a.unlock()
	if err != nil {
		return err
	}
	defer key.Zero()

	b := a.newBuilder()
	signed, err := b.BuildTransfer(ctx, entry.SpendAddress(), to, amount, key)
	if err != nil {
		return err
	}
	fmt.Printf("Send %s TBC to %s (fee %s TBC)\n", amount, to, utxo.FormatTBC(signed.Fee))
	return a.broadcast(ctx, b, signed, *yes)
}

func (a *app) broadcast(ctx context.Context, b *builder.Builder, signed *builder.Signed, yes bool) error {
	if !yes {
		ok, err := confirm("Broadcast? [y/N] ")
		if err != nil || !ok {
			return err
		}
	}
	txid, err := b.Broadcast(ctx, signed)
	if err != nil {
		return err
	}
	fmt.Printf("Submitted: %s\n", txid)
	return nil
}

// ── nft ─────────────────────────────────────────────────────────────────

func (a *app) cmdNFT(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tbcwallet nft <list|transfer> [arguments]")
	}
	entry, err := a.active()
	if err != nil {
		return err
	}
	owner := entry.SpendAddress()

	switch args[0] {
	case "list":
		nfts, err := a.sync.NFTs.Store.List(owner)
		if err != nil {
			return err
		}
		if len(nfts) == 0 {
			fmt.Println("No NFTs synced. Run `tbcwallet sync` first.")
			return nil
		}
		for _, n := range nfts {
			fmt.Printf("%s  %s #%d (%s)\n", n.ID, n.Name, n.CollectionIndex, n.CollectionID)
		}
		return nil

	case "transfer":
		fs := flag.NewFlagSet("nft transfer", flag.ExitOnError)
		yes := fs.Bool("yes", false, "Broadcast without asking")
		fs.Parse(args[1:])
		if fs.NArg() != 2 {
			return fmt.Errorf("usage: tbcwallet nft transfer [--yes] <nft-id> <address>")
		}
		nftID, to := fs.Arg(0), fs.Arg(1)

		key, err := a.unlock()
		if err != nil {
			return err
		}
		defer key.Zero()

		b := a.newBuilder()
		signed, err := b.TransferNFT(ctx, owner, to, nftID, key)
		if err != nil {
			return err
		}
		fmt.Printf("Transfer NFT %s to %s (fee %s TBC)\n", nftID, to, utxo.FormatTBC(signed.Fee))
		return a.broadcast(ctx, b, signed, *yes)

	default:
		return fmt.Errorf("unknown nft command: %s", args[0])
	}
}

// ── multisig ────────────────────────────────────────────────────────────

func (a *app) cmdMultiSig(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tbcwallet multisig <create|send|sign|finish|pending> [arguments]")
	}
	switch args[0] {
	case "create":
		return a.cmdMultiSigCreate(args[1:])
	case "send":
		return a.cmdMultiSigSend(ctx, args[1:])
	case "sign":
		return a.cmdMultiSigSign(ctx, args[1:])
	case "finish":
		return a.cmdMultiSigFinish(ctx, args[1:])
	case "pending":
		return a.cmdMultiSigPending(ctx)
	default:
		return fmt.Errorf("unknown multisig command: %s", args[0])
	}
}

func (a *app) coordinator() (*multisig.Coordinator, error) {
	entry, err := a.active()
	if err != nil {
		return nil, err
	}
	return multisig.NewCoordinator(a.acct.AccountDB(entry.Address), a.client, a.acct.Params(), a.metrics), nil
}

func (a *app) cmdMultiSigCreate(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: tbcwallet multisig create <m> <pubkey...>")
	}
	m, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid threshold %q", args[0])
	}
	w, err := multisig.NewWallet(args[1:], m, a.acct.Params())
	if err != nil {
		return err
	}
	fmt.Printf("Address:     %s (%d of %d)\n", w.Address, w.Threshold, len(w.PubKeys))
	fmt.Printf("Script:      %s\n", hex.EncodeToString(w.Script))
	fmt.Printf("Script hash: %s\n", w.ScriptHash())
	return nil
}

// multiSigWallet resolves a lock from the synced wallets of the active
// account, or from explicit --pubkeys and --m.
func (a *app) multiSigWallet(address, pubkeys string, m int) (*multisig.Wallet, error) {
	if pubkeys != "" {
		w, err := multisig.NewWallet(splitList(pubkeys), m, a.acct.Params())
		if err != nil {
			return nil, err
		}
		if address != "" && w.Address != address {
			return nil, fmt.Errorf("pubkeys build %s, not %s", w.Address, address)
		}
		return w, nil
	}

	entry, err := a.active()
	if err != nil {
		return nil, err
	}
	rec, found, err := a.sync.MultiSig.Store.Get(entry.SpendAddress(), address)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("multisig %s not synced, run `tbcwallet sync` or pass --pubkeys and --m", address)
	}
	return multisig.NewWallet(rec.PubKeys, rec.Threshold, a.acct.Params())
}

func (a *app) cmdMultiSigSend(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("multisig send", flag.ExitOnError)
	pubkeys := fs.String("pubkeys", "", "Comma-separated lock pubkeys, in script order")
	m := fs.Int("m", 0, "Signature threshold (with --pubkeys)")
	signers := fs.String("signers", "", "Comma-separated pubkeys that will sign (default: you plus the next keys)")
	fs.Parse(args)
	if fs.NArg() != 3 {
		return fmt.Errorf("usage: tbcwallet multisig send [--pubkeys k1,k2,... --m M] [--signers k1,k2] <multisig-address> <address> <amount>")
	}
	w, err := a.multiSigWallet(fs.Arg(0), *pubkeys, *m)
	if err != nil {
		return err
	}

	c, err := a.coordinator()
	if err != nil {
		return err
	}
	key, err := a.unlock()
	if err != nil {
		return err
	}
	defer key.Zero()

	t, err := c.Create(ctx, w, fs.Arg(1), fs.Arg(2), splitList(*signers), key)
	if err != nil {
		return err
	}
	printMultiSigTx(t)
	return nil
}

func (a *app) cmdMultiSigSign(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tbcwallet multisig sign <unsigned-txid>")
	}
	c, err := a.coordinator()
	if err != nil {
		return err
	}
	key, err := a.unlock()
	if err != nil {
		return err
	}
	defer key.Zero()

	t, err := c.CollectSignature(ctx, args[0], key)
	if err != nil {
		return err
	}
	printMultiSigTx(t)
	return nil
}

func (a *app) cmdMultiSigFinish(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tbcwallet multisig finish <unsigned-txid>")
	}
	c, err := a.coordinator()
	if err != nil {
		return err
	}
	t, err := c.Finish(ctx, args[0])
	if err != nil {
		return err
	}
	printMultiSigTx(t)
	return nil
}

func (a *app) cmdMultiSigPending(ctx context.Context) error {
	c, err := a.coordinator()
	if err != nil {
		return err
	}
	key, err := a.unlock()
	if err != nil {
		return err
	}
	pubkey := hex.EncodeToString(key.PubKey().SerializeCompressed())
	key.Zero()

	txs, err := c.Pending(ctx, pubkey)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Println("Nothing pending.")
		return nil
	}
	for _, t := range txs {
		printMultiSigTx(t)
		fmt.Println()
	}
	return nil
}

func printMultiSigTx(t *multisig.Transaction) {
	fmt.Printf("Unsigned txid: %s\n", t.UnsignedTxID)
	fmt.Printf("  Lock:    %s\n", t.MultiSigAddress)
	fmt.Printf("  Amount:  %s TBC\n", utxo.FormatTBC(t.Balance))
	fmt.Printf("  Status:  %s\n", t.Status)
	if t.TxID != "" {
		fmt.Printf("  TxID:    %s\n", t.TxID)
	}
	if missing := t.Missing(); len(missing) > 0 {
		fmt.Printf("  Waiting: %s\n", strings.Join(missing, ", "))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
