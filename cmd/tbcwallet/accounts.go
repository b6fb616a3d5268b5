package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/tbcwallet/internal/log"
	"github.com/Klingon-tech/tbcwallet/internal/utxo"
	"github.com/Klingon-tech/tbcwallet/internal/wallet"
)

// ── create / restore / import ───────────────────────────────────────────

func (a *app) cmdCreate() error {
	password, err := newPassword()
	if err != nil {
		return err
	}
	defer zero(password)

	mnemonic, entry, err := a.acct.CreateWallet(password)
	if err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)
	printAccount(entry, true)
	return nil
}

func (a *app) cmdRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	account := fs.Uint("account", 0, "BIP-44 account number")
	index := fs.Uint("index", 0, "Address index within the account")
	path := fs.String("path", "", "Full BIP-32 derivation path (overrides --account and --index)")
	fs.Parse(args)
	if *path == "" {
		*path = wallet.AccountPath(uint32(*account), wallet.ChangeExternal, uint32(*index))
	}

	mnemonic, err := readLine("Enter mnemonic: ")
	if err != nil {
		return fmt.Errorf("read mnemonic: %w", err)
	}
	mnemonic = wallet.NormalizeMnemonic(mnemonic)
	if !wallet.ValidateMnemonic(mnemonic) {
		return fmt.Errorf("invalid mnemonic")
	}

	password, err := newPassword()
	if err != nil {
		return err
	}
	defer zero(password)

	entry, err := a.acct.RestoreFromMnemonic(mnemonic, *path, password)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	fmt.Println("Account restored.")
	printAccount(entry, true)
	return nil
}

func (a *app) cmdImport() error {
	wif, err := readPassword("Enter WIF private key: ")
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	defer zero(wif)

	password, err := newPassword()
	if err != nil {
		return err
	}
	defer zero(password)

	entry, err := a.acct.ImportWIF(strings.TrimSpace(string(wif)), password)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Println("Key imported.")
	printAccount(entry, true)
	return nil
}

// ── accounts ────────────────────────────────────────────────────────────

func (a *app) cmdAccounts(args []string) error {
	if len(args) == 0 {
		return a.cmdAccountsList()
	}

	switch args[0] {
	case "use":
		if len(args) != 2 {
			return fmt.Errorf("usage: tbcwallet accounts use <address>")
		}
		if err := a.acct.SetActive(args[1]); err != nil {
			return err
		}
		fmt.Printf("Active account: %s\n", args[1])
		return nil
	case "type":
		if len(args) != 2 {
			return fmt.Errorf("usage: tbcwallet accounts type <TBC|TAPROOT|TAPROOT_LEGACY>")
		}
		t, err := wallet.ParseAccountType(strings.ToUpper(args[1]))
		if err != nil {
			return err
		}
		if err := a.acct.SetAccountType(t); err != nil {
			return err
		}
		entry, err := a.active()
		if err != nil {
			return err
		}
		fmt.Printf("Spending from %s (%s)\n", entry.SpendAddress(), t)
		return nil
	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: tbcwallet accounts remove <address>")
		}
		return a.removeAccount(args[1])
	default:
		return fmt.Errorf("unknown accounts command: %s", args[0])
	}
}

func (a *app) cmdAccountsList() error {
	entries, err := a.acct.Accounts()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No accounts.")
		return nil
	}
	current := ""
	if entry, err := a.acct.Active(); err == nil {
		current = entry.Address
	}
	for _, e := range entries {
		printAccount(e, e.Address == current)
	}
	return nil
}

func (a *app) removeAccount(address string) error {
	entries, err := a.acct.Accounts()
	if err != nil {
		return err
	}
	var target *wallet.AccountEntry
	for i := range entries {
		if entries[i].Address == address {
			target = &entries[i]
		}
	}
	if target == nil {
		return fmt.Errorf("account %s not found", address)
	}

	ok, err := confirm(fmt.Sprintf("Remove %s and its local data? [y/N] ", address))
	if err != nil || !ok {
		return err
	}

	// Synced records are keyed by every address the account owns.
	for _, addr := range []string{target.Addresses.TBC, target.Addresses.Taproot, target.Addresses.TaprootLegacy} {
		if addr == "" {
			continue
		}
		if err := a.sync.Purge(addr); err != nil {
			return fmt.Errorf("purge synced data: %w", err)
		}
	}
	if err := a.acct.Remove(address); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", address)
	return nil
}

func (a *app) cmdPasswd() error {
	if _, err := a.active(); err != nil {
		return err
	}
	old, err := readPassword("Current password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	defer zero(old)
	next, err := newPassword()
	if err != nil {
		return err
	}
	defer zero(next)

	if err := a.acct.ChangePassword(old, next); err != nil {
		return err
	}
	fmt.Println("Password changed.")
	return nil
}

// ── balance ─────────────────────────────────────────────────────────────

func (a *app) cmdBalance(ctx context.Context) error {
	entry, err := a.active()
	if err != nil {
		return err
	}
	bal, err := a.acct.RefreshBalance(ctx)
	if err != nil {
		// Offline: fall back to the last cached value.
		cached, cerr := a.acct.Balance()
		if cerr != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Warning: indexer unreachable, showing cached balance (%v)\n", err)
		bal = cached
	}

	fmt.Printf("Address:     %s\n", entry.SpendAddress())
	fmt.Printf("Confirmed:   %s TBC\n", utxo.FormatTBC(bal.Confirmed))
	fmt.Printf("Unconfirmed: %s TBC\n", utxo.FormatTBC(bal.Unconfirmed))
	fmt.Printf("Total:       %s TBC\n", utxo.FormatTBC(bal.Total()))
	if rate, err := a.client.ExchangeRate(ctx); err == nil && rate > 0 {
		fmt.Printf("Value:       $%.2f (at $%.4f/TBC)\n", fiatValue(bal.Total(), rate), rate)
	} else if err != nil {
		log.Debug().Err(err).Msg("Exchange rate unavailable")
	}
	return nil
}

// fiatValue converts satoshis to a fiat amount at rate per TBC.
func fiatValue(sats uint64, rate float64) float64 {
	return float64(sats) / utxo.SatoshiPerTBC * rate
}

func printAccount(e wallet.AccountEntry, active bool) {
	mark := " "
	if active {
		mark = "*"
	}
	fmt.Printf("%s %s  [%s]\n", mark, e.Address, e.AccountType)
	if e.DerivationPath != "" {
		fmt.Printf("    Path:           %s\n", e.DerivationPath)
	}
	fmt.Printf("    Taproot:        %s\n", e.Addresses.Taproot)
	fmt.Printf("    Taproot legacy: %s\n", e.Addresses.TaprootLegacy)
}
