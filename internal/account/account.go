// Package account holds the wallet's open state: the keystore, the UTXO
// cache and the active account. One Context is the single writer for the
// accounts it holds.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/indexer"
	"github.com/Klingon-tech/tbcwallet/internal/log"
	"github.com/Klingon-tech/tbcwallet/internal/storage"
	"github.com/Klingon-tech/tbcwallet/internal/utxo"
	"github.com/Klingon-tech/tbcwallet/internal/vault"
	"github.com/Klingon-tech/tbcwallet/internal/wallet"
)

// DefaultWallet is the keystore file used when Config.WalletName is empty.
const DefaultWallet = "default"

// Remote is the indexer subset needed for balances and outputs.
type Remote interface {
	UTXOs(ctx context.Context, address string) ([]indexer.UTXO, error)
	Balance(ctx context.Context, address string) (*indexer.Balance, error)
}

// Config holds what Open needs.
type Config struct {
	KeystoreDir string
	WalletName  string
	DB          storage.DB
	Params      *chaincfg.Params
	Remote      Remote
}

// Context is an opened wallet. Lifecycle: Open, Load, Persist, Clear, Close.
type Context struct {
	ks     *wallet.Keystore
	name   string
	db     storage.DB
	cache  *utxo.Store
	params *chaincfg.Params
	remote Remote

	active *wallet.AccountEntry
	closed bool
}

// Open opens (creating when missing) the keystore wallet and binds the
// cache to cfg.DB. Call Load to read the active account.
func Open(cfg Config) (*Context, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("account: nil database")
	}
	if cfg.Params == nil {
		cfg.Params = &chaincfg.MainNetParams
	}
	if cfg.WalletName == "" {
		cfg.WalletName = DefaultWallet
	}
	ks, err := wallet.NewKeystore(cfg.KeystoreDir)
	if err != nil {
		return nil, err
	}
	if !ks.Exists(cfg.WalletName) {
		if err := ks.Create(cfg.WalletName); err != nil {
			return nil, err
		}
	}
	return &Context{
		ks:     ks,
		name:   cfg.WalletName,
		db:     cfg.DB,
		cache:  utxo.NewStore(cfg.DB),
		params: cfg.Params,
		remote: cfg.Remote,
	}, nil
}

// Load reads the active account from the keystore. An empty wallet loads
// without an active account.
func (c *Context) Load() error {
	if c.closed {
		return fmt.Errorf("account context closed")
	}
	addr, err := c.ks.Active(c.name)
	if err != nil {
		return err
	}
	if addr == "" {
		c.active = nil
		return nil
	}
	entry, err := c.ks.Account(c.name, addr)
	if err != nil {
		return err
	}
	c.active = &entry
	return nil
}

// Persist writes the in-memory active account back to the keystore.
func (c *Context) Persist() error {
	if c.active == nil {
		return nil
	}
	return c.ks.UpdateAccount(c.name, *c.active)
}

// Clear forgets the loaded account. Stored data is untouched.
func (c *Context) Clear() {
	c.active = nil
}

// Close clears the context and closes the database.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.Clear()
	c.closed = true
	return c.db.Close()
}

// Params returns the network parameters.
func (c *Context) Params() *chaincfg.Params { return c.params }

// Cache returns the UTXO cache.
func (c *Context) Cache() *utxo.Store { return c.cache }

// AccountDB returns the namespace holding address's private records.
func (c *Context) AccountDB(address string) *storage.PrefixDB {
	return storage.NewPrefixDB(c.db, []byte("acct/"+address+"/"))
}

// Fetcher returns the remote UTXO source for the selector.
func (c *Context) Fetcher() utxo.Fetcher {
	return NewFetcher(c.remote)
}

// CreateWallet generates a mnemonic, derives the default account and
// stores it sealed under password. The mnemonic is returned once for
// backup.
func (c *Context) CreateWallet(password []byte) (string, wallet.AccountEntry, error) {
	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		return "", wallet.AccountEntry{}, errs.Wrap(errs.KeyDerivationFailure, err, "generate mnemonic")
	}
	entry, err := c.RestoreFromMnemonic(mnemonic, "", password)
	if err != nil {
		return "", wallet.AccountEntry{}, err
	}
	return mnemonic, entry, nil
}

// RestoreFromMnemonic derives the account at path (DefaultPath when empty).
func (c *Context) RestoreFromMnemonic(mnemonic, path string, password []byte) (wallet.AccountEntry, error) {
	keys, err := wallet.KeysFromMnemonic(mnemonic, path, c.params)
	if err != nil {
		return wallet.AccountEntry{}, err
	}
	return c.add(keys, password)
}

// ImportWIF adds an account for a raw private key.
func (c *Context) ImportWIF(wif string, password []byte) (wallet.AccountEntry, error) {
	keys, err := wallet.KeysFromWIF(wif, c.params)
	if err != nil {
		return wallet.AccountEntry{}, err
	}
	return c.add(keys, password)
}

func (c *Context) add(keys *vault.Keys, password []byte) (wallet.AccountEntry, error) {
	if len(password) == 0 {
		return wallet.AccountEntry{}, fmt.Errorf("password required")
	}
	priv, err := wallet.PrivateKeyFromKeys(keys, c.params)
	if err != nil {
		return wallet.AccountEntry{}, err
	}
	addrs, err := wallet.DeriveAddresses(priv, c.params)
	priv.Zero()
	if err != nil {
		return wallet.AccountEntry{}, err
	}

	sealed, err := vault.SealKeys(keys, password)
	if err != nil {
		return wallet.AccountEntry{}, err
	}
	passKey, salt, err := vault.NewPassKey(password)
	if err != nil {
		return wallet.AccountEntry{}, err
	}
	entry := wallet.AccountEntry{
		Name:           addrs.TBC,
		Address:        addrs.TBC,
		EncryptedKeys:  sealed,
		PassKey:        passKey,
		PassSalt:       salt,
		DerivationPath: keys.DerivationPath,
		AccountType:    wallet.AccountTBC,
		Addresses:      addrs,
	}
	if err := c.ks.AddAccount(c.name, entry); err != nil {
		return wallet.AccountEntry{}, err
	}
	if err := c.Load(); err != nil {
		return wallet.AccountEntry{}, err
	}

	log.Vault.Info().Str("address", entry.Address).Bool("mnemonic", keys.Mnemonic != "").Msg("Account added")
	return c.ks.Account(c.name, entry.Address)
}

// Accounts lists every stored account.
func (c *Context) Accounts() ([]wallet.AccountEntry, error) {
	return c.ks.ListAccounts(c.name)
}

// Active returns the loaded account.
func (c *Context) Active() (*wallet.AccountEntry, error) {
	if c.active == nil {
		return nil, errs.New(errs.NotFound, "no active account")
	}
	entry := *c.active
	return &entry, nil
}

// SetActive switches the active account and loads it.
func (c *Context) SetActive(address string) error {
	if err := c.ks.SetActive(c.name, address); err != nil {
		return err
	}
	return c.Load()
}

// SetAccountType selects which address of the active account spends.
func (c *Context) SetAccountType(t wallet.AccountType) error {
	if !t.Valid() {
		return errs.New(errs.InvalidKey, "unknown account type %q", t)
	}
	if c.active == nil {
		return errs.New(errs.NotFound, "no active account")
	}
	c.active.AccountType = t
	return c.Persist()
}

// Unlock checks password against the active account's pass key, then
// decrypts its keys and resolves the signing key for its account type.
// Callers Zero the key when done.
func (c *Context) Unlock(password []byte) (wallet.SigningKey, error) {
	keys, err := c.openKeys(password)
	if err != nil {
		return nil, err
	}
	return wallet.ResolveSigner(c.active.AccountType, keys, c.params)
}

func (c *Context) openKeys(password []byte) (*vault.Keys, error) {
	if c.active == nil {
		return nil, errs.New(errs.NoKeyMaterial, "no active account")
	}
	if !vault.VerifyPassword(password, c.active.PassKey, c.active.PassSalt) {
		return nil, errs.New(errs.IntegrityFailure, "invalid password")
	}
	return vault.OpenKeys(c.active.EncryptedKeys, password)
}

// ChangePassword reseals the active account's keys under a new password.
func (c *Context) ChangePassword(oldPassword, newPassword []byte) error {
	if len(newPassword) == 0 {
		return fmt.Errorf("password required")
	}
	keys, err := c.openKeys(oldPassword)
	if err != nil {
		return err
	}
	sealed, err := vault.SealKeys(keys, newPassword)
	if err != nil {
		return err
	}
	passKey, salt, err := vault.NewPassKey(newPassword)
	if err != nil {
		return err
	}
	c.active.EncryptedKeys = sealed
	c.active.PassKey = passKey
	c.active.PassSalt = salt
	if err := c.Persist(); err != nil {
		return err
	}
	log.Vault.Info().Str("address", c.active.Address).Msg("Password changed")
	return nil
}

// Remove deletes an account and wipes its cached outputs and private
// records. The next remaining account becomes active.
func (c *Context) Remove(address string) error {
	entry, err := c.ks.Account(c.name, address)
	if err != nil {
		return err
	}
	for _, addr := range []string{entry.Addresses.TBC, entry.Addresses.Taproot, entry.Addresses.TaprootLegacy} {
		if addr == "" {
			continue
		}
		if err := c.cache.Clear(addr); err != nil {
			return fmt.Errorf("clear cache of %s: %w", addr, err)
		}
	}
	if err := c.AccountDB(address).DeleteAll(); err != nil {
		return fmt.Errorf("wipe account %s: %w", address, err)
	}
	if err := c.ks.RemoveAccount(c.name, address); err != nil {
		return err
	}
	log.Vault.Info().Str("address", address).Msg("Account removed")
	return c.Load()
}

// RefreshBalance fetches the spend address's balance and outputs and
// stores both in the cache.
func (c *Context) RefreshBalance(ctx context.Context) (utxo.Balance, error) {
	if c.active == nil {
		return utxo.Balance{}, errs.New(errs.NotFound, "no active account")
	}
	if c.remote == nil {
		return utxo.Balance{}, errs.New(errs.RemoteUnavailable, "no indexer configured")
	}
	addr := c.active.SpendAddress()

	b, err := c.remote.Balance(ctx, addr)
	if err != nil {
		return utxo.Balance{}, fmt.Errorf("fetch balance of %s: %w", addr, err)
	}
	bal := utxo.Balance{Confirmed: b.Confirmed, Unconfirmed: b.Unconfirmed}
	if err := c.cache.SetBalance(addr, bal); err != nil {
		return utxo.Balance{}, err
	}

	fresh, err := c.Fetcher().FetchUTXOs(ctx, addr)
	if err != nil {
		return utxo.Balance{}, fmt.Errorf("fetch utxos of %s: %w", addr, err)
	}
	if err := c.cache.ReplaceUTXOs(addr, fresh); err != nil {
		return utxo.Balance{}, err
	}

	log.Cache.Debug().
		Str("address", addr).
		Uint64("confirmed", bal.Confirmed).
		Uint64("unconfirmed", bal.Unconfirmed).
		Int("utxos", len(fresh)).
		Msg("Balance refreshed")
	return bal, nil
}

// Balance returns the cached balance of the spend address.
func (c *Context) Balance() (utxo.Balance, error) {
	if c.active == nil {
		return utxo.Balance{}, errs.New(errs.NotFound, "no active account")
	}
	return c.cache.Balance(c.active.SpendAddress())
}

// NewFetcher adapts the indexer's unspent listing to utxo.Fetcher.
func NewFetcher(r Remote) utxo.Fetcher {
	return utxo.FetchFunc(func(ctx context.Context, address string) ([]*utxo.UTXO, error) {
		if r == nil {
			return nil, errs.New(errs.RemoteUnavailable, "no indexer configured")
		}
		remote, err := r.UTXOs(ctx, address)
		if err != nil {
			return nil, err
		}
		out := make([]*utxo.UTXO, 0, len(remote))
		for _, u := range remote {
			out = append(out, &utxo.UTXO{
				TxID:        u.TxID,
				OutputIndex: u.Vout,
				Satoshis:    u.Value,
				Height:      u.Height,
				Address:     address,
			})
		}
		return out, nil
	})
}

// IsLocked reports whether err came from a wrong password.
func IsLocked(err error) bool {
	return errors.Is(err, errs.ErrIntegrity)
}
