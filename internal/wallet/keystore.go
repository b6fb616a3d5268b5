package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
)

// keystoreFile is the on-disk JSON format for a wallet.
type keystoreFile struct {
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	Active    string         `json:"active"`
	Accounts  []AccountEntry `json:"accounts"`
}

// AccountEntry is the persisted part of an account. Secret material is only
// present inside EncryptedKeys.
type AccountEntry struct {
	Name           string      `json:"name"`
	Address        string      `json:"address"` // TBC address, the account id
	EncryptedKeys  string      `json:"encrypted_keys"`
	PassKey        string      `json:"pass_key"`
	PassSalt       []byte      `json:"pass_salt"`
	DerivationPath string      `json:"derivation_path,omitempty"`
	AccountType    AccountType `json:"account_type"`
	Addresses      Addresses   `json:"addresses"`
	CreatedAt      time.Time   `json:"created_at"`
}

// SpendAddress returns the address selected by the account type.
func (a AccountEntry) SpendAddress() string {
	return a.Addresses.For(a.AccountType)
}

// Keystore manages wallet files on disk.
type Keystore struct {
	path string
}

// NewKeystore creates a keystore that reads/writes to the given directory.
// The directory is created if it doesn't exist.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

// walletPath returns the file path for a wallet by name.
func (ks *Keystore) walletPath(name string) string {
	return filepath.Join(ks.path, name+".wallet")
}

// Exists reports whether a wallet file exists.
func (ks *Keystore) Exists(name string) bool {
	_, err := os.Stat(ks.walletPath(name))
	return err == nil
}

// Create creates an empty wallet file.
func (ks *Keystore) Create(name string) error {
	path := ks.walletPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("wallet %q already exists", name)
	}
	kf := keystoreFile{
		Version:   1,
		CreatedAt: time.Now().UTC(),
		Accounts:  []AccountEntry{},
	}
	return ks.writeFile(path, &kf)
}

// AddAccount records an account in the wallet. Adding an address that is
// already present replaces nothing and succeeds. The first account becomes
// active.
func (ks *Keystore) AddAccount(walletName string, acct AccountEntry) error {
	path := ks.walletPath(walletName)
	kf, err := ks.readFile(path)
	if err != nil {
		return err
	}
	for _, existing := range kf.Accounts {
		if existing.Address == acct.Address {
			return nil
		}
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}
	kf.Accounts = append(kf.Accounts, acct)
	if kf.Active == "" {
		kf.Active = acct.Address
	}
	return ks.writeFile(path, kf)
}

// UpdateAccount replaces the entry with the same address.
func (ks *Keystore) UpdateAccount(walletName string, acct AccountEntry) error {
	path := ks.walletPath(walletName)
	kf, err := ks.readFile(path)
	if err != nil {
		return err
	}
	for i := range kf.Accounts {
		if kf.Accounts[i].Address == acct.Address {
			kf.Accounts[i] = acct
			return ks.writeFile(path, kf)
		}
	}
	return errs.New(errs.NotFound, "account %s not found", acct.Address)
}

// RemoveAccount deletes an account entry. If it was active, the next
// remaining account becomes active.
func (ks *Keystore) RemoveAccount(walletName, address string) error {
	path := ks.walletPath(walletName)
	kf, err := ks.readFile(path)
	if err != nil {
		return err
	}
	kept := kf.Accounts[:0]
	found := false
	for _, a := range kf.Accounts {
		if a.Address == address {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return errs.New(errs.NotFound, "account %s not found", address)
	}
	kf.Accounts = kept
	if kf.Active == address {
		kf.Active = ""
		if len(kept) > 0 {
			kf.Active = kept[0].Address
		}
	}
	return ks.writeFile(path, kf)
}

// Account returns one account entry.
func (ks *Keystore) Account(walletName, address string) (AccountEntry, error) {
	kf, err := ks.readFile(ks.walletPath(walletName))
	if err != nil {
		return AccountEntry{}, err
	}
	for _, a := range kf.Accounts {
		if a.Address == address {
			return a, nil
		}
	}
	return AccountEntry{}, errs.New(errs.NotFound, "account %s not found", address)
}

// ListAccounts returns the account entries for a wallet.
func (ks *Keystore) ListAccounts(walletName string) ([]AccountEntry, error) {
	kf, err := ks.readFile(ks.walletPath(walletName))
	if err != nil {
		return nil, err
	}
	return kf.Accounts, nil
}

// Active returns the active account address, or "" when the wallet is empty.
func (ks *Keystore) Active(walletName string) (string, error) {
	kf, err := ks.readFile(ks.walletPath(walletName))
	if err != nil {
		return "", err
	}
	return kf.Active, nil
}

// SetActive marks address as the active account.
func (ks *Keystore) SetActive(walletName, address string) error {
	path := ks.walletPath(walletName)
	kf, err := ks.readFile(path)
	if err != nil {
		return err
	}
	for _, a := range kf.Accounts {
		if a.Address == address {
			kf.Active = address
			return ks.writeFile(path, kf)
		}
	}
	return errs.New(errs.NotFound, "account %s not found", address)
}

// List returns the names of all wallet files in the keystore.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext == ".wallet" {
			names = append(names, name[:len(name)-len(ext)])
		}
	}
	return names, nil
}

// Delete removes a wallet file.
func (ks *Keystore) Delete(name string) error {
	path := ks.walletPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("wallet %q not found", name)
	}
	return os.Remove(path)
}

func (ks *Keystore) writeFile(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile(path string) (*keystoreFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if kf.Version != 1 {
		return nil, fmt.Errorf("unsupported wallet version: %d", kf.Version)
	}
	return &kf, nil
}
