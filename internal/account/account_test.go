package account

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/indexer"
	"github.com/Klingon-tech/tbcwallet/internal/storage"
	"github.com/Klingon-tech/tbcwallet/internal/wallet"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var (
	params   = &chaincfg.MainNetParams
	password = []byte("correct horse")
)

type fakeRemote struct {
	utxos   map[string][]indexer.UTXO
	balance map[string]indexer.Balance
}

func (f *fakeRemote) UTXOs(_ context.Context, address string) ([]indexer.UTXO, error) {
	return f.utxos[address], nil
}

func (f *fakeRemote) Balance(_ context.Context, address string) (*indexer.Balance, error) {
	b := f.balance[address]
	return &b, nil
}

func openContext(t *testing.T, dir string, db storage.DB, remote Remote) *Context {
	t.Helper()
	c, err := Open(Config{KeystoreDir: dir, DB: db, Params: params, Remote: remote})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func testWIF(t *testing.T) string {
	t.Helper()
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x42}, 32))
	wif, err := btcutil.NewWIF(priv, params, true)
	if err != nil {
		t.Fatalf("NewWIF: %v", err)
	}
	return wif.String()
}

func TestContext_CreateAndUnlock(t *testing.T) {
	c := openContext(t, t.TempDir(), storage.NewMemory(), nil)

	if _, err := c.Active(); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("Active on empty wallet = %v, want NotFound", err)
	}

	mnemonic, entry, err := c.CreateWallet(password)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	if n := len(strings.Fields(mnemonic)); n != 12 {
		t.Errorf("mnemonic has %d words, want 12", n)
	}
	if entry.DerivationPath != wallet.DefaultPath {
		t.Errorf("DerivationPath = %q", entry.DerivationPath)
	}
	if strings.Contains(entry.EncryptedKeys, mnemonic) {
		t.Error("mnemonic stored in the clear")
	}

	active, err := c.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if active.Address != entry.Address {
		t.Errorf("active = %s, want %s", active.Address, entry.Address)
	}

	key, err := c.Unlock(password)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	defer key.Zero()
	if key.Address() != entry.Address {
		t.Errorf("signing address = %s, want %s", key.Address(), entry.Address)
	}

	_, err = c.Unlock([]byte("correct horsf"))
	if !errors.Is(err, errs.ErrIntegrity) || !IsLocked(err) {
		t.Errorf("Unlock(wrong) = %v, want IntegrityFailure", err)
	}
}

func TestContext_RestoreIsDeterministic(t *testing.T) {
	a := openContext(t, t.TempDir(), storage.NewMemory(), nil)
	b := openContext(t, t.TempDir(), storage.NewMemory(), nil)

	ea, err := a.RestoreFromMnemonic(testMnemonic, "", password)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	eb, err := b.RestoreFromMnemonic(testMnemonic, "", []byte("other"))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if ea.Address != eb.Address || ea.Addresses != eb.Addresses {
		t.Errorf("addresses differ: %+v vs %+v", ea.Addresses, eb.Addresses)
	}

	// Restoring again keeps a single account.
	if _, err := a.RestoreFromMnemonic(testMnemonic, "", password); err != nil {
		t.Fatalf("second Restore: %v", err)
	}
	accts, _ := a.Accounts()
	if len(accts) != 1 {
		t.Errorf("accounts = %d, want 1", len(accts))
	}

	other, err := a.RestoreFromMnemonic(testMnemonic, wallet.AccountPath(1, 0, 0), password)
	if err != nil {
		t.Fatalf("Restore at path: %v", err)
	}
	if other.Address == ea.Address {
		t.Error("different path derived the same address")
	}

	if _, err := a.RestoreFromMnemonic("abandon abandon", "", password); !errors.Is(err, errs.ErrInvalidMnemonic) {
		t.Errorf("bad mnemonic = %v, want InvalidMnemonic", err)
	}
}

func TestContext_ImportWIF(t *testing.T) {
	c := openContext(t, t.TempDir(), storage.NewMemory(), nil)

	wif := testWIF(t)
	entry, err := c.ImportWIF(wif, password)
	if err != nil {
		t.Fatalf("ImportWIF: %v", err)
	}
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x42}, 32))
	want, _ := wallet.P2PKHAddress(priv.PubKey().SerializeCompressed(), params)
	if entry.Address != want {
		t.Errorf("Address = %s, want %s", entry.Address, want)
	}
	if entry.DerivationPath != "" {
		t.Errorf("imported key has path %q", entry.DerivationPath)
	}

	if _, err := c.ImportWIF("not-a-wif", password); !errors.Is(err, errs.ErrInvalidKey) {
		t.Errorf("bad wif = %v, want InvalidKey", err)
	}
	if _, err := c.ImportWIF(wif, nil); err == nil {
		t.Error("empty password accepted")
	}
}

func TestContext_SetActiveAndPersist(t *testing.T) {
	dir := t.TempDir()
	db := storage.NewMemory()
	c := openContext(t, dir, db, nil)

	first, err := c.RestoreFromMnemonic(testMnemonic, "", password)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	second, err := c.ImportWIF(testWIF(t), password)
	if err != nil {
		t.Fatalf("ImportWIF: %v", err)
	}

	active, _ := c.Active()
	if active.Address != first.Address {
		t.Errorf("first account should stay active, got %s", active.Address)
	}

	if err := c.SetActive(second.Address); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := c.SetActive("1Unknown"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("SetActive(unknown) = %v, want NotFound", err)
	}
	if err := c.SetAccountType(wallet.AccountTaproot); err != nil {
		t.Fatalf("SetAccountType: %v", err)
	}
	if err := c.SetAccountType("P2SH"); err == nil {
		t.Error("unknown account type accepted")
	}

	// A fresh context sees the persisted choice.
	reopened := openContext(t, dir, db, nil)
	active, err = reopened.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if active.Address != second.Address || active.AccountType != wallet.AccountTaproot {
		t.Errorf("reopened active = %s %s", active.Address, active.AccountType)
	}

	key, err := reopened.Unlock(password)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	defer key.Zero()
	if key.Kind() != wallet.SignerTaprootTweaked {
		t.Errorf("Kind = %s, want taproot", key.Kind())
	}
	if key.Address() != active.Addresses.Taproot || active.SpendAddress() != active.Addresses.Taproot {
		t.Errorf("signing address = %s, want %s", key.Address(), active.Addresses.Taproot)
	}
}

func TestContext_ChangePassword(t *testing.T) {
	c := openContext(t, t.TempDir(), storage.NewMemory(), nil)
	if _, err := c.ImportWIF(testWIF(t), password); err != nil {
		t.Fatalf("ImportWIF: %v", err)
	}

	if err := c.ChangePassword([]byte("wrong"), []byte("new")); !errors.Is(err, errs.ErrIntegrity) {
		t.Fatalf("ChangePassword(wrong) = %v, want IntegrityFailure", err)
	}
	if err := c.ChangePassword(password, []byte("new")); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := c.Unlock(password); !errors.Is(err, errs.ErrIntegrity) {
		t.Errorf("old password still unlocks: %v", err)
	}
	key, err := c.Unlock([]byte("new"))
	if err != nil {
		t.Fatalf("Unlock(new): %v", err)
	}
	key.Zero()
}

func TestContext_RefreshBalanceAndRemove(t *testing.T) {
	db := storage.NewMemory()
	remote := &fakeRemote{utxos: make(map[string][]indexer.UTXO), balance: make(map[string]indexer.Balance)}
	c := openContext(t, t.TempDir(), db, remote)

	entry, err := c.ImportWIF(testWIF(t), password)
	if err != nil {
		t.Fatalf("ImportWIF: %v", err)
	}
	other, err := c.RestoreFromMnemonic(testMnemonic, "", password)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	remote.balance[entry.Address] = indexer.Balance{Confirmed: 7000, Unconfirmed: 500}
	remote.utxos[entry.Address] = []indexer.UTXO{
		{TxID: strings.Repeat("aa", 32), Vout: 0, Value: 5000, Height: 10},
		{TxID: strings.Repeat("bb", 32), Vout: 1, Value: 2500},
	}

	bal, err := c.RefreshBalance(context.Background())
	if err != nil {
		t.Fatalf("RefreshBalance: %v", err)
	}
	if bal.Total() != 7500 {
		t.Errorf("balance = %+v", bal)
	}
	if cached, _ := c.Balance(); cached != bal {
		t.Errorf("cached balance = %+v, want %+v", cached, bal)
	}
	utxos, err := c.Cache().UTXOs(entry.Address)
	if err != nil || len(utxos) != 2 {
		t.Fatalf("cached utxos = %d, err %v", len(utxos), err)
	}
	if utxos[0].Address != entry.Address {
		t.Errorf("utxo address = %q", utxos[0].Address)
	}

	if err := c.AccountDB(entry.Address).Put([]byte("ms/x"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.AccountDB(other.Address).Put([]byte("ms/y"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := c.Remove(entry.Address); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if utxos, _ := c.Cache().UTXOs(entry.Address); len(utxos) != 0 {
		t.Errorf("cache not wiped: %d utxos", len(utxos))
	}
	if ok, _ := c.AccountDB(entry.Address).Has([]byte("ms/x")); ok {
		t.Error("account records not wiped")
	}
	if ok, _ := c.AccountDB(other.Address).Has([]byte("ms/y")); !ok {
		t.Error("other account's records wiped")
	}
	active, err := c.Active()
	if err != nil || active.Address != other.Address {
		t.Errorf("active after remove = %v, %v", active, err)
	}
	if err := c.Remove(entry.Address); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("second Remove = %v, want NotFound", err)
	}
}

func TestContext_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	c := openContext(t, dir, storage.NewMemory(), nil)
	if _, err := c.ImportWIF(testWIF(t), password); err != nil {
		t.Fatalf("ImportWIF: %v", err)
	}

	c.Clear()
	if _, err := c.Unlock(password); !errors.Is(err, errs.ErrNoKeyMaterial) {
		t.Errorf("Unlock after Clear = %v, want NoKeyMaterial", err)
	}
	if _, err := c.RefreshBalance(context.Background()); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("RefreshBalance after Clear = %v, want NotFound", err)
	}
	if err := c.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := c.Active(); err != nil {
		t.Errorf("Active after Load: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := c.Load(); err == nil {
		t.Error("Load after Close should fail")
	}
}

func TestContext_RefreshWithoutRemote(t *testing.T) {
	c := openContext(t, t.TempDir(), storage.NewMemory(), nil)
	if _, err := c.ImportWIF(testWIF(t), password); err != nil {
		t.Fatalf("ImportWIF: %v", err)
	}
	if _, err := c.RefreshBalance(context.Background()); !errors.Is(err, errs.ErrRemoteUnavailable) {
		t.Errorf("RefreshBalance = %v, want RemoteUnavailable", err)
	}
}
