package utxo

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/tbcwallet/internal/log"
	"github.com/Klingon-tech/tbcwallet/internal/storage"
)

// Key prefixes for the UTXO cache.
var (
	prefixUTXO     = []byte("u/") // u/<address>/<txid><index> -> UTXO JSON
	prefixOutpoint = []byte("o/") // o/<txid><index> -> address
	prefixBalance  = []byte("b/") // b/<address> -> Balance JSON
)

// Store implements Set backed by a storage.DB.
type Store struct {
	db storage.DB
}

// NewStore creates a UTXO cache backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// outpointBytes encodes txid(32) + index(4). Non-hex txids are stored raw.
func outpointBytes(op Outpoint) []byte {
	txid, err := hex.DecodeString(op.TxID)
	if err != nil {
		txid = []byte(op.TxID)
	}
	out := make([]byte, len(txid)+4)
	copy(out, txid)
	binary.BigEndian.PutUint32(out[len(txid):], op.Index)
	return out
}

func addrPrefix(address string) []byte {
	key := make([]byte, 0, len(prefixUTXO)+len(address)+1)
	key = append(key, prefixUTXO...)
	key = append(key, address...)
	return append(key, '/')
}

// utxoKey builds "u/" + address + "/" + txid(32) + index(4).
func utxoKey(address string, op Outpoint) []byte {
	return append(addrPrefix(address), outpointBytes(op)...)
}

// outpointKey builds "o/" + txid(32) + index(4).
func outpointKey(op Outpoint) []byte {
	return append(append([]byte{}, prefixOutpoint...), outpointBytes(op)...)
}

func balanceKey(address string) []byte {
	return append(append([]byte{}, prefixBalance...), address...)
}

// Get retrieves a cached UTXO by its outpoint.
func (s *Store) Get(op Outpoint) (*UTXO, error) {
	addr, err := s.db.Get(outpointKey(op))
	if err != nil {
		return nil, fmt.Errorf("utxo get %s: %w", op, err)
	}
	data, err := s.db.Get(utxoKey(string(addr), op))
	if err != nil {
		return nil, fmt.Errorf("utxo get %s: %w", op, err)
	}
	var u UTXO
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("utxo unmarshal: %w", err)
	}
	return &u, nil
}

// UTXOs returns every cached output of address, spent ones included.
func (s *Store) UTXOs(address string) ([]*UTXO, error) {
	var utxos []*UTXO
	err := s.db.ForEach(addrPrefix(address), func(_, value []byte) error {
		var u UTXO
		if err := json.Unmarshal(value, &u); err != nil {
			return fmt.Errorf("utxo unmarshal: %w", err)
		}
		utxos = append(utxos, &u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan utxos of %s: %w", address, err)
	}
	return utxos, nil
}

// ReplaceUTXOs swaps the cached set of address for a freshly fetched one.
// An output that was marked spent locally stays spent if the indexer still
// reports it, since the spending transaction may not be indexed yet.
func (s *Store) ReplaceUTXOs(address string, utxos []*UTXO) error {
	old, err := s.UTXOs(address)
	if err != nil {
		return err
	}
	spent := make(map[Outpoint]bool)
	for _, u := range old {
		if u.Spent {
			spent[u.Outpoint()] = true
		}
	}

	b := storage.NewBatch(s.db)
	for _, u := range old {
		b.Delete(utxoKey(address, u.Outpoint()))
		b.Delete(outpointKey(u.Outpoint()))
	}
	for _, u := range utxos {
		c := *u
		c.Address = address
		if spent[c.Outpoint()] {
			c.Spent = true
		}
		data, err := json.Marshal(&c)
		if err != nil {
			return fmt.Errorf("utxo marshal: %w", err)
		}
		b.Put(utxoKey(address, c.Outpoint()), data)
		b.Put(outpointKey(c.Outpoint()), []byte(address))
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("replace utxos of %s: %w", address, err)
	}

	log.Cache.Debug().
		Str("address", address).
		Int("old", len(old)).
		Int("new", len(utxos)).
		Msg("UTXO set replaced")
	return nil
}

// MarkSpent flags cached outputs as consumed. Unknown outpoints are ignored.
func (s *Store) MarkSpent(outpoints []Outpoint) error {
	for _, op := range outpoints {
		u, err := s.Get(op)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if u.Spent {
			continue
		}
		u.Spent = true
		data, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("utxo marshal: %w", err)
		}
		if err := s.db.Put(utxoKey(u.Address, op), data); err != nil {
			return fmt.Errorf("utxo put: %w", err)
		}
	}
	return nil
}

// Balance returns the cached balance of address. A missing entry is zero.
func (s *Store) Balance(address string) (Balance, error) {
	data, err := s.db.Get(balanceKey(address))
	if errors.Is(err, storage.ErrNotFound) {
		return Balance{}, nil
	}
	if err != nil {
		return Balance{}, fmt.Errorf("balance get: %w", err)
	}
	var b Balance
	if err := json.Unmarshal(data, &b); err != nil {
		return Balance{}, fmt.Errorf("balance unmarshal: %w", err)
	}
	return b, nil
}

// SetBalance stores the balance of address.
func (s *Store) SetBalance(address string, b Balance) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("balance marshal: %w", err)
	}
	return s.db.Put(balanceKey(address), data)
}

// Clear removes every cached output and the balance of address.
func (s *Store) Clear(address string) error {
	old, err := s.UTXOs(address)
	if err != nil {
		return err
	}
	b := storage.NewBatch(s.db)
	for _, u := range old {
		b.Delete(utxoKey(address, u.Outpoint()))
		b.Delete(outpointKey(u.Outpoint()))
	}
	b.Delete(balanceKey(address))
	return b.Commit()
}
