package ledger

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/storage"
)

// Store persists records of one kind. Per-account kinds are keyed by owner
// and id; global kinds are keyed by id alone, with an owner membership
// index so they can still be listed and counted per account.
//
// Key layout:
//
//	<kind>/<owner8>/<id16>    per-account record JSON
//	<kind>/g/<id16>           global record JSON
//	<kind>/m/<owner8>/<id16>  global membership -> owner's record state
//
// where owner8 and id16 are hex prefixes of the BLAKE3 hash.
type Store[T Entity[T]] struct {
	db     storage.DB
	kind   string
	global bool
}

// NewStore creates a per-account store for kind.
func NewStore[T Entity[T]](db storage.DB, kind string) *Store[T] {
	return &Store[T]{db: db, kind: kind}
}

// NewGlobalStore creates a store whose records are shared across accounts.
func NewGlobalStore[T Entity[T]](db storage.DB, kind string) *Store[T] {
	return &Store[T]{db: db, kind: kind, global: true}
}

// Kind returns the store's kind.
func (s *Store[T]) Kind() string { return s.kind }

func ownerHash(owner string) string {
	h := blake3.Sum256([]byte(owner))
	return hex.EncodeToString(h[:8])
}

func idHash(id string) string {
	h := blake3.Sum256([]byte(id))
	return hex.EncodeToString(h[:16])
}

func (s *Store[T]) recordKey(owner, id string) []byte {
	if s.global {
		return []byte(s.kind + "/g/" + idHash(id))
	}
	return []byte(s.kind + "/" + ownerHash(owner) + "/" + idHash(id))
}

func (s *Store[T]) memberPrefix(owner string) []byte {
	return []byte(s.kind + "/m/" + ownerHash(owner) + "/")
}

func (s *Store[T]) memberKey(owner, id string) []byte {
	return append(s.memberPrefix(owner), idHash(id)...)
}

func (s *Store[T]) ownerPrefix(owner string) []byte {
	return []byte(s.kind + "/" + ownerHash(owner) + "/")
}

// Get returns the record with id. found is false when it does not exist.
// For global kinds a record is only found through an owner holding
// membership, and it carries that owner's state.
func (s *Store[T]) Get(owner, id string) (rec T, found bool, err error) {
	state := Active
	if s.global {
		v, err := s.db.Get(s.memberKey(owner, id))
		if errors.Is(err, storage.ErrNotFound) {
			return rec, false, nil
		}
		if err != nil {
			return rec, false, fmt.Errorf("%s membership %s: %w", s.kind, id, err)
		}
		state = memberState(v)
	}

	data, err := s.db.Get(s.recordKey(owner, id))
	if errors.Is(err, storage.ErrNotFound) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("%s get %s: %w", s.kind, id, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false, fmt.Errorf("%s decode %s: %w", s.kind, id, err)
	}
	if s.global {
		rec = rec.WithState(state)
	}
	return rec, true, nil
}

func memberState(v []byte) State {
	if len(v) == 0 {
		return Active
	}
	return State(v)
}

// Put stores rec for owner. It writes nothing and returns false when the
// encoded record and membership are already stored unchanged. A global
// record is stored without state; the state lives on the membership, so
// one owner deleting a shared record leaves it active for the others.
func (s *Store[T]) Put(owner string, rec T) (bool, error) {
	id := rec.EntityID()
	if id == "" {
		return false, fmt.Errorf("%s record without id", s.kind)
	}
	state := rec.EntityState()
	if s.global {
		rec = rec.WithState("")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("%s encode %s: %w", s.kind, id, err)
	}

	changed, err := s.putIfChanged(s.recordKey(owner, id), data)
	if err != nil {
		return false, fmt.Errorf("%s put %s: %w", s.kind, id, err)
	}
	if s.global {
		mchanged, err := s.putIfChanged(s.memberKey(owner, id), []byte(state))
		if err != nil {
			return changed, fmt.Errorf("%s membership %s: %w", s.kind, id, err)
		}
		changed = changed || mchanged
	}
	return changed, nil
}

func (s *Store[T]) putIfChanged(key, data []byte) (bool, error) {
	old, err := s.db.Get(key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return false, err
	case bytes.Equal(old, data):
		return false, nil
	}
	if err := s.db.Put(key, data); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store[T]) setState(owner, id string, state State) (bool, error) {
	rec, found, err := s.Get(owner, id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, errs.New(errs.NotFound, "%s %s not found", s.kind, id)
	}
	if rec.EntityState() == state {
		return false, nil
	}
	return s.Put(owner, rec.WithState(state))
}

// SoftDelete marks a record Deleted. Deleting a deleted record is a no-op.
func (s *Store[T]) SoftDelete(owner, id string) (bool, error) {
	return s.setState(owner, id, Deleted)
}

// Restore marks a deleted record Active again.
func (s *Store[T]) Restore(owner, id string) (bool, error) {
	return s.setState(owner, id, Active)
}

// ListAll returns every record of owner, deleted ones included, in key order.
func (s *Store[T]) ListAll(owner string) ([]T, error) {
	var out []T
	if !s.global {
		err := s.db.ForEach(s.ownerPrefix(owner), func(_, value []byte) error {
			var rec T
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("%s decode: %w", s.kind, err)
			}
			out = append(out, rec)
			return nil
		})
		return out, err
	}

	prefix := s.memberPrefix(owner)
	err := s.db.ForEach(prefix, func(key, value []byte) error {
		state := memberState(value)
		data, err := s.db.Get([]byte(s.kind + "/g/" + string(key[len(prefix):])))
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var rec T
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("%s decode: %w", s.kind, err)
		}
		out = append(out, rec.WithState(state))
		return nil
	})
	return out, err
}

// List returns the active records of owner.
func (s *Store[T]) List(owner string) ([]T, error) {
	all, err := s.ListAll(owner)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, rec := range all {
		if rec.EntityState() == Active {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Count returns the number of active records of owner.
func (s *Store[T]) Count(owner string) (int, error) {
	recs, err := s.List(owner)
	return len(recs), err
}

// IDs returns the state of every record of owner, keyed by id.
func (s *Store[T]) IDs(owner string) (map[string]State, error) {
	all, err := s.ListAll(owner)
	if err != nil {
		return nil, err
	}
	out := make(map[string]State, len(all))
	for _, rec := range all {
		out[rec.EntityID()] = rec.EntityState()
	}
	return out, nil
}

// Purge removes every record of owner. For global kinds only the owner's
// membership is dropped; the shared records stay.
func (s *Store[T]) Purge(owner string) error {
	prefix := s.ownerPrefix(owner)
	if s.global {
		prefix = s.memberPrefix(owner)
	}
	var keys [][]byte
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s purge: %w", s.kind, err)
	}
	b := storage.NewBatch(s.db)
	for _, k := range keys {
		b.Delete(k)
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("%s purge: %w", s.kind, err)
	}
	return nil
}
