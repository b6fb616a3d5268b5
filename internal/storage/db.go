// Package storage provides the key-value persistence used by the wallet core.
package storage

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/tbcwallet/internal/log"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in key order.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch groups writes that are committed together.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by engines that support atomic batches.
type Batcher interface {
	NewBatch() Batch
}

// Engine names accepted by Open.
const (
	EngineBadger  = "badger"
	EngineLevelDB = "leveldb"
	EngineMemory  = "memory"
)

// Open opens a database using the named engine. path is ignored for the
// memory engine.
func Open(engine, path string) (DB, error) {
	var (
		db  DB
		err error
	)
	switch engine {
	case EngineBadger, "":
		engine = EngineBadger
		db, err = NewBadger(path)
	case EngineLevelDB:
		db, err = NewLevelDB(path)
	case EngineMemory:
		db = NewMemory()
	default:
		return nil, fmt.Errorf("unknown storage engine %q", engine)
	}
	if err != nil {
		return nil, err
	}
	log.Storage.Debug().Str("engine", engine).Str("path", path).Msg("Database opened")
	return db, nil
}
