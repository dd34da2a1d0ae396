// Package storage provides the single on-disk/in-memory keyspace the
// ledgerstore package partitions into named tables, in the same spirit
// as the teacher's muxdb wrapping a single goleveldb instance behind
// named "trie"/"data" spaces. goleveldb has no column-family concept,
// so named tables here are realized as a one-byte-length-prefixed name
// prepended to every key (storage/bucket.go).
package storage

import (
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/ledgerlattice/corenode/kv"
	"github.com/ledgerlattice/corenode/storage/engine"
)

// Store is the opened database shared by every named Bucket.
type Store struct {
	backend *engine.LevelStore
}

// NewMem opens an in-memory store, used by tests and the dev genesis
// tooling.
func NewMem() *Store {
	db, err := engine.OpenMem()
	if err != nil {
		// engine.OpenMem only fails if goleveldb itself misbehaves on a
		// fresh in-memory storage.MemStorage, which doesn't happen.
		panic(err)
	}
	return &Store{db}
}

// Open opens (or creates) a persistent store at path.
func Open(path string, cacheMB, fileHandles int) (*Store, error) {
	db, err := engine.Open(path, cacheMB, fileHandles)
	if err != nil {
		return nil, err
	}
	return &Store{db}, nil
}

// Close closes the underlying engine.
func (s *Store) Close() error { return s.backend.Close() }

// Bucket returns a namespaced view over the store. Every key the
// returned kv.Store sees is transparently prefixed with name.
func (s *Store) Bucket(name string) kv.Store {
	return newBucket(s.backend, name)
}

// FileSystem is a thin re-export so callers constructing a custom
// goleveldb storage.Storage (e.g. for an embedded snapshot copy) don't
// need to import goleveldb directly.
type FileSystem = storage.Storage
