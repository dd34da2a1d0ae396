// Package kv defines the minimal key-value interfaces the storage engine
// and ledgerstore package build on, mirroring the teacher's muxdb/kv
// split between an Engine-facing interface and the small function-typed
// adapters used to assemble ad-hoc implementations (see
// storage/engine/leveldb.go's Snapshot/Bulk construction).
package kv

// Range is an inclusive-exclusive [Start, Limit) key range. A nil Limit
// means "to the end of the keyspace".
type Range struct {
	Start []byte
	Limit []byte
}

// BytesPrefix returns the Range that exactly covers all keys with the
// given prefix.
func BytesPrefix(prefix []byte) Range {
	var limit []byte
	for i := len(prefix) - 1; i >= 0; i-- {
		c := prefix[i]
		if c < 0xff {
			limit = make([]byte, i+1)
			copy(limit, prefix)
			limit[i] = c + 1
			break
		}
	}
	return Range{Start: prefix, Limit: limit}
}

// Getter reads a single value.
type Getter interface {
	Get(key []byte) ([]byte, error)
}

// Haser checks key existence.
type Haser interface {
	Has(key []byte) (bool, error)
}

// Putter writes a single value.
type Putter interface {
	Put(key, val []byte) error
}

// Deleter removes a single value.
type Deleter interface {
	Delete(key []byte) error
}

// IsNotFounder classifies a Get/Has error as "key not present" versus a
// genuine I/O failure.
type IsNotFounder interface {
	IsNotFound(err error) bool
}

// Iterator walks a Range in key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

// Iterateable exposes a Range scan.
type Iterateable interface {
	Iterate(r Range) Iterator
}

// Snapshot is a point-in-time, read-only view. Release must be called
// once the caller is done with it.
type Snapshot interface {
	Getter
	Haser
	IsNotFounder
	Release()
}

// Bulk batches writes for efficient flushing, mirroring the teacher's
// Bulk abstraction (leveldb.Batch underneath).
type Bulk interface {
	Putter
	Deleter
	EnableAutoFlush()
	Write() error
}

// Store is the full read/write/scan/snapshot surface a storage engine
// must provide.
type Store interface {
	Getter
	Haser
	Putter
	Deleter
	IsNotFounder
	Iterateable
	Snapshot() Snapshot
	Bulk() Bulk
	Close() error
}
