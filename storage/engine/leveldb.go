// Package engine adapts goleveldb to the kv.Store interface, the way
// the teacher's muxdb/engine package wraps it for muxdb's Engine
// interface.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ledgerlattice/corenode/kv"
	"github.com/ledgerlattice/corenode/metrics"
)

var (
	writeOpt = opt.WriteOptions{}
	readOpt  = opt.ReadOptions{}
	scanOpt  = opt.ReadOptions{DontFillCache: true}
)

var (
	metricBatchWriteBytes = metrics.LazyLoad(func() metrics.GaugeMeter {
		return metrics.Gauge("storage_batch_write_bytes")
	})
	metricBatchWriteDuration = metrics.LazyLoad(func() metrics.HistogramMeter {
		return metrics.Histogram("storage_batch_write_duration_ms", metrics.BucketHTTPReqs)
	})
)

// LevelStore implements kv.Store atop a goleveldb database.
type LevelStore struct {
	db        *leveldb.DB
	batchPool *sync.Pool
}

// NewLevelStore wraps an opened goleveldb database.
func NewLevelStore(db *leveldb.DB) *LevelStore {
	return &LevelStore{
		db: db,
		batchPool: &sync.Pool{
			New: func() interface{} { return &leveldb.Batch{} },
		},
	}
}

// Open opens (or creates) a goleveldb database at path. It always opens
// files at path; in-memory instances come from OpenMem.
func Open(path string, cache, handles int) (*LevelStore, error) {
	opts := &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB,
		Filter:                 nil,
	}
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, err
	}
	return NewLevelStore(db), nil
}

// OpenMem opens an in-memory goleveldb instance backed by
// storage.MemStorage, used by tests and dev tooling.
func OpenMem() (*LevelStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return NewLevelStore(db), nil
}

func (s *LevelStore) Close() error { return s.db.Close() }

func (s *LevelStore) IsNotFound(err error) bool { return err == leveldb.ErrNotFound }

func (s *LevelStore) Get(key []byte) ([]byte, error) {
	val, err := s.db.Get(key, &readOpt)
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *LevelStore) Has(key []byte) (bool, error) {
	return s.db.Has(key, &readOpt)
}

func (s *LevelStore) Put(key, val []byte) error {
	return s.db.Put(key, val, &writeOpt)
}

func (s *LevelStore) Delete(key []byte) error {
	return s.db.Delete(key, &writeOpt)
}

type levelSnapshot struct {
	snap *leveldb.Snapshot
}

func (s *levelSnapshot) Get(key []byte) ([]byte, error) { return s.snap.Get(key, &readOpt) }
func (s *levelSnapshot) Has(key []byte) (bool, error)   { return s.snap.Has(key, &readOpt) }
func (s *levelSnapshot) IsNotFound(err error) bool      { return err == leveldb.ErrNotFound }
func (s *levelSnapshot) Release()                       { s.snap.Release() }

func (s *LevelStore) Snapshot() kv.Snapshot {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return &errSnapshot{err}
	}
	return &levelSnapshot{snap}
}

type errSnapshot struct{ err error }

func (e *errSnapshot) Get(key []byte) ([]byte, error) { return nil, e.err }
func (e *errSnapshot) Has(key []byte) (bool, error)   { return false, e.err }
func (e *errSnapshot) IsNotFound(error) bool          { return false }
func (e *errSnapshot) Release()                       {}

type levelBulk struct {
	db        *leveldb.DB
	pool      *sync.Pool
	batch     *leveldb.Batch
	autoFlush bool
}

const idealBatchSize = 128 * 1024

func (b *levelBulk) getBatch() *leveldb.Batch {
	if b.batch == nil {
		b.batch = b.pool.Get().(*leveldb.Batch)
		b.batch.Reset()
	}
	return b.batch
}

func (b *levelBulk) flush(minSize int) error {
	if b.batch == nil {
		return nil
	}
	n := len(b.batch.Dump())
	if n < minSize {
		return nil
	}
	if b.batch.Len() > 0 {
		start := time.Now()
		if err := b.db.Write(b.batch, &writeOpt); err != nil {
			return err
		}
		metricBatchWriteBytes().Set(int64(n))
		metricBatchWriteDuration().Observe(time.Since(start).Milliseconds())
	}
	b.pool.Put(b.batch)
	b.batch = nil
	return nil
}

func (b *levelBulk) Put(key, val []byte) error {
	b.getBatch().Put(key, val)
	if b.autoFlush {
		return b.flush(idealBatchSize)
	}
	return nil
}

func (b *levelBulk) Delete(key []byte) error {
	b.getBatch().Delete(key)
	if b.autoFlush {
		return b.flush(idealBatchSize)
	}
	return nil
}

func (b *levelBulk) EnableAutoFlush() { b.autoFlush = true }
func (b *levelBulk) Write() error     { return b.flush(0) }

func (s *LevelStore) Bulk() kv.Bulk {
	return &levelBulk{db: s.db, pool: s.batchPool}
}

type levelIterator struct {
	it iterator
}

// iterator is the subset of leveldb.Iterator this package relies on.
type iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

func (i *levelIterator) Next() bool      { return i.it.Next() }
func (i *levelIterator) Key() []byte     { return i.it.Key() }
func (i *levelIterator) Value() []byte   { return i.it.Value() }
func (i *levelIterator) Error() error    { return i.it.Error() }
func (i *levelIterator) Release()        { i.it.Release() }

func (s *LevelStore) Iterate(r kv.Range) kv.Iterator {
	return &levelIterator{s.db.NewIterator(&util.Range{Start: r.Start, Limit: r.Limit}, &scanOpt)}
}

// DeleteRange removes every key in r, flushing in batches and checking
// ctx periodically so a large range delete (e.g. unchecked-table
// cleanup) stays cancellable.
func (s *LevelStore) DeleteRange(ctx context.Context, r kv.Range) error {
	it := s.Iterate(r)
	defer it.Release()

	bulk := s.Bulk()
	bulk.EnableAutoFlush()

	cnt := 0
	for it.Next() {
		cnt++
		if cnt%1000 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if err := bulk.Delete(it.Key()); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return err
	}
	return bulk.Write()
}
