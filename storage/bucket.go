package storage

import (
	"context"

	"github.com/ledgerlattice/corenode/kv"
	"github.com/ledgerlattice/corenode/storage/engine"
)

// bucket namespaces every key under a single byte-length-prefixed name,
// so unrelated tables sharing one goleveldb instance never collide.
type bucket struct {
	backend *engine.LevelStore
	prefix  []byte
}

func newBucket(backend *engine.LevelStore, name string) *bucket {
	p := make([]byte, 0, 1+len(name))
	p = append(p, byte(len(name)))
	p = append(p, name...)
	return &bucket{backend, p}
}

func (b *bucket) key(k []byte) []byte {
	out := make([]byte, 0, len(b.prefix)+len(k))
	out = append(out, b.prefix...)
	out = append(out, k...)
	return out
}

func (b *bucket) Get(k []byte) ([]byte, error) { return b.backend.Get(b.key(k)) }
func (b *bucket) Has(k []byte) (bool, error)   { return b.backend.Has(b.key(k)) }
func (b *bucket) Put(k, v []byte) error        { return b.backend.Put(b.key(k), v) }
func (b *bucket) Delete(k []byte) error        { return b.backend.Delete(b.key(k)) }
func (b *bucket) IsNotFound(err error) bool    { return b.backend.IsNotFound(err) }
func (b *bucket) Close() error                 { return nil }

func (b *bucket) Iterate(r kv.Range) kv.Iterator {
	start := b.key(r.Start)
	var limit []byte
	if r.Limit != nil {
		limit = b.key(r.Limit)
	} else {
		limit = kv.BytesPrefix(b.prefix).Limit
	}
	return &bucketIterator{
		inner:  b.backend.Iterate(kv.Range{Start: start, Limit: limit}),
		prefix: b.prefix,
	}
}

func (b *bucket) Snapshot() kv.Snapshot {
	return &bucketSnapshot{b.backend.Snapshot(), b.prefix}
}

func (b *bucket) Bulk() kv.Bulk {
	return &bucketBulk{b.backend.Bulk(), b.prefix}
}

// DeleteRange removes every key under r within this bucket's namespace.
func (b *bucket) DeleteRange(ctx context.Context, r kv.Range) error {
	start := b.key(r.Start)
	var limit []byte
	if r.Limit != nil {
		limit = b.key(r.Limit)
	} else {
		limit = kv.BytesPrefix(b.prefix).Limit
	}
	return b.backend.DeleteRange(ctx, kv.Range{Start: start, Limit: limit})
}

type bucketIterator struct {
	inner  kv.Iterator
	prefix []byte
}

func (i *bucketIterator) Next() bool   { return i.inner.Next() }
func (i *bucketIterator) Key() []byte  { return i.inner.Key()[len(i.prefix):] }
func (i *bucketIterator) Value() []byte { return i.inner.Value() }
func (i *bucketIterator) Error() error  { return i.inner.Error() }
func (i *bucketIterator) Release()      { i.inner.Release() }

type bucketSnapshot struct {
	inner  kv.Snapshot
	prefix []byte
}

func (s *bucketSnapshot) Get(k []byte) ([]byte, error) {
	return s.inner.Get(append(append([]byte{}, s.prefix...), k...))
}
func (s *bucketSnapshot) Has(k []byte) (bool, error) {
	return s.inner.Has(append(append([]byte{}, s.prefix...), k...))
}
func (s *bucketSnapshot) IsNotFound(err error) bool { return s.inner.IsNotFound(err) }
func (s *bucketSnapshot) Release()                  { s.inner.Release() }

type bucketBulk struct {
	inner  kv.Bulk
	prefix []byte
}

func (b *bucketBulk) Put(k, v []byte) error {
	return b.inner.Put(append(append([]byte{}, b.prefix...), k...), v)
}
func (b *bucketBulk) Delete(k []byte) error {
	return b.inner.Delete(append(append([]byte{}, b.prefix...), k...))
}
func (b *bucketBulk) EnableAutoFlush() { b.inner.EnableAutoFlush() }
func (b *bucketBulk) Write() error     { return b.inner.Write() }
