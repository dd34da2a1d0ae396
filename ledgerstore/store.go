// Package ledgerstore implements the transactional key-value layout:
// one goleveldb-backed bucket per logical table, read/write
// transactions with snapshot isolation, merged epoch-split iteration,
// sideband-aware block records, schema migration, and random block
// sampling. It is grounded on the teacher's muxdb-over-goleveldb
// storage pattern and on the table layout of the original LMDB store
// (cga/node/lmdb.cpp's mdb_dbi_open calls).
package ledgerstore

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/ledgerlattice/corenode/kv"
	"github.com/ledgerlattice/corenode/storage"
)

// Table names mirror the original store's dbi names (cga/node/lmdb.cpp).
const (
	tableFrontiers     = "frontiers"
	tableAccountsV0    = "accounts"
	tableAccountsV1    = "accounts_v1"
	tableSend          = "send"
	tableReceive       = "receive"
	tableOpen          = "open"
	tableChange        = "change"
	tableStateV0       = "state"
	tableStateV1       = "state_v1"
	tablePendingV0     = "pending"
	tablePendingV1     = "pending_v1"
	tableRepresentation = "representation"
	tableUnchecked     = "unchecked"
	tableVote          = "vote"
	tableOnlineWeight  = "online_weight"
	tableMeta          = "meta"
	tablePeers         = "peers"
)

// CurrentSchemaVersion is the schema version this build writes and
// migrates up to.
const CurrentSchemaVersion = 2

var metaKeyVersion = []byte("version")
var metaKeyNodeID = []byte("node_id_seed")

// Store is the opened ledger database. All table access goes through
// View (read-only) or Update (read-write) transactions.
type Store struct {
	backing *storage.Store

	writeMu sync.Mutex // serializes write transactions.

	frontiers      kv.Store
	accountsV0     kv.Store
	accountsV1     kv.Store
	send           kv.Store
	receive        kv.Store
	open           kv.Store
	change         kv.Store
	stateV0        kv.Store
	stateV1        kv.Store
	pendingV0      kv.Store
	pendingV1      kv.Store
	representation kv.Store
	unchecked      kv.Store
	vote           kv.Store
	onlineWeight   kv.Store
	meta           kv.Store
	peers          kv.Store
}

// Open opens (or creates) a persistent ledger store at path, running
// any pending schema migrations before returning.
func Open(path string, cacheMB, fileHandles int) (*Store, error) {
	backing, err := storage.Open(path, cacheMB, fileHandles)
	if err != nil {
		return nil, errors.Wrap(err, "open ledgerstore")
	}
	s := newStore(backing)
	if err := s.upgrade(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMem opens an in-memory ledger store for tests and dev tooling.
func NewMem() *Store {
	s := newStore(storage.NewMem())
	if err := s.upgrade(); err != nil {
		panic(err)
	}
	return s
}

func newStore(backing *storage.Store) *Store {
	return &Store{
		backing:        backing,
		frontiers:      backing.Bucket(tableFrontiers),
		accountsV0:     backing.Bucket(tableAccountsV0),
		accountsV1:     backing.Bucket(tableAccountsV1),
		send:           backing.Bucket(tableSend),
		receive:        backing.Bucket(tableReceive),
		open:           backing.Bucket(tableOpen),
		change:         backing.Bucket(tableChange),
		stateV0:        backing.Bucket(tableStateV0),
		stateV1:        backing.Bucket(tableStateV1),
		pendingV0:      backing.Bucket(tablePendingV0),
		pendingV1:      backing.Bucket(tablePendingV1),
		representation: backing.Bucket(tableRepresentation),
		unchecked:      backing.Bucket(tableUnchecked),
		vote:           backing.Bucket(tableVote),
		onlineWeight:   backing.Bucket(tableOnlineWeight),
		meta:           backing.Bucket(tableMeta),
		peers:          backing.Bucket(tablePeers),
	}
}

// Close closes the underlying engine.
func (s *Store) Close() error { return s.backing.Close() }

// Txn is a snapshot-consistent view over every table. Write transactions
// additionally buffer mutations and flush them atomically on Commit.
type Txn struct {
	store    *Store
	writable bool
	bulks    map[string]kv.Bulk // lazily created per-table bulk, write txns only
	done     bool
}

func (s *Store) bucket(name string) kv.Store {
	switch name {
	case tableFrontiers:
		return s.frontiers
	case tableAccountsV0:
		return s.accountsV0
	case tableAccountsV1:
		return s.accountsV1
	case tableSend:
		return s.send
	case tableReceive:
		return s.receive
	case tableOpen:
		return s.open
	case tableChange:
		return s.change
	case tableStateV0:
		return s.stateV0
	case tableStateV1:
		return s.stateV1
	case tablePendingV0:
		return s.pendingV0
	case tablePendingV1:
		return s.pendingV1
	case tableRepresentation:
		return s.representation
	case tableUnchecked:
		return s.unchecked
	case tableVote:
		return s.vote
	case tableOnlineWeight:
		return s.onlineWeight
	case tableMeta:
		return s.meta
	case tablePeers:
		return s.peers
	default:
		panic("ledgerstore: unknown table " + name)
	}
}

// View runs fn in a read-only transaction.
func (s *Store) View(fn func(*Txn) error) error {
	txn := &Txn{store: s}
	err := fn(txn)
	txn.done = true
	return err
}

// Update runs fn in a read-write transaction. Write transactions are
// serialized: only one may be in flight at a time. fn's mutations are
// committed atomically if it returns nil; otherwise they are discarded.
func (s *Store) Update(fn func(*Txn) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	txn := &Txn{store: s, writable: true, bulks: make(map[string]kv.Bulk)}
	if err := fn(txn); err != nil {
		txn.done = true
		return err
	}
	for _, b := range txn.bulks {
		if err := b.Write(); err != nil {
			txn.done = true
			return errors.Wrap(err, "commit ledgerstore transaction")
		}
	}
	txn.done = true
	return nil
}

func (t *Txn) get(table string, key []byte) ([]byte, error) {
	v, err := t.store.bucket(table).Get(key)
	if err != nil {
		if t.store.bucket(table).IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (t *Txn) has(table string, key []byte) (bool, error) {
	return t.store.bucket(table).Has(key)
}

func (t *Txn) put(table string, key, val []byte) error {
	if !t.writable {
		panic("ledgerstore: put in read-only transaction")
	}
	b, ok := t.bulks[table]
	if !ok {
		b = t.store.bucket(table).Bulk()
		t.bulks[table] = b
	}
	return b.Put(key, val)
}

func (t *Txn) delete(table string, key []byte) error {
	if !t.writable {
		panic("ledgerstore: delete in read-only transaction")
	}
	b, ok := t.bulks[table]
	if !ok {
		b = t.store.bucket(table).Bulk()
		t.bulks[table] = b
	}
	return b.Delete(key)
}

func (t *Txn) iterate(table string, r kv.Range) kv.Iterator {
	return t.store.bucket(table).Iterate(r)
}

// DeleteRangeContext deletes every key in [start,limit) of table,
// checking ctx periodically; used by the unchecked-table cleanup
// commands exposed through the CLI.
func (s *Store) DeleteRangeContext(ctx context.Context, table string, r kv.Range) error {
	type ranger interface {
		DeleteRange(context.Context, kv.Range) error
	}
	b := s.bucket(table)
	if rr, ok := b.(ranger); ok {
		return rr.DeleteRange(ctx, r)
	}
	it := b.Iterate(r)
	defer it.Release()
	for it.Next() {
		if err := b.Delete(append([]byte{}, it.Key()...)); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return it.Error()
}
