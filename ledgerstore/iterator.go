package ledgerstore

import (
	"bytes"

	"github.com/ledgerlattice/corenode/kv"
)

// MergedIterator presents the union of two key-ordered tables as one
// ordered stream, preferring the v0 entry on an exact key tie. It holds
// its own read snapshot on each side so it is stable against
// concurrent writes.
type MergedIterator struct {
	a, b       kv.Iterator
	aDone      bool
	bDone      bool
	key, value []byte
}

// newMergedIterator begins a merged scan of table iterators a and b. It
// advances both sides once before use; callers should start with Next().
func newMergedIterator(a, b kv.Iterator) *MergedIterator {
	m := &MergedIterator{a: a, b: b}
	m.aDone = !a.Next()
	m.bDone = !b.Next()
	return m
}

// Next advances the iterator, emitting the lexicographically lesser of
// the two sides' current keys (v0 on tie).
func (m *MergedIterator) Next() bool {
	if m.aDone && m.bDone {
		return false
	}
	switch {
	case m.aDone:
		m.key, m.value = m.b.Key(), m.b.Value()
		m.bDone = !m.b.Next()
	case m.bDone:
		m.key, m.value = m.a.Key(), m.a.Value()
		m.aDone = !m.a.Next()
	default:
		c := bytes.Compare(m.a.Key(), m.b.Key())
		switch {
		case c <= 0:
			m.key, m.value = m.a.Key(), m.a.Value()
			m.aDone = !m.a.Next()
			if c == 0 {
				m.bDone = !m.b.Next()
			}
		default:
			m.key, m.value = m.b.Key(), m.b.Value()
			m.bDone = !m.b.Next()
		}
	}
	return true
}

func (m *MergedIterator) Key() []byte   { return m.key }
func (m *MergedIterator) Value() []byte { return m.value }

func (m *MergedIterator) Error() error {
	if err := m.a.Error(); err != nil {
		return err
	}
	return m.b.Error()
}

func (m *MergedIterator) Release() {
	m.a.Release()
	m.b.Release()
}

// IterateAccounts returns a merged view across accounts_v0/v1.
func (t *Txn) IterateAccounts() *MergedIterator {
	return newMergedIterator(
		t.store.accountsV0.Iterate(kv.Range{}),
		t.store.accountsV1.Iterate(kv.Range{}),
	)
}

// IteratePending returns a merged view across pending_v0/v1.
func (t *Txn) IteratePending() *MergedIterator {
	return newMergedIterator(
		t.store.pendingV0.Iterate(kv.Range{}),
		t.store.pendingV1.Iterate(kv.Range{}),
	)
}

// IterateState returns a merged view across state_v0/v1.
func (t *Txn) IterateState() *MergedIterator {
	return newMergedIterator(
		t.store.stateV0.Iterate(kv.Range{}),
		t.store.stateV1.Iterate(kv.Range{}),
	)
}
