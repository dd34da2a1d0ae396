package election

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/inconshreveable/log15"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

var log = log15.New("pkg", "election")

// historyEntry is one slot of Manager's confirmed/dropped diagnostics
// ring (SPEC_FULL.md's supplemented "confirmation history ring buffer").
type historyEntry struct {
	Root      thor.Bytes32
	Winner    thor.Bytes32
	Confirmed bool
}

// Manager owns every live election, keyed by root, plus a secondary
// index from any hash a live candidate references back to its root so
// Vote can route a ballot by any hash it references, not just the root.
type Manager struct {
	QuorumPct           uint64
	OnlineWeightMinimum thor.Amount

	mu          sync.Mutex
	byRoot      map[thor.Bytes32]*Election
	hashIndex   map[thor.Bytes32]thor.Bytes32
	recentCache *lru.Cache // root -> bool (confirmed), mirrors bft.caches.state
	history     []historyEntry
	historyNext int
}

// NewManager creates a Manager with a bounded recently-decided cache
// and a bounded history ring, mirroring bft.BFTEngine's lru-backed
// caches.
func NewManager(quorumPct uint64, onlineWeightMinimum thor.Amount, historySize, cacheSize int) (*Manager, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Manager{
		QuorumPct:           quorumPct,
		OnlineWeightMinimum: onlineWeightMinimum,
		byRoot:              make(map[thor.Bytes32]*Election),
		hashIndex:           make(map[thor.Bytes32]thor.Bytes32),
		recentCache:         cache,
		history:             make([]historyEntry, historySize),
	}, nil
}

// Start inserts an election for root if none exists, returning true if
// one already existed.
func (m *Manager) Start(root thor.Bytes32, b block.Block, onConfirm func(block.Block)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byRoot[root]; exists {
		return true
	}
	e := newElection(root, b, onConfirm)
	m.byRoot[root] = e
	m.hashIndex[b.Hash()] = root
	return false
}

// Publish admits an alternative candidate under root.
func (m *Manager) Publish(tx *ledgerstore.Txn, root thor.Bytes32, b block.Block, onlineStake thor.Amount) (bool, error) {
	m.mu.Lock()
	e, ok := m.byRoot[root]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	accepted, err := e.Publish(tx, b, onlineStake)
	if err != nil || !accepted {
		return accepted, err
	}
	m.mu.Lock()
	m.hashIndex[b.Hash()] = root
	m.mu.Unlock()
	return true, nil
}

// Vote routes a vote to its election, resolving root either directly or
// via the hash index (the vote names a hash, not necessarily a root).
func (m *Manager) Vote(tx *ledgerstore.Txn, voter thor.Address, sequence uint64, hash thor.Bytes32, voterWeight, onlineStake thor.Amount, now time.Time, allowUncooled bool) (replay, processed bool, err error) {
	m.mu.Lock()
	root, ok := m.hashIndex[hash]
	if !ok {
		root = hash
	}
	e, ok := m.byRoot[root]
	m.mu.Unlock()
	if !ok {
		return false, false, nil
	}

	replay, processed = e.Vote(voter, sequence, hash, voterWeight, onlineStake, now, allowUncooled)
	if !processed {
		return replay, processed, nil
	}
	_, err = m.confirmIfQuorumLocked(tx, e, onlineStake)
	return replay, processed, err
}

// ConfirmIfQuorum re-evaluates root's election against current
// representation weights.
func (m *Manager) ConfirmIfQuorum(tx *ledgerstore.Txn, root thor.Bytes32, onlineStake thor.Amount) (bool, error) {
	m.mu.Lock()
	e, ok := m.byRoot[root]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return m.confirmIfQuorumLocked(tx, e, onlineStake)
}

func (m *Manager) confirmIfQuorumLocked(tx *ledgerstore.Txn, e *Election, onlineStake thor.Amount) (bool, error) {
	confirmed, err := e.confirmIfQuorum(tx, m.QuorumPct, onlineStake, m.OnlineWeightMinimum)
	if err != nil || !confirmed {
		return confirmed, err
	}
	winner, ok := e.Blocks[e.Winner]
	if ok {
		m.cascadeConfirm(tx, referencedRoots(winner), onlineStake)
	}
	return true, nil
}

// cascadeConfirm directly confirms any still-open, single-candidate
// election at one of roots, since its sole candidate's confirmation is
// already implied by the descendant block it was just confirmed under:
// a previous/source/link election still open with only one candidate
// cascades to confirmed too.
func (m *Manager) cascadeConfirm(tx *ledgerstore.Txn, roots []thor.Bytes32, onlineStake thor.Amount) {
	for _, root := range roots {
		m.mu.Lock()
		e, ok := m.byRoot[root]
		m.mu.Unlock()
		if !ok || e.Confirmed || e.Stopped || len(e.Blocks) != 1 {
			continue
		}
		var only thor.Bytes32
		var onlyBlock block.Block
		for h, b := range e.Blocks {
			only, onlyBlock = h, b
		}
		e.Confirmed = true
		e.Winner = only
		if e.onConfirm != nil {
			e.onConfirm(onlyBlock)
		}
		m.cascadeConfirm(tx, referencedRoots(onlyBlock), onlineStake)
	}
}

// Evict removes root's election (confirmed or stopped, per the
// periodic announcer's eviction rule) and records it in the history
// ring.
func (m *Manager) Evict(root thor.Bytes32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byRoot[root]
	if !ok {
		return
	}
	for h := range e.Blocks {
		delete(m.hashIndex, h)
	}
	delete(m.byRoot, root)
	m.recentCache.Add(root, e.Confirmed)

	if len(m.history) > 0 {
		m.history[m.historyNext%len(m.history)] = historyEntry{Root: root, Winner: e.Winner, Confirmed: e.Confirmed}
		m.historyNext++
	}
	log.Debug("election evicted", "root", root, "confirmed", e.Confirmed)
}

// WasRecentlyDecided reports whether root was evicted recently, and
// whether it confirmed, so Start's caller can avoid reopening a
// just-settled election (mirrors bft.BFTEngine's caches.state
// short-circuit).
func (m *Manager) WasRecentlyDecided(root thor.Bytes32) (confirmed bool, known bool) {
	v, ok := m.recentCache.Get(root)
	if !ok {
		return false, false
	}
	return v.(bool), true
}

// Get returns root's live election, if any.
func (m *Manager) Get(root thor.Bytes32) (*Election, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byRoot[root]
	return e, ok
}

// Len reports how many elections are currently live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byRoot)
}
