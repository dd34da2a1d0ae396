// Package gapcache implements the gap cache: an orphan block is known
// only by the votes representatives cast for it before the block
// itself ever arrived. The cache accumulates voter weight behind each
// such hash and, once the cumulative weight clears an applicable
// threshold, asks the caller to chase the block down via bootstrap.
//
// Grounded on bft.BFTEngine's lru.Cache-backed per-hash bookkeeping
// (this tree's election package already adapts the same shape for
// decided-root memory); generalized here to per-voter weight
// accumulation instead of a vote tally.
package gapcache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ledgerlattice/corenode/external"
	"github.com/ledgerlattice/corenode/thor"
)

// entry is one orphan hash's accumulated voter weight.
type entry struct {
	voters    map[thor.Address]thor.Amount
	total     thor.Amount
	scheduled bool
}

// Cache accumulates per-hash voter weight for blocks not yet known
// locally, bounded by an LRU of the most recently active hashes.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache // hash -> *entry

	// LegacyNumerator/256 is the cumulative-weight fraction of online
	// stake that triggers a legacy bootstrap request.
	LegacyNumerator uint64
	// OnlineWeightMinimum is the flat cumulative-weight floor that
	// triggers a lazy bootstrap request.
	OnlineWeightMinimum thor.Amount
	DisableLegacy       bool
	DisableLazy         bool
}

// New creates a Cache bounded at size distinct orphan hashes.
func New(size int, legacyNumerator uint64, onlineWeightMinimum thor.Amount) (*Cache, error) {
	backing, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		entries:             backing,
		LegacyNumerator:     legacyNumerator,
		OnlineWeightMinimum: onlineWeightMinimum,
	}, nil
}

func (c *Cache) crossesThreshold(total, onlineStake thor.Amount) bool {
	if !c.DisableLegacy && total.CmpFraction(onlineStake, c.LegacyNumerator, 256) >= 0 {
		return true
	}
	if !c.DisableLazy && total.Cmp(c.OnlineWeightMinimum) >= 0 {
		return true
	}
	return false
}

// Vote records voter's weight behind an unknown hash and reports
// whether this call is the first to carry the cumulative weight past
// an applicable threshold (the caller is responsible for scheduling
// the actual bootstrap request after a delay via Schedule, so this
// stays a pure, synchronously testable state transition).
func (c *Cache) Vote(hash thor.Bytes32, voter thor.Address, weight, onlineStake thor.Amount) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var e *entry
	if v, ok := c.entries.Get(hash); ok {
		e = v.(*entry)
	} else {
		e = &entry{voters: make(map[thor.Address]thor.Amount)}
		c.entries.Add(hash, e)
	}

	prior, had := e.voters[voter]
	if had {
		e.total = e.total.Sub(prior)
	}
	e.voters[voter] = weight
	e.total = e.total.Add(weight)

	if e.scheduled {
		return false
	}
	if c.crossesThreshold(e.total, onlineStake) {
		e.scheduled = true
		return true
	}
	return false
}

// Learn removes hash from the cache, so a Schedule callback that fires
// after the block has since arrived is a no-op.
func (c *Cache) Learn(hash thor.Bytes32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(hash)
}

// Pending reports whether hash is still tracked (not yet learned).
func (c *Cache) Pending(hash thor.Bytes32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries.Get(hash)
	return ok
}

// Schedule requests hash via requester after delay, unless Learn
// removed hash from the cache first.
func (c *Cache) Schedule(hash thor.Bytes32, delay time.Duration, requester external.BootstrapRequester) {
	if requester == nil {
		return
	}
	time.AfterFunc(delay, func() {
		if c.Pending(hash) {
			requester.RequestBlock(hash)
		}
	})
}
