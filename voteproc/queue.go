// Package voteproc implements the bounded vote admission queue and its
// dedicated draining task: votes are admitted by a weight-tiered FIFO,
// then drained in batches for signature verification and routed into
// the matching election.
//
// Grounded on bft/engine.go's vote bookkeeping (per-voter weight lookup
// via representation, batched processing) generalized from single-vote
// calls to an explicit bounded queue with priority eviction.
package voteproc

import (
	"sync"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/external"
	"github.com/ledgerlattice/corenode/thor"
)

// admission tiers, by voter weight as a fraction of online stake.
// Lower numbers are higher priority: a full queue evicts the highest
// Tier present to make room for a lower one.
const (
	tierHigh     = 0 // >= 5%
	tierMid      = 1 // >= 1%
	tierLow      = 2 // >= 0.1%
	tierMinimal  = 3 // below 0.1%, admitted only while the queue has room
	tierFraction = 1000
)

// voterTier classifies weight against onlineStake into one of the four
// admission tiers.
func voterTier(weight, onlineStake thor.Amount) int {
	switch {
	case weight.CmpFraction(onlineStake, 50, tierFraction) >= 0:
		return tierHigh
	case weight.CmpFraction(onlineStake, 10, tierFraction) >= 0:
		return tierMid
	case weight.CmpFraction(onlineStake, 1, tierFraction) >= 0:
		return tierLow
	default:
		return tierMinimal
	}
}

// pendingVote is one admitted (vote, sender) pair awaiting verification.
type pendingVote struct {
	Vote   *block.Vote
	Sender external.PeerID
	Tier   int
}

// Queue is a bounded FIFO of admitted votes. High-weight voters are
// admitted even near the capacity limit by evicting the
// lowest-priority entry currently queued.
type Queue struct {
	mu       sync.Mutex
	items    []pendingVote
	capacity int
	overflow uint64
}

// NewQueue creates a Queue bounded at capacity entries.
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// Admit enqueues v from sender, classified by voterWeight against
// onlineStake. It returns false if the queue is full and v's tier does
// not outrank the worst entry already queued, incrementing the
// overflow counter.
func (q *Queue) Admit(v *block.Vote, sender external.PeerID, voterWeight, onlineStake thor.Amount) bool {
	tier := voterTier(voterWeight, onlineStake)

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) < q.capacity {
		q.items = append(q.items, pendingVote{Vote: v, Sender: sender, Tier: tier})
		return true
	}

	worstIdx, worstTier := -1, -1
	for i, it := range q.items {
		if it.Tier > worstTier {
			worstTier, worstIdx = it.Tier, i
		}
	}
	if worstIdx < 0 || tier >= worstTier {
		q.overflow++
		return false
	}
	q.items = append(q.items[:worstIdx], q.items[worstIdx+1:]...)
	q.items = append(q.items, pendingVote{Vote: v, Sender: sender, Tier: tier})
	return true
}

// DrainBatch removes and returns up to max queued votes, oldest first.
func (q *Queue) DrainBatch(max int) []pendingVote {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := max
	if n > len(q.items) {
		n = len(q.items)
	}
	batch := make([]pendingVote, n)
	copy(batch, q.items[:n])
	q.items = q.items[n:]
	return batch
}

// Len reports how many votes are currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Overflow reports the cumulative count of votes dropped for lack of
// queue room.
func (q *Queue) Overflow() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overflow
}
