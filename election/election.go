// Package election implements the per-root active election object and
// its manager: a root (the contested (account, previous) or (account)
// opening slot) may have several competing candidate blocks published
// under it; representatives vote for the hash they believe
// is canonical; once one candidate's weighted vote lead clears the
// others by the quorum delta, the election confirms.
//
// Grounded on bft.BFTEngine's shape (cache-backed, votes tracked per
// voter, confirmation computed from current representation weight) —
// adapted from block-finality voting to block-lattice fork resolution.
package election

import (
	"time"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

const (
	// maxCandidatesPerElection bounds how many distinct blocks may
	// compete for one root before a late entrant needs a meaningful
	// prior-vote tally to be admitted.
	maxCandidatesPerElection = 10
	// candidateAdmitPerMille is the prior-vote tally threshold (in
	// per-mille of online stake) a late entrant must clear once the
	// candidate cap is reached. 100‰ == 10%.
	candidateAdmitPerMille = 100
)

// weightTier returns the per-voter cooldown for weight as a fraction of
// onlineStake, and whether the voter is admitted at all — rejected
// unless a test network allows it.
func weightTier(weight, onlineStake thor.Amount) (time.Duration, bool) {
	if onlineStake.IsZero() {
		return 0, false
	}
	switch {
	case cmpPerMille(weight, onlineStake, 50) >= 0: // >= 5%
		return time.Second, true
	case cmpPerMille(weight, onlineStake, 10) >= 0: // >= 1%
		return 5 * time.Second, true
	case cmpPerMille(weight, onlineStake, 1) >= 0: // >= 0.1%
		return 15 * time.Second, true
	default:
		return 0, false
	}
}

// cmpPerMille compares weight/stake against perMille/1000.
func cmpPerMille(weight, stake thor.Amount, perMille uint64) int {
	return weight.CmpFraction(stake, perMille, 1000)
}

// voteRecord is one voter's most recently accepted (sequence, hash).
type voteRecord struct {
	Sequence uint64
	Hash     thor.Bytes32
}

// Election tracks the competing candidates and accumulated votes for a
// single root. Not safe for concurrent use: exactly one vote processor
// thread drives Manager.Vote/Publish/Tick, so Manager's map lock only
// needs to protect root lookup and eviction, not in-flight
// mutation of a single election's fields.
type Election struct {
	Root          thor.Bytes32
	Blocks        map[thor.Bytes32]block.Block
	Winner        thor.Bytes32
	Confirmed     bool
	Stopped       bool
	Announcements uint32

	lastVotes map[thor.Address]voteRecord
	lastSeen  map[thor.Address]time.Time
	onConfirm func(block.Block)
}

func newElection(root thor.Bytes32, b block.Block, onConfirm func(block.Block)) *Election {
	e := &Election{
		Root:      root,
		Blocks:    make(map[thor.Bytes32]block.Block),
		lastVotes: make(map[thor.Address]voteRecord),
		lastSeen:  make(map[thor.Address]time.Time),
		onConfirm: onConfirm,
	}
	e.Blocks[b.Hash()] = b
	return e
}

func (e *Election) tallyFor(hash thor.Bytes32, tx *ledgerstore.Txn) (thor.Amount, error) {
	sum := thor.ZeroAmount
	for voter, rec := range e.lastVotes {
		if rec.Hash != hash {
			continue
		}
		w, err := tx.GetRepresentation(voter)
		if err != nil {
			return thor.Amount{}, err
		}
		sum = sum.Add(w)
	}
	return sum, nil
}

// Publish admits an alternative candidate under e's root. It returns
// false without error when the cap is reached and the candidate's
// current vote tally doesn't clear the admission threshold.
func (e *Election) Publish(tx *ledgerstore.Txn, b block.Block, onlineStake thor.Amount) (bool, error) {
	hash := b.Hash()
	if _, exists := e.Blocks[hash]; exists {
		return true, nil
	}
	if len(e.Blocks) >= maxCandidatesPerElection {
		tally, err := e.tallyFor(hash, tx)
		if err != nil {
			return false, err
		}
		if cmpPerMille(tally, onlineStake, candidateAdmitPerMille) < 0 {
			return false, nil
		}
	}
	e.Blocks[hash] = b
	return true, nil
}

// Vote records voter's ballot for hash at sequence, subject to the
// weight-tiered cooldown. allowUncooled lets a test-network caller skip
// both the cooldown and the minimum-weight floor.
func (e *Election) Vote(voter thor.Address, sequence uint64, hash thor.Bytes32, voterWeight, onlineStake thor.Amount, now time.Time, allowUncooled bool) (replay, processed bool) {
	cooldown, admitted := weightTier(voterWeight, onlineStake)
	if !admitted && !allowUncooled {
		return false, false
	}
	if last, seen := e.lastSeen[voter]; seen && !allowUncooled && now.Sub(last) < cooldown {
		return false, false
	}
	e.lastSeen[voter] = now

	prev, had := e.lastVotes[voter]
	if had {
		if sequence < prev.Sequence {
			return false, false
		}
		if sequence == prev.Sequence {
			if hash == prev.Hash {
				return true, false
			}
			return false, false
		}
	}
	e.lastVotes[voter] = voteRecord{Sequence: sequence, Hash: hash}
	return false, true
}

// confirmIfQuorum computes the per-candidate weight tally from
// lastVotes against current representation, and confirms when the
// total cast weight clears onlineWeightMinimum and the leader's margin
// over the runner-up clears the quorum delta.
func (e *Election) confirmIfQuorum(tx *ledgerstore.Txn, quorumPct uint64, onlineStake, onlineWeightMinimum thor.Amount) (bool, error) {
	if e.Confirmed || e.Stopped {
		return false, nil
	}
	tally := make(map[thor.Bytes32]thor.Amount, len(e.Blocks))
	sum := thor.ZeroAmount
	for voter, rec := range e.lastVotes {
		w, err := tx.GetRepresentation(voter)
		if err != nil {
			return false, err
		}
		tally[rec.Hash] = tally[rec.Hash].Add(w)
		sum = sum.Add(w)
	}
	if sum.Cmp(onlineWeightMinimum) < 0 {
		return false, nil
	}

	var top thor.Bytes32
	topWeight, secondWeight := thor.ZeroAmount, thor.ZeroAmount
	for hash, w := range tally {
		if w.Cmp(topWeight) > 0 {
			secondWeight = topWeight
			top, topWeight = hash, w
		} else if w.Cmp(secondWeight) > 0 {
			secondWeight = w
		}
	}

	delta := onlineStake.MulPercent(quorumPct)
	if topWeight.Cmp(secondWeight) <= 0 {
		return false, nil
	}
	margin := topWeight.Sub(secondWeight)
	if margin.Cmp(delta) < 0 {
		return false, nil
	}

	e.Confirmed = true
	e.Winner = top
	if e.onConfirm != nil {
		if b, ok := e.Blocks[top]; ok {
			e.onConfirm(b)
		}
	}
	return true, nil
}

// referencedRoots returns the block-lattice hashes b's commit logically
// depends on, used to cascade-confirm a dependent single-candidate
// election once b's own election confirms.
func referencedRoots(b block.Block) []thor.Bytes32 {
	var out []thor.Bytes32
	add := func(h thor.Bytes32) {
		if !h.IsZero() {
			out = append(out, h)
		}
	}
	switch v := b.(type) {
	case *block.Open:
		add(v.Source())
	case *block.Send:
		add(v.Previous())
	case *block.Receive:
		add(v.Previous())
		add(v.Source())
	case *block.Change:
		add(v.Previous())
	case *block.State:
		add(v.Previous())
		add(v.Link())
	}
	return out
}
