package voteproc

import (
	"time"

	"github.com/inconshreveable/log15"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/cryptoutil"
	"github.com/ledgerlattice/corenode/election"
	"github.com/ledgerlattice/corenode/external"
	"github.com/ledgerlattice/corenode/gapcache"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

var log = log15.New("pkg", "voteproc")

// amplificationLagThreshold is how far behind the stored max vote's
// sequence a newly arrived vote must be before it earns a reply. Below
// this, silence avoids turning every stale vote into an amplification
// vector.
const amplificationLagThreshold = 10000

// Processor drains a Queue in batches, verifies signatures together,
// and routes each valid vote into the election it names.
type Processor struct {
	Queue   *Queue
	Manager *election.Manager
	Replier external.VoteReplier

	// Gaps and Requester feed the gap cache: a vote naming a hash with
	// no live election is evidence of a block this node hasn't seen
	// yet. Nil Gaps disables this (matching Replier's nil-disables
	// convention).
	Gaps           *gapcache.Cache
	Requester      external.BootstrapRequester
	BootstrapDelay time.Duration
}

// NewProcessor builds a Processor bounded at queueCapacity admitted
// votes, routing confirmed ballots into mgr and replying through
// replier (nil disables amplification-safe replies).
func NewProcessor(queueCapacity int, mgr *election.Manager, replier external.VoteReplier) *Processor {
	return &Processor{
		Queue:   NewQueue(queueCapacity),
		Manager: mgr,
		Replier: replier,
	}
}

// Submit admits a freshly received vote, classified by voterWeight
// against onlineStake.
func (p *Processor) Submit(v *block.Vote, sender external.PeerID, voterWeight, onlineStake thor.Amount) bool {
	return p.Queue.Admit(v, sender, voterWeight, onlineStake)
}

// ProcessBatch drains up to maxBatch queued votes, batch-verifies their
// signatures, and for each valid one retains the highest-sequence copy
// and routes it into the election matching any of its referenced
// hashes.
func (p *Processor) ProcessBatch(tx *ledgerstore.Txn, onlineStake thor.Amount, maxBatch int) error {
	batch := p.Queue.DrainBatch(maxBatch)
	if len(batch) == 0 {
		return nil
	}

	addrs := make([]thor.Address, len(batch))
	digests := make([]thor.Bytes32, len(batch))
	sigs := make([]thor.Signature, len(batch))
	for i, it := range batch {
		addrs[i] = it.Vote.Account
		digests[i] = it.Vote.SigningHash()
		sigs[i] = it.Vote.Signature
	}
	valid, err := cryptoutil.VerifyBatch(addrs, digests, sigs)
	if err != nil {
		return err
	}

	for i, it := range batch {
		if !valid[i] {
			continue
		}
		if err := p.processOne(tx, it, onlineStake); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) processOne(tx *ledgerstore.Txn, it pendingVote, onlineStake thor.Amount) error {
	if _, err := tx.VoteMax(it.Vote); err != nil {
		return err
	}

	weight, err := tx.GetRepresentation(it.Vote.Account)
	if err != nil {
		return err
	}

	matched := false
	now := time.Now()
	for _, h := range it.Vote.Hashes {
		_, processed, err := p.Manager.Vote(tx, it.Vote.Account, it.Vote.Sequence, h, weight, onlineStake, now, false)
		if err != nil {
			return err
		}
		if processed {
			matched = true
			continue
		}
		p.recordGap(h, it.Vote.Account, weight, onlineStake)
	}
	if matched {
		return nil
	}
	return p.maybeReplyWithMax(tx, it)
}

// recordGap files voter's weight behind hash in the gap cache when hash
// matched no live election, and schedules a bootstrap request once the
// accumulated weight crosses an applicable threshold.
func (p *Processor) recordGap(hash thor.Bytes32, voter thor.Address, weight, onlineStake thor.Amount) {
	if p.Gaps == nil {
		return
	}
	if p.Gaps.Vote(hash, voter, weight, onlineStake) {
		p.Gaps.Schedule(hash, p.BootstrapDelay, p.Requester)
	}
}

// maybeReplyWithMax sends the currently stored max vote for the
// account back to the sender when the sender is far enough behind to
// justify an amplification-safe reply.
func (p *Processor) maybeReplyWithMax(tx *ledgerstore.Txn, it pendingVote) error {
	if p.Replier == nil {
		return nil
	}
	maxVote, ok, err := tx.VoteGet(it.Vote.Account)
	if err != nil || !ok {
		return err
	}
	if maxVote.Sequence < it.Vote.Sequence+amplificationLagThreshold {
		return nil
	}
	log.Debug("replying with max vote to lagging sender", "account", it.Vote.Account, "sender_seq", it.Vote.Sequence, "max_seq", maxVote.Sequence)
	p.Replier.ReplyWithVote(it.Sender, maxVote)
	return nil
}
