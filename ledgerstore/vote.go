package ledgerstore

import (
	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/thor"
)

// VoteMax retains the highest-sequence copy of v per representative. It
// returns whether v was newer (and thus stored).
func (t *Txn) VoteMax(v *block.Vote) (bool, error) {
	existing, err := t.get(tableVote, v.Account[:])
	if err != nil {
		return false, err
	}
	if existing != nil {
		prev, err := block.DecodeVote(existing)
		if err != nil {
			return false, err
		}
		if prev.Sequence >= v.Sequence {
			return false, nil
		}
	}
	return true, t.put(tableVote, v.Account[:], v.Encode())
}

// VoteGet returns the latest recorded vote for representative addr.
func (t *Txn) VoteGet(addr thor.Address) (*block.Vote, bool, error) {
	v, err := t.get(tableVote, addr[:])
	if err != nil || v == nil {
		return nil, false, err
	}
	vote, err := block.DecodeVote(v)
	return vote, true, err
}
