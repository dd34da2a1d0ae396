// Package blockproc implements the block processor: it drains batches
// of arriving blocks across three lanes (state, non-state, forced),
// opens one write transaction per batch, commits each valid block
// through the ledger state machine, and on progress notifies the
// confirmation observers and releases any dependents the unchecked
// table was holding on this hash.
//
// Grounded on cga/node's block_processor outline (batched commit,
// gap-dependent release) adapted to this tree's ledger/ledgerstore
// split.
package blockproc

import (
	"github.com/inconshreveable/log15"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/cryptoutil"
	"github.com/ledgerlattice/corenode/ledger"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

var log = log15.New("pkg", "blockproc")

// Observers are the core -> consumer notification hooks. on_vote and
// on_disconnect are the vote processor's and the transport's concerns
// respectively; this package only fires the two block/account
// observers that follow directly from a ledger commit.
type Observers struct {
	OnBlockConfirmed        func(b block.Block, account thor.Address, amount thor.Amount, isStateSend bool)
	OnAccountBalanceChanged func(account thor.Address, isPending bool)
}

// Processor drains arriving blocks into the ledger state machine.
type Processor struct {
	Ledger    *ledger.Processor
	Observers Observers

	// BatchSize bounds how many blocks one ProcessBatch call commits
	// before returning.
	BatchSize int
}

// NewProcessor builds a Processor around lg, bounding each batch at
// batchSize blocks.
func NewProcessor(lg *ledger.Processor, observers Observers, batchSize int) *Processor {
	return &Processor{Ledger: lg, Observers: observers, BatchSize: batchSize}
}

// BatchResult pairs an arriving block with its processing outcome.
type BatchResult struct {
	Block  block.Block
	Result ledger.Result
	Err    error
}

// ProcessBatch commits up to p.BatchSize non-state blocks serially
// against tx, in arrival order.
func (p *Processor) ProcessBatch(tx *ledgerstore.Txn, blocks []block.Block) ([]BatchResult, error) {
	if len(blocks) > p.BatchSize {
		blocks = blocks[:p.BatchSize]
	}
	out := make([]BatchResult, 0, len(blocks))
	for _, b := range blocks {
		res, err := p.processOne(tx, b)
		out = append(out, BatchResult{Block: b, Result: res, Err: err})
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// ProcessStateBatch verifies every block's signature together before
// committing any of them, trading per-block verification for one
// batched check. Blocks failing the batch check are reported as
// BadSignature without ever reaching the ledger processor.
func (p *Processor) ProcessStateBatch(tx *ledgerstore.Txn, blocks []*block.State) ([]BatchResult, error) {
	if len(blocks) > p.BatchSize {
		blocks = blocks[:p.BatchSize]
	}
	addrs := make([]thor.Address, len(blocks))
	digests := make([]thor.Bytes32, len(blocks))
	sigs := make([]thor.Signature, len(blocks))
	for i, b := range blocks {
		addrs[i] = b.Account()
		digests[i] = b.Hash()
		sigs[i] = b.Signature()
	}
	valid, err := cryptoutil.VerifyBatch(addrs, digests, sigs)
	if err != nil {
		return nil, err
	}

	out := make([]BatchResult, 0, len(blocks))
	for i, b := range blocks {
		if !valid[i] {
			out = append(out, BatchResult{Block: b, Result: ledger.Result{Code: ledger.BadSignature}})
			continue
		}
		res, err := p.processOne(tx, b)
		out = append(out, BatchResult{Block: b, Result: res, Err: err})
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// ProcessForced commits b ahead of normal arrivals, first rolling back
// whatever block currently occupies its root if that block is a
// different hash. It is used when an election confirms an alternative
// to the locally installed head and that head must be replaced.
func (p *Processor) ProcessForced(tx *ledgerstore.Txn, b block.Block) (ledger.Result, error) {
	conflict, hasConflict, err := p.conflictingHead(tx, b)
	if err != nil {
		return ledger.Result{}, err
	}
	if hasConflict && conflict != b.Hash() {
		if err := ledger.Rollback(tx, conflict); err != nil {
			return ledger.Result{}, err
		}
		log.Debug("forced rollback ahead of election-confirmed insertion", "rolled_back", conflict, "inserting", b.Hash())
	}
	return p.processOne(tx, b)
}

// conflictingHead returns the hash currently installed at b's root
// (b.Previous() for a continuation, the opened account's existing head
// for an opening block), if any.
func (p *Processor) conflictingHead(tx *ledgerstore.Txn, b block.Block) (thor.Bytes32, bool, error) {
	if !b.Previous().IsZero() {
		succ, err := tx.BlockSuccessor(b.Previous())
		if err != nil || succ.IsZero() {
			return thor.Bytes32{}, false, err
		}
		return succ, true, nil
	}
	account := b.Root()
	info, ok, err := tx.GetAccount(account)
	if err != nil || !ok {
		return thor.Bytes32{}, false, err
	}
	return info.Head, true, nil
}

// processOne runs b through the ledger processor and, on progress,
// fires observers and releases any dependents the unchecked table
// holds against this hash.
func (p *Processor) processOne(tx *ledgerstore.Txn, b block.Block) (ledger.Result, error) {
	res, err := p.Ledger.Process(tx, b)
	if err != nil {
		return res, err
	}
	if res.Code != ledger.Progress {
		if dep, ok := gapDependency(b, res.Code); ok {
			if err := tx.UncheckedPut(dep, b.Hash(), b); err != nil {
				return res, err
			}
		}
		return res, nil
	}

	if p.Observers.OnBlockConfirmed != nil {
		p.Observers.OnBlockConfirmed(b, res.Account, res.Amount, res.IsSendState)
	}
	if p.Observers.OnAccountBalanceChanged != nil {
		p.Observers.OnAccountBalanceChanged(res.Account, false)
		if res.HasPendingAccount {
			p.Observers.OnAccountBalanceChanged(res.PendingAccount, true)
		}
	}

	if err := p.releaseDependents(tx, b.Hash()); err != nil {
		return res, err
	}
	return res, nil
}

// releaseDependents re-drives every block the unchecked table holds against
// hash now that hash itself has committed, recursing through chains of
// dependents.
func (p *Processor) releaseDependents(tx *ledgerstore.Txn, hash thor.Bytes32) error {
	waiting, err := tx.UncheckedGet(hash)
	if err != nil {
		return err
	}
	for _, dep := range waiting {
		if err := tx.UncheckedDelete(hash, dep.Hash()); err != nil {
			return err
		}
		if _, err := p.processOne(tx, dep); err != nil {
			return err
		}
	}
	return nil
}

// gapDependency returns the hash code identifies as missing, so the
// block can be filed in the unchecked table keyed by that dependency.
func gapDependency(b block.Block, code ledger.Code) (thor.Bytes32, bool) {
	switch code {
	case ledger.GapPrevious:
		return b.Previous(), true
	case ledger.GapSource, ledger.GapEpochOpenPending:
		switch v := b.(type) {
		case *block.Open:
			return v.Source(), true
		case *block.Receive:
			return v.Source(), true
		case *block.State:
			return v.Link(), true
		}
	}
	return thor.Bytes32{}, false
}
