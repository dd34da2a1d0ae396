package voteproc

import (
	"context"
	"time"

	"github.com/ledgerlattice/corenode/co"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

// DefaultBatchSize bounds how many votes one drain/verify/route pass
// handles, matching the block processor's own bounded-count-or-time-
// budget discipline applied here to votes.
const DefaultBatchSize = 256

// Run drives ProcessBatch on a single dedicated goroutine until ctx is
// cancelled.
func (p *Processor) Run(ctx context.Context, g *co.Goes, interval time.Duration, store *ledgerstore.Store, onlineStake func() thor.Amount) {
	g.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = store.Update(func(tx *ledgerstore.Txn) error {
					return p.ProcessBatch(tx, onlineStake(), DefaultBatchSize)
				})
			}
		}
	})
}
