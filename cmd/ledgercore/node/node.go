// Package node assembles the standalone pieces (ledger, election,
// voteproc, gapcache, blockproc, api) into one running instance,
// mirroring cmd/thor/node.Node's role as the composition root that
// drives per-concern loops on a shared co.Goes.
package node

import (
	"context"
	"time"

	"github.com/gorilla/mux"
	"github.com/inconshreveable/log15"

	"github.com/ledgerlattice/corenode/api"
	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/blockproc"
	"github.com/ledgerlattice/corenode/co"
	"github.com/ledgerlattice/corenode/config"
	"github.com/ledgerlattice/corenode/election"
	"github.com/ledgerlattice/corenode/external"
	"github.com/ledgerlattice/corenode/gapcache"
	"github.com/ledgerlattice/corenode/genesis"
	"github.com/ledgerlattice/corenode/ledger"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
	"github.com/ledgerlattice/corenode/voteproc"
)

var log = log15.New("pkg", "node")

// electionHistorySize bounds Manager's confirmation diagnostics ring;
// it isn't config-tunable because operators never need to size it to
// their deployment the way queue/cache capacities are.
const electionHistorySize = 1024

// incomingBlockQueueSize bounds how many arrived blocks await a
// ProcessBatch pass before SubmitBlock starts blocking the caller,
// mirroring voteproc.Queue's bounded-admission discipline applied to
// blocks instead of votes.
const incomingBlockQueueSize = 4096

// tickInterval paces every background loop (election announcer, vote
// processor, block processor), each running as its own goroutine driven
// off a ticker.
const tickInterval = time.Second

// Collaborators bundles the external-package implementations a Node is
// wired against. Nil fields disable the corresponding behavior (no
// peer gossip, no bootstrap chasing, no amplification-safe replies),
// same convention voteproc.Processor and election.Manager already use.
type Collaborators struct {
	Peers     external.PeerBroadcaster
	Requester external.BootstrapRequester
	Replier   external.VoteReplier
}

// Node owns one store and every background task operating on it.
type Node struct {
	cfg   *config.Config
	store *ledgerstore.Store

	ledger   *ledger.Processor
	election *election.Manager
	votes    *voteproc.Processor
	gaps     *gapcache.Cache
	blocks   *blockproc.Processor
	api      *api.Server

	collab    Collaborators
	goes      co.Goes
	cancel    context.CancelFunc
	incoming  chan block.Block
	confirmed co.Signal
	ready     bool
}

// New wires every component from cfg, but starts nothing; call Start
// to begin the background loops.
func New(cfg *config.Config, collab Collaborators) (*Node, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	gaps, err := gapcache.New(
		cfg.GapCache.Size,
		cfg.GapCache.LegacyNumerator,
		thor.AmountFromUint64(cfg.GapCache.OnlineWeightMinimum),
	)
	if err != nil {
		store.Close()
		return nil, err
	}
	gaps.DisableLegacy = cfg.GapCache.DisableLegacyBootstrap
	gaps.DisableLazy = cfg.GapCache.DisableLazyBootstrap

	mgr, err := election.NewManager(
		cfg.Election.QuorumPercent,
		thor.AmountFromUint64(cfg.GapCache.OnlineWeightMinimum),
		electionHistorySize,
		cfg.Election.RecentCacheSize,
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	votes := voteproc.NewProcessor(cfg.VoteQueue.Capacity, mgr, collab.Replier)
	votes.Gaps = gaps
	votes.Requester = collab.Requester
	votes.BootstrapDelay = time.Duration(cfg.GapCache.BootstrapDelayMS) * time.Millisecond

	ledgerProc := &ledger.Processor{
		WorkThreshold:  cfg.WorkThreshold,
		EpochAuthority: cfg.EpochAuthority,
	}

	n := &Node{
		cfg:      cfg,
		store:    store,
		ledger:   ledgerProc,
		election: mgr,
		votes:    votes,
		gaps:     gaps,
		collab:   collab,
		incoming: make(chan block.Block, incomingBlockQueueSize),
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = voteproc.DefaultBatchSize
	}
	n.blocks = blockproc.NewProcessor(ledgerProc, blockproc.Observers{
		OnBlockConfirmed:        n.onBlockConfirmed,
		OnAccountBalanceChanged: n.onAccountBalanceChanged,
	}, batchSize)

	n.api = api.New(n)
	return n, nil
}

func openStore(cfg *config.Config) (*ledgerstore.Store, error) {
	if cfg.DataDir == "" || cfg.DataDir == ":memory:" {
		return ledgerstore.NewMem(), nil
	}
	return ledgerstore.Open(cfg.DataDir, 256, 256)
}

// Genesis ensures s.DataDir's store has g's opening block committed,
// matching cmd/thor main's "ensure genesis" bootstrap step. It is not
// idempotent: on a store that already holds g's opening block, Build
// reports it as Old and Genesis returns that error.
func (n *Node) Genesis(g *genesis.Genesis) error {
	_, err := g.Build(n.store)
	return err
}

// Store exposes the underlying store for callers assembling CLI
// subcommands (dump, inspect) without running the full node.
func (n *Node) Store() *ledgerstore.Store { return n.store }

// Gaps exposes the gap cache, mainly so tests can assert that config's
// bootstrap-disable flags reached the component they tune.
func (n *Node) Gaps() *gapcache.Cache { return n.gaps }

// Router exposes the ambient HTTP surface for cmd/ledgercore/main.go to
// serve on cfg.MetricsAddr.
func (n *Node) Router() *mux.Router { return n.api.Router() }

// Healthy reports whether the node has completed startup and has a
// usable store. Implements api.HealthChecker.
func (n *Node) Healthy() bool { return n.ready }

// onlineStake reads the current online-weight baseline from the store,
// used by every background loop's onlineStake callback.
func (n *Node) onlineStake() thor.Amount {
	var max thor.Amount
	_ = n.store.View(func(tx *ledgerstore.Txn) error {
		var err error
		max, err = tx.OnlineWeightMax()
		return err
	})
	return max
}

func (n *Node) onBlockConfirmed(b block.Block, _ thor.Address, _ thor.Amount, _ bool) {
	n.gaps.Learn(b.Hash())
	if n.collab.Peers != nil {
		n.collab.Peers.Rebroadcast(b.Root(), b)
	}
	n.confirmed.Broadcast(b.Hash().String())
}

// OnConfirmed returns a Waiter woken on every committed block, letting
// a caller (e.g. a submit-and-wait API handler) block until the next
// confirmation rather than poll the store.
func (n *Node) OnConfirmed() co.Waiter { return n.confirmed.NewWaiter() }

func (n *Node) onAccountBalanceChanged(_ thor.Address, _ bool) {}

// SubmitVote admits a freshly received vote for eventual routing.
func (n *Node) SubmitVote(v *block.Vote, sender external.PeerID, voterWeight thor.Amount) bool {
	return n.votes.Submit(v, sender, voterWeight, n.onlineStake())
}

// SubmitBlock enqueues an arrived block for the next ProcessBatch pass,
// blocking only if the queue is already full.
func (n *Node) SubmitBlock(b block.Block) {
	n.incoming <- b
}

// Start launches every background loop on a fresh co.Goes and marks
// the node healthy once the block-processor loop is running.
func (n *Node) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.election.Run(ctx, &n.goes, tickInterval, n.store, n.onlineStake, n.collab.Peers)
	n.votes.Run(ctx, &n.goes, tickInterval, n.store, n.onlineStake)
	n.goes.Go(func() { n.blockLoop(ctx) })

	n.ready = true
	log.Info("node started", "data_dir", n.cfg.DataDir)
}

// blockLoop drains incoming in small batches, committing each through
// the block processor. It is the one loop this package drives directly,
// since blockproc.Processor has no Run of its own: batching
// arrival-ordered blocks needs the channel this package owns.
func (n *Node) blockLoop(ctx context.Context) {
	const maxBatch = 256
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-n.incoming:
			n.commitBatch(drainUpTo(n.incoming, b, maxBatch))
		case <-ticker.C:
		}
	}
}

// drainUpTo collects first plus whatever else is immediately available
// on ch, up to max total, without blocking for more.
func drainUpTo(ch <-chan block.Block, first block.Block, max int) []block.Block {
	batch := make([]block.Block, 1, max)
	batch[0] = first
	for len(batch) < max {
		select {
		case b := <-ch:
			batch = append(batch, b)
		default:
			return batch
		}
	}
	return batch
}

func (n *Node) commitBatch(batch []block.Block) {
	if err := n.store.Update(func(tx *ledgerstore.Txn) error {
		_, err := n.blocks.ProcessBatch(tx, batch)
		return err
	}); err != nil {
		log.Error("block batch commit failed", "err", err)
	}
}

// Stop cancels every background loop and waits for them to return, then
// closes the store.
func (n *Node) Stop() {
	n.ready = false
	if n.cancel != nil {
		n.cancel()
	}
	n.goes.Wait()
	n.store.Close()
}
