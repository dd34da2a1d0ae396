package election

import (
	"context"
	"time"

	"github.com/ledgerlattice/corenode/co"
	"github.com/ledgerlattice/corenode/external"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

const (
	// minAnnouncementsBeforeEvict bounds how long a confirmed/stopped
	// election lingers before Tick evicts it, giving late stragglers one
	// last chance to observe the outcome.
	minAnnouncementsBeforeEvict = 4
	announceEveryNth            = 4
	logEveryNth                 = 50
	// announcementLong additionally opens elections on an unconfirmed
	// block's previous/source to unblock a stalled dependency chain.
	announcementLong  = 200
	maxRebroadcast    = 32
	maxConfirmRequest = 6
)

// Tick drives one pass of the periodic announcer over every live
// election. It evicts settled elections, and for elections still
// undecided, periodically rebroadcasts and requests confirmations.
func (m *Manager) Tick(tx *ledgerstore.Txn, onlineStake thor.Amount, peers external.PeerBroadcaster) {
	m.mu.Lock()
	roots := make([]thor.Bytes32, 0, len(m.byRoot))
	for root := range m.byRoot {
		roots = append(roots, root)
	}
	m.mu.Unlock()

	var toRebroadcast []thor.Bytes32
	var toRequestConfirm []thor.Bytes32

	for _, root := range roots {
		m.mu.Lock()
		e, ok := m.byRoot[root]
		m.mu.Unlock()
		if !ok {
			continue
		}
		e.Announcements++

		if (e.Confirmed || e.Stopped) && e.Announcements >= minAnnouncementsBeforeEvict {
			m.Evict(root)
			continue
		}
		if e.Confirmed || e.Stopped {
			continue
		}

		if e.Announcements%announceEveryNth == 0 {
			toRebroadcast = append(toRebroadcast, root)
		}
		if e.Announcements%logEveryNth == 0 {
			log.Debug("election still unconfirmed", "root", root, "candidates", len(e.Blocks), "voters", len(e.lastVotes))
		}
		if e.Announcements%announcementLong == 0 && m.Len() < maxCandidatesPerElection*4 {
			for _, b := range e.Blocks {
				for _, dep := range referencedRoots(b) {
					if _, exists := m.byRoot[dep]; !exists {
						m.Start(dep, b, nil)
					}
				}
			}
		}
		if len(toRequestConfirm) < maxConfirmRequest {
			toRequestConfirm = append(toRequestConfirm, root)
		}
	}

	if peers == nil {
		return
	}
	if len(toRebroadcast) > maxRebroadcast {
		toRebroadcast = toRebroadcast[:maxRebroadcast]
	}
	for _, root := range toRebroadcast {
		if e, ok := m.Get(root); ok {
			if b, ok := e.Blocks[e.Winner]; ok {
				peers.Rebroadcast(root, b)
			}
		}
	}
	if len(toRequestConfirm) > 0 {
		peers.RequestConfirmations(toRequestConfirm)
	}
}

// Run drives Tick on a fixed interval until ctx is cancelled, matching
// the teacher's goroutine-per-long-running-task convention.
func (m *Manager) Run(ctx context.Context, g *co.Goes, interval time.Duration, store *ledgerstore.Store, onlineStake func() thor.Amount, peers external.PeerBroadcaster) {
	g.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = store.View(func(tx *ledgerstore.Txn) error {
					m.Tick(tx, onlineStake(), peers)
					return nil
				})
			}
		}
	})
}
