// Package external declares the interface contracts for collaborators
// that sit outside this tree's scope — UDP wire parsing, bootstrap
// protocols, wallet key management, and the RPC/IPC façade. The core
// (election, voteproc, blockproc) is wired against these interfaces so
// it can be driven by a real network/wallet implementation without the
// core itself implementing one; only the interface contracts are
// preserved here.
package external

import (
	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/thor"
)

// PeerBroadcaster republishes election state to the peer network. An
// election's Publish/confirm path calls this rather than touching a
// socket directly (UDP wire parsing/bootstrap protocols are Non-goals).
type PeerBroadcaster interface {
	// Rebroadcast announces block as a live candidate under root.
	Rebroadcast(root thor.Bytes32, b block.Block)
	// RequestConfirmations asks remote nodes to vote on roots,
	// coalescing multiple roots into one message per target.
	RequestConfirmations(roots []thor.Bytes32)
}

// BootstrapRequester fetches a block the gap cache has decided is
// popular enough to chase. Bootstrap protocols themselves are out of
// scope for this tree; this is the seam the gap cache calls through.
type BootstrapRequester interface {
	RequestBlock(hash thor.Bytes32)
}

// WalletSigner signs and submits blocks on behalf of a local account.
// Wallet key management is a Non-goal; callers needing to originate
// blocks (rather than merely validate/store them) go through this.
type WalletSigner interface {
	Sign(account thor.Address, digest thor.Bytes32) (thor.Signature, error)
}

// PeerID identifies the network endpoint a vote or block arrived from
// or should be replied to. The concrete peer table and transport
// address format are UDP-layer concerns the Non-goals exclude; callers
// needing an actual wire address round-trip it through their own peer
// registry and hand voteproc/blockproc only this opaque handle.
type PeerID string

// VoteReplier sends the current max vote for an account back to a
// single peer, used by the vote processor's amplification-safe reply
// to a sender whose sequence lags far enough behind.
type VoteReplier interface {
	ReplyWithVote(sender PeerID, v *block.Vote)
}
