// Package genesis builds the fixed starting state a fresh store is
// seeded with: a single genesis account holding the entire currency
// supply, opened by consuming a pending credit this package fabricates
// directly (there is no earlier sender to receive it from).
package genesis

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/ledger"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

// DevAccount pairs a deterministic development key with its derived
// address, used by local devnets and tests that need known, reusable
// identities instead of freshly random ones.
type DevAccount struct {
	PrivateKey ed25519.PrivateKey
	Address    thor.Address
}

// devAccountSeeds are fixed 32-byte Ed25519 seeds, one per dev account.
// Keeping them as literal seeds (rather than generating at init time)
// makes every devnet run produce the same ten addresses.
var devAccountSeeds = [10]thor.Bytes32{
	{0x01}, {0x02}, {0x03}, {0x04}, {0x05},
	{0x06}, {0x07}, {0x08}, {0x09}, {0x0a},
}

// DevAccounts returns the fixed set of development accounts used by
// NewDevnet's genesis account and by tests that need a known identity.
func DevAccounts() []DevAccount {
	out := make([]DevAccount, len(devAccountSeeds))
	for i, seed := range devAccountSeeds {
		priv := ed25519.NewKeyFromSeed(seed[:])
		out[i] = DevAccount{
			PrivateKey: priv,
			Address:    thor.BytesToBytes32(priv.Public().(ed25519.PublicKey)),
		}
	}
	return out
}

// genesisSource is the fabricated pending key the genesis account's
// Open block consumes. It carries no real sender; it exists only so
// the account-opening precondition ("a pending entry exists") holds
// without needing a predecessor block.
var genesisSource = thor.Bytes32{0xfe, 0xed, 0xfa, 0xce}

// Genesis describes one network's fixed starting point: its name (for
// operator-facing labeling, e.g. log lines and config defaults), the
// timestamp baked into its identity, and the account the entire supply
// opens into.
type Genesis struct {
	name      string
	timestamp uint64
	account   DevAccount
	id        thor.Bytes32
}

// ID uniquely identifies this genesis configuration, so two nodes can
// cheaply confirm they're running the same network before syncing.
func (g *Genesis) ID() thor.Bytes32 { return g.id }

// Name returns the network label ("devnet", "mainnet", ...).
func (g *Genesis) Name() string { return g.name }

// Timestamp returns the Unix timestamp baked into this genesis's ID.
func (g *Genesis) Timestamp() uint64 { return g.timestamp }

// Account returns the account the genesis supply is opened into.
func (g *Genesis) Account() DevAccount { return g.account }

// NewDevnet builds the standard devnet genesis: the whole supply opens
// into DevAccounts()[0], pinned to the fixed devnetGenesisTimestamp so
// every call yields the same ID. Use NewDevnetCustomTimestamp for a
// devnet genesis with a different timestamp.
func NewDevnet() *Genesis {
	return newGenesis("devnet", devnetTimestamp())
}

// NewDevnetCustomTimestamp builds a devnet genesis pinned to timestamp,
// so repeated calls with the same value always produce the same ID.
func NewDevnetCustomTimestamp(timestamp uint64) *Genesis {
	return newGenesis("devnet", timestamp)
}

func newGenesis(name string, timestamp uint64) *Genesis {
	account := DevAccounts()[0]
	g := &Genesis{name: name, timestamp: timestamp, account: account}
	g.id = computeID(name, timestamp, account.Address, genesisSource)
	return g
}

func computeID(name string, timestamp uint64, account thor.Address, source thor.Bytes32) thor.Bytes32 {
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], timestamp)
	return thor.Blake2b256([]byte(name), tsBuf[:], account[:], source[:])
}

// devnetTimestamp is the fixed moment NewDevnet's genesis carries,
// chosen once so that two NewDevnet() calls within the same process
// (or across processes sharing this binary) always agree on the
// genesis ID without needing wall-clock time at genesis-build time
// (time.Now is avoided here on purpose: a node's identity must not
// depend on when it happened to start).
const devnetGenesisTimestamp = 1700000000

func devnetTimestamp() uint64 { return devnetGenesisTimestamp }

// Build seeds s with this genesis's starting state: the fabricated
// pending credit and the Open block that consumes it, carrying the
// full thor.MaxAmount supply onto the genesis account. Calling Build
// against a store that already holds the genesis Open returns an
// error: the processor reports the block as Old.
func (g *Genesis) Build(s *ledgerstore.Store) (*block.Open, error) {
	ob := block.NewOpen(g.account.Address, g.account.Address, genesisSource)
	hash := ob.Hash()
	sig := ed25519.Sign(g.account.PrivateKey, hash[:])
	signed, ok := ob.WithSignature(thor.BytesToSignature(sig)).(*block.Open)
	if !ok {
		panic("genesis: WithSignature changed type")
	}

	err := s.Update(func(tx *ledgerstore.Txn) error {
		if err := tx.PutPending(g.account.Address, genesisSource, ledgerstore.PendingInfo{
			Source: g.account.Address,
			Amount: thor.MaxAmount,
			Epoch:  thor.EpochV0,
		}); err != nil {
			return err
		}
		p := &ledger.Processor{}
		res, err := p.Process(tx, signed)
		if err != nil {
			return err
		}
		if res.Code != ledger.Progress {
			return genesisProcessError{res.Code}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return signed, nil
}

type genesisProcessError struct{ code ledger.Code }

func (e genesisProcessError) Error() string {
	return "genesis: opening block rejected: " + e.code.String()
}
