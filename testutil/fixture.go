// Package testutil builds a ready-to-use genesis-funded store for tests
// across ledger, blockproc, election, and voteproc, the way
// test/test_chain.go's TempChain gives consensus tests a shared fixture
// instead of every test file hand-rolling its own chain.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/cryptoutil"
	"github.com/ledgerlattice/corenode/genesis"
	"github.com/ledgerlattice/corenode/ledger"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

// Fixture wraps an in-memory store already carrying a committed devnet
// genesis, plus the bookkeeping needed to spend down the genesis
// account's balance across successive Fund calls.
type Fixture struct {
	t testing.TB

	Store     *ledgerstore.Store
	Processor *ledger.Processor
	Genesis   *genesis.Genesis

	genesisKey     *cryptoutil.KeyPair
	genesisHead    thor.Bytes32
	genesisBalance thor.Amount
}

// New builds a Fixture: a fresh in-memory store with the devnet genesis
// already committed through a zero-threshold ledger.Processor, so
// tests don't need to construct proof-of-work.
func New(t testing.TB) *Fixture {
	t.Helper()
	store := ledgerstore.NewMem()
	t.Cleanup(store.Close)

	g := genesis.NewDevnet()
	ob, err := g.Build(store)
	require.NoError(t, err)

	return &Fixture{
		t:         t,
		Store:     store,
		Processor: &ledger.Processor{},
		Genesis:   g,
		genesisKey: &cryptoutil.KeyPair{
			Private: g.Account().PrivateKey,
			Address: g.Account().Address,
		},
		genesisHead:    ob.Hash(),
		genesisBalance: thor.MaxAmount,
	}
}

// Fund sends amount from the genesis account to dest, committing the
// Send block and returning its hash as the pending credit dest can
// Open or Receive against.
func (f *Fixture) Fund(dest thor.Address, amount thor.Amount) thor.Bytes32 {
	f.t.Helper()
	f.genesisBalance = f.genesisBalance.Sub(amount)

	send := block.NewSend(f.genesisHead, dest, f.genesisBalance)
	signed := send.WithSignature(f.genesisKey.Sign(send.Hash())).(*block.Send)

	require.NoError(f.t, f.Store.Update(func(tx *ledgerstore.Txn) error {
		res, err := f.Processor.Process(tx, signed)
		require.NoError(f.t, err)
		require.Equal(f.t, ledger.Progress, res.Code)
		return nil
	}))

	f.genesisHead = signed.Hash()
	return signed.Hash()
}

// OpenAccount funds a freshly generated account with amount and opens
// it as its own representative, returning the key pair and the Open
// block's hash (the account's new head).
func (f *Fixture) OpenAccount(amount thor.Amount) (*cryptoutil.KeyPair, thor.Bytes32) {
	f.t.Helper()
	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(f.t, err)

	source := f.Fund(kp.Address, amount)

	ob := block.NewOpen(kp.Address, kp.Address, source)
	signed := ob.WithSignature(kp.Sign(ob.Hash())).(*block.Open)

	require.NoError(f.t, f.Store.Update(func(tx *ledgerstore.Txn) error {
		res, err := f.Processor.Process(tx, signed)
		require.NoError(f.t, err)
		require.Equal(f.t, ledger.Progress, res.Code)
		return nil
	}))

	return kp, signed.Hash()
}
