package election_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/cryptoutil"
	"github.com/ledgerlattice/corenode/election"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

func newTestManager(t *testing.T) *election.Manager {
	t.Helper()
	m, err := election.NewManager(67, thor.AmountFromUint64(100), 16, 16)
	require.NoError(t, err)
	return m
}

func setWeight(t *testing.T, s *ledgerstore.Store, addr thor.Address, amount thor.Amount) {
	t.Helper()
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		return tx.AddRepresentation(addr, amount)
	}))
}

func TestManagerStartReturnsTrueOnExisting(t *testing.T) {
	m := newTestManager(t)
	root := thor.Bytes32{1}
	b := block.NewChange(thor.Bytes32{1}, thor.Address{2})

	existed := m.Start(root, b, nil)
	assert.False(t, existed)
	existed = m.Start(root, b, nil)
	assert.True(t, existed)
}

func TestManagerVoteConfirmsOnQuorum(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	m := newTestManager(t)

	voter, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	setWeight(t, s, voter.Address, thor.AmountFromUint64(1000))
	onlineStake := thor.AmountFromUint64(1000)

	var confirmedBlock block.Block
	root := thor.Bytes32{10}
	b := block.NewChange(thor.Bytes32{10}, thor.Address{4})
	m.Start(root, b, func(wb block.Block) { confirmedBlock = wb })

	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		_, processed, err := m.Vote(tx, voter.Address, 1, b.Hash(), thor.AmountFromUint64(1000), onlineStake, time.Now(), true)
		require.NoError(t, err)
		assert.True(t, processed)
		return nil
	}))

	e, ok := m.Get(root)
	require.True(t, ok)
	assert.True(t, e.Confirmed)
	assert.Equal(t, b.Hash(), e.Winner)
	require.NotNil(t, confirmedBlock)
	assert.Equal(t, b.Hash(), confirmedBlock.Hash())
}

func TestManagerVoteRejectsBelowQuorum(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	m := newTestManager(t)

	voterA, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	voterB, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	setWeight(t, s, voterA.Address, thor.AmountFromUint64(510))
	setWeight(t, s, voterB.Address, thor.AmountFromUint64(490))
	onlineStake := thor.AmountFromUint64(1000)

	root := thor.Bytes32{20}
	bA := block.NewChange(thor.Bytes32{20}, thor.Address{5})
	bB := block.NewChange(thor.Bytes32{20}, thor.Address{6})
	m.Start(root, bA, nil)
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		ok, err := m.Publish(tx, root, bB, onlineStake)
		require.NoError(t, err)
		require.True(t, ok)
		return nil
	}))

	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		_, processed, err := m.Vote(tx, voterA.Address, 1, bA.Hash(), thor.AmountFromUint64(510), onlineStake, time.Now(), true)
		require.NoError(t, err)
		assert.True(t, processed)
		_, processed, err = m.Vote(tx, voterB.Address, 1, bB.Hash(), thor.AmountFromUint64(490), onlineStake, time.Now(), true)
		require.NoError(t, err)
		assert.True(t, processed)
		return nil
	}))

	e, ok := m.Get(root)
	require.True(t, ok)
	// margin (510-490=20) is below the quorum delta (67% of 1000 = 670).
	assert.False(t, e.Confirmed)
}

func TestManagerVoteReplayDetection(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	m := newTestManager(t)

	voter, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	setWeight(t, s, voter.Address, thor.AmountFromUint64(10))
	onlineStake := thor.AmountFromUint64(1000)

	root := thor.Bytes32{30}
	b := block.NewChange(thor.Bytes32{30}, thor.Address{7})
	m.Start(root, b, nil)

	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		replay, processed, err := m.Vote(tx, voter.Address, 5, b.Hash(), thor.AmountFromUint64(10), onlineStake, time.Now(), true)
		require.NoError(t, err)
		assert.False(t, replay)
		assert.True(t, processed)

		replay, processed, err = m.Vote(tx, voter.Address, 5, b.Hash(), thor.AmountFromUint64(10), onlineStake, time.Now(), true)
		require.NoError(t, err)
		assert.True(t, replay)
		assert.False(t, processed)
		return nil
	}))
}

func TestManagerPublishRejectsLateEntrantBelowThreshold(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	m := newTestManager(t)

	root := thor.Bytes32{40}
	first := block.NewChange(thor.Bytes32{40}, thor.Address{1})
	m.Start(root, first, nil)

	onlineStake := thor.AmountFromUint64(1000)
	// Fill the election to its candidate cap with distinct representatives.
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		for i := 1; i < 10; i++ {
			b := block.NewChange(thor.Bytes32{40}, thor.Address{byte(i + 1)})
			ok, err := m.Publish(tx, root, b, onlineStake)
			require.NoError(t, err)
			require.True(t, ok)
		}
		// the 11th candidate with zero backing votes must be rejected.
		late := block.NewChange(thor.Bytes32{40}, thor.Address{99})
		ok, err := m.Publish(tx, root, late, onlineStake)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}
