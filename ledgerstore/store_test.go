package ledgerstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/cryptoutil"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

func TestAccountRoundTripAndEpochMigrationOnWrite(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()

	key, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	info := ledgerstore.AccountInfo{
		Head:    thor.Bytes32{1},
		Balance: thor.AmountFromUint64(10),
		Epoch:   thor.EpochV0,
	}
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		return tx.PutAccount(key.Address, info)
	}))

	var got ledgerstore.AccountInfo
	var ok bool
	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		var err error
		got, ok, err = tx.GetAccount(key.Address)
		return err
	}))
	require.True(t, ok)
	assert.Equal(t, info.Head, got.Head)
	assert.Equal(t, info.Balance, got.Balance)

	// promote to v1; must disappear from v0.
	info.Epoch = thor.EpochV1
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		return tx.PutAccount(key.Address, info)
	}))
	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		var err error
		got, ok, err = tx.GetAccount(key.Address)
		return err
	}))
	require.True(t, ok)
	assert.Equal(t, thor.EpochV1, got.Epoch)
}

func TestPendingRoundTrip(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()

	acct := thor.Bytes32{9}
	hash := thor.Bytes32{8}
	info := ledgerstore.PendingInfo{Source: thor.Bytes32{7}, Amount: thor.AmountFromUint64(5), Epoch: thor.EpochV0}

	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		return tx.PutPending(acct, hash, info)
	}))

	var got ledgerstore.PendingInfo
	var ok bool
	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		var err error
		got, ok, err = tx.GetPending(acct, hash)
		return err
	}))
	require.True(t, ok)
	assert.Equal(t, info, got)

	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		return tx.DeletePending(acct, hash)
	}))
	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		var err error
		got, ok, err = tx.GetPending(acct, hash)
		return err
	}))
	assert.False(t, ok)
}

func TestBlockPutGetProbeOrder(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()

	key, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	ob, err := new(block.OpenBuilder).
		Account(key.Address).
		Representative(key.Address).
		Source(thor.Bytes32{1}).
		Signature(thor.Signature{}).
		Work(thor.Work(1)).
		Build()
	require.NoError(t, err)

	hash := ob.Hash()
	sb := block.Sideband{BlockType: block.TypeOpen, Account: key.Address, Height: 1}

	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		return tx.BlockPut(hash, ob, sb)
	}))

	var gotBlock block.Block
	var gotSb block.Sideband
	var ok bool
	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		var err error
		gotBlock, gotSb, ok, err = tx.BlockGet(hash)
		return err
	}))
	require.True(t, ok)
	assert.Equal(t, hash, gotBlock.Hash())
	assert.Equal(t, key.Address, gotSb.Account)
	assert.Equal(t, uint64(1), gotSb.Height)
}

func TestVoteMaxKeepsHighestSequence(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()

	key, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	v1 := &block.Vote{Account: key.Address, Sequence: 1, Hashes: []thor.Bytes32{{1}}}
	v1.Sign(key)
	v2 := &block.Vote{Account: key.Address, Sequence: 2, Hashes: []thor.Bytes32{{2}}}
	v2.Sign(key)

	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		stored, err := tx.VoteMax(v1)
		require.NoError(t, err)
		assert.True(t, stored)
		return nil
	}))
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		// replay of the older sequence must not overwrite.
		stored, err := tx.VoteMax(v1)
		require.NoError(t, err)
		assert.False(t, stored)
		stored, err = tx.VoteMax(v2)
		require.NoError(t, err)
		assert.True(t, stored)
		return nil
	}))

	var got *block.Vote
	var ok bool
	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		var err error
		got, ok, err = tx.VoteGet(key.Address)
		return err
	}))
	require.True(t, ok)
	assert.Equal(t, uint64(2), got.Sequence)
}

func TestMergedIteratorListsAccountOnce(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()

	addr := thor.Bytes32{1}
	infoV0 := ledgerstore.AccountInfo{Head: thor.Bytes32{0xa}, Epoch: thor.EpochV0}

	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		return tx.PutAccount(addr, infoV0)
	}))

	count := 0
	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		it := tx.IterateAccounts()
		defer it.Release()
		for it.Next() {
			count++
			got, err := ledgerstore.DecodeAccountInfo(it.Value())
			require.NoError(t, err)
			assert.Equal(t, infoV0.Head, got.Head)
		}
		return it.Error()
	}))
	assert.Equal(t, 1, count)
}
