package blockproc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/blockproc"
	"github.com/ledgerlattice/corenode/cryptoutil"
	"github.com/ledgerlattice/corenode/ledger"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

func signOpen(t *testing.T, kp *cryptoutil.KeyPair, rep thor.Address, source thor.Bytes32) *block.Open {
	t.Helper()
	b := block.NewOpen(kp.Address, rep, source)
	out, ok := b.WithSignature(kp.Sign(b.Hash())).(*block.Open)
	require.True(t, ok)
	return out
}

func signSend(t *testing.T, kp *cryptoutil.KeyPair, previous thor.Bytes32, dest thor.Address, balance thor.Amount) *block.Send {
	t.Helper()
	b := block.NewSend(previous, dest, balance)
	out, ok := b.WithSignature(kp.Sign(b.Hash())).(*block.Send)
	require.True(t, ok)
	return out
}

func seedPending(t *testing.T, s *ledgerstore.Store, dest thor.Address, source thor.Bytes32, amount thor.Amount) {
	t.Helper()
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		return tx.PutPending(dest, source, ledgerstore.PendingInfo{Source: thor.Address{0xee}, Amount: amount, Epoch: thor.EpochV0})
	}))
}

func newTestProcessor(batchSize int, observers blockproc.Observers) *blockproc.Processor {
	return blockproc.NewProcessor(&ledger.Processor{WorkThreshold: 0}, observers, batchSize)
}

func TestProcessBatchFiresObserversOnProgress(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	source := thor.Bytes32{1, 2, 3}
	amount := thor.AmountFromUint64(500)
	seedPending(t, s, kp.Address, source, amount)

	var confirmedAccount thor.Address
	var confirmedAmount thor.Amount
	var balanceChanges []thor.Address
	p := newTestProcessor(16, blockproc.Observers{
		OnBlockConfirmed: func(b block.Block, account thor.Address, amt thor.Amount, isStateSend bool) {
			confirmedAccount, confirmedAmount = account, amt
		},
		OnAccountBalanceChanged: func(account thor.Address, isPending bool) {
			balanceChanges = append(balanceChanges, account)
		},
	})

	ob := signOpen(t, kp, kp.Address, source)
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		results, err := p.ProcessBatch(tx, []block.Block{ob})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ledger.Progress, results[0].Result.Code)
		return nil
	}))

	assert.Equal(t, kp.Address, confirmedAccount)
	assert.Equal(t, amount, confirmedAmount)
	assert.Contains(t, balanceChanges, kp.Address)
}

func TestProcessBatchQueuesGapPreviousAndReleasesOnArrival(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newTestProcessor(16, blockproc.Observers{})

	sender, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	receiver, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	openSource := thor.Bytes32{1}
	openAmount := thor.AmountFromUint64(10_000)
	seedPending(t, s, sender.Address, openSource, openAmount)
	opening := signOpen(t, sender, sender.Address, openSource)
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		_, err := p.ProcessBatch(tx, []block.Block{opening})
		return err
	}))

	send := signSend(t, sender, opening.Hash(), receiver.Address, thor.AmountFromUint64(9_000))

	var confirmedHashes []thor.Bytes32
	p.Observers.OnBlockConfirmed = func(b block.Block, account thor.Address, amt thor.Amount, isStateSend bool) {
		confirmedHashes = append(confirmedHashes, b.Hash())
	}

	// a second send referencing `send`'s hash as its previous arrives
	// before `send` itself: it must be parked as gap_previous.
	dangling := signSend(t, sender, send.Hash(), receiver.Address, thor.AmountFromUint64(8_000))
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		results, err := p.ProcessBatch(tx, []block.Block{dangling})
		require.NoError(t, err)
		assert.Equal(t, ledger.GapPrevious, results[0].Result.Code)
		waiting, err := tx.UncheckedGet(send.Hash())
		require.NoError(t, err)
		require.Len(t, waiting, 1)
		return nil
	}))

	// now the missing block arrives: processing it must release the
	// parked dependent in the same pass.
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		results, err := p.ProcessBatch(tx, []block.Block{send})
		require.NoError(t, err)
		assert.Equal(t, ledger.Progress, results[0].Result.Code)
		return nil
	}))

	assert.Contains(t, confirmedHashes, send.Hash())
	assert.Contains(t, confirmedHashes, dangling.Hash())

	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		info, ok, err := tx.GetAccount(sender.Address)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, dangling.Hash(), info.Head)
		waiting, err := tx.UncheckedGet(send.Hash())
		require.NoError(t, err)
		assert.Empty(t, waiting)
		return nil
	}))
}

func TestProcessForcedRollsBackConflictingHead(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newTestProcessor(16, blockproc.Observers{})

	sender, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	r1, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	r2, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	openSource := thor.Bytes32{1}
	seedPending(t, s, sender.Address, openSource, thor.AmountFromUint64(10_000))
	opening := signOpen(t, sender, sender.Address, openSource)
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		_, err := p.ProcessBatch(tx, []block.Block{opening})
		return err
	}))

	s1 := signSend(t, sender, opening.Hash(), r1.Address, thor.AmountFromUint64(9_000))
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		results, err := p.ProcessBatch(tx, []block.Block{s1})
		require.NoError(t, err)
		require.Equal(t, ledger.Progress, results[0].Result.Code)
		return nil
	}))

	s2 := signSend(t, sender, opening.Hash(), r2.Address, thor.AmountFromUint64(8_000))
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		res, err := p.ProcessForced(tx, s2)
		require.NoError(t, err)
		assert.Equal(t, ledger.Progress, res.Code)
		return nil
	}))

	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		info, ok, err := tx.GetAccount(sender.Address)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, s2.Hash(), info.Head)

		exists, err := tx.BlockExists(s1.Hash())
		require.NoError(t, err)
		assert.False(t, exists)

		_, pendingExists, err := tx.GetPending(r1.Address, s1.Hash())
		require.NoError(t, err)
		assert.False(t, pendingExists)
		_, pendingExists, err = tx.GetPending(r2.Address, s2.Hash())
		require.NoError(t, err)
		assert.True(t, pendingExists)
		return nil
	}))
}
