package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/cryptoutil"
	"github.com/ledgerlattice/corenode/ledger"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

func newProcessor() *ledger.Processor {
	return &ledger.Processor{WorkThreshold: 0}
}

func signOpen(t *testing.T, kp *cryptoutil.KeyPair, rep thor.Address, source thor.Bytes32) *block.Open {
	t.Helper()
	b := block.NewOpen(kp.Address, rep, source)
	sig := kp.Sign(b.Hash())
	out, ok := b.WithSignature(sig).(*block.Open)
	require.True(t, ok)
	return out
}

func signSend(t *testing.T, kp *cryptoutil.KeyPair, previous thor.Bytes32, dest thor.Address, balance thor.Amount) *block.Send {
	t.Helper()
	b := block.NewSend(previous, dest, balance)
	sig := kp.Sign(b.Hash())
	out, ok := b.WithSignature(sig).(*block.Send)
	require.True(t, ok)
	return out
}

func signReceive(t *testing.T, kp *cryptoutil.KeyPair, previous, source thor.Bytes32) *block.Receive {
	t.Helper()
	b := block.NewReceive(previous, source)
	sig := kp.Sign(b.Hash())
	out, ok := b.WithSignature(sig).(*block.Receive)
	require.True(t, ok)
	return out
}

func signChange(t *testing.T, kp *cryptoutil.KeyPair, previous thor.Bytes32, rep thor.Address) *block.Change {
	t.Helper()
	b := block.NewChange(previous, rep)
	sig := kp.Sign(b.Hash())
	out, ok := b.WithSignature(sig).(*block.Change)
	require.True(t, ok)
	return out
}

func signState(t *testing.T, kp *cryptoutil.KeyPair, previous, rep thor.Address, balance thor.Amount, link thor.Bytes32) *block.State {
	t.Helper()
	b := block.NewState(kp.Address, previous, rep, balance, link)
	sig := kp.Sign(b.Hash())
	out, ok := b.WithSignature(sig).(*block.State)
	require.True(t, ok)
	return out
}

// seedPending credits amount to dest from an arbitrary source hash, used
// to set up the "someone already sent me a pending credit" precondition
// that Open/Receive/opening-State all require.
func seedPending(t *testing.T, s *ledgerstore.Store, dest thor.Address, source thor.Bytes32, amount thor.Amount, epoch thor.Epoch) {
	t.Helper()
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		return tx.PutPending(dest, source, ledgerstore.PendingInfo{Source: thor.Address{0xee}, Amount: amount, Epoch: epoch})
	}))
}

func TestProcessOpenHappyPath(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	source := thor.Bytes32{1, 2, 3}
	amount := thor.AmountFromUint64(1000)
	seedPending(t, s, kp.Address, source, amount, thor.EpochV0)

	ob := signOpen(t, kp, kp.Address, source)

	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, ob)
		return err
	}))
	require.Equal(t, ledger.Progress, res.Code)
	assert.Equal(t, amount, res.Amount)

	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		info, ok, err := tx.GetAccount(kp.Address)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ob.Hash(), info.Head)
		assert.Equal(t, amount, info.Balance)
		assert.Equal(t, uint64(1), info.BlockCount)

		weight, err := tx.GetRepresentation(kp.Address)
		require.NoError(t, err)
		assert.Equal(t, amount, weight)

		_, pendingStillThere, err := tx.GetPending(kp.Address, source)
		require.NoError(t, err)
		assert.False(t, pendingStillThere)
		return nil
	}))
}

func TestProcessOpenRejectsMissingPending(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	ob := signOpen(t, kp, kp.Address, thor.Bytes32{9})

	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, ob)
		return err
	}))
	assert.Equal(t, ledger.GapSource, res.Code)
}

func TestProcessOpenRejectsBurnAccount(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	b := block.NewOpen(thor.BurnAccount, thor.BurnAccount, thor.Bytes32{1})

	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, b)
		return err
	}))
	assert.Equal(t, ledger.OpenedBurnAccount, res.Code)
}

func TestProcessOpenRejectsFork(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	amount := thor.AmountFromUint64(10)
	seedPending(t, s, kp.Address, thor.Bytes32{1}, amount, thor.EpochV0)
	ob := signOpen(t, kp, kp.Address, thor.Bytes32{1})
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		_, err := p.Process(tx, ob)
		return err
	}))

	seedPending(t, s, kp.Address, thor.Bytes32{2}, amount, thor.EpochV0)
	ob2 := signOpen(t, kp, kp.Address, thor.Bytes32{2})
	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, ob2)
		return err
	}))
	assert.Equal(t, ledger.Fork, res.Code)
}

func openAccount(t *testing.T, s *ledgerstore.Store, p *ledger.Processor, kp *cryptoutil.KeyPair, amount thor.Amount) *block.Open {
	t.Helper()
	source := thor.Bytes32{0x42}
	seedPending(t, s, kp.Address, source, amount, thor.EpochV0)
	ob := signOpen(t, kp, kp.Address, source)
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		res, err := p.Process(tx, ob)
		require.NoError(t, err)
		require.Equal(t, ledger.Progress, res.Code)
		return nil
	}))
	return ob
}

func TestProcessSendAndReceiveHappyPath(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	sender, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	receiver, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	opening := openAccount(t, s, p, sender, thor.AmountFromUint64(1000))

	send := signSend(t, sender, opening.Hash(), receiver.Address, thor.AmountFromUint64(400))
	var sendRes ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		sendRes, err = p.Process(tx, send)
		return err
	}))
	require.Equal(t, ledger.Progress, sendRes.Code)
	assert.Equal(t, thor.AmountFromUint64(600), sendRes.Amount)
	assert.True(t, sendRes.HasPendingAccount)
	assert.Equal(t, receiver.Address, sendRes.PendingAccount)

	receiverOpen := signOpen(t, receiver, receiver.Address, send.Hash())
	var openRes ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		openRes, err = p.Process(tx, receiverOpen)
		return err
	}))
	require.Equal(t, ledger.Progress, openRes.Code)
	assert.Equal(t, thor.AmountFromUint64(600), openRes.Amount)

	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		info, ok, err := tx.GetAccount(sender.Address)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, thor.AmountFromUint64(400), info.Balance)
		assert.Equal(t, send.Hash(), info.Head)
		return nil
	}))
}

func TestProcessSendRejectsNegativeSpend(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	sender, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	opening := openAccount(t, s, p, sender, thor.AmountFromUint64(100))

	send := signSend(t, sender, opening.Hash(), thor.Address{0x77}, thor.AmountFromUint64(200))
	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, send)
		return err
	}))
	assert.Equal(t, ledger.NegativeSpend, res.Code)
}

func TestProcessSendRejectsForkOnStaleHead(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	sender, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	opening := openAccount(t, s, p, sender, thor.AmountFromUint64(1000))

	send1 := signSend(t, sender, opening.Hash(), thor.Address{0x01}, thor.AmountFromUint64(900))
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		res, err := p.Process(tx, send1)
		require.NoError(t, err)
		require.Equal(t, ledger.Progress, res.Code)
		return nil
	}))

	// A second send built against the same (now stale) previous is a fork.
	send2 := signSend(t, sender, opening.Hash(), thor.Address{0x02}, thor.AmountFromUint64(800))
	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, send2)
		return err
	}))
	assert.Equal(t, ledger.Fork, res.Code)
}

func TestProcessReceiveRejectsUnreceivableOnMissingPending(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	opening := openAccount(t, s, p, kp, thor.AmountFromUint64(10))

	recv := signReceive(t, kp, opening.Hash(), thor.Bytes32{0x55})
	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, recv)
		return err
	}))
	assert.Equal(t, ledger.Unreceivable, res.Code)
}

func TestProcessChangeHappyPath(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	newRep, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	opening := openAccount(t, s, p, kp, thor.AmountFromUint64(500))

	ch := signChange(t, kp, opening.Hash(), newRep.Address)
	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, ch)
		return err
	}))
	require.Equal(t, ledger.Progress, res.Code)

	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		info, ok, err := tx.GetAccount(kp.Address)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, newRep.Address, info.Representative)

		oldWeight, err := tx.GetRepresentation(kp.Address)
		require.NoError(t, err)
		assert.True(t, oldWeight.IsZero())

		newWeight, err := tx.GetRepresentation(newRep.Address)
		require.NoError(t, err)
		assert.Equal(t, thor.AmountFromUint64(500), newWeight)
		return nil
	}))
}

func openStateAccount(t *testing.T, s *ledgerstore.Store, p *ledger.Processor, kp *cryptoutil.KeyPair, amount thor.Amount, epoch thor.Epoch) *block.State {
	t.Helper()
	link := thor.Bytes32{0x9}
	seedPending(t, s, kp.Address, link, amount, epoch)
	sb := signState(t, kp, thor.Address{}, kp.Address, amount, link)
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		res, err := p.Process(tx, sb)
		require.NoError(t, err)
		require.Equal(t, ledger.Progress, res.Code)
		return nil
	}))
	return sb
}

func TestProcessStateOpenHappyPath(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	openStateAccount(t, s, p, kp, thor.AmountFromUint64(2000), thor.EpochV1)

	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		info, ok, err := tx.GetAccount(kp.Address)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, thor.EpochV1, info.Epoch)
		assert.Equal(t, thor.AmountFromUint64(2000), info.Balance)
		return nil
	}))
}

func TestProcessStateSendThenReceive(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	sender, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	receiver, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	opening := openStateAccount(t, s, p, sender, thor.AmountFromUint64(1000), thor.EpochV1)

	send := signState(t, sender, opening.Hash(), sender.Address, thor.AmountFromUint64(300), receiver.Address)

	var sendRes ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		sendRes, err = p.Process(tx, send)
		return err
	}))
	require.Equal(t, ledger.Progress, sendRes.Code)
	assert.True(t, sendRes.IsSendState)
	assert.Equal(t, thor.AmountFromUint64(700), sendRes.Amount)

	recvOpen := signState(t, receiver, thor.Address{}, receiver.Address, thor.AmountFromUint64(700), send.Hash())
	var recvRes ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		recvRes, err = p.Process(tx, recvOpen)
		return err
	}))
	require.Equal(t, ledger.Progress, recvRes.Code)
}

func TestProcessStateRepresentativeChangeOnly(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	newRep, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	opening := openStateAccount(t, s, p, kp, thor.AmountFromUint64(50), thor.EpochV1)

	ch := signState(t, kp, opening.Hash(), newRep.Address, thor.AmountFromUint64(50), thor.Bytes32{})
	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, ch)
		return err
	}))
	require.Equal(t, ledger.Progress, res.Code)

	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		w, err := tx.GetRepresentation(newRep.Address)
		require.NoError(t, err)
		assert.Equal(t, thor.AmountFromUint64(50), w)
		return nil
	}))
}

func TestProcessRejectsOldDuplicateBlock(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := newProcessor()

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	opening := openAccount(t, s, p, kp, thor.AmountFromUint64(10))

	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, opening)
		return err
	}))
	assert.Equal(t, ledger.Old, res.Code)
}

func TestProcessStateEpochBlockMigratesAccountToV1(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()

	authority, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	p := &ledger.Processor{EpochAuthority: authority.Address}

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	opening := openStateAccount(t, s, p, kp, thor.AmountFromUint64(50), thor.EpochV0)

	epoch := block.NewState(kp.Address, opening.Hash(), kp.Address, thor.AmountFromUint64(50), thor.EpochLinkMarker)
	signed, ok := epoch.WithSignature(authority.Sign(epoch.Hash())).(*block.State)
	require.True(t, ok)

	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, signed)
		return err
	}))
	require.Equal(t, ledger.Progress, res.Code)

	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		info, ok, err := tx.GetAccount(kp.Address)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, thor.EpochV1, info.Epoch)
		assert.Equal(t, signed.Hash(), info.Head)
		assert.Equal(t, thor.AmountFromUint64(50), info.Balance)
		return nil
	}))
}

func TestProcessStateEpochBlockRejectsWrongSigner(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()

	authority, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	p := &ledger.Processor{EpochAuthority: authority.Address}

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	opening := openStateAccount(t, s, p, kp, thor.AmountFromUint64(50), thor.EpochV0)

	// Epoch-shaped, but signed by the account itself rather than the
	// authority: must not be accepted as an epoch transition.
	epoch := signState(t, kp, opening.Hash(), kp.Address, thor.AmountFromUint64(50), thor.EpochLinkMarker)

	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, epoch)
		return err
	}))
	assert.NotEqual(t, ledger.Progress, res.Code)

	require.NoError(t, s.View(func(tx *ledgerstore.Txn) error {
		info, ok, err := tx.GetAccount(kp.Address)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, thor.EpochV0, info.Epoch)
		return nil
	}))
}

func TestProcessRejectsInsufficientWork(t *testing.T) {
	s := ledgerstore.NewMem()
	defer s.Close()
	p := &ledger.Processor{WorkThreshold: ^uint64(0)}

	kp, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	ob := signOpen(t, kp, kp.Address, thor.Bytes32{1})

	var res ledger.Result
	require.NoError(t, s.Update(func(tx *ledgerstore.Txn) error {
		var err error
		res, err = p.Process(tx, ob)
		return err
	}))
	assert.Equal(t, ledger.InsufficientWork, res.Code)
}
