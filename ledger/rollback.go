package ledger

import (
	"github.com/pkg/errors"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/thor"
)

// ErrPendingClaimed is returned by Rollback when a send's created
// pending entry has already been claimed by a receive. The claiming
// block's whole dependent chain must be rolled back first; that
// cascade is the caller's responsibility (the election/fork resolution
// path that knows the dependent chain), not this single-block
// operation's.
var ErrPendingClaimed = errors.New("ledger: rollback: pending already claimed, roll back the dependent chain first")

// MaxChainLength bounds every backward chain walk this package performs
// (representativeBefore's Send/Receive skip-back), so a corrupted store
// with a cyclic predecessor chain fails fast instead of looping forever.
const MaxChainLength = 1 << 20

// ErrChainTooLong is returned when a backward chain walk exceeds
// MaxChainLength steps without terminating.
var ErrChainTooLong = errors.New("ledger: chain walk exceeded MaxChainLength")

// Rollback reverse-applies the block at hash, which must be its
// account's current head. It restores the account's prior balance and
// representative weight, re-creates or removes pending entries as the
// inverse of Process, and repairs frontier/successor bookkeeping.
func Rollback(tx *ledgerstore.Txn, hash thor.Bytes32) error {
	b, sb, ok, err := tx.BlockGet(hash)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("ledger: rollback: block not found")
	}

	var account thor.Address
	if sv, isState := b.(*block.State); isState {
		account = sv.Account()
	} else {
		account = sb.Account
	}

	info, ok, err := tx.GetAccount(account)
	if err != nil {
		return err
	}
	if !ok || info.Head != hash {
		return errors.New("ledger: rollback: not the account's current head")
	}

	switch v := b.(type) {
	case *block.Open:
		return rollbackOpen(tx, hash, v, account, info)
	case *block.Send:
		return rollbackSend(tx, hash, v, account, info)
	case *block.Receive:
		return rollbackReceive(tx, hash, v, account, info)
	case *block.Change:
		return rollbackChange(tx, hash, v, account, info)
	case *block.State:
		return rollbackState(tx, hash, v, account, info)
	default:
		return errors.New("ledger: rollback: unknown block type")
	}
}

func rollbackOpen(tx *ledgerstore.Txn, hash thor.Bytes32, b *block.Open, account thor.Address, info ledgerstore.AccountInfo) error {
	if err := tx.SubRepresentation(info.Representative, info.Balance); err != nil {
		return err
	}
	if err := tx.PutPending(account, b.Source(), ledgerstore.PendingInfo{Source: account, Amount: info.Balance, Epoch: info.Epoch}); err != nil {
		return err
	}
	if err := tx.DeleteAccount(account); err != nil {
		return err
	}
	if err := tx.BlockDelete(hash); err != nil {
		return err
	}
	return tx.FrontierDelete(hash)
}

func rollbackSend(tx *ledgerstore.Txn, hash thor.Bytes32, b *block.Send, account thor.Address, info ledgerstore.AccountInfo) error {
	_, prevOk, err := tx.GetPending(b.Destination(), hash)
	if err != nil {
		return err
	}
	if !prevOk {
		return ErrPendingClaimed
	}
	if err := tx.DeletePending(b.Destination(), hash); err != nil {
		return err
	}
	delta := info.Balance
	priorBalance, err := predecessorBalance(tx, b.Previous())
	if err != nil {
		return err
	}
	delta = priorBalance.Sub(info.Balance)
	if err := tx.AddRepresentation(info.Representative, delta); err != nil {
		return err
	}
	return finishLegacyRollback(tx, hash, b.Previous(), account, priorBalance, info)
}

func rollbackReceive(tx *ledgerstore.Txn, hash thor.Bytes32, b *block.Receive, account thor.Address, info ledgerstore.AccountInfo) error {
	priorBalance, err := predecessorBalance(tx, b.Previous())
	if err != nil {
		return err
	}
	amount := info.Balance.Sub(priorBalance)
	if err := tx.PutPending(account, b.Source(), ledgerstore.PendingInfo{Source: account, Amount: amount, Epoch: thor.EpochV0}); err != nil {
		return err
	}
	if err := tx.SubRepresentation(info.Representative, amount); err != nil {
		return err
	}
	return finishLegacyRollback(tx, hash, b.Previous(), account, priorBalance, info)
}

func rollbackChange(tx *ledgerstore.Txn, hash thor.Bytes32, b *block.Change, account thor.Address, info ledgerstore.AccountInfo) error {
	oldRep, err := representativeBefore(tx, b.Previous())
	if err != nil {
		return err
	}
	if err := tx.SubRepresentation(info.Representative, info.Balance); err != nil {
		return err
	}
	if err := tx.AddRepresentation(oldRep, info.Balance); err != nil {
		return err
	}
	return finishLegacyRollback(tx, hash, b.Previous(), account, info.Balance, info)
}

func finishLegacyRollback(tx *ledgerstore.Txn, hash, previous thor.Bytes32, account thor.Address, priorBalance thor.Amount, info ledgerstore.AccountInfo) error {
	info.Head = previous
	info.Balance = priorBalance
	if info.BlockCount > 0 {
		info.BlockCount--
	}
	if err := tx.PutAccount(account, info); err != nil {
		return err
	}
	if err := tx.BlockDelete(hash); err != nil {
		return err
	}
	if err := tx.BlockSuccessorClear(previous); err != nil {
		return err
	}
	if err := tx.FrontierDelete(hash); err != nil {
		return err
	}
	return tx.FrontierPut(previous, account)
}

func rollbackState(tx *ledgerstore.Txn, hash thor.Bytes32, b *block.State, account thor.Address, info ledgerstore.AccountInfo) error {
	if b.Previous().IsZero() {
		// Opening state block: inverse of the receive-style open.
		if err := tx.SubRepresentation(info.Representative, info.Balance); err != nil {
			return err
		}
		if err := tx.PutPending(account, b.Link(), ledgerstore.PendingInfo{Source: account, Amount: info.Balance, Epoch: info.Epoch}); err != nil {
			return err
		}
		if err := tx.DeleteAccount(account); err != nil {
			return err
		}
		return tx.BlockDelete(hash)
	}

	priorBalance, err := predecessorBalance(tx, b.Previous())
	if err != nil {
		return err
	}

	switch {
	case b.Balance().Cmp(priorBalance) < 0:
		// was a send: remove the pending it created.
		if _, ok, err := tx.GetPending(b.Link(), hash); err != nil {
			return err
		} else if !ok {
			return ErrPendingClaimed
		}
		if err := tx.DeletePending(b.Link(), hash); err != nil {
			return err
		}
		delta := priorBalance.Sub(b.Balance())
		if err := tx.AddRepresentation(info.Representative, delta); err != nil {
			return err
		}
	case b.Balance().Cmp(priorBalance) > 0:
		// was a receive: recreate the pending it consumed.
		delta := b.Balance().Sub(priorBalance)
		if err := tx.PutPending(account, b.Link(), ledgerstore.PendingInfo{Source: account, Amount: delta, Epoch: info.Epoch}); err != nil {
			return err
		}
		if err := tx.SubRepresentation(info.Representative, b.Balance()); err != nil {
			return err
		}
		oldRep, err := representativeBefore(tx, b.Previous())
		if err != nil {
			return err
		}
		if err := tx.AddRepresentation(oldRep, priorBalance); err != nil {
			return err
		}
	default:
		// representative-only change (or epoch block, balance unchanged).
		oldRep, err := representativeBefore(tx, b.Previous())
		if err != nil {
			return err
		}
		if err := tx.SubRepresentation(info.Representative, info.Balance); err != nil {
			return err
		}
		if err := tx.AddRepresentation(oldRep, priorBalance); err != nil {
			return err
		}
	}

	oldRep, err := representativeBefore(tx, b.Previous())
	if err != nil {
		return err
	}
	newInfo := ledgerstore.AccountInfo{
		Head:           b.Previous(),
		Representative: oldRep,
		Balance:        priorBalance,
		BlockCount:     info.BlockCount - 1,
		Epoch:          info.Epoch,
	}
	if err := tx.PutAccount(account, newInfo); err != nil {
		return err
	}
	if err := tx.BlockDelete(hash); err != nil {
		return err
	}
	return tx.BlockSuccessorClear(b.Previous())
}

// predecessorBalance returns hash's recorded post-block balance, read
// from its sideband (BalanceAfter) rather than recomputed, since every
// committed block's sideband already carries it.
func predecessorBalance(tx *ledgerstore.Txn, hash thor.Bytes32) (thor.Amount, error) {
	if hash.IsZero() {
		return thor.ZeroAmount, nil
	}
	_, sb, ok, err := tx.BlockGet(hash)
	if err != nil {
		return thor.Amount{}, err
	}
	if !ok {
		return thor.Amount{}, errors.New("ledger: rollback: predecessor not found")
	}
	return sb.BalanceAfter, nil
}

// representativeBefore walks backward from hash to find the nearest
// block that explicitly carries a representative field (every variant
// except Send/Receive), reconstructing the representative in effect
// immediately after hash. A zero hash (no predecessor) means the
// account didn't exist, so there is no representative to restore.
func representativeBefore(tx *ledgerstore.Txn, hash thor.Bytes32) (thor.Address, error) {
	for steps := 0; !hash.IsZero(); steps++ {
		if steps >= MaxChainLength {
			return thor.Address{}, ErrChainTooLong
		}
		b, _, ok, err := tx.BlockGet(hash)
		if err != nil {
			return thor.Address{}, err
		}
		if !ok {
			return thor.Address{}, errors.New("ledger: rollback: representative walk: block not found")
		}
		switch v := b.(type) {
		case *block.Open:
			return v.Representative(), nil
		case *block.Change:
			return v.Representative(), nil
		case *block.State:
			return v.Representative(), nil
		case *block.Send:
			hash = v.Previous()
		case *block.Receive:
			hash = v.Previous()
		default:
			return thor.Address{}, errors.New("ledger: rollback: representative walk: unknown type")
		}
	}
	return thor.Address{}, nil
}
