package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlattice/corenode/ledgerstore"
	"github.com/ledgerlattice/corenode/testutil"
	"github.com/ledgerlattice/corenode/thor"
)

func TestOpenAccountFundsAndOpensWithRequestedAmount(t *testing.T) {
	f := testutil.New(t)
	amount := thor.AmountFromUint64(1000)

	kp, head := f.OpenAccount(amount)

	require.NoError(t, f.Store.View(func(tx *ledgerstore.Txn) error {
		info, ok, err := tx.GetAccount(kp.Address)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, amount, info.Balance)
		assert.Equal(t, head, info.Head)
		return nil
	}))
}

func TestFundDeductsFromGenesisEachCall(t *testing.T) {
	f := testutil.New(t)
	amount := thor.AmountFromUint64(500)

	_, _ = f.OpenAccount(amount)

	require.NoError(t, f.Store.View(func(tx *ledgerstore.Txn) error {
		info, ok, err := tx.GetAccount(f.Genesis.Account().Address)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, thor.MaxAmount.Sub(amount), info.Balance)
		return nil
	}))

	second := thor.AmountFromUint64(250)
	_, _ = f.OpenAccount(second)

	require.NoError(t, f.Store.View(func(tx *ledgerstore.Txn) error {
		info, ok, err := tx.GetAccount(f.Genesis.Account().Address)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, thor.MaxAmount.Sub(amount).Sub(second), info.Balance)
		return nil
	}))
}
