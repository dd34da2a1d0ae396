package block_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/cryptoutil"
	"github.com/ledgerlattice/corenode/thor"
)

func TestStateBlockRoundTrip(t *testing.T) {
	key, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	var link thor.Bytes32
	link[0] = 1

	sb, err := new(block.StateBuilder).
		Account(key.Address).
		Previous(thor.Bytes32{}).
		Representative(key.Address).
		Balance(thor.AmountFromUint64(100)).
		Link(link).
		Build()
	require.NoError(t, err)

	sig := key.Sign(sb.Hash())
	signed := sb.WithSignature(sig).WithWork(thor.Work(42))

	encoded := block.Encode(signed)
	decoded, err := block.Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, signed.Hash(), decoded.Hash())
	assert.Equal(t, signed.Type(), decoded.Type())
	assert.Equal(t, signed.Signature(), decoded.Signature())
	assert.Equal(t, signed.Work(), decoded.Work())
	assert.True(t, cryptoutil.Verify(key.Address, decoded.Hash(), decoded.Signature()))
}

func TestOpenSendReceiveChangeRoundTrip(t *testing.T) {
	key, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	variants := []block.Block{
		mustOpen(t, key),
		mustSend(t, key),
		mustReceive(t, key),
		mustChange(t, key),
	}

	for _, v := range variants {
		encoded := block.Encode(v)
		decoded, err := block.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, v.Hash(), decoded.Hash())
		assert.Equal(t, v.Type(), decoded.Type())
	}
}

func mustOpen(t *testing.T, key *cryptoutil.KeyPair) block.Block {
	t.Helper()
	b, err := new(block.OpenBuilder).
		Account(key.Address).
		Representative(key.Address).
		Source(thor.Bytes32{1}).
		Signature(thor.Signature{}).
		Work(thor.Work(1)).
		Build()
	require.NoError(t, err)
	return b
}

func mustSend(t *testing.T, key *cryptoutil.KeyPair) block.Block {
	t.Helper()
	b, err := new(block.SendBuilder).
		Previous(thor.Bytes32{2}).
		Destination(key.Address).
		Balance(thor.AmountFromUint64(5)).
		Signature(thor.Signature{}).
		Work(thor.Work(1)).
		Build()
	require.NoError(t, err)
	return b
}

func mustReceive(t *testing.T, key *cryptoutil.KeyPair) block.Block {
	t.Helper()
	b, err := new(block.ReceiveBuilder).
		Previous(thor.Bytes32{3}).
		Source(thor.Bytes32{4}).
		Signature(thor.Signature{}).
		Work(thor.Work(1)).
		Build()
	require.NoError(t, err)
	return b
}

func mustChange(t *testing.T, key *cryptoutil.KeyPair) block.Block {
	t.Helper()
	b, err := new(block.ChangeBuilder).
		Previous(thor.Bytes32{5}).
		Representative(key.Address).
		Signature(thor.Signature{}).
		Work(thor.Work(1)).
		Build()
	require.NoError(t, err)
	return b
}

func TestBuilderMissingFieldPrecedence(t *testing.T) {
	_, err := new(block.StateBuilder).
		Balance(thor.AmountFromUint64(1)).
		Link(thor.Bytes32{1}).
		Representative(thor.Bytes32{2}).
		Signature(thor.Signature{}).
		Work(thor.Work(1)).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account")
}

func TestVoteRoundTrip(t *testing.T) {
	key, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)

	v := &block.Vote{
		Account:  key.Address,
		Sequence: 7,
		Hashes:   []thor.Bytes32{{1}, {2}, {3}},
	}
	v.Sign(key)
	require.True(t, v.Verify())

	encoded := v.Encode()
	decoded, err := block.DecodeVote(encoded)
	require.NoError(t, err)
	assert.Equal(t, v.Account, decoded.Account)
	assert.Equal(t, v.Sequence, decoded.Sequence)
	assert.Equal(t, v.Hashes, decoded.Hashes)
	assert.True(t, decoded.Verify())
}
