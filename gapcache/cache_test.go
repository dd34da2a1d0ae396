package gapcache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlattice/corenode/external"
	"github.com/ledgerlattice/corenode/gapcache"
	"github.com/ledgerlattice/corenode/thor"
)

type recordingRequester struct {
	hashes []thor.Bytes32
}

func (r *recordingRequester) RequestBlock(hash thor.Bytes32) {
	r.hashes = append(r.hashes, hash)
}

func TestVoteCrossesLegacyThresholdOnce(t *testing.T) {
	c, err := gapcache.New(16, 1, thor.AmountFromUint64(1_000_000))
	require.NoError(t, err)
	// legacy threshold: 1/256 of online stake.
	onlineStake := thor.AmountFromUint64(256_000)
	hash := thor.Bytes32{1}

	crossed := c.Vote(hash, thor.Address{1}, thor.AmountFromUint64(500), onlineStake)
	assert.False(t, crossed)

	crossed = c.Vote(hash, thor.Address{2}, thor.AmountFromUint64(500), onlineStake)
	assert.True(t, crossed) // cumulative 1000 >= 256000/256 = 1000

	// a further vote must not report crossing again.
	crossed = c.Vote(hash, thor.Address{3}, thor.AmountFromUint64(1), onlineStake)
	assert.False(t, crossed)
}

func TestVoteCrossesLazyThreshold(t *testing.T) {
	c, err := gapcache.New(16, 256, thor.AmountFromUint64(100)) // disable legacy in practice by using a huge numerator... instead just disable explicitly
	require.NoError(t, err)
	c.DisableLegacy = true
	onlineStake := thor.AmountFromUint64(1_000_000)
	hash := thor.Bytes32{2}

	assert.False(t, c.Vote(hash, thor.Address{1}, thor.AmountFromUint64(50), onlineStake))
	assert.True(t, c.Vote(hash, thor.Address{1}, thor.AmountFromUint64(150), onlineStake)) // replaces voter's own weight, total now 150 >= 100
}

func TestVoterWeightUpdateReplacesRatherThanAccumulates(t *testing.T) {
	c, err := gapcache.New(16, 1, thor.AmountFromUint64(1000))
	require.NoError(t, err)
	c.DisableLegacy = true
	onlineStake := thor.AmountFromUint64(1_000_000)
	hash := thor.Bytes32{3}

	assert.False(t, c.Vote(hash, thor.Address{1}, thor.AmountFromUint64(900), onlineStake))
	// same voter revoting a lower weight must replace, not add to, its
	// prior contribution.
	assert.False(t, c.Vote(hash, thor.Address{1}, thor.AmountFromUint64(100), onlineStake))
}

func TestScheduleSkipsRequestAfterLearn(t *testing.T) {
	c, err := gapcache.New(16, 1, thor.AmountFromUint64(1))
	require.NoError(t, err)
	hash := thor.Bytes32{4}
	c.Vote(hash, thor.Address{1}, thor.AmountFromUint64(1), thor.AmountFromUint64(1))

	req := &recordingRequester{}
	c.Schedule(hash, 10*time.Millisecond, req)
	c.Learn(hash)
	time.Sleep(30 * time.Millisecond)

	assert.Empty(t, req.hashes)
}

func TestScheduleFiresWhenStillPending(t *testing.T) {
	c, err := gapcache.New(16, 1, thor.AmountFromUint64(1))
	require.NoError(t, err)
	hash := thor.Bytes32{5}
	c.Vote(hash, thor.Address{1}, thor.AmountFromUint64(1), thor.AmountFromUint64(1))

	req := &recordingRequester{}
	var _ external.BootstrapRequester = req
	c.Schedule(hash, 10*time.Millisecond, req)
	time.Sleep(30 * time.Millisecond)

	require.Len(t, req.hashes, 1)
	assert.Equal(t, hash, req.hashes[0])
}
