package ledgerstore

import (
	"encoding/binary"

	"github.com/ledgerlattice/corenode/kv"
	"github.com/ledgerlattice/corenode/thor"
)

// OnlineWeightSample records a rolling sample of total online
// representative stake at unixSeconds, keyed by big-endian timestamp so
// the table iterates in chronological order.
func (t *Txn) OnlineWeightSample(unixSeconds uint64, amount thor.Amount) error {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], unixSeconds)
	return t.put(tableOnlineWeight, key[:], amount[:])
}

// OnlineWeightTrim deletes every sample older than cutoffUnixSeconds,
// keeping the rolling window bounded.
func (t *Txn) OnlineWeightTrim(cutoffUnixSeconds uint64) error {
	var limit [8]byte
	binary.BigEndian.PutUint64(limit[:], cutoffUnixSeconds)
	it := t.iterate(tableOnlineWeight, kv.Range{Limit: limit[:]})
	defer it.Release()
	for it.Next() {
		if err := t.delete(tableOnlineWeight, append([]byte{}, it.Key()...)); err != nil {
			return err
		}
	}
	return it.Error()
}

// OnlineWeightMax returns the maximum sample currently retained, used
// as the online-stake baseline for quorum math.
func (t *Txn) OnlineWeightMax() (thor.Amount, error) {
	it := t.iterate(tableOnlineWeight, kv.Range{})
	defer it.Release()
	max := thor.ZeroAmount
	for it.Next() {
		var amt thor.Amount
		copy(amt[:], it.Value())
		if amt.Cmp(max) > 0 {
			max = amt
		}
	}
	return max, it.Error()
}
