package ledgerstore

import (
	"github.com/ledgerlattice/corenode/thor"
)

// PendingInfo is the pending_v0/v1 table's value.
type PendingInfo struct {
	Source thor.Address
	Amount thor.Amount
	Epoch  thor.Epoch
}

// pendingKey encodes (account, block_hash) as a 64-byte composite key,
// account-major so a per-account range scan is a simple prefix scan.
func pendingKey(account thor.Address, hash thor.Bytes32) []byte {
	out := make([]byte, 64)
	copy(out[0:32], account[:])
	copy(out[32:64], hash[:])
	return out
}

func (p PendingInfo) encode() []byte {
	out := make([]byte, 0, 32+16+1)
	out = append(out, p.Source[:]...)
	out = append(out, p.Amount[:]...)
	out = append(out, byte(p.Epoch))
	return out
}

func decodePendingInfo(b []byte) (PendingInfo, error) {
	if len(b) != 32+16+1 {
		return PendingInfo{}, thor.ErrInvalidLength
	}
	var p PendingInfo
	p.Source = thor.BytesToBytes32(b[0:32])
	copy(p.Amount[:], b[32:48])
	p.Epoch = thor.Epoch(b[48])
	return p, nil
}

// GetPending looks up a pending credit for (account, hash), checking v0
// then v1 (a given pending entry exists in exactly one table).
func (t *Txn) GetPending(account thor.Address, hash thor.Bytes32) (PendingInfo, bool, error) {
	key := pendingKey(account, hash)
	if v, err := t.get(tablePendingV0, key); err != nil {
		return PendingInfo{}, false, err
	} else if v != nil {
		info, err := decodePendingInfo(v)
		return info, true, err
	}
	if v, err := t.get(tablePendingV1, key); err != nil {
		return PendingInfo{}, false, err
	} else if v != nil {
		info, err := decodePendingInfo(v)
		return info, true, err
	}
	return PendingInfo{}, false, nil
}

// PutPending records a pending credit, placed in the table matching
// info.Epoch.
func (t *Txn) PutPending(account thor.Address, hash thor.Bytes32, info PendingInfo) error {
	key := pendingKey(account, hash)
	table := tablePendingV0
	if info.Epoch == thor.EpochV1 {
		table = tablePendingV1
	}
	return t.put(table, key, info.encode())
}

// DeletePending removes a pending credit from whichever table holds it.
func (t *Txn) DeletePending(account thor.Address, hash thor.Bytes32) error {
	key := pendingKey(account, hash)
	if err := t.delete(tablePendingV0, key); err != nil {
		return err
	}
	return t.delete(tablePendingV1, key)
}
