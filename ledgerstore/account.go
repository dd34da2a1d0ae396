package ledgerstore

import (
	"encoding/binary"

	"github.com/ledgerlattice/corenode/thor"
)

// AccountInfo is the accounts_v0/v1 table's value.
type AccountInfo struct {
	Head             thor.Bytes32
	Representative   thor.Address
	Balance          thor.Amount
	ModifiedUnixTime uint64
	BlockCount       uint64
	Epoch            thor.Epoch
}

// Encode serializes an AccountInfo: head(32) || representative(32) ||
// balance(16) || modified(8,BE) || block_count(8,BE) || epoch(1).
func (a AccountInfo) Encode() []byte {
	out := make([]byte, 0, 32+32+16+8+8+1)
	out = append(out, a.Head[:]...)
	out = append(out, a.Representative[:]...)
	out = append(out, a.Balance[:]...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], a.ModifiedUnixTime)
	out = append(out, buf[:]...)
	binary.BigEndian.PutUint64(buf[:], a.BlockCount)
	out = append(out, buf[:]...)
	out = append(out, byte(a.Epoch))
	return out
}

// DecodeAccountInfo parses a value written by Encode.
func DecodeAccountInfo(b []byte) (AccountInfo, error) {
	if len(b) != 32+32+16+8+8+1 {
		return AccountInfo{}, thor.ErrInvalidLength
	}
	var a AccountInfo
	a.Head = thor.BytesToBytes32(b[0:32])
	a.Representative = thor.BytesToBytes32(b[32:64])
	copy(a.Balance[:], b[64:80])
	a.ModifiedUnixTime = binary.BigEndian.Uint64(b[80:88])
	a.BlockCount = binary.BigEndian.Uint64(b[88:96])
	a.Epoch = thor.Epoch(b[96])
	return a, nil
}

// GetAccount looks up an account across the epoch-split tables,
// preferring v1 (an account promoted to v1 is removed from v0 by the
// processor, so at most one table holds it; v1 is checked first since
// steady-state accounts are predominantly v1).
func (t *Txn) GetAccount(addr thor.Address) (AccountInfo, bool, error) {
	if v, err := t.get(tableAccountsV1, addr[:]); err != nil {
		return AccountInfo{}, false, err
	} else if v != nil {
		info, err := DecodeAccountInfo(v)
		return info, true, err
	}
	if v, err := t.get(tableAccountsV0, addr[:]); err != nil {
		return AccountInfo{}, false, err
	} else if v != nil {
		info, err := DecodeAccountInfo(v)
		return info, true, err
	}
	return AccountInfo{}, false, nil
}

// PutAccount writes addr's info into the table matching info.Epoch,
// removing any stale copy in the other epoch's table.
func (t *Txn) PutAccount(addr thor.Address, info AccountInfo) error {
	enc := info.Encode()
	if info.Epoch == thor.EpochV1 {
		if err := t.delete(tableAccountsV0, addr[:]); err != nil {
			return err
		}
		return t.put(tableAccountsV1, addr[:], enc)
	}
	if err := t.delete(tableAccountsV1, addr[:]); err != nil {
		return err
	}
	return t.put(tableAccountsV0, addr[:], enc)
}

// DeleteAccount removes addr from both epoch tables (used by rollback
// of an account's sole opening block).
func (t *Txn) DeleteAccount(addr thor.Address) error {
	if err := t.delete(tableAccountsV0, addr[:]); err != nil {
		return err
	}
	return t.delete(tableAccountsV1, addr[:])
}

// GetRepresentation returns the total voting weight currently assigned
// to representative addr.
func (t *Txn) GetRepresentation(addr thor.Address) (thor.Amount, error) {
	v, err := t.get(tableRepresentation, addr[:])
	if err != nil || v == nil {
		return thor.ZeroAmount, err
	}
	var amt thor.Amount
	copy(amt[:], v)
	return amt, nil
}

// AddRepresentation adds delta (which may represent a negative change
// via SubRepresentation) to addr's weight.
func (t *Txn) AddRepresentation(addr thor.Address, delta thor.Amount) error {
	cur, err := t.GetRepresentation(addr)
	if err != nil {
		return err
	}
	next := cur.Add(delta)
	return t.put(tableRepresentation, addr[:], next[:])
}

// SubRepresentation subtracts delta from addr's weight.
func (t *Txn) SubRepresentation(addr thor.Address, delta thor.Amount) error {
	cur, err := t.GetRepresentation(addr)
	if err != nil {
		return err
	}
	next := cur.Sub(delta)
	return t.put(tableRepresentation, addr[:], next[:])
}
