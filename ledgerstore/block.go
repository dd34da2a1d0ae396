package ledgerstore

import (
	"github.com/pkg/errors"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/thor"
)

// blockRecordLen returns the length of a bare (no-sideband) block
// encoding for t, used to split a stored record's block bytes from its
// trailing sideband.
func blockRecordLen(t block.Type) int {
	fields := map[block.Type]int{
		block.TypeOpen:    32 + 32 + 32,
		block.TypeSend:    32 + 32 + 16,
		block.TypeReceive: 32 + 32,
		block.TypeChange:  32 + 32,
		block.TypeState:   32 + 32 + 32 + 16 + 32,
	}[t]
	return fields + 64 + 1 + 8
}

func tableForType(t block.Type, epoch thor.Epoch) string {
	switch t {
	case block.TypeOpen:
		return tableOpen
	case block.TypeSend:
		return tableSend
	case block.TypeReceive:
		return tableReceive
	case block.TypeChange:
		return tableChange
	case block.TypeState:
		if epoch == thor.EpochV1 {
			return tableStateV1
		}
		return tableStateV0
	default:
		panic("ledgerstore: unknown block type")
	}
}

// probeOrder is the table probe sequence for BlockGet, chosen because
// state blocks dominate at steady state.
var probeOrder = []string{tableStateV1, tableStateV0, tableSend, tableReceive, tableOpen, tableChange}

// BlockPut stores a non-state variant (open/send/receive/change) with
// its sideband, in the table selected by its type.
func (t *Txn) BlockPut(hash thor.Bytes32, b block.Block, sb block.Sideband) error {
	if b.Type() == block.TypeState {
		panic("ledgerstore: use BlockPutState for state blocks")
	}
	table := tableForType(b.Type(), thor.EpochV0)
	rec := append(block.Encode(b), sb.Encode()...)
	return t.put(table, hash[:], rec)
}

// BlockPutState stores a state block into state_v0 or state_v1
// according to the account's resolved post-processing epoch.
func (t *Txn) BlockPutState(hash thor.Bytes32, b block.Block, sb block.Sideband, epoch thor.Epoch) error {
	table := tableStateV0
	if epoch == thor.EpochV1 {
		table = tableStateV1
	}
	rec := append(block.Encode(b), sb.Encode()...)
	return t.put(table, hash[:], rec)
}

// BlockGet probes tables in probeOrder and returns the first hit.
func (t *Txn) BlockGet(hash thor.Bytes32) (block.Block, block.Sideband, bool, error) {
	for _, table := range probeOrder {
		v, err := t.get(table, hash[:])
		if err != nil {
			return nil, block.Sideband{}, false, err
		}
		if v == nil {
			continue
		}
		b, sb, err := decodeRecord(v)
		if err != nil {
			return nil, block.Sideband{}, false, errors.Wrapf(err, "decode block record in table %s", table)
		}
		return b, sb, true, nil
	}
	return nil, block.Sideband{}, false, nil
}

func decodeRecord(v []byte) (block.Block, block.Sideband, error) {
	if len(v) < 9 {
		return nil, block.Sideband{}, thor.ErrInvalidLength
	}
	t := block.Type(v[len(v)-9])
	// We don't know block length until we know the type; find it by
	// trying the known length, then treating the remainder as sideband.
	blen := blockRecordLen(t)
	if blen > len(v) {
		return nil, block.Sideband{}, thor.ErrInvalidLength
	}
	b, err := block.Decode(v[:blen])
	if err != nil {
		return nil, block.Sideband{}, err
	}
	sb, err := block.DecodeSideband(v[blen:], true)
	if err != nil {
		return nil, block.Sideband{}, err
	}
	return b, sb, nil
}

// BlockExists reports whether hash is present in any block table.
func (t *Txn) BlockExists(hash thor.Bytes32) (bool, error) {
	for _, table := range probeOrder {
		ok, err := t.has(table, hash[:])
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// BlockSuccessor returns the successor pointer recorded in hash's
// sideband, or the zero hash if hash is a head or unknown.
func (t *Txn) BlockSuccessor(hash thor.Bytes32) (thor.Bytes32, error) {
	_, sb, ok, err := t.BlockGet(hash)
	if err != nil || !ok {
		return thor.Bytes32{}, err
	}
	return sb.Successor, nil
}

// BlockSuccessorClear zeroes hash's successor pointer (used by
// rollback when removing hash's successor block).
func (t *Txn) BlockSuccessorClear(hash thor.Bytes32) error {
	for _, table := range probeOrder {
		v, err := t.get(table, hash[:])
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		b, sb, err := decodeRecord(v)
		if err != nil {
			return err
		}
		sb.Successor = thor.Bytes32{}
		rec := append(block.Encode(b), sb.Encode()...)
		return t.put(table, hash[:], rec)
	}
	return nil
}

// BlockSetSuccessor sets hash's successor pointer to succ.
func (t *Txn) BlockSetSuccessor(hash, succ thor.Bytes32) error {
	for _, table := range probeOrder {
		v, err := t.get(table, hash[:])
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		b, sb, err := decodeRecord(v)
		if err != nil {
			return err
		}
		sb.Successor = succ
		rec := append(block.Encode(b), sb.Encode()...)
		return t.put(table, hash[:], rec)
	}
	return errors.New("ledgerstore: BlockSetSuccessor: block not found")
}

// BlockDelete removes hash from whichever table holds it.
func (t *Txn) BlockDelete(hash thor.Bytes32) error {
	for _, table := range probeOrder {
		ok, err := t.has(table, hash[:])
		if err != nil {
			return err
		}
		if ok {
			return t.delete(table, hash[:])
		}
	}
	return nil
}

// BlockOwner returns the account that owns the block at hash, reading
// it either from the block itself (state variant, which carries its
// own Account field) or from its sideband (legacy variants, which
// record the owning account at write time).
func (t *Txn) BlockOwner(hash thor.Bytes32) (thor.Address, bool, error) {
	b, sb, ok, err := t.BlockGet(hash)
	if err != nil || !ok {
		return thor.Address{}, false, err
	}
	if sv, isState := b.(*block.State); isState {
		return sv.Account(), true, nil
	}
	return sb.Account, true, nil
}

// FrontierGet returns the account owning a legacy (non-state) head
// block, for the frontiers lookup table.
func (t *Txn) FrontierGet(hash thor.Bytes32) (thor.Address, bool, error) {
	v, err := t.get(tableFrontiers, hash[:])
	if err != nil || v == nil {
		return thor.Address{}, false, err
	}
	return thor.BytesToBytes32(v), true, nil
}

// FrontierPut records hash as addr's legacy head.
func (t *Txn) FrontierPut(hash thor.Bytes32, addr thor.Address) error {
	return t.put(tableFrontiers, hash[:], addr[:])
}

// FrontierDelete removes a legacy frontier entry.
func (t *Txn) FrontierDelete(hash thor.Bytes32) error {
	return t.delete(tableFrontiers, hash[:])
}
