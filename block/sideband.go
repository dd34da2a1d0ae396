package block

import (
	"encoding/binary"

	"github.com/ledgerlattice/corenode/thor"
)

// Sideband is per-block metadata stored alongside the block record. It
// is never part of the block's hash.
type Sideband struct {
	BlockType    Type
	Account      thor.Address // only meaningful for non-state variants
	Successor    thor.Bytes32 // zero if this block is its account's head
	BalanceAfter thor.Amount
	Height       uint64
	Timestamp    uint64
}

// fullSidebandLen is the encoded length of a complete sideband record.
const fullSidebandLen = 1 + 32 + 32 + 16 + 8 + 8 // see Encode.

// Encode serializes the sideband using the "full" layout: type(1) ||
// account(32) || successor(32) || balance_after(16) || height(8,BE) ||
// timestamp(8,BE).
func (s Sideband) Encode() []byte {
	out := make([]byte, 1+32+32+16+8+8)
	out[0] = byte(s.BlockType)
	copy(out[1:33], s.Account[:])
	copy(out[33:65], s.Successor[:])
	copy(out[65:81], s.BalanceAfter[:])
	binary.BigEndian.PutUint64(out[81:89], s.Height)
	binary.BigEndian.PutUint64(out[89:97], s.Timestamp)
	return out
}

// legacySidebandLen is the length of a pre-upgrade record: only the
// successor pointer. Older records may lack a full sideband.
const legacySidebandLen = 32

// DecodeSideband decodes a sideband suffix. fullSideband selects which
// of the two on-disk layouts to expect: the schema version, not the
// data itself, determines the layout.
func DecodeSideband(b []byte, fullSideband bool) (Sideband, error) {
	if fullSideband {
		if len(b) != 1+32+32+16+8+8 {
			return Sideband{}, thor.ErrInvalidLength
		}
		var s Sideband
		s.BlockType = Type(b[0])
		s.Account = thor.BytesToBytes32(b[1:33])
		s.Successor = thor.BytesToBytes32(b[33:65])
		copy(s.BalanceAfter[:], b[65:81])
		s.Height = binary.BigEndian.Uint64(b[81:89])
		s.Timestamp = binary.BigEndian.Uint64(b[89:97])
		return s, nil
	}
	if len(b) != legacySidebandLen {
		return Sideband{}, thor.ErrInvalidLength
	}
	return Sideband{Successor: thor.BytesToBytes32(b)}, nil
}

// EncodeLegacy serializes only the successor pointer, for stores not yet
// migrated to the full sideband layout.
func (s Sideband) EncodeLegacy() []byte {
	out := make([]byte, 32)
	copy(out, s.Successor[:])
	return out
}
