package cryptoutil

import (
	"encoding/binary"

	"github.com/ledgerlattice/corenode/thor"
)

// ValidateWork reports whether nonce is valid proof-of-work for root
// under threshold: hash(nonce || root) >= threshold.
//
// The comparison is done on the big-endian interpretation of the first 8
// bytes of the digest, matching the fixed-difficulty-threshold scheme
// used by the reference implementation's work validators.
func ValidateWork(nonce thor.Work, root thor.Bytes32, threshold uint64) bool {
	return WorkValue(nonce, root) >= threshold
}

// WorkValue computes the 64-bit work value for (nonce, root), used both
// for validation and for a work generator's search loop.
func WorkValue(nonce thor.Work, root thor.Bytes32) uint64 {
	var nb [8]byte
	binary.LittleEndian.PutUint64(nb[:], uint64(nonce))
	digest := thor.Blake2b256(nb[:], root[:])
	return binary.BigEndian.Uint64(digest[:8])
}
