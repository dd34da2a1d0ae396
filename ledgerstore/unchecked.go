package ledgerstore

import (
	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/kv"
	"github.com/ledgerlattice/corenode/thor"
)

// UncheckedInfo is the unchecked table's value: a full block awaiting
// its dependency (predecessor or source).
type UncheckedInfo struct {
	Block block.Block
}

func uncheckedKey(dependency, hash thor.Bytes32) []byte {
	out := make([]byte, 64)
	copy(out[0:32], dependency[:])
	copy(out[32:64], hash[:])
	return out
}

// UncheckedPut records b as depending on dependency (its missing
// previous or source/link hash).
func (t *Txn) UncheckedPut(dependency thor.Bytes32, hash thor.Bytes32, b block.Block) error {
	return t.put(tableUnchecked, uncheckedKey(dependency, hash), block.Encode(b))
}

// UncheckedGet returns every block waiting on dependency.
func (t *Txn) UncheckedGet(dependency thor.Bytes32) ([]block.Block, error) {
	prefix := dependency[:]
	it := t.iterate(tableUnchecked, kv.BytesPrefix(prefix))
	defer it.Release()
	var out []block.Block
	for it.Next() {
		b, err := block.Decode(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, it.Error()
}

// UncheckedDelete removes one entry by its full (dependency, hash) key.
func (t *Txn) UncheckedDelete(dependency, hash thor.Bytes32) error {
	return t.delete(tableUnchecked, uncheckedKey(dependency, hash))
}
