package ledgerstore

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/ledgerlattice/corenode/block"
	"github.com/ledgerlattice/corenode/kv"
	"github.com/ledgerlattice/corenode/thor"
)

// variantTables lists the five tables random sampling chooses among,
// in the order their counts are reported to BlockRandom.
var variantTables = []string{tableSend, tableReceive, tableOpen, tableChange, tableStateV0}

// TableCounts returns the number of records in each of variantTables,
// in the same order, for proportional sampling.
func (t *Txn) TableCounts() ([]int, error) {
	counts := make([]int, len(variantTables))
	for i, table := range variantTables {
		it := t.iterate(table, kv.Range{})
		n := 0
		for it.Next() {
			n++
		}
		it.Release()
		counts[i] = n
	}
	return counts, nil
}

// BlockRandom picks a variant proportionally to its table's share of
// counts, then seeks a cursor to a random 256-bit key and returns the
// next existing entry, wrapping to the first if past the end.
func (t *Txn) BlockRandom() (block.Block, thor.Bytes32, bool, error) {
	counts, err := t.TableCounts()
	if err != nil {
		return nil, thor.Bytes32{}, false, err
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return nil, thor.Bytes32{}, false, nil
	}

	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, thor.Bytes32{}, false, err
	}
	pick := int(binary.BigEndian.Uint32(seed[:]) % uint32(total))
	table := variantTables[len(variantTables)-1]
	for i, c := range counts {
		if pick < c {
			table = variantTables[i]
			break
		}
		pick -= c
	}

	var key thor.Bytes32
	if _, err := rand.Read(key[:]); err != nil {
		return nil, thor.Bytes32{}, false, err
	}

	it := t.iterate(table, kv.Range{Start: key[:]})
	found := it.Next()
	var hash thor.Bytes32
	var val []byte
	if found {
		hash = thor.BytesToBytes32(it.Key())
		val = append([]byte{}, it.Value()...)
	}
	it.Release()
	if !found {
		// Past the end: wrap to the first key in the table.
		it = t.iterate(table, kv.Range{})
		found = it.Next()
		if found {
			hash = thor.BytesToBytes32(it.Key())
			val = append([]byte{}, it.Value()...)
		}
		it.Release()
	}
	if !found {
		return nil, thor.Bytes32{}, false, nil
	}
	b, _, err := decodeRecord(val)
	if err != nil {
		return nil, thor.Bytes32{}, false, err
	}
	return b, hash, true, nil
}
