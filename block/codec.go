package block

import (
	"fmt"

	"github.com/ledgerlattice/corenode/thor"
)

// fieldLens gives the encoded length of each variant's hashable fields.
// Receive and Change alias at 64 bytes, which is why the type byte —
// not the length of the hashable-field prefix — is what a generic
// decoder must key off; see Decode.
var fieldLens = map[Type]int{
	TypeOpen:    32 + 32 + 32,
	TypeSend:    32 + 32 + 16,
	TypeReceive: 32 + 32,
	TypeChange:  32 + 32,
	TypeState:   32 + 32 + 32 + 16 + 32,
}

func hashableFields(b Block) []byte {
	switch v := b.(type) {
	case *Open:
		return concat(v.body.account[:], v.body.representative[:], v.body.source[:])
	case *Send:
		return concat(v.body.previous[:], v.body.destination[:], v.body.balance[:])
	case *Receive:
		return concat(v.body.previous[:], v.body.source[:])
	case *Change:
		return concat(v.body.previous[:], v.body.representative[:])
	case *State:
		return concat(v.body.account[:], v.body.previous[:], v.body.representative[:], v.body.balance[:], v.body.link[:])
	default:
		panic(fmt.Sprintf("block: unknown variant %T", b))
	}
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Encode serializes b as hashable fields (variant-dependent) || 64 byte
// signature || 1 type byte || 8 byte little-endian work nonce.
func Encode(b Block) []byte {
	fields := hashableFields(b)
	sig := b.Signature()
	out := make([]byte, 0, len(fields)+64+1+8)
	out = append(out, fields...)
	out = append(out, sig[:]...)
	out = append(out, byte(b.Type()))
	out = append(out, b.Work().Bytes()...)
	return out
}

// Decode parses a block serialized by Encode, reading the type from the
// fixed offset len(data)-9 (the byte immediately before the 8-byte work
// nonce), then validating the hashable-field prefix length against that
// variant's expected length.
func Decode(data []byte) (Block, error) {
	const tail = 64 + 1 + 8
	if len(data) < tail {
		return nil, thor.ErrInvalidLength
	}
	sigOff := len(data) - tail
	typeOff := sigOff + 64
	t := Type(data[typeOff])
	expected, ok := fieldLens[t]
	if !ok {
		return nil, fmt.Errorf("block: unknown type byte %d", t)
	}
	if sigOff != expected {
		return nil, thor.ErrInvalidLength
	}

	fields := data[:sigOff]
	sig := thor.BytesToSignature(data[sigOff:typeOff])
	work := thor.WorkFromBytes(data[typeOff+1:])

	var b Block
	switch t {
	case TypeOpen:
		b = &Open{openBody{
			account:        thor.BytesToBytes32(fields[0:32]),
			representative: thor.BytesToBytes32(fields[32:64]),
			source:         thor.BytesToBytes32(fields[64:96]),
		}}
	case TypeSend:
		var balance thor.Amount
		copy(balance[:], fields[64:80])
		b = &Send{sendBody{
			previous:    thor.BytesToBytes32(fields[0:32]),
			destination: thor.BytesToBytes32(fields[32:64]),
			balance:     balance,
		}}
	case TypeReceive:
		b = &Receive{receiveBody{
			previous: thor.BytesToBytes32(fields[0:32]),
			source:   thor.BytesToBytes32(fields[32:64]),
		}}
	case TypeChange:
		b = &Change{changeBody{
			previous:       thor.BytesToBytes32(fields[0:32]),
			representative: thor.BytesToBytes32(fields[32:64]),
		}}
	case TypeState:
		var balance thor.Amount
		copy(balance[:], fields[96:112])
		b = &State{stateBody{
			account:        thor.BytesToBytes32(fields[0:32]),
			previous:       thor.BytesToBytes32(fields[32:64]),
			representative: thor.BytesToBytes32(fields[64:96]),
			balance:        balance,
			link:           thor.BytesToBytes32(fields[112:144]),
		}}
	}
	b = b.WithSignature(sig)
	b = b.WithWork(work)
	return b, nil
}
