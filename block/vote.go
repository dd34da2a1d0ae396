package block

import (
	"encoding/binary"

	"github.com/ledgerlattice/corenode/cryptoutil"
	"github.com/ledgerlattice/corenode/thor"
)

// Vote is a representative's endorsement of one or more block hashes
// for a contested root. Signed over account || sequence || hashes.
type Vote struct {
	Account   thor.Address
	Sequence  uint64
	Hashes    []thor.Bytes32
	Signature thor.Signature
}

// SigningHash computes H(account || sequence || hashes), the digest the
// vote's signature covers.
func (v *Vote) SigningHash() thor.Bytes32 {
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], v.Sequence)
	parts := make([][]byte, 0, 2+len(v.Hashes))
	parts = append(parts, v.Account[:], seq[:])
	for _, h := range v.Hashes {
		hc := h
		parts = append(parts, hc[:])
	}
	return thor.Blake2b256(parts...)
}

// Sign signs v with key, setting v.Signature. The caller must ensure
// key's address matches v.Account.
func (v *Vote) Sign(key *cryptoutil.KeyPair) {
	v.Signature = key.Sign(v.SigningHash())
}

// Verify reports whether v.Signature is a valid signature by v.Account
// over v's signing hash.
func (v *Vote) Verify() bool {
	return cryptoutil.Verify(v.Account, v.SigningHash(), v.Signature)
}

// Encode serializes v as account(32) || signature(64) || sequence(8,LE)
// || payload, where payload here is always the length-prefixed
// hash-list form (4-byte big-endian count, then 32 bytes per hash). The
// single-full-block payload form is distinguished at the
// message-header level by callers outside this package.
func (v *Vote) Encode() []byte {
	out := make([]byte, 0, 32+64+8+4+32*len(v.Hashes))
	out = append(out, v.Account[:]...)
	out = append(out, v.Signature[:]...)
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], v.Sequence)
	out = append(out, seq[:]...)
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(v.Hashes)))
	out = append(out, count[:]...)
	for _, h := range v.Hashes {
		out = append(out, h[:]...)
	}
	return out
}

// DecodeVote parses a vote serialized by Encode.
func DecodeVote(data []byte) (*Vote, error) {
	if len(data) < 32+64+8+4 {
		return nil, thor.ErrInvalidLength
	}
	v := &Vote{}
	v.Account = thor.BytesToBytes32(data[0:32])
	v.Signature = thor.BytesToSignature(data[32:96])
	v.Sequence = binary.LittleEndian.Uint64(data[96:104])
	count := binary.BigEndian.Uint32(data[104:108])
	rest := data[108:]
	if uint64(len(rest)) != uint64(count)*32 {
		return nil, thor.ErrInvalidLength
	}
	v.Hashes = make([]thor.Bytes32, count)
	for i := uint32(0); i < count; i++ {
		v.Hashes[i] = thor.BytesToBytes32(rest[i*32 : i*32+32])
	}
	return v, nil
}

// Supersedes reports whether (v.Sequence, v.Hashes[0]) strictly
// supersedes (seq, hash) under the monotone-vote rule: a strictly
// higher sequence always supersedes; an equal sequence never does
// (replay).
func (v *Vote) Supersedes(seq uint64, hash thor.Bytes32) bool {
	if len(v.Hashes) == 0 {
		return false
	}
	return v.Sequence > seq
}
