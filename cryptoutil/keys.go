// Package cryptoutil wraps the signature and proof-of-work primitives
// used by the block and vote models. Ed25519 is the one primitive this
// repository's example corpus does not itself import (the corpus reaches
// for secp256k1/ECDSA via go-ethereum's crypto package throughout), so
// this package uses the standard library's crypto/ed25519 — see
// DESIGN.md for why no third-party alternative from the corpus applies.
package cryptoutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/ledgerlattice/corenode/thor"
)

// KeyPair holds an Ed25519 private key together with the derived
// account address (its public key).
type KeyPair struct {
	Private ed25519.PrivateKey
	Address thor.Address
}

// GenerateKeyPair creates a fresh random Ed25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Private: priv, Address: thor.BytesToBytes32(pub)}, nil
}

// Sign signs digest (typically a block or vote signing hash) and returns
// a 64-byte Ed25519 signature.
func (k *KeyPair) Sign(digest thor.Bytes32) thor.Signature {
	sig := ed25519.Sign(k.Private, digest[:])
	return thor.BytesToSignature(sig)
}

// Verify checks that sig is a valid Ed25519 signature over digest by the
// account identified by addr (its public key).
func Verify(addr thor.Address, digest thor.Bytes32, sig thor.Signature) bool {
	pub := ed25519.PublicKey(addr[:])
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, digest[:], sig[:])
}

// VerifyBatch verifies n (account, digest, signature) triples and
// returns a parallel slice of booleans, matching the vote processor's
// convention of submitting a whole batch to the crypto verifier and
// getting back a parallel pass/fail array. Ed25519 has no native
// batch-verification primitive in the standard library, so this loops —
// the parallelism is achieved by the caller sharding batches across the
// signature-check thread pool, not within this call.
func VerifyBatch(addrs []thor.Address, digests []thor.Bytes32, sigs []thor.Signature) ([]bool, error) {
	if len(addrs) != len(digests) || len(digests) != len(sigs) {
		return nil, fmt.Errorf("cryptoutil: mismatched batch lengths")
	}
	out := make([]bool, len(addrs))
	for i := range addrs {
		out[i] = Verify(addrs[i], digests[i], sigs[i])
	}
	return out, nil
}
