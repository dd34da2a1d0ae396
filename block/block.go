// Package block implements the five block-lattice block variants
// (open/send/receive/change/state), their canonical hashing, their wire
// codec, and fluent builders.
//
// The source's class hierarchy plus visitor is replaced by a tagged
// variant: one Go struct per wire layout (each wrapping a private body,
// mirroring the teacher's block.Summary/summaryBody split), dispatched on
// Type by a switch in the ledger processor rather than virtual calls.
package block

import (
	"fmt"

	"github.com/ledgerlattice/corenode/thor"
)

// Type identifies which of the five block variants a Block is.
type Type uint8

const (
	TypeOpen Type = iota
	TypeSend
	TypeReceive
	TypeChange
	TypeState
)

func (t Type) String() string {
	switch t {
	case TypeOpen:
		return "open"
	case TypeSend:
		return "send"
	case TypeReceive:
		return "receive"
	case TypeChange:
		return "change"
	case TypeState:
		return "state"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Block is implemented by every block variant.
type Block interface {
	Type() Type
	// Previous is the hash of the preceding block in this account's
	// chain; zero for an Open block and for an opening State block.
	Previous() thor.Bytes32
	Signature() thor.Signature
	Work() thor.Work
	// Hash returns the block's canonical hash: the digest over its
	// hashable fields, excluding signature and work.
	Hash() thor.Bytes32
	// Root returns the value proof-of-work and the election key are
	// computed against: Previous() if non-zero, else the account being
	// opened.
	Root() thor.Bytes32
	// WithSignature returns a copy of the block with sig attached.
	WithSignature(sig thor.Signature) Block
	// WithWork returns a copy of the block with the PoW nonce attached.
	WithWork(w thor.Work) Block
}

// domainSeparator is 32 zero bytes prefixed to the hashable fields of a
// state block before hashing.
var domainSeparator [32]byte

// ---- Open ----

type openBody struct {
	account        thor.Address
	representative thor.Address
	source         thor.Bytes32
	signature      thor.Signature
	work           thor.Work
}

// Open is the first block of an account, receiving a send.
type Open struct{ body openBody }

// NewOpen constructs an unsigned, unworked Open block.
func NewOpen(account, representative thor.Address, source thor.Bytes32) *Open {
	return &Open{openBody{account: account, representative: representative, source: source}}
}

func (b *Open) Type() Type                { return TypeOpen }
func (b *Open) Previous() thor.Bytes32    { return thor.Bytes32{} }
func (b *Open) Signature() thor.Signature { return b.body.signature }
func (b *Open) Work() thor.Work           { return b.body.work }
func (b *Open) Root() thor.Bytes32        { return b.body.account }
func (b *Open) Account() thor.Address     { return b.body.account }
func (b *Open) Representative() thor.Address { return b.body.representative }
func (b *Open) Source() thor.Bytes32      { return b.body.source }

func (b *Open) Hash() thor.Bytes32 {
	return thor.Blake2b256(b.body.account[:], b.body.representative[:], b.body.source[:])
}

func (b *Open) WithSignature(sig thor.Signature) Block {
	cpy := *b
	cpy.body.signature = sig
	return &cpy
}

func (b *Open) WithWork(w thor.Work) Block {
	cpy := *b
	cpy.body.work = w
	return &cpy
}

// ---- Send ----

type sendBody struct {
	previous    thor.Bytes32
	destination thor.Address
	balance     thor.Amount
	signature   thor.Signature
	work        thor.Work
}

// Send spends from the signer's account to a destination; Balance is the
// new balance after the send.
type Send struct{ body sendBody }

// NewSend constructs an unsigned, unworked Send block.
func NewSend(previous thor.Bytes32, destination thor.Address, balance thor.Amount) *Send {
	return &Send{sendBody{previous: previous, destination: destination, balance: balance}}
}

func (b *Send) Type() Type                { return TypeSend }
func (b *Send) Previous() thor.Bytes32    { return b.body.previous }
func (b *Send) Signature() thor.Signature { return b.body.signature }
func (b *Send) Work() thor.Work           { return b.body.work }
func (b *Send) Root() thor.Bytes32        { return b.body.previous }
func (b *Send) Destination() thor.Address { return b.body.destination }
func (b *Send) Balance() thor.Amount      { return b.body.balance }

func (b *Send) Hash() thor.Bytes32 {
	return thor.Blake2b256(b.body.previous[:], b.body.destination[:], b.body.balance[:])
}

func (b *Send) WithSignature(sig thor.Signature) Block {
	cpy := *b
	cpy.body.signature = sig
	return &cpy
}

func (b *Send) WithWork(w thor.Work) Block {
	cpy := *b
	cpy.body.work = w
	return &cpy
}

// ---- Receive ----

type receiveBody struct {
	previous  thor.Bytes32
	source    thor.Bytes32
	signature thor.Signature
	work      thor.Work
}

// Receive credits a prior send whose hash is Source.
type Receive struct{ body receiveBody }

// NewReceive constructs an unsigned, unworked Receive block.
func NewReceive(previous, source thor.Bytes32) *Receive {
	return &Receive{receiveBody{previous: previous, source: source}}
}

func (b *Receive) Type() Type                { return TypeReceive }
func (b *Receive) Previous() thor.Bytes32    { return b.body.previous }
func (b *Receive) Signature() thor.Signature { return b.body.signature }
func (b *Receive) Work() thor.Work           { return b.body.work }
func (b *Receive) Root() thor.Bytes32        { return b.body.previous }
func (b *Receive) Source() thor.Bytes32      { return b.body.source }

func (b *Receive) Hash() thor.Bytes32 {
	return thor.Blake2b256(b.body.previous[:], b.body.source[:])
}

func (b *Receive) WithSignature(sig thor.Signature) Block {
	cpy := *b
	cpy.body.signature = sig
	return &cpy
}

func (b *Receive) WithWork(w thor.Work) Block {
	cpy := *b
	cpy.body.work = w
	return &cpy
}

// ---- Change ----

type changeBody struct {
	previous       thor.Bytes32
	representative thor.Address
	signature      thor.Signature
	work           thor.Work
}

// Change retargets the signer's delegated representative; balance is
// unchanged.
type Change struct{ body changeBody }

// NewChange constructs an unsigned, unworked Change block.
func NewChange(previous thor.Bytes32, representative thor.Address) *Change {
	return &Change{changeBody{previous: previous, representative: representative}}
}

func (b *Change) Type() Type                   { return TypeChange }
func (b *Change) Previous() thor.Bytes32       { return b.body.previous }
func (b *Change) Signature() thor.Signature    { return b.body.signature }
func (b *Change) Work() thor.Work              { return b.body.work }
func (b *Change) Root() thor.Bytes32           { return b.body.previous }
func (b *Change) Representative() thor.Address { return b.body.representative }

func (b *Change) Hash() thor.Bytes32 {
	return thor.Blake2b256(b.body.previous[:], b.body.representative[:])
}

func (b *Change) WithSignature(sig thor.Signature) Block {
	cpy := *b
	cpy.body.signature = sig
	return &cpy
}

func (b *Change) WithWork(w thor.Work) Block {
	cpy := *b
	cpy.body.work = w
	return &cpy
}

// ---- State ----

type stateBody struct {
	account        thor.Address
	previous       thor.Bytes32
	representative thor.Address
	balance        thor.Amount
	link           thor.Bytes32
	signature      thor.Signature
	work           thor.Work
}

// State is the universal block form. Link is reused as destination
// (send), source hash (receive), or the epoch marker (epoch
// transition).
type State struct{ body stateBody }

// NewState constructs an unsigned, unworked State block.
func NewState(account, previous, representative thor.Address, balance thor.Amount, link thor.Bytes32) *State {
	return &State{stateBody{
		account:        account,
		previous:       previous,
		representative: representative,
		balance:        balance,
		link:           link,
	}}
}

func (b *State) Type() Type                   { return TypeState }
func (b *State) Signature() thor.Signature    { return b.body.signature }
func (b *State) Work() thor.Work              { return b.body.work }
func (b *State) Account() thor.Address        { return b.body.account }
func (b *State) Previous() thor.Bytes32       { return b.body.previous }
func (b *State) Representative() thor.Address { return b.body.representative }
func (b *State) Balance() thor.Amount         { return b.body.balance }
func (b *State) Link() thor.Bytes32           { return b.body.link }

// Root is Previous unless this is an opening state block (previous
// zero), in which case it is Account.
func (b *State) Root() thor.Bytes32 {
	if b.body.previous.IsZero() {
		return b.body.account
	}
	return b.body.previous
}

func (b *State) Hash() thor.Bytes32 {
	return thor.Blake2b256(
		domainSeparator[:],
		b.body.account[:],
		b.body.previous[:],
		b.body.representative[:],
		b.body.balance[:],
		b.body.link[:],
	)
}

func (b *State) WithSignature(sig thor.Signature) Block {
	cpy := *b
	cpy.body.signature = sig
	return &cpy
}

func (b *State) WithWork(w thor.Work) Block {
	cpy := *b
	cpy.body.work = w
	return &cpy
}
