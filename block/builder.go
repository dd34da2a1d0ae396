package block

import (
	"fmt"

	"github.com/ledgerlattice/corenode/thor"
)

// fieldBit identifies one buildable field. The declared order is the
// deterministic precedence build() uses to report the first missing
// field: account, balance, link, previous, representative, signature,
// work for the universal (state) form, extended here with
// source/destination for the narrower variants.
type fieldBit uint16

const (
	bitAccount fieldBit = 1 << iota
	bitBalance
	bitLink
	bitPrevious
	bitRepresentative
	bitSource
	bitDestination
	bitSignature
	bitWork
)

// precedence is the fixed order build() walks when reporting the first
// missing field.
var precedence = []struct {
	bit  fieldBit
	name string
}{
	{bitAccount, "account"},
	{bitBalance, "balance"},
	{bitLink, "link"},
	{bitPrevious, "previous"},
	{bitRepresentative, "representative"},
	{bitSource, "source"},
	{bitDestination, "destination"},
	{bitSignature, "signature"},
	{bitWork, "work"},
}

// base is embedded by every variant builder. It tracks which fields have
// been set and the first error encountered by any setter (hex/base32
// parse failures); the final error returned is always the first one
// recorded.
type base struct {
	set      fieldBit
	firstErr error
}

func (b *base) recordErr(err error) {
	if b.firstErr == nil {
		b.firstErr = err
	}
}

func (b *base) markSet(bit fieldBit) { b.set |= bit }

func (b *base) checkRequired(required fieldBit) error {
	if b.firstErr != nil {
		return b.firstErr
	}
	for _, p := range precedence {
		if required&p.bit != 0 && b.set&p.bit == 0 {
			return fmt.Errorf("block: missing required field %q", p.name)
		}
	}
	return nil
}

func (b *base) zero() {
	b.set = 0
	b.firstErr = nil
}

// ---- OpenBuilder ----

const openRequired = bitAccount | bitRepresentative | bitSource | bitSignature | bitWork

type OpenBuilder struct {
	base
	body openBody
}

func (ob *OpenBuilder) Account(a thor.Address) *OpenBuilder {
	ob.body.account = a
	ob.markSet(bitAccount)
	return ob
}

func (ob *OpenBuilder) AccountHex(s string) *OpenBuilder {
	v, err := thor.ParseBytes32(s)
	if err != nil {
		ob.recordErr(err)
		return ob
	}
	return ob.Account(v)
}

func (ob *OpenBuilder) Representative(a thor.Address) *OpenBuilder {
	ob.body.representative = a
	ob.markSet(bitRepresentative)
	return ob
}

func (ob *OpenBuilder) Source(h thor.Bytes32) *OpenBuilder {
	ob.body.source = h
	ob.markSet(bitSource)
	return ob
}

func (ob *OpenBuilder) Signature(s thor.Signature) *OpenBuilder {
	ob.body.signature = s
	ob.markSet(bitSignature)
	return ob
}

func (ob *OpenBuilder) Work(w thor.Work) *OpenBuilder {
	ob.body.work = w
	ob.markSet(bitWork)
	return ob
}

func (ob *OpenBuilder) Zero() *OpenBuilder {
	ob.zero()
	ob.body = openBody{}
	return ob
}

func (ob *OpenBuilder) Build() (*Open, error) {
	if err := ob.checkRequired(openRequired); err != nil {
		return nil, err
	}
	return &Open{ob.body}, nil
}

// ---- SendBuilder ----

const sendRequired = bitPrevious | bitDestination | bitBalance | bitSignature | bitWork

type SendBuilder struct {
	base
	body sendBody
}

func (sb *SendBuilder) Previous(h thor.Bytes32) *SendBuilder {
	sb.body.previous = h
	sb.markSet(bitPrevious)
	return sb
}

// Destination sets the destination field. This builder uses a distinct
// bit from any other field rather than reusing bitLink, so check
// ordering stays unambiguous.
func (sb *SendBuilder) Destination(a thor.Address) *SendBuilder {
	sb.body.destination = a
	sb.markSet(bitDestination)
	return sb
}

func (sb *SendBuilder) Balance(v thor.Amount) *SendBuilder {
	sb.body.balance = v
	sb.markSet(bitBalance)
	return sb
}

func (sb *SendBuilder) Signature(s thor.Signature) *SendBuilder {
	sb.body.signature = s
	sb.markSet(bitSignature)
	return sb
}

func (sb *SendBuilder) Work(w thor.Work) *SendBuilder {
	sb.body.work = w
	sb.markSet(bitWork)
	return sb
}

func (sb *SendBuilder) Zero() *SendBuilder {
	sb.zero()
	sb.body = sendBody{}
	return sb
}

func (sb *SendBuilder) Build() (*Send, error) {
	if err := sb.checkRequired(sendRequired); err != nil {
		return nil, err
	}
	return &Send{sb.body}, nil
}

// ---- ReceiveBuilder ----

const receiveRequired = bitPrevious | bitSource | bitSignature | bitWork

type ReceiveBuilder struct {
	base
	body receiveBody
}

func (rb *ReceiveBuilder) Previous(h thor.Bytes32) *ReceiveBuilder {
	rb.body.previous = h
	rb.markSet(bitPrevious)
	return rb
}

func (rb *ReceiveBuilder) Source(h thor.Bytes32) *ReceiveBuilder {
	rb.body.source = h
	rb.markSet(bitSource)
	return rb
}

func (rb *ReceiveBuilder) Signature(s thor.Signature) *ReceiveBuilder {
	rb.body.signature = s
	rb.markSet(bitSignature)
	return rb
}

func (rb *ReceiveBuilder) Work(w thor.Work) *ReceiveBuilder {
	rb.body.work = w
	rb.markSet(bitWork)
	return rb
}

func (rb *ReceiveBuilder) Zero() *ReceiveBuilder {
	rb.zero()
	rb.body = receiveBody{}
	return rb
}

func (rb *ReceiveBuilder) Build() (*Receive, error) {
	if err := rb.checkRequired(receiveRequired); err != nil {
		return nil, err
	}
	return &Receive{rb.body}, nil
}

// ---- ChangeBuilder ----

const changeRequired = bitPrevious | bitRepresentative | bitSignature | bitWork

type ChangeBuilder struct {
	base
	body changeBody
}

func (cb *ChangeBuilder) Previous(h thor.Bytes32) *ChangeBuilder {
	cb.body.previous = h
	cb.markSet(bitPrevious)
	return cb
}

func (cb *ChangeBuilder) Representative(a thor.Address) *ChangeBuilder {
	cb.body.representative = a
	cb.markSet(bitRepresentative)
	return cb
}

func (cb *ChangeBuilder) Signature(s thor.Signature) *ChangeBuilder {
	cb.body.signature = s
	cb.markSet(bitSignature)
	return cb
}

func (cb *ChangeBuilder) Work(w thor.Work) *ChangeBuilder {
	cb.body.work = w
	cb.markSet(bitWork)
	return cb
}

func (cb *ChangeBuilder) Zero() *ChangeBuilder {
	cb.zero()
	cb.body = changeBody{}
	return cb
}

func (cb *ChangeBuilder) Build() (*Change, error) {
	if err := cb.checkRequired(changeRequired); err != nil {
		return nil, err
	}
	return &Change{cb.body}, nil
}

// ---- StateBuilder ----

const stateRequired = bitAccount | bitBalance | bitLink | bitRepresentative | bitSignature | bitWork

// StateBuilder follows the field precedence order: account, balance,
// link, previous, representative, signature, work. Previous is not
// required (zero means an opening state block).
type StateBuilder struct {
	base
	body stateBody
}

func (sb *StateBuilder) Account(a thor.Address) *StateBuilder {
	sb.body.account = a
	sb.markSet(bitAccount)
	return sb
}

func (sb *StateBuilder) AccountHex(s string) *StateBuilder {
	v, err := thor.ParseBytes32(s)
	if err != nil {
		sb.recordErr(err)
		return sb
	}
	return sb.Account(v)
}

func (sb *StateBuilder) Balance(v thor.Amount) *StateBuilder {
	sb.body.balance = v
	sb.markSet(bitBalance)
	return sb
}

func (sb *StateBuilder) Link(h thor.Bytes32) *StateBuilder {
	sb.body.link = h
	sb.markSet(bitLink)
	return sb
}

func (sb *StateBuilder) LinkHex(s string) *StateBuilder {
	v, err := thor.ParseBytes32(s)
	if err != nil {
		sb.recordErr(err)
		return sb
	}
	return sb.Link(v)
}

func (sb *StateBuilder) Previous(h thor.Bytes32) *StateBuilder {
	sb.body.previous = h
	sb.markSet(bitPrevious)
	return sb
}

func (sb *StateBuilder) Representative(a thor.Address) *StateBuilder {
	sb.body.representative = a
	sb.markSet(bitRepresentative)
	return sb
}

func (sb *StateBuilder) Signature(s thor.Signature) *StateBuilder {
	sb.body.signature = s
	sb.markSet(bitSignature)
	return sb
}

func (sb *StateBuilder) Work(w thor.Work) *StateBuilder {
	sb.body.work = w
	sb.markSet(bitWork)
	return sb
}

func (sb *StateBuilder) Zero() *StateBuilder {
	sb.zero()
	sb.body = stateBody{}
	return sb
}

func (sb *StateBuilder) Build() (*State, error) {
	// Previous is intentionally excluded from stateRequired: zero value
	// is meaningful (opening block).
	if err := sb.checkRequired(stateRequired); err != nil {
		return nil, err
	}
	return &State{sb.body}, nil
}
