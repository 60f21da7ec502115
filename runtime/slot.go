package runtime

import (
	"github.com/chazu/sable/contract"
)

// Slot is an executable storage cell. Closures capture slots, not values,
// so a write through one closure is visible through every other holder of
// the same slot. Slots are not synchronized.
type Slot struct {
	value    Value
	constant bool
	bound    bool
	contract contract.Contract // nil accepts anything

	// Visible marks the slot for display by an attached debugger.
	Visible bool
}

// NewVariable returns a mutable slot holding v.
func NewVariable(v Value) *Slot {
	return &Slot{value: orVoid(v), bound: true, Visible: true}
}

// NewConstant returns an unbound constant slot. Bind gives it its value.
func NewConstant() *Slot {
	return &Slot{value: Void, constant: true, Visible: true}
}

// NewSlot returns an empty slot with the given mutability.
func NewSlot(constant bool) *Slot {
	if constant {
		return NewConstant()
	}
	return &Slot{value: Void, Visible: true}
}

func orVoid(v Value) Value {
	if v == nil {
		return Void
	}
	return v
}

// Get returns the current value.
func (s *Slot) Get() Value { return s.value }

// Constant reports whether the slot is immutable once bound.
func (s *Slot) Constant() bool { return s.constant }

// Bound reports whether the slot has received its binding.
func (s *Slot) Bound() bool { return s.bound }

// ContractBinding returns the declared contract, or nil.
func (s *Slot) ContractBinding() contract.Contract { return s.contract }

// Bind performs the initial binding of value and contract. A constant slot
// can be bound once; a variable slot may be re-bound.
func (s *Slot) Bind(v Value, c contract.Contract) error {
	if s.constant && s.bound {
		return Errorf(CodeConstantAssignment, "constant already bound")
	}
	v = orVoid(v)
	if c != nil && !IsVoid(v) && !contract.Is(ContractOf(v), c) {
		return Errorf(CodeContractMismatch, "%s does not satisfy %s", ContractOf(v).Name(), c.Name())
	}
	s.value = v
	s.contract = c
	s.bound = true
	return nil
}

// Set replaces the value of a variable slot, honouring its contract.
func (s *Slot) Set(v Value) error {
	if s.constant {
		return Errorf(CodeConstantAssignment, "cannot assign to a constant")
	}
	v = orVoid(v)
	if s.contract != nil && !contract.Is(ContractOf(v), s.contract) {
		return Errorf(CodeContractMismatch, "%s does not satisfy %s", ContractOf(v).Name(), s.contract.Name())
	}
	s.value = v
	s.bound = true
	return nil
}

// Snapshot returns an independent copy of the slot: same attributes, same
// current value.
func (s *Slot) Snapshot() *Slot {
	cp := *s
	return &cp
}
