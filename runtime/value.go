package runtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/chazu/sable/contract"
)

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// Value is any script value. Every value reports its contract.
type Value interface {
	Contract() contract.Contract
}

// Callable is implemented by values that can be invoked.
type Callable interface {
	Value
	Call(st *State, args []Value) Value
}

// MemberGetter is implemented by values exposing named members.
type MemberGetter interface {
	Value
	GetMember(name string) (Value, bool)
}

// MemberSetter is implemented by values with assignable members.
type MemberSetter interface {
	Value
	SetMember(name string, v Value) error
}

// ContractProvider is implemented by values that can stand for a contract
// on the right of an `is` test or in a selection case.
type ContractProvider interface {
	Value
	AsContract() contract.Contract
}

// Equaler lets a value define equality with another value.
type Equaler interface {
	Value
	EqualValue(other Value) bool
}

type voidValue struct{}

func (voidValue) Contract() contract.Contract { return contract.Void }
func (voidValue) String() string              { return "void" }

// Void is the "no value" marker. Statements without a value produce it,
// loops skip it when accumulating.
var Void Value = voidValue{}

// IsVoid reports whether v is the no-value marker (or a nil interface).
func IsVoid(v Value) bool {
	return v == nil || v == Void
}

// Integer is a 64-bit signed integer.
type Integer int64

func (Integer) Contract() contract.Contract { return contract.Integer }
func (i Integer) String() string            { return strconv.FormatInt(int64(i), 10) }

// Real is a 64-bit float.
type Real float64

func (Real) Contract() contract.Contract { return contract.Real }
func (r Real) String() string            { return strconv.FormatFloat(float64(r), 'g', -1, 64) }

// String is an immutable string.
type String string

func (String) Contract() contract.Contract { return contract.String }
func (s String) String() string            { return string(s) }

// Boolean is true or false.
type Boolean bool

func (Boolean) Contract() contract.Contract { return contract.Boolean }
func (b Boolean) String() string            { return strconv.FormatBool(bool(b)) }

// ContractValue wraps a contract as a first-class value.
type ContractValue struct {
	C contract.Contract
}

func (ContractValue) Contract() contract.Contract { return contract.Meta }
func (c ContractValue) AsContract() contract.Contract {
	return c.C
}
func (c ContractValue) String() string { return c.C.Name() }

func (c ContractValue) EqualValue(other Value) bool {
	o, ok := other.(ContractProvider)
	return ok && contract.Relate(c.C, o.AsContract()) == contract.Same
}

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

// Array is a growable ordered sequence. Arrays are shared by reference and
// are not synchronized.
type Array struct {
	Elements []Value
}

// NewArray returns an array holding elems.
func NewArray(elems ...Value) *Array {
	return &Array{Elements: elems}
}

func (*Array) Contract() contract.Contract { return contract.Array }

// Append adds v at the end.
func (a *Array) Append(v Value) {
	a.Elements = append(a.Elements, v)
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.Elements) }

func (a *Array) GetMember(name string) (Value, bool) {
	switch name {
	case "length":
		return Integer(len(a.Elements)), true
	}
	return nil, false
}

func (a *Array) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = Format(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ---------------------------------------------------------------------------
// Object
// ---------------------------------------------------------------------------

// Object is an ordered set of named slots.
type Object struct {
	fields *linkedhashmap.Map // name -> *Slot
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{fields: linkedhashmap.New()}
}

func (*Object) Contract() contract.Contract { return contract.Object }

// Define adds or replaces the slot for name.
func (o *Object) Define(name string, s *Slot) {
	o.fields.Put(name, s)
}

// Slot returns the slot for name.
func (o *Object) Slot(name string) (*Slot, bool) {
	v, ok := o.fields.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*Slot), true
}

// Names returns member names in definition order.
func (o *Object) Names() []string {
	keys := o.fields.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.(string)
	}
	return names
}

// Len returns the number of members.
func (o *Object) Len() int { return o.fields.Size() }

func (o *Object) GetMember(name string) (Value, bool) {
	s, ok := o.Slot(name)
	if !ok {
		return nil, false
	}
	return s.Get(), true
}

// SetMember assigns an existing member or adds a new variable member.
func (o *Object) SetMember(name string, v Value) error {
	if s, ok := o.Slot(name); ok {
		return s.Set(v)
	}
	o.Define(name, NewVariable(v))
	return nil
}

func (o *Object) String() string {
	names := o.Names()
	parts := make([]string, len(names))
	for i, n := range names {
		v, _ := o.GetMember(n)
		parts[i] = n + ": " + Format(v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// Function is a callable produced by lowering an action, or a host builtin.
type Function struct {
	Name  string
	Arity int // -1 when variadic
	Fn    func(st *State, args []Value) Value
}

// NewBuiltin wraps a host function.
func NewBuiltin(name string, arity int, fn func(st *State, args []Value) Value) *Function {
	return &Function{Name: name, Arity: arity, Fn: fn}
}

func (*Function) Contract() contract.Contract { return contract.Function }

func (f *Function) Call(st *State, args []Value) Value {
	return f.Fn(st, args)
}

func (f *Function) String() string {
	if f.Name == "" {
		return "<action>"
	}
	return "<action " + f.Name + ">"
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// ContractOf returns the contract of v, treating nil as Void.
func ContractOf(v Value) contract.Contract {
	if v == nil {
		return contract.Void
	}
	return v.Contract()
}

// Format renders v for display.
func Format(v Value) string {
	if v == nil {
		return "void"
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("<%s>", v.Contract().Name())
}
