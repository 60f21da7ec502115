// Package ir defines the lowered, directly executable form of a program and
// compiles it to Go closures.
//
// Variables are declared by the Block (or Lambda, or Catch) that owns them;
// every activation of the owner allocates fresh slots. Labels are placed by
// Mark inside a Block; Goto unwinds to the Block holding the Mark and
// resumes right after it. Thrown script errors travel as Go panics carrying
// *runtime.Thrown.
package ir

import (
	"sync/atomic"

	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/runtime"
)

// Node is the interface implemented by all IR nodes.
type Node interface {
	irNode() // marker method
}

var nextID atomic.Uint64

// Var is a compile-time reference to a slot.
type Var struct {
	Name     string
	Constant bool
	Hidden   bool // not shown to a debugger
	id       uint64
}

// NewVar returns a fresh variable.
func NewVar(name string, constant bool) *Var {
	return &Var{Name: name, Constant: constant, id: nextID.Add(1)}
}

// NewTemp returns a fresh hidden variable for translator temporaries.
func NewTemp(name string) *Var {
	v := NewVar(name, false)
	v.Hidden = true
	return v
}

// Label is a jump target.
type Label struct {
	Name string
	id   uint64
}

// NewLabel returns a fresh label.
func NewLabel(name string) *Label {
	return &Label{Name: name, id: nextID.Add(1)}
}

// ---------------------------------------------------------------------------
// Values and storage
// ---------------------------------------------------------------------------

// Const yields a fixed value.
type Const struct {
	Value runtime.Value
}

// Pooled yields an interned literal from its unit's pool.
type Pooled struct {
	Pool  *runtime.InternPool
	Index int
}

// Populate stores a literal into its pool entry. Units start with one
// Populate per interned literal.
type Populate struct {
	Pool  *runtime.InternPool
	Index int
	Value runtime.Value
}

// Load reads a variable.
type Load struct {
	Var *Var
}

// Store assigns a variable and yields the value.
type Store struct {
	Var   *Var
	Value Node
}

// Bind performs the initial binding of a variable, with an optional
// contract expression.
type Bind struct {
	Var      *Var
	Value    Node
	Contract Node
}

// Global reads a name that did not resolve at translation time.
type Global struct {
	Name string
}

// StoreGlobal assigns an existing global.
type StoreGlobal struct {
	Name  string
	Value Node
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

// Block runs Body in order with fresh slots for Vars and yields the value
// of the last statement. Mark, Debug and Populate do not change it.
type Block struct {
	Vars []*Var
	Body []Node
}

// Mark places a label.
type Mark struct {
	Label *Label
}

// Goto jumps to Label. Value, when set, becomes the value of the enclosing
// Block at the resume point.
type Goto struct {
	Label *Label
	Value Node
}

// If yields Then or Else; a missing Else yields Void.
type If struct {
	Test Node
	Then Node
	Else Node
}

// AndAlso short-circuits on a false left operand.
type AndAlso struct {
	Left, Right Node
}

// OrElse short-circuits on a true left operand.
type OrElse struct {
	Left, Right Node
}

// Binary applies an infix operator.
type Binary struct {
	Op          ast.Operator
	Left, Right Node
}

// Unary applies a prefix operator.
type Unary struct {
	Op      ast.Operator
	Operand Node
}

// ---------------------------------------------------------------------------
// Compound values
// ---------------------------------------------------------------------------

type Call struct {
	Target Node
	Args   []Node
}

type Index struct {
	Target, Index Node
}

type SetIndex struct {
	Target, Index, Value Node
}

type Member struct {
	Target Node
	Name   string
}

type SetMember struct {
	Target Node
	Name   string
	Value  Node
}

type MakeArray struct {
	Elements []Node
}

// Field is one member of MakeObject.
type Field struct {
	Name     string
	Value    Node
	Constant bool
}

type MakeObject struct {
	Fields []Field
}

// Param is one lambda parameter. Default is evaluated in the callee's frame
// when the argument is missing; Contract is evaluated when the lambda is
// created.
type Param struct {
	Var      *Var
	Default  Node
	Contract Node
}

// Lambda creates a closure over the current frame.
type Lambda struct {
	Name   string
	Params []Param
	Result Node
	Body   Node
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

// Catch is one handler. Var, when set, is bound to the thrown value and is
// visible to Filter and Body.
type Catch struct {
	Var      *Var
	Contract Node
	Filter   Node
	Body     Node
}

// Try runs Body, offers a thrown value to each Catch in order, and runs
// Finally exactly once on every way out.
type Try struct {
	Body    Node
	Catches []Catch
	Finally Node
}

// Throw raises a value.
type Throw struct {
	Value Node
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

// Fork runs Body on the executor against a snapshot of the current frames
// and yields its future.
type Fork struct {
	Body Node
}

// Await waits for a future, optionally through a synchronizer.
type Await struct {
	Target       Node
	Synchronizer Node
}

// ---------------------------------------------------------------------------
// Selection, loops, reflection
// ---------------------------------------------------------------------------

// SelectCase is one arm of a Select.
type SelectCase struct {
	Values []Node
	Body   Node
}

// Select yields the body of the first case with a matching value. Without a
// Comparer a contract candidate matches values satisfying it and any other
// candidate matches by equality.
type Select struct {
	Subject  Node
	Cases    []SelectCase
	Default  Node
	Comparer Node
}

// Accumulate folds Value into the accumulator Var. Void values are skipped.
// In sequence mode the accumulator holds an array and the value is
// appended; otherwise the first value is stored and later ones are combined
// with Op, or by calling Custom when it is set.
type Accumulate struct {
	Var      *Var
	Value    Node
	Sequence bool
	Op       ast.Operator
	Custom   Node
}

// Iterate yields an iterator over an array, string, object or integer
// range.
type Iterate struct {
	Source Node
}

// Next advances the iterator held in Iter, stores the element in Into and
// yields true, or yields false when exhausted.
type Next struct {
	Iter *Var
	Into *Var
}

// Quote yields a quotation of Node.
type Quote struct {
	Node ast.Node
}

// Debug reports Span to the attached debugger.
type Debug struct {
	Span ast.Span
}

func (*Const) irNode()       {}
func (*Pooled) irNode()      {}
func (*Populate) irNode()    {}
func (*Load) irNode()        {}
func (*Store) irNode()       {}
func (*Bind) irNode()        {}
func (*Global) irNode()      {}
func (*StoreGlobal) irNode() {}
func (*Block) irNode()       {}
func (*Mark) irNode()        {}
func (*Goto) irNode()        {}
func (*If) irNode()          {}
func (*AndAlso) irNode()     {}
func (*OrElse) irNode()      {}
func (*Binary) irNode()      {}
func (*Unary) irNode()       {}
func (*Call) irNode()        {}
func (*Index) irNode()       {}
func (*SetIndex) irNode()    {}
func (*Member) irNode()      {}
func (*SetMember) irNode()   {}
func (*MakeArray) irNode()   {}
func (*MakeObject) irNode()  {}
func (*Lambda) irNode()      {}
func (*Try) irNode()         {}
func (*Throw) irNode()       {}
func (*Fork) irNode()        {}
func (*Await) irNode()       {}
func (*Select) irNode()      {}
func (*Accumulate) irNode()  {}
func (*Iterate) irNode()     {}
func (*Next) irNode()        {}
func (*Quote) irNode()       {}
func (*Debug) irNode()       {}
