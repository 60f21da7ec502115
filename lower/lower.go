// Package lower translates statement trees into IR.
//
// The translator walks the tree once, maintaining a scope tree that mirrors
// the nesting of the source. Every scope it opens becomes an ir.Block
// declaring the scope's variables, so that each activation gets fresh
// slots. Structural errors are raised as panics carrying *Error and
// recovered per top-level statement.
package lower

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/contract"
	"github.com/chazu/sable/ir"
	"github.com/chazu/sable/runtime"
	"github.com/chazu/sable/scope"
)

var log = commonlog.GetLogger("sable.lower")

var (
	ErrCannotChangeControlFlow = errors.New("cannot change control flow")
	ErrDuplicateIdentifier     = scope.ErrDuplicateIdentifier
	ErrConstantAssignment      = errors.New("assignment to constant")
	ErrMalformedNode           = errors.New("malformed node")
)

// Error is a structural translation error.
type Error struct {
	Err     error
	Kind    ast.Kind
	Span    ast.Span
	Message string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v: %s", e.Kind, e.Err, e.Message)
	if e.Span.Start.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %s", e.Span.Start.Line, e.Span.Start.Column, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorMode selects what happens to a statement that fails to translate.
type ErrorMode uint8

const (
	// Panic aborts translation and returns the first error.
	Panic ErrorMode = iota
	// Recover replaces each failing top-level statement with code that
	// throws the error when it runs.
	Recover
)

// Options configures a Translator.
type Options struct {
	ErrorMode ErrorMode
	// DebugInfo emits a debug node carrying the span of every statement.
	DebugInfo bool
	// ModuleObject makes a unit evaluate to an object holding its
	// top-level declarations. Otherwise a unit evaluates to its last
	// statement.
	ModuleObject bool
	// Contracts resolves contract names. Defaults to the builtins.
	Contracts *contract.Registry
}

// Unit is one translated compilation unit.
type Unit struct {
	ID   uuid.UUID
	Pool *runtime.InternPool
	Body *ir.Block
	// Errors holds the statements that failed in Recover mode.
	Errors []error

	program *ir.Program
}

// Run executes the unit against st. The unit's literals live in its own
// pool and are released with the unit.
func (u *Unit) Run(st *runtime.State) (runtime.Value, error) {
	return u.program.Run(st)
}

type loop struct {
	acc      *ir.Var
	sequence bool
	suppress bool
	op       ast.Operator
	custom   ir.Node
}

// Translator lowers statement trees. A Translator is not safe for
// concurrent use; independent units can be lowered in parallel with one
// Translator each.
type Translator struct {
	opts      Options
	contracts *contract.Registry

	tree     *scope.Tree
	temps    [][]*ir.Var // indexed by scope.ID
	loops    map[scope.ID]*loop
	pool     *runtime.InternPool
	literals []runtime.Value
}

// New returns a translator configured by opts.
func New(opts Options) *Translator {
	reg := opts.Contracts
	if reg == nil {
		reg = contract.NewRegistry()
	}
	return &Translator{opts: opts, contracts: reg}
}

// Translate lowers stmts with a fresh translator.
func Translate(stmts []ast.Node, opts Options) (*Unit, error) {
	return New(opts).Translate(stmts)
}

// Translate lowers stmts into a new unit.
func (t *Translator) Translate(stmts []ast.Node) (*Unit, error) {
	t.tree = scope.NewTree()
	t.temps = [][]*ir.Var{nil}
	t.loops = make(map[scope.ID]*loop)
	t.pool = runtime.NewInternPool()
	t.literals = nil

	unit := &Unit{ID: uuid.New(), Pool: t.pool}
	var body []ir.Node
	for _, s := range stmts {
		node, err := t.statement(s)
		if err != nil {
			if t.opts.ErrorMode == Panic {
				return nil, err
			}
			log.Warningf("unit %s: %s", unit.ID, err)
			unit.Errors = append(unit.Errors, err)
			node = &ir.Throw{Value: &ir.Const{Value: runtime.Errorf(runtime.CodeStructural, "%s", err)}}
		}
		if t.opts.DebugInfo {
			body = append(body, &ir.Debug{Span: s.Span()})
		}
		body = append(body, node)
	}
	if t.opts.ModuleObject {
		body = append(body, t.moduleObject())
	}

	prologue := make([]ir.Node, len(t.literals))
	for i, v := range t.literals {
		prologue[i] = &ir.Populate{Pool: t.pool, Index: i, Value: v}
	}
	root := &ir.Block{Vars: t.locals(), Body: append(prologue, body...)}
	prog, err := ir.Compile(root)
	if err != nil {
		return nil, fmt.Errorf("lower: %w", err)
	}
	unit.Body, unit.program = root, prog
	log.Debugf("unit %s: %d statements, %d interned literals", unit.ID, len(stmts), len(t.literals))
	return unit, nil
}

func (t *Translator) statement(n ast.Node) (node ir.Node, err error) {
	depth := len(t.temps)
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			t.unwind(depth)
			node, err = nil, e
		}
	}()
	return t.expr(n), nil
}

func (t *Translator) moduleObject() ir.Node {
	var fields []ir.Field
	for _, d := range t.tree.Symbols(t.tree.Root()) {
		fields = append(fields, ir.Field{Name: d.Name, Value: &ir.Load{Var: d.Var}, Constant: d.Constant})
	}
	return &ir.MakeObject{Fields: fields}
}

func (t *Translator) fail(n ast.Node, err error, format string, args ...any) {
	e := &Error{Err: err, Message: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Kind, e.Span = n.Kind(), n.Span()
	}
	panic(e)
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (t *Translator) push(kind scope.Kind, inh scope.Inheritance) scope.ID {
	id := t.tree.Push(kind, inh)
	t.temps = append(t.temps, nil)
	return id
}

func (t *Translator) pop() {
	id := t.tree.Current()
	delete(t.loops, id)
	t.tree.Pop()
	t.temps = t.temps[:len(t.temps)-1]
}

func (t *Translator) unwind(depth int) {
	for len(t.temps) > depth {
		t.pop()
	}
}

// temp allocates a hidden variable in the current scope.
func (t *Translator) temp(name string) *ir.Var {
	v := ir.NewTemp(name)
	t.own(v)
	return v
}

func (t *Translator) own(v *ir.Var) {
	id := t.tree.Current()
	t.temps[id] = append(t.temps[id], v)
}

// locals returns the variables the current scope's block allocates.
func (t *Translator) locals() []*ir.Var {
	id := t.tree.Current()
	return append(t.tree.Vars(id), t.temps[id]...)
}

// close pops the current scope and returns its block.
func (t *Translator) close(body []ir.Node) *ir.Block {
	b := &ir.Block{Vars: t.locals(), Body: body}
	t.pop()
	return b
}

func (t *Translator) scoped(kind scope.Kind, inh scope.Inheritance, fn func() []ir.Node) *ir.Block {
	t.push(kind, inh)
	return t.close(fn())
}

// nested lowers n in a scope sharing the labels and state of the current
// one.
func (t *Translator) nested(kind scope.Kind, n ast.Node) ir.Node {
	if n == nil {
		return nil
	}
	return t.scoped(kind, scope.InheritsBoth, func() []ir.Node {
		return []ir.Node{t.expr(n)}
	})
}

func (t *Translator) declare(n ast.Node, name string, attrs scope.Attrs) *scope.Declaration {
	d, err := t.tree.Declare(name, attrs)
	if err != nil {
		t.fail(n, ErrDuplicateIdentifier, "%q is already declared in this scope", name)
	}
	return d
}
