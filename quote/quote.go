// Package quote exposes code to scripts as data.
//
// A Quotation wraps a node together with the factory of its kind. Scripts
// inspect quotations through the factory accessors, build new ones with
// the factory constructors, splice values into placeholders with Expand and
// rewrite trees with Visit. A quotation can be lowered and run at any time.
package quote

import (
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/contract"
	"github.com/chazu/sable/lower"
	"github.com/chazu/sable/runtime"
)

var log = commonlog.GetLogger("sable.quote")

// Quotation is a node as a script value. It has no slots of its own: parts
// are read through its factory and replaced as a whole by Modify.
type Quotation struct {
	mu      sync.RWMutex
	node    ast.Node
	factory *Factory
}

// Convert wraps n in a quotation of its kind.
func Convert(n ast.Node) *Quotation {
	return &Quotation{node: n, factory: FactoryFor(n.Kind())}
}

// Node returns the current node. Callers must not mutate it.
func (q *Quotation) Node() ast.Node {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.node
}

func (q *Quotation) Factory() *Factory { return q.factory }

func (q *Quotation) Contract() contract.Contract { return q.factory.code }

// Modify replaces the node with one built from parts by the quotation's
// own factory.
func (q *Quotation) Modify(parts []runtime.Value) bool {
	return q.factory.Modify(q, parts)
}

// Compile lowers the node as a unit of its own and runs it against st.
func (q *Quotation) Compile(st *runtime.State) (runtime.Value, error) {
	unit, err := lower.Translate([]ast.Node{q.Node()}, lower.Options{Contracts: st.Runtime.Contracts})
	if err != nil {
		return nil, err
	}
	return unit.Run(st)
}

// GetMember exposes the parts of the node read-only, plus its kind.
func (q *Quotation) GetMember(name string) (runtime.Value, bool) {
	if name == "kind" {
		return runtime.String(q.factory.Name()), true
	}
	return q.factory.Part(q, name)
}

// EqualValue compares the wrapped code, ignoring spans.
func (q *Quotation) EqualValue(other runtime.Value) bool {
	o, ok := other.(*Quotation)
	return ok && ast.Equal(q.Node(), o.Node())
}

func (q *Quotation) String() string {
	return "<quote " + q.factory.Name() + ">"
}

// Install lets the runtime turn quote expressions into quotations and
// registers the per-kind contracts as "expression.<kind>".
func Install(rt *runtime.Runtime) {
	rt.Quoter = func(n ast.Node) runtime.Value { return Convert(n) }
	for _, f := range Factories() {
		rt.Contracts.Register(f.code.String(), f.code)
	}
}

// ---------------------------------------------------------------------------
// Tree rewriting
// ---------------------------------------------------------------------------

// Expand returns a copy of n in which every placeholder #i is replaced by
// values[i]. Placeholders without a value, or whose value has no node form,
// are kept.
func Expand(n ast.Node, values []runtime.Value) ast.Node {
	return ast.Transform(n, func(c ast.Node) (ast.Node, bool) {
		p, ok := c.(*ast.Placeholder)
		if !ok || p.ID < 0 || p.ID >= int64(len(values)) {
			return nil, false
		}
		r := Splice(values[p.ID])
		return r, r != nil
	})
}

// Visit returns a copy of n rewritten by fn. fn sees every node pre-order;
// a node it replaces is not descended into. Declined or ill-fitting
// replacements keep the original.
func Visit(n ast.Node, fn func(ast.Node) (ast.Node, bool)) ast.Node {
	return ast.Transform(n, fn)
}

// Reduce folds operators whose operands are literals. Operations that
// would fault are left in place, as is everything under a quote.
func Reduce(n ast.Node) ast.Node {
	if n == nil {
		return nil
	}
	if _, ok := n.(*ast.Quote); ok {
		return ast.Clone(n)
	}
	n = ast.MapChildren(n, Reduce)
	switch x := n.(type) {
	case *ast.Binary:
		l, lok := literalValue(x.Left)
		r, rok := literalValue(x.Right)
		if lok && rok {
			return fold(x, func() runtime.Value { return runtime.Binary(x.Op, l, r) })
		}
	case *ast.Unary:
		if v, ok := literalValue(x.Operand); ok {
			return fold(x, func() runtime.Value { return runtime.Unary(x.Op, v) })
		}
	}
	return n
}

func fold(n ast.Node, eval func() runtime.Value) ast.Node {
	v, err := runtime.Protect(eval)
	if err != nil {
		log.Debugf("not folding %s: %s", n.Kind(), err)
		return n
	}
	lit := scalar(v, n.Span())
	if lit == nil {
		return n
	}
	return lit
}

func literalValue(n ast.Node) (runtime.Value, bool) {
	switch n := n.(type) {
	case *ast.Integer:
		return runtime.Integer(n.Value), true
	case *ast.Real:
		return runtime.Real(n.Value), true
	case *ast.String:
		return runtime.String(n.Value), true
	case *ast.Boolean:
		return runtime.Boolean(n.Value), true
	case *ast.Void:
		return runtime.Void, true
	}
	return nil, false
}

func scalar(v runtime.Value, span ast.Span) ast.Node {
	switch v := v.(type) {
	case runtime.Integer:
		return &ast.Integer{SpanVal: span, Value: int64(v)}
	case runtime.Real:
		return &ast.Real{SpanVal: span, Value: float64(v)}
	case runtime.String:
		return &ast.String{SpanVal: span, Value: string(v)}
	case runtime.Boolean:
		return &ast.Boolean{SpanVal: span, Value: bool(v)}
	}
	if runtime.IsVoid(v) {
		return &ast.Void{SpanVal: span}
	}
	return nil
}
