package quote

import (
	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/contract"
	"github.com/chazu/sable/runtime"
)

// Factory builds and decomposes nodes of one kind. There is exactly one
// factory per kind; its contract is what quotations of that kind satisfy.
type Factory struct {
	kind   ast.Kind
	code   *contract.Code
	schema []ast.Field
}

func newFactory(k ast.Kind) *Factory {
	return &Factory{kind: k, code: contract.NewCode(k.String()), schema: ast.Schema(k)}
}

// The factories, one per node kind.
var (
	Integer     = newFactory(ast.KindInteger)
	Real        = newFactory(ast.KindReal)
	String      = newFactory(ast.KindString)
	Boolean     = newFactory(ast.KindBoolean)
	Void        = newFactory(ast.KindVoid)
	Name        = newFactory(ast.KindName)
	Binary      = newFactory(ast.KindBinary)
	Unary       = newFactory(ast.KindUnary)
	Assign      = newFactory(ast.KindAssign)
	Array       = newFactory(ast.KindArray)
	Object      = newFactory(ast.KindObject)
	Member      = newFactory(ast.KindMember)
	Condition   = newFactory(ast.KindCondition)
	For         = newFactory(ast.KindFor)
	ForEach     = newFactory(ast.KindForEach)
	While       = newFactory(ast.KindWhile)
	Invoke      = newFactory(ast.KindInvoke)
	Indexer     = newFactory(ast.KindIndexer)
	Parameter   = newFactory(ast.KindParameter)
	Signature   = newFactory(ast.KindSignature)
	Action      = newFactory(ast.KindAction)
	Trap        = newFactory(ast.KindTrap)
	Try         = newFactory(ast.KindTry)
	Case        = newFactory(ast.KindCase)
	Selection   = newFactory(ast.KindSelection)
	Fork        = newFactory(ast.KindFork)
	Await       = newFactory(ast.KindAwait)
	Placeholder = newFactory(ast.KindPlaceholder)
	Complex     = newFactory(ast.KindComplex)
	ContractRef = newFactory(ast.KindContractRef)
	Declaration = newFactory(ast.KindDeclaration)
	Return      = newFactory(ast.KindReturn)
	Break       = newFactory(ast.KindBreak)
	Continue    = newFactory(ast.KindContinue)
	Fault       = newFactory(ast.KindFault)
	Quote       = newFactory(ast.KindQuote)
)

// Factories lists every factory in kind order.
func Factories() []*Factory {
	out := make([]*Factory, 0, len(ast.Kinds()))
	for _, k := range ast.Kinds() {
		out = append(out, FactoryFor(k))
	}
	return out
}

// FactoryFor returns the factory of kind k.
func FactoryFor(k ast.Kind) *Factory {
	switch k {
	case ast.KindInteger:
		return Integer
	case ast.KindReal:
		return Real
	case ast.KindString:
		return String
	case ast.KindBoolean:
		return Boolean
	case ast.KindVoid:
		return Void
	case ast.KindName:
		return Name
	case ast.KindBinary:
		return Binary
	case ast.KindUnary:
		return Unary
	case ast.KindAssign:
		return Assign
	case ast.KindArray:
		return Array
	case ast.KindObject:
		return Object
	case ast.KindMember:
		return Member
	case ast.KindCondition:
		return Condition
	case ast.KindFor:
		return For
	case ast.KindForEach:
		return ForEach
	case ast.KindWhile:
		return While
	case ast.KindInvoke:
		return Invoke
	case ast.KindIndexer:
		return Indexer
	case ast.KindParameter:
		return Parameter
	case ast.KindSignature:
		return Signature
	case ast.KindAction:
		return Action
	case ast.KindTrap:
		return Trap
	case ast.KindTry:
		return Try
	case ast.KindCase:
		return Case
	case ast.KindSelection:
		return Selection
	case ast.KindFork:
		return Fork
	case ast.KindAwait:
		return Await
	case ast.KindPlaceholder:
		return Placeholder
	case ast.KindComplex:
		return Complex
	case ast.KindContractRef:
		return ContractRef
	case ast.KindDeclaration:
		return Declaration
	case ast.KindReturn:
		return Return
	case ast.KindBreak:
		return Break
	case ast.KindContinue:
		return Continue
	case ast.KindFault:
		return Fault
	case ast.KindQuote:
		return Quote
	}
	panic("quote: no factory for kind " + k.String())
}

func (f *Factory) Kind() ast.Kind { return f.kind }

// Name is the kind name scripts see, e.g. "binary".
func (f *Factory) Name() string { return f.kind.String() }

// Fields returns the names of the kind's parts in order.
func (f *Factory) Fields() []string {
	out := make([]string, len(f.schema))
	for i, fd := range f.schema {
		out[i] = fd.Name
	}
	return out
}

func (f *Factory) Contract() contract.Contract { return contract.Meta }

// AsContract returns the contract every quotation of this kind satisfies.
func (f *Factory) AsContract() contract.Contract { return f.code }

func (f *Factory) String() string { return "<factory " + f.Name() + ">" }

// Create builds a node from script values laid out along the kind's
// schema. Missing trailing parts are treated as void. It reports false when
// the parts do not fit.
func (f *Factory) Create(parts []runtime.Value) (ast.Node, bool) {
	return f.build(ast.Span{}, parts)
}

func (f *Factory) build(span ast.Span, parts []runtime.Value) (ast.Node, bool) {
	if len(parts) > len(f.schema) {
		log.Debugf("%s: %d parts for %d fields", f.Name(), len(parts), len(f.schema))
		return nil, false
	}
	raw := make([]any, len(f.schema))
	for i, fd := range f.schema {
		v := runtime.Void
		if i < len(parts) {
			v = parts[i]
		} else if fd.Type == ast.PartNode && !fd.Optional {
			log.Debugf("%s: missing %s", f.Name(), fd.Name)
			return nil, false
		}
		p, ok := fromValue(fd, v)
		if !ok {
			log.Debugf("%s: bad %s: %s", f.Name(), fd.Name, runtime.Format(v))
			return nil, false
		}
		raw[i] = p
	}
	n, err := ast.Build(f.kind, span, raw)
	if err != nil {
		log.Debugf("%s", err)
		return nil, false
	}
	return n, true
}

// Modify replaces q's node with one built from parts. q must be of this
// factory's kind; on mismatch q is left unchanged and false is returned.
func (f *Factory) Modify(q *Quotation, parts []runtime.Value) bool {
	if q.factory != f {
		return false
	}
	n, ok := f.build(q.Node().Span(), parts)
	if !ok {
		return false
	}
	q.mu.Lock()
	q.node = n
	q.mu.Unlock()
	return true
}

// Part returns the named part of q as a script value.
func (f *Factory) Part(q *Quotation, name string) (runtime.Value, bool) {
	if q.factory != f {
		return nil, false
	}
	i, ok := ast.FieldIndex(f.kind, name)
	if !ok {
		return nil, false
	}
	return toValue(f.schema[i], ast.Parts(q.Node())[i]), true
}

// Call creates a quotation; void signals mismatching parts.
func (f *Factory) Call(st *runtime.State, args []runtime.Value) runtime.Value {
	n, ok := f.Create(args)
	if !ok {
		return runtime.Void
	}
	return Convert(n)
}

func (f *Factory) GetMember(name string) (runtime.Value, bool) {
	switch name {
	case "create":
		return runtime.NewBuiltin(f.Name()+".create", -1, f.Call), true
	case "modify":
		return runtime.NewBuiltin(f.Name()+".modify", -1, func(st *runtime.State, args []runtime.Value) runtime.Value {
			if len(args) == 0 {
				runtime.Faultf(runtime.CodeTypeMismatch, "%s.modify: missing quotation", f.Name())
			}
			return runtime.Boolean(f.Modify(quotationArg(f.Name()+".modify", args[0]), args[1:]))
		}), true
	case "kind":
		return runtime.String(f.Name()), true
	case "fields":
		names := f.Fields()
		vals := make([]runtime.Value, len(names))
		for i, n := range names {
			vals[i] = runtime.String(n)
		}
		return runtime.NewArray(vals...), true
	}
	if _, ok := ast.FieldIndex(f.kind, name); !ok {
		return nil, false
	}
	accessor := f.Name() + "." + name
	return runtime.NewBuiltin(accessor, 1, func(st *runtime.State, args []runtime.Value) runtime.Value {
		if len(args) != 1 {
			runtime.Faultf(runtime.CodeTypeMismatch, "%s takes one quotation", accessor)
		}
		v, ok := f.Part(quotationArg(accessor, args[0]), name)
		if !ok {
			runtime.Faultf(runtime.CodeTypeMismatch, "%s: not a %s quotation", accessor, f.Name())
		}
		return v
	}), true
}

func quotationArg(fn string, v runtime.Value) *Quotation {
	q, ok := v.(*Quotation)
	if !ok {
		runtime.Faultf(runtime.CodeTypeMismatch, "%s: expected a quotation, got %s", fn, runtime.ContractOf(v).Name())
	}
	return q
}

// ---------------------------------------------------------------------------
// Part conversion
// ---------------------------------------------------------------------------

// fromValue converts a script value into the Go part Build expects.
func fromValue(fd ast.Field, v runtime.Value) (any, bool) {
	switch fd.Type {
	case ast.PartNode:
		if runtime.IsVoid(v) && fd.Optional {
			return nil, true
		}
		n := Splice(v)
		return n, n != nil
	case ast.PartNodes:
		if runtime.IsVoid(v) {
			return []ast.Node(nil), true
		}
		arr, ok := v.(*runtime.Array)
		if !ok {
			return nil, false
		}
		ns := make([]ast.Node, len(arr.Elements))
		for i, e := range arr.Elements {
			if ns[i] = Splice(e); ns[i] == nil {
				return nil, false
			}
		}
		return ns, true
	case ast.PartString:
		if runtime.IsVoid(v) {
			return "", true
		}
		s, ok := v.(runtime.String)
		return string(s), ok
	case ast.PartInt:
		i, ok := v.(runtime.Integer)
		return int64(i), ok
	case ast.PartReal:
		switch r := v.(type) {
		case runtime.Real:
			return float64(r), true
		case runtime.Integer:
			return float64(r), true
		}
		return nil, false
	case ast.PartBool:
		if runtime.IsVoid(v) {
			return false, true
		}
		b, ok := v.(runtime.Boolean)
		return bool(b), ok
	case ast.PartOperator:
		if runtime.IsVoid(v) {
			return ast.OpNone, true
		}
		s, ok := v.(runtime.String)
		if !ok {
			return nil, false
		}
		return ast.OperatorBySymbol(string(s))
	}
	return nil, false
}

// toValue converts a Go part into a script value; nodes become quotations.
func toValue(fd ast.Field, p any) runtime.Value {
	switch p := p.(type) {
	case nil:
		if fd.Type == ast.PartNodes {
			return runtime.NewArray()
		}
		return runtime.Void
	case ast.Node:
		return Convert(p)
	case []ast.Node:
		out := make([]runtime.Value, len(p))
		for i, n := range p {
			out[i] = Convert(n)
		}
		return runtime.NewArray(out...)
	case string:
		return runtime.String(p)
	case int64:
		return runtime.Integer(p)
	case float64:
		return runtime.Real(p)
	case bool:
		return runtime.Boolean(p)
	case ast.Operator:
		return runtime.String(p.String())
	}
	return runtime.Void
}

// Splice returns the node a script value stands for when it is placed into
// a tree. Quotations contribute a copy of their node; values whose contract
// is not code are coerced to literal nodes. It returns nil for values that
// have no literal form.
func Splice(v runtime.Value) ast.Node {
	if q, ok := v.(*Quotation); ok {
		return ast.Clone(q.Node())
	}
	if contract.Is(runtime.ContractOf(v), contract.CodeElement) {
		return nil
	}
	return Literal(v)
}

// Literal returns the literal node for v, or nil if v has none.
func Literal(v runtime.Value) ast.Node {
	switch v := v.(type) {
	case nil:
		return &ast.Void{}
	case runtime.Integer:
		return &ast.Integer{Value: int64(v)}
	case runtime.Real:
		return &ast.Real{Value: float64(v)}
	case runtime.String:
		return &ast.String{Value: string(v)}
	case runtime.Boolean:
		return &ast.Boolean{Value: bool(v)}
	case runtime.ContractValue:
		return &ast.ContractRef{Name: v.C.Name()}
	case *runtime.Array:
		elems := make([]ast.Node, len(v.Elements))
		for i, e := range v.Elements {
			if elems[i] = Splice(e); elems[i] == nil {
				return nil
			}
		}
		return &ast.Array{Elements: elems}
	}
	if runtime.IsVoid(v) {
		return &ast.Void{}
	}
	return nil
}
