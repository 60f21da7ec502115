package quote

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/contract"
	"github.com/chazu/sable/lower"
	"github.com/chazu/sable/runtime"
)

func num(v int64) *ast.Integer       { return &ast.Integer{Value: v} }
func name(s string) *ast.Name        { return &ast.Name{Name: s} }
func hole(id int64) *ast.Placeholder { return &ast.Placeholder{ID: id} }

func member(t ast.Node, n string) *ast.Member {
	return &ast.Member{Target: t, Name: n}
}

func bin(op ast.Operator, l, r ast.Node) *ast.Binary {
	return &ast.Binary{Op: op, Left: l, Right: r}
}

func newState() *runtime.State {
	rt := runtime.New(runtime.Options{Executor: runtime.InlineExecutor{}})
	return rt.NewState(context.Background())
}

func wantNode(t *testing.T, got, want ast.Node) {
	t.Helper()
	if !ast.Equal(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

// expr calls expression.<fn>(args...) in script code.
func expr(fn string, args ...ast.Node) ast.Node {
	return &ast.Invoke{Target: member(name(NamespaceName), fn), Args: args}
}

func script(t *testing.T, st *runtime.State, stmts ...ast.Node) runtime.Value {
	t.Helper()
	unit, err := lower.Translate(stmts, lower.Options{Contracts: st.Runtime.Contracts})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	v, err := unit.Run(st)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return v
}

// ---------------------------------------------------------------------------
// Expansion and rewriting
// ---------------------------------------------------------------------------

func TestExpandPlaceholders(t *testing.T) {
	tmpl := bin(ast.OpAdd, hole(0), hole(1))
	got := Expand(tmpl, []runtime.Value{runtime.Integer(1), runtime.Integer(2)})
	wantNode(t, got, bin(ast.OpAdd, num(1), num(2)))
	wantNode(t, tmpl, bin(ast.OpAdd, hole(0), hole(1)))
}

func TestExpandKeepsUnmatchedPlaceholders(t *testing.T) {
	got := Expand(bin(ast.OpAdd, hole(0), hole(1)), []runtime.Value{runtime.Integer(1)})
	wantNode(t, got, bin(ast.OpAdd, num(1), hole(1)))
}

func TestExpandSplicesQuotations(t *testing.T) {
	inner := Convert(bin(ast.OpMul, num(2), num(3)))
	got := Expand(&ast.Array{Elements: []ast.Node{hole(0), hole(0)}}, []runtime.Value{inner})
	want := &ast.Array{Elements: []ast.Node{
		bin(ast.OpMul, num(2), num(3)),
		bin(ast.OpMul, num(2), num(3)),
	}}
	wantNode(t, got, want)
	arr := got.(*ast.Array)
	if arr.Elements[0] == inner.Node() || arr.Elements[0] == arr.Elements[1] {
		t.Error("spliced nodes share structure with the quotation")
	}
}

func TestSpliceCoercesValues(t *testing.T) {
	tests := []struct {
		v    runtime.Value
		want ast.Node
	}{
		{runtime.Integer(4), num(4)},
		{runtime.String("s"), &ast.String{Value: "s"}},
		{runtime.Boolean(true), &ast.Boolean{Value: true}},
		{runtime.Void, &ast.Void{}},
		{runtime.NewArray(runtime.Integer(1), runtime.Real(2.5)), &ast.Array{Elements: []ast.Node{num(1), &ast.Real{Value: 2.5}}}},
		{runtime.ContractValue{C: contract.Integer}, &ast.ContractRef{Name: "integer"}},
	}
	for _, tt := range tests {
		wantNode(t, Splice(tt.v), tt.want)
	}
	if n := Splice(runtime.NewObject()); n != nil {
		t.Errorf("object spliced as %#v", n)
	}
}

func TestVisit(t *testing.T) {
	tree := bin(ast.OpAdd, name("a"), &ast.Object{Members: []*ast.Declaration{{Name: "k", Value: name("a")}}})

	got := Visit(tree, func(n ast.Node) (ast.Node, bool) {
		if x, ok := n.(*ast.Name); ok && x.Name == "a" {
			return num(5), true
		}
		return nil, false
	})
	wantNode(t, got, bin(ast.OpAdd, num(5), &ast.Object{Members: []*ast.Declaration{{Name: "k", Value: num(5)}}}))
	wantNode(t, tree.Left, name("a"))
}

func TestVisitKeepsIncompatibleReplacements(t *testing.T) {
	tree := &ast.Object{Members: []*ast.Declaration{{Name: "k", Value: num(1)}}}
	got := Visit(tree, func(n ast.Node) (ast.Node, bool) {
		if _, ok := n.(*ast.Declaration); ok {
			return num(9), true
		}
		return nil, false
	})
	wantNode(t, got, tree)
	if got == ast.Node(tree) {
		t.Error("Visit returned the input tree")
	}
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name     string
		in, want ast.Node
	}{
		{"nested", bin(ast.OpAdd, num(1), bin(ast.OpMul, num(2), num(3))), num(7)},
		{"strings", bin(ast.OpAdd, &ast.String{Value: "a"}, &ast.String{Value: "b"}), &ast.String{Value: "ab"}},
		{"unary", &ast.Unary{Op: ast.OpNot, Operand: &ast.Boolean{Value: false}}, &ast.Boolean{Value: true}},
		{"free name", bin(ast.OpAdd, name("x"), bin(ast.OpSub, num(3), num(1))), bin(ast.OpAdd, name("x"), num(2))},
		{"faulting", bin(ast.OpDiv, num(1), num(0)), bin(ast.OpDiv, num(1), num(0))},
		{"quoted", &ast.Quote{Body: bin(ast.OpAdd, num(1), num(1))}, &ast.Quote{Body: bin(ast.OpAdd, num(1), num(1))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantNode(t, Reduce(tt.in), tt.want)
		})
	}
}

// ---------------------------------------------------------------------------
// Factories
// ---------------------------------------------------------------------------

func TestEveryKindHasAFactory(t *testing.T) {
	seen := make(map[*Factory]bool)
	for _, k := range ast.Kinds() {
		f := FactoryFor(k)
		if f.Kind() != k || seen[f] {
			t.Errorf("factory for %s: %v", k, f)
		}
		seen[f] = true
		if diff := cmp.Diff(len(ast.Schema(k)), len(f.Fields())); diff != "" {
			t.Errorf("%s fields (-want +got):\n%s", k, diff)
		}
	}
}

func TestCreate(t *testing.T) {
	n, ok := Binary.Create([]runtime.Value{runtime.String("+"), runtime.Integer(1), Convert(name("x"))})
	if !ok {
		t.Fatal("Create failed")
	}
	wantNode(t, n, bin(ast.OpAdd, num(1), name("x")))

	n, ok = Condition.Create([]runtime.Value{runtime.Boolean(true), runtime.Integer(1)})
	if !ok {
		t.Fatal("Create with optional part omitted failed")
	}
	wantNode(t, n, &ast.Condition{Test: &ast.Boolean{Value: true}, Then: num(1)})
}

func TestCreateMismatch(t *testing.T) {
	decl := Convert(&ast.Declaration{Name: "k"})
	tests := []struct {
		name  string
		f     *Factory
		parts []runtime.Value
	}{
		{"missing part", Binary, []runtime.Value{runtime.String("+"), runtime.Integer(1)}},
		{"too many parts", Name, []runtime.Value{runtime.String("a"), runtime.String("b")}},
		{"unknown operator", Binary, []runtime.Value{runtime.String("<>"), runtime.Integer(1), runtime.Integer(2)}},
		{"wrong scalar", Name, []runtime.Value{runtime.Integer(1)}},
		{"wrong element kind", Object, []runtime.Value{runtime.NewArray(Convert(num(1)))}},
		{"unsplicable", Fork, []runtime.Value{runtime.NewObject()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if n, ok := tt.f.Create(tt.parts); ok {
				t.Errorf("Create = %#v", n)
			}
			if v := tt.f.Call(nil, tt.parts); !runtime.IsVoid(v) {
				t.Errorf("Call = %s, want void", runtime.Format(v))
			}
		})
	}
	if _, ok := Object.Create([]runtime.Value{runtime.NewArray(decl)}); !ok {
		t.Error("object of declarations rejected")
	}
}

func TestModify(t *testing.T) {
	q := Convert(bin(ast.OpAdd, num(1), num(2)))
	if !q.Modify([]runtime.Value{runtime.String("*"), runtime.Integer(3), q}) {
		t.Fatal("Modify failed")
	}
	wantNode(t, q.Node(), bin(ast.OpMul, num(3), bin(ast.OpAdd, num(1), num(2))))

	before := q.Node()
	if q.Modify([]runtime.Value{runtime.String("*")}) {
		t.Error("Modify with missing parts succeeded")
	}
	if Unary.Modify(q, []runtime.Value{runtime.String("!"), runtime.Integer(1)}) {
		t.Error("Modify by another kind's factory succeeded")
	}
	if q.Node() != before {
		t.Error("failed Modify changed the node")
	}
}

func TestAccessors(t *testing.T) {
	q := Convert(bin(ast.OpSub, num(8), name("y")))

	op, _ := Binary.Part(q, "operator")
	if op != runtime.String("-") {
		t.Errorf("operator = %s", runtime.Format(op))
	}
	left, _ := q.GetMember("left")
	lq, ok := left.(*Quotation)
	if !ok || lq.Factory() != Integer {
		t.Fatalf("left = %s", runtime.Format(left))
	}
	if v, _ := lq.GetMember("value"); v != runtime.Integer(8) {
		t.Errorf("left.value = %s", runtime.Format(v))
	}
	if _, ok := Unary.Part(q, "operand"); ok {
		t.Error("unary accessor accepted a binary quotation")
	}
	if _, ok := q.GetMember("nope"); ok {
		t.Error("unknown member resolved")
	}

	args, _ := Convert(&ast.Invoke{Target: name("f")}).GetMember("args")
	if arr, ok := args.(*runtime.Array); !ok || arr.Len() != 0 {
		t.Errorf("args = %s", runtime.Format(args))
	}
}

func TestQuotationContracts(t *testing.T) {
	q := Convert(bin(ast.OpAdd, num(1), num(2)))
	if !contract.Is(q.Contract(), contract.CodeElement) {
		t.Error("quotation is not a code element")
	}
	if !contract.Is(q.Contract(), Binary.AsContract()) {
		t.Error("quotation does not satisfy its factory's contract")
	}
	if contract.Is(q.Contract(), Unary.AsContract()) {
		t.Error("quotation satisfies another kind's contract")
	}
	if contract.Is(contract.CodeElement, Binary.AsContract()) {
		t.Error("code element satisfies a kind contract")
	}
}

// ---------------------------------------------------------------------------
// Compilation and the script namespace
// ---------------------------------------------------------------------------

func TestCompileCloneRoundTrip(t *testing.T) {
	st := newState()
	q := Convert(&ast.Complex{Body: []ast.Node{
		&ast.Declaration{Name: "x", Value: num(4)},
		bin(ast.OpMul, name("x"), name("x")),
	}})
	a, err := q.Compile(st)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Convert(ast.Clone(q.Node())).Compile(st)
	if err != nil {
		t.Fatal(err)
	}
	if !runtime.Equal(a, b) || a != runtime.Integer(16) {
		t.Errorf("compile = %s, clone = %s", runtime.Format(a), runtime.Format(b))
	}
}

func TestCompileReportsStructuralErrors(t *testing.T) {
	_, err := Convert(&ast.Break{}).Compile(newState())
	if !errors.Is(err, lower.ErrCannotChangeControlFlow) {
		t.Errorf("err = %v", err)
	}
}

func TestLoweredQuote(t *testing.T) {
	st := newState()
	Install(st.Runtime)
	body := bin(ast.OpAdd, name("a"), num(1))
	v := script(t, st, &ast.Quote{Body: body})
	q, ok := v.(*Quotation)
	if !ok {
		t.Fatalf("quote evaluated to %s", runtime.Format(v))
	}
	wantNode(t, q.Node(), body)
}

func TestNamespaceExpandAndCompile(t *testing.T) {
	st := newState()
	Define(st, nil)
	tmpl := &ast.Quote{Body: bin(ast.OpAdd, hole(0), hole(1))}
	v := script(t, st,
		&ast.Declaration{Name: "q", Value: expr("expand", tmpl, &ast.Array{Elements: []ast.Node{num(1), num(2)}})},
		&ast.Array{Elements: []ast.Node{
			expr("compile", name("q")),
			expr("equals", name("q"), &ast.Quote{Body: bin(ast.OpAdd, num(1), num(2))}),
			expr("same", name("q"), expr("clone", name("q"))),
			expr("same", name("q"), name("q")),
		}},
	)
	want := runtime.NewArray(runtime.Integer(3), runtime.Boolean(true), runtime.Boolean(false), runtime.Boolean(true))
	if !runtime.Equal(v, want) {
		t.Errorf("got %s, want %s", runtime.Format(v), runtime.Format(want))
	}
}

func TestNamespaceFactoriesAndContracts(t *testing.T) {
	st := newState()
	Define(st, nil)
	q := &ast.Quote{Body: bin(ast.OpAdd, num(1), num(2))}
	v := script(t, st, &ast.Array{Elements: []ast.Node{
		bin(ast.OpIs, q, &ast.ContractRef{Name: "expression.binary"}),
		bin(ast.OpIs, q, member(name(NamespaceName), "unary")),
		bin(ast.OpIs, q, &ast.ContractRef{Name: "expression"}),
		&ast.Invoke{Target: member(member(name(NamespaceName), "binary"), "operator"), Args: []ast.Node{q}},
		&ast.Invoke{
			Target: member(member(name(NamespaceName), "integer"), "value"),
			Args: []ast.Node{&ast.Invoke{
				Target: member(member(name(NamespaceName), "binary"), "right"),
				Args:   []ast.Node{q},
			}},
		},
		expr("compile", &ast.Invoke{
			Target: member(name(NamespaceName), "binary"),
			Args:   []ast.Node{&ast.String{Value: "*"}, num(6), num(7)},
		}),
	}})
	want := runtime.NewArray(
		runtime.Boolean(true), runtime.Boolean(false), runtime.Boolean(true),
		runtime.String("+"), runtime.Integer(2), runtime.Integer(42),
	)
	if !runtime.Equal(v, want) {
		t.Errorf("got %s, want %s", runtime.Format(v), runtime.Format(want))
	}
}

func TestNamespaceVisit(t *testing.T) {
	st := newState()
	Define(st, nil)
	// visit(quote(x + x), (n) => n is expression.name ? 10 : void)
	rewrite := &ast.Action{
		Signature: &ast.Signature{Params: []*ast.Parameter{{Name: "n"}}},
		Body: &ast.Condition{
			Test: bin(ast.OpIs, name("n"), &ast.ContractRef{Name: "expression.name"}),
			Then: num(10),
		},
	}
	v := script(t, st, expr("compile",
		expr("visit", &ast.Quote{Body: bin(ast.OpAdd, name("x"), name("x"))}, rewrite)))
	if v != runtime.Integer(20) {
		t.Errorf("got %s", runtime.Format(v))
	}
}

type parserFunc func(string) ([]ast.Node, error)

func (f parserFunc) Parse(src string) ([]ast.Node, error) { return f(src) }

func TestNamespaceParse(t *testing.T) {
	st := newState()
	Define(st, parserFunc(func(src string) ([]ast.Node, error) {
		if src == "" {
			return nil, errors.New("empty source")
		}
		return []ast.Node{&ast.String{Value: src}, num(1)}, nil
	}))
	v := script(t, st, expr("parse", &ast.String{Value: "src"}))
	q, ok := v.(*Quotation)
	if !ok {
		t.Fatalf("parse = %s", runtime.Format(v))
	}
	wantNode(t, q.Node(), &ast.Complex{Body: []ast.Node{&ast.String{Value: "src"}, num(1)}})

	unit, err := lower.Translate([]ast.Node{expr("parse", &ast.String{})}, lower.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := unit.Run(st); err == nil {
		t.Error("parse error was not raised")
	}
}

func TestNamespaceParseWithoutParser(t *testing.T) {
	st := newState()
	Define(st, nil)
	unit, err := lower.Translate([]ast.Node{expr("parse", &ast.String{Value: "1"})}, lower.Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = unit.Run(st)
	var thrown *runtime.Thrown
	if !errors.As(err, &thrown) {
		t.Fatalf("err = %v", err)
	}
	if e, ok := thrown.Value.(*runtime.Error); !ok || e.Code != runtime.CodeStructural {
		t.Errorf("thrown %s", runtime.Format(thrown.Value))
	}
}

func TestNamespaceHashIgnoresLocalNames(t *testing.T) {
	st := newState()
	Define(st, nil)
	fn := func(p string) ast.Node {
		return &ast.Quote{Body: &ast.Action{
			Signature: &ast.Signature{Params: []*ast.Parameter{{Name: p}}},
			Body:      bin(ast.OpAdd, name(p), num(1)),
		}}
	}
	v := script(t, st, &ast.Array{Elements: []ast.Node{
		expr("hash", fn("a")),
		expr("hash", fn("b")),
	}})
	arr := v.(*runtime.Array)
	h, ok := arr.Elements[0].(runtime.String)
	if !ok || len(h) != 64 || !runtime.Equal(arr.Elements[0], arr.Elements[1]) {
		t.Errorf("hashes = %s", runtime.Format(v))
	}
}
