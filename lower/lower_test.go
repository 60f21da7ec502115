package lower

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/ir"
	"github.com/chazu/sable/runtime"
)

// ---------------------------------------------------------------------------
// Tree helpers
// ---------------------------------------------------------------------------

func num(v int64) *ast.Integer      { return &ast.Integer{Value: v} }
func str(s string) *ast.String      { return &ast.String{Value: s} }
func name(s string) *ast.Name       { return &ast.Name{Name: s} }
func block(ns ...ast.Node) ast.Node { return &ast.Complex{Body: ns} }

func bin(op ast.Operator, l, r ast.Node) *ast.Binary {
	return &ast.Binary{Op: op, Left: l, Right: r}
}

func array(ns ...ast.Node) *ast.Array { return &ast.Array{Elements: ns} }

func decl(n string, v ast.Node) *ast.Declaration {
	return &ast.Declaration{Name: n, Value: v}
}

func constant(n string, v ast.Node) *ast.Declaration {
	return &ast.Declaration{Name: n, Const: true, Value: v}
}

func assign(n string, v ast.Node) *ast.Assign {
	return &ast.Assign{Target: name(n), Value: v}
}

func ifThen(test, then ast.Node) *ast.Condition {
	return &ast.Condition{Test: test, Then: then}
}

func action(n string, params []string, body ...ast.Node) *ast.Action {
	sig := &ast.Signature{}
	for _, p := range params {
		sig.Params = append(sig.Params, &ast.Parameter{Name: p})
	}
	return &ast.Action{Name: n, Signature: sig, Body: block(body...)}
}

func call(target string, args ...ast.Node) *ast.Invoke {
	return &ast.Invoke{Target: name(target), Args: args}
}

func newState() *runtime.State {
	rt := runtime.New(runtime.Options{Executor: runtime.InlineExecutor{}})
	return rt.NewState(context.Background())
}

func run(t *testing.T, opts Options, stmts ...ast.Node) runtime.Value {
	t.Helper()
	unit, err := Translate(stmts, opts)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	v, err := unit.Run(newState())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return v
}

func ints(vs ...int64) *runtime.Array {
	a := runtime.NewArray()
	for _, v := range vs {
		a.Append(runtime.Integer(v))
	}
	return a
}

func wantValue(t *testing.T, got, want runtime.Value) {
	t.Helper()
	if !runtime.Equal(got, want) {
		t.Errorf("got %s, want %s", runtime.Format(got), runtime.Format(want))
	}
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

func doubled(group ast.Operator) *ast.ForEach {
	return &ast.ForEach{
		Variable: "x",
		Source:   array(num(1), num(2), num(3)),
		Body:     bin(ast.OpMul, name("x"), num(2)),
		Group:    group,
	}
}

func TestLoopGrouping(t *testing.T) {
	wantValue(t, run(t, Options{}, doubled(ast.OpAdd)), runtime.Integer(12))
	wantValue(t, run(t, Options{}, doubled(ast.OpNone)), ints(2, 4, 6))
}

func TestLoopCustomGrouping(t *testing.T) {
	loop := doubled(ast.OpNone)
	loop.Custom = &ast.Action{
		Signature: &ast.Signature{Params: []*ast.Parameter{{Name: "a"}, {Name: "b"}}},
		Body:      bin(ast.OpSub, name("b"), name("a")),
	}
	// 4 - 2 = 2, then 6 - 2 = 4
	wantValue(t, run(t, Options{}, loop), runtime.Integer(4))
}

func TestBreakWithValue(t *testing.T) {
	loop := doubled(ast.OpAdd)
	loop.Body = block(
		ifThen(bin(ast.OpEq, name("x"), num(2)), &ast.Break{Args: []ast.Node{num(99)}}),
		name("x"),
	)
	wantValue(t, run(t, Options{}, loop), runtime.Integer(99))

	seq := doubled(ast.OpNone)
	seq.Body = block(
		ifThen(bin(ast.OpEq, name("x"), num(2)), &ast.Break{Args: []ast.Node{num(7), num(8)}}),
		name("x"),
	)
	wantValue(t, run(t, Options{}, seq), ints(1, 7, 8))
}

func TestBreakWithoutValueYieldsVoid(t *testing.T) {
	for _, group := range []ast.Operator{ast.OpAdd, ast.OpNone} {
		loop := doubled(group)
		loop.Body = block(
			ifThen(bin(ast.OpEq, name("x"), num(3)), &ast.Break{}),
			name("x"),
		)
		if got := run(t, Options{}, loop); !runtime.IsVoid(got) {
			t.Errorf("group %v: got %s, want void", group, runtime.Format(got))
		}
	}

	// Running to the end keeps the result.
	wantValue(t, run(t, Options{}, doubled(ast.OpAdd)), runtime.Integer(12))
}

func TestSequenceKeepsVoidIterations(t *testing.T) {
	loop := doubled(ast.OpNone)
	loop.Body = ifThen(bin(ast.OpEq, name("x"), num(2)), name("x"))
	want := runtime.NewArray(runtime.Void, runtime.Integer(2), runtime.Void)
	wantValue(t, run(t, Options{}, loop), want)

	grouped := doubled(ast.OpAdd)
	grouped.Body = ifThen(bin(ast.OpEq, name("x"), num(2)), name("x"))
	wantValue(t, run(t, Options{}, grouped), runtime.Integer(2))
}

func TestForLoopWithContinue(t *testing.T) {
	loop := &ast.For{
		Init: decl("i", num(0)),
		Test: bin(ast.OpLt, name("i"), num(6)),
		Step: assign("i", bin(ast.OpAdd, name("i"), num(1))),
		Body: block(
			ifThen(bin(ast.OpEq, bin(ast.OpMod, name("i"), num(2)), num(1)), &ast.Continue{}),
			name("i"),
		),
	}
	wantValue(t, run(t, Options{}, loop), ints(0, 2, 4))
}

func TestContinueWithValues(t *testing.T) {
	loop := doubled(ast.OpNone)
	loop.Body = block(
		ifThen(bin(ast.OpEq, name("x"), num(2)), &ast.Continue{Args: []ast.Node{num(20), num(21)}}),
		name("x"),
	)
	wantValue(t, run(t, Options{}, loop), ints(1, 20, 21, 3))
}

func TestWhileLoops(t *testing.T) {
	pre := &ast.While{
		Test:  bin(ast.OpLt, name("n"), num(3)),
		Body:  assign("n", bin(ast.OpAdd, name("n"), num(1))),
		Group: ast.OpAdd,
	}
	wantValue(t, run(t, Options{}, decl("n", num(0)), pre), runtime.Integer(6))

	post := &ast.While{
		Test:     bin(ast.OpLt, name("n"), num(0)),
		Body:     assign("n", bin(ast.OpAdd, name("n"), num(1))),
		PostTest: true,
		Suppress: true,
	}
	got := run(t, Options{}, decl("n", num(0)), post, name("n"))
	wantValue(t, got, runtime.Integer(1))
}

func TestSuppressedLoopYieldsVoid(t *testing.T) {
	loop := doubled(ast.OpNone)
	loop.Suppress = true
	if got := run(t, Options{}, loop); !runtime.IsVoid(got) {
		t.Errorf("got %s, want void", runtime.Format(got))
	}
}

func TestLoopIterationsGetFreshSlots(t *testing.T) {
	// Each closure sees its own x.
	loop := &ast.ForEach{
		Variable: "x",
		Source:   num(3),
		Body:     &ast.Action{Signature: &ast.Signature{}, Body: name("x")},
	}
	fns := run(t, Options{}, loop).(*runtime.Array)
	st := newState()
	for i, f := range fns.Elements {
		wantValue(t, runtime.Call(st, f, nil), runtime.Integer(int64(i)))
	}
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func TestFinallyRunsExactlyOnce(t *testing.T) {
	f := action("f", []string{"mode"},
		&ast.Try{
			Body: block(
				ifThen(bin(ast.OpEq, name("mode"), num(1)), &ast.Fault{Value: str("boom")}),
				ifThen(bin(ast.OpEq, name("mode"), num(2)), &ast.Return{Value: num(5)}),
				num(1),
			),
			Traps:   []*ast.Trap{{Body: num(0)}},
			Finally: assign("count", bin(ast.OpAdd, name("count"), num(1))),
		},
	)
	got := run(t, Options{},
		decl("count", num(0)),
		f,
		array(call("f", num(0)), call("f", num(1)), call("f", num(2)), name("count")),
	)
	wantValue(t, got, ints(1, 0, 5, 3))
}

func TestTrapsInOrder(t *testing.T) {
	try := &ast.Try{
		Body: &ast.Fault{Value: num(5)},
		Traps: []*ast.Trap{
			{Variable: "e", Contract: &ast.ContractRef{Name: "string"}, Body: str("text")},
			{Variable: "e", Filter: bin(ast.OpGt, name("e"), num(10)), Body: str("big")},
			{Variable: "e", Filter: bin(ast.OpGt, name("e"), num(1)), Body: bin(ast.OpMul, name("e"), num(10))},
			{Body: str("fallback")},
		},
	}
	wantValue(t, run(t, Options{}, try), runtime.Integer(50))
}

func TestUnmatchedFaultPropagates(t *testing.T) {
	try := &ast.Try{
		Body:  &ast.Fault{},
		Traps: []*ast.Trap{{Contract: &ast.ContractRef{Name: "integer"}, Body: num(0)}},
	}
	unit, err := Translate([]ast.Node{try}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = unit.Run(newState())
	var re *runtime.Error
	if !errors.As(err, &re) || re.Code != runtime.CodeFault {
		t.Fatalf("err = %v, want fault", err)
	}
}

func TestContinueInFunctionRebindsParameters(t *testing.T) {
	sum := action("sum", []string{"n", "acc"},
		ifThen(bin(ast.OpEq, name("n"), num(0)), &ast.Return{Value: name("acc")}),
		&ast.Continue{Args: []ast.Node{
			bin(ast.OpSub, name("n"), num(1)),
			bin(ast.OpAdd, name("acc"), name("n")),
		}},
	)
	wantValue(t, run(t, Options{}, sum, call("sum", num(4), num(0))), runtime.Integer(10))
}

func TestRecursionThroughOwnName(t *testing.T) {
	fact := action("fact", []string{"n"},
		&ast.Condition{
			Test: bin(ast.OpLe, name("n"), num(1)),
			Then: num(1),
			Else: bin(ast.OpMul, name("n"), call("fact", bin(ast.OpSub, name("n"), num(1)))),
		},
	)
	wantValue(t, run(t, Options{}, fact, call("fact", num(5))), runtime.Integer(120))
}

func TestStructuralErrors(t *testing.T) {
	at := ast.Span{Start: ast.Position{Line: 3, Column: 4}}
	tests := []struct {
		name  string
		stmts []ast.Node
		want  error
		msg   string
	}{
		{"return at top level", []ast.Node{&ast.Return{SpanVal: at}}, ErrCannotChangeControlFlow, "line 3, column 4"},
		{"return from finally", []ast.Node{action("f", nil, &ast.Try{Body: num(1), Finally: &ast.Return{}})}, ErrCannotChangeControlFlow, "finally"},
		{"break outside loop", []ast.Node{&ast.Break{}}, ErrCannotChangeControlFlow, "break"},
		{"break out of function", []ast.Node{&ast.ForEach{Variable: "x", Source: num(1), Body: action("", nil, &ast.Break{})}}, ErrCannotChangeControlFlow, "break"},
		{"continue at top level", []ast.Node{&ast.Continue{}}, ErrCannotChangeControlFlow, "continue"},
		{"duplicate", []ast.Node{decl("a", nil), decl("a", nil)}, ErrDuplicateIdentifier, `"a"`},
		{"constant assignment", []ast.Node{constant("k", num(1)), assign("k", num(2))}, ErrConstantAssignment, `"k"`},
		{"unknown contract", []ast.Node{&ast.ContractRef{Name: "nope"}}, ErrMalformedNode, "nope"},
		{"placeholder", []ast.Node{&ast.Placeholder{ID: 2}}, ErrMalformedNode, "#2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Translate(tt.stmts, Options{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var le *Error
			if !errors.As(err, &le) {
				t.Fatalf("err = %T, want *Error", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("%q does not mention %q", err.Error(), tt.msg)
			}
		})
	}
}

func TestRecoverModeDefersErrors(t *testing.T) {
	unit, err := Translate([]ast.Node{
		decl("ok", num(1)),
		&ast.Return{},
		num(2),
	}, Options{ErrorMode: Recover})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(unit.Errors) != 1 || !errors.Is(unit.Errors[0], ErrCannotChangeControlFlow) {
		t.Fatalf("errors = %v", unit.Errors)
	}
	_, err = unit.Run(newState())
	var re *runtime.Error
	if !errors.As(err, &re) || re.Code != runtime.CodeStructural {
		t.Fatalf("err = %v, want structural", err)
	}
}

func TestRecoverModeRestoresScopes(t *testing.T) {
	// The failing statement opens scopes before failing; the next
	// statement must still resolve at module level.
	bad := action("f", nil, &ast.Try{Body: num(1), Finally: &ast.Return{}})
	unit, err := Translate([]ast.Node{bad, decl("y", num(3)), name("y")}, Options{ErrorMode: Recover})
	if err != nil {
		t.Fatal(err)
	}
	if len(unit.Errors) != 1 {
		t.Fatalf("errors = %v", unit.Errors)
	}
	if got := len(unit.Body.Vars); got < 2 {
		t.Errorf("module vars = %d, want f and y", got)
	}
}

// ---------------------------------------------------------------------------
// Units
// ---------------------------------------------------------------------------

func TestInterning(t *testing.T) {
	interned := func() ast.Node { return &ast.Integer{Value: 42, Interned: true} }
	unit, err := Translate([]ast.Node{interned(), interned(), &ast.String{Value: "s", Interned: true}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if unit.Pool.Len() != 2 {
		t.Fatalf("pool holds %d literals, want 2", unit.Pool.Len())
	}
	var refs []*ir.Pooled
	for _, n := range unit.Body.Body {
		if p, ok := n.(*ir.Pooled); ok {
			refs = append(refs, p)
		}
	}
	if len(refs) != 3 || refs[0].Index != refs[1].Index || refs[0].Pool != refs[1].Pool {
		t.Fatalf("refs = %+v", refs)
	}
	if _, ok := unit.Body.Body[0].(*ir.Populate); !ok {
		t.Errorf("unit does not start with pool population: %T", unit.Body.Body[0])
	}

	st := newState()
	if _, err := unit.Run(st); err != nil {
		t.Fatal(err)
	}
	if v := unit.Pool.Load(refs[0].Index); v != runtime.Integer(42) {
		t.Errorf("pooled value = %v", v)
	}

	other, err := Translate([]ast.Node{interned()}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if other.Pool == unit.Pool || other.ID == unit.ID {
		t.Error("units share a pool")
	}
}

func TestModuleObject(t *testing.T) {
	got := run(t, Options{ModuleObject: true},
		decl("a", num(1)),
		constant("b", bin(ast.OpAdd, name("a"), num(1))),
		num(99),
	)
	obj, ok := got.(*runtime.Object)
	if !ok {
		t.Fatalf("got %T, want object", got)
	}
	if diff := cmp.Diff([]string{"a", "b"}, obj.Names()); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	wantValue(t, runtime.Member(obj, "b"), runtime.Integer(2))
	if s, _ := obj.Slot("b"); !s.Constant() {
		t.Error("b should be constant")
	}
}

func TestEmptyUnitIsVoid(t *testing.T) {
	if got := run(t, Options{}); !runtime.IsVoid(got) {
		t.Errorf("got %s", runtime.Format(got))
	}
}

type recorder struct{ lines []int }

func (r *recorder) OnLocation(_ *runtime.State, s ast.Span) {
	r.lines = append(r.lines, s.Start.Line)
}

func TestDebugInfo(t *testing.T) {
	line := func(n int) ast.Span { return ast.Span{Start: ast.Position{Line: n}} }
	stmts := []ast.Node{
		&ast.Integer{SpanVal: line(1), Value: 1},
		&ast.Complex{SpanVal: line(2), Body: []ast.Node{&ast.Integer{SpanVal: line(3), Value: 2}}},
	}
	for _, debug := range []bool{false, true} {
		unit, err := Translate(stmts, Options{DebugInfo: debug})
		if err != nil {
			t.Fatal(err)
		}
		rec := &recorder{}
		rt := runtime.New(runtime.Options{Debugger: rec})
		v, err := unit.Run(rt.NewState(context.Background()))
		if err != nil || v != runtime.Integer(2) {
			t.Fatalf("run = %v, %v", v, err)
		}
		var want []int
		if debug {
			want = []int{1, 2, 3}
		}
		if diff := cmp.Diff(want, rec.lines); diff != "" {
			t.Errorf("debug=%v lines (-want +got):\n%s", debug, diff)
		}
	}
}

func TestGlobals(t *testing.T) {
	unit, err := Translate([]ast.Node{
		assign("g", bin(ast.OpAdd, name("g"), num(1))),
		name("g"),
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	st := newState()
	st.DefineGlobal("g", runtime.Integer(1))
	v, err := unit.Run(st)
	if err != nil {
		t.Fatal(err)
	}
	wantValue(t, v, runtime.Integer(2))

	_, err = unit.Run(newState())
	var re *runtime.Error
	if !errors.As(err, &re) || re.Code != runtime.CodeSlotNotFound {
		t.Fatalf("err = %v, want slot not found", err)
	}
}

func TestDeclarationContracts(t *testing.T) {
	stmts := []ast.Node{
		&ast.Declaration{Name: "n", Contract: &ast.ContractRef{Name: "integer"}, Value: num(1)},
		assign("n", str("no")),
	}
	unit, err := Translate(stmts, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = unit.Run(newState())
	var re *runtime.Error
	if !errors.As(err, &re) || re.Code != runtime.CodeContractMismatch {
		t.Fatalf("err = %v, want contract mismatch", err)
	}
}

func TestObjectsAndSelection(t *testing.T) {
	obj := &ast.Object{Members: []*ast.Declaration{decl("x", num(2)), constant("y", num(3))}}
	sel := func(subject ast.Node) *ast.Selection {
		return &ast.Selection{
			Subject: subject,
			Cases: []*ast.Case{
				{Values: []ast.Node{num(1), num(2)}, Body: str("small")},
				{Values: []ast.Node{&ast.ContractRef{Name: "string"}}, Body: str("text")},
				{Body: str("other")},
			},
		}
	}
	got := run(t, Options{},
		decl("o", obj),
		array(sel(&ast.Member{Target: name("o"), Name: "x"}), sel(str("hi")), sel(num(8))),
	)
	want := runtime.NewArray(runtime.String("small"), runtime.String("text"), runtime.String("other"))
	wantValue(t, got, want)
}

func TestForkAwait(t *testing.T) {
	got := run(t, Options{},
		decl("n", num(1)),
		decl("f", &ast.Fork{Body: block(assign("n", num(100)), &ast.Return{Value: bin(ast.OpAdd, name("n"), num(1))})}),
		bin(ast.OpAdd, &ast.Await{Target: name("f")}, name("n")),
	)
	wantValue(t, got, runtime.Integer(102))
}

func forked(value ast.Node) *ast.Fork {
	return &ast.Fork{Body: block(&ast.Return{Value: value})}
}

func await(n ast.Node) *ast.Await { return &ast.Await{Target: n} }

// runPooled runs stmts on a worker pool and fails if they do not finish.
func runPooled(t *testing.T, workers int64, stmts ...ast.Node) runtime.Value {
	t.Helper()
	unit, err := Translate(stmts, Options{})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	st := runtime.New(runtime.Options{Workers: workers}).NewState(context.Background())
	type result struct {
		v   runtime.Value
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := unit.Run(st)
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Run: %v", r.err)
		}
		return r.v
	case <-time.After(5 * time.Second):
		t.Fatalf("workers=%d: run did not finish", workers)
	}
	return nil
}

func TestNestedForkAwaitOnPool(t *testing.T) {
	// await fork (await fork (await fork 1) + 1) + 1
	var n ast.Node = num(1)
	for i := 0; i < 3; i++ {
		n = bin(ast.OpAdd, await(forked(n)), num(1))
	}
	for _, workers := range []int64{1, 2, 4} {
		wantValue(t, runPooled(t, workers, n), runtime.Integer(4))
	}
}

func TestForkSnapshotOnPool(t *testing.T) {
	got := runPooled(t, 4,
		decl("n", num(1)),
		decl("f", forked(bin(ast.OpMul, name("n"), num(10)))),
		decl("g", forked(bin(ast.OpMul, name("n"), num(100)))),
		assign("n", num(5)),
		array(await(name("f")), await(name("g")), name("n")),
	)
	wantValue(t, got, ints(10, 100, 5))
}

func TestForkFaultReachesAwaitOnPool(t *testing.T) {
	got := runPooled(t, 2, &ast.Try{
		Body:  await(&ast.Fork{Body: &ast.Fault{Value: str("boom")}}),
		Traps: []*ast.Trap{{Variable: "e", Body: name("e")}},
	})
	wantValue(t, got, runtime.String("boom"))
}

func TestQuoteNeedsQuoter(t *testing.T) {
	unit, err := Translate([]ast.Node{&ast.Quote{Body: num(1)}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := unit.Run(newState()); err == nil {
		t.Error("quoting without a quoter should fail")
	}
}
