package scope

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/sable/contract"
)

func names(decls []*Declaration) []string {
	out := make([]string, len(decls))
	for i, d := range decls {
		out[i] = d.Name
	}
	return out
}

func TestResolveShadowing(t *testing.T) {
	tr := NewTree()
	outer, err := tr.Declare("x", Attrs{})
	if err != nil {
		t.Fatal(err)
	}
	fn := tr.Push(Function, OwnsAll)
	inner, err := tr.Declare("x", Attrs{Parameter: true})
	if err != nil {
		t.Fatal(err)
	}
	tr.Push(Branch, InheritsBoth)

	d, id, ok := tr.Resolve("x")
	if !ok || d != inner || id != fn {
		t.Fatalf("Resolve(x) = %v, %d, %v; want inner declaration in %d", d, id, ok, fn)
	}
	tr.Pop()
	tr.Pop()
	d, id, ok = tr.Resolve("x")
	if !ok || d != outer || id != tr.Root() {
		t.Fatalf("after pop Resolve(x) = %v, %d", d, id)
	}
	if _, _, ok := tr.Resolve("y"); ok {
		t.Error("undeclared name resolved")
	}
}

func TestDuplicateDeclarationLeavesTableUnchanged(t *testing.T) {
	tr := NewTree()
	first, _ := tr.Declare("a", Attrs{Constant: true, Contract: contract.Integer})
	tr.Declare("b", Attrs{})

	d, err := tr.Declare("a", Attrs{})
	if !errors.Is(err, ErrDuplicateIdentifier) || d != nil {
		t.Fatalf("Declare duplicate = %v, %v", d, err)
	}
	syms := tr.Symbols(tr.Root())
	if diff := cmp.Diff([]string{"a", "b"}, names(syms)); diff != "" {
		t.Errorf("symbols (-want +got):\n%s", diff)
	}
	if got, _ := tr.Lookup(tr.Root(), "a"); got != first || !got.Constant || got.Contract != contract.Integer {
		t.Errorf("original declaration replaced: %+v", got)
	}
	if !first.Var.Constant || first.Var.Name != "a" {
		t.Errorf("var = %+v", first.Var)
	}
}

func TestSymbolsInDeclarationOrder(t *testing.T) {
	tr := NewTree()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		if _, err := tr.Declare(n, Attrs{}); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"zeta", "alpha", "mid"}, names(tr.Symbols(tr.Root()))); diff != "" {
		t.Errorf("symbols (-want +got):\n%s", diff)
	}
	if got := len(tr.Vars(tr.Root())); got != 3 {
		t.Errorf("vars = %d", got)
	}
	p, err := tr.Declare("arg", Attrs{Parameter: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range tr.Vars(tr.Root()) {
		if v == p.Var {
			t.Error("parameters are bound by their caller, not the block")
		}
	}
}

func TestLabelAndStateDelegation(t *testing.T) {
	tr := NewTree()
	loop := tr.Push(Loop, OwnsAll)
	branch := tr.Push(Branch, InheritsBoth)
	handler := tr.Push(Handler, InheritsLabels)
	labelsOnly := tr.Push(Branch, InheritsState)

	tests := []struct {
		id            ID
		labels, state ID
	}{
		{tr.Root(), tr.Root(), tr.Root()},
		{loop, loop, loop},
		{branch, loop, loop},
		{handler, loop, handler},
		{labelsOnly, labelsOnly, handler},
	}
	for _, tt := range tests {
		if got := tr.LabelOwner(tt.id); got != tt.labels {
			t.Errorf("LabelOwner(%d) = %d, want %d", tt.id, got, tt.labels)
		}
		if got := tr.StateOwner(tt.id); got != tt.state {
			t.Errorf("StateOwner(%d) = %d, want %d", tt.id, got, tt.state)
		}
		if tr.Labels(tt.id) != tr.Labels(tt.labels) || tr.State(tt.id) != tr.State(tt.state) {
			t.Errorf("scope %d does not share its owner's labels and state", tt.id)
		}
	}
	if tr.Labels(loop) == tr.Labels(tr.Root()) {
		t.Error("owning scope reused its parent's labels")
	}
}

func TestBoundaryKindsAlwaysOwn(t *testing.T) {
	tr := NewTree()
	tr.Push(Loop, OwnsAll)
	fn := tr.Push(Function, InheritsBoth)
	if tr.LabelOwner(fn) != fn || tr.StateOwner(fn) != fn {
		t.Error("function scope inherited labels or state")
	}
	if tr.Inheritance(fn) != OwnsAll {
		t.Errorf("inheritance = %v", tr.Inheritance(fn))
	}
}

func TestEnclosing(t *testing.T) {
	tr := NewTree()
	fn := tr.Push(Function, OwnsAll)
	loop := tr.Push(Loop, OwnsAll)
	fin := tr.Push(Finally, InheritsBoth)
	tr.Push(Branch, InheritsBoth)

	if id, ok := tr.Enclosing(tr.Current(), []Kind{Loop}, nil); !ok || id != loop {
		t.Errorf("nearest loop = %d, %v", id, ok)
	}
	if id, ok := tr.Enclosing(tr.Current(), []Kind{Function}, []Kind{Finally}); ok || id != fin {
		t.Errorf("return through finally = %d, %v; want stop at %d", id, ok, fin)
	}
	tr.Pop()
	tr.Pop()
	if id, ok := tr.Enclosing(tr.Current(), []Kind{Function}, []Kind{Finally}); !ok || id != fn {
		t.Errorf("nearest function = %d, %v", id, ok)
	}
	if diff := cmp.Diff([]ID{loop, fn, tr.Root()}, tr.Path(tr.Current())); diff != "" {
		t.Errorf("path (-want +got):\n%s", diff)
	}
}

func TestPopRootPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("popping the root did not panic")
		}
	}()
	NewTree().Pop()
}
