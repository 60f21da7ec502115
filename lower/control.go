package lower

import (
	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/ir"
	"github.com/chazu/sable/runtime"
	"github.com/chazu/sable/scope"
)

// ---------------------------------------------------------------------------
// Loops
//
// Every loop becomes one block:
//
//	[init] acc = seed [group = custom]
//	entry:    if !test goto exit
//	          collect(body)
//	continue: [step] goto entry
//	exit:     acc
//
// collect folds the body's value into acc. The seed is Void for a grouped
// loop and an empty array otherwise; a suppressed loop has no accumulator
// and yields Void.
// ---------------------------------------------------------------------------

// boundaries stop the search for a loop or function target.
var boundaries = []scope.Kind{scope.Function, scope.Fork, scope.Finally}

func (t *Translator) openLoop(group ast.Operator, custom ast.Node, suppress bool) (*loop, []ir.Node) {
	id := t.push(scope.Loop, scope.OwnsAll)
	lp := &loop{
		sequence: group == ast.OpNone && custom == nil,
		suppress: suppress,
		op:       group,
	}
	t.loops[id] = lp
	if suppress {
		return lp, nil
	}
	lp.acc = t.tree.State(id)
	t.own(lp.acc)
	var seed ir.Node = &ir.Const{Value: runtime.Void}
	if lp.sequence {
		seed = &ir.MakeArray{}
	}
	prelude := []ir.Node{&ir.Bind{Var: lp.acc, Value: seed}}
	if custom != nil {
		g := t.temp("group")
		prelude = append(prelude, &ir.Bind{Var: g, Value: t.expr(custom)})
		lp.custom = &ir.Load{Var: g}
	}
	return lp, prelude
}

func (lp *loop) collect(v ir.Node) ir.Node {
	if lp.suppress {
		return v
	}
	return &ir.Accumulate{Var: lp.acc, Value: v, Sequence: lp.sequence, Op: lp.op, Custom: lp.custom}
}

func (t *Translator) closeLoop(lp *loop, body []ir.Node) ir.Node {
	labels := t.tree.Labels(t.tree.Current())
	body = append(body, &ir.Mark{Label: labels.Exit})
	if lp.suppress {
		body = append(body, &ir.Const{Value: runtime.Void})
	} else {
		body = append(body, &ir.Load{Var: lp.acc})
	}
	return t.close(body)
}

func exitUnless(test ir.Node, exit *ir.Label) ir.Node {
	return &ir.If{Test: &ir.Unary{Op: ast.OpNot, Operand: test}, Then: &ir.Goto{Label: exit}}
}

func (t *Translator) forLoop(n *ast.For) ir.Node {
	lp, prelude := t.openLoop(n.Group, n.Custom, n.Suppress)
	labels := t.tree.Labels(t.tree.Current())
	labels.Continue = ir.NewLabel("for.continue")

	var body []ir.Node
	if n.Init != nil {
		body = append(body, t.expr(n.Init))
	}
	body = append(body, prelude...)
	body = append(body, &ir.Mark{Label: labels.Entry})
	if n.Test != nil {
		body = append(body, exitUnless(t.expr(n.Test), labels.Exit))
	}
	body = append(body,
		lp.collect(t.nested(scope.Branch, n.Body)),
		&ir.Mark{Label: labels.Continue},
	)
	if n.Step != nil {
		body = append(body, t.expr(n.Step))
	}
	body = append(body, &ir.Goto{Label: labels.Entry})
	return t.closeLoop(lp, body)
}

func (t *Translator) while(n *ast.While) ir.Node {
	lp, body := t.openLoop(n.Group, n.Custom, n.Suppress)
	labels := t.tree.Labels(t.tree.Current())
	if !n.PostTest {
		body = append(body,
			&ir.Mark{Label: labels.Entry},
			exitUnless(t.expr(n.Test), labels.Exit),
			lp.collect(t.nested(scope.Branch, n.Body)),
			&ir.Goto{Label: labels.Entry},
		)
		return t.closeLoop(lp, body)
	}
	labels.Continue = ir.NewLabel("while.continue")
	body = append(body,
		&ir.Mark{Label: labels.Entry},
		lp.collect(t.nested(scope.Branch, n.Body)),
		&ir.Mark{Label: labels.Continue},
		&ir.If{Test: t.expr(n.Test), Then: &ir.Goto{Label: labels.Entry}},
	)
	return t.closeLoop(lp, body)
}

func (t *Translator) forEach(n *ast.ForEach) ir.Node {
	src := t.expr(n.Source)
	lp, body := t.openLoop(n.Group, n.Custom, n.Suppress)
	labels := t.tree.Labels(t.tree.Current())
	it, cur := t.temp("iter"), t.temp("item")

	t.push(scope.Branch, scope.InheritsBoth)
	x := t.declare(n, n.Variable, scope.Attrs{})
	iteration := t.close([]ir.Node{
		&ir.Bind{Var: x.Var, Value: &ir.Load{Var: cur}},
		t.expr(n.Body),
	})

	body = append(body,
		&ir.Bind{Var: it, Value: &ir.Iterate{Source: src}},
		&ir.Mark{Label: labels.Entry},
		exitUnless(&ir.Next{Iter: it, Into: cur}, labels.Exit),
		lp.collect(iteration),
		&ir.Goto{Label: labels.Entry},
	)
	return t.closeLoop(lp, body)
}

// ---------------------------------------------------------------------------
// Non-local exits
// ---------------------------------------------------------------------------

// brk stores its arguments as the loop result and leaves the loop: a
// grouped loop takes the last argument, a collecting loop appends all of
// them. Without arguments the loop result becomes void.
func (t *Translator) brk(n *ast.Break) ir.Node {
	id, ok := t.tree.Enclosing(t.tree.Current(), []scope.Kind{scope.Loop}, boundaries)
	if !ok {
		t.fail(n, ErrCannotChangeControlFlow, "break outside a loop")
	}
	lp := t.loops[id]
	var out []ir.Node
	switch {
	case lp.suppress:
		out = t.list(n.Args)
	case len(n.Args) == 0:
		out = []ir.Node{&ir.Store{Var: lp.acc, Value: &ir.Const{Value: runtime.Void}}}
	case lp.sequence:
		for _, a := range n.Args {
			out = append(out, lp.collect(t.expr(a)))
		}
	default:
		last := len(n.Args) - 1
		out = t.list(n.Args[:last])
		out = append(out, &ir.Store{Var: lp.acc, Value: t.expr(n.Args[last])})
	}
	out = append(out, &ir.Goto{Label: t.tree.Labels(id).Exit})
	return &ir.Block{Body: out}
}

// cont folds its arguments into the loop result and starts the next
// iteration. Directly inside a function it rebinds the parameters and
// restarts the body instead.
func (t *Translator) cont(n *ast.Continue) ir.Node {
	id, ok := t.tree.Enclosing(t.tree.Current(), []scope.Kind{scope.Loop}, boundaries)
	if ok {
		lp := t.loops[id]
		out := make([]ir.Node, 0, len(n.Args)+1)
		for _, a := range n.Args {
			out = append(out, lp.collect(t.expr(a)))
		}
		out = append(out, &ir.Goto{Label: t.tree.Labels(id).Continue})
		return &ir.Block{Body: out}
	}
	if id == scope.None || t.tree.Kind(id) != scope.Function {
		t.fail(n, ErrCannotChangeControlFlow, "continue outside a loop or function")
	}

	var params []*scope.Declaration
	for _, d := range t.tree.Symbols(id) {
		if d.Parameter {
			params = append(params, d)
		}
	}
	if len(n.Args) > len(params) {
		t.fail(n, ErrMalformedNode, "continue passes %d arguments to a function of %d parameters", len(n.Args), len(params))
	}
	out := make([]ir.Node, 0, 2*len(n.Args)+1)
	vals := make([]*ir.Var, len(n.Args))
	for i, a := range n.Args {
		vals[i] = t.temp("arg")
		out = append(out, &ir.Bind{Var: vals[i], Value: t.expr(a)})
	}
	for i, v := range vals {
		out = append(out, &ir.Store{Var: params[i].Var, Value: &ir.Load{Var: v}})
	}
	out = append(out, &ir.Goto{Label: t.tree.Labels(id).Entry})
	return &ir.Block{Body: out}
}

func (t *Translator) ret(n *ast.Return) ir.Node {
	id, ok := t.tree.Enclosing(t.tree.Current(), []scope.Kind{scope.Function, scope.Fork}, []scope.Kind{scope.Finally})
	if !ok {
		if id != scope.None {
			t.fail(n, ErrCannotChangeControlFlow, "return out of a finally block")
		}
		t.fail(n, ErrCannotChangeControlFlow, "return outside a function")
	}
	return &ir.Goto{Label: t.tree.Labels(id).Exit, Value: t.opt(n.Value)}
}

// ---------------------------------------------------------------------------
// Exceptions and forks
// ---------------------------------------------------------------------------

// try offers a thrown value to each trap in order. A trap variable is bound
// by the catch itself, so it is declared as a parameter of the handler
// scope.
func (t *Translator) try(n *ast.Try) ir.Node {
	out := &ir.Try{Body: t.nested(scope.Branch, n.Body)}
	for _, trap := range n.Traps {
		c := ir.Catch{Contract: t.opt(trap.Contract)}
		t.push(scope.Handler, scope.InheritsBoth)
		if trap.Variable != "" {
			c.Var = t.declare(trap, trap.Variable, scope.Attrs{Parameter: true}).Var
		}
		c.Filter = t.nested(scope.Transient, trap.Filter)
		c.Body = t.close([]ir.Node{t.expr(trap.Body)})
		out.Catches = append(out.Catches, c)
	}
	out.Finally = t.nested(scope.Finally, n.Finally)
	return out
}

func (t *Translator) fork(n *ast.Fork) ir.Node {
	id := t.push(scope.Fork, scope.OwnsAll)
	labels := t.tree.Labels(id)
	inner := t.nested(scope.Branch, n.Body)
	return &ir.Fork{Body: t.close([]ir.Node{inner, &ir.Mark{Label: labels.Exit}})}
}
