package lower

import (
	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/ir"
	"github.com/chazu/sable/runtime"
	"github.com/chazu/sable/scope"
)

func (t *Translator) opt(n ast.Node) ir.Node {
	if n == nil {
		return nil
	}
	return t.expr(n)
}

func (t *Translator) list(ns []ast.Node) []ir.Node {
	out := make([]ir.Node, len(ns))
	for i, n := range ns {
		out[i] = t.expr(n)
	}
	return out
}

func (t *Translator) statements(ns []ast.Node) []ir.Node {
	out := make([]ir.Node, 0, len(ns))
	for _, n := range ns {
		if t.opts.DebugInfo {
			out = append(out, &ir.Debug{Span: n.Span()})
		}
		out = append(out, t.expr(n))
	}
	return out
}

func (t *Translator) literal(v runtime.Value, interned bool) ir.Node {
	if !interned {
		return &ir.Const{Value: v}
	}
	i, err := t.pool.Intern(v)
	if err != nil {
		return &ir.Const{Value: v}
	}
	if i == len(t.literals) {
		t.literals = append(t.literals, v)
	}
	return &ir.Pooled{Pool: t.pool, Index: i}
}

// expr lowers one node.
func (t *Translator) expr(n ast.Node) ir.Node {
	switch n := n.(type) {
	case *ast.Integer:
		return t.literal(runtime.Integer(n.Value), n.Interned)
	case *ast.Real:
		return t.literal(runtime.Real(n.Value), n.Interned)
	case *ast.String:
		return t.literal(runtime.String(n.Value), n.Interned)
	case *ast.Boolean:
		return &ir.Const{Value: runtime.Boolean(n.Value)}
	case *ast.Void:
		return &ir.Const{Value: runtime.Void}

	case *ast.Name:
		if d, _, ok := t.tree.Resolve(n.Name); ok {
			return &ir.Load{Var: d.Var}
		}
		return &ir.Global{Name: n.Name}

	case *ast.Binary:
		l, r := t.expr(n.Left), t.expr(n.Right)
		switch n.Op {
		case ast.OpAnd:
			return &ir.AndAlso{Left: l, Right: r}
		case ast.OpOr:
			return &ir.OrElse{Left: l, Right: r}
		}
		return &ir.Binary{Op: n.Op, Left: l, Right: r}

	case *ast.Unary:
		return &ir.Unary{Op: n.Op, Operand: t.expr(n.Operand)}

	case *ast.Assign:
		return t.assign(n)

	case *ast.Array:
		return &ir.MakeArray{Elements: t.list(n.Elements)}

	case *ast.Object:
		return t.object(n)

	case *ast.Member:
		return &ir.Member{Target: t.expr(n.Target), Name: n.Name}

	case *ast.Condition:
		return &ir.If{
			Test: t.expr(n.Test),
			Then: t.nested(scope.Branch, n.Then),
			Else: t.nested(scope.Branch, n.Else),
		}

	case *ast.For:
		return t.forLoop(n)
	case *ast.ForEach:
		return t.forEach(n)
	case *ast.While:
		return t.while(n)

	case *ast.Invoke:
		return &ir.Call{Target: t.expr(n.Target), Args: t.list(n.Args)}

	case *ast.Indexer:
		return &ir.Index{Target: t.expr(n.Target), Index: t.expr(n.Index)}

	case *ast.Action:
		return t.action(n)
	case *ast.Return:
		return t.ret(n)
	case *ast.Break:
		return t.brk(n)
	case *ast.Continue:
		return t.cont(n)

	case *ast.Fault:
		v := t.opt(n.Value)
		if v == nil {
			v = &ir.Const{Value: runtime.Errorf(runtime.CodeFault, "fault")}
		}
		return &ir.Throw{Value: v}

	case *ast.Try:
		return t.try(n)
	case *ast.Selection:
		return t.selection(n)

	case *ast.Fork:
		return t.fork(n)
	case *ast.Await:
		return &ir.Await{Target: t.expr(n.Target), Synchronizer: t.opt(n.Synchronizer)}

	case *ast.Complex:
		return t.scoped(scope.Branch, scope.InheritsBoth, func() []ir.Node {
			return t.statements(n.Body)
		})

	case *ast.ContractRef:
		c, ok := t.contracts.Lookup(n.Name)
		if !ok {
			t.fail(n, ErrMalformedNode, "unknown contract %q", n.Name)
		}
		return &ir.Const{Value: runtime.ContractValue{C: c}}

	case *ast.Declaration:
		return t.declaration(n)

	case *ast.Quote:
		return &ir.Quote{Node: n.Body}

	case *ast.Placeholder:
		t.fail(n, ErrMalformedNode, "placeholder #%d was never expanded", n.ID)

	case *ast.Parameter, *ast.Signature, *ast.Trap, *ast.Case:
		t.fail(n, ErrMalformedNode, "%s outside its parent construct", n.Kind())

	case nil:
		t.fail(nil, ErrMalformedNode, "missing node")
	}
	t.fail(n, ErrMalformedNode, "unsupported node %T", n)
	return nil
}

func (t *Translator) assign(n *ast.Assign) ir.Node {
	switch target := n.Target.(type) {
	case *ast.Name:
		if d, _, ok := t.tree.Resolve(target.Name); ok {
			if d.Constant {
				t.fail(n, ErrConstantAssignment, "%q is constant", target.Name)
			}
			return &ir.Store{Var: d.Var, Value: t.expr(n.Value)}
		}
		return &ir.StoreGlobal{Name: target.Name, Value: t.expr(n.Value)}
	case *ast.Member:
		return &ir.SetMember{Target: t.expr(target.Target), Name: target.Name, Value: t.expr(n.Value)}
	case *ast.Indexer:
		return &ir.SetIndex{Target: t.expr(target.Target), Index: t.expr(target.Index), Value: t.expr(n.Value)}
	}
	t.fail(n, ErrMalformedNode, "cannot assign to %s", describe(n.Target))
	return nil
}

func describe(n ast.Node) string {
	if n == nil {
		return "nothing"
	}
	return n.Kind().String()
}

func (t *Translator) object(n *ast.Object) ir.Node {
	return t.scoped(scope.Object, scope.InheritsBoth, func() []ir.Node {
		seen := make(map[string]bool, len(n.Members))
		fields := make([]ir.Field, len(n.Members))
		for i, m := range n.Members {
			if seen[m.Name] {
				t.fail(m, ErrDuplicateIdentifier, "member %q is already defined", m.Name)
			}
			seen[m.Name] = true
			v := t.opt(m.Value)
			if v == nil {
				v = &ir.Const{Value: runtime.Void}
			}
			fields[i] = ir.Field{Name: m.Name, Value: v, Constant: m.Const}
		}
		return []ir.Node{&ir.MakeObject{Fields: fields}}
	})
}

// declaration binds a var directly. A const lowers its initializer and its
// contract in transient scopes of their own and binds both at once.
func (t *Translator) declaration(n *ast.Declaration) ir.Node {
	attrs := scope.Attrs{Constant: n.Const}
	if ref, ok := n.Contract.(*ast.ContractRef); ok {
		attrs.Contract, _ = t.contracts.Lookup(ref.Name)
	}
	d := t.declare(n, n.Name, attrs)
	if n.Const {
		return &ir.Bind{
			Var:      d.Var,
			Value:    t.nested(scope.Transient, n.Value),
			Contract: t.nested(scope.Transient, n.Contract),
		}
	}
	return &ir.Bind{Var: d.Var, Value: t.opt(n.Value), Contract: t.opt(n.Contract)}
}

func (t *Translator) action(n *ast.Action) ir.Node {
	var self *scope.Declaration
	if n.Name != "" {
		self = t.declare(n, n.Name, scope.Attrs{Constant: true})
	}
	sig := n.Signature
	if sig == nil {
		sig = &ast.Signature{}
	}

	params := make([]ir.Param, len(sig.Params))
	for i, p := range sig.Params {
		params[i].Contract = t.opt(p.Contract)
	}
	result := t.opt(sig.Result)

	fn := t.push(scope.Function, scope.OwnsAll)
	for i, p := range sig.Params {
		params[i].Var = t.declare(p, p.Name, scope.Attrs{Parameter: true}).Var
	}
	for i, p := range sig.Params {
		params[i].Default = t.nested(scope.Transient, p.Default)
	}
	labels := t.tree.Labels(fn)
	inner := t.nested(scope.Branch, n.Body)
	body := t.close([]ir.Node{
		&ir.Mark{Label: labels.Entry},
		inner,
		&ir.Mark{Label: labels.Exit},
	})

	lambda := &ir.Lambda{Name: n.Name, Params: params, Result: result, Body: body}
	if self != nil {
		return &ir.Bind{Var: self.Var, Value: lambda}
	}
	return lambda
}

func (t *Translator) selection(n *ast.Selection) ir.Node {
	sel := &ir.Select{Subject: t.expr(n.Subject), Comparer: t.opt(n.Comparer)}
	for _, c := range n.Cases {
		if len(c.Values) == 0 {
			if sel.Default != nil {
				t.fail(c, ErrMalformedNode, "more than one default arm")
			}
			sel.Default = t.nested(scope.Branch, c.Body)
			continue
		}
		sel.Cases = append(sel.Cases, ir.SelectCase{
			Values: t.list(c.Values),
			Body:   t.nested(scope.Branch, c.Body),
		})
	}
	return sel
}
