package hash

import (
	"fmt"

	"github.com/chazu/sable/ast"
)

// scope tracks the names bound at one nesting level.
type scope struct {
	vars map[string]int
}

type normalizer struct {
	scopes []scope
}

// Normalize returns a copy of n with locally bound names replaced by
// de Bruijn style references. A reference is written "$depth.slot" where
// depth counts scopes outward from the innermost one; a binder is written
// "$slot".
func Normalize(n ast.Node) ast.Node {
	nz := &normalizer{}
	nz.push()
	return nz.node(n)
}

func (nz *normalizer) push() {
	nz.scopes = append(nz.scopes, scope{vars: make(map[string]int)})
}

func (nz *normalizer) pop() {
	nz.scopes = nz.scopes[:len(nz.scopes)-1]
}

func (nz *normalizer) bind(name string) string {
	if name == "" {
		return ""
	}
	top := &nz.scopes[len(nz.scopes)-1]
	slot, ok := top.vars[name]
	if !ok {
		slot = len(top.vars)
		top.vars[name] = slot
	}
	return fmt.Sprintf("$%d", slot)
}

func (nz *normalizer) resolve(name string) string {
	for depth := len(nz.scopes) - 1; depth >= 0; depth-- {
		if slot, ok := nz.scopes[depth].vars[name]; ok {
			return fmt.Sprintf("$%d.%d", len(nz.scopes)-1-depth, slot)
		}
	}
	return name
}

func (nz *normalizer) node(n ast.Node) ast.Node {
	if n == nil {
		return nil
	}
	switch n := n.(type) {
	case *ast.Integer:
		return &ast.Integer{Value: n.Value}
	case *ast.Real:
		return &ast.Real{Value: n.Value}
	case *ast.String:
		return &ast.String{Value: n.Value}

	case *ast.Name:
		return &ast.Name{Name: nz.resolve(n.Name)}

	case *ast.Declaration:
		// Bound before the value so recursive references resolve.
		name := nz.bind(n.Name)
		return &ast.Declaration{
			Name:     name,
			Const:    n.Const,
			Contract: nz.node(n.Contract),
			Value:    nz.node(n.Value),
		}

	case *ast.Object:
		// Member names are visible from outside and stay significant.
		members := make([]*ast.Declaration, len(n.Members))
		for i, m := range n.Members {
			members[i] = &ast.Declaration{
				Name:     m.Name,
				Const:    m.Const,
				Contract: nz.node(m.Contract),
				Value:    nz.node(m.Value),
			}
		}
		return &ast.Object{Members: members}

	case *ast.Complex:
		nz.push()
		defer nz.pop()
		body := make([]ast.Node, len(n.Body))
		for i, s := range n.Body {
			body[i] = nz.node(s)
		}
		return &ast.Complex{Body: body}

	case *ast.Action:
		in := n.Signature
		if in == nil {
			in = &ast.Signature{}
		}
		nz.push()
		defer nz.pop()
		sig := &ast.Signature{Result: nz.node(in.Result)}
		for _, p := range in.Params {
			sig.Params = append(sig.Params, &ast.Parameter{
				Name:     nz.bind(p.Name),
				Contract: nz.node(p.Contract),
				Default:  nz.node(p.Default),
			})
		}
		return &ast.Action{Signature: sig, Body: nz.node(n.Body)}

	case *ast.ForEach:
		source := nz.node(n.Source)
		group := nz.node(n.Custom)
		nz.push()
		defer nz.pop()
		return &ast.ForEach{
			Variable: nz.bind(n.Variable),
			Source:   source,
			Body:     nz.node(n.Body),
			Group:    n.Group,
			Custom:   group,
			Suppress: n.Suppress,
		}

	case *ast.Trap:
		contract := nz.node(n.Contract)
		nz.push()
		defer nz.pop()
		return &ast.Trap{
			Variable: nz.bind(n.Variable),
			Contract: contract,
			Filter:   nz.node(n.Filter),
			Body:     nz.node(n.Body),
		}
	}
	return ast.MapChildren(n, nz.node)
}
