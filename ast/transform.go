package ast

// Children returns the non-nil child nodes of n in schema order.
func Children(n Node) []Node {
	if n == nil {
		return nil
	}
	var out []Node
	parts := Parts(n)
	for i, fd := range Schema(n.Kind()) {
		p := parts[i]
		switch fd.Type {
		case PartNode:
			if c, ok := p.(Node); ok && c != nil {
				out = append(out, c)
			}
		case PartNodes:
			out = append(out, p.([]Node)...)
		}
	}
	return out
}

// Walk calls fn on n and its descendants in pre-order. Returning false from
// fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// Transform returns a rebuilt copy of n. fn is offered every node in
// pre-order; when it returns (replacement, true) the replacement is used as
// is and its subtree is not visited. A replacement that does not fit the
// parent's schema (wrong kind, or nil) is ignored and the original child is
// kept. The input tree is never mutated.
func Transform(n Node, fn func(Node) (Node, bool)) Node {
	if n == nil {
		return nil
	}
	if r, ok := fn(n); ok && r != nil {
		return r
	}
	return rebuild(n, func(c Node) Node { return Transform(c, fn) })
}

// Clone returns a deep copy of n.
func Clone(n Node) Node {
	return Transform(n, func(Node) (Node, bool) { return nil, false })
}

// MapChildren returns a copy of n whose children are replaced by f(child).
// Replacements that do not fit the schema are ignored, as in Transform.
func MapChildren(n Node, f func(Node) Node) Node {
	if n == nil {
		return nil
	}
	return rebuild(n, f)
}

func rebuild(n Node, f func(Node) Node) Node {
	parts := Parts(n)
	schema := Schema(n.Kind())
	out := make([]any, len(parts))
	for i, fd := range schema {
		switch fd.Type {
		case PartNode:
			orig, ok := parts[i].(Node)
			if !ok || orig == nil {
				continue
			}
			if v, ok := CheckPart(fd, f(orig)); ok && v != nil {
				out[i] = v
			} else {
				out[i] = orig
			}
		case PartNodes:
			orig := parts[i].([]Node)
			var list []Node
			if orig != nil {
				list = make([]Node, len(orig))
			}
			for j, c := range orig {
				r := f(c)
				if r == nil || (fd.Typed && r.Kind() != fd.Elem) {
					r = c
				}
				list[j] = r
			}
			out[i] = list
		default:
			out[i] = parts[i]
		}
	}
	b, err := Build(n.Kind(), n.Span(), out)
	if err == nil {
		return b
	}
	// A replacement broke a kind-level rule such as an assignable target.
	if b, err = Build(n.Kind(), n.Span(), parts); err == nil {
		return b
	}
	return n
}
