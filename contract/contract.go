// Package contract implements the structural type lattice shared by the
// lowering translator, the runtime and the quotation layer.
//
// A contract never stores its relationships. They are computed on demand by
// Relate, which always lets the composite (higher ranked) operand answer and
// inverts the answer when the question was asked from the other side. This
// keeps Relate(a, b) == Relate(b, a).Invert() for every pair.
package contract

import (
	"strings"
)

// Relationship is the answer to a relationship query between two contracts.
type Relationship uint8

const (
	None Relationship = iota
	Same
	Subset
	Superset
)

var relationshipNames = [...]string{
	None:     "none",
	Same:     "same",
	Subset:   "subset",
	Superset: "superset",
}

func (r Relationship) String() string {
	if int(r) < len(relationshipNames) {
		return relationshipNames[r]
	}
	return "invalid"
}

// Invert flips Subset and Superset. Same and None are their own inverse.
func (r Relationship) Invert() Relationship {
	switch r {
	case Subset:
		return Superset
	case Superset:
		return Subset
	default:
		return r
	}
}

// Contract is an immutable type descriptor. The interface is sealed: every
// implementation lives in this package so the ranking stays total.
type Contract interface {
	Name() string
	rank() rank
	// relate answers for an operand of equal or lower rank.
	relate(other Contract) Relationship
}

type rank int

const (
	rankPrimitive rank = iota
	rankCode
	rankCodeElement
	rankProduct
	rankComplement
	rankUnion
	rankAny
)

// Relate answers relationship(a, b).
func Relate(a, b Contract) Relationship {
	if a == nil || b == nil {
		return None
	}
	if a == b {
		return Same
	}
	if a.rank() >= b.rank() {
		return a.relate(b)
	}
	return b.relate(a).Invert()
}

// Is reports whether every value of c also satisfies target.
func Is(c, target Contract) bool {
	switch Relate(c, target) {
	case Same, Subset:
		return true
	}
	return false
}

// within is Is spelled for readability inside composite rules.
func within(r Relationship) bool {
	return r == Same || r == Subset
}

// disjoint approximates "no value satisfies both". Only simple contracts
// (primitives, code kinds, products) are known to be disjoint when they are
// unrelated.
func disjoint(a, b Contract) bool {
	if a.rank() > rankProduct || b.rank() > rankProduct {
		return false
	}
	return Relate(a, b) == None
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// Primitive is a singleton contract for a builtin value family.
type Primitive struct {
	name string
}

func (p *Primitive) Name() string { return p.name }
func (p *Primitive) String() string {
	return p.name
}
func (p *Primitive) rank() rank { return rankPrimitive }

func (p *Primitive) relate(other Contract) Relationship {
	if other == Contract(p) {
		return Same
	}
	return None
}

var (
	Integer  = &Primitive{name: "integer"}
	Real     = &Primitive{name: "real"}
	String   = &Primitive{name: "string"}
	Boolean  = &Primitive{name: "boolean"}
	Void     = &Primitive{name: "void"}
	Array    = &Primitive{name: "array"}
	Object   = &Primitive{name: "object"}
	Function = &Primitive{name: "function"}
	Error    = &Primitive{name: "error"}
	Future   = &Primitive{name: "future"}
	// Meta is the contract of contract values themselves.
	Meta = &Primitive{name: "contract"}
)

// ---------------------------------------------------------------------------
// Code element contracts
// ---------------------------------------------------------------------------

// Code is the contract of one quotation factory, i.e. of one AST node kind.
type Code struct {
	name string
}

// NewCode creates the contract for a node kind. Callers keep one per kind.
func NewCode(name string) *Code {
	return &Code{name: name}
}

func (c *Code) Name() string   { return c.name }
func (c *Code) String() string { return "expression." + c.name }
func (c *Code) rank() rank     { return rankCode }

func (c *Code) relate(other Contract) Relationship {
	if other == Contract(c) {
		return Same
	}
	return None
}

type codeElement struct{}

func (codeElement) Name() string   { return "expression" }
func (codeElement) String() string { return "expression" }
func (codeElement) rank() rank     { return rankCodeElement }

func (codeElement) relate(other Contract) Relationship {
	switch other.(type) {
	case codeElement:
		return Same
	case *Code:
		return Superset
	}
	return None
}

// CodeElement is satisfied by every quotation regardless of its kind.
var CodeElement Contract = codeElement{}

// ---------------------------------------------------------------------------
// Top
// ---------------------------------------------------------------------------

type anyContract struct{}

func (anyContract) Name() string { return "any" }
func (anyContract) rank() rank   { return rankAny }

func (anyContract) relate(other Contract) Relationship {
	if _, ok := other.(anyContract); ok {
		return Same
	}
	return Superset
}

// Any is the top of the lattice.
var Any Contract = anyContract{}

// ---------------------------------------------------------------------------
// Composites
// ---------------------------------------------------------------------------

// ProductContract is an ordered tuple of contracts (argument lists, pairs).
type ProductContract struct {
	Parts []Contract
}

// Product builds a tuple contract.
func Product(parts ...Contract) *ProductContract {
	return &ProductContract{Parts: append([]Contract(nil), parts...)}
}

func (p *ProductContract) Name() string {
	names := make([]string, len(p.Parts))
	for i, c := range p.Parts {
		names[i] = c.Name()
	}
	return "(" + strings.Join(names, ", ") + ")"
}

func (p *ProductContract) rank() rank { return rankProduct }

func (p *ProductContract) relate(other Contract) Relationship {
	o, ok := other.(*ProductContract)
	if !ok || len(o.Parts) != len(p.Parts) {
		return None
	}
	acc := Same
	for i := range p.Parts {
		r := Relate(p.Parts[i], o.Parts[i])
		switch {
		case r == None:
			return None
		case r == Same:
		case acc == Same:
			acc = r
		case acc != r:
			return None
		}
	}
	return acc
}

// ComplementContract is satisfied by every value not satisfying Of.
type ComplementContract struct {
	Of Contract
}

// Complement builds ~c. The complement of a complement is the original.
func Complement(c Contract) Contract {
	if cc, ok := c.(*ComplementContract); ok {
		return cc.Of
	}
	return &ComplementContract{Of: c}
}

func (c *ComplementContract) Name() string { return "~" + c.Of.Name() }
func (c *ComplementContract) rank() rank   { return rankComplement }

func (c *ComplementContract) relate(other Contract) Relationship {
	if o, ok := other.(*ComplementContract); ok {
		// ~a vs ~b answers the inverse of a vs b.
		return Relate(c.Of, o.Of).Invert()
	}
	if disjoint(other, c.Of) {
		return Superset
	}
	return None
}

// UnionContract is satisfied by a value satisfying any member.
type UnionContract struct {
	Members []Contract
}

// Union builds a flattened union. A single member is returned as is, and a
// union with Any among its members is Any.
func Union(members ...Contract) Contract {
	var flat []Contract
	top := false
	var add func(c Contract)
	add = func(c Contract) {
		if _, ok := c.(anyContract); ok {
			top = true
			return
		}
		if u, ok := c.(*UnionContract); ok {
			for _, m := range u.Members {
				add(m)
			}
			return
		}
		for _, seen := range flat {
			if seen == c {
				return
			}
		}
		flat = append(flat, c)
	}
	for _, m := range members {
		if m != nil {
			add(m)
		}
	}
	if top {
		return Any
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &UnionContract{Members: flat}
}

func (u *UnionContract) Name() string {
	names := make([]string, len(u.Members))
	for i, c := range u.Members {
		names[i] = c.Name()
	}
	return strings.Join(names, " | ")
}

func (u *UnionContract) rank() rank { return rankUnion }

func (u *UnionContract) relate(other Contract) Relationship {
	if o, ok := other.(*UnionContract); ok {
		sub := u.allWithin(o)
		sup := o.allWithin(u)
		switch {
		case sub && sup:
			return Same
		case sub:
			return Subset
		case sup:
			return Superset
		}
		return None
	}
	sub := u.allWithin(other)
	sup := false
	for _, m := range u.Members {
		if within(Relate(other, m)) {
			sup = true
			break
		}
	}
	switch {
	case sub && sup:
		return Same
	case sub:
		return Subset
	case sup:
		return Superset
	}
	return None
}

func (u *UnionContract) allWithin(c Contract) bool {
	for _, m := range u.Members {
		if !within(Relate(m, c)) {
			return false
		}
	}
	return true
}
