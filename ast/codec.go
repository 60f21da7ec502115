package ast

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Wire codec: canonical CBOR encoding of node trees.
//
// The encoding follows Schema: each node is its kind, an optional span and
// one wire part per schema field. Scalars share one part struct; the schema
// tells the decoder which member to read.
// ---------------------------------------------------------------------------

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ast: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireNode struct {
	Kind  Kind       `cbor:"1,keyasint"`
	Span  []int      `cbor:"2,keyasint,omitempty"`
	Parts []wirePart `cbor:"3,keyasint,omitempty"`
}

type wirePart struct {
	Node  *wireNode   `cbor:"1,keyasint,omitempty"`
	Nodes []*wireNode `cbor:"2,keyasint,omitempty"`
	Str   string      `cbor:"3,keyasint,omitempty"`
	Int   int64       `cbor:"4,keyasint,omitempty"`
	Real  float64     `cbor:"5,keyasint,omitempty"`
	Bool  bool        `cbor:"6,keyasint,omitempty"`
}

// Marshal serializes a node tree, spans included.
func Marshal(n Node) ([]byte, error) {
	w, err := toWire(n, true)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// Canonical serializes a node tree without spans. Two trees with equal
// canonical bytes are the same code.
func Canonical(n Node) ([]byte, error) {
	w, err := toWire(n, false)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// Unmarshal deserializes a node tree produced by Marshal or Canonical.
func Unmarshal(data []byte) (Node, error) {
	var w wireNode
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("ast: unmarshal node: %w", err)
	}
	n, err := fromWire(&w)
	if err != nil {
		return nil, fmt.Errorf("ast: unmarshal node: %w", err)
	}
	return n, nil
}

// Equal reports whether a and b are the same code, ignoring spans.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ea, err := Canonical(a)
	if err != nil {
		return false
	}
	eb, err := Canonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

func toWire(n Node, spans bool) (*wireNode, error) {
	if n == nil {
		return nil, nil
	}
	schema := Schema(n.Kind())
	parts := Parts(n)
	if schema == nil || len(parts) != len(schema) {
		return nil, fmt.Errorf("ast: marshal node: unknown kind %d", n.Kind())
	}
	w := &wireNode{Kind: n.Kind()}
	if spans {
		s := n.Span()
		w.Span = []int{s.Start.Offset, s.Start.Line, s.Start.Column, s.End.Offset, s.End.Line, s.End.Column}
	}
	w.Parts = make([]wirePart, len(schema))
	for i, fd := range schema {
		wp := &w.Parts[i]
		switch fd.Type {
		case PartNode:
			if c, ok := parts[i].(Node); ok && c != nil {
				cw, err := toWire(c, spans)
				if err != nil {
					return nil, err
				}
				wp.Node = cw
			}
		case PartNodes:
			for _, c := range parts[i].([]Node) {
				cw, err := toWire(c, spans)
				if err != nil {
					return nil, err
				}
				wp.Nodes = append(wp.Nodes, cw)
			}
		case PartString:
			wp.Str = parts[i].(string)
		case PartInt:
			wp.Int = parts[i].(int64)
		case PartReal:
			wp.Real = parts[i].(float64)
		case PartBool:
			wp.Bool = parts[i].(bool)
		case PartOperator:
			wp.Int = int64(parts[i].(Operator))
		}
	}
	return w, nil
}

func fromWire(w *wireNode) (Node, error) {
	if !w.Kind.Valid() {
		return nil, fmt.Errorf("unknown kind %d", w.Kind)
	}
	schema := Schema(w.Kind)
	if len(w.Parts) != len(schema) {
		return nil, &PartError{Kind: w.Kind, Reason: fmt.Sprintf("expected %d parts, got %d", len(schema), len(w.Parts))}
	}
	var span Span
	if len(w.Span) == 6 {
		span = Span{
			Start: Position{Offset: w.Span[0], Line: w.Span[1], Column: w.Span[2]},
			End:   Position{Offset: w.Span[3], Line: w.Span[4], Column: w.Span[5]},
		}
	}
	parts := make([]any, len(schema))
	for i, fd := range schema {
		wp := w.Parts[i]
		switch fd.Type {
		case PartNode:
			if wp.Node != nil {
				c, err := fromWire(wp.Node)
				if err != nil {
					return nil, err
				}
				parts[i] = c
			}
		case PartNodes:
			var list []Node
			for _, cw := range wp.Nodes {
				if cw == nil {
					return nil, &PartError{Kind: w.Kind, Field: fd.Name, Reason: "nil element"}
				}
				c, err := fromWire(cw)
				if err != nil {
					return nil, err
				}
				list = append(list, c)
			}
			parts[i] = list
		case PartString:
			parts[i] = wp.Str
		case PartInt:
			parts[i] = wp.Int
		case PartReal:
			parts[i] = wp.Real
		case PartBool:
			parts[i] = wp.Bool
		case PartOperator:
			parts[i] = Operator(wp.Int)
		}
	}
	return Build(w.Kind, span, parts)
}
