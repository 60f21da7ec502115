package ast

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Parts: a uniform decomposition of every node kind.
//
// Each kind has a fixed schema of named parts. Parts decomposes a node along
// its schema and Build reassembles one, validating arity and part types.
// Transformation, cloning, the wire codec and the quotation factories are
// all written against this single table.
// ---------------------------------------------------------------------------

// PartType is the Go type a part carries.
type PartType uint8

const (
	PartNode     PartType = iota // Node
	PartNodes                    // []Node
	PartString                   // string
	PartInt                      // int64
	PartReal                     // float64
	PartBool                     // bool
	PartOperator                 // Operator
)

var partTypeNames = [...]string{
	PartNode:     "node",
	PartNodes:    "node list",
	PartString:   "string",
	PartInt:      "integer",
	PartReal:     "real",
	PartBool:     "boolean",
	PartOperator: "operator",
}

func (t PartType) String() string {
	if int(t) < len(partTypeNames) {
		return partTypeNames[t]
	}
	return "invalid"
}

// Field describes one part of a kind's schema.
type Field struct {
	Name     string
	Type     PartType
	Optional bool // a Node part that may be nil
	Elem     Kind // required node kind when Typed
	Typed    bool
}

func field(name string, t PartType) Field {
	return Field{Name: name, Type: t}
}

func opt(name string) Field {
	return Field{Name: name, Type: PartNode, Optional: true}
}

func typed(name string, t PartType, k Kind) Field {
	return Field{Name: name, Type: t, Elem: k, Typed: true}
}

var schemas = [kindCount][]Field{
	KindInteger:     {field("value", PartInt), field("interned", PartBool)},
	KindReal:        {field("value", PartReal), field("interned", PartBool)},
	KindString:      {field("value", PartString), field("interned", PartBool)},
	KindBoolean:     {field("value", PartBool)},
	KindVoid:        {},
	KindName:        {field("name", PartString)},
	KindBinary:      {field("operator", PartOperator), field("left", PartNode), field("right", PartNode)},
	KindUnary:       {field("operator", PartOperator), field("operand", PartNode)},
	KindAssign:      {field("target", PartNode), field("value", PartNode)},
	KindArray:       {field("elements", PartNodes)},
	KindObject:      {typed("members", PartNodes, KindDeclaration)},
	KindMember:      {field("target", PartNode), field("name", PartString)},
	KindCondition:   {field("test", PartNode), field("then", PartNode), opt("else")},
	KindFor:         {opt("init"), opt("test"), opt("step"), field("body", PartNode), field("group", PartOperator), opt("custom"), field("suppress", PartBool)},
	KindForEach:     {field("variable", PartString), field("source", PartNode), field("body", PartNode), field("group", PartOperator), opt("custom"), field("suppress", PartBool)},
	KindWhile:       {field("test", PartNode), field("body", PartNode), field("posttest", PartBool), field("group", PartOperator), opt("custom"), field("suppress", PartBool)},
	KindInvoke:      {field("target", PartNode), field("args", PartNodes)},
	KindIndexer:     {field("target", PartNode), field("index", PartNode)},
	KindParameter:   {field("name", PartString), opt("contract"), opt("default")},
	KindSignature:   {typed("params", PartNodes, KindParameter), opt("result")},
	KindAction:      {field("name", PartString), typed("signature", PartNode, KindSignature), field("body", PartNode)},
	KindTrap:        {field("variable", PartString), opt("contract"), opt("filter"), field("body", PartNode)},
	KindTry:         {field("body", PartNode), typed("traps", PartNodes, KindTrap), opt("finally")},
	KindCase:        {field("values", PartNodes), field("body", PartNode)},
	KindSelection:   {field("subject", PartNode), typed("cases", PartNodes, KindCase), opt("comparer")},
	KindFork:        {field("body", PartNode)},
	KindAwait:       {field("target", PartNode), opt("synchronizer")},
	KindPlaceholder: {field("id", PartInt)},
	KindComplex:     {field("body", PartNodes)},
	KindContractRef: {field("name", PartString)},
	KindDeclaration: {field("name", PartString), field("const", PartBool), opt("contract"), opt("value")},
	KindReturn:      {opt("value")},
	KindBreak:       {field("args", PartNodes)},
	KindContinue:    {field("args", PartNodes)},
	KindFault:       {field("value", PartNode)},
	KindQuote:       {field("body", PartNode)},
}

// Schema returns the part layout of kind k.
func Schema(k Kind) []Field {
	if !k.Valid() {
		return nil
	}
	return schemas[k]
}

// FieldIndex returns the position of the named part in k's schema.
func FieldIndex(k Kind, name string) (int, bool) {
	for i, fd := range Schema(k) {
		if fd.Name == name {
			return i, true
		}
	}
	return -1, false
}

// ErrPartMismatch is returned by Build when parts do not fit the schema.
var ErrPartMismatch = errors.New("part mismatch")

// PartError describes why a part list was rejected.
type PartError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *PartError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", e.Kind, e.Field, e.Reason)
}

func (e *PartError) Unwrap() error { return ErrPartMismatch }

func nodeList[T Node](xs []T) []Node {
	out := make([]Node, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func optional(n Node) any {
	if n == nil {
		return nil
	}
	return n
}

// Parts decomposes n along its kind's schema.
func Parts(n Node) []any {
	switch n := n.(type) {
	case *Integer:
		return []any{n.Value, n.Interned}
	case *Real:
		return []any{n.Value, n.Interned}
	case *String:
		return []any{n.Value, n.Interned}
	case *Boolean:
		return []any{n.Value}
	case *Void:
		return []any{}
	case *Name:
		return []any{n.Name}
	case *Binary:
		return []any{n.Op, optional(n.Left), optional(n.Right)}
	case *Unary:
		return []any{n.Op, optional(n.Operand)}
	case *Assign:
		return []any{optional(n.Target), optional(n.Value)}
	case *Array:
		return []any{n.Elements}
	case *Object:
		return []any{nodeList(n.Members)}
	case *Member:
		return []any{optional(n.Target), n.Name}
	case *Condition:
		return []any{optional(n.Test), optional(n.Then), optional(n.Else)}
	case *For:
		return []any{optional(n.Init), optional(n.Test), optional(n.Step), optional(n.Body), n.Group, optional(n.Custom), n.Suppress}
	case *ForEach:
		return []any{n.Variable, optional(n.Source), optional(n.Body), n.Group, optional(n.Custom), n.Suppress}
	case *While:
		return []any{optional(n.Test), optional(n.Body), n.PostTest, n.Group, optional(n.Custom), n.Suppress}
	case *Invoke:
		return []any{optional(n.Target), n.Args}
	case *Indexer:
		return []any{optional(n.Target), optional(n.Index)}
	case *Parameter:
		return []any{n.Name, optional(n.Contract), optional(n.Default)}
	case *Signature:
		return []any{nodeList(n.Params), optional(n.Result)}
	case *Action:
		var sig any
		if n.Signature != nil {
			sig = n.Signature
		}
		return []any{n.Name, sig, optional(n.Body)}
	case *Trap:
		return []any{n.Variable, optional(n.Contract), optional(n.Filter), optional(n.Body)}
	case *Try:
		return []any{optional(n.Body), nodeList(n.Traps), optional(n.Finally)}
	case *Case:
		return []any{n.Values, optional(n.Body)}
	case *Selection:
		return []any{optional(n.Subject), nodeList(n.Cases), optional(n.Comparer)}
	case *Fork:
		return []any{optional(n.Body)}
	case *Await:
		return []any{optional(n.Target), optional(n.Synchronizer)}
	case *Placeholder:
		return []any{n.ID}
	case *Complex:
		return []any{n.Body}
	case *ContractRef:
		return []any{n.Name}
	case *Declaration:
		return []any{n.Name, n.Const, optional(n.Contract), optional(n.Value)}
	case *Return:
		return []any{optional(n.Value)}
	case *Break:
		return []any{n.Args}
	case *Continue:
		return []any{n.Args}
	case *Fault:
		return []any{optional(n.Value)}
	case *Quote:
		return []any{optional(n.Body)}
	}
	return nil
}

// CheckPart reports whether v is acceptable for field fd, normalizing Go int
// to int64. The returned value is what Build stores.
func CheckPart(fd Field, v any) (any, bool) {
	switch fd.Type {
	case PartNode:
		if v == nil {
			return nil, fd.Optional
		}
		n, ok := v.(Node)
		if !ok || n == nil {
			return nil, false
		}
		if fd.Typed && n.Kind() != fd.Elem {
			return nil, false
		}
		return n, true
	case PartNodes:
		if v == nil {
			return []Node(nil), true
		}
		ns, ok := v.([]Node)
		if !ok {
			return nil, false
		}
		for _, n := range ns {
			if n == nil || (fd.Typed && n.Kind() != fd.Elem) {
				return nil, false
			}
		}
		return ns, true
	case PartString:
		s, ok := v.(string)
		return s, ok
	case PartInt:
		switch i := v.(type) {
		case int64:
			return i, true
		case int:
			return int64(i), true
		}
		return nil, false
	case PartReal:
		r, ok := v.(float64)
		return r, ok
	case PartBool:
		b, ok := v.(bool)
		return b, ok
	case PartOperator:
		o, ok := v.(Operator)
		return o, ok
	}
	return nil, false
}

// Build assembles a node of kind k from parts laid out as Schema(k).
func Build(k Kind, span Span, parts []any) (Node, error) {
	schema := Schema(k)
	if schema == nil {
		return nil, &PartError{Kind: k, Reason: "unknown kind"}
	}
	if len(parts) != len(schema) {
		return nil, &PartError{Kind: k, Reason: fmt.Sprintf("expected %d parts, got %d", len(schema), len(parts))}
	}
	p := make([]any, len(parts))
	for i, fd := range schema {
		v, ok := CheckPart(fd, parts[i])
		if !ok {
			return nil, &PartError{Kind: k, Field: fd.Name, Reason: "expected " + describe(fd)}
		}
		p[i] = v
	}

	nd := func(i int) Node {
		if p[i] == nil {
			return nil
		}
		return p[i].(Node)
	}
	ns := func(i int) []Node { return p[i].([]Node) }
	str := func(i int) string { return p[i].(string) }
	bl := func(i int) bool { return p[i].(bool) }
	op := func(i int) Operator { return p[i].(Operator) }

	switch k {
	case KindInteger:
		return &Integer{SpanVal: span, Value: p[0].(int64), Interned: bl(1)}, nil
	case KindReal:
		return &Real{SpanVal: span, Value: p[0].(float64), Interned: bl(1)}, nil
	case KindString:
		return &String{SpanVal: span, Value: str(0), Interned: bl(1)}, nil
	case KindBoolean:
		return &Boolean{SpanVal: span, Value: bl(0)}, nil
	case KindVoid:
		return &Void{SpanVal: span}, nil
	case KindName:
		return &Name{SpanVal: span, Name: str(0)}, nil
	case KindBinary:
		if !op(0).IsBinary() {
			return nil, &PartError{Kind: k, Field: "operator", Reason: "not a binary operator"}
		}
		return &Binary{SpanVal: span, Op: op(0), Left: nd(1), Right: nd(2)}, nil
	case KindUnary:
		if !op(0).IsUnary() {
			return nil, &PartError{Kind: k, Field: "operator", Reason: "not a unary operator"}
		}
		return &Unary{SpanVal: span, Op: op(0), Operand: nd(1)}, nil
	case KindAssign:
		switch nd(0).Kind() {
		case KindName, KindMember, KindIndexer:
		default:
			return nil, &PartError{Kind: k, Field: "target", Reason: "not assignable"}
		}
		return &Assign{SpanVal: span, Target: nd(0), Value: nd(1)}, nil
	case KindArray:
		return &Array{SpanVal: span, Elements: ns(0)}, nil
	case KindObject:
		return &Object{SpanVal: span, Members: typedList[*Declaration](ns(0))}, nil
	case KindMember:
		return &Member{SpanVal: span, Target: nd(0), Name: str(1)}, nil
	case KindCondition:
		return &Condition{SpanVal: span, Test: nd(0), Then: nd(1), Else: nd(2)}, nil
	case KindFor:
		if err := checkGroup(k, op(4)); err != nil {
			return nil, err
		}
		return &For{SpanVal: span, Init: nd(0), Test: nd(1), Step: nd(2), Body: nd(3), Group: op(4), Custom: nd(5), Suppress: bl(6)}, nil
	case KindForEach:
		if err := checkGroup(k, op(3)); err != nil {
			return nil, err
		}
		return &ForEach{SpanVal: span, Variable: str(0), Source: nd(1), Body: nd(2), Group: op(3), Custom: nd(4), Suppress: bl(5)}, nil
	case KindWhile:
		if err := checkGroup(k, op(3)); err != nil {
			return nil, err
		}
		return &While{SpanVal: span, Test: nd(0), Body: nd(1), PostTest: bl(2), Group: op(3), Custom: nd(4), Suppress: bl(5)}, nil
	case KindInvoke:
		return &Invoke{SpanVal: span, Target: nd(0), Args: ns(1)}, nil
	case KindIndexer:
		return &Indexer{SpanVal: span, Target: nd(0), Index: nd(1)}, nil
	case KindParameter:
		return &Parameter{SpanVal: span, Name: str(0), Contract: nd(1), Default: nd(2)}, nil
	case KindSignature:
		return &Signature{SpanVal: span, Params: typedList[*Parameter](ns(0)), Result: nd(1)}, nil
	case KindAction:
		return &Action{SpanVal: span, Name: str(0), Signature: nd(1).(*Signature), Body: nd(2)}, nil
	case KindTrap:
		return &Trap{SpanVal: span, Variable: str(0), Contract: nd(1), Filter: nd(2), Body: nd(3)}, nil
	case KindTry:
		return &Try{SpanVal: span, Body: nd(0), Traps: typedList[*Trap](ns(1)), Finally: nd(2)}, nil
	case KindCase:
		return &Case{SpanVal: span, Values: ns(0), Body: nd(1)}, nil
	case KindSelection:
		return &Selection{SpanVal: span, Subject: nd(0), Cases: typedList[*Case](ns(1)), Comparer: nd(2)}, nil
	case KindFork:
		return &Fork{SpanVal: span, Body: nd(0)}, nil
	case KindAwait:
		return &Await{SpanVal: span, Target: nd(0), Synchronizer: nd(1)}, nil
	case KindPlaceholder:
		return &Placeholder{SpanVal: span, ID: p[0].(int64)}, nil
	case KindComplex:
		return &Complex{SpanVal: span, Body: ns(0)}, nil
	case KindContractRef:
		return &ContractRef{SpanVal: span, Name: str(0)}, nil
	case KindDeclaration:
		return &Declaration{SpanVal: span, Name: str(0), Const: bl(1), Contract: nd(2), Value: nd(3)}, nil
	case KindReturn:
		return &Return{SpanVal: span, Value: nd(0)}, nil
	case KindBreak:
		return &Break{SpanVal: span, Args: ns(0)}, nil
	case KindContinue:
		return &Continue{SpanVal: span, Args: ns(0)}, nil
	case KindFault:
		return &Fault{SpanVal: span, Value: nd(0)}, nil
	case KindQuote:
		return &Quote{SpanVal: span, Body: nd(0)}, nil
	}
	return nil, &PartError{Kind: k, Reason: "unknown kind"}
}

func typedList[T Node](ns []Node) []T {
	if ns == nil {
		return nil
	}
	out := make([]T, len(ns))
	for i, n := range ns {
		out[i] = n.(T)
	}
	return out
}

func checkGroup(k Kind, o Operator) error {
	if o == OpNone || o.IsBinary() {
		return nil
	}
	return &PartError{Kind: k, Field: "group", Reason: "not a binary operator"}
}

func describe(fd Field) string {
	s := fd.Type.String()
	if fd.Typed {
		s += " of " + fd.Elem.String()
	}
	if fd.Optional {
		s += " or nothing"
	}
	return s
}
