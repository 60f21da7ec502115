package ast

// Kind identifies the concrete type of a Node.
type Kind uint8

const (
	KindInteger Kind = iota
	KindReal
	KindString
	KindBoolean
	KindVoid
	KindName
	KindBinary
	KindUnary
	KindAssign
	KindArray
	KindObject
	KindMember
	KindCondition
	KindFor
	KindForEach
	KindWhile
	KindInvoke
	KindIndexer
	KindParameter
	KindSignature
	KindAction
	KindTrap
	KindTry
	KindCase
	KindSelection
	KindFork
	KindAwait
	KindPlaceholder
	KindComplex
	KindContractRef
	KindDeclaration
	KindReturn
	KindBreak
	KindContinue
	KindFault
	KindQuote

	kindCount
)

var kindNames = [kindCount]string{
	KindInteger:     "integer",
	KindReal:        "real",
	KindString:      "string",
	KindBoolean:     "boolean",
	KindVoid:        "void",
	KindName:        "name",
	KindBinary:      "binary",
	KindUnary:       "unary",
	KindAssign:      "assign",
	KindArray:       "array",
	KindObject:      "object",
	KindMember:      "member",
	KindCondition:   "condition",
	KindFor:         "for",
	KindForEach:     "foreach",
	KindWhile:       "while",
	KindInvoke:      "invoke",
	KindIndexer:     "indexer",
	KindParameter:   "parameter",
	KindSignature:   "signature",
	KindAction:      "action",
	KindTrap:        "trap",
	KindTry:         "try",
	KindCase:        "case",
	KindSelection:   "selection",
	KindFork:        "fork",
	KindAwait:       "await",
	KindPlaceholder: "placeholder",
	KindComplex:     "complex",
	KindContractRef: "contract",
	KindDeclaration: "declaration",
	KindReturn:      "return",
	KindBreak:       "break",
	KindContinue:    "continue",
	KindFault:       "fault",
	KindQuote:       "quote",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "invalid"
}

// Valid reports whether k names a node kind.
func (k Kind) Valid() bool { return k < kindCount }

// Kinds returns every node kind in declaration order.
func Kinds() []Kind {
	ks := make([]Kind, kindCount)
	for i := range ks {
		ks[i] = Kind(i)
	}
	return ks
}

// KindByName is the inverse of Kind.String.
func KindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// Operator identifies a binary or unary operator. OpNone marks "no grouping"
// on loops.
type Operator uint8

const (
	OpNone Operator = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpIs
	OpUnion
	OpNeg
	OpNot
	OpComplement

	opCount
)

var opSymbols = [opCount]string{
	OpNone:       "",
	OpAdd:        "+",
	OpSub:        "-",
	OpMul:        "*",
	OpDiv:        "/",
	OpMod:        "%",
	OpEq:         "==",
	OpNe:         "!=",
	OpLt:         "<",
	OpLe:         "<=",
	OpGt:         ">",
	OpGe:         ">=",
	OpAnd:        "&&",
	OpOr:         "||",
	OpIs:         "is",
	OpUnion:      "|",
	OpNeg:        "neg",
	OpNot:        "!",
	OpComplement: "~",
}

func (o Operator) String() string {
	if o < opCount {
		return opSymbols[o]
	}
	return "?"
}

// IsUnary reports whether o is a prefix operator.
func (o Operator) IsUnary() bool {
	return o == OpNeg || o == OpNot || o == OpComplement
}

// IsBinary reports whether o is an infix operator.
func (o Operator) IsBinary() bool {
	return o > OpNone && o < opCount && !o.IsUnary()
}

// OperatorBySymbol is the inverse of Operator.String.
func OperatorBySymbol(sym string) (Operator, bool) {
	if sym == "" {
		return OpNone, false
	}
	for o, s := range opSymbols {
		if s == sym {
			return Operator(o), true
		}
	}
	return OpNone, false
}
