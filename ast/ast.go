package ast

// ---------------------------------------------------------------------------
// AST: the tree handed to the core by the host parser
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes. The set of nodes is
// closed: Kind identifies the concrete type and every switch over Kind in
// this module is exhaustive.
type Node interface {
	Kind() Kind
	Span() Span
	node() // marker method
}

// Parser turns source text into statement nodes. The core does not ship a
// grammar; hosts supply one.
type Parser interface {
	Parse(source string) ([]Node, error)
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// Integer represents an integer literal. Interned literals are pooled once
// per compilation unit.
type Integer struct {
	SpanVal  Span
	Value    int64
	Interned bool
}

func (n *Integer) Kind() Kind { return KindInteger }
func (n *Integer) Span() Span { return n.SpanVal }
func (n *Integer) node()      {}

// Real represents a floating-point literal.
type Real struct {
	SpanVal  Span
	Value    float64
	Interned bool
}

func (n *Real) Kind() Kind { return KindReal }
func (n *Real) Span() Span { return n.SpanVal }
func (n *Real) node()      {}

// String represents a string literal.
type String struct {
	SpanVal  Span
	Value    string
	Interned bool
}

func (n *String) Kind() Kind { return KindString }
func (n *String) Span() Span { return n.SpanVal }
func (n *String) node()      {}

// Boolean represents true or false.
type Boolean struct {
	SpanVal Span
	Value   bool
}

func (n *Boolean) Kind() Kind { return KindBoolean }
func (n *Boolean) Span() Span { return n.SpanVal }
func (n *Boolean) node()      {}

// Void represents the absence of a value.
type Void struct {
	SpanVal Span
}

func (n *Void) Kind() Kind { return KindVoid }
func (n *Void) Span() Span { return n.SpanVal }
func (n *Void) node()      {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Name represents a variable reference.
type Name struct {
	SpanVal Span
	Name    string
}

func (n *Name) Kind() Kind { return KindName }
func (n *Name) Span() Span { return n.SpanVal }
func (n *Name) node()      {}

// Binary represents left op right.
type Binary struct {
	SpanVal Span
	Op      Operator
	Left    Node
	Right   Node
}

func (n *Binary) Kind() Kind { return KindBinary }
func (n *Binary) Span() Span { return n.SpanVal }
func (n *Binary) node()      {}

// Unary represents op operand.
type Unary struct {
	SpanVal Span
	Op      Operator
	Operand Node
}

func (n *Unary) Kind() Kind { return KindUnary }
func (n *Unary) Span() Span { return n.SpanVal }
func (n *Unary) node()      {}

// Assign stores Value into Target, which is a Name, Member or Indexer.
type Assign struct {
	SpanVal Span
	Target  Node
	Value   Node
}

func (n *Assign) Kind() Kind { return KindAssign }
func (n *Assign) Span() Span { return n.SpanVal }
func (n *Assign) node()      {}

// Array represents [e1, e2, ...].
type Array struct {
	SpanVal  Span
	Elements []Node
}

func (n *Array) Kind() Kind { return KindArray }
func (n *Array) Span() Span { return n.SpanVal }
func (n *Array) node()      {}

// Object is a composite literal whose members are declarations evaluated in
// their own scope.
type Object struct {
	SpanVal Span
	Members []*Declaration
}

func (n *Object) Kind() Kind { return KindObject }
func (n *Object) Span() Span { return n.SpanVal }
func (n *Object) node()      {}

// Member represents target.name.
type Member struct {
	SpanVal Span
	Target  Node
	Name    string
}

func (n *Member) Kind() Kind { return KindMember }
func (n *Member) Span() Span { return n.SpanVal }
func (n *Member) node()      {}

// Condition represents if test then else. Else may be nil.
type Condition struct {
	SpanVal Span
	Test    Node
	Then    Node
	Else    Node
}

func (n *Condition) Kind() Kind { return KindCondition }
func (n *Condition) Span() Span { return n.SpanVal }
func (n *Condition) node()      {}

// Invoke represents target(args...).
type Invoke struct {
	SpanVal Span
	Target  Node
	Args    []Node
}

func (n *Invoke) Kind() Kind { return KindInvoke }
func (n *Invoke) Span() Span { return n.SpanVal }
func (n *Invoke) node()      {}

// Indexer represents target[index].
type Indexer struct {
	SpanVal Span
	Target  Node
	Index   Node
}

func (n *Indexer) Kind() Kind { return KindIndexer }
func (n *Indexer) Span() Span { return n.SpanVal }
func (n *Indexer) node()      {}

// Complex is a block expression; its value is the value of the last
// statement.
type Complex struct {
	SpanVal Span
	Body    []Node
}

func (n *Complex) Kind() Kind { return KindComplex }
func (n *Complex) Span() Span { return n.SpanVal }
func (n *Complex) node()      {}

// ContractRef names a contract, e.g. integer or expression.
type ContractRef struct {
	SpanVal Span
	Name    string
}

func (n *ContractRef) Kind() Kind { return KindContractRef }
func (n *ContractRef) Span() Span { return n.SpanVal }
func (n *ContractRef) node()      {}

// Placeholder is the #id hole filled in by expansion.
type Placeholder struct {
	SpanVal Span
	ID      int64
}

func (n *Placeholder) Kind() Kind { return KindPlaceholder }
func (n *Placeholder) Span() Span { return n.SpanVal }
func (n *Placeholder) node()      {}

// Quote evaluates to a quotation of Body instead of evaluating it.
type Quote struct {
	SpanVal Span
	Body    Node
}

func (n *Quote) Kind() Kind { return KindQuote }
func (n *Quote) Span() Span { return n.SpanVal }
func (n *Quote) node()      {}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

// Loop results are folded with Group (an operator) or Custom (a callable
// expression) when either is set, collected into an array otherwise, and
// dropped entirely when Suppress is set.

// For represents for (init; test; step) body. Init, Test and Step may be nil.
type For struct {
	SpanVal  Span
	Init     Node
	Test     Node
	Step     Node
	Body     Node
	Group    Operator
	Custom   Node
	Suppress bool
}

func (n *For) Kind() Kind { return KindFor }
func (n *For) Span() Span { return n.SpanVal }
func (n *For) node()      {}

// ForEach represents for variable in source body.
type ForEach struct {
	SpanVal  Span
	Variable string
	Source   Node
	Body     Node
	Group    Operator
	Custom   Node
	Suppress bool
}

func (n *ForEach) Kind() Kind { return KindForEach }
func (n *ForEach) Span() Span { return n.SpanVal }
func (n *ForEach) node()      {}

// While represents while test body, or do body while test when PostTest.
type While struct {
	SpanVal  Span
	Test     Node
	Body     Node
	PostTest bool
	Group    Operator
	Custom   Node
	Suppress bool
}

func (n *While) Kind() Kind { return KindWhile }
func (n *While) Span() Span { return n.SpanVal }
func (n *While) node()      {}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// Parameter is one formal parameter. Contract and Default may be nil.
type Parameter struct {
	SpanVal  Span
	Name     string
	Contract Node
	Default  Node
}

func (n *Parameter) Kind() Kind { return KindParameter }
func (n *Parameter) Span() Span { return n.SpanVal }
func (n *Parameter) node()      {}

// Signature is a parameter list plus an optional result contract.
type Signature struct {
	SpanVal Span
	Params  []*Parameter
	Result  Node
}

func (n *Signature) Kind() Kind { return KindSignature }
func (n *Signature) Span() Span { return n.SpanVal }
func (n *Signature) node()      {}

// Action is a function literal. Signature is never nil; Name may be empty.
type Action struct {
	SpanVal   Span
	Name      string
	Signature *Signature
	Body      Node
}

func (n *Action) Kind() Kind { return KindAction }
func (n *Action) Span() Span { return n.SpanVal }
func (n *Action) node()      {}

// Return represents return [value].
type Return struct {
	SpanVal Span
	Value   Node
}

func (n *Return) Kind() Kind { return KindReturn }
func (n *Return) Span() Span { return n.SpanVal }
func (n *Return) node()      {}

// Break represents break [args...].
type Break struct {
	SpanVal Span
	Args    []Node
}

func (n *Break) Kind() Kind { return KindBreak }
func (n *Break) Span() Span { return n.SpanVal }
func (n *Break) node()      {}

// Continue represents continue [args...].
type Continue struct {
	SpanVal Span
	Args    []Node
}

func (n *Continue) Kind() Kind { return KindContinue }
func (n *Continue) Span() Span { return n.SpanVal }
func (n *Continue) node()      {}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// Fault throws Value.
type Fault struct {
	SpanVal Span
	Value   Node
}

func (n *Fault) Kind() Kind { return KindFault }
func (n *Fault) Span() Span { return n.SpanVal }
func (n *Fault) node()      {}

// Trap is one catch clause. Variable names the caught error (may be empty).
// A trap with neither Contract nor Filter matches every error.
type Trap struct {
	SpanVal  Span
	Variable string
	Contract Node
	Filter   Node
	Body     Node
}

func (n *Trap) Kind() Kind { return KindTrap }
func (n *Trap) Span() Span { return n.SpanVal }
func (n *Trap) node()      {}

// Try represents try body trap... finally. Finally may be nil.
type Try struct {
	SpanVal Span
	Body    Node
	Traps   []*Trap
	Finally Node
}

func (n *Try) Kind() Kind { return KindTry }
func (n *Try) Span() Span { return n.SpanVal }
func (n *Try) node()      {}

// ---------------------------------------------------------------------------
// Selection
// ---------------------------------------------------------------------------

// Case is one arm of a selection. An empty Values list is the default arm.
type Case struct {
	SpanVal Span
	Values  []Node
	Body    Node
}

func (n *Case) Kind() Kind { return KindCase }
func (n *Case) Span() Span { return n.SpanVal }
func (n *Case) node()      {}

// Selection dispatches Subject to the first matching case. Comparer, when
// present, is a callable (subject, candidate) -> boolean.
type Selection struct {
	SpanVal  Span
	Subject  Node
	Cases    []*Case
	Comparer Node
}

func (n *Selection) Kind() Kind { return KindSelection }
func (n *Selection) Span() Span { return n.SpanVal }
func (n *Selection) node()      {}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

// Fork runs Body as an independent task and evaluates to its future.
type Fork struct {
	SpanVal Span
	Body    Node
}

func (n *Fork) Kind() Kind { return KindFork }
func (n *Fork) Span() Span { return n.SpanVal }
func (n *Fork) node()      {}

// Await blocks until Target resolves. Synchronizer may be nil.
type Await struct {
	SpanVal      Span
	Target       Node
	Synchronizer Node
}

func (n *Await) Kind() Kind { return KindAwait }
func (n *Await) Span() Span { return n.SpanVal }
func (n *Await) node()      {}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// Declaration represents var/const name [: contract] [= value].
type Declaration struct {
	SpanVal  Span
	Name     string
	Const    bool
	Contract Node
	Value    Node
}

func (n *Declaration) Kind() Kind { return KindDeclaration }
func (n *Declaration) Span() Span { return n.SpanVal }
func (n *Declaration) node()      {}
