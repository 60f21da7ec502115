// Package scope implements the lexical scope tree used while lowering.
//
// Scopes live in an arena and refer to their parent by index. The tree is
// used as a stack: the lowerer pushes a scope when it descends into a
// construct and pops it on the way out. Each scope either owns its control
// labels and its state variable or shares them with its parent; Module,
// Function and Fork scopes always own both and are therefore boundaries for
// non-local control flow.
package scope

import (
	"errors"
	"fmt"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/tliron/commonlog"

	"github.com/chazu/sable/contract"
	"github.com/chazu/sable/ir"
)

var log = commonlog.GetLogger("sable.scope")

// ErrDuplicateIdentifier is returned when a name is declared twice in one
// scope.
var ErrDuplicateIdentifier = errors.New("duplicate identifier")

// ID indexes a scope in its tree.
type ID int

// None is the parent of the root.
const None ID = -1

// Kind classifies the construct that opened a scope.
type Kind uint8

const (
	Module Kind = iota
	Function
	Loop
	Branch
	Handler
	Finally
	Object
	Fork
	Transient
)

var kindNames = [...]string{
	Module:    "module",
	Function:  "function",
	Loop:      "loop",
	Branch:    "branch",
	Handler:   "handler",
	Finally:   "finally",
	Object:    "object",
	Fork:      "fork",
	Transient: "transient",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Boundary reports whether scopes of this kind always own their labels and
// state.
func (k Kind) Boundary() bool {
	return k == Module || k == Function || k == Fork
}

// Inheritance says what a scope shares with its parent.
type Inheritance uint8

const (
	OwnsAll Inheritance = iota
	InheritsState
	InheritsLabels
	InheritsBoth
)

func (i Inheritance) state() bool  { return i == InheritsState || i == InheritsBoth }
func (i Inheritance) labels() bool { return i == InheritsLabels || i == InheritsBoth }

// Attrs are the attributes of a new declaration.
type Attrs struct {
	Parameter bool
	Constant  bool
	Contract  contract.Contract
}

// Declaration is one named binding. Var is the IR variable it lowers to.
type Declaration struct {
	Name      string
	Parameter bool
	Constant  bool
	Contract  contract.Contract
	Var       *ir.Var
}

// Labels are the control-flow targets of a scope. Continue is where a
// continue statement jumps; for most constructs it equals Entry.
type Labels struct {
	Entry    *ir.Label
	Continue *ir.Label
	Exit     *ir.Label
}

type node struct {
	kind        Kind
	inheritance Inheritance
	parent      ID
	symbols     *linkedhashmap.Map // name -> *Declaration
	labels      *Labels
	state       *ir.Var
}

// Tree is a scope tree rooted at a Module scope.
type Tree struct {
	nodes []node
}

// NewTree returns a tree holding only the root Module scope.
func NewTree() *Tree {
	t := &Tree{}
	t.add(Module, OwnsAll, None)
	return t
}

func (t *Tree) add(kind Kind, inh Inheritance, parent ID) ID {
	if kind.Boundary() {
		inh = OwnsAll
	}
	n := node{kind: kind, inheritance: inh, parent: parent, symbols: linkedhashmap.New()}
	if !inh.labels() {
		n.labels = &Labels{Entry: ir.NewLabel(kind.String() + ".entry"), Exit: ir.NewLabel(kind.String() + ".exit")}
		n.labels.Continue = n.labels.Entry
	}
	if !inh.state() {
		n.state = ir.NewTemp(kind.String() + ".state")
	}
	t.nodes = append(t.nodes, n)
	return ID(len(t.nodes) - 1)
}

// Push opens a child of the current scope and makes it current.
func (t *Tree) Push(kind Kind, inh Inheritance) ID {
	id := t.add(kind, inh, t.Current())
	log.Debugf("push %s scope %d (depth %d)", kind, id, len(t.nodes))
	return id
}

// Pop closes the current scope. Popping the root panics.
func (t *Tree) Pop() {
	if len(t.nodes) == 1 {
		panic("scope: attempt to pop the root scope")
	}
	id := t.Current()
	log.Debugf("pop %s scope %d", t.nodes[id].kind, id)
	t.nodes = t.nodes[:id]
}

// Current returns the innermost open scope.
func (t *Tree) Current() ID {
	return ID(len(t.nodes) - 1)
}

// Root returns the module scope.
func (t *Tree) Root() ID { return 0 }

// Kind returns the kind of scope id.
func (t *Tree) Kind(id ID) Kind { return t.nodes[id].kind }

// Inheritance returns what scope id shares with its parent.
func (t *Tree) Inheritance(id ID) Inheritance { return t.nodes[id].inheritance }

// Parent returns the parent of id, or None for the root.
func (t *Tree) Parent(id ID) ID { return t.nodes[id].parent }

// Path returns the open scopes from id outwards.
func (t *Tree) Path(id ID) []ID {
	var out []ID
	for ; id != None; id = t.nodes[id].parent {
		out = append(out, id)
	}
	return out
}

// Declare adds name to the current scope. A second declaration of the same
// name in the same scope fails and leaves the table unchanged.
func (t *Tree) Declare(name string, attrs Attrs) (*Declaration, error) {
	n := &t.nodes[t.Current()]
	if _, exists := n.symbols.Get(name); exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, name)
	}
	d := &Declaration{
		Name:      name,
		Parameter: attrs.Parameter,
		Constant:  attrs.Constant,
		Contract:  attrs.Contract,
		Var:       ir.NewVar(name, attrs.Constant),
	}
	n.symbols.Put(name, d)
	return d, nil
}

// Lookup finds name in scope id only.
func (t *Tree) Lookup(id ID, name string) (*Declaration, bool) {
	v, ok := t.nodes[id].symbols.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*Declaration), true
}

// Resolve finds name from the current scope outwards and reports the scope
// that declares it.
func (t *Tree) Resolve(name string) (*Declaration, ID, bool) {
	for _, id := range t.Path(t.Current()) {
		if d, ok := t.Lookup(id, name); ok {
			return d, id, true
		}
	}
	return nil, None, false
}

// Symbols returns the declarations of scope id in declaration order.
func (t *Tree) Symbols(id ID) []*Declaration {
	vals := t.nodes[id].symbols.Values()
	out := make([]*Declaration, len(vals))
	for i, v := range vals {
		out[i] = v.(*Declaration)
	}
	return out
}

// Vars returns the IR variables a block for scope id allocates, in
// declaration order. Parameters are bound by their lambda or catch and are
// left out.
func (t *Tree) Vars(id ID) []*ir.Var {
	var out []*ir.Var
	for _, d := range t.Symbols(id) {
		if !d.Parameter {
			out = append(out, d.Var)
		}
	}
	return out
}

// LabelOwner returns the scope whose labels id uses.
func (t *Tree) LabelOwner(id ID) ID {
	for t.nodes[id].labels == nil {
		id = t.nodes[id].parent
	}
	return id
}

// StateOwner returns the scope whose state variable id uses.
func (t *Tree) StateOwner(id ID) ID {
	for t.nodes[id].state == nil {
		id = t.nodes[id].parent
	}
	return id
}

// Labels returns the labels id uses, its own or its nearest owner's.
func (t *Tree) Labels(id ID) *Labels {
	return t.nodes[t.LabelOwner(id)].labels
}

// State returns the state variable id uses, its own or its nearest owner's.
func (t *Tree) State(id ID) *ir.Var {
	return t.nodes[t.StateOwner(id)].state
}

// Enclosing returns the nearest scope from id outwards whose kind is one of
// kinds. It stops at the first scope whose kind is in stop, returning the
// stopping scope and false.
func (t *Tree) Enclosing(id ID, kinds, stop []Kind) (ID, bool) {
	for _, id := range t.Path(id) {
		k := t.nodes[id].kind
		if hasKind(kinds, k) {
			return id, true
		}
		if hasKind(stop, k) {
			return id, false
		}
	}
	return None, false
}

func hasKind(kinds []Kind, k Kind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}
