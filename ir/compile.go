package ir

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/sable/contract"
	"github.com/chazu/sable/runtime"
)

var log = commonlog.GetLogger("sable.ir")

// ---------------------------------------------------------------------------
// Closure compilation
// ---------------------------------------------------------------------------

type evalFn func(st *runtime.State, e *env) runtime.Value

// env is one activation record. Blocks without variables do not allocate
// one.
type env struct {
	slots  []*runtime.Slot
	parent *env
}

func (e *env) slot(depth, index int) *runtime.Slot {
	for ; depth > 0; depth-- {
		e = e.parent
	}
	return e.slots[index]
}

// snapshot copies the whole chain so that later writes by either side are
// invisible to the other. Values held by reference are still shared.
func (e *env) snapshot() *env {
	if e == nil {
		return nil
	}
	cp := &env{slots: make([]*runtime.Slot, len(e.slots)), parent: e.parent.snapshot()}
	for i, s := range e.slots {
		cp.slots[i] = s.Snapshot()
	}
	return cp
}

func newEnv(vars []*Var, parent *env) *env {
	e := &env{slots: make([]*runtime.Slot, len(vars)), parent: parent}
	for i, v := range vars {
		s := runtime.NewSlot(v.Constant)
		s.Visible = !v.Hidden
		e.slots[i] = s
	}
	return e
}

// jump is panicked by Goto and recovered by the Block placing its label.
type jump struct {
	label *Label
	value runtime.Value
}

// CompileError reports malformed IR.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string { return "ir: " + e.Message }

type compiler struct {
	frames [][]*Var
}

func (c *compiler) fail(format string, args ...any) {
	panic(&CompileError{Message: fmt.Sprintf(format, args...)})
}

func (c *compiler) push(vars []*Var) {
	c.frames = append(c.frames, vars)
}

func (c *compiler) pop() {
	c.frames = c.frames[:len(c.frames)-1]
}

func (c *compiler) resolve(v *Var) (depth, index int) {
	if v == nil {
		c.fail("nil variable")
	}
	for i := len(c.frames) - 1; i >= 0; i-- {
		for j, fv := range c.frames[i] {
			if fv == v {
				return len(c.frames) - 1 - i, j
			}
		}
	}
	c.fail("variable %s is not declared by an enclosing block", v.Name)
	return 0, 0
}

// Program is compiled IR ready to run.
type Program struct {
	root evalFn
}

// Compile turns an IR tree into a Program.
func Compile(n Node) (p *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*CompileError); ok {
				p, err = nil, ce
				return
			}
			panic(r)
		}
	}()
	c := &compiler{}
	return &Program{root: c.compile(n)}, nil
}

// Run executes the program. A thrown script error that escapes every
// handler is returned as a *runtime.Thrown.
func (p *Program) Run(st *runtime.State) (v runtime.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch x := r.(type) {
			case *runtime.Thrown:
				v, err = nil, x
			case *jump:
				v, err = nil, &CompileError{Message: fmt.Sprintf("jump to %s escaped its block", x.label.Name)}
			default:
				panic(r)
			}
		}
	}()
	return p.root(st, nil), nil
}

func (c *compiler) opt(n Node) evalFn {
	if n == nil {
		return nil
	}
	return c.compile(n)
}

func (c *compiler) list(ns []Node) []evalFn {
	out := make([]evalFn, len(ns))
	for i, n := range ns {
		out[i] = c.compile(n)
	}
	return out
}

func evalAll(fns []evalFn, st *runtime.State, e *env) []runtime.Value {
	out := make([]runtime.Value, len(fns))
	for i, f := range fns {
		out[i] = f(st, e)
	}
	return out
}

func contractOf(v runtime.Value) contract.Contract {
	cp, ok := v.(runtime.ContractProvider)
	if !ok {
		runtime.Faultf(runtime.CodeTypeMismatch, "%s is not a contract", runtime.ContractOf(v).Name())
	}
	return cp.AsContract()
}

func (c *compiler) compile(n Node) evalFn {
	switch n := n.(type) {
	case *Const:
		v := n.Value
		if v == nil {
			v = runtime.Void
		}
		return func(*runtime.State, *env) runtime.Value { return v }

	case *Pooled:
		pool, i := n.Pool, n.Index
		return func(*runtime.State, *env) runtime.Value {
			v := pool.Load(i)
			if v == nil {
				runtime.Faultf(runtime.CodeStructural, "interned literal %d read before the unit prologue", i)
			}
			return v
		}

	case *Populate:
		pool, i, v := n.Pool, n.Index, n.Value
		return func(*runtime.State, *env) runtime.Value {
			pool.Populate(i, v)
			return runtime.Void
		}

	case *Load:
		d, i := c.resolve(n.Var)
		return func(_ *runtime.State, e *env) runtime.Value {
			return e.slot(d, i).Get()
		}

	case *Store:
		d, i := c.resolve(n.Var)
		val := c.compile(n.Value)
		return func(st *runtime.State, e *env) runtime.Value {
			v := val(st, e)
			runtime.Check(e.slot(d, i).Set(v))
			return v
		}

	case *Bind:
		d, i := c.resolve(n.Var)
		val := c.opt(n.Value)
		con := c.opt(n.Contract)
		return func(st *runtime.State, e *env) runtime.Value {
			var cc contract.Contract
			if con != nil {
				cc = contractOf(con(st, e))
			}
			v := runtime.Void
			if val != nil {
				v = val(st, e)
			}
			runtime.Check(e.slot(d, i).Bind(v, cc))
			return v
		}

	case *Global:
		name := n.Name
		return func(st *runtime.State, _ *env) runtime.Value {
			v, ok := st.Global(name)
			if !ok {
				runtime.Faultf(runtime.CodeSlotNotFound, "%q is not defined", name)
			}
			return v
		}

	case *StoreGlobal:
		name := n.Name
		val := c.compile(n.Value)
		return func(st *runtime.State, e *env) runtime.Value {
			v := val(st, e)
			s, ok := st.Globals.Slot(name)
			if !ok {
				runtime.Faultf(runtime.CodeSlotNotFound, "%q is not defined", name)
			}
			runtime.Check(s.Set(v))
			return v
		}

	case *Block:
		return c.block(n)

	case *Mark:
		return func(*runtime.State, *env) runtime.Value { return runtime.Void }

	case *Goto:
		label := n.Label
		val := c.opt(n.Value)
		return func(st *runtime.State, e *env) runtime.Value {
			v := runtime.Void
			if val != nil {
				v = val(st, e)
			}
			panic(&jump{label: label, value: v})
		}

	case *If:
		test, then, els := c.compile(n.Test), c.compile(n.Then), c.opt(n.Else)
		return func(st *runtime.State, e *env) runtime.Value {
			if runtime.Truthy(test(st, e)) {
				return then(st, e)
			}
			if els != nil {
				return els(st, e)
			}
			return runtime.Void
		}

	case *AndAlso:
		l, r := c.compile(n.Left), c.compile(n.Right)
		return func(st *runtime.State, e *env) runtime.Value {
			return runtime.Boolean(runtime.Truthy(l(st, e)) && runtime.Truthy(r(st, e)))
		}

	case *OrElse:
		l, r := c.compile(n.Left), c.compile(n.Right)
		return func(st *runtime.State, e *env) runtime.Value {
			return runtime.Boolean(runtime.Truthy(l(st, e)) || runtime.Truthy(r(st, e)))
		}

	case *Binary:
		op := n.Op
		l, r := c.compile(n.Left), c.compile(n.Right)
		return func(st *runtime.State, e *env) runtime.Value {
			lv := l(st, e)
			return runtime.Binary(op, lv, r(st, e))
		}

	case *Unary:
		op := n.Op
		operand := c.compile(n.Operand)
		return func(st *runtime.State, e *env) runtime.Value {
			return runtime.Unary(op, operand(st, e))
		}

	case *Call:
		target := c.compile(n.Target)
		args := c.list(n.Args)
		return func(st *runtime.State, e *env) runtime.Value {
			f := target(st, e)
			return runtime.Call(st, f, evalAll(args, st, e))
		}

	case *Index:
		target, idx := c.compile(n.Target), c.compile(n.Index)
		return func(st *runtime.State, e *env) runtime.Value {
			t := target(st, e)
			return runtime.Index(t, idx(st, e))
		}

	case *SetIndex:
		target, idx, val := c.compile(n.Target), c.compile(n.Index), c.compile(n.Value)
		return func(st *runtime.State, e *env) runtime.Value {
			t := target(st, e)
			i := idx(st, e)
			return runtime.SetIndex(t, i, val(st, e))
		}

	case *Member:
		target, name := c.compile(n.Target), n.Name
		return func(st *runtime.State, e *env) runtime.Value {
			return runtime.Member(target(st, e), name)
		}

	case *SetMember:
		target, name, val := c.compile(n.Target), n.Name, c.compile(n.Value)
		return func(st *runtime.State, e *env) runtime.Value {
			t := target(st, e)
			return runtime.SetMember(t, name, val(st, e))
		}

	case *MakeArray:
		elems := c.list(n.Elements)
		return func(st *runtime.State, e *env) runtime.Value {
			return runtime.NewArray(evalAll(elems, st, e)...)
		}

	case *MakeObject:
		type field struct {
			name     string
			val      evalFn
			constant bool
		}
		fields := make([]field, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = field{name: f.Name, val: c.compile(f.Value), constant: f.Constant}
		}
		return func(st *runtime.State, e *env) runtime.Value {
			obj := runtime.NewObject()
			for _, f := range fields {
				s := runtime.NewSlot(f.constant)
				runtime.Check(s.Bind(f.val(st, e), nil))
				obj.Define(f.name, s)
			}
			return obj
		}

	case *Lambda:
		return c.lambda(n)

	case *Try:
		return c.try(n)

	case *Throw:
		val := c.compile(n.Value)
		return func(st *runtime.State, e *env) runtime.Value {
			runtime.Throw(val(st, e))
			return nil
		}

	case *Fork:
		body := c.compile(n.Body)
		return func(st *runtime.State, e *env) runtime.Value {
			snap := e.snapshot()
			return st.Fork(func(fst *runtime.State) runtime.Value {
				return body(fst, snap)
			})
		}

	case *Await:
		target, via := c.compile(n.Target), c.opt(n.Synchronizer)
		return func(st *runtime.State, e *env) runtime.Value {
			t := target(st, e)
			var s runtime.Value
			if via != nil {
				s = via(st, e)
			}
			return st.Await(t, s)
		}

	case *Select:
		return c.selection(n)

	case *Accumulate:
		return c.accumulate(n)

	case *Iterate:
		src := c.compile(n.Source)
		return func(st *runtime.State, e *env) runtime.Value {
			return newIterator(src(st, e))
		}

	case *Next:
		di, ii := c.resolve(n.Iter)
		dv, iv := c.resolve(n.Into)
		return func(st *runtime.State, e *env) runtime.Value {
			it, ok := e.slot(di, ii).Get().(*iterator)
			if !ok {
				runtime.Faultf(runtime.CodeStructural, "next on a non-iterator")
			}
			v, more := it.next()
			if !more {
				return runtime.Boolean(false)
			}
			runtime.Check(e.slot(dv, iv).Set(v))
			return runtime.Boolean(true)
		}

	case *Quote:
		node := n.Node
		return func(st *runtime.State, _ *env) runtime.Value {
			return st.Quote(node)
		}

	case *Debug:
		span := n.Span
		return func(st *runtime.State, _ *env) runtime.Value {
			st.Locate(span)
			return runtime.Void
		}

	case nil:
		c.fail("nil node")
	}
	c.fail("unknown node %T", n)
	return nil
}

// transparent nodes leave a Block's running value untouched.
func transparent(n Node) bool {
	switch n.(type) {
	case *Mark, *Debug, *Populate:
		return true
	}
	return false
}

func (c *compiler) block(n *Block) evalFn {
	vars := n.Vars
	if len(vars) > 0 {
		c.push(vars)
		defer c.pop()
	}
	body := c.list(n.Body)
	skip := make([]bool, len(n.Body))
	marks := make(map[*Label]int)
	for i, s := range n.Body {
		skip[i] = transparent(s)
		if m, ok := s.(*Mark); ok {
			if _, dup := marks[m.Label]; dup {
				c.fail("label %s placed twice", m.Label.Name)
			}
			marks[m.Label] = i
		}
	}

	enter := func(e *env) *env {
		if len(vars) == 0 {
			return e
		}
		return newEnv(vars, e)
	}

	if len(marks) == 0 {
		return func(st *runtime.State, e *env) runtime.Value {
			inner := enter(e)
			last := runtime.Void
			for i, f := range body {
				v := f(st, inner)
				if !skip[i] {
					last = v
				}
			}
			return last
		}
	}

	return func(st *runtime.State, e *env) runtime.Value {
		inner := enter(e)
		last := runtime.Void
		for pc := 0; pc < len(body); {
			pc = runFrom(st, inner, body, skip, marks, pc, &last)
		}
		return last
	}
}

// runFrom executes body[start:] and returns len(body), or the index after
// the Mark a jump landed on.
func runFrom(st *runtime.State, e *env, body []evalFn, skip []bool, marks map[*Label]int, start int, last *runtime.Value) (resume int) {
	defer func() {
		if r := recover(); r != nil {
			j, ok := r.(*jump)
			if !ok {
				panic(r)
			}
			idx, mine := marks[j.label]
			if !mine {
				panic(r)
			}
			*last = j.value
			resume = idx + 1
		}
	}()
	for i := start; i < len(body); i++ {
		v := body[i](st, e)
		if !skip[i] {
			*last = v
		}
	}
	return len(body)
}

func (c *compiler) lambda(n *Lambda) evalFn {
	name := n.Name
	vars := make([]*Var, len(n.Params))
	contracts := make([]evalFn, len(n.Params))
	for i, p := range n.Params {
		vars[i] = p.Var
		contracts[i] = c.opt(p.Contract)
	}
	result := c.opt(n.Result)

	c.push(vars)
	defaults := make([]evalFn, len(n.Params))
	for i, p := range n.Params {
		defaults[i] = c.opt(p.Default)
	}
	body := c.compile(n.Body)
	c.pop()

	return func(st *runtime.State, e *env) runtime.Value {
		pcs := make([]contract.Contract, len(contracts))
		for i, cf := range contracts {
			if cf != nil {
				pcs[i] = contractOf(cf(st, e))
			}
		}
		var rc contract.Contract
		if result != nil {
			rc = contractOf(result(st, e))
		}

		fn := &runtime.Function{Name: name, Arity: len(vars)}
		fn.Fn = func(cst *runtime.State, args []runtime.Value) runtime.Value {
			if len(args) > len(vars) {
				runtime.Faultf(runtime.CodeTypeMismatch, "%s expects at most %d arguments, got %d", fn, len(vars), len(args))
			}
			inner := newEnv(vars, e)
			for i := range vars {
				v := runtime.Void
				switch {
				case i < len(args):
					v = args[i]
				case defaults[i] != nil:
					v = defaults[i](cst, inner)
				}
				runtime.Check(inner.slots[i].Bind(v, pcs[i]))
			}
			res := body(cst, inner)
			if rc != nil && !contract.Is(runtime.ContractOf(res), rc) {
				runtime.Faultf(runtime.CodeContractMismatch, "%s returned %s, expected %s", fn, runtime.ContractOf(res).Name(), rc.Name())
			}
			return res
		}
		return fn
	}
}

type catchFn func(st *runtime.State, e *env, t *runtime.Thrown) (runtime.Value, bool)

func (c *compiler) catch(k Catch) catchFn {
	con := c.opt(k.Contract)
	var vars []*Var
	if k.Var != nil {
		vars = []*Var{k.Var}
		c.push(vars)
	}
	filter := c.opt(k.Filter)
	body := c.compile(k.Body)
	if k.Var != nil {
		c.pop()
	}
	return func(st *runtime.State, e *env, t *runtime.Thrown) (runtime.Value, bool) {
		if con != nil && !contract.Is(runtime.ContractOf(t.Value), contractOf(con(st, e))) {
			return nil, false
		}
		inner := e
		if vars != nil {
			inner = newEnv(vars, e)
			runtime.Check(inner.slots[0].Bind(t.Value, nil))
		}
		if filter != nil && !runtime.Truthy(filter(st, inner)) {
			return nil, false
		}
		return body(st, inner), true
	}
}

func (c *compiler) try(n *Try) evalFn {
	body := c.compile(n.Body)
	catches := make([]catchFn, len(n.Catches))
	for i, k := range n.Catches {
		catches[i] = c.catch(k)
	}
	fin := c.opt(n.Finally)

	guarded := body
	if len(catches) > 0 {
		guarded = func(st *runtime.State, e *env) (res runtime.Value) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				t, ok := r.(*runtime.Thrown)
				if !ok {
					panic(r)
				}
				for _, k := range catches {
					if v, matched := k(st, e, t); matched {
						res = v
						return
					}
				}
				panic(r)
			}()
			return body(st, e)
		}
	}
	if fin == nil {
		return guarded
	}
	return func(st *runtime.State, e *env) runtime.Value {
		defer func() {
			r := recover()
			fin(st, e)
			if r != nil {
				panic(r)
			}
		}()
		return guarded(st, e)
	}
}

func (c *compiler) selection(n *Select) evalFn {
	subject := c.compile(n.Subject)
	comparer := c.opt(n.Comparer)
	type arm struct {
		values []evalFn
		body   evalFn
	}
	arms := make([]arm, len(n.Cases))
	for i, cs := range n.Cases {
		arms[i] = arm{values: c.list(cs.Values), body: c.compile(cs.Body)}
	}
	def := c.opt(n.Default)

	return func(st *runtime.State, e *env) runtime.Value {
		subj := subject(st, e)
		var cmp runtime.Value
		if comparer != nil {
			cmp = comparer(st, e)
		}
		for _, a := range arms {
			for _, vf := range a.values {
				if matches(st, cmp, subj, vf(st, e)) {
					return a.body(st, e)
				}
			}
		}
		if def != nil {
			return def(st, e)
		}
		return runtime.Void
	}
}

func matches(st *runtime.State, cmp, subj, cand runtime.Value) bool {
	if cmp != nil {
		return runtime.Truthy(runtime.Call(st, cmp, []runtime.Value{subj, cand}))
	}
	if cp, ok := cand.(runtime.ContractProvider); ok {
		if contract.Is(runtime.ContractOf(subj), cp.AsContract()) {
			return true
		}
	}
	return runtime.Equal(subj, cand)
}

func (c *compiler) accumulate(n *Accumulate) evalFn {
	d, i := c.resolve(n.Var)
	val := c.compile(n.Value)
	custom := c.opt(n.Custom)
	op, seq := n.Op, n.Sequence
	return func(st *runtime.State, e *env) runtime.Value {
		v := val(st, e)
		s := e.slot(d, i)
		if seq {
			arr, ok := s.Get().(*runtime.Array)
			if !ok {
				runtime.Faultf(runtime.CodeStructural, "sequence accumulator holds %s", runtime.ContractOf(s.Get()).Name())
			}
			if v == nil {
				v = runtime.Void
			}
			arr.Append(v)
			return runtime.Void
		}
		// A grouped loop folds values only; void iterations leave it as is.
		if runtime.IsVoid(v) {
			return runtime.Void
		}
		cur := s.Get()
		if runtime.IsVoid(cur) {
			runtime.Check(s.Set(v))
			return runtime.Void
		}
		var next runtime.Value
		if custom != nil {
			next = runtime.Call(st, custom(st, e), []runtime.Value{cur, v})
		} else {
			next = runtime.Binary(op, cur, v)
		}
		runtime.Check(s.Set(next))
		return runtime.Void
	}
}
