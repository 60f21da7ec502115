// Package runtime holds the executable side of the core: values, slots,
// operators, futures and the execution context that owns everything a
// compiled unit needs while it runs.
package runtime

import (
	"context"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/contract"
)

var log = commonlog.GetLogger("sable.runtime")

// Debugger receives source locations from units compiled with debug info.
type Debugger interface {
	OnLocation(st *State, span ast.Span)
}

// Options configures a Runtime.
type Options struct {
	// Workers bounds parallel fork bodies. Ignored when Executor is set.
	Workers int64
	// AwaitTimeout bounds every await; zero waits until the context ends.
	AwaitTimeout time.Duration
	Executor     Executor
	Debugger     Debugger
}

// Runtime is the execution context shared by every unit run against it. It
// replaces process-wide singletons: several runtimes can coexist.
type Runtime struct {
	Executor     Executor
	Contracts    *contract.Registry
	Debugger     Debugger
	AwaitTimeout time.Duration

	// Quoter turns a node into a quotation value. The quote package
	// installs it; without it quoting faults.
	Quoter func(ast.Node) Value
}

// New returns a runtime configured by opts.
func New(opts Options) *Runtime {
	exec := opts.Executor
	if exec == nil {
		exec = NewPoolExecutor(opts.Workers)
	}
	return &Runtime{
		Executor:     exec,
		Contracts:    contract.NewRegistry(),
		Debugger:     opts.Debugger,
		AwaitTimeout: opts.AwaitTimeout,
	}
}

// NewState starts an execution against rt.
func (rt *Runtime) NewState(ctx context.Context) *State {
	if ctx == nil {
		ctx = context.Background()
	}
	return &State{Context: ctx, Runtime: rt, Globals: NewObject()}
}

// State is one execution: its context, its globals and its runtime. It is
// passed explicitly to everything that runs script code.
type State struct {
	Context context.Context
	Runtime *Runtime
	Globals *Object
}

// WithContext returns a state sharing globals and runtime but running under
// ctx.
func (st *State) WithContext(ctx context.Context) *State {
	cp := *st
	cp.Context = ctx
	return &cp
}

// Global returns the value of a global.
func (st *State) Global(name string) (Value, bool) {
	return st.Globals.GetMember(name)
}

// DefineGlobal binds a global variable.
func (st *State) DefineGlobal(name string, v Value) {
	st.Globals.Define(name, NewVariable(v))
}

// Fork submits task to the runtime's executor.
func (st *State) Fork(task func(st *State) Value) *Future {
	fut := st.Runtime.Executor.Submit(st.Context, func(ctx context.Context) Value {
		return task(st.WithContext(ctx))
	})
	log.Debugf("forked %s", fut.ID)
	return fut
}

// Await resolves v. Futures are waited for, through via when it is not
// nil; any other value is returned as is. The wait honours the state's
// context and the runtime's await timeout.
func (st *State) Await(v Value, via Value) Value {
	fut, ok := v.(*Future)
	if !ok {
		return v
	}
	ctx := st.Context
	if st.Runtime.AwaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.Runtime.AwaitTimeout)
		defer cancel()
	}

	var (
		res Value
		err error
	)
	switch s := via.(type) {
	case nil, voidValue:
		res, err = blocking(ctx, fut, func() (Value, error) { return fut.Await(ctx) })
	case Synchronizer:
		res, err = blocking(ctx, fut, func() (Value, error) { return s.Await(ctx, fut) })
	case Callable:
		// A script synchronizer receives the future and produces the result.
		return s.Call(st, []Value{fut})
	default:
		Faultf(CodeTypeMismatch, "%s is not a synchronizer", ContractOf(via).Name())
	}
	Check(err)
	return res
}

// Quote converts n into a quotation value using the installed quoter.
func (st *State) Quote(n ast.Node) Value {
	if st.Runtime.Quoter == nil {
		Faultf(CodeStructural, "no quoter installed")
	}
	return st.Runtime.Quoter(n)
}

// Locate reports a source location to the attached debugger, if any.
func (st *State) Locate(span ast.Span) {
	if d := st.Runtime.Debugger; d != nil {
		d.OnLocation(st, span)
	}
}
