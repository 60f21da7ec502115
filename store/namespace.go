package store

import (
	"errors"

	"github.com/chazu/sable/quote"
	"github.com/chazu/sable/runtime"
)

// NamespaceName is the global under which Define installs the namespace.
const NamespaceName = "codestore"

// Namespace builds the script object for s: put(quotation) returns the
// key, get(key) returns a quotation or void, has(key) and keys(kind?).
func Namespace(s *Store) *runtime.Object {
	ns := runtime.NewObject()
	def := func(name string, arity int, fn func(st *runtime.State, args []runtime.Value) runtime.Value) {
		slot := runtime.NewConstant()
		slot.Bind(runtime.NewBuiltin(name, arity, fn), nil)
		ns.Define(name, slot)
	}

	def("put", 1, func(st *runtime.State, args []runtime.Value) runtime.Value {
		q, ok := arg(args, 0).(*quote.Quotation)
		if !ok {
			runtime.Faultf(runtime.CodeTypeMismatch, "put: expected a quotation")
		}
		key, err := s.Put(q.Node())
		runtime.Check(err)
		return runtime.String(key)
	})

	def("get", 1, func(st *runtime.State, args []runtime.Value) runtime.Value {
		n, err := s.Get(keyArg("get", args))
		if errors.Is(err, ErrNotFound) {
			return runtime.Void
		}
		runtime.Check(err)
		return quote.Convert(n)
	})

	def("has", 1, func(st *runtime.State, args []runtime.Value) runtime.Value {
		ok, err := s.Has(keyArg("has", args))
		runtime.Check(err)
		return runtime.Boolean(ok)
	})

	def("keys", -1, func(st *runtime.State, args []runtime.Value) runtime.Value {
		var kind string
		if len(args) > 0 {
			kind = keyArg("keys", args)
		}
		keys, err := s.Keys(kind)
		runtime.Check(err)
		out := runtime.NewArray()
		for _, k := range keys {
			out.Append(runtime.String(k))
		}
		return out
	})

	return ns
}

// Define binds the namespace for s as a global of st.
func Define(st *runtime.State, s *Store) {
	st.DefineGlobal(NamespaceName, Namespace(s))
}

func arg(args []runtime.Value, i int) runtime.Value {
	if i < len(args) {
		return args[i]
	}
	return runtime.Void
}

func keyArg(fn string, args []runtime.Value) string {
	k, ok := arg(args, 0).(runtime.String)
	if !ok {
		runtime.Faultf(runtime.CodeTypeMismatch, "%s: expected a key string", fn)
	}
	return string(k)
}
