package quote

import (
	"encoding/hex"

	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/ast/hash"
	"github.com/chazu/sable/runtime"
)

// NamespaceName is the global under which Define installs the namespace.
const NamespaceName = "expression"

// Namespace builds the object scripts use to work with code: every factory
// under its kind name plus the tree operations. parse needs a parser; it
// faults when p is nil.
func Namespace(p ast.Parser) *runtime.Object {
	ns := runtime.NewObject()
	def := func(name string, v runtime.Value) {
		s := runtime.NewConstant()
		s.Bind(v, nil)
		ns.Define(name, s)
	}
	for _, f := range Factories() {
		def(f.Name(), f)
	}

	def("parse", runtime.NewBuiltin("parse", 1, func(st *runtime.State, args []runtime.Value) runtime.Value {
		src, ok := arg(args, 0).(runtime.String)
		if !ok {
			runtime.Faultf(runtime.CodeTypeMismatch, "parse: expected source text")
		}
		if p == nil {
			runtime.Faultf(runtime.CodeStructural, "parse: no parser configured")
		}
		stmts, err := p.Parse(string(src))
		runtime.Check(err)
		if len(stmts) == 1 {
			return Convert(stmts[0])
		}
		return Convert(&ast.Complex{Body: stmts})
	}))

	def("compile", runtime.NewBuiltin("compile", 1, func(st *runtime.State, args []runtime.Value) runtime.Value {
		v, err := quotationArg("compile", arg(args, 0)).Compile(st)
		runtime.Check(err)
		return v
	}))

	def("reduce", runtime.NewBuiltin("reduce", 1, func(st *runtime.State, args []runtime.Value) runtime.Value {
		return Convert(Reduce(quotationArg("reduce", arg(args, 0)).Node()))
	}))

	def("clone", runtime.NewBuiltin("clone", 1, func(st *runtime.State, args []runtime.Value) runtime.Value {
		return Convert(ast.Clone(quotationArg("clone", arg(args, 0)).Node()))
	}))

	def("visit", runtime.NewBuiltin("visit", 2, func(st *runtime.State, args []runtime.Value) runtime.Value {
		q := quotationArg("visit", arg(args, 0))
		fn := arg(args, 1)
		return Convert(Visit(q.Node(), func(n ast.Node) (ast.Node, bool) {
			r := runtime.Call(st, fn, []runtime.Value{Convert(n)})
			if runtime.IsVoid(r) || r == runtime.Boolean(false) {
				return nil, false
			}
			rn := Splice(r)
			return rn, rn != nil
		}))
	}))

	def("expand", runtime.NewBuiltin("expand", 2, func(st *runtime.State, args []runtime.Value) runtime.Value {
		q := quotationArg("expand", arg(args, 0))
		var values []runtime.Value
		switch v := arg(args, 1).(type) {
		case *runtime.Array:
			values = v.Elements
		default:
			if !runtime.IsVoid(v) {
				values = []runtime.Value{v}
			}
		}
		return Convert(Expand(q.Node(), values))
	}))

	def("equals", runtime.NewBuiltin("equals", 2, func(st *runtime.State, args []runtime.Value) runtime.Value {
		a := quotationArg("equals", arg(args, 0))
		return runtime.Boolean(a.EqualValue(arg(args, 1)))
	}))

	def("same", runtime.NewBuiltin("same", 2, func(st *runtime.State, args []runtime.Value) runtime.Value {
		a, aok := arg(args, 0).(*Quotation)
		b, bok := arg(args, 1).(*Quotation)
		return runtime.Boolean(aok && bok && a == b)
	}))

	def("hash", runtime.NewBuiltin("hash", 1, func(st *runtime.State, args []runtime.Value) runtime.Value {
		sum, err := hash.Sum(quotationArg("hash", arg(args, 0)).Node())
		runtime.Check(err)
		return runtime.String(hex.EncodeToString(sum[:]))
	}))

	return ns
}

// Define installs the quoter and binds the namespace as a global of st.
func Define(st *runtime.State, p ast.Parser) {
	Install(st.Runtime)
	st.DefineGlobal(NamespaceName, Namespace(p))
}

func arg(args []runtime.Value, i int) runtime.Value {
	if i < len(args) {
		return args[i]
	}
	return runtime.Void
}
