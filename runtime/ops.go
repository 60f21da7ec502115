package runtime

import (
	"math"
	"strings"

	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/contract"
)

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// Binary applies op to l and r. Type errors are thrown.
func Binary(op ast.Operator, l, r Value) Value {
	switch op {
	case ast.OpEq:
		return Boolean(Equal(l, r))
	case ast.OpNe:
		return Boolean(!Equal(l, r))
	case ast.OpAnd:
		return Boolean(Truthy(l) && Truthy(r))
	case ast.OpOr:
		return Boolean(Truthy(l) || Truthy(r))
	case ast.OpIs:
		cp, ok := r.(ContractProvider)
		if !ok {
			Faultf(CodeTypeMismatch, "right operand of is must be a contract, got %s", ContractOf(r).Name())
		}
		return Boolean(contract.Is(ContractOf(l), cp.AsContract()))
	case ast.OpUnion:
		lc, lok := l.(ContractProvider)
		rc, rok := r.(ContractProvider)
		if !lok || !rok {
			Faultf(CodeTypeMismatch, "| expects contracts, got %s and %s", ContractOf(l).Name(), ContractOf(r).Name())
		}
		return ContractValue{C: contract.Union(lc.AsContract(), rc.AsContract())}
	}

	switch lv := l.(type) {
	case Integer:
		switch rv := r.(type) {
		case Integer:
			return intOp(op, lv, rv)
		case Real:
			return realOp(op, Real(lv), rv)
		}
	case Real:
		switch rv := r.(type) {
		case Integer:
			return realOp(op, lv, Real(rv))
		case Real:
			return realOp(op, lv, rv)
		}
	case String:
		if rv, ok := r.(String); ok {
			switch op {
			case ast.OpAdd:
				return lv + rv
			case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
				return compare(op, strings.Compare(string(lv), string(rv)))
			}
		}
	case *Array:
		if rv, ok := r.(*Array); ok && op == ast.OpAdd {
			out := make([]Value, 0, len(lv.Elements)+len(rv.Elements))
			out = append(out, lv.Elements...)
			out = append(out, rv.Elements...)
			return NewArray(out...)
		}
	}
	Faultf(CodeTypeMismatch, "operator %s not defined for %s and %s", op, ContractOf(l).Name(), ContractOf(r).Name())
	return nil
}

func intOp(op ast.Operator, l, r Integer) Value {
	switch op {
	case ast.OpAdd:
		return l + r
	case ast.OpSub:
		return l - r
	case ast.OpMul:
		return l * r
	case ast.OpDiv:
		if r == 0 {
			Faultf(CodeDivideByZero, "integer division by zero")
		}
		return l / r
	case ast.OpMod:
		if r == 0 {
			Faultf(CodeDivideByZero, "integer modulo by zero")
		}
		return l % r
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		c := 0
		if l < r {
			c = -1
		} else if l > r {
			c = 1
		}
		return compare(op, c)
	}
	Faultf(CodeTypeMismatch, "operator %s not defined for integers", op)
	return nil
}

func realOp(op ast.Operator, l, r Real) Value {
	switch op {
	case ast.OpAdd:
		return l + r
	case ast.OpSub:
		return l - r
	case ast.OpMul:
		return l * r
	case ast.OpDiv:
		if r == 0 {
			Faultf(CodeDivideByZero, "real division by zero")
		}
		return l / r
	case ast.OpMod:
		if r == 0 {
			Faultf(CodeDivideByZero, "real modulo by zero")
		}
		return Real(math.Mod(float64(l), float64(r)))
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		c := 0
		if l < r {
			c = -1
		} else if l > r {
			c = 1
		}
		return compare(op, c)
	}
	Faultf(CodeTypeMismatch, "operator %s not defined for reals", op)
	return nil
}

func compare(op ast.Operator, c int) Value {
	switch op {
	case ast.OpLt:
		return Boolean(c < 0)
	case ast.OpLe:
		return Boolean(c <= 0)
	case ast.OpGt:
		return Boolean(c > 0)
	default:
		return Boolean(c >= 0)
	}
}

// Unary applies a prefix operator.
func Unary(op ast.Operator, v Value) Value {
	switch op {
	case ast.OpNot:
		return Boolean(!Truthy(v))
	case ast.OpNeg:
		switch x := v.(type) {
		case Integer:
			return -x
		case Real:
			return -x
		}
	case ast.OpComplement:
		if cp, ok := v.(ContractProvider); ok {
			return ContractValue{C: contract.Complement(cp.AsContract())}
		}
	}
	Faultf(CodeTypeMismatch, "operator %s not defined for %s", op, ContractOf(v).Name())
	return nil
}

// Truthy is the boolean interpretation used by conditions and loops.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil, voidValue:
		return false
	case Boolean:
		return bool(x)
	case Integer:
		return x != 0
	case Real:
		return x != 0
	case String:
		return x != ""
	}
	return true
}

// Equal is value equality: scalars by value (integers and reals compare
// numerically), arrays elementwise, everything else by identity unless it
// implements Equaler.
func Equal(a, b Value) bool {
	if IsVoid(a) || IsVoid(b) {
		return IsVoid(a) && IsVoid(b)
	}
	switch x := a.(type) {
	case Integer:
		switch y := b.(type) {
		case Integer:
			return x == y
		case Real:
			return Real(x) == y
		}
		return false
	case Real:
		switch y := b.(type) {
		case Integer:
			return x == Real(y)
		case Real:
			return x == y
		}
		return false
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Boolean:
		y, ok := b.(Boolean)
		return ok && x == y
	case *Array:
		y, ok := b.(*Array)
		if !ok {
			return false
		}
		if x == y {
			return true
		}
		if len(x.Elements) != len(y.Elements) {
			return false
		}
		for i := range x.Elements {
			if !Equal(x.Elements[i], y.Elements[i]) {
				return false
			}
		}
		return true
	}
	if e, ok := a.(Equaler); ok {
		return e.EqualValue(b)
	}
	return a == b
}

// Index reads container[idx].
func Index(container, idx Value) Value {
	switch c := container.(type) {
	case *Array:
		i := indexOf(idx, len(c.Elements))
		return c.Elements[i]
	case String:
		runes := []rune(string(c))
		i := indexOf(idx, len(runes))
		return String(runes[i])
	case *Object:
		name, ok := idx.(String)
		if !ok {
			Faultf(CodeTypeMismatch, "object index must be a string, got %s", ContractOf(idx).Name())
		}
		return Member(c, string(name))
	}
	Faultf(CodeTypeMismatch, "%s is not indexable", ContractOf(container).Name())
	return nil
}

// SetIndex writes container[idx] = v and returns v.
func SetIndex(container, idx, v Value) Value {
	switch c := container.(type) {
	case *Array:
		i := indexOf(idx, len(c.Elements))
		c.Elements[i] = v
		return v
	case *Object:
		name, ok := idx.(String)
		if !ok {
			Faultf(CodeTypeMismatch, "object index must be a string, got %s", ContractOf(idx).Name())
		}
		return SetMember(c, string(name), v)
	}
	Faultf(CodeTypeMismatch, "%s does not support index assignment", ContractOf(container).Name())
	return nil
}

func indexOf(idx Value, n int) int {
	i, ok := idx.(Integer)
	if !ok {
		Faultf(CodeTypeMismatch, "index must be an integer, got %s", ContractOf(idx).Name())
	}
	if i < 0 || int(i) >= n {
		Faultf(CodeIndexOutOfRange, "index %d out of range [0, %d)", i, n)
	}
	return int(i)
}

// Member reads target.name.
func Member(target Value, name string) Value {
	if g, ok := target.(MemberGetter); ok {
		if v, ok := g.GetMember(name); ok {
			return v
		}
		Faultf(CodeSlotNotFound, "%s has no member %q", ContractOf(target).Name(), name)
	}
	if s, ok := target.(String); ok && name == "length" {
		return Integer(len([]rune(string(s))))
	}
	Faultf(CodeSlotNotFound, "%s has no member %q", ContractOf(target).Name(), name)
	return nil
}

// SetMember writes target.name = v and returns v.
func SetMember(target Value, name string, v Value) Value {
	s, ok := target.(MemberSetter)
	if !ok {
		Faultf(CodeTypeMismatch, "%s does not support member assignment", ContractOf(target).Name())
	}
	Check(s.SetMember(name, v))
	return v
}

// Call invokes f with args.
func Call(st *State, f Value, args []Value) Value {
	c, ok := f.(Callable)
	if !ok {
		Faultf(CodeNotCallable, "%s is not callable", ContractOf(f).Name())
	}
	return c.Call(st, args)
}
