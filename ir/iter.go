package ir

import (
	"github.com/chazu/sable/contract"
	"github.com/chazu/sable/runtime"
)

// iterator walks a snapshot of its source. It never escapes a loop: only
// hidden temporaries hold it.
type iterator struct {
	elems []runtime.Value
	count int64 // integer ranges are not materialized
	pos   int64
}

func newIterator(src runtime.Value) *iterator {
	switch s := src.(type) {
	case *runtime.Array:
		elems := make([]runtime.Value, len(s.Elements))
		copy(elems, s.Elements)
		return &iterator{elems: elems, count: -1}
	case runtime.String:
		var elems []runtime.Value
		for _, r := range string(s) {
			elems = append(elems, runtime.String(r))
		}
		return &iterator{elems: elems, count: -1}
	case *runtime.Object:
		names := s.Names()
		elems := make([]runtime.Value, len(names))
		for i, n := range names {
			elems[i] = runtime.String(n)
		}
		return &iterator{elems: elems, count: -1}
	case runtime.Integer:
		if s < 0 {
			s = 0
		}
		return &iterator{count: int64(s)}
	}
	if runtime.IsVoid(src) {
		return &iterator{count: -1}
	}
	runtime.Faultf(runtime.CodeTypeMismatch, "%s is not iterable", runtime.ContractOf(src).Name())
	return nil
}

func (*iterator) Contract() contract.Contract { return contract.Object }

func (it *iterator) String() string { return "<iterator>" }

func (it *iterator) next() (runtime.Value, bool) {
	if it.count >= 0 {
		if it.pos >= it.count {
			return nil, false
		}
		v := runtime.Integer(it.pos)
		it.pos++
		return v, true
	}
	if it.pos >= int64(len(it.elems)) {
		return nil, false
	}
	v := it.elems[it.pos]
	it.pos++
	return v, true
}
