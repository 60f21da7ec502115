package runtime

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Literal interning
// ---------------------------------------------------------------------------

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("runtime: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type internKey struct {
	Kind  uint8 `cbor:"1,keyasint"`
	Value any   `cbor:"2,keyasint"`
}

const (
	internInteger uint8 = iota + 1
	internReal
	internString
)

// InternKey returns the canonical key of a literal value. Integers, reals
// and strings are internable; 1 and 1.0 have different keys.
func InternKey(v Value) (string, error) {
	var k internKey
	switch x := v.(type) {
	case Integer:
		k = internKey{Kind: internInteger, Value: int64(x)}
	case Real:
		k = internKey{Kind: internReal, Value: float64(x)}
	case String:
		k = internKey{Kind: internString, Value: string(x)}
	default:
		return "", fmt.Errorf("runtime: %s literals are not internable", ContractOf(v).Name())
	}
	data, err := cborEncMode.Marshal(k)
	if err != nil {
		return "", fmt.Errorf("runtime: intern key: %w", err)
	}
	return string(data), nil
}

// interned is one pooled literal.
type interned struct {
	key   string
	value Value
}

// InternPool deduplicates the literals of one compilation unit. Lowering
// registers literals with Intern; the unit prologue populates the values.
// Concurrent runs of the same unit populate identical values, so the last
// writer wins.
type InternPool struct {
	mu      sync.RWMutex
	index   map[string]int
	entries []*interned
}

// NewInternPool returns an empty pool.
func NewInternPool() *InternPool {
	return &InternPool{index: make(map[string]int)}
}

// Intern registers v and returns its pool index. The same value always
// returns the same index.
func (p *InternPool) Intern(v Value) (int, error) {
	key, err := InternKey(v)
	if err != nil {
		return -1, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.index[key]; ok {
		return i, nil
	}
	i := len(p.entries)
	p.entries = append(p.entries, &interned{key: key})
	p.index[key] = i
	return i, nil
}

// Populate stores the instance for entry i.
func (p *InternPool) Populate(i int, v Value) {
	p.mu.Lock()
	p.entries[i].value = v
	p.mu.Unlock()
}

// Load returns the instance stored for entry i, or nil before the unit
// prologue ran.
func (p *InternPool) Load(i int) Value {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.entries[i].value
}

// Len returns the number of distinct literals.
func (p *InternPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
