// Package hash computes alpha-insensitive content hashes of code.
//
// A tree is first normalized: names bound inside the tree (parameters, loop
// variables, trap variables, block declarations) are replaced by positional
// references, and lowering hints such as literal interning are cleared.
// The normalized tree is then encoded canonically and hashed with SHA-256.
// Two trees that differ only in the names of their local bindings hash
// equally; free names are kept verbatim.
package hash

import (
	"crypto/sha256"

	"github.com/chazu/sable/ast"
)

// Version prefixes the hashed bytes. Bumping it invalidates every existing
// hash. Node kind numbers are hashed too, so new kinds must be appended.
const Version byte = 1

// Sum returns the content hash of n.
func Sum(n ast.Node) ([32]byte, error) {
	data, err := ast.Canonical(Normalize(n))
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(append([]byte{Version}, data...)), nil
}

// Equivalent reports whether a and b have the same content hash.
func Equivalent(a, b ast.Node) bool {
	ha, err := Sum(a)
	if err != nil {
		return false
	}
	hb, err := Sum(b)
	if err != nil {
		return false
	}
	return ha == hb
}
