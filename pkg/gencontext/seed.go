// Package gencontext implements the seed-derivation tree and per-call
// context carried through generation (spec §4.F). Generalized from
// pkg/prng's single seeded io.Reader into a tree of scoped *rand.Rand
// instances: a master RNG from the plan seed, a per-(schema,table) RNG
// hashed from (seed, schema, table), and a per-row RNG hashed from the
// table scope tag and the row index. No generator is ever handed the
// process-global math/rand source (spec §9, "Determinism under a mutable
// RNG").
package gencontext

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
)

// deriveSeed combines a parent seed with a scope tag into a new int64 seed
// via FNV-1a, so the same (parent, tag) pair always yields the same child
// seed regardless of process or machine.
func deriveSeed(parentSeed int64, tag string) int64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(parentSeed))
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(tag))
	return int64(h.Sum64())
}

// NewRand returns a *rand.Rand seeded deterministically from seed.
func NewRand(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

// TableRand derives the per-(schema,table) RNG from the master seed.
func TableRand(masterSeed int64, schema, table string) *rand.Rand {
	return NewRand(deriveSeed(masterSeed, schema+"."+table))
}

// RowRand derives the per-row RNG from a table's derived seed and the row
// index. It does not consume randomness from the table RNG itself, so rows
// can be regenerated (e.g. after a constraint retry) without perturbing the
// stream any other row depends on.
func RowRand(tableSeed int64, rowIndex int) *rand.Rand {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], uint64(rowIndex))
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(tableSeed))
	_, _ = h.Write(buf[:])
	_, _ = h.Write(idx[:])
	return NewRand(int64(h.Sum64()))
}

// CellRand derives a retry-scoped RNG so a regeneration attempt after a
// constraint violation produces a different candidate than the previous
// attempt, while remaining a pure function of (row seed, column, attempt).
func CellRand(rowSeed int64, column string, attempt int) *rand.Rand {
	return NewRand(deriveSeed(rowSeed, column) + int64(attempt))
}

// tableSeed is exported via TableSeed so callers (the row pipeline) can
// derive a stable int64 to feed RowRand per row without re-hashing the
// (schema,table) tag on every row.
func TableSeed(masterSeed int64, schema, table string) int64 {
	return deriveSeed(masterSeed, schema+"."+table)
}

// RowSeed returns the stable seed for a given row, for use with CellRand.
func RowSeed(tableSeed int64, rowIndex int) int64 {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], uint64(rowIndex))
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(tableSeed))
	_, _ = h.Write(buf[:])
	_, _ = h.Write(idx[:])
	return int64(h.Sum64())
}
