// Package registry is the ID-keyed catalog of generators and transforms
// (spec §4.E). The map+mutex shape is grounded on internal/protocol's
// dropped Subscription registry (map[string]*Subscription guarded by
// sync.RWMutex) and internal/reactive's registry.go, both read-mostly after
// construction — the same shape this registry needs, since every generator
// and transform is registered once while the registry is built
// (generators.NewDefaultRegistry) and only ever read afterward.
package registry

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// ParamType enumerates the accepted parameter value shapes (spec §4.E).
type ParamType string

const (
	ParamInt          ParamType = "int"
	ParamFloat        ParamType = "float"
	ParamString       ParamType = "string"
	ParamBool         ParamType = "bool"
	ParamStringList   ParamType = "list<string>"
	ParamISODate      ParamType = "iso-date"
	ParamISOTime      ParamType = "iso-time"
	ParamISOTimestamp ParamType = "iso-timestamp"
)

// ParamSpec describes one named parameter a generator or transform accepts.
type ParamSpec struct {
	Name     string
	Type     ParamType
	Required bool
	Min, Max *float64 // optional numeric bounds, inclusive
}

// RowContext is the partial assignment of values within a single row,
// visible to derive generators (spec glossary "Row Context"). It is
// read-only from a generator's perspective.
type RowContext struct {
	values map[string]gencontext.Value
	order  []string
}

func NewRowContext() *RowContext { return &RowContext{values: make(map[string]gencontext.Value)} }

func (r *RowContext) Set(column string, v gencontext.Value) {
	if _, exists := r.values[column]; !exists {
		r.order = append(r.order, column)
	}
	r.values[column] = v
}

func (r *RowContext) Get(column string) (gencontext.Value, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Snapshot returns every assigned column as a plain map (Go maps carry no
// order; callers that need assignment order should walk r.order directly,
// which Snapshot does not expose). Re-Set-ting an existing column updates
// its value in place without duplicating it.
func (r *RowContext) Snapshot() map[string]gencontext.Value {
	out := make(map[string]gencontext.Value, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Column is the minimal column description a generator needs: its own
// identity and declared SQL type, independent of the full schemamodel
// package so this file has no import cycle with it.
type Column struct {
	Schema, Table, Name string
	DataType            string // e.g. "uuid", "integer", "text", "numeric"
	IsNullable           bool
}

// Generator is the capability set every registered generator implements
// (spec §4.E): a stable ID, a declared parameter spec, supported locales,
// PII classification tags, and the generation call itself.
type Generator interface {
	ID() string
	ParamSpec() []ParamSpec
	SupportedLocales() []string
	PIITags() []string
	Generate(col Column, params map[string]any, row *RowContext, gc gencontext.Context, rng *rand.Rand) (gencontext.Value, error)
}

// Transform is a post-generation function applied to a value before it
// enters the Unique set check (spec §4.E).
type Transform interface {
	ID() string
	ParamSpec() []ParamSpec
	Apply(value gencontext.Value, params map[string]any, rng *rand.Rand) (gencontext.Value, error)
}

// Registry is the ID-keyed map of generators and transforms. It is built
// once (via Register/RegisterTransform at construction) and read many times
// during generation.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
	transforms map[string]Transform
}

func New() *Registry {
	return &Registry{generators: make(map[string]Generator), transforms: make(map[string]Transform)}
}

// Register adds g to the registry. Duplicate IDs are a programming error,
// not a runtime condition, and panic immediately (spec §4.E: "duplicates =
// build-time error").
func (r *Registry) Register(g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.generators[g.ID()]; exists {
		panic(fmt.Sprintf("registry: duplicate generator id %q", g.ID()))
	}
	r.generators[g.ID()] = g
}

// RegisterTransform adds t to the registry, panicking on a duplicate ID.
func (r *Registry) RegisterTransform(t Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transforms[t.ID()]; exists {
		panic(fmt.Sprintf("registry: duplicate transform id %q", t.ID()))
	}
	r.transforms[t.ID()] = t
}

// Lookup resolves a generator ID, returning an UnknownGeneratorId error if
// it is not registered.
func (r *Registry) Lookup(id string) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[id]
	if !ok {
		return nil, synthgenerr.New(synthgenerr.UnknownGeneratorId, id)
	}
	return g, nil
}

// LookupTransform resolves a transform ID.
func (r *Registry) LookupTransform(id string) (Transform, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transforms[id]
	if !ok {
		return nil, synthgenerr.New(synthgenerr.UnknownGeneratorId, id)
	}
	return t, nil
}

// ListGeneratorIDs returns every registered generator ID, sorted — the
// "lexicographically enumerable" contract of spec §4.E, and the basis of
// testable property 6 ("Registry closure").
func (r *Registry) ListGeneratorIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.generators))
	for id := range r.generators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListTransformIDs returns every registered transform ID, sorted.
func (r *Registry) ListTransformIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.transforms))
	for id := range r.transforms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
