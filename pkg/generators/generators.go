// Package generators is the composition root for every generator and
// transform family: primitive, semantic, derive, faker, and transform.
// It is kept separate from pkg/registry itself so that pkg/registry stays
// free of a dependency on every family package (avoiding an import cycle
// between the registry's interfaces and the generators that implement them).
package generators

import (
	"github.com/synthforge/synthgen/pkg/generators/derive"
	"github.com/synthforge/synthgen/pkg/generators/fakergen"
	"github.com/synthforge/synthgen/pkg/generators/primitive"
	"github.com/synthforge/synthgen/pkg/generators/semantic"
	"github.com/synthforge/synthgen/pkg/generators/transforms"
	"github.com/synthforge/synthgen/pkg/registry"
)

// NewDefaultRegistry builds a *registry.Registry carrying every generator
// and transform family this module ships, matching spec §4.E's closed
// registry contract (no plugin mechanism; everything is compiled in).
func NewDefaultRegistry() *registry.Registry {
	reg := registry.New()
	primitive.RegisterAll(reg)
	semantic.RegisterAll(reg)
	derive.RegisterAll(reg)
	fakergen.RegisterAll(reg)
	transforms.RegisterAll(reg)
	return reg
}
