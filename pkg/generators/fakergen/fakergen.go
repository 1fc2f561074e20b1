// Package fakergen implements the faker.* generator family (spec §4.E): a
// machine-generated one-to-one mirror of pkg/faker's catalog. Unlike
// pkg/generators/semantic, which curates a small stable alias set, this
// family exposes every catalog entry verbatim, including the ones that
// RequiresParams and error until a caller wires an explicit invocation.
package fakergen

import (
	"math/rand"

	"github.com/synthforge/synthgen/pkg/faker"
	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/registry"
)

// RegisterAll adds every faker.* catalog entry to reg, one generator per ID.
func RegisterAll(reg *registry.Registry) {
	for _, id := range faker.SortedIDs() {
		reg.Register(fakerGenerator{entry: faker.Catalog[id]})
	}
}

type fakerGenerator struct{ entry faker.Entry }

func (g fakerGenerator) ID() string { return g.entry.ID }

func (g fakerGenerator) SupportedLocales() []string { return g.entry.Locales }

func (fakerGenerator) PIITags() []string { return nil }

func (g fakerGenerator) ParamSpec() []registry.ParamSpec {
	if g.entry.RequiresParams {
		return []registry.ParamSpec{{Name: "value", Type: registry.ParamString, Required: true}}
	}
	return nil
}

func (g fakerGenerator) Generate(_ registry.Column, _ map[string]any, _ *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	faker.SetSource(rng)
	return faker.Invoke(g.entry.ID)
}
