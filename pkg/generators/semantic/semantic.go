// Package semantic wires the semantic.* generator family (spec §4.E) to
// pkg/faker's curated alias catalog. It owns locale enforcement and PII
// classification; pkg/faker owns the realistic-value computation itself.
package semantic

import (
	"math/rand"

	"github.com/synthforge/synthgen/pkg/faker"
	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/registry"
	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// piiTagsByID classifies which semantic aliases carry personal data, for
// the run report's pii_columns_touched accounting (spec §4.I).
var piiTagsByID = map[string][]string{
	"semantic.person.name":       {"name"},
	"semantic.person.first_name": {"name"},
	"semantic.person.last_name":  {"name"},
	"semantic.person.email.safe": {"email"},
	"semantic.person.username":   {"identifier"},
	"semantic.person.phone":      {"phone"},
	"semantic.br.cpf":            {"national_id"},
	"semantic.br.cnpj":           {"national_id"},
}

// RegisterAll adds every semantic.* alias in pkg/faker's catalog to reg.
func RegisterAll(reg *registry.Registry) {
	for _, id := range faker.SortedSemanticIDs() {
		reg.Register(semanticGenerator{id: id})
	}
}

type semanticGenerator struct{ id string }

func (g semanticGenerator) ID() string { return g.id }

func (g semanticGenerator) ParamSpec() []registry.ParamSpec { return nil }

func (g semanticGenerator) SupportedLocales() []string {
	return faker.SemanticLocales(g.id)
}

func (g semanticGenerator) PIITags() []string {
	return piiTagsByID[g.id]
}

func (g semanticGenerator) Generate(_ registry.Column, _ map[string]any, _ *registry.RowContext, gc gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	if gc.Locale != "" {
		locales := g.SupportedLocales()
		if len(locales) > 0 && !containsLocale(locales, gc.Locale) {
			return nil, synthgenerr.New(synthgenerr.UnsupportedLocale, gc.Locale).WithHint("id " + g.id)
		}
	}
	faker.SetSource(rng)
	v, err := faker.InvokeSemantic(g.id, rng)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func containsLocale(locales []string, want string) bool {
	for _, l := range locales {
		if l == want {
			return true
		}
	}
	return false
}
