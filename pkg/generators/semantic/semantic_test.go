package semantic_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synthforge/synthgen/pkg/faker"
	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/generators/semantic"
	"github.com/synthforge/synthgen/pkg/registry"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	semantic.RegisterAll(reg)
	return reg
}

func TestSemanticPersonEmailGenerates(t *testing.T) {
	reg := newRegistry(t)
	g, err := reg.Lookup("semantic.person.email.safe")
	require.NoError(t, err)
	require.Contains(t, g.PIITags(), "email")

	gc := gencontext.Context{Locale: "en_US"}
	v, err := g.Generate(registry.Column{}, nil, nil, gc, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	require.NotEmpty(t, v)
}

func TestSemanticRejectsUnsupportedLocale(t *testing.T) {
	reg := newRegistry(t)
	g, err := reg.Lookup("semantic.person.name")
	require.NoError(t, err)

	gc := gencontext.Context{Locale: "zz_ZZ"}
	_, err = g.Generate(registry.Column{}, nil, nil, gc, rand.New(rand.NewSource(1)))
	require.Error(t, err)
}

func TestSemanticBRDocumentsAreNationalID(t *testing.T) {
	reg := newRegistry(t)
	g, err := reg.Lookup("semantic.br.cpf")
	require.NoError(t, err)
	require.Contains(t, g.PIITags(), "national_id")

	gc := gencontext.Context{Locale: "pt_BR"}
	v, err := g.Generate(registry.Column{}, nil, nil, gc, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.NotEmpty(t, v)
}

func TestRegisterAllCoversEveryCatalogID(t *testing.T) {
	reg := newRegistry(t)
	require.NotEmpty(t, reg.ListGeneratorIDs())
	for _, id := range faker.SortedSemanticIDs() {
		_, err := reg.Lookup(id)
		require.NoError(t, err, id)
	}
}
