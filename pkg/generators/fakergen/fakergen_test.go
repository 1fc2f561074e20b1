package fakergen_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/generators/fakergen"
	"github.com/synthforge/synthgen/pkg/registry"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	fakergen.RegisterAll(reg)
	return reg
}

func TestRegisterAllMirrorsCatalog(t *testing.T) {
	reg := newRegistry(t)
	g, err := reg.Lookup("faker.uuid.v4")
	require.NoError(t, err)
	v, err := g.Generate(registry.Column{}, nil, nil, gencontext.Context{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.NotEmpty(t, v)
}

func TestRequiresParamsEntryErrorsOnGenerate(t *testing.T) {
	reg := newRegistry(t)
	g, err := reg.Lookup("faker.lorem.paragraph")
	require.NoError(t, err)
	_, err = g.Generate(registry.Column{}, nil, nil, gencontext.Context{}, rand.New(rand.NewSource(1)))
	require.Error(t, err)
}
