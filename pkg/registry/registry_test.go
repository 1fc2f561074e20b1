package registry_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/registry"
	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

type fakeGenerator struct{ id string }

func (g fakeGenerator) ID() string                { return g.id }
func (fakeGenerator) ParamSpec() []registry.ParamSpec { return nil }
func (fakeGenerator) SupportedLocales() []string      { return nil }
func (fakeGenerator) PIITags() []string               { return nil }
func (fakeGenerator) Generate(registry.Column, map[string]any, *registry.RowContext, gencontext.Context, *rand.Rand) (gencontext.Value, error) {
	return "fake", nil
}

type fakeTransform struct{ id string }

func (t fakeTransform) ID() string                    { return t.id }
func (fakeTransform) ParamSpec() []registry.ParamSpec { return nil }
func (fakeTransform) Apply(v gencontext.Value, _ map[string]any, _ *rand.Rand) (gencontext.Value, error) {
	return v, nil
}

func TestRegisterPanicsOnDuplicateGeneratorID(t *testing.T) {
	reg := registry.New()
	reg.Register(fakeGenerator{id: "dup.gen"})
	require.Panics(t, func() { reg.Register(fakeGenerator{id: "dup.gen"}) })
}

func TestRegisterTransformPanicsOnDuplicateID(t *testing.T) {
	reg := registry.New()
	reg.RegisterTransform(fakeTransform{id: "dup.transform"})
	require.Panics(t, func() { reg.RegisterTransform(fakeTransform{id: "dup.transform"}) })
}

func TestLookupReturnsUnknownGeneratorIdOnMiss(t *testing.T) {
	reg := registry.New()
	_, err := reg.Lookup("does.not.exist")
	require.Error(t, err)
	serr, ok := err.(*synthgenerr.Error)
	require.True(t, ok)
	require.Equal(t, synthgenerr.UnknownGeneratorId, serr.Code)
}

func TestLookupTransformReturnsUnknownGeneratorIdOnMiss(t *testing.T) {
	reg := registry.New()
	_, err := reg.LookupTransform("does.not.exist")
	require.Error(t, err)
	serr, ok := err.(*synthgenerr.Error)
	require.True(t, ok)
	require.Equal(t, synthgenerr.UnknownGeneratorId, serr.Code)
}

func TestLookupFindsRegisteredGenerator(t *testing.T) {
	reg := registry.New()
	reg.Register(fakeGenerator{id: "present.gen"})
	g, err := reg.Lookup("present.gen")
	require.NoError(t, err)
	require.Equal(t, "present.gen", g.ID())
}

func TestListGeneratorIDsIsSorted(t *testing.T) {
	reg := registry.New()
	reg.Register(fakeGenerator{id: "zeta.gen"})
	reg.Register(fakeGenerator{id: "alpha.gen"})
	reg.Register(fakeGenerator{id: "mid.gen"})

	require.Equal(t, []string{"alpha.gen", "mid.gen", "zeta.gen"}, reg.ListGeneratorIDs())
}

func TestListTransformIDsIsSorted(t *testing.T) {
	reg := registry.New()
	reg.RegisterTransform(fakeTransform{id: "zeta.transform"})
	reg.RegisterTransform(fakeTransform{id: "alpha.transform"})

	require.Equal(t, []string{"alpha.transform", "zeta.transform"}, reg.ListTransformIDs())
}

func TestRowContextSnapshotReflectsLatestSetWithoutDuplication(t *testing.T) {
	row := registry.NewRowContext()
	row.Set("c", 3)
	row.Set("a", 1)
	row.Set("b", 2)
	row.Set("a", 10) // re-setting an existing column updates it in place

	snap := row.Snapshot()
	require.Equal(t, gencontext.Value(10), snap["a"])
	require.Equal(t, gencontext.Value(3), snap["c"])
	require.Len(t, snap, 3)
}

func TestRowContextGetMissingColumnReturnsFalse(t *testing.T) {
	row := registry.NewRowContext()
	_, ok := row.Get("missing")
	require.False(t, ok)
}
