package generators_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synthforge/synthgen/pkg/generators"
)

func TestNewDefaultRegistryHasEveryFamily(t *testing.T) {
	reg := generators.NewDefaultRegistry()
	ids := reg.ListGeneratorIDs()
	require.NotEmpty(t, ids)

	var hasPrimitive, hasSemantic, hasDerive, hasFaker bool
	for _, id := range ids {
		switch {
		case len(id) >= 10 && id[:10] == "primitive.":
			hasPrimitive = true
		case len(id) >= 9 && id[:9] == "semantic.":
			hasSemantic = true
		case len(id) >= 7 && id[:7] == "derive.":
			hasDerive = true
		case len(id) >= 6 && id[:6] == "faker.":
			hasFaker = true
		}
	}
	require.True(t, hasPrimitive)
	require.True(t, hasSemantic)
	require.True(t, hasDerive)
	require.True(t, hasFaker)

	require.NotEmpty(t, reg.ListTransformIDs())
}
