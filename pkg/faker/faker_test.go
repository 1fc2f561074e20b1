package faker_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synthforge/synthgen/pkg/faker"
)

// Folded in from the teacher's cmd/faker_test: pinning the crypto source to
// a seeded math/rand.Rand makes faker's own internal randomness
// reproducible, which is what lets pkg/generators/fakergen hand out
// deterministic values under a fixed plan seed.
func TestSetSourceIsDeterministic(t *testing.T) {
	faker.SetSource(rand.New(rand.NewSource(1234)))
	first, err := faker.Invoke("faker.uuid.v4")
	require.NoError(t, err)

	faker.SetSource(rand.New(rand.NewSource(1234)))
	second, err := faker.Invoke("faker.uuid.v4")
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestSetSourceDiffersAcrossSeeds(t *testing.T) {
	faker.SetSource(rand.New(rand.NewSource(1)))
	a, err := faker.Invoke("faker.uuid.v4")
	require.NoError(t, err)

	faker.SetSource(rand.New(rand.NewSource(2)))
	b, err := faker.Invoke("faker.uuid.v4")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestRequiresParamsEntryErrors(t *testing.T) {
	_, err := faker.Invoke("faker.lorem.paragraph")
	require.Error(t, err)
}

func TestUnknownIDErrors(t *testing.T) {
	_, err := faker.Invoke("faker.nope.nope")
	require.Error(t, err)
}

func TestSortedIDsHasNoDuplicates(t *testing.T) {
	ids := faker.SortedIDs()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
