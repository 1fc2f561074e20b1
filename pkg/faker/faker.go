// Package faker is the single aggregation point over github.com/go-faker/faker/v4
// (spec §4.K). Every call into the external library in this module goes
// through this package; the rest of the engine only ever sees Entry values
// by catalog ID.
//
// Invocation goes through the library's struct-tag mechanism
// (faker.FakeData against a one-field holder struct), the same mechanism
// pkg/fixgres_demo's User struct used (`faker:"email"`, `faker:"name"`),
// rather than calling individual package functions whose exact names drift
// across faker releases.
package faker

import (
	"fmt"
	"math/rand"
	"sort"

	goFaker "github.com/go-faker/faker/v4"

	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// SetSource pins the faker library's internal randomness to rng, so every
// faker-backed value is reproducible for a given seed — grounded directly
// on cmd/faker_test's faker.SetCryptoSource(rand.New(rand.NewSource(seed))).
func SetSource(rng *rand.Rand) {
	goFaker.SetCryptoSource(rng)
}

// Entry is one row of the machine-generated faker catalog: the struct tag
// that drives faker.FakeData, its supported locales, and whether the
// underlying routine needs parameters the catalog cannot supply.
type Entry struct {
	ID             string
	Tag            string
	Locales        []string
	RequiresParams bool
}

// Catalog maps "faker.<module>.<entry>" to its Entry. Shaped like a real
// code-generation output even though it is hand-maintained here, per spec
// §4.K ("Generated at build-time").
var Catalog = buildCatalog()

func buildCatalog() map[string]Entry {
	entries := []Entry{
		{ID: "faker.person.name", Tag: "name", Locales: []string{"en_US"}},
		{ID: "faker.person.firstname", Tag: "first_name", Locales: []string{"en_US"}},
		{ID: "faker.person.lastname", Tag: "last_name", Locales: []string{"en_US"}},
		{ID: "faker.internet.email", Tag: "email", Locales: []string{"en_US"}},
		{ID: "faker.internet.username", Tag: "username", Locales: []string{"en_US"}},
		{ID: "faker.internet.ipv4", Tag: "ipv4", Locales: []string{"en_US"}},
		{ID: "faker.internet.domain", Tag: "domain_name", Locales: []string{"en_US"}},
		{ID: "faker.internet.url", Tag: "url", Locales: []string{"en_US"}},
		{ID: "faker.phone.number", Tag: "phone_number", Locales: []string{"en_US"}},
		{ID: "faker.uuid.v4", Tag: "uuid_hyphenated", Locales: []string{"en_US"}},
		{ID: "faker.finance.ccnumber", Tag: "cc_number", Locales: []string{"en_US"}},
		{ID: "faker.finance.currency", Tag: "currency", Locales: []string{"en_US"}},
		{ID: "faker.lorem.word", Tag: "word", Locales: []string{"en_US"}},
		{ID: "faker.lorem.sentence", Tag: "sentence", Locales: []string{"en_US"}},
		{ID: "faker.time.weekday", Tag: "day_of_week", Locales: []string{"en_US"}},
		{ID: "faker.time.monthname", Tag: "month_name", Locales: []string{"en_US"}},
		{ID: "faker.geo.timezone", Tag: "timezone", Locales: []string{"en_US"}},
		// Entries whose underlying routine requires arguments the catalog
		// cannot supply are marked RequiresParams, per spec §9's "intentional"
		// design choice — they error until a caller supplies an explicit
		// invocation, they are never silently skipped.
		{ID: "faker.lorem.paragraph", RequiresParams: true},
		{ID: "faker.finance.amountBetween", RequiresParams: true},
	}
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.ID] = e
	}
	return m
}

// Invoke resolves a catalog ID and calls faker.FakeData against a holder
// tagged with the entry's faker tag.
func Invoke(id string) (string, error) {
	e, ok := Catalog[id]
	if !ok {
		return "", synthgenerr.New(synthgenerr.UnknownGeneratorId, id)
	}
	if e.RequiresParams {
		return "", synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("%s requires parameters not supplied by the catalog", id))
	}
	return invokeTag(e.Tag)
}

// SortedIDs returns every catalog ID in sorted order, for registry closure checks.
func SortedIDs() []string {
	ids := make([]string, 0, len(Catalog))
	for id := range Catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
