package faker

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// SemanticEntry is one row of the curated "semantic.*" namespace (spec
// §4.K): a small, hand-picked set of identifiers that read like domain
// concepts ("a safe email", "a Brazilian CPF") rather than library
// internals. Most entries simply delegate to a Catalog entry; a few —
// the ones no packaged library in this corpus covers — are computed
// directly against the pinned rng.
type SemanticEntry struct {
	ID      string
	Locales []string
	// DelegatesTo is the Catalog ID this alias forwards to, when non-empty.
	DelegatesTo string
	// compute is set instead of DelegatesTo for aliases with no faker
	// equivalent (format-preserving national document numbers).
	compute func(rng *rand.Rand) (string, error)
}

var semanticCatalog = buildSemanticCatalog()

func buildSemanticCatalog() map[string]SemanticEntry {
	entries := []SemanticEntry{
		{ID: "semantic.person.name", Locales: []string{"en_US"}, DelegatesTo: "faker.person.name"},
		{ID: "semantic.person.first_name", Locales: []string{"en_US"}, DelegatesTo: "faker.person.firstname"},
		{ID: "semantic.person.last_name", Locales: []string{"en_US"}, DelegatesTo: "faker.person.lastname"},
		{ID: "semantic.person.email.safe", Locales: []string{"en_US"}, DelegatesTo: "faker.internet.email"},
		{ID: "semantic.person.username", Locales: []string{"en_US"}, DelegatesTo: "faker.internet.username"},
		{ID: "semantic.person.phone", Locales: []string{"en_US"}, DelegatesTo: "faker.phone.number"},
		{ID: "semantic.net.ipv4", Locales: []string{"en_US"}, DelegatesTo: "faker.internet.ipv4"},
		{ID: "semantic.net.domain", Locales: []string{"en_US"}, DelegatesTo: "faker.internet.domain"},
		{ID: "semantic.net.url", Locales: []string{"en_US"}, DelegatesTo: "faker.internet.url"},
		{ID: "semantic.id.uuid", Locales: []string{"en_US"}, DelegatesTo: "faker.uuid.v4"},
		{ID: "semantic.money.currency_code", Locales: []string{"en_US"}, DelegatesTo: "faker.finance.currency"},
		// semantic.address.city yields a single lorem word, not a real city name.
		{ID: "semantic.address.city", Locales: []string{"en_US"}, DelegatesTo: "faker.lorem.word"},
		{ID: "semantic.time.weekday", Locales: []string{"en_US"}, DelegatesTo: "faker.time.weekday"},
		{ID: "semantic.time.month", Locales: []string{"en_US"}, DelegatesTo: "faker.time.monthname"},
		{ID: "semantic.time.timezone", Locales: []string{"en_US"}, DelegatesTo: "faker.geo.timezone"},
		// No packaged library in this corpus produces Brazilian national
		// document numbers, so these compute the format + check digits
		// directly (the standard modulo-11 algorithm shared by CPF/CNPJ).
		{ID: "semantic.br.cpf", Locales: []string{"pt_BR"}, compute: generateCPF},
		{ID: "semantic.br.cnpj", Locales: []string{"pt_BR"}, compute: generateCNPJ},
	}
	m := make(map[string]SemanticEntry, len(entries))
	for _, e := range entries {
		m[e.ID] = e
	}
	return m
}

// InvokeSemantic resolves a "semantic.*" ID using rng for entries that have
// no faker delegate. Delegated entries ignore rng — they go through the
// globally-pinned SetSource source instead, matching faker's own API shape.
func InvokeSemantic(id string, rng *rand.Rand) (string, error) {
	e, ok := semanticCatalog[id]
	if !ok {
		return "", synthgenerr.New(synthgenerr.UnknownGeneratorId, id)
	}
	if e.compute != nil {
		return e.compute(rng)
	}
	return Invoke(e.DelegatesTo)
}

// SemanticLocales returns the locales id supports, or nil if id is unknown.
func SemanticLocales(id string) []string {
	return semanticCatalog[id].Locales
}

// SortedSemanticIDs returns every semantic alias ID in sorted order.
func SortedSemanticIDs() []string {
	ids := make([]string, 0, len(semanticCatalog))
	for id := range semanticCatalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// generateCPF produces a syntactically valid Brazilian CPF (11 digits,
// "ddd.ddd.ddd-dd") with correct modulo-11 check digits.
func generateCPF(rng *rand.Rand) (string, error) {
	digits := make([]int, 9)
	for i := range digits {
		digits[i] = rng.Intn(10)
	}
	d1 := cpfCheckDigit(digits, 10)
	digits = append(digits, d1)
	d2 := cpfCheckDigit(digits, 11)
	digits = append(digits, d2)
	return fmt.Sprintf("%d%d%d.%d%d%d.%d%d%d-%d%d",
		digits[0], digits[1], digits[2],
		digits[3], digits[4], digits[5],
		digits[6], digits[7], digits[8],
		digits[9], digits[10]), nil
}

func cpfCheckDigit(digits []int, startWeight int) int {
	sum := 0
	weight := startWeight
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

// generateCNPJ produces a syntactically valid Brazilian CNPJ (14 digits,
// "dd.ddd.ddd/dddd-dd") with correct modulo-11 check digits.
func generateCNPJ(rng *rand.Rand) (string, error) {
	digits := make([]int, 12)
	for i := range digits {
		digits[i] = rng.Intn(10)
	}
	weights1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	d1 := cnpjCheckDigit(digits, weights1)
	digits = append(digits, d1)
	weights2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	d2 := cnpjCheckDigit(digits, weights2)
	digits = append(digits, d2)

	var b strings.Builder
	for i, d := range digits {
		switch i {
		case 2, 5:
			b.WriteByte('.')
		case 8:
			b.WriteByte('/')
		case 12:
			b.WriteByte('-')
		}
		fmt.Fprintf(&b, "%d", d)
	}
	return b.String(), nil
}

func cnpjCheckDigit(digits []int, weights []int) int {
	sum := 0
	for i, d := range digits {
		sum += d * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}
