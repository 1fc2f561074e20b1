package schemamodel

import (
	"sort"
	"strings"
)

// Finalize puts every collection in Database into its canonical order (spec
// §3: "column ordering is by catalog ordinal; all other collections ordered
// by (kind, name, columns)") and recomputes the schema fingerprint. Callers
// that build a Database by hand (tests, the introspector) should call this
// exactly once before treating the value as immutable.
func Finalize(db *Database) {
	sort.Slice(db.Schemas, func(i, j int) bool { return db.Schemas[i].Name < db.Schemas[j].Name })
	for si := range db.Schemas {
		s := &db.Schemas[si]
		sort.Slice(s.Tables, func(i, j int) bool { return s.Tables[i].Name < s.Tables[j].Name })
		for ti := range s.Tables {
			finalizeTable(&s.Tables[ti])
		}
	}
	sort.Slice(db.Enums, func(i, j int) bool {
		if db.Enums[i].Schema != db.Enums[j].Schema {
			return db.Enums[i].Schema < db.Enums[j].Schema
		}
		return db.Enums[i].Name < db.Enums[j].Name
	})
	db.Fingerprint = ComputeFingerprint(db)
}

func finalizeTable(t *Table) {
	sort.Slice(t.Columns, func(i, j int) bool { return t.Columns[i].Ordinal < t.Columns[j].Ordinal })
	sort.Slice(t.Constraints, func(i, j int) bool { return constraintLess(t.Constraints[i], t.Constraints[j]) })
	sort.Slice(t.Indexes, func(i, j int) bool {
		if t.Indexes[i].IsPrimary != t.Indexes[j].IsPrimary {
			return t.Indexes[i].IsPrimary
		}
		return t.Indexes[i].Name < t.Indexes[j].Name
	})
}

// constraintLess orders by (kind, name, columns), per spec §3.
func constraintLess(a, b Constraint) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return strings.Join(a.Columns, ",") < strings.Join(b.Columns, ",")
}
