package engine

import (
	"fmt"
	"math/rand"

	"github.com/synthforge/synthgen/pkg/gencontext"
)

// tableKey identifies a published parent table.
type tableKey struct{ schema, table string }

// parentTable holds every row published for one table, keyed by its
// primary-key tuple for LookupParent and available in full for PickFK.
type parentTable struct {
	pkColumns []string
	rows      []map[string]gencontext.Value
	byPK      map[string]map[string]gencontext.Value
}

// ParentPool is the in-memory, append-only parent-row store the Engine
// threads through generation (spec §5: "monotonically appended as parents
// complete; read-only for children. Since tables are serial, no lock is
// needed."). Sampling is driven by a dedicated RNG seeded from the plan
// seed, independent of any row's own RNG, so repeated PickFK calls across
// a deterministic, single-threaded call sequence reproduce byte-for-byte
// (spec §5's ordering guarantee) without the derive.fk generator itself
// needing to carry randomness.
type ParentPool struct {
	rng    *rand.Rand
	tables map[tableKey]*parentTable
}

func NewParentPool(seed int64) *ParentPool {
	return &ParentPool{rng: gencontext.NewRand(seed), tables: make(map[tableKey]*parentTable)}
}

// Publish records every row generated for schema.table, so descendant
// tables can draw FK values and sidecar lookups from it. pkColumns is the
// table's primary-key column list, used as the lookup key for LookupParent.
func (p *ParentPool) Publish(schema, table string, pkColumns []string, rows []map[string]gencontext.Value) {
	pt := &parentTable{pkColumns: pkColumns, rows: rows, byPK: make(map[string]map[string]gencontext.Value, len(rows))}
	for _, row := range rows {
		pt.byPK[pkKey(pkColumns, row)] = row
	}
	p.tables[tableKey{schema, table}] = pt
}

func (p *ParentPool) PickFK(parentSchema, parentTable, fkColumn string) (gencontext.Value, bool) {
	pt, ok := p.tables[tableKey{parentSchema, parentTable}]
	if !ok || len(pt.rows) == 0 {
		return nil, false
	}
	row := pt.rows[p.rng.Intn(len(pt.rows))]
	v, ok := row[fkColumn]
	return v, ok
}

// PickFKTuple draws one random row from the parent table and returns every
// column in fkColumns from that SAME row, so a multi-column FK never ends
// up pointing at a tuple stitched together from different parents.
func (p *ParentPool) PickFKTuple(parentSchema, parentTable string, fkColumns []string) (map[string]gencontext.Value, bool) {
	pt, ok := p.tables[tableKey{parentSchema, parentTable}]
	if !ok || len(pt.rows) == 0 {
		return nil, false
	}
	row := pt.rows[p.rng.Intn(len(pt.rows))]
	out := make(map[string]gencontext.Value, len(fkColumns))
	for _, col := range fkColumns {
		v, ok := row[col]
		if !ok {
			return nil, false
		}
		out[col] = v
	}
	return out, true
}

func (p *ParentPool) LookupParent(parentSchema, parentTable string, pk []gencontext.Value, column string) (gencontext.Value, bool) {
	pt, ok := p.tables[tableKey{parentSchema, parentTable}]
	if !ok {
		return nil, false
	}
	row, ok := pt.byPK[pkKey(pt.pkColumns, pkValuesAsRow(pt.pkColumns, pk))]
	if !ok {
		return nil, false
	}
	v, ok := row[column]
	return v, ok
}

func pkValuesAsRow(pkColumns []string, values []gencontext.Value) map[string]gencontext.Value {
	row := make(map[string]gencontext.Value, len(pkColumns))
	for i, col := range pkColumns {
		if i < len(values) {
			row[col] = values[i]
		}
	}
	return row
}

// FKExists reports whether parentSchema.parentTable has a published row
// whose keyColumns equal keyValues component-wise. keyColumns/keyValues are
// zipped by NAME against the row, not by position against the parent's own
// declared primary-key order — a multi-column FK's declared column order
// has no reason to match how the parent table declared its PK.
func (p *ParentPool) FKExists(parentSchema, parentTable string, keyColumns []string, keyValues []gencontext.Value) bool {
	pt, ok := p.tables[tableKey{parentSchema, parentTable}]
	if !ok {
		return false
	}
	given := make(map[string]gencontext.Value, len(keyColumns))
	for i, col := range keyColumns {
		if i < len(keyValues) {
			given[col] = keyValues[i]
		}
	}
	key, ok := pkKeyFromNamed(pt.pkColumns, given)
	if !ok {
		return false
	}
	_, ok = pt.byPK[key]
	return ok
}

// pkKeyFromNamed builds the same key format as pkKey but reads each
// pkColumns entry out of a name-keyed map instead of assuming positional
// correspondence; it reports false if given doesn't cover every PK column
// (the FK doesn't reference the parent's full declared key).
func pkKeyFromNamed(pkColumns []string, given map[string]gencontext.Value) (string, bool) {
	key := ""
	for _, col := range pkColumns {
		v, ok := given[col]
		if !ok {
			return "", false
		}
		key += col + "=" + toKeyString(v) + "\x00"
	}
	return key, true
}

func pkKey(pkColumns []string, row map[string]gencontext.Value) string {
	key := ""
	for _, col := range pkColumns {
		key += col + "=" + toKeyString(row[col]) + "\x00"
	}
	return key
}

func toKeyString(v gencontext.Value) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
