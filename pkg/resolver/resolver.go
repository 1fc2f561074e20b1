// Package resolver implements the Unique/FK/Constraint Resolver (spec
// §4.H): NOT NULL enforcement, PK/UNIQUE uniqueness tracking, FK
// membership checks against the Parent Pool, CHECK Level-A evaluation via
// pkg/checklang, and the bounded retry loop around all of it. Grounded on
// the mockcraft seeder's setForeignKeyValues/selectWeightedRandomKey shape
// for how a generated row is checked against already-published parent
// keys, generalized from "pick a parent, assign it" into "validate
// whatever the row pipeline produced."
package resolver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/synthforge/synthgen/internal/retrybudget"
	"github.com/synthforge/synthgen/pkg/checklang"
	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/registry"
	"github.com/synthforge/synthgen/pkg/schemamodel"
	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// BaseDate is the deterministic substitution for current_date/
// current_timestamp inside a CHECK expression (spec §9's open question,
// resolved here as the contract every CHECK evaluation uses).
var BaseDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ConstraintPolicy controls how a not_evaluated CHECK outcome is handled
// (spec §4.H).
type ConstraintPolicy string

const (
	PolicyEnforce ConstraintPolicy = "enforce"
	PolicyWarn    ConstraintPolicy = "warn"
	PolicyIgnore  ConstraintPolicy = "ignore"
)

// Violation names one failed constraint and the columns participating in
// it, so the row pipeline knows exactly what to regenerate.
type Violation struct {
	Code           synthgenerr.Code
	ConstraintName string
	Columns        []string
}

// UniqueSet tracks the canonical-serialized tuples already produced for a
// single PK/UNIQUE constraint (spec §4.H: "canonical serialization:
// JSON-compact of the value array").
type UniqueSet struct {
	seen map[string]bool
}

func NewUniqueSet() *UniqueSet { return &UniqueSet{seen: make(map[string]bool)} }

// TryAdd records values as seen, returning false if that exact tuple was
// already present (a collision).
func (s *UniqueSet) TryAdd(values []gencontext.Value) bool {
	key := canonicalTuple(values)
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	return true
}

func canonicalTuple(values []gencontext.Value) string {
	b, err := json.Marshal(values)
	if err != nil {
		// values are generator output: strings, numbers, bools, nil — all
		// marshalable. A failure here is a programming error upstream.
		panic("resolver: unique tuple not marshalable: " + err.Error())
	}
	return string(b)
}

// TableResolver validates candidate rows produced for one table against
// its declared constraints, maintaining the PK/UNIQUE sets for the
// duration of that table's generation (spec §5: "owned and mutated only
// by the table currently under generation").
type TableResolver struct {
	schema, table string
	columns       []schemamodel.Column
	constraints   []schemamodel.Constraint
	uniques       map[string]*UniqueSet
	policy        ConstraintPolicy
	warnings      gencontext.WarningSink
	parents       gencontext.ParentPool
}

func NewTableResolver(schema string, tbl *schemamodel.Table, policy ConstraintPolicy, parents gencontext.ParentPool, warnings gencontext.WarningSink) *TableResolver {
	tr := &TableResolver{
		schema:      schema,
		table:       tbl.Name,
		columns:     tbl.Columns,
		constraints: tbl.Constraints,
		uniques:     make(map[string]*UniqueSet),
		policy:      policy,
		parents:     parents,
		warnings:    warnings,
	}
	for _, c := range tbl.Constraints {
		if c.Kind == schemamodel.ConstraintPrimaryKey || c.Kind == schemamodel.ConstraintUnique {
			tr.uniques[c.Name] = NewUniqueSet()
		}
	}
	return tr
}

// Validate checks a fully-built candidate row against every declared
// constraint, returning every violation found (empty = the row is valid
// and its PK/UNIQUE tuples are now recorded as seen).
func (tr *TableResolver) Validate(row *registry.RowContext) []Violation {
	var violations []Violation

	for _, col := range tr.columns {
		v, ok := row.Get(col.Name)
		if !col.IsNullable && (!ok || v == nil) {
			violations = append(violations, Violation{
				Code:    synthgenerr.SchemaViolation,
				Columns: []string{col.Name},
			})
		}
	}

	for _, c := range tr.constraints {
		switch c.Kind {
		case schemamodel.ConstraintPrimaryKey, schemamodel.ConstraintUnique:
			if v := tr.validateUnique(row, c); v != nil {
				violations = append(violations, *v)
			}
		case schemamodel.ConstraintForeignKey:
			if v := tr.validateForeignKey(row, c); v != nil {
				violations = append(violations, *v)
			}
		case schemamodel.ConstraintCheck:
			if v := tr.validateCheck(row, c); v != nil {
				violations = append(violations, *v)
			}
		}
	}

	return violations
}

func (tr *TableResolver) validateUnique(row *registry.RowContext, c schemamodel.Constraint) *Violation {
	values, complete := columnValues(row, c.Columns)
	if !complete {
		// A missing/null participant already produced a NOT NULL violation
		// (or the column is nullable, in which case standard relational
		// semantics exempt a null-containing UNIQUE tuple from the check).
		return nil
	}
	if !tr.uniques[c.Name].TryAdd(values) {
		return &Violation{Code: synthgenerr.UniqueExhausted, ConstraintName: c.Name, Columns: c.Columns}
	}
	return nil
}

func (tr *TableResolver) validateForeignKey(row *registry.RowContext, c schemamodel.Constraint) *Violation {
	values, complete := columnValues(row, c.Columns)
	if !complete {
		// Any-null FK tuples skip validation (spec §4.H: "treated as
		// not referencing").
		return nil
	}
	if tr.parents == nil {
		return &Violation{Code: synthgenerr.FkUnavailable, ConstraintName: c.Name, Columns: c.Columns}
	}
	// c.Columns[i] references c.ReferencedColumns[i]; FKExists zips them by
	// name against the parent row instead of assuming the FK's column
	// order happens to match however the parent declared its own key
	// (sound for multi-column FKs, spec.md:147).
	if !tr.parents.FKExists(c.ReferencedSchema, c.ReferencedTable, c.ReferencedColumns, values) {
		return &Violation{Code: synthgenerr.FkUnavailable, ConstraintName: c.Name, Columns: c.Columns}
	}
	return nil
}

func (tr *TableResolver) validateCheck(row *registry.RowContext, c schemamodel.Constraint) *Violation {
	outcome, err := checklang.Evaluate(c.Expression, checklangRow(row), BaseDate)
	if err != nil || outcome == checklang.NotEvaluated {
		switch tr.policy {
		case PolicyEnforce:
			return &Violation{Code: synthgenerr.CheckViolation, ConstraintName: c.Name}
		case PolicyWarn:
			if tr.warnings != nil {
				tr.warnings.Warn(string(synthgenerr.CheckViolation), tr.schema, tr.table, "")
			}
		}
		return nil
	}
	if outcome == checklang.Violated {
		return &Violation{Code: synthgenerr.CheckViolation, ConstraintName: c.Name}
	}
	return nil
}

func columnValues(row *registry.RowContext, columns []string) ([]gencontext.Value, bool) {
	values := make([]gencontext.Value, len(columns))
	for i, col := range columns {
		v, ok := row.Get(col)
		if !ok || v == nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func checklangRow(row *registry.RowContext) checklang.Row {
	snap := row.Snapshot()
	out := make(checklang.Row, len(snap))
	for k, v := range snap {
		out[k] = v
	}
	return out
}

// Attempt is the row-pipeline's hook: build one candidate row for the given
// 1-based attempt number and return it whole; every retry rebuilds the full
// row.
type Attempt func(attempt int) (*registry.RowContext, error)

// ResolveRow runs attempt up to budget.MaxRow times, validating each
// candidate and retrying on any violation, until a clean row is produced
// or the row budget is exhausted.
func (tr *TableResolver) ResolveRow(ctx context.Context, budget retrybudget.Budget, attempt Attempt) (*registry.RowContext, error) {
	var lastViolations []Violation
	var lastRow *registry.RowContext

	err := budget.Row(ctx, func(n int) error {
		row, err := attempt(n)
		if err != nil {
			return err
		}
		violations := tr.Validate(row)
		if len(violations) == 0 {
			lastRow = row
			return nil
		}
		lastViolations = violations
		return retrybudget.Retryable(violationError(violations))
	})
	if err != nil {
		return nil, synthgenerr.Wrap(violationCode(lastViolations), "row constraint resolution exhausted retry budget", err)
	}
	return lastRow, nil
}

func violationCode(violations []Violation) synthgenerr.Code {
	if len(violations) == 0 {
		return synthgenerr.InvariantViolation
	}
	return violations[0].Code
}

func violationError(violations []Violation) error {
	return synthgenerr.New(violationCode(violations), "row violates a declared constraint")
}
