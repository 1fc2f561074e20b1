// Package rowpipeline builds the per-table column plan (spec §4.G) and
// drives the per-row base -> derive -> transform -> resolve sequence.
// Grounded on the teacher-adjacent seeder's per-table Seed() loop
// (assign columns in dependency order, then hand the finished row to the
// next stage) generalized from a fixed column order into a dependency DAG
// topologically sorted at table setup, since derive columns may reference
// other derive columns produced earlier in the same row.
package rowpipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/synthforge/synthgen/internal/retrybudget"
	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/registry"
	"github.com/synthforge/synthgen/pkg/resolver"
	"github.com/synthforge/synthgen/pkg/schemamodel"
	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// ColumnPlan is the per-column resolution the table setup phase produces:
// either a rule drawn from the plan (possibly defaulted) or, for FK
// columns whose rule was itself defaulted, a synthesized derive.fk call.
// Columns participating in a multi-column FK instead carry FKGroup, so the
// pipeline draws the whole tuple atomically rather than calling derive.fk
// once per column.
type ColumnPlan struct {
	Column              schemamodel.Column
	GeneratorID         string
	Params              map[string]any
	Locale              string
	Transforms          []TransformPlan
	Defaulted           bool // true when no rule named this column explicitly
	FKGroup             *FKGroup
	FKGroupParentColumn string // which column of FKGroup's parent tuple this column takes
}

// FKGroup names one multi-column foreign key whose value must be drawn
// atomically from a single parent row (spec.md:147), shared by every
// ColumnPlan participating in it so they all resolve against the same
// sampled parent row within one generation attempt.
type FKGroup struct {
	ConstraintName            string
	ParentSchema, ParentTable string
	Columns                   []string // local column names, FK declaration order
	ParentColumns             []string // referenced column names, same order as Columns
}

type TransformPlan struct {
	ID     string
	Params map[string]any
}

// TablePlan is the result of dependency analysis for one table: columns in
// an order where every derive input precedes its dependents, ready to be
// assigned one at a time into a fresh RowContext.
type TablePlan struct {
	Schema, Table string
	Columns       []ColumnPlan // in generation order
}

// RuleSource is the minimal view of a plan.Rule the pipeline needs,
// independent of pkg/plan so there's no import cycle between plan
// validation (which needs the registry) and row generation (which needs
// the validated plan's rules).
type RuleSource struct {
	Column     string
	GeneratorID string
	Params     map[string]any
	Locale     string
	Transforms []TransformPlan
}

// BuildTablePlan partitions tbl's columns into base and derived, builds the
// derive dependency DAG, and topologically sorts it (spec §4.G). Columns
// with no rule get a default generator chosen by SQL type; strict forbids
// defaulting a NOT NULL column with no DEFAULT clause.
func BuildTablePlan(schema string, tbl *schemamodel.Table, rules map[string]RuleSource, strict bool) (*TablePlan, error) {
	plans := make(map[string]*ColumnPlan, len(tbl.Columns))
	if err := planCompositeFKs(schema, tbl, rules, plans); err != nil {
		return nil, err
	}
	for _, col := range tbl.Columns {
		if col.Generated != nil {
			// Stored-generated columns are computed by Postgres itself, not us.
			continue
		}
		if _, ok := plans[col.Name]; ok {
			continue // already planned as part of a composite FK group
		}
		if r, ok := rules[col.Name]; ok {
			plans[col.Name] = &ColumnPlan{
				Column: col, GeneratorID: r.GeneratorID, Params: r.Params,
				Locale: r.Locale, Transforms: r.Transforms,
			}
			continue
		}
		gen, params, err := defaultGeneratorFor(schema, tbl, col, strict)
		if err != nil {
			return nil, err
		}
		plans[col.Name] = &ColumnPlan{Column: col, GeneratorID: gen, Params: params, Defaulted: true}
	}

	order, err := topoSortColumns(plans)
	if err != nil {
		return nil, err
	}

	out := &TablePlan{Schema: schema, Table: tbl.Name}
	for _, name := range order {
		out.Columns = append(out.Columns, *plans[name])
	}
	return out, nil
}

// planCompositeFKs pre-populates plans for every column of a multi-column
// FK that has no per-column rule, wiring them to a shared FKGroup so the
// pipeline draws the whole tuple from one parent row (spec.md:147: "the
// whole tuple is drawn atomically") instead of defaulting each column
// independently against whichever type-based primitive its data_type
// happens to match. A composite FK with a rule on some but not all of its
// columns can't be made sound — the ruled column and the atomically-drawn
// columns could end up pointing at different parent rows — so that
// configuration is rejected outright rather than silently mis-generated.
func planCompositeFKs(schema string, tbl *schemamodel.Table, rules map[string]RuleSource, plans map[string]*ColumnPlan) error {
	for _, c := range tbl.ForeignKeys() {
		if len(c.Columns) < 2 {
			continue
		}
		ruled := 0
		for _, colName := range c.Columns {
			if _, ok := rules[colName]; ok {
				ruled++
			}
		}
		if ruled == len(c.Columns) {
			continue // every column already has its own explicit rule
		}
		if ruled > 0 {
			return synthgenerr.New(synthgenerr.ConfigError, fmt.Sprintf(
				"%s.%s: composite foreign key %q has an explicit rule for some but not all of its columns (%s); rule all of them or none",
				schema, tbl.Name, c.Name, strings.Join(c.Columns, ", ")))
		}

		group := &FKGroup{
			ConstraintName: c.Name,
			ParentSchema:   c.ReferencedSchema,
			ParentTable:    c.ReferencedTable,
			Columns:        c.Columns,
			ParentColumns:  c.ReferencedColumns,
		}
		for i, colName := range c.Columns {
			col, ok := columnByName(tbl, colName)
			if !ok {
				return synthgenerr.New(synthgenerr.ConfigError, fmt.Sprintf(
					"%s.%s: foreign key %q names unknown column %q", schema, tbl.Name, c.Name, colName))
			}
			plans[colName] = &ColumnPlan{
				Column:              col,
				GeneratorID:         "derive.fk",
				FKGroup:             group,
				FKGroupParentColumn: c.ReferencedColumns[i],
				Defaulted:           true,
			}
		}
	}
	return nil
}

func columnByName(tbl *schemamodel.Table, name string) (schemamodel.Column, bool) {
	for _, col := range tbl.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return schemamodel.Column{}, false
}

// defaultGeneratorFor chooses a generator for a column with no explicit
// rule (spec §4.G): derive.fk for FK-constrained columns, else a
// primitive.* generator picked by SQL data_type.
func defaultGeneratorFor(schema string, tbl *schemamodel.Table, col schemamodel.Column, strict bool) (string, map[string]any, error) {
	for _, c := range tbl.ForeignKeys() {
		if len(c.Columns) == 1 && c.Columns[0] == col.Name {
			return "derive.fk", map[string]any{
				"parent_schema": c.ReferencedSchema,
				"parent_table":  c.ReferencedTable,
				"fk_column":     c.ReferencedColumns[0],
			}, nil
		}
	}

	if strict && !col.IsNullable && col.Default == nil {
		return "", nil, synthgenerr.New(synthgenerr.ValidationError,
			fmt.Sprintf("%s.%s.%s has no rule, is NOT NULL, and has no DEFAULT (fatal under strict)", schema, tbl.Name, col.Name)).
			WithPath(fmt.Sprintf("%s.%s.%s", schema, tbl.Name, col.Name))
	}

	switch dataType(col.Type.DataType) {
	case "boolean", "bool":
		return "primitive.bool", nil, nil
	case "integer", "int", "int2", "int4", "int8", "bigint", "smallint":
		return "primitive.int", nil, nil
	case "real", "double precision", "float4", "float8":
		return "primitive.float", nil, nil
	case "numeric", "decimal":
		return "primitive.decimal.numeric", map[string]any{"min": float64(0), "max": float64(1000), "scale": float64(2)}, nil
	case "uuid":
		return "primitive.uuid.v4", nil, nil
	case "date":
		return "primitive.date", nil, nil
	case "time", "time without time zone", "time with time zone":
		return "primitive.time", nil, nil
	case "timestamp", "timestamp without time zone", "timestamptz", "timestamp with time zone":
		return "primitive.timestamp", nil, nil
	default:
		return "primitive.text.lorem", nil, nil
	}
}

func dataType(t string) string { return strings.ToLower(t) }

// topoSortColumns orders plans so that every derive.* column's
// input_columns and parent_value's fk_value_column precede it, failing on
// a cycle (spec §4.G: "Build a DAG over derived columns; topologically
// sort (fail on cycle)").
func topoSortColumns(plans map[string]*ColumnPlan) ([]string, error) {
	deps := make(map[string][]string, len(plans))
	for name, p := range plans {
		deps[name] = columnDependencies(p, plans)
	}

	var names []string
	for name := range plans {
		names = append(names, name)
	}
	sort.Strings(names)

	visited := make(map[string]int) // 0=unvisited, 1=in-progress, 2=done
	var order []string
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch visited[name] {
		case 2:
			return nil
		case 1:
			return synthgenerr.New(synthgenerr.CycleError, fmt.Sprintf("derive dependency cycle: %s -> %s", strings.Join(path, " -> "), name))
		}
		visited[name] = 1
		for _, dep := range deps[name] {
			if _, ok := plans[dep]; !ok {
				continue // dependency on a column outside this plan (e.g. generated column)
			}
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		visited[name] = 2
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func columnDependencies(p *ColumnPlan, plans map[string]*ColumnPlan) []string {
	if !strings.HasPrefix(p.GeneratorID, "derive.") {
		return nil
	}
	var deps []string
	if raw, ok := p.Params["input_columns"]; ok {
		deps = append(deps, stringSliceParam(raw)...)
	}
	if raw, ok := p.Params["fk_value_column"]; ok {
		if s, ok := raw.(string); ok {
			deps = append(deps, s)
		}
	}
	return deps
}

func stringSliceParam(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Pipeline drives one table's row generation: base/derive/transform, then
// handoff to the Resolver for constraint checking and retry.
type Pipeline struct {
	plan     *TablePlan
	reg      *registry.Registry
	resolver *resolver.TableResolver
	budget   retrybudget.Budget
	gc       gencontext.Context
	tableSeed int64
}

func New(plan *TablePlan, reg *registry.Registry, res *resolver.TableResolver, budget retrybudget.Budget, gc gencontext.Context, tableSeed int64) *Pipeline {
	return &Pipeline{plan: plan, reg: reg, resolver: res, budget: budget, gc: gc, tableSeed: tableSeed}
}

// GenerateRow builds row index rowIndex, retrying through the Resolver
// until it satisfies every declared constraint or the row retry budget is
// exhausted.
func (p *Pipeline) GenerateRow(ctx context.Context, rowIndex int) (*registry.RowContext, error) {
	rowSeed := gencontext.RowSeed(p.tableSeed, rowIndex)

	return p.resolver.ResolveRow(ctx, p.budget, func(attempt int) (*registry.RowContext, error) {
		if attempt > 1 && p.gc.Coverage != nil {
			// A regeneration after a constraint violation: there is no real
			// constraint solver here, just re-rolling and rechecking.
			p.gc.Coverage.RecordHeuristic()
		}
		row := registry.NewRowContext()
		fkTuples := make(map[*FKGroup]map[string]gencontext.Value)
		for _, cp := range p.plan.Columns {
			v, err := p.generateCell(row, cp, rowSeed, attempt, fkTuples)
			if err != nil {
				return nil, err
			}
			row.Set(cp.Column.Name, v)
		}
		return row, nil
	})
}

// generateCell produces one column's value. Columns in a composite FK
// group bypass the generator registry entirely: the whole parent tuple is
// drawn once per group per attempt (cached in fkTuples, keyed by the
// group's identity) and fanned out to each participating column, instead
// of each column independently calling derive.fk and risking a tuple
// stitched together from different parent rows (spec.md:147).
func (p *Pipeline) generateCell(row *registry.RowContext, cp ColumnPlan, rowSeed int64, attempt int, fkTuples map[*FKGroup]map[string]gencontext.Value) (gencontext.Value, error) {
	if cp.FKGroup != nil {
		v, err := p.generateFKGroupCell(cp, fkTuples)
		if err != nil {
			return nil, err
		}
		rng := gencontext.CellRand(rowSeed, cp.Column.Name, attempt)
		return p.applyTransforms(v, cp, rng)
	}

	gen, err := p.reg.Lookup(cp.GeneratorID)
	if err != nil {
		if p.gc.Coverage != nil {
			p.gc.Coverage.RecordUnknownGeneratorID()
		}
		return nil, err
	}

	rng := gencontext.CellRand(rowSeed, cp.Column.Name, attempt)
	gc := p.gc
	if cp.Locale != "" {
		gc = gc.WithLocale(cp.Locale)
	}

	col := registry.Column{
		Schema: p.plan.Schema, Table: p.plan.Table, Name: cp.Column.Name,
		DataType: cp.Column.Type.DataType, IsNullable: cp.Column.IsNullable,
	}

	v, err := gen.Generate(col, cp.Params, row, gc, rng)
	if err != nil {
		return nil, err
	}

	if p.gc.Coverage != nil {
		p.gc.Coverage.RecordGeneratorUse(cp.GeneratorID)
		if cp.Defaulted {
			p.gc.Coverage.RecordFallback()
		}
		for _, tag := range gen.PIITags() {
			p.gc.Coverage.RecordPIITouched(tag)
		}
	}

	return p.applyTransforms(v, cp, rng)
}

func (p *Pipeline) generateFKGroupCell(cp ColumnPlan, fkTuples map[*FKGroup]map[string]gencontext.Value) (gencontext.Value, error) {
	if p.gc.Parents == nil {
		return nil, synthgenerr.New(synthgenerr.FkUnavailable, "no parent pool configured")
	}
	tuple, ok := fkTuples[cp.FKGroup]
	if !ok {
		drawn, found := p.gc.Parents.PickFKTuple(cp.FKGroup.ParentSchema, cp.FKGroup.ParentTable, cp.FKGroup.ParentColumns)
		if !found {
			return nil, synthgenerr.New(synthgenerr.FkUnavailable,
				fmt.Sprintf("no parent rows available in %s.%s", cp.FKGroup.ParentSchema, cp.FKGroup.ParentTable))
		}
		tuple = drawn
		fkTuples[cp.FKGroup] = tuple
	}

	if p.gc.Coverage != nil {
		p.gc.Coverage.RecordGeneratorUse(cp.GeneratorID)
		p.gc.Coverage.RecordFallback()
	}

	return tuple[cp.FKGroupParentColumn], nil
}

func (p *Pipeline) applyTransforms(v gencontext.Value, cp ColumnPlan, rng *rand.Rand) (gencontext.Value, error) {
	var err error
	for _, tr := range cp.Transforms {
		transform, terr := p.reg.LookupTransform(tr.ID)
		if terr != nil {
			return nil, terr
		}
		v, err = transform.Apply(v, tr.Params, rng)
		if err != nil {
			return nil, err
		}
		if p.gc.Coverage != nil {
			p.gc.Coverage.RecordTransformUse(tr.ID)
		}
	}

	return v, nil
}
