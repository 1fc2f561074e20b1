// Package engine is the Engine Orchestrator (spec §4.I): it wires the
// Plan Validator, the FK toposort, the Row Pipeline, the Resolver, and the
// Streaming CSV Writer into one run, always finishing with a written
// report. Grounded on the teacher-adjacent seeder's overall Seed() shape
// (validate inputs -> create schema objects -> generate in dependency
// order -> publish) generalized from an INSERT-emitting pipeline into a
// generate-to-CSV one.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/synthforge/synthgen/internal/logging"
	"github.com/synthforge/synthgen/internal/retrybudget"
	"github.com/synthforge/synthgen/pkg/csvwriter"
	"github.com/synthforge/synthgen/pkg/fkgraph"
	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/plan"
	"github.com/synthforge/synthgen/pkg/registry"
	"github.com/synthforge/synthgen/pkg/resolver"
	"github.com/synthforge/synthgen/pkg/rowpipeline"
	"github.com/synthforge/synthgen/pkg/schemamodel"
	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// DefaultParentRows is the row count an auto-generated, non-targeted
// parent table receives (spec §4.I step 2).
const DefaultParentRows = 100

// Options is the engine's configuration object (spec §6's "Engine option
// surface").
type Options struct {
	OutDir              string
	Strict              bool
	MaxAttemptsCell     int
	MaxAttemptsRow      int
	MaxAttemptsTable    int
	AutoGenerateParents bool
	ConstraintPolicy    resolver.ConstraintPolicy
	Logger              *zap.Logger
}

// DefaultOptions fills in the budgets and policy spec §9 assumes when a
// caller doesn't name them explicitly. The logger defaults to zap.NewNop()
// so callers that don't care about progress output don't have to build one.
func DefaultOptions(outDir string) Options {
	return Options{
		OutDir:           outDir,
		MaxAttemptsCell:  5,
		MaxAttemptsRow:   20,
		MaxAttemptsTable: 2000,
		ConstraintPolicy: resolver.PolicyEnforce,
		Logger:           zap.NewNop(),
	}
}

// Run executes one full generation pass: validate, schedule, generate each
// table in FK order, and always return a Report — even on a validation
// failure, a per-table abort, or cancellation (spec §4.I step 5). The
// named result is recovered from panics inside generation so malformed
// generator code can never prevent the report from being written.
func Run(ctx context.Context, opts Options, p *plan.Plan, db *schemamodel.Database, reg *registry.Registry) (report *Report, err error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	start := time.Now()
	coverage := newCoverageAccumulator()
	warnings := newWarningAccumulator()
	report = &Report{
		GeneratorUsage: coverage.generatorUsage,
		TransformUsage: coverage.transformUsage,
		WarningsByCode: warnings.byCode,
	}

	log.Info("generation run starting", zap.Int("target_count", len(p.Targets)), zap.Int64("seed", p.Seed), zap.Bool("strict", opts.Strict))

	defer func() {
		if r := recover(); r != nil {
			report.Status = StatusFailed
			report.Error = fmt.Sprintf("panic: %v", r)
			err = synthgenerr.New(synthgenerr.InvariantViolation, report.Error)
		}
		finalizeReport(report, coverage, start)
		log.Info("generation run finished",
			zap.String("status", string(report.Status)),
			zap.Int64("elapsed_millis", report.ElapsedMillis),
			zap.Int("fallback_count", report.FallbackCount),
			zap.Int("heuristic_count", report.HeuristicCount),
		)
		if opts.OutDir != "" {
			if werr := writeReportJSON(report, opts.OutDir+"/generation_report.json"); werr != nil {
				log.Error("failed to write generation_report.json", zap.Error(werr))
			}
		}
	}()

	if diags := plan.ValidateStructural(p); len(diags) > 0 {
		report.Status = StatusFailed
		report.Error = fmt.Sprintf("plan failed structural validation with %d diagnostic(s): %s", len(diags), diags[0].Message)
		log.Error("structural validation failed", zap.Int("diagnostic_count", len(diags)), zap.String("first", diags[0].Message))
		return report, synthgenerr.New(synthgenerr.ValidationError, report.Error)
	}
	diags, validated := plan.ValidateSchemaAware(p, db, reg)
	if len(diags) > 0 {
		report.Status = StatusFailed
		report.Error = fmt.Sprintf("plan failed schema-aware validation with %d diagnostic(s): %s", len(diags), diags[0].Message)
		log.Error("schema-aware validation failed", zap.Int("diagnostic_count", len(diags)), zap.String("first", diags[0].Message))
		return report, synthgenerr.New(synthgenerr.ValidationError, report.Error)
	}

	schedule, rowCounts, err := buildSchedule(validated.Plan, db, opts, warnings)
	if err != nil {
		report.Status = StatusFailed
		report.Error = err.Error()
		log.Error("failed to build generation schedule", zap.Error(err))
		return report, err
	}

	tablePlans := make(map[fkgraph.Node]*rowpipeline.TablePlan, len(schedule))
	for _, node := range schedule {
		tbl := db.FindTable(node.Schema, node.Table)
		if tbl == nil {
			continue
		}
		rules := ruleSourcesForTable(validated.Plan, node.Schema, node.Table)
		tp, err := rowpipeline.BuildTablePlan(node.Schema, tbl, rules, opts.Strict)
		if err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			log.Error("failed to build table plan", append(logging.TableScope(node.Schema, node.Table), zap.Error(err))...)
			return report, err
		}
		tablePlans[node] = tp
	}

	if opts.OutDir != "" {
		resolvedPlan := resolvedPlanFrom(validated.Plan, schedule, tablePlans)
		if err := plan.WriteJSON(resolvedPlan, opts.OutDir+"/resolved_plan.json"); err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			log.Error("failed to write resolved_plan.json", zap.Error(err))
			return report, err
		}
	}

	pool := NewParentPool(validated.Plan.Seed)
	gc := gencontext.Context{
		Seed: validated.Plan.Seed, Locale: validated.Plan.Global.Locale, Strict: opts.Strict,
		Parents: pool, Coverage: coverage, Warnings: warnings,
	}

	for _, node := range schedule {
		if err := ctx.Err(); err != nil {
			report.Status = StatusCancelled
			log.Warn("generation run cancelled", append(logging.TableScope(node.Schema, node.Table), zap.Error(err))...)
			return report, nil
		}

		tbl := db.FindTable(node.Schema, node.Table)
		if tbl == nil {
			continue // an ancestor whose schema disappeared since planning; skip rather than fail the run
		}

		log.Info("generating table", append(logging.TableScope(node.Schema, node.Table), zap.Int("rows_requested", rowCounts[node]))...)
		tr, err := generateTable(ctx, node, tbl, rowCounts[node], tablePlans[node], validated.Plan, reg, gc, opts, pool, coverage)
		if err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			report.Tables = append(report.Tables, tr)
			log.Error("table generation failed", append(logging.TableScope(node.Schema, node.Table), zap.Error(err))...)
			return report, err
		}
		log.Info("table generated", append(logging.TableScope(node.Schema, node.Table),
			zap.Int64("rows_written", tr.RowsWritten), zap.Int("rows_skipped", tr.RowsSkipped))...)
		report.Tables = append(report.Tables, tr)
	}

	report.Status = StatusOK
	return report, nil
}

func finalizeReport(report *Report, coverage *coverageAccumulator, start time.Time) {
	report.FallbackCount = coverage.fallbackCount
	report.HeuristicCount = coverage.heuristicCount
	report.UnknownGeneratorCount = coverage.unknownGenCount
	report.PIIColumnsTouched = coverage.piiColumnsTouched()
	report.ElapsedMillis = time.Since(start).Milliseconds()
	if report.Status == "" {
		report.Status = StatusFailed
	}
}

// buildSchedule resolves the transitive FK ancestor set of every target,
// decides the unreferenced-parent policy for ancestors outside the target
// list (spec §4.I step 2), and returns a toposorted, filtered node order
// plus each node's row count.
func buildSchedule(p *plan.Plan, db *schemamodel.Database, opts Options, warnings *warningAccumulator) ([]fkgraph.Node, map[fkgraph.Node]int, error) {
	graph := fkgraph.Build(db)

	rowCounts := make(map[fkgraph.Node]int, len(p.Targets))
	targets := make(map[fkgraph.Node]bool, len(p.Targets))
	for _, t := range p.Targets {
		n := fkgraph.Node{Schema: t.Schema, Table: t.Table}
		targets[n] = true
		rowCounts[n] = t.Rows
	}

	scheduled := make(map[fkgraph.Node]bool, len(targets))
	for n := range targets {
		scheduled[n] = true
	}

	var walk func(n fkgraph.Node) error
	visiting := make(map[fkgraph.Node]bool)
	walk = func(n fkgraph.Node) error {
		if visiting[n] {
			return nil
		}
		visiting[n] = true
		for _, parent := range graph.Parents(n) {
			if scheduled[parent] {
				if err := walk(parent); err != nil {
					return err
				}
				continue
			}
			if opts.AutoGenerateParents {
				scheduled[parent] = true
				rowCounts[parent] = DefaultParentRows
				if err := walk(parent); err != nil {
					return err
				}
				continue
			}
			if opts.Strict {
				return synthgenerr.New(synthgenerr.ConfigError,
					fmt.Sprintf("%s is referenced by an FK from %s but is not targeted and auto_generate_parents is off (fatal under strict)", parent, n))
			}
			warnings.Warn(string(synthgenerr.FkUnavailable), parent.Schema, parent.Table, "")
		}
		return nil
	}
	for n := range targets {
		if err := walk(n); err != nil {
			return nil, nil, err
		}
	}

	if opts.Strict {
		if _, report := graph.TopoSort(); report.HasCycles() {
			for _, comp := range report.Components {
				for _, n := range comp {
					if scheduled[n] {
						return nil, nil, synthgenerr.New(synthgenerr.CycleError, fmt.Sprintf("FK cycle involving %s (fatal under strict)", n))
					}
				}
			}
		}
	}

	order, _ := graph.TopoSort()
	var out []fkgraph.Node
	for _, n := range order {
		if scheduled[n] {
			out = append(out, n)
		}
	}
	return out, rowCounts, nil
}

func ruleSourcesForTable(p *plan.Plan, schema, table string) map[string]rowpipeline.RuleSource {
	out := make(map[string]rowpipeline.RuleSource)
	for _, r := range p.Rules {
		if r.Schema != schema || r.Table != table {
			continue
		}
		var transforms []rowpipeline.TransformPlan
		for _, t := range r.Transforms {
			transforms = append(transforms, rowpipeline.TransformPlan{ID: t.ID, Params: t.Params})
		}
		out[r.Column] = rowpipeline.RuleSource{
			GeneratorID: r.Generator.ID, Params: r.Generator.Params,
			Locale: r.Generator.Locale, Transforms: transforms,
		}
	}
	return out
}

// retryBudgetFor maps the engine's option surface onto the row-level
// budget pkg/resolver actually enforces. The spec names per-cell, per-row,
// and per-table budgets separately; this implementation collapses
// cell-level retry into row-level retry (every column already gets a
// fresh, independent RNG per row attempt via gencontext.CellRand, which
// has the same effect as retrying just the failing cells), and enforces
// the per-table budget in generateTable as an aggregate cap on
// regenerate-and-recheck attempts across the whole table.
func retryBudgetFor(opts Options) retrybudget.Budget {
	maxRow := opts.MaxAttemptsRow
	if maxRow < 1 {
		maxRow = opts.MaxAttemptsCell
	}
	if maxRow < 1 {
		maxRow = 1
	}
	return retrybudget.Budget{MaxCell: opts.MaxAttemptsCell, MaxRow: maxRow, MaxTable: opts.MaxAttemptsTable}
}

// writeReportJSON persists generation_report.json (spec §6's run directory
// contract), written unconditionally by Run's finalizer so a failed or
// cancelled run still leaves a report behind.
func writeReportJSON(report *Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return synthgenerr.Wrap(synthgenerr.Io, "marshaling generation report", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return synthgenerr.Wrap(synthgenerr.Io, fmt.Sprintf("writing report file %s", path), err)
	}
	return nil
}

// resolvedPlanFrom materializes resolved_plan.json (spec §6: "plan after
// default-generator resolution and parameter normalization, every
// generator as object form"): one rule per generated column across every
// scheduled table, including columns rowpipeline.BuildTablePlan defaulted
// because the input plan named no rule for them.
func resolvedPlanFrom(p *plan.Plan, schedule []fkgraph.Node, tablePlans map[fkgraph.Node]*rowpipeline.TablePlan) *plan.Plan {
	resolved := *p
	resolved.Rules = nil
	resolved.RulesUnsupported = nil
	for _, node := range schedule {
		tp, ok := tablePlans[node]
		if !ok {
			continue
		}
		for _, cp := range tp.Columns {
			var transforms []plan.TransformRef
			for _, t := range cp.Transforms {
				transforms = append(transforms, plan.TransformRef{ID: t.ID, Params: t.Params})
			}
			resolved.Rules = append(resolved.Rules, plan.Rule{
				Type:   "column_generator",
				Schema: node.Schema,
				Table:  node.Table,
				Column: cp.Column.Name,
				Generator: plan.GeneratorRef{
					ID:     cp.GeneratorID,
					Locale: cp.Locale,
					Params: cp.Params,
				},
				Transforms: transforms,
			})
		}
	}
	return &resolved
}

// outputColumns drops stored-generated columns: Postgres computes their
// values itself, and this module has no expression evaluator to reproduce
// them, so they are left out of the CSV entirely rather than emitted as a
// misleading empty (null) field.
func outputColumns(tbl *schemamodel.Table) []schemamodel.Column {
	out := make([]schemamodel.Column, 0, len(tbl.Columns))
	for _, c := range tbl.Columns {
		if c.Generated == nil {
			out = append(out, c)
		}
	}
	return out
}

func generateTable(
	ctx context.Context, node fkgraph.Node, tbl *schemamodel.Table, rows int, tablePlan *rowpipeline.TablePlan,
	p *plan.Plan, reg *registry.Registry, gc gencontext.Context, opts Options,
	pool *ParentPool, coverage *coverageAccumulator,
) (TableReport, error) {
	tr := TableReport{Schema: node.Schema, Table: node.Table, RowsRequested: rows}

	res := resolver.NewTableResolver(node.Schema, tbl, opts.ConstraintPolicy, gc.Parents, gc.Warnings)
	budget := retryBudgetFor(opts)
	tableSeed := gencontext.TableSeed(p.Seed, node.Schema, node.Table)
	pipe := rowpipeline.New(tablePlan, reg, res, budget, gc, tableSeed)

	writer, err := csvwriter.Open(opts.OutDir, node.Schema, node.Table, outputColumns(tbl))
	if err != nil {
		return tr, err
	}
	defer writer.Close()

	var pkColumns []string
	if pk := tbl.PrimaryKey(); pk != nil {
		pkColumns = pk.Columns
	}

	heuristicBefore := coverage.heuristicCount
	var published []map[string]gencontext.Value

	for i := 0; i < rows; i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		if coverage.heuristicCount-heuristicBefore > opts.MaxAttemptsTable {
			if opts.Strict {
				return tr, synthgenerr.New(synthgenerr.UniqueExhausted, fmt.Sprintf("%s exceeded its table-level retry budget", node))
			}
			break
		}

		row, err := pipe.GenerateRow(ctx, i)
		if err != nil {
			if opts.Strict {
				return tr, err
			}
			tr.RowsSkipped++
			continue
		}
		snapshot := row.Snapshot()
		if err := writer.WriteRow(snapshot); err != nil {
			return tr, err
		}
		published = append(published, snapshot)
	}

	pool.Publish(node.Schema, node.Table, pkColumns, published)

	tr.RowsWritten = writer.RowsWritten()
	if err := writer.Flush(); err == nil {
		if bytes, err := writer.BytesWritten(); err == nil {
			tr.BytesWritten = bytes
		}
	}
	return tr, nil
}
