package rowpipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synthforge/synthgen/internal/retrybudget"
	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/generators"
	"github.com/synthforge/synthgen/pkg/registry"
	"github.com/synthforge/synthgen/pkg/resolver"
	"github.com/synthforge/synthgen/pkg/rowpipeline"
	"github.com/synthforge/synthgen/pkg/schemamodel"
)

func ordersTable() *schemamodel.Table {
	return &schemamodel.Table{
		Name: "orders",
		Columns: []schemamodel.Column{
			{Ordinal: 1, Name: "id", Type: schemamodel.ColumnType{DataType: "uuid"}, IsNullable: false},
			{Ordinal: 2, Name: "customer_id", Type: schemamodel.ColumnType{DataType: "uuid"}, IsNullable: false},
			{Ordinal: 3, Name: "qty", Type: schemamodel.ColumnType{DataType: "integer"}, IsNullable: false},
			{Ordinal: 4, Name: "unit_price", Type: schemamodel.ColumnType{DataType: "numeric"}, IsNullable: false},
			{Ordinal: 5, Name: "total", Type: schemamodel.ColumnType{DataType: "numeric"}, IsNullable: true},
		},
		Constraints: []schemamodel.Constraint{
			{Kind: schemamodel.ConstraintPrimaryKey, Name: "pk_orders", Columns: []string{"id"}},
			{
				Kind: schemamodel.ConstraintForeignKey, Name: "fk_customer", Columns: []string{"customer_id"},
				ReferencedSchema: "public", ReferencedTable: "customers", ReferencedColumns: []string{"id"},
			},
		},
	}
}

type stubPool struct{ key gencontext.Value }

func (s stubPool) PickFK(string, string, string) (gencontext.Value, bool) { return s.key, true }
func (stubPool) PickFKTuple(string, string, []string) (map[string]gencontext.Value, bool) {
	return nil, false
}
func (stubPool) LookupParent(string, string, []gencontext.Value, string) (gencontext.Value, bool) {
	return nil, true
}
func (stubPool) FKExists(string, string, []string, []gencontext.Value) bool { return true }

func compositeFKOrdersTable() *schemamodel.Table {
	return &schemamodel.Table{
		Name: "line_items",
		Columns: []schemamodel.Column{
			{Ordinal: 1, Name: "id", Type: schemamodel.ColumnType{DataType: "uuid"}, IsNullable: false},
			{Ordinal: 2, Name: "order_id", Type: schemamodel.ColumnType{DataType: "uuid"}, IsNullable: false},
			{Ordinal: 3, Name: "order_region", Type: schemamodel.ColumnType{DataType: "text"}, IsNullable: false},
		},
		Constraints: []schemamodel.Constraint{
			{Kind: schemamodel.ConstraintPrimaryKey, Name: "pk_line_items", Columns: []string{"id"}},
			{
				Kind: schemamodel.ConstraintForeignKey, Name: "fk_order", Columns: []string{"order_id", "order_region"},
				ReferencedSchema: "public", ReferencedTable: "orders", ReferencedColumns: []string{"id", "region"},
			},
		},
	}
}

// stubTuplePool hands back a fixed parent tuple from PickFKTuple, so a test
// can assert every column of a composite FK group fans out from the SAME
// draw instead of each column independently re-sampling.
type stubTuplePool struct{ tuple map[string]gencontext.Value }

func (stubTuplePool) PickFK(string, string, string) (gencontext.Value, bool) { return nil, false }
func (p stubTuplePool) PickFKTuple(string, string, []string) (map[string]gencontext.Value, bool) {
	return p.tuple, true
}
func (stubTuplePool) LookupParent(string, string, []gencontext.Value, string) (gencontext.Value, bool) {
	return nil, true
}
func (stubTuplePool) FKExists(string, string, []string, []gencontext.Value) bool { return true }

func TestBuildTablePlanOrdersDeriveAfterItsInputs(t *testing.T) {
	tbl := ordersTable()
	rules := map[string]rowpipeline.RuleSource{
		"qty":        {GeneratorID: "primitive.int.range", Params: map[string]any{"min": float64(1), "max": float64(10)}},
		"unit_price": {GeneratorID: "primitive.decimal.numeric", Params: map[string]any{"min": float64(1), "max": float64(100)}},
		"total": {
			GeneratorID: "derive.money_total",
			Params:      map[string]any{"input_columns": []string{"qty", "unit_price"}},
		},
	}
	plan, err := rowpipeline.BuildTablePlan("public", tbl, rules, false)
	require.NoError(t, err)

	pos := make(map[string]int, len(plan.Columns))
	for i, cp := range plan.Columns {
		pos[cp.Column.Name] = i
	}
	require.Less(t, pos["qty"], pos["total"])
	require.Less(t, pos["unit_price"], pos["total"])
}

func TestBuildTablePlanDefaultsFKColumnToDeriveFK(t *testing.T) {
	tbl := ordersTable()
	plan, err := rowpipeline.BuildTablePlan("public", tbl, map[string]rowpipeline.RuleSource{
		"qty":        {GeneratorID: "primitive.int"},
		"unit_price": {GeneratorID: "primitive.decimal.numeric"},
	}, false)
	require.NoError(t, err)

	var customerPlan *rowpipeline.ColumnPlan
	for i := range plan.Columns {
		if plan.Columns[i].Column.Name == "customer_id" {
			customerPlan = &plan.Columns[i]
		}
	}
	require.NotNil(t, customerPlan)
	require.Equal(t, "derive.fk", customerPlan.GeneratorID)
	require.True(t, customerPlan.Defaulted)
}

func TestBuildTablePlanDefaultsCompositeFKToSharedFKGroup(t *testing.T) {
	tbl := compositeFKOrdersTable()
	plan, err := rowpipeline.BuildTablePlan("public", tbl, map[string]rowpipeline.RuleSource{}, false)
	require.NoError(t, err)

	var orderID, orderRegion *rowpipeline.ColumnPlan
	for i := range plan.Columns {
		switch plan.Columns[i].Column.Name {
		case "order_id":
			orderID = &plan.Columns[i]
		case "order_region":
			orderRegion = &plan.Columns[i]
		}
	}
	require.NotNil(t, orderID)
	require.NotNil(t, orderRegion)
	require.NotNil(t, orderID.FKGroup)
	require.Same(t, orderID.FKGroup, orderRegion.FKGroup)
	require.Equal(t, "id", orderID.FKGroupParentColumn)
	require.Equal(t, "region", orderRegion.FKGroupParentColumn)
	require.Equal(t, "derive.fk", orderID.GeneratorID)
	require.True(t, orderID.Defaulted)
}

func TestBuildTablePlanRejectsPartiallyRuledCompositeFK(t *testing.T) {
	tbl := compositeFKOrdersTable()
	rules := map[string]rowpipeline.RuleSource{
		"order_id": {GeneratorID: "primitive.uuid.v4"},
	}
	_, err := rowpipeline.BuildTablePlan("public", tbl, rules, false)
	require.Error(t, err)
}

func TestPipelineGenerateRowDrawsCompositeFKTupleAtomically(t *testing.T) {
	tbl := compositeFKOrdersTable()
	rules := map[string]rowpipeline.RuleSource{
		"id": {GeneratorID: "primitive.uuid.v4"},
	}
	plan, err := rowpipeline.BuildTablePlan("public", tbl, rules, false)
	require.NoError(t, err)

	reg := generators.NewDefaultRegistry()
	pool := stubTuplePool{tuple: map[string]gencontext.Value{"id": "order-9", "region": "eu"}}
	res := resolver.NewTableResolver("public", tbl, resolver.PolicyEnforce, pool, nil)
	gc := gencontext.Context{Seed: 42, Parents: pool}
	pipe := rowpipeline.New(plan, reg, res, retrybudget.Budget{MaxRow: 5}, gc, gencontext.TableSeed(42, "public", "line_items"))

	row, err := pipe.GenerateRow(context.Background(), 0)
	require.NoError(t, err)
	orderID, ok := row.Get("order_id")
	require.True(t, ok)
	require.Equal(t, "order-9", orderID)
	region, ok := row.Get("order_region")
	require.True(t, ok)
	require.Equal(t, "eu", region)
}

func TestBuildTablePlanDetectsDeriveCycle(t *testing.T) {
	tbl := &schemamodel.Table{
		Name: "t",
		Columns: []schemamodel.Column{
			{Name: "a", Type: schemamodel.ColumnType{DataType: "text"}, IsNullable: true},
			{Name: "b", Type: schemamodel.ColumnType{DataType: "text"}, IsNullable: true},
		},
	}
	rules := map[string]rowpipeline.RuleSource{
		"a": {GeneratorID: "derive.email_from_name", Params: map[string]any{"input_columns": []string{"b"}}},
		"b": {GeneratorID: "derive.email_from_name", Params: map[string]any{"input_columns": []string{"a"}}},
	}
	_, err := rowpipeline.BuildTablePlan("public", tbl, rules, false)
	require.Error(t, err)
}

func TestBuildTablePlanFatalUnderStrictForMissingNotNullRule(t *testing.T) {
	tbl := &schemamodel.Table{
		Name: "t",
		Columns: []schemamodel.Column{
			{Name: "code", Type: schemamodel.ColumnType{DataType: "text"}, IsNullable: false},
		},
	}
	_, err := rowpipeline.BuildTablePlan("public", tbl, map[string]rowpipeline.RuleSource{}, true)
	require.Error(t, err)
}

func TestBuildTablePlanDefaultsMissingRuleNonStrict(t *testing.T) {
	tbl := &schemamodel.Table{
		Name: "t",
		Columns: []schemamodel.Column{
			{Name: "code", Type: schemamodel.ColumnType{DataType: "text"}, IsNullable: false},
		},
	}
	plan, err := rowpipeline.BuildTablePlan("public", tbl, map[string]rowpipeline.RuleSource{}, false)
	require.NoError(t, err)
	require.Equal(t, "primitive.text.lorem", plan.Columns[0].GeneratorID)
	require.True(t, plan.Columns[0].Defaulted)
}

func TestPipelineGenerateRowProducesConstraintSatisfyingRow(t *testing.T) {
	tbl := ordersTable()
	rules := map[string]rowpipeline.RuleSource{
		"id":          {GeneratorID: "primitive.uuid.v4"},
		"customer_id": {GeneratorID: "derive.fk", Params: map[string]any{"parent_schema": "public", "parent_table": "customers", "fk_column": "id"}},
		"qty":         {GeneratorID: "primitive.int.range", Params: map[string]any{"min": float64(1), "max": float64(10)}},
		"unit_price":  {GeneratorID: "primitive.decimal.numeric", Params: map[string]any{"min": float64(1), "max": float64(100)}},
		"total":       {GeneratorID: "derive.money_total", Params: map[string]any{"input_columns": []string{"qty", "unit_price"}}},
	}
	plan, err := rowpipeline.BuildTablePlan("public", tbl, rules, false)
	require.NoError(t, err)

	reg := generators.NewDefaultRegistry()
	res := resolver.NewTableResolver("public", tbl, resolver.PolicyEnforce, stubPool{key: "customer-1"}, nil)
	gc := gencontext.Context{Seed: 42, Parents: stubPool{key: "customer-1"}}
	pipe := rowpipeline.New(plan, reg, res, retrybudget.Budget{MaxRow: 5}, gc, gencontext.TableSeed(42, "public", "orders"))

	row, err := pipe.GenerateRow(context.Background(), 0)
	require.NoError(t, err)
	v, ok := row.Get("customer_id")
	require.True(t, ok)
	require.Equal(t, "customer-1", v)
}

func TestPipelineGenerateRowIsDeterministicForSameSeed(t *testing.T) {
	tbl := ordersTable()
	rules := map[string]rowpipeline.RuleSource{
		"id":          {GeneratorID: "primitive.uuid.v4"},
		"customer_id": {GeneratorID: "derive.fk", Params: map[string]any{"parent_schema": "public", "parent_table": "customers", "fk_column": "id"}},
		"qty":         {GeneratorID: "primitive.int.range", Params: map[string]any{"min": float64(1), "max": float64(10)}},
		"unit_price":  {GeneratorID: "primitive.decimal.numeric", Params: map[string]any{"min": float64(1), "max": float64(100)}},
		"total":       {GeneratorID: "derive.money_total", Params: map[string]any{"input_columns": []string{"qty", "unit_price"}}},
	}
	plan, err := rowpipeline.BuildTablePlan("public", tbl, rules, false)
	require.NoError(t, err)

	reg := generators.NewDefaultRegistry()
	run := func() *registry.RowContext {
		res := resolver.NewTableResolver("public", tbl, resolver.PolicyEnforce, stubPool{key: "customer-1"}, nil)
		gc := gencontext.Context{Seed: 42, Parents: stubPool{key: "customer-1"}}
		pipe := rowpipeline.New(plan, reg, res, retrybudget.Budget{MaxRow: 5}, gc, gencontext.TableSeed(42, "public", "orders"))
		row, err := pipe.GenerateRow(context.Background(), 0)
		require.NoError(t, err)
		return row
	}
	a := run()
	b := run()
	require.Equal(t, a.Snapshot(), b.Snapshot())
}
