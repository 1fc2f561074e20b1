package engine_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synthforge/synthgen/pkg/engine"
	"github.com/synthforge/synthgen/pkg/generators"
	"github.com/synthforge/synthgen/pkg/plan"
	"github.com/synthforge/synthgen/pkg/schemamodel"
)

func fixtureDB() *schemamodel.Database {
	db := &schemamodel.Database{
		SchemaVersion: schemamodel.SchemaContractVersion,
		Engine:        "postgres",
		Schemas: []schemamodel.Schema{{
			Name: "public",
			Tables: []schemamodel.Table{
				{
					Name: "customers",
					Columns: []schemamodel.Column{
						{Ordinal: 1, Name: "id", Type: schemamodel.ColumnType{DataType: "uuid"}, IsNullable: false},
						{Ordinal: 2, Name: "name", Type: schemamodel.ColumnType{DataType: "text"}, IsNullable: false},
					},
					Constraints: []schemamodel.Constraint{
						{Kind: schemamodel.ConstraintPrimaryKey, Name: "pk_customers", Columns: []string{"id"}},
					},
				},
				{
					Name: "orders",
					Columns: []schemamodel.Column{
						{Ordinal: 1, Name: "id", Type: schemamodel.ColumnType{DataType: "uuid"}, IsNullable: false},
						{Ordinal: 2, Name: "customer_id", Type: schemamodel.ColumnType{DataType: "uuid"}, IsNullable: false},
						{Ordinal: 3, Name: "qty", Type: schemamodel.ColumnType{DataType: "integer"}, IsNullable: false},
					},
					Constraints: []schemamodel.Constraint{
						{Kind: schemamodel.ConstraintPrimaryKey, Name: "pk_orders", Columns: []string{"id"}},
						{
							Kind: schemamodel.ConstraintForeignKey, Name: "fk_customer", Columns: []string{"customer_id"},
							ReferencedSchema: "public", ReferencedTable: "customers", ReferencedColumns: []string{"id"},
						},
						{Kind: schemamodel.ConstraintCheck, Name: "chk_qty", Expression: "qty > 0"},
					},
				},
			},
		}},
	}
	schemamodel.Finalize(db)
	return db
}

func fixturePlan(db *schemamodel.Database) *plan.Plan {
	return &plan.Plan{
		PlanVersion: plan.PlanContractVersion,
		Seed:        7,
		SchemaRef:   plan.SchemaRef{SchemaVersion: db.SchemaVersion, Engine: db.Engine},
		Global:      plan.GlobalOptions{Strict: false},
		Targets:     []plan.Target{{Schema: "public", Table: "orders", Rows: 5}},
		Rules: []plan.Rule{
			{Type: "column_generator", Schema: "public", Table: "orders", Column: "id", Generator: plan.GeneratorRef{ID: "primitive.uuid.v4"}},
			{Type: "column_generator", Schema: "public", Table: "orders", Column: "qty", Generator: plan.GeneratorRef{ID: "primitive.int.range", Params: map[string]any{"min": float64(-5), "max": float64(5)}}},
			{Type: "column_generator", Schema: "public", Table: "customers", Column: "id", Generator: plan.GeneratorRef{ID: "primitive.uuid.v4"}},
			{Type: "column_generator", Schema: "public", Table: "customers", Column: "name", Generator: plan.GeneratorRef{ID: "primitive.text.lorem"}},
		},
	}
}

func TestRunGeneratesTargetAndAutoGeneratedParent(t *testing.T) {
	db := fixtureDB()
	p := fixturePlan(db)
	reg := generators.NewDefaultRegistry()
	outDir := t.TempDir()

	opts := engine.DefaultOptions(outDir)
	opts.AutoGenerateParents = true

	report, err := engine.Run(context.Background(), opts, p, db, reg)
	require.NoError(t, err)
	require.Equal(t, engine.StatusOK, report.Status)
	require.Len(t, report.Tables, 2)

	names := map[string]bool{}
	var ordersRows int64
	for _, tr := range report.Tables {
		names[tr.Table] = true
		if tr.Table == "orders" {
			ordersRows = tr.RowsWritten
		}
	}
	require.True(t, names["customers"])
	require.True(t, names["orders"])
	require.Equal(t, int64(5), ordersRows)

	data, err := os.ReadFile(outDir + "/public.orders.csv")
	require.NoError(t, err)
	require.Contains(t, string(data), "id,customer_id,qty\n")
}

func TestRunFailsUnderStrictWhenParentNotTargetedAndNotAutoGenerated(t *testing.T) {
	db := fixtureDB()
	p := fixturePlan(db)
	p.Global.Strict = true
	reg := generators.NewDefaultRegistry()

	opts := engine.DefaultOptions(t.TempDir())
	opts.Strict = true
	opts.AutoGenerateParents = false

	report, err := engine.Run(context.Background(), opts, p, db, reg)
	require.Error(t, err)
	require.Equal(t, engine.StatusFailed, report.Status)
}

func TestRunIsDeterministicAcrossRepeatedRuns(t *testing.T) {
	db := fixtureDB()
	p := fixturePlan(db)
	reg := generators.NewDefaultRegistry()

	run := func() []byte {
		outDir := t.TempDir()
		opts := engine.DefaultOptions(outDir)
		opts.AutoGenerateParents = true
		_, err := engine.Run(context.Background(), opts, p, db, reg)
		require.NoError(t, err)
		data, err := os.ReadFile(outDir + "/public.orders.csv")
		require.NoError(t, err)
		return data
	}

	a := run()
	b := run()
	require.Equal(t, a, b)
}

func TestRunReturnsFailedReportOnStructuralValidationFailure(t *testing.T) {
	db := fixtureDB()
	p := fixturePlan(db)
	p.PlanVersion = "bogus"
	reg := generators.NewDefaultRegistry()

	report, err := engine.Run(context.Background(), engine.DefaultOptions(t.TempDir()), p, db, reg)
	require.Error(t, err)
	require.Equal(t, engine.StatusFailed, report.Status)
}
