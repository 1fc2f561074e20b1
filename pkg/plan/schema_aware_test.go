package plan_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synthforge/synthgen/pkg/generators"
	"github.com/synthforge/synthgen/pkg/plan"
	"github.com/synthforge/synthgen/pkg/schemamodel"
)

func testDatabase() *schemamodel.Database {
	db := &schemamodel.Database{
		SchemaVersion: "0.2",
		Engine:        "postgres",
		Schemas: []schemamodel.Schema{
			{
				Name: "public",
				Tables: []schemamodel.Table{
					{
						Name: "users",
						Kind: schemamodel.TableKindTable,
						Columns: []schemamodel.Column{
							{Ordinal: 1, Name: "id", Type: schemamodel.ColumnType{DataType: "uuid"}},
							{Ordinal: 2, Name: "age", Type: schemamodel.ColumnType{DataType: "integer"}},
							{Ordinal: 3, Name: "email", Type: schemamodel.ColumnType{DataType: "text"}},
						},
					},
				},
			},
		},
	}
	schemamodel.Finalize(db)
	return db
}

func schemaAwarePlan(db *schemamodel.Database) *plan.Plan {
	return &plan.Plan{
		PlanVersion: plan.PlanContractVersion,
		Seed:        1,
		SchemaRef:   plan.SchemaRef{SchemaVersion: db.SchemaVersion, Engine: db.Engine},
		Targets:     []plan.Target{{Schema: "public", Table: "users", Rows: 5}},
		Rules: []plan.Rule{
			{
				Type:      "column_generator",
				Schema:    "public",
				Table:     "users",
				Column:    "id",
				Generator: plan.GeneratorRef{ID: "primitive.uuid.v4"},
			},
			{
				Type:      "column_generator",
				Schema:    "public",
				Table:     "users",
				Column:    "age",
				Generator: plan.GeneratorRef{ID: "primitive.int.range", Params: map[string]any{"min": 0.0, "max": 120.0}},
			},
		},
	}
}

func TestValidateSchemaAwareAcceptsValidPlan(t *testing.T) {
	db := testDatabase()
	reg := generators.NewDefaultRegistry()
	p := schemaAwarePlan(db)

	diags, vp := plan.ValidateSchemaAware(p, db, reg)
	require.Empty(t, diags)
	require.NotNil(t, vp)
}

func TestValidateSchemaAwareRejectsUnknownTable(t *testing.T) {
	db := testDatabase()
	reg := generators.NewDefaultRegistry()
	p := schemaAwarePlan(db)
	p.Targets[0].Table = "does_not_exist"

	diags, vp := plan.ValidateSchemaAware(p, db, reg)
	require.NotEmpty(t, diags)
	require.Nil(t, vp)
}

func TestValidateSchemaAwareRejectsUnknownColumn(t *testing.T) {
	db := testDatabase()
	reg := generators.NewDefaultRegistry()
	p := schemaAwarePlan(db)
	p.Rules[0].Column = "nonexistent"

	diags, vp := plan.ValidateSchemaAware(p, db, reg)
	require.NotEmpty(t, diags)
	require.Nil(t, vp)
}

func TestValidateSchemaAwareRejectsUnknownGenerator(t *testing.T) {
	db := testDatabase()
	reg := generators.NewDefaultRegistry()
	p := schemaAwarePlan(db)
	p.Rules[0].Generator.ID = "primitive.does_not_exist"

	diags, vp := plan.ValidateSchemaAware(p, db, reg)
	require.NotEmpty(t, diags)
	require.Nil(t, vp)
}

func TestValidateSchemaAwareRejectsIncompatibleGeneratorForColumnType(t *testing.T) {
	db := testDatabase()
	reg := generators.NewDefaultRegistry()
	p := schemaAwarePlan(db)
	p.Rules[1].Generator = plan.GeneratorRef{ID: "primitive.date"}

	diags, vp := plan.ValidateSchemaAware(p, db, reg)
	require.NotEmpty(t, diags)
	require.Nil(t, vp)
}

func TestValidateSchemaAwareRejectsMissingRequiredParam(t *testing.T) {
	db := testDatabase()
	reg := generators.NewDefaultRegistry()
	p := schemaAwarePlan(db)
	p.Rules[1].Generator = plan.GeneratorRef{ID: "primitive.int.range"}

	diags, vp := plan.ValidateSchemaAware(p, db, reg)
	require.NotEmpty(t, diags)
	require.Nil(t, vp)
}

func TestValidateSchemaAwareRejectsSchemaVersionMismatch(t *testing.T) {
	db := testDatabase()
	reg := generators.NewDefaultRegistry()
	p := schemaAwarePlan(db)
	p.SchemaRef.SchemaVersion = "0.1"

	diags, vp := plan.ValidateSchemaAware(p, db, reg)
	require.NotEmpty(t, diags)
	require.Nil(t, vp)
}
