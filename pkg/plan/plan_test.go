package plan_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synthforge/synthgen/pkg/plan"
)

func TestGeneratorRefAcceptsStringShorthand(t *testing.T) {
	var g plan.GeneratorRef
	require.NoError(t, json.Unmarshal([]byte(`"primitive.int"`), &g))
	require.Equal(t, "primitive.int", g.ID)
	require.Empty(t, g.Locale)
	require.Nil(t, g.Params)
}

func TestGeneratorRefAcceptsObjectForm(t *testing.T) {
	var g plan.GeneratorRef
	raw := `{"id":"primitive.int.range","locale":"en_US","params":{"min":1,"max":10}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &g))
	require.Equal(t, "primitive.int.range", g.ID)
	require.Equal(t, "en_US", g.Locale)
	require.Equal(t, float64(1), g.Params["min"])
}

func TestGeneratorRefAlwaysMarshalsObjectForm(t *testing.T) {
	g := plan.GeneratorRef{ID: "primitive.bool"}
	b, err := json.Marshal(g)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"primitive.bool"}`, string(b))
}

func TestRuleNormalizesShorthandParamsAndLocale(t *testing.T) {
	raw := `{
		"plan_version": "0.2",
		"seed": 1,
		"schema_ref": {"schema_version": "0.2", "engine": "postgres"},
		"global": {},
		"targets": [{"schema": "public", "table": "users", "rows": 1}],
		"rules": [
			{
				"type": "column_generator",
				"schema": "public",
				"table": "users",
				"column": "id",
				"generator": "primitive.uuid.v4",
				"locale": "en_US",
				"params": {"foo": "bar"}
			}
		]
	}`
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	p, err := plan.Load(path)
	require.NoError(t, err)
	require.Len(t, p.Rules, 1)
	r := p.Rules[0]
	require.Equal(t, "primitive.uuid.v4", r.Generator.ID)
	require.Equal(t, "en_US", r.Generator.Locale)
	require.Equal(t, "bar", r.Generator.Params["foo"])
}

func TestWriteJSONThenLoadRoundTrips(t *testing.T) {
	p := &plan.Plan{
		PlanVersion: plan.PlanContractVersion,
		Seed:        7,
		SchemaRef:   plan.SchemaRef{SchemaVersion: "0.2", Engine: "postgres"},
		Targets:     []plan.Target{{Schema: "public", Table: "users", Rows: 10}},
		Rules: []plan.Rule{
			{
				Type:      "column_generator",
				Schema:    "public",
				Table:     "users",
				Column:    "id",
				Generator: plan.GeneratorRef{ID: "primitive.uuid.v4"},
			},
		},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, plan.WriteJSON(p, path))

	loaded, err := plan.Load(path)
	require.NoError(t, err)
	require.Equal(t, p.Seed, loaded.Seed)
	require.Equal(t, p.Targets, loaded.Targets)
	require.Equal(t, "primitive.uuid.v4", loaded.Rules[0].Generator.ID)
}
