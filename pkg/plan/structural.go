package plan

import (
	"fmt"

	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// ValidateStructural runs phase one (spec §4.D): required fields present,
// enumerations respected, numeric ranges honored. It never touches a
// Schema Model or Registry — that's phase two.
func ValidateStructural(p *Plan) []Diagnostic {
	var diags []Diagnostic

	if p.PlanVersion == "" {
		diags = append(diags, diag(synthgenerr.ConfigError, "plan_version", "plan_version is required"))
	} else if p.PlanVersion != PlanContractVersion {
		diags = append(diags, diag(synthgenerr.ConfigError, "plan_version", fmt.Sprintf("unsupported plan_version %q (expected %q)", p.PlanVersion, PlanContractVersion)))
	}
	if p.SchemaRef.SchemaVersion == "" {
		diags = append(diags, diag(synthgenerr.ConfigError, "schema_ref.schema_version", "schema_ref.schema_version is required"))
	}
	if p.SchemaRef.Engine == "" {
		diags = append(diags, diag(synthgenerr.ConfigError, "schema_ref.engine", "schema_ref.engine is required"))
	}
	if len(p.Targets) == 0 {
		diags = append(diags, diag(synthgenerr.ValidationError, "targets", "at least one target is required"))
	}
	for i, t := range p.Targets {
		path := fmt.Sprintf("targets[%d]", i)
		if t.Schema == "" {
			diags = append(diags, diag(synthgenerr.ValidationError, path+".schema", "schema is required"))
		}
		if t.Table == "" {
			diags = append(diags, diag(synthgenerr.ValidationError, path+".table", "table is required"))
		}
		if t.Rows < 0 {
			diags = append(diags, diag(synthgenerr.ValidationError, path+".rows", "rows must be non-negative"))
		}
	}

	seen := make(map[string]bool, len(p.Rules))
	for i, r := range p.Rules {
		path := fmt.Sprintf("rules[%d]", i)
		if r.Type != "column_generator" {
			diags = append(diags, diag(synthgenerr.ValidationError, path+".type", fmt.Sprintf("unsupported rule type %q (only \"column_generator\" is defined)", r.Type)))
		}
		if r.Schema == "" || r.Table == "" || r.Column == "" {
			diags = append(diags, diag(synthgenerr.ValidationError, path, "schema, table and column are all required"))
		}
		if r.Generator.ID == "" {
			diags = append(diags, diag(synthgenerr.ValidationError, path+".generator", "generator is required"))
		}
		key := r.Schema + "." + r.Table + "." + r.Column
		if seen[key] {
			diags = append(diags, diag(synthgenerr.ValidationError, path, fmt.Sprintf("duplicate rule on column %s", key)))
		}
		seen[key] = true
		for j, tr := range r.Transforms {
			if tr.ID == "" {
				diags = append(diags, diag(synthgenerr.ValidationError, fmt.Sprintf("%s.transforms[%d]", path, j), "transform id is required"))
			}
		}
	}

	return diags
}
