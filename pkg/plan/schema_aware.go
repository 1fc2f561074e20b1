package plan

import (
	"fmt"
	"strings"

	"github.com/synthforge/synthgen/pkg/registry"
	"github.com/synthforge/synthgen/pkg/schemamodel"
	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// compatibleFamilies maps a generator ID prefix to the column data_types it
// may be applied to. Empty means "no restriction" (derive.*/faker.*/
// semantic.* carry no fixed type contract beyond what they happen to emit).
var compatibleFamilies = map[string][]string{
	"primitive.bool":            {"boolean", "bool"},
	"primitive.int":             {"integer", "int", "int2", "int4", "int8", "bigint", "smallint"},
	"primitive.int.range":       {"integer", "int", "int2", "int4", "int8", "bigint", "smallint"},
	"primitive.float":           {"real", "double precision", "float4", "float8"},
	"primitive.decimal.numeric": {"numeric", "decimal"},
	"primitive.text.pattern":    {"text", "varchar", "character varying", "char", "bpchar"},
	"primitive.text.lorem":      {"text", "varchar", "character varying"},
	"primitive.uuid.v4":         {"uuid", "text", "varchar", "character varying"},
	"primitive.date":            {"date"},
	"primitive.time":            {"time", "time without time zone", "time with time zone"},
	"primitive.timestamp":       {"timestamp", "timestamp without time zone", "timestamptz", "timestamp with time zone"},
}

// ValidateSchemaAware runs phase two (spec §4.D): existence, type
// compatibility, registry/param/locale checks, and derive input_columns
// existence. Duplicate rules are caught by ValidateStructural and are not
// re-checked here; no FK strategy or allow_fk_disable check is made.
// Returns diagnostics and, only when there are none, a *ValidatedPlan.
func ValidateSchemaAware(p *Plan, db *schemamodel.Database, reg *registry.Registry) ([]Diagnostic, *ValidatedPlan) {
	var diags []Diagnostic

	if p.SchemaRef.SchemaVersion != db.SchemaVersion {
		diags = append(diags, diag(synthgenerr.ValidationError, "schema_ref.schema_version", fmt.Sprintf("plan expects schema_version %q, got %q", p.SchemaRef.SchemaVersion, db.SchemaVersion)))
	}
	if p.SchemaRef.Fingerprint != nil && *p.SchemaRef.Fingerprint != db.Fingerprint {
		d := diag(synthgenerr.SchemaViolation, "schema_ref.fingerprint", "plan's schema_ref.fingerprint does not match the supplied schema document")
		d.Hint = "schema introspected again since the plan was authored?"
		diags = append(diags, d)
	}

	for i, t := range p.Targets {
		path := fmt.Sprintf("targets[%d]", i)
		if db.FindTable(t.Schema, t.Table) == nil {
			diags = append(diags, diag(synthgenerr.ValidationError, path, fmt.Sprintf("table %s.%s does not exist in the schema", t.Schema, t.Table)))
		}
	}

	for i, r := range p.Rules {
		path := fmt.Sprintf("rules[%d]", i)

		tbl := db.FindTable(r.Schema, r.Table)
		if tbl == nil {
			diags = append(diags, diag(synthgenerr.ValidationError, path, fmt.Sprintf("table %s.%s does not exist in the schema", r.Schema, r.Table)))
			continue
		}
		col := db.FindColumn(r.Schema, r.Table, r.Column)
		if col == nil {
			diags = append(diags, diag(synthgenerr.ValidationError, path+".column", fmt.Sprintf("column %s does not exist on %s.%s", r.Column, r.Schema, r.Table)))
			continue
		}

		gen, err := reg.Lookup(r.Generator.ID)
		if err != nil {
			diags = append(diags, diag(synthgenerr.UnknownGeneratorId, path+".generator", err.Error()))
			continue
		}

		if allowed, restricted := compatibleFamilies[r.Generator.ID]; restricted && !containsFold(allowed, col.Type.DataType) {
			diags = append(diags, diag(synthgenerr.ValidationError, path+".generator", fmt.Sprintf("generator %s is not compatible with column type %s", r.Generator.ID, col.Type.DataType)))
		}

		if r.Generator.Locale != "" {
			locales := gen.SupportedLocales()
			if len(locales) > 0 && !containsFold(locales, r.Generator.Locale) {
				diags = append(diags, diag(synthgenerr.UnsupportedLocale, path+".locale", fmt.Sprintf("generator %s does not support locale %s", r.Generator.ID, r.Generator.Locale)))
			}
		}

		if err := checkParams(gen.ParamSpec(), r.Generator.Params); err != nil {
			diags = append(diags, diag(synthgenerr.InvalidParam, path+".generator.params", err.Error()))
		}

		if strings.HasPrefix(r.Generator.ID, "derive.") {
			if inputCols, ok := r.Generator.Params["input_columns"]; ok {
				names, nerr := toStringSlice(inputCols)
				if nerr != nil {
					diags = append(diags, diag(synthgenerr.InvalidParam, path+".generator.params.input_columns", nerr.Error()))
				} else {
					for _, name := range names {
						if db.FindColumn(r.Schema, r.Table, name) == nil {
							diags = append(diags, diag(synthgenerr.ValidationError, path+".generator.params.input_columns", fmt.Sprintf("input column %q does not exist on %s.%s", name, r.Schema, r.Table)))
						}
					}
				}
			}
		}

		for j, tr := range r.Transforms {
			trPath := fmt.Sprintf("%s.transforms[%d]", path, j)
			transform, terr := reg.LookupTransform(tr.ID)
			if terr != nil {
				diags = append(diags, diag(synthgenerr.UnknownGeneratorId, trPath, terr.Error()))
				continue
			}
			if err := checkParams(transform.ParamSpec(), tr.Params); err != nil {
				diags = append(diags, diag(synthgenerr.InvalidParam, trPath+".params", err.Error()))
			}
		}
	}

	if len(diags) > 0 {
		return diags, nil
	}
	return nil, &ValidatedPlan{Plan: p}
}

func containsFold(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func toStringSlice(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("input_columns[%d] must be a string", i)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("input_columns must be a string list, got %T", raw)
	}
}

func checkParams(specs []registry.ParamSpec, params map[string]any) error {
	for _, spec := range specs {
		v, present := params[spec.Name]
		if !present {
			if spec.Required {
				return fmt.Errorf("missing required parameter %q", spec.Name)
			}
			continue
		}
		if err := checkParamType(spec, v); err != nil {
			return err
		}
	}
	return nil
}

func checkParamType(spec registry.ParamSpec, v any) error {
	switch spec.Type {
	case registry.ParamInt:
		f, ok := asNumber(v)
		if !ok {
			return fmt.Errorf("parameter %q must be an int", spec.Name)
		}
		return checkBounds(spec, f)
	case registry.ParamFloat:
		f, ok := asNumber(v)
		if !ok {
			return fmt.Errorf("parameter %q must be a float", spec.Name)
		}
		return checkBounds(spec, f)
	case registry.ParamString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("parameter %q must be a string", spec.Name)
		}
	case registry.ParamBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("parameter %q must be a bool", spec.Name)
		}
	case registry.ParamStringList:
		if _, err := toStringSlice(v); err != nil {
			return fmt.Errorf("parameter %q: %w", spec.Name, err)
		}
	case registry.ParamISODate, registry.ParamISOTime, registry.ParamISOTimestamp:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("parameter %q must be an ISO-8601 string", spec.Name)
		}
	}
	return nil
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func checkBounds(spec registry.ParamSpec, f float64) error {
	if spec.Min != nil && f < *spec.Min {
		return fmt.Errorf("parameter %q must be >= %v", spec.Name, *spec.Min)
	}
	if spec.Max != nil && f > *spec.Max {
		return fmt.Errorf("parameter %q must be <= %v", spec.Name, *spec.Max)
	}
	return nil
}
