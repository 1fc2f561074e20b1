// Package derive implements the derive.* generator family (spec §4.E):
// row-aware generators that consume already-assigned columns from the Row
// Context (intra-row derives) or sampled values from the Parent Pool
// (inter-row derives, spec §9's explicit ParentPool contract — generation
// never issues SQL to read back a parent's row).
package derive

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/registry"
	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// RegisterAll adds every derive.* generator to reg.
func RegisterAll(reg *registry.Registry) {
	reg.Register(emailFromNameGenerator{})
	reg.Register(updatedAfterCreatedGenerator{})
	reg.Register(endAfterStartGenerator{})
	reg.Register(moneyTotalGenerator{})
	reg.Register(fkGenerator{})
	reg.Register(parentValueGenerator{})
}

func requiredInputColumn(params map[string]any, row *registry.RowContext, key string) (gencontext.Value, error) {
	name, ok := params[key].(string)
	if !ok || name == "" {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("%s is required", key))
	}
	v, ok := row.Get(name)
	if !ok {
		return nil, synthgenerr.New(synthgenerr.ValidationError, fmt.Sprintf("input column %q not yet assigned in row", name))
	}
	return v, nil
}

func requiredInputColumns(params map[string]any, row *registry.RowContext) ([]gencontext.Value, error) {
	raw, ok := params["input_columns"]
	if !ok {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "input_columns is required")
	}
	names, err := toStringSlice(raw)
	if err != nil {
		return nil, err
	}
	out := make([]gencontext.Value, len(names))
	for i, name := range names {
		v, ok := row.Get(name)
		if !ok {
			return nil, synthgenerr.New(synthgenerr.ValidationError, fmt.Sprintf("input column %q not yet assigned in row", name))
		}
		out[i] = v
	}
	return out, nil
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
				return nil, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("input_columns[%d] must be a string", i))
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("input_columns must be a string list, got %T", raw))
	}
}

func floatParam(params map[string]any, name string, def float64) (float64, error) {
	raw, ok := params[name]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("%s must be numeric, got %T", name, raw))
	}
}

func stringParam(params map[string]any, name, def string) (string, error) {
	raw, ok := params[name]
	if !ok {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("%s must be a string, got %T", name, raw))
	}
	return s, nil
}

func asFloat(v gencontext.Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// emailFromNameGenerator implements derive.email_from_name: builds an
// address from one or two name input columns plus a "domain" parameter.
type emailFromNameGenerator struct{}

func (emailFromNameGenerator) ID() string                { return "derive.email_from_name" }
func (emailFromNameGenerator) SupportedLocales() []string { return nil }
func (emailFromNameGenerator) PIITags() []string          { return []string{"email"} }
func (emailFromNameGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "input_columns", Type: registry.ParamStringList, Required: true},
		{Name: "domain", Type: registry.ParamString, Required: false},
	}
}
func (emailFromNameGenerator) Generate(_ registry.Column, params map[string]any, row *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	inputs, err := requiredInputColumns(params, row)
	if err != nil {
		return nil, err
	}
	domain, err := stringParam(params, "domain", "example.test")
	if err != nil {
		return nil, err
	}
	parts := make([]string, 0, len(inputs))
	for _, v := range inputs {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, synthgenerr.New(synthgenerr.ValidationError, "derive.email_from_name input columns must be non-empty strings")
		}
		parts = append(parts, normalizeLocalPart(s))
	}
	local := strings.Join(parts, ".")
	if local == "" {
		return nil, synthgenerr.New(synthgenerr.ValidationError, "derive.email_from_name produced an empty local part")
	}
	// A numeric tag keeps the address unique across rows sharing the same name.
	return fmt.Sprintf("%s%d@%s", local, rng.Intn(100000), domain), nil
}

func normalizeLocalPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			// dropped, not replaced — "Jo e" should not become "jo.e" twice
		}
	}
	return b.String()
}

// updatedAfterCreatedGenerator implements derive.updated_after_created:
// an ISO-8601 instant at or after the "created_at" input column, bounded by
// max_seconds.
type updatedAfterCreatedGenerator struct{}

func (updatedAfterCreatedGenerator) ID() string                { return "derive.updated_after_created" }
func (updatedAfterCreatedGenerator) SupportedLocales() []string { return nil }
func (updatedAfterCreatedGenerator) PIITags() []string          { return nil }
func (updatedAfterCreatedGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "input_columns", Type: registry.ParamStringList, Required: true},
		{Name: "max_seconds", Type: registry.ParamInt, Required: false},
	}
}
func (updatedAfterCreatedGenerator) Generate(_ registry.Column, params map[string]any, row *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	inputs, err := requiredInputColumns(params, row)
	if err != nil {
		return nil, err
	}
	if len(inputs) != 1 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "derive.updated_after_created takes exactly one input column")
	}
	createdStr, ok := inputs[0].(string)
	if !ok {
		return nil, synthgenerr.New(synthgenerr.ValidationError, "created_at input column must be a timestamp string")
	}
	created, err := time.Parse(time.RFC3339, createdStr)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.ValidationError, "created_at is not a valid RFC3339 timestamp", err)
	}
	maxSeconds, err := floatParam(params, "max_seconds", 3600)
	if err != nil {
		return nil, err
	}
	if maxSeconds < 0 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "max_seconds must be non-negative")
	}
	offset := time.Duration(rng.Int63n(int64(maxSeconds)+1)) * time.Second
	return created.Add(offset).UTC().Format(time.RFC3339), nil
}

// endAfterStartGenerator implements derive.end_after_start: an instant
// strictly after the "start" input column, bounded by max_seconds.
type endAfterStartGenerator struct{}

func (endAfterStartGenerator) ID() string                { return "derive.end_after_start" }
func (endAfterStartGenerator) SupportedLocales() []string { return nil }
func (endAfterStartGenerator) PIITags() []string          { return nil }
func (endAfterStartGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "input_columns", Type: registry.ParamStringList, Required: true},
		{Name: "max_seconds", Type: registry.ParamInt, Required: false},
	}
}
func (endAfterStartGenerator) Generate(_ registry.Column, params map[string]any, row *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	inputs, err := requiredInputColumns(params, row)
	if err != nil {
		return nil, err
	}
	if len(inputs) != 1 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "derive.end_after_start takes exactly one input column")
	}
	startStr, ok := inputs[0].(string)
	if !ok {
		return nil, synthgenerr.New(synthgenerr.ValidationError, "start input column must be a timestamp string")
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.ValidationError, "start is not a valid RFC3339 timestamp", err)
	}
	maxSeconds, err := floatParam(params, "max_seconds", 3600)
	if err != nil {
		return nil, err
	}
	if maxSeconds <= 0 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "max_seconds must be positive")
	}
	offset := time.Duration(1+rng.Int63n(int64(maxSeconds))) * time.Second
	return start.Add(offset).UTC().Format(time.RFC3339), nil
}

// moneyTotalGenerator implements derive.money_total: the product (or sum,
// via "op") of its numeric input columns, formatted to "scale" decimal places.
type moneyTotalGenerator struct{}

func (moneyTotalGenerator) ID() string                { return "derive.money_total" }
func (moneyTotalGenerator) SupportedLocales() []string { return nil }
func (moneyTotalGenerator) PIITags() []string          { return nil }
func (moneyTotalGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "input_columns", Type: registry.ParamStringList, Required: true},
		{Name: "op", Type: registry.ParamString, Required: false},
		{Name: "scale", Type: registry.ParamInt, Required: false},
	}
}
func (moneyTotalGenerator) Generate(_ registry.Column, params map[string]any, row *registry.RowContext, _ gencontext.Context, _ *rand.Rand) (gencontext.Value, error) {
	inputs, err := requiredInputColumns(params, row)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "derive.money_total requires at least one input column")
	}
	op, err := stringParam(params, "op", "multiply")
	if err != nil {
		return nil, err
	}
	scale, err := floatParam(params, "scale", 2)
	if err != nil {
		return nil, err
	}
	var total float64
	switch op {
	case "multiply":
		total = 1
		for _, v := range inputs {
			f, ok := asFloat(v)
			if !ok {
				return nil, synthgenerr.New(synthgenerr.ValidationError, "derive.money_total input column is not numeric")
			}
			total *= f
		}
	case "sum":
		for _, v := range inputs {
			f, ok := asFloat(v)
			if !ok {
				return nil, synthgenerr.New(synthgenerr.ValidationError, "derive.money_total input column is not numeric")
			}
			total += f
		}
	default:
		return nil, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("unknown op %q", op))
	}
	return strconv.FormatFloat(total, 'f', int(scale), 64), nil
}

// fkGenerator implements derive.fk: the default generator for a single-
// column FK (spec §4.G). It draws one already-generated parent key from
// the Parent Pool via PickFK. A multi-column FK is NOT driven through this
// generator at all: rowpipeline.planCompositeFKs wires its columns to a
// shared FKGroup instead, and the pipeline draws the tuple atomically via
// ParentPool.PickFKTuple (one call per FK, fanned out to every
// participating column) so every column of the key comes from the same
// parent row (spec.md:147).
type fkGenerator struct{}

func (fkGenerator) ID() string                { return "derive.fk" }
func (fkGenerator) SupportedLocales() []string { return nil }
func (fkGenerator) PIITags() []string          { return nil }
func (fkGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "parent_schema", Type: registry.ParamString, Required: true},
		{Name: "parent_table", Type: registry.ParamString, Required: true},
		{Name: "fk_column", Type: registry.ParamString, Required: true},
	}
}
func (fkGenerator) Generate(_ registry.Column, params map[string]any, _ *registry.RowContext, gc gencontext.Context, _ *rand.Rand) (gencontext.Value, error) {
	if gc.Parents == nil {
		return nil, synthgenerr.New(synthgenerr.FkUnavailable, "no parent pool configured")
	}
	parentSchema, err := stringParam(params, "parent_schema", "")
	if err != nil {
		return nil, err
	}
	parentTable, err := stringParam(params, "parent_table", "")
	if err != nil {
		return nil, err
	}
	fkColumn, err := stringParam(params, "fk_column", "")
	if err != nil {
		return nil, err
	}
	if parentSchema == "" || parentTable == "" || fkColumn == "" {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "parent_schema, parent_table and fk_column are required")
	}
	v, ok := gc.Parents.PickFK(parentSchema, parentTable, fkColumn)
	if !ok {
		return nil, synthgenerr.New(synthgenerr.FkUnavailable, fmt.Sprintf("no parent rows available in %s.%s", parentSchema, parentTable))
	}
	return v, nil
}

// parentValueGenerator implements derive.parent_value: looks up a sidecar
// column value on the parent row already referenced by this row's FK value.
type parentValueGenerator struct{}

func (parentValueGenerator) ID() string                { return "derive.parent_value" }
func (parentValueGenerator) SupportedLocales() []string { return nil }
func (parentValueGenerator) PIITags() []string          { return nil }
func (parentValueGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "parent_schema", Type: registry.ParamString, Required: true},
		{Name: "parent_table", Type: registry.ParamString, Required: true},
		{Name: "parent_column", Type: registry.ParamString, Required: true},
		{Name: "fk_value_column", Type: registry.ParamString, Required: true},
	}
}
func (parentValueGenerator) Generate(_ registry.Column, params map[string]any, row *registry.RowContext, gc gencontext.Context, _ *rand.Rand) (gencontext.Value, error) {
	if gc.Parents == nil {
		return nil, synthgenerr.New(synthgenerr.FkUnavailable, "no parent pool configured")
	}
	parentSchema, err := stringParam(params, "parent_schema", "")
	if err != nil {
		return nil, err
	}
	parentTable, err := stringParam(params, "parent_table", "")
	if err != nil {
		return nil, err
	}
	parentColumn, err := stringParam(params, "parent_column", "")
	if err != nil {
		return nil, err
	}
	fkValue, err := requiredInputColumn(params, row, "fk_value_column")
	if err != nil {
		return nil, err
	}
	if parentSchema == "" || parentTable == "" || parentColumn == "" {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "parent_schema, parent_table and parent_column are required")
	}
	v, ok := gc.Parents.LookupParent(parentSchema, parentTable, []gencontext.Value{fkValue}, parentColumn)
	if !ok {
		return nil, synthgenerr.New(synthgenerr.FkUnavailable, fmt.Sprintf("no parent row found in %s.%s for the given key", parentSchema, parentTable))
	}
	return v, nil
}
