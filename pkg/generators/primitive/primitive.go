// Package primitive implements the primitive.* generator family (spec §4.E):
// typed values with no locale awareness and no row context dependency.
// Parameter errors are fatal here, never silently clamped — a bad min/max
// is an error. Generated values are not checked against the column's
// declared length.
package primitive

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/registry"
	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// RegisterAll adds every primitive.* generator to reg.
func RegisterAll(reg *registry.Registry) {
	reg.Register(boolGenerator{})
	reg.Register(intGenerator{id: "primitive.int"})
	reg.Register(intGenerator{id: "primitive.int.range"})
	reg.Register(floatGenerator{})
	reg.Register(decimalNumericGenerator{})
	reg.Register(textPatternGenerator{})
	reg.Register(textLoremGenerator{})
	reg.Register(uuidV4Generator{})
	reg.Register(dateGenerator{})
	reg.Register(timeGenerator{})
	reg.Register(timestampGenerator{})
	reg.Register(enumGenerator{})
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

func intParam(params map[string]any, name string, def int64) (int64, error) {
	f, err := floatParam(params, name, float64(def))
	if err != nil {
		return 0, err
	}
	return int64(f), nil
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

// boolGenerator implements primitive.bool: a uniform coin flip, optionally
// weighted via a "p_true" parameter.
type boolGenerator struct{}

func (boolGenerator) ID() string                { return "primitive.bool" }
func (boolGenerator) SupportedLocales() []string { return nil }
func (boolGenerator) PIITags() []string          { return nil }
func (boolGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{{Name: "p_true", Type: registry.ParamFloat, Required: false}}
}
func (g boolGenerator) Generate(_ registry.Column, params map[string]any, _ *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	p, err := floatParam(params, "p_true", 0.5)
	if err != nil {
		return nil, err
	}
	if p < 0 || p > 1 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "p_true must be within [0,1]")
	}
	return rng.Float64() < p, nil
}

// intGenerator implements primitive.int and primitive.int.range: a uniform
// integer in [min,max] (inclusive). The two IDs share an implementation;
// primitive.int defaults to a wide domain, primitive.int.range requires
// both bounds to be given explicitly.
type intGenerator struct{ id string }

func (g intGenerator) ID() string                { return g.id }
func (intGenerator) SupportedLocales() []string  { return nil }
func (intGenerator) PIITags() []string           { return nil }
func (g intGenerator) ParamSpec() []registry.ParamSpec {
	required := g.id == "primitive.int.range"
	return []registry.ParamSpec{
		{Name: "min", Type: registry.ParamInt, Required: required},
		{Name: "max", Type: registry.ParamInt, Required: required},
	}
}
func (g intGenerator) Generate(_ registry.Column, params map[string]any, _ *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	min, err := intParam(params, "min", -2147483648)
	if err != nil {
		return nil, err
	}
	max, err := intParam(params, "max", 2147483647)
	if err != nil {
		return nil, err
	}
	if min > max {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "min must be <= max")
	}
	span := max - min + 1
	if span <= 0 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "range overflows int64")
	}
	return min + rng.Int63n(span), nil
}

// floatGenerator implements primitive.float: a uniform float64 in [min,max).
type floatGenerator struct{}

func (floatGenerator) ID() string                { return "primitive.float" }
func (floatGenerator) SupportedLocales() []string { return nil }
func (floatGenerator) PIITags() []string          { return nil }
func (floatGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "min", Type: registry.ParamFloat, Required: false},
		{Name: "max", Type: registry.ParamFloat, Required: false},
	}
}
func (floatGenerator) Generate(_ registry.Column, params map[string]any, _ *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	min, err := floatParam(params, "min", 0)
	if err != nil {
		return nil, err
	}
	max, err := floatParam(params, "max", 1)
	if err != nil {
		return nil, err
	}
	if min > max {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "min must be <= max")
	}
	return min + rng.Float64()*(max-min), nil
}

// decimalNumericGenerator implements primitive.decimal.numeric: a fixed-
// scale decimal formatted as a string so the CSV writer never round-trips
// it through float64 (spec §6: "fixed-scale decimals").
type decimalNumericGenerator struct{}

func (decimalNumericGenerator) ID() string                { return "primitive.decimal.numeric" }
func (decimalNumericGenerator) SupportedLocales() []string { return nil }
func (decimalNumericGenerator) PIITags() []string          { return nil }
func (decimalNumericGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "min", Type: registry.ParamFloat, Required: false},
		{Name: "max", Type: registry.ParamFloat, Required: false},
		{Name: "scale", Type: registry.ParamInt, Required: false},
	}
}
func (decimalNumericGenerator) Generate(_ registry.Column, params map[string]any, _ *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	min, err := floatParam(params, "min", 0)
	if err != nil {
		return nil, err
	}
	max, err := floatParam(params, "max", 1000)
	if err != nil {
		return nil, err
	}
	if min > max {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "min must be <= max")
	}
	scale, err := intParam(params, "scale", 2)
	if err != nil {
		return nil, err
	}
	if scale < 0 || scale > 18 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "scale must be within [0,18]")
	}
	v := min + rng.Float64()*(max-min)
	return strconv.FormatFloat(v, 'f', int(scale), 64), nil
}

// textPatternGenerator implements primitive.text.pattern: a minimal
// regex-like template where `#` expands to a random digit and `?` to a
// random lowercase letter; any other rune is emitted literally. Anything
// richer is out of scope (the pattern is a format template, not a regex
// engine — spec §4.E describes it as "regex-like", not regex).
type textPatternGenerator struct{}

func (textPatternGenerator) ID() string                { return "primitive.text.pattern" }
func (textPatternGenerator) SupportedLocales() []string { return nil }
func (textPatternGenerator) PIITags() []string          { return nil }
func (textPatternGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{{Name: "pattern", Type: registry.ParamString, Required: true}}
}
func (textPatternGenerator) Generate(_ registry.Column, params map[string]any, _ *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	pattern, err := stringParam(params, "pattern", "")
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "pattern is required")
	}
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '#':
			b.WriteByte(byte('0' + rng.Intn(10)))
		case '?':
			b.WriteByte(byte('a' + rng.Intn(26)))
		default:
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// textLoremGenerator implements primitive.text.lorem: word_count
// lorem-ipsum-style words drawn from a small fixed vocabulary, joined with
// single spaces. No external dependency is warranted for a closed,
// non-semantic word list.
type textLoremGenerator struct{}

var loremWords = []string{
	"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing",
	"elit", "sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore",
	"et", "dolore", "magna", "aliqua", "enim", "ad", "minim", "veniam",
}

func (textLoremGenerator) ID() string                { return "primitive.text.lorem" }
func (textLoremGenerator) SupportedLocales() []string { return nil }
func (textLoremGenerator) PIITags() []string          { return nil }
func (textLoremGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{{Name: "word_count", Type: registry.ParamInt, Required: false}}
}
func (textLoremGenerator) Generate(_ registry.Column, params map[string]any, _ *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	n, err := intParam(params, "word_count", 6)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "word_count must be positive")
	}
	words := make([]string, n)
	for i := range words {
		words[i] = loremWords[rng.Intn(len(loremWords))]
	}
	return strings.Join(words, " "), nil
}

// uuidV4Generator implements primitive.uuid.v4, seeded from the per-cell
// rng via google/uuid's NewRandomFromReader so the value is reproducible.
type uuidV4Generator struct{}

func (uuidV4Generator) ID() string                { return "primitive.uuid.v4" }
func (uuidV4Generator) SupportedLocales() []string { return nil }
func (uuidV4Generator) PIITags() []string          { return nil }
func (uuidV4Generator) ParamSpec() []registry.ParamSpec { return nil }
func (uuidV4Generator) Generate(_ registry.Column, _ map[string]any, _ *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.Io, "uuid generation failed", err)
	}
	return id.String(), nil
}

const dateLayout = "2006-01-02"
const timeLayout = "15:04:05"
const timestampLayout = time.RFC3339

// dateGenerator implements primitive.date: a uniform date within [after, before).
type dateGenerator struct{}

func (dateGenerator) ID() string                { return "primitive.date" }
func (dateGenerator) SupportedLocales() []string { return nil }
func (dateGenerator) PIITags() []string          { return nil }
func (dateGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "after", Type: registry.ParamISODate, Required: false},
		{Name: "before", Type: registry.ParamISODate, Required: false},
	}
}
func (dateGenerator) Generate(_ registry.Column, params map[string]any, _ *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	after, err := stringParam(params, "after", "2000-01-01")
	if err != nil {
		return nil, err
	}
	before, err := stringParam(params, "before", "2030-01-01")
	if err != nil {
		return nil, err
	}
	afterT, err := time.Parse(dateLayout, after)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.InvalidParam, "invalid after date", err)
	}
	beforeT, err := time.Parse(dateLayout, before)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.InvalidParam, "invalid before date", err)
	}
	if !afterT.Before(beforeT) {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "after must be before before")
	}
	span := beforeT.Sub(afterT)
	offset := time.Duration(rng.Int63n(int64(span)))
	return afterT.Add(offset).Format(dateLayout), nil
}

// timeGenerator implements primitive.time: a uniform time-of-day.
type timeGenerator struct{}

func (timeGenerator) ID() string                { return "primitive.time" }
func (timeGenerator) SupportedLocales() []string { return nil }
func (timeGenerator) PIITags() []string          { return nil }
func (timeGenerator) ParamSpec() []registry.ParamSpec { return nil }
func (timeGenerator) Generate(_ registry.Column, _ map[string]any, _ *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	seconds := rng.Int63n(24 * 3600)
	t := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(seconds) * time.Second)
	return t.Format(timeLayout), nil
}

// timestampGenerator implements primitive.timestamp: a uniform instant
// within [after, before), formatted ISO-8601 (spec §6).
type timestampGenerator struct{}

func (timestampGenerator) ID() string                { return "primitive.timestamp" }
func (timestampGenerator) SupportedLocales() []string { return nil }
func (timestampGenerator) PIITags() []string          { return nil }
func (timestampGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "after", Type: registry.ParamISOTimestamp, Required: false},
		{Name: "before", Type: registry.ParamISOTimestamp, Required: false},
	}
}
func (timestampGenerator) Generate(_ registry.Column, params map[string]any, _ *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	after, err := stringParam(params, "after", "2000-01-01T00:00:00Z")
	if err != nil {
		return nil, err
	}
	before, err := stringParam(params, "before", "2030-01-01T00:00:00Z")
	if err != nil {
		return nil, err
	}
	afterT, err := time.Parse(time.RFC3339, after)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.InvalidParam, "invalid after timestamp", err)
	}
	beforeT, err := time.Parse(time.RFC3339, before)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.InvalidParam, "invalid before timestamp", err)
	}
	if !afterT.Before(beforeT) {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "after must be before before")
	}
	span := beforeT.Sub(afterT)
	offset := time.Duration(rng.Int63n(int64(span)))
	return afterT.Add(offset).UTC().Format(timestampLayout), nil
}

// enumGenerator implements primitive.enum: a uniform draw from a declared
// "values" parameter. The values are not checked against a Postgres enum
// type's labels, here or in the resolver/plan validator.
type enumGenerator struct{}

func (enumGenerator) ID() string                { return "primitive.enum" }
func (enumGenerator) SupportedLocales() []string { return nil }
func (enumGenerator) PIITags() []string          { return nil }
func (enumGenerator) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{{Name: "values", Type: registry.ParamStringList, Required: true}}
}
func (enumGenerator) Generate(_ registry.Column, params map[string]any, _ *registry.RowContext, _ gencontext.Context, rng *rand.Rand) (gencontext.Value, error) {
	raw, ok := params["values"]
	if !ok {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "values is required")
	}
	values, err := toStringSlice(raw)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "values must be non-empty")
	}
	return values[rng.Intn(len(values))], nil
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
				return nil, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("values[%d] must be a string", i))
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("values must be a string list, got %T", raw))
	}
}
