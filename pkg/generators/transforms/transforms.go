// Package transforms implements the transform.* family (spec §4.E): pure
// post-generation functions applied to an already-generated value, in
// declared order, before the Resolver's uniqueness/constraint checks see it.
package transforms

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"

	"github.com/synthforge/synthgen/pkg/gencontext"
	"github.com/synthforge/synthgen/pkg/registry"
	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// RegisterAll adds every transform.* to reg.
func RegisterAll(reg *registry.Registry) {
	reg.RegisterTransform(nullRateTransform{})
	reg.RegisterTransform(truncateTransform{})
	reg.RegisterTransform(formatTransform{})
	reg.RegisterTransform(prefixSuffixTransform{})
	reg.RegisterTransform(casingTransform{})
	reg.RegisterTransform(weightedChoiceTransform{})
	reg.RegisterTransform(maskTransform{})
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

func asString(v gencontext.Value) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// nullRateTransform implements transform.null_rate: replaces the value with
// nil with probability "rate".
type nullRateTransform struct{}

func (nullRateTransform) ID() string { return "transform.null_rate" }
func (nullRateTransform) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{{Name: "rate", Type: registry.ParamFloat, Required: true}}
}
func (nullRateTransform) Apply(value gencontext.Value, params map[string]any, rng *rand.Rand) (gencontext.Value, error) {
	rate, err := floatParam(params, "rate", 0)
	if err != nil {
		return nil, err
	}
	if rate < 0 || rate > 1 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "rate must be within [0,1]")
	}
	if rng.Float64() < rate {
		return nil, nil
	}
	return value, nil
}

// truncateTransform implements transform.truncate: cuts a string value to
// at most max_length runes.
type truncateTransform struct{}

func (truncateTransform) ID() string { return "transform.truncate" }
func (truncateTransform) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{{Name: "max_length", Type: registry.ParamInt, Required: true}}
}
func (truncateTransform) Apply(value gencontext.Value, params map[string]any, _ *rand.Rand) (gencontext.Value, error) {
	maxLen, err := intParam(params, "max_length", 0)
	if err != nil {
		return nil, err
	}
	if maxLen < 0 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "max_length must be non-negative")
	}
	s, ok := asString(value)
	if !ok {
		return nil, synthgenerr.New(synthgenerr.ValidationError, "transform.truncate requires a string input")
	}
	runes := []rune(s)
	if int64(len(runes)) <= maxLen {
		return s, nil
	}
	return string(runes[:maxLen]), nil
}

// formatTransform implements transform.format: wraps the value into a
// "template" string containing a single "%s" placeholder.
type formatTransform struct{}

func (formatTransform) ID() string { return "transform.format" }
func (formatTransform) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{{Name: "template", Type: registry.ParamString, Required: true}}
}
func (formatTransform) Apply(value gencontext.Value, params map[string]any, _ *rand.Rand) (gencontext.Value, error) {
	template, err := stringParam(params, "template", "")
	if err != nil {
		return nil, err
	}
	if strings.Count(template, "%s") != 1 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "template must contain exactly one %s placeholder")
	}
	return fmt.Sprintf(template, value), nil
}

// prefixSuffixTransform implements transform.prefix_suffix.
type prefixSuffixTransform struct{}

func (prefixSuffixTransform) ID() string { return "transform.prefix_suffix" }
func (prefixSuffixTransform) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "prefix", Type: registry.ParamString, Required: false},
		{Name: "suffix", Type: registry.ParamString, Required: false},
	}
}
func (prefixSuffixTransform) Apply(value gencontext.Value, params map[string]any, _ *rand.Rand) (gencontext.Value, error) {
	prefix, err := stringParam(params, "prefix", "")
	if err != nil {
		return nil, err
	}
	suffix, err := stringParam(params, "suffix", "")
	if err != nil {
		return nil, err
	}
	s, ok := asString(value)
	if !ok {
		return nil, synthgenerr.New(synthgenerr.ValidationError, "transform.prefix_suffix requires a string input")
	}
	return prefix + s + suffix, nil
}

// casingTransform implements transform.casing: mode one of "upper",
// "lower", "title".
type casingTransform struct{}

func (casingTransform) ID() string { return "transform.casing" }
func (casingTransform) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{{Name: "mode", Type: registry.ParamString, Required: true}}
}
func (casingTransform) Apply(value gencontext.Value, params map[string]any, _ *rand.Rand) (gencontext.Value, error) {
	mode, err := stringParam(params, "mode", "")
	if err != nil {
		return nil, err
	}
	s, ok := asString(value)
	if !ok {
		return nil, synthgenerr.New(synthgenerr.ValidationError, "transform.casing requires a string input")
	}
	switch mode {
	case "upper":
		return strings.ToUpper(s), nil
	case "lower":
		return strings.ToLower(s), nil
	case "title":
		return titleCase(s), nil
	default:
		return nil, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("unknown casing mode %q", mode))
	}
}

// titleCase capitalizes the first letter of each whitespace-separated word.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// weightedChoiceTransform implements transform.weighted_choice: discards
// the incoming value and draws from a declared {choices, weights} pair.
type weightedChoiceTransform struct{}

func (weightedChoiceTransform) ID() string { return "transform.weighted_choice" }
func (weightedChoiceTransform) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "choices", Type: registry.ParamStringList, Required: true},
		{Name: "weights", Type: registry.ParamStringList, Required: false},
	}
}
func (weightedChoiceTransform) Apply(_ gencontext.Value, params map[string]any, rng *rand.Rand) (gencontext.Value, error) {
	choices, err := toStringSlice(params["choices"])
	if err != nil {
		return nil, err
	}
	if len(choices) == 0 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "choices must be non-empty")
	}
	weights, err := toWeights(params["weights"], len(choices))
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "weights must sum to a positive value")
	}
	target := rng.Float64() * total
	cursor := 0.0
	for i, w := range weights {
		cursor += w
		if target <= cursor {
			return choices[i], nil
		}
	}
	return choices[len(choices)-1], nil
}

func toStringSlice(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "choices is required")
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("choices[%d] must be a string", i))
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("choices must be a string list, got %T", raw))
	}
}

func toWeights(raw any, n int) ([]float64, error) {
	if raw == nil {
		out := make([]float64, n)
		for i := range out {
			out[i] = 1
		}
		return out, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("weights must be a numeric list, got %T", raw))
	}
	if len(list) != n {
		return nil, synthgenerr.New(synthgenerr.InvalidParam, "weights must have the same length as choices")
	}
	out := make([]float64, n)
	for i, e := range list {
		switch v := e.(type) {
		case float64:
			out[i] = v
		case int:
			out[i] = float64(v)
		case int64:
			out[i] = float64(v)
		default:
			return nil, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("weights[%d] must be numeric", i))
		}
	}
	return out, nil
}

// maskTransform implements transform.mask with three modes: "hash" (SHA-256
// hex digest, truncated to "length"), "redact" (a fixed replacement
// string), and "format_preserving" (digits replaced with random digits,
// non-digits kept in place — the S6 scenario's CPF masking).
type maskTransform struct{}

func (maskTransform) ID() string { return "transform.mask" }
func (maskTransform) ParamSpec() []registry.ParamSpec {
	return []registry.ParamSpec{
		{Name: "mode", Type: registry.ParamString, Required: true},
		{Name: "length", Type: registry.ParamInt, Required: false},
		{Name: "replacement", Type: registry.ParamString, Required: false},
	}
}
func (maskTransform) Apply(value gencontext.Value, params map[string]any, rng *rand.Rand) (gencontext.Value, error) {
	mode, err := stringParam(params, "mode", "")
	if err != nil {
		return nil, err
	}
	s, ok := asString(value)
	if !ok {
		return nil, synthgenerr.New(synthgenerr.ValidationError, "transform.mask requires a string input")
	}
	switch mode {
	case "hash":
		sum := sha256.Sum256([]byte(s))
		digest := hex.EncodeToString(sum[:])
		length, err := intParam(params, "length", int64(len(digest)))
		if err != nil {
			return nil, err
		}
		if length <= 0 || length > int64(len(digest)) {
			return nil, synthgenerr.New(synthgenerr.InvalidParam, "length out of range for a SHA-256 hex digest")
		}
		return digest[:length], nil
	case "redact":
		return stringParam(params, "replacement", "***")
	case "format_preserving":
		var b strings.Builder
		for _, r := range s {
			if r >= '0' && r <= '9' {
				b.WriteByte(byte('0' + rng.Intn(10)))
			} else {
				b.WriteRune(r)
			}
		}
		return b.String(), nil
	default:
		return nil, synthgenerr.New(synthgenerr.InvalidParam, fmt.Sprintf("unknown mask mode %q", mode))
	}
}
