// Package plan implements the Plan Model & Validator (spec §3, §4.D): the
// declarative plan.json contract plus its two-phase validator (structural,
// then schema-aware). Field/enum/range shape checks are hand-written
// against the typed Plan struct — no JSON-Schema validator appears
// anywhere in the example pack, and plan.json is this module's own
// contract rather than an externally-defined schema format, so there is
// no third-party validator to delegate to.
package plan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// PlanContractVersion is the current plan.json contract version (spec §6).
const PlanContractVersion = "0.2"

// SchemaRef pins a plan to the schema document it was authored against.
type SchemaRef struct {
	SchemaVersion string  `json:"schema_version"`
	Engine        string  `json:"engine"`
	Fingerprint   *string `json:"fingerprint,omitempty"`
}

// GlobalOptions are the plan-wide knobs spec §6 names explicitly.
type GlobalOptions struct {
	Locale         string `json:"locale,omitempty"`
	Strict         bool   `json:"strict,omitempty"`
	AllowFKDisable bool   `json:"allow_fk_disable,omitempty"`
}

// Target names a table to generate rows into.
type Target struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Rows   int    `json:"rows"`
}

// GeneratorRef is the opaque dotted identifier plus its locale/params, in
// either string shorthand ("primitive.int") or object form
// ({id, locale?, params?}) — spec §6's `generator: string|{...}`.
type GeneratorRef struct {
	ID     string         `json:"id"`
	Locale string         `json:"locale,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// UnmarshalJSON accepts either a bare string or the full object form.
func (g *GeneratorRef) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		g.ID = asString
		return nil
	}
	type alias GeneratorRef
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*g = GeneratorRef(a)
	return nil
}

// MarshalJSON always emits the object form — resolved_plan.json's contract
// is "every generator as object form" (spec §6).
func (g GeneratorRef) MarshalJSON() ([]byte, error) {
	type alias GeneratorRef
	return json.Marshal(alias(g))
}

// TransformRef is an identifier plus params, applied in listed order after
// the base/derive value is produced.
type TransformRef struct {
	ID     string         `json:"id"`
	Params map[string]any `json:"params,omitempty"`
}

// Rule is one column_generator rule (spec §3's Rule).
type Rule struct {
	Type       string         `json:"type"`
	Schema     string         `json:"schema"`
	Table      string         `json:"table"`
	Column     string         `json:"column"`
	Generator  GeneratorRef   `json:"generator"`
	Params     map[string]any `json:"params,omitempty"`
	Transforms []TransformRef `json:"transforms,omitempty"`
	Locale     string         `json:"locale,omitempty"`
}

// normalizeGenerator folds the rule-level params/locale shorthand into the
// generator ref's own fields, so downstream code only ever looks in one place.
func (r *Rule) normalizeGenerator() {
	if len(r.Params) > 0 && len(r.Generator.Params) == 0 {
		r.Generator.Params = r.Params
	}
	if r.Locale != "" && r.Generator.Locale == "" {
		r.Generator.Locale = r.Locale
	}
}

// RuleUnsupported records a declared-but-not-implemented intention (spec §3).
type RuleUnsupported struct {
	Schema    string `json:"schema"`
	Table     string `json:"table"`
	Column    string `json:"column"`
	Generator string `json:"generator"`
	Reason    string `json:"reason,omitempty"`
}

// Plan is the full plan.json document (spec §3, §6).
type Plan struct {
	PlanVersion      string            `json:"plan_version"`
	Seed             int64             `json:"seed"`
	SchemaRef        SchemaRef         `json:"schema_ref"`
	Global           GlobalOptions     `json:"global"`
	Targets          []Target          `json:"targets"`
	Rules            []Rule            `json:"rules"`
	RulesUnsupported []RuleUnsupported `json:"rules_unsupported,omitempty"`
}

// Load reads and JSON-decodes a plan document from path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.Io, fmt.Sprintf("reading plan file %s", path), err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, synthgenerr.Wrap(synthgenerr.ConfigError, "parsing plan.json", err)
	}
	for i := range p.Rules {
		p.Rules[i].normalizeGenerator()
	}
	return &p, nil
}

// WriteJSON writes p as indented JSON with a trailing newline, matching the
// schema document writer's contract (spec §6: the run directory's
// resolved_plan.json is written the same way).
func WriteJSON(p *Plan, path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return synthgenerr.Wrap(synthgenerr.Io, "marshaling plan", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return synthgenerr.Wrap(synthgenerr.Io, fmt.Sprintf("writing plan file %s", path), err)
	}
	return nil
}

// Diagnostic is one structural or schema-aware validation failure (spec §4.D).
type Diagnostic struct {
	Code    synthgenerr.Code `json:"code"`
	Path    string           `json:"path"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

func diag(code synthgenerr.Code, path, message string) Diagnostic {
	return Diagnostic{Code: code, Path: path, Message: message}
}

// ValidatedPlan is a Plan known to be structurally and schema-aware valid:
// every rule resolves, every generator/param/locale checks out. It is not
// yet the fully resolved plan (missing-rule default-generator assignment
// is pkg/rowpipeline's job, per spec §4.G).
type ValidatedPlan struct {
	Plan *Plan
}
