package engine

import "sort"

// coverageAccumulator is the single-owner CoverageSink the whole run
// shares (spec §5: "single-owner; report is built at end of run").
type coverageAccumulator struct {
	generatorUsage  map[string]int
	transformUsage  map[string]int
	fallbackCount   int
	heuristicCount  int
	unknownGenCount int
	piiTouched      map[string]bool
}

func newCoverageAccumulator() *coverageAccumulator {
	return &coverageAccumulator{
		generatorUsage: make(map[string]int),
		transformUsage: make(map[string]int),
		piiTouched:     make(map[string]bool),
	}
}

func (c *coverageAccumulator) RecordGeneratorUse(id string)  { c.generatorUsage[id]++ }
func (c *coverageAccumulator) RecordTransformUse(id string)  { c.transformUsage[id]++ }
func (c *coverageAccumulator) RecordFallback()               { c.fallbackCount++ }
func (c *coverageAccumulator) RecordHeuristic()              { c.heuristicCount++ }
func (c *coverageAccumulator) RecordUnknownGeneratorID()     { c.unknownGenCount++ }
func (c *coverageAccumulator) RecordPIITouched(tag string)   { c.piiTouched[tag] = true }

func (c *coverageAccumulator) piiColumnsTouched() []string {
	out := make([]string, 0, len(c.piiTouched))
	for tag := range c.piiTouched {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// warningAccumulator is the single-owner WarningSink shared across the run,
// counting occurrences by code without ever recording the offending value
// (spec §7: "no PII value ever appears in a warning").
type warningAccumulator struct {
	byCode map[string]int
}

func newWarningAccumulator() *warningAccumulator {
	return &warningAccumulator{byCode: make(map[string]int)}
}

func (w *warningAccumulator) Warn(code, _, _, _ string) { w.byCode[code]++ }

// TableReport is one target table's generation summary.
type TableReport struct {
	Schema       string `json:"schema"`
	Table        string `json:"table"`
	RowsRequested int   `json:"rows_requested"`
	RowsWritten   int64 `json:"rows_written"`
	RowsSkipped   int   `json:"rows_skipped"`
	BytesWritten  int64 `json:"bytes_written"`
}

// Status is the run's terminal outcome (spec §4.I).
type Status string

const (
	StatusOK        Status = "OK"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Report is the generation_report.json document (spec §4.I, §6).
type Report struct {
	Status                Status         `json:"status"`
	GeneratorUsage        map[string]int `json:"generator_usage"`
	TransformUsage        map[string]int `json:"transform_usage"`
	FallbackCount         int            `json:"fallback_count"`
	HeuristicCount        int            `json:"heuristic_count"`
	UnknownGeneratorCount int            `json:"unknown_generator_id_count"`
	PIIColumnsTouched     []string       `json:"pii_columns_touched"`
	WarningsByCode        map[string]int `json:"warnings_by_code"`
	Tables                []TableReport  `json:"tables"`
	ElapsedMillis         int64          `json:"elapsed_millis"`
	Error                 string         `json:"error,omitempty"`
}
