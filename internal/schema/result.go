package schema

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisResult aggregates everything produced for one request. It is always
// returned populated, even when every adapter failed; callers distinguish
// partial failure by a non-empty ToolErrors list.
type AnalysisResult struct {
	RequestID  string      `yaml:"request_id" json:"request_id"`
	Targets    []string    `yaml:"targets" json:"targets"`
	Findings   []Finding   `yaml:"findings" json:"findings"`
	ToolErrors []ToolError `yaml:"tool_errors" json:"tool_errors"`

	TotalFindings        int              `yaml:"total_findings" json:"total_findings"`
	SeverityDistribution map[Severity]int `yaml:"severity_distribution" json:"severity_distribution"`

	StartTime time.Time  `yaml:"start_time" json:"start_time"`
	EndTime   *time.Time `yaml:"end_time,omitempty" json:"end_time,omitempty"`
	Duration  float64    `yaml:"duration_seconds" json:"duration_seconds"`

	// Optional post-phase payloads. Placeholders until the corresponding
	// subsystems exist; see engine post-phases.
	AgentConsensus       map[string]interface{}   `yaml:"agent_consensus,omitempty" json:"agent_consensus,omitempty"`
	PatchSuggestions     []map[string]interface{} `yaml:"patch_suggestions,omitempty" json:"patch_suggestions,omitempty"`
	ExplainabilityReport map[string]interface{}   `yaml:"explainability_report,omitempty" json:"explainability_report,omitempty"`

	finalized bool
}

// NewResult starts a result for the given request, stamping the start time.
func NewResult(req AnalysisRequest) *AnalysisResult {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &AnalysisResult{
		RequestID:  id,
		Targets:    req.Targets,
		Findings:   []Finding{},
		ToolErrors: []ToolError{},
		StartTime:  time.Now().UTC(),
	}
}

// Finalize computes the derived summary fields. It is a terminal transition:
// the first call stamps the end time and duration, repeated calls recompute
// the finding statistics only, so a double finalize cannot corrupt timing.
func (r *AnalysisResult) Finalize() {
	if !r.finalized {
		now := time.Now().UTC()
		r.EndTime = &now
		r.Duration = now.Sub(r.StartTime).Seconds()
		r.finalized = true
	}

	r.TotalFindings = len(r.Findings)
	r.SeverityDistribution = make(map[Severity]int)
	for _, f := range r.Findings {
		r.SeverityDistribution[f.Severity]++
	}
}

// Finalized reports whether Finalize has run
func (r *AnalysisResult) Finalized() bool {
	return r.finalized
}
