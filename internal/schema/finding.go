package schema

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// swcPattern matches standardized smart-contract-weakness identifiers.
var swcPattern = regexp.MustCompile(`^SWC-\d{3}$`)

// IsValidSWC reports whether id is a well-formed SWC identifier (SWC-###).
func IsValidSWC(id string) bool {
	return swcPattern.MatchString(id)
}

// LineSpan locates a finding inside a source file. Both lines are 1-indexed
// and Start must not exceed End.
type LineSpan struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// Validate checks the span invariants
func (s LineSpan) Validate() error {
	if s.Start < 1 {
		return fmt.Errorf("line span start must be >= 1, got %d", s.Start)
	}
	if s.End < s.Start {
		return fmt.Errorf("line span end %d before start %d", s.End, s.Start)
	}
	return nil
}

// Finding is one normalized, tool-attributed vulnerability report. The JSON
// shape is the stable wire contract consumed by reporting layers; field names
// must not change without a version bump.
type Finding struct {
	ID                string            `yaml:"finding_id" json:"finding_id"`
	SWCID             string            `yaml:"swc_id,omitempty" json:"swc_id,omitempty"`
	Severity          Severity          `yaml:"severity" json:"severity"`
	ToolName          string            `yaml:"tool_name" json:"tool_name"`
	ToolVersion       string            `yaml:"tool_version" json:"tool_version"`
	FilePath          string            `yaml:"file_path" json:"file_path"`
	LineSpan          *LineSpan         `yaml:"line_span,omitempty" json:"line_span,omitempty"`
	FunctionName      string            `yaml:"function_name,omitempty" json:"function_name,omitempty"`
	Description       string            `yaml:"description" json:"description"`
	ReproductionSteps string            `yaml:"reproduction_steps" json:"reproduction_steps"`
	ExploitComplexity ExploitComplexity `yaml:"exploit_complexity" json:"exploit_complexity"`
	Confidence        float64           `yaml:"confidence" json:"confidence"`
	SanitizerPresent  bool              `yaml:"sanitizer_present" json:"sanitizer_present"`
	Recommendations   []string          `yaml:"recommendations,omitempty" json:"recommendations,omitempty"`
	Timestamp         time.Time         `yaml:"timestamp" json:"timestamp"`

	// Extension fields populated by optional phases.
	ConfidenceLevel       ConfidenceLevel        `yaml:"confidence_level,omitempty" json:"confidence_level,omitempty"`
	CrossChainImpact      []string               `yaml:"cross_chain_impact,omitempty" json:"cross_chain_impact,omitempty"`
	RemediationSuggestion string                 `yaml:"remediation_suggestion,omitempty" json:"remediation_suggestion,omitempty"`
	ExplainabilityTrace   map[string]interface{} `yaml:"explainability_trace,omitempty" json:"explainability_trace,omitempty"`
	FeedbackScore         *float64               `yaml:"rl_feedback_score,omitempty" json:"rl_feedback_score,omitempty"`
}

// NewFinding returns a Finding with identity, timestamp and defaults set
func NewFinding() Finding {
	return Finding{
		ID:                uuid.NewString(),
		Severity:          SeverityMedium,
		ExploitComplexity: ComplexityMedium,
		Confidence:        0.5,
		Timestamp:         time.Now().UTC(),
	}
}

// Validate checks the finding invariants that every producer must uphold
func (f *Finding) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("finding has no id")
	}
	if !IsValidSeverity(f.Severity) {
		return fmt.Errorf("invalid severity %q", f.Severity)
	}
	if f.SWCID != "" && !IsValidSWC(f.SWCID) {
		return fmt.Errorf("invalid swc_id %q (want SWC-###)", f.SWCID)
	}
	if f.Confidence < 0.0 || f.Confidence > 1.0 {
		return fmt.Errorf("confidence %v outside [0,1]", f.Confidence)
	}
	if f.LineSpan != nil {
		if err := f.LineSpan.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ToolError records one isolated adapter failure. It never aborts a batch;
// runners append it alongside whatever findings other adapters produced.
type ToolError struct {
	ToolName     string    `yaml:"tool_name" json:"tool_name"`
	ErrorType    string    `yaml:"error_type" json:"error_type"`
	ErrorMessage string    `yaml:"error_message" json:"error_message"`
	Stderr       string    `yaml:"stderr_output,omitempty" json:"stderr_output,omitempty"`
	ExitCode     *int      `yaml:"exit_code,omitempty" json:"exit_code,omitempty"`
	Timestamp    time.Time `yaml:"timestamp" json:"timestamp"`
}

// NewToolError builds a timestamped ToolError
func NewToolError(tool, errType, message string) ToolError {
	return ToolError{
		ToolName:     tool,
		ErrorType:    errType,
		ErrorMessage: message,
		Timestamp:    time.Now().UTC(),
	}
}
