package schema

import (
	"fmt"

	"github.com/google/uuid"
)

// ToolOptions is a free-form per-tool configuration override carried on a
// request. Keys are tool names as registered with the engine.
type ToolOptions map[string]map[string]interface{}

// AnalysisRequest is the input contract for one audit batch. Targets must be
// non-empty; the include flags select phases independently. A request with
// neither static nor dynamic enabled is valid and yields zero findings.
type AnalysisRequest struct {
	ID              string      `yaml:"request_id" json:"request_id"`
	Targets         []string    `yaml:"targets" json:"targets"`
	IncludeStatic   bool        `yaml:"include_static" json:"include_static"`
	IncludeDynamic  bool        `yaml:"include_dynamic" json:"include_dynamic"`
	IncludeScoring  bool        `yaml:"include_scoring" json:"include_scoring"`
	EnableAgents    bool        `yaml:"enable_agents" json:"enable_agents"`
	CrossChain      bool        `yaml:"cross_chain_analysis" json:"cross_chain_analysis"`
	MaxAnalysisTime int         `yaml:"max_analysis_time" json:"max_analysis_time"`
	ToolConfig      ToolOptions `yaml:"tool_config,omitempty" json:"tool_config,omitempty"`
}

// NewRequest returns a request for the given targets with the default
// phase selection (static, dynamic and scoring all enabled).
func NewRequest(targets []string) AnalysisRequest {
	return AnalysisRequest{
		ID:              uuid.NewString(),
		Targets:         targets,
		IncludeStatic:   true,
		IncludeDynamic:  true,
		IncludeScoring:  true,
		MaxAnalysisTime: 600,
	}
}

// Validate checks the request shape. Target existence is checked separately
// by the engine's validation phase.
func (r *AnalysisRequest) Validate() error {
	if len(r.Targets) == 0 {
		return fmt.Errorf("request has no targets")
	}
	if r.MaxAnalysisTime <= 0 {
		return fmt.Errorf("max_analysis_time must be positive, got %d", r.MaxAnalysisTime)
	}
	return nil
}
