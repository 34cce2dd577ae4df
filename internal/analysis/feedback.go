package analysis

import (
	"time"

	"github.com/openauditlabs/sentry/internal/schema"
)

// FeedbackSummary is the structured signal collected after a dynamic phase
// for downstream tuning. Producing it has no side effects; when collection
// is disabled no summary exists at all.
type FeedbackSummary struct {
	CollectedAt   time.Time                      `json:"collected_at"`
	TotalFindings int                            `json:"total_findings"`
	ByConfidence  map[schema.ConfidenceLevel]int `json:"by_confidence"`
	ByTool        map[string]int                 `json:"by_tool"`
}

// CollectFeedback summarizes a dynamic phase's findings by confidence level
// and originating tool.
func CollectFeedback(findings []schema.Finding) *FeedbackSummary {
	summary := &FeedbackSummary{
		CollectedAt:   time.Now().UTC(),
		TotalFindings: len(findings),
		ByConfidence:  make(map[schema.ConfidenceLevel]int),
		ByTool:        make(map[string]int),
	}
	for _, f := range findings {
		if f.ConfidenceLevel != "" {
			summary.ByConfidence[f.ConfidenceLevel]++
		}
		summary.ByTool[f.ToolName]++
	}
	return summary
}
