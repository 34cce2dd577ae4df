// Package scoring maps severity and calibrated confidence into a single
// numeric risk score.
package scoring

import (
	"math"
	"strings"

	"github.com/openauditlabs/sentry/internal/schema"
)

// baseScores is the severity base table. Unrecognized severities score 5.0
// so a mislabeled finding never silently drops to the floor.
var baseScores = map[string]float64{
	"critical":      9.5,
	"high":          8.0,
	"major":         8.0,
	"medium":        6.0,
	"low":           3.0,
	"minor":         3.0,
	"informational": 1.0,
	"info":          1.0,
}

const defaultBase = 5.0

// Score computes the risk score for a severity and confidence pair. The
// confidence factor scales the base by at most 40%, so a zero-confidence
// finding still retains 60% of its severity weight.
func Score(severity schema.Severity, confidence float64) float64 {
	base, ok := baseScores[strings.ToLower(string(severity))]
	if !ok {
		base = defaultBase
	}
	raw := base * (0.6 + 0.4*confidence)
	return math.Round(raw*100) / 100
}

// Annotate writes each finding's score into its explainability trace. It
// mutates scores in place and never removes or reorders findings.
func Annotate(findings []schema.Finding) {
	for i := range findings {
		score := Score(findings[i].Severity, findings[i].Confidence)
		if findings[i].ExplainabilityTrace == nil {
			findings[i].ExplainabilityTrace = make(map[string]interface{})
		}
		findings[i].ExplainabilityTrace["risk_score"] = score
	}
}
