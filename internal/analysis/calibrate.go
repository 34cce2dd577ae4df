// Package analysis contains the fan-out runners for both phases plus the
// trust-calibration pipeline applied to dynamic results.
package analysis

import (
	"github.com/openauditlabs/sentry/internal/adapter"
	"github.com/openauditlabs/sentry/internal/normalize"
	"github.com/openauditlabs/sentry/internal/schema"
)

// symbolicBoost is the multiplicative adjustment applied to symbolic and
// adversarial tools, whose positives are exploitable by construction.
const symbolicBoost = 1.2

// Calibrate turns one raw result's confidence signal into a discrete trust
// level. The pipeline is ordered: extract raw score, apply the kind-specific
// boost (clamped to 1.0), weight by the tool's configured accuracy, clamp to
// [0,1], then bucket. The accuracy weight applies after the boost, so no
// tool can exceed its accuracy ceiling.
func Calibrate(reg adapter.Registration, raw adapter.RawFinding) (float64, schema.ConfidenceLevel) {
	score := normalize.Confidence(raw["confidence"])

	if reg.Kind == adapter.KindSymbolic {
		score *= symbolicBoost
		if score > 1.0 {
			score = 1.0
		}
	}

	score *= reg.Accuracy
	if score < 0.0 {
		score = 0.0
	}
	if score > 1.0 {
		score = 1.0
	}

	return score, schema.ConfidenceLevelForScore(score)
}
