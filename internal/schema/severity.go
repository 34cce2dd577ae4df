package schema

// Severity represents the severity level of a finding
type Severity string

const (
	SeverityCritical      Severity = "Critical"
	SeverityMajor         Severity = "Major"
	SeverityMedium        Severity = "Medium"
	SeverityMinor         Severity = "Minor"
	SeverityInformational Severity = "Informational"
)

// ValidSeverities contains all valid severity levels
var ValidSeverities = []Severity{
	SeverityCritical,
	SeverityMajor,
	SeverityMedium,
	SeverityMinor,
	SeverityInformational,
}

// IsValidSeverity checks if a severity is valid
func IsValidSeverity(s Severity) bool {
	for _, valid := range ValidSeverities {
		if s == valid {
			return true
		}
	}
	return false
}

// SeverityWeight returns a numeric weight for sorting by severity
func SeverityWeight(s Severity) int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityMajor:
		return 4
	case SeverityMedium:
		return 3
	case SeverityMinor:
		return 2
	case SeverityInformational:
		return 1
	default:
		return 0
	}
}

// ExploitComplexity represents how difficult a finding is to exploit
type ExploitComplexity string

const (
	ComplexityLow    ExploitComplexity = "Low"
	ComplexityMedium ExploitComplexity = "Medium"
	ComplexityHigh   ExploitComplexity = "High"
)

// ConfidenceLevel is the discrete trust level assigned to a finding after
// calibration. Levels are ordered: Low < Medium < High < Critical.
type ConfidenceLevel string

const (
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceMedium   ConfidenceLevel = "medium"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceCritical ConfidenceLevel = "critical"
)

// ValidConfidenceLevels contains all valid confidence levels
var ValidConfidenceLevels = []ConfidenceLevel{
	ConfidenceLow,
	ConfidenceMedium,
	ConfidenceHigh,
	ConfidenceCritical,
}

// ConfidenceWeight returns a numeric weight for ordering confidence levels
func ConfidenceWeight(c ConfidenceLevel) int {
	switch c {
	case ConfidenceCritical:
		return 4
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// ConfidenceLevelForScore buckets a calibrated score into a ConfidenceLevel.
// The score must already be clamped to [0,1]; thresholds are checked in
// descending order.
func ConfidenceLevelForScore(score float64) ConfidenceLevel {
	switch {
	case score >= 0.97:
		return ConfidenceCritical
	case score >= 0.90:
		return ConfidenceHigh
	case score >= 0.70:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
