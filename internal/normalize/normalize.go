// Package normalize converts the loosely-typed finding maps adapters emit
// into the canonical schema.Finding. Unknown keys are dropped; missing
// required fields get documented defaults.
package normalize

import (
	"strconv"
	"strings"

	"github.com/openauditlabs/sentry/internal/adapter"
	"github.com/openauditlabs/sentry/internal/schema"
)

// Defaults for required fields absent from a raw result.
const (
	DefaultDescription = "No description"
	DefaultSteps       = "No steps provided"
	DefaultConfidence  = 0.5
)

// confidenceBuckets maps textual confidence to fixed constants
var confidenceBuckets = map[string]float64{
	"high":   0.9,
	"medium": 0.7,
	"low":    0.4,
}

// Source is implemented by typed adapter results that can render themselves
// as a raw finding map. Everything else goes through map access directly.
type Source interface {
	RawFinding() adapter.RawFinding
}

// Severity maps a tool severity string onto the canonical scale. The match
// is case-insensitive; anything unrecognized (or empty) is Medium.
func Severity(s string) schema.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return schema.SeverityCritical
	case "high", "major":
		return schema.SeverityMajor
	case "medium":
		return schema.SeverityMedium
	case "low", "minor":
		return schema.SeverityMinor
	case "informational", "info":
		return schema.SeverityInformational
	default:
		return schema.SeverityMedium
	}
}

// Confidence extracts a confidence in [0,1] from a numeric value or a
// textual bucket. Absent or unparsable values default to 0.5.
func Confidence(v interface{}) float64 {
	switch c := v.(type) {
	case float64:
		return clamp(c)
	case float32:
		return clamp(float64(c))
	case int:
		return clamp(float64(c))
	case string:
		if bucket, ok := confidenceBuckets[strings.ToLower(strings.TrimSpace(c))]; ok {
			return bucket
		}
		if parsed, err := strconv.ParseFloat(c, 64); err == nil {
			return clamp(parsed)
		}
		return DefaultConfidence
	default:
		return DefaultConfidence
	}
}

// Finding converts one raw adapter result into the canonical schema. The
// adapter name is the fallback tool attribution when the result carries none.
func Finding(toolName string, v interface{}) schema.Finding {
	var raw adapter.RawFinding
	switch r := v.(type) {
	case adapter.RawFinding:
		raw = r
	case map[string]interface{}:
		raw = r
	case Source:
		raw = r.RawFinding()
	default:
		raw = adapter.RawFinding{}
	}

	f := schema.NewFinding()
	f.Severity = Severity(str(raw, "severity"))
	f.ToolName = strOr(raw, "tool", toolName)
	f.ToolVersion = strOr(raw, "tool_version", "1.0.0")
	f.FilePath = strOr(raw, "file_path", strOr(raw, "path", "unknown"))
	f.FunctionName = str(raw, "function_name")
	f.Description = strOr(raw, "description", strOr(raw, "title", DefaultDescription))
	f.ReproductionSteps = strOr(raw, "reproduction_steps", DefaultSteps)
	f.Confidence = Confidence(raw["confidence"])
	f.LineSpan = lineSpan(raw["line_numbers"])
	f.Recommendations = recommendations(raw["recommendations"])

	if swc := str(raw, "swc_id"); schema.IsValidSWC(swc) {
		f.SWCID = swc
	}
	if present, ok := raw["sanitizer_present"].(bool); ok {
		f.SanitizerPresent = present
	}
	return f
}

// lineSpan collapses a tool's line number list into a 1-indexed span.
// Accepted shapes: int, []int, JSON-decoded []interface{}, and "1,2,3".
func lineSpan(v interface{}) *schema.LineSpan {
	var lines []int
	switch l := v.(type) {
	case int:
		lines = []int{l}
	case []int:
		lines = l
	case []interface{}:
		for _, item := range l {
			if n, ok := item.(float64); ok {
				lines = append(lines, int(n))
			} else if n, ok := item.(int); ok {
				lines = append(lines, n)
			}
		}
	case string:
		for _, part := range strings.Split(l, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				lines = append(lines, n)
			}
		}
	}

	start, end := 0, 0
	for _, n := range lines {
		if n < 1 {
			continue
		}
		if start == 0 || n < start {
			start = n
		}
		if n > end {
			end = n
		}
	}
	if start == 0 {
		return nil
	}
	return &schema.LineSpan{Start: start, End: end}
}

func recommendations(v interface{}) []string {
	switch r := v.(type) {
	case []string:
		return r
	case string:
		if r == "" {
			return nil
		}
		return []string{r}
	case []interface{}:
		var out []string
		for _, item := range r {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func str(raw adapter.RawFinding, key string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}

func strOr(raw adapter.RawFinding, key, fallback string) string {
	if s := str(raw, key); s != "" {
		return s
	}
	return fallback
}

func clamp(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
