package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openauditlabs/sentry/internal/schema"
)

// MarkdownExporter renders a human-readable report
type MarkdownExporter struct{}

// NewMarkdownExporter creates a new markdown exporter
func NewMarkdownExporter() *MarkdownExporter {
	return &MarkdownExporter{}
}

// Export renders a result as a markdown report, findings ordered by
// severity weight descending.
func (e *MarkdownExporter) Export(result *schema.AnalysisResult) ([]byte, error) {
	var b strings.Builder

	b.WriteString("# Audit Report\n\n")
	fmt.Fprintf(&b, "**Request:** `%s`\n\n", result.RequestID)
	fmt.Fprintf(&b, "**Targets:** %d | **Findings:** %d | **Tool errors:** %d | **Duration:** %.2fs\n\n",
		len(result.Targets), result.TotalFindings, len(result.ToolErrors), result.Duration)

	if len(result.SeverityDistribution) > 0 {
		b.WriteString("## Severity Distribution\n\n")
		b.WriteString("| Severity | Count |\n|---|---|\n")
		for _, sev := range schema.ValidSeverities {
			if count := result.SeverityDistribution[sev]; count > 0 {
				fmt.Fprintf(&b, "| %s | %d |\n", sev, count)
			}
		}
		b.WriteString("\n")
	}

	if len(result.Findings) > 0 {
		b.WriteString("## Findings\n\n")
		ordered := make([]schema.Finding, len(result.Findings))
		copy(ordered, result.Findings)
		sort.SliceStable(ordered, func(i, j int) bool {
			return schema.SeverityWeight(ordered[i].Severity) > schema.SeverityWeight(ordered[j].Severity)
		})

		for i, f := range ordered {
			fmt.Fprintf(&b, "### %d. [%s] %s\n\n", i+1, f.Severity, f.Description)
			fmt.Fprintf(&b, "- **Tool:** %s %s\n", f.ToolName, f.ToolVersion)
			fmt.Fprintf(&b, "- **File:** `%s`", f.FilePath)
			if f.LineSpan != nil {
				fmt.Fprintf(&b, " (lines %d-%d)", f.LineSpan.Start, f.LineSpan.End)
			}
			b.WriteString("\n")
			if f.SWCID != "" {
				fmt.Fprintf(&b, "- **SWC:** %s\n", f.SWCID)
			}
			fmt.Fprintf(&b, "- **Confidence:** %.2f", f.Confidence)
			if f.ConfidenceLevel != "" {
				fmt.Fprintf(&b, " (%s)", f.ConfidenceLevel)
			}
			b.WriteString("\n")
			if f.ExplainabilityTrace != nil {
				if score, ok := f.ExplainabilityTrace["risk_score"]; ok {
					fmt.Fprintf(&b, "- **Risk score:** %v\n", score)
				}
			}
			if len(f.CrossChainImpact) > 0 {
				fmt.Fprintf(&b, "- **Cross-chain impact:** %s\n", strings.Join(f.CrossChainImpact, ", "))
			}
			if len(f.Recommendations) > 0 {
				b.WriteString("- **Recommendations:**\n")
				for _, rec := range f.Recommendations {
					fmt.Fprintf(&b, "  - %s\n", rec)
				}
			}
			b.WriteString("\n")
		}
	}

	if len(result.ToolErrors) > 0 {
		b.WriteString("## Tool Errors\n\n")
		for _, te := range result.ToolErrors {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", te.ToolName, te.ErrorType, te.ErrorMessage)
		}
		b.WriteString("\n")
	}

	return []byte(b.String()), nil
}

// ContentType returns the MIME type for markdown
func (e *MarkdownExporter) ContentType() string {
	return "text/markdown"
}

// FileExtension returns the file extension for markdown
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// FormatName returns the format name
func (e *MarkdownExporter) FormatName() string {
	return "markdown"
}
