package export

import (
	"encoding/json"
	"time"

	"github.com/openauditlabs/sentry/internal/schema"
)

// JSONReport is the top-level JSON export shape
type JSONReport struct {
	Metadata JSONMetadata           `json:"metadata"`
	Summary  JSONSummary            `json:"summary"`
	Result   *schema.AnalysisResult `json:"result"`
}

// JSONMetadata contains report metadata
type JSONMetadata struct {
	Tool        string    `json:"tool"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
}

// JSONSummary contains summary statistics
type JSONSummary struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByTool     map[string]int `json:"by_tool"`
	ToolErrors int            `json:"tool_errors"`
}

// JSONExporter exports results to JSON
type JSONExporter struct {
	toolName    string
	toolVersion string
}

// NewJSONExporter creates a new JSON exporter
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{
		toolName:    "sentry",
		toolVersion: "1.0.0",
	}
}

// Export renders a result as an indented JSON report
func (e *JSONExporter) Export(result *schema.AnalysisResult) ([]byte, error) {
	summary := JSONSummary{
		Total:      len(result.Findings),
		BySeverity: make(map[string]int),
		ByTool:     make(map[string]int),
		ToolErrors: len(result.ToolErrors),
	}
	for _, f := range result.Findings {
		summary.BySeverity[string(f.Severity)]++
		summary.ByTool[f.ToolName]++
	}

	report := JSONReport{
		Metadata: JSONMetadata{
			Tool:        e.toolName,
			Version:     e.toolVersion,
			GeneratedAt: time.Now().UTC(),
		},
		Summary: summary,
		Result:  result,
	}

	return json.MarshalIndent(report, "", "  ")
}

// ContentType returns the MIME type for JSON
func (e *JSONExporter) ContentType() string {
	return "application/json"
}

// FileExtension returns the file extension for JSON
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// FormatName returns the format name
func (e *JSONExporter) FormatName() string {
	return "json"
}
