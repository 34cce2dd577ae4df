// Package export renders analysis results into interchange formats for
// CI systems and report consumers.
package export

import (
	"fmt"

	"github.com/openauditlabs/sentry/internal/schema"
)

// Exporter is the interface for all export formats
type Exporter interface {
	Export(result *schema.AnalysisResult) ([]byte, error)
	ContentType() string
	FileExtension() string
	FormatName() string
}

// ValidFormats contains all supported export formats
var ValidFormats = []string{"json", "sarif", "md", "markdown"}

// GetExporter returns an exporter for the given format
func GetExporter(format string) (Exporter, error) {
	switch format {
	case "json":
		return NewJSONExporter(), nil
	case "sarif":
		return NewSARIFExporter(), nil
	case "md", "markdown":
		return NewMarkdownExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s (valid: %v)", format, ValidFormats)
	}
}

// Result exports a result to the specified format
func Result(result *schema.AnalysisResult, format string) ([]byte, error) {
	exporter, err := GetExporter(format)
	if err != nil {
		return nil, err
	}
	return exporter.Export(result)
}
