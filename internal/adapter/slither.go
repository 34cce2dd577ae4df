package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// slitherJSON mirrors the subset of `slither --json` output we consume
type slitherJSON struct {
	Success bool `json:"success"`
	Results struct {
		Detectors []struct {
			Check       string `json:"check"`
			Impact      string `json:"impact"`
			Confidence  string `json:"confidence"`
			Description string `json:"description"`
			Elements    []struct {
				Name          string `json:"name"`
				Type          string `json:"type"`
				SourceMapping struct {
					Filename string `json:"filename_relative"`
					Lines    []int  `json:"lines"`
				} `json:"source_mapping"`
			} `json:"elements"`
		} `json:"detectors"`
	} `json:"results"`
}

// Slither wraps the slither static analyzer
type Slither struct{}

// NewSlither returns a Slither adapter
func NewSlither() *Slither {
	return &Slither{}
}

func (s *Slither) Name() string {
	return "slither"
}

func (s *Slither) Version() string {
	return "0.10.0"
}

// Run invokes `slither <target> --json -`. Slither exits non-zero when
// detectors fire, so exit code 255 and 1 are treated as success.
func (s *Slither) Run(ctx context.Context, target string, timeout time.Duration, options map[string]interface{}) ([]RawFinding, error) {
	args := []string{target, "--json", "-"}
	if extra, ok := options["detectors"].(string); ok && extra != "" {
		args = append(args, "--detect", extra)
	}

	out, err := runCommand(ctx, s.Name(), "slither", timeout, args, 1, 255)
	if err != nil {
		return nil, err
	}
	return s.ParseOutput(out)
}

// ParseOutput converts slither's JSON report into raw finding maps
func (s *Slither) ParseOutput(output string) ([]RawFinding, error) {
	var doc slitherJSON
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return nil, fmt.Errorf("slither output parse: %w", err)
	}

	findings := make([]RawFinding, 0, len(doc.Results.Detectors))
	for _, det := range doc.Results.Detectors {
		raw := RawFinding{
			"title":       det.Check,
			"description": det.Description,
			"severity":    det.Impact,
			"confidence":  det.Confidence,
			"tool":        s.Name(),
			"tool_version": s.Version(),
		}
		if len(det.Elements) > 0 {
			el := det.Elements[0]
			raw["file_path"] = el.SourceMapping.Filename
			raw["line_numbers"] = el.SourceMapping.Lines
			if el.Type == "function" {
				raw["function_name"] = el.Name
			}
		}
		findings = append(findings, raw)
	}
	return findings, nil
}
