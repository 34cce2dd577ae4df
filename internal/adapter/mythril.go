package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// mythrilJSON mirrors `myth analyze -o json` output
type mythrilJSON struct {
	Issues []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
		SWCID       string `json:"swc-id"`
		Confidence  string `json:"confidence"`
		Function    string `json:"function"`
		Filename    string `json:"filename"`
		Lineno      int    `json:"lineno"`
	} `json:"issues"`
}

// Mythril wraps the mythril symbolic analyzer in its static role
type Mythril struct{}

// NewMythril returns a Mythril adapter
func NewMythril() *Mythril {
	return &Mythril{}
}

func (m *Mythril) Name() string {
	return "mythril"
}

func (m *Mythril) Version() string {
	return "0.24.8"
}

// Run invokes `myth analyze` with an execution timeout slightly under the
// process timeout so mythril can emit its report before being killed.
func (m *Mythril) Run(ctx context.Context, target string, timeout time.Duration, options map[string]interface{}) ([]RawFinding, error) {
	execBudget := int(timeout.Seconds()) - 10
	if execBudget < 10 {
		execBudget = int(timeout.Seconds())
	}
	args := []string{
		"analyze", target,
		"-o", "json",
		"--execution-timeout", strconv.Itoa(execBudget),
	}

	out, err := runCommand(ctx, m.Name(), "myth", timeout, args, 1)
	if err != nil {
		return nil, err
	}
	return m.ParseOutput(out)
}

// ParseOutput converts mythril's JSON report into raw finding maps
func (m *Mythril) ParseOutput(output string) ([]RawFinding, error) {
	var doc mythrilJSON
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return nil, fmt.Errorf("mythril output parse: %w", err)
	}

	findings := make([]RawFinding, 0, len(doc.Issues))
	for _, issue := range doc.Issues {
		swc := issue.SWCID
		if swc != "" && len(swc) <= 3 {
			// Mythril emits the bare number; prefix it.
			swc = "SWC-" + swc
		}
		raw := RawFinding{
			"title":        issue.Title,
			"description":  issue.Description,
			"severity":     issue.Severity,
			"swc_id":       swc,
			"confidence":   issue.Confidence,
			"tool":         m.Name(),
			"tool_version": m.Version(),
			"file_path":    issue.Filename,
		}
		if issue.Function != "" {
			raw["function_name"] = issue.Function
		}
		if issue.Lineno > 0 {
			raw["line_numbers"] = []int{issue.Lineno}
		}
		findings = append(findings, raw)
	}
	return findings, nil
}
