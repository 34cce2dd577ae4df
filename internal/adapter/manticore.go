package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// manticoreJSON mirrors the findings file manticore writes per workspace
type manticoreJSON struct {
	Findings []struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
		Function    string `json:"function"`
		Line        int    `json:"line"`
	} `json:"findings"`
}

// Manticore wraps the manticore symbolic execution engine
type Manticore struct{}

// NewManticore returns a Manticore adapter
func NewManticore() *Manticore {
	return &Manticore{}
}

func (m *Manticore) Name() string {
	return "manticore"
}

func (m *Manticore) Version() string {
	return "0.3.7"
}

// Run invokes manticore against one target. Symbolic exploration regularly
// hits the budget on non-trivial contracts; the timeout kill is surfaced as
// a TimeoutError rather than silent truncation.
func (m *Manticore) Run(ctx context.Context, target string, timeout time.Duration, options map[string]interface{}) ([]RawFinding, error) {
	args := []string{target, "--no-color", "--core.mprocessing", "single"}
	if limit, ok := options["max_states"].(int); ok && limit > 0 {
		args = append(args, "--core.procs", "1", "--limit", fmt.Sprintf("%d", limit))
	}

	out, err := runCommand(ctx, m.Name(), "manticore", timeout, args)
	if err != nil {
		return nil, err
	}
	return m.ParseOutput(out)
}

// ParseOutput converts manticore's findings JSON into raw finding maps
func (m *Manticore) ParseOutput(output string) ([]RawFinding, error) {
	var doc manticoreJSON
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return nil, fmt.Errorf("manticore output parse: %w", err)
	}

	findings := make([]RawFinding, 0, len(doc.Findings))
	for _, f := range doc.Findings {
		raw := RawFinding{
			"title":              f.Type,
			"vulnerability_type": f.Type,
			"description":        f.Description,
			"severity":           f.Severity,
			"confidence":         "medium",
			"tool":               m.Name(),
			"tool_version":       m.Version(),
		}
		if f.Function != "" {
			raw["function_name"] = f.Function
		}
		if f.Line > 0 {
			raw["line_numbers"] = []int{f.Line}
		}
		findings = append(findings, raw)
	}
	return findings, nil
}
