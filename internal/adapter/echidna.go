package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// echidnaJSON mirrors `echidna-test --format json` output
type echidnaJSON struct {
	Tests []struct {
		Name      string `json:"name"`
		Pass      bool   `json:"pass"`
		Message   string `json:"message"`
		Locations []int  `json:"locations"`
	} `json:"tests"`
}

// Echidna wraps the echidna property fuzzer
type Echidna struct{}

// NewEchidna returns an Echidna adapter
func NewEchidna() *Echidna {
	return &Echidna{}
}

func (e *Echidna) Name() string {
	return "echidna"
}

func (e *Echidna) Version() string {
	return "2.2.3"
}

// Run fuzzes one target's properties. Only failed properties become
// findings; an all-pass run is a successful empty result.
func (e *Echidna) Run(ctx context.Context, target string, timeout time.Duration, options map[string]interface{}) ([]RawFinding, error) {
	args := []string{target, "--format", "json"}
	if limit, ok := options["test_limit"].(int); ok && limit > 0 {
		args = append(args, "--test-limit", fmt.Sprintf("%d", limit))
	}

	out, err := runCommand(ctx, e.Name(), "echidna-test", timeout, args, 1)
	if err != nil {
		return nil, err
	}
	return e.ParseOutput(out)
}

// ParseOutput converts echidna's JSON report into raw finding maps
func (e *Echidna) ParseOutput(output string) ([]RawFinding, error) {
	var doc echidnaJSON
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return nil, fmt.Errorf("echidna output parse: %w", err)
	}

	var findings []RawFinding
	for _, test := range doc.Tests {
		if test.Pass {
			continue
		}
		raw := RawFinding{
			"title":              fmt.Sprintf("Property Violation: %s", test.Name),
			"vulnerability_type": "property_violation",
			"description":        test.Message,
			"severity":           "High",
			"confidence":         "high",
			"tool":               e.Name(),
			"tool_version":       e.Version(),
			"reproduction_steps": fmt.Sprintf("Run echidna-test against property %s", test.Name),
		}
		if len(test.Locations) > 0 {
			raw["line_numbers"] = test.Locations
		}
		findings = append(findings, raw)
	}
	return findings, nil
}
