package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// adversarialJSON mirrors the exploit-state report the adversarial driver
// script emits on stdout.
type adversarialJSON struct {
	Exploits []struct {
		Function    string `json:"function"`
		Kind        string `json:"kind"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
		Replay      string `json:"replay"`
		Line        int    `json:"line"`
	} `json:"exploits"`
}

// AdversarialFuzz drives symbolic execution toward syntactically valid but
// adversarial edge-case inputs, reporting reachable assertion and require
// failures as exploitable states.
type AdversarialFuzz struct{}

// NewAdversarialFuzz returns an AdversarialFuzz adapter
func NewAdversarialFuzz() *AdversarialFuzz {
	return &AdversarialFuzz{}
}

func (a *AdversarialFuzz) Name() string {
	return "adversarial-fuzz"
}

func (a *AdversarialFuzz) Version() string {
	return "1.1.0"
}

// Run executes the adversarial driver against one target. A missing target
// file is the adapter's own failure, surfaced before the process spawns.
func (a *AdversarialFuzz) Run(ctx context.Context, target string, timeout time.Duration, options map[string]interface{}) ([]RawFinding, error) {
	if _, err := os.Stat(target); err != nil {
		return nil, fmt.Errorf("target %s not readable: %w", target, err)
	}

	solc := "0.8.19"
	if v, ok := options["solc_version"].(string); ok && v != "" {
		solc = v
	}
	args := []string{"run", "--json", "--solc", solc, target}
	if states, ok := options["max_states"].(int); ok && states > 0 {
		args = append(args, "--max-states", fmt.Sprintf("%d", states))
	}

	out, err := runCommand(ctx, a.Name(), "advfuzz", timeout, args, 1)
	if err != nil {
		return nil, err
	}
	return a.ParseOutput(out)
}

// ParseOutput converts the driver's exploit report into raw finding maps
func (a *AdversarialFuzz) ParseOutput(output string) ([]RawFinding, error) {
	var doc adversarialJSON
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return nil, fmt.Errorf("adversarial-fuzz output parse: %w", err)
	}

	findings := make([]RawFinding, 0, len(doc.Exploits))
	for _, ex := range doc.Exploits {
		severity := ex.Severity
		if severity == "" {
			severity = "High"
		}
		raw := RawFinding{
			"title":              fmt.Sprintf("Exploitable state in %s", ex.Function),
			"vulnerability_type": ex.Kind,
			"description":        ex.Description,
			"severity":           severity,
			"confidence":         "high",
			"tool":               a.Name(),
			"tool_version":       a.Version(),
			"function_name":      ex.Function,
			"reproduction_steps": ex.Replay,
		}
		if ex.Line > 0 {
			raw["line_numbers"] = []int{ex.Line}
		}
		findings = append(findings, raw)
	}
	return findings, nil
}
