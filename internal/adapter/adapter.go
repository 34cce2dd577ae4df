// Package adapter defines the uniform contract every wrapped analysis tool
// implements, plus the registry the engine builds once at construction.
// Adapters only spawn and parse their tools; detection logic lives in the
// external binaries.
package adapter

import (
	"context"
	"time"
)

// Kind tags how an adapter analyzes a target. The calibrator switches on it
// for tool-specific confidence adjustment; nothing else inspects it.
type Kind string

const (
	// KindStatic covers syntactic and dataflow analyzers.
	KindStatic Kind = "static"
	// KindFuzzing covers property-based fuzzers.
	KindFuzzing Kind = "fuzzing"
	// KindSymbolic covers symbolic-execution and adversarial tools.
	KindSymbolic Kind = "symbolic"
)

// RawFinding is the loosely-typed finding shape an adapter produces before
// normalization. Well-known keys: title, description, severity, swc_id,
// line_numbers, confidence, tool, tool_version, file_path, function_name,
// vulnerability_type, reproduction_steps, recommendations.
type RawFinding map[string]interface{}

// Adapter is the capability contract for one external analysis tool.
// Run must not block past the given timeout; an empty result list is a
// valid success, and real failures surface as errors for the runners to
// isolate.
type Adapter interface {
	// Name returns the stable tool name used in findings and config.
	Name() string
	// Version returns the wrapped tool version string.
	Version() string
	// Run analyzes one target and returns raw findings.
	Run(ctx context.Context, target string, timeout time.Duration, options map[string]interface{}) ([]RawFinding, error)
	// ParseOutput converts raw tool output into finding maps.
	ParseOutput(output string) ([]RawFinding, error)
}

// Registration pairs an adapter with the metadata the runners and the
// calibrator need. The kind travels with the registration so no component
// ever type-switches on concrete adapter types.
type Registration struct {
	Adapter  Adapter
	Kind     Kind
	Accuracy float64
	Timeout  time.Duration // 0 means use the phase-wide timeout
	Options  map[string]interface{}
}

// ToolTimeout resolves this registration's timeout against the phase default
func (r Registration) ToolTimeout(phase time.Duration) time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return phase
}
