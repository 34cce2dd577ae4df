package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openauditlabs/sentry/internal/adapter"
	"github.com/openauditlabs/sentry/internal/analysis"
	"github.com/openauditlabs/sentry/internal/config"
	"github.com/openauditlabs/sentry/internal/schema"
	"github.com/openauditlabs/sentry/internal/telemetry"
)

// stubAdapter is an in-memory adapter returning canned raw findings. It
// counts invocations so tests can assert on when adapters do not run.
type stubAdapter struct {
	name    string
	results []adapter.RawFinding
	err     error
	panics  bool
	calls   atomic.Int32
}

func (s *stubAdapter) Name() string    { return s.name }
func (s *stubAdapter) Version() string { return "0.0.1" }

func (s *stubAdapter) Run(ctx context.Context, target string, timeout time.Duration, options map[string]interface{}) ([]adapter.RawFinding, error) {
	s.calls.Add(1)
	if s.panics {
		panic("stub exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *stubAdapter) ParseOutput(output string) ([]adapter.RawFinding, error) {
	return nil, nil
}

func writeContract(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Vault.sol")
	require.NoError(t, os.WriteFile(path, []byte("contract Vault {}"), 0644))
	return path
}

func newTestEngine(t *testing.T, static, dynamic *stubAdapter) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Static.Tools = map[string]config.ToolConfig{}
	cfg.Dynamic.Tools = map[string]config.ToolConfig{}

	reg := adapter.NewRegistry(cfg)
	if static != nil {
		reg.Register(adapter.Registration{Adapter: static, Kind: adapter.KindStatic, Accuracy: 0.8}, false)
	}
	if dynamic != nil {
		reg.Register(adapter.Registration{Adapter: dynamic, Kind: adapter.KindFuzzing, Accuracy: 0.8}, true)
	}
	return NewWithRegistry(cfg, reg, telemetry.NopLogger(), telemetry.NewMetrics())
}

func rawFinding(title, severity string, confidence float64) adapter.RawFinding {
	return adapter.RawFinding{
		"title":      title,
		"severity":   severity,
		"confidence": confidence,
	}
}

func TestAnalyzeEndToEnd(t *testing.T) {
	static := &stubAdapter{name: "stub-static", results: []adapter.RawFinding{
		rawFinding("Reentrancy", "high", 0.9),
	}}
	dynamic := &stubAdapter{name: "stub-fuzz", results: []adapter.RawFinding{
		rawFinding("Property Violation", "medium", 0.7),
	}}
	e := newTestEngine(t, static, dynamic)

	req := schema.NewRequest([]string{writeContract(t)})
	result, err := e.Analyze(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Finalized())
	assert.Equal(t, PhaseFinalized, e.Phase())
	assert.Equal(t, 2, result.TotalFindings)
	assert.Empty(t, result.ToolErrors)
	assert.Equal(t, 1, result.SeverityDistribution[schema.SeverityMajor])
	assert.Equal(t, 1, result.SeverityDistribution[schema.SeverityMedium])
	assert.NotNil(t, result.EndTime)
	assert.NotNil(t, result.ExplainabilityReport)

	for _, f := range result.Findings {
		require.NotNil(t, f.ExplainabilityTrace, "finding %s not scored", f.ID)
		assert.Contains(t, f.ExplainabilityTrace, "risk_score")
	}
}

func TestAnalyzeStaticFindingsPrecedeDynamic(t *testing.T) {
	static := &stubAdapter{name: "stub-static", results: []adapter.RawFinding{
		rawFinding("Static Hit", "low", 0.5),
	}}
	dynamic := &stubAdapter{name: "stub-fuzz", results: []adapter.RawFinding{
		rawFinding("Dynamic Hit", "low", 0.5),
	}}
	e := newTestEngine(t, static, dynamic)

	result, err := e.Analyze(context.Background(), schema.NewRequest([]string{writeContract(t)}))
	require.NoError(t, err)
	require.Len(t, result.Findings, 2)
	assert.Equal(t, "Static Hit", result.Findings[0].Description)
	assert.Equal(t, "Dynamic Hit", result.Findings[1].Description)
}

func TestAnalyzeValidationFailsBeforeAdapters(t *testing.T) {
	static := &stubAdapter{name: "stub-static"}
	dynamic := &stubAdapter{name: "stub-fuzz"}
	e := newTestEngine(t, static, dynamic)

	req := schema.NewRequest(nil)
	result, err := e.Analyze(context.Background(), req)
	assert.Nil(t, result)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, int32(0), static.calls.Load())
	assert.Equal(t, int32(0), dynamic.calls.Load())
}

func TestAnalyzeRejectsMissingTarget(t *testing.T) {
	static := &stubAdapter{name: "stub-static"}
	e := newTestEngine(t, static, nil)

	req := schema.NewRequest([]string{filepath.Join(t.TempDir(), "missing.sol")})
	result, err := e.Analyze(context.Background(), req)
	assert.Nil(t, result)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, int32(0), static.calls.Load())
}

func TestAnalyzePhaseSelection(t *testing.T) {
	static := &stubAdapter{name: "stub-static", results: []adapter.RawFinding{
		rawFinding("Static Hit", "low", 0.5),
	}}
	dynamic := &stubAdapter{name: "stub-fuzz", results: []adapter.RawFinding{
		rawFinding("Dynamic Hit", "low", 0.5),
	}}
	e := newTestEngine(t, static, dynamic)

	req := schema.NewRequest([]string{writeContract(t)})
	req.IncludeDynamic = false

	result, err := e.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalFindings)
	assert.Equal(t, int32(0), dynamic.calls.Load())
}

func TestAnalyzeNoPhasesSelected(t *testing.T) {
	static := &stubAdapter{name: "stub-static", results: []adapter.RawFinding{
		rawFinding("Static Hit", "low", 0.5),
	}}
	e := newTestEngine(t, static, nil)

	req := schema.NewRequest([]string{writeContract(t)})
	req.IncludeStatic = false
	req.IncludeDynamic = false

	result, err := e.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Finalized())
	assert.Zero(t, result.TotalFindings)
	assert.Equal(t, int32(0), static.calls.Load())
}

func TestAnalyzeScoringDisabled(t *testing.T) {
	static := &stubAdapter{name: "stub-static", results: []adapter.RawFinding{
		rawFinding("Static Hit", "high", 0.9),
	}}
	e := newTestEngine(t, static, nil)

	req := schema.NewRequest([]string{writeContract(t)})
	req.IncludeScoring = false

	result, err := e.Analyze(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.NotContains(t, result.Findings[0].ExplainabilityTrace, "risk_score")
}

func TestAnalyzeIsolatesAdapterFailure(t *testing.T) {
	static := &stubAdapter{name: "stub-static", err: errors.New("binary missing")}
	dynamic := &stubAdapter{name: "stub-fuzz", results: []adapter.RawFinding{
		rawFinding("Dynamic Hit", "medium", 0.7),
	}}
	e := newTestEngine(t, static, dynamic)

	result, err := e.Analyze(context.Background(), schema.NewRequest([]string{writeContract(t)}))
	require.NoError(t, err, "adapter failure must not fail the run")
	assert.Equal(t, 1, result.TotalFindings)
	require.Len(t, result.ToolErrors, 1)
	assert.Equal(t, "stub-static", result.ToolErrors[0].ToolName)
	assert.Equal(t, analysis.ErrTypeExecution, result.ToolErrors[0].ErrorType)
}

func TestAnalyzeContainsAdapterPanic(t *testing.T) {
	static := &stubAdapter{name: "stub-static", panics: true}
	dynamic := &stubAdapter{name: "stub-fuzz", results: []adapter.RawFinding{
		rawFinding("Dynamic Hit", "medium", 0.7),
	}}
	e := newTestEngine(t, static, dynamic)

	result, err := e.Analyze(context.Background(), schema.NewRequest([]string{writeContract(t)}))
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalFindings)
	require.Len(t, result.ToolErrors, 1)
	assert.Equal(t, analysis.ErrTypeOrchestra, result.ToolErrors[0].ErrorType)
}

func TestAnalyzeAgentPlaceholder(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	req := schema.NewRequest([]string{writeContract(t)})
	req.EnableAgents = true

	result, err := e.Analyze(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.AgentConsensus)
	assert.Equal(t, "unavailable", result.AgentConsensus["status"])
}

func TestAnalyzeExplainabilityReport(t *testing.T) {
	static := &stubAdapter{name: "stub-static", results: []adapter.RawFinding{
		rawFinding("Static Hit", "high", 0.9),
	}}
	e := newTestEngine(t, static, nil)

	result, err := e.Analyze(context.Background(), schema.NewRequest([]string{writeContract(t)}))
	require.NoError(t, err)
	require.NotNil(t, result.ExplainabilityReport)
	assert.Equal(t, 1, result.ExplainabilityReport["total_findings"])
	assert.Equal(t, 1, result.ExplainabilityReport["scored_findings"])
}

func TestAnalyzeDynamicConfidenceCalibrated(t *testing.T) {
	dynamic := &stubAdapter{name: "stub-fuzz", results: []adapter.RawFinding{
		rawFinding("Dynamic Hit", "medium", 1.0),
	}}
	e := newTestEngine(t, nil, dynamic)

	result, err := e.Analyze(context.Background(), schema.NewRequest([]string{writeContract(t)}))
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)

	// 1.0 raw, fuzzing kind, accuracy 0.8: calibrated to 0.8, Medium band.
	assert.InDelta(t, 0.8, result.Findings[0].Confidence, 1e-9)
	assert.Equal(t, schema.ConfidenceMedium, result.Findings[0].ConfidenceLevel)
}

func TestApplyOptionsOverride(t *testing.T) {
	stub := &stubAdapter{name: "stub-static"}
	regs := []adapter.Registration{{
		Adapter: stub,
		Kind:    adapter.KindStatic,
		Options: map[string]interface{}{"depth": 3, "mode": "fast"},
	}}

	merged := applyOptions(regs, schema.ToolOptions{
		"stub-static": {"depth": 9},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, 9, merged[0].Options["depth"])
	assert.Equal(t, "fast", merged[0].Options["mode"])

	// The registry's own registration is untouched.
	assert.Equal(t, 3, regs[0].Options["depth"])
}

func TestApplyOptionsNoOverrides(t *testing.T) {
	stub := &stubAdapter{name: "stub-static"}
	regs := []adapter.Registration{{Adapter: stub, Kind: adapter.KindStatic}}
	assert.Equal(t, regs, applyOptions(regs, nil))
}
