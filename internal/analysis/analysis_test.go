package analysis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openauditlabs/sentry/internal/adapter"
	"github.com/openauditlabs/sentry/internal/schema"
)

// fakeAdapter is an in-memory adapter for exercising the runners
type fakeAdapter struct {
	name     string
	version  string
	results  map[string][]adapter.RawFinding // per target
	failOn   map[string]error                // per target
	calls    atomic.Int64
	blockFor time.Duration
}

func (a *fakeAdapter) Name() string    { return a.name }
func (a *fakeAdapter) Version() string { return a.version }

func (a *fakeAdapter) Run(ctx context.Context, target string, timeout time.Duration, options map[string]interface{}) ([]adapter.RawFinding, error) {
	a.calls.Add(1)
	if a.blockFor > 0 {
		select {
		case <-time.After(a.blockFor):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if a.blockFor > timeout {
			return nil, &adapter.TimeoutError{Tool: a.name, Timeout: timeout}
		}
	}
	if err, ok := a.failOn[target]; ok {
		return nil, err
	}
	return a.results[target], nil
}

func (a *fakeAdapter) ParseOutput(string) ([]adapter.RawFinding, error) {
	return nil, nil
}

func rawFinding(severity, confidence string) adapter.RawFinding {
	return adapter.RawFinding{
		"title":       "issue",
		"description": "something detected",
		"severity":    severity,
		"confidence":  confidence,
	}
}

func reg(a adapter.Adapter, kind adapter.Kind, accuracy float64) adapter.Registration {
	return adapter.Registration{Adapter: a, Kind: kind, Accuracy: accuracy}
}

func TestStaticRunnerIsolatesFailures(t *testing.T) {
	// Two adapters, two targets. One adapter fails on one target; the
	// other three pairs succeed with one finding each.
	good := &fakeAdapter{
		name: "slither",
		results: map[string][]adapter.RawFinding{
			"a.sol": {rawFinding("High", "high")},
			"b.sol": {rawFinding("Medium", "medium")},
		},
	}
	flaky := &fakeAdapter{
		name: "mythril",
		results: map[string][]adapter.RawFinding{
			"a.sol": {rawFinding("Low", "low")},
		},
		failOn: map[string]error{
			"b.sol": &adapter.ExecError{Tool: "mythril", Stderr: "boom", ExitCode: 2, Err: errors.New("crashed")},
		},
	}

	runner := NewStaticRunner(4, nil, nil)
	findings, toolErrors := runner.Run(context.Background(),
		[]adapter.Registration{reg(good, adapter.KindStatic, 0.8), reg(flaky, adapter.KindStatic, 0.8)},
		[]string{"a.sol", "b.sol"}, time.Minute)

	assert.Len(t, findings, 3, "successful pairs must be unaffected")
	require.Len(t, toolErrors, 1, "exactly one error per failing pair")
	assert.Equal(t, "mythril", toolErrors[0].ToolName)
	assert.Equal(t, ErrTypeExecution, toolErrors[0].ErrorType)
	assert.Equal(t, "boom", toolErrors[0].Stderr)
	require.NotNil(t, toolErrors[0].ExitCode)
	assert.Equal(t, 2, *toolErrors[0].ExitCode)
}

func TestStaticRunnerTimeoutClassified(t *testing.T) {
	slow := &fakeAdapter{
		name: "manticore",
		failOn: map[string]error{
			"a.sol": &adapter.TimeoutError{Tool: "manticore", Timeout: time.Second},
		},
	}

	runner := NewStaticRunner(2, nil, nil)
	findings, toolErrors := runner.Run(context.Background(),
		[]adapter.Registration{reg(slow, adapter.KindSymbolic, 0.8)},
		[]string{"a.sol"}, time.Second)

	assert.Empty(t, findings)
	require.Len(t, toolErrors, 1)
	assert.Equal(t, ErrTypeTimeout, toolErrors[0].ErrorType)
}

func TestStaticRunnerEmptyResultIsSuccess(t *testing.T) {
	quiet := &fakeAdapter{name: "slither"}
	runner := NewStaticRunner(2, nil, nil)
	findings, toolErrors := runner.Run(context.Background(),
		[]adapter.Registration{reg(quiet, adapter.KindStatic, 0.8)},
		[]string{"a.sol"}, time.Minute)

	assert.Empty(t, findings)
	assert.Empty(t, toolErrors)
}

func TestStaticRunnerNoAdapters(t *testing.T) {
	runner := NewStaticRunner(2, nil, nil)
	findings, toolErrors := runner.Run(context.Background(), nil, []string{"a.sol"}, time.Minute)
	assert.Empty(t, findings)
	assert.Empty(t, toolErrors)
}

func TestDynamicTimeoutIsolation(t *testing.T) {
	// One adapter times out on its target while the other returns two
	// findings: the result must carry exactly those 2 findings and one
	// ToolError naming the timed-out adapter.
	slow := &fakeAdapter{
		name: "echidna",
		failOn: map[string]error{
			"a.sol": &adapter.TimeoutError{Tool: "echidna", Timeout: time.Second},
			"b.sol": &adapter.TimeoutError{Tool: "echidna", Timeout: time.Second},
		},
	}
	productive := &fakeAdapter{
		name: "adversarial-fuzz",
		results: map[string][]adapter.RawFinding{
			"b.sol": {rawFinding("High", "high"), rawFinding("Critical", "high")},
		},
	}

	orch := NewDynamicOrchestrator(4, false, false, nil, nil)
	findings, toolErrors, _ := orch.Run(context.Background(),
		[]adapter.Registration{
			reg(slow, adapter.KindFuzzing, 0.8),
			reg(productive, adapter.KindSymbolic, 0.85),
		},
		[]string{"a.sol", "b.sol"}, time.Minute)

	assert.Len(t, findings, 2)
	require.Len(t, toolErrors, 1)
	assert.Equal(t, "echidna", toolErrors[0].ToolName)
	assert.Equal(t, ErrTypeTimeout, toolErrors[0].ErrorType)
}

func TestDynamicCalibrationApplied(t *testing.T) {
	symbolic := &fakeAdapter{
		name: "adversarial-fuzz",
		results: map[string][]adapter.RawFinding{
			"a.sol": {rawFinding("High", "high")},
		},
	}

	orch := NewDynamicOrchestrator(1, false, false, nil, nil)
	findings, _, _ := orch.Run(context.Background(),
		[]adapter.Registration{reg(symbolic, adapter.KindSymbolic, 0.9)},
		[]string{"a.sol"}, time.Minute)

	require.Len(t, findings, 1)
	// 0.9 raw → ×1.2 boost clamps to 1.0 → ×0.9 accuracy = 0.9 → High.
	assert.InDelta(t, 0.9, findings[0].Confidence, 1e-9)
	assert.Equal(t, schema.ConfidenceHigh, findings[0].ConfidenceLevel)
}

func TestDynamicCrossChainAnnotation(t *testing.T) {
	raw := rawFinding("Medium", "medium")
	raw["vulnerability_type"] = "timestamp_dependence"
	tool := &fakeAdapter{
		name:    "echidna",
		results: map[string][]adapter.RawFinding{"a.sol": {raw}},
	}

	orch := NewDynamicOrchestrator(1, true, false, nil, nil)
	findings, _, _ := orch.Run(context.Background(),
		[]adapter.Registration{reg(tool, adapter.KindFuzzing, 0.8)},
		[]string{"a.sol"}, time.Minute)

	require.Len(t, findings, 1)
	assert.Equal(t, []string{"ethereum", "arbitrum"}, findings[0].CrossChainImpact)
}

func TestDynamicCrossChainDisabled(t *testing.T) {
	raw := rawFinding("Medium", "medium")
	raw["vulnerability_type"] = "gas_limit"
	tool := &fakeAdapter{
		name:    "echidna",
		results: map[string][]adapter.RawFinding{"a.sol": {raw}},
	}

	orch := NewDynamicOrchestrator(1, false, false, nil, nil)
	findings, _, _ := orch.Run(context.Background(),
		[]adapter.Registration{reg(tool, adapter.KindFuzzing, 0.8)},
		[]string{"a.sol"}, time.Minute)

	require.Len(t, findings, 1)
	assert.Nil(t, findings[0].CrossChainImpact)
}

func TestDynamicFeedbackToggle(t *testing.T) {
	tool := &fakeAdapter{
		name: "echidna",
		results: map[string][]adapter.RawFinding{
			"a.sol": {rawFinding("High", "high"), rawFinding("Low", "low")},
		},
	}
	regs := []adapter.Registration{reg(tool, adapter.KindFuzzing, 0.8)}

	off := NewDynamicOrchestrator(1, false, false, nil, nil)
	_, _, summary := off.Run(context.Background(), regs, []string{"a.sol"}, time.Minute)
	assert.Nil(t, summary, "disabled feedback must produce nothing")

	on := NewDynamicOrchestrator(1, false, true, nil, nil)
	_, _, summary = on.Run(context.Background(), regs, []string{"a.sol"}, time.Minute)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.TotalFindings)
	assert.Equal(t, 2, summary.ByTool["echidna"])
	total := 0
	for _, n := range summary.ByConfidence {
		total += n
	}
	assert.Equal(t, 2, total)
}

func TestCalibrateOrdering(t *testing.T) {
	// The symbolic boost applies before the accuracy weight, and the boost
	// clamp happens before weighting: raw 0.9 → 1.0 → ×0.5 = 0.5. If the
	// weight applied first, the result would be 0.54.
	r := adapter.Registration{Kind: adapter.KindSymbolic, Accuracy: 0.5}
	score, level := Calibrate(r, adapter.RawFinding{"confidence": 0.9})
	assert.InDelta(t, 0.5, score, 1e-9)
	assert.Equal(t, schema.ConfidenceLow, level)
}

func TestCalibrateDefaults(t *testing.T) {
	r := adapter.Registration{Kind: adapter.KindStatic, Accuracy: 0.8}
	score, level := Calibrate(r, adapter.RawFinding{})
	assert.InDelta(t, 0.4, score, 1e-9) // 0.5 default × 0.8
	assert.Equal(t, schema.ConfidenceLow, level)
}

func TestCalibrateBuckets(t *testing.T) {
	r := adapter.Registration{Kind: adapter.KindStatic, Accuracy: 1.0}
	cases := []struct {
		confidence float64
		want       schema.ConfidenceLevel
	}{
		{0.99, schema.ConfidenceCritical},
		{0.95, schema.ConfidenceHigh},
		{0.8, schema.ConfidenceMedium},
		{0.3, schema.ConfidenceLow},
	}
	for _, c := range cases {
		_, level := Calibrate(r, adapter.RawFinding{"confidence": c.confidence})
		assert.Equal(t, c.want, level, "confidence %v", c.confidence)
	}
}

func TestCalibrateMonotonic(t *testing.T) {
	for _, kind := range []adapter.Kind{adapter.KindStatic, adapter.KindFuzzing, adapter.KindSymbolic} {
		r := adapter.Registration{Kind: kind, Accuracy: 0.8}
		prev := -1
		for i := 0; i <= 100; i++ {
			raw := adapter.RawFinding{"confidence": float64(i) / 100}
			_, level := Calibrate(r, raw)
			weight := schema.ConfidenceWeight(level)
			if weight < prev {
				t.Fatalf("kind %s: bucket decreased at raw score %v", kind, float64(i)/100)
			}
			prev = weight
		}
	}
}

func TestCrossChainImpactTable(t *testing.T) {
	assert.Equal(t, []string{"ethereum", "polygon", "bsc"}, CrossChainImpact("gas_limit"))
	assert.Equal(t, []string{"ethereum", "polygon", "bsc"}, CrossChainImpact("block_gas_limit"))
	assert.Equal(t, []string{"ethereum", "arbitrum"}, CrossChainImpact("timestamp_dependence"))
	assert.Nil(t, CrossChainImpact("reentrancy"))
	assert.Nil(t, CrossChainImpact(""))
}

func TestStaticRunnerCancellationReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fast := &fakeAdapter{
		name:    "slither",
		results: map[string][]adapter.RawFinding{"a.sol": {rawFinding("High", "high")}},
	}
	slow := &fakeAdapter{name: "mythril", blockFor: 5 * time.Second}

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	runner := NewStaticRunner(2, nil, nil)
	done := make(chan struct{})
	var findings []schema.Finding
	go func() {
		defer close(done)
		findings, _ = runner.Run(ctx,
			[]adapter.Registration{reg(fast, adapter.KindStatic, 0.8), reg(slow, adapter.KindStatic, 0.8)},
			[]string{"a.sol"}, time.Minute)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("cancelled run did not return promptly")
	}
	// Whatever completed before cancellation is still returned.
	for _, f := range findings {
		assert.NotEmpty(t, f.ID)
	}
}

func TestFeedbackSummaryCounts(t *testing.T) {
	mk := func(tool string, level schema.ConfidenceLevel) schema.Finding {
		f := schema.NewFinding()
		f.ToolName = tool
		f.ConfidenceLevel = level
		return f
	}
	findings := []schema.Finding{
		mk("echidna", schema.ConfidenceHigh),
		mk("echidna", schema.ConfidenceLow),
		mk("adversarial-fuzz", schema.ConfidenceHigh),
	}

	s := CollectFeedback(findings)
	assert.Equal(t, 3, s.TotalFindings)
	assert.Equal(t, 2, s.ByConfidence[schema.ConfidenceHigh])
	assert.Equal(t, 1, s.ByConfidence[schema.ConfidenceLow])
	assert.Equal(t, 2, s.ByTool["echidna"])
	assert.Equal(t, 1, s.ByTool["adversarial-fuzz"])
}

func TestFakeAdapterContractSanity(t *testing.T) {
	// The fake honors the adapter contract used throughout these tests.
	var _ adapter.Adapter = (*fakeAdapter)(nil)
	a := &fakeAdapter{name: "x"}
	out, err := a.Run(context.Background(), "missing.sol", time.Second, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, int64(1), a.calls.Load())
}
