package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openauditlabs/sentry/internal/adapter"
	"github.com/openauditlabs/sentry/internal/normalize"
	"github.com/openauditlabs/sentry/internal/schema"
	"github.com/openauditlabs/sentry/internal/telemetry"
)

// DynamicOrchestrator fans dynamic adapters out in parallel, each adapter
// looping over the full target set, then calibrates every raw result into a
// trust level. Optional phases (cross-chain tagging, feedback collection)
// are no-ops when disabled.
type DynamicOrchestrator struct {
	maxWorkers      int
	crossChain      bool
	collectFeedback bool
	logger          *zap.SugaredLogger
	metrics         *telemetry.Metrics
}

// NewDynamicOrchestrator builds an orchestrator with the given bounds and
// optional-phase toggles.
func NewDynamicOrchestrator(maxWorkers int, crossChain, collectFeedback bool, logger *zap.SugaredLogger, metrics *telemetry.Metrics) *DynamicOrchestrator {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &DynamicOrchestrator{
		maxWorkers:      maxWorkers,
		crossChain:      crossChain,
		collectFeedback: collectFeedback,
		logger:          logger,
		metrics:         metrics,
	}
}

type dynamicOutcome struct {
	findings  []schema.Finding
	toolError *schema.ToolError
}

// Run executes every dynamic adapter against the target batch. Parallelism
// is across adapters; the per-adapter timeout comes from its registration,
// falling back to phaseTimeout. Every adapter resolves (or fails in
// isolation) before Run returns.
func (o *DynamicOrchestrator) Run(ctx context.Context, regs []adapter.Registration, targets []string, phaseTimeout time.Duration) ([]schema.Finding, []schema.ToolError, *FeedbackSummary) {
	var findings []schema.Finding
	var toolErrors []schema.ToolError

	if len(regs) == 0 || len(targets) == 0 {
		o.logger.Debugw("dynamic phase skipped", "adapters", len(regs), "targets", len(targets))
		return findings, toolErrors, o.feedback(findings)
	}

	workers := o.maxWorkers
	if len(regs) < workers {
		workers = len(regs)
	}

	regCh := make(chan adapter.Registration)
	outcomes := make(chan dynamicOutcome, len(regs))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for reg := range regCh {
				outcomes <- o.runAdapter(ctx, reg, targets, phaseTimeout)
			}
		}()
	}

	go func() {
		defer close(regCh)
		for _, reg := range regs {
			select {
			case regCh <- reg:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(outcomes)

	for outcome := range outcomes {
		findings = append(findings, outcome.findings...)
		if outcome.toolError != nil {
			toolErrors = append(toolErrors, *outcome.toolError)
		}
	}

	o.logger.Infow("dynamic phase complete",
		"findings", len(findings), "errors", len(toolErrors))
	return findings, toolErrors, o.feedback(findings)
}

// runAdapter runs one adapter across all targets and calibrates its results.
// A panicking adapter is contained here; its prior findings are kept.
func (o *DynamicOrchestrator) runAdapter(ctx context.Context, reg adapter.Registration, targets []string, phaseTimeout time.Duration) (outcome dynamicOutcome) {
	name := reg.Adapter.Name()
	timeout := reg.ToolTimeout(phaseTimeout)

	var collected []schema.Finding
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Errorw("dynamic adapter panicked", "tool", name, "panic", rec)
			te := schema.NewToolError(name, ErrTypeOrchestra, fmt.Sprintf("adapter panicked: %v", rec))
			outcome = dynamicOutcome{findings: collected, toolError: &te}
		}
	}()

	for _, target := range targets {
		raws, err := reg.Adapter.Run(ctx, target, timeout, reg.Options)
		if err != nil {
			te := classify(name, err)
			o.logger.Warnw("dynamic adapter failed",
				"tool", name, "target", target, "error_type", te.ErrorType, "err", err)
			if o.metrics != nil {
				o.metrics.AdapterRunsTotal.WithLabelValues(name, "error").Inc()
			}
			return dynamicOutcome{findings: collected, toolError: &te}
		}

		if o.metrics != nil {
			o.metrics.AdapterRunsTotal.WithLabelValues(name, "ok").Inc()
		}

		for _, raw := range raws {
			collected = append(collected, o.convert(reg, raw, target))
		}
	}
	return dynamicOutcome{findings: collected}
}

// convert normalizes one raw dynamic result and applies trust calibration
// and, if enabled, the cross-chain impact annotation.
func (o *DynamicOrchestrator) convert(reg adapter.Registration, raw adapter.RawFinding, target string) schema.Finding {
	f := normalize.Finding(reg.Adapter.Name(), raw)
	f.FilePath = orTarget(f.FilePath, target)

	score, level := Calibrate(reg, raw)
	f.Confidence = score
	f.ConfidenceLevel = level

	if o.crossChain {
		if vulnType, ok := raw["vulnerability_type"].(string); ok {
			f.CrossChainImpact = CrossChainImpact(vulnType)
		}
	}
	return f
}

// feedback returns the phase summary, or nil when collection is disabled
func (o *DynamicOrchestrator) feedback(findings []schema.Finding) *FeedbackSummary {
	if !o.collectFeedback {
		return nil
	}
	return CollectFeedback(findings)
}
