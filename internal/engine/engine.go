// Package engine coordinates the full analysis lifecycle: request
// validation, concurrent static and dynamic phases, risk scoring and the
// optional post phases, ending in a finalized result. The engine never
// returns a half-populated result; every failure past validation is
// captured as a ToolError on the result instead of an error return.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/openauditlabs/sentry/internal/adapter"
	"github.com/openauditlabs/sentry/internal/analysis"
	"github.com/openauditlabs/sentry/internal/config"
	"github.com/openauditlabs/sentry/internal/schema"
	"github.com/openauditlabs/sentry/internal/scoring"
	"github.com/openauditlabs/sentry/internal/target"
	"github.com/openauditlabs/sentry/internal/telemetry"
)

// Phase identifies where in the lifecycle a run currently is
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseScoring    Phase = "scoring"
	PhasePost       Phase = "post"
	PhaseFinalized  Phase = "finalized"
)

// ValidationError reports a malformed request or an unusable target. It is
// returned before any adapter runs; no result is produced.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Engine is the audit orchestrator. Construct one per configuration; a
// single engine handles any number of Analyze calls.
type Engine struct {
	cfg      *config.Config
	registry *adapter.Registry
	static   *analysis.StaticRunner
	dynamic  *analysis.DynamicOrchestrator
	logger   *zap.SugaredLogger
	metrics  *telemetry.Metrics

	phase atomic.Value
}

// New builds an engine with adapters registered from the configuration
func New(cfg *config.Config, logger *zap.SugaredLogger, metrics *telemetry.Metrics) *Engine {
	return NewWithRegistry(cfg, adapter.NewRegistry(cfg), logger, metrics)
}

// NewWithRegistry builds an engine around an explicit adapter registry.
// Tests use this to run against in-memory adapters.
func NewWithRegistry(cfg *config.Config, reg *adapter.Registry, logger *zap.SugaredLogger, metrics *telemetry.Metrics) *Engine {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	e := &Engine{
		cfg:      cfg,
		registry: reg,
		static:   analysis.NewStaticRunner(cfg.Static.MaxWorkers, logger, metrics),
		dynamic: analysis.NewDynamicOrchestrator(
			cfg.Dynamic.MaxWorkers, cfg.Dynamic.CrossChain, cfg.Dynamic.CollectNotes, logger, metrics),
		logger:  logger,
		metrics: metrics,
	}
	e.phase.Store(PhaseIdle)
	return e
}

// Phase returns the most recent lifecycle phase the engine entered
func (e *Engine) Phase() Phase {
	return e.phase.Load().(Phase)
}

func (e *Engine) setPhase(p Phase) {
	e.phase.Store(p)
	e.logger.Debugw("phase transition", "phase", p)
}

// phaseOutput carries one analysis phase's production back to the
// coordinator. Routing is by the phase tag, never by arrival order.
type phaseOutput struct {
	phase      string
	findings   []schema.Finding
	toolErrors []schema.ToolError
	feedback   *analysis.FeedbackSummary
}

// Analyze runs the full lifecycle for one request. A validation failure
// returns a *ValidationError and no result. Past validation, Analyze always
// returns a finalized result: adapter and phase failures are recorded on it
// as ToolErrors, and context cancellation yields whatever completed.
func (e *Engine) Analyze(ctx context.Context, req schema.AnalysisRequest) (*schema.AnalysisResult, error) {
	e.setPhase(PhaseValidating)

	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	targets, err := target.Validate(req.Targets)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(req.MaxAnalysisTime)*time.Second)
	defer cancel()

	result := schema.NewResult(req)
	result.Targets = targets

	e.logger.Infow("analysis started",
		"request_id", result.RequestID,
		"targets", len(targets),
		"static", req.IncludeStatic,
		"dynamic", req.IncludeDynamic)

	feedback := e.runAnalysis(ctx, req, targets, result)

	e.setPhase(PhaseScoring)
	if req.IncludeScoring {
		e.timed("scoring", func() {
			scoring.Annotate(result.Findings)
		})
	}

	e.setPhase(PhasePost)
	e.runPostPhases(req, result, feedback)

	e.setPhase(PhaseFinalized)
	result.Finalize()
	e.record(result)

	e.logger.Infow("analysis complete",
		"request_id", result.RequestID,
		"findings", result.TotalFindings,
		"errors", len(result.ToolErrors),
		"duration_s", result.Duration)
	return result, nil
}

// runAnalysis executes the static and dynamic phases concurrently and
// merges their outputs into the result, static findings first.
func (e *Engine) runAnalysis(ctx context.Context, req schema.AnalysisRequest, targets []string, result *schema.AnalysisResult) *analysis.FeedbackSummary {
	e.setPhase(PhaseAnalyzing)

	outputs := make(chan phaseOutput, 2)
	var wg sync.WaitGroup

	if req.IncludeStatic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer e.recoverPhase("static", outputs)
			regs := applyOptions(e.registry.Static(), req.ToolConfig)
			// Per-call budget is the request's analysis time, capped by the
			// configured phase timeout.
			timeout := time.Duration(req.MaxAnalysisTime) * time.Second
			if limit := time.Duration(e.cfg.Static.Timeout) * time.Second; limit > 0 && limit < timeout {
				timeout = limit
			}
			var fs []schema.Finding
			var tes []schema.ToolError
			e.timed("static", func() {
				fs, tes = e.static.Run(ctx, regs, targets, timeout)
			})
			outputs <- phaseOutput{phase: "static", findings: fs, toolErrors: tes}
		}()
	}

	if req.IncludeDynamic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer e.recoverPhase("dynamic", outputs)
			regs := applyOptions(e.registry.Dynamic(), req.ToolConfig)
			timeout := time.Duration(e.cfg.Dynamic.Timeout) * time.Second
			var fs []schema.Finding
			var tes []schema.ToolError
			var fb *analysis.FeedbackSummary
			e.timed("dynamic", func() {
				fs, tes, fb = e.dynamic.Run(ctx, regs, targets, timeout)
			})
			outputs <- phaseOutput{phase: "dynamic", findings: fs, toolErrors: tes, feedback: fb}
		}()
	}

	wg.Wait()
	close(outputs)

	byPhase := make(map[string]phaseOutput, 2)
	for out := range outputs {
		byPhase[out.phase] = out
	}

	var feedback *analysis.FeedbackSummary
	for _, phase := range []string{"static", "dynamic"} {
		out, ok := byPhase[phase]
		if !ok {
			continue
		}
		result.Findings = append(result.Findings, out.findings...)
		result.ToolErrors = append(result.ToolErrors, out.toolErrors...)
		if out.feedback != nil {
			feedback = out.feedback
		}
	}
	return feedback
}

// recoverPhase converts a panicking analysis phase into an orchestration
// ToolError so the sibling phase's output still lands on the result.
func (e *Engine) recoverPhase(phase string, outputs chan<- phaseOutput) {
	r := recover()
	if r == nil {
		return
	}
	e.logger.Errorw("analysis phase panicked", "phase", phase, "panic", r)
	te := schema.NewToolError(phase, analysis.ErrTypeOrchestra, fmt.Sprintf("%s phase panicked: %v", phase, r))
	outputs <- phaseOutput{phase: phase, toolErrors: []schema.ToolError{te}}
}

// runPostPhases fills the optional result sections. Each post phase is
// isolated: a failure becomes an orchestration ToolError and the remaining
// phases still run.
func (e *Engine) runPostPhases(req schema.AnalysisRequest, result *schema.AnalysisResult, feedback *analysis.FeedbackSummary) {
	if req.EnableAgents {
		e.postPhase("agent_consensus", result, func() error {
			result.AgentConsensus = map[string]interface{}{
				"status": "unavailable",
				"reason": "agent subsystem is not configured",
			}
			return nil
		})
	}

	e.postPhase("explainability", result, func() error {
		result.ExplainabilityReport = buildExplainabilityReport(result.Findings, feedback)
		return nil
	})
}

// postPhase runs one post phase, trapping both errors and panics
func (e *Engine) postPhase(name string, result *schema.AnalysisResult, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorw("post phase panicked", "phase", name, "panic", r)
			result.ToolErrors = append(result.ToolErrors,
				schema.NewToolError(name, analysis.ErrTypeOrchestra, fmt.Sprintf("post phase panicked: %v", r)))
		}
	}()
	if err := fn(); err != nil {
		e.logger.Warnw("post phase failed", "phase", name, "err", err)
		result.ToolErrors = append(result.ToolErrors,
			schema.NewToolError(name, analysis.ErrTypeOrchestra, err.Error()))
	}
}

// buildExplainabilityReport summarizes how findings were scored and, when
// collected, the dynamic phase's confidence feedback.
func buildExplainabilityReport(findings []schema.Finding, feedback *analysis.FeedbackSummary) map[string]interface{} {
	scored := 0
	byLevel := make(map[string]int)
	for _, f := range findings {
		if f.ExplainabilityTrace != nil {
			if _, ok := f.ExplainabilityTrace["risk_score"]; ok {
				scored++
			}
		}
		if f.ConfidenceLevel != "" {
			byLevel[string(f.ConfidenceLevel)]++
		}
	}
	report := map[string]interface{}{
		"total_findings":    len(findings),
		"scored_findings":   scored,
		"confidence_levels": byLevel,
	}
	if feedback != nil {
		report["feedback"] = feedback
	}
	return report
}

// timed runs fn and observes its wall-clock duration under the given phase
// label.
func (e *Engine) timed(phase string, fn func()) {
	start := time.Now()
	fn()
	if e.metrics != nil {
		e.metrics.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}
}

// record updates the run counters from a finalized result
func (e *Engine) record(result *schema.AnalysisResult) {
	if e.metrics == nil {
		return
	}
	e.metrics.AnalysesTotal.Inc()
	for severity, count := range result.SeverityDistribution {
		e.metrics.FindingsTotal.WithLabelValues(string(severity)).Add(float64(count))
	}
	for _, te := range result.ToolErrors {
		e.metrics.ToolErrorsTotal.WithLabelValues(te.ToolName, te.ErrorType).Inc()
	}
}

// applyOptions overlays per-request tool options on the registered set.
// Registrations are copied; the registry itself is never mutated.
func applyOptions(regs []adapter.Registration, overrides schema.ToolOptions) []adapter.Registration {
	if len(overrides) == 0 {
		return regs
	}
	out := make([]adapter.Registration, len(regs))
	copy(out, regs)
	for i := range out {
		override, ok := overrides[out[i].Adapter.Name()]
		if !ok {
			continue
		}
		merged := make(map[string]interface{}, len(out[i].Options)+len(override))
		for k, v := range out[i].Options {
			merged[k] = v
		}
		for k, v := range override {
			merged[k] = v
		}
		out[i].Options = merged
	}
	return out
}
