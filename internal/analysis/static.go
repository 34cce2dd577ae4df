package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openauditlabs/sentry/internal/adapter"
	"github.com/openauditlabs/sentry/internal/normalize"
	"github.com/openauditlabs/sentry/internal/schema"
	"github.com/openauditlabs/sentry/internal/telemetry"
)

// Error type tags recorded on ToolErrors, distinguishing budget expiry from
// ordinary tool failure.
const (
	ErrTypeTimeout   = "AdapterTimeoutError"
	ErrTypeExecution = "AdapterExecutionError"
	ErrTypeOrchestra = "OrchestrationError"
)

// StaticRunner fans one task per (adapter, target) pair out over a bounded
// worker pool and joins every task before returning. One pair's failure is
// recorded and never aborts the rest of the batch.
type StaticRunner struct {
	maxWorkers int
	logger     *zap.SugaredLogger
	metrics    *telemetry.Metrics
}

// NewStaticRunner builds a runner with the given worker bound
func NewStaticRunner(maxWorkers int, logger *zap.SugaredLogger, metrics *telemetry.Metrics) *StaticRunner {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &StaticRunner{maxWorkers: maxWorkers, logger: logger, metrics: metrics}
}

type staticTask struct {
	reg    adapter.Registration
	target string
}

// Run executes every registered adapter against every target with the given
// per-call timeout. The returned slices are complete once Run returns: this
// is a full join, not early exit. Context cancellation stops scheduling and
// returns whatever completed.
func (r *StaticRunner) Run(ctx context.Context, regs []adapter.Registration, targets []string, timeout time.Duration) ([]schema.Finding, []schema.ToolError) {
	var findings []schema.Finding
	var toolErrors []schema.ToolError

	if len(regs) == 0 || len(targets) == 0 {
		r.logger.Debugw("static phase skipped", "adapters", len(regs), "targets", len(targets))
		return findings, toolErrors
	}

	workers := r.maxWorkers
	if len(regs) < workers {
		workers = len(regs)
	}

	tasks := make(chan staticTask)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				fs, te := r.runOne(ctx, task, timeout)
				mu.Lock()
				findings = append(findings, fs...)
				if te != nil {
					toolErrors = append(toolErrors, *te)
				}
				mu.Unlock()
			}
		}()
	}

	for _, reg := range regs {
		for _, target := range targets {
			select {
			case tasks <- staticTask{reg: reg, target: target}:
			case <-ctx.Done():
				// Stop scheduling; in-flight tasks still drain.
				close(tasks)
				wg.Wait()
				return findings, toolErrors
			}
		}
	}
	close(tasks)
	wg.Wait()

	r.logger.Infow("static phase complete",
		"findings", len(findings), "errors", len(toolErrors))
	return findings, toolErrors
}

// runOne invokes a single (adapter, target) pair and normalizes the outcome.
// A panicking adapter is contained here so the rest of the pool keeps going.
func (r *StaticRunner) runOne(ctx context.Context, task staticTask, timeout time.Duration) (findings []schema.Finding, toolError *schema.ToolError) {
	name := task.reg.Adapter.Name()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorw("static adapter panicked", "tool", name, "panic", rec)
			te := schema.NewToolError(name, ErrTypeOrchestra, fmt.Sprintf("adapter panicked: %v", rec))
			findings, toolError = nil, &te
		}
	}()

	raws, err := task.reg.Adapter.Run(ctx, task.target, timeout, task.reg.Options)
	if err != nil {
		te := classify(name, err)
		r.logger.Warnw("static adapter failed",
			"tool", name, "target", task.target, "error_type", te.ErrorType, "err", err)
		if r.metrics != nil {
			r.metrics.AdapterRunsTotal.WithLabelValues(name, "error").Inc()
		}
		return nil, &te
	}

	if r.metrics != nil {
		r.metrics.AdapterRunsTotal.WithLabelValues(name, "ok").Inc()
	}

	findings = make([]schema.Finding, 0, len(raws))
	for _, raw := range raws {
		f := normalize.Finding(name, raw)
		f.FilePath = orTarget(f.FilePath, task.target)
		findings = append(findings, f)
	}
	return findings, nil
}

// classify maps an adapter error onto the ToolError taxonomy
func classify(tool string, err error) schema.ToolError {
	var timeoutErr *adapter.TimeoutError
	if errors.As(err, &timeoutErr) {
		return schema.NewToolError(tool, ErrTypeTimeout, err.Error())
	}

	var execErr *adapter.ExecError
	if errors.As(err, &execErr) {
		te := schema.NewToolError(tool, ErrTypeExecution, err.Error())
		te.Stderr = execErr.Stderr
		code := execErr.ExitCode
		te.ExitCode = &code
		return te
	}

	return schema.NewToolError(tool, ErrTypeExecution, err.Error())
}

func orTarget(path, target string) string {
	if path == "" || path == "unknown" {
		return target
	}
	return path
}
