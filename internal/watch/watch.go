// Package watch re-runs analysis when contract files change on disk.
// Events are debounced so editor save bursts trigger one run, and a small
// modification-time cache skips files whose content did not change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/openauditlabs/sentry/internal/schema"
	"github.com/openauditlabs/sentry/internal/target"
	"github.com/openauditlabs/sentry/internal/telemetry"
)

const (
	defaultDebounce  = 500 * time.Millisecond
	defaultCacheSize = 256
)

// Analyzer runs one analysis request. The audit engine satisfies this.
type Analyzer interface {
	Analyze(ctx context.Context, req schema.AnalysisRequest) (*schema.AnalysisResult, error)
}

// ResultFunc receives the result of one triggered re-analysis
type ResultFunc func(path string, result *schema.AnalysisResult)

// Watcher observes a directory tree and re-analyzes changed contracts
type Watcher struct {
	root     string
	analyzer Analyzer
	onResult ResultFunc
	logger   *zap.SugaredLogger
	debounce time.Duration

	// analyzed maps a contract path to the modification time it was last
	// analyzed at.
	analyzed *lru.Cache[string, time.Time]

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	watching bool
	stop     chan struct{}
}

// New creates a watcher over the given root directory
func New(root string, analyzer Analyzer, onResult ResultFunc, logger *zap.SugaredLogger) (*Watcher, error) {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	cache, err := lru.New[string, time.Time](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		analyzer: analyzer,
		onResult: onResult,
		logger:   logger,
		debounce: defaultDebounce,
		analyzed: cache,
	}, nil
}

// Start begins watching. It returns once the watcher is installed; event
// handling runs in the background until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return fmt.Errorf("already watching %s", w.root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.watcher = watcher
	w.watching = true
	w.stop = make(chan struct{})
	w.mu.Unlock()

	if err := w.addWatchDirs(); err != nil {
		w.Stop()
		return fmt.Errorf("failed to add watch directories: %w", err)
	}

	var debounceTimer *time.Timer
	pending := make(map[string]bool)
	var pendingMu sync.Mutex

	queueChange := func(path string) {
		if !target.IsSupported(path) {
			return
		}

		pendingMu.Lock()
		pending[path] = true
		pendingMu.Unlock()

		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(w.debounce, func() {
			pendingMu.Lock()
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			pending = make(map[string]bool)
			pendingMu.Unlock()

			w.runBatch(ctx, batch)
		})
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				w.Stop()
				return
			case <-w.stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) != 0 {
					queueChange(event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warnw("watcher error", "err", err)
			}
		}
	}()

	w.logger.Infow("watching for contract changes", "root", w.root)
	return nil
}

// runBatch analyzes every changed path that still exists and has new content
func (w *Watcher) runBatch(ctx context.Context, batch []string) {
	for _, path := range batch {
		info, err := os.Stat(path)
		if err != nil {
			// Deleted; forget its cache entry so a re-create re-analyzes.
			w.analyzed.Remove(path)
			continue
		}

		if last, ok := w.analyzed.Get(path); ok && last.Equal(info.ModTime()) {
			w.logger.Debugw("content unchanged, skipping", "path", path)
			continue
		}

		result, err := w.analyzer.Analyze(ctx, schema.NewRequest([]string{path}))
		if err != nil {
			w.logger.Warnw("re-analysis failed", "path", path, "err", err)
			continue
		}

		w.analyzed.Add(path, info.ModTime())
		w.logger.Infow("re-analysis complete",
			"path", path, "findings", result.TotalFindings, "errors", len(result.ToolErrors))
		if w.onResult != nil {
			w.onResult(path, result)
		}
	}
}

// addWatchDirs registers every non-hidden directory under the root
func (w *Watcher) addWatchDirs() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if name := info.Name(); strings.HasPrefix(name, ".") && path != w.root {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stop stops watching. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watching {
		return
	}
	close(w.stop)
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	w.watching = false
}

// IsWatching reports whether the watcher is running
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}
