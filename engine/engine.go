// Package engine implements the spectrace daemon core: a versioned immutable
// snapshot behind a read/write gate with blocking-rebuild semantics, a file
// overlay for unsaved editor state, and change-triggered rebuilds.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/spectrace/config"
	"github.com/c360studio/spectrace/coverage"
	"github.com/c360studio/spectrace/scanner"
	"github.com/c360studio/spectrace/spec"
)

// Engine owns the canonical DashboardData and the file overlay, and runs the
// rebuild pipeline. One instance per project; instances are independent, so
// several can coexist in one process.
type Engine struct {
	projectRoot string
	configPath  string
	logger      *slog.Logger
	remote      spec.RemoteLoader
	metrics     *Metrics
	publisher   *Publisher

	// mu guards the canonical snapshot. A rebuild holds the write side for
	// its entire duration, so readers observe either the previous complete
	// snapshot or the new one, never a torn state. The same gate serializes
	// rebuild entry.
	mu   sync.RWMutex
	data *DashboardData

	overlayMu sync.RWMutex
	overlay   FileOverlay

	version atomic.Uint64

	cfgMu     sync.RWMutex
	cfg       *config.Config
	cfgErrMsg string

	subMu sync.Mutex
	subs  map[string]chan *DashboardData
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRemote sets the loader used for rules_url spec sources.
func WithRemote(remote spec.RemoteLoader) Option {
	return func(e *Engine) { e.remote = remote }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPublisher attaches a rebuild-event publisher.
func WithPublisher(p *Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// New creates an engine and performs one synchronous rebuild. Configuration
// trouble is recorded but not fatal; a failing pipeline (for example a spec
// grammar error) is fatal to construction.
func New(ctx context.Context, projectRoot, configPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		projectRoot: projectRoot,
		configPath:  configPath,
		logger:      slog.Default(),
		overlay:     NewFileOverlay(),
		cfg:         config.Default(),
		subs:        make(map[string]chan *DashboardData),
	}
	for _, opt := range opts {
		opt(e)
	}

	if _, _, err := e.Rebuild(ctx); err != nil {
		return nil, fmt.Errorf("initial build: %w", err)
	}
	return e, nil
}

// Snapshot returns the current dashboard data. It blocks only while a rebuild
// is in progress; otherwise it returns immediately. The returned value is
// immutable and remains valid after later rebuilds.
func (e *Engine) Snapshot() *DashboardData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.data
}

// Version returns the current value of the rebuild counter.
func (e *Engine) Version() uint64 {
	return e.version.Load()
}

// Config returns the last-known-good configuration.
func (e *Engine) Config() *config.Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// ConfigError returns the current configuration error message, if any.
func (e *Engine) ConfigError() string {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfgErrMsg
}

// Subscribe registers a snapshot subscriber. Each published snapshot is
// delivered in rebuild order; a slow subscriber may miss intermediate
// versions but always observes the latest on its next receive.
func (e *Engine) Subscribe() (string, <-chan *DashboardData) {
	id := uuid.New().String()
	ch := make(chan *DashboardData, 1)

	e.subMu.Lock()
	e.subs[id] = ch
	e.subMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (e *Engine) Unsubscribe(id string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if ch, ok := e.subs[id]; ok {
		delete(e.subs, id)
		close(ch)
	}
}

// Open registers a file in the overlay and triggers a rebuild. Overlay
// operations never fail outwardly: a rebuild error is logged and the
// previously published snapshot stays visible.
func (e *Engine) Open(ctx context.Context, path, content string) {
	e.overlayMu.Lock()
	e.overlay.Set(path, content)
	e.overlayMu.Unlock()
	e.logger.Debug("Overlay: opened", slog.String("path", path))
	e.rebuildLogged(ctx, "open")
}

// Change updates a file in the overlay and triggers a rebuild.
func (e *Engine) Change(ctx context.Context, path, content string) {
	e.overlayMu.Lock()
	e.overlay.Set(path, content)
	e.overlayMu.Unlock()
	e.logger.Debug("Overlay: changed", slog.String("path", path))
	e.rebuildLogged(ctx, "change")
}

// Close removes a file from the overlay and triggers a rebuild.
func (e *Engine) Close(ctx context.Context, path string) {
	e.overlayMu.Lock()
	e.overlay.Remove(path)
	e.overlayMu.Unlock()
	e.logger.Debug("Overlay: closed", slog.String("path", path))
	e.rebuildLogged(ctx, "close")
}

func (e *Engine) rebuildLogged(ctx context.Context, cause string) {
	if _, _, err := e.Rebuild(ctx); err != nil {
		e.logger.Error("Rebuild failed", slog.String("cause", cause), slog.String("error", err.Error()))
	}
}

// Rebuild runs the full pipeline: reload config, clone the overlay, scan,
// parse specs, compute coverage, publish. It holds the snapshot write gate
// for its entire duration. On pipeline failure the published snapshot is left
// untouched; only the configuration error state may have changed.
func (e *Engine) Rebuild(ctx context.Context) (uint64, time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()

	cfg := e.reloadConfig()

	e.overlayMu.RLock()
	overlay := e.overlay.Clone()
	e.overlayMu.RUnlock()

	newVersion := e.version.Add(1)

	data, err := e.buildData(ctx, cfg, overlay, newVersion)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RebuildFailed()
		}
		return 0, 0, err
	}
	data.Duration = time.Since(start)
	data.BuiltAt = time.Now()

	e.data = data

	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()

	e.broadcast(data)
	if e.metrics != nil {
		e.metrics.RebuildSucceeded(data)
	}
	if e.publisher != nil {
		if err := e.publisher.PublishRebuild(data); err != nil {
			e.logger.Warn("Publish rebuild event failed", slog.String("error", err.Error()))
		}
	}

	e.logger.Info("Rebuild completed",
		slog.Uint64("version", newVersion),
		slog.Duration("elapsed", data.Duration))
	return newVersion, data.Duration, nil
}

// reloadConfig applies the config recovery policy: parseable files become the
// candidate config, a missing file selects the defaults, and an unreadable or
// malformed file records an error and reuses the previous configuration.
// Configuration failure never aborts a rebuild.
func (e *Engine) reloadConfig() *config.Config {
	cfg, err := config.Load(e.configPath)
	switch {
	case err == nil:
		e.setConfigError("")
		return cfg
	case errors.Is(err, os.ErrNotExist):
		e.logger.Info("Config file not found, using defaults", slog.String("path", e.configPath))
		e.setConfigError("")
		return config.Default()
	default:
		e.logger.Warn("Config reload failed, keeping previous config", slog.String("error", err.Error()))
		e.setConfigError(err.Error())
		e.cfgMu.RLock()
		defer e.cfgMu.RUnlock()
		return e.cfg
	}
}

func (e *Engine) setConfigError(msg string) {
	e.cfgMu.Lock()
	e.cfgErrMsg = msg
	e.cfgMu.Unlock()
}

// buildData runs the extract → parse-specs → compute-coverage pipeline with
// the overlay applied on top of disk content.
func (e *Engine) buildData(ctx context.Context, cfg *config.Config, overlay FileOverlay, version uint64) (*DashboardData, error) {
	data := &DashboardData{Version: version}
	sc := scanner.New(e.projectRoot, e.logger)
	// Local rules paths resolve relative to the config file, not the root.
	baseDir := filepath.Dir(e.configPath)

	for _, specCfg := range cfg.Specs {
		loader := spec.NewLoader(spec.NewParser(specCfg.Marker), e.remote, e.logger)
		manifest, err := loader.LoadManifest(ctx, spec.Source{
			Name:      specCfg.Name,
			RulesURL:  specCfg.RulesURL,
			RulesFile: specCfg.RulesFile,
			BaseDir:   baseDir,
		})
		if err != nil {
			return nil, fmt.Errorf("spec %q: %w", specCfg.Name, err)
		}

		scanRes, err := sc.Scan(specCfg.IncludePatterns(), specCfg.ExcludePatterns(), overlay)
		if err != nil {
			return nil, fmt.Errorf("spec %q: scan: %w", specCfg.Name, err)
		}

		report := coverage.Compute(specCfg.Name, manifest, scanRes.References)
		data.Specs = append(data.Specs, SpecData{
			Name:       specCfg.Name,
			Manifest:   manifest,
			Report:     report,
			References: scanRes.References,
			Warnings:   scanRes.Warnings,
			Files:      scanRes.Files,
		})
	}

	return data, nil
}

// broadcast delivers the snapshot to all subscribers. Delivery coalesces: a
// subscriber that has not drained its channel sees only the latest snapshot,
// never an older one after a newer one.
func (e *Engine) broadcast(data *DashboardData) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- data:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- data:
			default:
			}
		}
	}
}

// ProjectRoot returns the engine's project root.
func (e *Engine) ProjectRoot() string {
	return e.projectRoot
}

// ConfigPath returns the engine's config file path.
func (e *Engine) ConfigPath() string {
	return e.configPath
}
