// Package runner wires the rote engine together for the CLI: it resolves
// configuration, opens the pattern store, and runs tasks against a real
// browser without the commands knowing how the pieces connect.
package runner

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/rote-dev/rote-go/pkg/browser"
	"github.com/rote-dev/rote-go/pkg/config"
	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/logging"
	"github.com/rote-dev/rote-go/pkg/patterns"
	"github.com/rote-dev/rote-go/pkg/perception"
	"github.com/rote-dev/rote-go/pkg/strategy"
)

// Options carries the root-level flags shared by every command.
type Options struct {
	// ConfigPath points at an explicit config file. Empty means discovery.
	ConfigPath string
	// Overrides are --set key.path=value pairs applied over every other source.
	Overrides []string
}

// LoadManager builds a loaded configuration manager from defaults, config
// files, ROTE_ environment variables, and --set overrides, in that order.
func LoadManager(opts Options) (*config.Manager, error) {
	managerOpts := []config.ManagerOption{}
	if opts.ConfigPath != "" {
		managerOpts = append(managerOpts, config.WithConfigPath(opts.ConfigPath))
	}
	if len(opts.Overrides) > 0 {
		args := make([]string, 0, len(opts.Overrides)*2)
		for _, kv := range opts.Overrides {
			args = append(args, "-c", kv)
		}
		// Sources apply in slice order, so the override source goes last.
		sources := append(config.CreateDefaultSources(), config.NewCommandLineSource(args))
		managerOpts = append(managerOpts, config.WithSources(sources...))
	}

	manager, err := config.NewManager(managerOpts...)
	if err != nil {
		return nil, err
	}
	if err := manager.Load(); err != nil {
		return nil, err
	}
	return manager, nil
}

// LoadConfig is LoadManager for callers that only need the snapshot.
func LoadConfig(opts Options) (*config.Config, error) {
	manager, err := LoadManager(opts)
	if err != nil {
		return nil, err
	}
	return manager.Get(), nil
}

// SetupLogging points the global logger at whatever the configuration names.
func SetupLogging(cfg *config.Config) error {
	logger, err := config.BuildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	logging.SetLogger(logger)
	return nil
}

// OpenStore opens the pattern store named by the configuration.
func OpenStore(ctx context.Context, cfg *config.Config) (*patterns.Store, error) {
	var repo patterns.Repository
	switch cfg.Store.Backend {
	case "sqlite":
		r, err := patterns.NewSQLiteRepository(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		repo = r
	default:
		repo = patterns.NewFileRepository(cfg.Store.Path)
	}
	return patterns.NewStore(ctx, repo, patterns.WithSweepInterval(cfg.Store.SweepInterval))
}

// Engine is one ready-to-run automation stack: a browser, the vision model,
// and a strategy controller sharing the given pattern store.
type Engine struct {
	exec        *browser.Executor
	controller  *strategy.Controller
	taskTimeout time.Duration
}

// NewEngine starts a browser and wires it to the store. Callers own the
// store; Close only tears down the browser.
func NewEngine(cfg *config.Config, store *patterns.Store) (*Engine, error) {
	execOpts := []browser.ExecutorOption{}
	if cfg.Browser.ScreenshotDir != "" {
		execOpts = append(execOpts, browser.WithScreenshotSink(browser.NewScreenshotSink(cfg.Browser.ScreenshotDir)))
	}
	exec, err := browser.NewExecutor(cfg.Browser, execOpts...)
	if err != nil {
		return nil, err
	}

	eyes, err := perception.NewClaude(cfg.Perception)
	if err != nil {
		exec.Close()
		return nil, err
	}

	controller, err := strategy.NewController(exec, eyes, store, ControllerOptions(cfg.Controller)...)
	if err != nil {
		exec.Close()
		return nil, err
	}

	return &Engine{
		exec:        exec,
		controller:  controller,
		taskTimeout: cfg.Controller.TaskTimeout,
	}, nil
}

// ControllerOptions translates controller configuration into strategy options.
func ControllerOptions(cfg config.ControllerConfig) []strategy.Option {
	opts := []strategy.Option{
		strategy.WithMaxInteractions(cfg.MaxInteractions),
		strategy.WithPromoteConfidence(cfg.PromoteConfidence),
		strategy.WithFailureScreenshots(cfg.FailureScreenshots),
	}
	if len(cfg.Order) > 0 {
		kinds := make([]core.StrategyKind, len(cfg.Order))
		for i, k := range cfg.Order {
			kinds[i] = core.StrategyKind(k)
		}
		opts = append(opts, strategy.WithOrder(kinds...))
	}
	return opts
}

// Run executes one task under the configured task timeout.
func (e *Engine) Run(ctx context.Context, task *core.Task) (*core.TaskResult, error) {
	if e.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.taskTimeout)
		defer cancel()
	}
	return e.controller.Run(ctx, task)
}

// Close shuts the browser down.
func (e *Engine) Close() {
	e.exec.Close()
}

// BatchResult pairs one batch task with its outcome.
type BatchResult struct {
	Task   core.Task
	Result *core.TaskResult
	Err    error
}

// RunBatch executes tasks with at most parallel of them in flight. Every
// task gets its own browser so page state never interleaves; the store is
// shared and does its own locking. Results come back in task order.
func RunBatch(ctx context.Context, cfg *config.Config, store *patterns.Store, tasks []core.Task, parallel int) []BatchResult {
	if parallel < 1 {
		parallel = 1
	}

	results := make([]BatchResult, len(tasks))
	p := pool.New().WithMaxGoroutines(parallel)
	for i := range tasks {
		p.Go(func() {
			task := tasks[i]
			results[i] = BatchResult{Task: task}

			engine, err := NewEngine(cfg, store)
			if err != nil {
				results[i].Err = err
				return
			}
			defer engine.Close()

			res, err := engine.Run(ctx, &task)
			results[i].Result = res
			results[i].Err = err
		})
	}
	p.Wait()
	return results
}
