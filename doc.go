// Package rote is an adaptive execution engine for browser automation
// against dealership CRM systems.
//
// Rote runs high-level tasks ("create a lead for Dana Smith") against a
// real browser and gets cheaper at them over time: every successful run
// is distilled into a reusable automation pattern, and later runs replay
// the remembered selectors before falling back to vision-guided
// exploration.
//
// Key Components:
//
//   - Core: the shared vocabulary. Primitive actions and locators,
//     target descriptors with fallbacks, task and result envelopes, and
//     the ActionExecutor/Perception interfaces the engine is wired
//     through.
//
//   - Patterns: the memory. AutomationPattern records with deterministic
//     ids, success counters, selector-level statistics and a bounded
//     recent-execution history; a confidence scorer; a Store service
//     with find/best/update operations, an hourly eviction sweep,
//     export/import, and JSON-file or SQLite persistence.
//
//   - Strategy: the decision layer. An ordered set of execution
//     strategies (direct, learned-pattern, vision, position) tried
//     against a shared per-task interaction budget, a Controller that
//     promotes the learned strategy when a confident pattern exists, and
//     a feedback loop that turns successful traces into stored patterns.
//
//   - Browser: a chromedp-backed ActionExecutor driving a real Chrome
//     instance, plus a screenshot sink for failure diagnostics.
//
//   - Perception: a Claude-backed implementation of the Perception
//     interface that locates elements, proposes next actions, and
//     verifies completion from page screenshots.
//
// Simple Example:
//
//	import (
//	    "context"
//	    "log"
//
//	    "github.com/rote-dev/rote-go/pkg/browser"
//	    "github.com/rote-dev/rote-go/pkg/config"
//	    "github.com/rote-dev/rote-go/pkg/core"
//	    "github.com/rote-dev/rote-go/pkg/patterns"
//	    "github.com/rote-dev/rote-go/pkg/perception"
//	    "github.com/rote-dev/rote-go/pkg/strategy"
//	)
//
//	func main() {
//	    ctx := context.Background()
//	    cfg := config.GetDefaultConfig()
//
//	    store, err := patterns.NewStore(ctx, patterns.NewFileRepository(cfg.Store.Path))
//	    if err != nil {
//	        log.Fatalf("failed to open pattern store: %v", err)
//	    }
//	    defer store.Close()
//
//	    exec, err := browser.NewExecutor(cfg.Browser)
//	    if err != nil {
//	        log.Fatalf("failed to start browser: %v", err)
//	    }
//	    defer exec.Close()
//
//	    eyes, err := perception.NewClaude(cfg.Perception)
//	    if err != nil {
//	        log.Fatalf("failed to build perception: %v", err)
//	    }
//
//	    controller, err := strategy.NewController(exec, eyes, store)
//	    if err != nil {
//	        log.Fatalf("failed to build controller: %v", err)
//	    }
//
//	    result, err := controller.Run(ctx, &core.Task{
//	        Type:            "create_lead",
//	        Description:     "Create a lead for Dana Smith",
//	        SuccessCriteria: "a confirmation banner names Dana Smith",
//	        Page:            core.PageContext{URL: "https://crm.example.com/leads/new"},
//	    })
//	    if err != nil {
//	        log.Fatalf("task failed: %v", err)
//	    }
//	    log.Printf("done via %s in %d interactions", result.StrategyUsed, result.Interactions)
//	}
//
// Advanced Features:
//
//   - Progressive enhancement: cheap strategies run first and the engine
//     only escalates to model-driven vision when selectors stop working.
//
//   - Pattern lifecycle: success rates are recomputed from raw counters,
//     confidence blends rate with usage and recency bonuses, and a
//     background sweep evicts patterns that keep failing or went stale.
//
//   - Interaction budgets: every task runs under a hard cap on page
//     interactions shared across all strategies, so a confused run stops
//     instead of thrashing a production CRM.
//
//   - Structured diagnostics: coded errors, per-step traces, per-strategy
//     attempt records, and labeled failure screenshots.
//
//   - Configuration: YAML files, ROTE_-prefixed environment variables,
//     and command-line overrides merged by priority and validated before
//     use.
//
// For the command-line interface, see cmd/rote-cli.
package rote
