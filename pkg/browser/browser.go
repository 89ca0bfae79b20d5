// Package browser drives a real Chrome session through the DevTools
// protocol, translating primitive actions into page interactions.
package browser

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/rote-dev/rote-go/pkg/config"
	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
	"github.com/rote-dev/rote-go/pkg/logging"
)

// Executor implements core.ActionExecutor against a Chrome instance
// started at construction time. All page interactions are serialized:
// the CRM flows this drives are strictly sequential anyway.
type Executor struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	cfg         config.BrowserConfig
	sink        *ScreenshotSink
	logger      *logging.Logger
	mu          sync.Mutex
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithScreenshotSink persists captured screenshots through the sink.
func WithScreenshotSink(sink *ScreenshotSink) ExecutorOption {
	return func(e *Executor) {
		e.sink = sink
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *logging.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor launches a browser according to cfg. The returned executor
// must be closed to release the browser process.
func NewExecutor(cfg config.BrowserConfig, options ...ExecutorOption) (*Executor, error) {
	e := &Executor{
		cfg:    cfg,
		logger: logging.GetLogger(),
	}
	for _, option := range options {
		option(e)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.DisableGPU {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	logger := e.logger
	e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	e.ctx, e.cancel = chromedp.NewContext(e.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug(context.Background(), format, args...)
		}),
	)

	if err := chromedp.Run(e.ctx); err != nil {
		e.cancel()
		e.allocCancel()
		return nil, errors.Wrap(err, errors.ConfigurationError, "failed to start browser")
	}

	e.logger.Info(context.Background(), "browser started (headless=%v, window=%dx%d)",
		cfg.Headless, cfg.WindowWidth, cfg.WindowHeight)
	return e, nil
}

// Close shuts down the browser process.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info(context.Background(), "closing browser")
	e.cancel()
	e.allocCancel()
	return nil
}

// Perform executes one primitive action against the page.
func (e *Executor) Perform(ctx context.Context, action core.Action) error {
	if err := errors.CheckContext(ctx, "browser perform"); err != nil {
		return err
	}

	switch action.Kind {
	case core.ActionClick:
		return e.click(action)
	case core.ActionFill:
		return e.fill(action)
	case core.ActionSelect:
		return e.selectOption(action)
	case core.ActionNavigate:
		return e.navigate(action)
	case core.ActionWait:
		return e.wait(action)
	case core.ActionVerify:
		return e.verify(action)
	default:
		return errors.Newf(errors.InvalidInput, "unsupported action kind %q", action.Kind)
	}
}

// Screenshot captures the full page. When a sink is configured the image
// is persisted and the screenshot carries its reference; persistence
// failures are logged and swallowed so diagnostics never sink a task.
func (e *Executor) Screenshot(ctx context.Context, label string) (*core.Screenshot, error) {
	if err := errors.CheckContext(ctx, "browser screenshot"); err != nil {
		return nil, err
	}

	quality := e.cfg.ScreenshotQuality
	if quality <= 0 {
		quality = 90
	}

	var buf []byte
	if err := e.run(e.cfg.ActionTimeout, chromedp.FullScreenshot(&buf, quality)); err != nil {
		return nil, errors.Wrap(err, errors.StepExecutionFailed, "screenshot capture failed")
	}

	var url string
	if err := e.run(e.cfg.ActionTimeout, chromedp.Location(&url)); err != nil {
		url = ""
	}

	shot := &core.Screenshot{Data: buf, URL: url, TakenAt: time.Now()}
	if e.sink != nil {
		ref, err := e.sink.Save(label, buf)
		if err != nil {
			e.logger.Warn(ctx, "failed to persist screenshot %q: %v", label, err)
		} else {
			shot.Ref = ref
		}
	}
	return shot, nil
}

// CurrentURL returns the page URL the browser is on.
func (e *Executor) CurrentURL(ctx context.Context) (string, error) {
	if err := errors.CheckContext(ctx, "browser url"); err != nil {
		return "", err
	}

	var url string
	if err := e.run(e.cfg.ActionTimeout, chromedp.Location(&url)); err != nil {
		return "", errors.Wrap(err, errors.StepExecutionFailed, "failed to read page URL")
	}
	return url, nil
}

// Title returns the current page title.
func (e *Executor) Title(ctx context.Context) (string, error) {
	if err := errors.CheckContext(ctx, "browser title"); err != nil {
		return "", err
	}

	var title string
	if err := e.run(e.cfg.ActionTimeout, chromedp.Title(&title)); err != nil {
		return "", errors.Wrap(err, errors.StepExecutionFailed, "failed to read page title")
	}
	return title, nil
}

func (e *Executor) click(action core.Action) error {
	if action.Locator.Kind == core.LocatorCoordinate {
		x, y, err := parseCoordinate(action.Locator.Value)
		if err != nil {
			return errors.Wrap(err, errors.InvalidInput, "bad coordinate locator")
		}
		e.logger.Debug(context.Background(), "clicking at %d,%d", x, y)
		return classify(e.run(e.timeoutFor(action), mouseClick(x, y)...), action.Locator)
	}

	sel, by := queryFor(action.Locator)
	e.logger.Debug(context.Background(), "clicking %q", sel)
	return classify(e.run(e.timeoutFor(action), chromedp.Click(sel, by)), action.Locator)
}

func (e *Executor) fill(action core.Action) error {
	if action.Locator.Kind == core.LocatorCoordinate {
		// Click to focus the field, then type through the keyboard
		if err := e.click(core.Action{Kind: core.ActionClick, Locator: action.Locator, Timeout: action.Timeout}); err != nil {
			return err
		}
		return classify(e.run(e.timeoutFor(action), typeText(action.Value)), action.Locator)
	}

	sel, by := queryFor(action.Locator)
	err := e.run(e.timeoutFor(action),
		chromedp.Clear(sel, by),
		chromedp.SendKeys(sel, action.Value, by),
	)
	return classify(err, action.Locator)
}

func (e *Executor) selectOption(action core.Action) error {
	if action.Locator.Kind == core.LocatorCoordinate {
		return errors.New(errors.InvalidInput, "select needs an element locator, not a coordinate")
	}

	sel, by := queryFor(action.Locator)
	actions := []chromedp.Action{chromedp.SetValue(sel, action.Value, by)}
	if action.Locator.Kind == core.LocatorStructural && !strings.HasPrefix(sel, "/") {
		// SetValue does not fire the change handlers CRM pages hang their
		// cascading dropdowns on
		actions = append(actions, chromedp.Evaluate(changeEventJS(sel), nil))
	}
	return classify(e.run(e.timeoutFor(action), actions...), action.Locator)
}

func (e *Executor) navigate(action core.Action) error {
	if action.Value == "" {
		return errors.New(errors.InvalidInput, "navigate requires a URL in value")
	}
	e.logger.Debug(context.Background(), "navigating to %s", action.Value)
	return classify(e.run(e.timeoutFor(action), chromedp.Navigate(action.Value)), core.Locator{})
}

func (e *Executor) wait(action core.Action) error {
	if !action.Locator.IsZero() {
		sel, by := queryFor(action.Locator)
		return classify(e.run(e.timeoutFor(action), chromedp.WaitVisible(sel, by)), action.Locator)
	}

	if action.Value != "" {
		if d, err := time.ParseDuration(action.Value); err == nil {
			return e.run(0, chromedp.Sleep(d))
		}
		// A non-duration value is a selector to wait for
		loc := core.Locator{Value: action.Value, Kind: core.LocatorStructural}
		return classify(e.run(e.timeoutFor(action), chromedp.WaitVisible(action.Value, chromedp.ByQuery)), loc)
	}

	return classify(e.run(e.timeoutFor(action), chromedp.WaitReady("body", chromedp.ByQuery)), core.Locator{})
}

func (e *Executor) verify(action core.Action) error {
	if !action.Locator.IsZero() {
		sel, by := queryFor(action.Locator)
		if err := e.run(e.timeoutFor(action), chromedp.WaitVisible(sel, by)); err != nil {
			return errors.WithFields(
				errors.Wrap(err, errors.VerificationFailed, "expected element not visible"),
				errors.Fields{"selector": action.Locator.Value})
		}
		return nil
	}

	if action.Value != "" {
		var found bool
		if err := e.run(e.timeoutFor(action), chromedp.Evaluate(containsTextJS(action.Value), &found)); err != nil {
			return errors.Wrap(err, errors.VerificationFailed, "page text check failed")
		}
		if !found {
			return errors.WithFields(
				errors.New(errors.VerificationFailed, "expected text not on page"),
				errors.Fields{"text": action.Value})
		}
		return nil
	}

	// Nothing concrete to check
	return nil
}

// run executes chromedp actions against the browser context, bounded by
// timeout when positive.
func (e *Executor) run(timeout time.Duration, actions ...chromedp.Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx := e.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return chromedp.Run(ctx, actions...)
}

// timeoutFor picks the per-action deadline: the step's own timeout when
// set, otherwise the configured default for the action class.
func (e *Executor) timeoutFor(action core.Action) time.Duration {
	if action.Timeout > 0 {
		return action.Timeout
	}
	if action.Kind == core.ActionNavigate {
		return e.cfg.NavigationTimeout
	}
	return e.cfg.ActionTimeout
}

// classify maps a browser failure onto a strategy-visible error code. A
// deadline almost always means the locator never resolved on the page.
func classify(err error, loc core.Locator) error {
	if err == nil {
		return nil
	}

	code := errors.StepExecutionFailed
	if stderrors.Is(err, context.DeadlineExceeded) {
		code = errors.ResolutionFailed
	}

	wrapped := errors.Wrap(err, code, "browser action failed")
	if !loc.IsZero() {
		wrapped = errors.WithFields(wrapped, errors.Fields{
			"selector":     loc.Value,
			"locator_kind": string(loc.Kind),
		})
	}
	return wrapped
}

// queryFor maps a locator to a chromedp selector and query option. Text
// locators and XPath expressions go through DOM search, which accepts
// plain text, XPath, and CSS alike.
func queryFor(loc core.Locator) (string, chromedp.QueryOption) {
	if loc.Kind == core.LocatorText || strings.HasPrefix(loc.Value, "/") {
		return loc.Value, chromedp.BySearch
	}
	return loc.Value, chromedp.ByQuery
}

// parseCoordinate splits an "x,y" locator value into viewport coordinates.
func parseCoordinate(value string) (int, int, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("coordinate %q is not in x,y form", value)
	}

	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("coordinate %q has a bad x value", value)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("coordinate %q has a bad y value", value)
	}
	return x, y, nil
}

// mouseClick presses and releases the left button at viewport coordinates.
func mouseClick(x, y int) []chromedp.Action {
	return []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MousePressed, float64(x), float64(y)).
				WithButton(input.Left).WithClickCount(1).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseReleased, float64(x), float64(y)).
				WithButton(input.Left).WithClickCount(1).Do(ctx)
		}),
	}
}

// typeText emits one key event per character, the way a user would type.
func typeText(text string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, ch := range text {
			if err := input.DispatchKeyEvent(input.KeyChar).WithText(string(ch)).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func changeEventJS(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%q);
	if (el) { el.dispatchEvent(new Event('change', {bubbles: true})); }
})()`, selector)
}

func containsTextJS(text string) string {
	return fmt.Sprintf(`document.body !== null && document.body.innerText.includes(%q)`, text)
}
