// Package perception answers questions about the current page by sending
// screenshots to a Claude model: where an element is, what to do next,
// and whether a task looks finished.
package perception

import (
	"bytes"
	"context"
	"encoding/base64"
	stderrors "errors"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rote-dev/rote-go/pkg/config"
	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
	"github.com/rote-dev/rote-go/pkg/logging"
)

// Claude implements core.Perception against the Anthropic API.
type Claude struct {
	client *anthropic.Client
	cfg    config.PerceptionConfig
	logger *logging.Logger
}

// Option configures a Claude perception client.
type Option func(*Claude)

// WithLogger overrides the default logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Claude) {
		c.logger = logger
	}
}

// NewClaude builds a perception client from cfg. The API key comes from
// the config or, failing that, the ANTHROPIC_API_KEY environment variable.
func NewClaude(cfg config.PerceptionConfig, options ...Option) (*Claude, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New(errors.ConfigurationError, "anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	c := &Claude{
		client: &client,
		cfg:    cfg,
		logger: logging.GetLogger(),
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// Locate proposes a locator for the described element, or (nil, nil)
// when the model cannot find it on the page.
func (c *Claude) Locate(ctx context.Context, description string, shot *core.Screenshot) (*core.Locator, error) {
	if err := errors.CheckContext(ctx, "perception locate"); err != nil {
		return nil, err
	}
	if shot == nil || len(shot.Data) == 0 {
		return nil, errors.New(errors.InvalidInput, "locate requires a screenshot")
	}

	text, err := c.complete(ctx, locatePrompt(description, shot.URL), shot)
	if err != nil {
		return nil, err
	}
	return parseLocate(text)
}

// NextAction proposes the single next primitive action toward the goal.
func (c *Claude) NextAction(ctx context.Context, shot *core.Screenshot, goal string) (*core.ProposedAction, error) {
	if err := errors.CheckContext(ctx, "perception next action"); err != nil {
		return nil, err
	}
	if shot == nil || len(shot.Data) == 0 {
		return nil, errors.New(errors.InvalidInput, "next action requires a screenshot")
	}

	text, err := c.complete(ctx, nextActionPrompt(goal, shot.URL), shot)
	if err != nil {
		return nil, err
	}
	return parseNextAction(text)
}

// VerifyCompletion decides whether the page satisfies the task's
// success criteria.
func (c *Claude) VerifyCompletion(ctx context.Context, taskDescription, successCriteria string, shot *core.Screenshot) (bool, error) {
	if err := errors.CheckContext(ctx, "perception verify"); err != nil {
		return false, err
	}
	if shot == nil || len(shot.Data) == 0 {
		return false, errors.New(errors.InvalidInput, "verification requires a screenshot")
	}

	text, err := c.complete(ctx, verifyPrompt(taskDescription, successCriteria, shot.URL), shot)
	if err != nil {
		return false, err
	}
	return parseVerify(text)
}

// complete sends the prompt plus screenshot and retries transient API
// failures with exponential backoff.
func (c *Claude) complete(ctx context.Context, prompt string, shot *core.Screenshot) (string, error) {
	backoff := c.cfg.Retry.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	multiplier := c.cfg.Retry.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug(ctx, "retrying perception request in %v (attempt %d/%d)",
				backoff, attempt+1, c.cfg.Retry.MaxRetries+1)
			select {
			case <-ctx.Done():
				return "", errors.Wrap(ctx.Err(), errors.Canceled, "perception request aborted")
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * multiplier)
			if c.cfg.Retry.MaxBackoff > 0 && backoff > c.cfg.Retry.MaxBackoff {
				backoff = c.cfg.Retry.MaxBackoff
			}
		}

		text, err := c.request(ctx, prompt, shot)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}

	if errors.CodeOf(lastErr) != errors.Unknown {
		// Already one of ours, typically an empty-response error
		return "", lastErr
	}
	return "", errors.WithFields(
		errors.Wrap(lastErr, errors.PerceptionFailed, "perception request failed"),
		errors.Fields{"model": c.cfg.Model})
}

// request performs a single API call. Errors come back unwrapped so the
// retry loop can inspect status codes.
func (c *Claude) request(ctx context.Context, prompt string, shot *core.Screenshot) (string, error) {
	reqCtx := ctx
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	blocks := []anthropic.ContentBlockParamUnion{
		{OfText: &anthropic.TextBlockParam{Text: prompt}},
	}
	if shot != nil && len(shot.Data) > 0 {
		blocks = append(blocks, anthropic.ContentBlockParamUnion{
			OfImage: &anthropic.ImageBlockParam{
				Source: anthropic.ImageBlockParamSourceUnion{
					OfBase64: &anthropic.Base64ImageSourceParam{
						Data:      base64.StdEncoding.EncodeToString(shot.Data),
						MediaType: anthropic.Base64ImageSourceMediaType(mediaTypeFor(shot.Data)),
					},
				},
			},
		})
	}

	message, err := c.client.Messages.New(reqCtx, anthropic.MessageNewParams{
		Model: anthropic.Model(c.cfg.Model),
		Messages: []anthropic.MessageParam{
			{Content: blocks, Role: anthropic.MessageParamRoleUser},
		},
		MaxTokens:   int64(c.cfg.MaxTokens),
		Temperature: anthropic.Float(c.cfg.Temperature),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if stderrors.As(err, &apiErr) {
			c.logger.Error(ctx, "anthropic API error: status code %d", apiErr.StatusCode)
		}
		return "", err
	}

	if message == nil || len(message.Content) == 0 {
		return "", errors.New(errors.InvalidResponse, "received empty response from model")
	}
	if block := message.Content[0]; block.Type == "text" {
		return block.Text, nil
	}
	return "", errors.New(errors.InvalidResponse, "response had no text content")
}

// retryable reports whether a failed request is worth another attempt.
// Client mistakes never are; rate limits, server errors, and timeouts are.
func retryable(err error) bool {
	if errors.HasCode(err, errors.InvalidResponse) {
		return false
	}

	var apiErr *anthropic.Error
	if stderrors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout:
			return true
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	return !stderrors.Is(err, context.Canceled)
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

// mediaTypeFor sniffs the image format. Full-page captures are PNG at
// quality 100 and JPEG below that.
func mediaTypeFor(data []byte) string {
	if bytes.HasPrefix(data, pngMagic) {
		return "image/png"
	}
	return "image/jpeg"
}
