package perception

import (
	"context"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rote-dev/rote-go/pkg/config"
	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
)

func testPerceptionConfig() config.PerceptionConfig {
	return config.PerceptionConfig{
		Model:          "claude-sonnet-4-20250514",
		APIKey:         "test-key",
		MaxTokens:      1024,
		Temperature:    0.0,
		RequestTimeout: 30 * time.Second,
		Retry: config.RetryConfig{
			MaxRetries:        2,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        10 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	}
}

func TestNewClaudeRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := testPerceptionConfig()
	cfg.APIKey = ""
	_, err := NewClaude(cfg)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ConfigurationError))
}

func TestNewClaudeTakesKeyFromEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg := testPerceptionConfig()
	cfg.APIKey = ""
	c, err := NewClaude(cfg)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestMethodsRequireScreenshot(t *testing.T) {
	c, err := NewClaude(testPerceptionConfig())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Locate(ctx, "save button", nil)
	assert.True(t, errors.HasCode(err, errors.InvalidInput))

	_, err = c.NextAction(ctx, &core.Screenshot{}, "create a lead")
	assert.True(t, errors.HasCode(err, errors.InvalidInput))

	_, err = c.VerifyCompletion(ctx, "create a lead", "confirmation visible", nil)
	assert.True(t, errors.HasCode(err, errors.InvalidInput))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{
			name: "bare object",
			text: `{"found": true}`,
			want: `{"found": true}`,
		},
		{
			name: "json fence",
			text: "Here you go:\n```json\n{\"found\": false}\n```\nDone.",
			want: `{"found": false}`,
		},
		{
			name: "plain fence",
			text: "```\n{\"complete\": true}\n```",
			want: `{"complete": true}`,
		},
		{
			name: "surrounding prose",
			text: `The answer is {"found": true, "selector": "#save"} as requested.`,
			want: `{"found": true, "selector": "#save"}`,
		},
		{
			name:    "no object",
			text:    "I cannot tell from this screenshot.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.InvalidResponse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLocate(t *testing.T) {
	t.Run("structural hit", func(t *testing.T) {
		loc, err := parseLocate(`{"found": true, "selector": "#customer-email", "kind": "structural", "confidence": 0.92}`)
		require.NoError(t, err)
		require.NotNil(t, loc)
		assert.Equal(t, "#customer-email", loc.Value)
		assert.Equal(t, core.LocatorStructural, loc.Kind)
	})

	t.Run("text hit", func(t *testing.T) {
		loc, err := parseLocate(`{"found": true, "selector": "Save Customer", "kind": "text"}`)
		require.NoError(t, err)
		require.NotNil(t, loc)
		assert.Equal(t, core.LocatorText, loc.Kind)
	})

	t.Run("kind defaults to structural", func(t *testing.T) {
		loc, err := parseLocate(`{"found": true, "selector": "#save"}`)
		require.NoError(t, err)
		require.NotNil(t, loc)
		assert.Equal(t, core.LocatorStructural, loc.Kind)
	})

	t.Run("miss is nil nil", func(t *testing.T) {
		loc, err := parseLocate(`{"found": false}`)
		require.NoError(t, err)
		assert.Nil(t, loc)
	})

	t.Run("found without selector is a miss", func(t *testing.T) {
		loc, err := parseLocate(`{"found": true, "selector": ""}`)
		require.NoError(t, err)
		assert.Nil(t, loc)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		_, err := parseLocate(`{"found": true, "selector": "#x", "kind": "psychic"}`)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.InvalidResponse))
	})

	t.Run("malformed json rejected", func(t *testing.T) {
		_, err := parseLocate(`{"found": `)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.InvalidResponse))
	})
}

func TestParseNextAction(t *testing.T) {
	t.Run("click proposal", func(t *testing.T) {
		text := "```json\n" + `{"action": "click", "selector": "#new-lead-btn", "kind": "structural", "confidence": 0.85, "reasoning": "The New Lead button opens the intake form"}` + "\n```"
		proposed, err := parseNextAction(text)
		require.NoError(t, err)
		assert.Equal(t, core.ActionClick, proposed.Kind)
		assert.Equal(t, "#new-lead-btn", proposed.Locator.Value)
		assert.Equal(t, core.LocatorStructural, proposed.Locator.Kind)
		assert.InDelta(t, 0.85, proposed.Confidence, 1e-9)
		assert.NotEmpty(t, proposed.Reasoning)
	})

	t.Run("fill carries value", func(t *testing.T) {
		proposed, err := parseNextAction(`{"action": "fill", "selector": "input[name='phone']", "kind": "structural", "value": "555-0134", "confidence": 0.9}`)
		require.NoError(t, err)
		assert.Equal(t, core.ActionFill, proposed.Kind)
		assert.Equal(t, "555-0134", proposed.Value)
	})

	t.Run("navigate has no locator", func(t *testing.T) {
		proposed, err := parseNextAction(`{"action": "navigate", "value": "https://crm.example.com/leads", "confidence": 0.7}`)
		require.NoError(t, err)
		assert.Equal(t, core.ActionNavigate, proposed.Kind)
		assert.True(t, proposed.Locator.IsZero())
	})

	t.Run("unknown action rejected", func(t *testing.T) {
		_, err := parseNextAction(`{"action": "teleport", "selector": "#x"}`)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.InvalidResponse))
	})
}

func TestParseVerify(t *testing.T) {
	complete, err := parseVerify(`{"complete": true, "reason": "Confirmation banner shows the lead was saved"}`)
	require.NoError(t, err)
	assert.True(t, complete)

	complete, err = parseVerify(`{"complete": false, "reason": "The form still shows validation errors"}`)
	require.NoError(t, err)
	assert.False(t, complete)

	_, err = parseVerify("no json here")
	require.Error(t, err)
}

func TestPromptsMentionTheirInputs(t *testing.T) {
	locate := locatePrompt("the Save Customer button", "https://crm.example.com/customers/new")
	assert.Contains(t, locate, "the Save Customer button")
	assert.Contains(t, locate, "https://crm.example.com/customers/new")
	assert.Contains(t, locate, `"found"`)

	next := nextActionPrompt("create a lead for Dana Smith", "")
	assert.Contains(t, next, "create a lead for Dana Smith")
	assert.Contains(t, next, `"action"`)
	assert.NotContains(t, next, "current URL")

	verify := verifyPrompt("create a lead", "a confirmation banner is visible", "https://crm.example.com/leads")
	assert.Contains(t, verify, "a confirmation banner is visible")
	assert.Contains(t, verify, `"complete"`)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limited", err: &anthropic.Error{StatusCode: 429}, want: true},
		{name: "server error", err: &anthropic.Error{StatusCode: 500}, want: true},
		{name: "overloaded", err: &anthropic.Error{StatusCode: 529}, want: true},
		{name: "bad request", err: &anthropic.Error{StatusCode: 400}, want: false},
		{name: "unauthorized", err: &anthropic.Error{StatusCode: 401}, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "network failure", err: assert.AnError, want: true},
		{name: "empty response", err: errors.New(errors.InvalidResponse, "empty"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}

func TestMediaTypeFor(t *testing.T) {
	png := append([]byte{0x89, 'P', 'N', 'G'}, 0x0D, 0x0A, 0x1A, 0x0A)
	assert.Equal(t, "image/png", mediaTypeFor(png))

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	assert.Equal(t, "image/jpeg", mediaTypeFor(jpeg))
}
