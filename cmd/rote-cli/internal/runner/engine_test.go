package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rote-dev/rote-go/pkg/config"
	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
	"github.com/rote-dev/rote-go/pkg/patterns"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfigDefaults(t *testing.T) {
	// A config path that does not exist falls through to pure defaults.
	cfg, err := LoadConfig(Options{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})

	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, 25, cfg.Controller.MaxInteractions)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rote.yaml")
	writeFile(t, path, `
store:
  backend: file
  path: `+filepath.Join(dir, "patterns.json")+`
controller:
  max_interactions: 12
`)

	cfg, err := LoadConfig(Options{ConfigPath: path})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "patterns.json"), cfg.Store.Path)
	assert.Equal(t, 12, cfg.Controller.MaxInteractions)
	// Untouched sections keep their defaults
	assert.Equal(t, 1920, cfg.Browser.WindowWidth)
}

func TestLoadConfigOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rote.yaml")
	writeFile(t, path, `
store:
  backend: file
  path: from-file.json
`)

	cfg, err := LoadConfig(Options{
		ConfigPath: path,
		Overrides:  []string{"store.path=from-flag.json", "controller.maxInteractions=7"},
	})

	require.NoError(t, err)
	assert.Equal(t, "from-flag.json", cfg.Store.Path)
	assert.Equal(t, 7, cfg.Controller.MaxInteractions)
}

func TestOpenStoreFileBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "patterns.json")
	cfg.Store.SweepInterval = 0

	store, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, 0, store.Stats().PatternCount)
}

func TestOpenStoreSQLiteBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.Store.Backend = "sqlite"
	cfg.Store.Path = filepath.Join(dir, "patterns.db")
	cfg.Store.SweepInterval = 0

	store, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(cfg.Store.Path)
	assert.NoError(t, err)
}

func TestControllerOptions(t *testing.T) {
	opts := ControllerOptions(config.ControllerConfig{
		MaxInteractions:   10,
		PromoteConfidence: 0.5,
	})
	assert.Len(t, opts, 3)

	opts = ControllerOptions(config.ControllerConfig{
		MaxInteractions:   10,
		PromoteConfidence: 0.5,
		Order:             []string{"vision", "position"},
	})
	assert.Len(t, opts, 4)
}

func TestTaskSpecConversion(t *testing.T) {
	spec := TaskSpec{
		Type:            "create_lead",
		URL:             "https://crm.example.com/leads/new",
		Description:     "Create a lead for Dana Smith",
		SuccessCriteria: "a confirmation banner names Dana Smith",
		EstimatedClicks: 4,
		Steps: []StepSpec{
			{Kind: "navigate", Value: "https://crm.example.com/leads/new"},
			{Kind: "fill", Selector: "#customer-name", Value: "Dana Smith", Description: "name field"},
			{Kind: "click", Selector: "Save Lead", LocatorKind: "text"},
		},
	}

	task, err := spec.Task()

	require.NoError(t, err)
	assert.Equal(t, "create_lead", task.Type)
	assert.Equal(t, "https://crm.example.com/leads/new", task.Page.URL)
	assert.Equal(t, 4, task.EstimatedClicks)
	require.Len(t, task.Steps, 3)

	assert.Equal(t, core.ActionNavigate, task.Steps[0].Kind)
	assert.True(t, task.Steps[0].Target.Primary.IsZero())

	assert.Equal(t, core.ActionFill, task.Steps[1].Kind)
	assert.Equal(t, core.LocatorStructural, task.Steps[1].Target.Primary.Kind)
	assert.Equal(t, "name field", task.Steps[1].Target.Description)

	assert.Equal(t, core.LocatorText, task.Steps[2].Target.Primary.Kind)
}

func TestTaskSpecRequiresTypeAndDescription(t *testing.T) {
	_, err := TaskSpec{Description: "no type"}.Task()
	assert.True(t, errors.HasCode(err, errors.InvalidInput))

	_, err = TaskSpec{Type: "create_lead"}.Task()
	assert.True(t, errors.HasCode(err, errors.InvalidInput))
}

func TestStepSpecValidation(t *testing.T) {
	_, err := StepSpec{Kind: "teleport"}.step()
	assert.True(t, errors.HasCode(err, errors.InvalidInput))

	_, err = StepSpec{Kind: "click", Selector: "#x", LocatorKind: "psychic"}.step()
	assert.True(t, errors.HasCode(err, errors.InvalidInput))

	// click without a selector has nothing to act on
	_, err = StepSpec{Kind: "click"}.step()
	assert.True(t, errors.HasCode(err, errors.InvalidInput))

	// wait on value alone is fine
	step, err := StepSpec{Kind: "wait", Value: "2s"}.step()
	require.NoError(t, err)
	assert.Equal(t, core.ActionWait, step.Kind)
}

func TestLoadTaskFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")
	writeFile(t, path, `
tasks:
  - type: create_lead
    url: https://crm.example.com/leads/new
    description: Create a lead for Dana Smith
    success_criteria: a confirmation banner names Dana Smith
    steps:
      - kind: fill
        selector: "#customer-name"
        value: Dana Smith
        timeout: 5s
      - kind: click
        selector: "#save-lead"
  - type: log_activity
    description: Log a call with the Jones household
`)

	tasks, err := LoadTaskFile(path)

	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "create_lead", tasks[0].Type)
	require.Len(t, tasks[0].Steps, 2)
	assert.Equal(t, 5*time.Second, tasks[0].Steps[0].Timeout)
	assert.Empty(t, tasks[1].Steps)
}

func TestLoadTaskFileRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadTaskFile(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.HasCode(err, errors.InvalidInput))

	empty := filepath.Join(dir, "empty.yaml")
	writeFile(t, empty, "tasks: []\n")
	_, err = LoadTaskFile(empty)
	assert.True(t, errors.HasCode(err, errors.InvalidInput))

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, `
tasks:
  - type: create_lead
    description: has a bogus step
    steps:
      - kind: teleport
`)
	_, err = LoadTaskFile(bad)
	assert.True(t, errors.HasCode(err, errors.InvalidInput))
}

func TestRunBatchSurfacesEngineErrors(t *testing.T) {
	// No API key and no browser in the test environment, so every task
	// should come back with an engine construction error in order.
	t.Setenv("ANTHROPIC_API_KEY", "")

	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "patterns.json")
	cfg.Store.SweepInterval = 0
	// Point at a binary that is not Chrome so the executor fails fast.
	cfg.Browser.ExecPath = filepath.Join(dir, "no-such-chrome")

	store, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()

	tasks := []core.Task{
		{Type: "create_lead", Description: "first"},
		{Type: "log_activity", Description: "second"},
	}
	results := RunBatch(context.Background(), cfg, store, tasks, 2)

	require.Len(t, results, 2)
	assert.Equal(t, "create_lead", results[0].Task.Type)
	assert.Equal(t, "log_activity", results[1].Task.Type)
	for _, r := range results {
		assert.Error(t, r.Err)
	}
}

func TestOpenPatternStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "patterns.json")
	cfg.Store.SweepInterval = 0

	ctx := context.Background()
	store, err := OpenStore(ctx, cfg)
	require.NoError(t, err)

	_, err = store.StorePattern(ctx, "create_lead",
		[]core.ActionStep{{
			Kind:   core.ActionClick,
			Target: core.TargetDescriptor{Primary: core.Locator{Value: "#save-lead", Kind: core.LocatorStructural}},
		}},
		nil, patterns.Conditions{}, patterns.Outcome{Success: true, Duration: time.Second})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Stats().PatternCount)
}
