package patterns

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
)

// memRepo is an in-memory Repository for store tests.
type memRepo struct {
	mu      sync.Mutex
	stored  []*AutomationPattern
	loadErr error
	saveErr error
	saves   int
}

func (m *memRepo) Load(ctx context.Context) ([]*AutomationPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]*AutomationPattern(nil), m.stored...), nil
}

func (m *memRepo) Save(ctx context.Context, patterns []*AutomationPattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.stored = make([]*AutomationPattern, len(patterns))
	for i, p := range patterns {
		m.stored[i] = p.Clone()
	}
	return nil
}

func (m *memRepo) Close() error { return nil }

func (m *memRepo) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T, repo *memRepo, clock *fakeClock) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), repo,
		WithSweepInterval(0),
		WithClock(clock.Now),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedPattern stores a pattern and drives it to the requested counters.
// The initial store counts as the first success.
func seedPattern(t *testing.T, s *Store, taskType, selector string, successes, failures int) string {
	t.Helper()
	require.GreaterOrEqual(t, successes, 1)

	ctx := context.Background()
	steps := []core.ActionStep{stepClick(selector)}
	id, err := s.StorePattern(ctx, taskType, steps, nil, Conditions{},
		Outcome{Success: true, Duration: 2 * time.Second})
	require.NoError(t, err)

	for i := 0; i < successes-1; i++ {
		require.NoError(t, s.UpdateAfterExecution(ctx, id,
			Outcome{Success: true, Duration: 2 * time.Second}))
	}
	for i := 0; i < failures; i++ {
		require.NoError(t, s.UpdateAfterExecution(ctx, id,
			Outcome{Success: false, Duration: 4 * time.Second, Error: "selector timeout"}))
	}
	return id
}

func getPattern(t *testing.T, s *Store, id string) *AutomationPattern {
	t.Helper()
	all, err := s.FindPatterns(context.Background(), Criteria{})
	require.NoError(t, err)
	for _, p := range all {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("pattern %s not found", id)
	return nil
}

func TestStoreNewPattern(t *testing.T) {
	repo := &memRepo{}
	s := newTestStore(t, repo, newFakeClock())
	ctx := context.Background()

	steps := []core.ActionStep{
		stepClick("#lead-row-7"),
		stepFill("textarea[name=note]", "called back"),
		stepClick("#save-note"),
	}
	id, err := s.StorePattern(ctx, "add_lead_note", steps, []SelectorPattern{
		{Locator: core.Locator{Value: "#save-note", Kind: core.LocatorStructural}, Reliability: 1.0},
	}, Conditions{URLPattern: "/leads/"}, Outcome{Success: true, Duration: 3 * time.Second})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	p := getPattern(t, s, id)
	assert.Equal(t, "add_lead_note", p.TaskType)
	assert.Equal(t, 1, p.ExecutionCount)
	assert.InDelta(t, 1.0, p.SuccessRate, 1e-9)
	assert.InDelta(t, 0.8, p.Confidence, 1e-9, "a first success starts below formula confidence")
	assert.Len(t, p.UsageStats.RecentExecutions, 1)
	assert.Equal(t, 3*time.Second, p.AverageExecutionTime)
	assert.False(t, p.LastSuccessfulExecution.IsZero())
	assert.ElementsMatch(t, []string{core.CapabilityMouse, core.CapabilityKeyboard}, p.RequiredCapabilities)
	assert.Equal(t, 1, repo.saveCount(), "creation persists synchronously")
}

func TestStorePatternDedupes(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())
	ctx := context.Background()

	steps := []core.ActionStep{stepClick("#search"), stepFill("#vin", "1FT")}
	first, err := s.StorePattern(ctx, "vehicle_lookup", steps, nil, Conditions{},
		Outcome{Success: true, Duration: time.Second})
	require.NoError(t, err)

	// Same recipe with cosmetic differences folds into the same record
	variant := []core.ActionStep{stepClick("  #SEARCH "), stepFill("#VIN", "9ZZ")}
	second, err := s.StorePattern(ctx, "vehicle_lookup", variant, nil, Conditions{},
		Outcome{Success: true, Duration: time.Second})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.Stats().PatternCount)
	assert.Equal(t, 2, getPattern(t, s, first).ExecutionCount)
}

func TestStorePatternByID(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())
	ctx := context.Background()
	id := seedPattern(t, s, "create_lead", "#save-lead", 3, 1)

	p, err := s.Pattern(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "create_lead", p.TaskType)
	assert.Equal(t, 4, p.ExecutionCount)

	// The getter hands out a clone, not the live record
	p.TaskType = "mutated"
	again, err := s.Pattern(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "create_lead", again.TaskType)

	_, err = s.Pattern(ctx, "no-such-id")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.PatternNotFound))
}

func TestStorePatternRejectsFailedCreation(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())

	_, err := s.StorePattern(context.Background(), "vehicle_lookup",
		[]core.ActionStep{stepClick("#search")}, nil, Conditions{},
		Outcome{Success: false, Error: "timeout"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.InvalidInput))
}

func TestStorePatternValidatesInput(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())
	ctx := context.Background()

	_, err := s.StorePattern(ctx, "", []core.ActionStep{stepClick("#x")}, nil, Conditions{}, Outcome{Success: true})
	assert.True(t, errors.HasCode(err, errors.InvalidInput))

	_, err = s.StorePattern(ctx, "vehicle_lookup", nil, nil, Conditions{}, Outcome{Success: true})
	assert.True(t, errors.HasCode(err, errors.InvalidInput))
}

func TestSuccessRateAfterMixedRuns(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())

	// Ten executions, two of them failures
	id := seedPattern(t, s, "update_deal_stage", "#stage-dropdown", 8, 2)

	p := getPattern(t, s, id)
	assert.Equal(t, 10, p.ExecutionCount)
	assert.InDelta(t, 0.8, p.SuccessRate, 1e-9)
	assert.InDelta(t, 0.95, p.Confidence, 1e-9, "0.8 rate + 0.1 usage + 0.05 recency")
	assert.Equal(t, 8, p.UsageStats.SuccessfulExecutions)
	assert.Equal(t, 2, p.UsageStats.FailedExecutions)
}

func TestSuccessRateAlwaysDerived(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())
	ctx := context.Background()

	id := seedPattern(t, s, "vehicle_lookup", "#search", 1, 0)
	for i := 0; i < 25; i++ {
		require.NoError(t, s.UpdateAfterExecution(ctx, id, Outcome{Success: i%3 == 0, Duration: time.Second}))
	}

	p := getPattern(t, s, id)
	expected := float64(p.UsageStats.SuccessfulExecutions) / float64(p.UsageStats.TotalExecutions)
	assert.InDelta(t, expected, p.SuccessRate, 1e-9)
	assert.GreaterOrEqual(t, p.Confidence, 0.0)
	assert.LessOrEqual(t, p.Confidence, 1.0)
}

func TestExecutionHistoryRingThroughStore(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())
	ctx := context.Background()

	id := seedPattern(t, s, "vehicle_lookup", "#search", 1, 0)
	for i := 0; i < 70; i++ {
		require.NoError(t, s.UpdateAfterExecution(ctx, id, Outcome{Success: true, Duration: time.Second}))
	}

	p := getPattern(t, s, id)
	assert.Len(t, p.UsageStats.RecentExecutions, 50)
	assert.Equal(t, 71, p.UsageStats.TotalExecutions)
}

func TestUpdateAfterExecutionUnknownID(t *testing.T) {
	repo := &memRepo{}
	s := newTestStore(t, repo, newFakeClock())

	err := s.UpdateAfterExecution(context.Background(), "no-such-pattern", Outcome{Success: true})
	assert.NoError(t, err, "an evicted pattern must not fail the task that used it")
	assert.Equal(t, 0, repo.saveCount())
}

func TestUpdateAdjustsSelectorReliability(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())
	ctx := context.Background()

	steps := []core.ActionStep{stepClick("#save")}
	selectors := []SelectorPattern{
		{Locator: core.Locator{Value: "#save", Kind: core.LocatorStructural}, Reliability: 0.9},
		{Locator: core.Locator{Value: "button.save", Kind: core.LocatorStructural}, Reliability: 0.5},
	}
	id, err := s.StorePattern(ctx, "save_form", steps, selectors, Conditions{},
		Outcome{Success: true, Duration: time.Second})
	require.NoError(t, err)

	require.NoError(t, s.UpdateAfterExecution(ctx, id, Outcome{
		Success:           true,
		Duration:          time.Second,
		SelectorSuccesses: []string{"button.save"},
		SelectorFailures:  map[string]string{"#save": "element not visible"},
	}))

	p := getPattern(t, s, id)
	require.Len(t, p.Selectors, 2)
	assert.InDelta(t, 0.8, p.Selectors[0].Reliability, 1e-9)
	assert.Equal(t, []string{"element not visible"}, p.Selectors[0].FailureReasons)
	assert.InDelta(t, 0.55, p.Selectors[1].Reliability, 1e-9)
	assert.False(t, p.Selectors[1].LastSuccess.IsZero())
}

func TestPersistFailureFailsTheCall(t *testing.T) {
	repo := &memRepo{}
	s := newTestStore(t, repo, newFakeClock())
	ctx := context.Background()

	id := seedPattern(t, s, "vehicle_lookup", "#search", 1, 0)

	repo.mu.Lock()
	repo.saveErr = errors.New(errors.PersistenceFailed, "disk full")
	repo.mu.Unlock()

	err := s.UpdateAfterExecution(ctx, id, Outcome{Success: true})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.PersistenceFailed))

	_, err = s.StorePattern(ctx, "new_task", []core.ActionStep{stepClick("#x")}, nil, Conditions{},
		Outcome{Success: true})
	require.Error(t, err)

	// The pattern that failed to persist on creation is not kept
	repo.mu.Lock()
	repo.saveErr = nil
	repo.mu.Unlock()
	all, err := s.FindPatterns(ctx, Criteria{TaskType: "new_task"})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBestPatternPrefersHigherSuccessRate(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())

	strong := seedPattern(t, s, "vehicle_lookup", "#quick-search", 19, 1) // 0.95
	seedPattern(t, s, "vehicle_lookup", "#advanced-search", 18, 7)        // 0.72

	best, err := s.BestPattern(context.Background(), "vehicle_lookup", core.PageContext{})
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, strong, best.ID)
	assert.InDelta(t, 0.95, best.SuccessRate, 1e-9)
}

func TestBestPatternNoneQualifies(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		best, err := s.BestPattern(ctx, "vehicle_lookup", core.PageContext{})
		require.NoError(t, err)
		assert.Nil(t, best, "no shortcut is a normal condition, not an error")
	})

	t.Run("below success threshold", func(t *testing.T) {
		seedPattern(t, s, "vehicle_lookup", "#flaky", 5, 5) // 0.5
		best, err := s.BestPattern(ctx, "vehicle_lookup", core.PageContext{})
		require.NoError(t, err)
		assert.Nil(t, best)
	})

	t.Run("wrong task type", func(t *testing.T) {
		seedPattern(t, s, "update_deal_stage", "#stage", 10, 0)
		best, err := s.BestPattern(ctx, "vehicle_lookup", core.PageContext{})
		require.NoError(t, err)
		assert.Nil(t, best)
	})
}

func TestBestPatternChecksConditions(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())
	ctx := context.Background()

	steps := []core.ActionStep{stepClick("#search")}
	_, err := s.StorePattern(ctx, "vehicle_lookup", steps, nil,
		Conditions{URLPattern: "/inventory"},
		Outcome{Success: true, Duration: time.Second})
	require.NoError(t, err)
	id := ComputeID("vehicle_lookup", steps)
	for i := 0; i < 9; i++ {
		require.NoError(t, s.UpdateAfterExecution(ctx, id, Outcome{Success: true, Duration: time.Second}))
	}

	onPage, err := s.BestPattern(ctx, "vehicle_lookup",
		core.PageContext{URL: "https://crm.example.com/inventory/search"})
	require.NoError(t, err)
	assert.NotNil(t, onPage)

	offPage, err := s.BestPattern(ctx, "vehicle_lookup",
		core.PageContext{URL: "https://crm.example.com/service/appointments"})
	require.NoError(t, err)
	assert.Nil(t, offPage)
}

func TestSweepEviction(t *testing.T) {
	repo := &memRepo{}
	clock := newFakeClock()
	s := newTestStore(t, repo, clock)
	ctx := context.Background()

	chronic := seedPattern(t, s, "vehicle_lookup", "#chronic", 2, 10) // 0.167 over 12
	healthy := seedPattern(t, s, "vehicle_lookup", "#healthy", 11, 1) // 0.917 over 12
	stale := seedPattern(t, s, "vehicle_lookup", "#stale", 1, 0)      // single old success

	clock.Advance(200 * 24 * time.Hour)
	fresh := seedPattern(t, s, "vehicle_lookup", "#fresh", 1, 0)

	require.NoError(t, s.Sweep(ctx))

	all, err := s.FindPatterns(ctx, Criteria{})
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	assert.NotContains(t, ids, chronic, "chronic failures are evicted")
	assert.NotContains(t, ids, stale, "stale one-offs are evicted")
	assert.Contains(t, ids, healthy, "proven patterns survive age")
	assert.Contains(t, ids, fresh, "young patterns get time to prove themselves")
}

func TestSweepPersistsOnlyWhenEvicting(t *testing.T) {
	repo := &memRepo{}
	clock := newFakeClock()
	s := newTestStore(t, repo, clock)
	ctx := context.Background()

	seedPattern(t, s, "vehicle_lookup", "#healthy", 10, 0)
	before := repo.saveCount()

	require.NoError(t, s.Sweep(ctx))
	assert.Equal(t, before, repo.saveCount(), "no eviction, no rewrite")

	stats := s.Stats()
	assert.False(t, stats.LastSweep.IsZero())
}

func TestFindPatternsFiltering(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())
	ctx := context.Background()

	_, err := s.StorePattern(ctx, "vehicle_lookup",
		[]core.ActionStep{stepClick("#a")}, nil, Conditions{},
		Outcome{Success: true, Duration: time.Second}, "crm", "inventory")
	require.NoError(t, err)

	_, err = s.StorePattern(ctx, "vehicle_lookup",
		[]core.ActionStep{stepFill("#b", "x")}, nil, Conditions{},
		Outcome{Success: true, Duration: time.Second}, "crm")
	require.NoError(t, err)

	t.Run("by task type", func(t *testing.T) {
		got, err := s.FindPatterns(ctx, Criteria{TaskType: "vehicle_lookup"})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = s.FindPatterns(ctx, Criteria{TaskType: "unknown"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("by tags", func(t *testing.T) {
		got, err := s.FindPatterns(ctx, Criteria{RequiredTags: []string{"inventory"}})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("by capabilities", func(t *testing.T) {
		got, err := s.FindPatterns(ctx, Criteria{RequiredCapabilities: []string{core.CapabilityKeyboard}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Contains(t, got[0].RequiredCapabilities, core.CapabilityKeyboard)
	})

	t.Run("by minimum success rate", func(t *testing.T) {
		got, err := s.FindPatterns(ctx, Criteria{MinSuccessRate: 1.1})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("by age", func(t *testing.T) {
		got, err := s.FindPatterns(ctx, Criteria{MaxAgeDays: 30})
		require.NoError(t, err)
		assert.Len(t, got, 2, "patterns updated today are within any age window")
	})
}

func TestFindPatternsSortAndLimit(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())
	ctx := context.Background()

	seedPattern(t, s, "vehicle_lookup", "#low", 6, 4)    // 0.6, 10 runs
	seedPattern(t, s, "vehicle_lookup", "#high", 9, 1)   // 0.9, 10 runs
	seedPattern(t, s, "vehicle_lookup", "#heavy", 12, 8) // 0.6, 20 runs

	t.Run("success rate descending", func(t *testing.T) {
		got, err := s.FindPatterns(ctx, Criteria{SortBy: SortBySuccessRate})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.InDelta(t, 0.9, got[0].SuccessRate, 1e-9)
	})

	t.Run("usage descending", func(t *testing.T) {
		got, err := s.FindPatterns(ctx, Criteria{SortBy: SortByUsage})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 20, got[0].ExecutionCount)
	})

	t.Run("limit truncates after sorting", func(t *testing.T) {
		got, err := s.FindPatterns(ctx, Criteria{SortBy: SortBySuccessRate, Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 0.9, got[0].SuccessRate, 1e-9)
	})
}

func TestFindPatternsReturnsClones(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())
	ctx := context.Background()

	id := seedPattern(t, s, "vehicle_lookup", "#search", 3, 0)

	got, err := s.FindPatterns(ctx, Criteria{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	got[0].TaskType = "tampered"
	got[0].UsageStats.TotalExecutions = 999

	fresh := getPattern(t, s, id)
	assert.Equal(t, "vehicle_lookup", fresh.TaskType)
	assert.Equal(t, 3, fresh.UsageStats.TotalExecutions)
}

func TestNewStoreSkipsInvalidPatterns(t *testing.T) {
	repo := &memRepo{stored: []*AutomationPattern{
		{
			ID: "valid", TaskType: "vehicle_lookup", Confidence: 0.8,
			UsageStats: UsageStats{TotalExecutions: 1, SuccessfulExecutions: 1},
		},
		{ID: "neverran", TaskType: "vehicle_lookup"},
	}}
	s := newTestStore(t, repo, newFakeClock())

	assert.Equal(t, 1, s.Stats().PatternCount)
}

func TestNewStoreRecoversFromLoadFailure(t *testing.T) {
	repo := &memRepo{loadErr: errors.New(errors.PersistenceFailed, "corrupt file")}
	s := newTestStore(t, repo, newFakeClock())

	assert.Equal(t, 0, s.Stats().PatternCount)

	// The store still accepts writes afterwards
	repo.mu.Lock()
	repo.loadErr = nil
	repo.mu.Unlock()
	_, err := s.StorePattern(context.Background(), "vehicle_lookup",
		[]core.ActionStep{stepClick("#x")}, nil, Conditions{}, Outcome{Success: true})
	assert.NoError(t, err)
}

func TestExportImport(t *testing.T) {
	clock := newFakeClock()
	src := newTestStore(t, &memRepo{}, clock)
	ctx := context.Background()

	seedPattern(t, src, "vehicle_lookup", "#a", 5, 1)
	seedPattern(t, src, "update_deal_stage", "#b", 3, 0)

	var buf bytes.Buffer
	require.NoError(t, src.Export(ctx, &buf))

	dst := newTestStore(t, &memRepo{}, clock)
	accepted, err := dst.Import(ctx, bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 2, dst.Stats().PatternCount)

	t.Run("existing ids are kept without replace", func(t *testing.T) {
		accepted, err := dst.Import(ctx, bytes.NewReader(buf.Bytes()), false)
		require.NoError(t, err)
		assert.Equal(t, 0, accepted)
	})

	t.Run("replace overwrites", func(t *testing.T) {
		accepted, err := dst.Import(ctx, bytes.NewReader(buf.Bytes()), true)
		require.NoError(t, err)
		assert.Equal(t, 2, accepted)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := dst.Import(ctx, bytes.NewReader([]byte("not json")), false)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.InvalidInput))
	})
}

func TestStoreStats(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())

	seedPattern(t, s, "vehicle_lookup", "#a", 9, 1)    // 0.9
	seedPattern(t, s, "vehicle_lookup", "#b", 1, 1)    // 0.5
	seedPattern(t, s, "update_deal_stage", "#c", 4, 0) // 1.0

	stats := s.Stats()
	assert.Equal(t, 3, stats.PatternCount)
	assert.Equal(t, 2, stats.TaskTypes)
	assert.Equal(t, 16, stats.TotalExecutions)
	assert.InDelta(t, 0.8, stats.AverageSuccessRate, 1e-9)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := newTestStore(t, &memRepo{}, newFakeClock())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			selector := fmt.Sprintf("#field-%d", n)
			id, err := s.StorePattern(ctx, "vehicle_lookup",
				[]core.ActionStep{stepClick(selector)}, nil, Conditions{},
				Outcome{Success: true, Duration: time.Second})
			assert.NoError(t, err)
			for j := 0; j < 20; j++ {
				assert.NoError(t, s.UpdateAfterExecution(ctx, id,
					Outcome{Success: j%2 == 0, Duration: time.Second}))
				_, err := s.FindPatterns(ctx, Criteria{TaskType: "vehicle_lookup"})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	stats := s.Stats()
	assert.Equal(t, 8, stats.PatternCount)
	assert.Equal(t, 8*21, stats.TotalExecutions)
}
