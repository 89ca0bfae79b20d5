package patterns

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
	"github.com/rote-dev/rote-go/pkg/logging"
)

const (
	// initialConfidence is assigned to a freshly created pattern. One
	// perfect run is not yet proof, so the score starts below the
	// shortcut threshold's comfort zone.
	initialConfidence = 0.8

	// bestMinSuccessRate and bestMinConfidence gate BestPattern; a
	// shortcut below either threshold is worse than no shortcut.
	bestMinSuccessRate = 0.7
	bestMinConfidence  = 0.6

	// Eviction thresholds for the background sweep.
	evictFailureRate    = 0.3
	evictFailureMinRuns = 10
	evictStaleAge       = 180 * 24 * time.Hour
	evictStaleMaxRuns   = 3

	defaultSweepInterval = time.Hour
)

// Outcome describes one finished execution being folded into a pattern.
type Outcome struct {
	Success  bool
	Duration time.Duration
	Context  map[string]string
	Error    string
	Metrics  map[string]float64

	// SelectorSuccesses lists locator values that resolved during the
	// run; SelectorFailures maps locator values to failure reasons.
	SelectorSuccesses []string
	SelectorFailures  map[string]string
}

// StoreStats summarizes the store for inspection commands.
type StoreStats struct {
	PatternCount       int       `json:"patternCount"`
	TaskTypes          int       `json:"taskTypes"`
	TotalExecutions    int       `json:"totalExecutions"`
	AverageSuccessRate float64   `json:"averageSuccessRate"`
	LastSweep          time.Time `json:"lastSweep,omitempty"`
}

// Store is the in-memory pattern index with durable write-through
// persistence. All mutations are serialized through a single writer lock,
// and every mutation persists the full collection before returning.
type Store struct {
	mu    sync.RWMutex
	index map[string]*AutomationPattern

	repo   Repository
	logger *logging.Logger
	now    func() time.Time

	sweepInterval time.Duration
	lastSweep     time.Time
	stop          chan struct{}
	stopOnce      sync.Once
	wg            conc.WaitGroup
}

// StoreOption customizes store construction.
type StoreOption func(*Store)

// WithSweepInterval overrides the eviction cadence. A non-positive
// interval disables the background sweep; Sweep can still be called
// directly.
func WithSweepInterval(d time.Duration) StoreOption {
	return func(s *Store) { s.sweepInterval = d }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithLogger replaces the default global logger.
func WithLogger(l *logging.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore loads the persisted collection and starts the eviction sweep.
// A failed or corrupt load is recoverable: the store starts empty and the
// next successful save rewrites the file.
func NewStore(ctx context.Context, repo Repository, opts ...StoreOption) (*Store, error) {
	if err := errors.CheckContext(ctx, "open pattern store"); err != nil {
		return nil, err
	}

	s := &Store{
		index:         make(map[string]*AutomationPattern),
		repo:          repo,
		logger:        logging.GetLogger(),
		now:           time.Now,
		sweepInterval: defaultSweepInterval,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		s.logger.Warn(ctx, "pattern store load failed, starting empty: %v", err)
	}
	for _, p := range loaded {
		if err := p.Validate(); err != nil {
			s.logger.Warn(ctx, "skipping invalid stored pattern %q: %v", p.ID, err)
			continue
		}
		s.index[p.ID] = p
	}

	if s.sweepInterval > 0 {
		s.wg.Go(s.sweepLoop)
	}

	return s, nil
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Sweep(context.Background()); err != nil {
				s.logger.Error(context.Background(), "pattern sweep failed: %v", err)
			}
		case <-s.stop:
			return
		}
	}
}

// Close stops the sweep and releases the repository.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	return s.repo.Close()
}

// StorePattern records a successful action trace. If an identical recipe
// already exists (same derived id), the outcome is folded into it instead
// of creating a duplicate. The returned id identifies the stored pattern
// either way.
func (s *Store) StorePattern(ctx context.Context, taskType string, steps []core.ActionStep, selectors []SelectorPattern, conds Conditions, outcome Outcome, tags ...string) (string, error) {
	if err := errors.CheckContext(ctx, "store pattern"); err != nil {
		return "", err
	}
	if taskType == "" {
		return "", errors.New(errors.InvalidInput, "task type is required")
	}
	if len(steps) == 0 {
		return "", errors.New(errors.InvalidInput, "pattern needs at least one action step")
	}

	id := ComputeID(taskType, steps)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if existing, ok := s.index[id]; ok {
		s.applyOutcome(existing, outcome, now)
		if err := s.persistLocked(ctx); err != nil {
			return "", err
		}
		return id, nil
	}

	if !outcome.Success {
		return "", errors.WithFields(
			errors.New(errors.InvalidInput, "new patterns are only created from successful executions"),
			errors.Fields{"task_type": taskType})
	}

	p := &AutomationPattern{
		ID:                   id,
		TaskType:             taskType,
		ActionSequence:       cloneSteps(steps),
		Selectors:            cloneSelectors(selectors),
		Conditions:           conds,
		RequiredCapabilities: core.CapabilitiesFor(steps),
		Tags:                 append([]string(nil), tags...),
		CreatedDate:          now,
		LastUpdated:          now,
	}
	s.applyOutcome(p, outcome, now)
	// One perfect run does not earn formula confidence yet
	p.Confidence = initialConfidence

	s.index[id] = p
	if err := s.persistLocked(ctx); err != nil {
		delete(s.index, id)
		return "", err
	}

	s.logger.Info(ctx, "learned new pattern %s for task type %q (%d steps)", id, taskType, len(steps))
	return id, nil
}

// FindPatterns returns clones of every pattern matching the criteria,
// ordered and truncated as requested.
func (s *Store) FindPatterns(ctx context.Context, c Criteria) ([]*AutomationPattern, error) {
	if err := errors.CheckContext(ctx, "find patterns"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var matched []*AutomationPattern
	for _, p := range s.index {
		if c.matches(p, now) {
			matched = append(matched, p)
		}
	}

	sortPatterns(matched, c.SortBy)
	if c.Limit > 0 && len(matched) > c.Limit {
		matched = matched[:c.Limit]
	}

	out := make([]*AutomationPattern, len(matched))
	for i, p := range matched {
		out[i] = p.Clone()
	}
	return out, nil
}

// Pattern returns the pattern with the exact id.
func (s *Store) Pattern(ctx context.Context, id string) (*AutomationPattern, error) {
	if err := errors.CheckContext(ctx, "get pattern"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.index[id]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.PatternNotFound, "no pattern with that id"),
			errors.Fields{"pattern_id": id})
	}
	return p.Clone(), nil
}

// BestPattern returns the strongest applicable shortcut for the task type
// and page, or nil when no stored pattern clears the trust thresholds.
// Having no shortcut is a normal condition, not an error.
func (s *Store) BestPattern(ctx context.Context, taskType string, page core.PageContext) (*AutomationPattern, error) {
	if err := errors.CheckContext(ctx, "select best pattern"); err != nil {
		return nil, err
	}

	c := Criteria{
		TaskType:       taskType,
		MinSuccessRate: bestMinSuccessRate,
		MinConfidence:  bestMinConfidence,
		SortBy:         SortBySuccessRate,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var matched []*AutomationPattern
	for _, p := range s.index {
		if c.matches(p, now) && p.Conditions.MatchesPage(page) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	sortPatterns(matched, SortBySuccessRate)
	return matched[0].Clone(), nil
}

// UpdateAfterExecution folds an execution outcome into an existing
// pattern and persists. An unknown id is logged and ignored so a pattern
// evicted mid-run cannot fail the task that used it.
func (s *Store) UpdateAfterExecution(ctx context.Context, patternID string, outcome Outcome) error {
	if err := errors.CheckContext(ctx, "update pattern"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.index[patternID]
	if !ok {
		s.logger.Warn(ctx, "ignoring execution update for unknown pattern %q", patternID)
		return nil
	}

	s.applyOutcome(p, outcome, s.now())
	return s.persistLocked(ctx)
}

// applyOutcome mutates p under the store lock: counters, timing, selector
// reliability, then the derived scores.
func (s *Store) applyOutcome(p *AutomationPattern, outcome Outcome, now time.Time) {
	rec := ExecutionRecord{
		Timestamp: now,
		Success:   outcome.Success,
		Duration:  outcome.Duration,
		Context:   outcome.Context,
		Error:     outcome.Error,
		Metrics:   outcome.Metrics,
	}
	p.UsageStats.record(rec)

	if outcome.Success {
		p.LastSuccessfulExecution = now
	}

	for _, value := range outcome.SelectorSuccesses {
		if sel := p.findSelector(value); sel != nil {
			sel.recordSuccess(now)
		}
	}
	for value, reason := range outcome.SelectorFailures {
		if sel := p.findSelector(value); sel != nil {
			sel.recordFailure(reason)
		}
	}

	p.LastUpdated = now
	p.recompute(now)
}

func (p *AutomationPattern) findSelector(value string) *SelectorPattern {
	want := NormalizeToken(value)
	for i := range p.Selectors {
		if NormalizeToken(p.Selectors[i].Locator.Value) == want {
			return &p.Selectors[i]
		}
	}
	return nil
}

// Sweep evicts chronic failures and stale one-offs, persisting if any
// pattern was removed. The controller never observes a half-swept index
// because eviction holds the same writer lock as every mutation.
func (s *Store) Sweep(ctx context.Context) error {
	if err := errors.CheckContext(ctx, "sweep patterns"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var evicted []string
	for id, p := range s.index {
		if shouldEvict(p, now) {
			evicted = append(evicted, id)
		}
	}
	for _, id := range evicted {
		delete(s.index, id)
	}
	s.lastSweep = now

	if len(evicted) == 0 {
		return nil
	}

	s.logger.Info(ctx, "pattern sweep evicted %d of %d patterns", len(evicted), len(evicted)+len(s.index))
	return s.persistLocked(ctx)
}

func shouldEvict(p *AutomationPattern, now time.Time) bool {
	if p.SuccessRate < evictFailureRate && p.UsageStats.TotalExecutions >= evictFailureMinRuns {
		return true
	}
	if now.Sub(p.LastUpdated) > evictStaleAge && p.UsageStats.TotalExecutions < evictStaleMaxRuns {
		return true
	}
	return false
}

// Export writes the collection as a versioned JSON document.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	if err := errors.CheckContext(ctx, "export patterns"); err != nil {
		return err
	}

	s.mu.RLock()
	snapshot := s.snapshotLocked()
	cloned := make([]*AutomationPattern, len(snapshot))
	for i, p := range snapshot {
		cloned[i] = p.Clone()
	}
	doc := repositoryDocument{
		Version:     documentVersion,
		LastUpdated: s.now().UTC(),
		Patterns:    cloned,
	}
	s.mu.RUnlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, errors.PersistenceFailed, "failed to encode pattern export")
	}
	return nil
}

// Import merges patterns from an exported document. Existing ids are kept
// unless replace is set. Returns the number of patterns accepted.
func (s *Store) Import(ctx context.Context, r io.Reader, replace bool) (int, error) {
	if err := errors.CheckContext(ctx, "import patterns"); err != nil {
		return 0, err
	}

	var doc repositoryDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, errors.Wrap(err, errors.InvalidInput, "import document is not valid JSON")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := 0
	for _, p := range doc.Patterns {
		if err := p.Validate(); err != nil {
			s.logger.Warn(ctx, "skipping invalid imported pattern %q: %v", p.ID, err)
			continue
		}
		if _, exists := s.index[p.ID]; exists && !replace {
			continue
		}
		s.index[p.ID] = p.Clone()
		accepted++
	}

	if accepted == 0 {
		return 0, nil
	}
	if err := s.persistLocked(ctx); err != nil {
		return 0, err
	}
	return accepted, nil
}

// Stats summarizes the current collection.
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := StoreStats{
		PatternCount: len(s.index),
		LastSweep:    s.lastSweep,
	}
	taskTypes := make(map[string]struct{})
	var rateSum float64
	for _, p := range s.index {
		taskTypes[p.TaskType] = struct{}{}
		stats.TotalExecutions += p.UsageStats.TotalExecutions
		rateSum += p.SuccessRate
	}
	stats.TaskTypes = len(taskTypes)
	if stats.PatternCount > 0 {
		stats.AverageSuccessRate = rateSum / float64(stats.PatternCount)
	}
	return stats
}

// persistLocked writes the full collection through the repository. Callers
// must hold the writer lock. A write failure fails the mutation that
// triggered it.
func (s *Store) persistLocked(ctx context.Context) error {
	return s.repo.Save(ctx, s.snapshotLocked())
}

// snapshotLocked returns the index as a slice in stable id order.
func (s *Store) snapshotLocked() []*AutomationPattern {
	out := make([]*AutomationPattern, 0, len(s.index))
	for _, p := range s.index {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneSteps(steps []core.ActionStep) []core.ActionStep {
	out := make([]core.ActionStep, len(steps))
	for i, step := range steps {
		out[i] = cloneStep(step)
	}
	return out
}

func cloneSelectors(selectors []SelectorPattern) []SelectorPattern {
	out := make([]SelectorPattern, len(selectors))
	for i, sel := range selectors {
		out[i] = sel
		out[i].Reliability = clamp01(sel.Reliability)
		out[i].FailureReasons = append([]string(nil), sel.FailureReasons...)
	}
	return out
}
