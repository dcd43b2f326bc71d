package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"statbench/domain/core"
	"statbench/domain/table"
	"statbench/internal"
	"statbench/internal/config"
	"statbench/internal/errors"
	"statbench/internal/expr"
	"statbench/internal/pipeline"
	"statbench/ports"

	lru "github.com/hashicorp/golang-lru/v2"
)

const memoCapacity = 32

// Snapshot is the state every view reads: the imported dataset identity, the
// rule set in force and the materialized table it produced.
type Snapshot struct {
	DatasetID core.DatasetID   `json:"dataset_id"`
	Name      string           `json:"name,omitempty"`
	Rules     table.RuleSet    `json:"rules"`
	Result    *pipeline.Result `json:"result"`
	UpdatedAt core.Timestamp   `json:"updated_at"`

	dataset     table.Dataset
	datasetHash core.Hash
}

// Table returns the materialized table
func (s *Snapshot) Table() *table.Table { return s.Result.Table() }

// ExpressionCheck reports the outcome of validating an expression against the current table
type ExpressionCheck struct {
	Valid      bool     `json:"valid"`
	Code       string   `json:"code,omitempty"`
	Message    string   `json:"message,omitempty"`
	References []string `json:"references,omitempty"`
	Preview    string   `json:"preview,omitempty"`
	Value      string   `json:"value,omitempty"`
}

// ChangeListener is told about every snapshot swap. A nil snapshot means the
// table was cleared. Implementations must not block.
type ChangeListener interface {
	TableChanged(snap *Snapshot)
}

// WorkbenchService owns the current materialized table. Every mutation builds a
// fresh snapshot and swaps it in only when the whole pipeline succeeded, so a
// failed rule change leaves the previous table in place.
type WorkbenchService struct {
	orchestrator *pipeline.Orchestrator
	repo         ports.RuleSetRepository
	cfg          config.PipelineConfig
	logger       *internal.Logger

	current atomic.Pointer[Snapshot]

	// mu serializes writers; readers only load current
	mu        sync.Mutex
	memo      *lru.Cache[core.Hash, *pipeline.Result]
	listeners []ChangeListener
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewWorkbenchService creates a workbench with no dataset loaded
func NewWorkbenchService(orchestrator *pipeline.Orchestrator, repo ports.RuleSetRepository, cfg config.PipelineConfig, logger *internal.Logger) *WorkbenchService {
	return &WorkbenchService{
		orchestrator: orchestrator,
		repo:         repo,
		cfg:          cfg,
		logger:       logger,
		memo:         newMemo(),
		sleep:        sleepContext,
	}
}

// AddListener registers l for snapshot swaps
func (s *WorkbenchService) AddListener(l ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Current returns the current snapshot, if a dataset is loaded
func (s *WorkbenchService) Current() (*Snapshot, bool) {
	snap := s.current.Load()
	return snap, snap != nil
}

// Import replaces the dataset, assigns it a new identity and materializes it with no rules
func (s *WorkbenchService) Import(ctx context.Context, name string, ds table.Dataset) (*Snapshot, error) {
	if len(ds.Rows) == 0 {
		return nil, errors.EmptyDataset()
	}
	if dup, ok := table.FirstDuplicate(ds.HeaderNames()); ok {
		return nil, errors.DuplicateColumnName(dup)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.LargeDatasetThreshold > 0 && len(ds.Rows) > s.cfg.LargeDatasetThreshold {
		s.logger.Info("large dataset (%d rows), delaying first computation by %s", len(ds.Rows), s.cfg.ProcessingDelay)
		if err := s.sleep(ctx, s.cfg.ProcessingDelay); err != nil {
			return nil, err
		}
	}

	ds = ds.Clone()
	ds.Headers = ds.HeaderNames()
	hash, err := core.Fingerprint(ds.Headers, ds.Rows)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fingerprint dataset")
	}

	s.resetMemo()
	base := &Snapshot{
		DatasetID:   core.NewDatasetID(),
		Name:        name,
		dataset:     ds,
		datasetHash: hash,
	}
	snap, err := s.commit(ctx, base, table.RuleSet{})
	if err != nil {
		return nil, err
	}
	s.logger.Info("imported dataset %s: %d rows, %d columns", snap.DatasetID, len(ds.Rows), len(ds.Headers))
	return snap, nil
}

// Restore imports ds under a known identity and replays the rule set persisted for it
func (s *WorkbenchService) Restore(ctx context.Context, id core.DatasetID, ds table.Dataset) (*Snapshot, error) {
	if len(ds.Rows) == 0 {
		return nil, errors.EmptyDataset()
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds = ds.Clone()
	ds.Headers = ds.HeaderNames()
	hash, err := core.Fingerprint(ds.Headers, ds.Rows)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fingerprint dataset")
	}

	s.resetMemo()
	base := &Snapshot{DatasetID: id, Name: rec.Name, dataset: ds, datasetHash: hash}
	snap, err := s.commit(ctx, base, rec.Rules)
	if err != nil {
		return nil, err
	}
	s.logger.Info("restored dataset %s with %d column rules", id, len(rec.Rules.Columns))
	return snap, nil
}

// ApplyRules replaces the whole rule set
func (s *WorkbenchService) ApplyRules(ctx context.Context, rules table.RuleSet) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loaded()
	if err != nil {
		return nil, err
	}
	if rules.FilterExpression != "" {
		if err := expr.CheckSafety(rules.FilterExpression); err != nil {
			return nil, err
		}
	}
	for _, cc := range rules.ComputedColumns {
		if err := expr.CheckSafety(cc.Expression); err != nil {
			return nil, err
		}
	}
	return s.commit(ctx, cur, rules)
}

// SetFilterExpression installs a table-level filter expression, replacing any
// per-column filter rules. An empty expression removes the filter.
func (s *WorkbenchService) SetFilterExpression(ctx context.Context, expression string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loaded()
	if err != nil {
		return nil, err
	}
	if expression != "" {
		if err := expr.Validate(expression, cur.Result.Columns); err != nil {
			return nil, err
		}
	}

	rules := cur.Rules.Clone()
	rules.FilterExpression = expression
	for i := range rules.Columns {
		rules.Columns[i].Filter = nil
	}
	return s.commit(ctx, cur, rules)
}

// AddComputedColumn defines a new column from an expression over the current table
func (s *WorkbenchService) AddComputedColumn(ctx context.Context, name, expression string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loaded()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.InvalidInput("computed column name is required")
	}
	if _, exists := cur.Table().Column(name); exists {
		return nil, errors.DuplicateColumnName(name)
	}
	if err := expr.Validate(expression, cur.Result.Columns); err != nil {
		return nil, err
	}

	rules := cur.Rules.Clone()
	rules.ComputedColumns = append(rules.ComputedColumns, table.ComputedColumn{Name: name, Expression: expression})
	return s.commit(ctx, cur, rules)
}

// RemoveComputedColumn drops a computed column definition
func (s *WorkbenchService) RemoveComputedColumn(ctx context.Context, name string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loaded()
	if err != nil {
		return nil, err
	}

	rules := cur.Rules.Clone()
	kept := rules.ComputedColumns[:0]
	for _, cc := range rules.ComputedColumns {
		if cc.Name != name {
			kept = append(kept, cc)
		}
	}
	if len(kept) == len(rules.ComputedColumns) {
		return nil, errors.NotFound("computed column " + name)
	}
	rules.ComputedColumns = kept
	return s.commit(ctx, cur, rules)
}

// Clear drops the dataset and its cached results. The persisted rule set is kept for Restore.
func (s *WorkbenchService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Store(nil)
	s.resetMemo()
	s.notify(nil)
	s.logger.Info("workbench cleared")
}

// CheckExpression validates expression against the current table and renders it for the first row
func (s *WorkbenchService) CheckExpression(expression string, policy expr.AbsentPolicy) *ExpressionCheck {
	check := &ExpressionCheck{}
	var columns []table.Column
	var first table.Row
	snap, ok := s.Current()
	if ok {
		columns = snap.Result.Columns
		if len(snap.Result.Rows) > 0 {
			first = snap.Result.Rows[0]
		}
	}

	if err := expr.Validate(expression, columns); err != nil {
		check.Code = errors.GetCode(err)
		check.Message = err.Error()
		return check
	}
	check.Valid = true
	if !ok {
		return check
	}

	prog, err := expr.Compile(expression, columns)
	if err != nil {
		check.Valid = false
		check.Code = errors.GetCode(err)
		check.Message = err.Error()
		return check
	}
	check.References = prog.References()
	if first == nil {
		return check
	}
	if rendered, complete, err := expr.Render(expression, columns, first, policy); err == nil && complete {
		check.Preview = rendered
	}
	if v, err := prog.EvalCell(first, policy); err == nil {
		check.Value = v.String()
	}
	return check
}

// History lists persisted rule sets, most recent first
func (s *WorkbenchService) History(ctx context.Context, limit, offset int) ([]ports.RuleSetRecord, error) {
	return s.repo.List(ctx, limit, offset)
}

// DeleteRuleSet removes a persisted rule set. The loaded table is untouched; its
// next successful change saves its rules again.
func (s *WorkbenchService) DeleteRuleSet(ctx context.Context, id core.DatasetID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted rule set %s", id)
	return nil
}

func (s *WorkbenchService) loaded() (*Snapshot, error) {
	cur := s.current.Load()
	if cur == nil {
		return nil, errors.NotFound("dataset")
	}
	return cur, nil
}

// commit runs the pipeline for base's dataset under rules, persists the rule set
// and swaps the new snapshot in. Callers hold mu.
func (s *WorkbenchService) commit(ctx context.Context, base *Snapshot, rules table.RuleSet) (*Snapshot, error) {
	result, err := s.run(ctx, base, rules)
	if err != nil {
		s.logger.Warn("rule change rejected for dataset %s: %v", base.DatasetID, err)
		return nil, err
	}

	next := &Snapshot{
		DatasetID:   base.DatasetID,
		Name:        base.Name,
		Rules:       rules.Clone(),
		Result:      result,
		UpdatedAt:   core.Now(),
		dataset:     base.dataset,
		datasetHash: base.datasetHash,
	}
	record := ports.RuleSetRecord{
		DatasetID: next.DatasetID,
		Name:      next.Name,
		Rules:     next.Rules,
		UpdatedAt: next.UpdatedAt,
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to persist rule set")
	}

	s.current.Store(next)
	s.notify(next)
	return next, nil
}

func (s *WorkbenchService) notify(snap *Snapshot) {
	for _, l := range s.listeners {
		l.TableChanged(snap)
	}
}

func (s *WorkbenchService) run(ctx context.Context, base *Snapshot, rules table.RuleSet) (*pipeline.Result, error) {
	key, err := core.Fingerprint(base.datasetHash, rules)
	if err != nil {
		s.logger.Warn("could not fingerprint inputs, skipping memo: %v", err)
		return s.orchestrator.Run(ctx, base.dataset, rules)
	}
	if res, ok := s.memo.Get(key); ok {
		s.logger.Debug("memo hit %s", key.Short())
		return res, nil
	}

	res, err := s.orchestrator.Run(ctx, base.dataset, rules)
	if err != nil {
		return nil, err
	}
	s.memo.Add(key, res)
	return res, nil
}

func (s *WorkbenchService) resetMemo() {
	s.memo.Purge()
}

// newMemo holds the most recently used results for the current dataset
func newMemo() *lru.Cache[core.Hash, *pipeline.Result] {
	memo, err := lru.New[core.Hash, *pipeline.Result](memoCapacity)
	if err != nil {
		panic(err)
	}
	return memo
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
