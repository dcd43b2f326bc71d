package memory

import (
	"context"
	"sort"
	"sync"

	"statbench/domain/core"
	"statbench/internal/errors"
	"statbench/ports"
)

// RuleSetRepository keeps rule sets in process memory. It is used when no database is configured.
type RuleSetRepository struct {
	mu      sync.RWMutex
	records map[core.DatasetID]ports.RuleSetRecord
}

// NewRuleSetRepository creates an empty store
func NewRuleSetRepository() *RuleSetRepository {
	return &RuleSetRepository{records: make(map[core.DatasetID]ports.RuleSetRecord)}
}

// Save stores a copy of record
func (r *RuleSetRepository) Save(ctx context.Context, record ports.RuleSetRecord) error {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = core.Now()
	}
	record.Rules = record.Rules.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.DatasetID] = record
	return nil
}

// Get returns a copy of the stored record
func (r *RuleSetRepository) Get(ctx context.Context, id core.DatasetID) (*ports.RuleSetRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, errors.NotFound("rule set " + id.String())
	}
	rec.Rules = rec.Rules.Clone()
	return &rec, nil
}

// List returns records, most recently updated first
func (r *RuleSetRepository) List(ctx context.Context, limit, offset int) ([]ports.RuleSetRecord, error) {
	r.mu.RLock()
	out := make([]ports.RuleSetRecord, 0, len(r.records))
	for _, rec := range r.records {
		rec.Rules = rec.Rules.Clone()
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].UpdatedAt.Time(), out[j].UpdatedAt.Time()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].DatasetID < out[j].DatasetID
	})

	if offset >= len(out) {
		return []ports.RuleSetRecord{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a record
func (r *RuleSetRepository) Delete(ctx context.Context, id core.DatasetID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return errors.NotFound("rule set " + id.String())
	}
	delete(r.records, id)
	return nil
}

var _ ports.RuleSetRepository = (*RuleSetRepository)(nil)
