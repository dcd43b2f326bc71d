package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"statbench/domain/core"
	"statbench/internal/errors"
	"statbench/ports"

	"github.com/jmoiron/sqlx"
)

// ruleSetRepository implements ports.RuleSetRepository on a JSONB column
type ruleSetRepository struct {
	db *sqlx.DB
}

// NewRuleSetRepository creates a new rule-set repository
func NewRuleSetRepository(db *sqlx.DB) ports.RuleSetRepository {
	return &ruleSetRepository{db: db}
}

type ruleSetRow struct {
	DatasetID string    `db:"dataset_id"`
	Name      string    `db:"name"`
	Rules     []byte    `db:"rules"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row ruleSetRow) record() (ports.RuleSetRecord, error) {
	rec := ports.RuleSetRecord{
		DatasetID: core.DatasetID(row.DatasetID),
		Name:      row.Name,
		UpdatedAt: core.NewTimestamp(row.UpdatedAt),
	}
	if err := json.Unmarshal(row.Rules, &rec.Rules); err != nil {
		return rec, fmt.Errorf("failed to unmarshal rules for %s: %w", row.DatasetID, err)
	}
	return rec, nil
}

// Save upserts the rule set for a dataset
func (r *ruleSetRepository) Save(ctx context.Context, record ports.RuleSetRecord) error {
	rulesJSON, err := json.Marshal(record.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	updatedAt := record.UpdatedAt.Time()
	if record.UpdatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `INSERT INTO rule_sets (dataset_id, name, rules, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dataset_id) DO UPDATE
		SET name = EXCLUDED.name, rules = EXCLUDED.rules, updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, record.DatasetID.String(), record.Name, rulesJSON, updatedAt); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("failed to save rule set: %w", err))
	}
	return nil
}

// Get retrieves the rule set of a dataset
func (r *ruleSetRepository) Get(ctx context.Context, id core.DatasetID) (*ports.RuleSetRecord, error) {
	query := `SELECT dataset_id, name, rules, updated_at FROM rule_sets WHERE dataset_id = $1`

	var row ruleSetRow
	if err := r.db.GetContext(ctx, &row, query, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("rule set " + id.String())
		}
		return nil, errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("failed to get rule set: %w", err))
	}

	rec, err := row.record()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns rule sets, most recently updated first
func (r *ruleSetRepository) List(ctx context.Context, limit, offset int) ([]ports.RuleSetRecord, error) {
	query := `SELECT dataset_id, name, rules, updated_at FROM rule_sets
		ORDER BY updated_at DESC LIMIT $1 OFFSET $2`

	var rows []ruleSetRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("failed to list rule sets: %w", err))
	}

	out := make([]ports.RuleSetRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes the rule set of a dataset
func (r *ruleSetRepository) Delete(ctx context.Context, id core.DatasetID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rule_sets WHERE dataset_id = $1`, id.String())
	if err != nil {
		return errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("failed to delete rule set: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound("rule set " + id.String())
	}
	return nil
}
