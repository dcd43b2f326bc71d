package ports

import (
	"context"

	"statbench/domain/core"
	"statbench/domain/table"
)

// RuleSetRecord is a persisted rule set together with the dataset it was authored for
type RuleSetRecord struct {
	DatasetID core.DatasetID `json:"dataset_id" db:"dataset_id"`
	Name      string         `json:"name" db:"name"`
	Rules     table.RuleSet  `json:"rules" db:"-"`
	UpdatedAt core.Timestamp `json:"updated_at" db:"-"`
}

// RuleSetRepository stores rule sets verbatim so they can be replayed through the pipeline
type RuleSetRepository interface {
	Save(ctx context.Context, record RuleSetRecord) error
	Get(ctx context.Context, id core.DatasetID) (*RuleSetRecord, error)
	List(ctx context.Context, limit, offset int) ([]RuleSetRecord, error)
	Delete(ctx context.Context, id core.DatasetID) error
}
