package ports

import (
	"context"

	"statbench/domain/table"
)

// RowSource reads a rectangular dataset from an external file
type RowSource interface {
	ReadDataset(ctx context.Context, path string) (table.Dataset, error)
	Supports(path string) bool
}
