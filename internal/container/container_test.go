package container

import (
	"context"
	"testing"

	"statbench/domain/table"
	"statbench/internal"
	"statbench/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestInitInMemory(t *testing.T) {
	cfg := &config.Config{Pipeline: config.DefaultPipelineConfig()}
	c, err := New(cfg, internal.NewDiscardLogger())
	require.NoError(t, err)

	c.InitInMemory()
	require.NotNil(t, c.Workbench)
	require.NotNil(t, c.RuleSetRepo)
	assert.True(t, c.RowSource.Supports("data.csv"))

	ctx := context.Background()
	snap, err := c.Workbench.Import(ctx, "t", table.Dataset{Rows: []table.Row{{"a": table.Num(1)}}})
	require.NoError(t, err)

	rec, err := c.RuleSetRepo.Get(ctx, snap.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, "t", rec.Name)

	require.NoError(t, c.Shutdown(ctx))
	_, loaded := c.Workbench.Current()
	assert.False(t, loaded)
}

func TestInitWithDatabaseRejectsNil(t *testing.T) {
	c, err := New(&config.Config{}, internal.NewDiscardLogger())
	require.NoError(t, err)
	assert.Error(t, c.InitWithDatabase(nil))
}
