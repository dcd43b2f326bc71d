package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"statbench/adapters/memory"
	"statbench/domain/table"
	"statbench/internal"
	"statbench/internal/config"
	"statbench/internal/errors"
	"statbench/internal/expr"
	"statbench/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*WorkbenchService, *memory.RuleSetRepository) {
	t.Helper()
	cfg := config.DefaultPipelineConfig()
	repo := memory.NewRuleSetRepository()
	logger := internal.NewDiscardLogger()
	return NewWorkbenchService(pipeline.NewOrchestrator(cfg, logger), repo, cfg, logger), repo
}

func scores() table.Dataset {
	return table.Dataset{
		Headers: []string{"x", "label"},
		Rows: []table.Row{
			{"x": table.Num(1), "label": table.Str("a")},
			{"x": table.Num(2), "label": table.Str("b")},
			{"x": table.Num(3), "label": table.Str("c")},
			{"x": table.Num(4), "label": table.Str("d")},
		},
	}
}

func TestImport(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	_, err := svc.Import(ctx, "empty", table.Dataset{})
	assert.True(t, errors.HasCode(err, errors.CodeEmptyDataset))
	_, ok := svc.Current()
	assert.False(t, ok)

	_, err = svc.Import(ctx, "dup", table.Dataset{
		Headers: []string{"x", "x"},
		Rows:    []table.Row{{"x": table.Num(1)}},
	})
	assert.True(t, errors.HasCode(err, errors.CodeDuplicateColumnName))

	snap, err := svc.Import(ctx, "scores", scores())
	require.NoError(t, err)
	assert.False(t, snap.DatasetID.IsEmpty())
	assert.Len(t, snap.Result.Rows, 4)
	x, ok := snap.Table().Column("x")
	require.True(t, ok)
	assert.Equal(t, table.ScaleIntervalRatio, x.ScaleType)

	cur, ok := svc.Current()
	require.True(t, ok)
	assert.Same(t, snap, cur)

	rec, err := repo.Get(ctx, snap.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, "scores", rec.Name)
}

func TestFailedRuleChangeKeepsPreviousTable(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Import(ctx, "scores", scores())
	require.NoError(t, err)

	good, err := svc.SetFilterExpression(ctx, ":::x::: > mean(:::x:::)")
	require.NoError(t, err)
	assert.Len(t, good.Result.Rows, 2)

	tests := []struct {
		name  string
		apply func() error
		code  string
	}{
		{"unknown variable", func() error {
			_, err := svc.SetFilterExpression(ctx, ":::missing::: > 1")
			return err
		}, errors.CodeUnknownVariable},
		{"unsafe expression", func() error {
			_, err := svc.ApplyRules(ctx, table.RuleSet{FilterExpression: "fetch('x')"})
			return err
		}, errors.CodeUnsafeExpression},
		{"syntax error", func() error {
			_, err := svc.SetFilterExpression(ctx, ":::x::: >")
			return err
		}, errors.CodeEvaluationError},
		{"nominal statistic", func() error {
			_, err := svc.ApplyRules(ctx, table.RuleSet{Columns: []table.ColumnRule{
				{Name: "label", Derive: table.DeriveRequest{Standardize: true}},
			}})
			return err
		}, errors.CodeMissingStatistic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.apply()
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)

			cur, ok := svc.Current()
			require.True(t, ok)
			assert.Same(t, good, cur)
		})
	}
}

func TestComputedColumns(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	_, err := svc.Import(ctx, "scores", scores())
	require.NoError(t, err)

	snap, err := svc.AddComputedColumn(ctx, "x_sq", ":::x::: ** 2")
	require.NoError(t, err)
	col, ok := snap.Table().Column("x_sq")
	require.True(t, ok)
	assert.Equal(t, 7.5, col.Summary.Mean)

	_, err = svc.AddComputedColumn(ctx, "x", "1")
	assert.True(t, errors.HasCode(err, errors.CodeDuplicateColumnName))
	_, err = svc.AddComputedColumn(ctx, "bad", "eval(1)")
	assert.True(t, errors.HasCode(err, errors.CodeUnsafeExpression))

	rec, err := repo.Get(ctx, snap.DatasetID)
	require.NoError(t, err)
	require.Len(t, rec.Rules.ComputedColumns, 1)
	assert.Equal(t, "x_sq", rec.Rules.ComputedColumns[0].Name)

	snap, err = svc.RemoveComputedColumn(ctx, "x_sq")
	require.NoError(t, err)
	_, ok = snap.Table().Column("x_sq")
	assert.False(t, ok)

	_, err = svc.RemoveComputedColumn(ctx, "x_sq")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestSetFilterExpressionReplacesColumnFilters(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Import(ctx, "scores", scores())
	require.NoError(t, err)

	snap, err := svc.ApplyRules(ctx, table.RuleSet{Columns: []table.ColumnRule{
		{Name: "x", Filter: &table.FilterRule{Operator: table.FilterLess, Operand: table.Num(3)}},
	}})
	require.NoError(t, err)
	assert.Len(t, snap.Result.Rows, 2)

	snap, err = svc.SetFilterExpression(ctx, ":::label::: == 'd'")
	require.NoError(t, err)
	assert.False(t, snap.Rules.HasColumnFilters())
	require.Len(t, snap.Result.Rows, 1)
	assert.Equal(t, table.Num(4), snap.Result.Rows[0]["x"])

	snap, err = svc.SetFilterExpression(ctx, "")
	require.NoError(t, err)
	assert.Len(t, snap.Result.Rows, 4)
}

func TestMemoReusesResults(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Import(ctx, "scores", scores())
	require.NoError(t, err)

	rules := table.RuleSet{FilterExpression: ":::x::: >= 2"}
	first, err := svc.ApplyRules(ctx, rules)
	require.NoError(t, err)
	second, err := svc.ApplyRules(ctx, rules)
	require.NoError(t, err)
	assert.Same(t, first.Result, second.Result)

	for i := 10; i <= 10+memoCapacity; i++ {
		_, err := svc.ApplyRules(ctx, table.RuleSet{FilterExpression: fmt.Sprintf(":::x::: >= %d", i)})
		require.NoError(t, err)
	}
	assert.Equal(t, memoCapacity, svc.memo.Len())

	third, err := svc.ApplyRules(ctx, rules)
	require.NoError(t, err)
	assert.NotSame(t, first.Result, third.Result, "evicted results are recomputed")
	assert.Equal(t, first.Result.Fingerprint, third.Result.Fingerprint)
}

func TestRestoreReplaysPersistedRules(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	snap, err := svc.Import(ctx, "scores", scores())
	require.NoError(t, err)
	_, err = svc.AddComputedColumn(ctx, "double", ":::x::: * 2")
	require.NoError(t, err)
	_, err = svc.SetFilterExpression(ctx, ":::double::: > 4")
	require.NoError(t, err)

	svc.Clear()
	_, ok := svc.Current()
	assert.False(t, ok)
	_, err = svc.ApplyRules(ctx, table.RuleSet{})
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	restored, err := svc.Restore(ctx, snap.DatasetID, scores())
	require.NoError(t, err)
	assert.Equal(t, snap.DatasetID, restored.DatasetID)
	assert.Equal(t, "scores", restored.Name)
	require.Len(t, restored.Result.Rows, 2)
	assert.Equal(t, table.Num(6), restored.Result.Rows[0]["double"])
}

func TestDeleteRuleSet(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	snap, err := svc.Import(ctx, "scores", scores())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRuleSet(ctx, snap.DatasetID))
	_, err = repo.Get(ctx, snap.DatasetID)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
	assert.True(t, errors.HasCode(svc.DeleteRuleSet(ctx, snap.DatasetID), errors.CodeNotFound))

	cur, ok := svc.Current()
	require.True(t, ok)
	assert.Same(t, snap, cur)

	_, err = svc.SetFilterExpression(ctx, ":::x::: > 1")
	require.NoError(t, err)
	_, err = repo.Get(ctx, snap.DatasetID)
	assert.NoError(t, err)
}

func TestLargeImportWaitsBeforeComputing(t *testing.T) {
	svc, _ := newService(t)
	svc.cfg.LargeDatasetThreshold = 2
	svc.cfg.ProcessingDelay = time.Second

	var waited time.Duration
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		waited = d
		return ctx.Err()
	}

	_, err := svc.Import(context.Background(), "scores", scores())
	require.NoError(t, err)
	assert.Equal(t, time.Second, waited)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Import(ctx, "scores", scores())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), 0))
}

func TestCheckExpression(t *testing.T) {
	svc, _ := newService(t)

	check := svc.CheckExpression("1 + 1", expr.AbsentUndefined)
	assert.True(t, check.Valid, "no dataset: syntax and safety only")

	_, err := svc.Import(context.Background(), "scores", scores())
	require.NoError(t, err)

	check = svc.CheckExpression(":::x::: - mean(:::x:::)", expr.AbsentUndefined)
	require.True(t, check.Valid, check.Message)
	assert.Equal(t, []string{"x"}, check.References)
	assert.Equal(t, "1 - 2.5", check.Preview)
	assert.Equal(t, "-1.5", check.Value)

	check = svc.CheckExpression("localStorage", expr.AbsentUndefined)
	assert.False(t, check.Valid)
	assert.Equal(t, errors.CodeUnsafeExpression, check.Code)

	check = svc.CheckExpression(":::nope:::", expr.AbsentUndefined)
	assert.False(t, check.Valid)
	assert.Equal(t, errors.CodeUnknownVariable, check.Code)
}

type recordingListener struct {
	snaps []*Snapshot
}

func (r *recordingListener) TableChanged(snap *Snapshot) { r.snaps = append(r.snaps, snap) }

func TestListenersSeeEverySwap(t *testing.T) {
	svc, _ := newService(t)
	l := &recordingListener{}
	svc.AddListener(l)
	ctx := context.Background()

	first, err := svc.Import(ctx, "scores", scores())
	require.NoError(t, err)
	_, err = svc.SetFilterExpression(ctx, ":::nope::: > 1")
	require.Error(t, err)
	svc.Clear()

	require.Len(t, l.snaps, 2, "failed changes are not announced")
	assert.Same(t, first, l.snaps[0])
	assert.Nil(t, l.snaps[1])
}
