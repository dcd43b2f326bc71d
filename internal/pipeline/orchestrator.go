package pipeline

import (
	"context"
	"time"

	"statbench/domain/core"
	"statbench/domain/table"
	"statbench/internal"
	"statbench/internal/config"
	"statbench/internal/derive"
	"statbench/internal/discretize"
	"statbench/internal/errors"
	"statbench/internal/expr"
	"statbench/internal/filter"
	"statbench/internal/interpolation"
	"statbench/internal/missing"
	"statbench/internal/profiling"
)

// Result is one materialized table. Statistics describe the pre-filter rows;
// Rows holds the post-filter rows.
type Result struct {
	Columns     []table.Column `json:"columns"`
	Rows        []table.Row    `json:"rows"`
	TotalRows   int            `json:"total_rows"`
	Fingerprint core.Hash      `json:"fingerprint"`
	RuntimeMs   int64          `json:"runtime_ms"`
}

// Table returns the result as a (columns, rows) pair
func (r *Result) Table() *table.Table {
	return &table.Table{Columns: r.Columns, Rows: r.Rows}
}

// Orchestrator runs the stages in their fixed order:
// computed columns, missing values, interpolation, statistics, derived columns, filter.
type Orchestrator struct {
	resolver    *missing.Resolver
	interpolate *interpolation.Engine
	profiler    *profiling.DataProfiler
	synthesizer *derive.ColumnSynthesizer
	logger      *internal.Logger
}

// NewOrchestrator wires the stages from pipeline configuration
func NewOrchestrator(cfg config.PipelineConfig, logger *internal.Logger) *Orchestrator {
	return &Orchestrator{
		resolver:    missing.NewResolver(cfg.Parallelism),
		interpolate: interpolation.NewEngine(cfg.LagrangeMaxPoints),
		profiler:    profiling.NewDataProfiler(cfg.Parallelism),
		synthesizer: derive.NewColumnSynthesizer(discretize.NewDiscretizer(cfg.KMeansMaxIterations)),
		logger:      logger,
	}
}

// Run materializes ds under rules. It never modifies its inputs, and the same
// (ds, rules) pair always yields an identical result.
func (o *Orchestrator) Run(ctx context.Context, ds table.Dataset, rules table.RuleSet) (*Result, error) {
	start := time.Now()
	if len(ds.Rows) == 0 {
		return nil, errors.EmptyDataset()
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	names := ds.HeaderNames()
	if dup, ok := table.FirstDuplicate(names); ok {
		return nil, errors.DuplicateColumnName(dup)
	}
	rows := table.CloneRows(ds.Rows)

	names, rows, err := o.materializeComputed(ctx, names, rows, rules)
	if err != nil {
		return nil, err
	}

	staged, err := o.runStages(ctx, names, rows, rules)
	if err != nil {
		return nil, err
	}

	pred, err := filter.Compile(staged.Columns, rules.FilterExpression)
	if err != nil {
		o.logger.Warn("filter compilation failed: %v", err)
		return nil, err
	}
	kept := filter.Apply(pred, staged.Rows)

	result := &Result{
		Columns:   staged.Columns,
		Rows:      kept,
		TotalRows: len(staged.Rows),
		RuntimeMs: time.Since(start).Milliseconds(),
	}
	if fp, err := core.Fingerprint(result.Columns, result.Rows); err == nil {
		result.Fingerprint = fp
	} else {
		o.logger.Warn("could not fingerprint result: %v", err)
	}

	o.logger.Debug("pipeline: %d columns, %d/%d rows kept in %dms", len(result.Columns), len(kept), result.TotalRows, result.RuntimeMs)
	return result, nil
}

// materializeComputed evaluates each computed column, in definition order, against
// the unfiltered table produced so far and appends it to the raw rows as a base column.
func (o *Orchestrator) materializeComputed(ctx context.Context, names []string, rows []table.Row, rules table.RuleSet) ([]string, []table.Row, error) {
	if len(rules.ComputedColumns) == 0 {
		return names, rows, nil
	}

	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	pending := make(map[string]bool, len(rules.ComputedColumns))
	for _, cc := range rules.ComputedColumns {
		pending[cc.Name] = !taken[cc.Name]
	}

	for _, cc := range rules.ComputedColumns {
		if taken[cc.Name] {
			return nil, nil, errors.DuplicateColumnName(cc.Name)
		}
		if err := expr.CheckSafety(cc.Expression); err != nil {
			return nil, nil, err
		}

		staged, err := o.runStages(ctx, names, rows, withoutPendingReferences(rules, pending))
		if err != nil {
			return nil, nil, err
		}
		for _, c := range staged.Columns {
			if c.Name == cc.Name {
				return nil, nil, errors.DuplicateColumnName(cc.Name)
			}
		}

		prog, err := expr.Compile(cc.Expression, staged.Columns)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "computed column %q", cc.Name)
		}
		for i := range rows {
			v, err := prog.EvalCell(staged.Rows[i], expr.AbsentShortCircuit)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "computed column %q, row %d", cc.Name, i)
			}
			rows[i][cc.Name] = v
		}

		taken[cc.Name] = true
		pending[cc.Name] = false
		names = append(names, cc.Name)
		o.logger.Debug("pipeline: materialized computed column %q", cc.Name)
	}
	return names, rows, nil
}

// withoutPendingReferences drops interpolation rules whose reference column is a
// computed column that has not been materialized yet. The final run applies them.
func withoutPendingReferences(rules table.RuleSet, pending map[string]bool) table.RuleSet {
	out := rules.Clone()
	for i, rule := range out.Columns {
		if rule.Interpolation != nil && pending[rule.Interpolation.ReferenceColumn] {
			out.Columns[i].Interpolation = nil
		}
	}
	return out
}

// runStages applies every stage except the filter
func (o *Orchestrator) runStages(ctx context.Context, names []string, rows []table.Row, rules table.RuleSet) (*table.Table, error) {
	columns := BuildColumns(names, rules)

	stage := time.Now()
	resolved, err := o.resolver.Resolve(ctx, columns, rows)
	if err != nil {
		return nil, err
	}
	o.logger.Trace("stage missing: %s", time.Since(stage))

	stage = time.Now()
	columns, filled, err := o.interpolate.Apply(columns, resolved)
	if err != nil {
		return nil, err
	}
	o.logger.Trace("stage interpolation: %s", time.Since(stage))

	stage = time.Now()
	columns, err = o.profiler.Describe(ctx, columns, filled)
	if err != nil {
		return nil, err
	}
	o.logger.Trace("stage describe: %s", time.Since(stage))

	stage = time.Now()
	columns, derived, err := o.synthesizer.SynthesizeColumns(columns, filled)
	if err != nil {
		return nil, err
	}
	o.logger.Trace("stage derive: %s", time.Since(stage))

	return &table.Table{Columns: columns, Rows: derived}, nil
}

// BuildColumns creates fresh descriptors for names carrying the matching column rules.
// Rules naming columns that do not exist yet are ignored.
func BuildColumns(names []string, rules table.RuleSet) []table.Column {
	columns := table.BootstrapColumns(names)
	for i := range columns {
		rule, ok := rules.Rule(columns[i].Name)
		if !ok {
			continue
		}
		columns[i].MissingSentinels = append([]table.Value(nil), rule.MissingSentinels...)
		if rule.Interpolation != nil {
			ip := *rule.Interpolation
			columns[i].Interpolation = &ip
		}
		columns[i].Derive = rule.Derive.Clone()
		if rule.Filter != nil {
			f := *rule.Filter
			columns[i].Filter = &f
		}
	}
	return columns
}
