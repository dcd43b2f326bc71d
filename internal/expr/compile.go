package expr

import (
	"statbench/domain/table"
	"statbench/internal/errors"
)

// AbsentPolicy decides what an absent row value becomes during evaluation
type AbsentPolicy int

const (
	// AbsentUndefined substitutes undefined (the default)
	AbsentUndefined AbsentPolicy = iota
	// AbsentNull substitutes null; used by filter predicates
	AbsentNull
	// AbsentShortCircuit makes the whole result absent when any referenced value is absent
	AbsentShortCircuit
)

// Program is a parsed expression bound to a set of column descriptors
type Program struct {
	source string
	root   Node
	refs   []string
}

// Compile parses source and binds every aggregate accessor to its column's statistic.
// Aggregates are bound before bare placeholders, so a missing statistic is reported
// ahead of an unknown bare column.
func Compile(source string, columns []table.Column) (*Program, error) {
	root, err := Parse(source)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*table.Column, len(columns))
	for i := range columns {
		byName[columns[i].Name] = &columns[i]
	}

	var bindErr error
	Walk(root, func(n Node) bool {
		agg, ok := n.(*Aggregate)
		if !ok || bindErr != nil {
			return bindErr == nil
		}
		col, found := byName[agg.Name]
		if !found {
			bindErr = errors.UnknownVariable(agg.Name)
			return false
		}
		v, has := col.Statistic(agg.Stat)
		if !has {
			bindErr = errors.MissingStatistic(agg.Name, agg.Stat)
			return false
		}
		agg.Resolved = v
		agg.Bound = true
		return true
	})
	if bindErr != nil {
		return nil, bindErr
	}

	var refs []string
	seen := make(map[string]bool)
	Walk(root, func(n Node) bool {
		ph, ok := n.(*Placeholder)
		if !ok || bindErr != nil {
			return bindErr == nil
		}
		if _, found := byName[ph.Name]; !found {
			bindErr = errors.UnknownVariable(ph.Name)
			return false
		}
		if !seen[ph.Name] {
			seen[ph.Name] = true
			refs = append(refs, ph.Name)
		}
		return true
	})
	if bindErr != nil {
		return nil, bindErr
	}

	return &Program{source: source, root: root, refs: refs}, nil
}

// Source returns the expression text the program was compiled from
func (p *Program) Source() string { return p.source }

// Root returns the bound expression tree
func (p *Program) Root() Node { return p.root }

// References lists the columns read through bare placeholders, in first-use order
func (p *Program) References() []string {
	return append([]string(nil), p.refs...)
}
