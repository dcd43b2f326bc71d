package expr

import (
	"fmt"

	"statbench/domain/table"
	"statbench/internal/errors"
)

// Eval evaluates the program against one row
func (p *Program) Eval(row table.Row, policy AbsentPolicy) (Value, error) {
	if policy == AbsentShortCircuit {
		for _, name := range p.refs {
			if row.Get(name).IsAbsent() {
				return Undefined(), nil
			}
		}
	}

	absent := Undefined()
	if policy == AbsentNull {
		absent = Null()
	}
	return eval(p.root, row, absent)
}

// EvalCell evaluates the program and converts the result into a table cell
func (p *Program) EvalCell(row table.Row, policy AbsentPolicy) (table.Value, error) {
	v, err := p.Eval(row, policy)
	if err != nil {
		return table.Absent(), err
	}
	return v.ToCell(), nil
}

// Test evaluates the program as a predicate: errors and falsy results reject the row
func (p *Program) Test(row table.Row) bool {
	v, err := p.Eval(row, AbsentNull)
	return err == nil && v.Truthy()
}

func eval(n Node, row table.Row, absent Value) (Value, error) {
	switch x := n.(type) {
	case *Literal:
		return x.Value, nil
	case *Placeholder:
		return fromCell(row.Get(x.Name), absent), nil
	case *Aggregate:
		if !x.Bound {
			return Value{}, errors.EvaluationError(fmt.Sprintf("%s is not bound to a column", x))
		}
		return Number(x.Resolved), nil
	case *Group:
		return eval(x.Inner, row, absent)
	case *Unary:
		v, err := eval(x.Operand, row, absent)
		if err != nil {
			return Value{}, err
		}
		switch x.Op {
		case NOT:
			return Boolean(!v.Truthy()), nil
		case MINUS:
			return Number(-v.ToNumber()), nil
		default:
			return Number(v.ToNumber()), nil
		}
	case *Binary:
		return evalBinary(x, row, absent)
	}
	return Value{}, errors.EvaluationError(fmt.Sprintf("unsupported node %T", n))
}

func evalBinary(b *Binary, row table.Row, absent Value) (Value, error) {
	left, err := eval(b.Left, row, absent)
	if err != nil {
		return Value{}, err
	}

	// && and || yield an operand, not a boolean
	switch b.Op {
	case AND:
		if !left.Truthy() {
			return left, nil
		}
		return eval(b.Right, row, absent)
	case OR:
		if left.Truthy() {
			return left, nil
		}
		return eval(b.Right, row, absent)
	}

	right, err := eval(b.Right, row, absent)
	if err != nil {
		return Value{}, err
	}

	switch b.Op {
	case PLUS:
		return add(left, right), nil
	case MINUS, STAR, SLASH, POW:
		return arithmetic(b.Op, left, right), nil
	case LT, LTE, GT, GTE:
		return Boolean(compare(b.Op, left, right)), nil
	case EQ:
		return Boolean(looseEqual(left, right)), nil
	case NEQ:
		return Boolean(!looseEqual(left, right)), nil
	case STRICTEQ:
		return Boolean(strictEqual(left, right)), nil
	case STRICTNEQ:
		return Boolean(!strictEqual(left, right)), nil
	}
	return Value{}, errors.EvaluationError(fmt.Sprintf("unsupported operator %s", b.Op))
}
