package expr

import (
	"math"
	"strconv"

	"statbench/domain/table"
)

// Kind is the runtime type of an expression value
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
)

// Value is the result of evaluating an expression. Coercions follow JavaScript.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
}

func Undefined() Value            { return Value{Kind: KindUndefined} }
func Null() Value                 { return Value{Kind: KindNull} }
func Boolean(b bool) Value        { return Value{Kind: KindBool, Bool: b} }
func Number(f float64) Value      { return Value{Kind: KindNumber, Num: f} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func (v Value) IsNullish() bool   { return v.Kind == KindUndefined || v.Kind == KindNull }
func (v Value) IsUndefined() bool { return v.Kind == KindUndefined }

// ToNumber applies JavaScript's ToNumber
func (v Value) ToNumber() float64 {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindString:
		return table.ParseNumber(v.Str)
	case KindBool:
		if v.Bool {
			return 1
		}
		return 0
	case KindNull:
		return 0
	default:
		return math.NaN()
	}
}

// ToString applies JavaScript's ToString
func (v Value) ToString() string {
	switch v.Kind {
	case KindNumber:
		return table.FormatNumber(v.Num)
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNull:
		return "null"
	default:
		return "undefined"
	}
}

// Truthy applies JavaScript's ToBoolean
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case KindString:
		return v.Str != ""
	default:
		return false
	}
}

// ToCell converts an evaluation result into a table cell. Non-finite numbers, null and
// undefined become absent; booleans become the strings "true"/"false".
func (v Value) ToCell() table.Value {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return table.Absent()
		}
		return table.Num(v.Num)
	case KindString:
		return table.Str(v.Str)
	case KindBool:
		return table.Str(strconv.FormatBool(v.Bool))
	default:
		return table.Absent()
	}
}

// fromCell lifts a row cell into the expression domain. Numeric-looking strings are numbers.
func fromCell(c table.Value, absent Value) Value {
	switch c.Kind() {
	case table.KindNumber:
		return Number(c.Float())
	case table.KindString:
		if f, ok := table.FiniteNumber(c); ok {
			return Number(f)
		}
		return StringValue(c.Text())
	default:
		return absent
	}
}

func add(a, b Value) Value {
	if a.Kind == KindString || b.Kind == KindString {
		return StringValue(a.ToString() + b.ToString())
	}
	return Number(a.ToNumber() + b.ToNumber())
}

func arithmetic(op TokenType, a, b Value) Value {
	x, y := a.ToNumber(), b.ToNumber()
	switch op {
	case MINUS:
		return Number(x - y)
	case STAR:
		return Number(x * y)
	case SLASH:
		return Number(x / y)
	case POW:
		return Number(power(x, y))
	}
	return Number(math.NaN())
}

// power differs from math.Pow where JavaScript returns NaN
func power(x, y float64) float64 {
	if math.IsNaN(y) {
		return math.NaN()
	}
	if math.Abs(x) == 1 && math.IsInf(y, 0) {
		return math.NaN()
	}
	return math.Pow(x, y)
}

func compare(op TokenType, a, b Value) bool {
	if a.Kind == KindString && b.Kind == KindString {
		switch op {
		case LT:
			return a.Str < b.Str
		case LTE:
			return a.Str <= b.Str
		case GT:
			return a.Str > b.Str
		default:
			return a.Str >= b.Str
		}
	}
	x, y := a.ToNumber(), b.ToNumber()
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	switch op {
	case LT:
		return x < y
	case LTE:
		return x <= y
	case GT:
		return x > y
	default:
		return x >= y
	}
}

func strictEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNumber:
		return a.Num == b.Num
	case KindString:
		return a.Str == b.Str
	case KindBool:
		return a.Bool == b.Bool
	default:
		return true
	}
}

func looseEqual(a, b Value) bool {
	if a.Kind == b.Kind {
		return strictEqual(a, b)
	}
	if a.IsNullish() || b.IsNullish() {
		return a.IsNullish() && b.IsNullish()
	}
	if a.Kind == KindBool {
		return looseEqual(Number(a.ToNumber()), b)
	}
	if b.Kind == KindBool {
		return looseEqual(a, Number(b.ToNumber()))
	}
	return a.ToNumber() == b.ToNumber()
}

// FromCell converts a table cell the way placeholders do; absent becomes undefined
func FromCell(c table.Value) Value {
	return fromCell(c, Undefined())
}

// Compare applies a relational operator (<, <=, >, >=) with JavaScript semantics
func Compare(op TokenType, a, b Value) bool {
	return compare(op, a, b)
}

// LooseEqual applies JavaScript ==
func LooseEqual(a, b Value) bool {
	return looseEqual(a, b)
}
