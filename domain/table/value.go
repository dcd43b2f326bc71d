package table

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies what a Value holds
type Kind uint8

const (
	KindAbsent Kind = iota
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "absent"
	}
}

// Value is a single cell: a number, a string, or absent.
// The zero Value is absent.
type Value struct {
	kind Kind
	num  float64
	str  string
}

// Absent returns the uniform "no value" marker
func Absent() Value { return Value{} }

// Num wraps a float64
func Num(f float64) Value { return Value{kind: KindNumber, num: f} }

// Str wraps a string
func Str(s string) Value { return Value{kind: KindString, str: s} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsAbsent() bool  { return v.kind == KindAbsent }
func (v Value) IsPresent() bool { return v.kind != KindAbsent }
func (v Value) IsNumber() bool  { return v.kind == KindNumber }
func (v Value) IsString() bool  { return v.kind == KindString }

// Float returns the numeric payload; zero for non-numbers
func (v Value) Float() float64 { return v.num }

// Text returns the string payload; empty for non-strings
func (v Value) Text() string { return v.str }

// String renders the value the way JavaScript's String() would
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindString:
		return v.str
	default:
		return "undefined"
	}
}

// MarshalJSON encodes numbers as numbers, strings as strings and absent as null.
// Non-finite numbers have no JSON form and are written as their string rendering.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return json.Marshal(FormatNumber(v.num))
		}
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, numbers, strings and booleans (kept as "true"/"false")
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromInterface converts decoded JSON / spreadsheet cells into a Value
func FromInterface(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Absent(), nil
	case Value:
		return x, nil
	case float64:
		return Num(x), nil
	case float32:
		return Num(float64(x)), nil
	case int:
		return Num(float64(x)), nil
	case int64:
		return Num(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Absent(), fmt.Errorf("invalid number %q: %w", x, err)
		}
		return Num(f), nil
	case string:
		return Str(x), nil
	case bool:
		return Str(strconv.FormatBool(x)), nil
	default:
		return Absent(), fmt.Errorf("unsupported cell type %T", raw)
	}
}

// FormatNumber renders f the way JavaScript's Number.prototype.toString does
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[0]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		return mantissa + "e" + string(sign) + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseNumber converts a string the way JavaScript's Number(string) does; NaN when it does not parse
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil || strings.Contains(s[2:], "_") {
				return math.NaN()
			}
			return float64(n)
		}
	}

	for _, r := range s {
		if !(r >= '0' && r <= '9') && r != '.' && r != 'e' && r != 'E' && r != '+' && r != '-' {
			return math.NaN()
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

// ToNumber applies JavaScript numeric coercion to a cell; absent becomes NaN
func ToNumber(v Value) float64 {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return ParseNumber(v.str)
	default:
		return math.NaN()
	}
}

// FiniteNumber reports whether v coerces to a finite number. Blank strings do not count as numeric.
func FiniteNumber(v Value) (float64, bool) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return 0, false
		}
		return v.num, true
	case KindString:
		if strings.TrimSpace(v.str) == "" {
			return 0, false
		}
		f := ParseNumber(v.str)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// LooselyEqual implements the type-coercing comparison used for sentinel matching:
// -99 matches "-99", "-99.0" matches -99, and absent never matches anything.
func LooselyEqual(a, b Value) bool {
	if a.IsAbsent() || b.IsAbsent() {
		return false
	}
	if a.String() == b.String() {
		return true
	}
	switch {
	case a.kind == KindNumber && b.kind == KindString:
		return a.num == ParseNumber(b.str)
	case a.kind == KindString && b.kind == KindNumber:
		return ParseNumber(a.str) == b.num
	default:
		return false
	}
}
