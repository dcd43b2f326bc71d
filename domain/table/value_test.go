package table

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooselyEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"number matches numeric string", Num(-99), Str("-99"), true},
		{"string matches number", Str("-99"), Num(-99), true},
		{"decimal string matches integer", Str("-99.0"), Num(-99), true},
		{"identical strings", Str("NA"), Str("NA"), true},
		{"different strings", Str("NA"), Str("na"), false},
		{"different numbers", Num(1), Num(2), false},
		{"absent never matches", Absent(), Str("undefined"), false},
		{"text vs number", Str("abc"), Num(0), false},
		{"blank string equals zero like JS", Str(""), Num(0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooselyEqual(tt.a, tt.b))
		})
	}
}

func TestSentinelEquivalenceByString(t *testing.T) {
	values := []Value{Num(-99), Str("-99"), Num(3.5), Str("3.5"), Str("x"), Num(1e21)}
	for _, v := range values {
		for _, s := range values {
			if v.String() == s.String() {
				assert.True(t, LooselyEqual(v, s), "%v vs %v", v, s)
			}
		}
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "2.5", FormatNumber(2.5))
	assert.Equal(t, "-99", FormatNumber(-99))
	assert.Equal(t, "0", FormatNumber(math.Copysign(0, -1)))
	assert.Equal(t, "1e+21", FormatNumber(1e21))
	assert.Equal(t, "1e-7", FormatNumber(1e-7))
	assert.Equal(t, "0.000001", FormatNumber(1e-6))
	assert.Equal(t, "NaN", FormatNumber(math.NaN()))
	assert.Equal(t, "-Infinity", FormatNumber(math.Inf(-1)))
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, 42.0, ParseNumber(" 42 "))
	assert.Equal(t, 0.0, ParseNumber(""))
	assert.Equal(t, 255.0, ParseNumber("0xff"))
	assert.Equal(t, 0.5, ParseNumber(".5"))
	assert.True(t, math.IsInf(ParseNumber("Infinity"), 1))
	assert.True(t, math.IsNaN(ParseNumber("inf")))
	assert.True(t, math.IsNaN(ParseNumber("1_000")))
	assert.True(t, math.IsNaN(ParseNumber("abc")))
	assert.True(t, math.IsNaN(ParseNumber("-0x10")))
}

func TestFiniteNumber(t *testing.T) {
	_, ok := FiniteNumber(Str("  "))
	assert.False(t, ok)
	f, ok := FiniteNumber(Str("1e3"))
	assert.True(t, ok)
	assert.Equal(t, 1000.0, f)
	_, ok = FiniteNumber(Num(math.Inf(1)))
	assert.False(t, ok)
	_, ok = FiniteNumber(Absent())
	assert.False(t, ok)
}

func TestValueJSON(t *testing.T) {
	row := Row{"a": Num(1.5), "b": Str("x"), "c": Absent()}
	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":"x","c":null}`, string(data))

	var decoded Row
	require.NoError(t, json.Unmarshal([]byte(`{"a":1.5,"b":"x","c":null,"d":true}`), &decoded))
	assert.Equal(t, Num(1.5), decoded["a"])
	assert.Equal(t, Str("x"), decoded["b"])
	assert.True(t, decoded["c"].IsAbsent())
	assert.Equal(t, Str("true"), decoded["d"])
}
