package expr

import (
	"strings"

	"statbench/domain/table"
	"statbench/internal/errors"
)

// deniedTokens are substrings rejected at definition time. The parser has no call,
// member or assignment syntax, so this list only guards text that is stored and
// later shown or exported.
var deniedTokens = []string{
	"fetch",
	"XMLHttpRequest",
	"WebSocket",
	"EventSource",
	"import",
	"require",
	"eval",
	"Function",
	"constructor",
	"setTimeout",
	"setInterval",
	"setImmediate",
	"requestAnimationFrame",
	"localStorage",
	"sessionStorage",
	"indexedDB",
	"document.cookie",
	"navigator",
	"window",
	"globalThis",
	"postMessage",
	"Worker",
}

// StripPlaceholders removes every :::name::: so column names cannot trip the deny-list
func StripPlaceholders(source string) string {
	return placeholderRe.ReplaceAllString(source, "")
}

// CheckSafety rejects expressions containing a denied token outside placeholders
func CheckSafety(source string) error {
	stripped := StripPlaceholders(source)
	for _, tok := range deniedTokens {
		if strings.Contains(stripped, tok) {
			return errors.UnsafeExpression(tok)
		}
	}
	return nil
}

// Validate is the definition-time check: deny-list first, then a full parse.
// When columns is non-nil the expression is also bound against them.
func Validate(source string, columns []table.Column) error {
	if err := CheckSafety(source); err != nil {
		return err
	}
	if columns == nil {
		_, err := Parse(source)
		return err
	}
	_, err := Compile(source, columns)
	return err
}
