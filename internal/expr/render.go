package expr

import (
	"regexp"
	"strings"

	"statbench/domain/table"
	"statbench/internal/errors"
)

var (
	aggregatePatterns = buildAggregatePatterns()
	placeholderRe     = regexp.MustCompile(`:::(.*?):::`)
)

func buildAggregatePatterns() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(table.StatisticNames))
	for _, stat := range table.StatisticNames {
		out[stat] = regexp.MustCompile(`\b` + regexp.QuoteMeta(stat) + `\s*\(\s*:::(.*?):::\s*\)`)
	}
	return out
}

// Render performs the textual substitution of the :::name::: contract: every
// accessor(:::name:::) becomes the column statistic, then every bare :::name:::
// becomes the row's value as a literal. ok is false when policy is
// AbsentShortCircuit and a referenced value is absent.
func Render(source string, columns []table.Column, row table.Row, policy AbsentPolicy) (out string, ok bool, err error) {
	byName := make(map[string]*table.Column, len(columns))
	for i := range columns {
		byName[columns[i].Name] = &columns[i]
	}

	out = source
	for _, stat := range table.StatisticNames {
		re := aggregatePatterns[stat]
		out = re.ReplaceAllStringFunc(out, func(m string) string {
			if err != nil {
				return m
			}
			name := re.FindStringSubmatch(m)[1]
			col, found := byName[name]
			if !found {
				err = errors.UnknownVariable(name)
				return m
			}
			v, has := col.Statistic(stat)
			if !has {
				err = errors.MissingStatistic(name, stat)
				return m
			}
			return numberLiteral(v)
		})
		if err != nil {
			return "", false, err
		}
	}

	ok = true
	out = placeholderRe.ReplaceAllStringFunc(out, func(m string) string {
		if err != nil || !ok {
			return m
		}
		name := m[len(placeholderDelim) : len(m)-len(placeholderDelim)]
		if _, found := byName[name]; !found {
			err = errors.UnknownVariable(name)
			return m
		}
		cell := row.Get(name)
		if cell.IsAbsent() {
			switch policy {
			case AbsentShortCircuit:
				ok = false
				return m
			case AbsentNull:
				return "null"
			default:
				return "undefined"
			}
		}
		if f, numeric := table.FiniteNumber(cell); numeric {
			return numberLiteral(f)
		}
		if cell.IsNumber() {
			return numberLiteral(cell.Float())
		}
		return quoteString(cell.Text())
	})
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return out, true, nil
}

// numberLiteral parenthesizes negatives so the rendering parses back to the same value
func numberLiteral(f float64) string {
	s := table.FormatNumber(f)
	if strings.HasPrefix(s, "-") {
		return "(" + s + ")"
	}
	return s
}
