package report

import (
	"fmt"
	"strings"

	"statbench/domain/table"
	"statbench/internal/pipeline"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown renders the column summary of a materialized table together with the rules that produced it
func Markdown(title string, res *pipeline.Result, rules table.RuleSet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", escape(title))
	fmt.Fprintf(&b, "Rows: %d of %d kept after filtering. Columns: %d.", len(res.Rows), res.TotalRows, len(res.Columns))
	if !res.Fingerprint.IsEmpty() {
		fmt.Fprintf(&b, " Fingerprint: `%s`.", res.Fingerprint.Short())
	}
	b.WriteString("\n\n## Columns\n\n")
	b.WriteString("| Column | Scale | Count | Missing | Valid | Unique | Min | Q1 | Median | Q3 | Max | Mean | Std | Mode |\n")
	b.WriteString("|---|---|--:|--:|--:|--:|--:|--:|--:|--:|--:|--:|--:|--:|\n")
	for _, c := range res.Columns {
		name := escape(c.Name)
		if c.IsDerived {
			name += " _(from " + escape(c.DerivedFrom) + ")_"
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d |", name, c.ScaleType, c.Count, c.MissingCount, c.ValidCount, c.UniqueCount)
		if s := c.Summary; s != nil {
			for _, v := range []float64{s.Min, s.Q1, s.Q2, s.Q3, s.Max, s.Mean, s.Std, s.Mode} {
				fmt.Fprintf(&b, " %s |", table.FormatNumber(v))
			}
		} else {
			b.WriteString(strings.Repeat("  |", 8))
		}
		b.WriteString("\n")
	}

	writeRules(&b, rules)
	return b.String()
}

func writeRules(b *strings.Builder, rules table.RuleSet) {
	var lines []string
	for _, r := range rules.Columns {
		if len(r.MissingSentinels) > 0 {
			vals := make([]string, len(r.MissingSentinels))
			for i, v := range r.MissingSentinels {
				vals[i] = "`" + v.String() + "`"
			}
			lines = append(lines, fmt.Sprintf("%s: missing values %s", escape(r.Name), strings.Join(vals, ", ")))
		}
		if ip := r.Interpolation; ip != nil {
			line := fmt.Sprintf("%s: %s interpolation", escape(r.Name), ip.Method)
			if ip.ReferenceColumn != "" {
				line += " against " + escape(ip.ReferenceColumn)
			}
			lines = append(lines, line)
		}
		if f := r.Filter; f != nil {
			lines = append(lines, fmt.Sprintf("%s: filter `%s`", escape(r.Name), f.Operator))
		}
	}
	for _, cc := range rules.ComputedColumns {
		lines = append(lines, fmt.Sprintf("%s = `%s`", escape(cc.Name), cc.Expression))
	}
	if rules.FilterExpression != "" {
		lines = append(lines, fmt.Sprintf("row filter `%s`", rules.FilterExpression))
	}
	if len(lines) == 0 {
		return
	}

	b.WriteString("\n## Rules\n\n")
	for _, l := range lines {
		b.WriteString("- " + l + "\n")
	}
}

// HTML renders the markdown report as a complete HTML page
func HTML(title string, res *pipeline.Result, rules table.RuleSet) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(Markdown(title, res, rules)), p, renderer)
}

func escape(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}
