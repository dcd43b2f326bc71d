package report

import (
	"context"
	"strings"
	"testing"

	"statbench/domain/table"
	"statbench/internal"
	"statbench/internal/config"
	"statbench/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(t *testing.T, rules table.RuleSet) *pipeline.Result {
	t.Helper()
	ds := table.Dataset{
		Headers: []string{"x", "tag"},
		Rows: []table.Row{
			{"x": table.Num(1), "tag": table.Str("a|b")},
			{"x": table.Num(2), "tag": table.Str("c")},
			{"x": table.Num(3)},
		},
	}
	res, err := pipeline.NewOrchestrator(config.DefaultPipelineConfig(), internal.NewDiscardLogger()).
		Run(context.Background(), ds, rules)
	require.NoError(t, err)
	return res
}

func TestMarkdown(t *testing.T) {
	rules := table.RuleSet{
		Columns:          []table.ColumnRule{{Name: "x", Derive: table.DeriveRequest{Center: true}}},
		FilterExpression: ":::x::: > 1",
	}
	md := Markdown("Scores", sampleResult(t, rules), rules)

	assert.True(t, strings.HasPrefix(md, "# Scores\n"))
	assert.Contains(t, md, "Rows: 2 of 3 kept after filtering. Columns: 3.")
	assert.Contains(t, md, "| x | interval_or_ratio | 3 | 0 | 3 | 3 | 1 | 1.5 | 2 | 2.5 | 3 | 2 |")
	assert.Contains(t, md, "x_centered _(from x)_")
	assert.Contains(t, md, "- row filter `:::x::: > 1`")
}

func TestHTML(t *testing.T) {
	page := string(HTML("Scores", sampleResult(t, table.RuleSet{}), table.RuleSet{}))

	assert.Contains(t, page, "<title>Scores</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<h2")
	assert.NotContains(t, page, "## Rules")
}
