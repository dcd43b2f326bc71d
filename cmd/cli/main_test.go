package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"statbench/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scores.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,label\n1,a\n2,b\n3,c\n"), 0o644))
	return path
}

func TestCheckExpr(t *testing.T) {
	out, err := execute(t, "check-expr", ":::a::: + mean(:::a:::)")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	_, err = execute(t, "check-expr", "fetch(1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNSAFE_EXPRESSION")

	_, err = execute(t, "check-expr", "1 +")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVALUATION_ERROR")
}

func TestDescribe(t *testing.T) {
	path := writeCSV(t)

	out, err := execute(t, "describe", path)
	require.NoError(t, err)
	assert.Contains(t, out, "| x | interval_or_ratio | 3 | 0 | 3 | 3 |")
	assert.Contains(t, out, "| label | nominal_or_ordinal |")

	rules := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(rules, []byte(`{"columns":[],"filter_expression":":::x::: >= 2"}`), 0o644))
	out, err = execute(t, "describe", path, "--rules", rules, "--format", "json")
	require.NoError(t, err)

	var body struct {
		Columns []struct {
			Name string `json:"name"`
		} `json:"columns"`
		TotalRows int `json:"total_rows"`
		KeptRows  int `json:"kept_rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Len(t, body.Columns, 2)
	assert.Equal(t, 3, body.TotalRows)
	assert.Equal(t, 2, body.KeptRows)

	_, err = execute(t, "describe", path, "--format", "yaml")
	assert.Error(t, err)
}

func TestDescribeRejectsInvalidConfig(t *testing.T) {
	path := writeCSV(t)
	t.Setenv("LAGRANGE_MAX_POINTS", "1")

	_, err := execute(t, "describe", path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid), "got %v", err)
}

func TestRenderExpr(t *testing.T) {
	path := writeCSV(t)

	out, err := execute(t, "render-expr", ":::x::: * 2 + ' ' + :::label:::", "--file", path, "--row", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "expression:  2 * 2 + ' ' + \"b\"")
	assert.Contains(t, out, "value:       4 b")

	_, err = execute(t, "render-expr", "1", "--file", path, "--row", "9")
	assert.Error(t, err)

	_, err = execute(t, "render-expr", "1", "--file", path, "--absent", "maybe")
	assert.Error(t, err)
}
