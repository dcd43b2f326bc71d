package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"statbench/adapters/excel"
	"statbench/adapters/memory"
	"statbench/app"
	"statbench/internal"
	"statbench/internal/config"
	"statbench/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scoresJSON = `{"name":"scores","headers":["x","label"],"rows":[
	{"x":1,"label":"a"},{"x":2,"label":"b"},{"x":-99,"label":"c"},{"x":4,"label":"d"}]}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultPipelineConfig()
	logger := internal.NewDiscardLogger()
	wb := app.NewWorkbenchService(pipeline.NewOrchestrator(cfg, logger), memory.NewRuleSetRepository(), cfg, logger)
	return NewServer(wb, excel.NewDataReader(excel.DefaultReaderConfig(), logger), nil, logger)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

type snapshotBody struct {
	DatasetID string `json:"dataset_id"`
	Result    struct {
		Columns []struct {
			Name         string `json:"name"`
			MissingCount int    `json:"missing_count"`
		} `json:"columns"`
		Rows      []map[string]interface{} `json:"rows"`
		TotalRows int                      `json:"total_rows"`
	} `json:"result"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestWorkbenchFlow(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/table", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/dataset", scoresJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap snapshotBody
	decode(t, rec, &snap)
	assert.NotEmpty(t, snap.DatasetID)
	assert.Equal(t, 4, snap.Result.TotalRows)

	rec = do(t, s, http.MethodPut, "/api/rules", `{"columns":[{"name":"x","missing_sentinels":[-99],"derive":{"center":true}}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap = snapshotBody{}
	decode(t, rec, &snap)
	require.Len(t, snap.Result.Columns, 3)
	assert.Equal(t, "x_centered", snap.Result.Columns[1].Name)
	assert.Equal(t, 1, snap.Result.Columns[0].MissingCount)

	rec = do(t, s, http.MethodPut, "/api/filter", `{"expression":":::x::: > 1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap = snapshotBody{}
	decode(t, rec, &snap)
	assert.Len(t, snap.Result.Rows, 2)

	rec = do(t, s, http.MethodPost, "/api/columns", `{"name":"half","expression":":::x::: / 2"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/columns", `{"name":"half","expression":"1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/table?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap = snapshotBody{}
	decode(t, rec, &snap)
	require.Len(t, snap.Result.Rows, 1)
	assert.Equal(t, 1.0, snap.Result.Rows[0]["half"])

	rec = do(t, s, http.MethodDelete, "/api/columns/half", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodDelete, "/api/columns/half", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# scores")

	rec = do(t, s, http.MethodGet, "/api/report.html", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<table>")

	rec = do(t, s, http.MethodGet, "/api/rulesets", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/dataset", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodGet, "/api/report", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/dataset", `{"rows":[{"x":1}],"restore_id":"`+snap.DatasetID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodDelete, "/api/rulesets/"+snap.DatasetID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodDelete, "/api/rulesets/"+snap.DatasetID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s, http.MethodDelete, "/api/rulesets/nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/dataset", scoresJSON).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"empty dataset", http.MethodPost, "/api/dataset", `{"rows":[]}`, http.StatusUnprocessableEntity, "EMPTY_DATASET"},
		{"duplicate headers", http.MethodPost, "/api/dataset", `{"headers":["a","a"],"rows":[{"a":1}]}`, http.StatusConflict, "DUPLICATE_COLUMN_NAME"},
		{"malformed body", http.MethodPut, "/api/rules", `{`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown variable", http.MethodPut, "/api/filter", `{"expression":":::nope::: > 1"}`, http.StatusBadRequest, "UNKNOWN_VARIABLE"},
		{"unsafe expression", http.MethodPost, "/api/columns", `{"name":"c","expression":"fetch(1)"}`, http.StatusBadRequest, "UNSAFE_EXPRESSION"},
		{"missing statistic", http.MethodPut, "/api/filter", `{"expression":"mean(:::label:::) > 1"}`, http.StatusBadRequest, "MISSING_STATISTIC"},
		{"no reference data", http.MethodPut, "/api/rules",
			`{"columns":[{"name":"x","interpolation":{"method":"nearest","reference_column":"ghost"}}]}`,
			http.StatusUnprocessableEntity, "INSUFFICIENT_REFERENCE_DATA"},
		{"bad restore id", http.MethodPost, "/api/dataset", `{"rows":[{"x":1}],"restore_id":"nope"}`, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			var body errorResponse
			decode(t, rec, &body)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestValidateExpression(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/dataset", scoresJSON).Code)

	rec := do(t, s, http.MethodPost, "/api/expressions/validate", `{"expression":":::x::: * 10","policy":"null"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var check app.ExpressionCheck
	decode(t, rec, &check)
	assert.True(t, check.Valid)
	assert.Equal(t, "1 * 10", check.Preview)
	assert.Equal(t, "10", check.Value)

	rec = do(t, s, http.MethodPost, "/api/expressions/validate", `{"expression":"setTimeout"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	check = app.ExpressionCheck{}
	decode(t, rec, &check)
	assert.False(t, check.Valid)
	assert.Equal(t, "UNSAFE_EXPRESSION", check.Code)

	rec = do(t, s, http.MethodPost, "/api/expressions/validate", `{"expression":"1","policy":"sometimes"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadCSV(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "survey.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("age,city\n30,Oslo\n,Bergen\n41,\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/dataset", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var snap snapshotBody
	decode(t, rec, &snap)
	require.Len(t, snap.Result.Columns, 2)
	assert.Equal(t, "age", snap.Result.Columns[0].Name)
	assert.Equal(t, 1, snap.Result.Columns[0].MissingCount)

	rec = do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dataset_loaded":true`)
}
