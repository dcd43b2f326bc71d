package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"statbench/domain/core"
	"statbench/domain/table"
	"statbench/internal/errors"
	"statbench/internal/expr"
	"statbench/internal/report"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 64 << 20

type importRequest struct {
	Name      string      `json:"name"`
	Headers   []string    `json:"headers"`
	Rows      []table.Row `json:"rows"`
	RestoreID string      `json:"restore_id,omitempty"`
}

type filterRequest struct {
	Expression string `json:"expression"`
}

type columnRequest struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

type validateRequest struct {
	Expression string `json:"expression"`
	Policy     string `json:"policy"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, loaded := s.workbench.Current()
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "dataset_loaded": loaded})
}

// handleImport accepts either a JSON row set or a multipart CSV/XLSX upload in the "file" field
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if isMultipart(r) {
		ds, name, err := s.readUpload(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		req = importRequest{Name: name, Headers: ds.Headers, Rows: ds.Rows, RestoreID: r.FormValue("restore_id")}
	} else if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	ds := table.Dataset{Headers: req.Headers, Rows: req.Rows}
	if req.RestoreID != "" {
		id, err := core.ParseDatasetID(req.RestoreID)
		if err != nil {
			s.writeError(w, errors.InvalidInput(err.Error()))
			return
		}
		snap, err := s.workbench.Restore(r.Context(), id, ds)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	snap, err := s.workbench.Import(r.Context(), req.Name, ds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) readUpload(r *http.Request) (table.Dataset, string, error) {
	if s.source == nil {
		return table.Dataset{}, "", errors.InvalidInput("file upload is not configured")
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return table.Dataset{}, "", errors.InvalidInput("invalid multipart form: " + err.Error())
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return table.Dataset{}, "", errors.InvalidInput("missing file field")
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if !s.source.Supports(header.Filename) {
		return table.Dataset{}, "", errors.InvalidInput("unsupported file type: " + ext)
	}

	tmp, err := os.CreateTemp("", "statbench-upload-*"+ext)
	if err != nil {
		return table.Dataset{}, "", errors.Wrap(err, "failed to buffer upload")
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return table.Dataset{}, "", errors.Wrap(err, "failed to buffer upload")
	}
	if err := tmp.Close(); err != nil {
		return table.Dataset{}, "", errors.Wrap(err, "failed to buffer upload")
	}

	ds, err := s.source.ReadDataset(r.Context(), tmp.Name())
	if err != nil {
		return table.Dataset{}, "", err
	}
	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	return ds, name, nil
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.workbench.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleTable returns the current snapshot. limit and offset page the rows.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.workbench.Current()
	if !ok {
		s.writeError(w, errors.NotFound("dataset"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 && offset <= 0 {
		writeJSON(w, http.StatusOK, snap)
		return
	}

	page := *snap
	res := *snap.Result
	res.Rows = pageRows(res.Rows, limit, offset)
	page.Result = &res
	writeJSON(w, http.StatusOK, &page)
}

func pageRows(rows []table.Row, limit, offset int) []table.Row {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return []table.Row{}
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return rows[offset:end]
}

func (s *Server) handleApplyRules(w http.ResponseWriter, r *http.Request) {
	var rules table.RuleSet
	if err := decodeJSON(r, &rules); err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.workbench.ApplyRules(r.Context(), rules)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.workbench.SetFilterExpression(r.Context(), req.Expression)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	var req columnRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.workbench.AddComputedColumn(r.Context(), req.Name, req.Expression)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleRemoveColumn(w http.ResponseWriter, r *http.Request) {
	snap, err := s.workbench.RemoveComputedColumn(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleValidateExpression(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	policy, err := parsePolicy(req.Policy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.workbench.CheckExpression(req.Expression, policy))
}

func parsePolicy(name string) (expr.AbsentPolicy, error) {
	switch name {
	case "", "undefined":
		return expr.AbsentUndefined, nil
	case "null":
		return expr.AbsentNull, nil
	case "short_circuit":
		return expr.AbsentShortCircuit, nil
	}
	return 0, errors.InvalidInput("unknown absent policy " + strconv.Quote(name))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	records, err := s.workbench.History(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleDeleteRuleSet(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseDatasetID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	if err := s.workbench.DeleteRuleSet(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.workbench.Current()
	if !ok {
		s.writeError(w, errors.NotFound("dataset"))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, report.Markdown(reportTitle(snap.Name, snap.DatasetID), snap.Result, snap.Rules))
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.workbench.Current()
	if !ok {
		s.writeError(w, errors.NotFound("dataset"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(report.HTML(reportTitle(snap.Name, snap.DatasetID), snap.Result, snap.Rules))
}

func reportTitle(name string, id core.DatasetID) string {
	if name != "" {
		return name
	}
	return "Dataset " + id.String()
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.InvalidInput("invalid request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	} else {
		s.logger.Debug("request rejected: %v", err)
	}
	writeJSON(w, status, errorResponse{Code: errors.GetCode(err), Message: err.Error()})
}

// statusFor maps error codes to HTTP statuses
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput, errors.CodeUnknownVariable, errors.CodeMissingStatistic,
		errors.CodeUnsafeExpression, errors.CodeEvaluationError:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeDuplicateColumnName:
		return http.StatusConflict
	case errors.CodeInsufficientReferenceData, errors.CodeEmptyDataset:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
