package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"statbench/domain/table"
	"statbench/internal"
	"statbench/internal/errors"
	"statbench/ports"

	"github.com/xuri/excelize/v2"
)

// DataReader reads Excel and CSV files into a table.Dataset
type DataReader struct {
	config ReaderConfig
	logger *internal.Logger
}

// NewDataReader creates a reader that handles both Excel and CSV files
func NewDataReader(config ReaderConfig, logger *internal.Logger) *DataReader {
	return &DataReader{config: config, logger: logger}
}

var _ ports.RowSource = (*DataReader)(nil)

// Supports reports whether the file extension is one the reader understands
func (r *DataReader) Supports(path string) bool {
	switch fileType(path) {
	case "csv", "xlsx":
		return true
	}
	return false
}

// ReadDataset reads the header row and every data row of path
func (r *DataReader) ReadDataset(ctx context.Context, path string) (table.Dataset, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return table.Dataset{}, errors.NotFound("file " + path)
	}

	var (
		rows [][]string
		err  error
	)
	start := time.Now()
	switch fileType(path) {
	case "csv":
		rows, err = r.readCSV(path)
	case "xlsx":
		rows, err = r.readExcel(path)
	default:
		return table.Dataset{}, errors.InvalidInput(fmt.Sprintf("unsupported file type: %s", filepath.Ext(path)))
	}
	if err != nil {
		return table.Dataset{}, err
	}
	if err := ctx.Err(); err != nil {
		return table.Dataset{}, err
	}
	r.logger.Debug("[DataReader] %s read in %s (%d rows)", path, time.Since(start), len(rows))

	return r.processRows(rows)
}

func fileType(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func (r *DataReader) readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open Excel file")
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheet)
	}
	return rows, nil
}

func (r *DataReader) readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open CSV file")
	}
	defer file.Close()
	return ReadCSV(file)
}

// ReadCSV reads every record of a CSV stream; rows may have differing lengths
func ReadCSV(in io.Reader) ([][]string, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("failed to read CSV: %w", err))
	}
	return rows, nil
}

// processRows converts raw string rows into a dataset. Empty cells are left out of
// the row so they read as absent.
func (r *DataReader) processRows(rows [][]string) (table.Dataset, error) {
	if len(rows) < 2 {
		return table.Dataset{}, errors.EmptyDataset()
	}

	headers := make([]string, len(rows[0]))
	seen := make(map[string]bool, len(headers))
	for i, h := range rows[0] {
		if r.config.TrimSpace {
			h = strings.TrimSpace(h)
		}
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if seen[h] {
			return table.Dataset{}, errors.DuplicateColumnName(h)
		}
		seen[h] = true
		headers[i] = h
	}

	data := make([]table.Row, 0, len(rows)-1)
	for _, raw := range rows[1:] {
		row := make(table.Row, len(headers))
		for j, cell := range raw {
			if j >= len(headers) {
				break
			}
			if v, ok := r.convertCell(cell); ok {
				row[headers[j]] = v
			}
		}
		data = append(data, row)
	}

	r.logger.Debug("[DataReader] processed %d columns, %d rows", len(headers), len(data))
	return table.Dataset{Headers: headers, Rows: data}, nil
}

func (r *DataReader) convertCell(cell string) (table.Value, bool) {
	if r.config.TrimSpace {
		cell = strings.TrimSpace(cell)
	}
	if cell == "" {
		return table.Absent(), false
	}
	if r.config.InferNumbers {
		if f, ok := table.FiniteNumber(table.Str(cell)); ok {
			return table.Num(f), true
		}
	}
	return table.Str(cell), true
}
