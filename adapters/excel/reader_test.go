package excel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"statbench/domain/table"
	"statbench/internal"
	"statbench/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newReader() *DataReader {
	return NewDataReader(DefaultReaderConfig(), internal.NewDiscardLogger())
}

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.csv")
	content := "id, age ,group\n1,21,a\n2,,b\n3,NaN, c \n4,-99\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := newReader().ReadDataset(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "age", "group"}, ds.Headers)
	require.Len(t, ds.Rows, 4)
	assert.Equal(t, table.Num(21), ds.Rows[0]["age"])
	_, present := ds.Rows[1]["age"]
	assert.False(t, present, "empty cells are absent")
	assert.Equal(t, table.Str("NaN"), ds.Rows[2]["age"])
	assert.Equal(t, table.Str("c"), ds.Rows[2]["group"])
	assert.Equal(t, table.Num(-99), ds.Rows[3]["age"])
	_, present = ds.Rows[3]["group"]
	assert.False(t, present, "short rows leave trailing columns absent")
}

func TestNumericCellsFollowValueCoercion(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("v\n0x1p3\n1e3\nInfinity\n0x10\n"))
	require.NoError(t, err)

	ds, err := newReader().processRows(rows)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 4)
	assert.Equal(t, table.Str("0x1p3"), ds.Rows[0]["v"])
	assert.Equal(t, table.Num(1000), ds.Rows[1]["v"])
	assert.Equal(t, table.Str("Infinity"), ds.Rows[2]["v"])
	assert.Equal(t, table.Num(16), ds.Rows[3]["v"])
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"x", "label"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{1.5, "one"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{3, "three"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ds, err := newReader().ReadDataset(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "label"}, ds.Headers)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, table.Num(1.5), ds.Rows[0]["x"])
	assert.Equal(t, table.Str("three"), ds.Rows[1]["label"])
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()
	r := newReader()

	_, err := r.ReadDataset(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	headerOnly := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(headerOnly, []byte("a,b\n"), 0o644))
	_, err = r.ReadDataset(context.Background(), headerOnly)
	assert.True(t, errors.HasCode(err, errors.CodeEmptyDataset))

	dup := filepath.Join(dir, "dup.csv")
	require.NoError(t, os.WriteFile(dup, []byte("a,a\n1,2\n"), 0o644))
	_, err = r.ReadDataset(context.Background(), dup)
	assert.True(t, errors.HasCode(err, errors.CodeDuplicateColumnName))

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err = r.ReadDataset(context.Background(), txt)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
	assert.False(t, r.Supports(txt))
	assert.True(t, r.Supports("DATA.XLSX"))
}
