package dataset

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func drain(t *testing.T, tbl *Table) [][]string {
	t.Helper()
	var rows [][]string
	for r := range tbl.Rows {
		rows = append(rows, r)
	}
	require.NoError(t, tbl.Err())
	return rows
}

func TestOpenTable_CSV(t *testing.T) {
	tbl, err := OpenTable(context.Background(), writeFile(t, "a.csv", "country, year\n GBR ,2000\n"))
	require.NoError(t, err)
	defer tbl.Close() //nolint:errcheck

	assert.Equal(t, []string{"country", "year"}, tbl.Header)
	assert.Equal(t, [][]string{{"GBR", "2000"}}, drain(t, tbl))
}

func TestOpenTable_TSV(t *testing.T) {
	tbl, err := OpenTable(context.Background(), writeFile(t, "a.tsv", "country\tyear\nGBR\t2000\n"))
	require.NoError(t, err)
	defer tbl.Close() //nolint:errcheck

	assert.Equal(t, []string{"country", "year"}, tbl.Header)
	assert.Len(t, drain(t, tbl), 1)
}

func TestOpenTable_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("country,year,co2\nGBR,2000,1\nGBR,2001,2\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	p := filepath.Join(t.TempDir(), "owid.csv.gz")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))

	tbl, err := OpenTable(context.Background(), p)
	require.NoError(t, err)
	defer tbl.Close() //nolint:errcheck
	assert.Len(t, drain(t, tbl), 2)
}

func TestOpenTable_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("data")
	require.NoError(t, err)
	for _, r := range [][]string{{"Country", "Date", "AverageTemperature"}, {"GBR", "2000-01-01", "4"}} {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	p := filepath.Join(t.TempDir(), "temps.xlsx")
	require.NoError(t, f.Save(p))

	tbl, err := OpenTable(context.Background(), p)
	require.NoError(t, err)
	defer tbl.Close() //nolint:errcheck
	assert.Equal(t, []string{"Country", "Date", "AverageTemperature"}, tbl.Header)
	assert.Equal(t, [][]string{{"GBR", "2000-01-01", "4"}}, drain(t, tbl))
}

func TestOpenTable_XLSXDateCells(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("temps")
	require.NoError(t, err)
	header := sheet.AddRow()
	for _, v := range []string{"Country", "dt", "AverageTemperature"} {
		header.AddCell().SetString(v)
	}
	dates := []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2000, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2001, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, d := range dates {
		row := sheet.AddRow()
		row.AddCell().SetString("France")
		row.AddCell().SetDate(d)
		row.AddCell().SetFloat(float64(10 + i))
	}
	p := filepath.Join(t.TempDir(), "temps.xlsx")
	require.NoError(t, f.Save(p))

	tbl, err := OpenTable(context.Background(), p)
	require.NoError(t, err)
	rows := drain(t, tbl)
	require.NoError(t, tbl.Close())
	require.Len(t, rows, 4)
	assert.Equal(t, "2000-01-01", rows[0][1])
	assert.Equal(t, "2001-07-01", rows[3][1])

	res, err := Process(context.Background(), p, HeatProfile())
	require.NoError(t, err)
	assert.Equal(t, 4, res.RowsRead)
	assert.Equal(t, 0, res.RowsSkipped)
	require.Len(t, res.Heat, 1)
	assert.True(t, res.Heat[0].Avg.Valid)
}

func TestOpenTable_Empty(t *testing.T) {
	_, err := OpenTable(context.Background(), writeFile(t, "empty.csv", ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestOpenTable_Missing(t *testing.T) {
	_, err := OpenTable(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissingColumn))
}

func TestOpenTable_CloseBeforeDrain(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("a,b\n")
	for range 1000 {
		buf.WriteString("1,2\n")
	}
	tbl, err := OpenTable(context.Background(), writeFile(t, "big.csv", buf.String()))
	require.NoError(t, err)
	require.NoError(t, tbl.Close())
}
