package eventlog

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"github.com/xuri/excelize/v2"
)

func writeSpreadsheet(t *testing.T, path, sheet string, rows [][]any) {
	t.Helper()
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()
	if sheet != "Sheet1" {
		_, err := file.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := row
		require.NoError(t, file.SetSheetRow(sheet, cell, &values))
	}
	require.NoError(t, file.SaveAs(path))
}

func TestImportFileMergesAndOrders(t *testing.T) {
	store, _ := newCSVStore(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "Dados", NewEvent(time.Date(2025, 3, 14, 12, 0, 0, 0, saoPaulo), LabelRegular)))

	path := filepath.Join(t.TempDir(), "export.xlsx")
	writeSpreadsheet(t, path, "Dados", [][]any{
		{"DataHora", "Status"},
		{"2025-03-14 20:00:00", "Regular"},
		{"2025-03-14T08:00:00", "Emergência"},
		{"2025-03-14 12:00:00", "Regular"},
		{"garbage", "Regular"},
	})

	report, err := ImportFile(ctx, store, "Dados", path)
	require.NoError(t, err)
	assert.Equal(t, ImportReport{Imported: 2, Duplicates: 1, Skipped: 1}, report)

	rows, err := store.Rows(ctx, "Dados")
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{DataHora: "2025-03-14 08:00:00", Status: "Emergency"},
		{DataHora: "2025-03-14 12:00:00", Status: "Regular"},
		{DataHora: "2025-03-14 20:00:00", Status: "Regular"},
	}, rows)
}

func TestImportFilePicksMatchingWorksheet(t *testing.T) {
	store, _ := newCSVStore(t)
	path := filepath.Join(t.TempDir(), "export.xlsx")
	writeSpreadsheet(t, path, "baseado", [][]any{
		{"Status", "DataHora"},
		{"Uso", "2025-02-01 22:15:00"},
	})

	report, err := ImportFile(context.Background(), store, "baseado", path)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)

	result := store.Load(context.Background(), "baseado")
	require.Len(t, result.Events, 1)
	assert.Equal(t, LabelUse, result.Events[0].Label)
}

func TestImportFileRejectsUnknownFormat(t *testing.T) {
	store, _ := newCSVStore(t)
	path := filepath.Join(t.TempDir(), "export.ods")
	require.NoError(t, os.WriteFile(path, []byte("not a workbook"), 0o644))

	_, err := ImportFile(context.Background(), store, "Dados", path)
	assert.Error(t, err)
}

func TestImportFileReadsDateCells(t *testing.T) {
	store, _ := newCSVStore(t)
	path := filepath.Join(t.TempDir(), "export.xlsx")

	file := excelize.NewFile()
	require.NoError(t, file.SetSheetRow("Sheet1", "A1", &[]any{"DataHora", "Status"}))
	require.NoError(t, file.SetCellValue("Sheet1", "A2", time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, file.SetCellValue("Sheet1", "B2", "Regular"))
	require.NoError(t, file.SaveAs(path))
	require.NoError(t, file.Close())

	report, err := ImportFile(context.Background(), store, "Dados", path)
	require.NoError(t, err)
	assert.Equal(t, ImportReport{Imported: 1}, report)

	rows, err := store.Rows(context.Background(), "Dados")
	require.NoError(t, err)
	assert.Equal(t, []Row{{DataHora: "2025-03-14 10:00:00", Status: "Regular"}}, rows)
}

func TestExportArchiveRoundTrip(t *testing.T) {
	store, _ := newCSVStore(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "Dados", NewEvent(time.Date(2025, 3, 14, 10, 0, 0, 0, saoPaulo), LabelRegular)))
	require.NoError(t, store.Append(ctx, "baseado", NewEvent(time.Date(2025, 3, 14, 11, 0, 0, 0, saoPaulo), LabelUse)))

	var buf bytes.Buffer
	n, err := ExportArchive(ctx, store, []string{"Dados", "baseado", "empty"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	archive, err := ReadArchive(&buf)
	require.NoError(t, err)
	assert.Equal(t, map[string][]Row{
		"Dados":   {{DataHora: "2025-03-14 10:00:00", Status: "Regular"}},
		"baseado": {{DataHora: "2025-03-14 11:00:00", Status: "Use"}},
	}, archive)
}

func TestExportArchiveHeader(t *testing.T) {
	store, _ := newCSVStore(t)

	var buf bytes.Buffer
	_, err := ExportArchive(context.Background(), store, []string{"Dados"}, &buf)
	require.NoError(t, err)

	r, err := xz.NewReader(&buf)
	require.NoError(t, err)
	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "Category,DataHora,Status\n", string(raw))
}
