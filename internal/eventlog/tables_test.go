package eventlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/habitlog/internal/cooldown"
)

var sampleRows = []Row{
	{DataHora: "2025-03-14 10:00:00", Status: "Regular"},
	{DataHora: "2025-03-14 19:30:00", Status: "Emergency"},
}

// exerciseTable checks the contract every backend shares.
func exerciseTable(t *testing.T, table Table) {
	t.Helper()
	ctx := context.Background()

	_, err := table.ReadRows(ctx, "Dados")
	require.ErrorIs(t, err, ErrSheetNotFound)

	require.NoError(t, table.WriteRows(ctx, "Dados", sampleRows))
	rows, err := table.ReadRows(ctx, "Dados")
	require.NoError(t, err)
	assert.Equal(t, sampleRows, rows)

	require.NoError(t, table.WriteRows(ctx, "baseado", []Row{{DataHora: "2025-03-15 08:00:00", Status: "Use"}}))
	rows, err = table.ReadRows(ctx, "Dados")
	require.NoError(t, err)
	assert.Equal(t, sampleRows, rows, "writing one sheet must not touch another")

	require.NoError(t, table.WriteRows(ctx, "Dados", sampleRows[:1]))
	rows, err = table.ReadRows(ctx, "Dados")
	require.NoError(t, err)
	assert.Equal(t, sampleRows[:1], rows, "writes overwrite the whole sheet")
}

func TestCSVTable(t *testing.T) {
	table, err := NewCSVTable(t.TempDir())
	require.NoError(t, err)
	exerciseTable(t, table)
}

func TestCSVTableWithoutHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dados.csv"), []byte("2025-03-14 10:00:00,Regular\n"), 0o644))
	table, err := NewCSVTable(dir)
	require.NoError(t, err)

	rows, err := table.ReadRows(context.Background(), "Dados")
	require.NoError(t, err)
	assert.Equal(t, []Row{{DataHora: "2025-03-14 10:00:00", Status: "Regular"}}, rows)
}

func TestCSVTableCleansUpFailedWrite(t *testing.T) {
	dir := t.TempDir()
	// A directory in the way makes the final rename fail.
	blocker := filepath.Join(dir, "Dados.csv")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0o755))
	table, err := NewCSVTable(dir)
	require.NoError(t, err)

	err = table.WriteRows(context.Background(), "Dados", sampleRows)
	require.Error(t, err)
	assert.NoFileExists(t, blocker+".tmp")
}

func TestWriteCSVRowsReportsWriterErrors(t *testing.T) {
	err := writeCSVRows(failingWriter{}, sampleRows)
	assert.ErrorIs(t, err, os.ErrClosed)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, os.ErrClosed }

func TestCSVTableRequiresDirectory(t *testing.T) {
	_, err := NewCSVTable("  ")
	assert.Error(t, err)
}

func TestWorkbookTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "habitlog.xlsx")
	table, err := NewWorkbookTable(path)
	require.NoError(t, err)
	exerciseTable(t, table)

	file, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()
	assert.ElementsMatch(t, []string{"Dados", "baseado"}, file.GetSheetList())

	header, err := file.GetCellValue("Dados", "A1")
	require.NoError(t, err)
	assert.Equal(t, ColumnTimestamp, header)
}

func TestWorkbookTableReadsDateCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "habitlog.xlsx")
	file := excelize.NewFile()
	require.NoError(t, file.SetSheetName("Sheet1", "Dados"))
	require.NoError(t, file.SetSheetRow("Dados", "A1", &[]any{ColumnTimestamp, ColumnStatus}))
	require.NoError(t, file.SetCellValue("Dados", "A2", time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, file.SetCellValue("Dados", "B2", "Regular"))
	require.NoError(t, file.SaveAs(path))
	require.NoError(t, file.Close())

	table, err := NewWorkbookTable(path)
	require.NoError(t, err)
	store := NewStore(table, saoPaulo, quietLogger())
	ctx := context.Background()

	result := store.Load(ctx, "Dados")
	require.Equal(t, LoadOK, result.Status)
	assert.Zero(t, result.Skipped)
	require.Len(t, result.Events, 1)
	last := result.Events[0].Time
	assert.True(t, last.Equal(time.Date(2025, 3, 14, 10, 0, 0, 0, saoPaulo)), last.String())

	status := cooldown.Evaluate(time.Date(2025, 3, 14, 14, 0, 0, 0, saoPaulo), last, 8*time.Hour)
	assert.False(t, status.Eligible, "a date-typed last event still starts the cooldown")

	require.NoError(t, store.Append(ctx, "Dados", NewEvent(time.Date(2025, 3, 14, 19, 0, 0, 0, saoPaulo), LabelEmergency)))
	rows, err := store.Rows(ctx, "Dados")
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{DataHora: "2025-03-14 10:00:00", Status: "Regular"},
		{DataHora: "2025-03-14 19:00:00", Status: "Emergency"},
	}, rows)
}

func TestWorkbookTableRejectsOtherExtensions(t *testing.T) {
	_, err := NewWorkbookTable(filepath.Join(t.TempDir(), "habitlog.csv"))
	assert.Error(t, err)
}

func TestSQLiteTable(t *testing.T) {
	table, err := NewSQLiteTable(context.Background(), filepath.Join(t.TempDir(), "habitlog.db"))
	require.NoError(t, err)
	defer func() { _ = table.Close() }()
	exerciseTable(t, table)
}

func TestSQLiteTableAppendsWithoutRewrite(t *testing.T) {
	table, err := NewSQLiteTable(context.Background(), filepath.Join(t.TempDir(), "habitlog.db"))
	require.NoError(t, err)
	defer func() { _ = table.Close() }()

	var _ RowAppender = table
	store := NewStore(table, saoPaulo, quietLogger())
	ctx := context.Background()
	for _, row := range sampleRows {
		ev, err := row.Event(saoPaulo)
		require.NoError(t, err)
		require.NoError(t, store.Append(ctx, "Dados", ev))
	}

	rows, err := store.Rows(ctx, "Dados")
	require.NoError(t, err)
	assert.Equal(t, sampleRows, rows)
}

func TestRedisTable(t *testing.T) {
	url := os.Getenv("HABITLOG_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping Redis tests: HABITLOG_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	table, err := NewRedisTable(ctx, url, "habitlog-test:")
	require.NoError(t, err)
	defer func() { _ = table.Close() }()
	_ = table.client.Del(ctx, table.key("Dados"), table.key("baseado")).Err()
	defer func() { _ = table.client.Del(ctx, table.key("Dados"), table.key("baseado")).Err() }()

	exerciseTable(t, table)

	require.NoError(t, table.AppendRow(ctx, "Dados", sampleRows[1]))
	rows, err := table.ReadRows(ctx, "Dados")
	require.NoError(t, err)
	assert.Equal(t, sampleRows, rows)
}

func TestOpenTable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	table, err := OpenTable(ctx, BackendConfig{Backend: "", DataDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &CSVTable{}, table)

	table, err = OpenTable(ctx, BackendConfig{Backend: "Workbook", WorkbookPath: filepath.Join(dir, "log.xlsx")})
	require.NoError(t, err)
	assert.IsType(t, &WorkbookTable{}, table)

	table, err = OpenTable(ctx, BackendConfig{Backend: BackendSQLite, SQLitePath: filepath.Join(dir, "log.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteTable{}, table)
	require.NoError(t, table.Close())

	_, err = OpenTable(ctx, BackendConfig{Backend: BackendRedis})
	assert.Error(t, err)

	_, err = OpenTable(ctx, BackendConfig{Backend: "gsheets"})
	assert.Error(t, err)
}
