package eventlog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CSVTable keeps each sheet in <dir>/<sheet>.csv with a DataHora,Status
// header.
type CSVTable struct {
	dir string
}

func NewCSVTable(dir string) (*CSVTable, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("csv data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &CSVTable{dir: dir}, nil
}

func (t *CSVTable) path(sheet string) string {
	return filepath.Join(t.dir, sheet+".csv")
}

func (t *CSVTable) ReadRows(ctx context.Context, sheet string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(t.path(sheet))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSheetNotFound
		}
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(f.Name()), err)
	}
	return rowsFromRecords(records), nil
}

func (t *CSVTable) WriteRows(ctx context.Context, sheet string, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	destination := t.path(sheet)
	tmpPath := destination + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary csv: %w", err)
	}

	if err := writeCSVRows(file, rows); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temporary csv: %w", err)
	}
	if err := os.Rename(tmpPath, destination); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("install csv: %w", err)
	}
	return nil
}

func writeCSVRows(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{ColumnTimestamp, ColumnStatus}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.DataHora, row.Status}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func (t *CSVTable) Close() error {
	return nil
}

// rowsFromRecords locates the DataHora and Status columns by header and
// falls back to the first two columns when there is no header.
func rowsFromRecords(records [][]string) []Row {
	if len(records) == 0 {
		return []Row{}
	}
	tsIdx, statusIdx := 0, 1
	start := 0
	if idx, sIdx, ok := headerIndexes(records[0]); ok {
		tsIdx, statusIdx = idx, sIdx
		start = 1
	}

	rows := make([]Row, 0, len(records)-start)
	for _, record := range records[start:] {
		row := Row{DataHora: cellValue(record, tsIdx), Status: cellValue(record, statusIdx)}
		if row.DataHora == "" && row.Status == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func headerIndexes(header []string) (int, int, bool) {
	tsIdx, statusIdx := -1, -1
	for i, name := range header {
		switch normalizeHeader(name) {
		case normalizeHeader(ColumnTimestamp):
			tsIdx = i
		case normalizeHeader(ColumnStatus):
			statusIdx = i
		}
	}
	if tsIdx < 0 {
		return 0, 0, false
	}
	return tsIdx, statusIdx, true
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
