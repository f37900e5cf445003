package eventlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

const ColumnCategory = "Category"

// ExportArchive writes every sheet's raw rows as one xz-compressed CSV
// with a leading Category column. It returns the number of rows written.
func ExportArchive(ctx context.Context, store *Store, sheets []string, w io.Writer) (int, error) {
	compressor, err := xz.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("create xz writer: %w", err)
	}

	writer := csv.NewWriter(compressor)
	if err := writer.Write([]string{ColumnCategory, ColumnTimestamp, ColumnStatus}); err != nil {
		return 0, err
	}

	total := 0
	for _, sheet := range sheets {
		rows, err := store.Rows(ctx, sheet)
		if err != nil {
			_ = compressor.Close()
			return total, fmt.Errorf("export %s: %w", sheet, err)
		}
		for _, row := range rows {
			if err := writer.Write([]string{sheet, row.DataHora, row.Status}); err != nil {
				_ = compressor.Close()
				return total, err
			}
			total++
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = compressor.Close()
		return total, fmt.Errorf("write archive: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return total, fmt.Errorf("close xz writer: %w", err)
	}
	return total, nil
}

// ReadArchive decodes an archive produced by ExportArchive into rows keyed
// by sheet.
func ReadArchive(r io.Reader) (map[string][]Row, error) {
	decompressor, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create xz reader: %w", err)
	}
	reader := csv.NewReader(decompressor)
	reader.FieldsPerRecord = 3
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}

	out := make(map[string][]Row)
	for i, record := range records {
		if i == 0 && normalizeHeader(record[0]) == normalizeHeader(ColumnCategory) {
			continue
		}
		out[record[0]] = append(out[record[0]], Row{DataHora: record[1], Status: record[2]})
	}
	return out, nil
}
