package eventlog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

type ImportReport struct {
	Imported   int
	Duplicates int
	Skipped    int
}

// ImportFile merges the DataHora/Status rows of an .xlsx or .xls export
// into sheet. Existing rows are kept; the merged log is ordered by
// timestamp and exact duplicates are dropped.
func ImportFile(ctx context.Context, store *Store, sheet, path string) (ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportReport{}, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	records, err := readRowsFromSpreadsheet(f, filepath.Base(path), sheet)
	if err != nil {
		return ImportReport{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return importRecords(ctx, store, sheet, records)
}

func importRecords(ctx context.Context, store *Store, sheet string, records [][]string) (ImportReport, error) {
	var report ImportReport

	existing, err := store.Rows(ctx, sheet)
	if err != nil {
		return report, err
	}

	type datedRow struct {
		at  time.Time
		row Row
	}
	seen := make(map[Row]struct{}, len(existing))
	var dated []datedRow
	var malformed []Row
	for _, row := range existing {
		ev, err := row.Event(store.loc)
		if err != nil {
			malformed = append(malformed, row)
			continue
		}
		normalized := ev.Row()
		seen[normalized] = struct{}{}
		dated = append(dated, datedRow{at: ev.Time, row: row})
	}

	for _, row := range rowsFromRecords(records) {
		at, err := ParseTimestamp(row.DataHora, store.loc)
		if err != nil {
			report.Skipped++
			continue
		}
		normalized := Event{Time: at.Truncate(time.Second), Label: ParseLabel(row.Status)}.Row()
		if _, dup := seen[normalized]; dup {
			report.Duplicates++
			continue
		}
		seen[normalized] = struct{}{}
		dated = append(dated, datedRow{at: at, row: normalized})
		report.Imported++
	}

	if report.Imported == 0 {
		return report, nil
	}

	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].at.Before(dated[j].at)
	})
	merged := make([]Row, 0, len(dated)+len(malformed))
	for _, d := range dated {
		merged = append(merged, d.row)
	}
	merged = append(merged, malformed...)

	if err := store.ReplaceRows(ctx, sheet, merged); err != nil {
		return report, err
	}
	return report, nil
}

func readRowsFromSpreadsheet(reader io.Reader, filename, sheet string) ([][]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		if workbook.NumSheets() > 1 {
			return nil, fmt.Errorf("multiple worksheets found; export the %s worksheet on its own", sheet)
		}
		rows := workbook.ReadAllCells(100000)
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	case ".xlsx", ".xlsm":
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if idx, err := file.GetSheetIndex(sheet); err == nil && idx >= 0 {
			sheetName = sheet
		}
		if sheetName == "" {
			return nil, fmt.Errorf("no worksheet found")
		}

		// Raw values keep date cells as serials instead of the
		// locale-formatted text GetRows returns by default.
		rows, err := file.GetRows(sheetName, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("unsupported import format %q (want .xlsx or .xls)", ext)
	}
}
