package eventlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WorkbookTable keeps every sheet as a worksheet of a single .xlsx file,
// the local stand-in for the multi-worksheet remote spreadsheet.
type WorkbookTable struct {
	path string
}

func NewWorkbookTable(path string) (*WorkbookTable, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("workbook path is required")
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".xlsx" {
		return nil, fmt.Errorf("workbook path must end in .xlsx, got %q", ext)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create workbook directory: %w", err)
		}
	}
	return &WorkbookTable{path: path}, nil
}

func (t *WorkbookTable) ReadRows(ctx context.Context, sheet string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := excelize.OpenFile(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSheetNotFound
		}
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = file.Close() }()

	idx, err := file.GetSheetIndex(sheet)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, ErrSheetNotFound
	}
	records, err := file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read worksheet %s: %w", sheet, err)
	}
	rows := rowsFromRecords(records)
	// Cells typed as dates by hand edits come back as serials; store them
	// as DataHora text so the next rewrite keeps them readable.
	for i := range rows {
		if text, ok := serialTimestamp(rows[i].DataHora); ok {
			rows[i].DataHora = text
		}
	}
	return rows, nil
}

func (t *WorkbookTable) WriteRows(ctx context.Context, sheet string, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, fresh, err := t.openOrCreate()
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	idx, err := file.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	previous := 0
	if idx < 0 {
		if _, err := file.NewSheet(sheet); err != nil {
			return fmt.Errorf("create worksheet %s: %w", sheet, err)
		}
	} else {
		existing, err := file.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("read worksheet %s: %w", sheet, err)
		}
		previous = len(existing)
	}

	if err := file.SetSheetRow(sheet, "A1", &[]any{ColumnTimestamp, ColumnStatus}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(sheet, cell, &[]any{row.DataHora, row.Status}); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	// Overwrite semantics: drop rows left over from a longer previous log.
	for r := previous; r > len(rows)+1; r-- {
		if err := file.RemoveRow(sheet, r); err != nil {
			return fmt.Errorf("trim worksheet %s: %w", sheet, err)
		}
	}

	if fresh && sheet != "Sheet1" {
		// excelize seeds new workbooks with an empty default worksheet.
		_ = file.DeleteSheet("Sheet1")
		if active, err := file.GetSheetIndex(sheet); err == nil && active >= 0 {
			file.SetActiveSheet(active)
		}
	}

	tmpPath := strings.TrimSuffix(t.path, ".xlsx") + ".tmp.xlsx"
	if err := file.SaveAs(tmpPath); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		return fmt.Errorf("install workbook: %w", err)
	}
	return nil
}

func (t *WorkbookTable) Close() error {
	return nil
}

func (t *WorkbookTable) openOrCreate() (*excelize.File, bool, error) {
	file, err := excelize.OpenFile(t.path)
	if err == nil {
		return file, false, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	return nil, false, fmt.Errorf("open workbook: %w", err)
}
