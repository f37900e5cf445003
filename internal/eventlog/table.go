package eventlog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrSheetNotFound means the sheet has never been written.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrStoreUnavailable wraps backend read and write failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Table is the storage backend: a set of named two-column sheets that can
// be read whole and overwritten whole.
type Table interface {
	ReadRows(ctx context.Context, sheet string) ([]Row, error)
	WriteRows(ctx context.Context, sheet string, rows []Row) error
	Close() error
}

// RowAppender is implemented by backends that can append a single row
// without rewriting the sheet.
type RowAppender interface {
	AppendRow(ctx context.Context, sheet string, row Row) error
}

var sheetNamePattern = regexp.MustCompile(`^[\p{L}\p{N}_-]{1,31}$`)

// ValidateSheetName keeps sheet names usable as file names, worksheet
// titles and key suffixes alike.
func ValidateSheetName(sheet string) error {
	if !sheetNamePattern.MatchString(sheet) {
		return fmt.Errorf("invalid sheet name %q", sheet)
	}
	return nil
}
