package eventlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type LoadStatus string

const (
	LoadOK     LoadStatus = "ok"
	LoadEmpty  LoadStatus = "empty"
	LoadFailed LoadStatus = "failed"
)

// LoadResult separates "no history" from "backend failure". A failed load
// carries no events; callers decide whether to fail open.
type LoadResult struct {
	Status  LoadStatus
	Events  []Event
	Skipped int
	Err     error
}

// Last returns the event with the greatest timestamp.
func (r LoadResult) Last() (Event, bool) {
	if len(r.Events) == 0 {
		return Event{}, false
	}
	last := r.Events[0]
	for _, ev := range r.Events[1:] {
		if !ev.Time.Before(last.Time) {
			last = ev
		}
	}
	return last, true
}

type Store struct {
	table  Table
	loc    *time.Location
	logger *slog.Logger
}

func NewStore(table Table, loc *time.Location, logger *slog.Logger) *Store {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{table: table, loc: loc, logger: logger}
}

func (s *Store) Location() *time.Location {
	return s.loc
}

func (s *Store) Close() error {
	return s.table.Close()
}

func (s *Store) Load(ctx context.Context, sheet string) LoadResult {
	rows, err := s.readRows(ctx, sheet)
	if err != nil {
		if errors.Is(err, ErrSheetNotFound) {
			return LoadResult{Status: LoadEmpty}
		}
		s.logger.Warn("event log read failed", "sheet", sheet, "error", err)
		return LoadResult{Status: LoadFailed, Err: err}
	}

	result := LoadResult{Status: LoadEmpty, Events: make([]Event, 0, len(rows))}
	for i, row := range rows {
		ev, err := row.Event(s.loc)
		if err != nil {
			result.Skipped++
			s.logger.Warn("skipping malformed row", "sheet", sheet, "row", i+2, "error", err)
			continue
		}
		result.Events = append(result.Events, ev)
	}
	if len(result.Events) > 0 {
		result.Status = LoadOK
	}
	return result
}

// Append adds ev to the end of the sheet. Backends without RowAppender get
// a full rewrite; a failed read aborts the write so an outage can never
// replace the stored history with a single row.
func (s *Store) Append(ctx context.Context, sheet string, ev Event) error {
	if err := ValidateSheetName(sheet); err != nil {
		return err
	}
	row := Event{Time: ev.Time.In(s.loc), Label: ev.Label}.Row()

	if appender, ok := s.table.(RowAppender); ok {
		if err := appender.AppendRow(ctx, sheet, row); err != nil {
			return fmt.Errorf("append to %s: %w: %w", sheet, ErrStoreUnavailable, err)
		}
		return nil
	}

	rows, err := s.readRows(ctx, sheet)
	if err != nil && !errors.Is(err, ErrSheetNotFound) {
		return err
	}
	rows = append(rows, row)
	if err := s.table.WriteRows(ctx, sheet, rows); err != nil {
		return fmt.Errorf("write %s: %w: %w", sheet, ErrStoreUnavailable, err)
	}
	return nil
}

// Rows returns the raw rows of a sheet, malformed ones included.
func (s *Store) Rows(ctx context.Context, sheet string) ([]Row, error) {
	rows, err := s.readRows(ctx, sheet)
	if errors.Is(err, ErrSheetNotFound) {
		return nil, nil
	}
	return rows, err
}

// ReplaceRows overwrites a sheet. Used by the importer, never by the
// record path.
func (s *Store) ReplaceRows(ctx context.Context, sheet string, rows []Row) error {
	if err := ValidateSheetName(sheet); err != nil {
		return err
	}
	if err := s.table.WriteRows(ctx, sheet, rows); err != nil {
		return fmt.Errorf("write %s: %w: %w", sheet, ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) readRows(ctx context.Context, sheet string) ([]Row, error) {
	if err := ValidateSheetName(sheet); err != nil {
		return nil, err
	}
	rows, err := s.table.ReadRows(ctx, sheet)
	if err != nil {
		if errors.Is(err, ErrSheetNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("read %s: %w: %w", sheet, ErrStoreUnavailable, err)
	}
	return rows, nil
}
