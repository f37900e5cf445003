package eventlog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteTable stores rows of every sheet in one events table. It appends
// incrementally, so it never rewrites a sheet on the record path.
type SQLiteTable struct {
	db *sql.DB
}

func NewSQLiteTable(ctx context.Context, path string) (*SQLiteTable, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteTable{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (t *SQLiteTable) ReadRows(ctx context.Context, sheet string) ([]Row, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT data_hora, status FROM events WHERE sheet = ? ORDER BY id`, sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.DataHora, &row.Status); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrSheetNotFound
	}
	return out, nil
}

func (t *SQLiteTable) WriteRows(ctx context.Context, sheet string, rows []Row) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE sheet = ?`, sheet); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (sheet, data_hora, status) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, sheet, row.DataHora, row.Status); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (t *SQLiteTable) AppendRow(ctx context.Context, sheet string, row Row) error {
	_, err := t.db.ExecContext(ctx, `INSERT INTO events (sheet, data_hora, status) VALUES (?, ?, ?)`, sheet, row.DataHora, row.Status)
	return err
}

func (t *SQLiteTable) Close() error {
	return t.db.Close()
}
