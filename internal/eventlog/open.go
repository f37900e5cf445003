package eventlog

import (
	"context"
	"fmt"
	"strings"
)

const (
	BackendCSV      = "csv"
	BackendWorkbook = "workbook"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

type BackendConfig struct {
	Backend      string
	DataDir      string
	WorkbookPath string
	SQLitePath   string
	RedisURL     string
	RedisPrefix  string
}

// OpenTable builds the backend named by cfg.Backend.
func OpenTable(ctx context.Context, cfg BackendConfig) (Table, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendCSV:
		return NewCSVTable(cfg.DataDir)
	case BackendWorkbook, "xlsx":
		return NewWorkbookTable(cfg.WorkbookPath)
	case BackendSQLite:
		return NewSQLiteTable(ctx, cfg.SQLitePath)
	case BackendRedis:
		return NewRedisTable(ctx, cfg.RedisURL, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want csv, workbook, sqlite or redis)", cfg.Backend)
	}
}
