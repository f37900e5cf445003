// Package habitcli implements the habitlog command line.
package habitcli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/phillip-england/habitlog/internal/apiapp"
	"github.com/phillip-england/habitlog/internal/clientapp"
	"github.com/phillip-england/habitlog/internal/config"
	"github.com/phillip-england/habitlog/internal/envutil"
	"github.com/phillip-england/habitlog/internal/eventlog"
	"github.com/phillip-england/habitlog/internal/logging"
	"github.com/phillip-england/habitlog/internal/tracker"
)

var ErrUsage = errors.New("usage")

const usageText = `usage: habitlog setup [--env-file .env] [--backend csv] [--data-dir ./data] [--timezone ZONE] [--force]
       habitlog run api|client|all [--env-file .env]
       habitlog status [--env-file .env]
       habitlog import --category KEY --file PATH [--env-file .env]
       habitlog export --out PATH [--env-file .env]
       habitlog restore --file PATH [--force] [--env-file .env]`

func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, usageText)
}

func Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return execute(ctx, args, os.Stdout)
}

func execute(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		return usageError()
	}

	switch args[0] {
	case "setup":
		return runSetup(args[1:], out)
	case "run":
		return runCommand(ctx, args[1:])
	case "status":
		return runStatus(ctx, args[1:], out)
	case "import":
		return runImport(ctx, args[1:], out)
	case "export":
		return runExport(ctx, args[1:], out)
	case "restore":
		return runRestore(ctx, args[1:], out)
	default:
		return usageError()
	}
}

func usageError() error {
	return fmt.Errorf("%w: habitlog <setup|run|status|import|export|restore> [...]", ErrUsage)
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return usageError()
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

func runSetup(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	envPath := fs.String("env-file", ".env", "path to .env file")
	backend := fs.String("backend", eventlog.BackendCSV, "storage backend: csv, workbook, sqlite or redis")
	dataDir := fs.String("data-dir", "./data", "directory for local storage files")
	timezone := fs.String("timezone", "", "IANA time zone for timestamps (empty for local)")
	redisURL := fs.String("redis-url", "", "redis url, required for the redis backend")
	force := fs.Bool("force", false, "overwrite existing env file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	key, err := newCSRFKey()
	if err != nil {
		return fmt.Errorf("generate csrf key: %w", err)
	}
	values := map[string]string{
		"HABITLOG_ENV":              "development",
		"HABITLOG_LOG_LEVEL":        "info",
		"HABITLOG_API_ADDR":         ":8080",
		"HABITLOG_CLIENT_ADDR":      ":3000",
		"HABITLOG_API_BASE_URL":     "http://localhost:8080",
		"HABITLOG_BACKEND":          *backend,
		"HABITLOG_DATA_DIR":         *dataDir,
		"HABITLOG_WORKBOOK_PATH":    filepath.Join(*dataDir, "habitlog.xlsx"),
		"HABITLOG_SQLITE_PATH":      filepath.Join(*dataDir, "habitlog.db"),
		"HABITLOG_INHALER_COOLDOWN": tracker.DefaultInhalerCooldown.String(),
		"HABITLOG_HISTORY_LIMIT":    "20",
		"HABITLOG_CSRF_KEY":         key,
	}
	if *timezone != "" {
		values["HABITLOG_TIMEZONE"] = *timezone
	}
	if *redisURL != "" {
		values["HABITLOG_REDIS_URL"] = *redisURL
	}

	if _, err := config.LoadFrom(values); err != nil {
		return err
	}

	if err := envutil.WriteDotEnv(*envPath, values, *force); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", *envPath)
	return nil
}

func newCSRFKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// loadConfig reads envPath into the environment, then parses HABITLOG_*.
func loadConfig(envPath, role string) (*config.Config, *slog.Logger, error) {
	if err := envutil.LoadDotEnv(envPath); err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", envPath, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(os.Stderr, cfg.SlogLevel(), role)
	return cfg, logger, nil
}

// openService opens the configured backend. The caller closes the store.
func openService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tracker.Service, *eventlog.Store, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	storage := cfg.Storage()
	switch strings.ToLower(storage.Backend) {
	case eventlog.BackendWorkbook:
		err = ensureParentDirs(storage.WorkbookPath)
	case eventlog.BackendSQLite:
		err = ensureParentDirs(storage.SQLitePath)
	}
	if err != nil {
		return nil, nil, err
	}

	table, err := eventlog.OpenTable(ctx, storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s backend: %w", storage.Backend, err)
	}
	store := eventlog.NewStore(table, loc, logger)
	svc, err := tracker.NewService(store, tracker.DefaultCategories(cfg.InhalerCooldown), tracker.WithLogger(logger))
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return svc, store, nil
}

func runCommand(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: missing run target: api | client | all", ErrUsage)
	}
	target := args[0]
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	envPath := fs.String("env-file", ".env", "path to .env file")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}

	role := target
	if target == "all" {
		role = ""
	}
	cfg, logger, err := loadConfig(*envPath, role)
	if err != nil {
		return err
	}

	switch target {
	case "api":
		return runAPI(ctx, cfg, logger)
	case "client":
		return runClient(ctx, cfg, logger)
	case "all":
		return runAll(ctx, cfg, logger)
	default:
		return fmt.Errorf("%w: unknown run target %q", ErrUsage, target)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	svc, store, err := openService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	apiCfg := apiapp.Config{Addr: cfg.APIAddr, HistoryLimit: cfg.HistoryLimit}
	if err := apiapp.Run(ctx, apiCfg, svc, logger); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	clientCfg := clientapp.Config{
		Addr:           cfg.ClientAddr,
		APIBaseURL:     cfg.APIBaseURL,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		CSRFKey:        []byte(cfg.CSRFKey),
		TrustedOrigins: cfg.CSRFTrustedOrigins,
	}
	if err := clientapp.Run(ctx, clientCfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runAll(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	errCh := make(chan error, 2)

	go func() { errCh <- runAPI(ctx, cfg, logger.With("role", "api")) }()
	go func() {
		time.Sleep(500 * time.Millisecond)
		errCh <- runClient(ctx, cfg, logger.With("role", "client"))
	}()

	for i := 0; i < 2; i++ {
		err := <-errCh
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

func runStatus(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	envPath := fs.String("env-file", ".env", "path to .env file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg, logger, err := loadConfig(*envPath, "cli")
	if err != nil {
		return err
	}
	svc, store, err := openService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	writeStatus(out, svc.Views(ctx, 1))
	return nil
}

func runImport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	envPath := fs.String("env-file", ".env", "path to .env file")
	category := fs.String("category", "", "category key, e.g. inhaler")
	file := fs.String("file", "", "path to an .xlsx or .xls export")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *category == "" || *file == "" {
		return fmt.Errorf("%w: import needs --category and --file", ErrUsage)
	}

	cfg, logger, err := loadConfig(*envPath, "cli")
	if err != nil {
		return err
	}
	svc, store, err := openService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := svc.Category(*category)
	if err != nil {
		return err
	}
	report, err := eventlog.ImportFile(ctx, store, c.Sheet, *file)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: imported %d, duplicates %d, skipped %d\n", c.Key, report.Imported, report.Duplicates, report.Skipped)
	return nil
}

func runExport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	envPath := fs.String("env-file", ".env", "path to .env file")
	outPath := fs.String("out", "", "archive path, e.g. habitlog.csv.xz")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *outPath == "" {
		return fmt.Errorf("%w: export needs --out", ErrUsage)
	}

	cfg, logger, err := loadConfig(*envPath, "cli")
	if err != nil {
		return err
	}
	svc, store, err := openService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := ensureParentDirs(*outPath); err != nil {
		return err
	}
	f, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", *outPath, err)
	}
	n, err := eventlog.ExportArchive(ctx, store, tracker.Sheets(svc.Categories()), f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d rows to %s\n", n, *outPath)
	return nil
}

// runRestore loads an export archive back into the configured backend.
// Sheets that already hold rows are left alone unless --force is given.
func runRestore(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	envPath := fs.String("env-file", ".env", "path to .env file")
	file := fs.String("file", "", "archive written by export")
	force := fs.Bool("force", false, "replace sheets that already have rows")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: restore needs --file", ErrUsage)
	}

	cfg, logger, err := loadConfig(*envPath, "cli")
	if err != nil {
		return err
	}
	svc, store, err := openService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open %s: %w", *file, err)
	}
	archive, err := eventlog.ReadArchive(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	for _, c := range svc.Categories() {
		rows, ok := archive[c.Sheet]
		if !ok {
			continue
		}
		existing, err := store.Rows(ctx, c.Sheet)
		if err != nil {
			return err
		}
		if len(existing) > 0 && !*force {
			fmt.Fprintf(out, "%s: kept %d existing rows (use --force to replace)\n", c.Key, len(existing))
			continue
		}
		if err := store.ReplaceRows(ctx, c.Sheet, rows); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: restored %d rows\n", c.Key, len(rows))
	}
	return nil
}

func ensureParentDirs(paths ...string) error {
	for _, p := range paths {
		dir := filepath.Dir(p)
		if dir == "." || dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
