package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.nhat.io/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"modernc.org/sqlite"

	"titlecache/internal/config"
	"titlecache/internal/pathquery"
	"titlecache/internal/textutil"
)

// Store manages title persistence backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	target pathquery.Target
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

var (
	driverOnce sync.Once
	driverName string
	driverErr  error
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(pathquery.FoldFunc, 1, foldValue)
}

// foldValue backs the substring matches compiled by pathquery. Numbers fold
// to their text form, as LIKE would compare them.
func foldValue(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return textutil.Fold(v), nil
	case []byte:
		return textutil.Fold(string(v)), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return textutil.Fold(fmt.Sprint(v)), nil
	}
}

// tracedDriver wraps the modernc driver so every statement produces a span.
func tracedDriver() (string, error) {
	driverOnce.Do(func() {
		driverName, driverErr = otelsql.Register(
			"sqlite",
			otelsql.TraceQueryWithoutArgs(),
			otelsql.TraceRowsClose(),
			otelsql.TraceRowsAffected(),
			otelsql.WithSystem(semconv.DBSystemSqlite),
		)
	})
	return driverName, driverErr
}

// Open initializes or connects to the configured titles database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.Paths.Database)
}

// OpenPath opens the database at path, creating it when missing.
func OpenPath(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("open store: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	driver, err := tracedDriver()
	if err != nil {
		return nil, fmt.Errorf("register sqlite driver: %w", err)
	}

	db, err := sql.Open(driver, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Access is serialized through one connection; the manager's store lane
	// relies on this to keep transactions from interleaving.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := otelsql.RecordStats(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("record sqlite stats: %w", err)
	}

	store := &Store{db: db, path: path, target: pathquery.Target{Table: "titles", Column: "data"}}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func dsn(path string) string {
	params := url.Values{}
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + params.Encode()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

// Timestamps are stored as fractional unix seconds with microsecond precision.
func toUnix(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func fromUnix(seconds float64) time.Time {
	return time.UnixMicro(int64(math.Round(seconds * 1e6)))
}
