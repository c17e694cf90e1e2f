// Package seen keeps the durable set of market slugs that were already alerted on.
//
// The set is append-only: a slug, once recorded, is never removed. Every
// backend loads the full set into memory on open; lookups never touch disk.
package seen

import (
	"errors"
	"fmt"
	"strings"

	"polymarket-monitor/internal/infra/log"

	"go.uber.org/zap"
)

var (
	ErrClosed      = errors.New("seen store closed")
	ErrInvalidSlug = errors.New("slug must be non-empty and contain no line breaks")
)

// validSlug reports whether slug survives a newline-delimited round trip.
func validSlug(slug string) bool {
	return slug != "" && !strings.ContainsAny(slug, "\r\n")
}

// Store is the persistence API used by the monitor.
type Store interface {
	Contains(slug string) bool
	Add(slug string) error
	Size() int
	Close() error
}

// StoreError reports a failure reading or durably writing the seen set.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("seen store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Config selects a backend.
//
// Driver values:
//   - "file" (default): newline-delimited slug log
//   - "sqlite": SQLite database file
type Config struct {
	Driver string
	Path   string
}

func Open(cfg Config, logger *log.Logger) (Store, error) {
	if logger == nil {
		logger = log.Nop()
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("history path is required")
	}

	var (
		st  Store
		err error
	)
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		driver = "file"
		st, err = Load(path)
	case "sqlite", "sqlite3":
		st, err = OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown history driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Seen store loaded",
		zap.String("driver", driver),
		zap.String("path", path),
		zap.Int("entries", st.Size()))
	return st, nil
}
