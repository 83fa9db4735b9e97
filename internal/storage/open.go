package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "crexbot/pkg/logx"
)

// Store is the persistence API used by the command surface and the retention
// job.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	// PruneAudit removes entries older than cutoff and reports how many
	// were dropped.
	PruneAudit(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
