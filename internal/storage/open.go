package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"wasend/pkg/logx"
)

// Store is the minimal persistence API used by the campaign core.
//
// AppendResult keeps an audit trail of dispatch outcomes. PutHandled and
// WasHandled back the reply monitor's handled-message set so a restart
// does not re-reply to messages already answered.
type Store interface {
	AppendResult(ctx context.Context, e ResultEntry) error
	PutHandled(ctx context.Context, id string, at time.Time) error
	WasHandled(ctx context.Context, id string) (bool, error)
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
