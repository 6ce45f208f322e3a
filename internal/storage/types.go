package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// ResultEntry records the final outcome for one contact.
// Keep it compact and schema-stable.
type ResultEntry struct {
	At       time.Time
	Name     string
	Phone    string
	Status   string
	Attempts int
	Error    string
	TookMS   int64
}
