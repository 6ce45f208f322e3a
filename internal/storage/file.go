package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"wasend/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.results.jsonl (append-only JSON Lines)
//   - <prefix>.handled.jsonl (append-only journal, replayed at open)
//
// The handled set never expires, so no snapshot/compaction is needed:
// it is bounded by the number of distinct inbound messages.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	resultsFile *os.File
	handledFile *os.File
	handled     map[string]int64 // id -> unix milli
}

type handledRecord struct {
	ID string `json:"id"`
	At int64  `json:"at"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(filepath.Base(path)))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	rf, err := os.OpenFile(prefix+".results.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	handledPath := prefix + ".handled.jsonl"
	handled := map[string]int64{}
	if err := replayHandled(handledPath, handled); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("handled journal replay failed", logx.Err(err), logx.String("path", handledPath))
	}

	hf, err := os.OpenFile(handledPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = rf.Close()
		return nil, err
	}

	return &fileStore{
		log:         log,
		resultsFile: rf,
		handledFile: hf,
		handled:     handled,
	}, nil
}

func replayHandled(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec handledRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// A torn tail write is expected after a crash; stop replay there.
			return nil
		}
		if rec.ID != "" {
			out[rec.ID] = rec.At
		}
	}
	return sc.Err()
}

func (s *fileStore) AppendResult(ctx context.Context, e ResultEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resultsFile == nil {
		return errors.New("results file closed")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return json.NewEncoder(s.resultsFile).Encode(e)
}

func (s *fileStore) PutHandled(ctx context.Context, id string, at time.Time) error {
	_ = ctx
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handledFile == nil {
		return errors.New("handled journal closed")
	}
	ms := at.UnixMilli()
	s.handled[id] = ms
	return json.NewEncoder(s.handledFile).Encode(handledRecord{ID: id, At: ms})
}

func (s *fileStore) WasHandled(ctx context.Context, id string) (bool, error) {
	_ = ctx
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handled[id]
	return ok, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.resultsFile != nil {
		err1 = s.resultsFile.Close()
		s.resultsFile = nil
	}
	if s.handledFile != nil {
		err2 = s.handledFile.Close()
		s.handledFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}
