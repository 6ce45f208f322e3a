package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wasend/pkg/logx"
)

func openTestFileStore(t *testing.T, dir string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "campaign.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) = %T, want nil", driver, st)
		}
	}
}

func TestFileStoreHandledRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestFileStore(t, dir)
	if err := st.PutHandled(ctx, "msg-1", time.Now()); err != nil {
		t.Fatalf("PutHandled: %v", err)
	}
	ok, err := st.WasHandled(ctx, "msg-1")
	if err != nil || !ok {
		t.Fatalf("WasHandled(msg-1) = %v, %v; want true", ok, err)
	}
	ok, err = st.WasHandled(ctx, "msg-2")
	if err != nil || ok {
		t.Fatalf("WasHandled(msg-2) = %v, %v; want false", ok, err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Journal replay: a reopened store still knows msg-1.
	st2 := openTestFileStore(t, dir)
	defer st2.Close()
	ok, err = st2.WasHandled(ctx, "msg-1")
	if err != nil || !ok {
		t.Fatalf("after reopen WasHandled(msg-1) = %v, %v; want true", ok, err)
	}
}

func TestFileStoreAppendResult(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestFileStore(t, dir)
	defer st.Close()

	e := ResultEntry{
		Name:     "Alice",
		Phone:    "+6281234567",
		Status:   "sent",
		Attempts: 2,
		TookMS:   1234,
	}
	if err := st.AppendResult(ctx, e); err != nil {
		t.Fatalf("AppendResult: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "campaign.results.jsonl"))
	if err != nil {
		t.Fatalf("opening results file: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("results file is empty")
	}
	var got ResultEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(sc.Text())), &got); err != nil {
		t.Fatalf("decoding result line: %v", err)
	}
	if got.Phone != e.Phone || got.Status != e.Status || got.Attempts != e.Attempts {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.At.IsZero() {
		t.Fatal("At was not defaulted")
	}
}
