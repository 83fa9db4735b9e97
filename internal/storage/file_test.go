package storage

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "crexbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "audit.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", "NONE"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) returned a store, want nil", driver)
		}
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestFileAppendAndPrune(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []AuditEntry{
		{At: now.Add(-72 * time.Hour), ActorID: 1, Action: ActionSubscribe, Match: "m1"},
		{At: now.Add(-48 * time.Hour), ActorID: 1, Action: ActionUnsubscribe, Match: "m1"},
		{At: now.Add(-1 * time.Hour), ActorID: 2, Action: ActionProbe, OK: 3},
	}
	for _, e := range entries {
		if err := st.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}

	dropped, err := st.PruneAudit(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneAudit: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}

	// The append handle must survive the prune rewrite.
	if err := st.AppendAudit(ctx, AuditEntry{At: now, ActorID: 2, Action: ActionStopAll}); err != nil {
		t.Fatalf("AppendAudit after prune: %v", err)
	}

	fs := st.(*fileStore)
	if got := countLines(t, fs.auditPath); got != 2 {
		t.Fatalf("audit file has %d lines after prune+append, want 2", got)
	}
}

func TestFileAppendSetsTimestamp(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	if err := st.AppendAudit(context.Background(), AuditEntry{ActorID: 9, Action: ActionSubscribe}); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}

	// An entry without At must not be prunable by an ancient cutoff.
	dropped, err := st.PruneAudit(context.Background(), time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("PruneAudit: %v", err)
	}
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return n
}
