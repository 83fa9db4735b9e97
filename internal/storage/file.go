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

	logx "crexbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend: an append-only JSON
// Lines audit file. Pruning rewrites the file atomically (tmp + rename) and
// reopens the append handle.
type fileStore struct {
	log logx.Logger

	mu        sync.Mutex
	auditPath string
	auditFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, auditPath: path, auditFile: f}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) PruneAudit(ctx context.Context, cutoff time.Time) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return 0, errors.New("audit file closed")
	}

	in, err := os.Open(s.auditPath)
	if err != nil {
		return 0, err
	}

	tmp := s.auditPath + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		_ = in.Close()
		return 0, err
	}

	dropped := 0
	enc := json.NewEncoder(out)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			// Unparseable lines are dropped with the old entries.
			dropped++
			continue
		}
		if e.At.Before(cutoff) {
			dropped++
			continue
		}
		if err := enc.Encode(e); err != nil {
			_ = in.Close()
			_ = out.Close()
			_ = os.Remove(tmp)
			return 0, err
		}
	}
	scanErr := sc.Err()
	_ = in.Close()
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if scanErr != nil {
		_ = os.Remove(tmp)
		return 0, scanErr
	}

	if err := os.Rename(tmp, s.auditPath); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	// The old append handle points at the replaced inode.
	_ = s.auditFile.Close()
	s.auditFile, err = os.OpenFile(s.auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return dropped, err
	}
	return dropped, nil
}
