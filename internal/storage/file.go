package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "starwatch/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.notifications.jsonl (append-only JSON Lines)
//   - <prefix>.images.jsonl        (append-only JSON Lines)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	notifFile *os.File
	imageFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	nf, err := os.OpenFile(prefix+".notifications.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	imf, err := os.OpenFile(prefix+".images.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = nf.Close()
		return nil, err
	}

	return &fileStore{
		log:       log,
		notifFile: nf,
		imageFile: imf,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.notifFile != nil {
		err1 = s.notifFile.Close()
		s.notifFile = nil
	}
	if s.imageFile != nil {
		err2 = s.imageFile.Close()
		s.imageFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *fileStore) RecordNotification(ctx context.Context, rec NotificationRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifFile == nil {
		return errors.New("notification file closed")
	}
	return json.NewEncoder(s.notifFile).Encode(rec)
}

func (s *fileStore) RecordImage(ctx context.Context, rec ImageRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.imageFile == nil {
		return errors.New("image file closed")
	}
	return json.NewEncoder(s.imageFile).Encode(rec)
}
