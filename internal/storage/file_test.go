package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "starwatch/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("disabled storage = (%v, %v), want (nil, nil)", st, err)
	}
	st, err = Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("driver none = (%v, %v), want (nil, nil)", st, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileStoreAppendsRecords(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "starwatch.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx := context.Background()
	now := time.Date(2026, 8, 20, 1, 0, 0, 0, time.UTC)
	if err := st.RecordNotification(ctx, NotificationRecord{
		Time: now, Channel: "discord", Title: "📸 New LIGHT Frame Captured", Success: true,
	}); err != nil {
		t.Fatalf("RecordNotification: %v", err)
	}
	if err := st.RecordImage(ctx, ImageRecord{
		Time: now, Camera: "ASI2600", ImageType: "LIGHT", Notified: true, CapturedAt: "2026-08-20T00:59:58",
	}); err != nil {
		t.Fatalf("RecordImage: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "starwatch.notifications.jsonl"))
	if err != nil {
		t.Fatalf("open notifications: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("expected one notification line")
	}
	var rec NotificationRecord
	if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Channel != "discord" || !rec.Success {
		t.Fatalf("record = %+v", rec)
	}

	if err := st.RecordNotification(ctx, NotificationRecord{}); err == nil {
		t.Fatal("writes after Close must fail")
	}
}
