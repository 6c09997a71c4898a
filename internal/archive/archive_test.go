package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourcaryourway/support-chat/pkg/storage"
)

func TestArchiveRoundTrip(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	a := NewStorageArchiver(store, "/transcripts/")
	ctx := context.Background()
	endedAt := time.Date(2025, 3, 9, 23, 30, 0, 0, time.FixedZone("CET", 3600))

	if got, want := a.Key("S1", endedAt), "transcripts/2025/03/S1.txt"; got != want {
		t.Fatalf("Key = %q, want %q", got, want)
	}

	transcript := "[2025-03-09T22:29:00.000Z] Client: hello\n[2025-03-09T22:29:05.120Z] Support: hi"
	if err := a.Archive(ctx, "S1", endedAt, transcript); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	got, err := a.Load(ctx, "S1", endedAt)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != transcript {
		t.Fatalf("Load = %q", got)
	}

	files, err := store.List(ctx, "transcripts/2025/")
	if err != nil || len(files) != 1 {
		t.Fatalf("List = %v, %v", files, err)
	}
}

func TestLoadMissing(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	a := NewStorageArchiver(store, "transcripts")
	if _, err := a.Load(context.Background(), "missing", time.Now()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Load = %v, want ErrNotFound", err)
	}
}
