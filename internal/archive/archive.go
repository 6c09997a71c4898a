package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/yourcaryourway/support-chat/pkg/log"
	"github.com/yourcaryourway/support-chat/pkg/storage"
)

const contentType = "text/plain; charset=utf-8"

// Archiver keeps a copy of each final transcript outside the database.
type Archiver interface {
	Archive(ctx context.Context, sessionID string, endedAt time.Time, transcript string) error
}

// StorageArchiver writes transcripts as <prefix>/<yyyy>/<mm>/<session>.txt.
type StorageArchiver struct {
	store  storage.Storage
	prefix string
}

func NewStorageArchiver(store storage.Storage, prefix string) *StorageArchiver {
	return &StorageArchiver{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a session ended at endedAt.
func (a *StorageArchiver) Key(sessionID string, endedAt time.Time) string {
	at := endedAt.UTC()
	return path.Join(a.prefix, fmt.Sprintf("%04d", at.Year()), fmt.Sprintf("%02d", int(at.Month())), sessionID+".txt")
}

func (a *StorageArchiver) Archive(ctx context.Context, sessionID string, endedAt time.Time, transcript string) error {
	key := a.Key(sessionID, endedAt)
	if err := a.store.Write(ctx, key, strings.NewReader(transcript), int64(len(transcript)), contentType); err != nil {
		return fmt.Errorf("failed to archive transcript: %w", err)
	}

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldSessionID, sessionID).Str("key", key).Int("bytes", len(transcript)).Msg("transcript archived")
	return nil
}

// Load reads an archived transcript back.
func (a *StorageArchiver) Load(ctx context.Context, sessionID string, endedAt time.Time) (string, error) {
	rc, err := a.store.Read(ctx, a.Key(sessionID, endedAt))
	if err != nil {
		return "", err
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return string(b), nil
}

// Nop discards transcripts.
type Nop struct{}

func (Nop) Archive(context.Context, string, time.Time, string) error { return nil }
