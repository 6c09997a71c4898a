package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/yourcaryourway/support-chat/internal/config"
	"github.com/yourcaryourway/support-chat/internal/domain"
)

func TestRedisSessionCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisSessionCache(config.RedisConfig{Address: mr.Addr()}, "test:sessions")
	if err != nil {
		t.Fatalf("NewRedisSessionCache: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Get(ctx); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get on empty cache = %v", err)
	}

	started := time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	want := []domain.SessionSummary{{
		ChatSession: domain.ChatSession{ID: "S1", UserID: "U1", Status: domain.StatusActive, StartedAt: started},
		User:        domain.UserPublic{ID: "U1", FirstName: "Jean", LastName: "Dupont", Email: "jean@example.com"},
		Messages: []domain.ChatMessage{
			{ID: "M1", ChatSessionID: "S1", Content: "hello", SentAt: started},
		},
	}}
	if err := c.Set(ctx, want, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("test:sessions:open"); ttl != time.Minute {
		t.Fatalf("ttl = %s", ttl)
	}

	got, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 1 || got[0].ID != "S1" || got[0].User.FirstName != "Jean" || len(got[0].Messages) != 1 {
		t.Fatalf("Get = %+v", got)
	}
	if !got[0].StartedAt.Equal(started) {
		t.Fatalf("StartedAt = %s", got[0].StartedAt)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := c.Get(ctx); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get after invalidate = %v", err)
	}
}

func TestRedisSessionCacheStoresEmptyList(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisSessionCache(config.RedisConfig{Address: mr.Addr()}, "p")
	if err != nil {
		t.Fatalf("NewRedisSessionCache: %v", err)
	}
	defer c.Close()

	if err := c.Set(context.Background(), nil, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(context.Background())
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("Get = %#v, %v", got, err)
	}
}
