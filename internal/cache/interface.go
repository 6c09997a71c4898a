package cache

import (
	"context"
	"errors"
	"time"

	"github.com/yourcaryourway/support-chat/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// SessionCache holds the open-session listing served to support agents.
type SessionCache interface {
	Get(ctx context.Context) ([]domain.SessionSummary, error)
	Set(ctx context.Context, sessions []domain.SessionSummary, ttl time.Duration) error
	Invalidate(ctx context.Context) error
	Close() error
}

// Noop always misses.
type Noop struct{}

func (Noop) Get(context.Context) ([]domain.SessionSummary, error) { return nil, ErrCacheMiss }
func (Noop) Set(context.Context, []domain.SessionSummary, time.Duration) error {
	return nil
}
func (Noop) Invalidate(context.Context) error { return nil }
func (Noop) Close() error                     { return nil }
