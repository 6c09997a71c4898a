package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yourcaryourway/support-chat/internal/cache"
	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/internal/repository"
	"github.com/yourcaryourway/support-chat/pkg/log"
	"github.com/yourcaryourway/support-chat/pkg/pubsub"
)

const openSessionsKey = "open-sessions"

type sessionQueryService struct {
	repo     repository.ChatRepository
	cache    cache.SessionCache
	cacheTTL time.Duration
	sf       singleflight.Group
}

func NewSessionQueryService(repo repository.ChatRepository, sessionCache cache.SessionCache, cacheTTL time.Duration) SessionQueryService {
	if sessionCache == nil {
		sessionCache = cache.Noop{}
	}
	return &sessionQueryService{
		repo:     repo,
		cache:    sessionCache,
		cacheTTL: cacheTTL,
	}
}

func (s *sessionQueryService) ListOpenSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	// Concurrent misses share one datastore query.
	result, err, _ := s.sf.Do(openSessionsKey, func() (interface{}, error) {
		return s.fetchWithCache(ctx)
	})
	if err != nil {
		return nil, err
	}

	sessions, ok := result.([]domain.SessionSummary)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return sessions, nil
}

func (s *sessionQueryService) fetchWithCache(ctx context.Context) ([]domain.SessionSummary, error) {
	cached, err := s.cache.Get(ctx)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	sessions, err := s.repo.ListOpenSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}

	if err := s.cache.Set(ctx, sessions, s.cacheTTL); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache set error")
	}
	return sessions, nil
}

func (s *sessionQueryService) InvalidateOnEvents(ctx context.Context, sub pubsub.Subscriber) error {
	events, err := sub.SubscribePattern(ctx, pubsub.PatternSessionEvents)
	if err != nil {
		return fmt.Errorf("failed to subscribe to session events: %w", err)
	}

	l := log.Ctx(ctx)
	l.Info().Str("pattern", pubsub.PatternSessionEvents).Msg("listening for session events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.cache.Invalidate(ctx); err != nil {
				l.Warn().Err(err).Str("type", evt.Type).Msg("cache invalidate error")
				continue
			}
			l.Debug().Str("type", evt.Type).Str(log.FieldSessionID, evt.SessionID).Msg("open sessions cache invalidated")
		}
	}
}
