package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yourcaryourway/support-chat/internal/domain"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session already ended")
	ErrEmailExists     = errors.New("email already exists")
)

// ChatRepository persists sessions and messages.
type ChatRepository interface {
	// CreateSession stores a new WAITING session owned by session.UserID.
	// It returns ErrUserNotFound when the owner does not exist.
	CreateSession(ctx context.Context, session *domain.ChatSession) error

	GetSession(ctx context.Context, id string) (*domain.ChatSession, error)

	// ActivateSession moves a WAITING session to ACTIVE and reports whether
	// a transition happened. Sessions in any other state are left untouched.
	ActivateSession(ctx context.Context, id string) (bool, error)

	// CreateMessage stores msg. The session must exist and not be ENDED.
	CreateMessage(ctx context.Context, msg *domain.ChatMessage) error

	// ListMessages returns a session's messages by ascending SentAt, then id.
	ListMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)

	// EndSession sets status ENDED, endedAt and transcript in one
	// conditional update. It returns ErrSessionEnded if already ended.
	EndSession(ctx context.Context, id, transcript string, endedAt time.Time) error

	// ListOpenSessions returns WAITING and ACTIVE sessions, newest first,
	// each with its owner and ordered messages.
	ListOpenSessions(ctx context.Context) ([]domain.SessionSummary, error)
}

// UserRepository reads and seeds customer accounts.
type UserRepository interface {
	// Upsert inserts user or, when the email exists, updates it in place.
	// user.ID is set to the stored id.
	Upsert(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
