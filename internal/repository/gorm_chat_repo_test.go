package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/internal/testutil"
)

func newChatRepo(t *testing.T) (*GormChatRepository, *domain.User) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	user := testutil.SeedUser(t, db, "u-1", "client@example.com")
	return NewGormChatRepository(db), user
}

func mustCreateSession(t *testing.T, repo *GormChatRepository, userID string, startedAt time.Time) *domain.ChatSession {
	t.Helper()
	s := &domain.ChatSession{UserID: userID, StartedAt: startedAt}
	if err := repo.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return s
}

func TestCreateSession(t *testing.T) {
	repo, user := newChatRepo(t)
	ctx := context.Background()

	s := mustCreateSession(t, repo, user.ID, time.Time{})
	if s.ID == "" {
		t.Fatalf("expected generated id")
	}
	if s.Status != domain.StatusWaiting {
		t.Fatalf("status = %s, want WAITING", s.Status)
	}

	got, err := repo.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.UserID != user.ID || got.Status != domain.StatusWaiting || got.EndedAt != nil || got.Transcript != nil {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestCreateSessionUnknownUser(t *testing.T) {
	repo, _ := newChatRepo(t)

	err := repo.CreateSession(context.Background(), &domain.ChatSession{UserID: "nobody"})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	repo, _ := newChatRepo(t)

	if _, err := repo.GetSession(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestActivateSession(t *testing.T) {
	repo, user := newChatRepo(t)
	ctx := context.Background()
	s := mustCreateSession(t, repo, user.ID, time.Time{})

	changed, err := repo.ActivateSession(ctx, s.ID)
	if err != nil || !changed {
		t.Fatalf("first activate = %v, %v", changed, err)
	}

	changed, err = repo.ActivateSession(ctx, s.ID)
	if err != nil || changed {
		t.Fatalf("second activate = %v, %v; want no-op", changed, err)
	}

	got, _ := repo.GetSession(ctx, s.ID)
	if got.Status != domain.StatusActive {
		t.Fatalf("status = %s, want ACTIVE", got.Status)
	}

	if _, err := repo.ActivateSession(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestActivateDoesNotReopenEndedSession(t *testing.T) {
	repo, user := newChatRepo(t)
	ctx := context.Background()
	s := mustCreateSession(t, repo, user.ID, time.Time{})

	if err := repo.EndSession(ctx, s.ID, "", time.Now()); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	changed, err := repo.ActivateSession(ctx, s.ID)
	if err != nil || changed {
		t.Fatalf("activate ended = %v, %v", changed, err)
	}
	got, _ := repo.GetSession(ctx, s.ID)
	if got.Status != domain.StatusEnded {
		t.Fatalf("status = %s, want ENDED", got.Status)
	}
}

func TestMessagesOrderedBySentAt(t *testing.T) {
	repo, user := newChatRepo(t)
	ctx := context.Background()
	s := mustCreateSession(t, repo, user.ID, time.Time{})

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	inserts := []domain.ChatMessage{
		{ID: "03", Content: "c", SentAt: base.Add(2 * time.Second)},
		{ID: "01", Content: "a", SentAt: base},
		{ID: "02", Content: "b", SentAt: base.Add(time.Second), IsFromSupport: true},
	}
	for i := range inserts {
		inserts[i].ChatSessionID = s.ID
		if err := repo.CreateMessage(ctx, &inserts[i]); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	got, err := repo.ListMessages(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	for i, id := range []string{"01", "02", "03"} {
		if got[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
	if !got[1].IsFromSupport || !got[0].SentAt.Equal(base) {
		t.Fatalf("fields not round-tripped: %+v", got[:2])
	}
}

func TestCreateMessageRequiresOpenSession(t *testing.T) {
	repo, user := newChatRepo(t)
	ctx := context.Background()

	err := repo.CreateMessage(ctx, &domain.ChatMessage{ID: "m1", ChatSessionID: "missing", SentAt: time.Now()})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}

	s := mustCreateSession(t, repo, user.ID, time.Time{})
	if err := repo.EndSession(ctx, s.ID, "", time.Now()); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	err = repo.CreateMessage(ctx, &domain.ChatMessage{ID: "m2", ChatSessionID: s.ID, SentAt: time.Now()})
	if !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("err = %v, want ErrSessionEnded", err)
	}
}

func TestEndSessionSetsTranscriptOnce(t *testing.T) {
	repo, user := newChatRepo(t)
	ctx := context.Background()
	s := mustCreateSession(t, repo, user.ID, time.Time{})
	endedAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	if err := repo.EndSession(ctx, s.ID, "[x] Client: hi", endedAt); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	got, _ := repo.GetSession(ctx, s.ID)
	if got.Status != domain.StatusEnded {
		t.Fatalf("status = %s", got.Status)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(endedAt) {
		t.Fatalf("endedAt = %v", got.EndedAt)
	}
	if got.Transcript == nil || *got.Transcript != "[x] Client: hi" {
		t.Fatalf("transcript = %v", got.Transcript)
	}

	err := repo.EndSession(ctx, s.ID, "overwritten", time.Now())
	if !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("second end err = %v, want ErrSessionEnded", err)
	}
	got, _ = repo.GetSession(ctx, s.ID)
	if *got.Transcript != "[x] Client: hi" {
		t.Fatalf("transcript overwritten: %q", *got.Transcript)
	}

	if err := repo.EndSession(ctx, "missing", "", time.Now()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestListOpenSessions(t *testing.T) {
	repo, user := newChatRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	older := mustCreateSession(t, repo, user.ID, base)
	newer := mustCreateSession(t, repo, user.ID, base.Add(time.Hour))
	ended := mustCreateSession(t, repo, user.ID, base.Add(2*time.Hour))
	if _, err := repo.ActivateSession(ctx, older.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.EndSession(ctx, ended.ID, "", base.Add(3*time.Hour)); err != nil {
		t.Fatal(err)
	}

	for i, content := range []string{"second", "first"} {
		m := &domain.ChatMessage{
			ID:            []string{"b", "a"}[i],
			ChatSessionID: older.ID,
			Content:       content,
			SentAt:        base.Add(time.Duration(1-i) * time.Minute),
		}
		if err := repo.CreateMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.ListOpenSessions(ctx)
	if err != nil {
		t.Fatalf("ListOpenSessions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Fatalf("order = %s, %s; want newest first", got[0].ID, got[1].ID)
	}
	if got[1].Status != domain.StatusActive {
		t.Fatalf("older status = %s", got[1].Status)
	}
	if got[1].User.Email != user.Email || got[1].User.FirstName != "Jean" {
		t.Fatalf("user = %+v", got[1].User)
	}
	if len(got[1].Messages) != 2 || got[1].Messages[0].Content != "first" {
		t.Fatalf("messages = %+v", got[1].Messages)
	}
	if len(got[0].Messages) != 0 || got[0].Messages == nil {
		t.Fatalf("newer session should have an empty, non-nil message list")
	}
}
