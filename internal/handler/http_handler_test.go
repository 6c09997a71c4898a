package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/internal/repository"
	"github.com/yourcaryourway/support-chat/internal/service"
	"github.com/yourcaryourway/support-chat/internal/testutil"
	"github.com/yourcaryourway/support-chat/pkg/log"
	"github.com/yourcaryourway/support-chat/pkg/pubsub"
)

type failingQuery struct{}

func (failingQuery) ListOpenSessions(context.Context) ([]domain.SessionSummary, error) {
	return nil, errors.New("db down")
}

func (failingQuery) InvalidateOnEvents(context.Context, pubsub.Subscriber) error { return nil }

func newRouter(svc service.SessionQueryService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(log.GinMiddleware(log.L()))
	NewHTTPHandler(svc).RegisterRoutes(r)
	return r
}

type listResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Data    []struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		StartedAt string `json:"startedAt"`
		User      struct {
			ID        string `json:"id"`
			FirstName string `json:"firstName"`
			Email     string `json:"email"`
		} `json:"user"`
		Messages []struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"messages"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestListSessions(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	testutil.SeedUser(t, db, "U1", "client@example.com")
	repo := repository.NewGormChatRepository(db)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"S-old", "S-new", "S-ended"} {
		if err := repo.CreateSession(ctx, &domain.ChatSession{ID: id, UserID: "U1", StartedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}
	repo.ActivateSession(ctx, "S-new")
	repo.EndSession(ctx, "S-ended", "", base.Add(time.Hour))
	for i, content := range []string{"second", "first"} {
		msg := &domain.ChatMessage{ID: content, ChatSessionID: "S-old", Content: content, SentAt: base.Add(time.Duration(10-i) * time.Second)}
		if err := repo.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	r := newRouter(service.NewSessionQueryService(repo, nil, time.Minute))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
	var body listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Count != 2 || len(body.Data) != 2 {
		t.Fatalf("body = %s", rec.Body)
	}
	if body.Data[0].ID != "S-new" || body.Data[0].Status != "ACTIVE" || body.Data[1].ID != "S-old" {
		t.Fatalf("sessions not ordered by start desc: %s", rec.Body)
	}
	old := body.Data[1]
	if old.User.FirstName != "Jean" || old.User.Email != "client@example.com" {
		t.Fatalf("user = %+v", old.User)
	}
	if len(old.Messages) != 2 || old.Messages[0].Content != "first" || old.Messages[1].Content != "second" {
		t.Fatalf("messages not ordered by sentAt: %+v", old.Messages)
	}
}

func TestListSessionsFailure(t *testing.T) {
	r := newRouter(failingQuery{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body listResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Success || body.Error == nil || body.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestHealthCheck(t *testing.T) {
	r := newRouter(failingQuery{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
