package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/internal/testutil"
)

func TestUserUpsertKeepsIDForSameEmail(t *testing.T) {
	repo := NewGormUserRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	first := &domain.User{
		Email:        "test@example.com",
		PasswordHash: "h1",
		FirstName:    "Jean",
		LastName:     "Dupont",
		BirthDate:    time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		City:         "Paris",
	}
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("expected id to be assigned")
	}

	second := *first
	second.ID = ""
	second.City = "Lyon"
	second.PasswordHash = "h2"
	if err := repo.Upsert(ctx, &second); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("id changed on upsert: %s -> %s", first.ID, second.ID)
	}

	got, err := repo.GetByEmail(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.City != "Lyon" || got.PasswordHash != "h2" {
		t.Fatalf("update not applied: %+v", got)
	}

	byID, err := repo.GetByID(ctx, first.ID)
	if err != nil || byID.Email != first.Email {
		t.Fatalf("GetByID = %+v, %v", byID, err)
	}
}

func TestUserNotFound(t *testing.T) {
	repo := NewGormUserRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "nope"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("GetByID err = %v", err)
	}
	if _, err := repo.GetByEmail(ctx, "nope@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("GetByEmail err = %v", err)
	}
}

func TestHandleErrorMapsUniqueEmail(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{`UNIQUE constraint failed: users.email`, ErrEmailExists},
		{`ERROR: duplicate key value violates unique constraint "idx_users_email"`, ErrEmailExists},
		{`Error 1062: Duplicate entry 'a@b' for key 'users.idx_users_email'`, ErrEmailExists},
	}
	for _, tt := range tests {
		if got := handleError(errors.New(tt.msg)); !errors.Is(got, tt.want) {
			t.Errorf("handleError(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}

	other := errors.New("connection refused")
	if got := handleError(other); got != other {
		t.Errorf("unrelated error was rewritten: %v", got)
	}
}
