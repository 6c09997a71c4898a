// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/pkg/database"
)

// NewSQLiteDB opens a migrated in-memory database that lives for the test.
// The pool is pinned to one connection so every query sees the same memory db.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUser inserts a user and returns it.
func SeedUser(t testing.TB, db *gorm.DB, id, email string) *domain.User {
	t.Helper()

	u := &domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: "x",
		FirstName:    "Jean",
		LastName:     "Dupont",
		BirthDate:    time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Country:      "France",
	}
	if err := db.WithContext(context.Background()).Create(domain.UserToModel(u)).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}
