package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourcaryourway/support-chat/internal/config"
	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/internal/repository"
	"github.com/yourcaryourway/support-chat/pkg/database"
	pkglog "github.com/yourcaryourway/support-chat/pkg/log"
)

const (
	testEmail    = "test@yourcaryourway.com"
	testPassword = "test123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	logCfg := cfg.Log
	logCfg.ServiceName = "support-seed"
	pkglog.Init(logCfg)
	logger := pkglog.L()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to hash password")
	}

	user := testUser(string(hash))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := repository.NewGormUserRepository(db).Upsert(ctx, user); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed test user")
	}

	logger.Info().Str(pkglog.FieldUserID, user.ID).Str("email", user.Email).Msg("test user seeded")
	fmt.Println(user.ID)
}

func testUser(passwordHash string) *domain.User {
	return &domain.User{
		Email:                testEmail,
		PasswordHash:         passwordHash,
		FirstName:            "Jean",
		LastName:             "Dupont",
		BirthDate:            time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Phone:                "+33612345678",
		DrivingLicenseNumber: "ABC123456",
		LicenseObtainedAt:    time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC),
		Street:               "123 Rue de Test",
		City:                 "Paris",
		PostalCode:           "75001",
		Country:              "France",
		EmailVerified:        true,
	}
}
