package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yourcaryourway/support-chat/internal/domain"
)

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Upsert keys on email so reseeding keeps the original id.
func (r *GormUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.UserModel
		err := tx.First(&existing, "email = ?", user.Email).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if user.ID == "" {
				user.ID = uuid.New().String()
			}
			model := domain.UserToModel(user)
			if err := tx.Create(model).Error; err != nil {
				return handleError(err)
			}
			user.CreatedAt = model.CreatedAt
			user.UpdatedAt = model.UpdatedAt
			return nil

		case err != nil:
			return err
		}

		user.ID = existing.ID
		model := domain.UserToModel(user)
		result := tx.Model(&domain.UserModel{}).Where("id = ?", existing.ID).
			Select("*").Omit("id", "created_at").
			Updates(model)
		if result.Error != nil {
			return handleError(result.Error)
		}

		var updated domain.UserModel
		if err := tx.First(&updated, "id = ?", existing.ID).Error; err != nil {
			return err
		}
		user.CreatedAt = updated.CreatedAt
		user.UpdatedAt = updated.UpdatedAt
		return nil
	})
}

// GetByID retrieves a user by ID.
func (r *GormUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetByEmail retrieves a user by email.
func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// handleError maps unique violations on email (postgres, sqlite, mysql).
func handleError(err error) error {
	msg := err.Error()
	unique := strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "Duplicate entry")
	if unique && strings.Contains(msg, "email") {
		return ErrEmailExists
	}
	return err
}
