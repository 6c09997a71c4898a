package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourcaryourway/support-chat/internal/domain"
)

// GormChatRepository implements ChatRepository using GORM.
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a new GORM-based chat repository.
func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

// CreateSession checks the owner exists and inserts the session.
func (r *GormChatRepository) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.Status == "" {
		session.Status = domain.StatusWaiting
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = domain.TruncateToMillis(time.Now())
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.UserModel{}).Where("id = ?", session.UserID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrUserNotFound
		}

		return tx.Omit(clause.Associations).Create(domain.SessionToModel(session)).Error
	})
}

// GetSession retrieves a session by ID.
func (r *GormChatRepository) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	var model domain.ChatSessionModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ActivateSession runs a conditional WAITING → ACTIVE update.
func (r *GormChatRepository) ActivateSession(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.ChatSessionModel{}).
		Where("id = ? AND status = ?", id, string(domain.StatusWaiting)).
		Update("status", string(domain.StatusActive))
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	if _, err := r.GetSession(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// CreateMessage inserts msg after checking its session is still open.
func (r *GormChatRepository) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.ID == "" {
		return errors.New("message id is required")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session domain.ChatSessionModel
		if err := tx.Select("id", "status").First(&session, "id = ?", msg.ChatSessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if domain.SessionStatus(session.Status) == domain.StatusEnded {
			return ErrSessionEnded
		}

		return tx.Create(domain.MessageToModel(msg)).Error
	})
}

// ListMessages returns the messages of a session in transcript order.
func (r *GormChatRepository) ListMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	var models []domain.ChatMessageModel
	err := r.db.WithContext(ctx).
		Where("chat_session_id = ?", sessionID).
		Order("sent_at ASC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]domain.ChatMessage, 0, len(models))
	for i := range models {
		messages = append(messages, *models[i].ToDomain())
	}
	return messages, nil
}

// EndSession closes a session that is not yet ENDED.
func (r *GormChatRepository) EndSession(ctx context.Context, id, transcript string, endedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.ChatSessionModel{}).
		Where("id = ? AND status <> ?", id, string(domain.StatusEnded)).
		Updates(map[string]interface{}{
			"status":     string(domain.StatusEnded),
			"ended_at":   endedAt.UTC(),
			"transcript": transcript,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if _, err := r.GetSession(ctx, id); err != nil {
		return err
	}
	return ErrSessionEnded
}

// ListOpenSessions loads open sessions with the owner's public columns and
// their messages.
func (r *GormChatRepository) ListOpenSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	var models []domain.ChatSessionModel
	err := r.db.WithContext(ctx).
		Preload("User", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "first_name", "last_name", "email")
		}).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("sent_at ASC").Order("id ASC")
		}).
		Where("status IN ?", []string{string(domain.StatusWaiting), string(domain.StatusActive)}).
		Order("started_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.SessionSummary, 0, len(models))
	for i := range models {
		summaries = append(summaries, models[i].ToSummary())
	}
	return summaries, nil
}
