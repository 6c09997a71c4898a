package domain

import "time"

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID                   string    `gorm:"type:varchar(36);primaryKey"`
	Email                string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash         string    `gorm:"type:varchar(255);not null"`
	FirstName            string    `gorm:"type:varchar(100);not null"`
	LastName             string    `gorm:"type:varchar(100);not null"`
	BirthDate            time.Time `gorm:"not null"`
	Phone                string    `gorm:"type:varchar(32)"`
	DrivingLicenseNumber string    `gorm:"type:varchar(64)"`
	LicenseObtainedAt    time.Time `gorm:"column:license_obtained_at"`
	Street               string    `gorm:"type:varchar(255)"`
	City                 string    `gorm:"type:varchar(100)"`
	PostalCode           string    `gorm:"type:varchar(20)"`
	Country              string    `gorm:"type:varchar(100)"`
	EmailVerified        bool      `gorm:"not null;default:false"`
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ChatSessionModel is the GORM model for the chat_sessions table.
type ChatSessionModel struct {
	ID         string     `gorm:"type:varchar(36);primaryKey"`
	UserID     string     `gorm:"type:varchar(36);index;not null"`
	Status     string     `gorm:"type:varchar(16);index;not null"`
	StartedAt  time.Time  `gorm:"index;not null"`
	EndedAt    *time.Time `gorm:"column:ended_at"`
	Transcript *string    `gorm:"type:text"`

	User     *UserModel         `gorm:"foreignKey:UserID"`
	Messages []ChatMessageModel `gorm:"foreignKey:ChatSessionID"`
}

// TableName specifies the table name for ChatSessionModel.
func (ChatSessionModel) TableName() string {
	return "chat_sessions"
}

// ChatMessageModel is the GORM model for the chat_messages table.
type ChatMessageModel struct {
	ID            string    `gorm:"type:varchar(26);primaryKey"`
	ChatSessionID string    `gorm:"type:varchar(36);index:idx_chat_messages_session_sent,priority:1;not null"`
	Content       string    `gorm:"type:text;not null"`
	SentAt        time.Time `gorm:"index:idx_chat_messages_session_sent,priority:2;not null"`
	IsFromSupport bool      `gorm:"not null;default:false"`
}

// TableName specifies the table name for ChatMessageModel.
func (ChatMessageModel) TableName() string {
	return "chat_messages"
}

// Models lists every model in migration order.
func Models() []interface{} {
	return []interface{}{&UserModel{}, &ChatSessionModel{}, &ChatMessageModel{}}
}

// ToDomain converts UserModel to domain User.
func (m *UserModel) ToDomain() *User {
	return &User{
		ID:                   m.ID,
		Email:                m.Email,
		PasswordHash:         m.PasswordHash,
		FirstName:            m.FirstName,
		LastName:             m.LastName,
		BirthDate:            m.BirthDate,
		Phone:                m.Phone,
		DrivingLicenseNumber: m.DrivingLicenseNumber,
		LicenseObtainedAt:    m.LicenseObtainedAt,
		Street:               m.Street,
		City:                 m.City,
		PostalCode:           m.PostalCode,
		Country:              m.Country,
		EmailVerified:        m.EmailVerified,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// UserToModel converts domain User to UserModel.
func UserToModel(u *User) *UserModel {
	return &UserModel{
		ID:                   u.ID,
		Email:                u.Email,
		PasswordHash:         u.PasswordHash,
		FirstName:            u.FirstName,
		LastName:             u.LastName,
		BirthDate:            u.BirthDate,
		Phone:                u.Phone,
		DrivingLicenseNumber: u.DrivingLicenseNumber,
		LicenseObtainedAt:    u.LicenseObtainedAt,
		Street:               u.Street,
		City:                 u.City,
		PostalCode:           u.PostalCode,
		Country:              u.Country,
		EmailVerified:        u.EmailVerified,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

// ToDomain converts ChatSessionModel to domain ChatSession.
func (m *ChatSessionModel) ToDomain() *ChatSession {
	return &ChatSession{
		ID:         m.ID,
		UserID:     m.UserID,
		Status:     SessionStatus(m.Status),
		StartedAt:  m.StartedAt.UTC(),
		EndedAt:    utcPtr(m.EndedAt),
		Transcript: m.Transcript,
	}
}

// ToSummary converts a session loaded with its User and Messages.
func (m *ChatSessionModel) ToSummary() SessionSummary {
	s := SessionSummary{
		ChatSession: *m.ToDomain(),
		Messages:    make([]ChatMessage, 0, len(m.Messages)),
	}
	if m.User != nil {
		s.User = m.User.ToDomain().Public()
	}
	for i := range m.Messages {
		s.Messages = append(s.Messages, *m.Messages[i].ToDomain())
	}
	return s
}

// SessionToModel converts domain ChatSession to ChatSessionModel.
func SessionToModel(s *ChatSession) *ChatSessionModel {
	return &ChatSessionModel{
		ID:         s.ID,
		UserID:     s.UserID,
		Status:     string(s.Status),
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
		Transcript: s.Transcript,
	}
}

// ToDomain converts ChatMessageModel to domain ChatMessage.
func (m *ChatMessageModel) ToDomain() *ChatMessage {
	return &ChatMessage{
		ID:            m.ID,
		ChatSessionID: m.ChatSessionID,
		Content:       m.Content,
		SentAt:        m.SentAt.UTC(),
		IsFromSupport: m.IsFromSupport,
	}
}

// MessageToModel converts domain ChatMessage to ChatMessageModel.
func MessageToModel(msg *ChatMessage) *ChatMessageModel {
	return &ChatMessageModel{
		ID:            msg.ID,
		ChatSessionID: msg.ChatSessionID,
		Content:       msg.Content,
		SentAt:        msg.SentAt,
		IsFromSupport: msg.IsFromSupport,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
