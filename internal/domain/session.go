package domain

import "time"

// SessionStatus is the lifecycle state of a chat session.
type SessionStatus string

const (
	StatusWaiting SessionStatus = "WAITING"
	StatusActive  SessionStatus = "ACTIVE"
	StatusEnded   SessionStatus = "ENDED"
)

// CanTransitionTo reports whether next follows s in WAITING → ACTIVE → ENDED.
// A WAITING session may be ended directly.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case StatusWaiting:
		return next == StatusActive || next == StatusEnded
	case StatusActive:
		return next == StatusEnded
	default:
		return false
	}
}

// IsOpen reports whether the session still accepts messages.
func (s SessionStatus) IsOpen() bool {
	return s == StatusWaiting || s == StatusActive
}

// User is a customer account. Chat code only reads it.
type User struct {
	ID                   string
	Email                string
	PasswordHash         string
	FirstName            string
	LastName             string
	BirthDate            time.Time
	Phone                string
	DrivingLicenseNumber string
	LicenseObtainedAt    time.Time
	Street               string
	City                 string
	PostalCode           string
	Country              string
	EmailVerified        bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// UserPublic is the part of a user exposed next to a session.
type UserPublic struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Public returns the exposed fields of u.
func (u *User) Public() UserPublic {
	return UserPublic{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}

// ChatSession is one support conversation.
type ChatSession struct {
	ID         string        `json:"id"`
	UserID     string        `json:"userId"`
	Status     SessionStatus `json:"status"`
	StartedAt  time.Time     `json:"startedAt"`
	EndedAt    *time.Time    `json:"endedAt"`
	Transcript *string       `json:"transcript"`
}

// ChatMessage is a single persisted message. SentAt is assigned by the relay.
type ChatMessage struct {
	ID            string    `json:"id"`
	ChatSessionID string    `json:"chatSessionId"`
	Content       string    `json:"content"`
	SentAt        time.Time `json:"sentAt"`
	IsFromSupport bool      `json:"isFromSupport"`
}

// SessionSummary is an open session with its owner and messages, as listed
// for support agents.
type SessionSummary struct {
	ChatSession
	User     UserPublic    `json:"user"`
	Messages []ChatMessage `json:"messages"`
}
