package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("user: not found")
	ErrTokenConflict = errors.New("user: token already bound to another user")
)

// User is a local account bound to an identity at the authorization
// server. SubjectID never changes; OAuthToken is nil while unlinked.
type User struct {
	ID         uuid.UUID
	SubjectID  string
	OAuthToken *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasToken reports whether the stored token equals token.
func (u *User) HasToken(token string) bool {
	return u.OAuthToken != nil && *u.OAuthToken == token
}

// SetToken replaces the stored token.
func (u *User) SetToken(token string) {
	u.OAuthToken = &token
}

// ClearToken unlinks the stored token.
func (u *User) ClearToken() {
	u.OAuthToken = nil
}

// Repository is the persistence contract the OAuth flow depends on.
// Finders return ErrNotFound when no record matches.
type Repository interface {
	FindBySubjectID(ctx context.Context, subjectID string) (*User, error)
	FindByToken(ctx context.Context, token string) (*User, error)
	ExistsWithToken(ctx context.Context, token string) (bool, error)
	Save(ctx context.Context, u *User) error
}
