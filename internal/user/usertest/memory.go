// Package usertest provides an in-memory user.Repository for tests.
package usertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shion-ptpe/oauth/internal/user"
)

type Repository struct {
	mu    sync.Mutex
	users map[uuid.UUID]user.User
	saves int

	// SaveErr, when set, is returned by Save without storing anything.
	SaveErr error
	// FindErr, when set, is returned by every lookup.
	FindErr error
}

func NewRepository() *Repository {
	return &Repository{users: make(map[uuid.UUID]user.User)}
}

// Add inserts a user for subjectID holding token (empty means unlinked).
func (r *Repository) Add(subjectID, token string) *user.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	u := user.User{ID: uuid.New(), SubjectID: subjectID, CreatedAt: now, UpdatedAt: now}
	if token != "" {
		u.SetToken(token)
	}
	r.users[u.ID] = u
	return clone(u)
}

// Get returns a copy of the stored user for subjectID, or nil.
func (r *Repository) Get(subjectID string) *user.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.SubjectID == subjectID {
			return clone(u)
		}
	}
	return nil
}

// Saves counts successful Save calls.
func (r *Repository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// Create inserts an unlinked user, failing with user.ErrAlreadyExists
// for a known subject.
func (r *Repository) Create(_ context.Context, subjectID string) (*user.User, error) {
	if r.Get(subjectID) != nil {
		return nil, user.ErrAlreadyExists
	}
	return r.Add(subjectID, ""), nil
}

func (r *Repository) FindBySubjectID(_ context.Context, subjectID string) (*user.User, error) {
	return r.find(func(u user.User) bool { return u.SubjectID == subjectID })
}

func (r *Repository) FindByToken(_ context.Context, token string) (*user.User, error) {
	if token == "" {
		return nil, user.ErrNotFound
	}
	return r.find(func(u user.User) bool { return u.HasToken(token) })
}

func (r *Repository) ExistsWithToken(ctx context.Context, token string) (bool, error) {
	_, err := r.FindByToken(ctx, token)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, user.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (r *Repository) Save(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.SaveErr != nil {
		return r.SaveErr
	}
	if _, ok := r.users[u.ID]; !ok {
		return user.ErrNotFound
	}
	if u.OAuthToken != nil {
		for id, other := range r.users {
			if id != u.ID && other.HasToken(*u.OAuthToken) {
				return user.ErrTokenConflict
			}
		}
	}

	stored := *clone(*u)
	stored.UpdatedAt = time.Now()
	r.users[u.ID] = stored
	r.saves++
	return nil
}

func (r *Repository) find(match func(user.User) bool) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FindErr != nil {
		return nil, r.FindErr
	}
	for _, u := range r.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func clone(u user.User) *user.User {
	if u.OAuthToken != nil {
		token := *u.OAuthToken
		u.OAuthToken = &token
	}
	return &u
}
