package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/shion-ptpe/oauth/internal/db"
)

var ErrAlreadyExists = errors.New("user: subject already registered")

const (
	uniqueViolation = pq.ErrorCode("23505")

	tokenIndex      = "users_oauth_token_unique"
	subjectIndex    = "users_oauth_subject_id_unique"
	selectUserQuery = `
		SELECT id, oauth_subject_id, oauth_token, created_at, updated_at
		FROM public.users
	`
)

// PostgresRepository stores users in the users table.
type PostgresRepository struct {
	db *db.DB
}

func NewPostgresRepository(db *db.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindBySubjectID(ctx context.Context, subjectID string) (*User, error) {
	return r.findOne(ctx, selectUserQuery+`WHERE oauth_subject_id = $1`, subjectID)
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, selectUserQuery+`WHERE oauth_token = $1`, token)
}

func (r *PostgresRepository) ExistsWithToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM public.users WHERE oauth_token = $1
		)
	`, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user: exists by token: %w", err)
	}

	return exists, nil
}

// Save writes the mutable token column of an existing user.
func (r *PostgresRepository) Save(ctx context.Context, u *User) error {
	if u == nil {
		return errors.New("user: nil user")
	}

	var token sql.NullString
	if u.OAuthToken != nil {
		token = sql.NullString{String: *u.OAuthToken, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, `
		UPDATE public.users
		SET oauth_token = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING updated_at
	`, token, u.ID).Scan(&u.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if isUniqueViolation(err, tokenIndex) {
		return ErrTokenConflict
	}
	if err != nil {
		return fmt.Errorf("user: save %s: %w", u.ID, err)
	}

	return nil
}

// Create registers a new, unlinked user for subjectID.
func (r *PostgresRepository) Create(ctx context.Context, subjectID string) (*User, error) {
	if subjectID == "" {
		return nil, errors.New("user: empty subject id")
	}

	u := &User{SubjectID: subjectID}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO public.users (oauth_subject_id)
		VALUES ($1)
		RETURNING id, created_at, updated_at
	`, subjectID).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)

	if isUniqueViolation(err, subjectIndex) {
		return nil, ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("user: create: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (*User, error) {
	var (
		u     User
		token sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.SubjectID,
		&token,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user: query: %w", err)
	}

	if token.Valid {
		u.SetToken(token.String)
	}

	return &u, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
}
