package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/shion-ptpe/oauth/internal/user"
	"github.com/shion-ptpe/oauth/internal/utils"
)

const (
	stateBytes    = 32 // 256 bits
	verifierBytes = 32 // 43 characters, RFC 7636 minimum
)

// Exchanger talks to the authorization server.
type Exchanger interface {
	// AuthCodeURL returns the authorization endpoint URL for state.
	// A non-empty verifier adds a PKCE S256 challenge.
	AuthCodeURL(state string, verifier string) string

	// Exchange trades the code for an access token. A non-success
	// status from the token endpoint is reported as *StatusError.
	Exchange(ctx context.Context, code string, verifier string) (*Grant, error)
}

// Session is the part of the caller's session the flow reads and writes.
type Session interface {
	PendingState() (string, bool)
	SetPendingState(state string)
	PendingVerifier() string
	SetPendingVerifier(verifier string)
	ClearPendingState()

	Token() (string, bool)
	SetToken(token string)
	ClearToken() (string, bool)
}

// Callback holds the query parameters of the redirect back from the
// authorization server.
type Callback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

type Options struct {
	PKCE bool
}

// Service binds access tokens obtained through the authorization code
// flow to existing local users.
type Service struct {
	exchanger Exchanger
	users     user.Repository
	pkce      bool
	random    func(n int) (string, error)
}

func NewService(exchanger Exchanger, users user.Repository, opts Options) *Service {
	return &Service{
		exchanger: exchanger,
		users:     users,
		pkce:      opts.PKCE,
		random:    utils.RandomString,
	}
}

// BeginAuth stores a fresh state nonce in sess and returns the URL the
// browser must be redirected to.
func (s *Service) BeginAuth(sess Session) (string, error) {
	state, err := s.random(stateBytes)
	if err != nil {
		return "", fmt.Errorf("auth: generate state: %w", err)
	}
	sess.SetPendingState(state)

	var verifier string
	if s.pkce {
		verifier, err = s.random(verifierBytes)
		if err != nil {
			sess.ClearPendingState()
			return "", fmt.Errorf("auth: generate verifier: %w", err)
		}
		sess.SetPendingVerifier(verifier)
	}

	return s.exchanger.AuthCodeURL(state, verifier), nil
}

// CompleteAuth validates the callback, exchanges the code and binds the
// access token to the user named by the token response. Any error is a
// *Failure. The pending state is consumed once it has matched.
func (s *Service) CompleteAuth(ctx context.Context, sess Session, cb Callback) (*Grant, error) {
	if cb.Error != "" {
		return nil, fail(KindUpstream, "authorization server error: "+cb.Error+describe(cb.ErrorDescription), nil)
	}

	pending, ok := sess.PendingState()
	if !ok {
		return nil, fail(KindState, "no pending state in session", nil)
	}
	if subtle.ConstantTimeCompare([]byte(cb.State), []byte(pending)) != 1 {
		return nil, fail(KindState, "state mismatch", nil)
	}

	verifier := sess.PendingVerifier()
	sess.ClearPendingState()

	if cb.Code == "" {
		return nil, fail(KindUpstream, "callback missing code", nil)
	}

	grant, err := s.exchanger.Exchange(ctx, cb.Code, verifier)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			f := fail(KindTokenStatus, "token request rejected", err)
			f.Status = statusErr.StatusCode
			return nil, f
		}
		return nil, fail(KindUnexpected, "token request failed", err)
	}
	if grant.AccessToken == "" || grant.SubjectID == "" {
		return nil, fail(KindUnexpected, "token response missing access_token or user_id", nil)
	}

	u, err := s.users.FindBySubjectID(ctx, grant.SubjectID)
	if errors.Is(err, user.ErrNotFound) {
		f := fail(KindUnknownSubject, "no user for subject", nil)
		f.Subject = grant.SubjectID
		return nil, f
	}
	if err != nil {
		f := fail(KindUnexpected, "user lookup failed", err)
		f.Subject = grant.SubjectID
		return nil, f
	}

	// The record is written first so that a failed save leaves no
	// session token pointing at an unbound record.
	u.SetToken(grant.AccessToken)
	if err := s.users.Save(ctx, u); err != nil {
		f := fail(KindUnexpected, "user save failed", err)
		f.Subject = grant.SubjectID
		return nil, f
	}

	sess.SetToken(grant.AccessToken)

	return grant, nil
}

// CurrentSession returns the session token if a user currently holds it.
func (s *Service) CurrentSession(ctx context.Context, sess Session) (string, bool, error) {
	token, ok := sess.Token()
	if !ok {
		return "", false, nil
	}

	exists, err := s.users.ExistsWithToken(ctx, token)
	if err != nil {
		return "", false, fmt.Errorf("auth: check session token: %w", err)
	}
	if !exists {
		return "", false, nil
	}

	return token, true, nil
}

// CurrentUser returns the user bound to the session token.
// It returns user.ErrNotFound for anonymous or stale sessions.
func (s *Service) CurrentUser(ctx context.Context, sess Session) (*user.User, error) {
	token, ok := sess.Token()
	if !ok {
		return nil, user.ErrNotFound
	}
	return s.users.FindByToken(ctx, token)
}

// Logout drops the session token and unlinks it from its user.
// Calling it on an anonymous session is a no-op.
func (s *Service) Logout(ctx context.Context, sess Session) error {
	token, ok := sess.ClearToken()
	if !ok {
		return nil
	}

	u, err := s.users.FindByToken(ctx, token)
	if errors.Is(err, user.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("auth: logout lookup: %w", err)
	}

	u.ClearToken()
	if err := s.users.Save(ctx, u); err != nil {
		return fmt.Errorf("auth: logout save: %w", err)
	}

	return nil
}

func describe(desc string) string {
	if desc == "" {
		return ""
	}
	return " (" + desc + ")"
}
