package session

import "time"

// Session is the per-browser state of the OAuth flow: a pending CSRF
// state (with its optional PKCE verifier) between redirect and callback,
// and the bound access token once authenticated.
type Session struct {
	ID string `json:"-"`

	State       string    `json:"state,omitempty"`
	Verifier    string    `json:"verifier,omitempty"`
	AccessToken string    `json:"token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	isNew bool
	dirty bool
}

// New returns an unsaved session with the given id.
func New(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		isNew:     true,
	}
}

func (s *Session) PendingState() (string, bool) {
	return s.State, s.State != ""
}

// SetPendingState overwrites any earlier pending state and drops its verifier.
func (s *Session) SetPendingState(state string) {
	s.State = state
	s.Verifier = ""
	s.dirty = true
}

func (s *Session) PendingVerifier() string {
	return s.Verifier
}

func (s *Session) SetPendingVerifier(verifier string) {
	s.Verifier = verifier
	s.dirty = true
}

func (s *Session) ClearPendingState() {
	if s.State == "" && s.Verifier == "" {
		return
	}
	s.State = ""
	s.Verifier = ""
	s.dirty = true
}

func (s *Session) Token() (string, bool) {
	return s.AccessToken, s.AccessToken != ""
}

func (s *Session) SetToken(token string) {
	s.AccessToken = token
	s.dirty = true
}

// ClearToken removes the token and returns the previous value.
func (s *Session) ClearToken() (string, bool) {
	prev := s.AccessToken
	if prev == "" {
		return "", false
	}
	s.AccessToken = ""
	s.dirty = true
	return prev, true
}

// IsEmpty reports whether the session carries nothing worth storing.
func (s *Session) IsEmpty() bool {
	return s.State == "" && s.Verifier == "" && s.AccessToken == ""
}

// Dirty reports whether the session changed since it was loaded or saved.
func (s *Session) Dirty() bool {
	return s.dirty
}
