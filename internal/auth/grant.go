package auth

import "fmt"

// Grant is the result of a successful authorization code exchange.
// It contains facts reported by the authorization server only.
type Grant struct {
	AccessToken string
	TokenType   string
	Scope       string
	SubjectID   string // user_id in the token response
}

// StatusError reports a token endpoint response with an unexpected
// HTTP status.
type StatusError struct {
	StatusCode int
	Body       string // truncated response body, for logs
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("auth: token endpoint returned status %d", e.StatusCode)
}
