package auth

import (
	"fmt"
)

// Kind classifies why a callback could not be completed.
type Kind string

const (
	// KindUpstream: the authorization server reported an error, or the
	// callback carried no code.
	KindUpstream Kind = "upstream_error"
	// KindState: no pending state in the session, or it did not match.
	KindState Kind = "state_invalid"
	// KindTokenStatus: the token endpoint answered with a non-success status.
	KindTokenStatus Kind = "token_status"
	// KindUnknownSubject: no local user is bound to the returned subject.
	KindUnknownSubject Kind = "unknown_subject"
	// KindUnexpected: transport, decoding or persistence failure.
	KindUnexpected Kind = "unexpected"
)

// Failure is returned by CompleteAuth. Every failure leaves the user
// record and the session token untouched.
type Failure struct {
	Kind    Kind
	Reason  string
	Subject string
	Status  int
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("auth: %s: %s: %v", f.Kind, f.Reason, f.Err)
	}
	return fmt.Sprintf("auth: %s: %s", f.Kind, f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Fields returns structured log fields without secrets.
func (f *Failure) Fields() map[string]any {
	fields := map[string]any{
		"kind":   string(f.Kind),
		"reason": f.Reason,
	}
	if f.Subject != "" {
		fields["subject_id"] = f.Subject
	}
	if f.Status != 0 {
		fields["status"] = f.Status
	}
	if f.Err != nil {
		fields["error"] = f.Err.Error()
	}
	return fields
}

func fail(kind Kind, reason string, err error) *Failure {
	return &Failure{Kind: kind, Reason: reason, Err: err}
}
