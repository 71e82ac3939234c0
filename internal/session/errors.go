package session

import "errors"

var (
	ErrEmptyCredentials = errors.New("email and password are required")
	// ErrRejected is returned by an Authenticator that declined the
	// credentials.
	ErrRejected       = errors.New("credentials rejected")
	ErrAuthInProgress = errors.New("another sign-in is in progress")
	// ErrSuperseded means a logout ran while the sign-in was waiting on the
	// backend; the late result was dropped.
	ErrSuperseded = errors.New("sign-in superseded by logout")

	errBadIdentity = errors.New("backend returned an incomplete identity")
)

// AuthError is returned by Login and Register. The current session is left
// as it was.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
