package session

import (
	"context"

	"github.com/ghaggin/automl/internal/model"
)

type State int

const (
	Loading State = iota
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return "unknown"
}

// Authenticator is the authentication backend.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*model.Identity, error)
	Register(ctx context.Context, name, email, password string) (*model.Identity, error)
}

type Level int

const (
	Success Level = iota
	Failure
)

func (l Level) String() string {
	if l == Failure {
		return "error"
	}
	return "success"
}

type Notification struct {
	Level   Level
	Message string
}

// Notifier shows fire-and-forget messages to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
