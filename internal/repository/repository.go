package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghaggin/automl/internal/config"
	"github.com/ghaggin/automl/internal/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	AddUser(ctx context.Context, user *model.User) error
	GetUsers(ctx context.Context) ([]model.User, error)
}

type Params struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Log    *zap.Logger
}

func New(p Params) (Repository, error) {
	switch p.Config.API.Repo.Driver {
	case config.RepoJSON:
		return NewJSON(p)
	case config.RepoPostgres:
		return NewPostgres(p)
	}
	return nil, fmt.Errorf("unknown repo driver %q", p.Config.API.Repo.Driver)
}
