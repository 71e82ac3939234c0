package api

import (
	"context"
	"errors"
	"strings"

	"github.com/ghaggin/automl/internal/model"
	"github.com/ghaggin/automl/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errMissingFields      = errors.New("email and password are required")
)

type Controller struct {
	repo   repository.Repository
	tokens *Tokens
	log    *zap.Logger
}

type ControllerParams struct {
	fx.In

	Logger *zap.Logger
	Repo   repository.Repository
	Tokens *Tokens
}

func NewController(p ControllerParams) (*Controller, error) {
	return &Controller{
		log:    p.Logger,
		repo:   p.Repo,
		tokens: p.Tokens,
	}, nil
}

func (c *Controller) ValidateLogin(ctx context.Context, email string, password string) (*model.Identity, error) {
	if email == "" || password == "" {
		return nil, errMissingFields
	}

	u, err := c.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, errInvalidCredentials
	}

	return c.identity(u)
}

// CreateUser registers a new account. An empty name falls back to the local
// part of the email.
func (c *Controller) CreateUser(ctx context.Context, name, email, password string) (*model.Identity, error) {
	if email == "" || password == "" {
		return nil, errMissingFields
	}
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}

	if err := c.repo.AddUser(ctx, u); err != nil {
		return nil, err
	}

	c.log.Info("user registered", zap.String("uid", u.ID))
	return c.identity(u)
}

func (c *Controller) identity(u *model.User) (*model.Identity, error) {
	token, err := c.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return nil, err
	}

	return &model.Identity{
		User:  u.Session(),
		Token: token,
	}, nil
}
