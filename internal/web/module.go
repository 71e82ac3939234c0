package web

import (
	"github.com/ghaggin/automl/internal/backend"
	"github.com/ghaggin/automl/internal/middleware"
	"github.com/ghaggin/automl/internal/session"
	"github.com/ghaggin/automl/internal/storage"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		New,
		storage.New,
		backend.New,
		session.New,
		middleware.NewSessionManager,
		func(c *backend.Client) session.Authenticator { return c },
		func(c *backend.Client) Jobs { return c },
		func(s *middleware.SessionManager) session.Notifier { return s },
	),
)
