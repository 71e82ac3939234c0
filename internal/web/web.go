package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ghaggin/automl/internal/backend"
	"github.com/ghaggin/automl/internal/config"
	"github.com/ghaggin/automl/internal/middleware"
	"github.com/ghaggin/automl/internal/model"
	"github.com/ghaggin/automl/internal/session"
	"github.com/ghaggin/automl/internal/template"
	"github.com/ghaggin/automl/internal/transport"
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Jobs is the model-builder side of the backend.
type Jobs interface {
	SubmitJob(ctx context.Context, cred transport.Credential, d backend.Dataset) (string, error)
	Results(ctx context.Context, cred transport.Credential, jobID string) (*model.Results, error)
}

type Server struct {
	log       *zap.Logger
	store     *session.Store
	sessions  *middleware.SessionManager
	jobs      Jobs
	guard     *middleware.Guard
	maxUpload int64
	server    *http.Server
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Config   *config.Config
	Store    *session.Store
	Sessions *middleware.SessionManager
	Jobs     Jobs
}

func New(p Params) (*Server, error) {
	s := &Server{
		log:       p.Log.Named("web"),
		store:     p.Store,
		sessions:  p.Sessions,
		jobs:      p.Jobs,
		maxUpload: p.Config.Web.MaxUploadBytes,
	}
	s.guard = middleware.NewGuard(p.Store, http.HandlerFunc(s.loading))

	s.server = &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", p.Config.Web.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

func (s *Server) Routes() http.Handler {
	root := chi.NewRouter()
	root.Use(s.sessions.Wrap)

	// No Auth
	root.Group(func(r chi.Router) {
		r.Use(s.guard.PublicOnly)
		r.Get("/", s.landing)
		r.Post("/login", s.login)
		r.Post("/register", s.register)
	})

	// Auth
	root.Group(func(r chi.Router) {
		r.Use(s.guard.RequireAuth)
		r.Post("/logout", s.logout)
		r.Get("/home", s.home)
		r.Get("/build", s.build)
		r.Post("/build", s.submitBuild)
		r.Get("/results/{jobID}", s.results)
		r.Get("/results/{jobID}/download", s.download)
	})

	return root
}

// RegisterHooks starts restoring the session in the background, so the guard
// serves the loading page until it finishes, and starts the server.
func RegisterHooks(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.server.Shutdown,
	})
}

func (s *Server) Start(_ context.Context) error {
	go s.store.Restore(context.Background())

	s.log.Info("starting web", zap.String("addr", s.server.Addr))
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error starting server", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, code int, tmpl string, td *template.Data) {
	td.User = s.store.Current()
	td.Flashes = s.sessions.Flashes(r.Context())

	if err := template.RenderStatus(w, r, code, tmpl, td); err != nil {
		s.log.Error("failed rendering template", zap.String("template", tmpl), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) loading(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusServiceUnavailable, "loading.html", &template.Data{PageTitle: "loading"})
}
