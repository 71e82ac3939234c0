package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ghaggin/automl/internal/config"
	"github.com/ghaggin/automl/internal/repository"
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxUploadBytes = 32 << 20

type claimsKey struct{}

// Server is the development authentication and job backend.
type Server struct {
	log        *zap.Logger
	controller *Controller
	tokens     *Tokens
	jobs       *Jobs
	server     *http.Server
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     *config.Config
	Controller *Controller
	Tokens     *Tokens
	Jobs       *Jobs
}

func New(p Params) (*Server, error) {
	s := &Server{
		log:        p.Log.Named("api"),
		controller: p.Controller,
		tokens:     p.Tokens,
		jobs:       p.Jobs,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", p.Config.API.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

func (s *Server) Routes() http.Handler {
	root := chi.NewRouter()

	// No Auth
	root.Group(func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)
	})

	// Auth
	root.Group(func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Post("/api/build-model", s.handleBuildModel)
		r.Get("/api/results/{jobID}", s.handleResults)
	})

	return root
}

// RegisterHooks should be invoked by fx
func RegisterHooks(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.server.Shutdown,
	})
}

func (s *Server) Start(_ context.Context) error {
	s.log.Info("starting api", zap.String("addr", s.server.Addr))
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error starting server", zap.Error(err))
		}
	}()
	return nil
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	id, err := s.controller.ValidateLogin(r.Context(), in.Email, in.Password)
	switch {
	case errors.Is(err, errMissingFields):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case err != nil:
		s.log.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	default:
		writeJSON(w, http.StatusOK, id)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	id, err := s.controller.CreateUser(r.Context(), in.Name, in.Email, in.Password)
	switch {
	case errors.Is(err, errMissingFields):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrExists):
		writeError(w, http.StatusConflict, "account already exists")
	case err != nil:
		s.log.Error("register failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	default:
		writeJSON(w, http.StatusCreated, id)
	}
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.tokens.Verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

func (s *Server) handleBuildModel(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "malformed upload")
		return
	}

	query := strings.TrimSpace(r.FormValue("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	f, fh, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	f.Close()

	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "only csv files are accepted")
		return
	}

	job := s.jobs.Create(claims.Subject, fh.Filename, query)
	s.log.Info("job created", zap.String("job", job.ID), zap.String("uid", claims.Subject))

	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": job.ID})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	job, ok := s.jobs.Get(claims.Subject, chi.URLParam(r, "jobID"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, sampleResults(job, s.jobs.now()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
