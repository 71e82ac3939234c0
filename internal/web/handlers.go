package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ghaggin/automl/internal/backend"
	"github.com/ghaggin/automl/internal/middleware"
	"github.com/ghaggin/automl/internal/model"
	"github.com/ghaggin/automl/internal/session"
	"github.com/ghaggin/automl/internal/template"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Server) landing(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "landing.html", &template.Data{PageTitle: "welcome"})
}

// login and register report failures through the notifier, so both simply
// redirect.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := s.store.Login(r.Context(), strings.TrimSpace(r.PostFormValue("email")), r.PostFormValue("password"))
	if err != nil {
		http.Redirect(w, r, middleware.PublicRoute, http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, middleware.HomeRoute, http.StatusSeeOther)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := s.store.Register(r.Context(),
		strings.TrimSpace(r.PostFormValue("name")),
		strings.TrimSpace(r.PostFormValue("email")),
		r.PostFormValue("password"),
	)
	if err != nil {
		http.Redirect(w, r, middleware.PublicRoute, http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, middleware.HomeRoute, http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Logout(r.Context()); err != nil {
		s.log.Error("logout did not clear storage", zap.Error(err))
	}
	http.Redirect(w, r, middleware.PublicRoute, http.StatusSeeOther)
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "home.html", &template.Data{PageTitle: "home"})
}

func (s *Server) build(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "build.html", &template.Data{PageTitle: "build"})
}

func (s *Server) submitBuild(w http.ResponseWriter, r *http.Request) {
	td := &template.Data{PageTitle: "build"}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		td.Error = "The upload could not be read"
		s.render(w, r, http.StatusBadRequest, "build.html", td)
		return
	}

	td.Query = strings.TrimSpace(r.FormValue("query"))

	f, fh, err := r.FormFile("file")
	if err != nil || td.Query == "" {
		td.Error = "Please upload a file and enter your query"
		s.render(w, r, http.StatusBadRequest, "build.html", td)
		return
	}
	defer f.Close()

	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		td.Error = "Please upload a CSV file"
		s.render(w, r, http.StatusBadRequest, "build.html", td)
		return
	}

	jobID, err := s.jobs.SubmitJob(r.Context(), s.store.Credential(), backend.Dataset{
		Filename: fh.Filename,
		Query:    td.Query,
		Body:     f,
	})
	if errors.Is(err, backend.ErrUnauthorized) {
		s.expired(w, r, err)
		return
	}
	if err != nil {
		s.log.Error("failed submitting job", zap.Error(err))
		td.Error = "Building the model failed, please try again"
		s.render(w, r, http.StatusBadGateway, "build.html", td)
		return
	}

	http.Redirect(w, r, "/results/"+jobID, http.StatusSeeOther)
}

func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	jobID, res, ok := s.fetchResults(w, r)
	if !ok {
		return
	}

	s.render(w, r, http.StatusOK, "results.html", &template.Data{
		PageTitle: "results",
		JobID:     jobID,
		Results:   res,
	})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	jobID, res, ok := s.fetchResults(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="automl-results-%s.json"`, jobID))

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		s.log.Warn("failed writing download", zap.Error(err))
	}
}

// fetchResults writes the error reply itself when it returns false.
func (s *Server) fetchResults(w http.ResponseWriter, r *http.Request) (string, *model.Results, bool) {
	jobID := chi.URLParam(r, "jobID")
	if _, err := uuid.Parse(jobID); err != nil {
		http.NotFound(w, r)
		return "", nil, false
	}

	res, err := s.jobs.Results(r.Context(), s.store.Credential(), jobID)
	if errors.Is(err, backend.ErrJobNotFound) {
		http.NotFound(w, r)
		return "", nil, false
	}
	if errors.Is(err, backend.ErrUnauthorized) {
		s.expired(w, r, err)
		return "", nil, false
	}
	if err != nil {
		s.log.Error("failed fetching results", zap.String("job", jobID), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return "", nil, false
	}

	return jobID, res, true
}

// expired drops a session whose token the api has stopped accepting.
func (s *Server) expired(w http.ResponseWriter, r *http.Request, cause error) {
	s.log.Info("credential rejected by api, signing out", zap.Error(cause))
	if err := s.store.Logout(r.Context()); err != nil {
		s.log.Error("logout did not clear storage", zap.Error(err))
	}
	s.sessions.Notify(r.Context(), session.Notification{
		Level:   session.Failure,
		Message: "Your session has expired, please sign in again",
	})
	http.Redirect(w, r, middleware.PublicRoute, http.StatusSeeOther)
}
