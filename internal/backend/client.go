// Package backend talks to the authentication and job api.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ghaggin/automl/internal/config"
	"github.com/ghaggin/automl/internal/model"
	"github.com/ghaggin/automl/internal/session"
	"github.com/ghaggin/automl/internal/transport"
)

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrUnauthorized means the api no longer accepts the caller's token.
	ErrUnauthorized = errors.New("credential not accepted")
)

type Client struct {
	t *transport.Client
}

func New(c *config.Config) (*Client, error) {
	t, err := transport.New(c.Web.BackendURL, &http.Client{Timeout: c.Web.BackendTimeout})
	if err != nil {
		return nil, err
	}
	return &Client{t: t}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	id := &model.Identity{}
	err := c.t.Do(ctx, "", http.MethodPost, "/auth/login", loginRequest{
		Email:    email,
		Password: password,
	}, id)
	if err != nil {
		return nil, authErr(err)
	}
	return id, nil
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*model.Identity, error) {
	id := &model.Identity{}
	err := c.t.Do(ctx, "", http.MethodPost, "/auth/register", registerRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}, id)
	if err != nil {
		return nil, authErr(err)
	}
	return id, nil
}

// authErr maps the replies the api uses to decline credentials onto
// session.ErrRejected.
func authErr(err error) error {
	var se *transport.StatusError
	if !errors.As(err, &se) {
		return err
	}

	switch se.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict:
		return fmt.Errorf("%w: %s", session.ErrRejected, se.Message)
	}
	return err
}

// Dataset is an uploaded training file plus the user's request.
type Dataset struct {
	Filename string
	Query    string
	Body     io.Reader
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

func (c *Client) SubmitJob(ctx context.Context, cred transport.Credential, d Dataset) (string, error) {
	out := &submitResponse{}
	err := c.t.Upload(ctx, cred, "/api/build-model",
		map[string]string{"query": d.Query}, "file", d.Filename, d.Body, out)
	if err != nil {
		return "", jobErr(err)
	}
	return out.JobID, nil
}

func (c *Client) Results(ctx context.Context, cred transport.Credential, jobID string) (*model.Results, error) {
	res := &model.Results{}
	err := c.t.Do(ctx, cred, http.MethodGet, "/api/results/"+jobID, nil, res)

	if err != nil {
		return nil, jobErr(err)
	}
	return res, nil
}

func jobErr(err error) error {
	var se *transport.StatusError
	if !errors.As(err, &se) {
		return err
	}

	switch se.Code {
	case http.StatusNotFound:
		return ErrJobNotFound
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return err
}
