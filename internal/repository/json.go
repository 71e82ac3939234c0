package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ghaggin/automl/internal/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	errTableFileIsDir = errors.New("table file is dir")
	errTableCorrupt   = errors.New("table file is corrupt")
)

type Data struct {
	Users []model.User `json:"users"`
}

type jsonRepo struct {
	path string
	log  *zap.Logger

	mu   sync.RWMutex
	data *Data
}

func NewJSON(p Params) (Repository, error) {
	r := newJSONRepo(p.Config.API.Repo.Path, p.Log)

	p.LC.Append(fx.Hook{
		OnStop: r.stop,
	})

	return r, nil
}

// OpenJSON loads the repo at path without tying it to an fx lifecycle.
func OpenJSON(path string, log *zap.Logger) Repository {
	return newJSONRepo(path, log)
}

func newJSONRepo(path string, log *zap.Logger) *jsonRepo {
	r := &jsonRepo{
		path: path,
		log:  log,
		data: &Data{},
	}

	err := r.readfile()
	switch {
	case err == nil, errors.Is(err, os.ErrNotExist):
	case errors.Is(err, errTableCorrupt):
		r.data = &Data{}
		r.quarantine(err)
	default:
		// only log, data will be empty and will overwrite when
		// the service is stopped
		r.log.Warn("failed reading json repo data file", zap.Error(err))
	}

	return r
}

// quarantine moves an undecodable data file to <path>.corrupt so the next
// write does not replace the accounts it still holds.
func (r *jsonRepo) quarantine(cause error) {
	aside := r.path + ".corrupt"
	if err := os.Rename(r.path, aside); err != nil {
		r.log.Error("failed moving corrupt json repo data file aside", zap.Error(cause), zap.NamedError("rename", err))
		return
	}
	r.log.Warn("json repo data file is corrupt, starting empty", zap.String("moved_to", aside), zap.Error(cause))
}

func (r *jsonRepo) stop(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writefile()
}

func (r *jsonRepo) readfile() error {
	finfo, err := os.Stat(r.path)
	if err != nil {
		return err
	}

	if finfo.IsDir() {
		return errTableFileIsDir
	}

	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&r.data); err != nil {
		return fmt.Errorf("%w: %w", errTableCorrupt, err)
	}
	return nil
}

func (r *jsonRepo) writefile() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return err
	}

	b, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(r.path, b, 0o600)
}

func (r *jsonRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.data.Users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}

	return nil, ErrNotFound
}

// AddUser appends user and writes the file through.
func (r *jsonRepo) AddUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.data.Users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrExists
		}
	}

	r.data.Users = append(r.data.Users, *user)

	if err := r.writefile(); err != nil {
		r.log.Error("failed writing json repo data file", zap.Error(err))
	}
	return nil
}

func (r *jsonRepo) GetUsers(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]model.User, len(r.data.Users))
	copy(users, r.data.Users)
	return users, nil
}
