// Package session owns the signed-in identity of the front-end and keeps it in
// persisted storage so it survives a restart.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ghaggin/automl/internal/model"
	"github.com/ghaggin/automl/internal/storage"
	"github.com/ghaggin/automl/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Persisted storage keys. They are always written and deleted together.
const (
	TokenKey = "token"
	UserKey  = "user"
)

type op struct {
	name    string
	success string
	failure string
}

var (
	opLogin    = op{"login", "Login successful!", "Login failed"}
	opRegister = op{"register", "Registration successful!", "Registration failed"}
)

type Store struct {
	auth     Authenticator
	storage  storage.Storage
	notifier Notifier
	log      *zap.Logger

	restoreOnce sync.Once
	ready       chan struct{}
	inflight    atomic.Bool

	// writeMu serialises persisted writes and guards generation.
	writeMu    sync.Mutex
	generation uint64

	mu      sync.RWMutex
	loading bool
	current *model.Session
	token   transport.Credential
}

type Params struct {
	fx.In

	Auth     Authenticator
	Storage  storage.Storage
	Notifier Notifier
	Log      *zap.Logger
}

func New(p Params) *Store {
	return &Store{
		auth:     p.Auth,
		storage:  p.Storage,
		notifier: p.Notifier,
		log:      p.Log.Named("session"),
		ready:    make(chan struct{}),
		loading:  true,
	}
}

// Restore loads the persisted credential. Only the first call does anything.
// Unreadable or malformed data leaves the store anonymous; either way the
// loading flag is cleared when it returns.
func (s *Store) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() {
		sess, token := s.load(ctx)

		s.mu.Lock()
		s.current = sess
		s.token = token
		s.loading = false
		s.mu.Unlock()

		close(s.ready)

		if sess != nil {
			s.log.Info("session restored", zap.String("uid", sess.ID))
		} else {
			s.log.Info("no session to restore")
		}
	})
}

func (s *Store) load(ctx context.Context) (*model.Session, transport.Credential) {
	token, err := s.storage.Get(ctx, TokenKey)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && token == "") {
		s.purge(ctx, "user record without token")
		return nil, ""
	}
	if errors.Is(err, storage.ErrCorrupt) {
		s.purge(ctx, "corrupt storage document")
		return nil, ""
	}
	if err != nil {
		s.log.Warn("failed reading persisted token", zap.Error(err))
		return nil, ""
	}

	raw, err := s.storage.Get(ctx, UserKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.purge(ctx, "token without user record")
		return nil, ""
	}
	if err != nil {
		s.log.Warn("failed reading persisted user", zap.Error(err))
		return nil, ""
	}

	var sess model.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.purge(ctx, "malformed user record")
		return nil, ""
	}
	if sess.ID == "" {
		s.purge(ctx, "user record without id")
		return nil, ""
	}

	return &sess, transport.Credential(token)
}

// purge drops a half-written or corrupt credential.
func (s *Store) purge(ctx context.Context, reason string) {
	if err := s.storage.Delete(ctx, TokenKey, UserKey); err != nil {
		s.log.Warn("failed purging persisted credential", zap.String("reason", reason), zap.Error(err))
	}
}

// Ready is closed once Restore has finished.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Snapshot returns the state and a copy of the current record, nil unless
// Authenticated.
func (s *Store) Snapshot() (State, *model.Session) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.loading {
		return Loading, nil
	}
	if s.current == nil {
		return Anonymous, nil
	}

	cp := *s.current
	return Authenticated, &cp
}

func (s *Store) State() State {
	st, _ := s.Snapshot()
	return st
}

func (s *Store) Current() *model.Session {
	_, sess := s.Snapshot()
	return sess
}

// Credential is the bearer token to attach to outbound requests made on
// behalf of the current session.
func (s *Store) Credential() transport.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) Login(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, opLogin, email, password, func(ctx context.Context) (*model.Identity, error) {
		return s.auth.Login(ctx, email, password)
	})
}

func (s *Store) Register(ctx context.Context, name, email, password string) error {
	return s.authenticate(ctx, opRegister, email, password, func(ctx context.Context) (*model.Identity, error) {
		return s.auth.Register(ctx, name, email, password)
	})
}

func (s *Store) authenticate(ctx context.Context, o op, email, password string, call func(context.Context) (*model.Identity, error)) error {
	if err := s.wait(ctx); err != nil {
		return s.fail(ctx, o, err)
	}

	if email == "" || password == "" {
		return s.fail(ctx, o, ErrEmptyCredentials)
	}

	if !s.inflight.CompareAndSwap(false, true) {
		return s.fail(ctx, o, ErrAuthInProgress)
	}
	defer s.inflight.Store(false)

	s.writeMu.Lock()
	gen := s.generation
	s.writeMu.Unlock()

	id, err := call(ctx)
	if err != nil {
		return s.fail(ctx, o, err)
	}
	if id == nil || id.Token == "" || id.User.ID == "" {
		return s.fail(ctx, o, errBadIdentity)
	}

	b, err := json.Marshal(id.User)
	if err != nil {
		return s.fail(ctx, o, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.generation != gen {
		return s.fail(ctx, o, ErrSuperseded)
	}

	err = s.storage.SetAll(ctx, map[string]string{
		TokenKey: id.Token,
		UserKey:  string(b),
	})
	if err != nil {
		return s.fail(ctx, o, err)
	}

	sess := id.User
	s.mu.Lock()
	s.current = &sess
	s.token = transport.Credential(id.Token)
	s.mu.Unlock()

	s.log.Info(o.name+" succeeded", zap.String("uid", sess.ID))
	s.notifier.Notify(ctx, Notification{Level: Success, Message: o.success})
	return nil
}

func (s *Store) fail(ctx context.Context, o op, err error) error {
	s.log.Warn(o.name+" failed", zap.Error(err))
	s.notifier.Notify(ctx, Notification{Level: Failure, Message: o.failure})
	return &AuthError{Op: o.name, Err: err}
}

// Logout clears the session and its persisted credential. The in-memory
// session is dropped even if storage cannot be cleared. Logging out with no
// session is a no-op.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.generation++

	s.mu.Lock()
	active := s.current != nil
	s.current = nil
	s.token = ""
	s.mu.Unlock()

	if err := s.storage.Delete(ctx, TokenKey, UserKey); err != nil {
		s.log.Error("failed clearing persisted credential", zap.Error(err))
		s.notifier.Notify(ctx, Notification{Level: Failure, Message: "Logout failed"})
		return err
	}

	if active {
		s.log.Info("logged out")
		s.notifier.Notify(ctx, Notification{Level: Success, Message: "Logged out successfully"})
	}
	return nil
}

func (s *Store) wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
