package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ghaggin/automl/internal/model"
	"github.com/ghaggin/automl/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAuth struct {
	mu    sync.Mutex
	users map[string]string // email -> password
	block chan struct{}
	calls int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[string]string{"a@b.com": "secret"}}
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*model.Identity, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	pw, ok := f.users[email]
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	if !ok || pw != password {
		return nil, fmt.Errorf("%w: invalid credentials", ErrRejected)
	}
	return &model.Identity{
		User:  model.Session{ID: "u-" + email, Email: email, Name: "a"},
		Token: "tok-" + email,
	}, nil
}

func (f *fakeAuth) Register(_ context.Context, name, email, password string) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[email]; ok {
		return nil, fmt.Errorf("%w: account exists", ErrRejected)
	}
	f.users[email] = password
	return &model.Identity{
		User:  model.Session{ID: "u-" + email, Email: email, Name: name},
		Token: "tok-" + email,
	}, nil
}

type recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recorder) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Notification{}
	}
	return r.sent[len(r.sent)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// brokenStorage fails the calls that have an error set.
type brokenStorage struct {
	storage.Storage
	getErr error
	setErr error
	delErr error
}

func (b *brokenStorage) Get(ctx context.Context, key string) (string, error) {
	if b.getErr != nil {
		return "", b.getErr
	}
	return b.Storage.Get(ctx, key)
}

func (b *brokenStorage) SetAll(ctx context.Context, kv map[string]string) error {
	if b.setErr != nil {
		return b.setErr
	}
	return b.Storage.SetAll(ctx, kv)
}

func (b *brokenStorage) Delete(ctx context.Context, keys ...string) error {
	if b.delErr != nil {
		return b.delErr
	}
	return b.Storage.Delete(ctx, keys...)
}

func newTestStore(st storage.Storage, auth Authenticator) (*Store, *recorder) {
	rec := &recorder{}
	return New(Params{
		Auth:     auth,
		Storage:  st,
		Notifier: rec,
		Log:      zap.NewNop(),
	}), rec
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestRestore_empty(t *testing.T) {
	assert := assert.New(t)

	s, _ := newTestStore(storage.NewMemory(), newFakeAuth())
	assert.True(s.Loading())
	assert.Equal(Loading, s.State())
	assert.False(isClosed(s.Ready()))

	s.Restore(context.Background())

	assert.False(s.Loading())
	assert.True(isClosed(s.Ready()))
	assert.Equal(Anonymous, s.State())
	assert.Nil(s.Current())
	assert.Empty(s.Credential())
}

func TestRestore_roundTrip(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	want := model.Session{ID: "42", Email: "a@b.com", Name: "Ada"}
	b, err := json.Marshal(want)
	require.NoError(err)

	mem := storage.NewMemory()
	require.NoError(mem.SetAll(ctx, map[string]string{TokenKey: "tok", UserKey: string(b)}))

	s, _ := newTestStore(mem, newFakeAuth())
	s.Restore(ctx)

	st, got := s.Snapshot()
	assert.Equal(Authenticated, st)
	require.NotNil(got)
	assert.Equal(want, *got)
	assert.EqualValues("tok", s.Credential())
}

func TestRestore_malformed(t *testing.T) {
	tests := []struct {
		name string
		kv   map[string]string
	}{
		{"bad json", map[string]string{TokenKey: "tok", UserKey: "{not json"}},
		{"no id", map[string]string{TokenKey: "tok", UserKey: `{"email":"a@b.com"}`}},
		{"user without token", map[string]string{UserKey: `{"id":"1"}`}},
		{"token without user", map[string]string{TokenKey: "tok"}},
		{"empty token", map[string]string{TokenKey: "", UserKey: `{"id":"1"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()

			mem := storage.NewMemory()
			require.NoError(t, mem.SetAll(ctx, tt.kv))

			s, _ := newTestStore(mem, newFakeAuth())
			s.Restore(ctx)

			assert.Equal(Anonymous, s.State())
			assert.False(s.Loading())
			assert.Equal(0, mem.Len(), "stale credential should be purged")
		})
	}
}

func TestRestore_corruptFileRecovers(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "credential.json")
	require.NoError(os.WriteFile(path, []byte("{not json"), 0o600))

	s, _ := newTestStore(storage.NewFile(path), newFakeAuth())
	s.Restore(ctx)
	assert.Equal(Anonymous, s.State())

	require.NoError(s.Login(ctx, "a@b.com", "secret"))
	assert.Equal(Authenticated, s.State())

	again, _ := newTestStore(storage.NewFile(path), newFakeAuth())
	again.Restore(ctx)
	st, got := again.Snapshot()
	assert.Equal(Authenticated, st)
	require.NotNil(got)
	assert.Equal("a@b.com", got.Email)
}

func TestRestore_storageUnavailable(t *testing.T) {
	st := &brokenStorage{Storage: storage.NewMemory(), getErr: storage.ErrUnavailable}
	s, _ := newTestStore(st, newFakeAuth())

	s.Restore(context.Background())

	assert.Equal(t, Anonymous, s.State())
	assert.True(t, isClosed(s.Ready()))
}

func TestRestore_once(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	mem := storage.NewMemory()
	s, _ := newTestStore(mem, newFakeAuth())
	s.Restore(ctx)

	require.NoError(mem.SetAll(ctx, map[string]string{TokenKey: "tok", UserKey: `{"id":"1"}`}))
	s.Restore(ctx)

	require.Equal(Anonymous, s.State())
}

func TestLogin(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	mem := storage.NewMemory()
	s, rec := newTestStore(mem, newFakeAuth())
	s.Restore(ctx)

	require.NoError(s.Login(ctx, "a@b.com", "secret"))

	st, sess := s.Snapshot()
	assert.Equal(Authenticated, st)
	assert.Equal("a@b.com", sess.Email)
	assert.EqualValues("tok-a@b.com", s.Credential())
	assert.Equal(Notification{Level: Success, Message: "Login successful!"}, rec.last())

	// a fresh store over the same storage sees the same record
	s2, _ := newTestStore(mem, newFakeAuth())
	s2.Restore(ctx)
	assert.Equal(sess, s2.Current())
	assert.Equal(s.Credential(), s2.Credential())
}

func TestLogin_failures(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		storage  storage.Storage
		want     error
	}{
		{"empty email", "", "secret", storage.NewMemory(), ErrEmptyCredentials},
		{"empty password", "a@b.com", "", storage.NewMemory(), ErrEmptyCredentials},
		{"rejected", "a@b.com", "wrong", storage.NewMemory(), ErrRejected},
		{"storage down", "a@b.com", "secret",
			&brokenStorage{Storage: storage.NewMemory(), setErr: storage.ErrUnavailable}, storage.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()

			s, rec := newTestStore(tt.storage, newFakeAuth())
			s.Restore(ctx)

			err := s.Login(ctx, tt.email, tt.password)

			var ae *AuthError
			require.True(t, errors.As(err, &ae))
			assert.Equal("login", ae.Op)
			assert.ErrorIs(err, tt.want)
			assert.Equal(Anonymous, s.State())
			assert.Empty(s.Credential())
			assert.Equal(Notification{Level: Failure, Message: "Login failed"}, rec.last())
		})
	}
}

func TestLogin_rejectedKeepsExistingSession(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s, _ := newTestStore(storage.NewMemory(), newFakeAuth())
	s.Restore(ctx)
	require.NoError(s.Login(ctx, "a@b.com", "secret"))

	require.Error(s.Login(ctx, "a@b.com", "wrong"))
	require.Equal("a@b.com", s.Current().Email)
	require.EqualValues("tok-a@b.com", s.Credential())
}

func TestRegister(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	s, rec := newTestStore(storage.NewMemory(), newFakeAuth())
	s.Restore(ctx)

	require.NoError(s.Register(ctx, "Grace", "g@h.com", "pw"))
	assert.Equal("Grace", s.Current().Name)
	assert.Equal("Registration successful!", rec.last().Message)

	err := s.Register(ctx, "Grace", "g@h.com", "pw")
	assert.ErrorIs(err, ErrRejected)
	assert.Equal(Notification{Level: Failure, Message: "Registration failed"}, rec.last())
	assert.Equal("g@h.com", s.Current().Email)
}

func TestLogout(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	mem := storage.NewMemory()
	s, rec := newTestStore(mem, newFakeAuth())
	s.Restore(ctx)
	require.NoError(s.Login(ctx, "a@b.com", "secret"))

	require.NoError(s.Logout(ctx))
	assert.Equal(Anonymous, s.State())
	assert.Empty(s.Credential())
	assert.Equal(0, mem.Len())
	assert.Equal("Logged out successfully", rec.last().Message)

	n := rec.count()
	require.NoError(s.Logout(ctx))
	assert.Equal(Anonymous, s.State())
	assert.Equal(0, mem.Len())
	assert.Equal(n, rec.count())
}

func TestLogout_storageDown(t *testing.T) {
	ctx := context.Background()

	st := &brokenStorage{Storage: storage.NewMemory()}
	s, rec := newTestStore(st, newFakeAuth())
	s.Restore(ctx)
	require.NoError(t, s.Login(ctx, "a@b.com", "secret"))

	st.delErr = storage.ErrUnavailable
	err := s.Logout(ctx)

	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Equal(t, Anonymous, s.State())
	assert.Equal(t, Failure, rec.last().Level)
}

func TestOperations_waitForRestore(t *testing.T) {
	s, _ := newTestStore(storage.NewMemory(), newFakeAuth())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, s.Login(ctx, "a@b.com", "secret"), context.DeadlineExceeded)
	assert.ErrorIs(t, s.Logout(ctx), context.DeadlineExceeded)
	assert.True(t, s.Loading())
}

func TestLogin_concurrentAttemptRejected(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	auth := newFakeAuth()
	auth.block = make(chan struct{})

	s, _ := newTestStore(storage.NewMemory(), auth)
	s.Restore(ctx)

	done := make(chan error, 1)
	go func() { done <- s.Login(ctx, "a@b.com", "secret") }()

	require.Eventually(func() bool {
		auth.mu.Lock()
		defer auth.mu.Unlock()
		return auth.calls == 1
	}, time.Second, time.Millisecond)

	require.ErrorIs(s.Login(ctx, "a@b.com", "secret"), ErrAuthInProgress)

	close(auth.block)
	require.NoError(<-done)
	require.Equal(Authenticated, s.State())
}

func TestLogin_supersededByLogout(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	auth := newFakeAuth()
	auth.block = make(chan struct{})

	mem := storage.NewMemory()
	s, _ := newTestStore(mem, auth)
	s.Restore(ctx)

	done := make(chan error, 1)
	go func() { done <- s.Login(ctx, "a@b.com", "secret") }()

	require.Eventually(func() bool {
		auth.mu.Lock()
		defer auth.mu.Unlock()
		return auth.calls == 1
	}, time.Second, time.Millisecond)

	require.NoError(s.Logout(ctx))
	close(auth.block)

	require.ErrorIs(<-done, ErrSuperseded)
	require.Equal(Anonymous, s.State())
	require.Equal(0, mem.Len())
}

func TestScenario(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	mem := storage.NewMemory()
	s, _ := newTestStore(mem, newFakeAuth())

	s.Restore(ctx)
	require.Equal(Anonymous, s.State())

	require.NoError(s.Login(ctx, "a@b.com", "secret"))
	st, sess := s.Snapshot()
	require.Equal(Authenticated, st)
	require.Equal("a@b.com", sess.Email)

	require.NoError(s.Logout(ctx))
	require.Equal(Anonymous, s.State())
	require.Equal(0, mem.Len())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "anonymous", Anonymous.String())
}
