package middleware

import (
	"context"
	"encoding/gob"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/ghaggin/automl/internal/config"
	"github.com/ghaggin/automl/internal/session"
	"go.uber.org/zap"
)

const (
	flashKey = "flashes"
)

type loadedKey struct{}

// Flash is a queued toast for the browser.
type Flash struct {
	Level   string
	Message string
}

// SessionManager keeps per-browser flash messages in an scs session. It is the
// notification surface of the session store.
type SessionManager struct {
	impl *scs.SessionManager
	log  *zap.Logger
}

func NewSessionManager(c *config.Config, log *zap.Logger) (*SessionManager, error) {
	gob.Register([]Flash{})

	sm := &SessionManager{
		log: log.Named("notify"),
	}
	sm.impl = scs.New()
	sm.impl.Lifetime = c.Web.FlashLifetime
	sm.impl.Cookie.Name = "automl_flash"
	sm.impl.Cookie.SameSite = http.SameSiteLaxMode

	return sm, nil
}

func (s *SessionManager) Wrap(next http.Handler) http.Handler {
	return s.impl.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), loadedKey{}, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	}))
}

// Notify logs n and, for requests passing through Wrap, queues it for the
// next rendered page.
func (s *SessionManager) Notify(ctx context.Context, n session.Notification) {
	s.log.Info(n.Message, zap.Stringer("level", n.Level))

	if loaded, _ := ctx.Value(loadedKey{}).(bool); !loaded {
		return
	}

	flashes, _ := s.impl.Get(ctx, flashKey).([]Flash)
	flashes = append(flashes, Flash{Level: n.Level.String(), Message: n.Message})
	s.impl.Put(ctx, flashKey, flashes)
}

// Flashes pops every queued flash.
func (s *SessionManager) Flashes(ctx context.Context) []Flash {
	if loaded, _ := ctx.Value(loadedKey{}).(bool); !loaded {
		return nil
	}

	flashes, _ := s.impl.Pop(ctx, flashKey).([]Flash)
	return flashes
}
