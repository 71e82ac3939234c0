package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghaggin/automl/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("key not found")
	// ErrUnavailable wraps every read or write failure of the underlying
	// backend.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrCorrupt means the backend is reachable but its stored document
	// cannot be decoded. Writes replace such a document.
	ErrCorrupt = errors.New("storage corrupt")
)

// Storage is a small string key-value store that survives restarts.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	// SetAll writes every pair or none of them.
	SetAll(ctx context.Context, kv map[string]string) error
	// Delete removes keys; absent keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

type Params struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Log    *zap.Logger
}

func New(p Params) (Storage, error) {
	c := p.Config.Storage
	log := p.Log.With(zap.String("driver", c.Driver))

	switch c.Driver {
	case config.StorageFile:
		log.Info("using file storage", zap.String("path", c.Path))
		return NewFile(c.Path), nil
	case config.StorageRedis:
		r, err := DialRedis(context.Background(), c.RedisURL, c.Prefix)
		if err != nil {
			return nil, err
		}
		p.LC.Append(fx.Hook{
			OnStop: func(context.Context) error { return r.Close() },
		})
		log.Info("using redis storage")
		return r, nil
	case config.StorageMemory:
		log.Warn("using memory storage, sessions will not survive a restart")
		return NewMemory(), nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", c.Driver)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
