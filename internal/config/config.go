package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Mode selects which fx application main builds.
type Mode string

const (
	ModeWeb Mode = "web"
	ModeAPI Mode = "api"
)

// Path is the location of the yaml config file. An empty or missing file
// leaves the defaults in place.
type Path string

type Config struct {
	Log     Log     `yaml:"log"`
	Web     Web     `yaml:"web"`
	Storage Storage `yaml:"storage"`
	API     API     `yaml:"api"`
}

type Log struct {
	Production bool `yaml:"production" env:"AUTOML_LOG_PRODUCTION"`
}

type Web struct {
	Port       int    `yaml:"port" env:"AUTOML_WEB_PORT"`
	BackendURL string `yaml:"backend_url" env:"AUTOML_BACKEND_URL"`
	// BackendTimeout bounds each round-trip to the api.
	BackendTimeout time.Duration `yaml:"backend_timeout" env:"AUTOML_BACKEND_TIMEOUT"`
	FlashLifetime  time.Duration `yaml:"flash_lifetime" env:"AUTOML_FLASH_LIFETIME"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" env:"AUTOML_MAX_UPLOAD_BYTES"`
}

// Storage describes where the web front-end persists its credential.
type Storage struct {
	Driver   string `yaml:"driver" env:"AUTOML_STORAGE_DRIVER"`
	Path     string `yaml:"path" env:"AUTOML_STORAGE_PATH"`
	RedisURL string `yaml:"redis_url" env:"AUTOML_REDIS_URL"`
	Prefix   string `yaml:"prefix" env:"AUTOML_STORAGE_PREFIX"`
}

type API struct {
	Port        int           `yaml:"port" env:"AUTOML_API_PORT"`
	TokenSecret string        `yaml:"token_secret" env:"AUTOML_TOKEN_SECRET"`
	TokenTTL    time.Duration `yaml:"token_ttl" env:"AUTOML_TOKEN_TTL"`
	Repo        Repo          `yaml:"repo"`
}

type Repo struct {
	Driver string `yaml:"driver" env:"AUTOML_REPO_DRIVER"`
	Path   string `yaml:"path" env:"AUTOML_REPO_PATH"`
	DSN    string `yaml:"dsn" env:"AUTOML_DATABASE_URL"`
}

const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"

	RepoJSON     = "json"
	RepoPostgres = "postgres"
)

var (
	errUnknownStorage = errors.New("unknown storage driver")
	errUnknownRepo    = errors.New("unknown repo driver")
	errNoSecret       = errors.New("api token secret is empty")
)

func Default() *Config {
	return &Config{
		Web: Web{
			Port:           8123,
			BackendURL:     "http://localhost:8124",
			BackendTimeout: 10 * time.Second,
			FlashLifetime:  time.Hour,
			MaxUploadBytes: 32 << 20,
		},
		Storage: Storage{
			Driver: StorageFile,
			Path:   "data/credential.json",
			Prefix: "automl",
		},
		API: API{
			Port:        8124,
			TokenSecret: "dev-secret-change-me",
			TokenTTL:    24 * time.Hour,
			Repo: Repo{
				Driver: RepoJSON,
				Path:   "data/users.json",
			},
		},
	}
}

// New layers defaults, the yaml file, a .env file and the environment, in
// that order.
func New(p Path) (*Config, error) {
	c := Default()

	if p != "" {
		b, err := os.ReadFile(string(p))
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageFile, StorageRedis, StorageMemory:
	default:
		return fmt.Errorf("%w: %q", errUnknownStorage, c.Storage.Driver)
	}

	switch c.API.Repo.Driver {
	case RepoJSON, RepoPostgres:
	default:
		return fmt.Errorf("%w: %q", errUnknownRepo, c.API.Repo.Driver)
	}

	if c.API.TokenSecret == "" {
		return errNoSecret
	}

	return nil
}
