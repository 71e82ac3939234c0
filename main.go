package main

import (
	"flag"

	"github.com/ghaggin/automl/internal/api"
	"github.com/ghaggin/automl/internal/config"
	"github.com/ghaggin/automl/internal/web"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	var mode = flag.String("mode", "", "either web or api")
	var configPath = flag.String("config", "config/config.yaml", "path to the yaml config file")
	flag.Parse()

	newPath := func() config.Path {
		return config.Path(*configPath)
	}

	deps := fx.Options(
		fx.Provide(
			config.New,
			newLogger,
			newPath,
		),
	)

	var app *fx.App
	switch config.Mode(*mode) {
	case config.ModeWeb:
		app = fx.New(
			deps,
			web.Module,
			fx.Invoke(web.RegisterHooks),
		)
	case config.ModeAPI:
		app = fx.New(
			deps,
			api.Module,
			fx.Invoke(api.RegisterHooks),
		)
	default:
		panic("unrecognized mode")
	}

	app.Run()
}

func newLogger(c *config.Config) (*zap.Logger, error) {
	if c.Log.Production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
