package api

import (
	"github.com/ghaggin/automl/internal/repository"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		New,
		NewController,
		NewTokens,
		NewJobs,
		repository.New,
	),
)
