//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/lend-deploy/internal/adapters"
	"github.com/trebuchet-org/lend-deploy/internal/config"
	"github.com/trebuchet-org/lend-deploy/internal/logging"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// InitApp creates a fully wired App instance
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, error) {
	wire.Build(
		// Configuration
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Use cases
		usecase.NewRunPipeline,
		usecase.NewListDeployments,
		usecase.NewShowDeployment,
		usecase.NewVerifyDeployment,
		usecase.NewListNetworks,

		// App
		NewApp,
	)
	return nil, nil
}
