package app

import (
	"log/slog"

	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig
	Log    *slog.Logger

	// Shared dependencies
	Selector usecase.DeploymentSelector

	// Use cases
	RunPipeline      *usecase.RunPipeline
	ListDeployments  *usecase.ListDeployments
	ShowDeployment   *usecase.ShowDeployment
	VerifyDeployment *usecase.VerifyDeployment
	ListNetworks     *usecase.ListNetworks

	// Store is exposed for the interactive deployment picker
	Store usecase.DeploymentStore
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	log *slog.Logger,
	selector usecase.DeploymentSelector,
	store usecase.DeploymentStore,
	runPipeline *usecase.RunPipeline,
	listDeployments *usecase.ListDeployments,
	showDeployment *usecase.ShowDeployment,
	verifyDeployment *usecase.VerifyDeployment,
	listNetworks *usecase.ListNetworks,
) (*App, error) {
	return &App{
		Config:           cfg,
		Log:              log,
		Selector:         selector,
		Store:            store,
		RunPipeline:      runPipeline,
		ListDeployments:  listDeployments,
		ShowDeployment:   showDeployment,
		VerifyDeployment: verifyDeployment,
		ListNetworks:     listNetworks,
	}, nil
}
