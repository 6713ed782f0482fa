package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
)

const maxSuggestions = 3

// ShowDeploymentParams contains parameters for showing a deployment
type ShowDeploymentParams struct {
	Name string
}

// ShowDeploymentResult is a deployment with the initializer calls made on it
type ShowDeploymentResult struct {
	Deployment      *models.Deployment
	Initializations []*models.Initialization
}

// ShowDeployment is the use case for showing deployment details
type ShowDeployment struct {
	config *config.RuntimeConfig
	store  DeploymentStore
	sink   ProgressSink
}

// NewShowDeployment creates a new ShowDeployment use case
func NewShowDeployment(cfg *config.RuntimeConfig, store DeploymentStore, sink ProgressSink) *ShowDeployment {
	return &ShowDeployment{
		config: cfg,
		store:  store,
		sink:   sink,
	}
}

// Run loads the record for params.Name on the active network. When no record
// matches, the error carries the closest recorded names.
func (uc *ShowDeployment) Run(ctx context.Context, params ShowDeploymentParams) (*ShowDeploymentResult, error) {
	if uc.config.Network == nil {
		return nil, domain.ErrNetworkRequired
	}
	network := uc.config.Network.Name

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployment details",
		Spinner: true,
	})

	deployment, err := uc.store.GetDeployment(ctx, network, params.Name)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		suggestions, listErr := uc.suggest(ctx, network, params.Name)
		if listErr != nil {
			return nil, listErr
		}
		return nil, &domain.DeploymentNotFoundError{Network: network, Name: params.Name, Suggestions: suggestions}
	}

	calls, err := uc.initializationsFor(ctx, deployment)
	if err != nil {
		return nil, err
	}
	result := &ShowDeploymentResult{Deployment: deployment, Initializations: calls}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Message: "Deployment loaded",
	})

	return result, nil
}

// suggest returns up to maxSuggestions recorded names fuzzily matching name
func (uc *ShowDeployment) suggest(ctx context.Context, network, name string) ([]string, error) {
	deployments, err := uc.store.ListDeployments(ctx, domain.DeploymentFilter{Network: network})
	if err != nil {
		return nil, err
	}

	names := make([]string, len(deployments))
	for i, dep := range deployments {
		names[i] = dep.Name
	}

	var suggestions []string
	for _, match := range fuzzy.Find(name, names) {
		suggestions = append(suggestions, match.Str)
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions, nil
}

// initializationsFor returns recorded calls whose target is the deployment
func (uc *ShowDeployment) initializationsFor(ctx context.Context, deployment *models.Deployment) ([]*models.Initialization, error) {
	all, err := uc.store.ListInitializations(ctx, deployment.Network)
	if err != nil {
		return nil, err
	}
	var matched []*models.Initialization
	for _, call := range all {
		if strings.EqualFold(call.Target, deployment.Address) {
			matched = append(matched, call)
		}
	}
	return matched, nil
}
