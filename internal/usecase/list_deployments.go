package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
)

// ListDeploymentsParams contains parameters for listing deployments
type ListDeploymentsParams struct {
	// The network filter comes from RuntimeConfig
	ContractName string
	// CheckOnChain looks up code at every listed address
	CheckOnChain bool
}

// ListDeployments is the use case for listing deployments
type ListDeployments struct {
	config   *config.RuntimeConfig
	store    DeploymentStore
	networks NetworkResolver
	checker  DeploymentChecker
	sink     ProgressSink
}

// NewListDeployments creates a new ListDeployments use case
func NewListDeployments(
	cfg *config.RuntimeConfig,
	store DeploymentStore,
	networks NetworkResolver,
	checker DeploymentChecker,
	sink ProgressSink,
) *ListDeployments {
	return &ListDeployments{
		config:   cfg,
		store:    store,
		networks: networks,
		checker:  checker,
		sink:     sink,
	}
}

// Run executes the list deployments use case
func (uc *ListDeployments) Run(ctx context.Context, params ListDeploymentsParams) (*DeploymentListResult, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployment records",
		Spinner: true,
	})

	filter := domain.DeploymentFilter{ContractName: params.ContractName}
	if uc.config.Network != nil {
		filter.Network = uc.config.Network.Name
	}

	deployments, err := uc.store.ListDeployments(ctx, filter)
	if err != nil {
		return nil, err
	}
	sortDeployments(deployments)

	result := &DeploymentListResult{
		Deployments: deployments,
		Summary:     calculateSummary(deployments),
	}

	if params.CheckOnChain && len(deployments) > 0 {
		onChain, err := uc.checkOnChain(ctx, deployments)
		if err != nil {
			return nil, err
		}
		result.OnChain = onChain
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Current: len(deployments),
		Total:   len(deployments),
		Message: "Deployments loaded",
	})

	return result, nil
}

// checkOnChain reports, per record key, whether code exists at the recorded address
func (uc *ListDeployments) checkOnChain(ctx context.Context, deployments []*models.Deployment) (map[string]bool, error) {
	onChain := make(map[string]bool, len(deployments))
	resolved := make(map[string]*config.Network)

	for i, dep := range deployments {
		uc.sink.OnProgress(ctx, ProgressEvent{
			Stage:   "checking",
			Current: i + 1,
			Total:   len(deployments),
			Message: fmt.Sprintf("Checking %s on %s", dep.Name, dep.Network),
			Spinner: true,
		})

		network, ok := resolved[dep.Network]
		if !ok {
			var err error
			network, err = uc.networks.Resolve(dep.Network)
			if err != nil {
				return nil, err
			}
			resolved[dep.Network] = network
		}

		exists, _, err := uc.checker.CheckDeployment(ctx, network, dep)
		if err != nil {
			return nil, err
		}
		onChain[RecordKey(dep)] = exists
	}
	return onChain, nil
}

// RecordKey identifies a deployment record across networks
func RecordKey(dep *models.Deployment) string {
	return dep.Network + "/" + dep.Name
}

// sortDeployments sorts deployments by network, then by creation order
func sortDeployments(deployments []*models.Deployment) {
	sort.SliceStable(deployments, func(i, j int) bool {
		if deployments[i].Network != deployments[j].Network {
			return deployments[i].Network < deployments[j].Network
		}
		if !deployments[i].CreatedAt.Equal(deployments[j].CreatedAt) {
			return deployments[i].CreatedAt.Before(deployments[j].CreatedAt)
		}
		return deployments[i].Name < deployments[j].Name
	})
}

// calculateSummary calculates summary statistics for deployments
func calculateSummary(deployments []*models.Deployment) DeploymentSummary {
	summary := DeploymentSummary{
		Total:     len(deployments),
		ByNetwork: make(map[string]int),
	}

	for _, dep := range deployments {
		summary.ByNetwork[dep.Network]++
		if dep.IsVerified() {
			summary.Verified++
		} else {
			summary.Unverified++
		}
	}

	return summary
}
