package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
)

// VerifyDeployment handles contract verification on block explorers
type VerifyDeployment struct {
	config   *config.RuntimeConfig
	store    DeploymentStore
	verifier ContractVerifier
	progress ProgressSink
	log      *slog.Logger
}

// NewVerifyDeployment creates a new verify deployment use case
func NewVerifyDeployment(
	cfg *config.RuntimeConfig,
	store DeploymentStore,
	verifier ContractVerifier,
	progress ProgressSink,
	log *slog.Logger,
) *VerifyDeployment {
	return &VerifyDeployment{
		config:   cfg,
		store:    store,
		verifier: verifier,
		progress: progress,
		log:      log.With("component", "VerifyDeployment"),
	}
}

// VerifyOptions contains options for verification
type VerifyOptions struct {
	Force        bool   // Re-verify even if already verified
	ContractPath string // Override the recorded source path
	DryRun       bool   // Print the commands without running them
}

// VerifyResult contains the result of verifying one deployment
type VerifyResult struct {
	Deployment *models.Deployment
	Success    bool
	Skipped    bool
	Reason     string
	Command    []string
}

// VerifyAllResult contains the result of verifying a network's deployments
type VerifyAllResult struct {
	Network      string
	Results      []*VerifyResult
	SuccessCount int
	FailureCount int
	SkippedCount int
}

// VerifyAll verifies every deployment recorded on the active network
func (v *VerifyDeployment) VerifyAll(ctx context.Context, options VerifyOptions) (*VerifyAllResult, error) {
	network, err := v.requireNetwork()
	if err != nil {
		return nil, err
	}

	deployments, err := v.store.ListDeployments(ctx, domain.DeploymentFilter{Network: network.Name})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	result := &VerifyAllResult{Network: network.Name}
	if len(deployments) == 0 {
		return result, nil
	}

	unlock, err := v.lock(ctx, network, options)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for i, deployment := range deployments {
		v.progress.OnProgress(ctx, ProgressEvent{
			Stage:   "verifying",
			Current: i + 1,
			Total:   len(deployments),
			Message: deployment.Name,
			Spinner: true,
		})

		r := v.verify(ctx, deployment, network, options)
		result.Results = append(result.Results, r)
		switch {
		case r.Skipped:
			result.SkippedCount++
		case r.Success:
			result.SuccessCount++
		default:
			result.FailureCount++
		}
	}

	v.progress.OnProgress(ctx, ProgressEvent{Stage: "completed", Total: len(deployments)})
	return result, nil
}

// VerifySpecific verifies the deployment recorded under name on the active network
func (v *VerifyDeployment) VerifySpecific(ctx context.Context, name string, options VerifyOptions) (*VerifyResult, error) {
	network, err := v.requireNetwork()
	if err != nil {
		return nil, err
	}

	deployment, err := v.store.GetDeployment(ctx, network.Name, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.DeploymentNotFoundError{Network: network.Name, Name: name}
		}
		return nil, err
	}

	unlock, err := v.lock(ctx, network, options)
	if err != nil {
		return nil, err
	}
	defer unlock()

	v.progress.OnProgress(ctx, ProgressEvent{Stage: "verifying", Current: 1, Total: 1, Message: deployment.Name, Spinner: true})
	result := v.verify(ctx, deployment, network, options)
	v.progress.OnProgress(ctx, ProgressEvent{Stage: "completed", Total: 1})
	return result, nil
}

// verify runs verification for one deployment and persists the outcome
func (v *VerifyDeployment) verify(ctx context.Context, deployment *models.Deployment, network *config.Network, options VerifyOptions) *VerifyResult {
	if options.ContractPath != "" {
		deployment.Artifact.Path = options.ContractPath
	}
	result := &VerifyResult{
		Deployment: deployment,
		Command:    v.verifier.Command(deployment, network),
	}

	switch {
	case network.IsLocal():
		result.Skipped = true
		result.Reason = "local network"
		return result
	case deployment.IsVerified() && !options.Force:
		result.Skipped = true
		result.Success = true
		result.Reason = "already verified"
		return result
	case options.DryRun:
		result.Skipped = true
		result.Reason = "dry run"
		return result
	}

	log := v.log.With("name", deployment.Name, "address", deployment.Address)
	verifyErr := v.verifier.Verify(ctx, deployment, network)
	deployment.UpdatedAt = time.Now().UTC()

	if err := v.store.SaveDeployment(ctx, deployment); err != nil {
		log.Warn("failed to save verification status", "error", err)
		result.Reason = fmt.Sprintf("failed to update record: %v", err)
		return result
	}

	if verifyErr != nil {
		log.Debug("verification failed", "error", verifyErr)
		result.Reason = verifyErr.Error()
		return result
	}

	log.Info("contract verified", "url", deployment.Verification.URL)
	result.Success = true
	return result
}

func (v *VerifyDeployment) requireNetwork() (*config.Network, error) {
	if v.config.Network == nil {
		return nil, domain.ErrNetworkRequired
	}
	return v.config.Network, nil
}

// lock takes the network lock unless nothing will be written
func (v *VerifyDeployment) lock(ctx context.Context, network *config.Network, options VerifyOptions) (func(), error) {
	if options.DryRun || network.IsLocal() {
		return func() {}, nil
	}
	release, err := v.store.Lock(ctx, network.Name)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(); err != nil {
			v.log.Warn("failed to release lock", "network", network.Name, "error", err)
		}
	}, nil
}
