package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// VerifierAdapter wraps the forge verifier and records the outcome on the
// deployment
type VerifierAdapter struct {
	verifier *ForgeVerifier
	now      func() time.Time
}

// NewVerifierAdapter creates a new adapter that runs forge from the project root
func NewVerifierAdapter(cfg *config.RuntimeConfig) *VerifierAdapter {
	return &VerifierAdapter{
		verifier: NewForgeVerifier(cfg.ProjectRoot, ExecRunner),
		now:      time.Now,
	}
}

// Verify verifies the deployment and updates its verification info
func (v *VerifierAdapter) Verify(ctx context.Context, deployment *models.Deployment, network *config.Network) error {
	if err := v.verifier.Verify(ctx, deployment, network); err != nil {
		deployment.Verification.Status = models.VerificationStatusFailed
		deployment.Verification.Reason = err.Error()
		return err
	}

	verifiedAt := v.now().UTC()
	deployment.Verification = models.VerificationInfo{
		Status:     models.VerificationStatusVerified,
		URL:        explorerURL(network, deployment.Address),
		VerifiedAt: &verifiedAt,
	}
	return nil
}

// Command returns the command Verify would run
func (v *VerifierAdapter) Command(deployment *models.Deployment, network *config.Network) []string {
	return v.verifier.Command(deployment, network)
}

// explorerURL builds the explorer page for a contract
func explorerURL(network *config.Network, address string) string {
	if network.ExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/address/%s#code", strings.TrimSuffix(network.ExplorerURL, "/"), address)
}

// Ensure the adapter implements the interface
var _ usecase.ContractVerifier = (*VerifierAdapter)(nil)
