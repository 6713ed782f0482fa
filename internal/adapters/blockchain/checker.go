package blockchain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

const checkTimeout = 5 * time.Second

// CheckerAdapter checks recorded deployments against the chain. It keeps one
// read-only connection per network.
type CheckerAdapter struct {
	dialer usecase.NetworkDialer

	mu      sync.Mutex
	clients map[string]usecase.NetworkClient
}

// NewCheckerAdapter creates a new blockchain checker adapter
func NewCheckerAdapter(dialer usecase.NetworkDialer) *CheckerAdapter {
	return &CheckerAdapter{
		dialer:  dialer,
		clients: make(map[string]usecase.NetworkClient),
	}
}

// CheckDeployment reports whether the deployment's address holds code
func (c *CheckerAdapter) CheckDeployment(ctx context.Context, network *config.Network, deployment *models.Deployment) (bool, string, error) {
	client, err := c.client(ctx, network)
	if err != nil {
		return false, "", err
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	hasCode, err := client.HasCode(ctx, common.HexToAddress(deployment.Address))
	if err != nil {
		return false, fmt.Sprintf("failed to check code: %v", err), nil
	}
	if !hasCode {
		return false, "no code at address", nil
	}
	return true, "", nil
}

// Close releases every open connection
func (c *CheckerAdapter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, client := range c.clients {
		client.Close()
		delete(c.clients, name)
	}
}

func (c *CheckerAdapter) client(ctx context.Context, network *config.Network) (usecase.NetworkClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[network.Name]; ok {
		return client, nil
	}
	client, err := c.dialer.Dial(ctx, network, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", network.Name, err)
	}
	c.clients[network.Name] = client
	return client, nil
}

// Ensure the adapter implements the interface
var _ usecase.DeploymentChecker = (*CheckerAdapter)(nil)
