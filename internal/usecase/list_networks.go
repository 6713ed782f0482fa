package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
)

// ListNetworksParams contains parameters for listing networks
type ListNetworksParams struct {
	// WithAccounts resolves every named account on every network
	WithAccounts bool
}

// ListNetworksResult contains the result of listing networks
type ListNetworksResult struct {
	Networks []NetworkStatus
	Active   string
}

// NetworkStatus represents the status of a network
type NetworkStatus struct {
	Name            string
	Network         *config.Network
	Accounts        map[string]common.Address
	MissingAccounts []string
	Signers         []common.Address
	Error           error
}

// ListNetworks is a use case for listing available networks
type ListNetworks struct {
	config   *config.RuntimeConfig
	resolver NetworkResolver
	accounts NamedAccountResolver
	signers  SignerProvider
}

// NewListNetworks creates a new ListNetworks use case
func NewListNetworks(cfg *config.RuntimeConfig, resolver NetworkResolver, accounts NamedAccountResolver, signers SignerProvider) *ListNetworks {
	return &ListNetworks{
		config:   cfg,
		resolver: resolver,
		accounts: accounts,
		signers:  signers,
	}
}

// Run executes the use case
func (uc *ListNetworks) Run(ctx context.Context, params ListNetworksParams) (*ListNetworksResult, error) {
	result := &ListNetworksResult{}
	if uc.config.Network != nil {
		result.Active = uc.config.Network.Name
	}

	for _, name := range uc.resolver.Networks() {
		status := NetworkStatus{Name: name}

		network, err := uc.resolver.Resolve(name)
		if err != nil {
			status.Error = err
			result.Networks = append(result.Networks, status)
			continue
		}
		status.Network = network

		if params.WithAccounts {
			status.Signers, status.Error = uc.signers.Addresses(name)
			if status.Error == nil {
				status.Accounts, status.MissingAccounts, status.Error = uc.accounts.ResolveAll(ctx, name)
			}
		}

		result.Networks = append(result.Networks, status)
	}

	return result, nil
}
