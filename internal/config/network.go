package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/params"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
)

const (
	// DefaultTxTimeout bounds the wait for a single receipt
	DefaultTxTimeout = 5 * time.Minute

	// DefaultVerifier is used when a network does not set one
	DefaultVerifier = "etherscan"
)

// NetworkResolver resolves network names against the [networks] sections of deploy.toml
type NetworkResolver struct {
	project *config.ProjectFile
}

// NewNetworkResolver creates a new network resolver
func NewNetworkResolver(project *config.ProjectFile) *NetworkResolver {
	return &NetworkResolver{project: project}
}

// Networks returns the configured network names, sorted
func (r *NetworkResolver) Networks() []string {
	return r.project.NetworkNames()
}

// Resolve resolves a network name to its configuration
func (r *NetworkResolver) Resolve(name string) (*config.Network, error) {
	nc, ok := r.project.Networks[name]
	if !ok {
		return nil, fmt.Errorf("network '%s' not found in %s [networks]", name, ProjectFileName)
	}
	if nc.RPCURL == "" {
		return nil, fmt.Errorf("network '%s' has no rpc_url (is %s set?)", name, GenerateEnvVarName(name))
	}

	network := &config.Network{
		Name:          name,
		ChainID:       nc.ChainID,
		RPCURL:        nc.RPCURL,
		ExplorerURL:   nc.ExplorerURL,
		Verifier:      nc.Verifier,
		VerifierURL:   nc.VerifierURL,
		APIKey:        nc.APIKey,
		GasMultiplier: nc.GasMultiplier,
		TxTimeout:     DefaultTxTimeout,
		Confirm:       nc.Confirm,
	}
	if network.Verifier == "" {
		network.Verifier = DefaultVerifier
	}
	if network.GasMultiplier == 0 {
		network.GasMultiplier = 1
	}
	if network.GasMultiplier < 1 {
		return nil, fmt.Errorf("network '%s': gas_multiplier must be >= 1, got %v", name, nc.GasMultiplier)
	}

	if nc.GasPrice != "" {
		price, err := ParseGasPrice(nc.GasPrice)
		if err != nil {
			return nil, fmt.Errorf("network '%s': %w", name, err)
		}
		network.GasPrice = price
	}

	if nc.TxTimeout != "" {
		timeout, err := time.ParseDuration(nc.TxTimeout)
		if err != nil {
			return nil, fmt.Errorf("network '%s': invalid tx_timeout %q: %w", name, nc.TxTimeout, err)
		}
		network.TxTimeout = timeout
	}

	return network, nil
}

// ParseGasPrice parses a wei amount with an optional unit suffix (wei, gwei, ether).
func ParseGasPrice(value string) (*big.Int, error) {
	s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), " ", ""))

	unit := big.NewInt(params.Wei)
	switch {
	case strings.HasSuffix(s, "gwei"):
		unit = big.NewInt(params.GWei)
		s = strings.TrimSuffix(s, "gwei")
	case strings.HasSuffix(s, "ether"):
		unit = big.NewInt(params.Ether)
		s = strings.TrimSuffix(s, "ether")
	case strings.HasSuffix(s, "wei"):
		s = strings.TrimSuffix(s, "wei")
	}

	amount, ok := new(big.Rat).SetString(s)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid gas_price %q", value)
	}

	wei := amount.Mul(amount, new(big.Rat).SetInt(unit))
	if !wei.IsInt() {
		return nil, fmt.Errorf("invalid gas_price %q: not a whole number of wei", value)
	}
	return new(big.Int).Set(wei.Num()), nil
}

// GenerateEnvVarName generates a conventional env var name for a network's RPC URL.
// Convention: uppercase, dashes/dots to underscores, append _RPC_URL.
// Examples: bsctest -> BSCTEST_RPC_URL, bsc-main -> BSC_MAIN_RPC_URL
func GenerateEnvVarName(networkName string) string {
	name := strings.ToUpper(networkName)
	name = strings.NewReplacer("-", "_", ".", "_").Replace(name)
	return name + "_RPC_URL"
}
