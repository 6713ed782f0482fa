package config

import (
	"sort"
	"strings"
)

// ProjectFile represents deploy.toml at the project root.
//
//	[project]
//	artifacts = "out"
//	accounts = ["${DEPLOYER_PRIVATE_KEY}"]
//
//	[networks.bsctest]
//	rpc_url = "${BSCTEST_RPC_URL}"
//	chain_id = 97
//	gas_multiplier = 1.5
//
//	[named_accounts]
//	deployer = { default = 0, bscmain = "0x3B..." }
type ProjectFile struct {
	Project       ProjectSection           `toml:"project"`
	Networks      map[string]NetworkConfig `toml:"networks"`
	NamedAccounts map[string]NamedAccount  `toml:"named_accounts"`
}

// ProjectSection holds directory layout and the default signer keys
type ProjectSection struct {
	Artifacts   string   `toml:"artifacts,omitempty"`   // defaults to "out"
	Deployments string   `toml:"deployments,omitempty"` // defaults to "deployments"
	Pipelines   string   `toml:"pipelines,omitempty"`   // defaults to "pipelines"
	Accounts    []string `toml:"accounts,omitempty"`    //nolint:gosec // env var references, not literal secrets
}

// NetworkConfig is a [networks.<name>] section
type NetworkConfig struct {
	RPCURL        string   `toml:"rpc_url"`
	ChainID       uint64   `toml:"chain_id"`
	GasMultiplier float64  `toml:"gas_multiplier,omitempty"`
	GasPrice      string   `toml:"gas_price,omitempty"` // wei, or with a unit: "5gwei"
	ExplorerURL   string   `toml:"explorer_url,omitempty"`
	Verifier      string   `toml:"verifier,omitempty"` // etherscan, sourcify, blockscout
	VerifierURL   string   `toml:"verifier_url,omitempty"`
	APIKey        string   `toml:"api_key,omitempty"`
	TxTimeout     string   `toml:"tx_timeout,omitempty"`
	Confirm       bool     `toml:"confirm,omitempty"`
	Accounts      []string `toml:"accounts,omitempty"` //nolint:gosec // overrides [project].accounts
}

// NamedAccount maps a network name (or "default") to an address string or a
// signer index. Integer values follow the hardhat convention: 0 is the
// address of the first configured key.
type NamedAccount map[string]any

// DefaultKey is the fallback entry of a NamedAccount
const DefaultKey = "default"

// SignerKeys returns the private keys usable on a network. Empty entries,
// which come from unset environment variables, are dropped.
func (p *ProjectFile) SignerKeys(network string) []string {
	keys := p.Project.Accounts
	if nc, ok := p.Networks[network]; ok && len(nc.Accounts) > 0 {
		keys = nc.Accounts
	}

	var out []string
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// NetworkNames returns configured network names in sorted order
func (p *ProjectFile) NetworkNames() []string {
	names := make([]string, 0, len(p.Networks))
	for name := range p.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RoleNames returns configured named-account roles in sorted order
func (p *ProjectFile) RoleNames() []string {
	names := make([]string, 0, len(p.NamedAccounts))
	for name := range p.NamedAccounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
