package config

import (
	"math/big"
	"time"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot    string
	ArtifactsDir   string
	DeploymentsDir string
	PipelinesDir   string

	// Context settings
	Network *Network // nil if not specified

	// Execution settings
	Debug          bool
	NonInteractive bool
	JSON           bool // Output in JSON format
	Yes            bool // Skip broadcast confirmation
	Timeout        time.Duration

	// Resolved configurations, with ${VAR} references expanded
	Project *ProjectFile
}

// Network represents the active network, resolved from [networks.<name>]
type Network struct {
	Name          string        `json:"name"`
	ChainID       uint64        `json:"chainId"`
	RPCURL        string        `json:"rpcUrl"`
	ExplorerURL   string        `json:"explorerUrl,omitempty"`
	Verifier      string        `json:"verifier,omitempty"`
	VerifierURL   string        `json:"verifierUrl,omitempty"`
	APIKey        string        `json:"-"`
	GasMultiplier float64       `json:"gasMultiplier,omitempty"`
	GasPrice      *big.Int      `json:"gasPrice,omitempty"` // nil means ask the node
	TxTimeout     time.Duration `json:"txTimeout"`
	Confirm       bool          `json:"confirm,omitempty"`
}

// IsLocal reports whether the network is a local development chain
func (n *Network) IsLocal() bool {
	return n.ChainID == 31337 || n.ChainID == 1337
}
