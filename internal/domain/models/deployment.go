package models

import (
	"fmt"
	"time"
)

// VerificationStatus represents the verification status
type VerificationStatus string

const (
	VerificationStatusUnverified VerificationStatus = "UNVERIFIED"
	VerificationStatusVerified   VerificationStatus = "VERIFIED"
	VerificationStatusFailed     VerificationStatus = "FAILED"
)

// Deployment is the persisted record of a confirmed deploy step. One record
// exists per (network, name); its presence marks the step as done.
type Deployment struct {
	// Core identification
	Name         string `json:"name"`         // Pipeline step name, e.g. "LendingPool"
	ContractName string `json:"contractName"` // Artifact name, e.g. "LendingPool"
	Network      string `json:"network"`
	ChainID      uint64 `json:"chainId"`
	Address      string `json:"address"`

	// Arguments as written in the pipeline after reference resolution, and
	// the ABI-encoded form sent with the creation code.
	Args            []any             `json:"args"`
	ConstructorArgs string            `json:"constructorArgs,omitempty"`
	Libraries       map[string]string `json:"libraries,omitempty"`

	// Transaction
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	GasUsed         uint64 `json:"gasUsed,omitempty"`
	Deployer        string `json:"deployer"`

	Artifact     ArtifactInfo     `json:"artifact"`
	Verification VerificationInfo `json:"verification"`

	// Provenance
	Pipeline  string    `json:"pipeline,omitempty"`
	RunID     string    `json:"runId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ArtifactInfo contains contract artifact information
type ArtifactInfo struct {
	Path            string `json:"path"`            // e.g., "src/LendingPool.sol"
	CompilerVersion string `json:"compilerVersion"` // e.g., "0.8.19"
	BytecodeHash    string `json:"bytecodeHash"`    // keccak256 of the linked creation code
}

// VerificationInfo contains verification details
type VerificationInfo struct {
	Status     VerificationStatus `json:"status"`
	URL        string             `json:"url,omitempty"`
	VerifiedAt *time.Time         `json:"verifiedAt,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// FullyQualifiedName returns path:Contract when the source path is known
func (d *Deployment) FullyQualifiedName() string {
	if d.Artifact.Path == "" {
		return d.ContractName
	}
	return fmt.Sprintf("%s:%s", d.Artifact.Path, d.ContractName)
}

// DisplayName returns Name, with the contract name when it differs
func (d *Deployment) DisplayName() string {
	if d.ContractName != "" && d.ContractName != d.Name {
		return fmt.Sprintf("%s (%s)", d.Name, d.ContractName)
	}
	return d.Name
}

// IsVerified reports whether the record has been verified on the explorer
func (d *Deployment) IsVerified() bool {
	return d.Verification.Status == VerificationStatusVerified
}
