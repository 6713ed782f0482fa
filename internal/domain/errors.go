package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidAddress is returned when an Ethereum address is invalid
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNetworkMismatch is returned when the RPC endpoint reports a different chain than configured
	ErrNetworkMismatch = errors.New("network mismatch")

	// ErrNetworkRequired is returned when a command needs --network and none was given
	ErrNetworkRequired = errors.New("network is required")

	// ErrContractNotFound is returned when an artifact can't be found
	ErrContractNotFound = errors.New("contract not found")

	// ErrMissingAccount is returned when a named account has no address for the network
	ErrMissingAccount = errors.New("missing named account")

	// ErrInvalidPipeline is returned when a pipeline file fails validation
	ErrInvalidPipeline = errors.New("invalid pipeline")

	// ErrUnresolvedReference is returned when a ${...} expression cannot be resolved
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrUnlinkedLibrary is returned when bytecode still contains library placeholders
	ErrUnlinkedLibrary = errors.New("unlinked library")

	// ErrTransactionReverted is returned when a transaction or its gas estimation reverts
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrConfirmationTimeout is returned when a receipt is not observed in time
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmation")

	// ErrNoSigner is returned when a transaction is requested without a signing key
	ErrNoSigner = errors.New("no signer configured")

	// ErrVerificationFailed is returned when contract verification fails
	ErrVerificationFailed = errors.New("verification failed")

	// ErrAborted is returned when the user declines a broadcast confirmation
	ErrAborted = errors.New("aborted by user")
)

// MissingAccountsError lists every named account that has no address on a network.
type MissingAccountsError struct {
	Network string
	Roles   []string
}

func (e *MissingAccountsError) Error() string {
	roles := append([]string(nil), e.Roles...)
	sort.Strings(roles)
	return fmt.Sprintf("%s on network %s: %s", ErrMissingAccount, e.Network, strings.Join(roles, ", "))
}

func (e *MissingAccountsError) Unwrap() error {
	return ErrMissingAccount
}

// RevertError carries the decoded reason of a reverted transaction.
type RevertError struct {
	TxHash string
	Reason string
}

func (e *RevertError) Error() string {
	msg := ErrTransactionReverted.Error()
	if e.TxHash != "" {
		msg = fmt.Sprintf("%s (tx %s)", msg, e.TxHash)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	return msg
}

func (e *RevertError) Unwrap() error {
	return ErrTransactionReverted
}

// StepError identifies the pipeline step that aborted a run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// DeploymentNotFoundError is returned by lookups that can offer close matches.
type DeploymentNotFoundError struct {
	Network     string
	Name        string
	Suggestions []string
}

func (e *DeploymentNotFoundError) Error() string {
	msg := fmt.Sprintf("deployment %s not found on network %s", e.Name, e.Network)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *DeploymentNotFoundError) Unwrap() error {
	return ErrNotFound
}

// AmbiguousArtifactError is returned when a bare contract name matches several artifacts.
type AmbiguousArtifactError struct {
	Name    string
	Matches []string
}

func (e *AmbiguousArtifactError) Error() string {
	matches := append([]string(nil), e.Matches...)
	sort.Strings(matches)

	var suggestions []string
	for _, m := range matches {
		suggestions = append(suggestions, fmt.Sprintf("  - %s", m))
	}

	return fmt.Sprintf("multiple artifacts found for %s - use path:contract format to disambiguate:\n%s",
		e.Name, strings.Join(suggestions, "\n"))
}
