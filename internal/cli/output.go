package cli

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// writeJSON prints v as indented JSON on the command's output
func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

type pipelineOutput struct {
	RunID    string       `json:"runId"`
	Pipeline string       `json:"pipeline"`
	Network  string       `json:"network"`
	ChainID  uint64       `json:"chainId"`
	Deployer string       `json:"deployer"`
	DryRun   bool         `json:"dryRun"`
	Success  bool         `json:"success"`
	Steps    []stepOutput `json:"steps"`
}

type stepOutput struct {
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	Status          string `json:"status"`
	Address         string `json:"address,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Error           string `json:"error,omitempty"`
	Warning         string `json:"warning,omitempty"`
}

func newPipelineOutput(result *usecase.PipelineResult) pipelineOutput {
	return pipelineOutput{
		RunID:    result.RunID,
		Pipeline: result.Pipeline.Name,
		Network:  result.Network.Name,
		ChainID:  result.Network.ChainID,
		Deployer: result.Deployer.Hex(),
		DryRun:   result.DryRun,
		Success:  result.Success,
		Steps: lo.Map(result.Steps, func(s *usecase.StepResult, _ int) stepOutput {
			out := stepOutput{
				Name:    s.Step.Name,
				Kind:    string(s.Step.Kind),
				Status:  string(s.Status),
				Warning: s.Warning,
			}
			if s.Status != usecase.StepStatusFailed {
				out.Address = s.Address.Hex()
			}
			switch {
			case s.Deployment != nil:
				out.TransactionHash = s.Deployment.TransactionHash
			case s.Initialization != nil:
				out.TransactionHash = s.Initialization.TransactionHash
			}
			if s.Error != nil {
				out.Error = s.Error.Error()
			}
			return out
		}),
	}
}

type verifyOutput struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Status  string   `json:"status"`
	Success bool     `json:"success"`
	Skipped bool     `json:"skipped,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	URL     string   `json:"url,omitempty"`
	Command []string `json:"command,omitempty"`
}

func newVerifyOutput(r *usecase.VerifyResult) verifyOutput {
	return verifyOutput{
		Name:    r.Deployment.Name,
		Address: r.Deployment.Address,
		Status:  string(r.Deployment.Verification.Status),
		Success: r.Success,
		Skipped: r.Skipped,
		Reason:  r.Reason,
		URL:     r.Deployment.Verification.URL,
		Command: r.Command,
	}
}

type showOutput struct {
	Deployment      *models.Deployment       `json:"deployment"`
	Initializations []*models.Initialization `json:"initializations,omitempty"`
}

type networkOutput struct {
	Name            string            `json:"name"`
	ChainID         uint64            `json:"chainId,omitempty"`
	Active          bool              `json:"active,omitempty"`
	Confirm         bool              `json:"confirm,omitempty"`
	Signers         []string          `json:"signers,omitempty"`
	Accounts        map[string]string `json:"accounts,omitempty"`
	MissingAccounts []string          `json:"missingAccounts,omitempty"`
	Error           string            `json:"error,omitempty"`
}

func newNetworksOutput(result *usecase.ListNetworksResult) []networkOutput {
	return lo.Map(result.Networks, func(s usecase.NetworkStatus, _ int) networkOutput {
		out := networkOutput{
			Name:            s.Name,
			Active:          s.Name == result.Active,
			MissingAccounts: s.MissingAccounts,
		}
		if s.Network != nil {
			out.ChainID = s.Network.ChainID
			out.Confirm = s.Network.Confirm
		}
		if s.Error != nil {
			out.Error = s.Error.Error()
		}
		if len(s.Signers) > 0 {
			out.Signers = lo.Map(s.Signers, func(a common.Address, _ int) string { return a.Hex() })
		}
		if s.Accounts != nil {
			out.Accounts = lo.MapValues(s.Accounts, func(a common.Address, _ string) string { return a.Hex() })
		}
		return out
	})
}
