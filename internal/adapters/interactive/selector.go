package interactive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/sahilm/fuzzy"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// SelectorAdapter handles interactive prompts
type SelectorAdapter struct {
	config *config.RuntimeConfig
}

// NewSelectorAdapter creates a new selector adapter
func NewSelectorAdapter(cfg *config.RuntimeConfig) *SelectorAdapter {
	return &SelectorAdapter{config: cfg}
}

// Confirm asks a yes/no question. Anything but an explicit yes is a no.
func (s *SelectorAdapter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if s.config.NonInteractive {
		return false, fmt.Errorf("confirmation not available in non-interactive mode")
	}

	p := promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}
	if _, err := p.Run(); err != nil {
		// promptui reports "n" and an empty answer as ErrAbort
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, domain.ErrAborted
		}
		return false, fmt.Errorf("confirmation failed: %w", err)
	}
	return true, nil
}

// SelectDeployment lets the operator pick one of the given deployments
func (s *SelectorAdapter) SelectDeployment(ctx context.Context, deployments []*models.Deployment, prompt string) (*models.Deployment, error) {
	if s.config.NonInteractive {
		return nil, fmt.Errorf("interactive selection not available in non-interactive mode")
	}

	if len(deployments) == 0 {
		return nil, fmt.Errorf("no deployments provided for selection")
	}

	if len(deployments) == 1 {
		return deployments[0], nil
	}

	options := formatDeploymentOptions(deployments)

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "▸ {{ . | cyan }}",
		Inactive: "  {{ . | faint }}",
		Selected: "✓ {{ . | green }}",
		Help:     color.New(color.FgYellow).Sprint("Use arrow keys to navigate, Enter to select"),
	}

	promptSelect := promptui.Select{
		Label:             prompt,
		Items:             options,
		Templates:         templates,
		Size:              10,
		StartInSearchMode: true,
		Searcher:          createFuzzySearchFunc(options),
	}

	index, _, err := promptSelect.Run()
	if err != nil {
		return nil, fmt.Errorf("selection cancelled: %w", err)
	}

	return deployments[index], nil
}

// formatDeploymentOptions creates display strings for deployment selection
func formatDeploymentOptions(deployments []*models.Deployment) []string {
	options := make([]string, len(deployments))
	for i, dep := range deployments {
		name := color.New(color.FgWhite, color.Bold).Sprint(dep.DisplayName())
		addr := color.New(color.FgBlue).Sprint(dep.Address)

		if dep.IsVerified() {
			options[i] = fmt.Sprintf("%s %s (%s)", name, color.New(color.FgGreen).Sprint("[verified]"), addr)
		} else {
			options[i] = fmt.Sprintf("%s (%s)", name, addr)
		}
	}
	return options
}

// createFuzzySearchFunc creates a fuzzy search function for promptui
func createFuzzySearchFunc(items []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		if input == "" {
			return true
		}

		input = strings.ToLower(input)
		item := strings.ToLower(items[index])

		if strings.Contains(item, input) {
			return true
		}

		return len(fuzzy.Find(input, []string{item})) > 0
	}
}

// Ensure the adapter implements the interfaces
var (
	_ usecase.Confirmer          = (*SelectorAdapter)(nil)
	_ usecase.DeploymentSelector = (*SelectorAdapter)(nil)
)
