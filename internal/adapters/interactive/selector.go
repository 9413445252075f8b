package interactive

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/sahilm/fuzzy"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// SelectorAdapter asks the operator to pick between ambiguous matches
type SelectorAdapter struct {
	config *config.RuntimeConfig
	// run is swapped in tests; it returns the chosen index
	run func(prompt string, options []string) (int, error)
}

// NewSelectorAdapter creates a new selector adapter
func NewSelectorAdapter(cfg *config.RuntimeConfig) *SelectorAdapter {
	return &SelectorAdapter{config: cfg, run: promptSelect}
}

// SelectContract picks one contract out of a compiler output. Names are
// "Unit:Contract".
func (s *SelectorAdapter) SelectContract(ctx context.Context, names []string, prompt string) (string, error) {
	options := make([]string, len(names))
	for i, name := range names {
		unit, contract, found := strings.Cut(name, ":")
		if !found {
			options[i] = color.New(color.FgWhite, color.Bold).Sprint(name)
			continue
		}
		options[i] = fmt.Sprintf("%s (%s)",
			color.New(color.FgWhite, color.Bold).Sprint(contract),
			color.New(color.FgBlue).Sprint(unit))
	}
	index, err := s.choose(prompt, options)
	if err != nil {
		return "", err
	}
	return names[index], nil
}

// SelectDeployment picks one registry entry
func (s *SelectorAdapter) SelectDeployment(ctx context.Context, records []*domain.DeploymentRecord, prompt string) (*domain.DeploymentRecord, error) {
	options := make([]string, len(records))
	for i, rec := range records {
		name := color.New(color.FgWhite, color.Bold).Sprint(rec.ContractName)
		if rec.Label != "" {
			name += color.New(color.FgYellow).Sprintf(" [%s]", rec.Label)
		}
		options[i] = fmt.Sprintf("%s %s %s", name,
			color.New(color.FgBlue).Sprint(rec.Address.Hex()),
			color.New(color.Faint).Sprint(rec.CreatedAt.Format("2006-01-02 15:04")))
	}
	index, err := s.choose(prompt, options)
	if err != nil {
		return nil, err
	}
	return records[index], nil
}

func (s *SelectorAdapter) choose(prompt string, options []string) (int, error) {
	if s.config.NonInteractive {
		return 0, fmt.Errorf("interactive selection not available in non-interactive mode")
	}
	switch len(options) {
	case 0:
		return 0, fmt.Errorf("nothing to select from")
	case 1:
		return 0, nil
	}
	index, err := s.run(prompt, options)
	if err != nil {
		return 0, fmt.Errorf("selection cancelled: %w", err)
	}
	if index < 0 || index >= len(options) {
		return 0, fmt.Errorf("selection out of range: %d", index)
	}
	return index, nil
}

func promptSelect(prompt string, options []string) (int, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "▸ {{ . | cyan }}",
		Inactive: "  {{ . | faint }}",
		Selected: "✓ {{ . | green }}",
		Help:     color.New(color.FgYellow).Sprint("Use arrow keys to navigate, Enter to select"),
	}

	sel := promptui.Select{
		Label:             prompt,
		Items:             options,
		Templates:         templates,
		Size:              10,
		StartInSearchMode: true,
		Searcher:          createFuzzySearchFunc(options),
	}
	index, _, err := sel.Run()
	return index, err
}

// createFuzzySearchFunc matches substrings first and falls back to fuzzy
// matching, both case-insensitive
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

var (
	_ usecase.ContractSelector   = (*SelectorAdapter)(nil)
	_ usecase.DeploymentSelector = (*SelectorAdapter)(nil)
)
