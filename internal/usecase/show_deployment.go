package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

// ShowDeploymentParams contains parameters for showing a deployment
type ShowDeploymentParams struct {
	// Query is a registry id, an address or a contract name (optionally
	// followed by :label)
	Query string
}

// ShowDeployment resolves one deployment out of the registry
type ShowDeployment struct {
	config   *config.RuntimeConfig
	repo     DeploymentRepository
	selector DeploymentSelector
	sink     ProgressSink
}

// NewShowDeployment creates a new ShowDeployment use case
func NewShowDeployment(cfg *config.RuntimeConfig, repo DeploymentRepository, selector DeploymentSelector, sink ProgressSink) *ShowDeployment {
	return &ShowDeployment{
		config:   cfg,
		repo:     repo,
		selector: selector,
		sink:     sink,
	}
}

// Run executes the show deployment use case
func (uc *ShowDeployment) Run(ctx context.Context, params ShowDeploymentParams) (*domain.DeploymentRecord, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployment details",
		Spinner: true,
	})

	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: deployment id, address or contract name required", domain.ErrInvalidRequest)
	}

	if common.IsHexAddress(query) {
		return uc.repo.GetDeploymentByAddress(ctx, uc.config.Network.ChainID, common.HexToAddress(query))
	}

	if strings.Contains(query, "/") {
		return uc.repo.GetDeployment(ctx, query)
	}

	name, label, _ := strings.Cut(query, ":")
	rec, err := uc.repo.GetDeployment(ctx, DeploymentID(uc.config.Network.Name, name, label))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	all, err := uc.repo.ListDeployments(ctx, DeploymentFilter{Network: uc.config.Network.Name})
	if err != nil {
		return nil, err
	}
	matches := lo.Filter(all, func(d *domain.DeploymentRecord, _ int) bool {
		if !strings.EqualFold(d.ContractName, name) {
			return false
		}
		return label == "" || strings.EqualFold(d.Label, label)
	})
	sortDeployments(matches)

	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w: no deployment matches %q on %s", domain.ErrNotFound, query, uc.config.Network.Name)
	case len(matches) == 1:
		return matches[0], nil
	case uc.selector == nil || uc.config.NonInteractive:
		ids := lo.Map(matches, func(d *domain.DeploymentRecord, _ int) string { return d.ID })
		return nil, fmt.Errorf("%q is ambiguous, use one of: %s", query, strings.Join(ids, ", "))
	default:
		return uc.selector.SelectDeployment(ctx, matches, "Select deployment")
	}
}
