package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
	"github.com/trebuchet-org/sling/internal/testutil"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// MockDeploymentRepository is a mock implementation of DeploymentRepository
type MockDeploymentRepository struct {
	mock.Mock
}

func (m *MockDeploymentRepository) SaveDeployment(ctx context.Context, record *domain.DeploymentRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDeploymentRepository) GetDeployment(ctx context.Context, id string) (*domain.DeploymentRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeploymentRecord), args.Error(1)
}

func (m *MockDeploymentRepository) GetDeploymentByAddress(ctx context.Context, chainID uint64, address common.Address) (*domain.DeploymentRecord, error) {
	args := m.Called(ctx, chainID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeploymentRecord), args.Error(1)
}

func (m *MockDeploymentRepository) ListDeployments(ctx context.Context, filter usecase.DeploymentFilter) ([]*domain.DeploymentRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DeploymentRecord), args.Error(1)
}

func (m *MockDeploymentRepository) SaveTransaction(ctx context.Context, record *domain.TransactionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDeploymentRepository) GetTransaction(ctx context.Context, hash common.Hash) (*domain.TransactionRecord, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransactionRecord), args.Error(1)
}

func (m *MockDeploymentRepository) ListTransactions(ctx context.Context) ([]*domain.TransactionRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TransactionRecord), args.Error(1)
}

// MockDeploymentSelector is a mock implementation of DeploymentSelector
type MockDeploymentSelector struct {
	mock.Mock
}

func (m *MockDeploymentSelector) SelectDeployment(ctx context.Context, records []*domain.DeploymentRecord, prompt string) (*domain.DeploymentRecord, error) {
	args := m.Called(ctx, records, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeploymentRecord), args.Error(1)
}

func registryConfig() *config.RuntimeConfig {
	return &config.RuntimeConfig{Network: domain.DefaultNetworkProfile(), NonInteractive: true}
}

func record(network, name, label string, addr int, verified bool, age time.Duration) *domain.DeploymentRecord {
	return &domain.DeploymentRecord{
		ID:           usecase.DeploymentID(network, name, label),
		Network:      network,
		ChainID:      domain.DefaultChainID,
		ContractName: name,
		Label:        label,
		Address:      testutil.Address(addr),
		CodeVerified: verified,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(age),
	}
}

func TestListDeployments_Run(t *testing.T) {
	ctx := context.Background()
	cfg := registryConfig()

	t.Run("active network sorted with summary", func(t *testing.T) {
		repo := new(MockDeploymentRepository)
		repo.On("ListDeployments", ctx, usecase.DeploymentFilter{
			Network: cfg.Network.Name,
			ChainID: cfg.Network.ChainID,
		}).Return([]*domain.DeploymentRecord{
			record("private", "Token", "", 3, true, 0),
			record("private", "Storage", "v2", 2, false, time.Hour),
			record("private", "Storage", "v1", 1, true, 2*time.Hour),
		}, nil)

		uc := usecase.NewListDeployments(cfg, repo, usecase.NopProgress{})
		result, err := uc.Run(ctx, usecase.ListDeploymentsParams{})
		require.NoError(t, err)

		ids := make([]string, len(result.Deployments))
		for i, d := range result.Deployments {
			ids[i] = d.ID
		}
		assert.Equal(t, []string{"private/Storage:v1", "private/Storage:v2", "private/Token"}, ids)
		assert.Equal(t, 3, result.Summary.Total)
		assert.Equal(t, map[string]int{"private": 3}, result.Summary.ByNetwork)
		assert.Equal(t, 1, result.Summary.Unverified)
		repo.AssertExpectations(t)
	})

	t.Run("all networks by contract", func(t *testing.T) {
		repo := new(MockDeploymentRepository)
		repo.On("ListDeployments", ctx, usecase.DeploymentFilter{ContractName: "Storage"}).
			Return([]*domain.DeploymentRecord{
				record("staging", "Storage", "", 2, true, 0),
				record("private", "Storage", "", 1, true, 0),
			}, nil)

		uc := usecase.NewListDeployments(cfg, repo, usecase.NopProgress{})
		result, err := uc.Run(ctx, usecase.ListDeploymentsParams{ContractName: "Storage", AllNetworks: true})
		require.NoError(t, err)
		require.Len(t, result.Deployments, 2)
		assert.Equal(t, "private", result.Deployments[0].Network)
		assert.Equal(t, map[string]int{"private": 1, "staging": 1}, result.Summary.ByNetwork)
		repo.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := new(MockDeploymentRepository)
		repo.On("ListDeployments", ctx, mock.Anything).Return(nil, errors.New("disk full"))

		uc := usecase.NewListDeployments(cfg, repo, usecase.NopProgress{})
		_, err := uc.Run(ctx, usecase.ListDeploymentsParams{})
		assert.EqualError(t, err, "disk full")
	})
}

func TestShowDeployment_Run(t *testing.T) {
	ctx := context.Background()
	storage := record("private", "Storage", "", 1, true, 0)
	v1 := record("private", "Storage", "v1", 2, true, time.Hour)
	v2 := record("private", "Storage", "v2", 3, true, 2*time.Hour)

	tests := []struct {
		name  string
		query string
		setup func(repo *MockDeploymentRepository)
		want  *domain.DeploymentRecord
		err   string
	}{
		{
			name:  "by address",
			query: testutil.Address(1).Hex(),
			setup: func(repo *MockDeploymentRepository) {
				repo.On("GetDeploymentByAddress", ctx, uint64(domain.DefaultChainID), testutil.Address(1)).Return(storage, nil)
			},
			want: storage,
		},
		{
			name:  "by id",
			query: "private/Storage:v1",
			setup: func(repo *MockDeploymentRepository) {
				repo.On("GetDeployment", ctx, "private/Storage:v1").Return(v1, nil)
			},
			want: v1,
		},
		{
			name:  "by name and label",
			query: "Storage:V2",
			setup: func(repo *MockDeploymentRepository) {
				repo.On("GetDeployment", ctx, "private/Storage:v2").Return(v2, nil)
			},
			want: v2,
		},
		{
			name:  "falls back to a case-insensitive name match",
			query: "storage",
			setup: func(repo *MockDeploymentRepository) {
				repo.On("GetDeployment", ctx, "private/storage").Return(nil, domain.ErrNotFound)
				repo.On("ListDeployments", ctx, usecase.DeploymentFilter{Network: "private"}).
					Return([]*domain.DeploymentRecord{storage}, nil)
			},
			want: storage,
		},
		{
			name:  "no match",
			query: "Stor",
			setup: func(repo *MockDeploymentRepository) {
				repo.On("GetDeployment", ctx, "private/Stor").Return(nil, domain.ErrNotFound)
				repo.On("ListDeployments", ctx, usecase.DeploymentFilter{Network: "private"}).
					Return([]*domain.DeploymentRecord{}, nil)
			},
			err: "no deployment matches",
		},
		{
			name:  "several matches",
			query: "storage",
			setup: func(repo *MockDeploymentRepository) {
				repo.On("GetDeployment", ctx, "private/storage").Return(nil, domain.ErrNotFound)
				repo.On("ListDeployments", ctx, usecase.DeploymentFilter{Network: "private"}).
					Return([]*domain.DeploymentRecord{v2, v1}, nil)
			},
			err: `"storage" is ambiguous, use one of: private/Storage:v1, private/Storage:v2`,
		},
		{
			name:  "empty query",
			query: "  ",
			setup: func(repo *MockDeploymentRepository) {},
			err:   "deployment id, address or contract name required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockDeploymentRepository)
			tt.setup(repo)

			uc := usecase.NewShowDeployment(registryConfig(), repo, nil, usecase.NopProgress{})
			got, err := uc.Run(ctx, usecase.ShowDeploymentParams{Query: tt.query})
			if tt.err != "" {
				assert.ErrorContains(t, err, tt.err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestShowDeployment_SelectorResolvesAmbiguity(t *testing.T) {
	ctx := context.Background()
	v1 := record("private", "Storage", "v1", 2, true, 0)
	v2 := record("private", "Storage", "v2", 3, true, time.Hour)

	repo := new(MockDeploymentRepository)
	repo.On("GetDeployment", ctx, "private/Storage").Return(nil, domain.ErrNotFound)
	repo.On("ListDeployments", ctx, usecase.DeploymentFilter{Network: "private"}).
		Return([]*domain.DeploymentRecord{v2, v1}, nil)

	selector := new(MockDeploymentSelector)
	selector.On("SelectDeployment", ctx, []*domain.DeploymentRecord{v1, v2}, "Select deployment").Return(v2, nil)

	cfg := registryConfig()
	cfg.NonInteractive = false
	uc := usecase.NewShowDeployment(cfg, repo, selector, usecase.NopProgress{})

	got, err := uc.Run(ctx, usecase.ShowDeploymentParams{Query: "Storage"})
	require.NoError(t, err)
	assert.Equal(t, v2, got)
	selector.AssertExpectations(t)
}

func TestDeploymentID(t *testing.T) {
	assert.Equal(t, "private/Storage", usecase.DeploymentID("private", "Storage", ""))
	assert.Equal(t, "private/Storage:v1", usecase.DeploymentID("private", "Storage", "V1"))
}
