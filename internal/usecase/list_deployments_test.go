package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// MockDeploymentChecker is a mock implementation of DeploymentChecker
type MockDeploymentChecker struct {
	mock.Mock
}

func (m *MockDeploymentChecker) CheckDeployment(ctx context.Context, network *config.Network, deployment *models.Deployment) (bool, string, error) {
	args := m.Called(ctx, network, deployment)
	return args.Bool(0), args.String(1), args.Error(2)
}

// MockNetworkResolver is a mock implementation of NetworkResolver
type MockNetworkResolver struct {
	mock.Mock
}

func (m *MockNetworkResolver) Networks() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockNetworkResolver) Resolve(name string) (*config.Network, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*config.Network), args.Error(1)
}

func record(network, name string, created time.Time, verified bool) *models.Deployment {
	dep := &models.Deployment{
		Name:         name,
		ContractName: name,
		Network:      network,
		Address:      "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		Verification: models.VerificationInfo{Status: models.VerificationStatusUnverified},
		CreatedAt:    created,
	}
	if verified {
		dep.Verification.Status = models.VerificationStatusVerified
	}
	return dep
}

func seedStore(t *testing.T) *memStore {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	for _, dep := range []*models.Deployment{
		record("bsctest", "LendingPool", base.Add(2*time.Minute), false),
		record("bsctest", "ReserveLogic", base, true),
		record("bsctest", "AToken", base.Add(time.Minute), false),
		record("bscmain", "ReserveLogic", base, true),
	} {
		require.NoError(t, store.SaveDeployment(ctx, dep))
	}
	return store
}

func TestListDeployments(t *testing.T) {
	ctx := context.Background()

	t.Run("all networks in creation order", func(t *testing.T) {
		uc := usecase.NewListDeployments(&config.RuntimeConfig{}, seedStore(t), nil, nil, &MockProgressSink{})

		result, err := uc.Run(ctx, usecase.ListDeploymentsParams{})
		require.NoError(t, err)
		require.Len(t, result.Deployments, 4)

		var names []string
		for _, dep := range result.Deployments {
			names = append(names, dep.Network+"/"+dep.Name)
		}
		assert.Equal(t, []string{
			"bscmain/ReserveLogic",
			"bsctest/ReserveLogic",
			"bsctest/AToken",
			"bsctest/LendingPool",
		}, names)

		assert.Equal(t, 4, result.Summary.Total)
		assert.Equal(t, map[string]int{"bsctest": 3, "bscmain": 1}, result.Summary.ByNetwork)
		assert.Equal(t, 2, result.Summary.Verified)
		assert.Equal(t, 2, result.Summary.Unverified)
		assert.Nil(t, result.OnChain)
	})

	t.Run("active network and contract filter", func(t *testing.T) {
		cfg := &config.RuntimeConfig{Network: &config.Network{Name: "bsctest", ChainID: 97}}
		uc := usecase.NewListDeployments(cfg, seedStore(t), nil, nil, &MockProgressSink{})

		result, err := uc.Run(ctx, usecase.ListDeploymentsParams{ContractName: "ReserveLogic"})
		require.NoError(t, err)
		require.Len(t, result.Deployments, 1)
		assert.Equal(t, "bsctest", result.Deployments[0].Network)
	})

	t.Run("empty registry", func(t *testing.T) {
		uc := usecase.NewListDeployments(&config.RuntimeConfig{}, newMemStore(), nil, nil, &MockProgressSink{})
		result, err := uc.Run(ctx, usecase.ListDeploymentsParams{CheckOnChain: true})
		require.NoError(t, err)
		assert.Empty(t, result.Deployments)
		assert.Equal(t, 0, result.Summary.Total)
	})

	t.Run("on-chain check resolves each network once", func(t *testing.T) {
		testnet := &config.Network{Name: "bsctest", ChainID: 97}
		mainnet := &config.Network{Name: "bscmain", ChainID: 56}

		networks := new(MockNetworkResolver)
		networks.On("Resolve", "bsctest").Return(testnet, nil).Once()
		networks.On("Resolve", "bscmain").Return(mainnet, nil).Once()

		checker := new(MockDeploymentChecker)
		checker.On("CheckDeployment", mock.Anything, mainnet, mock.Anything).Return(true, "", nil)
		checker.On("CheckDeployment", mock.Anything, testnet, mock.MatchedBy(func(d *models.Deployment) bool {
			return d.Name == "AToken"
		})).Return(false, "no code at address", nil)
		checker.On("CheckDeployment", mock.Anything, testnet, mock.Anything).Return(true, "", nil)

		sink := &MockProgressSink{}
		uc := usecase.NewListDeployments(&config.RuntimeConfig{}, seedStore(t), networks, checker, sink)

		result, err := uc.Run(ctx, usecase.ListDeploymentsParams{CheckOnChain: true})
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{
			"bscmain/ReserveLogic": true,
			"bsctest/ReserveLogic": true,
			"bsctest/AToken":       false,
			"bsctest/LendingPool":  true,
		}, result.OnChain)

		networks.AssertExpectations(t)
		checker.AssertNumberOfCalls(t, "CheckDeployment", 4)
		assert.Contains(t, sink.stages(), "checking")
	})

	t.Run("check error aborts", func(t *testing.T) {
		networks := new(MockNetworkResolver)
		networks.On("Resolve", mock.Anything).Return(nil, errors.New("network 'bscmain' has no rpc_url"))

		uc := usecase.NewListDeployments(&config.RuntimeConfig{}, seedStore(t), networks, new(MockDeploymentChecker), &MockProgressSink{})
		_, err := uc.Run(ctx, usecase.ListDeploymentsParams{CheckOnChain: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rpc_url")
	})
}
