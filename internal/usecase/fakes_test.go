package usecase_test

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/lend-deploy/internal/adapters/artifacts"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

const deployerKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func deployerKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.HexToECDSA(deployerKeyHex)
	require.NoError(t, err)
	return key
}

// memStore is an in-memory DeploymentStore
type memStore struct {
	mu          sync.Mutex
	deployments map[string]*models.Deployment
	calls       map[string]*models.Initialization
	locked      map[string]bool
	saves       int
}

func newMemStore() *memStore {
	return &memStore{
		deployments: make(map[string]*models.Deployment),
		calls:       make(map[string]*models.Initialization),
		locked:      make(map[string]bool),
	}
}

func (s *memStore) GetDeployment(ctx context.Context, network, name string) (*models.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deployments[network+"/"+name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*models.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Deployment
	for _, d := range s.deployments {
		if filter.Network != "" && d.Network != filter.Network {
			continue
		}
		if filter.ContractName != "" && d.ContractName != filter.ContractName {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) SaveDeployment(ctx context.Context, d *models.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.deployments[d.Network+"/"+d.Name] = &cp
	s.saves++
	return nil
}

func (s *memStore) DeleteDeployment(ctx context.Context, network, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deployments[network+"/"+name]; !ok {
		return domain.ErrNotFound
	}
	delete(s.deployments, network+"/"+name)
	return nil
}

func (s *memStore) GetInitialization(ctx context.Context, network, step string) (*models.Initialization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.calls[network+"/"+step]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) SaveInitialization(ctx context.Context, network string, rec *models.Initialization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.calls[network+"/"+rec.Step] = &cp
	return nil
}

func (s *memStore) ListInitializations(ctx context.Context, network string) ([]*models.Initialization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Initialization
	for key, rec := range s.calls {
		if strings.HasPrefix(key, network+"/") {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

func (s *memStore) Lock(ctx context.Context, network string) (func() error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[network] {
		return nil, fmt.Errorf("another run holds the lock for network %s", network)
	}
	s.locked[network] = true
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.locked, network)
		return nil
	}, nil
}

// fakeArtifacts serves parsed artifacts from memory and links with the real linker
type fakeArtifacts struct {
	byName map[string]*models.Artifact
}

func newFakeArtifacts(t *testing.T, defs map[string]string) *fakeArtifacts {
	t.Helper()
	f := &fakeArtifacts{byName: make(map[string]*models.Artifact)}
	for name, abiJSON := range defs {
		parsed, err := gethabi.JSON(strings.NewReader(abiJSON))
		require.NoError(t, err)
		f.byName[name] = &models.Artifact{
			Name:            name,
			SourcePath:      "src/" + name + ".sol",
			CompilerVersion: "0.8.9+commit.e5eed63a",
			ABI:             parsed,
			Bytecode:        "0x6080604052",
		}
	}
	return f
}

func (f *fakeArtifacts) GetArtifact(ctx context.Context, name string) (*models.Artifact, error) {
	a, ok := f.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrContractNotFound, name)
	}
	return a, nil
}

func (f *fakeArtifacts) Link(artifact *models.Artifact, libraries map[string]common.Address) ([]byte, error) {
	return artifacts.Link(artifact, libraries)
}

// staticAccounts resolves roles from a fixed map
type staticAccounts map[string]common.Address

func (a staticAccounts) Resolve(ctx context.Context, network string, roles []string) (map[string]common.Address, error) {
	out := make(map[string]common.Address)
	var missing []string
	for _, role := range roles {
		addr, ok := a[role]
		if !ok {
			missing = append(missing, role)
			continue
		}
		out[role] = addr
	}
	if len(missing) > 0 {
		return nil, &domain.MissingAccountsError{Network: network, Roles: missing}
	}
	return out, nil
}

func (a staticAccounts) ResolveAll(ctx context.Context, network string) (map[string]common.Address, []string, error) {
	return a, nil, nil
}

// staticSigner holds one key
type staticSigner struct {
	key *ecdsa.PrivateKey
}

func (s staticSigner) KeyFor(ctx context.Context, network string, address common.Address) (*ecdsa.PrivateKey, error) {
	if crypto.PubkeyToAddress(s.key.PublicKey) != address {
		return nil, domain.ErrNoSigner
	}
	return s.key, nil
}

func (s staticSigner) Addresses(network string) ([]common.Address, error) {
	return []common.Address{crypto.PubkeyToAddress(s.key.PublicKey)}, nil
}

// fakeChain is a NetworkClient that mines every transaction immediately
type fakeChain struct {
	mu       sync.Mutex
	chainID  uint64
	from     common.Address
	nonce    uint64
	code     map[common.Address]bool
	deploys  int
	calls    []usecase.CallRequest
	revertOn map[string]bool // method selector hex -> revert
}

func newFakeChain(chainID uint64) *fakeChain {
	return &fakeChain{
		chainID:  chainID,
		code:     make(map[common.Address]bool),
		revertOn: make(map[string]bool),
	}
}

func (c *fakeChain) ChainID(ctx context.Context) (uint64, error) { return c.chainID, nil }

func (c *fakeChain) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce, nil
}

func (c *fakeChain) Deploy(ctx context.Context, req usecase.DeployRequest) (*usecase.TxReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr := crypto.CreateAddress(c.from, c.nonce)
	c.nonce++
	c.deploys++
	c.code[addr] = true
	return &usecase.TxReceipt{
		TxHash:          common.BigToHash(common.Big1),
		BlockNumber:     100 + c.nonce,
		GasUsed:         21000,
		ContractAddress: addr,
	}, nil
}

func (c *fakeChain) Transact(ctx context.Context, req usecase.CallRequest) (*usecase.TxReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(req.Data) >= 4 && c.revertOn[common.Bytes2Hex(req.Data[:4])] {
		return nil, &domain.RevertError{TxHash: "0xdead", Reason: "already initialized"}
	}
	c.nonce++
	c.calls = append(c.calls, req)
	return &usecase.TxReceipt{TxHash: common.BigToHash(common.Big2), BlockNumber: 100 + c.nonce, GasUsed: 50000}, nil
}

func (c *fakeChain) HasCode(ctx context.Context, address common.Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code[address], nil
}

func (c *fakeChain) Close() {}

// fakeDialer hands out the same fakeChain and counts connections
type fakeDialer struct {
	chain *fakeChain
	dials int
	keys  []*ecdsa.PrivateKey
}

func (d *fakeDialer) Dial(ctx context.Context, network *config.Network, key *ecdsa.PrivateKey) (usecase.NetworkClient, error) {
	d.dials++
	d.keys = append(d.keys, key)
	if key != nil {
		d.chain.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return d.chain, nil
}

// MockConfirmer is a mock implementation of Confirmer
type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	args := m.Called(ctx, prompt)
	return args.Bool(0), args.Error(1)
}

// MockProgressSink records progress events
type MockProgressSink struct {
	events []usecase.ProgressEvent
}

func (m *MockProgressSink) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	m.events = append(m.events, event)
}

func (m *MockProgressSink) Info(string)  {}
func (m *MockProgressSink) Error(string) {}

func (m *MockProgressSink) stages() []string {
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Stage
	}
	return out
}
