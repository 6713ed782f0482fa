package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

const (
	// CallsFile holds the initialization records of a network
	CallsFile = ".calls.json"
	// LockFile guards a network directory against concurrent runs
	LockFile = ".lock"
)

// RegistryStore keeps one JSON record per deployment under
// <deployments>/<network>/<Name>.json. Writes go through a temp file and a
// rename so a crash never leaves a half-written record.
type RegistryStore struct {
	rootDir string
	mu      sync.RWMutex
}

// NewRegistryStore creates a store rooted at the configured deployments directory
func NewRegistryStore(cfg *config.RuntimeConfig) *RegistryStore {
	return &RegistryStore{rootDir: cfg.DeploymentsDir}
}

// NewRegistryStoreAt creates a store rooted at dir
func NewRegistryStoreAt(dir string) *RegistryStore {
	return &RegistryStore{rootDir: dir}
}

// GetDeployment retrieves the record of a step on a network
func (s *RegistryStore) GetDeployment(ctx context.Context, network, name string) (*models.Deployment, error) {
	path, err := s.recordPath(network, name)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var dep models.Deployment
	if err := loadJSON(path, &dep); err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if dep.Name == "" {
		dep.Name = name
	}
	if dep.Network == "" {
		dep.Network = network
	}
	return &dep, nil
}

// ListDeployments returns records matching the filter, sorted by network and name
func (s *RegistryStore) ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*models.Deployment, error) {
	networks := []string{filter.Network}
	if filter.Network == "" {
		var err error
		networks, err = s.networks()
		if err != nil {
			return nil, err
		}
	}

	var result []*models.Deployment
	for _, network := range networks {
		names, err := s.recordNames(network)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			dep, err := s.GetDeployment(ctx, network, name)
			if err != nil {
				return nil, err
			}
			if filter.ContractName != "" && dep.ContractName != filter.ContractName {
				continue
			}
			result = append(result, dep)
		}
	}
	return result, nil
}

// SaveDeployment writes a record, replacing any previous one
func (s *RegistryStore) SaveDeployment(ctx context.Context, deployment *models.Deployment) error {
	if deployment.Address == "" {
		return fmt.Errorf("%w: %s has no address", domain.ErrInvalidAddress, deployment.Name)
	}
	path, err := s.recordPath(deployment.Network, deployment.Name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return saveJSON(path, deployment)
}

// DeleteDeployment removes a record
func (s *RegistryStore) DeleteDeployment(ctx context.Context, network, name string) error {
	path, err := s.recordPath(network, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

// GetInitialization retrieves the record of a confirmed call step
func (s *RegistryStore) GetInitialization(ctx context.Context, network, step string) (*models.Initialization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calls, err := s.loadCalls(network)
	if err != nil {
		return nil, err
	}
	rec, ok := calls[step]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// SaveInitialization records a confirmed call step
func (s *RegistryStore) SaveInitialization(ctx context.Context, network string, init *models.Initialization) error {
	if err := validateSegment(network); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	calls, err := s.loadCalls(network)
	if err != nil {
		return err
	}
	calls[init.Step] = init
	return saveJSON(filepath.Join(s.rootDir, network, CallsFile), calls)
}

// ListInitializations returns the network's call records ordered by step name
func (s *RegistryStore) ListInitializations(ctx context.Context, network string) ([]*models.Initialization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calls, err := s.loadCalls(network)
	if err != nil {
		return nil, err
	}
	steps := make([]string, 0, len(calls))
	for step := range calls {
		steps = append(steps, step)
	}
	sort.Strings(steps)

	records := make([]*models.Initialization, len(steps))
	for i, step := range steps {
		records[i] = calls[step]
	}
	return records, nil
}

// Lock takes an exclusive file lock on the network directory. It fails
// immediately when another process holds it.
func (s *RegistryStore) Lock(ctx context.Context, network string) (func() error, error) {
	if err := validateSegment(network); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.rootDir, network)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	fl := flock.New(filepath.Join(dir, LockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("another run holds the lock for network %s (%s)", network, fl.Path())
	}
	return fl.Unlock, nil
}

func (s *RegistryStore) loadCalls(network string) (map[string]*models.Initialization, error) {
	if err := validateSegment(network); err != nil {
		return nil, err
	}
	calls := make(map[string]*models.Initialization)
	path := filepath.Join(s.rootDir, network, CallsFile)
	if err := loadJSON(path, &calls); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return calls, nil
}

func (s *RegistryStore) networks() ([]string, error) {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *RegistryStore) recordNames(network string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.rootDir, network))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (s *RegistryStore) recordPath(network, name string) (string, error) {
	if err := validateSegment(network); err != nil {
		return "", err
	}
	if err := validateSegment(name); err != nil {
		return "", err
	}
	return filepath.Join(s.rootDir, network, name+".json"), nil
}

// validateSegment rejects names that would escape the registry directory
func validateSegment(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid registry name %q", name)
	}
	return nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// saveJSON writes v as indented JSON via a temp file and rename
func saveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Join(err, os.Remove(tmpPath))
	}
	return nil
}

// Ensure the adapter implements the interface
var _ usecase.DeploymentStore = (*RegistryStore)(nil)
