package config

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
)

// AccountResolver resolves [named_accounts] roles to addresses for a network
type AccountResolver struct {
	project *config.ProjectFile
}

// NewAccountResolver creates a resolver over the loaded project file
func NewAccountResolver(cfg *config.RuntimeConfig) *AccountResolver {
	return &AccountResolver{project: cfg.Project}
}

// Resolve returns an address for every role. All unresolved roles are
// reported together in a *domain.MissingAccountsError.
func (r *AccountResolver) Resolve(ctx context.Context, network string, roles []string) (map[string]common.Address, error) {
	resolved := make(map[string]common.Address, len(roles))
	var missing []string

	for _, role := range roles {
		if _, done := resolved[role]; done {
			continue
		}
		addr, ok, err := r.resolveRole(network, role)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, role)
			continue
		}
		resolved[role] = addr
	}

	if len(missing) > 0 {
		return nil, &domain.MissingAccountsError{Network: network, Roles: missing}
	}
	return resolved, nil
}

// ResolveAll resolves every configured role, returning what resolved and the
// names of roles that did not.
func (r *AccountResolver) ResolveAll(ctx context.Context, network string) (map[string]common.Address, []string, error) {
	resolved := make(map[string]common.Address)
	var missing []string
	for _, role := range r.project.RoleNames() {
		addr, ok, err := r.resolveRole(network, role)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			missing = append(missing, role)
			continue
		}
		resolved[role] = addr
	}
	return resolved, missing, nil
}

func (r *AccountResolver) resolveRole(network, role string) (common.Address, bool, error) {
	entries, ok := r.project.NamedAccounts[role]
	if !ok {
		return common.Address{}, false, nil
	}

	value, ok := entries[network]
	if !ok {
		value, ok = entries[config.DefaultKey]
	}
	if !ok {
		return common.Address{}, false, nil
	}

	switch v := value.(type) {
	case string:
		if v == "" {
			return common.Address{}, false, nil
		}
		if !common.IsHexAddress(v) {
			return common.Address{}, false, fmt.Errorf("%w: named account %s on %s: %q", domain.ErrInvalidAddress, role, network, v)
		}
		return common.HexToAddress(v), true, nil
	case int64:
		return r.signerAddress(network, role, int(v))
	case int:
		return r.signerAddress(network, role, v)
	case float64:
		if v != math.Trunc(v) {
			return common.Address{}, false, fmt.Errorf("named account %s on %s: signer index must be an integer, got %v", role, network, v)
		}
		return r.signerAddress(network, role, int(v))
	default:
		return common.Address{}, false, fmt.Errorf("named account %s on %s: unsupported value %v", role, network, value)
	}
}

// signerAddress maps a signer index to the address of that configured key
func (r *AccountResolver) signerAddress(network, role string, index int) (common.Address, bool, error) {
	keys := r.project.SignerKeys(network)
	if index < 0 || index >= len(keys) {
		return common.Address{}, false, nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(keys[index], "0x"))
	if err != nil {
		return common.Address{}, false, fmt.Errorf("named account %s on %s: invalid private key at index %d: %w", role, network, index, err)
	}
	return crypto.PubkeyToAddress(key.PublicKey), true, nil
}
