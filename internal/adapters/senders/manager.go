package senders

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// Keyring finds the private key controlling an address among the keys
// configured for a network.
type Keyring struct {
	project *config.ProjectFile
}

// NewKeyring creates a keyring over the loaded project file
func NewKeyring(cfg *config.RuntimeConfig) *Keyring {
	return &Keyring{project: cfg.Project}
}

// KeyFor returns the key whose address is address
func (k *Keyring) KeyFor(ctx context.Context, network string, address common.Address) (*ecdsa.PrivateKey, error) {
	keys := k.project.SignerKeys(network)
	for i, raw := range keys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return nil, fmt.Errorf("signer key %d for %s is not a valid private key", i, network)
		}
		if crypto.PubkeyToAddress(key.PublicKey) == address {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: none of the %d keys configured for %s controls %s",
		domain.ErrNoSigner, len(keys), network, address.Hex())
}

// Addresses returns the addresses of the keys configured for a network
func (k *Keyring) Addresses(network string) ([]common.Address, error) {
	keys := k.project.SignerKeys(network)
	addrs := make([]common.Address, 0, len(keys))
	for i, raw := range keys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return nil, fmt.Errorf("signer key %d for %s is not a valid private key", i, network)
		}
		addrs = append(addrs, crypto.PubkeyToAddress(key.PublicKey))
	}
	return addrs, nil
}

// Ensure the adapter implements the interface
var _ usecase.SignerProvider = (*Keyring)(nil)
