package adapters

import (
	"github.com/google/wire"
	abiadapter "github.com/trebuchet-org/lend-deploy/internal/adapters/abi"
	"github.com/trebuchet-org/lend-deploy/internal/adapters/artifacts"
	"github.com/trebuchet-org/lend-deploy/internal/adapters/blockchain"
	"github.com/trebuchet-org/lend-deploy/internal/adapters/fs"
	"github.com/trebuchet-org/lend-deploy/internal/adapters/interactive"
	"github.com/trebuchet-org/lend-deploy/internal/adapters/senders"
	"github.com/trebuchet-org/lend-deploy/internal/adapters/verification"
	"github.com/trebuchet-org/lend-deploy/internal/config"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// FSSet provides filesystem-based implementations
var FSSet = wire.NewSet(
	fs.NewRegistryStore,
	wire.Bind(new(usecase.DeploymentStore), new(*fs.RegistryStore)),

	fs.NewFileWriterAdapter,
	wire.Bind(new(usecase.FileWriter), new(*fs.FileWriterAdapter)),
)

// ContractSet provides artifact loading and ABI encoding
var ContractSet = wire.NewSet(
	artifacts.NewRepository,
	wire.Bind(new(usecase.ArtifactRepository), new(*artifacts.Repository)),

	abiadapter.NewArgumentEncoder,
	wire.Bind(new(usecase.ArgumentEncoder), new(*abiadapter.ArgumentEncoder)),
)

// BlockchainSet provides blockchain-based implementations
var BlockchainSet = wire.NewSet(
	blockchain.NewDialer,
	wire.Bind(new(usecase.NetworkDialer), new(*blockchain.Dialer)),

	blockchain.NewCheckerAdapter,
	wire.Bind(new(usecase.DeploymentChecker), new(*blockchain.CheckerAdapter)),

	senders.NewKeyring,
	wire.Bind(new(usecase.SignerProvider), new(*senders.Keyring)),
)

// VerificationSet provides explorer verification
var VerificationSet = wire.NewSet(
	verification.NewVerifierAdapter,
	wire.Bind(new(usecase.ContractVerifier), new(*verification.VerifierAdapter)),
)

// InteractiveSet provides interactive implementations
var InteractiveSet = wire.NewSet(
	interactive.NewSelectorAdapter,
	wire.Bind(new(usecase.Confirmer), new(*interactive.SelectorAdapter)),
	wire.Bind(new(usecase.DeploymentSelector), new(*interactive.SelectorAdapter)),
)

// ConfigSet provides configuration-based implementations
var ConfigSet = wire.NewSet(
	config.ProvideNetworkResolver,
	wire.Bind(new(usecase.NetworkResolver), new(*config.NetworkResolver)),

	config.NewAccountResolver,
	wire.Bind(new(usecase.NamedAccountResolver), new(*config.AccountResolver)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	FSSet,
	ContractSet,
	BlockchainSet,
	VerificationSet,
	InteractiveSet,
	ConfigSet,
)
