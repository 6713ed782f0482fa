package usecase

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
)

// DeploymentStore handles persistence of deployment and initialization records
type DeploymentStore interface {
	GetDeployment(ctx context.Context, network, name string) (*models.Deployment, error)
	ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*models.Deployment, error)
	SaveDeployment(ctx context.Context, deployment *models.Deployment) error
	DeleteDeployment(ctx context.Context, network, name string) error
	GetInitialization(ctx context.Context, network, step string) (*models.Initialization, error)
	SaveInitialization(ctx context.Context, network string, init *models.Initialization) error
	ListInitializations(ctx context.Context, network string) ([]*models.Initialization, error)
	// Lock takes the exclusive per-network write lock. The returned func releases it.
	Lock(ctx context.Context, network string) (func() error, error)
}

// ArtifactRepository provides access to compiled contracts
type ArtifactRepository interface {
	GetArtifact(ctx context.Context, name string) (*models.Artifact, error)
	// Link substitutes library addresses into the artifact's creation code
	Link(artifact *models.Artifact, libraries map[string]common.Address) ([]byte, error)
}

// ArgumentEncoder converts resolved pipeline values into ABI-encoded data
type ArgumentEncoder interface {
	EncodeConstructor(contract *abi.ABI, args []any) ([]byte, error)
	EncodeCall(contract *abi.ABI, method string, args []any) ([]byte, error)
}

// NamedAccountResolver maps role names to addresses for a network
type NamedAccountResolver interface {
	Resolve(ctx context.Context, network string, roles []string) (map[string]common.Address, error)
	ResolveAll(ctx context.Context, network string) (map[string]common.Address, []string, error)
}

// SignerProvider looks up the private key that controls an address
type SignerProvider interface {
	KeyFor(ctx context.Context, network string, address common.Address) (*ecdsa.PrivateKey, error)
	// Addresses lists the addresses of the keys configured for a network
	Addresses(network string) ([]common.Address, error)
}

// NetworkResolver lists and resolves configured networks
type NetworkResolver interface {
	Networks() []string
	Resolve(name string) (*config.Network, error)
}

// DeployRequest is a contract creation transaction
type DeployRequest struct {
	Bytecode        []byte // linked creation code
	ConstructorArgs []byte // ABI-encoded, appended to Bytecode
	ABI             *abi.ABI
}

// CallRequest is a state-changing call
type CallRequest struct {
	To   common.Address
	Data []byte
	ABI  *abi.ABI // used to decode custom errors
}

// TxReceipt summarizes a confirmed, successful transaction
type TxReceipt struct {
	TxHash          common.Hash
	BlockNumber     uint64
	GasUsed         uint64
	ContractAddress common.Address
}

// NetworkClient sends transactions to one network and waits for confirmation.
// Deploy and Transact return only after a successful receipt is observed.
type NetworkClient interface {
	ChainID(ctx context.Context) (uint64, error)
	PendingNonce(ctx context.Context, account common.Address) (uint64, error)
	Deploy(ctx context.Context, req DeployRequest) (*TxReceipt, error)
	Transact(ctx context.Context, req CallRequest) (*TxReceipt, error)
	HasCode(ctx context.Context, address common.Address) (bool, error)
	Close()
}

// NetworkDialer connects a NetworkClient. A nil key gives a read-only client.
type NetworkDialer interface {
	Dial(ctx context.Context, network *config.Network, key *ecdsa.PrivateKey) (NetworkClient, error)
}

// ContractVerifier handles contract verification
type ContractVerifier interface {
	Verify(ctx context.Context, deployment *models.Deployment, network *config.Network) error
	Command(deployment *models.Deployment, network *config.Network) []string
}

// Confirmer asks the operator before broadcasting
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// DeploymentSelector lets the operator choose among recorded deployments
type DeploymentSelector interface {
	SelectDeployment(ctx context.Context, deployments []*models.Deployment, prompt string) (*models.Deployment, error)
}

// FileWriter handles file system operations for project scaffolding
type FileWriter interface {
	WriteFile(ctx context.Context, path string, content string) error
	FileExists(ctx context.Context, path string) (bool, error)
	EnsureDirectory(ctx context.Context, path string) error
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata interface{}
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}

// Use case result types

// DeploymentListResult contains the result of listing deployments
type DeploymentListResult struct {
	Deployments []*models.Deployment
	Summary     DeploymentSummary
	// OnChain is populated when the code check was requested, keyed by RecordKey
	OnChain map[string]bool
}

// DeploymentSummary provides summary statistics
type DeploymentSummary struct {
	Total      int
	ByNetwork  map[string]int
	Verified   int
	Unverified int
}

// DeploymentChecker checks recorded deployments against the chain
type DeploymentChecker interface {
	CheckDeployment(ctx context.Context, network *config.Network, deployment *models.Deployment) (exists bool, reason string, err error)
}
