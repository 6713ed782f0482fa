package usecase

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
)

// RunPipeline executes a deployment pipeline against the active network
type RunPipeline struct {
	config    *config.RuntimeConfig
	store     DeploymentStore
	artifacts ArtifactRepository
	encoder   ArgumentEncoder
	accounts  NamedAccountResolver
	signers   SignerProvider
	dialer    NetworkDialer
	confirmer Confirmer
	progress  ProgressSink
	log       *slog.Logger
}

// NewRunPipeline creates a new RunPipeline use case
func NewRunPipeline(
	cfg *config.RuntimeConfig,
	store DeploymentStore,
	artifacts ArtifactRepository,
	encoder ArgumentEncoder,
	accounts NamedAccountResolver,
	signers SignerProvider,
	dialer NetworkDialer,
	confirmer Confirmer,
	progress ProgressSink,
	log *slog.Logger,
) *RunPipeline {
	return &RunPipeline{
		config:    cfg,
		store:     store,
		artifacts: artifacts,
		encoder:   encoder,
		accounts:  accounts,
		signers:   signers,
		dialer:    dialer,
		confirmer: confirmer,
		progress:  progress,
		log:       log.With("component", "RunPipeline"),
	}
}

// RunPipelineParams contains parameters for a pipeline run
type RunPipelineParams struct {
	PipelinePath string
	DryRun       bool
	Force        []string // steps to execute again even if recorded
	Reset        bool     // execute every step again
}

// StepStatus is the outcome of one step
type StepStatus string

const (
	StepStatusDeployed StepStatus = "deployed"
	StepStatusReused   StepStatus = "reused"
	StepStatusCalled   StepStatus = "called"
	StepStatusSkipped  StepStatus = "skipped"
	StepStatusPlanned  StepStatus = "planned"
	StepStatusFailed   StepStatus = "failed"
)

// StepResult contains the result of executing a single step
type StepResult struct {
	Step    *models.Step
	Status  StepStatus
	Address common.Address // deployed (or predicted) address, or call target

	Deployment     *models.Deployment
	Initialization *models.Initialization
	Error          error

	// Warning is set when a reused record no longer matches the step,
	// e.g. after a dependency was redeployed with --force
	Warning string
}

// PipelineResult contains the result of a pipeline run
type PipelineResult struct {
	RunID    string
	Pipeline *models.Pipeline
	Network  *config.Network
	Deployer common.Address
	DryRun   bool
	Steps    []*StepResult
	Success  bool
}

// Count returns the number of steps that ended with the given status
func (r *PipelineResult) Count(status StepStatus) int {
	return lo.CountBy(r.Steps, func(s *StepResult) bool { return s.Status == status })
}

// FailedStep returns the step that aborted the run, if any
func (r *PipelineResult) FailedStep() *StepResult {
	s, _ := lo.Find(r.Steps, func(s *StepResult) bool { return s.Status == StepStatusFailed })
	return s
}

// Run loads, validates and executes a pipeline. Steps run strictly in file
// order; the first failure aborts the run and is returned as a
// *domain.StepError together with the partial result. Confirmed steps stay
// recorded, so running again resumes at the first unrecorded step.
func (uc *RunPipeline) Run(ctx context.Context, params RunPipelineParams) (*PipelineResult, error) {
	network := uc.config.Network
	if network == nil {
		return nil, domain.ErrNetworkRequired
	}

	pipeline, err := LoadPipeline(uc.resolvePipelinePath(params.PipelinePath))
	if err != nil {
		return nil, err
	}

	force, err := forcedSteps(pipeline, params)
	if err != nil {
		return nil, err
	}

	// Every named account and env reference must resolve before anything
	// touches the network
	accounts, err := uc.accounts.Resolve(ctx, network.Name, RequiredAccounts(pipeline))
	if err != nil {
		return nil, err
	}
	if missing := lo.Reject(RequiredEnv(pipeline), func(name string, _ int) bool {
		_, ok := os.LookupEnv(name)
		return ok
	}); len(missing) > 0 {
		return nil, fmt.Errorf("%w: environment variables not set: %s", domain.ErrUnresolvedReference, strings.Join(missing, ", "))
	}

	unlock, err := uc.store.Lock(ctx, network.Name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			uc.log.Warn("failed to release registry lock", "network", network.Name, "error", err)
		}
	}()

	session := uc.NewSession(network, pipeline, accounts, params.DryRun, force)
	defer session.Close()

	result := &PipelineResult{
		RunID:    session.runID,
		Pipeline: pipeline,
		Network:  network,
		Deployer: session.deployer,
		DryRun:   params.DryRun,
		Steps:    make([]*StepResult, 0, len(pipeline.Steps)),
	}

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:    "pipeline_planned",
		Total:    len(pipeline.Steps),
		Message:  fmt.Sprintf("Running %s on %s", pipeline.Name, network.Name),
		Metadata: result,
	})

	for i, step := range pipeline.Steps {
		uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:    "step_starting",
			Current:  i + 1,
			Total:    len(pipeline.Steps),
			Message:  step.Name,
			Spinner:  true,
			Metadata: step,
		})

		stepResult, err := session.Execute(ctx, step)
		if err != nil {
			stepResult = &StepResult{Step: step, Status: StepStatusFailed, Error: err}
		}
		result.Steps = append(result.Steps, stepResult)

		uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:    "step_completed",
			Current:  i + 1,
			Total:    len(pipeline.Steps),
			Message:  step.Name,
			Metadata: stepResult,
		})

		if err != nil {
			uc.log.Debug("pipeline aborted", "run", session.runID, "step", step.Name, "error", err)
			return result, &domain.StepError{Step: step.Name, Err: err}
		}
	}

	result.Success = true
	return result, nil
}

// resolvePipelinePath accepts a path, or a name under the pipelines directory
func (uc *RunPipeline) resolvePipelinePath(path string) string {
	if _, err := os.Stat(path); err == nil || filepath.IsAbs(path) {
		return path
	}
	for _, candidate := range []string{path, path + ".yaml", path + ".yml"} {
		full := filepath.Join(uc.config.PipelinesDir, candidate)
		if _, err := os.Stat(full); err == nil {
			return full
		}
	}
	return path
}

func forcedSteps(pipeline *models.Pipeline, params RunPipelineParams) (map[string]bool, error) {
	force := make(map[string]bool)
	if params.Reset {
		for _, step := range pipeline.Steps {
			force[step.Name] = true
		}
		return force, nil
	}
	for _, name := range params.Force {
		if pipeline.StepByName(name) == nil {
			return nil, fmt.Errorf("cannot force %s: no such step in %s", name, pipeline.Name)
		}
		force[name] = true
	}
	return force, nil
}

// Session executes steps of one pipeline run. The network connection is
// opened on the first step that has to send (or, in a dry run, predict) a
// transaction, so a fully recorded pipeline never touches the RPC endpoint.
type Session struct {
	uc       *RunPipeline
	network  *config.Network
	pipeline *models.Pipeline
	runID    string
	deployer common.Address
	dryRun   bool
	force    map[string]bool
	scope    *referenceScope

	client  NetworkClient
	chainID uint64

	// dry-run address prediction
	nonce       uint64
	nonceLoaded bool
}

// NewSession creates a session over resolved named accounts. accounts must
// contain the deployer role.
func (uc *RunPipeline) NewSession(
	network *config.Network,
	pipeline *models.Pipeline,
	accounts map[string]common.Address,
	dryRun bool,
	force map[string]bool,
) *Session {
	if force == nil {
		force = make(map[string]bool)
	}
	return &Session{
		uc:       uc,
		network:  network,
		pipeline: pipeline,
		runID:    uuid.NewString(),
		deployer: accounts[DeployerRole],
		dryRun:   dryRun,
		force:    force,
		scope:    newReferenceScope(network.Name, accounts),
		chainID:  network.ChainID,
	}
}

// Close releases the network connection, if one was opened
func (s *Session) Close() {
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

// Execute runs one step
func (s *Session) Execute(ctx context.Context, step *models.Step) (*StepResult, error) {
	switch step.Kind {
	case models.StepDeploy:
		return s.Deploy(ctx, step)
	case models.StepCall:
		return s.Initialize(ctx, step)
	default:
		return nil, fmt.Errorf("step %s: unknown kind %q", step.Name, step.Kind)
	}
}

// Deploy deploys the step's contract unless a record already exists for
// (network, step name). An existing record is returned as is and no
// transaction is sent. A new record is persisted before Deploy returns.
func (s *Session) Deploy(ctx context.Context, step *models.Step) (*StepResult, error) {
	log := s.uc.log.With("step", step.Name, "network", s.network.Name)
	result := &StepResult{Step: step}

	if !s.force[step.Name] {
		existing, err := s.uc.store.GetDeployment(ctx, s.network.Name, step.Name)
		switch {
		case err == nil:
			if !common.IsHexAddress(existing.Address) {
				return nil, fmt.Errorf("%w: record %s has address %q", domain.ErrInvalidAddress, step.Name, existing.Address)
			}
			addr := common.HexToAddress(existing.Address)
			if err := s.scope.bind(step.Name, existing.ContractName, addr); err != nil {
				return nil, err
			}
			log.Debug("reusing recorded deployment", "address", existing.Address)
			if changed := s.changedInputs(step, existing); len(changed) > 0 {
				result.Warning = fmt.Sprintf("%s changed since %s was recorded; pass --force %s to redeploy it",
					strings.Join(changed, " and "), step.Name, step.Name)
				log.Warn("reusing record whose inputs changed", "changed", changed)
			}
			result.Status = StepStatusReused
			result.Address = addr
			result.Deployment = existing
			return result, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("failed to read record for %s: %w", step.Name, err)
		}
	}

	artifact, err := s.uc.artifacts.GetArtifact(ctx, step.Contract)
	if err != nil {
		return nil, err
	}

	libraries, err := s.resolveLibraries(step)
	if err != nil {
		return nil, err
	}

	bytecode, err := s.uc.artifacts.Link(artifact, libraries)
	if err != nil {
		return nil, err
	}

	args, err := s.scope.resolveArgs(step.Args)
	if err != nil {
		return nil, err
	}

	encoded, err := s.uc.encoder.EncodeConstructor(&artifact.ABI, args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constructor arguments for %s: %w", artifact.Name, err)
	}

	deployment := &models.Deployment{
		Name:         step.Name,
		ContractName: artifact.Name,
		Network:      s.network.Name,
		ChainID:      s.chainID,
		Args:         args,
		Libraries:    formatLibraries(artifact, libraries),
		Deployer:     s.deployer.Hex(),
		Artifact: models.ArtifactInfo{
			Path:            artifact.SourcePath,
			CompilerVersion: artifact.CompilerVersion,
			BytecodeHash:    crypto.Keccak256Hash(bytecode).Hex(),
		},
		Verification: models.VerificationInfo{Status: models.VerificationStatusUnverified},
		Pipeline:     s.pipeline.Name,
		RunID:        s.runID,
	}
	if len(encoded) > 0 {
		deployment.ConstructorArgs = hexutil.Encode(encoded)
	}

	if s.dryRun {
		addr, err := s.predictNextAddress(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.scope.bind(step.Name, artifact.Name, addr); err != nil {
			return nil, err
		}
		deployment.Address = addr.Hex()
		result.Status = StepStatusPlanned
		result.Address = addr
		result.Deployment = deployment
		return result, nil
	}

	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	log.Info("deploying contract", "contract", artifact.Name)
	receipt, err := client.Deploy(ctx, DeployRequest{
		Bytecode:        bytecode,
		ConstructorArgs: encoded,
		ABI:             &artifact.ABI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deploy %s: %w", artifact.Name, err)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: deployment of %s returned no contract address (tx %s)", domain.ErrInvalidAddress, artifact.Name, receipt.TxHash.Hex())
	}

	now := time.Now().UTC()
	deployment.ChainID = s.chainID
	deployment.Address = receipt.ContractAddress.Hex()
	deployment.TransactionHash = receipt.TxHash.Hex()
	deployment.BlockNumber = receipt.BlockNumber
	deployment.GasUsed = receipt.GasUsed
	deployment.CreatedAt = now
	deployment.UpdatedAt = now

	if err := s.uc.store.SaveDeployment(ctx, deployment); err != nil {
		return nil, fmt.Errorf("%s deployed at %s but the record could not be saved: %w", step.Name, deployment.Address, err)
	}
	if err := s.scope.bind(step.Name, artifact.Name, receipt.ContractAddress); err != nil {
		return nil, err
	}

	log.Info("contract deployed", "address", deployment.Address, "tx", deployment.TransactionHash)
	result.Status = StepStatusDeployed
	result.Address = receipt.ContractAddress
	result.Deployment = deployment
	return result, nil
}

// Initialize sends the step's call and waits for its receipt. A call
// recorded against the same target address is skipped; if the target was
// redeployed since, the call is sent again.
func (s *Session) Initialize(ctx context.Context, step *models.Step) (*StepResult, error) {
	log := s.uc.log.With("step", step.Name, "network", s.network.Name)

	target, err := s.scope.resolveAddress(step.Target)
	if err != nil {
		return nil, fmt.Errorf("call target: %w", err)
	}
	result := &StepResult{Step: step, Address: target}

	if !s.force[step.Name] {
		existing, err := s.uc.store.GetInitialization(ctx, s.network.Name, step.Name)
		switch {
		case err == nil && strings.EqualFold(existing.Target, target.Hex()):
			log.Debug("call already confirmed", "tx", existing.TransactionHash)
			result.Status = StepStatusSkipped
			result.Initialization = existing
			return result, nil
		case err == nil:
			log.Warn("call target changed since it was recorded, calling again",
				"recorded", existing.Target, "current", target.Hex())
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("failed to read call record for %s: %w", step.Name, err)
		}
	}

	contractName, err := callContract(step, s.scope)
	if err != nil {
		return nil, err
	}
	artifact, err := s.uc.artifacts.GetArtifact(ctx, contractName)
	if err != nil {
		return nil, err
	}

	args, err := s.scope.resolveArgs(step.Args)
	if err != nil {
		return nil, err
	}

	data, err := s.uc.encoder.EncodeCall(&artifact.ABI, step.Method, args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s.%s: %w", artifact.Name, step.Method, err)
	}

	record := &models.Initialization{
		Step:   step.Name,
		Target: target.Hex(),
		Method: step.Method,
		Args:   args,
		RunID:  s.runID,
	}

	if s.dryRun {
		if _, err := s.consumeNonce(ctx); err != nil {
			return nil, err
		}
		result.Status = StepStatusPlanned
		result.Initialization = record
		return result, nil
	}

	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	log.Info("calling contract", "target", target.Hex(), "method", step.Method)
	receipt, err := client.Transact(ctx, CallRequest{To: target, Data: data, ABI: &artifact.ABI})
	if err != nil {
		return nil, fmt.Errorf("%s.%s failed: %w", artifact.Name, step.Method, err)
	}

	record.TransactionHash = receipt.TxHash.Hex()
	record.BlockNumber = receipt.BlockNumber
	record.GasUsed = receipt.GasUsed
	record.CreatedAt = time.Now().UTC()

	if err := s.uc.store.SaveInitialization(ctx, s.network.Name, record); err != nil {
		return nil, fmt.Errorf("%s confirmed in tx %s but the record could not be saved: %w", step.Name, record.TransactionHash, err)
	}

	result.Status = StepStatusCalled
	result.Initialization = record
	return result, nil
}

// changedInputs names the recorded inputs of a reused deployment that differ
// from what the step resolves to now. Redeploys do not cascade, so this is
// how a stale dependent shows up.
func (s *Session) changedInputs(step *models.Step, existing *models.Deployment) []string {
	var changed []string
	if args, err := s.scope.resolveArgs(step.Args); err == nil && !sameValues(args, existing.Args) {
		changed = append(changed, "constructor arguments")
	}
	if libs, err := s.resolveLibraries(step); err == nil && !sameAddresses(libs, existing.Libraries) {
		changed = append(changed, "libraries")
	}
	return changed
}

func (s *Session) resolveLibraries(step *models.Step) (map[string]common.Address, error) {
	libraries := make(map[string]common.Address, len(step.Libraries))
	for name, expr := range step.Libraries {
		addr, err := s.scope.resolveAddress(expr)
		if err != nil {
			return nil, fmt.Errorf("library %s: %w", name, err)
		}
		libraries[name] = addr
	}
	return libraries, nil
}

// connect opens the network client. Outside a dry run this checks the
// deployer key and asks for confirmation first when the network requires it.
func (s *Session) connect(ctx context.Context) (NetworkClient, error) {
	if s.client != nil {
		return s.client, nil
	}

	var key *ecdsa.PrivateKey
	if !s.dryRun {
		var err error
		key, err = s.uc.signers.KeyFor(ctx, s.network.Name, s.deployer)
		if err != nil {
			return nil, fmt.Errorf("deployer %s: %w", s.deployer.Hex(), err)
		}
		if err := s.confirm(ctx); err != nil {
			return nil, err
		}
	}

	client, err := s.uc.dialer.Dial(ctx, s.network, key)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", s.network.Name, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID from %s: %w", s.network.Name, err)
	}

	s.client = client
	s.chainID = chainID
	return client, nil
}

func (s *Session) confirm(ctx context.Context) error {
	if !s.network.Confirm || s.uc.config.Yes {
		return nil
	}
	if s.uc.config.NonInteractive {
		return fmt.Errorf("network %s requires confirmation before broadcasting; pass --yes to proceed non-interactively", s.network.Name)
	}

	s.uc.progress.OnProgress(ctx, ProgressEvent{Stage: "awaiting_confirmation"})
	ok, err := s.uc.confirmer.Confirm(ctx, fmt.Sprintf(
		"Broadcast %s to %s (chain %d) from %s", s.pipeline.Name, s.network.Name, s.network.ChainID, s.deployer.Hex()))
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAborted
	}
	return nil
}

// consumeNonce returns the deployer nonce the next transaction would use
func (s *Session) consumeNonce(ctx context.Context) (uint64, error) {
	if !s.nonceLoaded {
		client, err := s.connect(ctx)
		if err != nil {
			return 0, err
		}
		nonce, err := client.PendingNonce(ctx, s.deployer)
		if err != nil {
			return 0, fmt.Errorf("failed to get nonce for %s: %w", s.deployer.Hex(), err)
		}
		s.nonce = nonce
		s.nonceLoaded = true
	}
	n := s.nonce
	s.nonce++
	return n, nil
}

// predictNextAddress returns the CREATE address of the deployer's next transaction
func (s *Session) predictNextAddress(ctx context.Context) (common.Address, error) {
	nonce, err := s.consumeNonce(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.CreateAddress(s.deployer, nonce), nil
}
