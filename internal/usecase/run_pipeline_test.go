package usecase_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	abiadapter "github.com/trebuchet-org/lend-deploy/internal/adapters/abi"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

const tokenABI = `[
	{"type":"constructor","inputs":[]},
	{"type":"function","name":"initialize","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"pool","type":"address"},
		{"name":"treasury","type":"address"},
		{"name":"underlying","type":"address"},
		{"name":"name","type":"string"},
		{"name":"symbol","type":"string"}
	]}
]`

const tokenPipeline = `name: TokenLaunch
steps:
  - deploy: Token
  - name: InitToken
    call:
      target: ${Token}
      method: initialize
      args:
        - ${accounts.pool}
        - ${accounts.treasury}
        - ${accounts.underlying}
        - "Lend FIL"
        - "lFIL"
`

var (
	poolAddr       = common.HexToAddress("0x1111111111111111111111111111111111111111")
	treasuryAddr   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	underlyingAddr = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type pipelineFixture struct {
	cfg       *config.RuntimeConfig
	store     *memStore
	artifacts *fakeArtifacts
	accounts  staticAccounts
	chain     *fakeChain
	dialer    *fakeDialer
	confirmer *MockConfirmer
	progress  *MockProgressSink
	key       *staticSigner
	deployer  common.Address
}

func newPipelineFixture(t *testing.T, pipeline string) *pipelineFixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "token.yaml"), []byte(pipeline), 0o644))

	key := deployerKey(t)
	deployer := crypto.PubkeyToAddress(key.PublicKey)
	chain := newFakeChain(97)

	return &pipelineFixture{
		cfg: &config.RuntimeConfig{
			PipelinesDir: dir,
			Network:      &config.Network{Name: "bsctest", ChainID: 97},
		},
		store:     newMemStore(),
		artifacts: newFakeArtifacts(t, map[string]string{"Token": tokenABI}),
		accounts: staticAccounts{
			usecase.DeployerRole: deployer,
			"pool":               poolAddr,
			"treasury":           treasuryAddr,
			"underlying":         underlyingAddr,
		},
		chain:     chain,
		dialer:    &fakeDialer{chain: chain},
		confirmer: new(MockConfirmer),
		progress:  &MockProgressSink{},
		key:       &staticSigner{key: key},
		deployer:  deployer,
	}
}

func (f *pipelineFixture) useCase() *usecase.RunPipeline {
	return usecase.NewRunPipeline(
		f.cfg,
		f.store,
		f.artifacts,
		abiadapter.NewArgumentEncoder(),
		f.accounts,
		f.key,
		f.dialer,
		f.confirmer,
		f.progress,
		discardLogger(),
	)
}

func (f *pipelineFixture) run(params usecase.RunPipelineParams) (*usecase.PipelineResult, error) {
	if params.PipelinePath == "" {
		params.PipelinePath = "token"
	}
	return f.useCase().Run(context.Background(), params)
}

func statuses(result *usecase.PipelineResult) []usecase.StepStatus {
	out := make([]usecase.StepStatus, len(result.Steps))
	for i, s := range result.Steps {
		out[i] = s.Status
	}
	return out
}

func TestRunPipeline_DeployThenInitialize(t *testing.T) {
	f := newPipelineFixture(t, tokenPipeline)

	result, err := f.run(usecase.RunPipelineParams{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []usecase.StepStatus{usecase.StepStatusDeployed, usecase.StepStatusCalled}, statuses(result))

	tokenAddr := crypto.CreateAddress(f.deployer, 0)
	assert.Equal(t, tokenAddr, result.Steps[0].Address)

	rec, err := f.store.GetDeployment(context.Background(), "bsctest", "Token")
	require.NoError(t, err)
	assert.Equal(t, tokenAddr.Hex(), rec.Address)
	assert.Equal(t, uint64(97), rec.ChainID)
	assert.Equal(t, f.deployer.Hex(), rec.Deployer)
	assert.Equal(t, "TokenLaunch", rec.Pipeline)
	assert.NotEmpty(t, rec.RunID)
	assert.NotEmpty(t, rec.Artifact.BytecodeHash)

	call, err := f.store.GetInitialization(context.Background(), "bsctest", "InitToken")
	require.NoError(t, err)
	assert.Equal(t, tokenAddr.Hex(), call.Target)
	assert.Equal(t, "initialize", call.Method)
	assert.Equal(t, []any{poolAddr.Hex(), treasuryAddr.Hex(), underlyingAddr.Hex(), "Lend FIL", "lFIL"}, call.Args)

	// the call went to the freshly deployed token with the initialize selector
	require.Len(t, f.chain.calls, 1)
	sent := f.chain.calls[0]
	assert.Equal(t, tokenAddr, sent.To)
	selector := crypto.Keccak256([]byte("initialize(address,address,address,string,string)"))[:4]
	assert.Equal(t, selector, sent.Data[:4])

	assert.Equal(t, 1, f.dialer.dials)
	assert.Equal(t, []string{"pipeline_planned", "step_starting", "step_completed", "step_starting", "step_completed"}, f.progress.stages())
}

func TestRunPipeline_RerunIsIdempotent(t *testing.T) {
	f := newPipelineFixture(t, tokenPipeline)

	_, err := f.run(usecase.RunPipelineParams{})
	require.NoError(t, err)
	saves := f.store.saves

	result, err := f.run(usecase.RunPipelineParams{})
	require.NoError(t, err)
	assert.Equal(t, []usecase.StepStatus{usecase.StepStatusReused, usecase.StepStatusSkipped}, statuses(result))
	assert.Equal(t, crypto.CreateAddress(f.deployer, 0), result.Steps[0].Address)

	assert.Equal(t, 1, f.chain.deploys)
	assert.Len(t, f.chain.calls, 1)
	assert.Equal(t, saves, f.store.saves)
	// nothing to send, so the second run never connected
	assert.Equal(t, 1, f.dialer.dials)
}

func TestRunPipeline_MissingAccountsFailBeforeSending(t *testing.T) {
	f := newPipelineFixture(t, tokenPipeline)
	delete(f.accounts, "treasury")
	delete(f.accounts, "underlying")

	_, err := f.run(usecase.RunPipelineParams{})
	require.Error(t, err)

	var missing *domain.MissingAccountsError
	require.True(t, errors.As(err, &missing))
	assert.ElementsMatch(t, []string{"treasury", "underlying"}, missing.Roles)
	assert.True(t, errors.Is(err, domain.ErrMissingAccount))

	assert.Equal(t, 0, f.dialer.dials)
	assert.Equal(t, 0, f.chain.deploys)
	assert.Equal(t, 0, f.store.saves)
}

func TestRunPipeline_AbortAndResume(t *testing.T) {
	f := newPipelineFixture(t, tokenPipeline)
	selector := crypto.Keccak256([]byte("initialize(address,address,address,string,string)"))[:4]
	f.chain.revertOn[common.Bytes2Hex(selector)] = true

	result, err := f.run(usecase.RunPipelineParams{})
	require.Error(t, err)

	var stepErr *domain.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "InitToken", stepErr.Step)
	assert.True(t, errors.Is(err, domain.ErrTransactionReverted))
	assert.Contains(t, err.Error(), "already initialized")

	assert.False(t, result.Success)
	require.NotNil(t, result.FailedStep())
	assert.Equal(t, "InitToken", result.FailedStep().Step.Name)

	// the deploy that succeeded before the failure stays recorded
	_, err = f.store.GetDeployment(context.Background(), "bsctest", "Token")
	require.NoError(t, err)
	_, err = f.store.GetInitialization(context.Background(), "bsctest", "InitToken")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	delete(f.chain.revertOn, common.Bytes2Hex(selector))
	result, err = f.run(usecase.RunPipelineParams{})
	require.NoError(t, err)
	assert.Equal(t, []usecase.StepStatus{usecase.StepStatusReused, usecase.StepStatusCalled}, statuses(result))
	assert.Equal(t, 1, f.chain.deploys)
}

func TestRunPipeline_DryRun(t *testing.T) {
	f := newPipelineFixture(t, tokenPipeline)
	f.chain.nonce = 7

	result, err := f.run(usecase.RunPipelineParams{DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, []usecase.StepStatus{usecase.StepStatusPlanned, usecase.StepStatusPlanned}, statuses(result))

	predicted := crypto.CreateAddress(f.deployer, 7)
	assert.Equal(t, predicted, result.Steps[0].Address)
	assert.Equal(t, predicted, result.Steps[1].Address)

	assert.Equal(t, 0, f.chain.deploys)
	assert.Empty(t, f.chain.calls)
	assert.Equal(t, 0, f.store.saves)
	require.Len(t, f.dialer.keys, 1)
	assert.Nil(t, f.dialer.keys[0], "dry runs connect read-only")
}

func TestRunPipeline_Confirmation(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		f := newPipelineFixture(t, tokenPipeline)
		f.cfg.Network.Confirm = true
		f.confirmer.On("Confirm", mock.Anything, mock.MatchedBy(func(p string) bool {
			return strings.Contains(p, "bsctest") && strings.Contains(p, "TokenLaunch")
		})).Return(false, nil).Once()

		_, err := f.run(usecase.RunPipelineParams{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrAborted))
		assert.Equal(t, 0, f.chain.deploys)
		f.confirmer.AssertExpectations(t)
	})

	t.Run("accepted once per run", func(t *testing.T) {
		f := newPipelineFixture(t, tokenPipeline)
		f.cfg.Network.Confirm = true
		f.confirmer.On("Confirm", mock.Anything, mock.Anything).Return(true, nil).Once()

		_, err := f.run(usecase.RunPipelineParams{})
		require.NoError(t, err)
		assert.Equal(t, 1, f.chain.deploys)
		assert.Len(t, f.chain.calls, 1)
		f.confirmer.AssertExpectations(t)
	})

	t.Run("non-interactive requires yes", func(t *testing.T) {
		f := newPipelineFixture(t, tokenPipeline)
		f.cfg.Network.Confirm = true
		f.cfg.NonInteractive = true

		_, err := f.run(usecase.RunPipelineParams{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--yes")
		f.confirmer.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)

		f.cfg.Yes = true
		_, err = f.run(usecase.RunPipelineParams{})
		require.NoError(t, err)
		f.confirmer.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	})
}

func TestRunPipeline_UnsetEnvFailsBeforeSending(t *testing.T) {
	// Token deploys before the call that reads the variable
	pipeline := strings.Replace(tokenPipeline, `"Lend FIL"`, "${env.LEND_TEST_TOKEN_NAME}", 1)
	f := newPipelineFixture(t, pipeline)

	_, err := f.run(usecase.RunPipelineParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnresolvedReference)
	assert.Contains(t, err.Error(), "LEND_TEST_TOKEN_NAME")

	assert.Equal(t, 0, f.dialer.dials)
	assert.Equal(t, 0, f.chain.deploys)
	assert.Equal(t, 0, f.store.saves)

	t.Setenv("LEND_TEST_TOKEN_NAME", "Lend FIL")
	result, err := f.run(usecase.RunPipelineParams{})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestRunPipeline_RedeployedTargetIsCalledAgain(t *testing.T) {
	f := newPipelineFixture(t, tokenPipeline)

	_, err := f.run(usecase.RunPipelineParams{})
	require.NoError(t, err)

	result, err := f.run(usecase.RunPipelineParams{Force: []string{"Token"}})
	require.NoError(t, err)
	assert.Equal(t, []usecase.StepStatus{usecase.StepStatusDeployed, usecase.StepStatusCalled}, statuses(result))

	// deploy at nonce 0, initialize at 1, redeploy at 2
	redeployed := crypto.CreateAddress(f.deployer, 2)
	assert.Equal(t, redeployed, result.Steps[0].Address)

	call, err := f.store.GetInitialization(context.Background(), "bsctest", "InitToken")
	require.NoError(t, err)
	assert.Equal(t, redeployed.Hex(), call.Target)
	assert.Equal(t, 2, f.chain.deploys)
	assert.Len(t, f.chain.calls, 2)
}

func TestRunPipeline_Reset(t *testing.T) {
	f := newPipelineFixture(t, tokenPipeline)

	_, err := f.run(usecase.RunPipelineParams{})
	require.NoError(t, err)

	result, err := f.run(usecase.RunPipelineParams{Reset: true})
	require.NoError(t, err)
	assert.Equal(t, []usecase.StepStatus{usecase.StepStatusDeployed, usecase.StepStatusCalled}, statuses(result))
	assert.Equal(t, 2, f.chain.deploys)
}

func TestRunPipeline_ForceUnknownStep(t *testing.T) {
	f := newPipelineFixture(t, tokenPipeline)

	_, err := f.run(usecase.RunPipelineParams{Force: []string{"Nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such step")
	assert.Equal(t, 0, f.dialer.dials)
}

// newLendingFixture deploys Token, a ReserveLogic library and a LendingPool
// that takes both, then initializes the pool
func newLendingFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	const libABI = `[{"type":"constructor","inputs":[]}]`
	const poolABI = `[
		{"type":"constructor","inputs":[{"name":"token","type":"address"},{"name":"fee","type":"uint256"}]},
		{"type":"function","name":"initialize","stateMutability":"nonpayable","outputs":[],"inputs":[{"name":"admin","type":"address"}]}
	]`
	pipeline := `name: Lending
steps:
  - deploy: Token
  - deploy: ReserveLogic
  - name: Pool
    deploy: LendingPool
    args: ["${Token.address}", 30]
    libraries:
      ReserveLogic: ${ReserveLogic}
  - name: InitPool
    call:
      target: ${Pool}
      method: initialize
      args: ["${accounts.treasury}"]
`
	f := newPipelineFixture(t, pipeline)
	f.artifacts = newFakeArtifacts(t, map[string]string{
		"Token":        tokenABI,
		"ReserveLogic": libABI,
		"LendingPool":  poolABI,
	})
	// creation code with one ReserveLogic placeholder after the 0x6080 prefix
	pool := f.artifacts.byName["LendingPool"]
	pool.Bytecode = "0x6080" + "__$0123456789abcdef0123456789abcdef01$__" + "6000"
	pool.LinkReferences = models.LinkReferences{
		"src/ReserveLogic.sol": {"ReserveLogic": {{Start: 2, Length: 20}}},
	}
	return f
}

func TestRunPipeline_AddressPropagation(t *testing.T) {
	f := newLendingFixture(t)

	result, err := f.run(usecase.RunPipelineParams{})
	require.NoError(t, err)

	tokenAddr := crypto.CreateAddress(f.deployer, 0)
	logicAddr := crypto.CreateAddress(f.deployer, 1)
	lendingPool := crypto.CreateAddress(f.deployer, 2)

	rec, err := f.store.GetDeployment(context.Background(), "bsctest", "Pool")
	require.NoError(t, err)
	assert.Equal(t, "LendingPool", rec.ContractName)
	assert.Equal(t, lendingPool.Hex(), rec.Address)
	assert.Equal(t, []any{tokenAddr.Hex(), 30}, rec.Args)
	assert.Equal(t, map[string]string{"src/ReserveLogic.sol:ReserveLogic": logicAddr.Hex()}, rec.Libraries)
	assert.NotEmpty(t, rec.ConstructorArgs)

	require.Len(t, result.Steps, 4)
	assert.Equal(t, lendingPool, result.Steps[3].Address)
	require.Len(t, f.chain.calls, 1)
	assert.Equal(t, lendingPool, f.chain.calls[0].To)
}

func TestRunPipeline_ForceWarnsStaleDependents(t *testing.T) {
	t.Run("constructor argument", func(t *testing.T) {
		f := newLendingFixture(t)
		_, err := f.run(usecase.RunPipelineParams{})
		require.NoError(t, err)

		result, err := f.run(usecase.RunPipelineParams{Force: []string{"Token"}})
		require.NoError(t, err)
		assert.Equal(t, []usecase.StepStatus{
			usecase.StepStatusDeployed,
			usecase.StepStatusReused,
			usecase.StepStatusReused,
			usecase.StepStatusSkipped,
		}, statuses(result))

		assert.Empty(t, result.Steps[1].Warning)
		assert.Contains(t, result.Steps[2].Warning, "constructor arguments changed")
		assert.Contains(t, result.Steps[2].Warning, "--force Pool")
		assert.NotContains(t, result.Steps[2].Warning, "libraries")
	})

	t.Run("library", func(t *testing.T) {
		f := newLendingFixture(t)
		_, err := f.run(usecase.RunPipelineParams{})
		require.NoError(t, err)

		result, err := f.run(usecase.RunPipelineParams{Force: []string{"ReserveLogic"}})
		require.NoError(t, err)
		assert.Empty(t, result.Steps[0].Warning)
		assert.Equal(t, "libraries changed since Pool was recorded; pass --force Pool to redeploy it", result.Steps[2].Warning)
	})

	t.Run("unchanged rerun", func(t *testing.T) {
		f := newLendingFixture(t)
		_, err := f.run(usecase.RunPipelineParams{})
		require.NoError(t, err)

		result, err := f.run(usecase.RunPipelineParams{})
		require.NoError(t, err)
		for _, step := range result.Steps {
			assert.Empty(t, step.Warning, step.Step.Name)
		}
	})
}
