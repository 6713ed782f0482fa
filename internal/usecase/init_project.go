package usecase

import (
	"context"
	"fmt"
	"path/filepath"
)

// InitProject writes a starter deploy.toml, .env.example and pipeline
type InitProject struct {
	fileWriter FileWriter
	progress   ProgressSink
}

// NewInitProject creates a new init project use case
func NewInitProject(fileWriter FileWriter, progress ProgressSink) *InitProject {
	return &InitProject{
		fileWriter: fileWriter,
		progress:   progress,
	}
}

// InitProjectResult contains the result of project initialization
type InitProjectResult struct {
	AlreadyInitialized bool
	Steps              []InitStep
}

// InitStep represents a step in the initialization process
type InitStep struct {
	Name    string
	Path    string
	Success bool
	Skipped bool
	Message string
	Error   error
}

// scaffoldFile is a file init creates when it does not exist yet
type scaffoldFile struct {
	name    string
	path    string
	content string
}

// Execute initializes a project rooted at root. Existing files are kept.
func (i *InitProject) Execute(ctx context.Context, root string) (*InitProjectResult, error) {
	result := &InitProjectResult{}

	files := []scaffoldFile{
		{name: "Create deploy.toml", path: "deploy.toml", content: deployTomlTemplate},
		{name: "Create .env.example", path: ".env.example", content: envExampleTemplate},
		{name: "Create sample pipeline", path: filepath.Join("pipelines", "lending-pool.yaml"), content: pipelineTemplate},
	}

	for n, f := range files {
		i.progress.OnProgress(ctx, ProgressEvent{Stage: "init", Current: n + 1, Total: len(files) + 1, Message: f.name})
		step := i.writeIfMissing(ctx, root, f)
		result.Steps = append(result.Steps, step)
		if step.Error != nil {
			return result, step.Error
		}
		if f.path == "deploy.toml" && step.Skipped {
			result.AlreadyInitialized = true
		}
	}

	step := InitStep{Name: "Create deployments directory", Path: "deployments"}
	if err := i.fileWriter.EnsureDirectory(ctx, filepath.Join(root, "deployments")); err != nil {
		step.Error = fmt.Errorf("failed to create deployments directory: %w", err)
		result.Steps = append(result.Steps, step)
		return result, step.Error
	}
	step.Success = true
	step.Message = "Records will be written to deployments/<network>/"
	result.Steps = append(result.Steps, step)

	return result, nil
}

func (i *InitProject) writeIfMissing(ctx context.Context, root string, f scaffoldFile) InitStep {
	step := InitStep{Name: f.name, Path: f.path}
	path := filepath.Join(root, f.path)

	exists, err := i.fileWriter.FileExists(ctx, path)
	if err != nil {
		step.Error = err
		return step
	}
	if exists {
		step.Success = true
		step.Skipped = true
		step.Message = fmt.Sprintf("%s already exists", f.path)
		return step
	}

	if err := i.fileWriter.WriteFile(ctx, path, f.content); err != nil {
		step.Error = fmt.Errorf("failed to write %s: %w", f.path, err)
		return step
	}
	step.Success = true
	step.Message = fmt.Sprintf("Created %s", f.path)
	return step
}

const deployTomlTemplate = `# lend-deploy project configuration.
# ${VAR} references are expanded from the environment, .env and .env.local.

[project]
artifacts = "out"
deployments = "deployments"
pipelines = "pipelines"
accounts = ["${DEPLOYER_PRIVATE_KEY}"]

[networks.bscmain]
rpc_url = "${BSCMAIN_RPC_URL}"
chain_id = 56
explorer_url = "https://bscscan.com"
verifier = "etherscan"
api_key = "${BSCSCAN_API_KEY}"
confirm = true

[networks.bsctest]
rpc_url = "${BSCTEST_RPC_URL}"
chain_id = 97
gas_multiplier = 1.5
explorer_url = "https://testnet.bscscan.com"
verifier = "etherscan"
api_key = "${BSCSCAN_API_KEY}"

[networks.local]
rpc_url = "http://127.0.0.1:8545"
chain_id = 31337

[named_accounts.deployer]
default = 0
bscmain = "0x3BBFa3feDbb53323CD2beb754f20bDbb87D04bc1"
bsctest = "0x49554923b9361e158Fb267B436f843a4f537D53a"

[named_accounts.filTokenAddress]
bscmain = "0x0D8Ce2A99Bb6e3B7Db580eD848240e4a0F9aE153"
bsctest = "0xCb12e617C17598EDa4ebC2e8a75cb0698feEE829"

[named_accounts.distributorAddress]
bscmain = "0x3BBFa3feDbb53323CD2beb754f20bDbb87D04bc1"
bsctest = "0x49554923b9361e158Fb267B436f843a4f537D53a"

[named_accounts.treasuryAddress]
bscmain = "0x3BBFa3feDbb53323CD2beb754f20bDbb87D04bc1"
bsctest = "0x49554923b9361e158Fb267B436f843a4f537D53a"
`

const envExampleTemplate = `# Copy to .env and fill in. Never commit .env.
DEPLOYER_PRIVATE_KEY=
BSCSCAN_API_KEY=
BSCMAIN_RPC_URL=https://bsc-dataseed1.defibit.io/
BSCTEST_RPC_URL=https://data-seed-prebsc-2-s2.binance.org:8545
`

const pipelineTemplate = `# Steps run in order. Confirmed steps are recorded under deployments/<network>/
# and skipped when the pipeline is run again.
name: LendingPool
accounts: [treasuryAddress, filTokenAddress]
steps:
  - deploy: ReserveLogic
  - deploy: GenericLogic
  - deploy: ValidationLogic
    libraries:
      GenericLogic: ${GenericLogic}

  - name: LendingPool
    deploy: LendingPool
    libraries:
      ReserveLogic: ${ReserveLogic}
      ValidationLogic: ${ValidationLogic}

  - deploy: AToken

  - name: InitAToken
    call:
      target: ${AToken}
      method: initialize
      args:
        - ${LendingPool}
        - ${accounts.treasuryAddress}
        - ${accounts.filTokenAddress}
        - "Lend FIL"
        - "lFIL"

  - name: InitLendingPool
    call:
      target: ${LendingPool}
      method: initialize
      args: ["${accounts.distributorAddress}"]
`
