package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDeployToml = `
[project]
artifacts = "artifacts"
accounts = ["${LEND_TEST_DEPLOYER_KEY}"]

[networks.bsctest]
rpc_url = "${LEND_TEST_BSCTEST_RPC}"
chain_id = 97
gas_multiplier = 1.5
api_key = "${LEND_TEST_BSCSCAN_KEY}"

[networks.bscmain]
rpc_url = "https://bsc-dataseed.binance.org"
chain_id = 56
gas_price = "5gwei"
tx_timeout = "90s"
confirm = true

[named_accounts]
deployer = { default = 0, bscmain = "0x3BB6B42DC2e3D8d4Cc3F3E1bc78D06A4A2F55d8b" }
treasury = { bsctest = "0x4955Fd8fBcA36bbDC6E7D4D4aC6f8CBc0b3B7B4D" }
`

func writeProject(t *testing.T, toml string, env string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName), []byte(toml), 0644))
	if env != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644))
	}
	return dir
}

func TestProvider(t *testing.T) {
	t.Run("loads project with network and env expansion", func(t *testing.T) {
		t.Setenv("LEND_TEST_BSCTEST_RPC", "https://data-seed-prebsc-2-s2.binance.org:8545")
		dir := writeProject(t, testDeployToml, "LEND_TEST_BSCSCAN_KEY=from-dotenv\n")

		v := viper.New()
		v.Set("project_root", dir)
		v.Set("network", "bsctest")

		cfg, err := Provider(v)
		require.NoError(t, err)

		assert.Equal(t, dir, cfg.ProjectRoot)
		assert.Equal(t, filepath.Join(dir, "artifacts"), cfg.ArtifactsDir)
		assert.Equal(t, filepath.Join(dir, "deployments"), cfg.DeploymentsDir)
		assert.Equal(t, filepath.Join(dir, "pipelines"), cfg.PipelinesDir)

		require.NotNil(t, cfg.Network)
		assert.Equal(t, "bsctest", cfg.Network.Name)
		assert.Equal(t, uint64(97), cfg.Network.ChainID)
		assert.Equal(t, "https://data-seed-prebsc-2-s2.binance.org:8545", cfg.Network.RPCURL)
		assert.Equal(t, 1.5, cfg.Network.GasMultiplier)
		assert.Equal(t, "from-dotenv", cfg.Network.APIKey)
		assert.Equal(t, DefaultTxTimeout, cfg.Network.TxTimeout)
		assert.Equal(t, DefaultVerifier, cfg.Network.Verifier)
		assert.Nil(t, cfg.Network.GasPrice)
	})

	t.Run("no network leaves Network nil", func(t *testing.T) {
		dir := writeProject(t, testDeployToml, "")

		v := viper.New()
		v.Set("project_root", dir)

		cfg, err := Provider(v)
		require.NoError(t, err)
		assert.Nil(t, cfg.Network)
		assert.Len(t, cfg.Project.Networks, 2)
	})

	t.Run("unknown network", func(t *testing.T) {
		dir := writeProject(t, testDeployToml, "")

		v := viper.New()
		v.Set("project_root", dir)
		v.Set("network", "sepolia")

		_, err := Provider(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "network 'sepolia' not found")
	})

	t.Run("invalid toml", func(t *testing.T) {
		dir := writeProject(t, "[networks\n", "")

		v := viper.New()
		v.Set("project_root", dir)

		_, err := Provider(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse deploy.toml")
	})
}

func TestNetworkResolver(t *testing.T) {
	dir := writeProject(t, testDeployToml, "")
	project, err := LoadProjectFile(dir)
	require.NoError(t, err)

	resolver := NewNetworkResolver(project)
	assert.Equal(t, []string{"bscmain", "bsctest"}, resolver.Networks())

	t.Run("gas price and timeout overrides", func(t *testing.T) {
		network, err := resolver.Resolve("bscmain")
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(5_000_000_000), network.GasPrice)
		assert.Equal(t, 90*time.Second, network.TxTimeout)
		assert.Equal(t, 1.0, network.GasMultiplier)
		assert.True(t, network.Confirm)
	})

	t.Run("missing rpc url names the env var", func(t *testing.T) {
		_, err := resolver.Resolve("bsctest")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BSCTEST_RPC_URL")
	})
}

func TestParseGasPrice(t *testing.T) {
	tests := []struct {
		in      string
		want    *big.Int
		wantErr bool
	}{
		{in: "1000", want: big.NewInt(1000)},
		{in: "1000wei", want: big.NewInt(1000)},
		{in: "5gwei", want: big.NewInt(5_000_000_000)},
		{in: "1.5 gwei", want: big.NewInt(1_500_000_000)},
		{in: "0.001ether", want: big.NewInt(1_000_000_000_000_000)},
		{in: "abc", wantErr: true},
		{in: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGasPrice(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, tt.want.Cmp(got), "got %s", got)
		})
	}
}

func TestGenerateEnvVarName(t *testing.T) {
	assert.Equal(t, "BSCTEST_RPC_URL", GenerateEnvVarName("bsctest"))
	assert.Equal(t, "BSC_MAIN_RPC_URL", GenerateEnvVarName("bsc-main"))
}
