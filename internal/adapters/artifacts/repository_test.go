package artifacts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
)

// placeholder is a solc library placeholder: __$ + 34 hex chars + $__
var placeholder = "__$" + strings.Repeat("a", 34) + "$__"

const foundryPool = `{
  "abi": [{"type":"constructor","inputs":[{"name":"provider","type":"address"}]}],
  "bytecode": {
    "object": "0x6080%s00",
    "linkReferences": {"src/libraries/ReserveLogic.sol": {"ReserveLogic": [{"start": 2, "length": 20}]}}
  },
  "metadata": {
    "compiler": {"version": "0.8.19+commit.7dd6d404"},
    "settings": {"compilationTarget": {"src/LendingPool.sol": "LendingPool"}}
  }
}`

const hardhatToken = `{
  "_format": "hh-sol-artifact-1",
  "contractName": "Token",
  "sourceName": "contracts/Token.sol",
  "abi": [],
  "bytecode": "0x60806040",
  "linkReferences": {}
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestRepository(t *testing.T) (*Repository, string) {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "LendingPool.sol", "LendingPool.json"), strings.Replace(foundryPool, "%s", placeholder, 1))
	writeFile(t, filepath.Join(dir, "contracts", "Token.sol", "Token.json"), hardhatToken)
	writeFile(t, filepath.Join(dir, "contracts", "Token.sol", "Token.dbg.json"), `{"_format":"hh-sol-dbg-1","buildInfo":"../../build-info/abc.json"}`)
	writeFile(t, filepath.Join(dir, "build-info", "abc.json"), `{"solcVersion":"0.6.12","solcLongVersion":"0.6.12+commit.27d51765"}`)

	// The same contract name from two sources
	writeFile(t, filepath.Join(dir, "Oracle.sol", "PriceFeed.json"), `{"abi":[],"bytecode":{"object":"0x00"},"metadata":{"settings":{"compilationTarget":{"src/Oracle.sol":"PriceFeed"}}}}`)
	writeFile(t, filepath.Join(dir, "MockOracle.sol", "PriceFeed.json"), `{"abi":[],"bytecode":{"object":"0x00"},"metadata":{"settings":{"compilationTarget":{"test/MockOracle.sol":"PriceFeed"}}}}`)

	return NewRepositoryAt(dir, slog.New(slog.NewTextHandler(io.Discard, nil))), dir
}

func TestRepository_GetArtifact(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	t.Run("foundry artifact", func(t *testing.T) {
		a, err := repo.GetArtifact(ctx, "LendingPool")
		require.NoError(t, err)

		assert.Equal(t, "LendingPool", a.Name)
		assert.Equal(t, "src/LendingPool.sol", a.SourcePath)
		assert.Equal(t, "0.8.19+commit.7dd6d404", a.CompilerVersion)
		assert.Len(t, a.ABI.Constructor.Inputs, 1)
		assert.True(t, a.NeedsLinking())
		assert.Equal(t, []string{"ReserveLogic"}, a.RequiredLibraries())
	})

	t.Run("hardhat artifact", func(t *testing.T) {
		a, err := repo.GetArtifact(ctx, "Token")
		require.NoError(t, err)

		assert.Equal(t, "contracts/Token.sol", a.SourcePath)
		assert.Equal(t, "0.6.12+commit.27d51765", a.CompilerVersion)
		assert.False(t, a.NeedsLinking())
	})

	t.Run("cached", func(t *testing.T) {
		a1, err := repo.GetArtifact(ctx, "Token")
		require.NoError(t, err)
		a2, err := repo.GetArtifact(ctx, "Token")
		require.NoError(t, err)
		assert.Same(t, a1, a2)
	})

	t.Run("ambiguous name", func(t *testing.T) {
		_, err := repo.GetArtifact(ctx, "PriceFeed")
		var ambiguous *domain.AmbiguousArtifactError
		require.True(t, errors.As(err, &ambiguous))
		assert.ElementsMatch(t, []string{"src/Oracle.sol:PriceFeed", "test/MockOracle.sol:PriceFeed"}, ambiguous.Matches)
	})

	t.Run("fully qualified name", func(t *testing.T) {
		a, err := repo.GetArtifact(ctx, "test/MockOracle.sol:PriceFeed")
		require.NoError(t, err)
		assert.Equal(t, "test/MockOracle.sol", a.SourcePath)

		a, err = repo.GetArtifact(ctx, "Oracle.sol:PriceFeed")
		require.NoError(t, err)
		assert.Equal(t, "src/Oracle.sol", a.SourcePath)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetArtifact(ctx, "Treasury")
		assert.ErrorIs(t, err, domain.ErrContractNotFound)
	})
}

func TestRepository_MissingDirectory(t *testing.T) {
	repo := NewRepositoryAt(filepath.Join(t.TempDir(), "out"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := repo.GetArtifact(context.Background(), "Token")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrContractNotFound)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLink(t *testing.T) {
	artifact := &models.Artifact{
		Name:     "LendingPool",
		Bytecode: "0x6080" + placeholder + "00",
		LinkReferences: models.LinkReferences{
			"src/libraries/ReserveLogic.sol": {"ReserveLogic": {{Start: 2, Length: 20}}},
		},
	}
	lib := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	t.Run("links by name", func(t *testing.T) {
		code, err := Link(artifact, map[string]common.Address{"ReserveLogic": lib})
		require.NoError(t, err)
		require.Len(t, code, 23)
		assert.Equal(t, []byte{0x60, 0x80}, code[:2])
		assert.Equal(t, lib.Bytes(), code[2:22])
		assert.Equal(t, byte(0x00), code[22])
	})

	t.Run("links by fully qualified name", func(t *testing.T) {
		code, err := Link(artifact, map[string]common.Address{"src/libraries/ReserveLogic.sol:ReserveLogic": lib})
		require.NoError(t, err)
		assert.Equal(t, lib.Bytes(), code[2:22])
	})

	t.Run("original bytecode untouched", func(t *testing.T) {
		_, err := Link(artifact, map[string]common.Address{"ReserveLogic": lib})
		require.NoError(t, err)
		assert.Contains(t, artifact.Bytecode, placeholder)
	})

	t.Run("missing library", func(t *testing.T) {
		_, err := Link(artifact, nil)
		assert.ErrorIs(t, err, domain.ErrUnlinkedLibrary)
		assert.Contains(t, err.Error(), "ReserveLogic")
	})

	t.Run("unused library", func(t *testing.T) {
		_, err := Link(artifact, map[string]common.Address{"ReserveLogic": lib, "GenericLogic": lib})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not link against GenericLogic")
	})

	t.Run("placeholder without link reference", func(t *testing.T) {
		broken := &models.Artifact{Name: "Broken", Bytecode: "0x6080" + placeholder}
		_, err := Link(broken, nil)
		assert.ErrorIs(t, err, domain.ErrUnlinkedLibrary)
	})

	t.Run("no creation code", func(t *testing.T) {
		_, err := Link(&models.Artifact{Name: "IPool", Bytecode: "0x"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no creation code")
	})
}
