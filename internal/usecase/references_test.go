package usecase

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
)

var (
	testToken    = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testTreasury = common.HexToAddress("0x49554923b9361e158Fb267B436f843a4f537D53a")
)

func testScope(t *testing.T) *referenceScope {
	t.Helper()
	scope := newReferenceScope("bsctest", map[string]common.Address{
		"treasury": testTreasury,
	})
	scope.lookupEnv = func(name string) (string, bool) {
		if name == "POOL_FEE" {
			return "30", true
		}
		return "", false
	}
	require.NoError(t, scope.bind("Token", "Token", testToken))
	return scope
}

func TestReferenceScope_ResolveValue(t *testing.T) {
	scope := testScope(t)

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"step", "${Token}", "0x5FbDB2315678afecb367f032d93F642f64180aa3"},
		{"step address field", "${Token.address}", "0x5FbDB2315678afecb367f032d93F642f64180aa3"},
		{"spaces inside braces", "${ Token }", "0x5FbDB2315678afecb367f032d93F642f64180aa3"},
		{"account", "${accounts.treasury}", testTreasury.Hex()},
		{"env", "${env.POOL_FEE}", "30"},
		{"interpolated", "fee=${env.POOL_FEE}bps", "fee=30bps"},
		{"literal", "Lend FIL", "Lend FIL"},
		{"number", 42, 42},
		{"nested list", []any{"${Token}", []any{"${env.POOL_FEE}", true}},
			[]any{"0x5FbDB2315678afecb367f032d93F642f64180aa3", []any{"30", true}}},
		{"map", map[string]any{"owner": "${accounts.treasury}"},
			map[string]any{"owner": testTreasury.Hex()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scope.resolveValue(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReferenceScope_Unresolved(t *testing.T) {
	scope := testScope(t)

	for _, expr := range []string{"${Pool}", "${accounts.admin}", "${env.MISSING}"} {
		t.Run(expr, func(t *testing.T) {
			_, err := scope.resolveValue(expr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrUnresolvedReference))
			assert.Contains(t, err.Error(), expr)
		})
	}

	_, err := scope.resolveArgs([]any{"ok", "${Pool}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument 1")
}

func TestReferenceScope_ResolveAddress(t *testing.T) {
	scope := testScope(t)

	addr, err := scope.resolveAddress("${Token}")
	require.NoError(t, err)
	assert.Equal(t, testToken, addr)

	_, err = scope.resolveAddress("${env.POOL_FEE}")
	assert.True(t, errors.Is(err, domain.ErrInvalidAddress))

	_, err = scope.resolveAddress("0x0000000000000000000000000000000000000000")
	assert.True(t, errors.Is(err, domain.ErrInvalidAddress))
}

func TestReferenceScope_BindRejectsZeroAddress(t *testing.T) {
	scope := testScope(t)
	err := scope.bind("Pool", "LendingPool", common.Address{})
	assert.True(t, errors.Is(err, domain.ErrInvalidAddress))

	_, err = scope.resolveValue("${Pool}")
	assert.True(t, errors.Is(err, domain.ErrUnresolvedReference))
}

func TestSingleStepReference(t *testing.T) {
	tests := []struct {
		expr string
		step string
		ok   bool
	}{
		{"${Token}", "Token", true},
		{" ${Token.address} ", "Token", true},
		{"${accounts.treasury}", "", false},
		{"${env.ADDR}", "", false},
		{"prefix ${Token}", "", false},
		{"0x5FbDB2315678afecb367f032d93F642f64180aa3", "", false},
	}
	for _, tt := range tests {
		step, ok := singleStepReference(tt.expr)
		assert.Equal(t, tt.ok, ok, tt.expr)
		assert.Equal(t, tt.step, step, tt.expr)
	}
}

func TestFindReferences(t *testing.T) {
	refs, err := findReferences([]any{"${Token}", map[string]any{"k": "${accounts.admin} and ${env.X}"}, 7})
	require.NoError(t, err)
	require.Len(t, refs, 3)

	kinds := map[referenceKind]string{}
	for _, r := range refs {
		kinds[r.kind] = r.name
	}
	assert.Equal(t, "Token", kinds[stepReference])
	assert.Equal(t, "admin", kinds[accountReference])
	assert.Equal(t, "X", kinds[envReference])

	_, err = findReferences("${accounts}")
	assert.Error(t, err)
}
