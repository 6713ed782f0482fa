package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	abiadapter "github.com/trebuchet-org/lend-deploy/internal/adapters/abi"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// Backend is the subset of the JSON-RPC client the pipeline needs. Both
// *ethclient.Client and the simulated backend satisfy it.
type Backend interface {
	ethereum.ChainIDReader
	ethereum.ChainStateReader
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.PendingStateReader
	ethereum.TransactionReader
	ethereum.TransactionSender
}

// Client signs transactions with one key, broadcasts them and waits for
// their receipts.
type Client struct {
	backend Backend
	network *config.Network
	key     *ecdsa.PrivateKey
	chainID *big.Int
	closer  func()
	log     *slog.Logger
}

// NewClient wraps backend for network. The backend's chain ID must match the
// configured one. A nil key gives a read-only client.
func NewClient(ctx context.Context, backend Backend, network *config.Network, key *ecdsa.PrivateKey, log *slog.Logger) (*Client, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if network.ChainID != 0 && chainID.Uint64() != network.ChainID {
		return nil, fmt.Errorf("%w: %s is configured as chain %d but the RPC reports %d",
			domain.ErrNetworkMismatch, network.Name, network.ChainID, chainID.Uint64())
	}

	return &Client{
		backend: backend,
		network: network,
		key:     key,
		chainID: chainID,
		log:     log.With("component", "NetworkClient", "network", network.Name),
	}, nil
}

// ChainID returns the chain ID reported by the node
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	return c.chainID.Uint64(), nil
}

// PendingNonce returns the nonce for the account's next transaction
func (c *Client) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	return c.backend.PendingNonceAt(ctx, account)
}

// HasCode reports whether address holds contract code
func (c *Client) HasCode(ctx context.Context, address common.Address) (bool, error) {
	code, err := c.backend.CodeAt(ctx, address, nil)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

// Deploy sends a contract creation and waits for it to be mined
func (c *Client) Deploy(ctx context.Context, req usecase.DeployRequest) (*usecase.TxReceipt, error) {
	data := append(append([]byte{}, req.Bytecode...), req.ConstructorArgs...)

	receipt, err := c.send(ctx, nil, data, req.ABI)
	if err != nil {
		return nil, err
	}
	if receipt.ContractAddress == (common.Address{}) {
		return nil, fmt.Errorf("transaction %s created no contract", receipt.TxHash.Hex())
	}
	hasCode, err := c.HasCode(ctx, receipt.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to check code at %s: %w", receipt.ContractAddress.Hex(), err)
	}
	if !hasCode {
		return nil, fmt.Errorf("no code at %s after deployment %s", receipt.ContractAddress.Hex(), receipt.TxHash.Hex())
	}
	return receipt, nil
}

// Transact sends a call and waits for it to be mined
func (c *Client) Transact(ctx context.Context, req usecase.CallRequest) (*usecase.TxReceipt, error) {
	to := req.To
	return c.send(ctx, &to, req.Data, req.ABI)
}

// Close releases the underlying connection
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

func (c *Client) send(ctx context.Context, to *common.Address, data []byte, contract *abi.ABI) (*usecase.TxReceipt, error) {
	if c.key == nil {
		return nil, domain.ErrNoSigner
	}
	auth, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, err
	}
	from := crypto.PubkeyToAddress(c.key.PublicKey)

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce for %s: %w", from.Hex(), err)
	}

	msg := ethereum.CallMsg{From: from, To: to, Data: data}
	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		if abiadapter.IsRevert(err) {
			return nil, &domain.RevertError{Reason: abiadapter.RevertReason(err, contract)}
		}
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas = uint64(float64(gas) * c.network.GasMultiplier)

	gasPrice := c.network.GasPrice
	if gasPrice == nil {
		gasPrice, err = c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
	}

	var tx *types.Transaction
	if to == nil {
		tx = types.NewContractCreation(nonce, big.NewInt(0), gas, gasPrice, data)
	} else {
		tx = types.NewTransaction(nonce, *to, big.NewInt(0), gas, gasPrice, data)
	}
	signed, err := auth.Signer(from, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	c.log.Debug("sending transaction", "hash", signed.Hash().Hex(), "nonce", nonce, "gas", gas, "gasPrice", gasPrice)
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	receipt, err := c.wait(ctx, signed)
	if err != nil {
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &domain.RevertError{
			TxHash: signed.Hash().Hex(),
			Reason: c.replay(ctx, msg, receipt, contract),
		}
	}

	return &usecase.TxReceipt{
		TxHash:          signed.Hash(),
		BlockNumber:     receipt.BlockNumber.Uint64(),
		GasUsed:         receipt.GasUsed,
		ContractAddress: receipt.ContractAddress,
	}, nil
}

// wait blocks until tx is mined or the network's tx timeout passes
func (c *Client) wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	waitCtx := ctx
	if c.network.TxTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.network.TxTimeout)
		defer cancel()
	}

	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s not mined within %s", domain.ErrConfirmationTimeout, tx.Hash().Hex(), c.network.TxTimeout)
		}
		return nil, fmt.Errorf("failed waiting for %s: %w", tx.Hash().Hex(), err)
	}
	return receipt, nil
}

// replay re-executes a failed transaction at its block to recover the revert reason
func (c *Client) replay(ctx context.Context, msg ethereum.CallMsg, receipt *types.Receipt, contract *abi.ABI) string {
	_, err := c.backend.CallContract(ctx, msg, receipt.BlockNumber)
	if err == nil {
		return "reverted (reason unavailable)"
	}
	return abiadapter.RevertReason(err, contract)
}

// Dialer connects to networks over JSON-RPC
type Dialer struct {
	log *slog.Logger
}

// NewDialer creates a new dialer
func NewDialer(log *slog.Logger) *Dialer {
	return &Dialer{log: log}
}

// Dial connects to the network's RPC endpoint and checks its chain ID
func (d *Dialer) Dial(ctx context.Context, network *config.Network, key *ecdsa.PrivateKey) (usecase.NetworkClient, error) {
	rpc, err := ethclient.DialContext(ctx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	client, err := NewClient(ctx, rpc, network, key, d.log)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	client.closer = rpc.Close
	return client, nil
}

// Ensure the adapters implement the interfaces
var (
	_ usecase.NetworkClient = (*Client)(nil)
	_ usecase.NetworkDialer = (*Dialer)(nil)
)
