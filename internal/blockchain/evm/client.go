package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"manga/offchain/internal/config"
	"manga/offchain/internal/errs"
	"manga/offchain/internal/metrics"
	"manga/offchain/internal/models"
)

const (
	defaultPollInterval = 2 * time.Second
	gasBufferPercent    = 120
)

// Chain is the capability set the contract layer needs from a network:
// submit, read, wait and inspect. Client implements it over JSON-RPC.
type Chain interface {
	From() common.Address
	SubmitDeploy(ctx context.Context, initCode []byte, opts TxOptions) (*TransactionResult, error)
	SubmitCall(ctx context.Context, to common.Address, data []byte, opts TxOptions) (*TransactionResult, error)
	Query(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	WaitForConfirmation(ctx context.Context, tx *TransactionResult, timeout time.Duration) error
	NetworkIdentity(ctx context.Context) (models.NetworkIdentity, error)
	Balance(ctx context.Context, address common.Address) (*big.Int, error)
	CodeAt(ctx context.Context, address common.Address) ([]byte, error)
}

// Backend is the subset of ethclient.Client used by Client
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

// TxOptions carries caller-supplied gas bounds. A zero GasLimit asks the
// client to estimate; a nil GasPrice asks the node for a suggestion.
type TxOptions struct {
	GasLimit uint64
	GasPrice *big.Int
	Value    *big.Int
}

// TransactionResult tracks one submitted transaction. It is created pending
// by a Submit call and updated only by WaitForConfirmation.
type TransactionResult struct {
	Hash            common.Hash
	Kind            string
	Status          models.TxStatus
	BlockNumber     uint64
	GasUsed         uint64
	ContractAddress common.Address
	Logs            []*types.Log

	from  common.Address
	to    *common.Address
	nonce uint64
	data  []byte
	value *big.Int
	gas   uint64
}

// NewPendingResult creates a pending result for a transaction signed with
// nonce. Chain implementations other than Client use it.
func NewPendingResult(hash common.Hash, kind string, nonce uint64) *TransactionResult {
	return &TransactionResult{Hash: hash, Kind: kind, Status: models.TxStatusPending, nonce: nonce}
}

// Nonce returns the nonce the transaction was signed with
func (r *TransactionResult) Nonce() uint64 { return r.nonce }

// Client wraps Ethereum client functionality for interacting with an EVM chain
type Client struct {
	backend      Backend
	keys         KeyStore
	chainID      *big.Int
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewClient dials the configured RPC endpoint and binds the signer
func NewClient(ctx context.Context, chainCfg *config.ChainConfig, keys KeyStore, logger *zap.Logger) (*Client, error) {
	ethClient, err := ethclient.DialContext(ctx, chainCfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint %s: %w", chainCfg.RPCEndpoint, err)
	}

	client, err := NewClientWithBackend(ctx, ethClient, keys, logger)
	if err != nil {
		ethClient.Close()
		return nil, err
	}
	if chainCfg.PollInterval > 0 {
		client.pollInterval = chainCfg.PollInterval
	}
	return client, nil
}

// NewClientWithBackend builds a client over an already connected backend
func NewClientWithBackend(ctx context.Context, backend Backend, keys KeyStore, logger *zap.Logger) (*Client, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	logger = logger.Named("evm")
	fields := []zap.Field{zap.String("chain_id", chainID.String())}
	if keys != nil {
		fields = append(fields, zap.String("operator_address", keys.Address().Hex()))
	}
	logger.Info("EVM client initialized", fields...)

	return &Client{
		backend:      backend,
		keys:         keys,
		chainID:      chainID,
		pollInterval: defaultPollInterval,
		logger:       logger,
	}, nil
}

// SetPollInterval changes how often receipts are polled
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// Close closes the underlying RPC connection
func (c *Client) Close() {
	c.backend.Close()
}

// From returns the signer's address, or the zero address for a read-only client
func (c *Client) From() common.Address {
	if c.keys == nil {
		return common.Address{}
	}
	return c.keys.Address()
}

// NetworkIdentity returns the chain ID and its well-known name
func (c *Client) NetworkIdentity(ctx context.Context) (models.NetworkIdentity, error) {
	return models.NetworkIdentity{
		Name:    NetworkName(c.chainID.Uint64()),
		ChainID: c.chainID.Uint64(),
	}, nil
}

// Balance returns the native balance of an address
func (c *Client) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	return c.backend.BalanceAt(ctx, address, nil)
}

// CodeAt returns the runtime code at an address
func (c *Client) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	return c.backend.CodeAt(ctx, address, nil)
}

// Query performs a read-only call against the latest state
func (c *Client) Query(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return c.backend.CallContract(ctx, ethereum.CallMsg{
		From: c.From(),
		To:   &to,
		Data: data,
	}, nil)
}

// SubmitDeploy signs and sends a contract-creation transaction
func (c *Client) SubmitDeploy(ctx context.Context, initCode []byte, opts TxOptions) (*TransactionResult, error) {
	return c.submit(ctx, nil, initCode, opts, "deploy")
}

// SubmitCall signs and sends a state-changing call
func (c *Client) SubmitCall(ctx context.Context, to common.Address, data []byte, opts TxOptions) (*TransactionResult, error) {
	return c.submit(ctx, &to, data, opts, "call")
}

func (c *Client) submit(ctx context.Context, to *common.Address, data []byte, opts TxOptions, kind string) (*TransactionResult, error) {
	if c.keys == nil {
		return nil, errs.Invalid("signer", "", "no private key configured")
	}
	from := c.keys.Address()

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, c.rejected(classifySubmitError(fmt.Errorf("failed to get nonce: %w", err)))
	}

	value := opts.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gasPrice := opts.GasPrice
	if gasPrice == nil {
		gasPrice, err = c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, c.rejected(classifySubmitError(fmt.Errorf("failed to suggest gas price: %w", err)))
		}
	}

	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		estimated, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    to,
			Data:  data,
			Value: value,
		})
		if err != nil {
			return nil, c.rejected(classifySubmitError(err))
		}
		// Add 20% buffer
		gasLimit = estimated * gasBufferPercent / 100
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       to,
		Value:    value,
		Data:     data,
	})

	signedTx, err := c.keys.SignTx(tx, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, c.rejected(classifySubmitError(err))
	}

	metrics.TxSubmitted.WithLabelValues(kind).Inc()

	fields := []zap.Field{
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.String("kind", kind),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit),
		zap.String("gas_price", gasPrice.String()),
	}
	if to != nil {
		fields = append(fields, zap.String("to", to.Hex()))
	}
	c.logger.Info("Transaction sent", fields...)

	return &TransactionResult{
		Hash:   signedTx.Hash(),
		Kind:   kind,
		Status: models.TxStatusPending,
		from:   from,
		to:     to,
		nonce:  nonce,
		data:   data,
		value:  value,
		gas:    gasLimit,
	}, nil
}

func (c *Client) rejected(err error) error {
	var sub *errs.SubmissionError
	if errors.As(err, &sub) {
		metrics.TxRejected.WithLabelValues(string(sub.Kind)).Inc()
	} else {
		metrics.TxRejected.WithLabelValues("revert").Inc()
	}
	return err
}

// WaitForConfirmation polls for the receipt until the transaction is
// included or the timeout elapses. On timeout the result stays pending and a
// TimeoutError is returned; a reverted receipt yields a RevertError.
func (c *Client) WaitForConfirmation(ctx context.Context, tx *TransactionResult, timeout time.Duration) error {
	if tx.Status != models.TxStatusPending {
		return fmt.Errorf("transaction %s already %s", tx.Hash.Hex(), tx.Status)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(waitCtx, tx.Hash)
		if err == nil && receipt != nil {
			return c.applyReceipt(ctx, tx, receipt)
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil {
			// RPC hiccup, keep polling until the deadline
			c.logger.Debug("Receipt lookup failed",
				zap.String("tx_hash", tx.Hash.Hex()),
				zap.Error(err))
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return fmt.Errorf("waiting for transaction %s: %w", tx.Hash.Hex(), ctx.Err())
			}
			metrics.TxFinalized.WithLabelValues("timeout").Inc()
			c.logger.Warn("Confirmation timeout, outcome unknown",
				zap.String("tx_hash", tx.Hash.Hex()),
				zap.Duration("timeout", timeout))
			return &errs.TimeoutError{TxHash: tx.Hash.Hex(), Timeout: timeout}
		case <-ticker.C:
		}
	}
}

func (c *Client) applyReceipt(ctx context.Context, tx *TransactionResult, receipt *types.Receipt) error {
	if receipt.BlockNumber != nil {
		tx.BlockNumber = receipt.BlockNumber.Uint64()
	}
	tx.GasUsed = receipt.GasUsed
	tx.ContractAddress = receipt.ContractAddress
	tx.Logs = receipt.Logs

	if receipt.Status == types.ReceiptStatusFailed {
		tx.Status = models.TxStatusFailed
		metrics.TxFinalized.WithLabelValues(string(models.TxStatusFailed)).Inc()

		reason := c.replayRevertReason(ctx, tx, receipt.BlockNumber)
		c.logger.Warn("Transaction reverted",
			zap.String("tx_hash", tx.Hash.Hex()),
			zap.Uint64("block_number", tx.BlockNumber),
			zap.String("reason", reason))
		return &errs.RevertError{TxHash: tx.Hash.Hex(), Reason: reason}
	}

	tx.Status = models.TxStatusConfirmed
	metrics.TxFinalized.WithLabelValues(string(models.TxStatusConfirmed)).Inc()

	c.logger.Info("Transaction confirmed",
		zap.String("tx_hash", tx.Hash.Hex()),
		zap.Uint64("gas_used", tx.GasUsed),
		zap.Uint64("block_number", tx.BlockNumber))
	return nil
}

// replayRevertReason re-executes the transaction at its inclusion block to
// recover the revert string. Returns "" when the node gives nothing back.
func (c *Client) replayRevertReason(ctx context.Context, tx *TransactionResult, block *big.Int) string {
	if tx.data == nil && tx.to == nil {
		return ""
	}
	_, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From:  tx.from,
		To:    tx.to,
		Gas:   tx.gas,
		Value: tx.value,
		Data:  tx.data,
	}, block)
	if err == nil {
		return ""
	}
	return revertReason(err)
}

// Resolve looks up the current outcome of a previously submitted
// transaction, typically one whose confirmation wait timed out
func (c *Client) Resolve(ctx context.Context, hash common.Hash) (*TransactionResult, error) {
	result := &TransactionResult{Hash: hash, Status: models.TxStatusPending}

	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if err == nil && receipt != nil {
		if receipt.BlockNumber != nil {
			result.BlockNumber = receipt.BlockNumber.Uint64()
		}
		result.GasUsed = receipt.GasUsed
		result.ContractAddress = receipt.ContractAddress
		result.Logs = receipt.Logs
		result.Status = models.TxStatusConfirmed
		if receipt.Status == types.ReceiptStatusFailed {
			result.Status = models.TxStatusFailed
		}
		return result, nil
	}
	if err != nil && !errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
	}

	_, _, err = c.backend.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, &errs.NotFoundError{What: "transaction", Key: hash.Hex()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", hash.Hex(), err)
	}
	return result, nil
}

// NetworkName maps well-known chain IDs to their conventional names
func NetworkName(chainID uint64) string {
	switch chainID {
	case 1:
		return "mainnet"
	case 11155111:
		return "sepolia"
	case 17000:
		return "holesky"
	case 137:
		return "matic"
	case 80001:
		return "maticmum"
	case 80002:
		return "matic-amoy"
	case 31337:
		return "anvil"
	default:
		return "unknown"
	}
}
