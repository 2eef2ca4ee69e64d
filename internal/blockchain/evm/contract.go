package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"manga/offchain/internal/errs"
	"manga/offchain/internal/metrics"
)

// Contract is bound to one deployed contract instance. The address is fixed
// when the value is created.
type Contract struct {
	desc           *Descriptor
	address        common.Address
	chain          Chain
	confirmTimeout time.Duration
	logger         *zap.Logger
}

// Bind creates a Contract for an already deployed address
func Bind(chain Chain, desc *Descriptor, address common.Address, confirmTimeout time.Duration, logger *zap.Logger) *Contract {
	return &Contract{
		desc:           desc,
		address:        address,
		chain:          chain,
		confirmTimeout: confirmTimeout,
		logger:         logger.Named("contract").With(zap.String("contract", desc.Name)),
	}
}

// Deploy submits a contract-creation transaction, waits for it to be
// included and returns a Contract bound to the created address.
// Every failure is returned as a DeployError.
func Deploy(
	ctx context.Context,
	chain Chain,
	desc *Descriptor,
	opts TxOptions,
	confirmTimeout time.Duration,
	logger *zap.Logger,
	args ...interface{},
) (*Contract, *TransactionResult, error) {
	fail := func(err error) error {
		return &errs.DeployError{Contract: desc.Name, Err: err}
	}

	if !desc.Deployable() {
		return nil, nil, fail(fmt.Errorf("descriptor has no creation bytecode"))
	}
	if want := len(desc.ABI.Constructor.Inputs); len(args) != want {
		return nil, nil, fail(fmt.Errorf("constructor expects %d arguments, got %d", want, len(args)))
	}

	constructorArgs, err := desc.ABI.Constructor.Inputs.Pack(args...)
	if err != nil {
		return nil, nil, fail(fmt.Errorf("failed to encode constructor args: %w", err))
	}

	// bytecode is shared, never append to it in place
	initCode := make([]byte, 0, len(desc.Bytecode)+len(constructorArgs))
	initCode = append(initCode, desc.Bytecode...)
	initCode = append(initCode, constructorArgs...)

	logger.Info("Deploying contract",
		zap.String("contract", desc.Name),
		zap.Int("bytecode_len", len(desc.Bytecode)),
		zap.Int("constructor_args_len", len(constructorArgs)),
		zap.Uint64("gas_limit", opts.GasLimit))

	tx, err := chain.SubmitDeploy(ctx, initCode, opts)
	if err != nil {
		return nil, nil, fail(err)
	}

	if err := chain.WaitForConfirmation(ctx, tx, confirmTimeout); err != nil {
		return nil, tx, fail(err)
	}

	if tx.ContractAddress == (common.Address{}) {
		return nil, tx, fail(fmt.Errorf("receipt for %s has no contract address", tx.Hash.Hex()))
	}

	if ok, err := VerifyCreateAddress(tx.ContractAddress, chain.From(), tx.Nonce()); err == nil && !ok {
		logger.Warn("Contract address differs from CREATE prediction",
			zap.String("contract", desc.Name),
			zap.String("address", tx.ContractAddress.Hex()),
			zap.Uint64("nonce", tx.Nonce()))
	}

	logger.Info("Contract deployed",
		zap.String("contract", desc.Name),
		zap.String("address", tx.ContractAddress.Hex()),
		zap.String("tx_hash", tx.Hash.Hex()),
		zap.Uint64("block_number", tx.BlockNumber))

	return Bind(chain, desc, tx.ContractAddress, confirmTimeout, logger), tx, nil
}

// Address returns the bound address
func (c *Contract) Address() common.Address {
	return c.address
}

// Descriptor returns the contract's descriptor
func (c *Contract) Descriptor() *Descriptor {
	return c.desc
}

// Name returns the contract name
func (c *Contract) Name() string {
	return c.desc.Name
}

// Call submits a state-changing invocation and blocks until it is confirmed.
// The result is returned alongside any error that occurred after submission
// so the caller still has the transaction hash.
func (c *Contract) Call(ctx context.Context, opts TxOptions, method string, args ...interface{}) (*TransactionResult, error) {
	data, err := c.pack(method, args...)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Calling contract method",
		zap.String("method", method),
		zap.String("address", c.address.Hex()))

	tx, err := c.chain.SubmitCall(ctx, c.address, data, opts)
	if err != nil {
		return nil, err
	}

	if err := c.chain.WaitForConfirmation(ctx, tx, c.confirmTimeout); err != nil {
		return tx, err
	}
	return tx, nil
}

// Query performs a read-only call and returns the unpacked outputs in ABI
// order. Failures are wrapped in a QueryError.
func (c *Contract) Query(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.pack(method, args...)
	if err != nil {
		return nil, err
	}

	result, err := c.chain.Query(ctx, c.address, data)
	if err != nil {
		return nil, c.queryFailed(method, err)
	}

	values, err := c.desc.ABI.Unpack(method, result)
	if err != nil {
		return nil, c.queryFailed(method, fmt.Errorf("failed to unpack result: %w", err))
	}
	return values, nil
}

func (c *Contract) queryFailed(method string, err error) error {
	metrics.QueryFailures.WithLabelValues(method).Inc()
	if reason := revertReason(err); reason != "" && !strings.Contains(err.Error(), reason) {
		err = fmt.Errorf("%w (reason: %s)", err, reason)
	}
	return &errs.QueryError{Contract: c.desc.Name, Method: method, Err: err}
}

func (c *Contract) pack(method string, args ...interface{}) ([]byte, error) {
	m, ok := c.desc.ABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%s has no method %q", c.desc.Name, method)
	}
	if len(args) != len(m.Inputs) {
		return nil, errs.Invalid("arguments", method,
			fmt.Sprintf("expected %d, got %d", len(m.Inputs), len(args)))
	}
	data, err := c.desc.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	return data, nil
}

// QueryAddress calls a view returning a single address
func (c *Contract) QueryAddress(ctx context.Context, method string, args ...interface{}) (common.Address, error) {
	values, err := c.single(ctx, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values.(common.Address)
	if !ok {
		return common.Address{}, c.unexpected(method, values)
	}
	return addr, nil
}

// QueryBigInt calls a view returning a single uint256
func (c *Contract) QueryBigInt(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	values, err := c.single(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := values.(*big.Int)
	if !ok {
		return nil, c.unexpected(method, values)
	}
	return n, nil
}

// QueryBool calls a view returning a single bool
func (c *Contract) QueryBool(ctx context.Context, method string, args ...interface{}) (bool, error) {
	values, err := c.single(ctx, method, args...)
	if err != nil {
		return false, err
	}
	b, ok := values.(bool)
	if !ok {
		return false, c.unexpected(method, values)
	}
	return b, nil
}

// QueryAddresses calls a view returning address[]
func (c *Contract) QueryAddresses(ctx context.Context, method string, args ...interface{}) ([]common.Address, error) {
	values, err := c.single(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	addrs, ok := values.([]common.Address)
	if !ok {
		return nil, c.unexpected(method, values)
	}
	return addrs, nil
}

// QueryBigInts calls a view returning several uint256 values
func (c *Contract) QueryBigInts(ctx context.Context, method string, args ...interface{}) ([]*big.Int, error) {
	values, err := c.Query(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*big.Int, len(values))
	for i, v := range values {
		n, ok := v.(*big.Int)
		if !ok {
			return nil, c.unexpected(method, v)
		}
		out[i] = n
	}
	return out, nil
}

func (c *Contract) single(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	values, err := c.Query(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, c.queryFailed(method, fmt.Errorf("expected 1 output, got %d", len(values)))
	}
	return values[0], nil
}

func (c *Contract) unexpected(method string, v interface{}) error {
	return c.queryFailed(method, fmt.Errorf("unexpected output type %T", v))
}
