package evm

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"manga/offchain/internal/errs"
	"manga/offchain/internal/models"
)

// anvil account #0
const testPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeBackend struct {
	mu          sync.Mutex
	nonce       uint64
	estimate    uint64
	estimateErr error
	sendErr     error
	callErr     error
	receipts    map[common.Hash]*types.Receipt
	known       map[common.Hash]bool
	sent        []*types.Transaction
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nonce:    7,
		estimate: 100000,
		receipts: make(map[common.Hash]*types.Receipt),
		known:    make(map[common.Hash]bool),
	}
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(31337), nil }

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1000000000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f.estimate, f.estimateErr
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.known[tx.Hash()] = true
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.known[hash] {
		return nil, true, nil
	}
	return nil, false, ethereum.NotFound
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return nil, f.callErr
}

func (f *fakeBackend) CodeAt(ctx context.Context, account common.Address, block *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error) {
	return big.NewInt(42), nil
}

func (f *fakeBackend) Close() {}

func (f *fakeBackend) setReceipt(hash common.Hash, status uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[hash] = &types.Receipt{
		Status:      status,
		BlockNumber: big.NewInt(12),
		GasUsed:     55000,
		TxHash:      hash,
	}
}

func newTestClient(t *testing.T, backend *fakeBackend) *Client {
	t.Helper()
	keys, err := NewPrivateKeyStore(testPrivateKey)
	require.NoError(t, err)
	client, err := NewClientWithBackend(context.Background(), backend, keys, zap.NewNop())
	require.NoError(t, err)
	client.SetPollInterval(5 * time.Millisecond)
	return client
}

func TestClientFrom(t *testing.T) {
	client := newTestClient(t, newFakeBackend())
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), client.From())

	id, err := client.NetworkIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.NetworkIdentity{Name: "anvil", ChainID: 31337}, id)
}

func TestSubmitEstimatesWhenGasUnset(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(t, backend)

	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	tx, err := client.SubmitCall(context.Background(), to, []byte{0x01}, TxOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.TxStatusPending, tx.Status)
	assert.Equal(t, uint64(7), tx.Nonce())
	require.Len(t, backend.sent, 1)
	assert.Equal(t, uint64(120000), backend.sent[0].Gas())
	assert.Equal(t, big.NewInt(1000000000), backend.sent[0].GasPrice())
}

func TestSubmitForwardsCallerBounds(t *testing.T) {
	backend := newFakeBackend()
	backend.estimateErr = errors.New("must not be called")
	client := newTestClient(t, backend)

	_, err := client.SubmitDeploy(context.Background(), []byte{0x60, 0x80}, TxOptions{
		GasLimit: 5000000,
		GasPrice: big.NewInt(20000000000),
	})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, uint64(5000000), backend.sent[0].Gas())
	assert.Equal(t, big.NewInt(20000000000), backend.sent[0].GasPrice())
	assert.Nil(t, backend.sent[0].To())
}

func TestSubmitRejections(t *testing.T) {
	tests := []struct {
		name     string
		sendErr  error
		estimate error
		check    func(t *testing.T, err error)
	}{
		{
			name:    "insufficient funds",
			sendErr: errors.New("insufficient funds for gas * price + value"),
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, errs.ErrInsufficientFunds))
			},
		},
		{
			name:    "nonce too low",
			sendErr: errors.New("nonce too low"),
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, errs.ErrNonce))
			},
		},
		{
			name:     "estimate reverts",
			estimate: errors.New("execution reverted: Only platform"),
			check: func(t *testing.T, err error) {
				var revert *errs.RevertError
				require.ErrorAs(t, err, &revert)
				assert.Equal(t, "Only platform", revert.Reason)
			},
		},
		{
			name:    "transport",
			sendErr: errors.New("dial tcp: connection refused"),
			check: func(t *testing.T, err error) {
				var sub *errs.SubmissionError
				require.ErrorAs(t, err, &sub)
				assert.Equal(t, errs.SubmissionTransport, sub.Kind)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.sendErr = tt.sendErr
			backend.estimateErr = tt.estimate
			client := newTestClient(t, backend)

			_, err := client.SubmitCall(context.Background(), common.Address{1}, []byte{0x01}, TxOptions{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestReadOnlyClientCannotSubmit(t *testing.T) {
	client, err := NewClientWithBackend(context.Background(), newFakeBackend(), nil, zap.NewNop())
	require.NoError(t, err)

	_, err = client.SubmitCall(context.Background(), common.Address{1}, nil, TxOptions{GasLimit: 21000})
	var validation *errs.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, common.Address{}, client.From())
}

func TestWaitForConfirmationConfirmed(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(t, backend)

	tx, err := client.SubmitCall(context.Background(), common.Address{1}, []byte{0x01}, TxOptions{GasLimit: 50000})
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		backend.setReceipt(tx.Hash, types.ReceiptStatusSuccessful)
	}()

	require.NoError(t, client.WaitForConfirmation(context.Background(), tx, time.Second))
	assert.Equal(t, models.TxStatusConfirmed, tx.Status)
	assert.Equal(t, uint64(12), tx.BlockNumber)
	assert.Equal(t, uint64(55000), tx.GasUsed)

	// terminal results are never waited on again
	assert.Error(t, client.WaitForConfirmation(context.Background(), tx, time.Second))
}

func TestWaitForConfirmationTimeout(t *testing.T) {
	client := newTestClient(t, newFakeBackend())

	tx, err := client.SubmitCall(context.Background(), common.Address{1}, []byte{0x01}, TxOptions{GasLimit: 50000})
	require.NoError(t, err)

	err = client.WaitForConfirmation(context.Background(), tx, 30*time.Millisecond)
	var timeout *errs.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, tx.Hash.Hex(), timeout.TxHash)
	assert.Equal(t, models.TxStatusPending, tx.Status)

	var revert *errs.RevertError
	assert.False(t, errors.As(err, &revert))
}

func TestWaitForConfirmationCancelled(t *testing.T) {
	client := newTestClient(t, newFakeBackend())

	tx, err := client.SubmitCall(context.Background(), common.Address{1}, []byte{0x01}, TxOptions{GasLimit: 50000})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = client.WaitForConfirmation(ctx, tx, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.TxStatusPending, tx.Status)
}

func TestWaitForConfirmationRevert(t *testing.T) {
	backend := newFakeBackend()
	backend.callErr = errors.New("execution reverted: Investor does not hold token")
	client := newTestClient(t, backend)

	tx, err := client.SubmitCall(context.Background(), common.Address{1}, []byte{0x01}, TxOptions{GasLimit: 50000})
	require.NoError(t, err)
	backend.setReceipt(tx.Hash, types.ReceiptStatusFailed)

	err = client.WaitForConfirmation(context.Background(), tx, time.Second)
	var revert *errs.RevertError
	require.ErrorAs(t, err, &revert)
	assert.Equal(t, "Investor does not hold token", revert.Reason)
	assert.Equal(t, tx.Hash.Hex(), revert.TxHash)
	assert.Equal(t, models.TxStatusFailed, tx.Status)
}

func TestResolve(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(t, backend)

	_, err := client.Resolve(context.Background(), common.HexToHash("0xdead"))
	var notFound *errs.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "transaction", notFound.What)

	tx, err := client.SubmitCall(context.Background(), common.Address{1}, []byte{0x01}, TxOptions{GasLimit: 50000})
	require.NoError(t, err)

	resolved, err := client.Resolve(context.Background(), tx.Hash)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusPending, resolved.Status)

	backend.setReceipt(tx.Hash, types.ReceiptStatusFailed)
	resolved, err = client.Resolve(context.Background(), tx.Hash)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusFailed, resolved.Status)
	assert.Equal(t, uint64(12), resolved.BlockNumber)
}

func TestNetworkName(t *testing.T) {
	assert.Equal(t, "matic-amoy", NetworkName(80002))
	assert.Equal(t, "sepolia", NetworkName(11155111))
	assert.Equal(t, "unknown", NetworkName(999))
}
