package evm_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"manga/offchain/internal/blockchain/evm"
	"manga/offchain/internal/blockchain/evm/evmtest"
	"manga/offchain/internal/errs"
	"manga/offchain/internal/models"
)

var (
	deployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	platform = common.HexToAddress("0x12E2C1e3A8CA617689A4E4E6d6a098Faf08B8189")
	token    = common.HexToAddress("0x0000000000000000000000000000000000001010")
)

func newChain() *evmtest.Chain {
	chain := evmtest.NewChain(deployer)
	chain.Deploy = evmtest.MangaDeployer()
	return chain
}

func TestDeployBindsReceiptAddress(t *testing.T) {
	chain := newChain()
	hubDesc, _ := evmtest.Descriptors()

	hub, tx, err := evm.Deploy(context.Background(), chain, hubDesc, evm.TxOptions{GasLimit: 5000000},
		time.Second, zap.NewNop(), platform, evm.SentinelAddress)
	require.NoError(t, err)

	assert.Equal(t, models.TxStatusConfirmed, tx.Status)
	// first CREATE of the anvil deployer
	assert.Equal(t, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), hub.Address())
	assert.Equal(t, tx.ContractAddress, hub.Address())

	ref, err := hub.QueryAddress(context.Background(), "mangaNFTContract")
	require.NoError(t, err)
	assert.True(t, evm.IsSentinel(ref))

	subs := chain.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, uint64(5000000), subs[0].Opts.GasLimit)
}

func TestDeployArityMismatch(t *testing.T) {
	chain := newChain()
	hubDesc, _ := evmtest.Descriptors()

	_, _, err := evm.Deploy(context.Background(), chain, hubDesc, evm.TxOptions{}, time.Second, zap.NewNop(), platform)
	require.Error(t, err)

	var deployErr *errs.DeployError
	require.ErrorAs(t, err, &deployErr)
	assert.Equal(t, evm.MonthlyDataUploaderName, deployErr.Contract)
	assert.Empty(t, chain.Submissions(), "nothing may be submitted on arity mismatch")
}

func TestDeployWithoutBytecode(t *testing.T) {
	desc, err := evm.NewDescriptor(evm.MangaNFTName, evm.MangaNFTABI, nil)
	require.NoError(t, err)

	_, _, err = evm.Deploy(context.Background(), newChain(), desc, evm.TxOptions{}, time.Second, zap.NewNop(),
		"uri", platform, token, deployer)
	var deployErr *errs.DeployError
	assert.ErrorAs(t, err, &deployErr)
}

func TestDeployTimeoutIsDeployError(t *testing.T) {
	chain := newChain()
	chain.ConfirmErrors[0] = &errs.TimeoutError{TxHash: "0x1", Timeout: time.Second}
	hubDesc, _ := evmtest.Descriptors()

	_, tx, err := evm.Deploy(context.Background(), chain, hubDesc, evm.TxOptions{}, time.Second, zap.NewNop(),
		platform, evm.SentinelAddress)

	var deployErr *errs.DeployError
	require.ErrorAs(t, err, &deployErr)
	var timeout *errs.TimeoutError
	assert.ErrorAs(t, err, &timeout)
	require.NotNil(t, tx)
	assert.Equal(t, models.TxStatusPending, tx.Status)
}

func TestCallRevertCarriesReason(t *testing.T) {
	chain := newChain()
	_, assetDesc := evmtest.Descriptors()
	asset, _, err := evm.Deploy(context.Background(), chain, assetDesc, evm.TxOptions{}, time.Second, zap.NewNop(),
		"https://api.manga.com/metadata/", platform, token, deployer)
	require.NoError(t, err)

	// deployer is not the platform
	tx, err := asset.Call(context.Background(), evm.TxOptions{}, "createChapter",
		"zh", "en", "jp", "dzh", "den", "djp", big.NewInt(100), "ipfs://x", deployer)
	require.Error(t, err)

	var revert *errs.CallRevertedError
	require.ErrorAs(t, err, &revert)
	assert.Equal(t, "Only platform", revert.Reason)
	require.NotNil(t, tx)
	assert.Equal(t, models.TxStatusFailed, tx.Status)
}

func TestCallSubmissionErrors(t *testing.T) {
	chain := newChain()
	_, assetDesc := evmtest.Descriptors()
	asset, _, err := evm.Deploy(context.Background(), chain, assetDesc, evm.TxOptions{}, time.Second, zap.NewNop(),
		"uri", platform, token, deployer)
	require.NoError(t, err)

	chain.SubmitErrors[chain.NextSeq()] = &errs.SubmissionError{Kind: errs.SubmissionInsufficientFunds, Message: "insufficient funds for gas * price + value"}
	_, err = asset.Call(context.Background(), evm.TxOptions{}, "freeMint", deployer, big.NewInt(1), big.NewInt(1))
	assert.True(t, errors.Is(err, errs.ErrInsufficientFunds))

	chain.SubmitErrors[chain.NextSeq()] = &errs.SubmissionError{Kind: errs.SubmissionNonce, Message: "nonce too low"}
	_, err = asset.Call(context.Background(), evm.TxOptions{}, "freeMint", deployer, big.NewInt(1), big.NewInt(1))
	assert.True(t, errors.Is(err, errs.ErrNonce))
}

func TestCallArgumentCount(t *testing.T) {
	hubDesc, _ := evmtest.Descriptors()
	hub := evm.Bind(newChain(), hubDesc, platform, time.Second, zap.NewNop())

	_, err := hub.Call(context.Background(), evm.TxOptions{}, "updateMangaNFTContract")
	var validation *errs.ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = hub.Call(context.Background(), evm.TxOptions{}, "noSuchMethod")
	assert.Error(t, err)
}

func TestQueryWrapsRemoteError(t *testing.T) {
	chain := newChain()
	hubDesc, _ := evmtest.Descriptors()
	hub, _, err := evm.Deploy(context.Background(), chain, hubDesc, evm.TxOptions{}, time.Second, zap.NewNop(),
		platform, evm.SentinelAddress)
	require.NoError(t, err)

	_, err = hub.QueryBigInts(context.Background(), "getCreatorStats", deployer)
	var queryErr *errs.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, "getCreatorStats", queryErr.Method)
	assert.Contains(t, err.Error(), "Creator data not found")

	chain.QueryErr = errors.New("connection refused")
	_, err = hub.QueryAddress(context.Background(), "platformAddress")
	require.ErrorAs(t, err, &queryErr)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestQueryAgainstAccountWithoutCode(t *testing.T) {
	hubDesc, _ := evmtest.Descriptors()
	hub := evm.Bind(newChain(), hubDesc, common.HexToAddress("0x0000000000000000000000000000000000000bad"), time.Second, zap.NewNop())

	_, err := hub.QueryAddress(context.Background(), "mangaNFTContract")
	var queryErr *errs.QueryError
	assert.ErrorAs(t, err, &queryErr)
}

func TestTypedQueries(t *testing.T) {
	chain := newChain()
	hubDesc, _ := evmtest.Descriptors()
	hub, _, err := evm.Deploy(context.Background(), chain, hubDesc, evm.TxOptions{}, time.Second, zap.NewNop(),
		platform, evm.SentinelAddress)
	require.NoError(t, err)

	sim := chain.ContractAt(hub.Address()).(*evmtest.Hub)
	sim.SetCreator(deployer, 3, 7, 7)

	stats, err := hub.QueryBigInts(context.Background(), "getCreatorStats", deployer)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, int64(3), stats[0].Int64())
	assert.Equal(t, int64(7), stats[1].Int64())
	assert.Equal(t, int64(7), stats[2].Int64())

	isCreator, err := hub.QueryBool(context.Background(), "isCreator", deployer)
	require.NoError(t, err)
	assert.True(t, isCreator)

	roster, err := hub.QueryAddresses(context.Background(), "getAllCreators")
	require.NoError(t, err)
	assert.Equal(t, []common.Address{deployer}, roster)

	_, err = hub.QueryBigInt(context.Background(), "platformAddress")
	var queryErr *errs.QueryError
	assert.ErrorAs(t, err, &queryErr, "address output is not a uint256")
}
