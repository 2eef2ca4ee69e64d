package deploy

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
	"manga/offchain/internal/config"
	"manga/offchain/internal/errs"
	"manga/offchain/internal/models"
)

var (
	deployer     = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	platform     = common.HexToAddress("0x12E2C1e3A8CA617689A4E4E6d6a098Faf08B8189")
	paymentToken = common.HexToAddress("0x0000000000000000000000000000000000001010")
	// first two CREATE addresses of the anvil deployer
	firstCreate  = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	secondCreate = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	deployedAt   = time.Date(2024, 11, 5, 8, 30, 0, 0, time.UTC)
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := NewConfig(config.Defaults())
	require.NoError(t, err)
	return cfg
}

func newTestChain() *evmtest.Chain {
	chain := evmtest.NewChain(deployer)
	chain.Deploy = evmtest.MangaDeployer()
	chain.SetBalance(deployer, new(big.Int).Exp(big.NewInt(10), big.NewInt(19), nil))
	return chain
}

// hubHook runs fn on every hub the chain creates
func hubHook(chain *evmtest.Chain, fn func(*evmtest.Hub)) {
	base := chain.Deploy
	chain.Deploy = func(initCode []byte, addr common.Address) (evmtest.Contract, error) {
		c, err := base(initCode, addr)
		if hub, ok := c.(*evmtest.Hub); ok {
			fn(hub)
		}
		return c, err
	}
}

func assetHook(chain *evmtest.Chain, fn func(*evmtest.Asset)) {
	base := chain.Deploy
	chain.Deploy = func(initCode []byte, addr common.Address) (evmtest.Contract, error) {
		c, err := base(initCode, addr)
		if asset, ok := c.(*evmtest.Asset); ok {
			fn(asset)
		}
		return c, err
	}
}

func newTestOrchestrator(chain evm.Chain) *Orchestrator {
	hubDesc, assetDesc := evmtest.Descriptors()
	o := NewOrchestrator(chain, hubDesc, assetDesc, zap.NewNop())
	o.now = func() time.Time { return deployedAt }
	return o
}

func TestNewConfig(t *testing.T) {
	cfg := testConfig(t)
	assert.Equal(t, platform, cfg.Platform())
	assert.Equal(t, paymentToken, cfg.PaymentToken())
	assert.Equal(t, "https://api.manga.com/metadata/", cfg.BaseURI())
	assert.Equal(t, big.NewInt(20_000_000_000), cfg.GasPrice())

	// accessors hand out copies
	cfg.GasPrice().SetInt64(1)
	assert.Equal(t, big.NewInt(20_000_000_000), cfg.GasPrice())

	settings := cfg.Settings()
	assert.Equal(t, "20000000000", settings.GasPrice)
	assert.Equal(t, uint64(5_000_000), settings.GasLimit)
	assert.Equal(t, uint64(200_000), settings.BindGasLimit)
}

func TestNewConfigRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"malformed platform", func(c *config.Config) { c.Deployment.PlatformAddress = "0x1234" }},
		{"bad checksum", func(c *config.Config) {
			c.Deployment.PlatformAddress = "0x12e2C1e3A8CA617689A4E4E6d6a098Faf08B8189"
		}},
		{"malformed token", func(c *config.Config) { c.Deployment.PaymentToken = "token" }},
		{"empty uri", func(c *config.Config) { c.Deployment.BaseURI = "" }},
		{"zero bind gas", func(c *config.Config) { c.Deployment.BindGasLimit = 0 }},
		{"zero gas price", func(c *config.Config) { c.Deployment.GasPriceGwei = 0 }},
		{"zero timeout", func(c *config.Config) { c.Chain.ConfirmTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)
			_, err := NewConfig(cfg)
			require.Error(t, err)
			assert.Equal(t, errs.ExitValidation, errs.ExitCode(err))
		})
	}
}

func TestRunDeploysAndWires(t *testing.T) {
	chain := newTestChain()
	res, err := newTestOrchestrator(chain).Run(context.Background(), testConfig(t))
	require.NoError(t, err)

	assert.Equal(t, firstCreate, res.Hub.Address())
	assert.Equal(t, secondCreate, res.Asset.Address())

	hub := chain.ContractAt(firstCreate).(*evmtest.Hub)
	asset := chain.ContractAt(secondCreate).(*evmtest.Asset)
	assert.Equal(t, secondCreate, hub.MangaNFT)
	assert.Equal(t, platform, hub.Platform)
	assert.Equal(t, firstCreate, asset.Uploader)
	assert.Equal(t, paymentToken, asset.PaymentToken)

	subs := chain.Submissions()
	require.Len(t, subs, 3)
	for _, sub := range subs[:2] {
		assert.Equal(t, "deploy", sub.Kind)
		assert.Equal(t, uint64(5_000_000), sub.Opts.GasLimit)
		assert.Equal(t, big.NewInt(20_000_000_000), sub.Opts.GasPrice)
	}
	assert.Equal(t, "call", subs[2].Kind)
	require.NotNil(t, subs[2].To)
	assert.Equal(t, firstCreate, *subs[2].To)
	assert.Equal(t, uint64(200_000), subs[2].Opts.GasLimit)
	assert.Equal(t, models.TxStatusConfirmed, res.WiringTx.Status)
}

func TestRunRecord(t *testing.T) {
	chain := newTestChain()
	res, err := newTestOrchestrator(chain).Run(context.Background(), testConfig(t))
	require.NoError(t, err)

	rec := res.Record
	require.NotNil(t, rec)
	assert.Equal(t, "anvil", rec.Network)
	assert.Equal(t, uint64(31337), rec.ChainID)
	assert.Equal(t, deployer.Hex(), rec.Deployer)
	assert.Equal(t, deployedAt, rec.DeploymentTime)
	assert.Equal(t, res.WiringTx.Hash.Hex(), rec.WiringTxHash)
	assert.Equal(t, testConfig(t).Settings(), rec.Config)

	require.Len(t, rec.Contracts, 2)
	hub, asset := rec.Contracts[0], rec.Contracts[1]

	assert.Equal(t, evm.MonthlyDataUploaderName, hub.Name)
	assert.Equal(t, firstCreate.Hex(), hub.Address)
	assert.Equal(t, res.HubTx.Hash.Hex(), hub.DeployTxHash)
	assert.Equal(t, []string{platform.Hex(), evm.SentinelAddress.Hex()}, hub.ConstructorArgs)
	assert.NotEmpty(t, hub.ABI)

	assert.Equal(t, evm.MangaNFTName, asset.Name)
	assert.Equal(t, secondCreate.Hex(), asset.Address)
	assert.Equal(t, []string{
		"https://api.manga.com/metadata/",
		platform.Hex(),
		paymentToken.Hex(),
		firstCreate.Hex(),
	}, asset.ConstructorArgs)
	assert.JSONEq(t, string(res.Asset.Descriptor().RawABI), string(asset.ABI))
}

func TestRunFailures(t *testing.T) {
	foreign := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	tests := []struct {
		name      string
		setup     func(chain *evmtest.Chain)
		step      int
		exitCode  int
		submitted int
		check     func(t *testing.T, res *Result, err error)
	}{
		{
			name: "hub submission rejected",
			setup: func(chain *evmtest.Chain) {
				chain.SubmitErrors[0] = &errs.SubmissionError{
					Kind:    errs.SubmissionInsufficientFunds,
					Message: "insufficient funds for gas * price + value",
				}
			},
			step:      1,
			exitCode:  errs.ExitSubmission,
			submitted: 0,
			check: func(t *testing.T, res *Result, err error) {
				assert.True(t, errors.Is(err, errs.ErrInsufficientFunds))
				assert.Nil(t, res.Hub)
			},
		},
		{
			name: "asset confirmation timeout",
			setup: func(chain *evmtest.Chain) {
				chain.ConfirmErrors[1] = &errs.TimeoutError{TxHash: "0x2", Timeout: time.Minute}
			},
			step:      2,
			exitCode:  errs.ExitTimeout,
			submitted: 2,
			check: func(t *testing.T, res *Result, err error) {
				require.NotNil(t, res.Hub)
				assert.Nil(t, res.Asset)
				require.NotNil(t, res.AssetTx)
				assert.Equal(t, models.TxStatusPending, res.AssetTx.Status)
			},
		},
		{
			name: "binding reverts",
			setup: func(chain *evmtest.Chain) {
				chain.ConfirmErrors[2] = &errs.RevertError{TxHash: "0x3", Reason: "Ownable: caller is not the owner"}
			},
			step:      3,
			exitCode:  errs.ExitRevert,
			submitted: 3,
			check: func(t *testing.T, res *Result, err error) {
				var stepErr *errs.StepError
				require.ErrorAs(t, err, &stepErr)
				assert.Equal(t, evm.MonthlyDataUploaderName, stepErr.Contract)
				require.NotNil(t, res.WiringTx)
				assert.Equal(t, models.TxStatusFailed, res.WiringTx.Status)
				assert.Nil(t, res.Record)
			},
		},
		{
			name: "hub already bound elsewhere",
			setup: func(chain *evmtest.Chain) {
				hubHook(chain, func(h *evmtest.Hub) { h.Reference = foreign })
			},
			step:      3,
			exitCode:  errs.ExitVerification,
			submitted: 2,
			check: func(t *testing.T, res *Result, err error) {
				assert.Contains(t, err.Error(), foreign.Hex())
				assert.Nil(t, res.WiringTx)
			},
		},
		{
			name: "binding not stored",
			setup: func(chain *evmtest.Chain) {
				hubHook(chain, func(h *evmtest.Hub) { h.IgnoreUpdate = true })
			},
			step:      4,
			exitCode:  errs.ExitVerification,
			submitted: 3,
			check: func(t *testing.T, res *Result, err error) {
				var verification *errs.VerificationError
				require.ErrorAs(t, err, &verification)
				require.Len(t, verification.Mismatches, 1)
				assert.Contains(t, verification.Mismatches[0], "mangaNFTContract")
				// contracts stay deployed for manual remediation
				assert.NotNil(t, res.Hub)
				assert.NotNil(t, res.Asset)
				assert.Nil(t, res.Record)
			},
		},
		{
			name: "asset points at another uploader",
			setup: func(chain *evmtest.Chain) {
				assetHook(chain, func(a *evmtest.Asset) { a.Uploader = foreign })
			},
			step:      4,
			exitCode:  errs.ExitVerification,
			submitted: 3,
			check: func(t *testing.T, res *Result, err error) {
				var verification *errs.VerificationError
				require.ErrorAs(t, err, &verification)
				require.Len(t, verification.Mismatches, 1)
				assert.Contains(t, verification.Mismatches[0], "monthlyDataUploader")
				assert.Contains(t, verification.Mismatches[0], foreign.Hex())
				assert.NotNil(t, res.Asset)
				assert.Nil(t, res.Record)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newTestChain()
			tt.setup(chain)

			res, err := newTestOrchestrator(chain).Run(context.Background(), testConfig(t))
			require.Error(t, err)
			require.NotNil(t, res)

			var stepErr *errs.StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, tt.step, stepErr.Step)
			assert.Equal(t, tt.exitCode, errs.ExitCode(err))
			assert.Len(t, chain.Submissions(), tt.submitted, "no step may run after a failure")

			tt.check(t, res, err)
		})
	}
}

func TestRunRequiresHubCode(t *testing.T) {
	chain := newTestChain()
	// the hub deploys but its code is gone before the asset step
	chain.Deploy = func(initCode []byte, addr common.Address) (evmtest.Contract, error) {
		return nil, nil
	}

	_, err := newTestOrchestrator(chain).Run(context.Background(), testConfig(t))
	var stepErr *errs.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 2, stepErr.Step)
	assert.Contains(t, err.Error(), "no code")
	assert.Len(t, chain.Submissions(), 1)
}
