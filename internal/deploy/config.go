package deploy

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"manga/offchain/internal/blockchain/evm"
	"manga/offchain/internal/config"
	"manga/offchain/internal/errs"
	"manga/offchain/internal/models"
	"manga/offchain/internal/validate"
)

// Config is the immutable input of one deployment run. Build it with
// NewConfig; accessors hand out copies.
type Config struct {
	platform       common.Address
	paymentToken   common.Address
	baseURI        string
	gasLimit       uint64
	gasPrice       *big.Int
	bindGasLimit   uint64
	confirmTimeout time.Duration
}

// NewConfig validates the loaded settings and freezes them
func NewConfig(cfg *config.Config) (Config, error) {
	platform, err := validate.Address(cfg.Deployment.PlatformAddress)
	if err != nil {
		return Config{}, err
	}
	paymentToken, err := validate.Address(cfg.Deployment.PaymentToken)
	if err != nil {
		return Config{}, err
	}
	if cfg.Deployment.BaseURI == "" {
		return Config{}, errs.Invalid("BASE_URI", "", "required")
	}
	if cfg.Deployment.GasLimit == 0 || cfg.Deployment.BindGasLimit == 0 {
		return Config{}, errs.Invalid("GAS_LIMIT", "", "gas limits must be positive")
	}
	if cfg.Deployment.GasPriceGwei <= 0 {
		return Config{}, errs.Invalid("GAS_PRICE_GWEI", "", "must be positive")
	}
	if cfg.Chain.ConfirmTimeout <= 0 {
		return Config{}, errs.Invalid("CONFIRM_TIMEOUT", cfg.Chain.ConfirmTimeout.String(), "must be positive")
	}

	return Config{
		platform:       platform,
		paymentToken:   paymentToken,
		baseURI:        cfg.Deployment.BaseURI,
		gasLimit:       cfg.Deployment.GasLimit,
		gasPrice:       cfg.Deployment.GasPriceWei(),
		bindGasLimit:   cfg.Deployment.BindGasLimit,
		confirmTimeout: cfg.Chain.ConfirmTimeout,
	}, nil
}

func (c Config) Platform() common.Address { return c.platform }
func (c Config) PaymentToken() common.Address { return c.paymentToken }
func (c Config) BaseURI() string { return c.baseURI }
func (c Config) ConfirmTimeout() time.Duration { return c.confirmTimeout }

// GasPrice returns a copy of the configured gas price in wei
func (c Config) GasPrice() *big.Int {
	return new(big.Int).Set(c.gasPrice)
}

func (c Config) deployOpts() evm.TxOptions {
	return evm.TxOptions{GasLimit: c.gasLimit, GasPrice: c.GasPrice()}
}

func (c Config) bindOpts() evm.TxOptions {
	return evm.TxOptions{GasLimit: c.bindGasLimit, GasPrice: c.GasPrice()}
}

// maxCost is the most the three transactions of a run can spend on gas
func (c Config) maxCost() *big.Int {
	gas := new(big.Int).SetUint64(2*c.gasLimit + c.bindGasLimit)
	return gas.Mul(gas, c.gasPrice)
}

// Settings is the non-secret snapshot stored with the record
func (c Config) Settings() models.DeploymentSettings {
	return models.DeploymentSettings{
		PlatformAddress: c.platform.Hex(),
		PaymentToken:    c.paymentToken.Hex(),
		BaseURI:         c.baseURI,
		GasLimit:        c.gasLimit,
		GasPrice:        c.gasPrice.String(),
		BindGasLimit:    c.bindGasLimit,
	}
}
