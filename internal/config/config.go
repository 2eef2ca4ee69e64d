package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"manga/offchain/internal/errs"
)

// Purpose selects which settings Validate requires
type Purpose string

const (
	PurposeDeploy Purpose = "deploy"
	PurposeAction Purpose = "action"
	PurposeStats  Purpose = "stats"
	PurposeServer Purpose = "server"
)

// Config holds all configuration for the tools and the service
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Chain      ChainConfig      `yaml:"chain"`
	Operator   OperatorConfig   `yaml:"operator"`
	Contracts  ContractsConfig  `yaml:"contracts"`
	Deployment DeploymentConfig `yaml:"deployment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// ChainConfig holds configuration for the EVM network
type ChainConfig struct {
	RPCEndpoint    string        `yaml:"rpc_url"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
}

// OperatorConfig holds signing keys. Keys are never written to artifacts.
type OperatorConfig struct {
	DeployerPrivateKey string `yaml:"-"` // PRIVATE_KEY, deployment and minting
	CreatorPrivateKey  string `yaml:"-"` // CREATOR_KEY, publish/register/stats
}

// ContractsConfig holds addresses of already deployed contracts
type ContractsConfig struct {
	MangaNFTAddress     string `yaml:"manga_nft"`
	DataUploaderAddress string `yaml:"data_uploader"`
	ArtifactsDir        string `yaml:"artifacts_dir"` // Foundry out/ directory
}

// DeploymentConfig holds constructor parameters and gas bounds for a deployment run
type DeploymentConfig struct {
	PlatformAddress string `yaml:"platform_address"`
	PaymentToken    string `yaml:"payment_token"`
	BaseURI         string `yaml:"base_uri"`
	GasLimit        uint64 `yaml:"gas_limit"`
	GasPriceGwei    int64  `yaml:"gas_price_gwei"`
	BindGasLimit    uint64 `yaml:"bind_gas_limit"`
	OutputDir       string `yaml:"output_dir"`
	Backend         string `yaml:"artifact_backend"` // "file" or "postgres"
	FoundryScript   bool   `yaml:"foundry_script"`
}

// GasPriceWei converts the configured gwei price to wei
func (d DeploymentConfig) GasPriceWei() *big.Int {
	return new(big.Int).Mul(big.NewInt(d.GasPriceGwei), big.NewInt(1_000_000_000))
}

// Defaults returns the configuration used when nothing else is set
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			DBName:   "manga_deployments",
			SSLMode:  "disable",
		},
		Chain: ChainConfig{
			RPCEndpoint:    "https://rpc-amoy.polygon.technology",
			ConfirmTimeout: 3 * time.Minute,
			PollInterval:   2 * time.Second,
		},
		Contracts: ContractsConfig{
			ArtifactsDir: "out",
		},
		Deployment: DeploymentConfig{
			PlatformAddress: "0x12E2C1e3A8CA617689A4E4E6d6a098Faf08B8189",
			PaymentToken:    "0x0000000000000000000000000000000000001010",
			BaseURI:         "https://api.manga.com/metadata/",
			GasLimit:        5_000_000,
			GasPriceGwei:    20,
			BindGasLimit:    200_000,
			OutputDir:       "deployments",
			Backend:         "file",
			FoundryScript:   true,
		},
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file named
// by CONFIG_FILE, a .env file, and finally environment variables
func LoadConfig() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSL_MODE", cfg.Database.SSLMode)

	cfg.Chain.RPCEndpoint = getEnv("RPC_URL", cfg.Chain.RPCEndpoint)
	cfg.Chain.ConfirmTimeout = getEnvDuration("CONFIRM_TIMEOUT", cfg.Chain.ConfirmTimeout)
	cfg.Chain.PollInterval = getEnvDuration("POLL_INTERVAL", cfg.Chain.PollInterval)

	cfg.Operator.DeployerPrivateKey = getEnv("PRIVATE_KEY", cfg.Operator.DeployerPrivateKey)
	cfg.Operator.CreatorPrivateKey = getEnv("CREATOR_KEY", cfg.Operator.CreatorPrivateKey)

	cfg.Contracts.MangaNFTAddress = getEnv("MANGA_NFT_ADDRESS", cfg.Contracts.MangaNFTAddress)
	cfg.Contracts.DataUploaderAddress = getEnv("DATAUPLOADER_ADDRESS", cfg.Contracts.DataUploaderAddress)
	cfg.Contracts.ArtifactsDir = getEnv("ARTIFACTS_DIR", cfg.Contracts.ArtifactsDir)

	cfg.Deployment.PlatformAddress = getEnv("PLATFORM_ADDRESS", cfg.Deployment.PlatformAddress)
	cfg.Deployment.PaymentToken = getEnv("PAYMENT_TOKEN", cfg.Deployment.PaymentToken)
	cfg.Deployment.BaseURI = getEnv("BASE_URI", cfg.Deployment.BaseURI)
	cfg.Deployment.GasLimit = uint64(getEnvInt("GAS_LIMIT", int(cfg.Deployment.GasLimit)))
	cfg.Deployment.GasPriceGwei = int64(getEnvInt("GAS_PRICE_GWEI", int(cfg.Deployment.GasPriceGwei)))
	cfg.Deployment.BindGasLimit = uint64(getEnvInt("BIND_GAS_LIMIT", int(cfg.Deployment.BindGasLimit)))
	cfg.Deployment.OutputDir = getEnv("DEPLOYMENTS_DIR", cfg.Deployment.OutputDir)
	cfg.Deployment.Backend = getEnv("ARTIFACT_BACKEND", cfg.Deployment.Backend)
	cfg.Deployment.FoundryScript = getEnvBool("FOUNDRY_SCRIPT", cfg.Deployment.FoundryScript)
}

// Validate checks that the settings required for the given purpose are present
func (c *Config) Validate(purpose Purpose) error {
	if c.Chain.RPCEndpoint == "" && purpose != PurposeServer {
		return errs.Invalid("RPC_URL", "", "required")
	}
	if c.Chain.ConfirmTimeout <= 0 {
		return errs.Invalid("CONFIRM_TIMEOUT", c.Chain.ConfirmTimeout.String(), "must be positive")
	}

	switch purpose {
	case PurposeDeploy:
		if c.Operator.DeployerPrivateKey == "" {
			return errs.Invalid("PRIVATE_KEY", "", "required")
		}
		if c.Deployment.PlatformAddress == "" {
			return errs.Invalid("PLATFORM_ADDRESS", "", "required")
		}
		if c.Deployment.GasLimit == 0 || c.Deployment.BindGasLimit == 0 {
			return errs.Invalid("GAS_LIMIT", "", "gas limits must be positive")
		}
		if c.Deployment.GasPriceGwei <= 0 {
			return errs.Invalid("GAS_PRICE_GWEI", strconv.FormatInt(c.Deployment.GasPriceGwei, 10), "must be positive")
		}
		if err := c.validateBackend(); err != nil {
			return err
		}
	case PurposeAction:
		if c.Contracts.MangaNFTAddress == "" {
			return errs.Invalid("MANGA_NFT_ADDRESS", "", "required")
		}
	case PurposeStats:
		if c.Contracts.DataUploaderAddress == "" {
			return errs.Invalid("DATAUPLOADER_ADDRESS", "", "required")
		}
	case PurposeServer:
		if c.Server.Port <= 0 {
			return errs.Invalid("SERVER_PORT", strconv.Itoa(c.Server.Port), "must be positive")
		}
		if err := c.validateBackend(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateBackend() error {
	switch c.Deployment.Backend {
	case "file":
		if c.Deployment.OutputDir == "" {
			return errs.Invalid("DEPLOYMENTS_DIR", "", "required for the file backend")
		}
	case "postgres":
		if c.Database.Host == "" {
			return errs.Invalid("DB_HOST", "", "required for the postgres backend")
		}
	default:
		return errs.Invalid("ARTIFACT_BACKEND", c.Deployment.Backend, "must be file or postgres")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
