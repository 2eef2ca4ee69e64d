package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"manga/offchain/internal/blockchain/evm"
	"manga/offchain/internal/config"
	"manga/offchain/internal/errs"
)

// globalFlags are shared by every command
type globalFlags struct {
	JSON  bool
	Quiet bool
}

// app carries what a command needs once the root command has run
type app struct {
	flags  globalFlags
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "mangactl",
		Short: "MangaNFT deployment and operations tool",
		Long: `mangactl deploys and wires the MonthlyDataUploader and MangaNFT contracts,
and runs minting, chapter publishing, investor registration and stats queries
against a deployed pair.

Settings come from the environment (and .env): RPC_URL, PRIVATE_KEY,
CREATOR_KEY, MANGA_NFT_ADDRESS, DATAUPLOADER_ADDRESS and friends.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&a.flags.JSON, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&a.flags.Quiet, "quiet", "q", false, "only log warnings and errors")

	rootCmd.AddCommand(
		a.deployCmd(),
		a.mintCmd(),
		a.publishCmd(),
		a.registerCmd(),
		a.creatorStatsCmd(),
		a.investorStatsCmd(),
		a.deploymentCmd(),
		a.txStatusCmd(),
	)
	return rootCmd
}

func (a *app) init() error {
	logger, err := initLogger(a.flags.Quiet)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// initLogger writes to stderr so stdout only carries results
func initLogger(quiet bool) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if os.Getenv("ENV") == "production" {
		zcfg = zap.NewProductionConfig()
	}
	if quiet {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return zcfg.Build()
}

// exactArgs reports a wrong argument count as a validation error
func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return errs.Invalid("arguments", strings.Join(args, " "),
				fmt.Sprintf("expected %d (%s), got %d", n, usage, len(args)))
		}
		return nil
	}
}

func maxArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return errs.Invalid("arguments", strings.Join(args, " "),
				fmt.Sprintf("expected at most %d (%s), got %d", n, usage, len(args)))
		}
		return nil
	}
}

// signer builds a key store from a configured private key
func signer(envName, key string) (*evm.PrivateKeyStore, error) {
	if key == "" {
		return nil, errs.Invalid(envName, "", "required")
	}
	keys, err := evm.NewPrivateKeyStore(key)
	if err != nil {
		return nil, errs.Invalid(envName, "", err.Error())
	}
	return keys, nil
}

// dial connects to the configured RPC endpoint. keys may be nil for
// read-only use.
func (a *app) dial(ctx context.Context, keys *evm.PrivateKeyStore) (*evm.Client, error) {
	if keys == nil {
		return evm.NewClient(ctx, &a.cfg.Chain, nil, a.logger)
	}
	return evm.NewClient(ctx, &a.cfg.Chain, keys, a.logger)
}

// bind loads the descriptor for name and binds it at address
func (a *app) bind(chain evm.Chain, name string, address common.Address) (*evm.Contract, error) {
	desc, err := evm.LoadDescriptor(a.cfg.Contracts.ArtifactsDir, name)
	if err != nil {
		return nil, err
	}
	return evm.Bind(chain, desc, address, a.cfg.Chain.ConfirmTimeout, a.logger), nil
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format+"\n", args...)
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// hint returns advice for failures users commonly run into
func hint(err error) string {
	var timeout *errs.TimeoutError
	var notFound *errs.NotFoundError
	msg := err.Error()

	switch {
	case strings.Contains(msg, "Creator data not found"):
		return "the creator has no chapters yet; publish one first"
	case strings.Contains(msg, "Investor data not found"):
		return "the investor is not registered yet; run register after they acquire a chapter token"
	case errors.Is(err, errs.ErrInsufficientFunds):
		return "the signing account cannot pay for gas; fund it or lower GAS_PRICE_GWEI"
	case errors.Is(err, errs.ErrNonce):
		return "another transaction from this account is pending or was replaced; wait and retry"
	case errors.As(err, &timeout):
		return fmt.Sprintf("the transaction may still be mined; check it with: mangactl tx-status %s", timeout.TxHash)
	case errors.As(err, &notFound) && notFound.What == "":
		return "no deployment has been recorded; run mangactl deploy first"
	}
	return ""
}
