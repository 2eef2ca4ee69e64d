package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"manga/offchain/internal/artifacts"
	"manga/offchain/internal/errs"
	"manga/offchain/internal/models"
)

const creatorKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

// execute runs the command tree against an unreachable RPC endpoint, so any
// test that gets as far as dialing fails loudly instead of touching a chain
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RPC_URL", "http://127.0.0.1:1")
	t.Setenv("ENV", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--quiet"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestArgumentsValidatedBeforeDialing(t *testing.T) {
	t.Setenv("MANGA_NFT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	t.Setenv("PRIVATE_KEY", creatorKey)
	t.Setenv("CREATOR_KEY", creatorKey)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"mint bad address", []string{"mint", "0x1234", "1", "1"}, "address"},
		{"mint zero token", []string{"mint", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "0", "1"}, "token id"},
		{"mint fractional amount", []string{"mint", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "1", "1.5"}, "amount"},
		{"mint missing args", []string{"mint", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"}, "arguments"},
		{"register bad checksum", []string{"register", "0xF39fd6e51aad88F6F4ce6aB8827279cffFb92266", "1"}, "checksum"},
		{"register extra args", []string{"register", "a", "b", "c"}, "arguments"},
		{"publish bad copies", []string{"publish", "--max-copies", "15", "--uri", "ipfs://c"}, "maxCopies"},
		{"publish no uri", []string{"publish"}, "uri"},
		{"creator stats bad address", []string{"creator-stats", "nope"}, "address"},
		{"tx status bad hash", []string{"tx-status", "0x1234"}, "tx hash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, errs.ExitValidation, errs.ExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMissingConfigurationIsValidationError(t *testing.T) {
	t.Setenv("MANGA_NFT_ADDRESS", "")
	t.Setenv("DATAUPLOADER_ADDRESS", "")
	t.Setenv("PRIVATE_KEY", creatorKey)
	t.Setenv("CREATOR_KEY", "")

	_, err := execute(t, "mint", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "1", "1")
	require.Error(t, err)
	assert.Equal(t, errs.ExitValidation, errs.ExitCode(err))
	assert.Contains(t, err.Error(), "MANGA_NFT_ADDRESS")

	_, err = execute(t, "creator-stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREATOR_KEY")

	_, err = execute(t, "investor-stats", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATAUPLOADER_ADDRESS")
}

func TestDeploymentCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARTIFACT_BACKEND", "file")
	t.Setenv("DEPLOYMENTS_DIR", dir)

	_, err := execute(t, "deployment")
	require.Error(t, err)
	assert.Equal(t, errs.ExitNotFound, errs.ExitCode(err))
	assert.Contains(t, hint(err), "mangactl deploy")

	store := artifacts.NewFileStore(dir, zap.NewNop())
	key, err := store.Save(context.Background(), &models.DeploymentRecord{
		Network:        "matic-amoy",
		ChainID:        80002,
		Deployer:       "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		DeploymentTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Contracts: []models.ContractEntry{
			{Name: "MonthlyDataUploader", Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3"},
			{Name: "MangaNFT", Address: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"},
		},
	})
	require.NoError(t, err)

	out, err := execute(t, "deployment")
	require.NoError(t, err)
	assert.Contains(t, out, "Deployment: latest")
	assert.Contains(t, out, "Network: matic-amoy (chain 80002)")
	assert.Contains(t, out, "MangaNFT: 0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")

	out, err = execute(t, "deployment", "--list")
	require.NoError(t, err)
	assert.Equal(t, key+"\n", out)

	out, err = execute(t, "--json", "deployment", key)
	require.NoError(t, err)
	assert.Contains(t, out, `"chainId": 80002`)
}

func TestHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"creator data", &errs.QueryError{Contract: "MonthlyDataUploader", Method: "getCreatorStats", Err: &errs.RevertError{Reason: "Creator data not found"}}, "publish one first"},
		{"investor data", fmt.Errorf("failed to query investor stats: %w", &errs.RevertError{Reason: "Investor data not found"}), "run register"},
		{"insufficient funds", &errs.StepError{Step: 1, Err: &errs.SubmissionError{Kind: errs.SubmissionInsufficientFunds}}, "fund it"},
		{"nonce", &errs.SubmissionError{Kind: errs.SubmissionNonce}, "pending"},
		{"timeout", &errs.DeployError{Contract: "MangaNFT", Err: &errs.TimeoutError{TxHash: "0xabc", Timeout: time.Minute}}, "tx-status 0xabc"},
		{"missing transaction", &errs.NotFoundError{What: "transaction", Key: "0x1"}, ""},
		{"other", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hint(tt.err)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}
