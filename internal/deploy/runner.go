package deploy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"manga/offchain/internal/artifacts"
)

// RunResult is a completed and persisted deployment
type RunResult struct {
	*Result
	Key        string
	ScriptPath string
}

// Runner runs the orchestrator and persists the record of a verified run.
// A failed run never touches the store.
type Runner struct {
	orchestrator *Orchestrator
	store        artifacts.Store
	scriptDir    string
	logger       *zap.Logger
}

// NewRunner creates a runner. When scriptDir is not empty a Foundry script
// reproducing the deployment is written there after each saved run.
func NewRunner(orchestrator *Orchestrator, store artifacts.Store, scriptDir string, logger *zap.Logger) *Runner {
	return &Runner{
		orchestrator: orchestrator,
		store:        store,
		scriptDir:    scriptDir,
		logger:       logger.Named("runner"),
	}
}

// Run deploys, verifies and saves
func (r *Runner) Run(ctx context.Context, cfg Config) (*RunResult, error) {
	res, err := r.orchestrator.Run(ctx, cfg)
	if err != nil {
		return &RunResult{Result: res}, err
	}

	key, err := r.store.Save(ctx, res.Record)
	if err != nil {
		// contracts are live and wired; only the record is missing
		r.logger.Error("Deployment succeeded but the record could not be saved", zap.Error(err))
		return &RunResult{Result: res}, fmt.Errorf("failed to save deployment record: %w", err)
	}
	r.logger.Info("Deployment record saved", zap.String("key", key))

	out := &RunResult{Result: res, Key: key}
	if r.scriptDir != "" {
		path, err := artifacts.WriteFoundryScript(r.scriptDir, key, res.Record)
		if err != nil {
			r.logger.Warn("Failed to write Foundry script", zap.Error(err))
		} else {
			out.ScriptPath = path
			r.logger.Info("Foundry script written", zap.String("path", path))
		}
	}

	return out, nil
}
