package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"manga/offchain/internal/blockchain/evm"
	"manga/offchain/internal/errs"
	"manga/offchain/internal/metrics"
	"manga/offchain/internal/models"
)

const (
	stepDeployHub   = 1
	stepDeployAsset = 2
	stepBind        = 3
	stepVerify      = 4
	stepRecord      = 5

	methodBind          = "updateMangaNFTContract"
	methodHubReference  = "mangaNFTContract"
	methodAssetUploader = "monthlyDataUploader"
)

var stepNames = map[int]string{
	stepDeployHub:   "deploy hub",
	stepDeployAsset: "deploy asset",
	stepBind:        "bind asset",
	stepVerify:      "verify wiring",
	stepRecord:      "build record",
}

// Result holds what a run produced. On failure it still carries the
// contracts and transactions that reached the chain so an operator can
// remediate them by hand.
type Result struct {
	Record   *models.DeploymentRecord
	Hub      *evm.Contract
	Asset    *evm.Contract
	HubTx    *evm.TransactionResult
	AssetTx  *evm.TransactionResult
	WiringTx *evm.TransactionResult
}

// Orchestrator deploys the hub and asset contracts and wires them together.
// Steps run strictly in order and a failed step aborts the run; nothing is
// retried or rolled back.
type Orchestrator struct {
	chain     evm.Chain
	hubDesc   *evm.Descriptor
	assetDesc *evm.Descriptor
	now       func() time.Time
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator for the given hub and asset artifacts
func NewOrchestrator(chain evm.Chain, hubDesc, assetDesc *evm.Descriptor, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		chain:     chain,
		hubDesc:   hubDesc,
		assetDesc: assetDesc,
		now:       time.Now,
		logger:    logger.Named("deploy"),
	}
}

// Run executes one deployment. The returned error wraps a StepError naming
// the step and contract that failed.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (*Result, error) {
	res, err := o.run(ctx, cfg)
	outcome := "success"
	if err != nil {
		outcome = "failed"
		if errs.ExitCode(err) == errs.ExitVerification {
			outcome = "verification_failed"
		}
		o.logFailure(res, err)
	}
	metrics.DeploymentRuns.WithLabelValues(outcome).Inc()
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, cfg Config) (*Result, error) {
	res := &Result{}

	network, err := o.chain.NetworkIdentity(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to identify network: %w", err)
	}
	deployer := o.chain.From()
	o.preflight(ctx, deployer, network, cfg)

	// Step 1: hub with a placeholder asset reference
	hub, hubTx, err := evm.Deploy(ctx, o.chain, o.hubDesc, cfg.deployOpts(), cfg.confirmTimeout, o.logger,
		cfg.platform, evm.SentinelAddress)
	res.Hub, res.HubTx = hub, hubTx
	if err != nil {
		return res, stepFailed(stepDeployHub, o.hubDesc.Name, err)
	}

	// Step 2: asset pointing at the hub
	code, err := o.chain.CodeAt(ctx, hub.Address())
	if err != nil {
		return res, stepFailed(stepDeployAsset, o.hubDesc.Name, fmt.Errorf("failed to read hub code: %w", err))
	}
	if len(code) == 0 {
		return res, stepFailed(stepDeployAsset, o.hubDesc.Name, fmt.Errorf("no code at hub address %s", hub.Address().Hex()))
	}

	asset, assetTx, err := evm.Deploy(ctx, o.chain, o.assetDesc, cfg.deployOpts(), cfg.confirmTimeout, o.logger,
		cfg.baseURI, cfg.platform, cfg.paymentToken, hub.Address())
	res.Asset, res.AssetTx = asset, assetTx
	if err != nil {
		return res, stepFailed(stepDeployAsset, o.assetDesc.Name, err)
	}

	// Step 3: replace the placeholder, exactly once
	current, err := hub.QueryAddress(ctx, methodHubReference)
	if err != nil {
		return res, stepFailed(stepBind, o.hubDesc.Name, err)
	}
	if !evm.IsSentinel(current) {
		return res, stepFailed(stepBind, o.hubDesc.Name, &errs.VerificationError{Mismatches: []string{
			fmt.Sprintf("%s.%s() is %s before binding, expected the placeholder", o.hubDesc.Name, methodHubReference, current.Hex()),
		}})
	}

	wiringTx, err := hub.Call(ctx, cfg.bindOpts(), methodBind, asset.Address())
	res.WiringTx = wiringTx
	if err != nil {
		return res, stepFailed(stepBind, o.hubDesc.Name, err)
	}

	// Step 4: both back-references must name the other contract
	if err := o.verify(ctx, hub, asset); err != nil {
		return res, err
	}

	// Step 5
	res.Record = o.record(network, deployer, cfg, res)

	o.logger.Info("Deployment completed",
		zap.String("network", network.Name),
		zap.String(o.hubDesc.Name, hub.Address().Hex()),
		zap.String(o.assetDesc.Name, asset.Address().Hex()),
		zap.String("wiring_tx", wiringTx.Hash.Hex()))

	return res, nil
}

func (o *Orchestrator) preflight(ctx context.Context, deployer common.Address, network models.NetworkIdentity, cfg Config) {
	balance, err := o.chain.Balance(ctx, deployer)
	if err != nil {
		o.logger.Warn("Failed to read deployer balance", zap.Error(err))
		return
	}

	o.logger.Info("Starting deployment",
		zap.String("network", network.Name),
		zap.Uint64("chain_id", network.ChainID),
		zap.String("deployer", deployer.Hex()),
		zap.String("balance_wei", balance.String()),
		zap.String("platform", cfg.platform.Hex()),
		zap.String("payment_token", cfg.paymentToken.Hex()))

	if maxCost := cfg.maxCost(); balance.Cmp(maxCost) < 0 {
		o.logger.Warn("Deployer balance is below the worst-case gas cost",
			zap.String("balance_wei", balance.String()),
			zap.String("max_cost_wei", maxCost.String()))
	}
}

func (o *Orchestrator) verify(ctx context.Context, hub, asset *evm.Contract) error {
	hubRef, err := hub.QueryAddress(ctx, methodHubReference)
	if err != nil {
		return stepFailed(stepVerify, o.hubDesc.Name, err)
	}
	assetRef, err := asset.QueryAddress(ctx, methodAssetUploader)
	if err != nil {
		return stepFailed(stepVerify, o.assetDesc.Name, err)
	}

	var mismatches []string
	if hubRef != asset.Address() {
		mismatches = append(mismatches, fmt.Sprintf("%s.%s() = %s, want %s",
			o.hubDesc.Name, methodHubReference, hubRef.Hex(), asset.Address().Hex()))
	}
	if assetRef != hub.Address() {
		mismatches = append(mismatches, fmt.Sprintf("%s.%s() = %s, want %s",
			o.assetDesc.Name, methodAssetUploader, assetRef.Hex(), hub.Address().Hex()))
	}
	if len(mismatches) > 0 {
		return stepFailed(stepVerify, "", &errs.VerificationError{Mismatches: mismatches})
	}

	o.logger.Info("Wiring verified",
		zap.String(o.hubDesc.Name, hub.Address().Hex()),
		zap.String(o.assetDesc.Name, asset.Address().Hex()))
	return nil
}

func (o *Orchestrator) record(network models.NetworkIdentity, deployer common.Address, cfg Config, res *Result) *models.DeploymentRecord {
	return &models.DeploymentRecord{
		Network:        network.Name,
		ChainID:        network.ChainID,
		Deployer:       deployer.Hex(),
		DeploymentTime: o.now().UTC(),
		Contracts: []models.ContractEntry{
			{
				Name:            o.hubDesc.Name,
				Address:         res.Hub.Address().Hex(),
				DeployTxHash:    res.HubTx.Hash.Hex(),
				ConstructorArgs: []string{cfg.platform.Hex(), evm.SentinelAddress.Hex()},
				ABI:             o.hubDesc.RawABI,
			},
			{
				Name:            o.assetDesc.Name,
				Address:         res.Asset.Address().Hex(),
				DeployTxHash:    res.AssetTx.Hash.Hex(),
				ConstructorArgs: []string{cfg.baseURI, cfg.platform.Hex(), cfg.paymentToken.Hex(), res.Hub.Address().Hex()},
				ABI:             o.assetDesc.RawABI,
			},
		},
		WiringTxHash: res.WiringTx.Hash.Hex(),
		Config:       cfg.Settings(),
	}
}

// logFailure reports what already landed on chain. Those contracts stay
// deployed and need manual remediation.
func (o *Orchestrator) logFailure(res *Result, err error) {
	fields := []zap.Field{zap.Error(err)}
	if res != nil {
		if res.Hub != nil {
			fields = append(fields, zap.String(o.hubDesc.Name, res.Hub.Address().Hex()))
		}
		if res.Asset != nil {
			fields = append(fields, zap.String(o.assetDesc.Name, res.Asset.Address().Hex()))
		}
		for _, tx := range []*evm.TransactionResult{res.HubTx, res.AssetTx, res.WiringTx} {
			if tx != nil && tx.Status == models.TxStatusPending {
				fields = append(fields, zap.String("unresolved_tx", tx.Hash.Hex()))
			}
		}
	}
	o.logger.Error("Deployment failed, contracts already deployed are left in place", fields...)
}

func stepFailed(step int, contract string, err error) error {
	return &errs.StepError{Step: step, Name: stepNames[step], Contract: contract, Err: err}
}
