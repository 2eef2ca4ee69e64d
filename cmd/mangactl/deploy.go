package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"manga/offchain/internal/artifacts"
	"manga/offchain/internal/blockchain/evm"
	"manga/offchain/internal/config"
	"manga/offchain/internal/deploy"
	"manga/offchain/internal/errs"
)

func (a *app) deployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy MonthlyDataUploader and MangaNFT and wire them together",
		Long: `Deploys MonthlyDataUploader, then MangaNFT pointing at it, then binds the
MangaNFT address into MonthlyDataUploader and verifies both references.
The deployment record is saved only after verification succeeds.`,
		Args: exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(config.PurposeDeploy); err != nil {
				return err
			}
			dcfg, err := deploy.NewConfig(a.cfg)
			if err != nil {
				return err
			}
			keys, err := signer("PRIVATE_KEY", a.cfg.Operator.DeployerPrivateKey)
			if err != nil {
				return err
			}

			hubDesc, err := deployable(a.cfg.Contracts.ArtifactsDir, evm.MonthlyDataUploaderName)
			if err != nil {
				return err
			}
			assetDesc, err := deployable(a.cfg.Contracts.ArtifactsDir, evm.MangaNFTName)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := a.dial(ctx, keys)
			if err != nil {
				return err
			}
			defer client.Close()

			store, closeStore, err := artifacts.Open(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer closeStore()

			scriptDir := ""
			if a.cfg.Deployment.FoundryScript {
				scriptDir = filepath.Join(a.cfg.Deployment.OutputDir, "script")
			}

			orchestrator := deploy.NewOrchestrator(client, hubDesc, assetDesc, a.logger)
			runner := deploy.NewRunner(orchestrator, store, scriptDir, a.logger)

			res, err := runner.Run(ctx, dcfg)
			if err != nil {
				return err
			}

			if a.flags.JSON {
				return a.printJSON(res.Record)
			}
			a.printf("MonthlyDataUploader deployed at: %s", res.Hub.Address().Hex())
			a.printf("MangaNFT deployed at: %s", res.Asset.Address().Hex())
			a.printf("Wiring transaction: %s", res.WiringTx.Hash.Hex())
			a.printf("Deployment verification successful")
			a.printf("Deployment record: %s", res.Key)
			if res.ScriptPath != "" {
				a.printf("Foundry script: %s", res.ScriptPath)
			}
			return nil
		},
	}
}

// deployable loads a descriptor and requires it to carry bytecode
func deployable(outDir, name string) (*evm.Descriptor, error) {
	desc, err := evm.LoadDescriptor(outDir, name)
	if err != nil {
		return nil, err
	}
	if !desc.Deployable() {
		return nil, errs.Invalid("ARTIFACTS_DIR", evm.ArtifactPath(outDir, name), "no compiled bytecode for "+name)
	}
	return desc, nil
}
