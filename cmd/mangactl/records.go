package main

import (
	"github.com/spf13/cobra"

	"manga/offchain/internal/artifacts"
	"manga/offchain/internal/blockchain/evm"
	"manga/offchain/internal/models"
	"manga/offchain/internal/validate"
)

func (a *app) deploymentCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "deployment [key]",
		Short: "Show a saved deployment record (defaults to latest)",
		Args:  maxArgs(1, "key"),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := artifacts.Open(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx := cmd.Context()
			if list {
				keys, err := store.List(ctx)
				if err != nil {
					return err
				}
				if a.flags.JSON {
					return a.printJSON(keys)
				}
				for _, k := range keys {
					a.printf("%s", k)
				}
				return nil
			}

			key := artifacts.LatestKey
			if len(args) == 1 {
				key = args[0]
			}
			rec, err := store.Load(ctx, key)
			if err != nil {
				return err
			}
			if a.flags.JSON {
				return a.printJSON(rec)
			}
			a.printRecord(key, rec)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list saved deployment keys, oldest first")
	return cmd
}

func (a *app) printRecord(key string, rec *models.DeploymentRecord) {
	a.printf("Deployment: %s", key)
	a.printf("Network: %s (chain %d)", rec.Network, rec.ChainID)
	a.printf("Deployer: %s", rec.Deployer)
	a.printf("Deployed at: %s", rec.DeploymentTime.Format("2006-01-02T15:04:05Z07:00"))
	for _, c := range rec.Contracts {
		a.printf("%s: %s", c.Name, c.Address)
	}
	if rec.WiringTxHash != "" {
		a.printf("Wiring transaction: %s", rec.WiringTxHash)
	}
}

func (a *app) txStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tx-status <hash>",
		Short: "Look up the outcome of a submitted transaction",
		Long: `Looks up a transaction by hash. Useful after a confirmation timeout, when the
outcome of the transaction is unknown. When MANGA_NFT_ADDRESS is set the
MangaNFT events in the receipt are decoded.`,
		Args: exactArgs(1, "hash"),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := validate.TxHash(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := a.dial(ctx, nil)
			if err != nil {
				return err
			}
			defer client.Close()

			tx, err := client.Resolve(ctx, hash)
			if err != nil {
				return err
			}

			var events []models.DomainEvent
			if a.cfg.Contracts.MangaNFTAddress != "" {
				assetAddress, err := validate.Address(a.cfg.Contracts.MangaNFTAddress)
				if err != nil {
					return err
				}
				desc, err := evm.LoadDescriptor(a.cfg.Contracts.ArtifactsDir, evm.MangaNFTName)
				if err != nil {
					return err
				}
				events = evm.NewEventDecoder(desc, assetAddress).Decode(tx)
			}

			if a.flags.JSON {
				return a.printJSON(struct {
					Hash        string               `json:"hash"`
					Status      models.TxStatus      `json:"status"`
					BlockNumber uint64               `json:"blockNumber,omitempty"`
					GasUsed     uint64               `json:"gasUsed,omitempty"`
					Contract    string               `json:"contractAddress,omitempty"`
					Events      []models.DomainEvent `json:"events,omitempty"`
				}{tx.Hash.Hex(), tx.Status, tx.BlockNumber, tx.GasUsed, contractAddress(tx), events})
			}

			a.printf("Transaction: %s", tx.Hash.Hex())
			a.printf("Status: %s", tx.Status)
			if tx.Status != models.TxStatusPending {
				a.printf("Block: %d", tx.BlockNumber)
				a.printf("Gas used: %d", tx.GasUsed)
			}
			if addr := contractAddress(tx); addr != "" {
				a.printf("Contract created: %s", addr)
			}
			for _, e := range events {
				a.printf("Event %s (log %d)", e.Name, e.LogIndex)
			}
			return nil
		},
	}
}

func contractAddress(tx *evm.TransactionResult) string {
	if evm.IsSentinel(tx.ContractAddress) {
		return ""
	}
	return tx.ContractAddress.Hex()
}
