package main

import (
	"math/big"

	"github.com/spf13/cobra"

	"manga/offchain/internal/blockchain/evm"
	"manga/offchain/internal/config"
	"manga/offchain/internal/errs"
	"manga/offchain/internal/service"
	"manga/offchain/internal/validate"
)

func (a *app) mintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint <to> <tokenId> <amount>",
		Short: "Mint copies of a chapter token (signed with PRIVATE_KEY)",
		Args:  exactArgs(3, "to, tokenId, amount"),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := validate.Address(args[0])
			if err != nil {
				return err
			}
			tokenID, err := validate.TokenID(args[1])
			if err != nil {
				return err
			}
			amount, err := validate.Amount(args[2])
			if err != nil {
				return err
			}

			svc, closeFn, err := a.actionService(cmd, "PRIVATE_KEY", a.cfg.Operator.DeployerPrivateKey)
			if err != nil {
				return err
			}
			defer closeFn()

			out, err := svc.Mint(cmd.Context(), to, tokenID, amount)
			if err != nil {
				return err
			}
			if a.flags.JSON {
				return a.printJSON(out.Events)
			}
			a.printf("Mint confirmed: %s (block %d)", out.Tx.Hash.Hex(), out.Tx.BlockNumber)
			for _, m := range out.Minted() {
				a.printf("Minted %s of token %s to %s", m.Amount, m.TokenID, m.To.Hex())
			}
			return nil
		},
	}
}

func (a *app) publishCmd() *cobra.Command {
	var (
		chapter   service.Chapter
		maxCopies string
		creator   string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Create a chapter (signed with CREATOR_KEY)",
		Args:  exactArgs(0, "chapter fields are flags"),
		RunE: func(cmd *cobra.Command, args []string) error {
			copies, ok := new(big.Int).SetString(maxCopies, 10)
			if !ok {
				return errs.Invalid("max-copies", maxCopies, "not a base-10 integer")
			}
			chapter.MaxCopies = copies

			keys, err := signer("CREATOR_KEY", a.cfg.Operator.CreatorPrivateKey)
			if err != nil {
				return err
			}
			chapter.Creator = keys.Address()
			if creator != "" {
				if chapter.Creator, err = validate.Address(creator); err != nil {
					return err
				}
			}
			if err := chapter.Validate(); err != nil {
				return err
			}

			svc, closeFn, err := a.actionServiceWith(cmd, keys)
			if err != nil {
				return err
			}
			defer closeFn()

			out, err := svc.Publish(cmd.Context(), chapter)
			if err != nil {
				return err
			}
			if a.flags.JSON {
				return a.printJSON(out.Events)
			}
			a.printf("Chapter published: %s (block %d)", out.Tx.Hash.Hex(), out.Tx.BlockNumber)
			if c, ok := out.Chapter(); ok {
				a.printf("Token ID: %s", c.TokenID)
				a.printf("Creator: %s", c.Creator.Hex())
			}
			for _, m := range out.Minted() {
				a.printf("Minted %s to %s", m.Amount, m.To.Hex())
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&chapter.TitleZh, "title-zh", "", "chapter title (Chinese)")
	f.StringVar(&chapter.TitleEn, "title-en", "", "chapter title (English)")
	f.StringVar(&chapter.TitleJp, "title-jp", "", "chapter title (Japanese)")
	f.StringVar(&chapter.DescriptionZh, "description-zh", "", "chapter description (Chinese)")
	f.StringVar(&chapter.DescriptionEn, "description-en", "", "chapter description (English)")
	f.StringVar(&chapter.DescriptionJp, "description-jp", "", "chapter description (Japanese)")
	f.StringVar(&maxCopies, "max-copies", "100", "maximum copies, a multiple of 10")
	f.StringVar(&chapter.URI, "uri", "", "chapter metadata URI")
	f.StringVar(&creator, "creator", "", "creator address (defaults to the CREATOR_KEY account)")
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <investor> <tokenId>",
		Short: "Register an investor holding a chapter token (signed with CREATOR_KEY)",
		Args:  exactArgs(2, "investor, tokenId"),
		RunE: func(cmd *cobra.Command, args []string) error {
			investor, err := validate.Address(args[0])
			if err != nil {
				return err
			}
			tokenID, err := validate.TokenID(args[1])
			if err != nil {
				return err
			}

			svc, closeFn, err := a.actionService(cmd, "CREATOR_KEY", a.cfg.Operator.CreatorPrivateKey)
			if err != nil {
				return err
			}
			defer closeFn()

			out, err := svc.Register(cmd.Context(), investor, tokenID)
			if err != nil {
				return err
			}
			if a.flags.JSON {
				return a.printJSON(out.Events)
			}
			a.printf("Investor registered: %s (block %d)", out.Tx.Hash.Hex(), out.Tx.BlockNumber)
			if acq, ok := out.Acquisition(); ok {
				a.printf("Acquired: %s, total acquired: %s", acq.AcquiredCount, acq.TotalAcquired)
			}
			return nil
		},
	}
}

func (a *app) actionService(cmd *cobra.Command, envName, key string) (*service.ActionService, func(), error) {
	keys, err := signer(envName, key)
	if err != nil {
		return nil, nil, err
	}
	return a.actionServiceWith(cmd, keys)
}

// actionServiceWith dials and binds MangaNFT for keys
func (a *app) actionServiceWith(cmd *cobra.Command, keys *evm.PrivateKeyStore) (*service.ActionService, func(), error) {
	if err := a.cfg.Validate(config.PurposeAction); err != nil {
		return nil, nil, err
	}
	assetAddress, err := validate.Address(a.cfg.Contracts.MangaNFTAddress)
	if err != nil {
		return nil, nil, err
	}

	client, err := a.dial(cmd.Context(), keys)
	if err != nil {
		return nil, nil, err
	}
	asset, err := a.bind(client, evm.MangaNFTName, assetAddress)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	svc := service.NewActionService(asset, keys.Address(), evm.TxOptions{}, a.logger)
	return svc, client.Close, nil
}
