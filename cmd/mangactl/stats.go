package main

import (
	"context"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"manga/offchain/internal/blockchain/evm"
	"manga/offchain/internal/config"
	"manga/offchain/internal/stats"
	"manga/offchain/internal/validate"
)

func (a *app) creatorStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "creator-stats [address]",
		Short: "Show creator statistics (defaults to the CREATOR_KEY account)",
		Args:  maxArgs(1, "address"),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := a.statsSubject(args)
			if err != nil {
				return err
			}
			aggregator, closeFn, err := a.aggregator(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			s, err := aggregator.CreatorStats(cmd.Context(), subject)
			if err != nil {
				return err
			}
			if a.flags.JSON {
				return a.printJSON(s)
			}
			a.printf("Creator: %s", s.Creator.Hex())
			a.printf("Total published: %s", s.Published)
			a.printf("Total acquired: %s", s.Acquired)
			a.printf("Current held: %s", s.Held)
			a.printf("Average acquired per chapter: %s", s.AverageAcquired.Format(stats.Decimal))
			a.printf("Registered creator: %s", s.Registered.Format(strconv.FormatBool))
			a.printf("In creator list: %s (%s creators)", s.InRoster.Format(strconv.FormatBool), s.RosterSize.Format(strconv.Itoa))
			return nil
		},
	}
}

func (a *app) investorStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "investor-stats [address]",
		Short: "Show investor statistics for the current period (defaults to the CREATOR_KEY account)",
		Args:  maxArgs(1, "address"),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := a.statsSubject(args)
			if err != nil {
				return err
			}
			aggregator, closeFn, err := a.aggregator(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			s, err := aggregator.InvestorStats(cmd.Context(), subject)
			if err != nil {
				return err
			}
			if a.flags.JSON {
				return a.printJSON(s)
			}
			a.printf("Investor: %s", s.Investor.Hex())
			a.printf("Total acquired: %s", s.Acquired)
			a.printf("Current held: %s", s.Held)
			a.printf("Retention rate: %s", s.RetentionRate.Format(stats.Percent))
			a.printf("Registered investor: %s", s.Registered.Format(strconv.FormatBool))
			a.printf("In investor list: %s (%s investors)", s.InRoster.Format(strconv.FormatBool), s.RosterSize.Format(strconv.Itoa))
			a.printf("Held NFT count: %s", s.HeldNFTCount.Format(bigString))
			a.printf("Period %d acquired: %s", s.Period, s.PeriodAcquired.Format(bigString))
			a.printf("Period %d held: %s", s.Period, s.PeriodHeld.Format(bigString))
			return nil
		},
	}
}

// statsSubject resolves the address argument, falling back to the
// CREATOR_KEY account
func (a *app) statsSubject(args []string) (common.Address, error) {
	if len(args) == 1 {
		return validate.Address(args[0])
	}
	keys, err := signer("CREATOR_KEY", a.cfg.Operator.CreatorPrivateKey)
	if err != nil {
		return common.Address{}, err
	}
	return keys.Address(), nil
}

// aggregator dials read-only and binds MonthlyDataUploader
func (a *app) aggregator(ctx context.Context) (*stats.Aggregator, func(), error) {
	if err := a.cfg.Validate(config.PurposeStats); err != nil {
		return nil, nil, err
	}
	hubAddress, err := validate.Address(a.cfg.Contracts.DataUploaderAddress)
	if err != nil {
		return nil, nil, err
	}

	client, err := a.dial(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	hub, err := a.bind(client, evm.MonthlyDataUploaderName, hubAddress)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return stats.NewAggregator(hub, a.logger), client.Close, nil
}

func bigString(v *big.Int) string {
	return v.String()
}
