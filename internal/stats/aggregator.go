package stats

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"manga/offchain/internal/metrics"
)

// Hub is the read-only view of the MonthlyDataUploader contract the
// aggregator needs. *evm.Contract implements it.
type Hub interface {
	QueryBigInt(ctx context.Context, method string, args ...interface{}) (*big.Int, error)
	QueryBigInts(ctx context.Context, method string, args ...interface{}) ([]*big.Int, error)
	QueryBool(ctx context.Context, method string, args ...interface{}) (bool, error)
	QueryAddresses(ctx context.Context, method string, args ...interface{}) ([]common.Address, error)
}

// CreatorStats is the composite statistics record of one creator
type CreatorStats struct {
	Creator   common.Address `json:"creator"`
	Published *big.Int       `json:"totalPublished"`
	Acquired  *big.Int       `json:"totalAcquired"`
	Held      *big.Int       `json:"currentHeld"`

	// acquisitions per published chapter
	AverageAcquired Metric[float64] `json:"averageAcquired"`
	Registered      Metric[bool]    `json:"registered"`
	InRoster        Metric[bool]    `json:"inRoster"`
	RosterSize      Metric[int]     `json:"rosterSize"`
}

// InvestorStats is the composite statistics record of one investor
type InvestorStats struct {
	Investor common.Address `json:"investor"`
	Acquired *big.Int       `json:"totalAcquired"`
	Held     *big.Int       `json:"currentHeld"`

	// held/acquired in percent
	RetentionRate  Metric[float64]  `json:"retentionRate"`
	Registered     Metric[bool]     `json:"registered"`
	InRoster       Metric[bool]     `json:"inRoster"`
	RosterSize     Metric[int]      `json:"rosterSize"`
	HeldNFTCount   Metric[*big.Int] `json:"heldNftCount"`
	Period         uint64           `json:"period"`
	PeriodAcquired Metric[*big.Int] `json:"periodAcquired"`
	PeriodHeld     Metric[*big.Int] `json:"periodHeld"`
}

// Aggregator composes hub queries into statistics records. Primary counts
// fail the whole call; every secondary metric degrades on its own.
type Aggregator struct {
	hub    Hub
	now    func() time.Time
	logger *zap.Logger
}

// NewAggregator creates an aggregator reading from hub
func NewAggregator(hub Hub, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		hub:    hub,
		now:    time.Now,
		logger: logger.Named("stats"),
	}
}

// CreatorStats queries the statistics of creator
func (a *Aggregator) CreatorStats(ctx context.Context, creator common.Address) (*CreatorStats, error) {
	primary, err := a.hub.QueryBigInts(ctx, "getCreatorStats", creator)
	if err != nil {
		return nil, fmt.Errorf("failed to query creator stats: %w", err)
	}
	if len(primary) != 3 {
		return nil, fmt.Errorf("getCreatorStats returned %d values, expected 3", len(primary))
	}

	res := &CreatorStats{
		Creator:         creator,
		Published:       primary[0],
		Acquired:        primary[1],
		Held:            primary[2],
		AverageAcquired: ratio(primary[1], primary[0], 1),
	}

	var g errgroup.Group
	g.Go(func() error {
		res.Registered = a.boolMetric(ctx, "registered", "isCreator", creator)
		return nil
	})
	g.Go(func() error {
		res.InRoster, res.RosterSize = a.rosterMetrics(ctx, "getAllCreators", creator)
		return nil
	})
	// failures are recorded in each metric, Wait never returns one
	g.Wait()

	return res, nil
}

// InvestorStats queries the statistics of investor for the current period
func (a *Aggregator) InvestorStats(ctx context.Context, investor common.Address) (*InvestorStats, error) {
	primary, err := a.hub.QueryBigInts(ctx, "getInvestorStats", investor)
	if err != nil {
		return nil, fmt.Errorf("failed to query investor stats: %w", err)
	}
	if len(primary) != 2 {
		return nil, fmt.Errorf("getInvestorStats returned %d values, expected 2", len(primary))
	}

	res := &InvestorStats{
		Investor:      investor,
		Acquired:      primary[0],
		Held:          primary[1],
		RetentionRate: ratio(primary[1], primary[0], 100),
		Period:        PeriodKey(a.now()),
	}

	var g errgroup.Group
	g.Go(func() error {
		res.Registered = a.boolMetric(ctx, "registered", "isInvestor", investor)
		return nil
	})
	g.Go(func() error {
		res.InRoster, res.RosterSize = a.rosterMetrics(ctx, "getAllInvestors", investor)
		return nil
	})
	g.Go(func() error {
		held, err := a.hub.QueryBigInt(ctx, "getCurrentHeldNFTCountByInvestorExternal", investor)
		if err != nil {
			res.HeldNFTCount = unavailableMetric[*big.Int](a, "held_nft_count", err)
			return nil
		}
		res.HeldNFTCount = available(held)
		return nil
	})
	g.Go(func() error {
		res.PeriodAcquired, res.PeriodHeld = a.periodMetrics(ctx, investor, res.Period)
		return nil
	})
	// failures are recorded in each metric, Wait never returns one
	g.Wait()

	return res, nil
}

// periodMetrics reads the investor's counts for period. Deployed hubs return
// either the acquired count alone or acquired and held; held is not
// applicable for the former.
func (a *Aggregator) periodMetrics(ctx context.Context, investor common.Address, period uint64) (Metric[*big.Int], Metric[*big.Int]) {
	monthly, err := a.hub.QueryBigInts(ctx, "getInvestorMonthlyStats", investor, new(big.Int).SetUint64(period))
	if err == nil && (len(monthly) == 0 || len(monthly) > 2) {
		err = fmt.Errorf("getInvestorMonthlyStats returned %d values, expected 1 or 2", len(monthly))
	}
	if err != nil {
		return unavailableMetric[*big.Int](a, "period_acquired", err), unavailableMetric[*big.Int](a, "period_held", err)
	}
	if len(monthly) == 1 {
		return available(monthly[0]), notApplicable[*big.Int]()
	}
	return available(monthly[0]), available(monthly[1])
}

func (a *Aggregator) boolMetric(ctx context.Context, name, method string, subject common.Address) Metric[bool] {
	v, err := a.hub.QueryBool(ctx, method, subject)
	if err != nil {
		return unavailableMetric[bool](a, name, err)
	}
	return available(v)
}

func (a *Aggregator) rosterMetrics(ctx context.Context, method string, subject common.Address) (Metric[bool], Metric[int]) {
	roster, err := a.hub.QueryAddresses(ctx, method)
	if err != nil {
		return unavailableMetric[bool](a, "in_roster", err), unavailableMetric[int](a, "roster_size", err)
	}
	for _, addr := range roster {
		if addr == subject {
			return available(true), available(len(roster))
		}
	}
	return available(false), available(len(roster))
}

func unavailableMetric[T any](a *Aggregator, name string, err error) Metric[T] {
	metrics.UnavailableMetrics.WithLabelValues(name).Inc()
	a.logger.Warn("Secondary metric unavailable", zap.String("metric", name), zap.Error(err))
	return unavailable[T](name, err)
}
