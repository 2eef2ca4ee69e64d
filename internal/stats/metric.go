package stats

import (
	"encoding/json"
	"math/big"
	"strconv"
	"time"

	"manga/offchain/internal/errs"
)

// PeriodSeconds is the width of one statistics period. The hub buckets
// monthly statistics by 30-day periods, not calendar months.
const PeriodSeconds = 30 * 24 * 60 * 60

// PeriodKey returns the period bucket containing t, matching the yearMonth
// argument the hub expects
func PeriodKey(t time.Time) uint64 {
	secs := t.Unix()
	if secs < 0 {
		return 0
	}
	return uint64(secs) / PeriodSeconds
}

// State tells whether a metric carries a value
type State string

const (
	StateAvailable     State = "available"
	StateUnavailable   State = "unavailable"
	StateNotApplicable State = "not_applicable"
)

// Metric is an optional statistic. Value is meaningful only when State is
// StateAvailable; Err is set only when it is StateUnavailable.
type Metric[T any] struct {
	State State
	Value T
	Err   *errs.PartialQueryError
}

func available[T any](v T) Metric[T] {
	return Metric[T]{State: StateAvailable, Value: v}
}

func unavailable[T any](name string, err error) Metric[T] {
	return Metric[T]{State: StateUnavailable, Err: &errs.PartialQueryError{Metric: name, Err: err}}
}

func notApplicable[T any]() Metric[T] {
	return Metric[T]{State: StateNotApplicable}
}

// Available reports whether the metric has a value
func (m Metric[T]) Available() bool {
	return m.State == StateAvailable
}

// Format renders the value with format, or a marker for the other states
func (m Metric[T]) Format(format func(T) string) string {
	switch m.State {
	case StateAvailable:
		return format(m.Value)
	case StateNotApplicable:
		return "n/a"
	default:
		return "unavailable"
	}
}

func (m Metric[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		State State  `json:"state"`
		Value *T     `json:"value,omitempty"`
		Error string `json:"error,omitempty"`
	}{State: m.State}
	if m.State == StateAvailable {
		v := m.Value
		out.Value = &v
	}
	if m.Err != nil {
		out.Error = m.Err.Error()
	}
	return json.Marshal(out)
}

// ratio returns num/den scaled by scale, or not applicable when den is zero
func ratio(num, den *big.Int, scale int64) Metric[float64] {
	if den.Sign() == 0 {
		return notApplicable[float64]()
	}
	r := new(big.Rat).SetFrac(new(big.Int).Mul(num, big.NewInt(scale)), den)
	f, _ := r.Float64()
	return available(f)
}

// Decimal formats a ratio with two decimals
func Decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Percent formats a percentage with two decimals
func Percent(v float64) string {
	return Decimal(v) + "%"
}
