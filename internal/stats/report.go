// Package stats derives the full statistics report from the unified
// payment table and its monthly rollups: totals, category breakdowns,
// growth series, trends, projections and diversification metrics.
package stats

import (
	"github.com/shopspring/decimal"

	"revreport/internal/core"
)

// BestCategoryNone is the sentinel used when no category has enough
// history to compute a growth series.
const BestCategoryNone = "N/A"

// Trend labels for the one-period-ahead projection. A zero delta maps to
// decreasing; that boundary is part of the contract.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
)

// Options selects the grouping key set and the enabled metric bundles.
// The membership and all-payments reports share one engine; only the
// options differ.
type Options struct {
	Variant              core.Variant
	ExtendedTotals       bool
	CategoryShares       bool
	Seasonality          bool
	Diversity            bool
	Anomalies            bool
	ProjectionConfidence bool
}

// OptionsForVariant returns the bundle set for a report variant: the
// membership report carries the base bundles, the all-payments report
// additionally enables the extended ones.
func OptionsForVariant(v core.Variant) Options {
	extended := v == core.VariantTotal
	return Options{
		Variant:              v,
		ExtendedTotals:       extended,
		CategoryShares:       extended,
		Seasonality:          extended,
		Diversity:            extended,
		Anomalies:            extended,
		ProjectionConfidence: extended,
	}
}

// Totals are the whole-dataset descriptive statistics. The extended
// fields are zero unless Options.ExtendedTotals is set.
type Totals struct {
	TotalRevenue     decimal.Decimal
	TransactionCount int
	UniqueCustomers  int
	AvgTicket        decimal.Decimal

	MedianTicket decimal.Decimal
	MinAmount    decimal.Decimal
	MaxAmount    decimal.Decimal
	StdDev       float64
}

// CategoryStat is one row of the whole-dataset category table, sorted
// descending by revenue with the category name as secondary key.
type CategoryStat struct {
	Category        string
	Revenue         decimal.Decimal
	Count           int
	AvgTicket       decimal.Decimal
	MedianTicket    decimal.Decimal
	UniqueCustomers int
	// RevenueShare is the percentage of total revenue, rounded to 1
	// decimal place. Only populated with Options.CategoryShares.
	RevenueShare float64
}

// GrowthPoint is one period of a metric series. The first period of every
// series has GrowthPct and Delta defined as 0, a fill policy rather than a
// missing value. ZeroBaseline marks points whose previous value was 0:
// the percentage is reported as 0 instead of an undefined division.
type GrowthPoint struct {
	Period       string
	Value        decimal.Decimal
	GrowthPct    float64
	Delta        decimal.Decimal
	ZeroBaseline bool
}

type GrowthSeries []GrowthPoint

// Mean returns the average growth rate across all points, including the
// defined-zero first entry.
func (s GrowthSeries) Mean() float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, p := range s {
		sum += p.GrowthPct
	}
	return sum / float64(len(s))
}

// GrowthBundle holds the per-period growth and absolute-change series for
// every tracked metric, ordered chronologically.
type GrowthBundle struct {
	Revenue         GrowthSeries
	Transactions    GrowthSeries
	AvgTicket       GrowthSeries
	UniqueCustomers GrowthSeries
}

// CategoryGrowth is the growth sub-bundle of a single category. Only
// categories present in two or more periods appear at all.
type CategoryGrowth struct {
	Category     string
	Revenue      GrowthSeries
	Transactions GrowthSeries
}

// Trends names the best and worst performers. Ties resolve to the first
// period encountered in chronological order, and to the alphabetically
// first category.
type Trends struct {
	BestPeriodRevenue   string
	WorstPeriodRevenue  string
	BestPeriodCount     string
	BestCategory        string
	BestGrowingCategory string
	AvgRevenueGrowth    float64
	AvgCountGrowth      float64
}

// Seasonality classifies the variability of the revenue series.
type Seasonality struct {
	CoefficientOfVariation float64
	Pattern                string
	PeakPeriod             string
	LowPeriod              string
}

// MovingAverage is the 2-period trailing average alternative estimate,
// present only when three or more periods exist.
type MovingAverage struct {
	Revenue      decimal.Decimal
	Transactions decimal.Decimal
}

// Projection is the one-period-ahead linear extrapolation from the two
// most recent periods. Absent entirely when fewer than two periods exist.
type Projection struct {
	NextRevenue      decimal.Decimal
	NextTransactions decimal.Decimal
	RevenueTrend     string
	TransactionTrend string
	MovingAvg        *MovingAverage
	// Confidence is derived from the volatility of the revenue growth
	// series. Empty unless Options.ProjectionConfidence is set.
	Confidence string
}

// Diversity holds concentration metrics over the category revenue
// distribution. Shares and the HHI use the fractional basis (0..1].
type Diversity struct {
	HHI                float64
	ShannonEntropy     float64
	ConcentrationLevel string
	DominantShare      float64
	CategoryCount      int
}

// Report is the entire contract surface handed to renderers and
// exporters. They format these values; they never re-derive them.
type Report struct {
	Variant        core.Variant
	Totals         Totals
	Categories     []CategoryStat
	Growth         GrowthBundle
	CategoryGrowth []CategoryGrowth
	Trends         Trends
	Seasonality    *Seasonality
	Projection     *Projection
	Diversity      *Diversity
	Anomalies      []string
}
