package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"revreport/internal/aggregate"
	"revreport/internal/core"
)

// Engine computes every enabled statistic bundle from a fully materialized
// dataset and its monthly rollups. It assumes its input was validated
// upstream; the only hard failure is an empty table. Computation is pure:
// the same inputs always produce the same Report.
type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Compute derives the full report. monthly must be the period-only rollup
// and monthlyByCat the period-crossed-category rollup, both chronologically
// sorted as produced by the aggregate package.
func (e *Engine) Compute(ds core.Dataset, monthly, monthlyByCat []aggregate.Summary) (*Report, error) {
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("compute statistics: %w", err)
	}
	if len(monthly) == 0 {
		return nil, fmt.Errorf("compute statistics: %w", core.ErrEmptyDataset)
	}

	rep := &Report{Variant: e.opts.Variant}
	rep.Totals = e.totals(ds)
	rep.Categories = e.categoryStats(ds, rep.Totals.TotalRevenue)
	rep.Growth = e.growthBundle(monthly)
	rep.CategoryGrowth = e.categoryGrowth(monthlyByCat)
	rep.Trends = e.trends(monthly, rep.Categories, rep.CategoryGrowth, rep.Growth)
	if e.opts.Seasonality {
		rep.Seasonality = e.seasonality(monthly)
	}
	rep.Projection = e.projection(monthly, rep.Growth.Revenue)
	if e.opts.Diversity {
		rep.Diversity = e.diversity(rep.Categories)
	}
	if e.opts.Anomalies {
		rep.Anomalies = e.detectAnomalies(ds, rep.Growth)
	}
	return rep, nil
}

func (e *Engine) totals(ds core.Dataset) Totals {
	sum := decimal.Zero
	emails := make(map[string]struct{})
	amounts := make([]decimal.Decimal, 0, len(ds.Payments))
	for _, p := range ds.Payments {
		sum = sum.Add(p.Amount)
		amounts = append(amounts, p.Amount)
		if p.Email != "" {
			emails[p.Email] = struct{}{}
		}
	}

	count := len(ds.Payments)
	t := Totals{
		TotalRevenue:     sum,
		TransactionCount: count,
		UniqueCustomers:  len(emails),
		AvgTicket:        core.Round2(sum.Div(decimal.NewFromInt(int64(count)))),
	}
	if !e.opts.ExtendedTotals {
		return t
	}

	sorted := append([]decimal.Decimal(nil), amounts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	t.MedianTicket = median(sorted)
	t.MinAmount = sorted[0]
	t.MaxAmount = sorted[len(sorted)-1]
	t.StdDev = stdDev(toFloats(amounts), true)
	return t
}

func (e *Engine) categoryStats(ds core.Dataset, totalRevenue decimal.Decimal) []CategoryStat {
	type bucket struct {
		amounts []decimal.Decimal
		sum     decimal.Decimal
		emails  map[string]struct{}
	}
	buckets := make(map[string]*bucket)
	for _, p := range ds.Payments {
		b, ok := buckets[p.Category]
		if !ok {
			b = &bucket{sum: decimal.Zero, emails: make(map[string]struct{})}
			buckets[p.Category] = b
		}
		b.sum = b.sum.Add(p.Amount)
		b.amounts = append(b.amounts, p.Amount)
		if p.Email != "" {
			b.emails[p.Email] = struct{}{}
		}
	}

	rows := make([]CategoryStat, 0, len(buckets))
	for name, b := range buckets {
		count := decimal.NewFromInt(int64(len(b.amounts)))
		sorted := append([]decimal.Decimal(nil), b.amounts...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

		row := CategoryStat{
			Category:        name,
			Revenue:         core.Round2(b.sum),
			Count:           len(b.amounts),
			AvgTicket:       core.Round2(b.sum.Div(count)),
			MedianTicket:    core.Round2(median(sorted)),
			UniqueCustomers: len(b.emails),
		}
		if e.opts.CategoryShares && totalRevenue.IsPositive() {
			share, _ := row.Revenue.Div(totalRevenue).Mul(decimal.NewFromInt(100)).Round(1).Float64()
			row.RevenueShare = share
		}
		rows = append(rows, row)
	}

	// Revenue descending; category name breaks ties deterministically.
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Revenue.Equal(rows[j].Revenue) {
			return rows[i].Revenue.GreaterThan(rows[j].Revenue)
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}

func (e *Engine) growthBundle(monthly []aggregate.Summary) GrowthBundle {
	periods := make([]string, len(monthly))
	revenue := make([]decimal.Decimal, len(monthly))
	counts := make([]decimal.Decimal, len(monthly))
	tickets := make([]decimal.Decimal, len(monthly))
	customers := make([]decimal.Decimal, len(monthly))
	for i, row := range monthly {
		periods[i] = row.Period
		revenue[i] = row.RevenueTotal
		counts[i] = decimal.NewFromInt(int64(row.TransactionCount))
		tickets[i] = row.AvgTicket
		customers[i] = decimal.NewFromInt(int64(row.UniqueCustomers))
	}
	return GrowthBundle{
		Revenue:         growthSeries(periods, revenue),
		Transactions:    growthSeries(periods, counts),
		AvgTicket:       growthSeries(periods, tickets),
		UniqueCustomers: growthSeries(periods, customers),
	}
}

// growthSeries computes percentage growth and absolute delta between
// chronologically adjacent values. The first period is a defined zero
// baseline. A zero previous value yields 0% flagged ZeroBaseline instead
// of an undefined division.
func growthSeries(periods []string, values []decimal.Decimal) GrowthSeries {
	series := make(GrowthSeries, len(values))
	for i := range values {
		point := GrowthPoint{Period: periods[i], Value: values[i], Delta: decimal.Zero}
		if i > 0 {
			prev := values[i-1]
			point.Delta = values[i].Sub(prev)
			if prev.IsZero() {
				point.ZeroBaseline = true
			} else {
				pct, _ := point.Delta.Div(prev).Mul(decimal.NewFromInt(100)).Float64()
				point.GrowthPct = pct
			}
		}
		series[i] = point
	}
	return series
}

func (e *Engine) categoryGrowth(monthlyByCat []aggregate.Summary) []CategoryGrowth {
	byCat := make(map[string][]aggregate.Summary)
	names := make([]string, 0)
	for _, row := range monthlyByCat {
		if _, ok := byCat[row.Category]; !ok {
			names = append(names, row.Category)
		}
		byCat[row.Category] = append(byCat[row.Category], row)
	}
	sort.Strings(names)

	var out []CategoryGrowth
	for _, name := range names {
		rows := byCat[name]
		// Categories with a single period of history have no growth to
		// report, not even a zero entry.
		if len(rows) < 2 {
			continue
		}
		periods := make([]string, len(rows))
		revenue := make([]decimal.Decimal, len(rows))
		counts := make([]decimal.Decimal, len(rows))
		for i, row := range rows {
			periods[i] = row.Period
			revenue[i] = row.RevenueTotal
			counts[i] = decimal.NewFromInt(int64(row.TransactionCount))
		}
		out = append(out, CategoryGrowth{
			Category:     name,
			Revenue:      growthSeries(periods, revenue),
			Transactions: growthSeries(periods, counts),
		})
	}
	return out
}

func (e *Engine) trends(monthly []aggregate.Summary, categories []CategoryStat, catGrowth []CategoryGrowth, growth GrowthBundle) Trends {
	t := Trends{
		BestGrowingCategory: BestCategoryNone,
		AvgRevenueGrowth:    growth.Revenue.Mean(),
		AvgCountGrowth:      growth.Transactions.Mean(),
	}

	t.BestPeriodRevenue = scanPeriod(monthly, func(a, b aggregate.Summary) bool {
		return a.RevenueTotal.GreaterThan(b.RevenueTotal)
	})
	t.WorstPeriodRevenue = scanPeriod(monthly, func(a, b aggregate.Summary) bool {
		return a.RevenueTotal.LessThan(b.RevenueTotal)
	})
	t.BestPeriodCount = scanPeriod(monthly, func(a, b aggregate.Summary) bool {
		return a.TransactionCount > b.TransactionCount
	})

	if len(categories) > 0 {
		t.BestCategory = categories[0].Category
	}

	// catGrowth is sorted by name, so with a strict comparison the
	// alphabetically first category wins growth ties.
	best := math.Inf(-1)
	for _, cg := range catGrowth {
		if avg := cg.Revenue.Mean(); avg > best {
			best = avg
			t.BestGrowingCategory = cg.Category
		}
	}
	return t
}

// scanPeriod walks the rollup chronologically and returns the period of
// the row winning the strict comparison; the earliest period wins ties.
func scanPeriod(monthly []aggregate.Summary, better func(a, b aggregate.Summary) bool) string {
	if len(monthly) == 0 {
		return ""
	}
	winner := monthly[0]
	for _, row := range monthly[1:] {
		if better(row, winner) {
			winner = row
		}
	}
	return winner.Period
}

func (e *Engine) seasonality(monthly []aggregate.Summary) *Seasonality {
	revenue := make([]float64, len(monthly))
	for i, row := range monthly {
		revenue[i], _ = row.RevenueTotal.Float64()
	}
	m := mean(revenue)
	var cv float64
	if m != 0 {
		cv = stdDev(revenue, false) / m * 100
	}

	pattern := "low variability"
	switch {
	case cv > 20:
		pattern = "high variability"
	case cv > 10:
		pattern = "moderate variability"
	}

	return &Seasonality{
		CoefficientOfVariation: cv,
		Pattern:                pattern,
		PeakPeriod: scanPeriod(monthly, func(a, b aggregate.Summary) bool {
			return a.RevenueTotal.GreaterThan(b.RevenueTotal)
		}),
		LowPeriod: scanPeriod(monthly, func(a, b aggregate.Summary) bool {
			return a.RevenueTotal.LessThan(b.RevenueTotal)
		}),
	}
}

func (e *Engine) projection(monthly []aggregate.Summary, revenueGrowth GrowthSeries) *Projection {
	// Fewer than two periods: the bundle is absent, not zero-filled.
	if len(monthly) < 2 {
		return nil
	}
	last := monthly[len(monthly)-1]
	prev := monthly[len(monthly)-2]

	revDelta := last.RevenueTotal.Sub(prev.RevenueTotal)
	cntLast := decimal.NewFromInt(int64(last.TransactionCount))
	cntDelta := cntLast.Sub(decimal.NewFromInt(int64(prev.TransactionCount)))

	p := &Projection{
		NextRevenue:      last.RevenueTotal.Add(revDelta),
		NextTransactions: cntLast.Add(cntDelta),
		RevenueTrend:     trendLabel(revDelta),
		TransactionTrend: trendLabel(cntDelta),
	}

	if len(monthly) >= 3 {
		two := decimal.NewFromInt(2)
		p.MovingAvg = &MovingAverage{
			Revenue:      core.Round2(last.RevenueTotal.Add(prev.RevenueTotal).Div(two)),
			Transactions: cntLast.Add(decimal.NewFromInt(int64(prev.TransactionCount))).Div(two),
		}
	}

	if e.opts.ProjectionConfidence {
		rates := make([]float64, len(revenueGrowth))
		for i, pt := range revenueGrowth {
			rates[i] = pt.GrowthPct
		}
		volatility := stdDev(rates, true)
		switch {
		case volatility < 10:
			p.Confidence = "high"
		case volatility < 25:
			p.Confidence = "medium"
		default:
			p.Confidence = "low"
		}
	}
	return p
}

// trendLabel maps a projection delta to its qualitative label. Zero maps
// to decreasing; the boundary is part of the contract.
func trendLabel(delta decimal.Decimal) string {
	if delta.IsPositive() {
		return TrendIncreasing
	}
	return TrendDecreasing
}

func (e *Engine) diversity(categories []CategoryStat) *Diversity {
	total := decimal.Zero
	for _, c := range categories {
		total = total.Add(c.Revenue)
	}
	d := &Diversity{CategoryCount: len(categories)}
	if !total.IsPositive() {
		d.ConcentrationLevel = "low concentration"
		return d
	}

	// Fractional-basis shares: the HHI lands in (0, 1] and the 0.5/0.25
	// thresholds apply directly. The epsilon guards log2 against a zero
	// share.
	const epsilon = 1e-10
	for _, c := range categories {
		share, _ := c.Revenue.Div(total).Float64()
		d.HHI += share * share
		d.ShannonEntropy -= share * math.Log2(share+epsilon)
		if share > d.DominantShare {
			d.DominantShare = share
		}
	}

	switch {
	case d.HHI > 0.5:
		d.ConcentrationLevel = "high concentration"
	case d.HHI > 0.25:
		d.ConcentrationLevel = "moderate concentration"
	default:
		d.ConcentrationLevel = "low concentration"
	}
	return d
}

func median(sorted []decimal.Decimal) decimal.Decimal {
	n := len(sorted)
	if n == 0 {
		return decimal.Zero
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}

func toFloats(values []decimal.Decimal) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i], _ = v.Float64()
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev returns the sample (n-1) or population (n) standard deviation.
func stdDev(values []float64, sample bool) float64 {
	n := len(values)
	if n == 0 || (sample && n < 2) {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		d := v - m
		sq += d * d
	}
	div := float64(n)
	if sample {
		div = float64(n - 1)
	}
	return math.Sqrt(sq / div)
}
