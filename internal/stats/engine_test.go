package stats

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"revreport/internal/aggregate"
	"revreport/internal/core"
)

type row struct {
	amount   string
	email    string
	category string
	period   string
	order    int
}

func dataset(rows []row) core.Dataset {
	seen := map[string]struct{}{}
	var ds core.Dataset
	for _, r := range rows {
		ds.Payments = append(ds.Payments, core.Payment{
			Amount:      decimal.RequireFromString(r.amount),
			Email:       r.email,
			Category:    r.category,
			Period:      r.period,
			PeriodOrder: r.order,
		})
		if _, ok := seen[r.period]; !ok {
			seen[r.period] = struct{}{}
			ds.Periods = append(ds.Periods, core.Period{Label: r.period, Order: r.order})
		}
	}
	return ds
}

func compute(t *testing.T, opts Options, rows []row) *Report {
	t.Helper()
	ds := dataset(rows)
	rep, err := New(opts).Compute(ds, aggregate.ByPeriod(ds), aggregate.ByPeriodCategory(ds))
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	return rep
}

func approx(got, want, tolerance float64) bool {
	return math.Abs(got-want) <= tolerance
}

// Revenue series [100, 150, 120] over P1..P3 is the reference scenario:
// growth [0, +50, -20], deltas [0, +50, -30], projection 90 decreasing.
func referenceRows() []row {
	return []row{
		{"100", "a@x.com", "Memberships", "P1", 1},
		{"150", "b@x.com", "Memberships", "P2", 2},
		{"120", "c@x.com", "Memberships", "P3", 3},
	}
}

func TestGrowthReferenceSeries(t *testing.T) {
	rep := compute(t, Options{}, referenceRows())

	wantPct := []float64{0, 50, -20}
	wantDelta := []string{"0", "50", "-30"}
	if len(rep.Growth.Revenue) != 3 {
		t.Fatalf("revenue series has %d points, want 3", len(rep.Growth.Revenue))
	}
	for i, point := range rep.Growth.Revenue {
		if !approx(point.GrowthPct, wantPct[i], 1e-9) {
			t.Errorf("growth[%d] = %v, want %v", i, point.GrowthPct, wantPct[i])
		}
		if point.Delta.String() != wantDelta[i] {
			t.Errorf("delta[%d] = %s, want %s", i, point.Delta, wantDelta[i])
		}
	}

	if rep.Trends.BestPeriodRevenue != "P2" {
		t.Errorf("best period = %q, want P2", rep.Trends.BestPeriodRevenue)
	}
	if rep.Trends.WorstPeriodRevenue != "P1" {
		t.Errorf("worst period = %q, want P1", rep.Trends.WorstPeriodRevenue)
	}

	if rep.Projection == nil {
		t.Fatal("projection absent with 3 periods")
	}
	if got := rep.Projection.NextRevenue.String(); got != "90" {
		t.Errorf("next revenue = %s, want 90", got)
	}
	if rep.Projection.RevenueTrend != TrendDecreasing {
		t.Errorf("revenue trend = %q, want %q", rep.Projection.RevenueTrend, TrendDecreasing)
	}
	if rep.Projection.MovingAvg == nil {
		t.Fatal("moving average absent with 3 periods")
	}
	if got := rep.Projection.MovingAvg.Revenue.String(); got != "135" {
		t.Errorf("revenue moving average = %s, want 135", got)
	}

	// Mean growth includes the defined-zero first entry: (0+50-20)/3 = 10.
	if !approx(rep.Trends.AvgRevenueGrowth, 10, 1e-9) {
		t.Errorf("avg revenue growth = %v, want 10", rep.Trends.AvgRevenueGrowth)
	}
}

func TestSinglePeriodSeriesIsDefinedZero(t *testing.T) {
	rep := compute(t, Options{}, []row{
		{"100", "a@x.com", "Memberships", "P1", 1},
		{"40", "b@x.com", "Products", "P1", 1},
	})

	for name, series := range map[string]GrowthSeries{
		"revenue":   rep.Growth.Revenue,
		"count":     rep.Growth.Transactions,
		"ticket":    rep.Growth.AvgTicket,
		"customers": rep.Growth.UniqueCustomers,
	} {
		if len(series) != 1 {
			t.Fatalf("%s series has %d points, want 1", name, len(series))
		}
		if series[0].GrowthPct != 0 || !series[0].Delta.IsZero() {
			t.Errorf("%s first point = %+v, want zero growth and delta", name, series[0])
		}
	}
}

func TestSingleHistoryCategoryExcludedFromGrowth(t *testing.T) {
	rep := compute(t, Options{}, []row{
		{"100", "a@x.com", "Memberships", "P1", 1},
		{"80", "b@x.com", "Products", "P1", 1},
		{"150", "c@x.com", "Memberships", "P2", 2},
	})

	if len(rep.CategoryGrowth) != 1 {
		t.Fatalf("got %d category growth bundles, want 1", len(rep.CategoryGrowth))
	}
	if rep.CategoryGrowth[0].Category != "Memberships" {
		t.Errorf("growth bundle for %q, want Memberships", rep.CategoryGrowth[0].Category)
	}
	// Absent entirely, not present with zero values.
	for _, cg := range rep.CategoryGrowth {
		if cg.Category == "Products" {
			t.Error("single-period category present in growth bundle")
		}
	}
}

func TestProjectionPresence(t *testing.T) {
	one := compute(t, Options{}, []row{{"100", "a@x.com", "M", "P1", 1}})
	if one.Projection != nil {
		t.Error("projection present with a single period")
	}

	two := compute(t, Options{}, []row{
		{"100", "a@x.com", "M", "P1", 1},
		{"150", "b@x.com", "M", "P2", 2},
	})
	if two.Projection == nil {
		t.Fatal("projection absent with 2 periods")
	}
	if two.Projection.MovingAvg != nil {
		t.Error("moving average present with only 2 periods")
	}
	if got := two.Projection.NextRevenue.String(); got != "200" {
		t.Errorf("next revenue = %s, want 200", got)
	}
	if two.Projection.RevenueTrend != TrendIncreasing {
		t.Errorf("revenue trend = %q, want %q", two.Projection.RevenueTrend, TrendIncreasing)
	}
}

func TestTrendLabelZeroDeltaIsDecreasing(t *testing.T) {
	rep := compute(t, Options{}, []row{
		{"100", "a@x.com", "M", "P1", 1},
		{"100", "b@x.com", "M", "P2", 2},
	})
	if rep.Projection.RevenueTrend != TrendDecreasing {
		t.Errorf("flat series trend = %q, want %q", rep.Projection.RevenueTrend, TrendDecreasing)
	}
}

func TestZeroBaselineGrowthPolicy(t *testing.T) {
	rep := compute(t, Options{}, []row{
		{"0", "a@x.com", "M", "P1", 1},
		{"100", "b@x.com", "M", "P2", 2},
	})
	point := rep.Growth.Revenue[1]
	if point.GrowthPct != 0 {
		t.Errorf("zero-baseline growth = %v, want defined 0", point.GrowthPct)
	}
	if !point.ZeroBaseline {
		t.Error("zero-baseline point not flagged")
	}
	if point.Delta.String() != "100" {
		t.Errorf("zero-baseline delta = %s, want 100", point.Delta)
	}
}

func TestCategorySortingAndTieBreak(t *testing.T) {
	rep := compute(t, Options{}, []row{
		{"50", "a@x.com", "Zeta", "P1", 1},
		{"50", "b@x.com", "Alpha", "P1", 1},
		{"200", "c@x.com", "Mid", "P1", 1},
	})
	got := make([]string, len(rep.Categories))
	for i, c := range rep.Categories {
		got[i] = c.Category
	}
	want := []string{"Mid", "Alpha", "Zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("category order = %v, want %v (revenue desc, name breaks ties)", got, want)
	}
	if rep.Trends.BestCategory != "Mid" {
		t.Errorf("best category = %q, want Mid", rep.Trends.BestCategory)
	}
}

func TestBestGrowingCategory(t *testing.T) {
	rep := compute(t, Options{}, []row{
		{"100", "a@x.com", "Slow", "P1", 1},
		{"110", "b@x.com", "Slow", "P2", 2},
		{"100", "c@x.com", "Fast", "P1", 1},
		{"200", "d@x.com", "Fast", "P2", 2},
	})
	if rep.Trends.BestGrowingCategory != "Fast" {
		t.Errorf("best growing category = %q, want Fast", rep.Trends.BestGrowingCategory)
	}
}

func TestBestGrowingCategoryFallback(t *testing.T) {
	rep := compute(t, Options{}, []row{
		{"100", "a@x.com", "OnlyOnce", "P1", 1},
	})
	if rep.Trends.BestGrowingCategory != BestCategoryNone {
		t.Errorf("fallback = %q, want %q", rep.Trends.BestGrowingCategory, BestCategoryNone)
	}
}

func TestTotalsExtended(t *testing.T) {
	rep := compute(t, Options{ExtendedTotals: true}, []row{
		{"10", "a@x.com", "M", "P1", 1},
		{"20", "a@x.com", "M", "P1", 1},
		{"30", "b@x.com", "M", "P1", 1},
		{"40", "c@x.com", "M", "P1", 1},
	})
	if got := rep.Totals.TotalRevenue.String(); got != "100" {
		t.Errorf("total revenue = %s, want 100", got)
	}
	if rep.Totals.TransactionCount != 4 {
		t.Errorf("transaction count = %d, want 4", rep.Totals.TransactionCount)
	}
	if rep.Totals.UniqueCustomers != 3 {
		t.Errorf("unique customers = %d, want 3", rep.Totals.UniqueCustomers)
	}
	if got := rep.Totals.AvgTicket.String(); got != "25" {
		t.Errorf("avg ticket = %s, want 25", got)
	}
	if got := rep.Totals.MedianTicket.String(); got != "25" {
		t.Errorf("median = %s, want 25", got)
	}
	if rep.Totals.MinAmount.String() != "10" || rep.Totals.MaxAmount.String() != "40" {
		t.Errorf("min/max = %s/%s, want 10/40", rep.Totals.MinAmount, rep.Totals.MaxAmount)
	}
	// Sample standard deviation of 10,20,30,40.
	if !approx(rep.Totals.StdDev, 12.909944, 1e-5) {
		t.Errorf("std dev = %v, want ~12.90994", rep.Totals.StdDev)
	}
}

func TestCategoryShares(t *testing.T) {
	rep := compute(t, Options{CategoryShares: true}, []row{
		{"75", "a@x.com", "Big", "P1", 1},
		{"25", "b@x.com", "Small", "P1", 1},
	})
	if !approx(rep.Categories[0].RevenueShare, 75.0, 1e-9) {
		t.Errorf("big share = %v, want 75.0", rep.Categories[0].RevenueShare)
	}
	if !approx(rep.Categories[1].RevenueShare, 25.0, 1e-9) {
		t.Errorf("small share = %v, want 25.0", rep.Categories[1].RevenueShare)
	}
}

func TestDiversitySingleCategory(t *testing.T) {
	rep := compute(t, Options{Diversity: true}, []row{
		{"100", "a@x.com", "Only", "P1", 1},
	})
	d := rep.Diversity
	if d == nil {
		t.Fatal("diversity bundle absent")
	}
	if !approx(d.HHI, 1.0, 1e-9) {
		t.Errorf("HHI = %v, want 1.0", d.HHI)
	}
	if !approx(d.ShannonEntropy, 0, 1e-6) {
		t.Errorf("entropy = %v, want ~0", d.ShannonEntropy)
	}
	if d.ConcentrationLevel != "high concentration" {
		t.Errorf("concentration = %q, want high concentration", d.ConcentrationLevel)
	}
	if !approx(d.DominantShare, 1.0, 1e-9) || d.CategoryCount != 1 {
		t.Errorf("dominant/count = %v/%d, want 1.0/1", d.DominantShare, d.CategoryCount)
	}
}

func TestDiversityEvenSplit(t *testing.T) {
	rep := compute(t, Options{Diversity: true}, []row{
		{"100", "a@x.com", "A", "P1", 1},
		{"100", "b@x.com", "B", "P1", 1},
	})
	d := rep.Diversity
	if !approx(d.HHI, 0.5, 1e-9) {
		t.Errorf("HHI = %v, want 0.5", d.HHI)
	}
	if !approx(d.ShannonEntropy, 1.0, 1e-6) {
		t.Errorf("entropy = %v, want ~1.0 bit", d.ShannonEntropy)
	}
	if d.ConcentrationLevel != "moderate concentration" {
		t.Errorf("concentration = %q, want moderate concentration", d.ConcentrationLevel)
	}
}

func TestSeasonalityClassification(t *testing.T) {
	tests := []struct {
		name    string
		amounts []string
		pattern string
	}{
		{"low variability", []string{"100", "101", "99"}, "low variability"},
		{"moderate variability", []string{"100", "120", "90"}, "moderate variability"},
		{"high variability", []string{"100", "200", "50"}, "high variability"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([]row, len(tt.amounts))
			for i, a := range tt.amounts {
				rows[i] = row{a, "a@x.com", "M", []string{"P1", "P2", "P3"}[i], i + 1}
			}
			rep := compute(t, Options{Seasonality: true}, rows)
			if rep.Seasonality == nil {
				t.Fatal("seasonality bundle absent")
			}
			if rep.Seasonality.Pattern != tt.pattern {
				t.Errorf("pattern = %q (cv=%.2f), want %q",
					rep.Seasonality.Pattern, rep.Seasonality.CoefficientOfVariation, tt.pattern)
			}
		})
	}
}

func TestProjectionConfidence(t *testing.T) {
	// Flat growth: volatility near zero, confidence high.
	rep := compute(t, Options{ProjectionConfidence: true}, []row{
		{"100", "a@x.com", "M", "P1", 1},
		{"100", "b@x.com", "M", "P2", 2},
		{"100", "c@x.com", "M", "P3", 3},
	})
	if rep.Projection.Confidence != "high" {
		t.Errorf("confidence = %q, want high", rep.Projection.Confidence)
	}

	// Growth swings of +100% and -50%: volatile, confidence low.
	rep = compute(t, Options{ProjectionConfidence: true}, []row{
		{"100", "a@x.com", "M", "P1", 1},
		{"200", "b@x.com", "M", "P2", 2},
		{"100", "c@x.com", "M", "P3", 3},
	})
	if rep.Projection.Confidence != "low" {
		t.Errorf("confidence = %q, want low", rep.Projection.Confidence)
	}
}

func TestOutlierDetection(t *testing.T) {
	rep := compute(t, Options{Anomalies: true}, []row{
		{"10", "a@x.com", "M", "P1", 1},
		{"10", "b@x.com", "M", "P1", 1},
		{"10", "c@x.com", "M", "P1", 1},
		{"10", "d@x.com", "M", "P1", 1},
		{"1000", "e@x.com", "M", "P1", 1},
	})
	found := false
	for _, a := range rep.Anomalies {
		if strings.Contains(a, "1 outlier") {
			found = true
		}
	}
	if !found {
		t.Errorf("anomalies = %v, want exactly one flagged outlier", rep.Anomalies)
	}
}

func TestSignificantDropReported(t *testing.T) {
	rep := compute(t, Options{Anomalies: true}, []row{
		{"100", "a@x.com", "M", "P1", 1},
		{"50", "b@x.com", "M", "P2", 2},
	})
	found := false
	for _, a := range rep.Anomalies {
		if strings.Contains(a, "revenue") && strings.Contains(a, "P2") {
			found = true
		}
	}
	if !found {
		t.Errorf("anomalies = %v, want a revenue drop naming P2", rep.Anomalies)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	ds := dataset(referenceRows())
	monthly := aggregate.ByPeriod(ds)
	byCat := aggregate.ByPeriodCategory(ds)
	engine := New(OptionsForVariant(core.VariantTotal))

	first, err := engine.Compute(ds, monthly, byCat)
	if err != nil {
		t.Fatalf("first Compute() error = %v", err)
	}
	second, err := engine.Compute(ds, monthly, byCat)
	if err != nil {
		t.Fatalf("second Compute() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two runs over the same table produced different reports")
	}
}

func TestComputeEmptyDataset(t *testing.T) {
	_, err := New(Options{}).Compute(core.Dataset{}, nil, nil)
	if err == nil {
		t.Fatal("empty dataset did not fail")
	}
}

func TestOptionsForVariant(t *testing.T) {
	if opts := OptionsForVariant(core.VariantMembership); opts.Diversity || opts.Anomalies {
		t.Error("membership variant enabled extended bundles")
	}
	if opts := OptionsForVariant(core.VariantTotal); !opts.Diversity || !opts.Anomalies || !opts.Seasonality {
		t.Error("total variant missing extended bundles")
	}
	if opts := OptionsForVariant(core.VariantMembership); opts.Variant != core.VariantMembership {
		t.Errorf("Variant = %q, want %q", opts.Variant, core.VariantMembership)
	}
}

func TestComputeCarriesVariant(t *testing.T) {
	ds := dataset(referenceRows())
	monthly := aggregate.ByPeriod(ds)
	byCat := aggregate.ByPeriodCategory(ds)

	for _, variant := range []core.Variant{core.VariantMembership, core.VariantTotal} {
		rep, err := New(OptionsForVariant(variant)).Compute(ds, monthly, byCat)
		if err != nil {
			t.Fatalf("Compute(%s): %v", variant, err)
		}
		if rep.Variant != variant {
			t.Errorf("Report.Variant = %q, want %q", rep.Variant, variant)
		}
	}
}
