// Package report renders the computed statistics as a multi-section text
// document. It only formats values from the stats bundles; every number
// is derived upstream by the statistics engine.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"revreport/internal/aggregate"
	"revreport/internal/ingest"
	"revreport/internal/stats"
)

// Config is the explicit rendering configuration, passed at construction.
// There is no process-wide style state.
type Config struct {
	Title       string
	Currency    string
	NextPeriod  string
	SectionRule string
}

// DefaultConfig returns the standard report layout.
func DefaultConfig() Config {
	return Config{
		Title:       "PAYMENT ANALYSIS REPORT",
		Currency:    "S/",
		NextPeriod:  "next period",
		SectionRule: strings.Repeat("=", 64),
	}
}

type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) *Renderer {
	if cfg.SectionRule == "" {
		cfg.SectionRule = strings.Repeat("=", 64)
	}
	return &Renderer{cfg: cfg}
}

// Render writes the full report. monthly is the period-only rollup used
// for the monthly comparison table; quality feeds the appendix.
func (r *Renderer) Render(w io.Writer, rep *stats.Report, monthly []aggregate.Summary, quality ingest.QualityReport) error {
	r.executiveSummary(w, rep)
	r.monthlyComparison(w, monthly)
	r.categoryAnalysis(w, rep)
	r.growthDetail(w, rep)
	r.projections(w, rep)
	if rep.Diversity != nil {
		r.diversity(w, rep.Diversity)
	}
	if len(rep.Anomalies) > 0 {
		r.anomalies(w, rep.Anomalies)
	}
	r.dataQuality(w, quality)
	return nil
}

func (r *Renderer) section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", r.cfg.SectionRule, title, r.cfg.SectionRule)
}

func (r *Renderer) money(v fmt.Stringer) string {
	return fmt.Sprintf("%s %s", r.cfg.Currency, v)
}

func (r *Renderer) executiveSummary(w io.Writer, rep *stats.Report) {
	r.section(w, r.cfg.Title+" - EXECUTIVE SUMMARY")
	fmt.Fprintf(w, "Total revenue:      %s\n", r.money(rep.Totals.TotalRevenue))
	fmt.Fprintf(w, "Transactions:       %d\n", rep.Totals.TransactionCount)
	fmt.Fprintf(w, "Unique customers:   %d\n", rep.Totals.UniqueCustomers)
	fmt.Fprintf(w, "Average ticket:     %s\n", r.money(rep.Totals.AvgTicket))
	fmt.Fprintf(w, "Best month:         %s\n", rep.Trends.BestPeriodRevenue)
	fmt.Fprintf(w, "Best category:      %s\n", rep.Trends.BestCategory)
	if rep.Diversity != nil {
		fmt.Fprintf(w, "Concentration:      %s\n", rep.Diversity.ConcentrationLevel)
	}
}

func (r *Renderer) monthlyComparison(w io.Writer, monthly []aggregate.Summary) {
	r.section(w, "MONTHLY COMPARISON")
	fmt.Fprintf(w, "%-12s %14s %8s %10s %12s\n", "Month", "Revenue", "Count", "Customers", "Avg ticket")
	for _, row := range monthly {
		fmt.Fprintf(w, "%-12s %14s %8d %10d %12s\n",
			row.Period, row.RevenueTotal, row.TransactionCount, row.UniqueCustomers, row.AvgTicket)
	}
}

func (r *Renderer) categoryAnalysis(w io.Writer, rep *stats.Report) {
	r.section(w, "CATEGORY ANALYSIS")
	fmt.Fprintf(w, "%-20s %14s %8s %12s %10s\n", "Category", "Revenue", "Count", "Avg ticket", "Share")
	for _, c := range rep.Categories {
		share := ""
		if c.RevenueShare > 0 {
			share = fmt.Sprintf("%.1f%%", c.RevenueShare)
		}
		fmt.Fprintf(w, "%-20s %14s %8d %12s %10s\n", c.Category, c.Revenue, c.Count, c.AvgTicket, share)
	}
}

func (r *Renderer) growthDetail(w io.Writer, rep *stats.Report) {
	r.section(w, "GROWTH ANALYSIS")
	fmt.Fprintln(w, "Revenue growth by month:")
	for _, p := range rep.Growth.Revenue {
		note := ""
		if p.ZeroBaseline {
			note = " (zero baseline)"
		}
		fmt.Fprintf(w, "  %-12s %+7.1f%%  change %s%s\n", p.Period, p.GrowthPct, r.money(p.Delta), note)
	}
	fmt.Fprintf(w, "Average revenue growth:      %+.1f%%\n", rep.Trends.AvgRevenueGrowth)
	fmt.Fprintf(w, "Average transaction growth:  %+.1f%%\n", rep.Trends.AvgCountGrowth)
	fmt.Fprintf(w, "Best growing category:       %s\n", rep.Trends.BestGrowingCategory)

	if len(rep.CategoryGrowth) > 0 {
		fmt.Fprintln(w, "Per-category revenue growth:")
		for _, cg := range rep.CategoryGrowth {
			fmt.Fprintf(w, "  %-20s mean %+.1f%%\n", cg.Category, cg.Revenue.Mean())
		}
	}

	if rep.Seasonality != nil {
		fmt.Fprintf(w, "Variability:                 %s (CV %.1f%%)\n",
			rep.Seasonality.Pattern, rep.Seasonality.CoefficientOfVariation)
		fmt.Fprintf(w, "Peak month: %s, low month: %s\n", rep.Seasonality.PeakPeriod, rep.Seasonality.LowPeriod)
	}
}

func (r *Renderer) projections(w io.Writer, rep *stats.Report) {
	r.section(w, "PROJECTIONS")
	p := rep.Projection
	if p == nil {
		fmt.Fprintln(w, "Not enough history for a projection (need at least 2 months).")
		return
	}
	fmt.Fprintf(w, "Estimated revenue (%s):      %s (%s)\n", r.cfg.NextPeriod, r.money(p.NextRevenue), p.RevenueTrend)
	fmt.Fprintf(w, "Estimated transactions (%s): %s (%s)\n", r.cfg.NextPeriod, p.NextTransactions, p.TransactionTrend)
	if p.MovingAvg != nil {
		fmt.Fprintf(w, "2-month moving average:      revenue %s, transactions %s\n",
			r.money(p.MovingAvg.Revenue), p.MovingAvg.Transactions)
	}
	if p.Confidence != "" {
		fmt.Fprintf(w, "Projection confidence:       %s\n", p.Confidence)
	}
}

func (r *Renderer) diversity(w io.Writer, d *stats.Diversity) {
	r.section(w, "BUSINESS DIVERSIFICATION")
	fmt.Fprintf(w, "HHI index:            %.3f\n", d.HHI)
	fmt.Fprintf(w, "Shannon entropy:      %.3f bits\n", d.ShannonEntropy)
	fmt.Fprintf(w, "Concentration:        %s\n", d.ConcentrationLevel)
	fmt.Fprintf(w, "Dominant share:       %.1f%%\n", d.DominantShare*100)
	fmt.Fprintf(w, "Categories:           %d\n", d.CategoryCount)
}

func (r *Renderer) anomalies(w io.Writer, findings []string) {
	r.section(w, "ANOMALIES")
	for _, f := range findings {
		fmt.Fprintf(w, "- %s\n", f)
	}
}

func (r *Renderer) dataQuality(w io.Writer, q ingest.QualityReport) {
	r.section(w, "DATA QUALITY")
	fmt.Fprintf(w, "Records analyzed:     %d\n", q.TotalRecords)
	fmt.Fprintf(w, "Rows dropped:         %d\n", q.DroppedRows)
	fmt.Fprintf(w, "Unique customers:     %d\n", q.UniqueCustomers)
	if q.TotalRecords > 0 {
		fmt.Fprintf(w, "Amount range:         %s - %s (mean %s, median %s)\n",
			r.money(q.MinAmount), r.money(q.MaxAmount), r.money(q.MeanAmount), r.money(q.MedianAmount))
	}

	categories := make([]string, 0, len(q.CategoryCounts))
	for name := range q.CategoryCounts {
		categories = append(categories, name)
	}
	sort.Strings(categories)
	for _, name := range categories {
		fmt.Fprintf(w, "  %-20s %d records\n", name, q.CategoryCounts[name])
	}
}
