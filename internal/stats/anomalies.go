package stats

import (
	"fmt"
	"sort"

	"revreport/internal/core"
)

// significantDropPct is the period-over-period growth rate below which a
// drop is reported.
const significantDropPct = -20.0

// detectAnomalies returns advisory, human-readable findings: payment
// amounts outside the Tukey fence and significant period-over-period
// drops. Findings never abort the pipeline.
func (e *Engine) detectAnomalies(ds core.Dataset, growth GrowthBundle) []string {
	var anomalies []string

	amounts := make([]float64, len(ds.Payments))
	for i, p := range ds.Payments {
		amounts[i], _ = p.Amount.Float64()
	}
	sort.Float64s(amounts)

	q1 := quantile(amounts, 0.25)
	q3 := quantile(amounts, 0.75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	outliers := 0
	for _, a := range amounts {
		if a < lower || a > upper {
			outliers++
		}
	}
	if outliers > 0 {
		anomalies = append(anomalies, fmt.Sprintf("found %d outlier transactions outside [%.2f, %.2f]", outliers, lower, upper))
	}

	for metric, series := range map[string]GrowthSeries{
		"revenue":      growth.Revenue,
		"transactions": growth.Transactions,
	} {
		for _, point := range series {
			if point.GrowthPct < significantDropPct {
				anomalies = append(anomalies, fmt.Sprintf("significant drop in %s: %.1f%% in %s", metric, point.GrowthPct, point.Period))
			}
		}
	}

	sort.Strings(anomalies)
	return anomalies
}

// quantile computes the q-th quantile of an ascending-sorted slice using
// linear interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(pos)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}
