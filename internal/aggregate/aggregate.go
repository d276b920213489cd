// Package aggregate turns the unified payment table into per-period
// summary rows, the input contract of the statistics engine.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"revreport/internal/core"
)

// Summary is one row of a monthly rollup. Category is empty for the
// period-only grouping. Monetary fields are rounded to 2 decimal places
// here; all downstream growth and trend math consumes the rounded values.
type Summary struct {
	Period           string
	PeriodOrder      int
	Category         string
	RevenueTotal     decimal.Decimal
	AvgTicket        decimal.Decimal
	TransactionCount int
	UniqueCustomers  int
}

type groupKey struct {
	order    int
	period   string
	category string
}

// ByPeriod groups the dataset by period alone, one row per period that has
// at least one payment. Rows are sorted by period ordinal ascending; that
// ordering carries every later time-series computation.
func ByPeriod(ds core.Dataset) []Summary {
	return group(ds, false)
}

// ByPeriodCategory groups by period crossed with category. Only key
// combinations that actually occur produce a row; absent combinations are
// never zero-filled.
func ByPeriodCategory(ds core.Dataset) []Summary {
	return group(ds, true)
}

func group(ds core.Dataset, byCategory bool) []Summary {
	type bucket struct {
		sum    decimal.Decimal
		count  int
		emails map[string]struct{}
	}
	buckets := make(map[groupKey]*bucket)

	for _, p := range ds.Payments {
		key := groupKey{order: p.PeriodOrder, period: p.Period}
		if byCategory {
			key.category = p.Category
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{sum: decimal.Zero, emails: make(map[string]struct{})}
			buckets[key] = b
		}
		b.sum = b.sum.Add(p.Amount)
		b.count++
		if p.Email != "" {
			b.emails[p.Email] = struct{}{}
		}
	}

	rows := make([]Summary, 0, len(buckets))
	for key, b := range buckets {
		count := decimal.NewFromInt(int64(b.count))
		rows = append(rows, Summary{
			Period:           key.period,
			PeriodOrder:      key.order,
			Category:         key.category,
			RevenueTotal:     core.Round2(b.sum),
			AvgTicket:        core.Round2(b.sum.Div(count)),
			TransactionCount: b.count,
			UniqueCustomers:  len(b.emails),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PeriodOrder != rows[j].PeriodOrder {
			return rows[i].PeriodOrder < rows[j].PeriodOrder
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}

// Periods returns the distinct periods of a period-only rollup in
// chronological order.
func Periods(rows []Summary) []string {
	periods := make([]string, 0, len(rows))
	seen := make(map[string]struct{})
	for _, r := range rows {
		if _, ok := seen[r.Period]; ok {
			continue
		}
		seen[r.Period] = struct{}{}
		periods = append(periods, r.Period)
	}
	return periods
}
