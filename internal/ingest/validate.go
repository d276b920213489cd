package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Severity ranks a data-quality issue. The caller decides which severity
// aborts the run; the loader only describes what it found.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Issue is one human-readable data-quality finding.
type Issue struct {
	Severity Severity
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s", i.Severity, i.Message)
}

// Validate inspects the load result and returns descriptive issues.
// Missing files, dropped rows and unknown category codes are warnings; a
// period count different from the expected sequence is an error. An empty
// table is not an issue here: that is the catastrophic case the pipeline
// checks separately.
func (r *Result) Validate(expectedPeriods int) []Issue {
	var issues []Issue

	for _, path := range r.MissingFiles {
		issues = append(issues, Issue{SeverityWarning, fmt.Sprintf("source file not found: %s", path)})
	}
	if r.DroppedRows > 0 {
		issues = append(issues, Issue{SeverityWarning,
			fmt.Sprintf("%d rows dropped for non-numeric amounts", r.DroppedRows)})
	}
	if len(r.UnknownCategories) > 0 {
		issues = append(issues, Issue{SeverityWarning,
			fmt.Sprintf("unknown category codes: %s", strings.Join(r.UnknownCategories, ", "))})
	}
	if got := len(r.Dataset.Periods); got != expectedPeriods {
		issues = append(issues, Issue{SeverityError,
			fmt.Sprintf("data present for %d periods, expected %d", got, expectedPeriods)})
	}
	return issues
}

// QualityReport summarizes the loaded data for the report appendix.
type QualityReport struct {
	TotalRecords    int
	UniqueCustomers int
	DroppedRows     int
	CategoryCounts  map[string]int
	MinAmount       decimal.Decimal
	MaxAmount       decimal.Decimal
	MeanAmount      decimal.Decimal
	MedianAmount    decimal.Decimal
}

// Quality computes the data-quality summary over the unified table.
func (r *Result) Quality() QualityReport {
	q := QualityReport{
		TotalRecords:   len(r.Dataset.Payments),
		DroppedRows:    r.DroppedRows,
		CategoryCounts: make(map[string]int),
	}
	if q.TotalRecords == 0 {
		return q
	}

	emails := make(map[string]struct{})
	amounts := make([]decimal.Decimal, 0, q.TotalRecords)
	sum := decimal.Zero
	for _, p := range r.Dataset.Payments {
		q.CategoryCounts[p.Category]++
		if p.Email != "" {
			emails[p.Email] = struct{}{}
		}
		amounts = append(amounts, p.Amount)
		sum = sum.Add(p.Amount)
	}
	q.UniqueCustomers = len(emails)

	sort.Slice(amounts, func(i, j int) bool { return amounts[i].LessThan(amounts[j]) })
	q.MinAmount = amounts[0]
	q.MaxAmount = amounts[len(amounts)-1]
	q.MeanAmount = sum.Div(decimal.NewFromInt(int64(len(amounts)))).Round(2)
	if n := len(amounts); n%2 == 1 {
		q.MedianAmount = amounts[n/2]
	} else {
		q.MedianAmount = amounts[n/2-1].Add(amounts[n/2]).Div(decimal.NewFromInt(2))
	}
	return q
}
