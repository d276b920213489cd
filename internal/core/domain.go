package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// VariantMembership analyzes membership sign-ups only, grouped by plan.
	VariantMembership Variant = "membership"
	// VariantTotal analyzes every payment type, grouped by category.
	VariantTotal Variant = "total"
)

type (
	Variant string

	// Period is one reporting month in the fixed, ordered sequence under
	// analysis. Key names the source file, Label is the display name and
	// Order is the 1-based chronological rank (labels are not sortable).
	Period struct {
		Key   string
		Label string
		Order int
	}

	// Payment is one row of the unified table: a single payment event
	// tagged with its source period. Never mutated after ingestion.
	Payment struct {
		Amount      decimal.Decimal
		Email       string
		Category    string
		Period      string
		PeriodOrder int
	}

	// Dataset is the unified in-memory table plus the chronological list
	// of periods that actually contributed rows. Periods with no source
	// file are simply absent, never zero-filled.
	Dataset struct {
		Payments []Payment
		Periods  []Period
	}
)

var (
	ErrEmptyDataset   = errors.New("dataset has no payments")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrEmptyCategory  = errors.New("empty category")
	ErrInvalidPeriod  = errors.New("invalid period")
	ErrUnknownVariant = errors.New("unknown report variant")
)

// CategoryLabels maps raw payment type codes from the source files to
// display labels. Unknown codes pass through unchanged.
var CategoryLabels = map[string]string{
	"membership":               "Memberships",
	"order":                    "Products",
	"membership_reconsumption": "Reconsumption",
	"membership_upgrade":       "Upgrades",
}

// CategoryLabel normalizes a raw category code: trims whitespace and
// resolves it through the display-name lookup.
func CategoryLabel(raw string) string {
	raw = strings.TrimSpace(raw)
	if label, ok := CategoryLabels[raw]; ok {
		return label
	}
	return raw
}

func (v Variant) Validate() error {
	switch v {
	case VariantMembership, VariantTotal:
		return nil
	}
	return ErrUnknownVariant
}

func (p Payment) Validate() error {
	if p.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(p.Category) == "" {
		return ErrEmptyCategory
	}
	if p.Period == "" || p.PeriodOrder < 1 {
		return ErrInvalidPeriod
	}
	return nil
}

// NewPeriods builds the ordered period sequence from display labels.
// The file key is the lowercased label.
func NewPeriods(labels []string) []Period {
	periods := make([]Period, 0, len(labels))
	for i, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		periods = append(periods, Period{
			Key:   strings.ToLower(label),
			Label: label,
			Order: i + 1,
		})
	}
	return periods
}

// Validate checks that the dataset is usable by the statistics engine.
// An empty table is the one catastrophic condition: everything downstream
// assumes at least one row.
func (d Dataset) Validate() error {
	if len(d.Payments) == 0 {
		return ErrEmptyDataset
	}
	return nil
}

// PeriodLabels returns the display labels in chronological order.
func (d Dataset) PeriodLabels() []string {
	labels := make([]string, len(d.Periods))
	for i, p := range d.Periods {
		labels[i] = p.Label
	}
	return labels
}
