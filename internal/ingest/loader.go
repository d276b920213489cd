// Package ingest reads the per-period source files and builds the unified
// payment table consumed by the aggregator and the statistics engine.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"revreport/internal/core"
	applog "revreport/internal/log"
)

// Loader reads one CSV file per period. Files are independent and
// read-only, so they are parsed in parallel; the merged table preserves
// chronological period order regardless of completion order.
type Loader struct {
	dataDir string
	variant core.Variant
	periods []core.Period
	logger  *applog.Logger
}

// FileStat records what a single period file contributed.
type FileStat struct {
	Period  string
	Path    string
	Records int
	Dropped int
}

// Result is the outcome of a load: the unified dataset plus everything
// the validation step needs to describe data-quality issues.
type Result struct {
	Dataset           core.Dataset
	Files             []FileStat
	MissingFiles      []string
	DroppedRows       int
	UnknownCategories []string
}

func NewLoader(dataDir string, variant core.Variant, periods []core.Period, logger *applog.Logger) *Loader {
	return &Loader{
		dataDir: dataDir,
		variant: variant,
		periods: periods,
		logger:  logger.WithComponent(applog.ComponentIngest),
	}
}

// Load reads every period file. A missing file skips its period with a
// warning; it is never fatal. An unreadable or malformed existing file is.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	type periodLoad struct {
		stat     FileStat
		payments []core.Payment
		unknown  map[string]struct{}
		missing  bool
	}

	loads := make([]periodLoad, len(l.periods))
	g, ctx := errgroup.WithContext(ctx)

	for i, period := range l.periods {
		i, period := i, period
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			path := filepath.Join(l.dataDir, fmt.Sprintf("%s-%s.csv", l.variant, period.Key))
			loads[i].stat = FileStat{Period: period.Label, Path: path}

			if _, err := os.Stat(path); os.IsNotExist(err) {
				loads[i].missing = true
				l.logger.WarnContext(ctx, "Period file not found, skipping period",
					applog.FieldPath, path, applog.FieldPeriod, period.Label)
				return nil
			}

			payments, dropped, unknown, err := l.loadFile(path, period)
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			loads[i].payments = payments
			loads[i].stat.Records = len(payments)
			loads[i].stat.Dropped = dropped
			loads[i].unknown = unknown

			l.logger.InfoContext(ctx, "Loaded period file",
				applog.FieldPath, path, applog.FieldRecords, len(payments), applog.FieldDropped, dropped)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge sequentially so the unified table keeps chronological order.
	result := &Result{}
	unknown := make(map[string]struct{})
	for i, load := range loads {
		if load.missing {
			result.MissingFiles = append(result.MissingFiles, load.stat.Path)
			continue
		}
		result.Files = append(result.Files, load.stat)
		result.DroppedRows += load.stat.Dropped
		result.Dataset.Payments = append(result.Dataset.Payments, load.payments...)
		if len(load.payments) > 0 {
			result.Dataset.Periods = append(result.Dataset.Periods, l.periods[i])
		}
		for code := range load.unknown {
			unknown[code] = struct{}{}
		}
	}
	for code := range unknown {
		result.UnknownCategories = append(result.UnknownCategories, code)
	}
	sort.Strings(result.UnknownCategories)

	return result, nil
}

// categoryColumn names the source column carrying the grouping label for
// each variant.
func (l *Loader) categoryColumn() string {
	if l.variant == core.VariantMembership {
		return "membership_plan_name"
	}
	return "relatedEntityType"
}

func (l *Loader) loadFile(path string, period core.Period) ([]core.Payment, int, map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, 0, nil, fmt.Errorf("read header: %w", err)
	}
	colAmount := columnIndex(header, "amount")
	colEmail := columnIndex(header, "email")
	colCategory := columnIndex(header, l.categoryColumn())
	if colAmount == -1 || colEmail == -1 || colCategory == -1 {
		return nil, 0, nil, fmt.Errorf("missing required columns (need amount, email, %s; got %v)",
			l.categoryColumn(), header)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, 0, nil, fmt.Errorf("read rows: %w", err)
	}

	payments := make([]core.Payment, 0, len(rows))
	unknown := make(map[string]struct{})
	dropped := 0
	for _, row := range rows {
		amount, err := core.ParseAmount(cell(row, colAmount))
		if err != nil {
			// Non-numeric amounts are excluded from every aggregate.
			dropped++
			continue
		}
		rawCategory := cell(row, colCategory)
		if l.variant == core.VariantTotal {
			code := strings.TrimSpace(rawCategory)
			if _, known := core.CategoryLabels[code]; !known && code != "" {
				unknown[code] = struct{}{}
			}
		}
		payments = append(payments, core.Payment{
			Amount:      amount,
			Email:       strings.TrimSpace(cell(row, colEmail)),
			Category:    core.CategoryLabel(rawCategory),
			Period:      period.Label,
			PeriodOrder: period.Order,
		})
	}
	return payments, dropped, unknown, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
