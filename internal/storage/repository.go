// Package storage persists completed report runs to SQLite for audit.
// The pipeline itself never reads these rows back during a run; all
// statistics are recomputed in memory every invocation.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"revreport/internal/aggregate"
	"revreport/internal/stats"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

// RunRecord is one persisted pipeline run.
type RunRecord struct {
	ID               string
	Variant          string
	TotalRevenue     string
	TransactionCount int
	UniqueCustomers  int
	AvgTicket        string
	PeriodCount      int
	BestPeriod       string
	CreatedAt        time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveRun persists the run header and its monthly summary rows in one
// transaction.
func (r *SQLiteRepository) SaveRun(ctx context.Context, runID string, rep *stats.Report, monthly []aggregate.Summary) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO report_runs
			(id, variant, total_revenue, transaction_count, unique_customers, avg_ticket, period_count, best_period)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		string(rep.Variant),
		rep.Totals.TotalRevenue.String(),
		rep.Totals.TransactionCount,
		rep.Totals.UniqueCustomers,
		rep.Totals.AvgTicket.String(),
		len(monthly),
		rep.Trends.BestPeriodRevenue,
	)
	if err != nil {
		return fmt.Errorf("insert report run: %w", err)
	}

	for _, row := range monthly {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_monthly_summaries
				(run_id, period, period_order, category, revenue_total, avg_ticket, transaction_count, unique_customers)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID,
			row.Period,
			row.PeriodOrder,
			row.Category,
			row.RevenueTotal.String(),
			row.AvgTicket.String(),
			row.TransactionCount,
			row.UniqueCustomers,
		)
		if err != nil {
			return fmt.Errorf("insert monthly summary for %s: %w", row.Period, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}

	slog.InfoContext(ctx, "Report run saved",
		"run_id", runID,
		"variant", rep.Variant,
		"periods", len(monthly))
	return nil
}

// ListRuns returns the most recent persisted runs, newest first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, variant, total_revenue, transaction_count, unique_customers,
		       avg_ticket, period_count, best_period, created_at
		FROM report_runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query report runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Variant, &rec.TotalRevenue, &rec.TransactionCount,
			&rec.UniqueCustomers, &rec.AvgTicket, &rec.PeriodCount, &rec.BestPeriod, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report run: %w", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}
