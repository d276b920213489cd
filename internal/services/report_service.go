// Package services wires the pipeline stages together: load the period
// files, validate the result, aggregate, compute the statistics bundle and
// render the report, with optional persistence, spreadsheet export and
// run-completed notification on the side.
package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"revreport/internal/aggregate"
	"revreport/internal/amqp"
	"revreport/internal/config"
	"revreport/internal/core"
	"revreport/internal/ingest"
	applog "revreport/internal/log"
	"revreport/internal/report"
	"revreport/internal/stats"
)

// Exporter pushes a finished report to an external sheet. Optional.
type Exporter interface {
	Export(ctx context.Context, rep *stats.Report, monthly []aggregate.Summary) error
}

// RunStore persists finished runs for later inspection. Optional.
type RunStore interface {
	SaveRun(ctx context.Context, runID string, rep *stats.Report, monthly []aggregate.Summary) error
}

// Notifier announces a completed run to interested consumers. Optional.
type Notifier interface {
	PublishRunCompleted(ctx context.Context, msg *amqp.RunCompletedMessage) error
}

// ReportService runs the whole pipeline for one configuration. The
// exporter, store and notifier may all be nil; their failures are logged
// and never fail the run.
type ReportService struct {
	cfg      *config.Config
	logger   *applog.Logger
	exporter Exporter
	store    RunStore
	notifier Notifier
}

// RunResult summarizes one pipeline execution.
type RunResult struct {
	RunID   string
	Report  *stats.Report
	Monthly []aggregate.Summary
	Issues  []ingest.Issue
	Elapsed time.Duration
}

func NewReportService(cfg *config.Config, logger *applog.Logger, exporter Exporter, store RunStore, notifier Notifier) *ReportService {
	return &ReportService{
		cfg:      cfg,
		logger:   logger.WithComponent(applog.ComponentService),
		exporter: exporter,
		store:    store,
		notifier: notifier,
	}
}

// Run executes load, validate, aggregate, compute and render, writing the
// rendered report to w. It returns an error when loading fails, when the
// abort policy trips on validation issues, or when the dataset cannot be
// analyzed.
func (s *ReportService) Run(ctx context.Context, w io.Writer) (*RunResult, error) {
	start := time.Now()
	runID := uuid.New().String()
	logger := s.logger.With(applog.FieldRunID, runID, applog.FieldVariant, string(s.cfg.Variant))

	logger.InfoContext(ctx, "Report run started",
		applog.FieldPath, s.cfg.DataDir,
		"periods", len(s.cfg.Periods))

	periods := s.cfg.PeriodSequence()
	loader := ingest.NewLoader(s.cfg.DataDir, s.cfg.Variant, periods, s.logger)
	loaded, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load payment data: %w", err)
	}

	issues := loaded.Validate(len(periods))
	s.logIssues(ctx, logger, issues)
	if err := s.checkAbort(issues); err != nil {
		return nil, err
	}

	monthly := aggregate.ByPeriod(loaded.Dataset)
	monthlyByCat := aggregate.ByPeriodCategory(loaded.Dataset)

	engine := stats.New(stats.OptionsForVariant(s.cfg.Variant))
	rep, err := engine.Compute(loaded.Dataset, monthly, monthlyByCat)
	if err != nil {
		return nil, fmt.Errorf("compute report: %w", err)
	}

	renderer := report.NewRenderer(report.Config{
		Title:      s.reportTitle(),
		Currency:   s.cfg.Currency,
		NextPeriod: s.cfg.NextPeriod,
	})
	if err := renderer.Render(w, rep, monthly, loaded.Quality()); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	s.persist(ctx, logger, runID, rep, monthly)
	s.export(ctx, logger, rep, monthly)
	s.notify(ctx, logger, runID, rep)

	result := &RunResult{
		RunID:   runID,
		Report:  rep,
		Monthly: monthly,
		Issues:  issues,
		Elapsed: time.Since(start),
	}
	logger.InfoContext(ctx, "Report run completed",
		applog.FieldRecords, rep.Totals.TransactionCount,
		applog.FieldDuration, result.Elapsed)
	return result, nil
}

// RunToFile renders to the configured output path, or stdout when no path
// is set.
func (s *ReportService) RunToFile(ctx context.Context) (*RunResult, error) {
	if s.cfg.OutputPath == "" {
		return s.Run(ctx, os.Stdout)
	}

	f, err := os.Create(s.cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file %s: %w", s.cfg.OutputPath, err)
	}
	defer f.Close()

	result, err := s.Run(ctx, f)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Report written", applog.FieldPath, s.cfg.OutputPath)
	return result, nil
}

func (s *ReportService) reportTitle() string {
	if s.cfg.Variant == core.VariantMembership {
		return "MEMBERSHIP PAYMENT ANALYSIS REPORT"
	}
	return "PAYMENT ANALYSIS REPORT"
}

func (s *ReportService) logIssues(ctx context.Context, logger *applog.Logger, issues []ingest.Issue) {
	for _, issue := range issues {
		if issue.Severity >= ingest.SeverityError {
			logger.ErrorContext(ctx, "Data quality issue", "issue", issue.Message)
		} else {
			logger.WarnContext(ctx, "Data quality issue", "issue", issue.Message)
		}
	}
}

func (s *ReportService) checkAbort(issues []ingest.Issue) error {
	minSeverity, enabled := s.cfg.AbortSeverity()
	if !enabled {
		return nil
	}
	for _, issue := range issues {
		if issue.Severity >= minSeverity {
			return fmt.Errorf("aborting on data quality issue (%s): %s", issue.Severity, issue.Message)
		}
	}
	return nil
}

func (s *ReportService) persist(ctx context.Context, logger *applog.Logger, runID string, rep *stats.Report, monthly []aggregate.Summary) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRun(ctx, runID, rep, monthly); err != nil {
		logger.ErrorContext(ctx, "Failed to persist run", applog.FieldError, err)
		return
	}
	logger.InfoContext(ctx, "Run persisted")
}

func (s *ReportService) export(ctx context.Context, logger *applog.Logger, rep *stats.Report, monthly []aggregate.Summary) {
	if s.exporter == nil {
		return
	}
	if err := s.exporter.Export(ctx, rep, monthly); err != nil {
		logger.ErrorContext(ctx, "Failed to export report", applog.FieldError, err)
		return
	}
	logger.InfoContext(ctx, "Report exported")
}

func (s *ReportService) notify(ctx context.Context, logger *applog.Logger, runID string, rep *stats.Report) {
	if s.notifier == nil {
		logger.DebugContext(ctx, "No notifier configured, skipping run notification")
		return
	}
	msg := amqp.NewRunCompletedMessage(runID, string(rep.Variant),
		rep.Totals.TotalRevenue.String(), len(rep.Growth.Revenue))
	if err := s.notifier.PublishRunCompleted(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to publish run notification", applog.FieldError, err)
		return
	}
	logger.InfoContext(ctx, "Run notification published")
}
