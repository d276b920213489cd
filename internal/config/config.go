package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"revreport/internal/core"
	"revreport/internal/ingest"
)

type Config struct {
	// Pipeline
	DataDir    string
	Variant    core.Variant
	Periods    []string
	NextPeriod string
	Currency   string
	OutputPath string

	// AbortOn decides which data-quality severity aborts the run:
	// "never", "error" or "warning".
	AbortOn string

	// Run warehouse (optional)
	SQLiteDBPath string

	// AMQP notification (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Spreadsheet export (optional)
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

func Load() *Config {
	return &Config{
		DataDir:    getEnv("DATA_DIR", "./data"),
		Variant:    core.Variant(getEnv("REPORT_VARIANT", string(core.VariantTotal))),
		Periods:    splitList(getEnv("REPORT_PERIODS", "May,June,July")),
		NextPeriod: getEnv("REPORT_NEXT_PERIOD", "August"),
		Currency:   getEnv("REPORT_CURRENCY", "S/"),
		OutputPath: getEnv("REPORT_OUTPUT", ""),

		AbortOn: getEnv("ABORT_ON_ISSUES", "error"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "revreport"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "report_runs"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Report"),
	}
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if err := c.Variant.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid report variant '%s': must be '%s' or '%s'",
			c.Variant, core.VariantMembership, core.VariantTotal))
	}

	if c.DataDir == "" {
		errors = append(errors, "data directory cannot be empty")
	}

	if len(c.Periods) == 0 {
		errors = append(errors, "at least one reporting period is required")
	}
	seen := map[string]struct{}{}
	for _, p := range c.Periods {
		key := strings.ToLower(p)
		if _, dup := seen[key]; dup {
			errors = append(errors, fmt.Sprintf("duplicate period '%s'", p))
		}
		seen[key] = struct{}{}
	}

	switch c.AbortOn {
	case "never", "error", "warning":
	default:
		errors = append(errors, fmt.Sprintf("invalid abort policy '%s': must be 'never', 'error' or 'warning'", c.AbortOn))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleSheetName == "" {
		errors = append(errors, "Google sheet name cannot be empty when a spreadsheet id is provided")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// AbortSeverity maps the configured policy to the minimum severity that
// aborts the run. The second value is false for the "never" policy.
func (c *Config) AbortSeverity() (ingest.Severity, bool) {
	switch c.AbortOn {
	case "warning":
		return ingest.SeverityWarning, true
	case "error":
		return ingest.SeverityError, true
	}
	return 0, false
}

// PeriodSequence builds the ordered period set from the configured labels.
func (c *Config) PeriodSequence() []core.Period {
	return core.NewPeriods(c.Periods)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
