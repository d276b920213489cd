package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldVariant   = "variant"
	FieldPeriod    = "period"
	FieldPath      = "path"
	FieldRecords   = "records"
	FieldDropped   = "dropped"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

// Components defines standard pipeline stage names
const (
	ComponentApp     = "revreport"
	ComponentIngest  = "ingest"
	ComponentService = "service"
)
