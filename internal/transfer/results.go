package transfer

import "time"

// Metadata is the envelope attached to every export. It is embedded in
// the serialized payload as the first unit and is immutable once written.
type Metadata struct {
	ExportID    string    `json:"export_id"`
	ExportedAt  time.Time `json:"exported_at"`
	Format      Format    `json:"format"`
	RecordCount int       `json:"record_count"`
	TableCount  int       `json:"table_count"`
	OrgID       *int64    `json:"org_id"`
	ExportedBy  string    `json:"exported_by"`
	ToolVersion string    `json:"tool_version"`
	Checksum    string    `json:"checksum"`
}

// Validation issue codes.
const (
	IssueParseError      = "parse_error"
	IssueMissingMetadata = "missing_metadata"
	IssueUnknownTable    = "unknown_table"
	IssueMissingTableTag = "missing_table_tag"
	IssueMissingKey      = "missing_primary_key"
	IssueDuplicateKey    = "duplicate_primary_key"
	IssueMissingField    = "missing_required_field"
)

// ValidationIssue describes one structural problem found in an import
// payload. Issues are data, not errors; callers decide whether to proceed.
type ValidationIssue struct {
	Code     string `json:"code"`
	Table    string `json:"table,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// ConflictType tags the kind of mismatch behind an import conflict.
type ConflictType string

const (
	ConflictFieldMismatch   ConflictType = "field_mismatch"
	ConflictUniqueViolation ConflictType = "unique_violation"
	ConflictTenantMismatch  ConflictType = "tenant_mismatch"
)

// Resolution records which policy outcome was applied to a conflict.
type Resolution string

const (
	ResolutionSkip      Resolution = "skip"
	ResolutionOverwrite Resolution = "overwrite"
	ResolutionMerge     Resolution = "merge"
	ResolutionError     Resolution = "error"
)

// ImportConflict is produced when an incoming row's primary key matches
// an existing row whose field values differ.
type ImportConflict struct {
	Table      string       `json:"table"`
	RecordID   string       `json:"record_id"`
	Type       ConflictType `json:"type"`
	Fields     []string     `json:"fields,omitempty"`
	Message    string       `json:"message"`
	Resolution Resolution   `json:"resolution"`
}

// ImportResult aggregates the outcome of one import invocation.
type ImportResult struct {
	Success         bool              `json:"success"`
	DryRun          bool              `json:"dry_run"`
	TotalRecords    int               `json:"total_records"`
	ImportedRecords int               `json:"imported_records"`
	SkippedRecords  int               `json:"skipped_records"`
	ErrorRecords    int               `json:"error_records"`
	Conflicts       []ImportConflict  `json:"conflicts,omitempty"`
	Issues          []ValidationIssue `json:"issues,omitempty"`
	ProcessingTime  time.Duration     `json:"processing_time"`
}

// TableDiff holds per-table primary key differences between two datasets.
type TableDiff struct {
	Additions     []string `json:"additions"`
	Modifications []string `json:"modifications"`
	Deletions     []string `json:"deletions"`
}

// Empty reports whether the diff shows no differences.
func (d TableDiff) Empty() bool {
	return len(d.Additions) == 0 && len(d.Modifications) == 0 && len(d.Deletions) == 0
}

// ComparisonResult aggregates per-table diffs plus grand totals.
type ComparisonResult struct {
	Tables             map[string]TableDiff `json:"tables"`
	TablesCompared     int                  `json:"tables_compared"`
	TotalAdditions     int                  `json:"total_additions"`
	TotalModifications int                  `json:"total_modifications"`
	TotalDeletions     int                  `json:"total_deletions"`
}

// InSync reports whether the two datasets were identical.
func (c *ComparisonResult) InSync() bool {
	return c.TotalAdditions == 0 && c.TotalModifications == 0 && c.TotalDeletions == 0
}

// RoundTripReport is the verdict of one export/delete/import/export cycle.
type RoundTripReport struct {
	OrgID              int64             `json:"org_id"`
	Tables             []string          `json:"tables"`
	Destructive        bool              `json:"destructive"`
	DeletedRecords     int64             `json:"deleted_records"`
	OriginalMetadata   *Metadata         `json:"original_metadata"`
	ReimportedMetadata *Metadata         `json:"reimported_metadata"`
	ImportResult       *ImportResult     `json:"import_result"`
	Comparison         *ComparisonResult `json:"comparison"`
	ChecksumsMatch     bool              `json:"checksums_match"`
	TestPassed         bool              `json:"test_passed"`
	Duration           time.Duration     `json:"duration"`
}
