package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/garagereg/dataport/internal/depgraph"
	"github.com/garagereg/dataport/internal/logger"
	"github.com/garagereg/dataport/internal/registry"
)

// RoundTripOptions controls one round-trip verification.
type RoundTripOptions struct {
	OrgID  int64
	Tables []string // nil verifies every registered table
	Format Format
	Actor  string
	// ActualDelete deletes the tenant's rows between export and import.
	// Callers must gate this behind explicit confirmation; without it
	// the deletion is simulated and the import runs dry.
	ActualDelete bool
}

// RoundTripVerifier certifies that an export/delete/import cycle is
// lossless: the re-imported state must match the original dataset under
// comparison, the import must succeed, and both export checksums must
// agree. The three signals are deliberately redundant.
type RoundTripVerifier struct {
	store      Store
	reg        *registry.Registry
	exporter   *Exporter
	importer   *Importer
	comparator *Comparator
	logger     *logger.Logger
}

// NewRoundTripVerifier creates a round-trip verifier from the shared
// store and registry.
func NewRoundTripVerifier(store Store, reg *registry.Registry, toolVersion string, log *logger.Logger) (*RoundTripVerifier, error) {
	if log == nil {
		log = logger.NewDefault()
	}
	exporter, err := NewExporter(store, reg, toolVersion, log)
	if err != nil {
		return nil, err
	}
	importer, err := NewImporter(store, reg, log)
	if err != nil {
		return nil, err
	}
	comparator, err := NewComparator(reg)
	if err != nil {
		return nil, err
	}
	return &RoundTripVerifier{
		store:      store,
		reg:        reg,
		exporter:   exporter,
		importer:   importer,
		comparator: comparator,
		logger:     log,
	}, nil
}

// Verify runs the full cycle and returns the report. The report's
// TestPassed flag is the verdict; err is reserved for format and
// storage failures.
func (v *RoundTripVerifier) Verify(ctx context.Context, opts RoundTripOptions) (*RoundTripReport, error) {
	start := time.Now()
	format := opts.Format
	if format == "" {
		format = FormatJSONL
	}

	log := v.logger.WithTenant(opts.OrgID)
	log.Infow("Starting round-trip verification",
		"format", format,
		"destructive", opts.ActualDelete,
	)

	report := &RoundTripReport{
		OrgID:       opts.OrgID,
		Tables:      opts.Tables,
		Destructive: opts.ActualDelete,
	}

	exportOpts := ExportOptions{
		Format: format,
		OrgID:  &opts.OrgID,
		Tables: opts.Tables,
		Actor:  opts.Actor,
	}

	originalPayload, originalMeta, err := v.exporter.Export(ctx, exportOpts)
	if err != nil {
		return nil, fmt.Errorf("initial export: %w", err)
	}
	report.OriginalMetadata = originalMeta

	if opts.ActualDelete {
		deleted, err := v.deleteTenantData(ctx, opts.OrgID, opts.Tables)
		if err != nil {
			return report, err
		}
		report.DeletedRecords = deleted
		log.Warnw("Deleted tenant data for round-trip test", "records", deleted)
	}

	importResult, err := v.importer.Import(ctx, originalPayload, ImportOptions{
		Format:   format,
		Strategy: StrategyOverwrite,
		OrgID:    &opts.OrgID,
		DryRun:   !opts.ActualDelete,
	})
	if err != nil {
		return report, fmt.Errorf("re-import: %w", err)
	}
	report.ImportResult = importResult

	reimportedPayload, reimportedMeta, err := v.exporter.Export(ctx, exportOpts)
	if err != nil {
		return report, fmt.Errorf("second export: %w", err)
	}
	report.ReimportedMetadata = reimportedMeta

	serializer, err := NewSerializer(format, v.reg)
	if err != nil {
		return report, err
	}
	_, originalDS, err := serializer.Unmarshal(originalPayload)
	if err != nil {
		return report, fmt.Errorf("parse original payload: %w", err)
	}
	_, reimportedDS, err := serializer.Unmarshal(reimportedPayload)
	if err != nil {
		return report, fmt.Errorf("parse re-exported payload: %w", err)
	}

	report.Comparison = v.comparator.Compare(originalDS, reimportedDS)
	report.ChecksumsMatch = originalMeta.Checksum == reimportedMeta.Checksum
	report.TestPassed = report.Comparison.InSync() &&
		importResult.Success &&
		report.ChecksumsMatch
	report.Duration = time.Since(start)

	log.Infow("Round-trip verification finished",
		"passed", report.TestPassed,
		"checksums_match", report.ChecksumsMatch,
		"differences", report.Comparison.TotalAdditions+report.Comparison.TotalModifications+report.Comparison.TotalDeletions,
		"duration", report.Duration,
	)

	return report, nil
}

// deleteTenantData removes the tenant's rows child-first so foreign
// keys do not block the deletes.
func (v *RoundTripVerifier) deleteTenantData(ctx context.Context, orgID int64, tables []string) (int64, error) {
	g, err := depgraph.FromRegistry(v.reg, tables)
	if err != nil {
		return 0, err
	}
	order, err := g.DeleteOrder()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, table := range order {
		deleted, err := v.store.DeleteAll(ctx, table, &orgID)
		if err != nil {
			return total, &DataAccessError{Op: "delete", Table: table, Err: err}
		}
		total += deleted
	}
	return total, nil
}
