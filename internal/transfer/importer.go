package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/garagereg/dataport/internal/depgraph"
	"github.com/garagereg/dataport/internal/logger"
	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

// ImportOptions controls one import invocation.
type ImportOptions struct {
	Format   Format
	Strategy Strategy
	OrgID    *int64 // scopes lookups and enforces the tenant invariant
	DryRun   bool   // resolve everything, write nothing
}

// Importer orchestrates validation, per-record conflict resolution, and
// persistence. Conflicts are data, not exceptions: a record-level
// mismatch never aborts the batch, even under the ERROR strategy, which
// marks the record errored and continues.
type Importer struct {
	store     Store
	reg       *registry.Registry
	validator *Validator
	logger    *logger.Logger
}

// NewImporter creates an importer. A nil logger falls back to the default.
func NewImporter(store Store, reg *registry.Registry, log *logger.Logger) (*Importer, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	validator, err := NewValidator(reg)
	if err != nil {
		return nil, err
	}
	return &Importer{
		store:     store,
		reg:       reg,
		validator: validator,
		logger:    log,
	}, nil
}

// Import parses and validates the payload, then walks every record in
// parent-first table order: look up the existing row, resolve the
// conflict, and persist the outcome unless running dry. Structural
// issues short-circuit with success=false and nothing written. Only
// unsupported formats and storage failures surface as hard errors.
func (i *Importer) Import(ctx context.Context, payload []byte, opts ImportOptions) (*ImportResult, error) {
	start := time.Now()

	result := &ImportResult{DryRun: opts.DryRun}

	meta, ds, issues, err := i.validator.Parse(payload, opts.Format)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		result.Issues = issues
		result.ProcessingTime = time.Since(start)
		return result, nil
	}

	log := i.logger.WithFormat(string(opts.Format))
	if meta != nil {
		log = log.WithExport(meta.ExportID)
	}
	log.Infow("Starting import",
		"strategy", opts.Strategy,
		"tables", len(ds),
		"records", ds.TotalRecords(),
		"dry_run", opts.DryRun,
	)

	order, err := i.tableOrder(ds)
	if err != nil {
		return nil, err
	}

	for _, table := range order {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("import interrupted: %w", err)
		}
		if err := i.importTable(ctx, table, ds[table], opts, result); err != nil {
			return result, err
		}
	}

	result.Success = result.ErrorRecords == 0
	result.ProcessingTime = time.Since(start)

	log.Infow("Import complete",
		"total", result.TotalRecords,
		"imported", result.ImportedRecords,
		"skipped", result.SkippedRecords,
		"errors", result.ErrorRecords,
		"conflicts", len(result.Conflicts),
		"duration", result.ProcessingTime,
	)

	return result, nil
}

func (i *Importer) importTable(ctx context.Context, table string, rows []types.Row, opts ImportOptions, result *ImportResult) error {
	descriptor, _ := i.reg.Lookup(table)

	for _, incoming := range rows {
		result.TotalRecords++

		id := incoming[descriptor.PrimaryKey]

		if conflict := i.checkTenant(descriptor, incoming, opts.OrgID); conflict != nil {
			result.ErrorRecords++
			result.Conflicts = append(result.Conflicts, *conflict)
			continue
		}

		existing, err := i.store.FetchByID(ctx, table, id, opts.OrgID)
		if err != nil {
			return &DataAccessError{Op: "lookup", Table: table, Err: err}
		}

		final, conflict := Resolve(existing, incoming, descriptor, opts.Strategy)
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
		}

		switch {
		case conflict != nil && conflict.Resolution == ResolutionError:
			result.ErrorRecords++
			continue
		case conflict != nil && conflict.Resolution == ResolutionSkip:
			result.SkippedRecords++
			continue
		case conflict != nil && conflict.Resolution == ResolutionMerge && RowsEqual(final, existing):
			// Timestamp gate rejected the incoming record.
			result.SkippedRecords++
			continue
		}

		if !opts.DryRun {
			if err := i.store.Upsert(ctx, table, final); err != nil {
				return &DataAccessError{Op: "upsert", Table: table, Err: err}
			}
		}
		result.ImportedRecords++
	}

	return nil
}

// checkTenant enforces the dataset tenant invariant: under a tenant
// filter, every tenant-aware row must belong to that tenant.
func (i *Importer) checkTenant(descriptor *registry.Table, row types.Row, orgID *int64) *ImportConflict {
	if orgID == nil || !descriptor.TenantAware {
		return nil
	}
	tenant := types.ToInt64(row[descriptor.TenantColumn])
	if tenant == *orgID {
		return nil
	}
	return &ImportConflict{
		Table:      descriptor.Name,
		RecordID:   types.PKString(row[descriptor.PrimaryKey]),
		Type:       ConflictTenantMismatch,
		Message:    fmt.Sprintf("record belongs to organization %d, import is scoped to %d", tenant, *orgID),
		Resolution: ResolutionError,
	}
}

// tableOrder sorts the dataset's tables parent-first so foreign keys
// resolve during writes.
func (i *Importer) tableOrder(ds types.Dataset) ([]string, error) {
	var tables []string
	for _, name := range ds.TableNames() {
		tables = append(tables, name)
	}

	g, err := depgraph.FromRegistry(i.reg, tables)
	if err != nil {
		return nil, fmt.Errorf("order tables: %w", err)
	}
	return g.ImportOrder()
}
