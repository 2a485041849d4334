package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/sqlutil"
	"github.com/garagereg/dataport/internal/types"
)

// SQLStore implements the transfer.Store interface on a MySQL database.
// Every query is built from registry descriptors, so only registered
// tables and columns ever reach the database.
type SQLStore struct {
	db  *sql.DB
	reg *registry.Registry
}

// NewSQLStore creates a store over the given database handle.
func NewSQLStore(db *sql.DB, reg *registry.Registry) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	return &SQLStore{db: db, reg: reg}, nil
}

// FetchAll reads every row of a table, tenant-filtered when orgID is
// set, ordered by primary key for deterministic output.
func (s *SQLStore) FetchAll(ctx context.Context, table string, orgID *int64) ([]types.Row, error) {
	descriptor, err := s.lookup(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s",
		sqlutil.QuoteColumns(descriptor.FieldNames()),
		sqlutil.QuoteIdentifier(descriptor.Name))

	var args []any
	if orgID != nil && descriptor.TenantAware {
		query += fmt.Sprintf(" WHERE %s = ?", sqlutil.QuoteIdentifier(descriptor.TenantColumn))
		args = append(args, *orgID)
	}
	query += fmt.Sprintf(" ORDER BY %s", sqlutil.QuoteIdentifier(descriptor.PrimaryKey))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var result []types.Row
	for rows.Next() {
		row, err := scanRow(rows, descriptor)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}

	return result, nil
}

// FetchByID reads one row by primary key. Returns (nil, nil) when no
// row matches; absence is not an error.
func (s *SQLStore) FetchByID(ctx context.Context, table string, id any, orgID *int64) (types.Row, error) {
	descriptor, err := s.lookup(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		sqlutil.QuoteColumns(descriptor.FieldNames()),
		sqlutil.QuoteIdentifier(descriptor.Name),
		sqlutil.QuoteIdentifier(descriptor.PrimaryKey))
	args := []any{driverValue(id)}

	if orgID != nil && descriptor.TenantAware {
		query += fmt.Sprintf(" AND %s = ?", sqlutil.QuoteIdentifier(descriptor.TenantColumn))
		args = append(args, *orgID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate %s: %w", table, err)
		}
		return nil, nil
	}

	row, err := scanRow(rows, descriptor)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	return row, nil
}

// Upsert creates or updates a row by primary key using MySQL's
// INSERT ... ON DUPLICATE KEY UPDATE. Only registered columns present
// in the row are written.
func (s *SQLStore) Upsert(ctx context.Context, table string, row types.Row) error {
	descriptor, err := s.lookup(table)
	if err != nil {
		return err
	}

	var columns []string
	var values []any
	for _, field := range descriptor.Fields {
		value, ok := row[field.Name]
		if !ok {
			continue
		}
		columns = append(columns, field.Name)
		values = append(values, driverValue(value))
	}
	if len(columns) == 0 {
		return fmt.Errorf("row for table %s carries no registered columns", table)
	}

	var assignments string
	for _, column := range columns {
		if column == descriptor.PrimaryKey {
			continue
		}
		if assignments != "" {
			assignments += ","
		}
		assignments += fmt.Sprintf("%s=VALUES(%s)",
			sqlutil.QuoteIdentifier(column), sqlutil.QuoteIdentifier(column))
	}
	if assignments == "" {
		// Single-column rows cannot change anything on conflict.
		assignments = fmt.Sprintf("%s=%s",
			sqlutil.QuoteIdentifier(descriptor.PrimaryKey),
			sqlutil.QuoteIdentifier(descriptor.PrimaryKey))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		sqlutil.QuoteIdentifier(descriptor.Name),
		sqlutil.QuoteColumns(columns),
		sqlutil.Placeholders(len(columns)),
		assignments)

	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

// DeleteAll removes every row of a table, tenant-filtered when orgID is
// set, and returns the number of deleted rows.
func (s *SQLStore) DeleteAll(ctx context.Context, table string, orgID *int64) (int64, error) {
	descriptor, err := s.lookup(table)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s", sqlutil.QuoteIdentifier(descriptor.Name))
	var args []any
	if orgID != nil && descriptor.TenantAware {
		query += fmt.Sprintf(" WHERE %s = ?", sqlutil.QuoteIdentifier(descriptor.TenantColumn))
		args = append(args, *orgID)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return deleted, nil
}

func (s *SQLStore) lookup(table string) (*registry.Table, error) {
	descriptor, ok := s.reg.Lookup(table)
	if !ok {
		return nil, fmt.Errorf("table %q is not registered", table)
	}
	return descriptor, nil
}

// driverValue converts parsed payload values into types the MySQL
// driver accepts. JSON documents are re-encoded to their compact form.
func driverValue(v any) any {
	switch value := v.(type) {
	case json.Number:
		return value.String()
	case map[string]any, []any:
		b, err := json.Marshal(value)
		if err != nil {
			return nil
		}
		return b
	default:
		return v
	}
}
