// Package transfer implements the GarageReg data export/import core:
// serialization, validation, conflict resolution, dataset comparison,
// and round-trip verification.
package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/garagereg/dataport/internal/types"
)

// Format identifies a payload serialization format.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

// ErrUnsupportedFormat is returned when a format string is not one of
// jsonl, json, or csv.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseFormat converts a format string into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSONL, FormatJSON, FormatCSV:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w: %q (expected jsonl, json, or csv)", ErrUnsupportedFormat, s)
	}
}

// Strategy is the conflict-resolution policy applied uniformly to every
// conflict within one import invocation.
type Strategy string

const (
	StrategySkip      Strategy = "skip"
	StrategyOverwrite Strategy = "overwrite"
	StrategyMerge     Strategy = "merge"
	StrategyError     Strategy = "error"
)

// ErrUnknownStrategy is returned when a strategy string is not one of
// skip, overwrite, merge, or error.
var ErrUnknownStrategy = errors.New("unknown import strategy")

// ParseStrategy converts a strategy string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategySkip, StrategyOverwrite, StrategyMerge, StrategyError:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q (expected skip, overwrite, merge, or error)", ErrUnknownStrategy, s)
	}
}

// UnknownTableError is returned when an explicitly requested table name
// is not present in the registry.
type UnknownTableError struct {
	Name string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %q", e.Name)
}

// DataAccessError wraps a storage failure so callers can distinguish
// database trouble from payload trouble.
type DataAccessError struct {
	Op    string
	Table string
	Err   error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access failed (%s %s): %v", e.Op, e.Table, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// Store is the data-access interface the transfer core consumes. A nil
// row with a nil error from FetchByID means "not found"; absence is not
// an error condition.
type Store interface {
	FetchAll(ctx context.Context, table string, orgID *int64) ([]types.Row, error)
	FetchByID(ctx context.Context, table string, id any, orgID *int64) (types.Row, error)
	Upsert(ctx context.Context, table string, row types.Row) error
	DeleteAll(ctx context.Context, table string, orgID *int64) (int64, error)
}
