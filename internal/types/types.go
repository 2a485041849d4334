// Package types contains shared data types used across multiple packages to avoid import cycles.
package types

import "sort"

// Row is one persisted record: a mapping from column name to value.
// Values are nil, bool, int64, float64, string, json.Number, or decoded
// JSON structures (map[string]any / []any) for JSON columns.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Dataset maps table names to their row snapshots. Within one table no
// two rows share a primary key.
type Dataset map[string][]Row

// TableNames returns the dataset's table names in sorted order.
func (d Dataset) TableNames() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalRecords returns the number of rows across all tables.
func (d Dataset) TotalRecords() int {
	total := 0
	for _, rows := range d {
		total += len(rows)
	}
	return total
}
