package transfer

import (
	"fmt"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

// Comparator computes per-table differences between two datasets by
// primary-key set difference and strict field-by-field equality.
type Comparator struct {
	reg *registry.Registry
}

// NewComparator creates a comparator.
func NewComparator(reg *registry.Registry) (*Comparator, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	return &Comparator{reg: reg}, nil
}

// Compare diffs dataset b against dataset a: additions are keys only in
// b, deletions are keys only in a, modifications are keys in both whose
// rows differ in any field. Callers wanting to ignore volatile fields
// must strip them before comparing.
func (c *Comparator) Compare(a, b types.Dataset) *ComparisonResult {
	result := &ComparisonResult{
		Tables: make(map[string]TableDiff),
	}

	for _, table := range unionTables(a, b) {
		pk := primaryKeyColumn(c.reg, table)
		rowsA := indexByPK(a[table], pk)
		rowsB := indexByPK(b[table], pk)

		var diff TableDiff
		for id, rowB := range rowsB {
			rowA, ok := rowsA[id]
			if !ok {
				diff.Additions = append(diff.Additions, id)
			} else if !RowsEqual(rowA, rowB) {
				diff.Modifications = append(diff.Modifications, id)
			}
		}
		for id := range rowsA {
			if _, ok := rowsB[id]; !ok {
				diff.Deletions = append(diff.Deletions, id)
			}
		}

		sortPKStrings(diff.Additions)
		sortPKStrings(diff.Modifications)
		sortPKStrings(diff.Deletions)

		result.Tables[table] = diff
		result.TablesCompared++
		result.TotalAdditions += len(diff.Additions)
		result.TotalModifications += len(diff.Modifications)
		result.TotalDeletions += len(diff.Deletions)
	}

	return result
}

func unionTables(a, b types.Dataset) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var tables []string
	for _, name := range a.TableNames() {
		seen[name] = true
		tables = append(tables, name)
	}
	for _, name := range b.TableNames() {
		if !seen[name] {
			tables = append(tables, name)
		}
	}
	return tables
}

func indexByPK(rows []types.Row, pk string) map[string]types.Row {
	index := make(map[string]types.Row, len(rows))
	for _, row := range rows {
		index[types.PKString(row[pk])] = row
	}
	return index
}
