package transfer

import (
	"context"
	"fmt"
	"sync"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

// fakeStore is an in-memory Store for exercising the transfer core
// without a database.
type fakeStore struct {
	mu     sync.Mutex
	reg    *registry.Registry
	tables map[string]map[string]types.Row

	// failOp makes the named operation return an error.
	failOp string

	upserts int
	deletes int
}

func newFakeStore(reg *registry.Registry) *fakeStore {
	return &fakeStore{
		reg:    reg,
		tables: make(map[string]map[string]types.Row),
	}
}

func (f *fakeStore) seed(table string, rows ...types.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()

	descriptor, ok := f.reg.Lookup(table)
	if !ok {
		panic("seed: unknown table " + table)
	}
	if f.tables[table] == nil {
		f.tables[table] = make(map[string]types.Row)
	}
	for _, row := range rows {
		f.tables[table][types.PKString(row[descriptor.PrimaryKey])] = row.Clone()
	}
}

func (f *fakeStore) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

func (f *fakeStore) get(table, id string) types.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.tables[table][id]
	if !ok {
		return nil
	}
	return row.Clone()
}

func (f *fakeStore) matchesTenant(table string, row types.Row, orgID *int64) bool {
	if orgID == nil {
		return true
	}
	descriptor, _ := f.reg.Lookup(table)
	if descriptor == nil || !descriptor.TenantAware {
		return true
	}
	return types.ToInt64(row[descriptor.TenantColumn]) == *orgID
}

func (f *fakeStore) FetchAll(ctx context.Context, table string, orgID *int64) ([]types.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failOp == "fetchall" {
		return nil, fmt.Errorf("fetchall forced failure")
	}

	var rows []types.Row
	for _, row := range f.tables[table] {
		if f.matchesTenant(table, row, orgID) {
			rows = append(rows, row.Clone())
		}
	}
	sortRowsByPK(rows, primaryKeyColumn(f.reg, table))
	return rows, nil
}

func (f *fakeStore) FetchByID(ctx context.Context, table string, id any, orgID *int64) (types.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failOp == "fetchbyid" {
		return nil, fmt.Errorf("fetchbyid forced failure")
	}

	row, ok := f.tables[table][types.PKString(id)]
	if !ok || !f.matchesTenant(table, row, orgID) {
		return nil, nil
	}
	return row.Clone(), nil
}

func (f *fakeStore) Upsert(ctx context.Context, table string, row types.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failOp == "upsert" {
		return fmt.Errorf("upsert forced failure")
	}

	descriptor, ok := f.reg.Lookup(table)
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	if f.tables[table] == nil {
		f.tables[table] = make(map[string]types.Row)
	}
	f.tables[table][types.PKString(row[descriptor.PrimaryKey])] = row.Clone()
	f.upserts++
	return nil
}

func (f *fakeStore) DeleteAll(ctx context.Context, table string, orgID *int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failOp == "delete" {
		return 0, fmt.Errorf("delete forced failure")
	}

	var deleted int64
	for id, row := range f.tables[table] {
		if f.matchesTenant(table, row, orgID) {
			delete(f.tables[table], id)
			deleted++
		}
	}
	f.deletes++
	return deleted, nil
}
