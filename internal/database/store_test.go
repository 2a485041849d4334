package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagereg/dataport/internal/registry"
	"github.com/garagereg/dataport/internal/types"
)

// ============================================================================
// Test Helpers
// ============================================================================

// storeTestRegistry registers a single table covering every field kind
// so the scan normalization paths are all reachable.
func storeTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	err := r.Register(&registry.Table{
		Name:         "widgets",
		PrimaryKey:   "id",
		TenantAware:  true,
		TenantColumn: "organization_id",
		Fields: []registry.Field{
			{Name: "id", Kind: registry.KindInt, Required: true},
			{Name: "organization_id", Kind: registry.KindInt, Required: true},
			{Name: "name", Kind: registry.KindString, Required: true},
			{Name: "enabled", Kind: registry.KindBool},
			{Name: "ratio", Kind: registry.KindFloat},
			{Name: "settings", Kind: registry.KindJSON},
			{Name: "seen_at", Kind: registry.KindTime},
		},
	})
	require.NoError(t, err)
	return r
}

func newTestStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(db, storeTestRegistry(t))
	require.NoError(t, err)
	return store, mock
}

const widgetColumns = "`id`,`organization_id`,`name`,`enabled`,`ratio`,`settings`,`seen_at`"

func widgetRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "organization_id", "name", "enabled", "ratio", "settings", "seen_at"})
}

// ============================================================================
// Constructor
// ============================================================================

func TestNewSQLStoreRejectsNilArguments(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLStore(nil, storeTestRegistry(t))
	assert.Error(t, err)

	_, err = NewSQLStore(db, nil)
	assert.Error(t, err)
}

// ============================================================================
// FetchAll
// ============================================================================

func TestFetchAllQueriesAllTenants(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT " + widgetColumns + " FROM `widgets` ORDER BY `id`").
		WillReturnRows(widgetRows().
			AddRow(int64(1), int64(1), []byte("alpha"), int64(1), 2.5, []byte(`{"depth":3}`), time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)).
			AddRow(int64(2), int64(2), []byte("beta"), int64(0), nil, nil, nil))

	rows, err := store.FetchAll(context.Background(), "widgets", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "alpha", rows[0]["name"])
	assert.Equal(t, true, rows[0]["enabled"])
	assert.Equal(t, 2.5, rows[0]["ratio"])
	assert.Equal(t, map[string]any{"depth": json.Number("3")}, rows[0]["settings"])
	assert.Equal(t, "2026-05-01T12:00:00Z", rows[0]["seen_at"])

	assert.Equal(t, false, rows[1]["enabled"])
	assert.Nil(t, rows[1]["ratio"])
	assert.Nil(t, rows[1]["settings"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchAllFiltersByTenant(t *testing.T) {
	store, mock := newTestStore(t)
	org := int64(7)

	mock.ExpectQuery("SELECT "+widgetColumns+" FROM `widgets` WHERE `organization_id` = ? ORDER BY `id`").
		WithArgs(org).
		WillReturnRows(widgetRows().
			AddRow(int64(3), org, []byte("gamma"), nil, nil, nil, nil))

	rows, err := store.FetchAll(context.Background(), "widgets", &org)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(7), rows[0]["organization_id"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchAllUnknownTable(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.FetchAll(context.Background(), "nope", nil)
	assert.ErrorContains(t, err, "not registered")
}

// ============================================================================
// FetchByID
// ============================================================================

func TestFetchByIDFound(t *testing.T) {
	store, mock := newTestStore(t)
	org := int64(1)

	mock.ExpectQuery("SELECT "+widgetColumns+" FROM `widgets` WHERE `id` = ? AND `organization_id` = ?").
		WithArgs(int64(42), org).
		WillReturnRows(widgetRows().
			AddRow(int64(42), org, []byte("alpha"), int64(1), nil, nil, nil))

	row, err := store.FetchByID(context.Background(), "widgets", int64(42), &org)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(42), row["id"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchByIDAbsentIsNotAnError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT " + widgetColumns + " FROM `widgets` WHERE `id` = ?").
		WithArgs(int64(99)).
		WillReturnRows(widgetRows())

	row, err := store.FetchByID(context.Background(), "widgets", int64(99), nil)
	require.NoError(t, err)
	assert.Nil(t, row)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchByIDConvertsJSONNumberKeys(t *testing.T) {
	store, mock := newTestStore(t)

	// Payload-sourced keys arrive as json.Number and must bind as text.
	mock.ExpectQuery("SELECT " + widgetColumns + " FROM `widgets` WHERE `id` = ?").
		WithArgs("42").
		WillReturnRows(widgetRows())

	_, err := store.FetchByID(context.Background(), "widgets", json.Number("42"), nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// Upsert
// ============================================================================

func TestUpsertBuildsOnDuplicateKeyUpdate(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO `widgets` (`id`,`name`) VALUES (?,?) ON DUPLICATE KEY UPDATE `name`=VALUES(`name`)").
		WithArgs(int64(1), "alpha").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Upsert(context.Background(), "widgets", types.Row{
		"id":   int64(1),
		"name": "alpha",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEncodesJSONDocuments(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO `widgets` (`id`,`settings`) VALUES (?,?) ON DUPLICATE KEY UPDATE `settings`=VALUES(`settings`)").
		WithArgs("7", []byte(`{"auto_close":true}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Upsert(context.Background(), "widgets", types.Row{
		"id":       json.Number("7"),
		"settings": map[string]any{"auto_close": true},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertIgnoresUnregisteredColumns(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO `widgets` (`id`,`name`) VALUES (?,?) ON DUPLICATE KEY UPDATE `name`=VALUES(`name`)").
		WithArgs(int64(1), "alpha").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Upsert(context.Background(), "widgets", types.Row{
		"id":        int64(1),
		"name":      "alpha",
		"injection": "DROP TABLE widgets",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRejectsRowWithoutRegisteredColumns(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Upsert(context.Background(), "widgets", types.Row{"bogus": 1})
	assert.ErrorContains(t, err, "no registered columns")
}

// ============================================================================
// DeleteAll
// ============================================================================

func TestDeleteAllScopedToTenant(t *testing.T) {
	store, mock := newTestStore(t)
	org := int64(3)

	mock.ExpectExec("DELETE FROM `widgets` WHERE `organization_id` = ?").
		WithArgs(org).
		WillReturnResult(sqlmock.NewResult(0, 5))

	deleted, err := store.DeleteAll(context.Background(), "widgets", &org)
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAllWithoutTenantDeletesEverything(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("DELETE FROM `widgets`").
		WillReturnResult(sqlmock.NewResult(0, 12))

	deleted, err := store.DeleteAll(context.Background(), "widgets", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// Scan normalization
// ============================================================================

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		kind     registry.FieldKind
		expected any
	}{
		{"nil passes through", nil, registry.KindString, nil},
		{"tinyint one is true", int64(1), registry.KindBool, true},
		{"tinyint zero is false", int64(0), registry.KindBool, false},
		{"textual bool", []byte("1"), registry.KindBool, true},
		{"int from bytes", []byte("42"), registry.KindInt, int64(42)},
		{"float from bytes", []byte("2.5"), registry.KindFloat, 2.5},
		{"float from int", int64(3), registry.KindFloat, 3.0},
		{"time to utc rfc3339", time.Date(2026, 5, 1, 14, 30, 0, 0, time.FixedZone("CEST", 2*3600)), registry.KindTime, "2026-05-01T12:30:00Z"},
		{"string from bytes", []byte("hello"), registry.KindString, "hello"},
		{"json document decoded", []byte(`{"n":1}`), registry.KindJSON, map[string]any{"n": json.Number("1")}},
		{"invalid json kept as text", []byte("not json"), registry.KindJSON, "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeValue(tt.value, tt.kind))
		})
	}
}
