package lock

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLock(t *testing.T, operation string, orgID int64) (*TransferLock, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTransferLock(db, operation, orgID), mock
}

func TestLockName(t *testing.T) {
	tests := []struct {
		operation string
		orgID     int64
		expected  string
	}{
		{"import", 42, "dataport:import:42"},
		{"round-trip", 1, "dataport:round-trip:1"},
		{"weird op!", 7, "dataport:weird_op_:7"},
		{"import", 0, "dataport:import:0"},
	}

	for _, tt := range tests {
		l := NewTransferLock(nil, tt.operation, tt.orgID)
		assert.Equal(t, tt.expected, l.LockName())
	}
}

func TestAcquireSuccess(t *testing.T) {
	l, mock := newMockLock(t, "import", 42)

	mock.ExpectQuery("SELECT GET_LOCK(?, ?)").
		WithArgs("dataport:import:42", 1).
		WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(1))

	require.NoError(t, l.Acquire(context.Background()))
	assert.True(t, l.IsHeld())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireTimeout(t *testing.T) {
	l, mock := newMockLock(t, "import", 42)

	mock.ExpectQuery("SELECT GET_LOCK(?, ?)").
		WithArgs("dataport:import:42", 1).
		WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(0))

	err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, l.IsHeld())
}

func TestAcquireNullResult(t *testing.T) {
	l, mock := newMockLock(t, "import", 42)

	mock.ExpectQuery("SELECT GET_LOCK(?, ?)").
		WithArgs("dataport:import:42", 1).
		WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(nil))

	err := l.Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockTimeout)
	assert.False(t, l.IsHeld())
}

func TestAcquireIsIdempotentWhileHeld(t *testing.T) {
	l, mock := newMockLock(t, "import", 42)

	mock.ExpectQuery("SELECT GET_LOCK(?, ?)").
		WithArgs("dataport:import:42", 1).
		WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(1))

	require.NoError(t, l.Acquire(context.Background()))
	// Second call must not issue another GET_LOCK.
	require.NoError(t, l.Acquire(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelease(t *testing.T) {
	l, mock := newMockLock(t, "round-trip", 7)

	mock.ExpectQuery("SELECT GET_LOCK(?, ?)").
		WithArgs("dataport:round-trip:7", 1).
		WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(1))
	mock.ExpectQuery("SELECT RELEASE_LOCK(?)").
		WithArgs("dataport:round-trip:7").
		WillReturnRows(sqlmock.NewRows([]string{"RELEASE_LOCK"}).AddRow(1))

	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Release(context.Background()))
	assert.False(t, l.IsHeld())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseWithoutHoldingIsNoOp(t *testing.T) {
	l, mock := newMockLock(t, "import", 42)

	assert.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireQueryError(t *testing.T) {
	l, mock := newMockLock(t, "import", 42)

	mock.ExpectQuery("SELECT GET_LOCK(?, ?)").
		WithArgs("dataport:import:42", 1).
		WillReturnError(assert.AnError)

	err := l.Acquire(context.Background())
	assert.ErrorContains(t, err, "GET_LOCK")
	assert.False(t, l.IsHeld())
}
