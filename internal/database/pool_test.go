package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// =============================================================================
// 🧪 Pool 测试
// =============================================================================

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	return mockDB, mock, gormDB
}

func testPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		MaxTxRetries: 3,
		RetryBackoff: time.Millisecond,
	}
}

func TestNewPool(t *testing.T) {
	mockDB, _, gormDB := setupTestDB(t)
	defer mockDB.Close()

	pool, err := NewPool(gormDB, testPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, gormDB, pool.DB())
	assert.Equal(t, 10, pool.Stats().MaxOpenConnections)
}

func TestNewPool_NilDB(t *testing.T) {
	_, err := NewPool(nil, testPoolConfig(), nil)
	assert.Error(t, err)
}

func TestPool_Ping(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	pool, err := NewPool(gormDB, testPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectPing()
	assert.NoError(t, pool.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.Error(t, pool.Ping(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_WithTransaction_CommitAndObserve(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	var observed []string
	pool, err := NewPool(gormDB, testPoolConfig(), zap.NewNop(), WithObserver(func(op string, _ time.Duration, err error) {
		observed = append(observed, op)
	}))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err = pool.WithTransaction(context.Background(), "apply_transaction", func(tx *gorm.DB) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"apply_transaction"}, observed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_WithTransaction_Rollback(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	pool, err := NewPool(gormDB, testPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = pool.WithTransaction(context.Background(), "op", func(tx *gorm.DB) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_WithRetry_RetriesTransientErrors(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	pool, err := NewPool(gormDB, testPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	err = pool.WithRetry(context.Background(), "op", func(tx *gorm.DB) error {
		attempts++
		if attempts == 1 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_WithRetry_StopsOnPermanentError(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	pool, err := NewPool(gormDB, testPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err = pool.WithRetry(context.Background(), "op", func(tx *gorm.DB) error {
		attempts++
		return errors.New("constraint violated")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPool_Close(t *testing.T) {
	_, mock, gormDB := setupTestDB(t)

	pool, err := NewPool(gormDB, testPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectClose()
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	assert.ErrorIs(t, pool.Ping(context.Background()), ErrPoolClosed)
	assert.ErrorIs(t, pool.WithTransaction(context.Background(), "op", func(*gorm.DB) error { return nil }), ErrPoolClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("ERROR: deadlock detected"), true},
		{errors.New("pq: could not serialize access (SQLSTATE 40001)"), true},
		{errors.New("Error 1205: Lock wait timeout exceeded"), true},
		{errors.New("database is locked"), true},
		{errors.New("record not found"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryable(tt.err), "%v", tt.err)
	}
}
