package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
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
// 🧪 PoolManager 测试
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
	return PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}
}

func noBackoff(t *testing.T) {
	t.Helper()
	orig := retryBackoff
	retryBackoff = func(int) time.Duration { return 0 }
	t.Cleanup(func() { retryBackoff = orig })
}

// statsRecorder 线程安全地收集观察者收到的快照
type statsRecorder struct {
	mu  sync.Mutex
	got []PoolStats
}

func (r *statsRecorder) observe(s PoolStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, s)
}

func (r *statsRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestNewPoolManager(t *testing.T) {
	mockDB, _, gormDB := setupTestDB(t)
	defer mockDB.Close()

	manager, err := NewPoolManager(gormDB, testPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, gormDB, manager.DB())
	assert.Equal(t, 10, manager.Stats().MaxOpen)
}

func TestNewPoolManager_Rejects(t *testing.T) {
	_, err := NewPoolManager(nil, testPoolConfig(), zap.NewNop())
	assert.Error(t, err)

	mockDB, _, gormDB := setupTestDB(t)
	defer mockDB.Close()
	_, err = NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 2, MaxIdleConns: 5}, zap.NewNop())
	assert.ErrorContains(t, err, "invalid pool config")
}

func TestPoolManager_Ping(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	manager, err := NewPoolManager(gormDB, testPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectPing()
	assert.NoError(t, manager.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.Error(t, manager.Ping(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_StatsObserver(t *testing.T) {
	_, mock, gormDB := setupTestDB(t)

	config := testPoolConfig()
	config.SampleInterval = 10 * time.Millisecond

	rec := &statsRecorder{}
	mock.ExpectPing()
	manager, err := NewPoolManager(gormDB, config, zap.NewNop(), WithStatsObserver(rec.observe))
	require.NoError(t, err)

	// 创建时立即上报一次，第一次 ping 成功后再上报一次
	assert.Eventually(t, func() bool { return rec.count() >= 2 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, mock.ExpectationsWereMet())

	rec.mu.Lock()
	first := rec.got[0]
	rec.mu.Unlock()
	assert.Equal(t, 10, first.MaxOpen)

	// 之后的 ping 不在预期内会失败，失败的采样不上报
	seen := rec.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, seen, rec.count())

	mock.ExpectClose()
	require.NoError(t, manager.Close())
}

func TestPoolManager_Transact(t *testing.T) {
	noBackoff(t)

	t.Run("commit", func(t *testing.T) {
		mockDB, mock, gormDB := setupTestDB(t)
		defer mockDB.Close()
		manager, err := NewPoolManager(gormDB, testPoolConfig(), zap.NewNop())
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectCommit()
		assert.NoError(t, manager.Transact(context.Background(), 3, func(*gorm.DB) error { return nil }))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retries transient failure", func(t *testing.T) {
		mockDB, mock, gormDB := setupTestDB(t)
		defer mockDB.Close()
		manager, err := NewPoolManager(gormDB, testPoolConfig(), zap.NewNop())
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectRollback()
		mock.ExpectBegin()
		mock.ExpectCommit()

		attempts := 0
		err = manager.Transact(context.Background(), 3, func(*gorm.DB) error {
			attempts++
			if attempts == 1 {
				return errors.New("ERROR: deadlock detected")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, attempts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("permanent failure is not retried", func(t *testing.T) {
		mockDB, mock, gormDB := setupTestDB(t)
		defer mockDB.Close()
		manager, err := NewPoolManager(gormDB, testPoolConfig(), zap.NewNop())
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectRollback()

		attempts := 0
		err = manager.Transact(context.Background(), 3, func(*gorm.DB) error {
			attempts++
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 1, attempts)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		mockDB, mock, gormDB := setupTestDB(t)
		defer mockDB.Close()
		manager, err := NewPoolManager(gormDB, testPoolConfig(), zap.NewNop())
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			mock.ExpectBegin()
			mock.ExpectRollback()
		}

		busy := errors.New("database is locked")
		err = manager.Transact(context.Background(), 2, func(*gorm.DB) error { return busy })
		assert.ErrorIs(t, err, busy)
		assert.ErrorContains(t, err, "after 2 attempts")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPoolManager_Close(t *testing.T) {
	_, mock, gormDB := setupTestDB(t)

	manager, err := NewPoolManager(gormDB, testPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	mock.ExpectClose()
	assert.NoError(t, manager.Close())
	assert.NoError(t, manager.Close(), "close is idempotent")
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.ErrorIs(t, manager.Ping(context.Background()), errPoolClosed)
	assert.ErrorIs(t, manager.Transact(context.Background(), 3, func(*gorm.DB) error { return nil }), errPoolClosed)
}

func TestPoolConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  PoolConfig
		wantErr bool
	}{
		{name: "valid config", config: PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour}},
		{name: "default config", config: DefaultPoolConfig()},
		{name: "invalid max open conns", config: PoolConfig{MaxOpenConns: 0, MaxIdleConns: 5}, wantErr: true},
		{name: "invalid max idle conns", config: PoolConfig{MaxOpenConns: 10, MaxIdleConns: 0}, wantErr: true},
		{name: "idle > open", config: PoolConfig{MaxOpenConns: 5, MaxIdleConns: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(nil))
	assert.True(t, isTransient(errors.New("Deadlock found when trying to get lock")))
	assert.True(t, isTransient(errors.New("pq: could not serialize access (SQLSTATE 40001)")))
	assert.True(t, isTransient(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, isTransient(errors.New("driver: bad connection")))
	assert.True(t, isTransient(errors.New("Lock wait timeout exceeded")))
	assert.False(t, isTransient(errors.New("syntax error")))
}
