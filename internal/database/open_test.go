package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/lookahead/config"
)

func TestDialector(t *testing.T) {
	for _, driver := range []string{"sqlite", "postgres", "mysql"} {
		d, err := Dialector(config.DatabaseConfig{Driver: driver, Name: "x"})
		require.NoError(t, err, driver)
		assert.NotNil(t, d)
	}

	_, err := Dialector(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", Name: filepath.Join(t.TempDir(), "test.db")}

	db, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)

	manager, err := NewPoolManager(db, PoolConfigFrom(cfg), zap.NewNop())
	require.NoError(t, err)
	defer manager.Close()

	assert.NoError(t, manager.Ping(context.Background()))
	assert.Equal(t, 1, manager.Stats().MaxOpen)

	var one int
	require.NoError(t, manager.DB().Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestPoolConfigFrom(t *testing.T) {
	pc := PoolConfigFrom(config.DatabaseConfig{Driver: "postgres", MaxOpenConns: 20, MaxIdleConns: 4, ConnMaxLifetime: time.Minute})
	assert.Equal(t, 20, pc.MaxOpenConns)
	assert.Equal(t, 4, pc.MaxIdleConns)
	assert.Equal(t, time.Minute, pc.ConnMaxLifetime)
	assert.NoError(t, pc.Validate())

	pc = PoolConfigFrom(config.DatabaseConfig{Driver: "mysql", MaxOpenConns: 2})
	assert.Equal(t, 2, pc.MaxIdleConns, "idle is clamped to open")

	pc = PoolConfigFrom(config.DatabaseConfig{Driver: "sqlite", MaxOpenConns: 50})
	assert.Equal(t, 1, pc.MaxOpenConns)
}

func TestGormLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewGormLogger(zap.New(core), 10*time.Millisecond)
	ctx := context.Background()

	l.Info(ctx, "hidden %d", 1)
	l.Warn(ctx, "visible %d", 2)
	assert.Equal(t, 1, logs.Len())

	// 慢查询
	l.Trace(ctx, time.Now().Add(-50*time.Millisecond), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Equal(t, 1, logs.FilterMessage("slow sql").Len())

	// Silent 不输出任何内容
	silent := l.LogMode(gormlogger.Silent)
	silent.Error(ctx, "nothing")
	silent.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, assert.AnError)
	assert.Equal(t, 2, logs.Len())

	// Info 级别输出每条 SQL
	verbose := l.LogMode(gormlogger.Info)
	verbose.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 2", 1 }, nil)
	assert.Equal(t, 1, logs.FilterMessage("sql").Len())
}
