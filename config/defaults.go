// =============================================================================
// 📦 Lookahead 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/lookahead/precache"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Precache:   precache.DefaultConfig(),
		Generator:  DefaultGeneratorConfig(),
		Simulation: DefaultSimulationConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultGeneratorConfig 返回默认生成器配置
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Provider:       "offline",
		Name:           "offline",
		Timeout:        30 * time.Second,
		Temperature:    0.8,
		MaxTokens:      256,
		RateLimitRPS:   0,
		RateLimitBurst: 1,
		OfflineLatency: 200 * time.Millisecond,
	}
}

// DefaultSimulationConfig 返回默认世界模拟配置
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		TickInterval: 250 * time.Millisecond,
		Radius:       12,
		Targets: []TargetConfig{
			{ID: "guard", Name: "Guard", X: 2, Y: 0},
			{ID: "merchant", Name: "Merchant", X: 6, Y: 1},
			{ID: "thief", Name: "Thief", X: -4, Y: 0},
		},
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:         false,
		Addr:            "localhost:6379",
		Password:        "",
		DB:              0,
		PoolSize:        10,
		MinIdleConns:    2,
		StatsKey:        "lookahead:stats",
		StatsTTL:        30 * time.Second,
		PublishInterval: 5 * time.Second,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         false,
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "lookahead",
		Password:        "",
		Name:            "lookahead.db",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		JournalBuffer:   256,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "lookahead",
		SampleRate:   0.1,
	}
}

// SimTargets 将配置中的目标转换为引擎目标
func (s SimulationConfig) SimTargets() []precache.Target {
	out := make([]precache.Target, 0, len(s.Targets))
	for _, t := range s.Targets {
		out = append(out, precache.Target{ID: t.ID, Name: t.Name, X: t.X, Y: t.Y})
	}
	return out
}
