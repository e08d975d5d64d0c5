package precache

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/lookahead/trajectory"
)

// Config 预测缓存引擎配置
type Config struct {
	// 结果缓存最大条目数
	MaxCacheEntries int `yaml:"max_cache_entries" json:"max_cache_entries" env:"MAX_CACHE_ENTRIES"`

	// 结果自创建起的最长存活时间
	MaxResultAge time.Duration `yaml:"max_result_age" json:"max_result_age" env:"MAX_RESULT_AGE"`

	// 结果自最近访问起的最长空闲时间
	MaxResultIdle time.Duration `yaml:"max_result_idle" json:"max_result_idle" env:"MAX_RESULT_IDLE"`

	// 超出容量时额外淘汰的余量
	EvictionSlack int `yaml:"eviction_slack" json:"eviction_slack" env:"EVICTION_SLACK"`

	// 朝向偏差失效阈值（度）
	AngleInvalidationThreshold float64 `yaml:"angle_invalidation_threshold" json:"angle_invalidation_threshold" env:"ANGLE_INVALIDATION_THRESHOLD"`

	// 位置偏差失效阈值（曼哈顿距离）
	DistanceInvalidationThreshold float64 `yaml:"distance_invalidation_threshold" json:"distance_invalidation_threshold" env:"DISTANCE_INVALIDATION_THRESHOLD"`

	// 距离优先级分档
	PriorityBands PriorityBands `yaml:"priority_bands" json:"priority_bands" env:"PRIORITY_BANDS"`

	// 前向锥半角（度），锥外目标降级为 LOW
	ForwardConeHalfAngle float64 `yaml:"forward_cone_half_angle" json:"forward_cone_half_angle" env:"FORWARD_CONE_HALF_ANGLE"`

	// 队列为空时的轮询间隔
	WorkerPollInterval time.Duration `yaml:"worker_poll_interval" json:"worker_poll_interval" env:"WORKER_POLL_INTERVAL"`

	// 每次生成之后的间隔
	WorkerInterRequestDelay time.Duration `yaml:"worker_inter_request_delay" json:"worker_inter_request_delay" env:"WORKER_INTER_REQUEST_DELAY"`

	// 生成失败后的退避时间
	WorkerErrorBackoff time.Duration `yaml:"worker_error_backoff" json:"worker_error_backoff" env:"WORKER_ERROR_BACKOFF"`

	// 预缓存的动作 ID 列表，为空表示全部
	Actions []string `yaml:"actions" json:"actions" env:"ACTIONS"`
}

// DefaultConfig 返回默认引擎配置
func DefaultConfig() Config {
	return Config{
		MaxCacheEntries:               50,
		MaxResultAge:                  300 * time.Second,
		MaxResultIdle:                 60 * time.Second,
		EvictionSlack:                 5,
		AngleInvalidationThreshold:    45.0,
		DistanceInvalidationThreshold: 3.0,
		PriorityBands:                 DefaultPriorityBands(),
		ForwardConeHalfAngle:          45.0,
		WorkerPollInterval:            100 * time.Millisecond,
		WorkerInterRequestDelay:       50 * time.Millisecond,
		WorkerErrorBackoff:            500 * time.Millisecond,
		Actions:                       []string{"talk", "attack", "distract", "examine", "trade"},
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	var errs []string

	if c.MaxCacheEntries <= 0 {
		errs = append(errs, "max_cache_entries must be positive")
	}
	if c.MaxResultAge <= 0 {
		errs = append(errs, "max_result_age must be positive")
	}
	if c.MaxResultIdle <= 0 {
		errs = append(errs, "max_result_idle must be positive")
	}
	if c.EvictionSlack < 0 {
		errs = append(errs, "eviction_slack must not be negative")
	}
	if c.AngleInvalidationThreshold < 0 || c.AngleInvalidationThreshold > 180 {
		errs = append(errs, "angle_invalidation_threshold must be between 0 and 180")
	}
	if c.DistanceInvalidationThreshold < 0 {
		errs = append(errs, "distance_invalidation_threshold must not be negative")
	}
	if err := c.PriorityBands.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.ForwardConeHalfAngle < 0 || c.ForwardConeHalfAngle > 180 {
		errs = append(errs, "forward_cone_half_angle must be between 0 and 180")
	}
	if c.WorkerPollInterval <= 0 {
		errs = append(errs, "worker_poll_interval must be positive")
	}
	if c.WorkerInterRequestDelay < 0 || c.WorkerErrorBackoff < 0 {
		errs = append(errs, "worker delays must not be negative")
	}
	if _, err := parseActions(c.Actions); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("precache config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c Config) cacheConfig() CacheConfig {
	return CacheConfig{
		Capacity:      c.MaxCacheEntries,
		MaxAge:        c.MaxResultAge,
		MaxIdle:       c.MaxResultIdle,
		EvictionSlack: c.EvictionSlack,
	}
}

func (c Config) thresholds() trajectory.Thresholds {
	return trajectory.Thresholds{
		Angle:    c.AngleInvalidationThreshold,
		Distance: c.DistanceInvalidationThreshold,
	}
}
