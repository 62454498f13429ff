package sessionkit

import (
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config is the full Service configuration. Zero values are not usable;
// start from [DefaultConfig].
type Config struct {
	Session SessionConfig `koanf:"session"`
	Refresh RefreshConfig `koanf:"refresh"`
	Cleanup CleanupConfig `koanf:"cleanup"`
	Audit   AuditConfig   `koanf:"audit"`
	Metrics MetricsConfig `koanf:"metrics"`
	Redis   RedisConfig   `koanf:"redis"`
	Log     LogConfig     `koanf:"log"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime and the per-user cap.
type SessionConfig struct {
	// KeyPrefix is prepended to every key the Service writes.
	KeyPrefix string `koanf:"key_prefix"`
	// TTL is both the logical lifetime (ExpiresAt) and the store TTL of
	// every key belonging to a session. Sliding updates reset it.
	TTL time.Duration `koanf:"ttl"`
	// MaxSessionsPerUser caps concurrent sessions; the oldest-created
	// session is evicted on overflow. Zero disables the cap.
	MaxSessionsPerUser int `koanf:"max_per_user"`
}

// RefreshConfig throttles refresh attempts per client IP.
type RefreshConfig struct {
	EnableThrottle bool          `koanf:"enable_throttle"`
	MaxAttempts    int           `koanf:"max_attempts"`
	Window         time.Duration `koanf:"window"`
}

// CleanupConfig drives the background [Sweeper].
type CleanupConfig struct {
	// Interval between sweeps. Zero disables the sweeper.
	Interval time.Duration `koanf:"interval"`
	// Timeout bounds a single sweep.
	Timeout time.Duration `koanf:"timeout"`
}

// AuditConfig controls asynchronous audit event dispatch.
type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
	DropIfFull bool `koanf:"drop_if_full"`
}

// MetricsConfig controls the in-process metric counters.
type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"latency_histograms"`
	// Addr is where cmd/sessionctl serves /metrics; unused by the library.
	Addr string `koanf:"addr"`
}

// RedisConfig describes how to reach the session store.
//
// Cluster deployments are not supported: the atomic scripts touch a
// session's record, indices and user set together, and those keys live in
// different slots. Sentinel is supported through MasterName.
type RedisConfig struct {
	Addrs       []string      `koanf:"addrs"`
	MasterName  string        `koanf:"master_name"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// LogConfig selects the zerolog level and output format of the CLI.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" (default) or "console"
}

// NewClient builds a go-redis client from the configuration: a failover
// client when MasterName is set (Addrs are then sentinels), otherwise a
// plain client for Addrs[0].
func (c RedisConfig) NewClient() redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       c.Addrs,
		MasterName:  c.MasterName,
		Username:    c.Username,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout,
	})
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: 24h sessions, five
// sessions per user, a refresh budget of 20 per minute per IP and a
// ten-minute cleanup interval.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			KeyPrefix:          "",
			TTL:                24 * time.Hour,
			MaxSessionsPerUser: 5,
		},
		Refresh: RefreshConfig{
			EnableThrottle: true,
			MaxAttempts:    20,
			Window:         time.Minute,
		},
		Cleanup: CleanupConfig{
			Interval: 10 * time.Minute,
			Timeout:  time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
			Addr:                    ":9464",
		},
		Redis: RedisConfig{
			Addrs:       []string{"127.0.0.1:6379"},
			DialTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Redis.Addrs != nil {
		out.Redis.Addrs = append([]string(nil), cfg.Redis.Addrs...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.TTL < time.Second {
		return errors.New("Session TTL must be >= 1s")
	}
	if c.Session.MaxSessionsPerUser < 0 {
		return errors.New("Session MaxSessionsPerUser must be >= 0")
	}
	if strings.ContainsAny(c.Session.KeyPrefix, " \t\r\n") {
		return errors.New("Session KeyPrefix must not contain whitespace")
	}

	// Refresh
	if c.Refresh.EnableThrottle {
		if c.Refresh.MaxAttempts <= 0 {
			return errors.New("Refresh MaxAttempts must be > 0 when EnableThrottle is true")
		}
		if c.Refresh.Window <= 0 {
			return errors.New("Refresh Window must be > 0 when EnableThrottle is true")
		}
	}

	// Cleanup
	if c.Cleanup.Interval < 0 {
		return errors.New("Cleanup Interval must be >= 0")
	}
	if c.Cleanup.Interval > 0 && c.Cleanup.Timeout <= 0 {
		return errors.New("Cleanup Timeout must be > 0 when Interval is set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Log
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return errors.New("Log Format must be 'json' or 'console'")
	}

	return nil
}

// Validate checks the connection settings. It is separate from
// [Config.Validate] because a Service built with an injected client never
// reads them.
func (c RedisConfig) Validate() error {
	if len(c.Addrs) == 0 {
		return errors.New("Redis Addrs must not be empty")
	}
	if len(c.Addrs) > 1 && c.MasterName == "" {
		return errors.New("Redis cluster is not supported; set MasterName for sentinel or use one address")
	}
	return nil
}
