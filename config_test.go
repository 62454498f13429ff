package sessionkit

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got %v", err)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Fatalf("expected 24h session TTL, got %v", cfg.Session.TTL)
	}
	if cfg.Session.MaxSessionsPerUser != 5 {
		t.Fatalf("expected cap of 5, got %d", cfg.Session.MaxSessionsPerUser)
	}
	if !cfg.Refresh.EnableThrottle {
		t.Fatal("expected refresh throttle enabled by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
		wantErr   string
	}{
		{
			name: "zero ttl invalid",
			mutate: func(c *Config) {
				c.Session.TTL = 0
			},
			wantErr: "TTL must be > 0",
		},
		{
			name: "sub second ttl invalid",
			mutate: func(c *Config) {
				c.Session.TTL = 500 * time.Millisecond
			},
			wantErr: ">= 1s",
		},
		{
			name: "negative cap invalid",
			mutate: func(c *Config) {
				c.Session.MaxSessionsPerUser = -1
			},
			wantErr: "MaxSessionsPerUser",
		},
		{
			name: "zero cap valid",
			mutate: func(c *Config) {
				c.Session.MaxSessionsPerUser = 0
			},
			wantValid: true,
		},
		{
			name: "prefix with whitespace invalid",
			mutate: func(c *Config) {
				c.Session.KeyPrefix = "app one:"
			},
			wantErr: "KeyPrefix",
		},
		{
			name: "prefix valid",
			mutate: func(c *Config) {
				c.Session.KeyPrefix = "resume:"
			},
			wantValid: true,
		},
		{
			name: "throttle without attempts invalid",
			mutate: func(c *Config) {
				c.Refresh.MaxAttempts = 0
			},
			wantErr: "MaxAttempts",
		},
		{
			name: "throttle without window invalid",
			mutate: func(c *Config) {
				c.Refresh.Window = 0
			},
			wantErr: "Window",
		},
		{
			name: "disabled throttle ignores attempts",
			mutate: func(c *Config) {
				c.Refresh.EnableThrottle = false
				c.Refresh.MaxAttempts = 0
			},
			wantValid: true,
		},
		{
			name: "negative cleanup interval invalid",
			mutate: func(c *Config) {
				c.Cleanup.Interval = -time.Second
			},
			wantErr: "Cleanup Interval",
		},
		{
			name: "cleanup without timeout invalid",
			mutate: func(c *Config) {
				c.Cleanup.Timeout = 0
			},
			wantErr: "Cleanup Timeout",
		},
		{
			name: "cleanup disabled valid",
			mutate: func(c *Config) {
				c.Cleanup.Interval = 0
				c.Cleanup.Timeout = 0
			},
			wantValid: true,
		},
		{
			name: "audit without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantErr: "BufferSize",
		},
		{
			name: "histograms without metrics invalid",
			mutate: func(c *Config) {
				c.Metrics.EnableLatencyHistograms = true
			},
			wantErr: "EnableLatencyHistograms",
		},
		{
			name: "console log valid",
			mutate: func(c *Config) {
				c.Log.Format = "Console"
			},
			wantValid: true,
		},
		{
			name: "unknown log format invalid",
			mutate: func(c *Config) {
				c.Log.Format = "logfmt"
			},
			wantErr: "Log Format",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected invalid config, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConfigReturnsCopy(t *testing.T) {
	h := newServiceHarness(t, testConfig())

	cfg := h.svc.Config()
	cfg.Redis.Addrs = append(cfg.Redis.Addrs[:0], "mutated:1")
	cfg.Session.MaxSessionsPerUser = 99

	again := h.svc.Config()
	if again.Session.MaxSessionsPerUser == 99 {
		t.Fatal("Config must return a copy")
	}
	for _, addr := range again.Redis.Addrs {
		if addr == "mutated:1" {
			t.Fatal("Config must not share the Redis address slice")
		}
	}
}

func TestRedisConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RedisConfig
		wantErr string
	}{
		{name: "single address", cfg: RedisConfig{Addrs: []string{"127.0.0.1:6379"}}},
		{name: "sentinel", cfg: RedisConfig{Addrs: []string{"s1:26379", "s2:26379"}, MasterName: "mymaster"}},
		{name: "empty", cfg: RedisConfig{}, wantErr: "must not be empty"},
		{name: "cluster", cfg: RedisConfig{Addrs: []string{"n1:6379", "n2:6379"}}, wantErr: "cluster is not supported"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
