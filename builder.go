package sessionkit

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resumeforge/sessionkit/internal/rate"
	"github.com/resumeforge/sessionkit/kvstore"
	"github.com/resumeforge/sessionkit/session"
	"github.com/rs/zerolog"
)

// Builder assembles a [Service]. Configure it during initialization and
// call Build once.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	logger    zerolog.Logger
	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig] and a no-op logger.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the store client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces time.Now for every timestamp the Service writes and
// every expiry decision it makes. Store TTLs still follow the store clock.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and returns a ready Service.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	logger := b.logger.With().Str("component", "sessionkit").Logger()
	kv := kvstore.New(b.redis, cfg.Session.KeyPrefix)

	svc := &Service{
		config: cfg,
		store:  session.NewStore(kv),
		limiter: rate.New(kv, rate.ScopeRefresh, rate.Config{
			Enabled:     cfg.Refresh.EnableThrottle,
			MaxAttempts: cfg.Refresh.MaxAttempts,
			Window:      cfg.Refresh.Window,
		}),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink, logger),
		metrics: NewMetrics(cfg.Metrics),
		log:     logger,
		now:     clock,
	}

	b.built = true

	return svc, nil
}
