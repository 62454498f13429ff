// Command sessionkit-loadtest measures lookup and refresh latency against a
// real Redis or, when none is given, an in-process miniredis.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/resumeforge/sessionkit"
	"github.com/resumeforge/sessionkit/session"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

type sessionState struct {
	mu     sync.Mutex
	tokens *sessionkit.Tokens
}

func main() {
	app := &cli.App{
		Name:  "sessionkit-loadtest",
		Usage: "Seed sessions and measure lookup and refresh latency",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "sessions", Value: 20000, Usage: "number of sessions to seed"},
			&cli.IntFlag{Name: "concurrency", Value: 256, Usage: "number of concurrent workers"},
			&cli.IntFlag{Name: "ops", Value: 100000, Usage: "operations per phase"},
			&cli.StringFlag{Name: "redis-addr", EnvVars: []string{"REDIS_ADDR"}, Usage: "redis address; miniredis when empty"},
			&cli.StringFlag{Name: "prefix", Value: "lt:", Usage: "session key prefix"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	sessions, concurrency, ops := c.Int("sessions"), c.Int("concurrency"), c.Int("ops")
	if sessions <= 0 || concurrency <= 0 || ops <= 0 {
		return cli.Exit("sessions, concurrency, and ops must be > 0", 2)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	addr := c.String("redis-addr")
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		log.Info().Str("addr", addr).Msg("using miniredis")
	} else {
		log.Info().Str("addr", addr).Msg("using redis")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	cfg := sessionkit.DefaultConfig()
	cfg.Session.KeyPrefix = c.String("prefix")
	cfg.Session.MaxSessionsPerUser = 0
	cfg.Refresh.EnableThrottle = false

	svc, err := sessionkit.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(log.Level(zerolog.WarnLevel)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return err
	}
	defer svc.Close()

	states := make([]sessionState, sessions)
	log.Info().Int("sessions", sessions).Msg("seeding")
	startSeed := time.Now()
	for i := range states {
		tokens, err := svc.CreateSession(ctx, fmt.Sprintf("u-%d", i%1000), session.Profile{
			ServiceType: "loadtest",
			UserAgent:   "sessionkit-loadtest",
		})
		if err != nil {
			return fmt.Errorf("seed session %d: %w", i, err)
		}
		states[i].tokens = tokens
	}
	log.Info().Dur("took", time.Since(startSeed).Round(time.Millisecond)).Msg("seeded")

	lookupStats := runLookupPhase(ctx, svc, states, ops, concurrency)
	refreshStats := runRefreshPhase(ctx, svc, states, ops, concurrency)

	fmt.Println("---- results ----")
	printStats("lookup", lookupStats)
	printStats("refresh", refreshStats)

	snap := svc.MetricsSnapshot()
	fmt.Printf("lookup hits=%d misses=%d refresh ok=%d invalid=%d\n",
		snap.Counters[sessionkit.MetricSessionLookupHit],
		snap.Counters[sessionkit.MetricSessionLookupMiss],
		snap.Counters[sessionkit.MetricRefreshSuccess],
		snap.Counters[sessionkit.MetricRefreshInvalid],
	)
	return nil
}

// runPhase spreads ops over concurrency workers and records each op's
// latency. op reports whether the operation succeeded.
func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := op(r, i)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func runLookupPhase(ctx context.Context, svc *sessionkit.Service, states []sessionState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 7919, func(r *rand.Rand, _ int) bool {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		access := state.tokens.AccessToken
		state.mu.Unlock()

		sess, err := svc.GetSessionByToken(ctx, access)
		return err == nil && sess != nil
	})
}

func runRefreshPhase(ctx context.Context, svc *sessionkit.Service, states []sessionState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 6151, func(r *rand.Rand, _ int) bool {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		defer state.mu.Unlock()

		next, err := svc.RefreshSession(ctx, state.tokens.RefreshToken)
		if err != nil || next == nil {
			return false
		}
		state.tokens = next
		return true
	})
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
