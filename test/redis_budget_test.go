//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/resumeforge/sessionkit"
	"github.com/resumeforge/sessionkit/session"
)

// cmdCounter is a go-redis Hook that counts Redis commands and pipeline
// round-trips.
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		// one round-trip regardless of command count
		h.pipelines.Add(1)
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) Commands() int64  { return h.commands.Load() }
func (h *cmdCounter) Pipelines() int64 { return h.pipelines.Load() }

// newCountedService returns a Service on miniredis with a cmdCounter
// installed. Reset the counter before each measured operation.
func newCountedService(t *testing.T) (*sessionkit.Service, *cmdCounter) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	counter := &cmdCounter{}
	rdb.AddHook(counter)

	// keep connection handshake noise out of the budgets
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter.Reset()

	return newIntegrationService(t, rdb, integrationConfig()), counter
}

func assertBudget(t *testing.T, name string, counter *cmdCounter, max int64) {
	t.Helper()
	cmds := counter.Commands()
	if cmds > max {
		t.Errorf("%s used %d Redis commands; budget is <= %d", name, cmds, max)
	}
	t.Logf("%s: %d commands, %d pipelines", name, cmds, counter.Pipelines())
}

// A script costs EVALSHA plus, on a cold script cache, one EVAL.
func TestCreateSessionRedisBudget(t *testing.T) {
	svc, counter := newCountedService(t)

	if _, err := svc.CreateSession(context.Background(), "u1", session.Profile{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	assertBudget(t, "CreateSession", counter, 2)
}

func TestLookupRedisBudget(t *testing.T) {
	svc, counter := newCountedService(t)
	ctx := context.Background()

	tokens, err := svc.CreateSession(ctx, "u1", session.Profile{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	counter.Reset()

	if sess, err := svc.GetSessionByToken(ctx, tokens.AccessToken); err != nil || sess == nil {
		t.Fatalf("lookup: sess=%v err=%v", sess, err)
	}
	// GET index + GET record
	assertBudget(t, "GetSessionByToken", counter, 2)
}

func TestUpdateActivityRedisBudget(t *testing.T) {
	svc, counter := newCountedService(t)
	ctx := context.Background()

	tokens, err := svc.CreateSession(ctx, "u1", session.Profile{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	counter.Reset()

	if err := svc.UpdateSessionActivity(ctx, tokens.SessionID); err != nil {
		t.Fatalf("touch: %v", err)
	}
	// GET, then MULTI SET PEXPIRE x3 EXEC in one round-trip
	assertBudget(t, "UpdateSessionActivity", counter, 7)
	if counter.Pipelines() != 1 {
		t.Errorf("expected one pipeline round-trip, got %d", counter.Pipelines())
	}
}

func TestRemoveSessionRedisBudget(t *testing.T) {
	svc, counter := newCountedService(t)
	ctx := context.Background()

	tokens, err := svc.CreateSession(ctx, "u1", session.Profile{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	counter.Reset()

	if err := svc.RemoveSession(ctx, tokens.SessionID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// GET to learn the owner + delete script
	assertBudget(t, "RemoveSession", counter, 3)
}

func TestRefreshRedisBudget(t *testing.T) {
	svc, counter := newCountedService(t)
	ctx := context.Background()

	tokens, err := svc.CreateSession(ctx, "u1", session.Profile{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	counter.Reset()

	if next, err := svc.RefreshSession(ctx, tokens.RefreshToken); err != nil || next == nil {
		t.Fatalf("refresh: next=%v err=%v", next, err)
	}
	// consume + revoke + create scripts; create is already cached
	assertBudget(t, "RefreshSession", counter, 5)
}
