package quota

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"licensing-controlplane/pkg/errutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestEngine(t *testing.T) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewEngine(EngineParams{Redis: rdb, Node: node}), mr
}

func TestTryAdmitUpToLimit(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		admitted, err := engine.TryAdmit(ctx, "acme", 3, now, engine.JobID("acme", "svc1", now))
		require.NoError(t, err)
		require.True(t, admitted, "event %d should be admitted", i+1)
	}

	admitted, err := engine.TryAdmit(ctx, "acme", 3, now, engine.JobID("acme", "svc1", now))
	require.NoError(t, err)
	require.False(t, admitted, "fourth event must be rejected")
}

func TestTryAdmitRejectionLeavesNoTrace(t *testing.T) {
	engine, mr := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	admitted, err := engine.TryAdmit(ctx, "acme", 1, now, engine.JobID("acme", "svc1", now))
	require.NoError(t, err)
	require.True(t, admitted)

	admitted, err = engine.TryAdmit(ctx, "acme", 1, now, engine.JobID("acme", "svc1", now))
	require.NoError(t, err)
	require.False(t, admitted)

	members, err := mr.ZMembers("quota:executions:acme")
	require.NoError(t, err)
	require.Len(t, members, 1, "rejected attempt must not be recorded")
}

func TestWindowSlides(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	t0 := time.Now()

	admitted, err := engine.TryAdmit(ctx, "acme", 2, t0, engine.JobID("acme", "svc1", t0))
	require.NoError(t, err)
	require.True(t, admitted)

	t1 := t0.Add(time.Hour)
	admitted, err = engine.TryAdmit(ctx, "acme", 2, t1, engine.JobID("acme", "svc1", t1))
	require.NoError(t, err)
	require.True(t, admitted)

	t2 := t0.Add(2 * time.Hour)
	admitted, err = engine.TryAdmit(ctx, "acme", 2, t2, engine.JobID("acme", "svc1", t2))
	require.NoError(t, err)
	require.False(t, admitted, "window still holds two events")

	// The oldest event falls out of the 24h lookback.
	t3 := t0.Add(Window + time.Second)
	admitted, err = engine.TryAdmit(ctx, "acme", 2, t3, engine.JobID("acme", "svc1", t3))
	require.NoError(t, err)
	require.True(t, admitted)
}

func TestTenantsAreIsolated(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	admitted, err := engine.TryAdmit(ctx, "acme", 1, now, engine.JobID("acme", "svc1", now))
	require.NoError(t, err)
	require.True(t, admitted)

	admitted, err = engine.TryAdmit(ctx, "globex", 1, now, engine.JobID("globex", "svc1", now))
	require.NoError(t, err)
	require.True(t, admitted, "other tenants are unaffected")
}

func TestConcurrentAdmissionIsExact(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	const limit = 5
	const callers = 20

	var admittedCount atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			admitted, err := engine.TryAdmit(gctx, "acme", limit, now, engine.JobID("acme", "svc1", now))
			if err != nil {
				return err
			}
			if admitted {
				admittedCount.Add(1)
			}
			return nil
		})
	}

	require.NoError(t, g.Wait())
	require.EqualValues(t, limit, admittedCount.Load(), "exactly the remaining quota must be admitted")
}

func TestStoreUnavailableFailsClosed(t *testing.T) {
	engine, mr := newTestEngine(t)
	mr.Close()

	admitted, err := engine.TryAdmit(context.Background(), "acme", 5, time.Now(), "job-1")
	require.False(t, admitted)
	require.Error(t, err)

	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, errutil.StatusServiceUnavailable, base.Code)
}

func TestJobIDIsUnique(t *testing.T) {
	engine, _ := newTestEngine(t)
	now := time.Now()

	a := engine.JobID("acme", "svc1", now)
	b := engine.JobID("acme", "svc1", now)
	require.NotEqual(t, a, b)
	require.Contains(t, a, "acme")
	require.Contains(t, a, "svc1")
}
