package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/pkg/rediskey"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Window is the sliding lookback bounding the execution count.
const Window = 24 * time.Hour

// admitScript evicts stale events, counts the remainder and conditionally
// records the new event as one atomic unit. Splitting these calls would let
// two concurrent requests both pass the count check on the last quota slot.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local max_exec = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local window_start = tonumber(ARGV[3])
local job_id = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
local count = redis.call('ZCARD', key)

if count >= max_exec then
    return 0
end

redis.call('ZADD', key, now, job_id)
redis.call('EXPIRE', key, 86400)
return 1
`)

var Module = fx.Module("quota",
	fx.Provide(NewEngine),
)

// Engine admits or rejects job starts against a per-tenant sliding window of
// execution events kept in Redis.
type Engine struct {
	rdb  *redis.Client
	node *snowflake.Node
}

type EngineParams struct {
	fx.In
	Redis *redis.Client
	Node  *snowflake.Node
}

func NewEngine(p EngineParams) *Engine {
	return &Engine{rdb: p.Redis, node: p.Node}
}

// JobID composes a unique member for the tenant's execution set. The snowflake
// suffix keeps two same-second starts of the same app from deduplicating.
func (e *Engine) JobID(tenantID, appName string, now time.Time) string {
	return fmt.Sprintf("%s:%d:%s:%s", tenantID, now.Unix(), appName, e.node.Generate())
}

// TryAdmit atomically tests the tenant's execution count for the 24h window
// ending at now and records the event when under limit. A store failure is
// returned as SERVICE_UNAVAILABLE and must be treated as a rejection.
func (e *Engine) TryAdmit(ctx context.Context, tenantID string, limit int64, now time.Time, jobID string) (bool, error) {
	key := rediskey.BuildExecutionsKey(tenantID)
	score := float64(now.UnixNano()) / float64(time.Second)
	windowStart := score - Window.Seconds()

	admitted, err := admitScript.Run(ctx, e.rdb,
		[]string{key},
		strconv.FormatInt(limit, 10),
		strconv.FormatFloat(score, 'f', 6, 64),
		strconv.FormatFloat(windowStart, 'f', 6, 64),
		jobID,
	).Int()
	if err != nil {
		zap.L().Error("quota store unreachable, failing closed",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return false, errutil.ServiceUnavailable("quota store unavailable", errutil.WithErr(err))
	}

	return admitted == 1, nil
}
