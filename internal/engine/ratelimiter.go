package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTriggerWindow is the span a merchant's trigger budget covers.
const DefaultTriggerWindow = time.Second

// RateDecision is the outcome of reserving one trigger against a merchant's
// budget. Limit is zero when no limit applied, either because none is
// configured or because Redis could not be reached.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// RateLimiter keeps a sliding window of trigger timestamps per merchant in a
// Redis sorted set.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	window      time.Duration
	now         func() time.Time
	seq         atomic.Uint64
}

// The script prunes the window, admits the call if there is room and reports
// what is left together with the time until the oldest entry ages out.
// Returns {allowed, remaining, reset_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, window)
    count = count + 1
    allowed = 1
end

local reset = window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
    reset = tonumber(oldest[2]) + window - now
end

return {allowed, limit - count, reset}
`)

func NewRateLimiter(redisClient *redis.Client, window time.Duration, logger *slog.Logger) *RateLimiter {
	if window <= 0 {
		window = DefaultTriggerWindow
	}
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		window:      window,
		now:         time.Now,
	}
}

func rlKey(merchantID string) string {
	return fmt.Sprintf("rl:trigger:%s", merchantID)
}

// Reserve takes one trigger from the merchant's budget of limit per window.
// A limit <= 0 always allows. Redis errors fail open.
func (rl *RateLimiter) Reserve(ctx context.Context, merchantID string, limit int) RateDecision {
	if limit <= 0 {
		return RateDecision{Allowed: true}
	}

	now := rl.now().UnixMilli()
	member := fmt.Sprintf("%d:%d", now, rl.seq.Add(1))

	res, err := slidingWindowScript.Run(ctx, rl.redisClient, []string{rlKey(merchantID)},
		now, rl.window.Milliseconds(), limit, member,
	).Int64Slice()
	if err != nil || len(res) != 3 {
		rl.logger.Error("rate limiter script failed", "error", err, "merchant_id", merchantID)
		return RateDecision{Allowed: true}
	}

	d := RateDecision{
		Allowed:    res[0] == 1,
		Limit:      limit,
		Remaining:  int(max(res[1], 0)),
		ResetAfter: time.Duration(res[2]) * time.Millisecond,
	}
	if !d.Allowed {
		rl.logger.Debug("trigger rate limited",
			"merchant_id", merchantID,
			"limit", limit,
			"reset_after", d.ResetAfter,
		)
	}
	return d
}
