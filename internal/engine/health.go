package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Endpoint health states
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthFailing  = "failing"
)

// EndpointHealth tracks raw delivery outcomes per merchant endpoint in Redis.
// It only observes: deliveries are never skipped because of it.
//
// - Healthy: the last delivery succeeded (or none was made).
// - Degraded: some consecutive failures, below the threshold.
// - Failing: consecutive failures reached the threshold.
type EndpointHealth struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	failureThreshold int
}

// EndpointHealthState is the current view of one merchant's endpoint.
type EndpointHealthState struct {
	MerchantID          string `json:"merchant_id"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	TotalFailures       int    `json:"total_failures"`
	TotalSuccesses      int    `json:"total_successes"`
	LastStatusCode      int    `json:"last_status_code,omitempty"`
	LastFailedAt        string `json:"last_failed_at,omitempty"`
	LastSucceededAt     string `json:"last_succeeded_at,omitempty"`
}

func NewEndpointHealth(redisClient *redis.Client, failureThreshold int, logger *slog.Logger) *EndpointHealth {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	return &EndpointHealth{
		redisClient:      redisClient,
		logger:           logger,
		failureThreshold: failureThreshold,
	}
}

func healthKey(merchantID string) string {
	return fmt.Sprintf("health:%s", merchantID)
}

// RecordSuccess resets the consecutive failure count.
func (h *EndpointHealth) RecordSuccess(ctx context.Context, merchantID string, statusCode int) {
	key := healthKey(merchantID)

	prev, _ := h.redisClient.HGet(ctx, key, "consecutive_failures").Int()

	_, err := h.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"consecutive_failures", 0,
			"last_status_code", statusCode,
			"last_succeeded_at", time.Now().Unix(),
		)
		pipe.HIncrBy(ctx, key, "total_successes", 1)
		return nil
	})
	if err != nil {
		h.logger.Error("failed to record endpoint success", "error", err, "merchant_id", merchantID)
		return
	}

	if prev >= h.failureThreshold {
		h.logger.Info("merchant endpoint recovered", "merchant_id", merchantID)
	}
}

// RecordFailure counts a failed delivery. statusCode is 0 for network errors.
func (h *EndpointHealth) RecordFailure(ctx context.Context, merchantID string, statusCode int) {
	key := healthKey(merchantID)

	failures, err := h.redisClient.HIncrBy(ctx, key, "consecutive_failures", 1).Result()
	if err != nil {
		h.logger.Error("failed to record endpoint failure", "error", err, "merchant_id", merchantID)
		return
	}

	h.redisClient.HIncrBy(ctx, key, "total_failures", 1)
	h.redisClient.HSet(ctx, key,
		"last_status_code", statusCode,
		"last_failed_at", time.Now().Unix(),
	)

	if failures == int64(h.failureThreshold) {
		h.logger.Warn("merchant endpoint failing",
			"merchant_id", merchantID,
			"consecutive_failures", failures,
			"threshold", h.failureThreshold,
		)
	}
}

// GetState returns the current health view for a merchant.
func (h *EndpointHealth) GetState(ctx context.Context, merchantID string) EndpointHealthState {
	result := EndpointHealthState{MerchantID: merchantID, State: HealthHealthy}

	data, err := h.redisClient.HGetAll(ctx, healthKey(merchantID)).Result()
	if err != nil || len(data) == 0 {
		return result
	}

	result.ConsecutiveFailures, _ = strconv.Atoi(data["consecutive_failures"])
	result.TotalFailures, _ = strconv.Atoi(data["total_failures"])
	result.TotalSuccesses, _ = strconv.Atoi(data["total_successes"])
	result.LastStatusCode, _ = strconv.Atoi(data["last_status_code"])
	result.LastFailedAt = formatUnix(data["last_failed_at"])
	result.LastSucceededAt = formatUnix(data["last_succeeded_at"])

	switch {
	case result.ConsecutiveFailures >= h.failureThreshold:
		result.State = HealthFailing
	case result.ConsecutiveFailures > 0:
		result.State = HealthDegraded
	}

	return result
}

func formatUnix(ts string) string {
	n, _ := strconv.ParseInt(ts, 10, 64)
	if n <= 0 {
		return ""
	}
	return time.Unix(n, 0).UTC().Format(time.RFC3339)
}
