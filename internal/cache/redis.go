package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	apperrors "github.com/soilfusion/cropadvisor/internal/errors"
	"github.com/soilfusion/cropadvisor/internal/logger"
	"github.com/soilfusion/cropadvisor/internal/models"
)

// Redis stores results as JSON with SET EX. Every call goes through a
// circuit breaker so an unreachable server costs one fast failure per call
// once the breaker is open.
type Redis struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewRedis connects lazily to the server at url (redis://...)
func NewRedis(url string, ttl time.Duration, log logger.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperrors.CacheError("invalid redis url", err).WithOperation("cache.NewRedis")
	}
	opts.MaxRetries = -1
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	return NewRedisWithClient(redis.NewClient(opts), ttl, log), nil
}

// NewRedisWithClient wraps an existing client
func NewRedisWithClient(client *redis.Client, ttl time.Duration, log logger.Logger) *Redis {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Cache circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Redis{client: client, ttl: ttl, breaker: breaker}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Get(ctx context.Context, key string) (models.PredictionResult, bool, error) {
	var result models.PredictionResult

	data, err := r.breaker.Execute(func() ([]byte, error) {
		b, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		return result, false, apperrors.CacheError("cache read failed", err).WithOperation("cache.Redis.Get")
	}
	if data == nil {
		return result, false, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false, apperrors.CacheError("corrupt cache entry", err).WithOperation("cache.Redis.Get").WithDetails(key)
	}
	return result, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, result models.PredictionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return apperrors.CacheError("encode cache entry", err).WithOperation("cache.Redis.Set")
	}
	_, err = r.breaker.Execute(func() ([]byte, error) {
		return nil, r.client.Set(ctx, key, data, r.ttl).Err()
	})
	if err != nil {
		return apperrors.CacheError("cache write failed", err).WithOperation("cache.Redis.Set")
	}
	return nil
}

// Ping checks connectivity without going through the breaker
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// BreakerState reports the circuit breaker state (closed, half-open, open)
func (r *Redis) BreakerState() gobreaker.State {
	return r.breaker.State()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
