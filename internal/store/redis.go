package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the shared connection pool. The OTP store and the audit
// queue both hang off this one client; keys are namespaced under
// "campustrack:" by their owners.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects with the configured timeouts. Dial problems surface
// on first use; Healthy backs the readiness probe.
func NewRedis(addr string, dialTimeout, opTimeout time.Duration) *Redis {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	if opTimeout <= 0 {
		opTimeout = time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  dialTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
