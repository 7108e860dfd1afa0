package store

import (
	"context"
	"testing"
	"time"
)

func TestNewRedisTimeouts(t *testing.T) {
	r := NewRedis("localhost:6379", 5*time.Second, 3*time.Second)
	opts := r.Client.Options()
	if opts.DialTimeout != 5*time.Second {
		t.Fatalf("dial timeout: %s", opts.DialTimeout)
	}
	if opts.ReadTimeout != 3*time.Second || opts.WriteTimeout != 3*time.Second {
		t.Fatalf("op timeouts: read=%s write=%s", opts.ReadTimeout, opts.WriteTimeout)
	}

	// Zero values fall back to defaults.
	r = NewRedis("localhost:6379", 0, 0)
	opts = r.Client.Options()
	if opts.DialTimeout != 2*time.Second || opts.ReadTimeout != time.Second {
		t.Fatalf("defaults: dial=%s read=%s", opts.DialTimeout, opts.ReadTimeout)
	}
}

func TestRedisNilSafety(t *testing.T) {
	var r *Redis
	if r.Healthy(context.Background()) {
		t.Fatal("nil wrapper must report unhealthy")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
