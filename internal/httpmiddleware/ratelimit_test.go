package httpmiddleware

import (
	"testing"
	"time"
)

func TestAllowExhaustsTokens(t *testing.T) {
	l := NewSimpleTokenBucket(3, 60)
	for i := 0; i < 3; i++ {
		if !l.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.allow("1.2.3.4") {
		t.Fatal("request over capacity should be denied")
	}
	// Other clients have their own bucket.
	if !l.allow("5.6.7.8") {
		t.Fatal("different ip must not share the bucket")
	}
}

func TestAllowRefills(t *testing.T) {
	l := NewSimpleTokenBucket(1, 60)
	if !l.allow("1.2.3.4") {
		t.Fatal("first request should be allowed")
	}
	if l.allow("1.2.3.4") {
		t.Fatal("bucket should be empty")
	}
	// Backdate the bucket to simulate elapsed time.
	l.mu.Lock()
	l.state["1.2.3.4"].last = time.Now().Add(-2 * time.Second)
	l.mu.Unlock()
	if !l.allow("1.2.3.4") {
		t.Fatal("bucket should have refilled")
	}
}
