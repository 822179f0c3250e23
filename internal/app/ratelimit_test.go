package app

import (
	"testing"
	"time"
)

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	l := NewRateLimiter(2, time.Minute)
	base := time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	if res := l.Check("c1"); !res.Allowed || res.Remaining != 1 {
		t.Fatalf("first request: %+v", res)
	}
	if res := l.Check("c1"); !res.Allowed || res.Remaining != 0 {
		t.Fatalf("second request: %+v", res)
	}
	if res := l.Check("c1"); res.Allowed {
		t.Fatal("third request should be blocked")
	}

	// Other identifiers are unaffected.
	if res := l.Check("c2"); !res.Allowed {
		t.Fatal("separate identifier should be allowed")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	l := NewRateLimiter(1, time.Minute)
	base := time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	if res := l.Check("c1"); !res.Allowed {
		t.Fatal("first request should be allowed")
	}
	if res := l.Check("c1"); res.Allowed {
		t.Fatal("second request inside the window should be blocked")
	}

	l.now = func() time.Time { return base.Add(61 * time.Second) }
	if res := l.Check("c1"); !res.Allowed {
		t.Fatal("request after the window should be allowed again")
	}
}
