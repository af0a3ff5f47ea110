package redisstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestTTLExpiry_ResultGoneGenerationKept(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	if err := rc.Set(ctx, "emx:co2fire:g1:scalar", []byte("v"), 2*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := rc.Incr(ctx, "emx:gen:co2fire"); err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if ttl := mr.TTL("emx:co2fire:g1:scalar"); ttl != 2*time.Second {
		t.Fatalf("ttl=%v want 2s", ttl)
	}

	mr.FastForward(3 * time.Second)

	if _, ok, err := rc.Get(ctx, "emx:co2fire:g1:scalar"); err != nil || ok {
		t.Fatalf("expected expiry, ok=%v err=%v", ok, err)
	}
	if n, err := rc.Int(ctx, "emx:gen:co2fire"); err != nil || n != 1 {
		t.Fatalf("generation must not expire: n=%d err=%v", n, err)
	}
}
