package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "SCENARIO", "STORE_DRIVER", "CACHE_TTL", "DEFAULT_RESOLUTION", "METRICS_ENABLED"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Addr != ":8090" || c.Scenario != "baseline" || c.StoreDriver != "postgis" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.CacheTTL != time.Hour || c.DefaultResolution != 0.1 || !c.Metrics.Enabled {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "DuckDB")
	t.Setenv("DEFAULT_RESOLUTION", "0.25")
	t.Setenv("CACHE_TTL_OVERRIDES", "CO2FIRE=5m, frpfire=30s, bad, x=nope")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("INVALIDATION_ENABLED", "yes")
	t.Setenv("LOG_CONSOLE", "1")

	c := FromEnv()
	if c.StoreDriver != "duckdb" {
		t.Fatalf("StoreDriver=%q", c.StoreDriver)
	}
	if c.DefaultResolution != 0.25 {
		t.Fatalf("DefaultResolution=%v", c.DefaultResolution)
	}
	if len(c.CacheTTLOvr) != 2 || c.CacheTTLOvr["co2fire"] != 5*time.Minute || c.CacheTTLOvr["frpfire"] != 30*time.Second {
		t.Fatalf("CacheTTLOvr=%v", c.CacheTTLOvr)
	}
	if got := Brokers(c.Invalidation.Brokers); len(got) != 2 || got[1] != "b:9092" {
		t.Fatalf("Brokers=%v", got)
	}
	if !c.Invalidation.Enabled || !c.LogConsole {
		t.Fatalf("bool overrides not applied: %+v", c)
	}
}

func TestFromEnv_RejectsNonPositiveResolution(t *testing.T) {
	t.Setenv("DEFAULT_RESOLUTION", "-1")
	if c := FromEnv(); c.DefaultResolution != 0.1 {
		t.Fatalf("DefaultResolution=%v", c.DefaultResolution)
	}
}
