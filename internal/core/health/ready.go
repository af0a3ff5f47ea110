package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Check reports an error when a dependency is unusable.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

// FromReporter adapts a partition-assignment reporter such as the
// invalidation runner.
func FromReporter(name string, rr ReadinessReporter) Check {
	return Check{Name: name, Fn: func(context.Context) error {
		if ok, _ := rr.Readiness(); !ok {
			return fmt.Errorf("no partitions assigned")
		}
		return nil
	}}
}

func Readiness(timeout time.Duration, checks ...Check) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks,omitempty"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		out := resp{Status: "ready", Checks: make(map[string]string, len(checks))}
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				out.Status = "not_ready"
				out.Checks[c.Name] = err.Error()
				continue
			}
			out.Checks[c.Name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
