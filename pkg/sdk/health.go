package refine

import (
	"context"
	"sort"

	healthuc "github.com/kailas-cloud/refine/internal/usecase/health"
)

// HealthStatus is the outcome of Client.Health.
type HealthStatus struct {
	Status string            // "ok" or "degraded"
	Checks map[string]string // "database", "session_script" -> "ok" or "error"
}

// OK reports whether every check passed.
func (h HealthStatus) OK() bool { return h.Status == string(healthuc.Healthy) }

// Failed returns the names of failing checks, sorted.
func (h HealthStatus) Failed() []string {
	var out []string
	for name, res := range h.Checks {
		if res != string(healthuc.CheckOK) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Health pings the database and verifies the session script can be loaded.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{Status: string(report.Status), Checks: checks}
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
