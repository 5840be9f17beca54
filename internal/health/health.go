// Package health reports whether the server and its content source are
// usable.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/HendryAvila/confluence-mcp/internal/apierr"
	"github.com/HendryAvila/confluence-mcp/internal/retry"
	"github.com/HendryAvila/confluence-mcp/internal/wiki"
)

// Status values, ordered from best to worst. Unknown does not affect the
// overall status.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusUnknown   = "unknown"
)

// OpPing is the operation name used when retrying the connectivity probe.
const OpPing = "health_check"

// Check is the outcome of one probe.
type Check struct {
	Status         string   `json:"status"`
	Message        string   `json:"message"`
	ResponseTimeMS *float64 `json:"response_time_ms,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Checks groups the individual probes.
type Checks struct {
	Server       Check `json:"server"`
	Connectivity Check `json:"confluence_connectivity"`
	APILimits    Check `json:"api_limits"`
}

// Report is the JSON document returned by the health tool and endpoint.
type Report struct {
	Status     string  `json:"status"`
	Timestamp  string  `json:"timestamp"`
	DurationMS float64 `json:"duration_ms"`
	Checks     Checks  `json:"checks"`
}

// JSON renders the report with two-space indentation.
func (r Report) JSON() string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return `{"status":"unhealthy"}`
	}
	return string(b)
}

// Checker runs the probes.
type Checker struct {
	client wiki.Client
	policy retry.Policy
	now    func() time.Time
	logger *slog.Logger
}

// PingPolicy is the retry policy for the connectivity probe: fewer and
// shorter retries than regular calls so the check stays responsive.
func PingPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxRetries = 2
	p.InitialDelay = 500 * time.Millisecond
	p.MaxDelay = 5 * time.Second
	return p
}

// NewChecker returns a Checker probing client with policy.
func NewChecker(client wiki.Client, policy retry.Policy, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	policy.Logger = logger
	return &Checker{client: client, policy: policy, now: time.Now, logger: logger}
}

// Check runs every probe and derives the overall status.
func (c *Checker) Check(ctx context.Context) Report {
	start := c.now()

	pinged := retry.DoAsync(ctx, OpPing, c.policy, func(ctx context.Context) (time.Duration, error) {
		t := c.now()
		if err := c.client.Ping(ctx); err != nil {
			return 0, err
		}
		return c.now().Sub(t), nil
	})

	checks := Checks{
		Server:    Check{Status: StatusHealthy, Message: "Server is running"},
		APILimits: Check{Status: StatusUnknown, Message: "Rate limit information not available"},
	}

	res := <-pinged
	checks.Connectivity = c.connectivity(res)

	report := Report{
		Status:     overall(checks),
		Timestamp:  start.UTC().Format(time.RFC3339),
		DurationMS: millis(c.now().Sub(start)),
		Checks:     checks,
	}
	if report.Status != StatusHealthy {
		c.logger.Warn("health check not healthy", "status", report.Status, "error", checks.Connectivity.Error)
	}
	return report
}

func (c *Checker) connectivity(res retry.Result[time.Duration]) Check {
	if res.Err == nil {
		ms := millis(res.Value)
		return Check{
			Status:         StatusHealthy,
			Message:        "Connected to " + c.client.BaseURL(),
			ResponseTimeMS: &ms,
		}
	}

	status := StatusDegraded
	var mre *apierr.MaxRetriesExceededError
	if !errors.As(res.Err, &mre) && !apierr.IsAborted(res.Err) && !apierr.IsRetryable(res.Err) {
		status = StatusUnhealthy
	}
	return Check{
		Status:  status,
		Message: "Cannot reach " + c.client.BaseURL(),
		Error:   apierr.UserMessage(res.Err),
	}
}

func overall(c Checks) string {
	worst := StatusHealthy
	for _, s := range []string{c.Server.Status, c.Connectivity.Status, c.APILimits.Status} {
		switch s {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			worst = StatusDegraded
		}
	}
	return worst
}

func millis(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*100) / 100
}
