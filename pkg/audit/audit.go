// Package audit runs GraphQL misconfiguration checks against a live endpoint.
// Each check probes one weakness class (introspection exposure, batching,
// depth limits, transport-level query channels) and reports whether the
// endpoint is affected.
package audit

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelsec/graphaudit/internal/ratelimit"
)

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
	SeverityInfo   Severity = "INFO"
)

// Finding is a single check outcome. Result true means the weakness is
// present on the target.
type Finding struct {
	Result      bool     `json:"result"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Impact      string   `json:"impact"`
	Severity    Severity `json:"severity"`
	CurlVerify  string   `json:"curl_verify,omitempty"`
}

// Logger is the structured logging surface the runner needs.
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
}

// Runner executes the check set with bounded concurrency behind a shared
// rate limiter.
type Runner struct {
	logger      Logger
	httpClient  *http.Client
	limiter     *ratelimit.Limiter
	concurrency int
	userAgent   string
	checks      []check
}

type check struct {
	title       string
	description string
	impact      string
	severity    Severity
	probe       probeFunc
}

// probe returns whether the weakness is present and a curl command that
// reproduces the probe. A transport failure surfaces as an error and the
// finding stays negative.
type probeFunc func(ctx context.Context, r *Runner, target string, headers map[string]string) (bool, string, error)

func NewRunner(logger Logger, httpClient *http.Client, limiter *ratelimit.Limiter, concurrency int, userAgent string) *Runner {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 40 * time.Second}
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if userAgent == "" {
		userAgent = "graphaudit/1.0"
	}
	return &Runner{
		logger:      logger,
		httpClient:  httpClient,
		limiter:     limiter,
		concurrency: concurrency,
		userAgent:   userAgent,
		checks:      defaultChecks(),
	}
}

// Run executes every check against the target. Probe failures never abort the
// run; the affected check simply reports a negative result. Findings come
// back sorted by title.
func (r *Runner) Run(ctx context.Context, target string, headers map[string]string) ([]Finding, error) {
	host := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		host = u.Host
	}

	r.logger.Infow("Starting GraphQL audit",
		"target", target,
		"checks", len(r.checks),
		"concurrency", r.concurrency,
	)

	findings := make([]Finding, len(r.checks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, c := range r.checks {
		i, c := i, c
		g.Go(func() error {
			if err := r.limiter.WaitForHost(gctx, host); err != nil {
				return err
			}

			result, curl, err := c.probe(gctx, r, target, headers)
			if err != nil {
				r.logger.Debugw("Audit probe failed",
					"check", c.title,
					"target", target,
					"error", err,
				)
				result = false
			}

			findings[i] = Finding{
				Result:      result,
				Title:       c.title,
				Description: c.description,
				Impact:      c.impact,
				Severity:    c.severity,
				CurlVerify:  curl,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(findings, func(i, j int) bool {
		return findings[i].Title < findings[j].Title
	})

	r.logger.Infow("GraphQL audit completed",
		"target", target,
		"positive", PositiveCount(findings),
		"total", len(findings),
	)

	return findings, nil
}

// PositiveCount returns how many findings flagged their weakness as present.
func PositiveCount(findings []Finding) int {
	n := 0
	for _, f := range findings {
		if f.Result {
			n++
		}
	}
	return n
}
