// Package analyzer ties the probe pipeline together: introspection,
// engine fingerprinting, the audit check set, and schema artifacts.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelsec/graphaudit/internal/cache"
	"github.com/kestrelsec/graphaudit/internal/config"
	"github.com/kestrelsec/graphaudit/internal/httpclient"
	"github.com/kestrelsec/graphaudit/internal/logger"
	"github.com/kestrelsec/graphaudit/internal/ratelimit"
	"github.com/kestrelsec/graphaudit/internal/telemetry"
	"github.com/kestrelsec/graphaudit/pkg/audit"
	"github.com/kestrelsec/graphaudit/pkg/fingerprint"
	"github.com/kestrelsec/graphaudit/pkg/graphql"
	"github.com/kestrelsec/graphaudit/pkg/schema"
)

// Report is the combined result of one full endpoint analysis.
type Report struct {
	ID            string                 `json:"report_id,omitempty"`
	Target        string                 `json:"target"`
	Engine        fingerprint.Report     `json:"engine"`
	Audit         []audit.Finding        `json:"audit"`
	Schema        schema.Summary         `json:"schema"`
	Introspection map[string]interface{} `json:"introspection"`
	CreatedAt     time.Time              `json:"created_at"`
}

type Analyzer struct {
	gql      *graphql.Client
	detector *fingerprint.Detector
	auditor  *audit.Runner
	cache    *cache.Cache
	tel      telemetry.Telemetry
	logger   *logger.Logger
}

func New(cfg config.ScannerConfig, log *logger.Logger, tel telemetry.Telemetry, c *cache.Cache) (*Analyzer, error) {
	detector, err := fingerprint.NewDetector()
	if err != nil {
		return nil, fmt.Errorf("load fingerprint signatures: %w", err)
	}

	httpClient := httpclient.New(httpclient.ClientConfig{
		Timeout:         cfg.Timeout,
		BlockPrivateIPs: cfg.BlockPrivateIPs,
		FollowRedirects: true,
		MaxRedirects:    5,
	})

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.RequestsPerSecond,
		BurstSize:         cfg.BurstSize,
		MinDelay:          100 * time.Millisecond,
	})

	if tel == nil {
		tel = mustNoopTelemetry()
	}

	return &Analyzer{
		gql:      graphql.NewClient(httpClient, cfg.UserAgent),
		detector: detector,
		auditor:  audit.NewRunner(log.WithComponent("audit"), httpClient, limiter, cfg.Concurrency, cfg.UserAgent),
		cache:    c,
		tel:      tel,
		logger:   log.WithComponent("analyzer"),
	}, nil
}

func mustNoopTelemetry() telemetry.Telemetry {
	tel, _ := telemetry.New(context.Background(), config.TelemetryConfig{})
	return tel
}

// Introspect fetches the schema document for a target, consulting the cache
// first. Raw headers follow the scan-request convention (empty or a JSON
// object).
func (a *Analyzer) Introspect(ctx context.Context, target, rawHeaders string) (map[string]interface{}, error) {
	headers, err := graphql.ParseHeaders(rawHeaders)
	if err != nil {
		return nil, err
	}

	key := cache.Key(target, rawHeaders)
	if document, ok := a.cache.GetIntrospection(ctx, key); ok {
		a.logger.Debugw("Introspection cache hit", "target", target)
		return document, nil
	}

	document, _, err := a.gql.Introspect(ctx, target, headers)
	if err != nil {
		return nil, err
	}

	a.cache.SetIntrospection(ctx, key, document)
	return document, nil
}

// Fingerprint identifies the engine behind a target. Introspection failures
// at the GraphQL level do not abort fingerprinting: response headers alone
// still carry signals.
func (a *Analyzer) Fingerprint(ctx context.Context, target, rawHeaders string) (fingerprint.Report, string, error) {
	headers, err := graphql.ParseHeaders(rawHeaders)
	if err != nil {
		return fingerprint.Report{}, "", err
	}

	document, respHeaders, err := a.gql.Introspect(ctx, target, headers)
	if err != nil {
		if respHeaders == nil {
			return fingerprint.Report{}, "", err
		}
		document = map[string]interface{}{}
	}

	report := a.detector.Detect(document, respHeaders)
	return report, a.detector.Banner(target, report), nil
}

// Audit runs the misconfiguration check set against a target.
func (a *Analyzer) Audit(ctx context.Context, target, rawHeaders string) ([]audit.Finding, error) {
	headers, err := graphql.ParseHeaders(rawHeaders)
	if err != nil {
		return nil, err
	}
	return a.auditor.Run(ctx, target, headers)
}

// Analyze performs the full pipeline: introspection, fingerprint, audit and
// schema artifacts, in one pass over the target.
func (a *Analyzer) Analyze(ctx context.Context, target, rawHeaders string) (*Report, error) {
	start := time.Now()

	headers, err := graphql.ParseHeaders(rawHeaders)
	if err != nil {
		return nil, err
	}

	document, respHeaders, err := a.gql.Introspect(ctx, target, headers)
	if err != nil {
		a.tel.RecordAnalysis("analyze", time.Since(start).Seconds(), false)
		return nil, fmt.Errorf("failed to introspect endpoint: %w", err)
	}
	a.cache.SetIntrospection(ctx, cache.Key(target, rawHeaders), document)

	findings, err := a.auditor.Run(ctx, target, headers)
	if err != nil {
		a.tel.RecordAnalysis("analyze", time.Since(start).Seconds(), false)
		return nil, fmt.Errorf("audit failed: %w", err)
	}

	report := &Report{
		ID:            uuid.New().String(),
		Target:        target,
		Engine:        a.detector.Detect(document, respHeaders),
		Audit:         findings,
		Schema:        schema.Build(document),
		Introspection: document,
		CreatedAt:     time.Now().UTC(),
	}

	a.tel.RecordAnalysis("analyze", time.Since(start).Seconds(), true)
	for _, f := range findings {
		a.tel.RecordFinding(string(f.Severity), f.Result)
	}

	a.logger.LogDuration(ctx, "analyzer.Analyze", start,
		"target", target,
		"engine", report.Engine.Engine,
		"positive_findings", audit.PositiveCount(findings),
		"object_types", report.Schema.ObjectCount,
	)

	return report, nil
}

// Query executes an arbitrary GraphQL operation against the target and
// returns the decoded response verbatim.
func (a *Analyzer) Query(ctx context.Context, target, rawHeaders, query string, variables interface{}, operationName string) (map[string]interface{}, error) {
	headers, err := graphql.ParseHeaders(rawHeaders)
	if err != nil {
		return nil, err
	}

	result, _, err := a.gql.Execute(ctx, target, headers, graphql.Request{
		Query:         query,
		Variables:     variables,
		OperationName: operationName,
	})
	if err != nil {
		return nil, fmt.Errorf("graphql query failed: %w", err)
	}
	return result, nil
}
