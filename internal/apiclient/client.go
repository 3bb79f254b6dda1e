// Package apiclient is the typed client for the graphaudit HTTP API, used by
// the CLI commands.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kestrelsec/graphaudit/internal/analyzer"
	"github.com/kestrelsec/graphaudit/internal/database"
	"github.com/kestrelsec/graphaudit/pkg/audit"
	"github.com/kestrelsec/graphaudit/pkg/fingerprint"
	"github.com/kestrelsec/graphaudit/pkg/schema"
)

// Client talks to a running graphaudit server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates an API client. The API key may be empty when the server runs
// without authentication.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// ScanRequest is the shared body of the scan endpoints. Headers is the raw
// string the server expects: empty or a JSON object.
type ScanRequest struct {
	Target  string `json:"target"`
	Headers string `json:"headers,omitempty"`
}

// QueryRequest is the body for POST /api/query.
type QueryRequest struct {
	Target        string      `json:"target"`
	Headers       string      `json:"headers,omitempty"`
	Query         string      `json:"query"`
	Variables     interface{} `json:"variables,omitempty"`
	OperationName string      `json:"operationName,omitempty"`
}

// AnalyzeResult mirrors the /api/analyze response.
type AnalyzeResult struct {
	Engine        fingerprint.Report     `json:"engine"`
	Audit         []audit.Finding        `json:"audit"`
	Schema        schema.Summary         `json:"schema"`
	Introspection map[string]interface{} `json:"introspection"`
	ReportID      string                 `json:"report_id"`
}

// do posts the payload and decodes the response into out. The body is
// decoded on every status; on a non-2xx status the body's "error" field (or
// the serialized body when absent) becomes the returned error.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var reqBody bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&reqBody).Encode(payload); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errBody) == nil && errBody.Error != "" {
			return fmt.Errorf("%s", errBody.Error)
		}
		return fmt.Errorf("%s", strings.TrimSpace(string(body)))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("server returned invalid JSON (HTTP %d)", resp.StatusCode)
		}
	}
	return nil
}

// RunCop runs the security audit check set against the target.
func (c *Client) RunCop(ctx context.Context, req ScanRequest) ([]audit.Finding, error) {
	var resp struct {
		Findings []audit.Finding `json:"findings"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/graphql-cop", req, &resp); err != nil {
		return nil, err
	}
	return resp.Findings, nil
}

// Graphw00fResult mirrors the /api/graphw00f response.
type Graphw00fResult struct {
	Output string             `json:"output"`
	Engine fingerprint.Report `json:"engine"`
}

// RunGraphw00f fingerprints the engine behind the target.
func (c *Client) RunGraphw00f(ctx context.Context, req ScanRequest) (*Graphw00fResult, error) {
	var resp Graphw00fResult
	if err := c.do(ctx, http.MethodPost, "/api/graphw00f", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Introspect fetches the target's introspection document.
func (c *Client) Introspect(ctx context.Context, req ScanRequest) (map[string]interface{}, error) {
	var resp struct {
		Introspection map[string]interface{} `json:"introspection"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/introspection", req, &resp); err != nil {
		return nil, err
	}
	return resp.Introspection, nil
}

// Analyze runs the full pipeline in one call.
func (c *Client) Analyze(ctx context.Context, req ScanRequest) (*AnalyzeResult, error) {
	var resp AnalyzeResult
	if err := c.do(ctx, http.MethodPost, "/api/analyze", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Query runs an arbitrary GraphQL operation through the server.
func (c *Client) Query(ctx context.Context, req QueryRequest) (map[string]interface{}, error) {
	var resp struct {
		Result map[string]interface{} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/query", req, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// ListReports fetches the report history.
func (c *Client) ListReports(ctx context.Context) ([]database.ReportSummary, error) {
	var resp struct {
		Reports []database.ReportSummary `json:"reports"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/reports", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reports, nil
}

// GetReport fetches one stored report by id.
func (c *Client) GetReport(ctx context.Context, reportID string) (*analyzer.Report, error) {
	var report analyzer.Report
	if err := c.do(ctx, http.MethodGet, "/api/reports/"+reportID, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
