package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelsec/graphaudit/internal/analyzer"
	"github.com/kestrelsec/graphaudit/internal/config"
	"github.com/kestrelsec/graphaudit/internal/database"
	"github.com/kestrelsec/graphaudit/internal/logger"
)

// upstream is a fake GraphQL endpoint that counts how many requests it saw.
type upstream struct {
	server *httptest.Server
	hits   atomic.Int64
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()

	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)

		var req struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("X-Powered-By", "Apollo Server")
		w.Header().Set("Content-Type", "application/json")

		if strings.Contains(req.Query, "__schema") {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"__schema": map[string]interface{}{
						"queryType": map[string]interface{}{"name": "Query"},
						"types": []interface{}{
							map[string]interface{}{
								"kind": "OBJECT",
								"name": "Query",
								"fields": []interface{}{
									map[string]interface{}{
										"name": "viewer",
										"type": map[string]interface{}{"kind": "OBJECT", "name": "Viewer"},
									},
								},
							},
							map[string]interface{}{
								"kind": "OBJECT",
								"name": "Viewer",
								"fields": []interface{}{
									map[string]interface{}{
										"name": "login",
										"type": map[string]interface{}{"kind": "SCALAR", "name": "String"},
									},
								},
							},
						},
					},
				},
			})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"__typename": "Query"},
		})
	}))
	t.Cleanup(u.server.Close)
	return u
}

func newTestServer(t *testing.T, cfg config.ServerConfig) *Server {
	t.Helper()

	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "console"})
	require.NoError(t, err)

	an, err := analyzer.New(config.ScannerConfig{
		Timeout:           5 * time.Second,
		UserAgent:         "graphaudit-test/1.0",
		RequestsPerSecond: 200,
		BurstSize:         50,
		Concurrency:       4,
	}, log, nil, nil)
	require.NoError(t, err)

	store, err := database.NewStore(config.DatabaseConfig{
		Driver:         "sqlite",
		DSN:            filepath.Join(t.TempDir(), "api_test.db"),
		MaxConnections: 1,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(cfg, an, store, log)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestBlankTargetNeverReachesUpstream(t *testing.T) {
	u := newUpstream(t)
	s := newTestServer(t, config.ServerConfig{})

	for _, path := range []string{"/api/graphql-cop", "/api/graphw00f", "/api/introspection", "/api/analyze"} {
		rec, body := doJSON(t, s, http.MethodPost, path, map[string]string{"target": "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "target is required", body["error"], path)
	}

	assert.Equal(t, int64(0), u.hits.Load())
}

func TestInvalidHeadersRejected(t *testing.T) {
	u := newUpstream(t)
	s := newTestServer(t, config.ServerConfig{})

	rec, body := doJSON(t, s, http.MethodPost, "/api/introspection", map[string]string{
		"target":  u.server.URL,
		"headers": "not json",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "invalid headers JSON")
	assert.Equal(t, int64(0), u.hits.Load())
}

func TestGraphqlCopEndpoint(t *testing.T) {
	u := newUpstream(t)
	s := newTestServer(t, config.ServerConfig{})

	rec, body := doJSON(t, s, http.MethodPost, "/api/graphql-cop", map[string]string{"target": u.server.URL})
	require.Equal(t, http.StatusOK, rec.Code)

	findings, ok := body["findings"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, findings)

	first, ok := findings[0].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, first, "result")
	assert.Contains(t, first, "title")
	assert.Contains(t, first, "severity")
}

func TestGraphw00fEndpoint(t *testing.T) {
	u := newUpstream(t)
	s := newTestServer(t, config.ServerConfig{})

	rec, body := doJSON(t, s, http.MethodPost, "/api/graphw00f", map[string]string{"target": u.server.URL})
	require.Equal(t, http.StatusOK, rec.Code)

	output, ok := body["output"].(string)
	require.True(t, ok)
	assert.Contains(t, output, u.server.URL)
	assert.Contains(t, output, "Discovered GraphQL engine: Apollo (confidence")

	engine, ok := body["engine"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Apollo", engine["engine"])
}

func TestIntrospectionEndpoint(t *testing.T) {
	u := newUpstream(t)
	s := newTestServer(t, config.ServerConfig{})

	rec, body := doJSON(t, s, http.MethodPost, "/api/introspection", map[string]string{"target": u.server.URL})
	require.Equal(t, http.StatusOK, rec.Code)

	introspection, ok := body["introspection"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, introspection, "__schema")
}

func TestAnalyzeEndpointPersistsReport(t *testing.T) {
	u := newUpstream(t)
	s := newTestServer(t, config.ServerConfig{})

	rec, body := doJSON(t, s, http.MethodPost, "/api/analyze", map[string]string{"target": u.server.URL})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, key := range []string{"engine", "audit", "schema", "introspection", "report_id"} {
		assert.Contains(t, body, key)
	}

	schemaData, ok := body["schema"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), schemaData["object_count"])

	reportID, ok := body["report_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, reportID)

	rec, report := doJSON(t, s, http.MethodGet, "/api/reports/"+reportID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, u.server.URL, report["target"])

	rec, listing := doJSON(t, s, http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reports, ok := listing["reports"].([]interface{})
	require.True(t, ok)
	assert.Len(t, reports, 1)
}

func TestAnalyzeUnreachableUpstream(t *testing.T) {
	u := newUpstream(t)
	target := u.server.URL
	u.server.Close()

	s := newTestServer(t, config.ServerConfig{})
	rec, body := doJSON(t, s, http.MethodPost, "/api/analyze", map[string]string{"target": target})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "failed to introspect endpoint")
}

func TestQueryEndpoint(t *testing.T) {
	u := newUpstream(t)
	s := newTestServer(t, config.ServerConfig{})

	rec, body := doJSON(t, s, http.MethodPost, "/api/query", map[string]string{
		"target": u.server.URL,
		"query":  "query { __typename }",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, result, "data")
}

func TestQueryRequiresTargetAndQuery(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	rec, body := doJSON(t, s, http.MethodPost, "/api/query", map[string]string{"target": "http://x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "target and query are required", body["error"])
}

func TestQueryVariablesAcceptStringAndObject(t *testing.T) {
	u := newUpstream(t)
	s := newTestServer(t, config.ServerConfig{})

	rec, _ := doJSON(t, s, http.MethodPost, "/api/query", map[string]interface{}{
		"target":    u.server.URL,
		"query":     "query($n: Int) { __typename }",
		"variables": map[string]interface{}{"n": 1},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, s, http.MethodPost, "/api/query", map[string]interface{}{
		"target":    u.server.URL,
		"query":     "query($n: Int) { __typename }",
		"variables": `{"n": 1}`,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, s, http.MethodPost, "/api/query", map[string]interface{}{
		"target":    u.server.URL,
		"query":     "query { __typename }",
		"variables": "not json",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "invalid variables JSON")
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	rec, body := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestDashboardServed(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "GraphAudit")
	assert.Contains(t, rec.Body.String(), "Run All Scans")
}

func TestAuthMiddleware(t *testing.T) {
	u := newUpstream(t)
	s := newTestServer(t, config.ServerConfig{EnableAuth: true, APIKey: "sekrit"})

	rec, body := doJSON(t, s, http.MethodPost, "/api/introspection", map[string]string{"target": u.server.URL})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Missing Authorization header", body["error"])

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]string{"target": u.server.URL}))
	req := httptest.NewRequest(http.MethodPost, "/api/introspection", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", "sekrit"))
	recOK := httptest.NewRecorder()
	s.Handler().ServeHTTP(recOK, req)
	assert.Equal(t, http.StatusOK, recOK.Code)

	reqHealth := httptest.NewRequest(http.MethodGet, "/health", nil)
	recHealth := httptest.NewRecorder()
	s.Handler().ServeHTTP(recHealth, reqHealth)
	assert.Equal(t, http.StatusOK, recHealth.Code)
}

func TestReportNotFound(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	rec, body := doJSON(t, s, http.MethodGet, "/api/reports/bogus", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "not found")
}
