package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelsec/graphaudit/pkg/audit"
)

func TestRunCopDecodesFindings(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/graphql-cop", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ScanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "http://target/graphql", req.Target)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"findings": []map[string]interface{}{
				{"result": true, "title": "Introspection", "severity": "HIGH"},
				{"result": false, "title": "Batch Queries", "severity": "LOW"},
			},
		})
	}))
	defer ts.Close()

	c := New(ts.URL, "")
	findings, err := c.RunCop(context.Background(), ScanRequest{Target: "http://target/graphql"})
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.True(t, findings[0].Result)
	assert.Equal(t, "Introspection", findings[0].Title)
	assert.Equal(t, audit.SeverityHigh, findings[0].Severity)
	assert.Equal(t, 1, audit.PositiveCount(findings))
}

func TestErrorBodyFieldBecomesError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "boom"})
	}))
	defer ts.Close()

	c := New(ts.URL, "")
	_, err := c.RunCop(context.Background(), ScanRequest{Target: "http://target/graphql"})
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
}

func TestErrorWithoutErrorFieldUsesBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail":"upstream gone"}`))
	}))
	defer ts.Close()

	c := New(ts.URL, "")
	_, err := c.Introspect(context.Background(), ScanRequest{Target: "http://target/graphql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream gone")
}

func TestAnalyzeDecodesFullResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"engine": map[string]interface{}{
				"engine":         "Hasura",
				"confidence":     4,
				"security_notes": []string{"Admin secret should never ship to clients."},
			},
			"audit": []map[string]interface{}{
				{"result": true, "title": "Field Suggestions", "severity": "LOW"},
			},
			"schema": map[string]interface{}{
				"object_count": 1,
				"objects":      []map[string]interface{}{{"name": "Query", "field_count": 0, "fields": []string{}}},
			},
			"introspection": map[string]interface{}{"__schema": map[string]interface{}{}},
			"report_id":     "r-123",
		})
	}))
	defer ts.Close()

	c := New(ts.URL, "")
	result, err := c.Analyze(context.Background(), ScanRequest{Target: "http://target/graphql"})
	require.NoError(t, err)

	assert.Equal(t, "Hasura", result.Engine.Engine)
	assert.Equal(t, 4, result.Engine.Confidence)
	assert.Len(t, result.Audit, 1)
	assert.Equal(t, 1, result.Schema.ObjectCount)
	assert.Equal(t, "r-123", result.ReportID)
	assert.Contains(t, result.Introspection, "__schema")
}

func TestQuerySendsOperationFields(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "query { __typename }", req["query"])
		assert.Equal(t, "Op", req["operationName"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{"data": map[string]interface{}{"__typename": "Query"}},
		})
	}))
	defer ts.Close()

	c := New(ts.URL, "")
	result, err := c.Query(context.Background(), QueryRequest{
		Target:        "http://target/graphql",
		Query:         "query { __typename }",
		OperationName: "Op",
	})
	require.NoError(t, err)
	assert.Contains(t, result, "data")
}

func TestAPIKeySentAsBearer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"reports": []interface{}{}})
	}))
	defer ts.Close()

	c := New(ts.URL, "sekrit")
	reports, err := c.ListReports(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestInvalidJSONResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer ts.Close()

	c := New(ts.URL, "")
	_, err := c.RunCop(context.Background(), ScanRequest{Target: "http://target/graphql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestBaseURLTrailingSlashTrimmed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reports", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"reports": []interface{}{}})
	}))
	defer ts.Close()

	c := New(ts.URL+"/", "")
	_, err := c.ListReports(context.Background())
	require.NoError(t, err)
}
