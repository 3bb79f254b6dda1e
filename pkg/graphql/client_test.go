package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer token123", r.Header.Get("Authorization"))

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "{ me { id } }", req.Query)
		assert.Equal(t, "Me", req.OperationName)

		w.Header().Set("X-Powered-By", "Apollo")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"me": map[string]interface{}{"id": "1"}},
		})
	}))
	defer ts.Close()

	c := NewClient(nil, "")
	result, respHeaders, err := c.Execute(context.Background(), ts.URL,
		map[string]string{"Authorization": "Bearer token123"},
		Request{Query: "{ me { id } }", OperationName: "Me"},
	)
	require.NoError(t, err)

	assert.Equal(t, "Apollo", respHeaders.Get("X-Powered-By"))
	data := result["data"].(map[string]interface{})
	assert.Equal(t, "1", data["me"].(map[string]interface{})["id"])
}

func TestExecuteHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := NewClient(nil, "")
	_, _, err := c.Execute(context.Background(), ts.URL, nil, Request{Query: "{ __typename }"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestExecuteInvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer ts.Close()

	c := NewClient(nil, "")
	_, _, err := c.Execute(context.Background(), ts.URL, nil, Request{Query: "{ __typename }"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not return valid JSON")
}

func TestIntrospect(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "__schema")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"__schema": map[string]interface{}{
					"queryType": map[string]interface{}{"name": "Query"},
				},
			},
		})
	}))
	defer ts.Close()

	c := NewClient(nil, "")
	schema, _, err := c.Introspect(context.Background(), ts.URL, nil)
	require.NoError(t, err)

	assert.Contains(t, schema, "__schema")
}

func TestIntrospectUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []map[string]interface{}{
				{"message": "introspection is disabled"},
			},
		})
	}))
	defer ts.Close()

	c := NewClient(nil, "")
	_, _, err := c.Introspect(context.Background(), ts.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntrospectionUnavailable)
	assert.Contains(t, err.Error(), "introspection is disabled")
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", raw: "", want: map[string]string{}},
		{
			name: "object",
			raw:  `{"Authorization": "Bearer x", "X-Count": 3}`,
			want: map[string]string{"Authorization": "Bearer x", "X-Count": "3"},
		},
		{name: "array", raw: `["a"]`, wantErr: true},
		{name: "garbage", raw: `{{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeaders(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNamedType(t *testing.T) {
	ref := map[string]interface{}{
		"kind": "NON_NULL",
		"ofType": map[string]interface{}{
			"kind": "LIST",
			"ofType": map[string]interface{}{
				"kind": "OBJECT",
				"name": "User",
			},
		},
	}

	assert.Equal(t, "User", NamedType(ref))
	assert.Equal(t, "", NamedType(nil))
	assert.Equal(t, "", NamedType(map[string]interface{}{"kind": "NON_NULL"}))
}
