// Package graphql implements the GraphQL transport used to probe target
// endpoints: query execution, introspection, and header handling.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kestrelsec/graphaudit/internal/httpclient"
)

// ErrIntrospectionUnavailable is returned when the endpoint answers the
// introspection query with GraphQL-level errors.
var ErrIntrospectionUnavailable = errors.New("introspection is unavailable")

// Request is a GraphQL request body. Variables and OperationName are omitted
// from the wire format when unset.
type Request struct {
	Query         string      `json:"query"`
	Variables     interface{} `json:"variables,omitempty"`
	OperationName string      `json:"operationName,omitempty"`
}

// Client executes GraphQL operations against arbitrary HTTP endpoints.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

func NewClient(httpClient *http.Client, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 40 * time.Second}
	}
	if userAgent == "" {
		userAgent = "graphaudit/1.0"
	}
	return &Client{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// Execute posts the request to the target endpoint and decodes the JSON
// response body. The full decoded body (data and errors alike) is returned
// together with the response headers, which fingerprinting consumes.
func (c *Client) Execute(ctx context.Context, target string, headers map[string]string, greq Request) (map[string]interface{}, http.Header, error) {
	body, err := json.Marshal(greq)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpclient.CloseBody(resp)

	if resp.StatusCode >= 400 {
		return nil, resp.Header, fmt.Errorf("endpoint returned HTTP %d", resp.StatusCode)
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, resp.Header, fmt.Errorf("endpoint did not return valid JSON: %w", err)
	}

	return decoded, resp.Header, nil
}

// Introspect runs the standard introspection query and returns the schema
// document (the value under "data"). Endpoints that reject introspection with
// GraphQL errors yield ErrIntrospectionUnavailable.
func (c *Client) Introspect(ctx context.Context, target string, headers map[string]string) (map[string]interface{}, http.Header, error) {
	result, respHeaders, err := c.Execute(ctx, target, headers, Request{Query: IntrospectionQuery})
	if err != nil {
		return nil, respHeaders, err
	}

	if errs, ok := result["errors"].([]interface{}); ok && len(errs) > 0 {
		return nil, respHeaders, fmt.Errorf("%w: %v", ErrIntrospectionUnavailable, summarizeErrors(errs))
	}

	data, _ := result["data"].(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
	}
	return data, respHeaders, nil
}

func summarizeErrors(errs []interface{}) string {
	for _, e := range errs {
		if m, ok := e.(map[string]interface{}); ok {
			if msg, ok := m["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return fmt.Sprintf("%d errors", len(errs))
}

// ParseHeaders decodes the raw headers field from a scan request. An empty
// string means no extra headers. Anything else must be a JSON object; values
// are stringified.
func ParseHeaders(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("headers must be a JSON object: %w", err)
	}

	headers := make(map[string]string, len(parsed))
	for k, v := range parsed {
		headers[k] = fmt.Sprintf("%v", v)
	}
	return headers, nil
}

// NamedType unwraps nested ofType references down to the named type.
// Returns "" when the chain never reaches a name.
func NamedType(typeRef map[string]interface{}) string {
	current := typeRef
	for current != nil {
		if name, ok := current["name"].(string); ok && name != "" {
			return name
		}
		next, _ := current["ofType"].(map[string]interface{})
		current = next
	}
	return ""
}
