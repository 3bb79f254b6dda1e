package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kestrelsec/graphaudit/internal/httpclient"
)

func defaultChecks() []check {
	return []check{
		{
			title:       "Alias Overloading",
			description: "The endpoint executed a query containing 100 aliased fields without rejecting it.",
			impact:      "Denial of Service - aliases multiply resolver work inside a single request.",
			severity:    SeverityHigh,
			probe:       probeAliasOverloading,
		},
		{
			title:       "Array-based Query Batching",
			description: "The endpoint accepted an array of batched queries in one HTTP request.",
			impact:      "Denial of Service / rate-limit bypass - many operations ride on one request.",
			severity:    SeverityHigh,
			probe:       probeArrayBatching,
		},
		{
			title:       "Directive Overloading",
			description: "The endpoint accepted a query with 10 duplicated directives.",
			impact:      "Denial of Service - repeated directives inflate parsing and validation cost.",
			severity:    SeverityHigh,
			probe:       probeDirectiveOverloading,
		},
		{
			title:       "Field Suggestions",
			description: "Error responses suggest valid field names for near-miss queries.",
			impact:      "Information Leakage - the schema can be recovered without introspection.",
			severity:    SeverityLow,
			probe:       probeFieldSuggestions,
		},
		{
			title:       "GET Method Query Support",
			description: "The endpoint executed a query delivered in the URL query string.",
			impact:      "Possible CSRF - state-changing operations may be triggered by links.",
			severity:    SeverityMedium,
			probe:       probeGetQuery,
		},
		{
			title:       "GraphQL IDE Exposed",
			description: "An interactive IDE (GraphiQL or Playground) is served from the endpoint.",
			impact:      "Information Leakage - the IDE invites ad-hoc exploration of the API.",
			severity:    SeverityMedium,
			probe:       probeIDE,
		},
		{
			title:       "Introspection Enabled",
			description: "The endpoint answered the schema introspection query.",
			impact:      "Information Leakage - the entire schema, including hidden operations, is discoverable.",
			severity:    SeverityHigh,
			probe:       probeIntrospection,
		},
		{
			title:       "POST based url-encoded query",
			description: "The endpoint executed a query posted as a urlencoded form.",
			impact:      "Possible CSRF - form posts cross origins without a preflight.",
			severity:    SeverityMedium,
			probe:       probeFormQuery,
		},
		{
			title:       "Query Depth Limit Missing",
			description: "A deeply nested query was executed without a depth-limit rejection.",
			impact:      "Denial of Service - nesting grows resolver work exponentially.",
			severity:    SeverityHigh,
			probe:       probeDepthLimit,
		},
	}
}

func probeAliasOverloading(ctx context.Context, r *Runner, target string, headers map[string]string) (bool, string, error) {
	var aliases strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&aliases, "alias%d:__typename ", i)
	}
	body := fmt.Sprintf(`{"query":"query { %s}"}`, strings.TrimSpace(aliases.String()))

	status, resp, err := r.postJSON(ctx, target, headers, body)
	if err != nil {
		return false, "", err
	}

	curl := curlPost(target, `{"query":"query { alias0:__typename alias1:__typename ... alias99:__typename }"}`)
	return status == http.StatusOK && hasData(resp) && !hasErrors(resp), curl, nil
}

func probeArrayBatching(ctx context.Context, r *Runner, target string, headers map[string]string) (bool, string, error) {
	entries := make([]string, 10)
	for i := range entries {
		entries[i] = `{"query":"{ __typename }"}`
	}
	body := "[" + strings.Join(entries, ",") + "]"

	status, resp, err := r.postJSON(ctx, target, headers, body)
	if err != nil {
		return false, "", err
	}

	accepted := status == http.StatusOK && strings.HasPrefix(strings.TrimSpace(string(resp)), "[")
	return accepted, curlPost(target, body), nil
}

func probeDirectiveOverloading(ctx context.Context, r *Runner, target string, headers map[string]string) (bool, string, error) {
	directives := strings.Repeat(" @include(if: true)", 10)
	body := fmt.Sprintf(`{"query":"query { __typename%s }"}`, directives)

	status, resp, err := r.postJSON(ctx, target, headers, body)
	if err != nil {
		return false, "", err
	}

	return status == http.StatusOK && hasData(resp) && !hasErrors(resp), curlPost(target, body), nil
}

func probeFieldSuggestions(ctx context.Context, r *Runner, target string, headers map[string]string) (bool, string, error) {
	body := `{"query":"query { graphaudi }"}`

	_, resp, err := r.postJSON(ctx, target, headers, body)
	if err != nil {
		return false, "", err
	}

	return strings.Contains(strings.ToLower(string(resp)), "did you mean"), curlPost(target, body), nil
}

func probeGetQuery(ctx context.Context, r *Runner, target string, headers map[string]string) (bool, string, error) {
	probeURL, err := appendQuery(target, "query", "query { __typename }")
	if err != nil {
		return false, "", err
	}

	status, resp, err := r.get(ctx, probeURL, headers, "")
	if err != nil {
		return false, "", err
	}

	return status == http.StatusOK && hasData(resp), fmt.Sprintf("curl -s %q", probeURL), nil
}

func probeIDE(ctx context.Context, r *Runner, target string, headers map[string]string) (bool, string, error) {
	status, resp, err := r.get(ctx, target, headers, "text/html")
	if err != nil {
		return false, "", err
	}

	lower := strings.ToLower(string(resp))
	exposed := status == http.StatusOK &&
		(strings.Contains(lower, "graphiql") || strings.Contains(lower, "playground"))
	return exposed, fmt.Sprintf("curl -s -H 'Accept: text/html' %q", target), nil
}

func probeIntrospection(ctx context.Context, r *Runner, target string, headers map[string]string) (bool, string, error) {
	body := `{"query":"query { __schema { queryType { name } } }"}`

	status, resp, err := r.postJSON(ctx, target, headers, body)
	if err != nil {
		return false, "", err
	}

	return status == http.StatusOK && strings.Contains(string(resp), "__schema"), curlPost(target, body), nil
}

func probeFormQuery(ctx context.Context, r *Runner, target string, headers map[string]string) (bool, string, error) {
	form := url.Values{"query": {"query { __typename }"}}

	status, resp, err := r.postForm(ctx, target, headers, form)
	if err != nil {
		return false, "", err
	}

	curl := fmt.Sprintf("curl -s -X POST -d 'query=query {__typename}' %q", target)
	return status == http.StatusOK && hasData(resp), curl, nil
}

func probeDepthLimit(ctx context.Context, r *Runner, target string, headers map[string]string) (bool, string, error) {
	body := `{"query":"query { __schema { types { fields { type { ofType { ofType { ofType { ofType { name } } } } } } } } }"}`

	status, resp, err := r.postJSON(ctx, target, headers, body)
	if err != nil {
		return false, "", err
	}

	lower := strings.ToLower(string(resp))
	rejected := strings.Contains(lower, "depth") || strings.Contains(lower, "complexity")
	return status == http.StatusOK && hasData(resp) && !rejected, curlPost(target, body), nil
}

// transport helpers

func (r *Runner) postJSON(ctx context.Context, target string, headers map[string]string, body string) (int, []byte, error) {
	return r.do(ctx, http.MethodPost, target, headers, "application/json", strings.NewReader(body))
}

func (r *Runner) postForm(ctx context.Context, target string, headers map[string]string, form url.Values) (int, []byte, error) {
	return r.do(ctx, http.MethodPost, target, headers, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (r *Runner) get(ctx context.Context, target string, headers map[string]string, accept string) (int, []byte, error) {
	extra := headers
	if accept != "" {
		extra = make(map[string]string, len(headers)+1)
		for k, v := range headers {
			extra[k] = v
		}
		extra["Accept"] = accept
	}
	return r.do(ctx, http.MethodGet, target, extra, "", nil)
}

func (r *Runner) do(ctx context.Context, method, target string, headers map[string]string, contentType string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", r.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	// Drain past the read limit so the connection goes back to the pool.
	defer httpclient.CloseBody(resp)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func hasData(body []byte) bool {
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return false
	}
	data, ok := decoded["data"].(map[string]interface{})
	return ok && len(data) > 0
}

func hasErrors(body []byte) bool {
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return false
	}
	errs, ok := decoded["errors"].([]interface{})
	return ok && len(errs) > 0
}

func curlPost(target, body string) string {
	return fmt.Sprintf("curl -s -X POST -H 'Content-Type: application/json' -d '%s' %q", body, target)
}

func appendQuery(target, key, value string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
