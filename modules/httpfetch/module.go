// Package httpfetch provides a task that performs a single HTTP request and
// returns its status, headers, and body. It replaces the corpus's split
// between a stateful http_client asset and a stateless http_request runner:
// Pointy-Lang tasks have no resource lifecycle to hang a shared client off
// of, so one task owns the whole request.
package httpfetch

import (
	"context"
	"fmt"
	"strings"

	"resty.dev/v3"

	"github.com/vk/pointyflow/internal/registry"
	"github.com/vk/pointyflow/internal/value"
)

// Module implements registry.Module.
type Module struct{}

var client = resty.New()

// Run issues an HTTP request described by input:
//
//	url     string            (required)
//	method  string            (optional, defaults to GET)
//	headers map[string]string (optional)
//	body    string            (optional)
//
// and returns an object with status_code, headers, and body fields.
func Run(ctx context.Context, input value.Value) (value.Value, error) {
	raw, err := input.ToGo()
	if err != nil {
		return value.Nil, fmt.Errorf("httpfetch: decoding input: %w", err)
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return value.Nil, fmt.Errorf("httpfetch: input must be an object with a 'url' field")
	}

	url, ok := fields["url"].(string)
	if !ok || url == "" {
		return value.Nil, fmt.Errorf("httpfetch: missing required field 'url'")
	}

	method := "GET"
	if m, ok := fields["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}

	req := client.R().SetContext(ctx)
	if headers, ok := fields["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.SetHeader(k, s)
			}
		}
	}
	if body, ok := fields["body"].(string); ok {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return value.Nil, fmt.Errorf("httpfetch: request failed: %w", err)
	}

	respHeaders := make(map[string]any, len(resp.Header()))
	for k, vs := range resp.Header() {
		if len(vs) > 0 {
			respHeaders[k] = vs[0]
		}
	}

	return value.FromGo(map[string]any{
		"status_code": float64(resp.StatusCode()),
		"headers":     respHeaders,
		"body":        resp.String(),
	})
}

// Register registers the httpfetch task with r.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunc("httpfetch", registry.IOBound, Run)
}
