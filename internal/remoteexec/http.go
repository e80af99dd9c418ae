package remoteexec

import (
	"context"
	"fmt"

	"resty.dev/v3"

	"github.com/vk/pointyflow/internal/value"
)

// HTTPTransport dispatches every Remote task through one endpoint, POSTing
// `{taskName, inputs}` and decoding `{ok, value, message, retryable}`
// (SPEC_FULL.md §6).
type HTTPTransport struct {
	BaseURL string
	client  *resty.Client
}

// NewHTTPTransport creates a transport posting to baseURL.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{BaseURL: baseURL, client: resty.New()}
}

type httpWireRequest struct {
	TaskName string `json:"taskName"`
	Inputs   any    `json:"inputs"`
}

type httpWireResponse struct {
	Ok        bool   `json:"ok"`
	Value     any    `json:"value"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (t *HTTPTransport) Invoke(ctx context.Context, taskName string, input value.Value) (value.Value, error) {
	goInput, err := input.ToGo()
	if err != nil {
		return value.Nil, fmt.Errorf("remoteexec: encoding input for %q: %w", taskName, err)
	}

	var result httpWireResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(httpWireRequest{TaskName: taskName, Inputs: goInput}).
		SetResult(&result).
		Post(t.BaseURL)
	if err != nil {
		return value.Nil, fmt.Errorf("remoteexec: invoking %q: %w", taskName, err)
	}
	if resp.IsError() {
		return value.Nil, fmt.Errorf("remoteexec: %q returned %s", taskName, resp.Status())
	}
	if !result.Ok {
		return value.Nil, &RemoteError{Message: result.Message, Retryable: result.Retryable}
	}

	return value.FromGo(result.Value)
}
