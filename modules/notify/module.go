// Package notify provides a task that connects to a socket.io endpoint,
// emits one event, and waits for a named response event. It merges the
// corpus's separate stateful socketio_client asset and stateless
// socketio_request runner into a single self-contained task, the way the
// corpus's own "socketio" runner already does when it doesn't need to share
// a connection across steps.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/pointyflow/internal/registry"
	"github.com/vk/pointyflow/internal/value"
)

// Module implements registry.Module.
type Module struct{}

type opResult struct {
	data any
	err  error
}

// Run connects to input's url/namespace, emits emit_event with emit_data,
// waits up to timeout (default 10s) for on_event, and returns whatever data
// that event carried under a "response_data" field.
//
//	url                  string (required)
//	namespace            string (optional)
//	on_event, emit_event string (required)
//	emit_data            any    (optional)
//	timeout              string (optional, Go duration syntax)
//	insecure_skip_verify bool   (optional)
func Run(ctx context.Context, input value.Value) (value.Value, error) {
	raw, err := input.ToGo()
	if err != nil {
		return value.Nil, fmt.Errorf("notify: decoding input: %w", err)
	}
	fields, _ := raw.(map[string]any)

	rawURL, _ := fields["url"].(string)
	if rawURL == "" {
		return value.Nil, fmt.Errorf("notify: missing required field 'url'")
	}
	onEvent, _ := fields["on_event"].(string)
	emitEvent, _ := fields["emit_event"].(string)
	if onEvent == "" || emitEvent == "" {
		return value.Nil, fmt.Errorf("notify: 'on_event' and 'emit_event' are required")
	}
	namespace, _ := fields["namespace"].(string)
	insecureSkipVerify, _ := fields["insecure_skip_verify"].(bool)

	timeout := 10 * time.Second
	if t, ok := fields["timeout"].(string); ok && t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return value.Nil, fmt.Errorf("notify: parsing timeout: %w", err)
		}
		timeout = d
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return value.Nil, fmt.Errorf("notify: parsing url: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if insecureSkipVerify {
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)
	defer io.Disconnect()

	done := make(chan opResult, 1)
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	io.On(types.EventName("connect"), func(...any) {
		io.Emit(emitEvent, fields["emit_data"])
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				done <- opResult{err: e}
				return
			}
		}
		done <- opResult{err: fmt.Errorf("notify: connection failed")}
	})
	io.On(types.EventName(onEvent), func(data ...any) {
		var d any
		if len(data) > 0 {
			d = data[0]
		}
		done <- opResult{data: d}
	})

	io.Connect()

	select {
	case <-opCtx.Done():
		return value.Nil, fmt.Errorf("notify: timed out after %v waiting for event %q", timeout, onEvent)
	case res := <-done:
		if res.err != nil {
			return value.Nil, res.err
		}
		return value.FromGo(map[string]any{"response_data": res.data})
	}
}

// Register registers the notify task with r.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunc("notify", registry.IOBound, Run)
}
