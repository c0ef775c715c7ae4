package agent

import (
	"context"

	"github.com/agentgate/agentgate/decision"
	"github.com/agentgate/agentgate/protocol"
)

// Capability is the user-supplied inspection logic. OnRequest is the only
// required method; everything else is an optional interface the runtime
// detects once at startup and advertises in the handshake.
//
// Concurrency contract: the runtime starts at most one capability call at
// a time per connection. Calls for different connections may run
// concurrently, so shared state inside a capability needs its own
// synchronisation. A returned nil decision means Allow. The context is
// cancelled when the per-call timeout (if configured) expires; a call
// that ignores the cancellation keeps running in the background and can
// overlap later calls on the same connection, so handlers doing slow
// work should honour it.
type Capability interface {
	OnRequest(ctx context.Context, req *Request) *decision.Decision
}

// RequestBodyHandler receives the fully accumulated request body once the
// last chunk has arrived. Implementing it sets handles_request_body and
// supports_streaming in the advertised capabilities.
type RequestBodyHandler interface {
	OnRequestBody(ctx context.Context, req *Request) *decision.Decision
}

// ResponseHandler inspects upstream response headers.
type ResponseHandler interface {
	OnResponse(ctx context.Context, req *Request, resp *Response) *decision.Decision
}

// ResponseBodyHandler inspects upstream response body chunks. Unlike
// request bodies, response bodies are delivered per chunk: resp.Body
// holds only the latest chunk.
type ResponseBodyHandler interface {
	OnResponseBody(ctx context.Context, req *Request, resp *Response) *decision.Decision
}

// WebSocketFrameHandler inspects WebSocket frames the proxy relays on
// upgraded connections (v1 profile).
type WebSocketFrameHandler interface {
	OnWebSocketFrame(ctx context.Context, frame *protocol.WebSocketFrameEvent) *decision.Decision
}

// Configurable receives v1 configure events.
type Configurable interface {
	OnConfigure(ctx context.Context, agentID string, config map[string]any) error
}

// CompletionObserver is notified when a request lifecycle completes
// normally. Errors here are never propagated.
type CompletionObserver interface {
	OnRequestComplete(req *Request, status int, durationMS int64)
}

// CancelObserver is notified of request cancellations. Implementing it
// sets supports_cancellation in the advertised capabilities. In-flight
// handler calls are not interrupted; cancellation is cooperative.
type CancelObserver interface {
	OnRequestCancelled(key RequestKey, reason string)
	OnAllRequestsCancelled(reason string)
}

// StreamObserver is notified when a connection closes. err is nil on
// clean EOF.
type StreamObserver interface {
	OnStreamClosed(err error)
}

// DrainObserver is notified once when the server enters the drain state.
type DrainObserver interface {
	OnDrain(timeoutMS int64)
}

// ShutdownObserver is notified once during shutdown, after in-flight
// contexts have been cancelled.
type ShutdownObserver interface {
	OnShutdown()
}

// HealthReporter lets a capability publish its own health. Without it the
// runtime always reports healthy.
type HealthReporter interface {
	Health() protocol.HealthStatus
}

// MetricsReporter lets a capability replace the runtime's metrics
// snapshot wholesale. Most capabilities rely on the runtime's counters
// instead.
type MetricsReporter interface {
	Metrics() protocol.MetricsReport
}

// CapabilityAdvertiser overrides the derived capability flags sent in the
// v2 handshake, for capabilities whose handling is conditional.
type CapabilityAdvertiser interface {
	Capabilities() protocol.Capabilities
}
