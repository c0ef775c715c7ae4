package agent

import (
	"context"
	"log/slog"

	"github.com/agentgate/agentgate/decision"
	"github.com/agentgate/agentgate/protocol"
)

// adaptor glues a user capability to the dispatcher: it resolves the
// optional interfaces once, supplies defaults for the rest, and swallows
// errors from lifecycle callbacks so they never reach the wire.
type adaptor struct {
	cap Capability
	log *slog.Logger

	body      RequestBodyHandler
	resp      ResponseHandler
	respBody  ResponseBodyHandler
	websocket WebSocketFrameHandler
	configure Configurable
	complete  CompletionObserver
	cancel    CancelObserver
	stream    StreamObserver
	drain     DrainObserver
	shutdown  ShutdownObserver
	health    HealthReporter
	metrics   MetricsReporter
}

func newAdaptor(cap Capability, log *slog.Logger) *adaptor {
	a := &adaptor{cap: cap, log: log}
	a.body, _ = cap.(RequestBodyHandler)
	a.resp, _ = cap.(ResponseHandler)
	a.respBody, _ = cap.(ResponseBodyHandler)
	a.websocket, _ = cap.(WebSocketFrameHandler)
	a.configure, _ = cap.(Configurable)
	a.complete, _ = cap.(CompletionObserver)
	a.cancel, _ = cap.(CancelObserver)
	a.stream, _ = cap.(StreamObserver)
	a.drain, _ = cap.(DrainObserver)
	a.shutdown, _ = cap.(ShutdownObserver)
	a.health, _ = cap.(HealthReporter)
	a.metrics, _ = cap.(MetricsReporter)
	return a
}

// capabilities derives the handshake advertisement from the interfaces
// the capability implements, unless it advertises its own.
func (a *adaptor) capabilities() protocol.Capabilities {
	if adv, ok := a.cap.(CapabilityAdvertiser); ok {
		return adv.Capabilities()
	}
	return protocol.Capabilities{
		HandlesRequestHeaders:  true,
		HandlesRequestBody:     a.body != nil,
		HandlesResponseHeaders: a.resp != nil,
		HandlesResponseBody:    a.respBody != nil,
		SupportsStreaming:      a.body != nil || a.respBody != nil,
		SupportsCancellation:   a.cancel != nil,
	}
}

func (a *adaptor) healthStatus() protocol.HealthStatus {
	if a.health == nil {
		return protocol.Healthy()
	}
	return a.health.Health()
}

// Lifecycle callbacks. Panics are logged and swallowed: a misbehaving
// observer must not take down the connection or the process.

func (a *adaptor) onConfigure(ctx context.Context, agentID string, config map[string]any) error {
	if a.configure == nil {
		return nil
	}
	return a.configure.OnConfigure(ctx, agentID, config)
}

func (a *adaptor) onRequestComplete(req *Request, status int, durationMS int64) {
	if a.complete == nil {
		return
	}
	defer a.recover("on_request_complete")
	a.complete.OnRequestComplete(req, status, durationMS)
}

func (a *adaptor) onRequestCancelled(key RequestKey, reason string) {
	if a.cancel == nil {
		return
	}
	defer a.recover("on_request_cancelled")
	a.cancel.OnRequestCancelled(key, reason)
}

func (a *adaptor) onAllRequestsCancelled(reason string) {
	if a.cancel == nil {
		return
	}
	defer a.recover("on_all_requests_cancelled")
	a.cancel.OnAllRequestsCancelled(reason)
}

func (a *adaptor) onStreamClosed(err error) {
	if a.stream == nil {
		return
	}
	defer a.recover("on_stream_closed")
	a.stream.OnStreamClosed(err)
}

func (a *adaptor) onDrain(timeoutMS int64) {
	if a.drain == nil {
		return
	}
	defer a.recover("on_drain")
	a.drain.OnDrain(timeoutMS)
}

func (a *adaptor) onShutdown() {
	if a.shutdown == nil {
		return
	}
	defer a.recover("on_shutdown")
	a.shutdown.OnShutdown()
}

func (a *adaptor) recover(callback string) {
	if r := recover(); r != nil {
		a.log.Error("capability callback panicked", "callback", callback, "panic", r)
	}
}

// PassThrough is a minimal capability that allows everything. Useful as
// an embedding base for capabilities that only care about a subset of
// events, and as the default for smoke tests.
type PassThrough struct{}

// OnRequest allows every request.
func (PassThrough) OnRequest(ctx context.Context, req *Request) *decision.Decision {
	return decision.Allow()
}
