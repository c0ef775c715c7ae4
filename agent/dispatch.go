package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentgate/agentgate/decision"
	"github.com/agentgate/agentgate/protocol"
)

var errAgentTimeout = errors.New("agent: capability call timed out")

// dispatcher translates decoded inbound events into capability calls and
// capability results into decisions. One dispatcher per connection;
// dispatch is strictly sequential on that connection.
type dispatcher struct {
	cache          *requestCache
	ad             *adaptor
	log            *slog.Logger
	stats          *stats
	requestTimeout time.Duration
	draining       func() bool
}

// handleRequestHeaders starts a request lifecycle. While draining, new
// requests are refused without creating a context or consulting the
// capability.
func (d *dispatcher) handleRequestHeaders(ctx context.Context, key RequestKey, ev *protocol.RequestHeadersEvent, hasBody bool) *decision.Decision {
	if d.draining() {
		return decision.Deny().WithStatus(503).WithBody("Agent is draining")
	}

	req := &Request{
		Key:      key,
		Metadata: ev.Metadata,
		Method:   ev.Method,
		URI:      ev.URI,
		Headers:  Headers(ev.Headers),
		HasBody:  hasBody,
	}
	d.cache.putOnHeaders(key, req)
	d.stats.requestStarted()

	dec, err := d.invoke(ctx, key, func(callCtx context.Context) *decision.Decision {
		return d.ad.cap.OnRequest(callCtx, req)
	})
	if err != nil {
		return d.requestSideFailure(key, "request_headers", err)
	}
	return dec
}

// handleRequestBody appends one decoded chunk. Only the final chunk
// triggers the capability, with the full accumulated body.
func (d *dispatcher) handleRequestBody(ctx context.Context, key RequestKey, data []byte, isLast bool) *decision.Decision {
	rctx := d.cache.get(key)
	if rctx == nil {
		d.log.Warn("request body chunk without context", "key", key.String())
		return decision.Allow()
	}
	rctx.appendChunk(data)
	if !isLast {
		return decision.Allow()
	}
	if d.ad.body == nil {
		return decision.Allow()
	}

	req := rctx.Request
	req.Body = rctx.body()

	dec, err := d.invoke(ctx, key, func(callCtx context.Context) *decision.Decision {
		return d.ad.body.OnRequestBody(callCtx, req)
	})
	if err != nil {
		return d.requestSideFailure(key, "request_body", err)
	}
	return dec
}

// handleResponseHeaders snapshots the upstream response status and
// headers. Capability failures on the response side degrade to Allow so
// the agent never converts an upstream success into a failure.
func (d *dispatcher) handleResponseHeaders(ctx context.Context, key RequestKey, status int, headers map[string][]string) *decision.Decision {
	rctx := d.cache.get(key)
	if rctx == nil {
		d.log.Warn("response headers without context", "key", key.String())
		return decision.Allow()
	}
	rctx.Response = &Response{Status: status, Headers: Headers(headers)}
	if d.ad.resp == nil {
		return decision.Allow()
	}

	dec, err := d.invoke(ctx, key, func(callCtx context.Context) *decision.Decision {
		return d.ad.resp.OnResponse(callCtx, rctx.Request, rctx.Response)
	})
	if err != nil {
		d.log.Error("capability failed on response headers", "key", key.String(), "error", err)
		return decision.Allow()
	}
	return dec
}

// handleResponseBody delivers one response chunk. Response bodies are
// per-chunk: no accumulation, and a chunk arriving before the response
// headers is rejected with a warning Allow, never synthesized around.
func (d *dispatcher) handleResponseBody(ctx context.Context, key RequestKey, data []byte, chunkIndex int, isLast bool) *decision.Decision {
	rctx := d.cache.get(key)
	if rctx == nil {
		d.log.Warn("response body chunk without context", "key", key.String())
		return decision.Allow()
	}
	if rctx.Response == nil {
		d.log.Warn("response body chunk before response headers", "key", key.String())
		return decision.Allow()
	}
	if d.ad.respBody == nil {
		return decision.Allow()
	}

	view := &Response{
		Status:     rctx.Response.Status,
		Headers:    rctx.Response.Headers,
		Body:       data,
		ChunkIndex: chunkIndex,
		IsLast:     isLast,
	}
	dec, err := d.invoke(ctx, key, func(callCtx context.Context) *decision.Decision {
		return d.ad.respBody.OnResponseBody(callCtx, rctx.Request, view)
	})
	if err != nil {
		d.log.Error("capability failed on response body", "key", key.String(), "error", err)
		return decision.Allow()
	}
	return dec
}

// handleComplete ends a request lifecycle. No reply.
func (d *dispatcher) handleComplete(key RequestKey, status int, durationMS int64) {
	rctx := d.cache.removeOnTerminal(key)
	if rctx == nil {
		return
	}
	d.stats.requestEnded()
	d.ad.onRequestComplete(rctx.Request, status, durationMS)
}

// handleCancel removes one context and notifies the capability. In-flight
// calls for the key are not interrupted. No reply.
func (d *dispatcher) handleCancel(key RequestKey, reason string) {
	rctx := d.cache.removeOnTerminal(key)
	if rctx == nil {
		return
	}
	d.stats.requestEnded()
	d.ad.onRequestCancelled(key, reason)
}

// handleCancelAll clears the whole request map. No reply.
func (d *dispatcher) handleCancelAll(reason string) {
	keys := d.cache.clear()
	for range keys {
		d.stats.requestEnded()
	}
	d.ad.onAllRequestsCancelled(reason)
}

// handleConfigure delivers v1 proxy configuration.
func (d *dispatcher) handleConfigure(ctx context.Context, ev *protocol.ConfigureEvent) *decision.Decision {
	if err := d.ad.onConfigure(ctx, ev.AgentID, ev.Config); err != nil {
		d.log.Error("capability failed on configure", "agent_id", ev.AgentID, "error", err)
		return decision.Deny().WithStatus(500).WithBody(fmt.Sprintf("Agent error: %v", err))
	}
	return decision.Allow()
}

// handleWebSocketFrame delivers one relayed WebSocket frame.
func (d *dispatcher) handleWebSocketFrame(ctx context.Context, ev *protocol.WebSocketFrameEvent) *decision.Decision {
	if d.ad.websocket == nil {
		return decision.Allow()
	}
	key := KeyV1(ev.CorrelationID)
	dec, err := d.invoke(ctx, key, func(callCtx context.Context) *decision.Decision {
		return d.ad.websocket.OnWebSocketFrame(callCtx, ev)
	})
	if err != nil {
		return d.requestSideFailure(key, "websocket_frame", err)
	}
	return dec
}

// requestSideFailure maps a capability failure on a request-side event to
// the canonical 500 block. Timeouts additionally notify the cancel
// observer; the context stays live (only terminal events remove it).
func (d *dispatcher) requestSideFailure(key RequestKey, event string, err error) *decision.Decision {
	d.log.Error("capability failed", "event", event, "key", key.String(), "error", err)
	if errors.Is(err, errAgentTimeout) {
		d.ad.onRequestCancelled(key, "timeout")
		return decision.Deny().WithStatus(500).WithBody("Agent timeout")
	}
	return decision.Deny().WithStatus(500).WithBody(fmt.Sprintf("Agent error: %v", err))
}

// invoke runs one capability call with panic isolation, the optional
// per-call timeout, and stats accounting. A nil decision from the
// capability means Allow.
func (d *dispatcher) invoke(ctx context.Context, key RequestKey, fn func(context.Context) *decision.Decision) (*decision.Decision, error) {
	start := time.Now()
	dec, err := d.call(ctx, fn)
	if dec == nil {
		dec = decision.Allow()
	}
	d.stats.observe(time.Since(start), dec.IsBlocking(), err != nil)
	if err != nil {
		return nil, err
	}
	return dec, nil
}

func (d *dispatcher) call(ctx context.Context, fn func(context.Context) *decision.Decision) (dec *decision.Decision, err error) {
	if d.requestTimeout <= 0 {
		defer func() {
			if r := recover(); r != nil {
				dec, err = nil, fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(ctx), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, d.requestTimeout)
	defer cancel()

	type result struct {
		dec *decision.Decision
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{nil, fmt.Errorf("panic: %v", r)}
			}
		}()
		done <- result{fn(callCtx), nil}
	}()

	select {
	case res := <-done:
		return res.dec, res.err
	case <-callCtx.Done():
		// The goroutine keeps running until the capability notices the
		// cancelled context; forcible interruption is not part of the
		// contract.
		return nil, errAgentTimeout
	}
}
