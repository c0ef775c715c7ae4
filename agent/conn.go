package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/agentgate/agentgate/audit"
	"github.com/agentgate/agentgate/decision"
	"github.com/agentgate/agentgate/protocol"
	"github.com/agentgate/agentgate/wire"
)

// serverConn is one accepted connection: a read → dispatch → write loop
// plus, on v2, the handshake and the optional keep-alive initiator. A
// hung capability call blocks only its own connection.
type serverConn struct {
	srv     *Server
	nc      net.Conn
	r       *wire.Reader
	w       *wire.Writer
	enc     wire.Encoding
	disp    *dispatcher
	log     *slog.Logger
	id      string
	traceID string

	stopPing chan struct{}
}

// run drives the connection to completion and reports the terminal error
// (nil on clean EOF) to the stream observer.
func (c *serverConn) run(ctx context.Context) {
	var err error
	if c.srv.protocolVersion == protocol.VersionV1 {
		err = c.loopV1(ctx)
	} else {
		err = c.runV2(ctx)
	}

	if err != nil && !isClosedErr(err) {
		c.log.Error("connection terminated", "error", err)
	} else {
		c.log.Debug("connection closed")
		err = nil
	}

	// Teardown implicitly cancels every context still live on this
	// connection.
	for range c.disp.cache.clear() {
		c.disp.stats.requestEnded()
	}
	c.srv.ad.onStreamClosed(err)
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// runV2 performs the handshake, then enters the frame loop.
func (c *serverConn) runV2(ctx context.Context) error {
	if err := c.handshake(); err != nil {
		return err
	}
	if c.srv.keepAliveInterval > 0 {
		c.stopPing = make(chan struct{})
		go c.keepAlive()
		defer close(c.stopPing)
	}
	return c.loopV2(ctx)
}

// handshake reads exactly one frame within the handshake timeout; any
// frame other than a handshake request terminates the connection.
func (c *serverConn) handshake() error {
	if err := c.nc.SetReadDeadline(time.Now().Add(c.srv.handshakeTimeout)); err != nil {
		return fmt.Errorf("set handshake deadline: %w", err)
	}
	tag, payload, err := c.r.ReadFrameV2()
	if err != nil {
		return fmt.Errorf("handshake read: %w", err)
	}
	if err := c.nc.SetReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("clear handshake deadline: %w", err)
	}
	if tag != wire.TagHandshakeReq {
		return fmt.Errorf("first frame is %s, not handshake_request", wire.TagName(tag))
	}

	var req protocol.HandshakeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("handshake decode: %w", err)
	}
	if req.ProtocolVersion != protocol.VersionV2 {
		// Deliberate forward-compatibility: the peer's declared version
		// is not enforced.
		c.log.Warn("protocol version mismatch", "peer_version", req.ProtocolVersion, "client", req.ClientName)
	}

	c.enc = c.negotiateEncoding(req.SupportedEncodings)

	resp := protocol.HandshakeResponse{
		ProtocolVersion: protocol.VersionV2,
		AgentName:       c.srv.agentName,
		Capabilities:    c.srv.ad.capabilities(),
		Encoding:        c.enc.Name(),
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("handshake encode: %w", err)
	}
	if err := c.w.WriteFrameV2(wire.TagHandshakeResp, out); err != nil {
		return fmt.Errorf("handshake write: %w", err)
	}
	c.log.Debug("handshake complete", "client", req.ClientName, "encoding", c.enc.Name())
	return nil
}

// negotiateEncoding picks the first peer-offered encoding the agent
// enables. JSON is the fallback and always available.
func (c *serverConn) negotiateEncoding(offered []string) wire.Encoding {
	for _, name := range offered {
		for _, enabled := range c.srv.encodings {
			if name == enabled {
				if enc, ok := wire.EncodingByName(name); ok {
					return enc
				}
			}
		}
	}
	return wire.JSONEncoding{}
}

// keepAlive initiates Pings at the configured interval. The peer's Pongs
// are absorbed by the read loop.
func (c *serverConn) keepAlive() {
	ticker := time.NewTicker(c.srv.keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopPing:
			return
		case <-ticker.C:
			if err := c.w.WriteFrameV2(wire.TagPing, nil); err != nil {
				return
			}
		}
	}
}

// loopV2 is the multiplexed frame loop. Frames are processed strictly in
// wire order; replies are written in processing order.
func (c *serverConn) loopV2(ctx context.Context) error {
	for {
		tag, payload, err := c.r.ReadFrameV2()
		if err != nil {
			return err
		}

		switch tag {
		case wire.TagRequestHeaders:
			var ev protocol.RequestHeadersV2
			if err := c.enc.Unmarshal(payload, &ev); err != nil {
				return fmt.Errorf("decode request_headers: %w", err)
			}
			dec := c.disp.handleRequestHeaders(ctx, KeyV2(ev.RequestID), &ev.RequestHeadersEvent, ev.HasBody)
			if err := c.replyV2(ev.RequestID, "request_headers", dec); err != nil {
				return err
			}

		case wire.TagRequestBodyChunk:
			var ev protocol.RequestBodyChunkV2
			if err := c.enc.Unmarshal(payload, &ev); err != nil {
				return fmt.Errorf("decode request_body_chunk: %w", err)
			}
			data, err := base64.StdEncoding.DecodeString(ev.Data)
			if err != nil {
				return fmt.Errorf("request body chunk base64: %w", err)
			}
			dec := c.disp.handleRequestBody(ctx, KeyV2(ev.RequestID), data, ev.IsLast)
			if err := c.replyV2(ev.RequestID, "request_body_chunk", dec); err != nil {
				return err
			}

		case wire.TagResponseHeaders:
			var ev protocol.ResponseHeadersV2
			if err := c.enc.Unmarshal(payload, &ev); err != nil {
				return fmt.Errorf("decode response_headers: %w", err)
			}
			dec := c.disp.handleResponseHeaders(ctx, KeyV2(ev.RequestID), ev.StatusCode, ev.Headers)
			if err := c.replyV2(ev.RequestID, "response_headers", dec); err != nil {
				return err
			}

		case wire.TagResponseBodyChunk:
			var ev protocol.ResponseBodyChunkV2
			if err := c.enc.Unmarshal(payload, &ev); err != nil {
				return fmt.Errorf("decode response_body_chunk: %w", err)
			}
			data, err := base64.StdEncoding.DecodeString(ev.Data)
			if err != nil {
				return fmt.Errorf("response body chunk base64: %w", err)
			}
			dec := c.disp.handleResponseBody(ctx, KeyV2(ev.RequestID), data, ev.ChunkIndex, ev.IsLast)
			if err := c.replyV2(ev.RequestID, "response_body_chunk", dec); err != nil {
				return err
			}

		case wire.TagCancelRequest:
			var msg protocol.CancelRequestMessage
			if err := c.enc.Unmarshal(payload, &msg); err != nil {
				return fmt.Errorf("decode cancel_request: %w", err)
			}
			c.disp.handleCancel(KeyV2(msg.RequestID), msg.Reason)

		case wire.TagCancelAll:
			var msg protocol.CancelAllMessage
			if err := c.enc.Unmarshal(payload, &msg); err != nil {
				return fmt.Errorf("decode cancel_all: %w", err)
			}
			c.disp.handleCancelAll(msg.Reason)

		case wire.TagPing:
			if err := c.w.WriteFrameV2(wire.TagPong, nil); err != nil {
				return err
			}

		case wire.TagPong:
			// Keep-alive acknowledged; nothing to do.

		case wire.TagHandshakeReq:
			return errors.New("duplicate handshake request")

		case wire.TagDecision, wire.TagBodyMutation, wire.TagHandshakeResp:
			c.log.Warn("unexpected agent-bound frame from peer", "type", wire.TagName(tag))

		default:
			c.log.Warn("unknown frame type, discarding", "tag", fmt.Sprintf("0x%02X", tag), "bytes", len(payload))
		}
	}
}

// replyV2 serialises one decision and writes it as a v2 frame.
func (c *serverConn) replyV2(requestID int64, event string, dec *decision.Decision) error {
	msg := dec.BuildV2(requestID)
	payload, err := c.enc.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	if err := c.w.WriteFrameV2(wire.TagDecision, payload); err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	c.recordAudit(event, KeyV2(requestID).String(), msg.Decision)
	return nil
}

// loopV1 is the legacy single-request loop: every frame is an
// AgentRequest envelope, and replies (when an event expects one) are
// AgentResponse frames in the same order.
func (c *serverConn) loopV1(ctx context.Context) error {
	for {
		payload, err := c.r.ReadFrameV1()
		if err != nil {
			return err
		}

		var env protocol.AgentRequest
		if err := json.Unmarshal(payload, &env); err != nil {
			return fmt.Errorf("decode envelope: %w", err)
		}
		if env.Version != protocol.VersionV1 {
			c.log.Warn("envelope version mismatch", "version", env.Version)
		}

		dec, reply, err := c.dispatchV1(ctx, &env)
		if err != nil {
			return err
		}
		if !reply {
			continue
		}
		if err := c.replyV1(string(env.EventType), keyV1OfEnvelope(&env), dec); err != nil {
			return err
		}
	}
}

// dispatchV1 decodes the envelope payload and dispatches. The second
// result reports whether the event expects a reply frame.
func (c *serverConn) dispatchV1(ctx context.Context, env *protocol.AgentRequest) (*decision.Decision, bool, error) {
	switch env.EventType {
	case protocol.EventConfigure:
		var ev protocol.ConfigureEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, false, fmt.Errorf("decode configure: %w", err)
		}
		return c.disp.handleConfigure(ctx, &ev), true, nil

	case protocol.EventRequestHeaders:
		var ev protocol.RequestHeadersEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, false, fmt.Errorf("decode request_headers: %w", err)
		}
		return c.disp.handleRequestHeaders(ctx, KeyV1(ev.Metadata.CorrelationID), &ev, false), true, nil

	case protocol.EventRequestBodyChunk:
		var ev protocol.RequestBodyChunkEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, false, fmt.Errorf("decode request_body_chunk: %w", err)
		}
		data, err := base64.StdEncoding.DecodeString(ev.Data)
		if err != nil {
			return nil, false, fmt.Errorf("request body chunk base64: %w", err)
		}
		return c.disp.handleRequestBody(ctx, KeyV1(ev.CorrelationID), data, ev.IsLast), true, nil

	case protocol.EventResponseHeaders:
		var ev protocol.ResponseHeadersEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, false, fmt.Errorf("decode response_headers: %w", err)
		}
		return c.disp.handleResponseHeaders(ctx, KeyV1(ev.CorrelationID), ev.Status, ev.Headers), true, nil

	case protocol.EventResponseBodyChunk:
		var ev protocol.ResponseBodyChunkEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, false, fmt.Errorf("decode response_body_chunk: %w", err)
		}
		data, err := base64.StdEncoding.DecodeString(ev.Data)
		if err != nil {
			return nil, false, fmt.Errorf("response body chunk base64: %w", err)
		}
		return c.disp.handleResponseBody(ctx, KeyV1(ev.CorrelationID), data, ev.ChunkIndex, ev.IsLast), true, nil

	case protocol.EventRequestComplete:
		var ev protocol.RequestCompleteEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, false, fmt.Errorf("decode request_complete: %w", err)
		}
		c.disp.handleComplete(KeyV1(ev.CorrelationID), ev.Status, ev.DurationMS)
		return nil, false, nil

	case protocol.EventWebSocketFrame:
		var ev protocol.WebSocketFrameEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, false, fmt.Errorf("decode websocket_frame: %w", err)
		}
		return c.disp.handleWebSocketFrame(ctx, &ev), true, nil

	default:
		c.log.Warn("unknown event type, discarding", "event_type", env.EventType)
		return nil, false, nil
	}
}

// keyV1OfEnvelope extracts the correlation id for audit purposes only;
// v1 replies carry no key on the wire.
func keyV1OfEnvelope(env *protocol.AgentRequest) string {
	var probe struct {
		CorrelationID string `json:"correlation_id"`
		Metadata      struct {
			CorrelationID string `json:"correlation_id"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(env.Payload, &probe); err != nil {
		return ""
	}
	if probe.CorrelationID != "" {
		return probe.CorrelationID
	}
	return probe.Metadata.CorrelationID
}

// replyV1 serialises one decision and writes it as a v1 frame.
func (c *serverConn) replyV1(event, key string, dec *decision.Decision) error {
	msg := dec.BuildV1()
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := c.w.WriteFrameV1(payload); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	c.recordAudit(event, key, msg.Decision)
	return nil
}

func (c *serverConn) recordAudit(event, key string, dec protocol.Decision) {
	if c.srv.auditLog == nil {
		return
	}
	err := c.srv.auditLog.Record(audit.Entry{
		TraceID:  c.traceID,
		ConnID:   c.id,
		Event:    event,
		Key:      key,
		Decision: dec.Type,
		Status:   dec.Status,
	})
	if err != nil {
		c.log.Error("audit record failed", "error", err)
	}
}
