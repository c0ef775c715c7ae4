// Package agenttest provides a scripted proxy-side peer for exercising
// an agent over a real socket. Capability authors use it to drive full
// request lifecycles against their agent in tests without standing up a
// proxy.
package agenttest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/agentgate/agentgate/protocol"
	"github.com/agentgate/agentgate/wire"
)

// Peer is one proxy-side connection to an agent. Methods that expect a
// reply block until the reply frame arrives or Timeout expires. A Peer
// is not safe for concurrent use; drive it from one goroutine, the way
// a proxy connection's event stream is ordered.
type Peer struct {
	// Timeout bounds each read. Defaults to 5s.
	Timeout time.Duration

	nc  net.Conn
	r   *wire.Reader
	w   *wire.Writer
	enc wire.Encoding
}

// Dial connects to an agent endpoint ("unix" + socket path, or "tcp" +
// host:port).
func Dial(network, addr string) (*Peer, error) {
	nc, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("agenttest: dial: %w", err)
	}
	maxPayload := wire.MaxPayloadTCP
	if network == "unix" {
		maxPayload = wire.MaxPayloadUDS
	}
	return &Peer{
		Timeout: 5 * time.Second,
		nc:      nc,
		r:       wire.NewReader(nc, maxPayload),
		w:       wire.NewWriter(nc),
		enc:     wire.JSONEncoding{},
	}, nil
}

// Close tears the connection down.
func (p *Peer) Close() error { return p.nc.Close() }

// Handshake performs the v2 handshake and adopts whatever payload
// encoding the agent selects from the offered names (JSON when none are
// offered).
func (p *Peer) Handshake(clientName string, encodings ...string) (protocol.HandshakeResponse, error) {
	var resp protocol.HandshakeResponse
	req := protocol.HandshakeRequest{
		ProtocolVersion:    protocol.VersionV2,
		ClientName:         clientName,
		SupportedFeatures:  []string{},
		SupportedEncodings: encodings,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("agenttest: marshal handshake: %w", err)
	}
	if err := p.w.WriteFrameV2(wire.TagHandshakeReq, payload); err != nil {
		return resp, fmt.Errorf("agenttest: send handshake: %w", err)
	}

	tag, reply, err := p.readFrame()
	if err != nil {
		return resp, err
	}
	if tag != wire.TagHandshakeResp {
		return resp, fmt.Errorf("agenttest: handshake reply tag 0x%02X", tag)
	}
	if err := json.Unmarshal(reply, &resp); err != nil {
		return resp, fmt.Errorf("agenttest: decode handshake: %w", err)
	}
	if enc, ok := wire.EncodingByName(resp.Encoding); ok {
		p.enc = enc
	}
	return resp, nil
}

// RequestHeaders sends a request-headers event and returns the decision.
func (p *Peer) RequestHeaders(id int64, method, uri string, headers map[string][]string, hasBody bool) (protocol.DecisionMessageV2, error) {
	if headers == nil {
		headers = map[string][]string{}
	}
	ev := protocol.RequestHeadersV2{
		RequestHeadersEvent: protocol.RequestHeadersEvent{
			Metadata: protocol.RequestMetadata{
				ClientIP:  "127.0.0.1",
				Protocol:  "HTTP/1.1",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
			Method:  method,
			URI:     uri,
			Headers: headers,
		},
		RequestID: id,
		HasBody:   hasBody,
	}
	return p.roundTrip(wire.TagRequestHeaders, ev)
}

// RequestBodyChunk sends one request body chunk and returns the
// decision.
func (p *Peer) RequestBodyChunk(id int64, chunkIndex int, data []byte, isLast bool) (protocol.DecisionMessageV2, error) {
	ev := protocol.RequestBodyChunkV2{
		RequestID:  id,
		Data:       base64.StdEncoding.EncodeToString(data),
		ChunkIndex: chunkIndex,
		IsLast:     isLast,
	}
	return p.roundTrip(wire.TagRequestBodyChunk, ev)
}

// ResponseHeaders sends the upstream response headers and returns the
// decision.
func (p *Peer) ResponseHeaders(id int64, status int, headers map[string][]string, hasBody bool) (protocol.DecisionMessageV2, error) {
	if headers == nil {
		headers = map[string][]string{}
	}
	ev := protocol.ResponseHeadersV2{
		RequestID:  id,
		StatusCode: status,
		Headers:    headers,
		HasBody:    hasBody,
	}
	return p.roundTrip(wire.TagResponseHeaders, ev)
}

// ResponseBodyChunk sends one response body chunk and returns the
// decision.
func (p *Peer) ResponseBodyChunk(id int64, chunkIndex int, data []byte, isLast bool) (protocol.DecisionMessageV2, error) {
	ev := protocol.ResponseBodyChunkV2{
		RequestID:  id,
		Data:       base64.StdEncoding.EncodeToString(data),
		ChunkIndex: chunkIndex,
		IsLast:     isLast,
	}
	return p.roundTrip(wire.TagResponseBodyChunk, ev)
}

// CancelRequest aborts one request. No reply is read; the cancel
// message produces none.
func (p *Peer) CancelRequest(id int64, reason string) error {
	return p.send(wire.TagCancelRequest, protocol.CancelRequestMessage{RequestID: id, Reason: reason})
}

// CancelAll aborts every request on the connection. No reply is read.
func (p *Peer) CancelAll(reason string) error {
	return p.send(wire.TagCancelAll, protocol.CancelAllMessage{Reason: reason})
}

// Ping sends a keep-alive probe and waits for the Pong. Because replies
// are written in event order, Ping doubles as a wire barrier: once the
// Pong arrives, every earlier event has been fully processed.
func (p *Peer) Ping() error {
	if err := p.w.WriteFrameV2(wire.TagPing, nil); err != nil {
		return fmt.Errorf("agenttest: send ping: %w", err)
	}
	tag, _, err := p.readFrame()
	if err != nil {
		return err
	}
	if tag != wire.TagPong {
		return fmt.Errorf("agenttest: ping reply tag 0x%02X", tag)
	}
	return nil
}

// SendV1 sends one v1 envelope and, when expectReply is set, returns
// the decoded AgentResponse. Use it against an agent running the legacy
// profile.
func (p *Peer) SendV1(eventType protocol.EventType, payload any, expectReply bool) (*protocol.AgentResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("agenttest: marshal payload: %w", err)
	}
	env, err := json.Marshal(protocol.AgentRequest{
		Version:   protocol.VersionV1,
		EventType: eventType,
		Payload:   raw,
	})
	if err != nil {
		return nil, fmt.Errorf("agenttest: marshal envelope: %w", err)
	}
	if err := p.w.WriteFrameV1(env); err != nil {
		return nil, fmt.Errorf("agenttest: send envelope: %w", err)
	}
	if !expectReply {
		return nil, nil
	}

	p.nc.SetReadDeadline(time.Now().Add(p.Timeout))
	reply, err := p.r.ReadFrameV1()
	if err != nil {
		return nil, fmt.Errorf("agenttest: read reply: %w", err)
	}
	var resp protocol.AgentResponse
	if err := json.Unmarshal(reply, &resp); err != nil {
		return nil, fmt.Errorf("agenttest: decode reply: %w", err)
	}
	return &resp, nil
}

func (p *Peer) send(tag byte, v any) error {
	payload, err := p.enc.Marshal(v)
	if err != nil {
		return fmt.Errorf("agenttest: marshal %s: %w", wire.TagName(tag), err)
	}
	if err := p.w.WriteFrameV2(tag, payload); err != nil {
		return fmt.Errorf("agenttest: send %s: %w", wire.TagName(tag), err)
	}
	return nil
}

func (p *Peer) roundTrip(tag byte, v any) (protocol.DecisionMessageV2, error) {
	var dec protocol.DecisionMessageV2
	if err := p.send(tag, v); err != nil {
		return dec, err
	}
	replyTag, payload, err := p.readFrame()
	if err != nil {
		return dec, err
	}
	if replyTag != wire.TagDecision {
		return dec, fmt.Errorf("agenttest: reply tag 0x%02X, want decision", replyTag)
	}
	if err := p.enc.Unmarshal(payload, &dec); err != nil {
		return dec, fmt.Errorf("agenttest: decode decision: %w", err)
	}
	return dec, nil
}

// readFrame reads one frame, transparently answering agent-initiated
// Pings with a Pong and skipping them so scripted tests are not
// disturbed by keep-alive traffic.
func (p *Peer) readFrame() (byte, []byte, error) {
	for {
		p.nc.SetReadDeadline(time.Now().Add(p.Timeout))
		tag, payload, err := p.r.ReadFrameV2()
		if err != nil {
			return 0, nil, fmt.Errorf("agenttest: read: %w", err)
		}
		if tag == wire.TagPing {
			if err := p.w.WriteFrameV2(wire.TagPong, nil); err != nil {
				return 0, nil, fmt.Errorf("agenttest: answer ping: %w", err)
			}
			continue
		}
		return tag, payload, nil
	}
}
