package protocol

import "encoding/json"

// AgentRequest is the v1 envelope. The payload layout depends on EventType.
type AgentRequest struct {
	Version   int             `json:"version"`
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// RequestMetadata is the connection- and routing-level context the proxy
// snapshots when request headers arrive. CorrelationID is the v1 request
// key; RequestID is present when the peer also assigns v2-style ids.
type RequestMetadata struct {
	CorrelationID string `json:"correlation_id"`
	RequestID     int64  `json:"request_id,omitempty"`
	ClientIP      string `json:"client_ip"`
	ClientPort    int    `json:"client_port"`
	ServerName    string `json:"server_name,omitempty"`
	Protocol      string `json:"protocol"`
	TLSVersion    string `json:"tls_version,omitempty"`
	TLSCipher     string `json:"tls_cipher,omitempty"`
	RouteID       string `json:"route_id,omitempty"`
	UpstreamID    string `json:"upstream_id,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// RequestHeadersEvent starts a request lifecycle.
type RequestHeadersEvent struct {
	Metadata RequestMetadata     `json:"metadata"`
	Method   string              `json:"method"`
	URI      string              `json:"uri"`
	Headers  map[string][]string `json:"headers"`
}

// RequestBodyChunkEvent carries one base64-encoded piece of the request
// body. ChunkIndex is informational; chunks are concatenated in arrival
// order.
type RequestBodyChunkEvent struct {
	CorrelationID string `json:"correlation_id"`
	Data          string `json:"data"`
	IsLast        bool   `json:"is_last"`
	TotalSize     int64  `json:"total_size,omitempty"`
	ChunkIndex    int    `json:"chunk_index"`
	BytesReceived int64  `json:"bytes_received,omitempty"`
}

// ResponseHeadersEvent carries the upstream response status and headers.
type ResponseHeadersEvent struct {
	CorrelationID string              `json:"correlation_id"`
	Status        int                 `json:"status"`
	Headers       map[string][]string `json:"headers"`
}

// ResponseBodyChunkEvent carries one base64-encoded piece of the
// upstream response body.
type ResponseBodyChunkEvent struct {
	CorrelationID string `json:"correlation_id"`
	Data          string `json:"data"`
	IsLast        bool   `json:"is_last"`
	TotalSize     int64  `json:"total_size,omitempty"`
	ChunkIndex    int    `json:"chunk_index"`
	BytesSent     int64  `json:"bytes_sent,omitempty"`
}

// RequestCompleteEvent terminates a v1 request lifecycle. It expects no
// reply.
type RequestCompleteEvent struct {
	CorrelationID    string `json:"correlation_id"`
	Status           int    `json:"status"`
	DurationMS       int64  `json:"duration_ms"`
	RequestBodySize  int64  `json:"request_body_size"`
	ResponseBodySize int64  `json:"response_body_size"`
	UpstreamAttempts int    `json:"upstream_attempts"`
	Error            string `json:"error,omitempty"`
}

// ConfigureEvent delivers proxy-side configuration to the agent. v1 only;
// the v2 handshake carries no configuration record, so a v2 agent receives
// no proxy-side configuration.
type ConfigureEvent struct {
	AgentID string         `json:"agent_id"`
	Config  map[string]any `json:"config"`
}

// WebSocketFrameEvent carries one WebSocket frame observed by the proxy
// on an upgraded connection.
type WebSocketFrameEvent struct {
	CorrelationID string `json:"correlation_id"`
	Opcode        int    `json:"opcode"`
	Data          string `json:"data"`
	Fin           bool   `json:"fin"`
	Direction     string `json:"direction,omitempty"`
}
