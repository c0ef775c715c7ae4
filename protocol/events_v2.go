package protocol

// HandshakeRequest is the first frame on every v2 connection.
type HandshakeRequest struct {
	ProtocolVersion    int      `json:"protocol_version"`
	ClientName         string   `json:"client_name"`
	SupportedFeatures  []string `json:"supported_features"`
	SupportedEncodings []string `json:"supported_encodings,omitempty"`
}

// HandshakeResponse advertises the agent's identity and capabilities.
// Encoding names the payload encoding for every subsequent frame on the
// connection.
type HandshakeResponse struct {
	ProtocolVersion int          `json:"protocol_version"`
	AgentName       string       `json:"agent_name"`
	Capabilities    Capabilities `json:"capabilities"`
	Encoding        string       `json:"encoding"`
}

// RequestHeadersV2 is the v2 request-headers event: the v1 record plus a
// top-level request id and body indicator.
type RequestHeadersV2 struct {
	RequestHeadersEvent
	RequestID int64 `json:"request_id"`
	HasBody   bool  `json:"has_body"`
}

// RequestBodyChunkV2 carries one base64-encoded piece of the request body.
type RequestBodyChunkV2 struct {
	RequestID     int64  `json:"request_id"`
	Data          string `json:"data"`
	IsLast        bool   `json:"is_last"`
	TotalSize     int64  `json:"total_size,omitempty"`
	ChunkIndex    int    `json:"chunk_index"`
	BytesReceived int64  `json:"bytes_received,omitempty"`
}

// ResponseHeadersV2 carries the upstream response status and headers.
type ResponseHeadersV2 struct {
	RequestID  int64               `json:"request_id"`
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	HasBody    bool                `json:"has_body"`
}

// ResponseBodyChunkV2 carries one base64-encoded piece of the upstream
// response body.
type ResponseBodyChunkV2 struct {
	RequestID  int64  `json:"request_id"`
	Data       string `json:"data"`
	IsLast     bool   `json:"is_last"`
	TotalSize  int64  `json:"total_size,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	BytesSent  int64  `json:"bytes_sent,omitempty"`
}

// CancelRequestMessage aborts one in-flight request. No reply is sent.
type CancelRequestMessage struct {
	RequestID int64  `json:"request_id"`
	Reason    string `json:"reason,omitempty"`
}

// CancelAllMessage aborts every in-flight request on the connection.
type CancelAllMessage struct {
	Reason string `json:"reason,omitempty"`
}

// Ping and Pong are keep-alive probes. Either side may send a Ping; the
// peer replies with a Pong.
type Ping struct{}

// Pong acknowledges a Ping.
type Pong struct{}
