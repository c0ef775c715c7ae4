package protocol

// Capabilities is advertised once in the handshake response and is
// immutable for the life of the connection.
type Capabilities struct {
	HandlesRequestHeaders  bool     `json:"handles_request_headers"`
	HandlesRequestBody     bool     `json:"handles_request_body"`
	HandlesResponseHeaders bool     `json:"handles_response_headers"`
	HandlesResponseBody    bool     `json:"handles_response_body"`
	SupportsStreaming      bool     `json:"supports_streaming"`
	SupportsCancellation   bool     `json:"supports_cancellation"`
	MaxConcurrentRequests  int      `json:"max_concurrent_requests,omitempty"`
	SupportedFeatures      []string `json:"supported_features,omitempty"`
}

// Health states.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// HealthStatus is the agent's self-reported condition.
type HealthStatus struct {
	State        string  `json:"state"`
	Reason       string  `json:"reason,omitempty"`
	Load         float64 `json:"load,omitempty"`
	RetryAfterMS int64   `json:"retry_after_ms,omitempty"`
}

// Healthy is the zero-reason healthy status.
func Healthy() HealthStatus { return HealthStatus{State: HealthHealthy} }

// Degraded reports a degraded condition with an optional load figure.
func Degraded(reason string, load float64) HealthStatus {
	return HealthStatus{State: HealthDegraded, Reason: reason, Load: load}
}

// Unhealthy reports an unhealthy condition and how long the peer should
// back off before retrying.
func Unhealthy(reason string, retryAfterMS int64) HealthStatus {
	return HealthStatus{State: HealthUnhealthy, Reason: reason, RetryAfterMS: retryAfterMS}
}

// MetricsReport is a point-in-time snapshot of the agent's counters.
type MetricsReport struct {
	Processed     int64              `json:"processed"`
	Blocked       int64              `json:"blocked"`
	Allowed       int64              `json:"allowed"`
	Errors        int64              `json:"errors"`
	Active        int64              `json:"active"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	AvgLatencyMS  float64            `json:"avg_latency_ms"`
	P99LatencyMS  float64            `json:"p99_latency_ms"`
	Custom        map[string]float64 `json:"custom,omitempty"`
}
