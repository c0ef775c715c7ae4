package protocol

import "encoding/json"

// Decision variant tags.
const (
	DecisionAllow     = "allow"
	DecisionBlock     = "block"
	DecisionRedirect  = "redirect"
	DecisionChallenge = "challenge"
)

// Header operation tags.
const (
	HeaderOpSet    = "set"
	HeaderOpAdd    = "add"
	HeaderOpRemove = "remove"
)

// Decision is the wire form of a verdict. Type selects the variant; the
// remaining fields are meaningful only for the variant that owns them.
type Decision struct {
	Type string `json:"type"`

	// Block: Status defaults to 403, Body and Headers are optional.
	// Redirect: URL defaults to "/", Status defaults to 302.
	Status  int                 `json:"status,omitempty"`
	Body    string              `json:"body,omitempty"`
	Headers map[string][]string `json:"headers,omitempty"`
	URL     string              `json:"url,omitempty"`

	// Challenge. The variant tag already occupies "type", so the
	// challenge's own type rides on challenge_type.
	ChallengeType   string         `json:"challenge_type,omitempty"`
	ChallengeParams map[string]any `json:"challenge_params,omitempty"`
}

// HeaderOp is one mutation of the live request or response headers.
// Names are case-preserving here; lookup on the peer side is
// case-insensitive.
type HeaderOp struct {
	Op    string `json:"op"`
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// BodyMutation instructs the proxy what to do with one body chunk.
// Data is deliberately not omitempty: a present-but-null data field means
// pass-through, an empty string drops the chunk, anything else replaces it
// with the decoded base64 payload. Absence of the whole mutation record
// means "no mutation".
type BodyMutation struct {
	Data       *string `json:"data"`
	ChunkIndex int     `json:"chunk_index"`
}

// Audit is the decision's audit metadata. The record is omitted from the
// wire entirely when every field is empty.
type Audit struct {
	Tags        []string                   `json:"tags,omitempty"`
	RuleIDs     []string                   `json:"rule_ids,omitempty"`
	Confidence  *float64                   `json:"confidence,omitempty"`
	ReasonCodes []string                   `json:"reason_codes,omitempty"`
	Custom      map[string]json.RawMessage `json:"custom,omitempty"`
}

// Empty reports whether the audit record carries no information.
func (a *Audit) Empty() bool {
	return a == nil || (len(a.Tags) == 0 && len(a.RuleIDs) == 0 &&
		a.Confidence == nil && len(a.ReasonCodes) == 0 && len(a.Custom) == 0)
}

// AgentResponse is the v1 reply record. v1 is single-request-per-
// connection, so replies correlate by order and carry no request key.
type AgentResponse struct {
	Version              int               `json:"version"`
	Decision             Decision          `json:"decision"`
	RequestHeaders       []HeaderOp        `json:"request_headers,omitempty"`
	ResponseHeaders      []HeaderOp        `json:"response_headers,omitempty"`
	RequestBodyMutation  *BodyMutation     `json:"request_body_mutation,omitempty"`
	ResponseBodyMutation *BodyMutation     `json:"response_body_mutation,omitempty"`
	RoutingMetadata      map[string]string `json:"routing_metadata,omitempty"`
	Audit                *Audit            `json:"audit,omitempty"`
	NeedsMore            bool              `json:"needs_more,omitempty"`
}

// DecisionMessageV2 is the v2 reply record, correlated by request id.
type DecisionMessageV2 struct {
	RequestID            int64             `json:"request_id"`
	Decision             Decision          `json:"decision"`
	RequestHeaders       []HeaderOp        `json:"request_headers,omitempty"`
	ResponseHeaders      []HeaderOp        `json:"response_headers,omitempty"`
	RequestBodyMutation  *BodyMutation     `json:"request_body_mutation,omitempty"`
	ResponseBodyMutation *BodyMutation     `json:"response_body_mutation,omitempty"`
	RoutingMetadata      map[string]string `json:"routing_metadata,omitempty"`
	Audit                *Audit            `json:"audit,omitempty"`
	NeedsMore            bool              `json:"needs_more,omitempty"`
}
