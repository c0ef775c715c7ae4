// Package protocol defines every record that crosses the wire between the
// proxy and an agent, for both wire profiles:
//
//   - v1: one request per connection, each frame a JSON AgentRequest
//     envelope carrying an event_type and a payload object.
//   - v2: multiplexed, each frame a type-tagged payload with a 64-bit
//     request id; adds handshake, keep-alive, and cancellation messages.
//
// JSON conventions: unknown fields are ignored on decode, unset optional
// fields are omitted (never emitted as null, with the single documented
// exception of a body-mutation pass-through), enum values are lowercase
// snake_case, and discriminated variants carry their tag in-band ("type"
// for decisions, "event_type" for v1 events, "op" for header operations).
package protocol

// Protocol versions. Fixed at startup, never mutated.
const (
	VersionV1 = 1
	VersionV2 = 2
)

// EventType identifies a v1 event carried inside an AgentRequest envelope.
type EventType string

const (
	EventConfigure         EventType = "configure"
	EventRequestHeaders    EventType = "request_headers"
	EventRequestBodyChunk  EventType = "request_body_chunk"
	EventResponseHeaders   EventType = "response_headers"
	EventResponseBodyChunk EventType = "response_body_chunk"
	EventRequestComplete   EventType = "request_complete"
	EventWebSocketFrame    EventType = "websocket_frame"
)

// EncodingJSON is the default payload encoding; every agent offers it.
const EncodingJSON = "json"

// EncodingCBOR is the optional negotiated v2 payload encoding.
const EncodingCBOR = "cbor"
