// Package wire implements the frame layer shared by both protocol
// profiles: 4-byte big-endian length prefixes, the v2 one-byte type tag,
// size limits, and pluggable payload encodings.
//
// Writers are atomic at the frame level: a frame is assembled in memory
// and handed to the connection in a single Write under a mutex, so the
// peer never observes a partial frame. Readers tolerate arbitrary
// short-read fragmentation and return either a complete frame or an
// error.
package wire

import "errors"

// Frame size limits. Limits apply to the declared payload length: the
// whole v1 JSON document, or the v2 payload excluding the tag byte.
const (
	// MaxFrameV1 bounds a v1 frame's JSON payload.
	MaxFrameV1 = 10 << 20

	// MaxPayloadUDS bounds a v2 payload on the Unix socket transport.
	MaxPayloadUDS = 16<<20 - 1

	// MaxPayloadTCP bounds a v2 payload on the TCP transport.
	MaxPayloadTCP = 10 << 20
)

// v2 frame type tags.
const (
	TagHandshakeReq      byte = 0x01
	TagHandshakeResp     byte = 0x02
	TagRequestHeaders    byte = 0x10
	TagRequestBodyChunk  byte = 0x11
	TagResponseHeaders   byte = 0x12
	TagResponseBodyChunk byte = 0x13
	TagDecision          byte = 0x20
	TagBodyMutation      byte = 0x21
	TagCancelRequest     byte = 0x30
	TagCancelAll         byte = 0x31
	TagPing              byte = 0xF0
	TagPong              byte = 0xF1
)

// KnownTag reports whether the codec recognises a v2 type tag. Frames
// with unknown tags are discarded by the reader's caller, never fatal.
func KnownTag(tag byte) bool {
	switch tag {
	case TagHandshakeReq, TagHandshakeResp,
		TagRequestHeaders, TagRequestBodyChunk,
		TagResponseHeaders, TagResponseBodyChunk,
		TagDecision, TagBodyMutation,
		TagCancelRequest, TagCancelAll,
		TagPing, TagPong:
		return true
	}
	return false
}

// TagName returns a stable lowercase name for a v2 type tag, for logs.
func TagName(tag byte) string {
	switch tag {
	case TagHandshakeReq:
		return "handshake_request"
	case TagHandshakeResp:
		return "handshake_response"
	case TagRequestHeaders:
		return "request_headers"
	case TagRequestBodyChunk:
		return "request_body_chunk"
	case TagResponseHeaders:
		return "response_headers"
	case TagResponseBodyChunk:
		return "response_body_chunk"
	case TagDecision:
		return "decision"
	case TagBodyMutation:
		return "body_mutation"
	case TagCancelRequest:
		return "cancel_request"
	case TagCancelAll:
		return "cancel_all"
	case TagPing:
		return "ping"
	case TagPong:
		return "pong"
	default:
		return "unknown"
	}
}

// Protocol errors. All of them are fatal to the connection that produced
// them, never to the process.
var (
	ErrFrameTooLarge = errors.New("wire: frame exceeds size limit")
	ErrZeroLength    = errors.New("wire: zero-length frame")
)
