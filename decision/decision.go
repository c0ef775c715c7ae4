// Package decision provides the verdict builder that inspection
// capabilities return from their handlers. A Decision accumulates one
// variant (allow, block, redirect, or challenge), header operations, body
// mutations, routing metadata, and audit metadata, and lowers to the v1
// or v2 wire record when the runtime serialises the reply.
//
// Builders are plain accumulators, not handles: every mutator returns the
// same *Decision for chaining, and calling a variant setter again simply
// replaces the variant (last one wins).
package decision

import (
	"encoding/base64"
	"encoding/json"

	"github.com/agentgate/agentgate/protocol"
)

// Decision accumulates a verdict and its side effects.
type Decision struct {
	variant string

	status          int
	body            string
	blockHeaders    map[string][]string
	redirectURL     string
	challengeType   string
	challengeParams map[string]any

	requestHeaderOps  []protocol.HeaderOp
	responseHeaderOps []protocol.HeaderOp

	requestBodyMutation  *protocol.BodyMutation
	responseBodyMutation *protocol.BodyMutation

	routingMetadata map[string]string
	audit           protocol.Audit
	needsMore       bool
}

// Allow permits the event with no side effects beyond any accumulated
// header operations and metadata.
func Allow() *Decision {
	return &Decision{variant: protocol.DecisionAllow}
}

// Deny blocks the request. Status defaults to 403 on the wire.
func Deny() *Decision {
	return &Decision{variant: protocol.DecisionBlock}
}

// Redirect sends the client elsewhere. Status defaults to 302 on the
// wire; an empty url is emitted as "/".
func Redirect(url string) *Decision {
	return &Decision{variant: protocol.DecisionRedirect, redirectURL: url}
}

// Challenge asks the proxy to interpose a challenge of the given type
// (e.g. "captcha"). v2 lacks a challenge decision, so on that profile it
// lowers to a 403 block.
func Challenge(challengeType string) *Decision {
	return &Decision{variant: protocol.DecisionChallenge, challengeType: challengeType}
}

// Block switches the variant to block. Last variant setter wins.
func (d *Decision) Block() *Decision {
	d.variant = protocol.DecisionBlock
	return d
}

// AllowIt switches the variant back to allow. Last variant setter wins.
func (d *Decision) AllowIt() *Decision {
	d.variant = protocol.DecisionAllow
	return d
}

// WithStatus sets the block or redirect status code.
func (d *Decision) WithStatus(status int) *Decision {
	d.status = status
	return d
}

// WithBody sets the block response body.
func (d *Decision) WithBody(body string) *Decision {
	d.body = body
	return d
}

// WithHeader adds a header to the synthesized block response.
func (d *Decision) WithHeader(name, value string) *Decision {
	if d.blockHeaders == nil {
		d.blockHeaders = make(map[string][]string)
	}
	d.blockHeaders[name] = append(d.blockHeaders[name], value)
	return d
}

// WithChallengeParam attaches a parameter to a challenge decision.
func (d *Decision) WithChallengeParam(key string, value any) *Decision {
	if d.challengeParams == nil {
		d.challengeParams = make(map[string]any)
	}
	d.challengeParams[key] = value
	return d
}

// SetRequestHeader records a set operation on the live request headers.
// Operations are emitted in insertion order, never sorted.
func (d *Decision) SetRequestHeader(name, value string) *Decision {
	d.requestHeaderOps = append(d.requestHeaderOps, protocol.HeaderOp{Op: protocol.HeaderOpSet, Name: name, Value: value})
	return d
}

// AddRequestHeader records an add operation on the live request headers.
func (d *Decision) AddRequestHeader(name, value string) *Decision {
	d.requestHeaderOps = append(d.requestHeaderOps, protocol.HeaderOp{Op: protocol.HeaderOpAdd, Name: name, Value: value})
	return d
}

// RemoveRequestHeader records a remove operation on the live request
// headers.
func (d *Decision) RemoveRequestHeader(name string) *Decision {
	d.requestHeaderOps = append(d.requestHeaderOps, protocol.HeaderOp{Op: protocol.HeaderOpRemove, Name: name})
	return d
}

// SetResponseHeader records a set operation on the live response headers.
func (d *Decision) SetResponseHeader(name, value string) *Decision {
	d.responseHeaderOps = append(d.responseHeaderOps, protocol.HeaderOp{Op: protocol.HeaderOpSet, Name: name, Value: value})
	return d
}

// AddResponseHeader records an add operation on the live response
// headers.
func (d *Decision) AddResponseHeader(name, value string) *Decision {
	d.responseHeaderOps = append(d.responseHeaderOps, protocol.HeaderOp{Op: protocol.HeaderOpAdd, Name: name, Value: value})
	return d
}

// RemoveResponseHeader records a remove operation on the live response
// headers.
func (d *Decision) RemoveResponseHeader(name string) *Decision {
	d.responseHeaderOps = append(d.responseHeaderOps, protocol.HeaderOp{Op: protocol.HeaderOpRemove, Name: name})
	return d
}

// ReplaceRequestBody replaces the request body chunk at chunkIndex.
func (d *Decision) ReplaceRequestBody(chunkIndex int, data []byte) *Decision {
	enc := base64.StdEncoding.EncodeToString(data)
	d.requestBodyMutation = &protocol.BodyMutation{Data: &enc, ChunkIndex: chunkIndex}
	return d
}

// DropRequestBody drops the request body chunk at chunkIndex.
func (d *Decision) DropRequestBody(chunkIndex int) *Decision {
	empty := ""
	d.requestBodyMutation = &protocol.BodyMutation{Data: &empty, ChunkIndex: chunkIndex}
	return d
}

// PassRequestBody marks the request body chunk at chunkIndex as
// explicitly untouched.
func (d *Decision) PassRequestBody(chunkIndex int) *Decision {
	d.requestBodyMutation = &protocol.BodyMutation{ChunkIndex: chunkIndex}
	return d
}

// ReplaceResponseBody replaces the response body chunk at chunkIndex.
func (d *Decision) ReplaceResponseBody(chunkIndex int, data []byte) *Decision {
	enc := base64.StdEncoding.EncodeToString(data)
	d.responseBodyMutation = &protocol.BodyMutation{Data: &enc, ChunkIndex: chunkIndex}
	return d
}

// DropResponseBody drops the response body chunk at chunkIndex.
func (d *Decision) DropResponseBody(chunkIndex int) *Decision {
	empty := ""
	d.responseBodyMutation = &protocol.BodyMutation{Data: &empty, ChunkIndex: chunkIndex}
	return d
}

// PassResponseBody marks the response body chunk at chunkIndex as
// explicitly untouched.
func (d *Decision) PassResponseBody(chunkIndex int) *Decision {
	d.responseBodyMutation = &protocol.BodyMutation{ChunkIndex: chunkIndex}
	return d
}

// WithRoutingMetadata attaches a routing hint for the proxy.
func (d *Decision) WithRoutingMetadata(key, value string) *Decision {
	if d.routingMetadata == nil {
		d.routingMetadata = make(map[string]string)
	}
	d.routingMetadata[key] = value
	return d
}

// WithTag appends an audit tag.
func (d *Decision) WithTag(tag string) *Decision {
	d.audit.Tags = append(d.audit.Tags, tag)
	return d
}

// WithRuleID appends the id of a rule that contributed to the verdict.
func (d *Decision) WithRuleID(id string) *Decision {
	d.audit.RuleIDs = append(d.audit.RuleIDs, id)
	return d
}

// WithConfidence records how confident the capability is in the verdict.
// Values are clamped to [0, 1] on emission.
func (d *Decision) WithConfidence(c float64) *Decision {
	d.audit.Confidence = &c
	return d
}

// WithReasonCode appends a machine-readable reason code.
func (d *Decision) WithReasonCode(code string) *Decision {
	d.audit.ReasonCodes = append(d.audit.ReasonCodes, code)
	return d
}

// WithCustom attaches an arbitrary JSON-serialisable value to the audit
// record. Values that fail to marshal are silently skipped.
func (d *Decision) WithCustom(key string, value any) *Decision {
	raw, err := json.Marshal(value)
	if err != nil {
		return d
	}
	if d.audit.Custom == nil {
		d.audit.Custom = make(map[string]json.RawMessage)
	}
	d.audit.Custom[key] = raw
	return d
}

// NeedsMoreData asks the proxy to keep streaming body chunks before the
// capability commits to a final verdict.
func (d *Decision) NeedsMoreData() *Decision {
	d.needsMore = true
	return d
}

// IsBlocking reports whether the decision stops the request (block or
// challenge variant).
func (d *Decision) IsBlocking() bool {
	return d.variant == protocol.DecisionBlock || d.variant == protocol.DecisionChallenge
}

// Variant returns the current variant tag.
func (d *Decision) Variant() string { return d.variant }
