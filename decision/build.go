package decision

import "github.com/agentgate/agentgate/protocol"

// wireDecision lowers the accumulated variant to its wire form, applying
// the documented defaults. lowerChallenge degrades a challenge to a 403
// block for the v2 profile, which has no challenge decision.
func (d *Decision) wireDecision(lowerChallenge bool) protocol.Decision {
	variant := d.variant
	if variant == "" {
		variant = protocol.DecisionAllow
	}

	switch variant {
	case protocol.DecisionBlock:
		status := d.status
		if status == 0 {
			status = 403
		}
		var headers map[string][]string
		if len(d.blockHeaders) > 0 {
			headers = d.blockHeaders
		}
		return protocol.Decision{
			Type:    protocol.DecisionBlock,
			Status:  status,
			Body:    d.body,
			Headers: headers,
		}

	case protocol.DecisionRedirect:
		status := d.status
		if status == 0 {
			status = 302
		}
		url := d.redirectURL
		if url == "" {
			url = "/"
		}
		return protocol.Decision{
			Type:   protocol.DecisionRedirect,
			Status: status,
			URL:    url,
		}

	case protocol.DecisionChallenge:
		if lowerChallenge {
			return protocol.Decision{
				Type:   protocol.DecisionBlock,
				Status: 403,
				Body:   "Challenge required",
			}
		}
		return protocol.Decision{
			Type:            protocol.DecisionChallenge,
			ChallengeType:   d.challengeType,
			ChallengeParams: d.challengeParams,
		}

	default:
		return protocol.Decision{Type: protocol.DecisionAllow}
	}
}

// wireAudit clamps confidence and drops the record entirely when empty.
func (d *Decision) wireAudit() *protocol.Audit {
	if d.audit.Empty() {
		return nil
	}
	out := d.audit
	if out.Confidence != nil {
		c := *out.Confidence
		if c < 0 {
			c = 0
		}
		if c > 1 {
			c = 1
		}
		out.Confidence = &c
	}
	return &out
}

// BuildV1 lowers the decision to the v1 reply record.
func (d *Decision) BuildV1() protocol.AgentResponse {
	return protocol.AgentResponse{
		Version:              protocol.VersionV1,
		Decision:             d.wireDecision(false),
		RequestHeaders:       d.requestHeaderOps,
		ResponseHeaders:      d.responseHeaderOps,
		RequestBodyMutation:  d.requestBodyMutation,
		ResponseBodyMutation: d.responseBodyMutation,
		RoutingMetadata:      d.routingMetadata,
		Audit:                d.wireAudit(),
		NeedsMore:            d.needsMore,
	}
}

// BuildV2 lowers the decision to the v2 reply record for the given
// request id. Challenge degrades to a 403 block on this profile.
func (d *Decision) BuildV2(requestID int64) protocol.DecisionMessageV2 {
	return protocol.DecisionMessageV2{
		RequestID:            requestID,
		Decision:             d.wireDecision(true),
		RequestHeaders:       d.requestHeaderOps,
		ResponseHeaders:      d.responseHeaderOps,
		RequestBodyMutation:  d.requestBodyMutation,
		ResponseBodyMutation: d.responseBodyMutation,
		RoutingMetadata:      d.routingMetadata,
		Audit:                d.wireAudit(),
		NeedsMore:            d.needsMore,
	}
}
