// Package agent is the protocol runtime for out-of-band traffic
// inspection agents. A user supplies a Capability; the runtime accepts
// proxy connections over a Unix socket or TCP, performs the v2 handshake,
// decodes events, correlates request lifecycles, invokes the capability
// one call at a time per connection (a call abandoned after a timeout may
// still be running), and writes decision replies in event order.
//
// Minimal agent:
//
//	type blocker struct{ agent.PassThrough }
//
//	func (blocker) OnRequest(ctx context.Context, req *agent.Request) *decision.Decision {
//	    if strings.HasPrefix(req.Path(), "/admin") {
//	        return decision.Deny().WithBody("forbidden").WithTag("admin-path")
//	    }
//	    return decision.Allow()
//	}
//
//	srv, err := agent.New(blocker{}, agent.WithUnixSocket("/tmp/agent.sock"))
//	if err != nil { ... }
//	err = srv.Start(ctx)
//
// The runtime guarantees exactly one reply frame for every event that
// expects one, even when the capability panics or times out: failures on
// request-side events reply with a 500 block, failures on response-side
// events reply with Allow so an upstream success is never converted into
// an agent-induced failure.
package agent
