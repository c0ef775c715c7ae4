// Command echoagent is the smallest useful agent: it allows every event
// and logs what it sees. Handy for verifying proxy wiring before any
// real inspection logic exists.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/agentgate/agentgate/agent"
	"github.com/agentgate/agentgate/decision"
	"github.com/agentgate/agentgate/launcher"
)

type echo struct {
	log *slog.Logger
}

func (e *echo) OnRequest(ctx context.Context, req *agent.Request) *decision.Decision {
	e.log.Info("request",
		"key", req.Key.String(),
		"method", req.Method,
		"path", req.Path(),
		"client_ip", req.ClientIP())
	return decision.Allow()
}

func (e *echo) OnResponse(ctx context.Context, req *agent.Request, resp *agent.Response) *decision.Decision {
	e.log.Info("response", "key", req.Key.String(), "status", resp.Status)
	return decision.Allow()
}

func (e *echo) OnRequestComplete(req *agent.Request, status int, durationMS int64) {
	e.log.Info("complete", "key", req.Key.String(), "status", status, "duration_ms", durationMS)
}

func main() {
	cmd := launcher.NewCommand("echoagent", "Log-and-allow inspection agent",
		func(cfg launcher.Config) (agent.Capability, error) {
			return &echo{log: launcher.NewLogger(cfg)}, nil
		})
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
