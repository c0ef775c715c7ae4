// Command pathguard blocks requests by path prefix, host, or method
// from a YAML rule file, with hot reload on file change.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/agentgate/agentgate/agent"
	"github.com/agentgate/agentgate/decision"
	"github.com/agentgate/agentgate/launcher"
	"github.com/agentgate/agentgate/rules"
)

type guard struct {
	set *rules.Set
}

func (g *guard) OnRequest(ctx context.Context, req *agent.Request) *decision.Decision {
	blocked, rule := g.set.Match(req.Method, req.Header("host"), req.Path())
	if !blocked {
		return decision.Allow()
	}
	body := g.set.Body()
	if body == "" {
		body = "blocked by pathguard"
	}
	return decision.Deny().
		WithStatus(g.set.Status()).
		WithBody(body).
		WithRuleID(rule).
		WithTag("pathguard")
}

func main() {
	var rulesPath string

	cmd := launcher.NewCommand("pathguard", "Path/host/method blocking agent",
		func(cfg launcher.Config) (agent.Capability, error) {
			set, err := rules.Load(rulesPath)
			if err != nil {
				return nil, err
			}
			log := launcher.NewLogger(cfg)
			if rulesPath != "" {
				reloader, err := rules.NewReloader(set, log)
				if err != nil {
					fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
				} else {
					go reloader.Run(context.Background())
				}
			}
			return &guard{set: set}, nil
		})
	cmd.Flags().StringVar(&rulesPath, "rules", "", "Path to rules YAML")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
