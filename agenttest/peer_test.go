package agenttest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agentgate/agentgate/agent"
	"github.com/agentgate/agentgate/decision"
	"github.com/agentgate/agentgate/protocol"
)

type prefixBlocker struct{}

func (prefixBlocker) OnRequest(ctx context.Context, req *agent.Request) *decision.Decision {
	if strings.HasPrefix(req.Path(), "/blocked") {
		return decision.Deny().WithBody("no").WithRuleID("prefix")
	}
	return decision.Allow()
}

func (prefixBlocker) OnRequestBody(ctx context.Context, req *agent.Request) *decision.Decision {
	if strings.Contains(string(req.Body), "secret") {
		return decision.Deny().WithStatus(422).WithBody("leaked")
	}
	return decision.Allow()
}

func startAgent(t *testing.T, opts ...agent.Option) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "agent.sock")
	opts = append([]agent.Option{
		agent.WithUnixSocket(sock),
		agent.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	srv, err := agent.New(prefixBlocker{}, opts...)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(sock); err == nil {
			return sock
		}
		if time.Now().After(deadline) {
			t.Fatal("socket never appeared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPeerDrivesFullLifecycle(t *testing.T) {
	sock := startAgent(t)
	p, err := Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer p.Close()

	resp, err := p.Handshake("test-proxy")
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if resp.Encoding != "json" || !resp.Capabilities.HandlesRequestBody {
		t.Fatalf("handshake = %+v", resp)
	}

	dec, err := p.RequestHeaders(1, "GET", "/ok", nil, false)
	if err != nil {
		t.Fatalf("request headers: %v", err)
	}
	if dec.RequestID != 1 || dec.Decision.Type != protocol.DecisionAllow {
		t.Fatalf("decision = %+v", dec)
	}

	dec, err = p.RequestHeaders(2, "GET", "/blocked/x", nil, false)
	if err != nil {
		t.Fatalf("blocked headers: %v", err)
	}
	if dec.Decision.Type != protocol.DecisionBlock || dec.Decision.Body != "no" {
		t.Fatalf("blocked decision = %+v", dec)
	}

	dec, err = p.RequestHeaders(3, "POST", "/upload", nil, true)
	if err != nil {
		t.Fatalf("upload headers: %v", err)
	}
	if _, err := p.RequestBodyChunk(3, 0, []byte("se"), false); err != nil {
		t.Fatalf("chunk 0: %v", err)
	}
	dec, err = p.RequestBodyChunk(3, 1, []byte("cret"), true)
	if err != nil {
		t.Fatalf("chunk 1: %v", err)
	}
	if dec.Decision.Type != protocol.DecisionBlock || dec.Decision.Status != 422 {
		t.Fatalf("body decision = %+v", dec)
	}

	dec, err = p.ResponseHeaders(1, 200, nil, false)
	if err != nil {
		t.Fatalf("response headers: %v", err)
	}
	if dec.Decision.Type != protocol.DecisionAllow {
		t.Fatalf("response decision = %+v", dec)
	}

	if err := p.CancelRequest(1, "done"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := p.Ping(); err != nil {
		t.Fatalf("ping barrier: %v", err)
	}
}

func TestPeerSpeaksV1(t *testing.T) {
	sock := startAgent(t, agent.WithProtocolV1())
	p, err := Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer p.Close()

	resp, err := p.SendV1(protocol.EventRequestHeaders, protocol.RequestHeadersEvent{
		Metadata: protocol.RequestMetadata{CorrelationID: "c1", ClientIP: "1.1.1.1"},
		Method:   "GET",
		URI:      "/blocked/y",
		Headers:  map[string][]string{},
	}, true)
	if err != nil {
		t.Fatalf("send v1: %v", err)
	}
	if resp.Version != 1 || resp.Decision.Type != protocol.DecisionBlock || resp.Decision.Status != 403 {
		t.Fatalf("v1 reply = %+v", resp)
	}

	// request_complete is a notification: no reply frame.
	if _, err := p.SendV1(protocol.EventRequestComplete, protocol.RequestCompleteEvent{
		CorrelationID: "c1", Status: 403, DurationMS: 3,
	}, false); err != nil {
		t.Fatalf("complete: %v", err)
	}
}
