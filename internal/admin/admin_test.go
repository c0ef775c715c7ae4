package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentgate/agentgate/protocol"
)

type fixedHealth protocol.HealthStatus

func (f fixedHealth) Health() protocol.HealthStatus { return protocol.HealthStatus(f) }

func TestHealthzReflectsCapabilityHealth(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	healthy := New(Config{}, fixedHealth(protocol.Healthy()), nil, log)
	rec := httptest.NewRecorder()
	healthy.serveHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy status = %d", rec.Code)
	}
	var hs protocol.HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &hs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hs.State != protocol.HealthHealthy {
		t.Fatalf("state = %q", hs.State)
	}

	sick := New(Config{}, fixedHealth(protocol.Unhealthy("overload", 2000)), nil, log)
	rec = httptest.NewRecorder()
	sick.serveHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status = %d", rec.Code)
	}
}

func TestStartIsNoopWithoutAddresses(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(Config{}, fixedHealth(protocol.Healthy()), nil, log)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
}
