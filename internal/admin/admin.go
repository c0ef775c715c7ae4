// Package admin provides the optional operational surface of a running
// agent: a gRPC endpoint speaking the standard health-checking protocol,
// and an HTTP endpoint serving prometheus metrics and a JSON health
// snapshot. Both are disabled unless the launcher configures an address.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/agentgate/agentgate/internal/metric"
	"github.com/agentgate/agentgate/protocol"
)

// HealthSource produces health snapshots. *agent.Server satisfies it.
type HealthSource interface {
	Health() protocol.HealthStatus
}

// Config holds the admin surface configuration. Empty addresses disable
// the corresponding listener.
type Config struct {
	GRPCAddr string
	HTTPAddr string
}

// Server runs the admin listeners.
type Server struct {
	cfg     Config
	src     HealthSource
	stats   metric.Source
	log     *slog.Logger
	grpcSrv *grpc.Server
	hc      *health.Server
	httpd   *http.Server
}

// New creates an admin server over the given sources.
func New(cfg Config, src HealthSource, stats metric.Source, log *slog.Logger) *Server {
	return &Server{cfg: cfg, src: src, stats: stats, log: log}
}

// Start brings up the configured listeners and blocks until ctx is
// cancelled. Returns nil immediately when nothing is configured.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.GRPCAddr == "" && s.cfg.HTTPAddr == "" {
		return nil
	}

	errCh := make(chan error, 2)

	if s.cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("admin grpc listen on %s: %w", s.cfg.GRPCAddr, err)
		}
		s.grpcSrv = grpc.NewServer()
		s.hc = health.NewServer()
		healthpb.RegisterHealthServer(s.grpcSrv, s.hc)
		go s.pollHealth(ctx)
		go func() { errCh <- s.grpcSrv.Serve(lis) }()
		s.log.Info("admin grpc listening", "addr", lis.Addr().String())
	}

	if s.cfg.HTTPAddr != "" {
		reg := prometheus.NewRegistry()
		if err := reg.Register(metric.NewCollector(s.stats)); err != nil {
			return fmt.Errorf("admin register collector: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/healthz", s.serveHealthz)
		s.httpd = &http.Server{Addr: s.cfg.HTTPAddr, Handler: mux}
		go func() {
			err := s.httpd.ListenAndServe()
			if err == http.ErrServerClosed {
				err = nil
			}
			errCh <- err
		}()
		s.log.Info("admin http listening", "addr", s.cfg.HTTPAddr)
	}

	select {
	case <-ctx.Done():
		s.stop()
		return nil
	case err := <-errCh:
		s.stop()
		return err
	}
}

// pollHealth reflects the capability's health into the gRPC health
// service once a second.
func (s *Server) pollHealth(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := healthpb.HealthCheckResponse_SERVING
			if s.src.Health().State == protocol.HealthUnhealthy {
				st = healthpb.HealthCheckResponse_NOT_SERVING
			}
			s.hc.SetServingStatus("", st)
		}
	}
}

func (s *Server) serveHealthz(w http.ResponseWriter, r *http.Request) {
	hs := s.src.Health()
	w.Header().Set("Content-Type", "application/json")
	if hs.State == protocol.HealthUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(hs)
}

func (s *Server) stop() {
	if s.grpcSrv != nil {
		s.grpcSrv.GracefulStop()
	}
	if s.httpd != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpd.Shutdown(shutdownCtx)
	}
}
