package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/agentgate/agentgate/audit"
	"github.com/agentgate/agentgate/protocol"
	"github.com/agentgate/agentgate/wire"
)

// Transports.
const (
	TransportUDS = "uds"
	TransportTCP = "grpc" // plain TCP with the 10 MiB frame limit
)

// Server is the agent-side protocol runtime: it accepts connections from
// the proxy, runs the per-connection loops, and manages draining and
// shutdown. One Server serves one transport endpoint.
type Server struct {
	cap Capability
	ad  *adaptor
	log *slog.Logger

	agentName         string
	protocolVersion   int
	transport         string
	addr              string
	handshakeTimeout  time.Duration
	requestTimeout    time.Duration
	drainTimeout      time.Duration
	maxConnections    int
	keepAliveInterval time.Duration
	encodings         []string
	auditLog          *audit.Log

	listener net.Listener
	listenMu sync.Mutex

	connMu sync.Mutex
	conns  map[*serverConn]struct{}

	draining atomic.Bool

	// lifecycle serialises Drain and Shutdown transitions.
	lifecycle    sync.Mutex
	drainedOnce  bool
	shutdownDone bool

	stats *stats
	wg    sync.WaitGroup
}

// New creates a server for the given capability. The default
// configuration speaks v2 on a Unix socket and must be pointed at an
// endpoint with WithUnixSocket or WithTCP.
func New(cap Capability, opts ...Option) (*Server, error) {
	if cap == nil {
		return nil, errors.New("agent: nil capability")
	}
	s := &Server{
		cap:               cap,
		log:               slog.Default(),
		agentName:         "agentgate",
		protocolVersion:   protocol.VersionV2,
		transport:         TransportUDS,
		handshakeTimeout:  10 * time.Second,
		drainTimeout:      30 * time.Second,
		maxConnections:    128,
		keepAliveInterval: 0,
		encodings:         []string{protocol.EncodingJSON},
		conns:             make(map[*serverConn]struct{}),
		stats:             newStats(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.addr == "" {
		return nil, errors.New("agent: no listen endpoint configured")
	}
	s.ad = newAdaptor(cap, s.log)
	return s, nil
}

// maxPayload returns the frame size limit for the configured profile and
// transport.
func (s *Server) maxPayload() int {
	if s.protocolVersion == protocol.VersionV1 {
		return wire.MaxFrameV1
	}
	if s.transport == TransportUDS {
		return wire.MaxPayloadUDS
	}
	return wire.MaxPayloadTCP
}

// Start binds the endpoint and runs the accept loop. It blocks until ctx
// is cancelled or Shutdown is called. Bind failures are returned to the
// caller; they are fatal at startup.
func (s *Server) Start(ctx context.Context) error {
	ln, err := s.bind()
	if err != nil {
		return err
	}
	s.listenMu.Lock()
	s.listener = ln
	s.listenMu.Unlock()

	s.log.Info("agent listening",
		"transport", s.transport,
		"addr", ln.Addr().String(),
		"protocol_version", s.protocolVersion,
		"agent", s.agentName)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
		defer cancel()
		s.Shutdown(shutdownCtx)
	}()

	return s.acceptLoop(ctx, ln)
}

func (s *Server) bind() (net.Listener, error) {
	if s.transport == TransportUDS {
		// Unlink any stale socket left behind by a previous run.
		if err := os.Remove(s.addr); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("unlink stale socket %s: %w", s.addr, err)
		}
		ln, err := net.Listen("unix", s.addr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", s.addr, err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return ln, nil
}

// Addr returns the bound listen address. Only valid after Start.
func (s *Server) Addr() string {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.log.Error("accept failed", "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if s.draining.Load() {
			nc.Close()
			continue
		}
		s.connMu.Lock()
		if len(s.conns) >= s.maxConnections {
			s.connMu.Unlock()
			s.log.Warn("connection limit reached, rejecting", "max", s.maxConnections)
			nc.Close()
			continue
		}
		c := s.newConn(nc)
		s.conns[c] = struct{}{}
		s.connMu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.removeConn(c)
			defer nc.Close()
			c.run(ctx)
		}()
	}
}

func (s *Server) newConn(nc net.Conn) *serverConn {
	id := uuid.NewString()[:8]
	log := s.log.With("conn_id", id)
	c := &serverConn{
		srv:     s,
		nc:      nc,
		r:       wire.NewReader(nc, s.maxPayload()),
		w:       wire.NewWriter(nc),
		enc:     wire.JSONEncoding{},
		log:     log,
		id:      id,
		traceID: uuid.NewString(),
	}
	c.disp = &dispatcher{
		cache:          newRequestCache(),
		ad:             s.ad,
		log:            log,
		stats:          s.stats,
		requestTimeout: s.requestTimeout,
		draining:       s.draining.Load,
	}
	return c
}

func (s *Server) removeConn(c *serverConn) {
	s.connMu.Lock()
	delete(s.conns, c)
	s.connMu.Unlock()
}

// Drain flips the server into the drain state: new connections and new
// request lifecycles are refused while in-progress requests run to
// completion. Idempotent.
func (s *Server) Drain() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.drainLocked()
}

func (s *Server) drainLocked() {
	if s.drainedOnce {
		return
	}
	s.drainedOnce = true
	s.draining.Store(true)
	s.log.Info("agent draining", "timeout_ms", s.drainTimeout.Milliseconds())
	s.ad.onDrain(s.drainTimeout.Milliseconds())
}

// Shutdown enters the drain state, cancels all in-flight request
// contexts, notifies the capability, closes every connection and the
// listener, and unlinks the socket path. Calling it again is a no-op
// beyond logging.
func (s *Server) Shutdown(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.shutdownDone {
		s.log.Debug("shutdown already complete")
		return nil
	}
	s.shutdownDone = true

	s.drainLocked()

	// Cancel everything still in flight across all connections.
	cancelled := 0
	s.connMu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connMu.Unlock()
	for _, c := range conns {
		for range c.disp.cache.clear() {
			s.stats.requestEnded()
			cancelled++
		}
	}
	if cancelled > 0 {
		s.log.Info("cancelled in-flight requests", "count", cancelled)
	}
	s.ad.onAllRequestsCancelled("Agent shutdown")
	s.ad.onShutdown()

	for _, c := range conns {
		c.nc.Close()
	}

	s.listenMu.Lock()
	ln := s.listener
	s.listener = nil
	s.listenMu.Unlock()
	if ln != nil {
		ln.Close()
	}
	if s.transport == TransportUDS {
		if err := os.Remove(s.addr); err != nil && !os.IsNotExist(err) {
			s.log.Warn("unlink socket failed", "path", s.addr, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("shutdown timed out waiting for connections")
		return ctx.Err()
	}

	s.log.Info("agent stopped")
	return nil
}

// Draining reports whether the server is refusing new request
// lifecycles.
func (s *Server) Draining() bool { return s.draining.Load() }

// ActiveRequests returns the number of live request contexts across all
// connections.
func (s *Server) ActiveRequests() int64 { return s.stats.active.Load() }

// Health returns the capability's health, or healthy by default.
func (s *Server) Health() protocol.HealthStatus { return s.ad.healthStatus() }

// Metrics returns the runtime's metrics snapshot, or the capability's
// own if it implements MetricsReporter.
func (s *Server) Metrics() protocol.MetricsReport {
	if s.ad.metrics != nil {
		return s.ad.metrics.Metrics()
	}
	return s.stats.report()
}
