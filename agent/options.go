package agent

import (
	"log/slog"
	"time"

	"github.com/agentgate/agentgate/audit"
	"github.com/agentgate/agentgate/protocol"
)

// Option configures a Server at creation time.
type Option func(*Server)

// WithUnixSocket serves the agent on a Unix domain socket. The path is
// unlinked before bind and again on clean shutdown.
func WithUnixSocket(path string) Option {
	return func(s *Server) {
		s.transport = TransportUDS
		s.addr = path
	}
}

// WithTCP serves the agent on a TCP endpoint (the "grpc" transport in
// launcher configuration). Frames are capped at 10 MiB on this
// transport.
func WithTCP(addr string) Option {
	return func(s *Server) {
		s.transport = TransportTCP
		s.addr = addr
	}
}

// WithAgentName sets the name advertised in the v2 handshake.
func WithAgentName(name string) Option {
	return func(s *Server) { s.agentName = name }
}

// WithProtocolV1 selects the legacy single-request-per-connection
// profile. The default is v2.
func WithProtocolV1() Option {
	return func(s *Server) { s.protocolVersion = protocol.VersionV1 }
}

// WithLogger sets the server's logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithHandshakeTimeout bounds how long a v2 peer may take to send its
// handshake request. Default 10s; strictly enforced.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Server) { s.handshakeTimeout = d }
}

// WithRequestTimeout bounds a single capability call. On expiry the
// reply is a 500 block and the cancel observer fires. Zero (the default)
// disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// WithDrainTimeout bounds how long shutdown waits for connections to
// finish. Default 30s.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Server) { s.drainTimeout = d }
}

// WithMaxConnections caps concurrently accepted connections; excess
// connections are closed immediately. Default 128.
func WithMaxConnections(n int) Option {
	return func(s *Server) { s.maxConnections = n }
}

// WithKeepAlive makes the agent initiate Pings at the given interval on
// v2 connections. Pongs are always sent in response to peer Pings
// regardless of this setting.
func WithKeepAlive(interval time.Duration) Option {
	return func(s *Server) { s.keepAliveInterval = interval }
}

// WithEncodings sets the payload encodings the agent is willing to
// negotiate in the v2 handshake, in preference order of the peer's
// offer. JSON is always available as the fallback.
func WithEncodings(names ...string) Option {
	return func(s *Server) { s.encodings = names }
}

// WithAuditLog records every emitted decision to the given trail.
func WithAuditLog(log *audit.Log) Option {
	return func(s *Server) { s.auditLog = log }
}
