package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentgate/agentgate/agent"
	"github.com/agentgate/agentgate/audit"
	"github.com/agentgate/agentgate/internal/admin"
)

// Run builds the runtime from the configuration record and serves until
// a signal or an unrecoverable error. The first SIGINT/SIGTERM starts a
// graceful shutdown; a second signal terminates immediately.
func Run(ctx context.Context, cfg Config, cap agent.Capability) error {
	log := NewLogger(cfg)

	opts := []agent.Option{
		agent.WithLogger(log),
		agent.WithHandshakeTimeout(cfg.HandshakeTimeout.Std()),
		agent.WithRequestTimeout(cfg.RequestTimeout.Std()),
		agent.WithDrainTimeout(cfg.DrainTimeout.Std()),
		agent.WithMaxConnections(cfg.MaxConnections),
	}
	if cfg.Transport == TransportUDS {
		opts = append(opts, agent.WithUnixSocket(cfg.SocketPath))
	} else {
		opts = append(opts, agent.WithTCP(cfg.Addr()))
	}
	if cfg.AgentNameOverride != "" {
		opts = append(opts, agent.WithAgentName(cfg.AgentNameOverride))
	}
	if cfg.EnableKeepAlive && cfg.KeepAliveInterval > 0 {
		opts = append(opts, agent.WithKeepAlive(cfg.KeepAliveInterval.Std()))
	}
	if cfg.AuditLogPath != "" {
		trail, err := audit.Open(cfg.AuditLogPath)
		if err != nil {
			return err
		}
		defer trail.Close()
		opts = append(opts, agent.WithAuditLog(trail))
	}

	srv, err := agent.New(cap, opts...)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("shutting down on signal", "signal", sig.String())
			cancel()
		case <-runCtx.Done():
			return
		}
		<-sigCh
		fmt.Fprintln(os.Stderr, "second signal, terminating")
		os.Exit(130)
	}()

	if cfg.AdminGRPC != "" || cfg.AdminHTTP != "" {
		adm := admin.New(admin.Config{GRPCAddr: cfg.AdminGRPC, HTTPAddr: cfg.AdminHTTP}, srv, srv, log)
		go func() {
			if err := adm.Start(runCtx); err != nil {
				log.Error("admin surface failed", "error", err)
			}
		}()
	}

	return srv.Start(runCtx)
}

// NewLogger builds the process logger from the configuration record.
func NewLogger(cfg Config) *slog.Logger {
	level := parseLevel(cfg.LogLevel)
	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.JSONLogs {
		handler = slog.NewJSONHandler(os.Stderr, hopts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, hopts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
