package launcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentgate/agentgate/agent"
)

var errStopBeforeRun = errors.New("stop before run")

// parse runs the command far enough to capture the assembled Config,
// then aborts before the runtime starts.
func parse(t *testing.T, args ...string) Config {
	t.Helper()
	var got Config
	cmd := NewCommand("testagent", "test", func(cfg Config) (agent.Capability, error) {
		got = cfg
		return nil, errStopBeforeRun
	})
	cmd.SilenceErrors = true
	cmd.SetArgs(args)
	if err := cmd.Execute(); !errors.Is(err, errStopBeforeRun) {
		t.Fatalf("execute: %v", err)
	}
	return got
}

func TestFlagsBothForms(t *testing.T) {
	cfg := parse(t, "--socket=/run/a.sock", "--log-level", "debug", "--name", "demo")
	if cfg.SocketPath != "/run/a.sock" {
		t.Fatalf("socket = %q", cfg.SocketPath)
	}
	if cfg.LogLevel != "debug" || cfg.AgentNameOverride != "demo" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestTransportTCPAliasesToGRPC(t *testing.T) {
	cfg := parse(t, "--transport", "tcp", "--host", "0.0.0.0", "--port", "7000")
	if cfg.Transport != TransportGRPC {
		t.Fatalf("transport = %q", cfg.Transport)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != 7000 {
		t.Fatalf("endpoint = %s", cfg.Addr())
	}
	if cfg.Addr() != "0.0.0.0:7000" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
}

func TestUnknownFlagsIgnored(t *testing.T) {
	cfg := parse(t, "--socket", "/s.sock", "--totally-unknown", "x", "--another-one")
	if cfg.SocketPath != "/s.sock" {
		t.Fatalf("socket = %q", cfg.SocketPath)
	}
}

func TestJSONLogsFlag(t *testing.T) {
	if cfg := parse(t, "--json-logs"); !cfg.JSONLogs {
		t.Fatal("json-logs not set")
	}
	if cfg := parse(t); cfg.JSONLogs {
		t.Fatal("json-logs default must be off")
	}
}

func TestDefaultsSurviveWhenFlagsAbsent(t *testing.T) {
	cfg := parse(t)
	def := DefaultConfig()
	if cfg.Transport != def.Transport || cfg.HandshakeTimeout != def.HandshakeTimeout ||
		cfg.MaxConnections != def.MaxConnections || !cfg.EnableKeepAlive {
		t.Fatalf("defaults clobbered: %+v", cfg)
	}
}

func TestConfigFileOverlayAndFlagPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	content := "transport: grpc\nport: 4000\nlog_level: warn\nrequest_timeout: 5s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := parse(t, "--config", path, "--port", "5000")
	if cfg.Transport != TransportGRPC || cfg.LogLevel != "warn" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.RequestTimeout.Std() != 5*time.Second {
		t.Fatalf("request_timeout = %v", cfg.RequestTimeout)
	}
	// Flags beat the file.
	if cfg.Port != 5000 {
		t.Fatalf("port = %d", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.Transport = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown transport accepted")
	}

	cfg = DefaultConfig()
	cfg.Transport = TransportGRPC
	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("port 0 accepted for grpc transport")
	}

	cfg = DefaultConfig()
	cfg.SocketPath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty socket path accepted for uds transport")
	}
}

func TestNormalizeTransport(t *testing.T) {
	if normalizeTransport("tcp") != TransportGRPC || normalizeTransport("grpc") != TransportGRPC {
		t.Fatal("grpc spellings")
	}
	if normalizeTransport("uds") != TransportUDS {
		t.Fatal("uds spelling")
	}
	if normalizeTransport("weird") != "weird" {
		t.Fatal("unknown transports pass through to Validate")
	}
}
