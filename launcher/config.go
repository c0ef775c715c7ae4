// Package launcher is the thin wrapper that turns command-line options
// and an optional YAML file into a configuration record, builds the
// runtime, and runs it under signal control. It contains no protocol
// logic.
package launcher

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport values.
const (
	TransportUDS  = "uds"
	TransportGRPC = "grpc"
)

// Duration is a time.Duration that unmarshals from YAML duration strings
// ("30s", "1m30s"). Bare numbers are taken as milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var ms int64
	if err := node.Decode(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("launcher: invalid duration value: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("launcher: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the launcher's configuration record.
type Config struct {
	Transport         string   `yaml:"transport"`
	SocketPath        string   `yaml:"socket_path"`
	Host              string   `yaml:"host"`
	Port              int      `yaml:"port"`
	RequestTimeout    Duration `yaml:"request_timeout"`
	HandshakeTimeout  Duration `yaml:"handshake_timeout"`
	DrainTimeout      Duration `yaml:"drain_timeout"`
	MaxConnections    int      `yaml:"max_connections"`
	EnableKeepAlive   bool     `yaml:"enable_keep_alive"`
	KeepAliveInterval Duration `yaml:"keep_alive_interval"`
	LogLevel          string   `yaml:"log_level"`
	JSONLogs          bool     `yaml:"json_logs"`
	AgentNameOverride string   `yaml:"agent_name_override"`

	// Optional operational extras.
	AuditLogPath string `yaml:"audit_log_path"`
	AdminGRPC    string `yaml:"admin_grpc_addr"`
	AdminHTTP    string `yaml:"admin_http_addr"`
}

// DefaultConfig returns the configuration used when nothing is
// specified: v2 over a Unix socket, keep-alive on.
func DefaultConfig() Config {
	return Config{
		Transport:         TransportUDS,
		SocketPath:        "/tmp/agentgate.sock",
		Host:              "127.0.0.1",
		Port:              9090,
		RequestTimeout:    Duration(30 * time.Second),
		HandshakeTimeout:  Duration(10 * time.Second),
		DrainTimeout:      Duration(30 * time.Second),
		MaxConnections:    128,
		EnableKeepAlive:   true,
		KeepAliveInterval: Duration(30 * time.Second),
		LogLevel:          "info",
	}
}

// LoadFile overlays the YAML file at path onto cfg. Fields absent from
// the file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("launcher: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("launcher: parse config: %w", err)
	}
	return nil
}

// Validate checks the record for values the runtime cannot start with.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportUDS:
		if c.SocketPath == "" {
			return fmt.Errorf("launcher: uds transport requires a socket path")
		}
	case TransportGRPC:
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("launcher: invalid port %d", c.Port)
		}
	default:
		return fmt.Errorf("launcher: unknown transport %q", c.Transport)
	}
	return nil
}

// Addr returns the listen endpoint for the configured transport.
func (c *Config) Addr() string {
	if c.Transport == TransportUDS {
		return c.SocketPath
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
