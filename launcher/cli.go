package launcher

import (
	"github.com/spf13/cobra"

	"github.com/agentgate/agentgate/agent"
)

// NewCommand builds the launcher command for an agent binary. The
// recognised options mirror the documented launcher surface; unknown
// options are ignored rather than rejected, so a supervisor can pass a
// superset of flags across agent versions.
func NewCommand(name, short string, build func(cfg Config) (agent.Capability, error)) *cobra.Command {
	var (
		flagConfig    string
		flagSocket    string
		flagHost      string
		flagPort      int
		flagTransport string
		flagLogLevel  string
		flagJSONLogs  bool
		flagName      string
		flagAuditLog  string
		flagAdminHTTP string
		flagAdminGRPC string
	)

	cmd := &cobra.Command{
		Use:                name,
		Short:              short,
		SilenceUsage:       true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := DefaultConfig()
			if flagConfig != "" {
				if err := LoadFile(flagConfig, &cfg); err != nil {
					return err
				}
			}

			// Flags override file values only when actually given.
			flags := cmd.Flags()
			if flags.Changed("socket") {
				cfg.SocketPath = flagSocket
			}
			if flags.Changed("host") {
				cfg.Host = flagHost
			}
			if flags.Changed("port") {
				cfg.Port = flagPort
			}
			if flags.Changed("transport") {
				cfg.Transport = normalizeTransport(flagTransport)
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = flagLogLevel
			}
			if flags.Changed("json-logs") {
				cfg.JSONLogs = flagJSONLogs
			}
			if flags.Changed("name") {
				cfg.AgentNameOverride = flagName
			}
			if flags.Changed("audit-log") {
				cfg.AuditLogPath = flagAuditLog
			}
			if flags.Changed("admin-http") {
				cfg.AdminHTTP = flagAdminHTTP
			}
			if flags.Changed("admin-grpc") {
				cfg.AdminGRPC = flagAdminGRPC
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			cap, err := build(cfg)
			if err != nil {
				return err
			}
			return Run(cmd.Context(), cfg, cap)
		},
	}

	cmd.Flags().StringVar(&flagConfig, "config", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&flagSocket, "socket", "", "Unix socket path (uds transport)")
	cmd.Flags().StringVar(&flagHost, "host", "", "Listen host (grpc transport)")
	cmd.Flags().IntVar(&flagPort, "port", 0, "Listen port (grpc transport)")
	cmd.Flags().StringVar(&flagTransport, "transport", "", "Transport: uds, grpc, or tcp (alias of grpc)")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&flagJSONLogs, "json-logs", false, "Emit JSON logs")
	cmd.Flags().StringVar(&flagName, "name", "", "Override the advertised agent name")
	cmd.Flags().StringVar(&flagAuditLog, "audit-log", "", "Path to decision audit trail (JSONL)")
	cmd.Flags().StringVar(&flagAdminHTTP, "admin-http", "", "Admin HTTP address (/metrics, /healthz)")
	cmd.Flags().StringVar(&flagAdminGRPC, "admin-grpc", "", "Admin gRPC health address")

	return cmd
}

// normalizeTransport maps the accepted transport spellings to the two
// canonical values; tcp is an alias of grpc.
func normalizeTransport(t string) string {
	switch t {
	case "tcp", TransportGRPC:
		return TransportGRPC
	case TransportUDS:
		return TransportUDS
	default:
		return t
	}
}
