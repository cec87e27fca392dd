package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/guillermoBallester/tablesmith/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tablesmith",
		Short:         "Infer table schemas from CSV/XLSX files and load them into MySQL, PostgreSQL or SQLite",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.String("database-url", "", "destination DSN (overrides DATABASE_URL)")
	f.String("driver", "", "destination driver: mysql, postgres or sqlite (overrides DB_DRIVER)")
	f.String("config-dir", "", "directory for <table>.json configs (overrides CONFIG_DIR)")
	f.String("policy-file", "", "policy YAML with per-table overrides (overrides POLICY_FILE)")
	f.Int("batch-size", 0, "rows per transaction (overrides BATCH_SIZE)")
	f.Int("sample-size", 0, "values sampled per column for special type detection (overrides SAMPLE_SIZE)")
	f.Float64("threshold", 0, "fraction of samples that must match a special type (overrides SPECIAL_TYPE_THRESHOLD)")
	f.Int("max-rows", 0, "maximum rows returned by queries (overrides MAX_ROWS)")
	f.Duration("query-timeout", 0, "query timeout, e.g. 30s (overrides QUERY_TIMEOUT)")
	f.String("log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	f.String("log-format", "", "log format: json or text (overrides LOG_FORMAT)")
	f.String("transport", "", "serve transport: stdio or http (overrides TRANSPORT)")
	f.String("http-addr", "", "listen address for the http transport (overrides HTTP_ADDR)")
	f.String("http-bearer-token", "", "bearer token for the http transport (overrides HTTP_BEARER_TOKEN)")
	f.Bool("otel", false, "enable OpenTelemetry export (overrides OTEL_ENABLED)")
	f.Bool("mask-pii", false, "mask email and phone columns in query results (overrides MASK_PII)")
	f.String("audit-log", "", "append NDJSON audit entries to this file (overrides AUDIT_LOG)")
	f.String("env-file", "", "env file to load before reading the environment (default .env)")

	root.AddCommand(
		newInferCmd(),
		newLoadCmd(),
		newQueryCmd(),
		newStatsCmd(),
		newExportCmd(),
		newServeCmd(),
	)
	return root
}

// parseFlags parses args against the root flag set and returns the overrides.
func parseFlags(args []string) (config.Overrides, error) {
	root := newRootCmd()
	if err := root.ParseFlags(args); err != nil {
		return config.Overrides{}, err
	}
	return overridesFromCmd(root)
}

// overridesFromCmd collects the persistent flags the user actually set.
func overridesFromCmd(cmd *cobra.Command) (config.Overrides, error) {
	f := cmd.Flags()
	var o config.Overrides

	str := func(name string) (*string, error) {
		if !f.Changed(name) {
			return nil, nil
		}
		v, err := f.GetString(name)
		return &v, err
	}
	integer := func(name string) (*int, error) {
		if !f.Changed(name) {
			return nil, nil
		}
		v, err := f.GetInt(name)
		return &v, err
	}

	var err error
	for _, s := range []struct {
		name string
		dst  **string
	}{
		{"database-url", &o.DatabaseURL},
		{"driver", &o.Driver},
		{"config-dir", &o.ConfigDir},
		{"policy-file", &o.PolicyFile},
		{"log-level", &o.LogLevel},
		{"log-format", &o.LogFormat},
		{"transport", &o.Transport},
		{"http-addr", &o.HTTPAddr},
		{"http-bearer-token", &o.HTTPBearerToken},
	} {
		if *s.dst, err = str(s.name); err != nil {
			return o, err
		}
	}
	for _, s := range []struct {
		name string
		dst  **int
	}{
		{"batch-size", &o.BatchSize},
		{"sample-size", &o.SampleSize},
		{"max-rows", &o.MaxRows},
	} {
		if *s.dst, err = integer(s.name); err != nil {
			return o, err
		}
	}

	if f.Changed("threshold") {
		v, err := f.GetFloat64("threshold")
		if err != nil {
			return o, err
		}
		o.Threshold = &v
	}
	if f.Changed("query-timeout") {
		v, err := f.GetDuration("query-timeout")
		if err != nil {
			return o, err
		}
		o.QueryTimeout = &v
	}
	if o.OTelEnabled, err = f.GetBool("otel"); err != nil {
		return o, err
	}
	if o.MaskPII, err = f.GetBool("mask-pii"); err != nil {
		return o, err
	}
	if o.AuditLog, err = f.GetString("audit-log"); err != nil {
		return o, err
	}
	if o.EnvFile, err = f.GetString("env-file"); err != nil {
		return o, err
	}
	return o, nil
}

// loadConfig resolves the configuration for cmd and builds its logger.
func loadConfig(cmd *cobra.Command, offline bool) (*config.Config, *slog.Logger, error) {
	o, err := overridesFromCmd(cmd)
	if err != nil {
		return nil, nil, err
	}
	o.Offline = offline
	cfg, err := config.Load(o)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	// Logs go to stderr; stdout carries command output and the MCP stdio transport.
	return cfg, newLogger(cfg, cmd.ErrOrStderr()), nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// redactDSN hides the password in URL and MySQL style DSNs for logging.
func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		if !strings.Contains(dsn, "@") {
			return dsn
		}
		c, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "***"
		}
		if c.Passwd != "" {
			c.Passwd = "***"
		}
		return c.FormatDSN()
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
