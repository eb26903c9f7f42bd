// Package cli implements the associate command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinker495/associate/config"
	"github.com/tinker495/associate/daemon"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	buildVersion = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "associate",
	Short: "Supervise interactive agent sessions",
	Long: `associate hosts agent CLI sessions inside pseudo-terminals and follows the
agent's on-disk state (~/.claude) so a supervising client sees every change.

Terminal output, detected plan files and questions, team/task/transcript
changes and hook records are published as events. "associate serve" exposes
the sessions and events to an MCP client over stdio.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: ~/.claude/theassociate/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")
}

// Execute runs the root command.
func Execute(version string) error {
	buildVersion = version
	rootCmd.Version = version
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to w (stderr) because stdout
// carries protocol and event output.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %s", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// signalContext is cancelled on SIGINT, SIGTERM or a stop request written
// by "associate stop".
func signalContext(parent context.Context, stateDir string) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	stopCh := daemon.StopChannel(ctx, stateDir)
	go func() {
		select {
		case <-stopCh:
			stop()
		case <-ctx.Done():
		}
	}()
	return ctx, stop
}
