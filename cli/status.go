package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinker495/associate/config"
	"github.com/tinker495/associate/daemon"
)

const stopTimeout = 10 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a serve process is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return showStatus(cmd.OutOrStdout(), cfg)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running serve process",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return stopServer(cmd.OutOrStdout(), cfg.Paths.AppDir, stopTimeout)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
}

func showStatus(w io.Writer, cfg *config.Config) error {
	pid, err := daemon.GetRunningPID(cfg.Paths.AppDir)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	if pid == 0 {
		fmt.Fprintln(w, "Status: not running")
	} else {
		fmt.Fprintln(w, "Status: running")
		fmt.Fprintf(w, "PID: %d\n", pid)
	}
	fmt.Fprintf(w, "Claude home: %s\n", cfg.Paths.ClaudeHome)
	fmt.Fprintf(w, "State directory: %s\n", cfg.Paths.AppDir)
	fmt.Fprintf(w, "Hook log: %s\n", cfg.HookLogPath())
	return nil
}

func stopServer(w io.Writer, dir string, timeout time.Duration) error {
	pid, err := daemon.GetRunningPID(dir)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}
	if pid == 0 {
		fmt.Fprintln(w, "No serve process is running")
		return nil
	}

	if err := daemon.StopProcess(dir, pid); err != nil {
		return fmt.Errorf("failed to stop process %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !daemon.IsProcessRunning(pid) {
			_ = daemon.RemovePIDFile(dir)
			fmt.Fprintf(w, "Stopped (PID %d)\n", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("process %d did not exit within %s", pid, timeout)
}
