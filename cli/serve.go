package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tinker495/associate/daemon"
	"github.com/tinker495/associate/events"
	"github.com/tinker495/associate/mcp"
	"github.com/tinker495/associate/ptyhost"
	"github.com/tinker495/associate/router"
	"github.com/tinker495/associate/summary"
	"github.com/tinker495/associate/tailstore"
	"github.com/tinker495/associate/transcript"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host agent sessions and serve them over MCP (stdio)",
	Long: `Start the session host, the ~/.claude change router and an MCP server on
stdin/stdout.

Tools:
  - session_spawn, session_resize, session_write, session_kill, session_list
  - transcript_open, transcript_poll
  - summary_list, summary_read

Every published event is also sent to the client as a
"notifications/associate/event" notification.

Only one serve process may run per state directory. All sessions are killed
when the server exits.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	lock, err := daemon.AcquirePIDLock(cfg.Paths.AppDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release PID lock", "error", err)
		}
	}()

	offsets, err := tailstore.Open(cfg.OffsetStatePath(), logger)
	if err != nil {
		return fmt.Errorf("failed to open offset store: %w", err)
	}
	defer offsets.Close()

	bus := events.NewBus(logger)
	defer bus.Close()

	summaries := summary.NewStore(cfg.SummariesRoot(), logger)
	rt, err := router.New(cfg, offsets, summaries, bus, logger)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}
	defer rt.Close()

	registry := ptyhost.NewRegistry(cfg, bus, ptyhost.WithLogger(logger))
	transcripts := transcript.NewManager(cfg.Transcript, logger)
	srv := mcp.NewServer(registry, transcripts, summaries, buildVersion, logger)

	sub, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	ctx, stop := signalContext(cmd.Context(), cfg.Paths.AppDir)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("serving", "claude_home", cfg.Paths.ClaudeHome, "app_dir", cfg.Paths.AppDir)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.Run(gctx)
	})
	g.Go(func() error {
		return srv.ForwardEvents(gctx, sub)
	})
	g.Go(func() error {
		// The client closing stdin ends the whole server.
		defer cancel()
		err := srv.Serve(gctx, os.Stdin, os.Stdout)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()

	registry.KillAll()
	registry.Wait()
	if perr := offsets.Persist(); perr != nil {
		logger.Warn("failed to persist offsets on shutdown", "error", perr)
	}
	logger.Info("server stopped")
	return err
}
