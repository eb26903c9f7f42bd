package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tinker495/associate/config"
	"github.com/tinker495/associate/events"
	"github.com/tinker495/associate/router"
	"github.com/tinker495/associate/summary"
	"github.com/tinker495/associate/tailstore"
)

var watchFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print ~/.claude change events to stdout",
	Long: `Follow the agent's state directory and print every routed event (team,
inbox, task, transcript, session index, todos, plans, notes, hook records and
saved completion summaries) as it happens.

Output is one JSON object per line, or TOON blocks with --format toon.
Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchFormat, "format", "f", "json", "Output format: json or toon")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if err := validFormat(watchFormat); err != nil {
		return err
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context(), cfg.Paths.AppDir)
	defer stop()

	return watchEvents(ctx, cfg, cmd.OutOrStdout(), watchFormat, logger)
}

// watchEvents runs a router and prints its events until ctx ends.
func watchEvents(ctx context.Context, cfg *config.Config, w io.Writer, format string, logger *slog.Logger) error {
	offsets, err := tailstore.Open(cfg.OffsetStatePath(), logger)
	if err != nil {
		return fmt.Errorf("failed to open offset store: %w", err)
	}
	defer offsets.Close()

	bus := events.NewBus(logger)
	sub, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	summaries := summary.NewStore(cfg.SummariesRoot(), logger)
	rt, err := router.New(cfg, offsets, summaries, bus, logger)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}
	defer rt.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer bus.Close()
		return rt.Run(gctx)
	})
	g.Go(func() error {
		for ev := range sub {
			if err := writeRecord(w, format, ev); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}
