package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atikulmunna/poplog/internal/watcher"
)

var rescan time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <workdir>",
	Short: "Forward job messages from a pipeline working directory",
	Long: `Watch a pipeline working directory laid out as
<workdir>/<group>/<index>/job.{stdout,stderr,rc}. Each job is tailed from the
moment its directory appears until its job.rc is written.

Examples:
  poplog watch .pipen/my_pipeline
  poplog watch .pipen/my_pipeline --loglevel warning --max 50
  poplog watch .pipen/my_pipeline --jobs 0,1 --listen :8080`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&rescan, "rescan", watcher.DefaultRescan, "interval between full rescans of the workdir")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime()
	if err != nil {
		return err
	}

	w, err := watcher.New(args[0], rt.scheduler,
		watcher.WithRescan(rescan),
		watcher.WithLogger(rt.logger.Named("watcher")),
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	rt.logger.Info("watching workdir", zap.String("workdir", args[0]))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	rt.serve(gctx, g)
	runErr := g.Wait()

	fmt.Fprintln(os.Stderr, "poplog shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.shutdown(shutdownCtx); err != nil {
		return err
	}
	return runErr
}
