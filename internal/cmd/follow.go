package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atikulmunna/poplog/internal/logfile"
	"github.com/atikulmunna/poplog/internal/scheduler"
)

const followGroup = "follow"

var followCmd = &cobra.Command{
	Use:   "follow <path|s3://bucket/key>...",
	Short: "Forward messages from individual log files",
	Long: `Follow one or more log files directly. Each argument becomes job
follow/<i> in argument order. Local paths and s3:// objects are supported;
S3 credentials come from the usual AWS environment and shared config.

On interrupt every file gets a final read so that a last line without a
trailing newline is still forwarded.

Examples:
  poplog follow run/job.stdout
  poplog follow s3://bucket/runs/42/job.stdout --loglevel error`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFollow,
}

func init() {
	rootCmd.AddCommand(followCmd)
}

func runFollow(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime()
	if err != nil {
		return err
	}

	resolver := logfile.NewResolver()
	keys := make([]scheduler.JobKey, 0, len(args))
	for i, uri := range args {
		f, err := resolver.Resolve(ctx, uri)
		if err != nil {
			return fmt.Errorf("job %d: %w", i, err)
		}
		job := scheduler.Job{Group: followGroup, Index: i, Stdout: f, Stderr: f}
		if err := rt.scheduler.OnJobStarted(ctx, job); err != nil {
			return err
		}
		keys = append(keys, job.Key())
		rt.logger.Info("following", zap.String("job", string(job.Key())), zap.String("path", f.Path()))
	}

	g, gctx := errgroup.WithContext(ctx)
	rt.serve(gctx, g)
	<-gctx.Done()
	runErr := g.Wait()

	finalCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := rt.scheduler.OnJobCompleted(finalCtx, key); err != nil {
			rt.logger.Warn("final read failed", zap.String("job", string(key)), zap.Error(err))
		}
	}
	if err := rt.shutdown(finalCtx); err != nil {
		return err
	}
	return runErr
}
