package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atikulmunna/poplog/internal/aggregator"
	"github.com/atikulmunna/poplog/internal/config"
	"github.com/atikulmunna/poplog/internal/hub"
	"github.com/atikulmunna/poplog/internal/logging"
	"github.com/atikulmunna/poplog/internal/metrics"
	"github.com/atikulmunna/poplog/internal/mounts"
	"github.com/atikulmunna/poplog/internal/scheduler"
	"github.com/atikulmunna/poplog/internal/server"
)

// runtime is the wiring shared by the watch and follow commands.
type runtime struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	hub       *hub.Hub
	scheduler *scheduler.Scheduler
}

// loadConfig reads, validates and compiles the effective configuration.
// Any invalid option stops startup.
func loadConfig() (*config.Config, *scheduler.Policies, error) {
	config.SetDefaults(viper.GetViper())
	if err := readConfig(); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	policies, err := scheduler.NewPolicies(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, policies, nil
}

func newRuntime() (*runtime, error) {
	cfg, policies, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := hub.New(logger.Named("hub"))
	sink := scheduler.Tee{logging.NewSink(logger.Named("job")), h}
	sched := scheduler.New(policies, sink,
		scheduler.WithDetector(mounts.NewDetector()),
		scheduler.WithMetrics(metrics.New(reg)),
		scheduler.WithLogger(logger.Named("scheduler")),
		scheduler.WithIntervals(cfg.Poll.Local, cfg.Poll.Remote),
	)

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		registry:  reg,
		hub:       h,
		scheduler: sched,
	}, nil
}

// serve starts the status server and its aggregator on g when --listen
// is set.
func (rt *runtime) serve(ctx context.Context, g *errgroup.Group) {
	if rt.cfg.Listen == "" {
		return
	}
	agg := aggregator.New(rt.hub.Subscribe(), rt.hub.Dropped, func() int {
		return len(rt.scheduler.Snapshot())
	})
	srv := server.New(server.Deps{
		Hub:        rt.hub,
		Aggregator: agg,
		Jobs:       rt.scheduler,
		Gatherer:   rt.registry,
		Logger:     rt.logger.Named("server"),
	}, rt.cfg.Listen)

	g.Go(func() error {
		agg.Start(ctx)
		return nil
	})
	g.Go(func() error { return srv.Run(ctx) })
}

// shutdown retires every job and releases the hub and logger.
func (rt *runtime) shutdown(ctx context.Context) error {
	err := rt.scheduler.OnShutdown(ctx)
	rt.hub.Close()
	_ = rt.logger.Sync()
	return err
}
