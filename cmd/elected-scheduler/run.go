package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tsukikage7/elected-scheduler/app"
	"github.com/Tsukikage7/elected-scheduler/command"
	"github.com/Tsukikage7/elected-scheduler/config"
	"github.com/Tsukikage7/elected-scheduler/election"
	"github.com/Tsukikage7/elected-scheduler/logger"
	"github.com/Tsukikage7/elected-scheduler/metrics"
	"github.com/Tsukikage7/elected-scheduler/scheduler"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			log, err := logger.NewLogger(&cfg.Logger)
			if err != nil {
				return err
			}
			defer log.Close()

			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			return a.Run()
		},
	}
	defaultPath := "elected-scheduler.yaml"
	if env := os.Getenv(config.EnvPrefix + "_CONFIG"); env != "" {
		defaultPath = env
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultPath, "path to the configuration file")
	return cmd
}

// buildApp 组装选举、轮询器、命令任务与指标服务.
func buildApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Application, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	elector, cleanup, err := election.New(ctx, &cfg.Election, cfg.Scheduler.Key, election.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("creating elector: %w", err)
	}

	opts := []scheduler.Option{
		scheduler.WithLogger(log),
		scheduler.WithFollowerBackoff(cfg.Scheduler.FollowerBackoff),
	}

	var components []app.Component
	if cfg.Metrics.Enabled {
		collector, err := metrics.New(&cfg.Metrics)
		if err != nil {
			cleanup()
			return nil, err
		}
		opts = append(opts, scheduler.WithMetrics(collector))
		components = append(components, metrics.NewServer(collector, log))
	}

	poller, err := scheduler.NewPoller(cfg.Scheduler.Key, elector, opts...)
	if err != nil {
		cleanup()
		return nil, err
	}
	for i := range cfg.Jobs {
		job, err := command.NewJob(&cfg.Jobs[i], log)
		if err != nil {
			cleanup()
			return nil, err
		}
		poller.Add(job)
	}

	a := app.New(
		app.Name(cfg.Logger.ServiceName),
		app.Version(version),
		app.Logger(log),
		app.RegisterCleanup("elector", func(context.Context) error {
			cleanup()
			return nil
		}, 100),
	)
	a.Use(app.NewPollerComponent(poller)).Use(components...)

	log.Infof("[Main] 调度器已就绪 [key:%s] [backend:%s] [jobs:%d]",
		cfg.Scheduler.Key, cfg.Election.Backend, len(cfg.Jobs))
	return a, nil
}
