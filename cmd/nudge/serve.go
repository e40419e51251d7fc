package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/proxyhq/nudge-engine/internal/api"
	"github.com/proxyhq/nudge-engine/internal/config"
	"github.com/proxyhq/nudge-engine/internal/notification"
	"github.com/proxyhq/nudge-engine/internal/schedule"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP trigger and run the optional in-process scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		sched, err := buildSchedule(cfg, time.Now())
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.HTTP.JWTSecret == "" {
			a.logger.Warn("JWT secret not set, POST /v1/dispatch will reject every request")
		}

		handler := api.NewHandler(a.dispatcher, cfg.HTTP.JWTSecret, a.logger.Logger)
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a.logger.Info("nudge HTTP server starting", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.logger.Info("shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if sched != nil {
			runner := schedule.NewRunner(sched, func(ctx context.Context) error {
				_, err := a.dispatcher.Dispatch(ctx)
				if errors.Is(err, notification.ErrRunInProgress) {
					return nil
				}
				return err
			}, a.logger.Logger)
			g.Go(func() error { return runner.Run(gctx) })
		}

		return g.Wait()
	},
}

// buildSchedule returns nil when neither an interval nor a cron expression
// is configured.
func buildSchedule(cfg *config.Config, now time.Time) (*schedule.Schedule, error) {
	var (
		s   *schedule.Schedule
		err error
	)
	switch {
	case cfg.Schedule.Interval > 0:
		s, err = schedule.New(cfg.Schedule.Interval, now)
	case cfg.Schedule.Cron != "":
		s, err = schedule.FromCron(cfg.Schedule.Cron, now)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(notification.ErrConfiguration, err)
	}
	return s, nil
}
