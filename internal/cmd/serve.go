package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/maxchen228/linker/internal/logger"
)

// NewServeCommand creates 'linker serve', the long-running process that
// hosts the two background jobs: a nightly retention purge and a periodic
// cache sweep. It is the one process that
// holds the pool open past a single RunE, so it owns its own shutdown
// instead of returning after one operation.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run background retention and cache-sweep jobs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			a := mustApp()
			log := a.log

			c := cron.New()

			retentionSpec := a.cfg.Retention.Cron
			if _, err := c.AddFunc(retentionSpec, func() {
				runRetentionJob(ctx, a, log)
			}); err != nil {
				return err
			}

			if _, err := c.AddFunc("@every 5m", func() {
				n := a.svc.CleanupCache()
				log.Debug("cache sweep complete", logger.Fields{"evicted": n})
			}); err != nil {
				return err
			}

			log.Info("linker serve starting", logger.Fields{"retention_cron": retentionSpec})
			c.Start()
			defer c.Stop()

			<-ctx.Done()
			log.Info("linker serve shutting down", logger.Fields{})
			return nil
		},
	}
}

func runRetentionJob(ctx context.Context, a *app, log logger.Logger) {
	result, err := a.svc.PermanentDeleteOld(ctx, a.cfg.Retention.OlderThanDays, a.cfg.Retention.DryRun)
	if err != nil {
		log.Error("retention job failed", logger.Fields{"error": err.Error()})
		return
	}
	log.Info("retention job complete", logger.Fields{
		"scanned":   result.Scanned,
		"deleted":   len(result.DeletedIDs),
		"preserved": result.Preserved,
	})
}
