// Package cmd wires the linker knowledge engine's cobra subcommands. Each
// command builds its own app (config, logger, pool, service) in
// PersistentPreRunE and tears it down in PersistentPostRunE, so a single
// process invocation enters the service exactly once through the single
// cobra Execute() entry point.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxchen228/linker/internal/cache"
	"github.com/maxchen228/linker/internal/config"
	"github.com/maxchen228/linker/internal/dailylimit"
	"github.com/maxchen228/linker/internal/dbpool"
	"github.com/maxchen228/linker/internal/fallback"
	"github.com/maxchen228/linker/internal/logger"
	"github.com/maxchen228/linker/internal/repository"
	"github.com/maxchen228/linker/internal/service"
	"github.com/maxchen228/linker/internal/unifiederror"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// app bundles everything a subcommand needs, built once per invocation.
type app struct {
	cfg  *config.Config
	log  logger.Logger
	pool *dbpool.Pool
	svc  *service.Service
}

var (
	cfgPath string
	current *app
)

// NewRootCommand builds the root "linker" command and every subcommand.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "linker",
		Short: "Personal language-learning knowledge engine",
		Long: `linker tracks the mistakes a language learner makes, classifies them
into a spaced-repetition knowledge base, and schedules reviews.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: bootstrap,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return teardown(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to an optional YAML config overlay")

	root.AddCommand(NewAddCommand())
	root.AddCommand(NewReviewCommand())
	root.AddCommand(NewSearchCommand())
	root.AddCommand(NewListCommand())
	root.AddCommand(NewStatsCommand())
	root.AddCommand(NewEditCommand())
	root.AddCommand(NewDeleteCommand())
	root.AddCommand(NewRestoreCommand())
	root.AddCommand(NewPurgeCommand())
	root.AddCommand(NewLimitCommand())
	root.AddCommand(NewServeCommand())

	return root
}

// bootstrap constructs the full dependency graph (config -> logger -> pool
// -> repository/cache/dailylimit/fallback/unifiederror -> service) exactly
// once, before any subcommand's RunE runs.
func bootstrap(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}

	var fileSink *logger.FileLogger
	if cfg.Log.ToFile {
		fileSink, err = logger.NewFileLogger(cfg.Log.Dir, "linker", cfg.Log.MaxBytes, cfg.Log.BackupCount, cfg.Log.RotateDaily)
		if err != nil {
			return fmt.Errorf("cmd: open file logger: %w", err)
		}
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.ToConsole, cmd.ErrOrStderr(), fileSink)

	settings := dbpool.Settings{
		DSN:            cfg.Database.Path,
		MinSize:        cfg.Database.MaxIdleConns,
		MaxSize:        cfg.Database.MaxOpenConns,
		AcquireTimeout: cfg.Database.ConnectTimeout,
		IdleReap:       cfg.Database.ConnMaxIdle,
		MigrationLock:  cfg.Database.MigrationLock,
	}
	pool := dbpool.New(settings, log)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := pool.Connect(ctx); err != nil {
		return fmt.Errorf("cmd: connect database: %w", err)
	}

	repo := repository.New(pool)
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("cmd: migrate schema: %w", err)
	}

	var baseCache *cache.Cache
	if cfg.Cache.Enabled {
		baseCache = cache.New(cfg.Cache.DefaultTTL)
	} else {
		baseCache = cache.NewDisabled()
	}
	layered := cache.NewLayered(baseCache)

	limit := dailylimit.New(pool)
	chain := fallback.NewDefaultChain()
	errs := unifiederror.New(log, chain)

	svc := service.New(repo, layered, limit, chain, errs, log)

	current = &app{cfg: cfg, log: log, pool: pool, svc: svc}
	cmd.SetContext(ctx)
	return nil
}

func teardown(ctx context.Context) error {
	if current == nil || current.pool == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return current.pool.Close(ctx)
}

// mustApp fetches the bootstrap result; it is only called from within a
// RunE, which always runs after PersistentPreRunE has populated it.
func mustApp() *app {
	if current == nil {
		panic("cmd: app accessed before bootstrap")
	}
	return current
}
