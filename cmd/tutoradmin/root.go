package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/config"
	"github.com/yolymatics/tutoring-service/internal/events"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/repositories/postgres"
	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/pkg"
)

// env is what every subcommand works with once the root has connected.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *gorm.DB
	repo     repositories.Repository
	services services.ServiceManager
}

func (e *env) close() {
	if e.services != nil {
		_ = e.services.Shutdown(context.Background())
	}
	if e.repo != nil {
		_ = e.repo.Close()
		return
	}
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "tutoradmin",
		Short:         "Operator commands for the tutoring service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	connect := func(withServices bool) (*env, error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		// migrations are run explicitly by the migrate command
		cfg.DBAutoMigrate = false
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			return nil, err
		}

		e := &env{cfg: cfg, logger: logger, db: db}
		if !withServices {
			return e, nil
		}

		cm := cache.NewCacheManager(nil)
		repoConfig := pkg.NewRepositoryConfig(cfg, db, nil, cm)
		// accounts created here are trusted and need no confirmation email
		repoConfig.RequireEmailConfirmation = false
		e.repo = postgres.NewPostgreSQLRepository(repoConfig)

		e.services = services.NewServiceManager(services.Dependencies{
			Repo:   e.repo,
			Cache:  cm,
			Bus:    events.NewBus(logger),
			Logger: logger,
		}, services.ServiceManagerConfig{
			Auth: services.AuthServiceConfig{LoginPath: cfg.Auth.LoginPath, PublicURL: cfg.Auth.PublicURL},
		})
		if err := e.services.Initialize(context.Background()); err != nil {
			e.close()
			return nil, err
		}
		return e, nil
	}

	root.AddCommand(
		newMigrateCmd(connect),
		newCreateAdminCmd(connect, readPassword),
		newSetRoleCmd(connect),
	)
	return root
}
