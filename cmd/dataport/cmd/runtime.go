package cmd

import (
	"context"
	"fmt"

	"github.com/garagereg/dataport/internal/config"
	"github.com/garagereg/dataport/internal/database"
	"github.com/garagereg/dataport/internal/logger"
	"github.com/garagereg/dataport/internal/registry"
)

// appContext bundles the pieces every command needs: configuration,
// logger, table registry, and (optionally) the database connection.
type appContext struct {
	cfg     *config.Config
	log     *logger.Logger
	reg     *registry.Registry
	manager *database.Manager
	store   *database.SQLStore
}

// setupApp loads configuration, applies CLI overrides, and builds the
// logger and registry. No database connection is made.
func setupApp(formatOverride, strategyOverride string) (*appContext, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, formatOverride, strategyOverride)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &appContext{cfg: cfg, log: log, reg: registry.Default()}, nil
}

// connectApp is setupApp plus a verified database connection and store.
func connectApp(ctx context.Context, formatOverride, strategyOverride string) (*appContext, error) {
	app, err := setupApp(formatOverride, strategyOverride)
	if err != nil {
		return nil, err
	}

	app.manager = database.NewManager(app.cfg)
	if err := app.manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := app.manager.Ping(ctx); err != nil {
		app.manager.Close()
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	store, err := database.NewSQLStore(app.manager.DB, app.reg)
	if err != nil {
		app.manager.Close()
		return nil, err
	}
	app.store = store

	return app, nil
}

// close releases the database connection when one was opened.
func (a *appContext) close() {
	if a.manager != nil {
		a.manager.Close()
	}
	if a.log != nil {
		a.log.Sync()
	}
}

// optionalOrg turns the --org flag value into the pointer form the
// transfer core expects; 0 means "all tenants".
func optionalOrg(orgID int64) *int64 {
	if orgID == 0 {
		return nil
	}
	return &orgID
}
