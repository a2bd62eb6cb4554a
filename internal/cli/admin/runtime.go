package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/tutorai/internal/app"
	"github.com/cloo-solutions/tutorai/internal/config"
	"github.com/cloo-solutions/tutorai/internal/observability"
	"go.uber.org/zap"
)

// loadConfig loads configuration and builds the process logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openRuntime opens storage and, when withServices is set, the model-backed
// services. The caller must Close the result and Sync the logger.
func openRuntime(ctx context.Context, withServices bool) (*app.Dependencies, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	if withServices {
		if err := deps.BuildServices(); err != nil {
			deps.Close()
			_ = logger.Sync()
			return nil, err
		}
	}
	return deps, nil
}

func closeRuntime(deps *app.Dependencies) {
	deps.Close()
	_ = deps.Logger.Sync()
}
