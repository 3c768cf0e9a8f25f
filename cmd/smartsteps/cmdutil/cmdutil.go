// Package cmdutil holds the shared bootstrap used by the smartsteps
// subcommands: flag plumbing, config loading and engine construction.
package cmdutil

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/config"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/engine"
	"github.com/Loflou-Inc/SmartSteps-PROD-sub000/pkg/logger"
)

// Runtime bundles everything a command needs to run against the engine.
type Runtime struct {
	Config  *config.Config
	Logger  *zap.Logger
	Engine  *engine.Engine
	cleanup func()
}

// Close tears the runtime down in reverse construction order.
func (r *Runtime) Close() {
	if r.cleanup != nil {
		r.cleanup()
	}
	_ = r.Logger.Sync()
}

// NewRuntime loads config for the command's --config-dir, builds a logger
// honoring --debug, and assembles the engine.
func NewRuntime(ctx context.Context, cmd *cobra.Command) (*Runtime, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logger.NewLogger(debug)

	eng, cleanup, err := engine.Build(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("building engine: %w", err)
	}

	return &Runtime{
		Config:  cfg,
		Logger:  log,
		Engine:  eng,
		cleanup: cleanup,
	}, nil
}
