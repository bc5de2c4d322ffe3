package cli

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/internal/adapters/file"
	"github.com/aretw0/cadence/internal/config"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/observability"
)

// NewEngine initializes an engine over cfg.Repo with the configured loader.
// Debug adds lifecycle logging on top of any extra hooks.
func NewEngine(cfg config.Config, logger *slog.Logger, debug bool, hooks ...domain.LifecycleHooks) (*cadence.Engine, error) {
	var all domain.LifecycleHooks
	if debug {
		all = observability.LogHooks(logger)
	}
	for _, h := range hooks {
		all = all.Merge(h)
	}

	opts := []cadence.Option{
		cadence.WithLogger(logger),
		cadence.WithLifecycleHooks(all),
		cadence.WithLoopGuard(cfg.Runtime.LoopGuard),
		cadence.WithMaxStackDepth(cfg.Runtime.MaxStackDepth),
	}
	if cfg.Loader == config.LoaderFile {
		opts = append(opts, cadence.WithLoader(file.NewLoader(cfg.Repo)))
	}

	engine, err := cadence.New(cfg.Repo, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}
