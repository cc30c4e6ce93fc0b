package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voice-relay/internal/application"
	"voice-relay/internal/infra/health"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger := setupLogger(cfg.Log)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			deps, err := buildDependencies(ctx, cfg, logger)
			if err != nil {
				logger.Error("building dependencies", "error", err)
				return err
			}
			defer deps.Close()

			platform, err := createPlatform(cfg.Platform, logger)
			if err != nil {
				err = errors.New(application.Redact(err.Error(), secrets(cfg)...))
				logger.Error("creating platform", "error", err)
				return err
			}

			if cfg.Health.Addr != "" {
				hs := health.NewServer(cfg.Health.Addr, platform.Name(), deps.journal, logger)
				if err := hs.Start(ctx); err != nil {
					return fmt.Errorf("starting health server: %w", err)
				}
				defer hs.Stop()
			}

			relay := deps.relay(platform, cfg, logger)

			logger.Info("starting voice relay",
				"platform", platform.Name(),
				"recognizer", cfg.Recognizer.Provider,
				"generator", cfg.Generator.Provider,
				"synthesizer", cfg.Synthesizer.Provider,
			)

			err = relay.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, application.ErrPlatformClosed) {
				err = errors.New(application.Redact(err.Error(), secrets(cfg)...))
				logger.Error("relay error", "error", err)
				return err
			}
			logger.Info("shutting down")
			return nil
		},
	}
}
