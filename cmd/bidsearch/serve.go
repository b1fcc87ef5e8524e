package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/bid-search/internal/api"
	"github.com/kitbuilder587/bid-search/internal/ratelimit"
	"github.com/kitbuilder587/bid-search/internal/telegram"
)

func serveCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the Telegram bot when TELEGRAM_BOT_TOKEN is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if port > 0 {
				cfg.HTTP.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger, appOptions{WithLog: true})
			if err != nil {
				return err
			}
			defer a.Close()

			limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute})
			defer limiter.Stop()

			server := api.NewServer(api.Deps{
				Service: a.service,
				Limiter: limiter,
				Metrics: a.metrics,
				Logger:  logger,
				Config: api.Config{
					Port:           cfg.HTTP.Port,
					AllowedOrigins: cfg.HTTP.AllowedOrigins,
					Debug:          debug,
				},
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Run(gctx)
			})

			if cfg.Telegram.Token != "" {
				bot, err := telegram.New(telegram.BotConfig{
					Token:             cfg.Telegram.Token,
					Debug:             debug,
					RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
				}, a.service, logger, a.metrics)
				if err != nil {
					stop()
					g.Wait()
					return err
				}
				g.Go(func() error {
					return bot.Run(gctx)
				})
			} else {
				logger.Info("TELEGRAM_BOT_TOKEN is not set, bot disabled")
			}

			err = g.Wait()
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("service stopped with error", zap.Error(err))
				return err
			}
			logger.Info("service stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides HTTP_PORT)")
	return cmd
}
