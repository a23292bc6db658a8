package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dialbridge/dialbridge/internal/bridge"
	"github.com/dialbridge/dialbridge/internal/config"
	"github.com/dialbridge/dialbridge/internal/gateway"
	"github.com/dialbridge/dialbridge/internal/realtime"
	"github.com/dialbridge/dialbridge/internal/store"
	"github.com/dialbridge/dialbridge/internal/telephony"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dialbridge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var opts []gateway.ServerOption

			dbPath := cfg.Store.Path
			if dbPath == "" {
				dbPath = paths.DefaultDBPath()
			}
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			opts = append(opts, gateway.WithCallStore(store.NewCallStore(db)))

			if cfg.Twilio.AccountSID != "" {
				calls := telephony.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, log)
				opts = append(opts, gateway.WithCallAPI(calls))
			} else {
				log.Warn().Msg("telephony credentials not configured — call origination disabled")
			}

			opts = append(opts, gateway.WithAdapterDialer(speechDialer(ctx, cfg)))

			srv := gateway.New(cfg, log, opts...)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// speechDialer opens one speech-service connection per media session.
func speechDialer(ctx context.Context, cfg config.Config) bridge.AdapterDialer {
	return func(instructions string, h realtime.Handler) (bridge.Adapter, error) {
		return realtime.Dial(ctx, realtime.Config{
			APIKey:          cfg.OpenAI.APIKey,
			Model:           cfg.OpenAI.Model,
			Voice:           cfg.OpenAI.Voice,
			Instructions:    instructions,
			VADThreshold:    cfg.OpenAI.VADThreshold,
			SilenceMs:       cfg.OpenAI.SilenceMs,
			PrefixPaddingMs: cfg.OpenAI.PrefixPaddingMs,
			Retry:           realtime.DefaultRetryPolicy(),
		}, h, log)
	}
}
