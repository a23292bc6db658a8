package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dialbridge/dialbridge/internal/config"
	"github.com/dialbridge/dialbridge/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show dialbridge status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("dialbridge %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
					cfg = config.Defaults()
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
					return nil
				}
			}

			fmt.Printf("Server:  port=%d bind=%s publicHost=%s\n",
				cfg.Server.Port, cfg.Server.Bind, orUnset(cfg.Server.PublicHost))

			if cfg.Twilio.AccountSID != "" {
				fmt.Printf("Twilio:  account=%s from=%s\n", cfg.Twilio.AccountSID, cfg.Twilio.FromNumber)
			} else {
				fmt.Println("Twilio:  (not configured)")
			}

			if cfg.OpenAI.APIKey != "" {
				fmt.Printf("Speech:  model=%s voice=%s\n", cfg.OpenAI.Model, cfg.OpenAI.Voice)
			} else {
				fmt.Println("Speech:  (no API key)")
			}

			fmt.Printf("Agent:   grace=%ds\n", cfg.Agent.GraceSeconds)

			dbPath := cfg.Store.Path
			if dbPath == "" {
				dbPath = paths.DefaultDBPath()
			}
			fmt.Printf("Store:   %s\n", dbPath)

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
