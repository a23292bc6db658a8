package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/dialbridge/dialbridge/internal/config"
	"github.com/dialbridge/dialbridge/internal/gateway"
)

func loadConfigOrDefaults() config.Config {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return config.Defaults()
	}
	return cfg
}

func newCallCmd() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "call [number]",
		Short: "Place an outbound call handled by the voice agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return fmt.Errorf("--prompt is required: tell the agent what the call is for")
			}

			client := newAPIClient(loadConfigOrDefaults())

			var out gateway.OriginateResponse
			err := client.do(http.MethodPost, "/calls", gateway.OriginateRequest{
				To:     args[0],
				Prompt: prompt,
			}, &out)
			if err != nil {
				return err
			}

			fmt.Printf("Call placed: %s -> %s (%s)\n", out.CallSID, out.To, out.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "objective for the agent on this call")

	return cmd
}

func newHangupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hangup [call-sid]",
		Short: "End an in-flight call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(loadConfigOrDefaults())

			var out map[string]string
			if err := client.do(http.MethodDelete, "/calls/"+args[0], nil, &out); err != nil {
				return err
			}

			fmt.Printf("Call %s ended\n", args[0])
			return nil
		},
	}
}
