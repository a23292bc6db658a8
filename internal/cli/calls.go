package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/dialbridge/dialbridge/internal/store"
)

func newCallsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calls [call-sid]",
		Short: "List call records, or show one call in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(loadConfigOrDefaults())

			if len(args) == 1 {
				var detail struct {
					store.CallRecord
					Live         bool   `json:"live"`
					SessionState string `json:"sessionState"`
				}
				if err := client.do(http.MethodGet, "/calls/"+args[0], nil, &detail); err != nil {
					return err
				}

				fmt.Printf("Call:    %s\n", detail.SID)
				fmt.Printf("To:      %s\n", detail.ToNumber)
				fmt.Printf("From:    %s\n", detail.FromNumber)
				fmt.Printf("Status:  %s\n", detail.Status)
				if detail.StreamSID != "" {
					fmt.Printf("Stream:  %s\n", detail.StreamSID)
				}
				if detail.Live {
					fmt.Printf("Session: %s\n", detail.SessionState)
				}
				if detail.Turns > 0 {
					fmt.Printf("Turns:   %d\n", detail.Turns)
				}
				return nil
			}

			var out struct {
				Calls []store.CallRecord `json:"calls"`
			}
			if err := client.do(http.MethodGet, "/calls", nil, &out); err != nil {
				return err
			}

			if len(out.Calls) == 0 {
				fmt.Println("No calls recorded")
				return nil
			}
			for _, c := range out.Calls {
				fmt.Printf("%s  %-12s  %s\n", c.SID, c.Status, c.ToNumber)
			}
			return nil
		},
	}

	return cmd
}
