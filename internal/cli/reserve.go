package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReserveCmd() *cobra.Command {
	var name, contact string

	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Confirm every number you hold as a reservation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || contact == "" {
				return fmt.Errorf("--name and --contact are required")
			}
			if err := ensureIdentity(); err != nil {
				return err
			}

			req := map[string]string{
				"name":    name,
				"contact": contact,
			}
			var result ConfirmResult

			if err := client.Post("/api/v1/reservations", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Buyer name (required)")
	cmd.Flags().StringVar(&contact, "contact", "", "Buyer contact (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("contact")

	return cmd
}
