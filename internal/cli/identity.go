package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIdentityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Client identity commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored client identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Identity == "" {
				return fmt.Errorf("no identity yet, run 'rafflegrid identity new'")
			}
			NewOutput(cfg.Output).Print(IdentityResult{Identity: cfg.Identity})
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Request a fresh identity and store it",
		Long: `Request a fresh identity from the server and store it in the identity file.

Numbers held under the previous identity stay held until they expire.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := issueIdentity()
			if err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	})

	return cmd
}

func issueIdentity() (IdentityResult, error) {
	var result IdentityResult
	if err := client.Post("/api/v1/identity", nil, &result); err != nil {
		return result, err
	}

	if err := cfg.SaveIdentity(result.Identity); err != nil {
		return result, fmt.Errorf("failed to save identity: %w", err)
	}
	client.SetIdentity(result.Identity)
	return result, nil
}

// ensureIdentity creates and stores an identity on first use
func ensureIdentity() error {
	if cfg.Identity != "" {
		return nil
	}
	result, err := issueIdentity()
	if err != nil {
		return err
	}
	if cfg.Verbose {
		fmt.Printf("Created identity %s\n", result.Identity)
	}
	return nil
}
