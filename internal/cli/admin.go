package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mcoot/rafflegrid/internal/services/admin"
	"github.com/mcoot/rafflegrid/internal/services/reservation"
)

func newAdminCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands",
		Long: `Operator commands. The server checks the admin password against its
configured RAFFLEGRID_ADMIN_PASSWORD_HASH.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Cobra only runs the nearest pre-run, so chain the root's
			if root := cmd.Root(); root.PersistentPreRunE != nil {
				if err := root.PersistentPreRunE(cmd, args); err != nil {
					return err
				}
			}
			if password == "" && cfg.AdminPassword == "" && cmd.Name() != "hash-password" {
				prompted, err := readPassword("Admin password: ")
				if err != nil {
					return err
				}
				password = prompted
			}
			if password != "" {
				client.SetAdminPassword(password)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&password, "password", "", "Admin password (env: RAFFLEGRID_ADMIN_PASSWORD)")

	cmd.AddCommand(newAdminResetCmd())
	cmd.AddCommand(newAdminPaidCmd())
	cmd.AddCommand(newAdminHashPasswordCmd())

	return cmd
}

func newAdminResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Free every slot, including reserved and paid ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm := promptConfirm(os.Stdin, os.Stdout)
			if yes {
				confirm = func(string) bool { return true }
			}
			if !confirm(reservation.ResetPrompt) {
				NewOutput(cfg.Output).PrintMessage("Reset cancelled")
				return nil
			}

			var result ResetResult
			if err := client.Post("/api/v1/admin/reset", map[string]bool{"confirm": true}, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func newAdminPaidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paid <number>...",
		Short: "Mark reserved numbers as paid",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result PaidResult
			if err := client.Post("/api/v1/admin/paid", map[string][]string{"numbers": args}, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newAdminHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash to configure for a password read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("password must not be empty")
			}

			hash, err := admin.HashPassword(password)
			if err != nil {
				return err
			}

			fmt.Println(hash)
			return nil
		},
	}
}

// promptConfirm asks a y/N question on out and reads the answer from in
func promptConfirm(in io.Reader, out io.Writer) reservation.ConfirmFunc {
	return func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		answer, err := readLine(in)
		if err != nil {
			return false
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

// readPassword reads a password from the terminal with echo disabled, or
// a single line when stdin is not a terminal
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(os.Stdin)
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(string(password)), nil
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
