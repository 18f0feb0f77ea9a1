package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newSlotsCmd() *cobra.Command {
	var mine bool

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show the slot grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureIdentity(); err != nil {
				return err
			}

			var view View
			if err := client.Get("/api/v1/slots", &view); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			if mine {
				out.Print(mineOf(view))
				return nil
			}
			out.Print(view)
			return nil
		},
	}

	cmd.Flags().BoolVar(&mine, "mine", false, "Only show numbers held by this client")

	return cmd
}

func mineOf(view View) MineResult {
	result := MineResult{Identity: view.Identity, Slots: []Slot{}}
	for _, s := range view.Slots {
		if s.State == "held" && s.Holder == view.Identity {
			result.Slots = append(result.Slots, s)
		}
	}
	return result
}

func newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <number>",
		Short: "Hold a free number, or release one you hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureIdentity(); err != nil {
				return err
			}

			var result ToggleResult
			if err := client.Post("/api/v1/slots/"+url.PathEscape(args[0])+"/toggle", nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many numbers are taken",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats Stats
			if err := client.Get("/api/v1/stats", &stats); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(stats)
			return nil
		},
	}
}
