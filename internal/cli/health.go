package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const healthRetryInterval = 500 * time.Millisecond

func newHealthCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the server and its slot store are reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := waitHealthy(wait, healthRetryInterval, func() (HealthResult, error) {
				var result HealthResult
				err := client.Get("/api/v1/health", &result)
				return result, err
			})
			if err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "Keep retrying for up to this long until the server is healthy")

	return cmd
}

// waitHealthy calls check until it succeeds or the wait runs out. A zero
// wait checks exactly once.
func waitHealthy(wait, interval time.Duration, check func() (HealthResult, error)) (HealthResult, error) {
	deadline := time.Now().Add(wait)
	for {
		result, err := check()
		if err == nil {
			return result, nil
		}
		if !time.Now().Add(interval).Before(deadline) {
			if wait > 0 {
				return HealthResult{}, fmt.Errorf("server not healthy after %s: %w", wait, err)
			}
			return HealthResult{}, err
		}
		time.Sleep(interval)
	}
}
