package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream live slot changes",
		Long: `Connect to the server's SSE endpoint and stream slot changes in real-time.

Events include:
  - connected: Stream established
  - slot: A slot changed (new values of the whole row)
  - reload: The grid was reset, reload every slot

Press Ctrl+C to disconnect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureIdentity(); err != nil {
				return err
			}
			return streamEvents(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

func streamEvents(jsonOutput bool) error {
	url := strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v1/events"

	// Create request
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	req.Header.Set(identityHeader, cfg.Identity)

	// Cancel on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	req = req.WithContext(ctx)

	// Make request
	httpClient := &http.Client{
		Timeout: 0, // No timeout for SSE
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if !jsonOutput {
		fmt.Printf("Connected to %s\n", cfg.ServerURL)
	}

	err = parseSSE(resp.Body, func(event, data string) {
		printEvent(event, data, jsonOutput)
	})
	if err != nil {
		// Context cancellation is expected
		if ctx.Err() != nil {
			if !jsonOutput {
				fmt.Println("\nDisconnected")
			}
			return nil
		}
		return fmt.Errorf("stream error: %w", err)
	}

	if !jsonOutput {
		fmt.Println("Disconnected")
	}
	return nil
}

// parseSSE calls emit for every complete named event in the stream.
// Comment lines such as keepalives are skipped.
func parseSSE(r io.Reader, emit func(event, data string)) error {
	scanner := bufio.NewScanner(r)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			// End of event
			if currentEvent != "" {
				emit(currentEvent, strings.Join(dataLines, "\n"))
			}
			currentEvent = ""
			dataLines = nil
		}
	}
	return scanner.Err()
}

func printEvent(event, data string, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		jsonData, _ := json.Marshal(SSEEvent{Time: now, Event: event, Data: data})
		fmt.Println(string(jsonData))
		return
	}

	fmt.Printf("[%s] %s\n", now.Format("15:04:05"), describeEvent(event, data, cfg.Identity))
}

// slotEvent is the data of a "slot" event
type slotEvent struct {
	Op   string `json:"op"`
	Slot Slot   `json:"slot"`
}

// describeEvent renders an event as one line from this client's point of view
func describeEvent(event, data, identity string) string {
	switch event {
	case "connected":
		return "stream connected"
	case "reload":
		var msg struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal([]byte(data), &msg)
		return fmt.Sprintf("grid reloaded (%s), run 'rafflegrid slots' to refresh", msg.Reason)
	case "slot":
		var msg slotEvent
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			break
		}
		slot := msg.Slot
		switch slot.State {
		case "held":
			if slot.Holder == identity {
				return fmt.Sprintf("%s held by you", slot.Number)
			}
			return fmt.Sprintf("%s held by another client", slot.Number)
		case "reserved", "paid":
			return fmt.Sprintf("%s %s for %s", slot.Number, slot.State, slot.BuyerName)
		default:
			return fmt.Sprintf("%s %s", slot.Number, slot.State)
		}
	}
	return fmt.Sprintf("%s: %s", event, strings.ReplaceAll(data, "\n", " "))
}
