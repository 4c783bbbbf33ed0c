package cli

import (
	"encoding/json/v2"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// healthEnvelope mirrors the agent's /health response shape.
type healthEnvelope struct {
	Data struct {
		Status     string `json:"status"`
		Version    string `json:"version"`
		Components map[string]struct {
			Status  string `json:"status"`
			Latency string `json:"latency,omitempty"`
			Message string `json:"message,omitempty"`
		} `json:"components"`
	} `json:"data"`
	Success bool `json:"success"`
}

// rankState mirrors the agent's /api/v1/rank response shape.
type rankState struct {
	IsLoading   bool `json:"is_loading"`
	Rank        int  `json:"rank"`
	Progress    int  `json:"progress"`
	MaxProgress int  `json:"max_progress"`
	LevelUp     bool `json:"level_up"`
	Reveal      bool `json:"reveal"`
}

// StatusCmd returns the status command.
func StatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running agent's health and rank state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 3 * time.Second}
			base := "http://" + addr

			var health healthEnvelope
			if err := getJSON(client, base+"/health", &health); err != nil {
				fmt.Println(color.New(color.FgRed).Sprint("Agent: not running"))
				fmt.Printf("   %v\n", err)
				return nil
			}

			fmt.Printf("Agent: %s (v%s)\n", statusColored(health.Data.Status), health.Data.Version)
			for name, comp := range health.Data.Components {
				line := fmt.Sprintf("   %s: %s", name, statusColored(comp.Status))
				if comp.Latency != "" {
					line += fmt.Sprintf(" (%s)", comp.Latency)
				}
				if comp.Message != "" {
					line += " - " + comp.Message
				}
				fmt.Println(line)
			}
			fmt.Println()

			var rank rankState
			if err := getJSON(client, base+"/api/v1/rank", &rank); err != nil {
				return fmt.Errorf("failed to read rank state: %w", err)
			}

			if rank.IsLoading {
				fmt.Println("Rank: reconciling...")
				return nil
			}

			fmt.Printf("Rank: %s\n", color.New(color.FgHiCyan, color.Bold).Sprintf("%d", rank.Rank))
			fmt.Printf("   Progress this week: %d/%d\n", rank.Progress, rank.MaxProgress)
			if rank.LevelUp {
				fmt.Println(color.New(color.FgHiMagenta).Sprint("   Level-up pending acknowledgment"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7420", "agent listen address")

	return cmd
}

func getJSON(client *http.Client, url string, dest any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// An unhealthy agent answers /health with 503 and a body worth showing.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	return json.UnmarshalRead(resp.Body, dest)
}

func statusColored(status string) string {
	switch status {
	case "healthy":
		return color.New(color.FgGreen).Sprint(status)
	case "degraded":
		return color.New(color.FgYellow).Sprint(status)
	default:
		return color.New(color.FgRed).Sprint(status)
	}
}
