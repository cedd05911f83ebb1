package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/claudeflow/internal/config"
	"github.com/shaharia-lab/claudeflow/internal/eventbus"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent events from a running claude-flow server",
	Long:  "List recent events from the in-memory history buffer of a running server, or from the persisted archive with --archive.",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int("port", 0, "Server port (overrides PORT env var)")
	historyCmd.Flags().String("type", "", "Filter by event type (e.g. agent.error)")
	historyCmd.Flags().Int("limit", 20, "Maximum number of events")
	historyCmd.Flags().Bool("archive", false, "Read from the persisted archive instead of the history buffer")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}

	eventType, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")
	fromArchive, _ := cmd.Flags().GetBool("archive")

	q := url.Values{}
	if eventType != "" {
		q.Set("type", eventType)
	}
	q.Set("limit", strconv.Itoa(limit))
	if fromArchive {
		q.Set("source", "archive")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/api/events?%s", cfg.Port, q.Encode()))
	if err != nil {
		return fmt.Errorf("fetching events: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var events []eventbus.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return fmt.Errorf("decoding events: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("no events")
		return nil
	}
	for _, evt := range events {
		payload := ""
		if len(evt.Payload) > 0 {
			b, _ := json.Marshal(evt.Payload)
			payload = " " + string(b)
		}
		fmt.Printf("%s  %-22s %s%s\n",
			evt.Timestamp.Local().Format("15:04:05"),
			evt.Type,
			evt.Source,
			payload,
		)
	}
	return nil
}
