package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/claudeflow/internal/config"
	"github.com/shaharia-lab/claudeflow/internal/service"
)

var (
	statusTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(20)
	statusOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	statusDownStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running claude-flow server",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Int("port", 0, "Server port (overrides PORT env var)")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	base := fmt.Sprintf("http://localhost:%d", cfg.Port)
	client := &http.Client{Timeout: 3 * time.Second}

	fmt.Println(statusTitleStyle.Render("Claude-Flow"))

	resp, err := client.Get(base + "/health")
	if err != nil {
		fmt.Printf("%s %s\n", statusLabelStyle.Render("Server"), statusDownStyle.Render("down"))
		fmt.Printf("%s %s\n", statusLabelStyle.Render("Address"), base)
		return nil
	}
	_ = resp.Body.Close()
	fmt.Printf("%s %s\n", statusLabelStyle.Render("Server"), statusOKStyle.Render("up"))
	fmt.Printf("%s %s\n", statusLabelStyle.Render("Address"), base)

	stats, err := fetchStats(client, base)
	if err != nil {
		return fmt.Errorf("fetching stats: %w", err)
	}

	fmt.Printf("%s %d\n", statusLabelStyle.Render("Events published"), stats.Bus.Published)
	fmt.Printf("%s %d / %d\n", statusLabelStyle.Render("History"), stats.Bus.HistoryLen, stats.Bus.Capacity)
	fmt.Printf("%s %d\n", statusLabelStyle.Render("Subscribers"), stats.Bus.Subscribers)
	fmt.Printf("%s %d\n", statusLabelStyle.Render("Handler failures"), stats.Bus.Failures)

	var archived int64
	for _, n := range stats.Archived {
		archived += n
	}
	fmt.Printf("%s %d\n", statusLabelStyle.Render("Archived events"), archived)
	return nil
}

func fetchStats(client *http.Client, base string) (service.Stats, error) {
	var stats service.Stats
	resp, err := client.Get(base + "/api/events/stats")
	if err != nil {
		return stats, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return stats, json.NewDecoder(resp.Body).Decode(&stats)
}
