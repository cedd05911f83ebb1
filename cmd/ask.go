package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/claudeflow/internal/agent"
	"github.com/shaharia-lab/claudeflow/internal/config"
	"github.com/shaharia-lab/claudeflow/internal/eventbus"
)

var askCmd = &cobra.Command{
	Use:   "ask [flags] <question> [session-id]",
	Short: "Ask Claude a question via the CLI",
	Long: `Ask Claude a question directly via the CLI.

Examples:
  claude-flow ask "What is 2+2?"
  claude-flow ask --model opus "Explain this trace"
  claude-flow ask "Follow up" <session-uuid>
  claude-flow ask --no-thinking "Quick question"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().String("model", "", "Claude model to use (overrides FLOW_DEFAULT_MODEL)")
	askCmd.Flags().String("system", "", "System prompt override")
	askCmd.Flags().Bool("no-thinking", false, "Disable extended thinking")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]
	sessionID := ""
	if len(args) == 2 {
		sessionID = args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = cfg.DefaultModel
	}
	systemPrompt, _ := cmd.Flags().GetString("system")
	noThinking, _ := cmd.Flags().GetBool("no-thinking")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// A local bus gives ask the same claude.* event trail as the server.
	bus := eventbus.NewBus(eventbus.WithCapacity(cfg.HistoryCapacity))
	defer bus.Close()

	result, err := agent.NewRunner(bus).Run(ctx, question, agent.RunOptions{
		Model:        model,
		SystemPrompt: systemPrompt,
		SessionID:    sessionID,
		NoThinking:   noThinking,
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	fmt.Fprintf(os.Stderr, "\nsession: %s\ncost: $%.6f | tokens in=%d out=%d\n",
		result.SessionID,
		result.CostUSD,
		result.Usage.InputTokens,
		result.Usage.OutputTokens,
	)
	return nil
}
