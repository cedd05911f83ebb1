// Package agent runs one-shot Claude invocations and reports their lifecycle
// on the event bus.
package agent

import (
	"context"
	"fmt"
	"strings"

	claude "github.com/shaharia-lab/claude-agent-sdk-go/claude"

	"github.com/shaharia-lab/claudeflow/internal/eventbus"
)

// RunOptions configures a Claude invocation.
type RunOptions struct {
	// Model selects the Claude model; empty uses the CLI default.
	Model string

	// SystemPrompt overrides the default system prompt when non-empty.
	SystemPrompt string

	// SessionID resumes an existing session for multi-turn conversations.
	SessionID string

	// NoThinking disables extended thinking.
	NoThinking bool
}

// Result is the final result of a Claude invocation.
type Result struct {
	SessionID string
	Answer    string
	Thinking  string
	CostUSD   float64
	Usage     UsageStats
}

// UsageStats holds token usage information.
type UsageStats struct {
	InputTokens  int
	OutputTokens int
}

// Runner invokes Claude and mirrors requests, responses, and errors onto the
// bus as claude.* events.
type Runner struct {
	bus *eventbus.Bus
}

// NewRunner creates a Runner publishing on bus.
func NewRunner(bus *eventbus.Bus) *Runner {
	return &Runner{bus: bus}
}

func buildSDKOptions(opts RunOptions) []claude.Option {
	sdkOpts := []claude.Option{
		claude.WithPermissionMode(claude.PermissionModeBypassPermissions),
		claude.WithBypassPermissions(),
	}
	if opts.Model != "" {
		sdkOpts = append(sdkOpts, claude.WithModel(opts.Model))
	}
	if opts.SystemPrompt != "" {
		sdkOpts = append(sdkOpts, claude.WithSystemPrompt(opts.SystemPrompt))
	}
	if opts.SessionID != "" {
		sdkOpts = append(sdkOpts, claude.WithSessionID(opts.SessionID))
	}
	thinkingMode := claude.ThinkingAdaptive
	if opts.NoThinking {
		thinkingMode = claude.ThinkingDisabled
	}
	sdkOpts = append(sdkOpts, claude.WithThinking(thinkingMode))
	return sdkOpts
}

// Run executes the question to completion and returns the final Result.
func (r *Runner) Run(ctx context.Context, question string, opts RunOptions) (*Result, error) {
	r.publish(eventbus.TypeClaudeRequest, map[string]any{
		"model":      opts.Model,
		"session_id": opts.SessionID,
	})

	stream, err := claude.Query(ctx, question, buildSDKOptions(opts)...)
	if err != nil {
		r.publishError(err)
		return nil, fmt.Errorf("starting claude: %w", err)
	}

	var finalThinking string
	var result *Result
	var resultErr error

	for event := range stream.Events() {
		switch event.Type {
		case claude.TypeAssistant:
			if event.Assistant != nil {
				if t := event.Assistant.Thinking(); t != "" {
					finalThinking = t
				}
			}

		case claude.TypeResult:
			if event.Result == nil {
				continue
			}
			if event.Result.IsError {
				msg := event.Result.Result
				if msg == "" && len(event.Result.Errors) > 0 {
					msg = strings.Join(event.Result.Errors, "; ")
				}
				if msg == "" {
					msg = fmt.Sprintf("subtype=%s", event.Result.Subtype)
				}
				resultErr = fmt.Errorf("claude error: %s", msg)
				continue
			}
			result = &Result{
				SessionID: event.Result.SessionID,
				Answer:    event.Result.Result,
				Thinking:  finalThinking,
				CostUSD:   event.Result.TotalCostUSD,
				Usage: UsageStats{
					InputTokens:  event.Result.Usage.InputTokens,
					OutputTokens: event.Result.Usage.OutputTokens,
				},
			}
			// Keep draining so the subprocess finishes writing the session
			// before the caller's context can be canceled.
		}
	}

	if resultErr != nil {
		r.publishError(resultErr)
		return nil, resultErr
	}
	if result == nil {
		err := fmt.Errorf("claude finished without returning a result")
		r.publishError(err)
		return nil, err
	}

	r.publish(eventbus.TypeClaudeResponse, map[string]any{
		"session_id":    result.SessionID,
		"cost_usd":      result.CostUSD,
		"input_tokens":  result.Usage.InputTokens,
		"output_tokens": result.Usage.OutputTokens,
	})
	return result, nil
}

func (r *Runner) publish(eventType string, payload map[string]any) {
	// Event delivery is best effort here; a closed bus only means shutdown.
	_ = r.bus.Publish(eventbus.NewClaudeEvent(eventType, payload))
}

func (r *Runner) publishError(err error) {
	r.publish(eventbus.TypeClaudeError, map[string]any{"error": err.Error()})
}
