// Package agent implements the core agent loop: one user message in,
// bounded rounds of model calls and tool executions, one reply out.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hearthd/hearth/internal/aliases"
	"github.com/hearthd/hearth/internal/entities"
	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/memory"
	"github.com/hearthd/hearth/internal/prompts"
	"github.com/hearthd/hearth/internal/tools"
)

// AliasLister is the read side of the alias store used for prompts.
type AliasLister interface {
	All() ([]aliases.Alias, error)
}

// UsageTracker records token consumption per model call. Optional.
type UsageTracker interface {
	Track(chatID, model string, inputTokens, outputTokens int) error
}

// Config bounds one agent run.
type Config struct {
	Model      string
	MaxTokens  int
	MaxRounds  int
	RunTimeout time.Duration
}

// Deps carries the agent's collaborators.
type Deps struct {
	LLM      llm.Client
	Registry *tools.Registry
	History  *memory.History
	Cache    *entities.Cache
	Aliases  AliasLister
	Usage    UsageTracker
	Logger   *slog.Logger
}

// Outcome summarizes one completed run.
type Outcome struct {
	RunID  string
	Reply  string
	Rounds int
	// ToolCalls counts tool executions across all rounds.
	ToolCalls int
	// Aborted is set when the run hit the round limit or timed out
	// instead of the model finishing on its own.
	Aborted bool

	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// Agent runs conversations against the hub.
type Agent struct {
	llm      llm.Client
	registry *tools.Registry
	history  *memory.History
	cache    *entities.Cache
	aliases  AliasLister
	usage    UsageTracker
	cfg      Config
	logger   *slog.Logger
}

// New creates an agent.
func New(cfg Config, deps Deps) *Agent {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 10
	}
	return &Agent{
		llm:      deps.LLM,
		registry: deps.Registry,
		history:  deps.History,
		cache:    deps.Cache,
		aliases:  deps.Aliases,
		usage:    deps.Usage,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle runs one user message to completion. Round-limit and timeout
// aborts are reported in the Outcome, not as errors; an error means the
// run could not produce any reply at all.
func (a *Agent) Handle(ctx context.Context, chatID, text string) (*Outcome, error) {
	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}

	if a.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.RunTimeout)
		defer cancel()
	}

	started := time.Now()
	outcome := &Outcome{RunID: runID.String()}
	logger := a.logger.With("run_id", outcome.RunID, "chat_id", chatID)
	logger.Info("run started", "text_len", len(text))

	// Best effort; a stale snapshot still beats no snapshot.
	if err := a.cache.EnsureFresh(ctx); err != nil {
		logger.Warn("entity refresh failed before run", "error", err)
	}

	system := a.systemPrompt(logger)

	userMsg := llm.Message{Role: "user", Content: text}
	messages := append(a.history.Messages(chatID), userMsg)

	reply, runErr := a.run(ctx, logger, chatID, system, messages, outcome)
	outcome.Duration = time.Since(started)

	if runErr != nil {
		if errors.Is(runErr, context.DeadlineExceeded) {
			outcome.Aborted = true
			outcome.Reply = prompts.RunTimedOut
			// The diagnostic is the assistant turn for this exchange.
			a.history.Append(chatID, userMsg)
			a.history.Append(chatID, llm.Message{Role: "assistant", Content: prompts.RunTimedOut})
			logger.Warn("run timed out",
				"rounds", outcome.Rounds,
				"duration", outcome.Duration.Round(time.Millisecond),
			)
			return outcome, nil
		}
		logger.Error("run failed", "error", runErr)
		return nil, runErr
	}

	outcome.Reply = reply
	a.history.Append(chatID, userMsg)
	a.history.Append(chatID, llm.Message{Role: "assistant", Content: reply})

	logger.Info("run finished",
		"rounds", outcome.Rounds,
		"tool_calls", outcome.ToolCalls,
		"aborted", outcome.Aborted,
		"duration", outcome.Duration.Round(time.Millisecond),
	)
	return outcome, nil
}

// Reset discards the conversation history for one chat.
func (a *Agent) Reset(chatID string) {
	a.history.Clear(chatID)
	a.logger.Info("conversation reset", "chat_id", chatID)
}

// run drives the model/tool rounds and returns the final reply text.
func (a *Agent) run(ctx context.Context, logger *slog.Logger, chatID, system string, messages []llm.Message, outcome *Outcome) (string, error) {
	nudged := false

	for outcome.Rounds < a.cfg.MaxRounds {
		outcome.Rounds++

		resp, err := a.llm.Chat(ctx, llm.ChatRequest{
			Model:     a.cfg.Model,
			System:    system,
			Messages:  messages,
			Tools:     a.registry.Defs(),
			MaxTokens: a.cfg.MaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("model call (round %d): %w", outcome.Rounds, err)
		}

		outcome.InputTokens += resp.InputTokens
		outcome.OutputTokens += resp.OutputTokens
		if a.usage != nil {
			if err := a.usage.Track(chatID, resp.Model, resp.InputTokens, resp.OutputTokens); err != nil {
				logger.Warn("usage tracking failed", "error", err)
			}
		}

		if len(resp.Message.ToolCalls) == 0 {
			if resp.Message.Content != "" {
				return resp.Message.Content, nil
			}
			// Empty reply. Nudge once if tools already ran, then fall
			// back to a canned apology.
			if outcome.ToolCalls > 0 && !nudged && outcome.Rounds < a.cfg.MaxRounds {
				nudged = true
				messages = append(messages, llm.Message{Role: "user", Content: prompts.EmptyResponseNudge})
				continue
			}
			return prompts.EmptyResponseFallback, nil
		}

		// Execute tool calls in request order; every call gets a result
		// message, and results keep the call order.
		messages = append(messages, resp.Message)
		for _, tc := range resp.Message.ToolCalls {
			outcome.ToolCalls++
			result, err := a.registry.Execute(ctx, tc.Name, tc.Arguments)
			if err != nil {
				logger.Warn("tool failed", "tool", tc.Name, "error", err)
				result = fmt.Sprintf(`{"status":"error","error":"internal","message":%q}`, err.Error())
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Content:    result,
			})

			if ctx.Err() != nil {
				return "", ctx.Err()
			}
		}
	}

	logger.Warn("round limit reached", "rounds", outcome.Rounds, "tool_calls", outcome.ToolCalls)
	outcome.Aborted = true
	return prompts.RoundLimitReached, nil
}

// systemPrompt assembles the per-run system prompt.
func (a *Agent) systemPrompt(logger *slog.Logger) string {
	var known []aliases.Alias
	if a.aliases != nil {
		var err error
		known, err = a.aliases.All()
		if err != nil {
			logger.Warn("alias listing failed, prompt omits aliases", "error", err)
		}
	}
	return prompts.SystemPrompt(a.cache.Snapshot(), known, time.Now())
}
