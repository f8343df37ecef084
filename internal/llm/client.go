// Package llm sends transcribed user text to a chat-completions endpoint
// and returns the reply to be spoken. The backend is an opaque
// collaborator; failures become an apologetic spoken reply, not an error
// the session has to unwind.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/hmori/siriusd/internal/config"
)

// errorReply is spoken when the backend is unreachable or answers garbage.
const errorReply = "ごめんなさい、うまく考えられませんでした。もう一度話しかけてください。"

// Client wraps one chat-completions endpoint with a fixed system prompt.
type Client struct {
	api    openai.Client
	model  string
	system string
	logger *slog.Logger
}

// NewClient builds a chat client from the llm config section. The endpoint
// is any OpenAI-compatible server; a local one needs no real API key.
func NewClient(cfg config.LLMConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "not-needed"
	}

	return &Client{
		api: openai.NewClient(
			option.WithBaseURL(strings.TrimRight(cfg.Endpoint, "/")),
			option.WithAPIKey(apiKey),
			option.WithRequestTimeout(timeout),
		),
		model:  cfg.Model,
		system: cfg.SystemPrompt,
		logger: logger,
	}
}

// Reply asks the backend for a response to the user's text. On any
// failure it logs and returns the fixed apologetic reply, so the speech
// path always has something to say.
func (c *Client) Reply(ctx context.Context, userText string) string {
	reply, err := c.tryReply(ctx, userText)
	if err != nil {
		c.logger.Error("chat completion failed", "error", err)
		return errorReply
	}
	return reply
}

func (c *Client) tryReply(ctx context.Context, userText string) (string, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return "", errors.New("empty user text")
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if c.system != "" {
		messages = append(messages, openai.SystemMessage(c.system))
	}
	messages = append(messages, openai.UserMessage(userText))

	start := time.Now()
	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}

	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	if reply == "" {
		return "", errors.New("completion returned empty content")
	}

	c.logger.Info("chat completion",
		"chars_in", len(userText),
		"chars_out", len(reply),
		"elapsed_ms", time.Since(start).Milliseconds())
	return reply, nil
}

// ErrorReply exposes the fixed failure reply for tests and diagnostics.
func ErrorReply() string {
	return errorReply
}
