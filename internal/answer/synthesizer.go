// Package answer turns retrieved context into a natural-language answer.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bull/rag-qa-server/internal/config"
)

const (
	// FallbackLength is the number of context characters returned when no
	// answer can be generated.
	FallbackLength = 500

	// TruncationMarker ends every fallback answer.
	TruncationMarker = "..."
)

const systemPrompt = "你是一个有用的AI助手，能够基于提供的信息准确回答问题。"

const userPromptTemplate = `基于以下信息回答用户问题。请确保答案准确、简洁且有用。

上下文信息：
%s

用户问题：%s

请根据上下文信息回答问题。如果上下文中没有相关信息，请说明无法根据提供的信息回答。`

// ErrEmptyCompletion is returned when the chat API answers without choices.
var ErrEmptyCompletion = errors.New("chat completion returned no choices")

// ChatClient sends one system and one user message and returns the reply.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAIChat is a ChatClient for any OpenAI-compatible chat completion API
// (DeepSeek by default).
type OpenAIChat struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAIChat creates a chat client from cfg.
func NewOpenAIChat(cfg config.ChatConfig) *OpenAIChat {
	client := openai.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
	)
	return &OpenAIChat{
		client:      &client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Complete runs a single chat completion.
func (c *OpenAIChat) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       openai.ChatModel(c.model),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Synthesizer generates answers grounded in retrieved context. Without a
// chat client, or when the client fails, it degrades to an excerpt of the
// context and never returns an error.
type Synthesizer struct {
	client ChatClient
	logger *slog.Logger
}

// NewSynthesizer creates a Synthesizer. client may be nil.
func NewSynthesizer(client ChatClient, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		client: client,
		logger: logger.With("component", "answer"),
	}
}

// Enabled reports whether a chat client is configured.
func (s *Synthesizer) Enabled() bool {
	return s.client != nil
}

// Generate answers question from the retrieved context text.
func (s *Synthesizer) Generate(ctx context.Context, question, retrieved string) string {
	if s.client == nil {
		return Fallback(retrieved)
	}

	answer, err := s.client.Complete(ctx, systemPrompt, fmt.Sprintf(userPromptTemplate, retrieved, question))
	if err != nil {
		s.logger.Error("Answer generation failed", "error", err)
		return Fallback(retrieved)
	}
	return answer
}

// Fallback returns the first FallbackLength characters of retrieved
// followed by TruncationMarker.
func Fallback(retrieved string) string {
	if utf8.RuneCountInString(retrieved) <= FallbackLength {
		return retrieved + TruncationMarker
	}
	return string([]rune(retrieved)[:FallbackLength]) + TruncationMarker
}
