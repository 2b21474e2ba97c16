package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/RichardoC/chatline/internal/config"
)

// Replier produces the assistant's reply to a user message.
type Replier interface {
	GenerateReply(ctx context.Context, userText string) (string, error)
}

// ErrEmptyReply is returned when a backend answers with no text.
var ErrEmptyReply = errors.New("empty reply")

// Service generates replies through an OpenAI-compatible chat model.
type Service struct {
	llm     llms.Model
	timeout time.Duration
}

const systemPrompt = `You are a helpful assistant in a chat application.
Answer the user's message directly in plain natural language.`

// New connects to an OpenAI-compatible endpoint such as Ollama's /v1/ API.
func New(baseURL, token, model string, timeout time.Duration) (*Service, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return NewWithModel(llm, timeout), nil
}

// NewWithModel wraps an already constructed model.
func NewWithModel(model llms.Model, timeout time.Duration) *Service {
	return &Service{llm: model, timeout: timeout}
}

func (s *Service) GenerateReply(ctx context.Context, userText string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf("%s\n\nuser: %s\n\nassistant:", systemPrompt, userText)
	completion, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}

	reply := strings.TrimSpace(completion)
	if len(reply) >= 2 && strings.HasPrefix(reply, "\"") && strings.HasSuffix(reply, "\"") {
		reply = strings.TrimSpace(reply[1 : len(reply)-1])
	}
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// NewReplier builds the backend named by cfg.Backend.
func NewReplier(cfg config.ReplyConfig) (Replier, error) {
	switch cfg.Backend {
	case config.ReplyEcho:
		return EchoReplier{}, nil
	case config.ReplyLLM:
		return New(cfg.BaseURL, cfg.Token, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown reply backend %q", cfg.Backend)
	}
}
