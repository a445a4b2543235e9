// Package openai streams answers from the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	goopenai "github.com/sashabaranov/go-openai"

	"pdfrag/internal/domain"
	"pdfrag/internal/responder"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
)

type Config struct {
	BaseURL     string
	APIKey      string
	APIKeyEnv   string
	Model       string
	Temperature *float32
	MaxTokens   int
}

type Responder struct {
	client      *goopenai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewResponder(cfg Config) (*Responder, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key (env %s)", domain.ErrInvalidConfiguration, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	temperature := float32(DefaultTemperature)
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	ocfg := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		ocfg.BaseURL = cfg.BaseURL
	}
	return &Responder{
		client:      goopenai.NewClientWithConfig(ocfg),
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (r *Responder) Name() string { return "openai:" + r.model }

func (r *Responder) Respond(ctx context.Context, req responder.Request) (responder.Stream, error) {
	stream, err := r.client.CreateChatCompletionStream(ctx, goopenai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    Messages(req),
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("starting chat completion: %w", err)
	}
	return responder.Func(func() (string, error) {
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			if err != nil {
				return "", fmt.Errorf("receiving chat completion: %w", err)
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			return resp.Choices[0].Delta.Content, nil
		}
	}, stream.Close), nil
}

// Messages lays out the system prompt, prior turns and the question.
func Messages(req responder.Request) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.History)+2)
	msgs = append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleSystem,
		Content: responder.BuildPrompt(req.Context),
	})
	for _, t := range req.History {
		role := goopenai.ChatMessageRoleUser
		if t.Role == domain.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	return append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: req.Question,
	})
}

var _ responder.Responder = (*Responder)(nil)
