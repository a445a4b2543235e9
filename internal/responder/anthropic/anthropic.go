// Package anthropic answers with Claude models. The whole reply is fetched in
// one request and handed out as a single fragment.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"pdfrag/internal/domain"
	"pdfrag/internal/responder"
)

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultMaxTokens = 1024
)

type Config struct {
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Model     string
	MaxTokens int
}

type Responder struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func NewResponder(cfg Config) (*Responder, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: missing Anthropic API key (env %s)", domain.ErrInvalidConfiguration, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	opts := []anthropicopt.RequestOption{anthropicopt.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return &Responder{client: &client, model: cfg.Model, maxTokens: cfg.MaxTokens}, nil
}

func (r *Responder) Name() string { return "anthropic:" + r.model }

func (r *Responder) Respond(ctx context.Context, req responder.Request) (responder.Stream, error) {
	rsp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: int64(r.maxTokens),
		Messages:  Messages(req),
	})
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, content := range rsp.Content {
		if text, ok := content.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	if b.Len() == 0 {
		return nil, errors.New("no response from Anthropic")
	}
	return responder.NewTextStream(b.String()), nil
}

// Messages builds the conversation. The context prompt is prefixed to the
// question, and leading assistant turns are dropped because the API requires
// the first message to come from the user.
func Messages(req responder.Request) []anthropic.MessageParam {
	history := req.History
	for len(history) > 0 && history[0].Role != domain.RoleUser {
		history = history[1:]
	}
	msgs := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, t := range history {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == domain.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}
	prompt := responder.BuildPrompt(req.Context) + "\n\nQuestion: " + req.Question
	return append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))
}

var _ responder.Responder = (*Responder)(nil)
