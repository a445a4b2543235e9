// Package google streams answers from Gemini chat models.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"pdfrag/internal/domain"
	"pdfrag/internal/responder"
)

const (
	DefaultModel       = "gemini-1.5-flash"
	DefaultTemperature = 0.7
)

type Config struct {
	APIKey      string
	APIKeyEnv   string
	Model       string
	Temperature *float32
}

type Responder struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewResponder(ctx context.Context, cfg Config) (*Responder, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: missing Google API key (env %s)", domain.ErrInvalidConfiguration, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	temperature := float32(DefaultTemperature)
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Responder{client: client, model: cfg.Model, temperature: temperature}, nil
}

func (r *Responder) Name() string { return "google:" + r.model }

func (r *Responder) Respond(ctx context.Context, req responder.Request) (responder.Stream, error) {
	model := r.client.GenerativeModel(r.model)
	model.SetTemperature(r.temperature)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(responder.BuildPrompt(req.Context))}}

	cs := model.StartChat()
	cs.History = History(req.History)

	ctx, cancel := context.WithCancel(ctx)
	iter := cs.SendMessageStream(ctx, genai.Text(req.Question))
	return responder.Func(func() (string, error) {
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return "", io.EOF
			}
			if err != nil {
				return "", fmt.Errorf("receiving gemini response: %w", err)
			}
			if text := Text(resp); text != "" {
				return text, nil
			}
		}
	}, func() error {
		cancel()
		return nil
	}), nil
}

func (r *Responder) Close() error { return r.client.Close() }

// History converts turns to Gemini chat content. Gemini calls the assistant
// role "model".
func History(turns []domain.Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == domain.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Content)}})
	}
	return out
}

// Text joins the text parts of the first candidate.
func Text(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

var _ responder.Responder = (*Responder)(nil)
