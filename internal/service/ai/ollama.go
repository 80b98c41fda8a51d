package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"
)

// OllamaProvider calls a local Ollama server through its native chat API.
type OllamaProvider struct {
	client *api.Client
	model  string
}

// NewOllamaProvider accepts either the bare server URL or its /v1 OpenAI path.
func NewOllamaProvider(baseURL, model string, httpClient *http.Client) (*OllamaProvider, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaProvider{
		client: api.NewClient(parsed, httpClient),
		model:  model,
	}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Generate(ctx context.Context, messages []*schema.Message, maxTokens int) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: make([]api.Message, 0, len(messages)),
		Stream:   &stream,
		Options:  map[string]any{"num_predict": maxTokens},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, api.Message{Role: string(m.Role), Content: m.Content})
	}

	var (
		content strings.Builder
		done    bool
	)
	err := p.client.Chat(ctx, req, func(r api.ChatResponse) error {
		content.WriteString(r.Message.Content)
		done = r.Done
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	if !done {
		return "", fmt.Errorf("%w: response not marked done", ErrEmptyCompletion)
	}
	if strings.TrimSpace(content.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return content.String(), nil
}
