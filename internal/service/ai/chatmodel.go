package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// rateLimitHints are matched against provider errors that carry no typed status.
var rateLimitHints = []string{"429", "too many requests", "rate limit", "ratelimit", "toomanyrequests"}

// ChatModelProvider adapts any eino chat model, such as the Ark model built by
// config.AIConfig.NewChatModel.
type ChatModelProvider struct {
	name  string
	model model.BaseChatModel
}

// NewChatModelProvider wraps m under the given provider name.
func NewChatModelProvider(name string, m model.BaseChatModel) *ChatModelProvider {
	return &ChatModelProvider{name: name, model: m}
}

func (p *ChatModelProvider) Name() string { return p.name }

func (p *ChatModelProvider) Generate(ctx context.Context, messages []*schema.Message, maxTokens int) (string, error) {
	msg, err := p.model.Generate(ctx, messages, model.WithMaxTokens(maxTokens))
	if err != nil {
		if isRateLimitMessage(err.Error()) {
			return "", fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return "", fmt.Errorf("chat model generate failed: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return msg.Content, nil
}

func isRateLimitMessage(text string) bool {
	text = strings.ToLower(text)
	for _, hint := range rateLimitHints {
		if strings.Contains(text, hint) {
			return true
		}
	}
	return false
}
