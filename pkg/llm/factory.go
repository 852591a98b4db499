package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/config"
)

// ClientFactory builds chat and embedding clients from the server AI config.
// The chat provider is selectable (openai-compatible or native Anthropic);
// embeddings always go through the OpenAI-compatible endpoint.
type ClientFactory struct {
	ai     config.AIConfig
	logger *zap.Logger
}

// NewClientFactory creates a new factory.
func NewClientFactory(ai config.AIConfig, logger *zap.Logger) *ClientFactory {
	return &ClientFactory{
		ai:     ai,
		logger: logger,
	}
}

// CreateChatClient creates the chat-completion client for the configured provider.
func (f *ClientFactory) CreateChatClient() (LLMClient, error) {
	switch f.ai.Provider {
	case "anthropic":
		client, err := NewAnthropicClient(&AnthropicConfig{
			Model:   f.ai.LLMModel,
			APIKey:  f.ai.AnthropicAPIKey,
			Timeout: f.requestTimeout(),
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil
	case "openai", "":
		client, err := NewClient(&Config{
			Endpoint: f.ai.LLMBaseURL,
			Model:    f.ai.LLMModel,
			APIKey:   f.ai.LLMAPIKey,
			Timeout:  f.requestTimeout(),
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("create client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", f.ai.Provider)
	}
}

// CreateEmbeddingClient creates a client specifically for embeddings.
// Uses the embedding-specific endpoint if configured, falling back to the
// chat endpoint (this applies regardless of the chat provider).
func (f *ClientFactory) CreateEmbeddingClient() (LLMClient, error) {
	client, err := NewClient(&Config{
		Endpoint: f.ai.EffectiveEmbeddingBaseURL(),
		Model:    f.ai.EmbeddingModel,
		APIKey:   f.ai.EffectiveEmbeddingAPIKey(),
		Timeout:  f.requestTimeout(),
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	return client, nil
}

func (f *ClientFactory) requestTimeout() time.Duration {
	return time.Duration(f.ai.RequestTimeoutSeconds) * time.Second
}
