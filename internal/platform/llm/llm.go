package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
}

// Client wraps a langchaingo chat model and embedder.
type Client struct {
	model    llms.Model
	embedder embeddings.Embedder
	name     string
	log      *logger.Logger
}

// New returns (nil, nil) when no API key is configured.
func New(log *logger.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, nil
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
	}
	if em := strings.TrimSpace(cfg.EmbeddingModel); em != "" {
		opts = append(opts, openai.WithEmbeddingModel(em))
	}
	chat, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create openai model: %w", err)
	}
	emb, err := embeddings.NewEmbedder(chat)
	if err != nil {
		return nil, fmt.Errorf("llm: create embedder: %w", err)
	}
	return &Client{model: chat, embedder: emb, name: model, log: log.With("client", "LLM", "model", model)}, nil
}

func (c *Client) Model() string { return c.name }

// Generate sends a system and a user message and returns the first choice.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}
	resp, err := c.model.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: no response choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("llm: embed: %w", err)
	}
	return vec, nil
}
