package backend

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// GroqBaseURL is Groq's OpenAI-compatible endpoint.
	GroqBaseURL = "https://api.groq.com/openai/v1"
	// GroqDefaultModel is used for groq providers without a model.
	GroqDefaultModel = "llama-3.3-70b-versatile"

	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	name      string
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAI creates an OpenAI-compatible provider. An API key is required.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	key := cfg.apiKey()
	if key == "" {
		return nil, fmt.Errorf("provider %q: no API key (set %s)", cfg.Name, cfg.APIKeyEnv)
	}

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = openAIDefaultModel
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}

	return &OpenAI{
		name:      name,
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Name returns the configured provider name.
func (o *OpenAI) Name() string { return o.name }

// Complete sends one system+user exchange.
func (o *OpenAI) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(o.maxTokens)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
