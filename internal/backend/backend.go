// Package backend adapts reasoning providers (hosted LLM APIs, local CLIs,
// scripted fakes) to a single text-completion interface and decodes their
// structured decisions.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dweebuild/dweebuild/internal/process"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("provider returned an empty response")

// Provider produces a completion for a system and user prompt. Calls are
// independent; providers keep no conversation state.
type Provider interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}

// Named is implemented by providers that report a stable name for logging
// and circuit-breaker keys.
type Named interface {
	Name() string
}

// NameOf returns p's name, or its Go type when it has none.
func NameOf(p Provider) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}

// Provider types understood by New.
const (
	TypeOpenAI    = "openai"
	TypeGroq      = "groq"
	TypeAnthropic = "anthropic"
	TypeClaudeCLI = "claude-cli"
	TypeScripted  = "scripted"
)

// Config describes one provider.
type Config struct {
	Name      string
	Type      string
	Model     string
	BaseURL   string
	APIKey    string
	APIKeyEnv string // consulted when APIKey is empty
	Command   string // claude-cli binary
	WorkDir   string
	MaxTokens int64
}

func (c Config) apiKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}

// New creates a provider for cfg. pm tracks subprocesses of CLI providers
// and may be nil.
func New(cfg Config, pm *process.Manager, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case TypeOpenAI:
		return NewOpenAI(cfg)
	case TypeGroq:
		if cfg.BaseURL == "" {
			cfg.BaseURL = GroqBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = GroqDefaultModel
		}
		if cfg.APIKeyEnv == "" {
			cfg.APIKeyEnv = "GROQ_API_KEY"
		}
		return NewOpenAI(cfg)
	case TypeAnthropic:
		return NewAnthropic(cfg)
	case TypeClaudeCLI:
		return NewClaudeCLI(cfg, pm, logger), nil
	case TypeScripted:
		return NewScripted(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q", cfg.Type)
	}
}
