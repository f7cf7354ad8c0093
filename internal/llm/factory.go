package llm

import (
	"fmt"

	"github.com/voxloop/voxloop/internal/config"
)

// New builds a Client from the reasoning section of the config.
func New(cfg config.ReasoningConfig) (Client, error) {
	switch cfg.API {
	case "", "openai":
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey), nil
	case "anthropic":
		return NewAnthropicClient(cfg.BaseURL, cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown reasoning api %q (want openai or anthropic)", cfg.API)
	}
}
