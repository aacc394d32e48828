// Package llmfactory wires a configured provider name to a concrete
// llmclient.Client. Kept as a separate package from llmclient itself so
// the transport packages (gemini, openai) can depend on llmclient
// without an import cycle — grounded on the teacher's
// infrastructure/llm.CreateProvider factory, narrowed from a
// self-registering map to a fixed two-transport switch since SPEC_FULL
// names exactly two model dialects.
package llmfactory

import (
	"fmt"

	"github.com/n4ar/sabi/internal/infrastructure/llm/gemini"
	"github.com/n4ar/sabi/internal/infrastructure/llm/openai"
	"github.com/n4ar/sabi/internal/llmclient"
	"go.uber.org/zap"
)

// Config mirrors the provider-relevant subset of spec §3's configuration
// fields.
type Config struct {
	Provider           string // "gemini" | "openai" (default)
	APIKey             string
	BaseURL            string
	Model              string
	MaxHistoryMessages int
}

// New builds the llmclient.Client for cfg.Provider.
func New(cfg Config, logger *zap.Logger) (llmclient.Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return openai.New(openai.Config{
			BaseURL:            cfg.BaseURL,
			APIKey:             cfg.APIKey,
			Model:              cfg.Model,
			MaxHistoryMessages: cfg.MaxHistoryMessages,
		}, logger), nil
	case "gemini":
		return gemini.New(gemini.Config{
			BaseURL:            cfg.BaseURL,
			APIKey:             cfg.APIKey,
			Model:              cfg.Model,
			MaxHistoryMessages: cfg.MaxHistoryMessages,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: openai, gemini)", cfg.Provider)
	}
}
