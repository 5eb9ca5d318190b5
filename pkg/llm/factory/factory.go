// Package factory builds LLM clients wrapped in the standard middleware chain.
package factory

import (
	"fmt"
	"strings"
	"time"

	"docassist/pkg/config"
	"docassist/pkg/llm"
	"docassist/pkg/llm/middleware/metrics"
	"docassist/pkg/llm/middleware/retry"
	"docassist/pkg/llm/middleware/timeout"
	"docassist/pkg/llm/providers/anthropic"
	"docassist/pkg/llm/providers/google"
	"docassist/pkg/llm/providers/ollama"
	"docassist/pkg/llm/providers/openai"
	"docassist/pkg/logx"
)

// KeyFunc resolves the API key (or Ollama host) for a provider.
type KeyFunc func(provider string) (string, error)

// Factory creates clients for the configured model.
type Factory struct {
	cfg      config.Config
	recorder metrics.Recorder
	keys     KeyFunc
	logger   *logx.Logger
}

// New returns a factory. recorder may be nil to skip metrics.
func New(cfg config.Config, recorder metrics.Recorder) *Factory {
	return &Factory{
		cfg:      cfg,
		recorder: recorder,
		keys:     config.GetAPIKey,
		logger:   logx.NewLogger("llm"),
	}
}

// WithKeys overrides API key lookup.
func (f *Factory) WithKeys(keys KeyFunc) *Factory {
	f.keys = keys
	return f
}

// CreateClient builds the raw provider client for model and wraps it:
// Metrics -> Retry -> Timeout -> provider.
func (f *Factory) CreateClient(model string) (llm.LLMClient, error) {
	if model == "" {
		model = f.cfg.LLM.Model
	}
	provider, err := config.GetModelProvider(model)
	if err != nil {
		return nil, fmt.Errorf("failed to determine provider for model %s: %w", model, err)
	}
	key, err := f.keys(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for provider %s: %w", provider, err)
	}

	raw, err := f.rawClient(provider, model, key)
	if err != nil {
		return nil, err
	}

	retryConfig := retry.DefaultConfig
	if f.cfg.LLM.MaxRetries > 0 {
		retryConfig.MaxAttempts = f.cfg.LLM.MaxRetries
	}

	middlewares := make([]llm.Middleware, 0, 3)
	if f.recorder != nil {
		middlewares = append(middlewares, metrics.Middleware(f.recorder, nil, costOf, f.logger))
	}
	middlewares = append(middlewares,
		retry.Middleware(retry.NewPolicy(retryConfig, nil)),
		timeout.Middleware(f.callTimeout()),
	)

	f.logger.Debug("created %s client for %s", provider, model)
	return llm.Chain(raw, middlewares...), nil
}

func (f *Factory) rawClient(provider, model, key string) (llm.LLMClient, error) {
	info, _ := config.GetModelInfo(model)
	cfg := llm.LLMConfig{
		APIKey:      key,
		ModelName:   model,
		MaxTokens:   f.cfg.LLM.MaxTokens,
		Temperature: f.cfg.LLM.Temperature,
	}

	switch provider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg, info.MaxOutputTokens), nil
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClient(cfg), nil
	case config.ProviderGoogle:
		return google.NewGeminiClient(cfg), nil
	case config.ProviderOllama:
		cfg.APIKey = ""
		cfg.BaseURL = key
		cfg.ModelName = strings.TrimPrefix(model, "ollama:")
		return ollama.NewClient(cfg, nil), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// callTimeout bounds a single attempt by the configured API timeout.
func (f *Factory) callTimeout() time.Duration {
	if f.cfg.API.TimeoutMS > 0 {
		return time.Duration(f.cfg.API.TimeoutMS) * time.Millisecond
	}
	return time.Duration(config.DefaultAPITimeoutMS) * time.Millisecond
}

func costOf(model string, promptTokens, completionTokens int) float64 {
	cost, err := config.CalculateCost(model, promptTokens, completionTokens)
	if err != nil {
		return 0
	}
	return cost
}
