package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	ProviderOpenAI     = "OpenAI"
	ProviderOpenRouter = "OpenRouter"

	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// RouterConfig holds everything the router needs. It is passed explicitly;
// the router never reads the environment.
type RouterConfig struct {
	Models            []string
	OpenAIModels      []string
	OpenAIKey         string
	OpenAIBaseURL     string
	OpenRouterKey     string
	OpenRouterBaseURL string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
}

// DefaultRouterConfig returns the default preference order: free
// OpenRouter models first, an OpenAI model last.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Models: []string{
			"meta-llama/llama-3.3-70b-instruct:free",
			"deepseek/deepseek-r1-0528:free",
			"gpt-4o-mini",
		},
		OpenAIModels:      []string{"gpt-4o-mini", "gpt-4.1", "gpt-4o"},
		OpenAIBaseURL:     DefaultOpenAIBaseURL,
		OpenRouterBaseURL: DefaultOpenRouterBaseURL,
		Temperature:       0.3,
		Timeout:           60 * time.Second,
	}
}

// Router tries an ordered list of models until one answers.
// Models on the OpenAI allow-list go to OpenAI, everything else to OpenRouter.
type Router struct {
	models       []string
	openAIModels map[string]bool
	openai       Backend
	openrouter   Backend
	logger       *zap.Logger
}

// NewRouter builds HTTP backends for every credential present in cfg.
// It fails with ErrConfiguration when neither key is set.
func NewRouter(cfg RouterConfig, logger *zap.Logger) (*Router, error) {
	var openai, openrouter Backend
	if cfg.OpenAIKey != "" {
		openai = NewChatClient(ProviderOpenAI, orDefault(cfg.OpenAIBaseURL, DefaultOpenAIBaseURL),
			cfg.OpenAIKey, cfg.Temperature, cfg.MaxTokens, cfg.Timeout)
	}
	if cfg.OpenRouterKey != "" {
		openrouter = NewChatClient(ProviderOpenRouter, orDefault(cfg.OpenRouterBaseURL, DefaultOpenRouterBaseURL),
			cfg.OpenRouterKey, cfg.Temperature, cfg.MaxTokens, cfg.Timeout)
	}
	return newRouter(cfg, openai, openrouter, logger)
}

func newRouter(cfg RouterConfig, openai, openrouter Backend, logger *zap.Logger) (*Router, error) {
	if openai == nil && openrouter == nil {
		return nil, fmt.Errorf("%w: no llm clients available, set OPENAI_API_KEY or OPENROUTER_API_KEY", ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	allow := make(map[string]bool, len(cfg.OpenAIModels))
	for _, m := range cfg.OpenAIModels {
		allow[m] = true
	}
	return &Router{
		models:       append([]string(nil), cfg.Models...),
		openAIModels: allow,
		openai:       openai,
		openrouter:   openrouter,
		logger:       logger,
	}, nil
}

func (r *Router) route(model string) (Backend, string) {
	if r.openAIModels[model] {
		return r.openai, ProviderOpenAI
	}
	return r.openrouter, ProviderOpenRouter
}

// Generate returns the first successful completion across models, tried in
// order. A nil or empty models list uses the configured defaults.
//
// Models whose backend has no credentials are skipped. A *ProviderError
// advances to the next model; any other error stops the loop immediately.
func (r *Router) Generate(ctx context.Context, models []string, system, user string) (string, error) {
	if len(models) == 0 {
		models = r.models
	}

	var (
		all      error
		last     error
		attempts int
	)
	for _, model := range models {
		backend, provider := r.route(model)
		if backend == nil {
			r.logger.Warn("llm model skipped, provider not configured",
				zap.String("model", model), zap.String("provider", provider))
			continue
		}

		r.logger.Info("llm trying model", zap.String("model", model), zap.String("provider", provider))
		text, err := backend.Complete(ctx, model, system, user)
		if err == nil {
			return strings.TrimSpace(text), nil
		}

		var perr *ProviderError
		if !errors.As(err, &perr) {
			return "", err
		}
		attempts++
		last = err
		all = multierr.Append(all, err)
		r.logger.Warn("llm model failed",
			zap.String("model", model), zap.String("provider", provider),
			zap.Int("status", perr.StatusCode), zap.Error(err))
	}

	if attempts == 0 {
		return "", fmt.Errorf("%w: none of %v can be routed to a configured provider", ErrConfiguration, models)
	}
	return "", &AllProvidersExhaustedError{Attempts: attempts, Last: last, All: all}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
