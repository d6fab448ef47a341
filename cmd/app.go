package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/ai/gemini"
	"github.com/spigell/interview-coach/internal/ai/mock"
	"github.com/spigell/interview-coach/internal/ai/openai"
	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/prompt"
	"github.com/spigell/interview-coach/internal/secrets"
	"github.com/spigell/interview-coach/internal/validation"
)

const (
	providerOpenAI = "openai"
	providerGemini = "gemini"
	providerMock   = "mock"
)

// coach bundles everything a practice run needs.
type coach struct {
	gateway    *ai.Gateway
	controller *interview.Controller
	offline    bool
}

func newCoach(ctx context.Context, config *Config, logger *zap.Logger) (*coach, error) {
	if err := config.AI.GenerationParams.Validate(); err != nil {
		return nil, fmt.Errorf("ai generation settings: %w", err)
	}

	model, err := newModel(ctx, config.AI, logger)
	if err != nil {
		return nil, err
	}

	prices, err := priceTable(config.Prices)
	if err != nil {
		return nil, err
	}

	opts := []ai.Option{
		ai.WithRetryPolicy(retryPolicy(config.AI)),
		ai.WithMaxLogLength(config.AI.MaxLogLength),
	}
	if config.AI.CallTimeout > 0 {
		opts = append(opts, ai.WithCallTimeout(config.AI.CallTimeout))
	}
	gateway := ai.NewGateway(model, prices, logger, opts...)

	templates, err := templateFS(config.Prompts.Dir)
	if err != nil {
		return nil, err
	}
	assembler := prompt.NewAssembler(prompt.NewTemplateRenderer(templates))

	offline := model.Provider() == providerMock
	validator := validation.New(gateway, assembler, validation.Config{
		Offline:               offline,
		OfflineClarifications: config.Interview.OfflineClarifications,
		Params:                config.AI.GenerationParams,
	}, logger)

	controller := interview.NewController(gateway, validator, assembler, interview.Config{
		Params:              config.AI.GenerationParams,
		QuestionTechnique:   config.Interview.QuestionTechnique,
		SummaryTechnique:    config.Interview.SummaryTechnique,
		ResetUsageOnRestart: config.Interview.ResetUsageOnRestart,
	}, logger)

	return &coach{gateway: gateway, controller: controller, offline: offline}, nil
}

func newModel(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Model, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", providerOpenAI:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY_FILE)", err)
		}
		return openai.NewClient(apiKey, cfg.Model, openai.WithBaseURL(cfg.OpenAI.BaseURL), openai.WithLogger(logger))
	case providerGemini:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}
		return gemini.NewClient(ctx, apiKey, cfg.Model, logger)
	case providerMock:
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// priceTable merges configured prices over the built-in ones.
func priceTable(raw map[string]any) (ai.PriceTable, error) {
	prices := ai.DefaultPrices()
	if len(raw) == 0 {
		return prices, nil
	}

	var overrides ai.PriceTable
	if err := mapstructure.Decode(raw, &overrides); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}

	for model, price := range overrides {
		prices[strings.ToLower(model)] = price
	}
	return prices, nil
}

// retryPolicy counts the first call as an attempt, so max-attempts 1 disables retries.
func retryPolicy(config *AIConfig) ai.RetryPolicy {
	policy := ai.DefaultRetryPolicy()
	if config.MaxAttempts > 0 {
		policy.MaxAttempts = config.MaxAttempts
	}
	return policy
}

func templateFS(dir string) (fs.FS, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return prompt.Embedded(), nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("prompts dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prompts dir %q is not a directory", dir)
	}
	return os.DirFS(dir), nil
}
