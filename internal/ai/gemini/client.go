package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/interview-coach/internal/ai"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.5-flash"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements ai.Model on top of the Google GenAI SDK.
type Client struct {
	models contentGenerator
	model  string
	logger *zap.Logger
}

// NewClient creates a Client configured for the Gemini API backend.
func NewClient(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newClient(client.Models, model, logger), nil
}

func newClient(models contentGenerator, model string, logger *zap.Logger) *Client {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{models: models, model: model, logger: logger}
}

func (c *Client) Provider() string { return providerName }

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

func (c *Client) SupportsStructuredOutput() bool { return true }

// Generate sends one GenerateContent request.
func (c *Client) Generate(ctx context.Context, req ai.Request) (*ai.Completion, error) {
	if c == nil || c.models == nil {
		return nil, errors.New("gemini client is not initialized")
	}

	model := strings.TrimSpace(req.Params.Model)
	if model == "" {
		model = c.model
	}

	resp, err := c.models.GenerateContent(ctx, model, genai.Text(req.Prompt), buildConfig(req))
	if err != nil {
		return nil, classify(err)
	}

	completion := &ai.Completion{Text: responseText(resp)}
	if meta := resp.UsageMetadata; meta != nil {
		completion.InputTokens = int(meta.PromptTokenCount)
		completion.OutputTokens = int(meta.CandidatesTokenCount) + int(meta.ThoughtsTokenCount)
	}

	if completion.Text == "" && len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		c.logger.Debug("gemini returned no text",
			zap.String("finish_reason", string(resp.Candidates[0].FinishReason)),
		)
	}

	return completion, nil
}

func buildConfig(req ai.Request) *genai.GenerateContentConfig {
	temperature := float32(req.Params.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.Params.MaxOutputTokens),
	}

	if system := strings.TrimSpace(req.System); system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGenaiSchema(req.Schema)
	}

	return cfg
}

func toGenaiSchema(s *ai.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{}
	switch s.Type {
	case ai.TypeObject:
		out.Type = genai.TypeObject
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
		out.Required = s.Required
		out.PropertyOrdering = s.PropertyNames()
	case ai.TypeArray:
		out.Type = genai.TypeArray
		out.Items = toGenaiSchema(s.Items)
	default:
		out.Type = genai.TypeString
		if s.MinLength > 0 {
			minLength := int64(s.MinLength)
			out.MinLength = &minLength
		}
	}

	if s.Nullable {
		nullable := true
		out.Nullable = &nullable
	}

	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
		// Only the first candidate is requested.
		break
	}

	return strings.TrimSpace(builder.String())
}

// classify converts SDK errors into ai.StatusError so the retry policy can see status codes.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ai.StatusError{Provider: providerName, Code: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &ai.StatusError{Provider: providerName, Code: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("generate content: %w", err)
}
