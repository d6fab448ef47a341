// Package openai implements ai.Model against the OpenAI Responses API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/utils"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"
	responsesPath  = "/v1/responses"
	maxErrorBody   = 500
)

// Client is a minimal Responses API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url = strings.TrimRight(strings.TrimSpace(url), "/"); url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client. The per-attempt timeout is owned by the gateway,
// so the HTTP client only carries a generous safety limit.
func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) Provider() string { return providerName }

func (c *Client) Model() string { return c.model }

func (c *Client) SupportsStructuredOutput() bool { return true }

type responsesRequest struct {
	Model           string      `json:"model"`
	Instructions    string      `json:"instructions,omitempty"`
	Input           string      `json:"input"`
	Temperature     *float64    `json:"temperature,omitempty"`
	MaxOutputTokens int         `json:"max_output_tokens,omitempty"`
	Text            *textConfig `json:"text,omitempty"`
}

type textConfig struct {
	Format map[string]any `json:"format"`
}

type responsesResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate performs one POST /v1/responses call.
func (c *Client) Generate(ctx context.Context, req ai.Request) (*ai.Completion, error) {
	body := buildRequest(req, c.model)

	raw, err := c.post(ctx, responsesPath, body)
	if err != nil {
		return nil, err
	}

	var resp responsesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}

	text, refusal := outputText(resp)
	if text == "" && refusal != "" {
		return nil, fmt.Errorf("model refused: %s", refusal)
	}

	return &ai.Completion{
		Text:         text,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

func buildRequest(req ai.Request, fallbackModel string) responsesRequest {
	model := strings.TrimSpace(req.Params.Model)
	if model == "" {
		model = fallbackModel
	}

	temperature := req.Params.Temperature
	body := responsesRequest{
		Model:           model,
		Instructions:    req.System,
		Input:           req.Prompt,
		Temperature:     &temperature,
		MaxOutputTokens: req.Params.MaxOutputTokens,
	}

	if req.Schema != nil {
		body.Text = &textConfig{Format: map[string]any{
			"type":   "json_schema",
			"name":   req.Schema.Name,
			"strict": true,
			"schema": req.Schema.JSONSchema(),
		}}
	}

	return body
}

// outputText prefers the aggregated output_text and falls back to the first
// assistant message content.
func outputText(resp responsesResponse) (string, string) {
	if text := strings.TrimSpace(resp.OutputText); text != "" {
		return text, ""
	}

	var out strings.Builder
	refusal := ""
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			switch content.Type {
			case "output_text":
				out.WriteString(content.Text)
			case "refusal":
				refusal = content.Refusal
			}
		}
	}

	return strings.TrimSpace(out.String()), refusal
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ai.StatusError{
			Provider: providerName,
			Code:     resp.StatusCode,
			Message:  utils.TruncateForLog(string(raw), maxErrorBody),
		}
	}

	return raw, nil
}
