package ai

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/utils"
)

const (
	defaultCallTimeout  = 30 * time.Second
	defaultMaxLogLength = 200
)

// Gateway sends requests to a Model with schema enforcement, retries and usage accounting.
type Gateway struct {
	model     Model
	prices    PriceTable
	policy    RetryPolicy
	timeout   time.Duration
	maxLogLen int
	logger    *zap.Logger

	totals Usage
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(g *Gateway) { g.policy = policy }
}

// WithCallTimeout sets the per-attempt timeout. Non-positive disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// WithMaxLogLength limits prompt/response previews in debug logs.
func WithMaxLogLength(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxLogLen = n
		}
	}
}

// NewGateway wraps model. A nil price table prices every call at zero.
func NewGateway(model Model, prices PriceTable, log *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		model:     model,
		prices:    prices,
		policy:    DefaultRetryPolicy(),
		timeout:   defaultCallTimeout,
		maxLogLen: defaultMaxLogLength,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logger.WithFields(log, logger.CommonFields(model.Provider(), model.Model())...)
	return g
}

// Totals returns usage accumulated across every call made through the gateway.
func (g *Gateway) Totals() UsageSnapshot {
	return g.totals.Snapshot()
}

// Call performs the request and returns the model text. Token usage and cost are
// added to usage (when non-nil) and to the gateway totals.
//
// On failure the returned error is an *LLMError. The text is empty when nothing
// usable came back; after a schema violation the raw text is still returned so
// callers may parse it on a best-effort basis.
func (g *Gateway) Call(ctx context.Context, usage *Usage, req Request) (string, error) {
	if strings.TrimSpace(req.Params.Model) == "" {
		req.Params.Model = g.model.Model()
	}
	model := req.Params.Model

	if err := req.Validate(); err != nil {
		return "", &LLMError{Model: model, Err: err}
	}
	if req.Schema != nil && !g.model.SupportsStructuredOutput() {
		return "", &LLMError{Model: model, Err: ErrStructuredOutputUnsupported}
	}

	log := g.logger.With(zap.String("request_model", model))
	if req.Schema != nil {
		log = log.With(zap.String("schema", req.Schema.Name))
	}

	log.Debug("model request",
		zap.Int("prompt_length", utf8.RuneCountInString(req.Prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(req.Prompt, g.maxLogLen)),
	)

	attempts := g.policy.attempts()
	for attempt := 1; ; attempt++ {
		completion, err := g.generate(ctx, req)
		if err == nil {
			return g.finish(log, usage, req, completion, attempt)
		}

		if ctx.Err() != nil {
			return "", &LLMError{Model: model, Attempts: attempt, Err: ctx.Err()}
		}

		if attempt >= attempts || !g.policy.retryable(err) {
			log.Warn("model request failed", zap.Int("attempt", attempt), zap.Error(err))
			return "", &LLMError{Model: model, Attempts: attempt, Err: err}
		}

		delay := g.policy.Backoff(attempt)
		log.Warn("model request retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("sleep", delay),
			zap.Error(err),
		)

		if err := g.policy.wait(ctx, delay); err != nil {
			return "", &LLMError{Model: model, Attempts: attempt, Err: err}
		}
	}
}

func (g *Gateway) generate(ctx context.Context, req Request) (*Completion, error) {
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	completion, err := g.model.Generate(callCtx, req)
	if err != nil {
		return nil, err
	}
	if completion == nil {
		return nil, ErrEmptyResponse
	}
	return completion, nil
}

func (g *Gateway) finish(log *zap.Logger, usage *Usage, req Request, completion *Completion, attempt int) (string, error) {
	cost := g.prices.Cost(req.Params.Model, completion.InputTokens, completion.OutputTokens)
	usage.Add(completion.InputTokens, completion.OutputTokens, cost)
	g.totals.Add(completion.InputTokens, completion.OutputTokens, cost)

	text := strings.TrimSpace(completion.Text)

	log.Debug("model response",
		zap.Int("attempt", attempt),
		zap.Int("input_tokens", completion.InputTokens),
		zap.Int("output_tokens", completion.OutputTokens),
		zap.Float64("cost_usd", cost),
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", utils.TruncateForLog(text, g.maxLogLen)),
	)

	if text == "" {
		return "", &LLMError{Model: req.Params.Model, Attempts: attempt, Err: ErrEmptyResponse}
	}

	if req.Schema != nil {
		if err := req.Schema.Validate(text); err != nil {
			violation := &SchemaViolationError{Schema: req.Schema.Name, Err: err}
			log.Warn("model response violates schema", zap.Error(violation))
			return text, &LLMError{Model: req.Params.Model, Attempts: attempt, Err: violation}
		}
	}

	return text, nil
}

// IsSchemaViolation reports whether err came from a response that did not match its schema.
func IsSchemaViolation(err error) bool {
	var violation *SchemaViolationError
	return errors.As(err, &violation)
}
