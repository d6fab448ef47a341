package ai

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeResponse struct {
	completion *Completion
	err        error
	block      bool
}

type fakeModel struct {
	mu         sync.Mutex
	structured bool
	queue      []fakeResponse
	requests   []Request
}

func newFakeModel(responses ...fakeResponse) *fakeModel {
	return &fakeModel{structured: true, queue: responses}
}

func (f *fakeModel) Provider() string               { return "fake" }
func (f *fakeModel) Model() string                  { return "gpt-4.1" }
func (f *fakeModel) SupportsStructuredOutput() bool { return f.structured }

func (f *fakeModel) Generate(ctx context.Context, req Request) (*Completion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if len(f.queue) == 0 {
		f.mu.Unlock()
		return nil, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	f.mu.Unlock()

	if res.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return res.completion, res.err
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type recordedWaits struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedWaits) wait(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func zeroWaitPolicy(waits *recordedWaits) RetryPolicy {
	policy := DefaultRetryPolicy()
	policy.Wait = waits.wait
	return policy
}

func ok(text string, in, out int) fakeResponse {
	return fakeResponse{completion: &Completion{Text: text, InputTokens: in, OutputTokens: out}}
}

func fail(err error) fakeResponse {
	return fakeResponse{err: err}
}

func TestGatewayAccumulatesUsageAndCost(t *testing.T) {
	model := newFakeModel(ok("first", 100, 50), ok("second", 100, 50))
	prices := PriceTable{"gpt-4.1": {Input: 2.00, Output: 8.00}}
	gw := NewGateway(model, prices, zap.NewNop())

	var usage Usage
	for i := 0; i < 2; i++ {
		if _, err := gw.Call(context.Background(), &usage, Request{Prompt: "hello", Params: GenerationParams{Model: "gpt-4.1"}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got := usage.Snapshot()
	if got.InputTokens != 200 || got.OutputTokens != 100 {
		t.Fatalf("unexpected tokens: %+v", got)
	}

	want := 2 * (100*2.00 + 50*8.00) / 1e6
	if math.Abs(got.Cost-want) > 1e-12 {
		t.Fatalf("expected cost %v, got %v", want, got.Cost)
	}

	if totals := gw.Totals(); totals != got {
		t.Fatalf("expected gateway totals %+v to match session usage %+v", totals, got)
	}
}

func TestGatewayUsesModelDefaultAndPricesUnknownAtZero(t *testing.T) {
	model := newFakeModel(ok("text", 1000, 1000))
	gw := NewGateway(model, PriceTable{}, zap.NewNop())

	var usage Usage
	if _, err := gw.Call(context.Background(), &usage, Request{Prompt: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if model.requests[0].Params.Model != "gpt-4.1" {
		t.Fatalf("expected default model to be filled in, got %q", model.requests[0].Params.Model)
	}
	if usage.Snapshot().Cost != 0 {
		t.Fatalf("expected zero cost for unpriced model, got %v", usage.Snapshot().Cost)
	}
}

func TestGatewayRetriesOnTransientError(t *testing.T) {
	waits := &recordedWaits{}
	model := newFakeModel(
		fail(&StatusError{Provider: "fake", Code: http.StatusInternalServerError, Message: "boom"}),
		ok("retry ok", 1, 1),
	)
	gw := NewGateway(model, nil, zap.NewNop(), WithRetryPolicy(zeroWaitPolicy(waits)))

	text, err := gw.Call(context.Background(), nil, Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "retry ok" {
		t.Fatalf("unexpected output: %q", text)
	}
	if model.calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", model.calls())
	}
	if len(waits.delays) != 1 || waits.delays[0] != 2*time.Second {
		t.Fatalf("unexpected waits: %v", waits.delays)
	}
}

func TestGatewayStopsAfterRetriesExhausted(t *testing.T) {
	waits := &recordedWaits{}
	rateLimited := &StatusError{Provider: "fake", Code: http.StatusTooManyRequests, Message: "slow down"}
	model := newFakeModel(fail(rateLimited), fail(rateLimited), fail(rateLimited), ok("never", 1, 1))
	gw := NewGateway(model, nil, zap.NewNop(), WithRetryPolicy(zeroWaitPolicy(waits)))

	text, err := gw.Call(context.Background(), nil, Request{Prompt: "p"})
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}

	var llmErr *LLMError
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected LLMError, got %v", err)
	}
	if llmErr.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", llmErr.Attempts)
	}
	if model.calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", model.calls())
	}
	if len(waits.delays) != 2 || waits.delays[0] != 2*time.Second || waits.delays[1] != 4*time.Second {
		t.Fatalf("unexpected waits: %v", waits.delays)
	}
}

func TestGatewayDoesNotRetryValidationFailures(t *testing.T) {
	model := newFakeModel(fail(&StatusError{Provider: "fake", Code: http.StatusBadRequest, Message: "bad schema"}))
	gw := NewGateway(model, nil, zap.NewNop(), WithRetryPolicy(zeroWaitPolicy(&recordedWaits{})))

	if _, err := gw.Call(context.Background(), nil, Request{Prompt: "p"}); err == nil {
		t.Fatal("expected error")
	}
	if model.calls() != 1 {
		t.Fatalf("expected single call, got %d", model.calls())
	}
}

func TestGatewayRejectsMalformedRequestWithoutCalling(t *testing.T) {
	model := newFakeModel(ok("x", 1, 1))
	gw := NewGateway(model, nil, zap.NewNop())

	_, err := gw.Call(context.Background(), nil, Request{Prompt: "p", Params: GenerationParams{Temperature: 1.5}})
	if err == nil {
		t.Fatal("expected error for temperature out of range")
	}
	if model.calls() != 0 {
		t.Fatalf("expected no provider calls, got %d", model.calls())
	}
}

func TestGatewayTimeoutIsRetried(t *testing.T) {
	model := newFakeModel(fakeResponse{block: true}, ok("after timeout", 1, 1))
	gw := NewGateway(model, nil, zap.NewNop(),
		WithCallTimeout(10*time.Millisecond),
		WithRetryPolicy(zeroWaitPolicy(&recordedWaits{})),
	)

	text, err := gw.Call(context.Background(), nil, Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "after timeout" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestGatewayStopsWhenCallerCancels(t *testing.T) {
	model := newFakeModel(fail(&StatusError{Provider: "fake", Code: http.StatusServiceUnavailable}), ok("x", 1, 1))
	ctx, cancel := context.WithCancel(context.Background())
	policy := DefaultRetryPolicy()
	policy.Wait = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	gw := NewGateway(model, nil, zap.NewNop(), WithRetryPolicy(policy))

	_, err := gw.Call(ctx, nil, Request{Prompt: "p"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if model.calls() != 1 {
		t.Fatalf("expected single call, got %d", model.calls())
	}
}

func TestGatewayStructuredOutput(t *testing.T) {
	schema := &Schema{
		Name:       "question_result",
		Type:       TypeObject,
		Properties: map[string]*Schema{"question": {Type: TypeString, MinLength: 1}},
		Required:   []string{"question"},
	}

	t.Run("unsupported model fails before calling", func(t *testing.T) {
		model := newFakeModel(ok(`{"question":"q"}`, 1, 1))
		model.structured = false
		gw := NewGateway(model, nil, zap.NewNop())

		_, err := gw.Call(context.Background(), nil, Request{Prompt: "p", Schema: schema})
		if !errors.Is(err, ErrStructuredOutputUnsupported) {
			t.Fatalf("expected unsupported error, got %v", err)
		}
		if model.calls() != 0 {
			t.Fatalf("expected no calls, got %d", model.calls())
		}
	})

	t.Run("valid response", func(t *testing.T) {
		gw := NewGateway(newFakeModel(ok(`{"question":"Why Go?"}`, 1, 1)), nil, zap.NewNop())

		text, err := gw.Call(context.Background(), nil, Request{Prompt: "p", Schema: schema})
		if err != nil || text != `{"question":"Why Go?"}` {
			t.Fatalf("unexpected result %q (%v)", text, err)
		}
	})

	t.Run("violation keeps raw text", func(t *testing.T) {
		gw := NewGateway(newFakeModel(ok(`{"question":"q","extra":1}`, 1, 1)), nil, zap.NewNop())

		text, err := gw.Call(context.Background(), nil, Request{Prompt: "p", Schema: schema})
		if !IsSchemaViolation(err) {
			t.Fatalf("expected schema violation, got %v", err)
		}
		if text == "" {
			t.Fatal("expected raw text to be returned alongside the violation")
		}
	})
}

func TestGatewayEmptyResponse(t *testing.T) {
	gw := NewGateway(newFakeModel(ok("   ", 3, 0)), nil, zap.NewNop())

	var usage Usage
	text, err := gw.Call(context.Background(), &usage, Request{Prompt: "p"})
	if text != "" || !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected empty response error, got %q (%v)", text, err)
	}
	if usage.Snapshot().InputTokens != 3 {
		t.Fatalf("expected tokens to be counted even for empty responses")
	}
}
