// Package mock provides an offline ai.Model that answers with canned content.
package mock

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/spigell/interview-coach/internal/ai"
)

const (
	providerName = "mock"
	modelName    = "mock"

	summaryText = "Mock summary: User performed well overall, needs improvement in problem-solving."
	validText   = "Mock validation: the job title looks valid."
)

var (
	questions = []string{
		"Mock Q1: Tell me about yourself.",
		"Mock Q2: Why do you want this job?",
		"Mock Q3: Describe a challenge you faced at work.",
		"Mock Q4: How do you handle stress?",
	}

	feedbacks = []string{
		"Mock Feedback: Good answer! Try to be more concise.",
		"Mock Feedback: Solid response. Could give more examples.",
		"Mock Feedback: Excellent! Well-structured answer.",
		"Mock Feedback: Nice! Consider elaborating on impact.",
	}

	recommendations = []string{
		"Use the STAR method for behavioral answers.",
		"Quantify the impact of your work.",
	}
)

// Model cycles through canned questions and feedback. The response shape is
// picked by the requested schema name.
type Model struct {
	mu       sync.Mutex
	question int
	feedback int
}

func New() *Model {
	return &Model{}
}

func (m *Model) Provider() string { return providerName }

func (m *Model) Model() string { return modelName }

func (m *Model) SupportsStructuredOutput() bool { return true }

func (m *Model) Generate(ctx context.Context, req ai.Request) (*ai.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := m.respond(req)
	if err != nil {
		return nil, err
	}

	return &ai.Completion{
		Text:         text,
		InputTokens:  estimateTokens(req.System) + estimateTokens(req.Prompt),
		OutputTokens: estimateTokens(text),
	}, nil
}

func (m *Model) respond(req ai.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.Schema == nil {
		return validText, nil
	}

	var payload any
	switch req.Schema.Name {
	case "question_result":
		payload = map[string]any{"question": m.nextQuestion()}
	case "evaluation_result":
		feedback := feedbacks[m.feedback%len(feedbacks)]
		m.feedback++
		payload = map[string]any{"feedback": feedback, "next_question": m.nextQuestion()}
	case "summary_result":
		payload = map[string]any{"summary": summaryText, "recommendations": recommendations}
	default:
		return validText, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *Model) nextQuestion() string {
	q := questions[m.question%len(questions)]
	m.question++
	return q
}

// estimateTokens approximates four characters per token.
func estimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	return len(text)/4 + 1
}
