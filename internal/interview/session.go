package interview

import (
	"sync"

	"github.com/google/uuid"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/prompt"
	"github.com/spigell/interview-coach/internal/response"
)

// Origin tells which flow asked for a clarification.
type Origin string

const (
	OriginStart   Origin = "start"
	OriginRestart Origin = "restart"
)

// Clarification is a job title the validator could not accept. It lives on the
// session until the user confirms or cancels it.
type Clarification struct {
	JobTitle     string
	QuestionType QuestionType
	Difficulty   Difficulty
	Message      string
	Origin       Origin

	previous State
}

type cacheKey struct {
	index   int
	persona Persona
}

// Session is one interview. It is only mutated through a Controller; the
// accessors return copies.
type Session struct {
	mu sync.Mutex

	id           string
	state        State
	jobTitle     string
	questionType QuestionType
	difficulty   Difficulty
	style        Persona

	questions []string
	answers   []string
	feedbacks []string
	index     int
	cache     map[cacheKey]string

	summary *response.Summary
	pending *Clarification

	usage ai.Usage
}

// NewSession returns a session that has not been started.
func NewSession() *Session {
	return &Session{
		id:    uuid.Must(uuid.NewV7()).String(),
		style: DefaultPersona,
		cache: map[cacheKey]string{},
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) JobTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobTitle
}

func (s *Session) QuestionType() QuestionType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionType
}

func (s *Session) Difficulty() Difficulty {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.difficulty
}

func (s *Session) EvaluationStyle() Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

func (s *Session) Questions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.questions...)
}

func (s *Session) Answers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.answers...)
}

func (s *Session) Feedbacks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.feedbacks...)
}

// CurrentQuestionIndex points at the question awaiting an answer.
func (s *Session) CurrentQuestionIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// CurrentQuestion returns the question awaiting an answer, if any.
func (s *Session) CurrentQuestion() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active || s.index >= len(s.questions) {
		return "", false
	}
	return s.questions[s.index], true
}

func (s *Session) Finished() bool {
	return s.State() == Finished
}

// Summary returns the summary once the session is finished.
func (s *Session) Summary() (response.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return response.Summary{}, false
	}
	return response.Summary{
		Text:            s.summary.Text,
		Recommendations: append([]string{}, s.summary.Recommendations...),
	}, true
}

// PendingClarification returns the clarification waiting for the user.
func (s *Session) PendingClarification() (Clarification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Clarification{}, false
	}
	return *s.pending, true
}

// Usage returns tokens and cost spent by this session.
func (s *Session) Usage() ai.UsageSnapshot {
	return s.usage.Snapshot()
}

// history returns answered questions up to limit. Callers hold s.mu.
func (s *Session) history(limit int) []prompt.Exchange {
	if limit > len(s.answers) {
		limit = len(s.answers)
	}
	out := make([]prompt.Exchange, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, prompt.Exchange{Question: s.questions[i], Answer: s.answers[i]})
	}
	return out
}

// reset clears progress. Callers hold s.mu.
func (s *Session) reset() {
	s.questions = nil
	s.answers = nil
	s.feedbacks = nil
	s.index = 0
	s.cache = map[cacheKey]string{}
	s.summary = nil
}
