package interview

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/prompt"
	"github.com/spigell/interview-coach/internal/response"
	"github.com/spigell/interview-coach/internal/validation"
)

// Fallback texts shown when the model could not produce a usable result.
const (
	QuestionPlaceholder   = response.QuestionPlaceholder
	EvaluationPlaceholder = "Could not evaluate this answer. Please try again."
	SummaryPlaceholder    = "Could not generate summary. Please try again."

	emptyAnswerMessage = "Answer cannot be empty. Please type your answer."
	noAnswersMessage   = "Answer at least one question before finishing the interview."

	questionMode = "MODE: generate_question"

	baseTemplate             = "base_instructions"
	DefaultQuestionTechnique = "technique_contextual_progression"
	DefaultSummaryTechnique  = "technique_default"
)

// Gateway sends a request to a model. *ai.Gateway satisfies it.
type Gateway interface {
	Call(ctx context.Context, usage *ai.Usage, req ai.Request) (string, error)
}

// Clarifier decides whether a job title needs clarification.
// *validation.Validator satisfies it.
type Clarifier interface {
	Clarify(ctx context.Context, usage *ai.Usage, title string) validation.Verdict
}

// Config controls prompt selection and generation.
type Config struct {
	Params            ai.GenerationParams
	QuestionTechnique string
	SummaryTechnique  string
	// ResetUsageOnRestart zeroes session usage when an interview is restarted.
	ResetUsageOnRestart bool
}

// StartRequest carries the choices made before an interview.
type StartRequest struct {
	JobTitle     string
	QuestionType string
	Difficulty   string
}

// RestartRequest carries optional new choices. Empty fields keep the current
// value.
type RestartRequest struct {
	JobTitle     string
	QuestionType string
	Difficulty   string
}

// Turn is the outcome of one submitted answer.
type Turn struct {
	Index        int
	Question     string
	Answer       string
	Feedback     string
	NextQuestion string
}

// Controller runs interview sessions. Every operation takes the session lock
// for its whole duration, so operations on one session never overlap. Model
// results are applied only after all calls of an operation finished and only
// when ctx is still live.
type Controller struct {
	gateway   Gateway
	clarifier Clarifier
	assembler *prompt.Assembler
	config    Config
	logger    *zap.Logger
}

func NewController(gateway Gateway, clarifier Clarifier, assembler *prompt.Assembler, config Config, log *zap.Logger) *Controller {
	if config.QuestionTechnique == "" {
		config.QuestionTechnique = DefaultQuestionTechnique
	}
	if config.SummaryTechnique == "" {
		config.SummaryTechnique = DefaultSummaryTechnique
	}

	return &Controller{
		gateway:   gateway,
		clarifier: clarifier,
		assembler: assembler,
		config:    config,
		logger:    logger.WithFields(log),
	}
}

// Start validates the job title and asks the first question. When the title
// needs clarification the session waits in ClarificationPending and the
// clarification is returned instead.
func (c *Controller) Start(ctx context.Context, s *Session, req StartRequest) (*Clarification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != NotStarted {
		return nil, &SessionStateError{Op: "start", State: s.state, Reason: "the interview has already started"}
	}

	title, err := parseJobTitle(req.JobTitle)
	if err != nil {
		return nil, err
	}
	questionType, err := ParseQuestionType(req.QuestionType)
	if err != nil {
		return nil, err
	}
	difficulty, err := ParseDifficulty(req.Difficulty)
	if err != nil {
		return nil, err
	}

	verdict := c.clarifier.Clarify(ctx, &s.usage, title)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !verdict.Accepted {
		return c.hold(s, Clarification{
			JobTitle:     title,
			QuestionType: questionType,
			Difficulty:   difficulty,
			Message:      verdict.Message,
			Origin:       OriginStart,
		}), nil
	}

	return nil, c.begin(ctx, s, &s.usage, title, questionType, difficulty)
}

// Confirm resolves a pending clarification with the (possibly edited) title.
func (c *Controller) Confirm(ctx context.Context, s *Session, jobTitle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ClarificationPending || s.pending == nil {
		return &SessionStateError{Op: "confirm", State: s.state, Reason: "no job title is waiting for confirmation"}
	}

	title, err := parseJobTitle(jobTitle)
	if err != nil {
		return err
	}

	pending := *s.pending
	if pending.Origin == OriginRestart {
		return c.restart(ctx, s, title, pending.QuestionType, pending.Difficulty)
	}
	return c.begin(ctx, s, &s.usage, title, pending.QuestionType, pending.Difficulty)
}

// Cancel drops a pending clarification and returns to the state before it.
func (c *Controller) Cancel(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return &SessionStateError{Op: "cancel", State: s.state, Reason: "no job title is waiting for confirmation"}
	}

	c.sessionLogger(s).Info("clarification cancelled", zap.String("origin", string(s.pending.Origin)))
	s.state = s.pending.previous
	s.pending = nil
	return nil
}

// SubmitAnswer records an answer to the current question, evaluates it with
// the current persona and asks the next question.
func (c *Controller) SubmitAnswer(ctx context.Context, s *Session, text string) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	answer := strings.TrimSpace(text)
	if answer == "" {
		return Turn{}, &ValidationError{Field: "answer", Message: emptyAnswerMessage}
	}
	if s.state != Active {
		return Turn{}, &SessionStateError{Op: "submit answer", State: s.state, Reason: "no interview is in progress"}
	}

	index := s.index
	if index >= len(s.questions) {
		return Turn{}, &SessionStateError{Op: "submit answer", State: s.state, Reason: "no question is waiting for an answer"}
	}

	log := c.sessionLogger(s).With(zap.Int("question_index", index), zap.String("persona", string(s.style)))
	key := cacheKey{index: index, persona: s.style}
	latest := index == len(s.questions)-1

	turn := Turn{Index: index, Question: s.questions[index], Answer: answer}
	cacheable := false

	// The current index is always unanswered, so this misses unless an entry
	// for it survived. Feedback for answered questions is served by FeedbackFor.
	if feedback, ok := s.cache[key]; ok {
		log.Debug("feedback cache hit")
		turn.Feedback = feedback
	} else {
		evaluation, ok := c.evaluate(ctx, s, log, index, answer, s.style)
		turn.Feedback = evaluation.Feedback
		if latest {
			turn.NextQuestion = evaluation.NextQuestion
		}
		cacheable = ok
	}

	if latest && turn.NextQuestion == "" {
		log.Info("evaluation did not include a next question, generating one")
		history := append(s.history(index), prompt.Exchange{Question: turn.Question, Answer: answer})
		turn.NextQuestion = c.generateQuestion(ctx, &s.usage, log, questionInput{
			jobTitle:     s.jobTitle,
			questionType: s.questionType,
			difficulty:   s.difficulty,
			history:      history,
			asked:        s.questions,
		})
	}

	if err := ctx.Err(); err != nil {
		log.Info("submit answer abandoned", zap.Error(err))
		return Turn{}, err
	}

	s.answers = append(s.answers, answer)
	s.feedbacks = append(s.feedbacks, turn.Feedback)
	if cacheable {
		s.cache[key] = turn.Feedback
	}
	if latest {
		s.questions = append(s.questions, turn.NextQuestion)
	}
	s.index = len(s.answers)

	spent := s.usage.Snapshot()
	log.Info("answer evaluated", logger.UsageFields(spent.InputTokens, spent.OutputTokens, spent.Cost)...)
	return turn, nil
}

// FeedbackFor returns feedback for an answered question under the current
// persona. History is never changed; a new evaluation is requested only when
// nothing is cached for the question and persona.
func (c *Controller) FeedbackFor(ctx context.Context, s *Session, index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active && s.state != Finished {
		return "", &SessionStateError{Op: "feedback", State: s.state, Reason: "no interview is in progress"}
	}
	if index < 0 || index >= len(s.answers) {
		return "", &SessionStateError{Op: "feedback", State: s.state, Reason: fmt.Sprintf("question %d has no answer", index+1)}
	}

	key := cacheKey{index: index, persona: s.style}
	if feedback, ok := s.cache[key]; ok {
		return feedback, nil
	}

	log := c.sessionLogger(s).With(zap.Int("question_index", index), zap.String("persona", string(s.style)))
	evaluation, ok := c.evaluate(ctx, s, log, index, s.answers[index], s.style)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if ok {
		s.cache[key] = evaluation.Feedback
	}
	return evaluation.Feedback, nil
}

// SetEvaluationStyle changes the persona used for the next evaluation.
func (c *Controller) SetEvaluationStyle(s *Session, persona Persona) error {
	if _, ok := persona.info(); !ok {
		return &ValidationError{Field: "evaluation style", Message: fmt.Sprintf("Unknown evaluation style %q.", persona)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.style = persona
	return nil
}

// Finish summarizes the interview. Finishing again returns the same summary.
func (c *Controller) Finish(ctx context.Context, s *Session) (response.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Finished:
		return copySummary(s.summary), nil
	case Active:
	default:
		return response.Summary{}, &SessionStateError{Op: "finish", State: s.state, Reason: "no interview is in progress"}
	}

	if len(s.answers) == 0 {
		return response.Summary{}, &ValidationError{Field: "answers", Message: noAnswersMessage}
	}

	log := c.sessionLogger(s).With(zap.Int("answers", len(s.answers)))
	summary := c.summarize(ctx, s, log)
	if err := ctx.Err(); err != nil {
		return response.Summary{}, err
	}

	s.summary = &summary
	s.state = Finished
	log.Info("interview finished")
	return copySummary(s.summary), nil
}

// Restart clears progress and asks a new first question. A new job title is
// validated first and may produce a clarification instead.
func (c *Controller) Restart(ctx context.Context, s *Session, req RestartRequest) (*Clarification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active && s.state != Finished {
		return nil, &SessionStateError{Op: "restart", State: s.state, Reason: "start an interview first"}
	}

	title := s.jobTitle
	questionType := s.questionType
	difficulty := s.difficulty

	var err error
	if strings.TrimSpace(req.QuestionType) != "" {
		if questionType, err = ParseQuestionType(req.QuestionType); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(req.Difficulty) != "" {
		if difficulty, err = ParseDifficulty(req.Difficulty); err != nil {
			return nil, err
		}
	}

	switch newTitle := strings.TrimSpace(req.JobTitle); {
	case newTitle == "":
	case strings.EqualFold(newTitle, title):
		title = newTitle
	default:
		verdict := c.clarifier.Clarify(ctx, &s.usage, newTitle)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !verdict.Accepted {
			return c.hold(s, Clarification{
				JobTitle:     newTitle,
				QuestionType: questionType,
				Difficulty:   difficulty,
				Message:      verdict.Message,
				Origin:       OriginRestart,
			}), nil
		}
		title = newTitle
	}

	return nil, c.restart(ctx, s, title, questionType, difficulty)
}

// Reset returns the session to NotStarted and zeroes its usage.
func (c *Controller) Reset(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	s.state = NotStarted
	s.pending = nil
	s.jobTitle = ""
	s.questionType = ""
	s.difficulty = ""
	s.style = DefaultPersona
	s.usage.Reset()
}

// hold parks a clarification on the session. Callers hold s.mu.
func (c *Controller) hold(s *Session, clarification Clarification) *Clarification {
	clarification.previous = s.state

	c.sessionLogger(s).Info("job title needs clarification",
		zap.String("pending_job_title", clarification.JobTitle),
		zap.String("origin", string(clarification.Origin)),
	)

	s.pending = &clarification
	s.state = ClarificationPending

	out := clarification
	return &out
}

func (c *Controller) restart(ctx context.Context, s *Session, title string, questionType QuestionType, difficulty Difficulty) error {
	if !c.config.ResetUsageOnRestart {
		return c.begin(ctx, s, &s.usage, title, questionType, difficulty)
	}

	var usage ai.Usage
	err := c.begin(ctx, s, &usage, title, questionType, difficulty)
	spent := usage.Snapshot()
	if err == nil {
		s.usage.Reset()
	}
	s.usage.Add(spent.InputTokens, spent.OutputTokens, spent.Cost)
	return err
}

// begin asks the first question and then replaces the session progress.
// Callers hold s.mu.
func (c *Controller) begin(ctx context.Context, s *Session, usage *ai.Usage, title string, questionType QuestionType, difficulty Difficulty) error {
	log := c.logger.With(logger.SessionFields(s.id, title)...)

	question := c.generateQuestion(ctx, usage, log, questionInput{
		jobTitle:     title,
		questionType: questionType,
		difficulty:   difficulty,
	})
	if err := ctx.Err(); err != nil {
		log.Info("interview start abandoned", zap.Error(err))
		return err
	}

	s.reset()
	s.jobTitle = title
	s.questionType = questionType
	s.difficulty = difficulty
	s.questions = []string{question}
	s.pending = nil
	s.state = Active

	log.Info("interview started",
		zap.String("question_type", string(questionType)),
		zap.String("difficulty", string(difficulty)),
	)
	return nil
}

type questionInput struct {
	jobTitle     string
	questionType QuestionType
	difficulty   Difficulty
	history      []prompt.Exchange
	asked        []string
}

func (c *Controller) generateQuestion(ctx context.Context, usage *ai.Usage, log *zap.Logger, in questionInput) string {
	system, err := c.assembler.System("question")
	if err != nil {
		log.Error("failed to build question prompt", zap.Error(err))
		return QuestionPlaceholder
	}

	body, err := c.assembler.Assemble("questions", baseTemplate, c.config.QuestionTechnique, prompt.Vars{
		"job_title":     in.jobTitle,
		"question_type": string(in.questionType),
		"difficulty":    string(in.difficulty),
		"history":       in.history,
		"asked":         in.asked,
	})
	if err != nil {
		log.Error("failed to build question prompt", zap.Error(err))
		return QuestionPlaceholder
	}

	text, err := c.gateway.Call(ctx, usage, ai.Request{
		System: system,
		Prompt: questionMode + "\n" + body,
		Params: c.config.Params,
		Schema: questionSchema,
	})
	if err != nil {
		log.Warn("question generation failed", zap.Error(err))
		if strings.TrimSpace(text) == "" {
			return QuestionPlaceholder
		}
	}

	return response.ParseQuestion(text)
}

// evaluate asks the model to evaluate answer to question index. The boolean is
// false when the result is a fallback that must not be cached.
func (c *Controller) evaluate(ctx context.Context, s *Session, log *zap.Logger, index int, answer string, persona Persona) (response.Evaluation, bool) {
	system, err := c.assembler.System("evaluation")
	if err != nil {
		log.Error("failed to build evaluation prompt", zap.Error(err))
		return response.Evaluation{Feedback: EvaluationPlaceholder}, false
	}

	body, err := c.assembler.Assemble("evaluation", baseTemplate, persona.Technique(), prompt.Vars{
		"job_title":     s.jobTitle,
		"question_type": string(s.questionType),
		"difficulty":    string(s.difficulty),
		"question":      s.questions[index],
		"answer":        answer,
		"history":       s.history(index),
	})
	if err != nil {
		log.Error("failed to build evaluation prompt", zap.Error(err))
		return response.Evaluation{Feedback: EvaluationPlaceholder}, false
	}

	text, err := c.gateway.Call(ctx, &s.usage, ai.Request{
		System: system,
		Prompt: body,
		Params: c.config.Params,
		Schema: evaluationSchema,
	})
	if err != nil {
		log.Warn("answer evaluation failed", zap.Error(err))
		if strings.TrimSpace(text) == "" {
			return response.Evaluation{Feedback: EvaluationPlaceholder}, false
		}
		return response.ParseEvaluation(text), false
	}

	return response.ParseEvaluation(text), true
}

func (c *Controller) summarize(ctx context.Context, s *Session, log *zap.Logger) response.Summary {
	fallback := response.Summary{Text: SummaryPlaceholder, Recommendations: []string{}}

	system, err := c.assembler.System("summary")
	if err != nil {
		log.Error("failed to build summary prompt", zap.Error(err))
		return fallback
	}

	body, err := c.assembler.Assemble("summary", baseTemplate, c.config.SummaryTechnique, prompt.Vars{
		"job_title": s.jobTitle,
		"history":   s.history(len(s.answers)),
	})
	if err != nil {
		log.Error("failed to build summary prompt", zap.Error(err))
		return fallback
	}

	text, err := c.gateway.Call(ctx, &s.usage, ai.Request{
		System: system,
		Prompt: body,
		Params: c.config.Params,
		Schema: summarySchema,
	})
	if err != nil {
		log.Warn("summary generation failed", zap.Error(err))
		if strings.TrimSpace(text) == "" {
			return fallback
		}
	}

	return response.ParseSummary(text)
}

func (c *Controller) sessionLogger(s *Session) *zap.Logger {
	return c.logger.With(logger.SessionFields(s.id, s.jobTitle)...)
}

func parseJobTitle(value string) (string, error) {
	if ok, message := validation.Exists(value); !ok {
		return "", &ValidationError{Field: "job title", Message: message}
	}
	return strings.TrimSpace(value), nil
}

func copySummary(summary *response.Summary) response.Summary {
	if summary == nil {
		return response.Summary{Recommendations: []string{}}
	}
	return response.Summary{
		Text:            summary.Text,
		Recommendations: append([]string{}, summary.Recommendations...),
	}
}
