package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/prompt"
	"github.com/spigell/interview-coach/internal/validation"
)

type fakeReply struct {
	text string
	err  error
}

// fakeGateway answers by schema name. Plain requests come from the validator.
type fakeGateway struct {
	mu        sync.Mutex
	replies   map[string][]fakeReply
	calls     map[string]int
	requests  []ai.Request
	questions int
	onCall    func(schema string)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{replies: map[string][]fakeReply{}, calls: map[string]int{}}
}

func (f *fakeGateway) queue(schema string, replies ...fakeReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[schema] = append(f.replies[schema], replies...)
}

func (f *fakeGateway) count(schema string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[schema]
}

func (f *fakeGateway) Call(_ context.Context, usage *ai.Usage, req ai.Request) (string, error) {
	name := ""
	if req.Schema != nil {
		name = req.Schema.Name
	}

	f.mu.Lock()
	f.calls[name]++
	f.requests = append(f.requests, req)
	onCall := f.onCall
	var reply *fakeReply
	if queue := f.replies[name]; len(queue) > 0 {
		reply = &queue[0]
		f.replies[name] = queue[1:]
	}
	if reply == nil && name == "question_result" {
		f.questions++
		reply = &fakeReply{text: fmt.Sprintf(`{"question":"Question %d?"}`, f.questions)}
	}
	f.mu.Unlock()

	usage.Add(100, 50, 0.001)
	if onCall != nil {
		onCall(name)
	}

	if reply != nil {
		return reply.text, reply.err
	}

	switch name {
	case "evaluation_result":
		return `{"feedback":"Good answer.","next_question":"Follow-up?"}`, nil
	case "summary_result":
		return `{"summary":"ok","recommendations":["a","b"]}`, nil
	default:
		return "Valid", nil
	}
}

func newTestController(gw *fakeGateway, config Config) *Controller {
	assembler := prompt.NewAssembler(prompt.NewTemplateRenderer(prompt.Embedded()))
	validator := validation.New(gw, assembler, validation.Config{}, zap.NewNop())
	return NewController(gw, validator, assembler, config, zap.NewNop())
}

func startSession(t *testing.T, c *Controller) *Session {
	t.Helper()

	s := NewSession()
	clarification, err := c.Start(context.Background(), s, StartRequest{
		JobTitle:     "Software Engineer",
		QuestionType: "Behavioral",
		Difficulty:   "Easy",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clarification != nil {
		t.Fatalf("unexpected clarification: %+v", clarification)
	}
	return s
}

func assertProgress(t *testing.T, s *Session, questions, answers int) {
	t.Helper()

	if got := len(s.Questions()); got != questions {
		t.Fatalf("expected %d questions, got %d", questions, got)
	}
	if got := len(s.Answers()); got != answers {
		t.Fatalf("expected %d answers, got %d", answers, got)
	}
	if got := len(s.Feedbacks()); got != answers {
		t.Fatalf("expected %d feedbacks, got %d", answers, got)
	}
	if got := s.CurrentQuestionIndex(); got != answers {
		t.Fatalf("expected index %d, got %d", answers, got)
	}
}

func TestControllerEndToEnd(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw, Config{})

	s := startSession(t, c)
	if s.State() != Active {
		t.Fatalf("expected active session, got %s", s.State())
	}
	assertProgress(t, s, 1, 0)

	turn, err := c.SubmitAnswer(context.Background(), s, "I led a team project")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertProgress(t, s, 2, 1)
	if turn.Feedback != "Good answer." || turn.NextQuestion != "Follow-up?" || turn.Question != "Question 1?" {
		t.Fatalf("unexpected turn: %+v", turn)
	}
	if current, ok := s.CurrentQuestion(); !ok || current != "Follow-up?" {
		t.Fatalf("unexpected current question %q", current)
	}

	usage := s.Usage()
	if usage.InputTokens != 300 || usage.OutputTokens != 150 {
		t.Fatalf("expected usage of three calls, got %+v", usage)
	}
}

func TestControllerSubmitAnswersInLockstep(t *testing.T) {
	c := newTestController(newFakeGateway(), Config{})
	s := startSession(t, c)

	for k := 1; k <= 4; k++ {
		if _, err := c.SubmitAnswer(context.Background(), s, fmt.Sprintf("answer %d", k)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertProgress(t, s, k+1, k)
	}
}

func TestControllerSubmitBlankAnswer(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw, Config{})
	s := startSession(t, c)
	before := len(gw.requests)

	_, err := c.SubmitAnswer(context.Background(), s, "   ")

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.UserMessage() == "" {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	assertProgress(t, s, 1, 0)
	if len(gw.requests) != before {
		t.Fatal("blank answer must not call the model")
	}
}

func TestControllerStartValidation(t *testing.T) {
	cases := []struct {
		name string
		req  StartRequest
	}{
		{name: "blank title", req: StartRequest{JobTitle: "  ", QuestionType: "Behavioral", Difficulty: "Easy"}},
		{name: "unknown type", req: StartRequest{JobTitle: "QA Engineer", QuestionType: "Riddles", Difficulty: "Easy"}},
		{name: "unknown difficulty", req: StartRequest{JobTitle: "QA Engineer", QuestionType: "Technical", Difficulty: "Extreme"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newFakeGateway()
			c := newTestController(gw, Config{})
			s := NewSession()

			_, err := c.Start(context.Background(), s, tc.req)

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if s.State() != NotStarted || len(gw.requests) != 0 {
				t.Fatalf("expected no changes, state=%s calls=%d", s.State(), len(gw.requests))
			}
		})
	}
}

func TestControllerStartTwice(t *testing.T) {
	c := newTestController(newFakeGateway(), Config{})
	s := startSession(t, c)

	_, err := c.Start(context.Background(), s, StartRequest{JobTitle: "QA", QuestionType: "Technical", Difficulty: "Hard"})

	var stateErr *SessionStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected SessionStateError, got %v", err)
	}
}

func TestControllerClarificationConfirm(t *testing.T) {
	gw := newFakeGateway()
	gw.queue("", fakeReply{text: "Clarification needed: is this a real job?"})
	c := newTestController(gw, Config{})
	s := NewSession()

	clarification, err := c.Start(context.Background(), s, StartRequest{
		JobTitle: "Dragon Tamer", QuestionType: "Role-specific", Difficulty: "Medium",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clarification == nil || clarification.Origin != OriginStart || clarification.JobTitle != "Dragon Tamer" {
		t.Fatalf("unexpected clarification: %+v", clarification)
	}
	if s.State() != ClarificationPending || s.JobTitle() != "" || len(s.Questions()) != 0 {
		t.Fatalf("live state must be untouched, got state=%s title=%q", s.State(), s.JobTitle())
	}

	if err := c.Confirm(context.Background(), s, " Animal Trainer "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.State() != Active || s.JobTitle() != "Animal Trainer" || s.QuestionType() != RoleSpecific || s.Difficulty() != Medium {
		t.Fatalf("unexpected session after confirm: state=%s title=%q", s.State(), s.JobTitle())
	}
	assertProgress(t, s, 1, 0)
	if _, ok := s.PendingClarification(); ok {
		t.Fatal("pending clarification must be cleared")
	}
}

func TestControllerClarificationCancel(t *testing.T) {
	gw := newFakeGateway()
	gw.queue("", fakeReply{text: "clarification needed"})
	c := newTestController(gw, Config{})
	s := NewSession()

	if _, err := c.Start(context.Background(), s, StartRequest{JobTitle: "Wizard of Light", QuestionType: "Technical", Difficulty: "Hard"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Confirm(context.Background(), s, " "); err == nil {
		t.Fatal("expected ValidationError for blank confirmation")
	}

	if err := c.Cancel(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != NotStarted {
		t.Fatalf("expected NotStarted, got %s", s.State())
	}

	var stateErr *SessionStateError
	if err := c.Confirm(context.Background(), s, "Wizard"); !errors.As(err, &stateErr) {
		t.Fatalf("expected SessionStateError, got %v", err)
	}
	if err := c.Cancel(s); !errors.As(err, &stateErr) {
		t.Fatalf("expected SessionStateError, got %v", err)
	}
}

func TestControllerMissingNextQuestionGeneratesOnce(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw, Config{})
	s := startSession(t, c)

	gw.queue("evaluation_result", fakeReply{text: `{"feedback":"good","next_question":null}`})
	before := gw.count("question_result")

	turn, err := c.SubmitAnswer(context.Background(), s, "answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := gw.count("question_result") - before; got != 1 {
		t.Fatalf("expected exactly one question call, got %d", got)
	}
	if turn.Feedback != "good" || turn.NextQuestion != "Question 2?" {
		t.Fatalf("unexpected turn: %+v", turn)
	}
	assertProgress(t, s, 2, 1)
}

func TestControllerFeedbackCache(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw, Config{})
	s := startSession(t, c)

	if _, err := c.SubmitAnswer(context.Background(), s, "answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gw.count("evaluation_result"); got != 1 {
		t.Fatalf("expected one evaluation, got %d", got)
	}

	feedback, err := c.FeedbackFor(context.Background(), s, 0)
	if err != nil || feedback != "Good answer." {
		t.Fatalf("unexpected feedback %q, err %v", feedback, err)
	}
	if got := gw.count("evaluation_result"); got != 1 {
		t.Fatalf("cache hit must not call the model, got %d evaluations", got)
	}

	if err := c.SetEvaluationStyle(s, Mentor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gw.queue("evaluation_result", fakeReply{text: `{"feedback":"Mentor view.","next_question":null}`})

	for i := 0; i < 2; i++ {
		feedback, err = c.FeedbackFor(context.Background(), s, 0)
		if err != nil || feedback != "Mentor view." {
			t.Fatalf("unexpected feedback %q, err %v", feedback, err)
		}
	}
	if got := gw.count("evaluation_result"); got != 2 {
		t.Fatalf("persona switch must call the model exactly once, got %d evaluations", got)
	}

	last := gw.requests[len(gw.requests)-1]
	if last.Schema.Name != "evaluation_result" || !strings.Contains(last.Prompt, "supportive mentor") {
		t.Fatalf("expected mentor technique in prompt, got %q", last.Prompt)
	}
	assertProgress(t, s, 2, 1)
	if got := s.Feedbacks()[0]; got != "Good answer." {
		t.Fatalf("history must not change, got %q", got)
	}
}

func TestControllerFeedbackForOutOfRange(t *testing.T) {
	c := newTestController(newFakeGateway(), Config{})
	s := startSession(t, c)

	for _, index := range []int{-1, 0, 3} {
		_, err := c.FeedbackFor(context.Background(), s, index)

		var stateErr *SessionStateError
		if !errors.As(err, &stateErr) {
			t.Fatalf("index %d: expected SessionStateError, got %v", index, err)
		}
	}
}

func TestControllerEvaluationFailure(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw, Config{})
	s := startSession(t, c)

	gw.queue("evaluation_result", fakeReply{err: &ai.LLMError{Model: "m", Attempts: 3, Err: errors.New("unavailable")}})

	turn, err := c.SubmitAnswer(context.Background(), s, "answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.Feedback != EvaluationPlaceholder || turn.NextQuestion != "Question 2?" {
		t.Fatalf("unexpected turn: %+v", turn)
	}
	assertProgress(t, s, 2, 1)

	if _, err := c.FeedbackFor(context.Background(), s, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gw.count("evaluation_result"); got != 2 {
		t.Fatalf("failed evaluation must not be cached, got %d evaluations", got)
	}
}

func TestControllerQuestionFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.queue("question_result", fakeReply{err: &ai.LLMError{Model: "m", Attempts: 3, Err: errors.New("timeout")}})
	c := newTestController(gw, Config{})

	s := startSession(t, c)

	if got := s.Questions(); len(got) != 1 || got[0] != QuestionPlaceholder {
		t.Fatalf("expected placeholder question, got %v", got)
	}
	if s.State() != Active {
		t.Fatalf("session must stay interactable, got %s", s.State())
	}
}

func TestControllerFinish(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw, Config{})
	s := startSession(t, c)

	_, err := c.Finish(context.Background(), s)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError without answers, got %v", err)
	}

	if _, err := c.SubmitAnswer(context.Background(), s, "answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary, err := c.Finish(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Text != "ok" || len(summary.Recommendations) != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !s.Finished() {
		t.Fatal("expected finished session")
	}

	if _, err := c.Finish(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gw.count("summary_result"); got != 1 {
		t.Fatalf("expected one summary call, got %d", got)
	}

	var stateErr *SessionStateError
	if _, err := c.SubmitAnswer(context.Background(), s, "late"); !errors.As(err, &stateErr) {
		t.Fatalf("expected SessionStateError after finish, got %v", err)
	}
}

func TestControllerFinishFallbacks(t *testing.T) {
	cases := []struct {
		name  string
		reply fakeReply
		want  string
	}{
		{
			name:  "raw text on schema violation",
			reply: fakeReply{text: "not json", err: &ai.LLMError{Err: &ai.SchemaViolationError{Schema: "summary_result", Err: errors.New("bad")}}},
			want:  "not json",
		},
		{
			name:  "placeholder on empty result",
			reply: fakeReply{err: &ai.LLMError{Err: errors.New("down")}},
			want:  SummaryPlaceholder,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newFakeGateway()
			c := newTestController(gw, Config{})
			s := startSession(t, c)
			if _, err := c.SubmitAnswer(context.Background(), s, "answer"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			gw.queue("summary_result", tc.reply)

			summary, err := c.Finish(context.Background(), s)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if summary.Text != tc.want || len(summary.Recommendations) != 0 {
				t.Fatalf("unexpected summary: %+v", summary)
			}
		})
	}
}

func TestControllerRestart(t *testing.T) {
	cases := []struct {
		name       string
		resetUsage bool
	}{
		{name: "keeps usage", resetUsage: false},
		{name: "resets usage", resetUsage: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestController(newFakeGateway(), Config{ResetUsageOnRestart: tc.resetUsage})
			s := startSession(t, c)
			for i := 0; i < 2; i++ {
				if _, err := c.SubmitAnswer(context.Background(), s, "answer"); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
			before := s.Usage()

			clarification, err := c.Restart(context.Background(), s, RestartRequest{Difficulty: "hard"})
			if err != nil || clarification != nil {
				t.Fatalf("unexpected restart result: %+v, %v", clarification, err)
			}

			assertProgress(t, s, 1, 0)
			if s.JobTitle() != "Software Engineer" || s.QuestionType() != Behavioral || s.Difficulty() != Hard {
				t.Fatalf("unexpected choices after restart: %q %s %s", s.JobTitle(), s.QuestionType(), s.Difficulty())
			}

			after := s.Usage()
			if tc.resetUsage {
				if after.InputTokens != 100 || after.OutputTokens != 50 {
					t.Fatalf("expected usage of the new question only, got %+v", after)
				}
			} else if after.InputTokens != before.InputTokens+100 {
				t.Fatalf("expected usage to keep growing, before %+v after %+v", before, after)
			}
		})
	}
}

func TestControllerRestartFromFinished(t *testing.T) {
	c := newTestController(newFakeGateway(), Config{})
	s := startSession(t, c)
	if _, err := c.SubmitAnswer(context.Background(), s, "answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Finish(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := c.Restart(context.Background(), s, RestartRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.State() != Active {
		t.Fatalf("expected active session, got %s", s.State())
	}
	if _, ok := s.Summary(); ok {
		t.Fatal("summary must be cleared by restart")
	}
	assertProgress(t, s, 1, 0)
}

func TestControllerRestartWithNewTitle(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw, Config{})
	s := startSession(t, c)
	if _, err := c.SubmitAnswer(context.Background(), s, "answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gw.queue("", fakeReply{text: "Clarification needed: unknown role"}, fakeReply{text: "Clarification needed: unknown role"})

	clarification, err := c.Restart(context.Background(), s, RestartRequest{JobTitle: "Dragon Tamer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clarification == nil || clarification.Origin != OriginRestart {
		t.Fatalf("expected restart clarification, got %+v", clarification)
	}
	assertProgress(t, s, 2, 1)

	if err := c.Cancel(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != Active || s.JobTitle() != "Software Engineer" {
		t.Fatalf("cancel must restore the running interview, got %s %q", s.State(), s.JobTitle())
	}
	assertProgress(t, s, 2, 1)

	if _, err := c.Restart(context.Background(), s, RestartRequest{JobTitle: "Dragon Tamer"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Confirm(context.Background(), s, "Dragon Tamer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != Active || s.JobTitle() != "Dragon Tamer" {
		t.Fatalf("unexpected session after confirm: %s %q", s.State(), s.JobTitle())
	}
	assertProgress(t, s, 1, 0)
}

func TestControllerRestartSameTitleDifferentCase(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw, Config{})
	s := startSession(t, c)
	validations := gw.count("")

	clarification, err := c.Restart(context.Background(), s, RestartRequest{JobTitle: "  software engineer "})
	if err != nil || clarification != nil {
		t.Fatalf("unexpected restart result %+v, err %v", clarification, err)
	}
	if got := gw.count(""); got != validations {
		t.Fatalf("same title must not be validated again, got %d extra calls", got-validations)
	}
	if s.JobTitle() != "software engineer" {
		t.Fatalf("expected the new spelling to be kept, got %q", s.JobTitle())
	}
	assertProgress(t, s, 1, 0)
}

func TestControllerRestartRequiresStartedSession(t *testing.T) {
	c := newTestController(newFakeGateway(), Config{})

	_, err := c.Restart(context.Background(), NewSession(), RestartRequest{})

	var stateErr *SessionStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected SessionStateError, got %v", err)
	}
}

func TestControllerCancelledSubmitAppliesNothing(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw, Config{})
	s := startSession(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	gw.onCall = func(schema string) {
		if schema == "evaluation_result" {
			cancel()
		}
	}

	_, err := c.SubmitAnswer(ctx, s, "answer")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	assertProgress(t, s, 1, 0)
	if s.Usage().InputTokens == 0 {
		t.Fatal("tokens spent before cancellation must still be counted")
	}

	gw.onCall = nil
	if _, err := c.SubmitAnswer(context.Background(), s, "answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gw.count("evaluation_result"); got != 2 {
		t.Fatalf("cancelled evaluation must not be cached, got %d evaluations", got)
	}
}

func TestControllerCancelledStartKeepsSessionIdle(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw, Config{})
	s := NewSession()

	ctx, cancel := context.WithCancel(context.Background())
	gw.onCall = func(schema string) {
		if schema == "question_result" {
			cancel()
		}
	}

	_, err := c.Start(ctx, s, StartRequest{JobTitle: "QA Engineer", QuestionType: "Technical", Difficulty: "Easy"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.State() != NotStarted || len(s.Questions()) != 0 {
		t.Fatalf("expected untouched session, got %s", s.State())
	}
}

func TestControllerSerializesSubmits(t *testing.T) {
	c := newTestController(newFakeGateway(), Config{})
	s := startSession(t, c)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := c.SubmitAnswer(context.Background(), s, fmt.Sprintf("answer %d", i)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assertProgress(t, s, 5, 4)
}

func TestControllerSetEvaluationStyle(t *testing.T) {
	c := newTestController(newFakeGateway(), Config{})
	s := NewSession()

	if s.EvaluationStyle() != DefaultPersona {
		t.Fatalf("expected default persona, got %s", s.EvaluationStyle())
	}
	if err := c.SetEvaluationStyle(s, SubjectMatterExpert); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.EvaluationStyle() != SubjectMatterExpert {
		t.Fatalf("unexpected persona %s", s.EvaluationStyle())
	}

	var validationErr *ValidationError
	if err := c.SetEvaluationStyle(s, Persona("Pirate")); !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestControllerReset(t *testing.T) {
	c := newTestController(newFakeGateway(), Config{})
	s := startSession(t, c)
	id := s.ID()
	if _, err := c.SubmitAnswer(context.Background(), s, "answer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Reset(s)

	if s.State() != NotStarted || s.JobTitle() != "" || s.ID() != id {
		t.Fatalf("unexpected session after reset: %s %q", s.State(), s.JobTitle())
	}
	assertProgress(t, s, 0, 0)
	if usage := s.Usage(); usage.InputTokens != 0 || usage.Cost != 0 {
		t.Fatalf("expected zero usage, got %+v", usage)
	}
}

func TestControllerQuestionPromptCarriesHistory(t *testing.T) {
	gw := newFakeGateway()
	c := newTestController(gw, Config{})
	s := startSession(t, c)

	gw.queue("evaluation_result", fakeReply{text: `{"feedback":"ok","next_question":null}`})
	if _, err := c.SubmitAnswer(context.Background(), s, "I led a team project"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := gw.requests[len(gw.requests)-1]
	if last.Schema.Name != "question_result" {
		t.Fatalf("expected question request last, got %s", last.Schema.Name)
	}
	for _, want := range []string{"MODE: generate_question", "Software Engineer", "I led a team project", "Question 1?"} {
		if !strings.Contains(last.Prompt, want) {
			t.Fatalf("expected %q in prompt %q", want, last.Prompt)
		}
	}
}
