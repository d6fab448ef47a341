package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/validation"
)

const (
	PromptAnswer    = "Answer the question"
	PromptStyle     = "Change evaluation style"
	PromptReview    = "Review feedback"
	PromptRestart   = "Restart interview"
	PromptFinish    = "Finish and get summary"
	PromptDump      = "Dump transcript to file"
	PromptExit      = "Exit"
	PromptBack      = "back"
	PromptConfirm   = "Use this job title anyway"
	PromptEditTitle = "Edit job title"
	PromptCancel    = "Cancel"
	PromptKeep      = "Keep current settings"
	PromptNewTitle  = "Change job title"
)

var errExit = errors.New("exit requested")

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Run an interactive interview practice session",
	Run: func(cmd *cobra.Command, _ []string) {
		practice(cmd)
	},
}

func init() {
	rootCmd.AddCommand(practiceCmd)

	practiceCmd.Flags().StringP("job-title", "t", "", "job title to practice for (asked interactively when empty)")
	practiceCmd.Flags().StringP("question-type", "q", "", "question type: Behavioral, Role-specific or Technical")
	practiceCmd.Flags().StringP("difficulty", "l", "", "difficulty: Easy, Medium or Hard")
	practiceCmd.Flags().StringP("persona", "p", "", "evaluation style, see the personas command")
	practiceCmd.Flags().String("provider", "", "model provider: openai, gemini or mock")
	practiceCmd.Flags().String("model", "", "model id")
	practiceCmd.Flags().Float64("temperature", 0.2, "sampling temperature between 0 and 1")
	practiceCmd.Flags().Int("max-output-tokens", 250, "maximum tokens per model response")
	practiceCmd.Flags().Bool("mock", false, "use the offline mock model")

	viper.BindPFlag("interview.evaluation-style", practiceCmd.Flags().Lookup("persona"))
	viper.BindPFlag("ai.provider", practiceCmd.Flags().Lookup("provider"))
	viper.BindPFlag("ai.model", practiceCmd.Flags().Lookup("model"))
	viper.BindPFlag("ai.temperature", practiceCmd.Flags().Lookup("temperature"))
	viper.BindPFlag("ai.max-output-tokens", practiceCmd.Flags().Lookup("max-output-tokens"))
}

// practice is the interactive interview loop.
func practice(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if mockFlag := cmd.Flag("mock"); mockFlag != nil && mockFlag.Value.String() == "true" {
		config.AI.Provider = providerMock
	}

	logger.Info("starting the interview-coach", zap.String("version", version), zap.String("provider", config.AI.Provider))

	c, err := newCoach(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the interview", zap.Error(err),
			zap.String("hint", "use --mock to practice without a model provider"))
	}

	session := interview.NewSession()
	if style := strings.TrimSpace(config.Interview.EvaluationStyle); style != "" {
		persona, err := interview.ParsePersona(style)
		if err != nil {
			logger.Fatal("unknown evaluation style", zap.Error(err))
		}
		if err := c.controller.SetEvaluationStyle(session, persona); err != nil {
			logger.Fatal("setting evaluation style", zap.Error(err))
		}
	}

	r := &runner{
		out:        cmd.OutOrStdout(),
		controller: c.controller,
		gateway:    c.gateway,
		session:    session,
		format:     config.Interview.TranscriptFormat,
		logger:     logger,
	}

	err = r.start(ctx, interview.StartRequest{
		JobTitle:     flagValue(cmd, "job-title"),
		QuestionType: flagValue(cmd, "question-type"),
		Difficulty:   flagValue(cmd, "difficulty"),
	})
	if err == nil {
		err = r.loop(ctx)
	}

	if err != nil && !isExit(err) {
		logger.Fatal("exiting", zap.Error(err))
	}

	r.logTotals()
}

type runner struct {
	out        io.Writer
	controller *interview.Controller
	gateway    *ai.Gateway
	session    *interview.Session
	format     string
	logger     *zap.Logger
}

func (r *runner) start(ctx context.Context, req interview.StartRequest) error {
	for {
		var err error
		if req.JobTitle == "" {
			if req.JobTitle, err = askJobTitle(""); err != nil {
				return err
			}
		}
		if req.QuestionType == "" {
			if req.QuestionType, err = choose("Question type", questionTypeItems()); err != nil {
				return err
			}
		}
		if req.Difficulty == "" {
			if req.Difficulty, err = choose("Difficulty", difficultyItems()); err != nil {
				return err
			}
		}

		clarification, err := r.controller.Start(ctx, r.session, req)
		if err != nil {
			if !r.report(err) {
				return err
			}
			req = interview.StartRequest{}
			continue
		}

		if clarification != nil {
			if err := r.clarify(ctx, clarification); err != nil {
				return err
			}
			if r.session.State() != interview.Active {
				req.JobTitle = ""
				continue
			}
		}

		r.printQuestion()
		return nil
	}
}

// clarify lets the user resolve a job title the validator did not accept.
func (r *runner) clarify(ctx context.Context, clarification *interview.Clarification) error {
	fmt.Fprintf(r.out, "\n%s\n\n", clarification.Message)

	for {
		action, err := choose(fmt.Sprintf("Job title %q needs clarification", clarification.JobTitle),
			[]string{PromptConfirm, PromptEditTitle, PromptCancel})
		if err != nil {
			return err
		}

		title := clarification.JobTitle
		switch action {
		case PromptCancel:
			return r.controller.Cancel(r.session)
		case PromptEditTitle:
			if title, err = askJobTitle(title); err != nil {
				return err
			}
		}

		if err := r.controller.Confirm(ctx, r.session, title); err != nil {
			if !r.report(err) {
				return err
			}
			continue
		}
		return nil
	}
}

func (r *runner) loop(ctx context.Context) error {
	for {
		items := []string{PromptAnswer, PromptStyle, PromptReview, PromptRestart, PromptFinish, PromptDump, PromptExit}
		if r.session.Finished() {
			items = []string{PromptReview, PromptStyle, PromptRestart, PromptDump, PromptExit}
		}

		action, err := choose("What next?", items)
		if err != nil {
			return err
		}

		if err := r.handle(ctx, action); err != nil {
			if r.report(err) {
				continue
			}
			return err
		}
	}
}

func (r *runner) handle(ctx context.Context, action string) error {
	switch action {
	case PromptAnswer:
		return r.answer(ctx)
	case PromptStyle:
		return r.changeStyle()
	case PromptReview:
		return r.review(ctx)
	case PromptRestart:
		return r.restart(ctx)
	case PromptFinish:
		return r.finish(ctx)
	case PromptDump:
		filename, err := r.session.Transcript().DumpToTmpFile(r.format)
		if err != nil {
			return fmt.Errorf("dump transcript to file: %w", err)
		}
		r.logger.Info("dumping transcript to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func (r *runner) answer(ctx context.Context) error {
	r.printQuestion()

	answer, err := (&promptui.Prompt{Label: "Your answer"}).Run()
	if err != nil {
		return err
	}

	turn, err := r.controller.SubmitAnswer(ctx, r.session, answer)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "\nFeedback (%s):\n%s\n", r.session.EvaluationStyle(), turn.Feedback)
	r.printUsage()
	r.printQuestion()
	return nil
}

func (r *runner) changeStyle() error {
	registry := interview.Personas()
	items := make([]string, 0, len(registry))
	for _, info := range registry {
		items = append(items, fmt.Sprintf("%s: %s", info.Name, info.Description))
	}

	index, _, err := (&promptui.Select{Label: "Evaluation style", Items: items}).Run()
	if err != nil {
		return err
	}

	if err := r.controller.SetEvaluationStyle(r.session, registry[index].Name); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Evaluation style set to %s.\n", registry[index].Name)
	return nil
}

func (r *runner) review(ctx context.Context) error {
	questions := r.session.Questions()
	answers := r.session.Answers()
	if len(answers) == 0 {
		fmt.Fprintln(r.out, "No answers yet.")
		return nil
	}

	items := make([]string, 0, len(answers)+1)
	for i := range answers {
		items = append(items, fmt.Sprintf("Q%d: %s", i+1, questions[i]))
	}

	index, selected, err := (&promptui.Select{Label: "Choose a question", Items: append(items, PromptBack)}).Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}

	feedback, err := r.controller.FeedbackFor(ctx, r.session, index)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "\nQ%d: %s\nYour answer: %s\nFeedback (%s):\n%s\n",
		index+1, questions[index], answers[index], r.session.EvaluationStyle(), feedback)
	r.printUsage()
	return nil
}

func (r *runner) restart(ctx context.Context) error {
	action, err := choose("Restart with", []string{PromptKeep, PromptNewTitle, PromptBack})
	if err != nil || action == PromptBack {
		return err
	}

	req := interview.RestartRequest{}
	if action == PromptNewTitle {
		if req.JobTitle, err = askJobTitle(r.session.JobTitle()); err != nil {
			return err
		}
	}

	clarification, err := r.controller.Restart(ctx, r.session, req)
	if err != nil {
		return err
	}
	if clarification != nil {
		if err := r.clarify(ctx, clarification); err != nil {
			return err
		}
	}

	r.printQuestion()
	return nil
}

func (r *runner) finish(ctx context.Context) error {
	summary, err := r.controller.Finish(ctx, r.session)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "\nSummary:\n%s\n", summary.Text)
	if len(summary.Recommendations) > 0 {
		fmt.Fprintln(r.out, "\nRecommendations:")
		for _, recommendation := range summary.Recommendations {
			fmt.Fprintf(r.out, "  - %s\n", recommendation)
		}
	}
	r.printUsage()
	return nil
}

func (r *runner) printQuestion() {
	if question, ok := r.session.CurrentQuestion(); ok {
		fmt.Fprintf(r.out, "\nQuestion %d: %s\n", r.session.CurrentQuestionIndex()+1, question)
	}
}

func (r *runner) logTotals() {
	spent := r.gateway.Totals()
	r.logger.Info("exiting", logger.UsageFields(spent.InputTokens, spent.OutputTokens, spent.Cost)...)
}

func (r *runner) printUsage() {
	fmt.Fprint(r.out, usageBox(r.session.Usage()))
}

// report prints errors meant for the user and tells whether the loop may go on.
func (r *runner) report(err error) bool {
	var userErr interface{ UserMessage() string }
	if errors.As(err, &userErr) {
		fmt.Fprintf(r.out, "%s\n", userErr.UserMessage())
		r.logger.Debug("operation rejected", zap.Error(err))
		return true
	}
	return false
}

func usageBox(usage ai.UsageSnapshot) string {
	lines := []string{
		fmt.Sprintf("input tokens:  %d", usage.InputTokens),
		fmt.Sprintf("output tokens: %d", usage.OutputTokens),
		fmt.Sprintf("cost:          $%.6f", usage.Cost),
	}

	width := 0
	for _, line := range lines {
		if len(line) > width {
			width = len(line)
		}
	}

	border := "+" + strings.Repeat("-", width+2) + "+\n"
	var b strings.Builder
	b.WriteString(border)
	for _, line := range lines {
		fmt.Fprintf(&b, "| %-*s |\n", width, line)
	}
	b.WriteString(border)
	return b.String()
}

func askJobTitle(current string) (string, error) {
	p := promptui.Prompt{
		Label:   "Job title",
		Default: current,
		Validate: func(input string) error {
			if ok, message := validation.Exists(input); !ok {
				return errors.New(message)
			}
			return nil
		},
	}
	return p.Run()
}

func choose(label string, items []string) (string, error) {
	_, selected, err := (&promptui.Select{Label: label, Items: items}).Run()
	return selected, err
}

func questionTypeItems() []string {
	items := []string{}
	for _, qt := range interview.QuestionTypes() {
		items = append(items, string(qt))
	}
	return items
}

func difficultyItems() []string {
	items := []string{}
	for _, d := range interview.Difficulties() {
		items = append(items, string(d))
	}
	return items
}

func flagValue(cmd *cobra.Command, name string) string {
	if flag := cmd.Flag(name); flag != nil {
		return strings.TrimSpace(flag.Value.String())
	}
	return ""
}

func isExit(err error) bool {
	return errors.Is(err, errExit) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) ||
		errors.Is(err, context.Canceled)
}
