// Package validation checks job titles before an interview starts.
package validation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/prompt"
)

// Messages shown to the user.
const (
	RequiredMessage = "Job title is required. Please enter a valid job title."
	FailedMessage   = "Validation failed. Please try again."
	OfflineMessage  = "Mock Clarification: This job title seems unusual. Please confirm."

	modePrefix = "MODE: validate_job_title"
	marker     = "clarification"

	systemTemplate    = "job_title_validator"
	baseTemplate      = "base_instructions"
	techniqueTemplate = "technique_validate_job_title"
	category          = "validation"
)

// Exists reports whether title is non-blank and the message to show otherwise.
func Exists(title string) (bool, string) {
	if strings.TrimSpace(title) == "" {
		return false, RequiredMessage
	}
	return true, ""
}

// Verdict is the outcome of a clarification check.
type Verdict struct {
	Accepted bool
	Message  string
}

// Caller sends a request to a model. *ai.Gateway satisfies it.
type Caller interface {
	Call(ctx context.Context, usage *ai.Usage, req ai.Request) (string, error)
}

// Config controls the validator.
type Config struct {
	// Offline skips the model and accepts every title not listed in
	// OfflineClarifications.
	Offline               bool
	OfflineClarifications []string
	Params                ai.GenerationParams
}

// Validator asks a model whether a job title needs clarification.
type Validator struct {
	caller    Caller
	assembler *prompt.Assembler
	config    Config
	logger    *zap.Logger
}

func New(caller Caller, assembler *prompt.Assembler, config Config, log *zap.Logger) *Validator {
	return &Validator{
		caller:    caller,
		assembler: assembler,
		config:    config,
		logger:    logger.WithFields(log),
	}
}

// Clarify checks title. Token usage of the check is added to usage.
func (v *Validator) Clarify(ctx context.Context, usage *ai.Usage, title string) Verdict {
	title = strings.TrimSpace(title)
	log := v.logger.With(zap.String(logger.FieldJobTitle, title))

	if v.config.Offline {
		for _, candidate := range v.config.OfflineClarifications {
			if strings.EqualFold(strings.TrimSpace(candidate), title) {
				log.Info("offline clarification needed")
				return Verdict{Message: OfflineMessage}
			}
		}
		return Verdict{Accepted: true}
	}

	req, err := v.request(title)
	if err != nil {
		log.Error("failed to build validation prompt", zap.Error(err))
		return Verdict{Message: FailedMessage}
	}

	text, err := v.caller.Call(ctx, usage, req)
	if err != nil || strings.TrimSpace(text) == "" {
		log.Warn("job title validation failed", zap.Error(err))
		return Verdict{Message: FailedMessage}
	}

	text = strings.TrimSpace(text)
	if strings.Contains(strings.ToLower(text), marker) {
		log.Info("job title needs clarification", zap.String("response", text))
		return Verdict{Message: text}
	}

	log.Debug("job title accepted")
	return Verdict{Accepted: true}
}

func (v *Validator) request(title string) (ai.Request, error) {
	system, err := v.assembler.System(systemTemplate)
	if err != nil {
		return ai.Request{}, err
	}

	body, err := v.assembler.Assemble(category, baseTemplate, techniqueTemplate, prompt.Vars{"job_title": title})
	if err != nil {
		return ai.Request{}, err
	}

	return ai.Request{
		System: system,
		Prompt: modePrefix + "\n\n" + body,
		Params: v.config.Params,
	}, nil
}
