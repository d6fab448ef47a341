package interview

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/response"
)

// Transcript formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// TranscriptTurn is one question with its answer and feedback, if any.
type TranscriptTurn struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer,omitempty" yaml:"answer,omitempty"`
	Feedback string `json:"feedback,omitempty" yaml:"feedback,omitempty"`
}

// Transcript is a point-in-time copy of a session.
type Transcript struct {
	SessionID       string            `json:"session_id" yaml:"session_id"`
	State           string            `json:"state" yaml:"state"`
	JobTitle        string            `json:"job_title" yaml:"job_title"`
	QuestionType    QuestionType      `json:"question_type" yaml:"question_type"`
	Difficulty      Difficulty        `json:"difficulty" yaml:"difficulty"`
	EvaluationStyle Persona           `json:"evaluation_style" yaml:"evaluation_style"`
	Turns           []TranscriptTurn  `json:"turns" yaml:"turns"`
	Summary         *response.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
	Usage           ai.UsageSnapshot  `json:"usage" yaml:"usage"`
}

// Transcript returns a copy of the session progress.
func (s *Session) Transcript() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Transcript{
		SessionID:       s.id,
		State:           s.state.String(),
		JobTitle:        s.jobTitle,
		QuestionType:    s.questionType,
		Difficulty:      s.difficulty,
		EvaluationStyle: s.style,
		Turns:           make([]TranscriptTurn, 0, len(s.questions)),
		Usage:           s.usage.Snapshot(),
	}

	for i, question := range s.questions {
		turn := TranscriptTurn{Question: question}
		if i < len(s.answers) {
			turn.Answer = s.answers[i]
			turn.Feedback = s.feedbacks[i]
		}
		t.Turns = append(t.Turns, turn)
	}

	if s.summary != nil {
		summary := copySummary(s.summary)
		t.Summary = &summary
	}

	return t
}

// Encode writes the transcript to w in the given format.
func (t Transcript) Encode(w io.Writer, format string) error {
	format, err := normalizeFormat(format)
	if err != nil {
		return err
	}

	if format == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// DumpToTmpFile writes the transcript to a new temporary file and returns its name.
func (t Transcript) DumpToTmpFile(format string) (string, error) {
	ext, err := normalizeFormat(format)
	if err != nil {
		return "", err
	}

	file, err := os.CreateTemp("", "interview_*."+ext)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := t.Encode(file, ext); err != nil {
		_ = os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}

func normalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported transcript format %q", format)
	}
}
