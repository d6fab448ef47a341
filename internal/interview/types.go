// Package interview drives a practice interview: it asks questions, evaluates
// answers through a persona and summarizes the result.
package interview

import (
	"fmt"
	"strings"
)

// QuestionType is the category of questions asked during a session.
type QuestionType string

const (
	Behavioral   QuestionType = "Behavioral"
	RoleSpecific QuestionType = "Role-specific"
	Technical    QuestionType = "Technical"
)

// QuestionTypes lists the supported question types in display order.
func QuestionTypes() []QuestionType {
	return []QuestionType{Behavioral, RoleSpecific, Technical}
}

// ParseQuestionType accepts a question type name in any case. Spaces and
// underscores are treated like dashes.
func ParseQuestionType(value string) (QuestionType, error) {
	normalized := normalize(value)
	for _, qt := range QuestionTypes() {
		if normalize(string(qt)) == normalized {
			return qt, nil
		}
	}
	return "", &ValidationError{Field: "question type", Message: fmt.Sprintf("Unknown question type %q.", value)}
}

// Difficulty of the questions asked.
type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

func Difficulties() []Difficulty {
	return []Difficulty{Easy, Medium, Hard}
}

func ParseDifficulty(value string) (Difficulty, error) {
	normalized := normalize(value)
	for _, d := range Difficulties() {
		if normalize(string(d)) == normalized {
			return d, nil
		}
	}
	return "", &ValidationError{Field: "difficulty", Message: fmt.Sprintf("Unknown difficulty %q.", value)}
}

// Persona is the point of view answers are evaluated from.
type Persona string

const (
	HiringManager       Persona = "Hiring Manager"
	HRProfessional      Persona = "HR Professional"
	IdealCandidate      Persona = "Ideal Candidate"
	Mentor              Persona = "Mentor"
	SubjectMatterExpert Persona = "Subject Matter Expert"

	DefaultPersona = HiringManager
)

// PersonaInfo describes a registered persona.
type PersonaInfo struct {
	Name Persona
	// Key is a short alias accepted on the command line.
	Key string
	// Technique is the evaluation template the persona selects.
	Technique   string
	Description string
}

var personas = []PersonaInfo{
	{
		Name:        HiringManager,
		Key:         "hiring-manager",
		Technique:   "persona_hiring_manager",
		Description: "Focuses on how a candidate would be assessed for hiring suitability.",
	},
	{
		Name:        HRProfessional,
		Key:         "hr",
		Technique:   "persona_hr",
		Description: "Evaluates answers using HR best practices, professionalism, and compliance.",
	},
	{
		Name:      IdealCandidate,
		Key:       "ideal-candidate",
		Technique: "persona_ideal_candidate",
		Description: "Provides feedback from the perspective of a top-performing candidate, someone who has mastered " +
			"this job and knows exactly what excellence looks like.",
	},
	{
		Name:        Mentor,
		Key:         "mentor",
		Technique:   "persona_mentor",
		Description: "Offers constructive, step-by-step guidance for learning and improvement.",
	},
	{
		Name:        SubjectMatterExpert,
		Key:         "sme",
		Technique:   "persona_sme",
		Description: "Focuses on technical accuracy and domain expertise; may skip behavioral aspects.",
	},
}

// Personas returns the persona registry in display order.
func Personas() []PersonaInfo {
	out := make([]PersonaInfo, len(personas))
	copy(out, personas)
	return out
}

// ParsePersona accepts a persona name or its key in any case.
func ParsePersona(value string) (Persona, error) {
	normalized := normalize(value)
	for _, p := range personas {
		if normalize(string(p.Name)) == normalized || p.Key == normalized {
			return p.Name, nil
		}
	}
	return "", &ValidationError{Field: "evaluation style", Message: fmt.Sprintf("Unknown evaluation style %q.", value)}
}

func (p Persona) info() (PersonaInfo, bool) {
	for _, info := range personas {
		if info.Name == p {
			return info, true
		}
	}
	return PersonaInfo{}, false
}

// Technique returns the evaluation template of the persona.
func (p Persona) Technique() string {
	info, _ := p.info()
	return info.Technique
}

func (p Persona) Description() string {
	info, _ := p.info()
	return info.Description
}

// State is the lifecycle position of a session.
type State int

const (
	NotStarted State = iota
	ClarificationPending
	Active
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case ClarificationPending:
		return "clarification_pending"
	case Active:
		return "active"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func normalize(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.NewReplacer(" ", "-", "_", "-").Replace(value)
}
