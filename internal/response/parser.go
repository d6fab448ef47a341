// Package response turns semi-structured model output into interview values.
// Parsing never fails on malformed model text; each parser degrades to a
// fixed fallback instead.
package response

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Fallback texts used when the model output lacks a field.
const (
	QuestionPlaceholder = "Could not generate question. Please try again."
	NoFeedback          = "No feedback returned."
	NoSummary           = "No summary provided."
)

// Evaluation is the parsed evaluation of one answer. NextQuestion is empty when
// the model did not propose one.
type Evaluation struct {
	Feedback     string
	NextQuestion string
}

// Summary is the parsed end-of-interview summary.
type Summary struct {
	Text            string   `json:"summary" yaml:"summary"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

// ParseQuestion extracts the question from a question_result payload. Text that
// is not a JSON object is returned as is.
func ParseQuestion(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return QuestionPlaceholder
	}

	data, ok := decodeObject(raw, "question")
	if !ok {
		return raw
	}

	if question := coerceString(data["question"]); question != "" {
		return question
	}
	return QuestionPlaceholder
}

// ParseEvaluation extracts feedback and the optional next question. Text that is
// not a JSON object becomes the feedback.
func ParseEvaluation(raw string) Evaluation {
	data, ok := decodeObject(raw, "feedback")
	if !ok {
		feedback := strings.TrimSpace(raw)
		if feedback == "" {
			feedback = NoFeedback
		}
		return Evaluation{Feedback: feedback}
	}

	feedback := coerceString(data["feedback"])
	if feedback == "" {
		feedback = NoFeedback
	}

	return Evaluation{
		Feedback:     feedback,
		NextQuestion: coerceString(data["next_question"]),
	}
}

// ParseSummary extracts the summary and recommendations. A single
// recommendation that is not a list is wrapped into one.
func ParseSummary(raw string) Summary {
	data, ok := decodeObject(raw, "summary")
	if !ok {
		return Summary{Text: strings.TrimSpace(raw), Recommendations: []string{}}
	}

	text := coerceString(data["summary"])
	if text == "" {
		text = NoSummary
	}

	return Summary{Text: text, Recommendations: recommendations(data["recommendations"])}
}

// decodeObject decodes the object carried by raw. An object found inside
// surrounding prose counts only when it has key; otherwise the prose itself is
// the answer.
func decodeObject(raw, key string) (map[string]any, bool) {
	payload, embedded := extractJSON(raw)
	if payload == "" {
		return nil, false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil || data == nil {
		return nil, false
	}
	if _, found := data[key]; embedded && !found {
		return nil, false
	}
	return data, true
}

func recommendations(v any) []string {
	out := []string{}
	if v == nil {
		return out
	}

	var decoded []string
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &decoded,
	})
	if err == nil {
		err = decoder.Decode(v)
	}
	if err != nil {
		decoded = nil
		if items, ok := v.([]any); ok {
			for _, item := range items {
				decoded = append(decoded, coerceString(item))
			}
		} else {
			decoded = []string{coerceString(v)}
		}
	}

	for _, item := range decoded {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Decode unmarshals the JSON object carried by raw into target. Code fences and
// prose around the object are tolerated. A nil or non-pointer target is a
// *ParsingError; malformed text is an ordinary error.
func Decode(raw string, target any) error {
	if target == nil {
		return &ParsingError{Reason: "target is nil"}
	}
	if rv := reflect.ValueOf(target); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &ParsingError{Reason: fmt.Sprintf("target must be a non-nil pointer, got %T", target)}
	}

	payload, _ := extractJSON(raw)
	if payload == "" {
		return fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ParsingError is a parser called with arguments it cannot work with.
type ParsingError struct {
	Reason string
}

func (e *ParsingError) Error() string {
	return "parse response: " + e.Reason
}

// UserMessage is safe to show to the person being interviewed.
func (e *ParsingError) UserMessage() string {
	return "The response could not be read. Please try again."
}

// extractJSON returns the JSON object in raw. embedded is set when the object
// was cut out of surrounding prose.
func extractJSON(raw string) (payload string, embedded bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	if strings.HasPrefix(raw, "{") {
		return raw, false
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
