package interview

import "github.com/spigell/interview-coach/internal/ai"

var questionSchema = &ai.Schema{
	Name: "question_result",
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"question": {Type: ai.TypeString, MinLength: 1},
	},
	Order:    []string{"question"},
	Required: []string{"question"},
}

var evaluationSchema = &ai.Schema{
	Name: "evaluation_result",
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"feedback":      {Type: ai.TypeString},
		"next_question": {Type: ai.TypeString, Nullable: true},
	},
	Order:    []string{"feedback", "next_question"},
	Required: []string{"feedback", "next_question"},
}

var summarySchema = &ai.Schema{
	Name: "summary_result",
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"summary":         {Type: ai.TypeString},
		"recommendations": {Type: ai.TypeArray, Items: &ai.Schema{Type: ai.TypeString}},
	},
	Order:    []string{"summary", "recommendations"},
	Required: []string{"summary", "recommendations"},
}
