package prompt

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestAssemblerAssemble(t *testing.T) {
	a := NewAssembler(NewTemplateRenderer(fstest.MapFS{
		"evaluation/base_instructions.tmpl": {Data: []byte("Question: {{.question}}")},
		"evaluation/persona_mentor.tmpl":    {Data: []byte("Be kind about {{.question}}.")},
	}))

	got, err := a.Assemble("evaluation", "base_instructions", "persona_mentor", Vars{"question": "Q1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := "Question: Q1\n\nBe kind about Q1."; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestAssemblerMissingTechnique(t *testing.T) {
	a := NewAssembler(NewTemplateRenderer(fstest.MapFS{
		"summary/base_instructions.tmpl": {Data: []byte("base")},
	}))

	_, err := a.Assemble("summary", "base_instructions", "technique_absent", nil)

	var tmplErr *TemplateError
	if !errors.As(err, &tmplErr) || tmplErr.Name != "summary/technique_absent" {
		t.Fatalf("expected TemplateError for technique, got %v", err)
	}
}

func TestAssemblerReflectsChangingVars(t *testing.T) {
	a := NewAssembler(NewTemplateRenderer(fstest.MapFS{
		"questions/base.tmpl": {Data: []byte("{{len .asked}} asked")},
		"questions/tech.tmpl": {Data: []byte("next")},
	}))

	first, _ := a.Assemble("questions", "base", "tech", Vars{"asked": []string{"a"}})
	second, _ := a.Assemble("questions", "base", "tech", Vars{"asked": []string{"a", "b"}})

	if first == second {
		t.Fatalf("expected rendered output to follow vars, got %q twice", first)
	}
}

func TestName(t *testing.T) {
	if got := Name("/system/", "question"); got != "system/question" {
		t.Fatalf("unexpected name %q", got)
	}
}
