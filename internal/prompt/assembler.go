package prompt

import "strings"

// Assembler combines a base-instruction template with a technique template of
// the same category.
type Assembler struct {
	renderer Renderer
}

func NewAssembler(renderer Renderer) *Assembler {
	return &Assembler{renderer: renderer}
}

// Assemble renders {category}/{base} and {category}/{technique} against the same
// vars and joins them with a blank line, base first.
func (a *Assembler) Assemble(category, base, technique string, vars Vars) (string, error) {
	baseText, err := a.renderer.Render(Name(category, base), vars)
	if err != nil {
		return "", err
	}

	techniqueText, err := a.renderer.Render(Name(category, technique), vars)
	if err != nil {
		return "", err
	}

	return baseText + "\n\n" + techniqueText, nil
}

// System renders a system instruction template.
func (a *Assembler) System(name string) (string, error) {
	return a.renderer.Render(Name("system", name), nil)
}

// Name builds a template address from its category and name.
func Name(category, name string) string {
	return strings.Trim(category, "/") + "/" + strings.Trim(name, "/")
}
